package log

import (
	"fmt"
	"path"
	"runtime"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

type formatter struct {
	pattern string
	time    string
}

// Format renders entry through the pattern. Recognised placeholders are
// %time, %level, %field, %msg, %caller, %func, %goroutine and %n.
func (f *formatter) Format(entry *logrus.Entry) ([]byte, error) {
	pairs := []string{
		"%time", entry.Time.Format(f.time),
		"%level", strings.ToUpper(entry.Level.String()),
		"%field", buildFields(entry),
		"%msg", entry.Message,
		"%n", "\n",
	}
	if strings.Contains(f.pattern, "%caller") || strings.Contains(f.pattern, "%func") {
		frame, ok := callerFrame()
		pairs = append(pairs, "%caller", formatCaller(frame, ok), "%func", formatFunc(frame, ok))
	}
	if strings.Contains(f.pattern, "%goroutine") {
		pairs = append(pairs, "%goroutine", getGoroutineID())
	}
	output := strings.NewReplacer(pairs...).Replace(f.pattern)
	if !strings.HasSuffix(output, "\n") {
		output += "\n"
	}
	return []byte(output), nil
}

// callerFrame finds the frame that called into the Logger adapter. logrus'
// own caller reporting would stop at the adapter.
func callerFrame() (runtime.Frame, bool) {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	adapterSeen := false
	for {
		fr, more := frames.Next()
		if strings.Contains(fr.Function, "(*logrusAdapter).") {
			adapterSeen = true
		} else if adapterSeen {
			return fr, true
		}
		if !more {
			return runtime.Frame{}, false
		}
	}
}

// formatCaller renders package/file.go:line.
func formatCaller(fr runtime.Frame, ok bool) string {
	if !ok {
		return "unknown"
	}
	pkg := ""
	if fn := path.Base(fr.Function); fn != "" {
		if dot := strings.Index(fn, "."); dot > 0 {
			pkg = fn[:dot]
		}
	}
	return fmt.Sprintf("%s/%s:%d", pkg, path.Base(fr.File), fr.Line)
}

func formatFunc(fr runtime.Frame, ok bool) string {
	if !ok {
		return "unknown"
	}
	funcName := fr.Function
	if dotIdx := strings.LastIndex(funcName, "."); dotIdx != -1 && dotIdx+1 < len(funcName) {
		return funcName[dotIdx+1:]
	}
	return funcName
}

func getGoroutineID() string {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	stack := strings.TrimPrefix(string(buf[:n]), "goroutine ")
	if idField := strings.Fields(stack); len(idField) > 0 {
		return idField[0]
	}
	return "unknown"
}

// buildFields renders key=value pairs sorted by key.
func buildFields(entry *logrus.Entry) string {
	if len(entry.Data) == 0 {
		return ""
	}
	keys := make([]string, 0, len(entry.Data))
	for key := range entry.Data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fields := make([]string, 0, len(keys))
	for _, key := range keys {
		val := entry.Data[key]
		stringVal, ok := val.(string)
		if !ok {
			if err, isErr := val.(error); isErr {
				stringVal = err.Error()
			} else {
				stringVal = fmt.Sprint(val)
			}
		}
		fields = append(fields, key+"="+stringVal)
	}
	return strings.Join(fields, ",")
}
