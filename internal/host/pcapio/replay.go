package pcapio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"firestige.xyz/lswitch/internal/log"
	"firestige.xyz/lswitch/internal/switching/clock"
	"firestige.xyz/lswitch/internal/switching/engine"
)

// Input binds a capture file to the interface its packets arrive on.
type Input struct {
	Interface int
	Path      string
}

// ParseInput parses "<id>=<path>".
func ParseInput(s string) (Input, error) {
	id, path, ok := strings.Cut(s, "=")
	if !ok || path == "" {
		return Input{}, fmt.Errorf("input %q: want <interface>=<file>", s)
	}
	n, err := strconv.Atoi(id)
	if err != nil || n < 1 {
		return Input{}, fmt.Errorf("input %q: interface must be a positive number", s)
	}
	return Input{Interface: n, Path: path}, nil
}

// Summary counts replayed frames by verdict.
type Summary map[engine.Verdict]int

func (s Summary) Total() int {
	n := 0
	for _, c := range s {
		n += c
	}
	return n
}

type source struct {
	input  Input
	order  int
	file   *os.File
	reader *pcapgo.Reader

	data []byte
	ci   gopacket.CaptureInfo
	done bool
}

func (s *source) advance() error {
	data, ci, err := s.reader.ReadPacketData()
	if errors.Is(err, io.EOF) {
		s.done = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", s.input.Path, err)
	}
	s.data, s.ci = data, ci
	return nil
}

// before orders pending packets: timestamp, then interface, then the order
// the inputs were given in.
func (s *source) before(o *source) bool {
	if !s.ci.Timestamp.Equal(o.ci.Timestamp) {
		return s.ci.Timestamp.Before(o.ci.Timestamp)
	}
	if s.input.Interface != o.input.Interface {
		return s.input.Interface < o.input.Interface
	}
	return s.order < o.order
}

// Replayer merges the inputs by capture time and feeds them to the engine.
// The engine must have been built with Clock and Egress as its clock and
// transmitter.
type Replayer struct {
	engine  *engine.Engine
	clock   *clock.Manual
	egress  *EgressWriter
	logger  log.Logger
	sources []*source
}

func NewReplayer(e *engine.Engine, c *clock.Manual, egress *EgressWriter, logger log.Logger) *Replayer {
	return &Replayer{
		engine: e,
		clock:  c,
		egress: egress,
		logger: logger,
	}
}

// Open opens every input and checks it carries Ethernet frames.
func (r *Replayer) Open(inputs []Input) error {
	for i, in := range inputs {
		if !r.engine.Registry().Valid(in.Interface) {
			return fmt.Errorf("input %s: interface %d not in 1..%d", in.Path, in.Interface, r.engine.Registry().Count())
		}
		f, err := os.Open(in.Path)
		if err != nil {
			return err
		}
		rd, err := pcapgo.NewReader(f)
		if err != nil {
			f.Close()
			return fmt.Errorf("open %s: %w", in.Path, err)
		}
		if rd.LinkType() != layers.LinkTypeEthernet {
			f.Close()
			return fmt.Errorf("open %s: link type %s is not Ethernet", in.Path, rd.LinkType())
		}
		src := &source{input: in, order: i, file: f, reader: rd}
		r.sources = append(r.sources, src)
		if err := src.advance(); err != nil {
			return err
		}
	}
	return nil
}

func (r *Replayer) next() *source {
	var best *source
	for _, s := range r.sources {
		if s.done {
			continue
		}
		if best == nil || s.before(best) {
			best = s
		}
	}
	return best
}

// Run replays until every input is exhausted.
func (r *Replayer) Run(ctx context.Context) (Summary, error) {
	summary := Summary{}
	var origin time.Time
	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		s := r.next()
		if s == nil {
			break
		}
		if origin.IsZero() {
			origin = s.ci.Timestamp
		}
		r.clock.Set(s.ci.Timestamp.Sub(origin))
		r.egress.SetTime(s.ci.Timestamp)

		v, err := r.engine.DeliverFrame(s.input.Interface, s.data)
		if err != nil {
			return summary, err
		}
		summary[v]++

		if err := s.advance(); err != nil {
			return summary, err
		}
	}

	fields := make(map[string]interface{}, len(summary)+1)
	for v, n := range summary {
		fields[v.String()] = n
	}
	fields["stations"] = r.engine.Table().Len()
	r.logger.WithFields(fields).Infof("Replayed %d frames", summary.Total())
	return summary, nil
}

func (r *Replayer) Close() error {
	var firstErr error
	for _, s := range r.sources {
		if err := s.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
