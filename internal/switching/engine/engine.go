// Package engine makes the per-frame forwarding decision: learn the source,
// resolve the destination, then forward, flood or filter.
package engine

import (
	"fmt"
	"strings"
	"time"

	"firestige.xyz/lswitch/internal/log"
	"firestige.xyz/lswitch/internal/switching/clock"
	"firestige.xyz/lswitch/internal/switching/frame"
	"firestige.xyz/lswitch/internal/switching/iface"
	"firestige.xyz/lswitch/internal/switching/table"
)

// Transmitter puts a frame on the wire of one interface. The engine hands
// over the buffer it received; implementations must not modify it.
type Transmitter interface {
	Transmit(ifc int, raw []byte) error
}

// TransmitterFunc adapts a function to Transmitter.
type TransmitterFunc func(ifc int, raw []byte) error

func (f TransmitterFunc) Transmit(ifc int, raw []byte) error {
	return f(ifc, raw)
}

// Recorder receives forwarding statistics. metrics.Metrics implements it.
type Recorder interface {
	ObserveFrame(verdict string)
	ObserveEmission(ifc int)
	ObserveLearn(action string, entries int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveFrame(string)      {}
func (nopRecorder) ObserveEmission(int)      {}
func (nopRecorder) ObserveLearn(string, int) {}

// Verdict is what the engine decided for one frame.
type Verdict int

const (
	VerdictNone Verdict = iota
	// VerdictForwarded: sent on the one interface the destination is known on.
	VerdictForwarded
	// VerdictFlooded: broadcast or unknown unicast, sent everywhere but ingress.
	VerdictFlooded
	// VerdictFiltered: the destination sits behind the ingress interface.
	VerdictFiltered
	// VerdictMalformed: shorter than an Ethernet header, dropped.
	VerdictMalformed
)

func (v Verdict) String() string {
	switch v {
	case VerdictForwarded:
		return "forwarded"
	case VerdictFlooded:
		return "flooded"
	case VerdictFiltered:
		return "filtered"
	case VerdictMalformed:
		return "malformed"
	default:
		return "none"
	}
}

// Engine owns the interface registry and the address table. It is driven
// by exactly one goroutine; nothing in it is locked.
type Engine struct {
	registry *iface.Registry
	table    *table.Table
	tx       Transmitter
	clock    clock.Clock
	logger   log.Logger
	recorder Recorder
}

type Option func(*Engine)

func WithLogger(l log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithClock sets the clock DeliverFrame stamps frames with. The default is
// a process monotonic clock.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

func New(registry *iface.Registry, tbl *table.Table, tx Transmitter, opts ...Option) *Engine {
	e := &Engine{
		registry: registry,
		table:    tbl,
		tx:       tx,
		clock:    clock.NewMonotonic(),
		logger:   log.GetLogger(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Registry() *iface.Registry { return e.registry }

func (e *Engine) Table() *table.Table { return e.table }

// OnFrame handles one frame received on ingress at time now.
//
// An ingress outside the configured interfaces is a host contract violation
// and returns iface.ErrInvalidInterface before anything is touched. A frame
// shorter than an Ethernet header is logged and dropped with a nil error.
// Any other error comes from the Transmitter.
func (e *Engine) OnFrame(ingress int, raw []byte, now time.Duration) (Verdict, error) {
	if !e.registry.Valid(ingress) {
		return VerdictNone, fmt.Errorf("frame on interface %d: %w", ingress, iface.ErrInvalidInterface)
	}

	f, err := frame.Parse(raw)
	if err != nil {
		e.logger.WithField("ifc", ingress).WithField("len", len(raw)).Warn("Malformed frame")
		e.recorder.ObserveFrame(VerdictMalformed.String())
		return VerdictMalformed, nil
	}
	if e.logger.IsTraceEnabled() {
		e.logger.WithField("ifc", ingress).Tracef("%s [%s]", f, frame.Summary(raw))
	}

	e.learn(f.Src, ingress, now)

	var verdict Verdict
	switch {
	case f.Dst.IsBroadcast():
		verdict, err = e.flood(ingress, raw)
	default:
		target, ok := e.table.Lookup(f.Dst)
		switch {
		case !ok:
			verdict, err = e.flood(ingress, raw)
		case target == ingress:
			verdict = VerdictFiltered
			if e.logger.IsDebugEnabled() {
				e.logger.Debugf("Frame from %d to %s dropped, destination is on the ingress interface", ingress, f.Dst)
			}
		default:
			verdict, err = VerdictForwarded, e.emit(target, raw)
			if err == nil && e.logger.IsDebugEnabled() {
				e.logger.Debugf("Frame from %d to %d forwarded", ingress, target)
			}
		}
	}
	if err != nil {
		return verdict, err
	}
	e.recorder.ObserveFrame(verdict.String())
	return verdict, nil
}

// DeliverFrame is OnFrame stamped with the engine's clock.
func (e *Engine) DeliverFrame(ingress int, raw []byte) (Verdict, error) {
	return e.OnFrame(ingress, raw, e.clock.Now())
}

// AnnounceMAC records the host-supplied address of interface id.
func (e *Engine) AnnounceMAC(id int, mac frame.MAC) error {
	if err := e.registry.SetMAC(id, mac); err != nil {
		return err
	}
	e.logger.WithField("ifc", id).Infof("Interface address is %s", mac)
	return nil
}

// DeliverControl acknowledges an operator command. Commands are not
// interpreted by the switch.
func (e *Engine) DeliverControl(text string) {
	text = strings.TrimRight(text, "\r\n\x00")
	e.logger.Infof("Received command `%s' (ignored)", text)
}

func (e *Engine) learn(src frame.MAC, ingress int, now time.Duration) {
	res := e.table.Learn(src, ingress, now)
	e.recorder.ObserveLearn(res.Action.String(), e.table.Len())
	if !e.logger.IsDebugEnabled() {
		return
	}
	switch res.Action {
	case table.Inserted:
		e.logger.Debugf("Learned %s on %d", src, ingress)
	case table.Moved:
		e.logger.Debugf("Station %s moved from %d to %d", src, res.Previous.Interface, ingress)
	case table.Evicted:
		e.logger.Debugf("Learned %s on %d, evicted %s (last seen %v)", src, ingress, res.Previous.MAC, res.Previous.LastSeen)
	}
}

func (e *Engine) flood(ingress int, raw []byte) (Verdict, error) {
	for _, ifc := range e.registry.AllExcept(ingress) {
		if err := e.emit(ifc, raw); err != nil {
			return VerdictFlooded, err
		}
	}
	if e.logger.IsDebugEnabled() {
		e.logger.Debugf("Frame from %d flooded", ingress)
	}
	return VerdictFlooded, nil
}

func (e *Engine) emit(ifc int, raw []byte) error {
	if err := e.tx.Transmit(ifc, raw); err != nil {
		return fmt.Errorf("transmit on interface %d: %w", ifc, err)
	}
	e.recorder.ObserveEmission(ifc)
	return nil
}
