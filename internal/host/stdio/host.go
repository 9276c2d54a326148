package stdio

import (
	"context"
	"errors"
	"fmt"
	"io"

	"firestige.xyz/lswitch/internal/log"
	"firestige.xyz/lswitch/internal/switching/engine"
	"firestige.xyz/lswitch/internal/switching/frame"
	"firestige.xyz/lswitch/internal/switching/iface"
)

// Host feeds envelopes from one stream into the engine, one at a time.
//
// A body of exactly six bytes on an interface type is that interface's MAC
// announcement; anything else on an interface type is a frame. No frame
// can be six bytes long, since a frame needs at least a header.
type Host struct {
	engine *engine.Engine
	in     *Reader
	logger log.Logger
}

func NewHost(e *engine.Engine, in io.Reader, logger log.Logger) *Host {
	return &Host{
		engine: e,
		in:     NewReader(in),
		logger: logger,
	}
}

type readResult struct {
	msg Message
	err error
}

// Run processes messages until the input ends (nil), ctx is cancelled, or a
// fatal error occurs: a corrupt envelope, an interface outside the
// configured range, or a failed transmit.
//
// Envelopes are read on a separate goroutine so that cancellation is seen
// while the input is idle. That goroutine exits once its pending read
// returns.
func (h *Host) Run(ctx context.Context) error {
	count := h.engine.Registry().Count()
	results := make(chan readResult)
	done := make(chan struct{})
	defer close(done)
	go h.read(results, done)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var res readResult
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res = <-results:
		}
		msg, err := res.msg, res.err
		if errors.Is(err, io.EOF) {
			h.logger.Debug("input closed")
			return nil
		}
		if err != nil {
			return fmt.Errorf("read envelope: %w", err)
		}

		if msg.Type == TypeControl {
			h.engine.DeliverControl(string(msg.Body))
			continue
		}
		ifc := int(msg.Type)
		if ifc > count {
			return fmt.Errorf("message type %d: %w: %d not in 1..%d", msg.Type, iface.ErrInvalidInterface, ifc, count)
		}
		if len(msg.Body) == len(frame.MAC{}) {
			mac, _ := frame.MACFromBytes(msg.Body)
			if err := h.engine.AnnounceMAC(ifc, mac); err != nil {
				return err
			}
			continue
		}
		if _, err := h.engine.DeliverFrame(ifc, msg.Body); err != nil {
			return err
		}
	}
}

// read hands envelopes to Run one at a time and stops after the first
// error or once Run has returned.
func (h *Host) read(results chan<- readResult, done <-chan struct{}) {
	for {
		msg, err := h.in.ReadMessage()
		select {
		case results <- readResult{msg: msg, err: err}:
		case <-done:
			return
		}
		if err != nil {
			return
		}
	}
}
