package stdio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/lswitch/internal/log"
	"firestige.xyz/lswitch/internal/switching/engine"
	"firestige.xyz/lswitch/internal/switching/frame"
	"firestige.xyz/lswitch/internal/switching/iface"
	"firestige.xyz/lswitch/internal/switching/table"
)

var (
	macA = frame.MAC{0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa}
	macB = frame.MAC{0xbb, 0xbb, 0xbb, 0xbb, 0xbb, 0xbb}
)

func ethernet(dst, src frame.MAC) []byte {
	raw := append(append([]byte{}, dst[:]...), src[:]...)
	return append(raw, 0x88, 0xb5, 'h', 'i')
}

type harness struct {
	in     bytes.Buffer
	out    bytes.Buffer
	engine *engine.Engine
}

func newHarness(t *testing.T, ifcs int) *harness {
	t.Helper()
	h := &harness{}
	reg, err := iface.Configure(ifcs)
	require.NoError(t, err)
	tbl, err := table.New(table.DefaultCapacity)
	require.NoError(t, err)
	h.engine = engine.New(reg, tbl, NewWriter(&h.out), engine.WithLogger(log.Discard()))
	return h
}

func (h *harness) send(t *testing.T, typ uint16, body []byte) {
	t.Helper()
	require.NoError(t, NewWriter(&h.in).WriteMessage(typ, body))
}

func (h *harness) run() error {
	return NewHost(h.engine, &h.in, log.Discard()).Run(context.Background())
}

func (h *harness) emitted(t *testing.T) []Message {
	t.Helper()
	var out []Message
	r := NewReader(&h.out)
	for {
		msg, err := r.ReadMessage()
		if err != nil {
			return out
		}
		out = append(out, msg)
	}
}

func TestHostForwardsFrames(t *testing.T) {
	h := newHarness(t, 3)
	bcast := ethernet(frame.Broadcast, macA)
	reply := ethernet(macA, macB)
	h.send(t, 1, bcast)
	h.send(t, 2, reply)

	require.NoError(t, h.run())

	assert.Equal(t, []Message{
		{Type: 2, Body: bcast},
		{Type: 3, Body: bcast},
		{Type: 1, Body: reply},
	}, h.emitted(t))
}

func TestHostAnnouncementsAndControl(t *testing.T) {
	h := newHarness(t, 2)
	h.send(t, 1, macA[:])
	h.send(t, 2, macB[:])
	h.send(t, TypeControl, []byte("show table\x00"))

	require.NoError(t, h.run())

	ifc, err := h.engine.Registry().Get(2)
	require.NoError(t, err)
	assert.Equal(t, macB, ifc.MAC)
	assert.Empty(t, h.emitted(t))
	assert.Zero(t, h.engine.Table().Len())
}

func TestHostDropsRunts(t *testing.T) {
	h := newHarness(t, 2)
	h.send(t, 1, make([]byte, 10))
	h.send(t, 1, ethernet(frame.Broadcast, macA))

	require.NoError(t, h.run())

	assert.Len(t, h.emitted(t), 1, "processing continues after a malformed frame")
}

func TestHostRejectsUnknownInterface(t *testing.T) {
	h := newHarness(t, 2)
	h.send(t, 3, ethernet(frame.Broadcast, macA))
	h.send(t, 1, ethernet(frame.Broadcast, macA))

	err := h.run()

	assert.True(t, errors.Is(err, iface.ErrInvalidInterface))
	assert.Empty(t, h.emitted(t), "nothing is forwarded for or after the offending event")
}

func TestHostRejectsAnnouncementForUnknownInterface(t *testing.T) {
	h := newHarness(t, 2)
	h.send(t, 5, macA[:])

	assert.True(t, errors.Is(h.run(), iface.ErrInvalidInterface))
}

func TestHostCorruptStream(t *testing.T) {
	h := newHarness(t, 2)
	h.in.Write([]byte{0x00, 0x01, 0x00, 0x01})

	assert.True(t, errors.Is(h.run(), ErrShortMessage))
}

func TestHostStopsOnCancel(t *testing.T) {
	h := newHarness(t, 2)
	h.send(t, 1, ethernet(frame.Broadcast, macA))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewHost(h.engine, &h.in, log.Discard()).Run(ctx)

	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, h.emitted(t))
}

func TestHostStopsOnCancelWhileInputIdle(t *testing.T) {
	h := newHarness(t, 2)
	pr, pw := io.Pipe()
	defer pw.Close()
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() {
		errc <- NewHost(h.engine, pr, log.Discard()).Run(ctx)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("Run kept waiting for input after cancellation")
	}
}

func TestHostProcessesPipedInputUntilClosed(t *testing.T) {
	h := newHarness(t, 2)
	pr, pw := io.Pipe()

	errc := make(chan error, 1)
	go func() {
		errc <- NewHost(h.engine, pr, log.Discard()).Run(context.Background())
	}()
	w := NewWriter(pw)
	require.NoError(t, w.WriteMessage(1, ethernet(frame.Broadcast, macA)))
	require.NoError(t, pw.Close())

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the input closed")
	}
	assert.Len(t, h.emitted(t), 1)
}
