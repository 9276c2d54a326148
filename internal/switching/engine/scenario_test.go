package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/lswitch/internal/switching/clock"
	"firestige.xyz/lswitch/internal/switching/frame"
	"firestige.xyz/lswitch/internal/switching/table"
)

// Three interfaces, default capacity, a clock that ticks once per frame.
func TestThreePortSwitchSequence(t *testing.T) {
	tx := &recordingTransmitter{}
	c := clock.NewManual(0)
	e := newEngine(t, 3, table.DefaultCapacity, tx, WithClock(c))

	deliver := func(ingress int, raw []byte) Verdict {
		c.Advance(1)
		tx.reset()
		v, err := e.DeliverFrame(ingress, raw)
		require.NoError(t, err)
		return v
	}

	// A announces itself with a broadcast.
	v := deliver(1, ethernet(frame.Broadcast, macA, ""))
	assert.Equal(t, VerdictFlooded, v)
	assert.Equal(t, []int{2, 3}, tx.interfaces())
	assert.Equal(t, []table.Entry{{MAC: macA, Interface: 1, LastSeen: 1}}, e.Table().Entries())

	// B answers A directly.
	v = deliver(2, ethernet(macA, macB, ""))
	assert.Equal(t, VerdictForwarded, v)
	assert.Equal(t, []int{1}, tx.interfaces())
	assert.Equal(t, []table.Entry{
		{MAC: macA, Interface: 1, LastSeen: 1},
		{MAC: macB, Interface: 2, LastSeen: 2},
	}, e.Table().Entries())

	// A runt on interface 1 changes nothing.
	before := e.Table().Entries()
	v = deliver(1, make([]byte, 10))
	assert.Equal(t, VerdictMalformed, v)
	assert.Empty(t, tx.sent)
	assert.Equal(t, before, e.Table().Entries())

	// C is unknown, so traffic for it floods.
	v = deliver(2, ethernet(macC, macB, ""))
	assert.Equal(t, VerdictFlooded, v)
	assert.Equal(t, []int{1, 3}, tx.interfaces())
}
