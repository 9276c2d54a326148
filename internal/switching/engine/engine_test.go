package engine

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"firestige.xyz/lswitch/internal/log"
	"firestige.xyz/lswitch/internal/switching/clock"
	"firestige.xyz/lswitch/internal/switching/frame"
	"firestige.xyz/lswitch/internal/switching/iface"
	"firestige.xyz/lswitch/internal/switching/table"
)

var (
	macA = frame.MAC{0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa}
	macB = frame.MAC{0xbb, 0xbb, 0xbb, 0xbb, 0xbb, 0xbb}
	macC = frame.MAC{0xcc, 0xcc, 0xcc, 0xcc, 0xcc, 0xcc}
)

type emission struct {
	ifc int
	raw []byte
}

type recordingTransmitter struct {
	sent []emission
}

func (r *recordingTransmitter) Transmit(ifc int, raw []byte) error {
	r.sent = append(r.sent, emission{ifc: ifc, raw: raw})
	return nil
}

func (r *recordingTransmitter) interfaces() []int {
	out := make([]int, 0, len(r.sent))
	for _, e := range r.sent {
		out = append(out, e.ifc)
	}
	return out
}

func (r *recordingTransmitter) reset() {
	r.sent = nil
}

type mockTransmitter struct {
	mock.Mock
}

func (m *mockTransmitter) Transmit(ifc int, raw []byte) error {
	args := m.Called(ifc, raw)
	return args.Error(0)
}

type countingRecorder struct {
	frames    map[string]int
	emissions int
	learns    map[string]int
	entries   int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{frames: map[string]int{}, learns: map[string]int{}}
}

func (c *countingRecorder) ObserveFrame(v string) { c.frames[v]++ }
func (c *countingRecorder) ObserveEmission(int)   { c.emissions++ }
func (c *countingRecorder) ObserveLearn(a string, n int) {
	c.learns[a]++
	c.entries = n
}

func ethernet(dst, src frame.MAC, payload string) []byte {
	raw := make([]byte, 0, frame.HeaderLen+len(payload))
	raw = append(raw, dst[:]...)
	raw = append(raw, src[:]...)
	raw = append(raw, 0x08, 0x00)
	return append(raw, payload...)
}

func newEngine(t *testing.T, ifcs, capacity int, tx Transmitter, opts ...Option) *Engine {
	t.Helper()
	reg, err := iface.Configure(ifcs)
	require.NoError(t, err)
	tbl, err := table.New(capacity)
	require.NoError(t, err)
	opts = append([]Option{WithLogger(log.Discard())}, opts...)
	return New(reg, tbl, tx, opts...)
}

func TestBroadcastFloods(t *testing.T) {
	tx := &recordingTransmitter{}
	e := newEngine(t, 3, table.DefaultCapacity, tx)
	raw := ethernet(frame.Broadcast, macA, "who-has")

	v, err := e.OnFrame(1, raw, 1)
	require.NoError(t, err)

	assert.Equal(t, VerdictFlooded, v)
	assert.Equal(t, []int{2, 3}, tx.interfaces())
	for _, s := range tx.sent {
		assert.Equal(t, raw, s.raw)
	}
	ifc, ok := e.Table().Lookup(macA)
	require.True(t, ok)
	assert.Equal(t, 1, ifc)
}

func TestBroadcastNeverReturnsToIngress(t *testing.T) {
	for n := 1; n <= 5; n++ {
		for k := 1; k <= n; k++ {
			tx := &recordingTransmitter{}
			e := newEngine(t, n, table.DefaultCapacity, tx)

			_, err := e.OnFrame(k, ethernet(frame.Broadcast, macA, ""), 1)
			require.NoError(t, err)

			assert.Len(t, tx.sent, n-1)
			assert.NotContains(t, tx.interfaces(), k)
		}
	}
}

func TestUnicastToLearnedStation(t *testing.T) {
	tx := &recordingTransmitter{}
	e := newEngine(t, 3, table.DefaultCapacity, tx)

	_, err := e.OnFrame(1, ethernet(frame.Broadcast, macA, ""), 1)
	require.NoError(t, err)
	tx.reset()

	raw := ethernet(macA, macB, "reply")
	v, err := e.OnFrame(2, raw, 2)
	require.NoError(t, err)

	assert.Equal(t, VerdictForwarded, v)
	require.Equal(t, []int{1}, tx.interfaces())
	assert.Equal(t, raw, tx.sent[0].raw)

	ifc, ok := e.Table().Lookup(macB)
	require.True(t, ok)
	assert.Equal(t, 2, ifc)
}

func TestUnicastAfterDirectLearn(t *testing.T) {
	tx := &recordingTransmitter{}
	e := newEngine(t, 3, table.DefaultCapacity, tx)
	e.Table().Learn(macA, 1, 1)
	e.Table().Learn(macB, 2, 2)

	_, err := e.OnFrame(2, ethernet(macA, macB, ""), 3)
	require.NoError(t, err)

	assert.Equal(t, []int{1}, tx.interfaces())
}

func TestUnknownUnicastFloodsLikeBroadcast(t *testing.T) {
	bcast := &recordingTransmitter{}
	unknown := &recordingTransmitter{}

	_, err := newEngine(t, 4, table.DefaultCapacity, bcast).OnFrame(3, ethernet(frame.Broadcast, macA, ""), 1)
	require.NoError(t, err)
	v, err := newEngine(t, 4, table.DefaultCapacity, unknown).OnFrame(3, ethernet(macC, macA, ""), 1)
	require.NoError(t, err)

	assert.Equal(t, VerdictFlooded, v)
	assert.Equal(t, bcast.interfaces(), unknown.interfaces())
}

func TestDestinationOnIngressIsFiltered(t *testing.T) {
	tx := &recordingTransmitter{}
	e := newEngine(t, 3, table.DefaultCapacity, tx)

	_, err := e.OnFrame(2, ethernet(frame.Broadcast, macA, ""), 1)
	require.NoError(t, err)
	tx.reset()

	v, err := e.OnFrame(2, ethernet(macA, macB, ""), 2)
	require.NoError(t, err)

	assert.Equal(t, VerdictFiltered, v)
	assert.Empty(t, tx.sent)
	ifc, _ := e.Table().Lookup(macB)
	assert.Equal(t, 2, ifc, "the source is still learned")
}

func TestMalformedFrameIsDropped(t *testing.T) {
	tx := &mockTransmitter{}
	rec := newCountingRecorder()
	e := newEngine(t, 3, table.DefaultCapacity, tx, WithRecorder(rec))

	v, err := e.OnFrame(1, make([]byte, 10), 1)
	require.NoError(t, err)

	assert.Equal(t, VerdictMalformed, v)
	assert.Zero(t, e.Table().Len())
	assert.Equal(t, 1, rec.frames["malformed"])
	assert.Empty(t, rec.learns)
	tx.AssertNotCalled(t, "Transmit", mock.Anything, mock.Anything)
}

func TestMalformedFrameIsLogged(t *testing.T) {
	var buf bytes.Buffer
	l, err := log.NewWithWriter(&log.LoggerConfig{Level: "info", Pattern: "%msg %field%n"}, &buf)
	require.NoError(t, err)
	e := newEngine(t, 3, table.DefaultCapacity, &recordingTransmitter{}, WithLogger(l))

	_, err = e.OnFrame(1, make([]byte, 10), 1)
	require.NoError(t, err)

	assert.Equal(t, "Malformed frame ifc=1,len=10\n", buf.String())
}

func TestInvalidIngressIsRejected(t *testing.T) {
	tx := &mockTransmitter{}
	e := newEngine(t, 3, table.DefaultCapacity, tx)

	for _, ingress := range []int{0, 4} {
		v, err := e.OnFrame(ingress, ethernet(frame.Broadcast, macA, ""), 1)
		assert.True(t, errors.Is(err, iface.ErrInvalidInterface))
		assert.Equal(t, VerdictNone, v)
	}
	assert.Zero(t, e.Table().Len())
	tx.AssertNotCalled(t, "Transmit", mock.Anything, mock.Anything)
}

func TestTransmitErrorStopsFlood(t *testing.T) {
	tx := &mockTransmitter{}
	raw := ethernet(frame.Broadcast, macA, "")
	broken := errors.New("broken pipe")
	tx.On("Transmit", 2, raw).Return(broken).Once()

	e := newEngine(t, 3, table.DefaultCapacity, tx)
	_, err := e.OnFrame(1, raw, 1)

	assert.True(t, errors.Is(err, broken))
	tx.AssertExpectations(t)
	tx.AssertNotCalled(t, "Transmit", 3, mock.Anything)
}

func TestStationMove(t *testing.T) {
	tx := &recordingTransmitter{}
	rec := newCountingRecorder()
	e := newEngine(t, 3, table.DefaultCapacity, tx, WithRecorder(rec))

	_, err := e.OnFrame(1, ethernet(frame.Broadcast, macA, ""), 1)
	require.NoError(t, err)
	_, err = e.OnFrame(3, ethernet(frame.Broadcast, macA, ""), 2)
	require.NoError(t, err)
	tx.reset()

	_, err = e.OnFrame(2, ethernet(macA, macB, ""), 3)
	require.NoError(t, err)

	assert.Equal(t, []int{3}, tx.interfaces())
	assert.Equal(t, 1, rec.learns["moved"])
	assert.Equal(t, 2, rec.entries)
}

func TestRecorderCountsVerdictsAndEmissions(t *testing.T) {
	rec := newCountingRecorder()
	e := newEngine(t, 3, table.DefaultCapacity, &recordingTransmitter{}, WithRecorder(rec))

	_, _ = e.OnFrame(1, ethernet(frame.Broadcast, macA, ""), 1)
	_, _ = e.OnFrame(2, ethernet(macA, macB, ""), 2)

	assert.Equal(t, 1, rec.frames["flooded"])
	assert.Equal(t, 1, rec.frames["forwarded"])
	assert.Equal(t, 3, rec.emissions)
}

func TestEvictionThroughEngine(t *testing.T) {
	e := newEngine(t, 3, 2, &recordingTransmitter{})
	m1 := frame.MAC{2, 0, 0, 0, 0, 1}
	m2 := frame.MAC{2, 0, 0, 0, 0, 2}
	m3 := frame.MAC{2, 0, 0, 0, 0, 3}

	for i, m := range []frame.MAC{m1, m2, m3} {
		_, err := e.OnFrame(i+1, ethernet(frame.Broadcast, m, ""), time.Duration(i+1))
		require.NoError(t, err)
	}

	assert.Equal(t, []table.Entry{
		{MAC: m2, Interface: 2, LastSeen: 2},
		{MAC: m3, Interface: 3, LastSeen: 3},
	}, e.Table().Entries())
}

func TestDeliverFrameUsesClock(t *testing.T) {
	c := clock.NewManual(41)
	e := newEngine(t, 2, table.DefaultCapacity, &recordingTransmitter{}, WithClock(c))
	c.Advance(1)

	_, err := e.DeliverFrame(1, ethernet(frame.Broadcast, macA, ""))
	require.NoError(t, err)

	assert.Equal(t, time.Duration(42), e.Table().Entries()[0].LastSeen)
}

func TestAnnounceMAC(t *testing.T) {
	e := newEngine(t, 2, table.DefaultCapacity, &recordingTransmitter{})

	require.NoError(t, e.AnnounceMAC(2, macC))
	ifc, err := e.Registry().Get(2)
	require.NoError(t, err)
	assert.Equal(t, macC, ifc.MAC)

	assert.True(t, errors.Is(e.AnnounceMAC(3, macC), iface.ErrInvalidInterface))
}

func TestDeliverControlIsLoggedOnly(t *testing.T) {
	var buf bytes.Buffer
	l, err := log.NewWithWriter(&log.LoggerConfig{Pattern: "%msg%n"}, &buf)
	require.NoError(t, err)
	tx := &mockTransmitter{}
	e := newEngine(t, 2, table.DefaultCapacity, tx, WithLogger(l))

	e.DeliverControl("show mac\n")

	assert.Equal(t, "Received command `show mac' (ignored)\n", buf.String())
	assert.Zero(t, e.Table().Len())
	tx.AssertNotCalled(t, "Transmit", mock.Anything, mock.Anything)
}

func TestTransmitterFunc(t *testing.T) {
	var got int
	tx := TransmitterFunc(func(ifc int, raw []byte) error {
		got = ifc
		return nil
	})
	require.NoError(t, tx.Transmit(7, nil))
	assert.Equal(t, 7, got)
}
