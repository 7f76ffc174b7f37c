package receiver

import (
	"bytes"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rudp/internal/config"
	"rudp/internal/protocol"
)

// memSink is a Close-able in-memory sink for tests.
type memSink struct{ buf bytes.Buffer }

func (m *memSink) Write(p []byte) (int, error) { return m.buf.Write(p) }
func (m *memSink) Close() error                { return nil }

func newTestReceiver(t *testing.T, sacking bool) (*Receiver, *memSink) {
	t.Helper()
	sink := &memSink{}
	r := New(
		WithSack(sacking),
		WithTimeout(50*time.Millisecond),
		WithSinkFactory(func(*net.UDPAddr) (io.WriteCloser, error) {
			return sink, nil
		}),
	)
	return r, sink
}

var testAddr = &net.UDPAddr{IP: net.ParseIP("203.0.113.1"), Port: 9000}

func TestOrderedDeliveryDespiteReorderedArrival(t *testing.T) {
	r, sink := newTestReceiver(t, false)

	r.HandlePacket(testAddr, protocol.EncodeChunk(protocol.KindStart, 0, []byte("AAA")))
	r.HandlePacket(testAddr, protocol.EncodeChunk(protocol.KindEnd, 2, []byte("CCC")))
	r.HandlePacket(testAddr, protocol.EncodeChunk(protocol.KindData, 1, []byte("BBB")))

	assert.Equal(t, "AAABBBCCC", sink.buf.String())
}

func TestIdempotenceUnderDuplication(t *testing.T) {
	r, sink := newTestReceiver(t, false)

	frame := protocol.EncodeChunk(protocol.KindStart, 0, []byte("AAA"))
	r.HandlePacket(testAddr, frame)
	r.HandlePacket(testAddr, frame)
	r.HandlePacket(testAddr, frame)

	assert.Equal(t, "AAA", sink.buf.String())
	assert.EqualValues(t, 2, r.Metrics().GetSnapshot().DuplicatesDropped)
}

func TestBufferBoundNeverExceedsMaxBuf(t *testing.T) {
	r, _ := newTestReceiver(t, false)

	r.HandlePacket(testAddr, protocol.EncodeChunk(protocol.KindStart, 0, []byte("A")))
	// Send every seqno from 2 up to well past the window without ever
	// sending the blocking seqno 1; out-of-window arrivals must be
	// dropped, never buffered.
	for seq := uint64(2); seq <= 20; seq++ {
		r.HandlePacket(testAddr, protocol.EncodeChunk(protocol.KindData, seq, []byte("x")))
	}

	r.connMu.Lock()
	c := r.connections[testAddr.String()]
	r.connMu.Unlock()
	require.NotNil(t, c)
	assert.LessOrEqual(t, c.BufferLen(), config.MaxBuf)
}

func TestChecksumSoundnessRejectsCorruption(t *testing.T) {
	r, sink := newTestReceiver(t, false)

	good := protocol.EncodeChunk(protocol.KindStart, 0, []byte("AAA"))
	corrupted := []byte(good)
	corrupted[1] = 'X' // flip a byte inside the prefix
	r.HandlePacket(testAddr, string(corrupted))

	assert.Empty(t, sink.buf.String())
	assert.EqualValues(t, 1, r.Metrics().GetSnapshot().ChecksumFailures)
}

func TestSackModeListsHeldSeqnosAwaitingHead(t *testing.T) {
	r, _ := newTestReceiver(t, true)

	r.HandlePacket(testAddr, protocol.EncodeChunk(protocol.KindStart, 0, []byte("A")))
	r.HandlePacket(testAddr, protocol.EncodeChunk(protocol.KindData, 3, []byte("D")))
	r.HandlePacket(testAddr, protocol.EncodeChunk(protocol.KindData, 4, []byte("E")))

	r.connMu.Lock()
	c := r.connections[testAddr.String()]
	r.connMu.Unlock()
	require.NotNil(t, c)
	assert.Equal(t, []uint64{3, 4}, c.heldSeqnosLocked())
}

func TestIdleConnectionIsReaped(t *testing.T) {
	r, _ := newTestReceiver(t, false)
	r.HandlePacket(testAddr, protocol.EncodeChunk(protocol.KindStart, 0, []byte("A")))

	r.connMu.Lock()
	_, exists := r.connections[testAddr.String()]
	r.connMu.Unlock()
	require.True(t, exists)

	time.Sleep(60 * time.Millisecond)
	r.reap()

	r.connMu.Lock()
	_, stillExists := r.connections[testAddr.String()]
	r.connMu.Unlock()
	assert.False(t, stillExists)
	assert.EqualValues(t, 1, r.Metrics().GetSnapshot().ConnectionsReaped)
}

func TestUnknownPeerDataIsDropped(t *testing.T) {
	r, sink := newTestReceiver(t, false)
	r.HandlePacket(testAddr, protocol.EncodeChunk(protocol.KindData, 1, []byte("A")))
	assert.Empty(t, sink.buf.String())

	r.connMu.Lock()
	_, exists := r.connections[testAddr.String()]
	r.connMu.Unlock()
	assert.False(t, exists)
}
