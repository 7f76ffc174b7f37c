package receiver

import (
	"io"
	"sort"
	"sync"
	"time"

	"github.com/rs/xid"

	"rudp/internal/config"
	"rudp/internal/protocol"
)

// AcceptOutcome classifies what accept() did with an inbound seqno, for
// the receiver core's duplicate/out-of-window metrics.
type AcceptOutcome int

const (
	AcceptStored AcceptOutcome = iota
	AcceptDuplicate
	AcceptOutOfWindow
)

// Connection is the receiver's per-peer reassembly state: the bounded
// out-of-order buffer, the next-expected sequence number, an append-only
// sink, and the last-activity timestamp the reaper checks.
type Connection struct {
	mu sync.Mutex

	ID xid.ID

	// currentSeqno is signed so the start packet's seqno-1 initialisation
	// (seqno 0 -> -1) never underflows.
	currentSeqno int64
	buffer       map[uint64][]byte
	sink         io.WriteCloser
	updated      time.Time
}

// newConnection creates a Connection initialised by a start packet's
// seqno, per spec: current_seqno := seqno - 1, so seqno itself is the
// first expected chunk.
func newConnection(startSeq uint64, sink io.WriteCloser) *Connection {
	return &Connection{
		ID:           xid.New(),
		currentSeqno: int64(startSeq) - 1,
		buffer:       make(map[uint64][]byte),
		sink:         sink,
		updated:      time.Now(),
	}
}

// Accept folds one inbound chunk into the connection's state and
// returns the ack/sack frame to send back plus any now-deliverable
// payloads, in order, ready to be written to the sink.
func (c *Connection) Accept(seqno uint64, payload []byte, sackMode bool) (ackFrame string, deliverable [][]byte, outcome AcceptOutcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case int64(seqno) <= c.currentSeqno:
		outcome = AcceptDuplicate
	case int64(seqno) > c.currentSeqno+int64(config.MaxBuf):
		outcome = AcceptOutOfWindow
	default:
		if _, exists := c.buffer[seqno]; exists {
			outcome = AcceptDuplicate
		} else {
			outcome = AcceptStored
			c.buffer[seqno] = payload
		}
	}

	for {
		next := uint64(c.currentSeqno + 1)
		chunk, ok := c.buffer[next]
		if !ok {
			break
		}
		delete(c.buffer, next)
		deliverable = append(deliverable, chunk)
		c.currentSeqno++
	}
	c.updated = time.Now()

	nextExpected := uint64(c.currentSeqno + 1)
	if sackMode {
		ackFrame = protocol.EncodeSack(nextExpected, c.heldSeqnosLocked())
	} else {
		ackFrame = protocol.EncodeAck(nextExpected)
	}
	return ackFrame, deliverable, outcome
}

// Touch refreshes the activity timestamp without accepting a chunk.
func (c *Connection) Touch() {
	c.mu.Lock()
	c.updated = time.Now()
	c.mu.Unlock()
}

// IdleSince reports how long it has been since the connection last saw a
// valid packet.
func (c *Connection) IdleSince(now time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return now.Sub(c.updated)
}

// BufferLen reports the current out-of-order buffer depth; exported for
// the buffer-bound property test.
func (c *Connection) BufferLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffer)
}

func (c *Connection) heldSeqnosLocked() []uint64 {
	if len(c.buffer) == 0 {
		return nil
	}
	held := make([]uint64, 0, len(c.buffer))
	for seq := range c.buffer {
		held = append(held, seq)
	}
	sort.Slice(held, func(i, j int) bool { return held[i] < held[j] })
	return held
}

// Close closes the underlying sink. It does not guard against repeated
// calls; the receiver calls it once per connection, while removing the
// connection from its map under connMu.
func (c *Connection) Close() error {
	return c.sink.Close()
}
