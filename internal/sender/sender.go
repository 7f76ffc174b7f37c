// Package sender implements the sliding-window sender half of the RUDP
// file-transfer protocol: packetisation, window transmission, RTO-driven
// retransmission, and cumulative/selective ack processing.
package sender

import (
	"fmt"
	"net"
	"time"

	"rudp/internal/config"
	"rudp/internal/logger"
	"rudp/internal/metrics"
	"rudp/internal/protocol"
)

// Sender holds one transfer's packetised payload, window, and
// per-packet state. It is an explicit value threaded by the caller
// (cmd/sender's main), never a package-level singleton.
type Sender struct {
	frames []string
	state  []packetState
	base   uint64
	window uint64
	rto    time.Duration

	sackMode bool
	drop     *DropPolicy

	metrics *metrics.SenderMetrics
	log     *logger.Logger
}

// Option configures a Sender at construction time.
type Option func(*Sender)

// WithSack enables selective-ack processing of sack replies.
func WithSack(enabled bool) Option {
	return func(s *Sender) { s.sackMode = enabled }
}

// WithDropPolicy attaches a local outbound loss simulator.
func WithDropPolicy(d *DropPolicy) Option {
	return func(s *Sender) { s.drop = d }
}

// WithMetrics attaches a counter set; callers that don't care about
// metrics may omit this option, in which case counts are kept locally
// and discarded.
func WithMetrics(m *metrics.SenderMetrics) Option {
	return func(s *Sender) { s.metrics = m }
}

// WithLogger attaches a logger; a nil logger keeps the sender silent.
func WithLogger(l *logger.Logger) Option {
	return func(s *Sender) { s.log = l }
}

// New builds a Sender over the already-packetised frames produced by
// BuildFrames.
func New(frames []string, opts ...Option) *Sender {
	s := &Sender{
		frames: frames,
		state:  make([]packetState, len(frames)),
		window: config.Window,
		rto:    config.RTO,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.NewSenderMetrics()
	}
	return s
}

// Metrics returns the sender's counter set.
func (s *Sender) Metrics() *metrics.SenderMetrics { return s.metrics }

// Base returns the current window left edge (lowest un-cumulatively-
// acked index). Exported for tests asserting ack monotonicity.
func (s *Sender) Base() uint64 { return s.base }

// Done reports whether every packet has been cumulatively acked.
func (s *Sender) Done() bool { return s.base >= uint64(len(s.frames)) }

// conn is the minimal surface Run needs from a dialed UDP socket.
type conn interface {
	Write(b []byte) (int, error)
	Read(b []byte) (int, error)
	SetReadDeadline(t time.Time) error
}

// Run drives the send loop to completion: transmit the window, await
// one reply bounded by RTO, process it or retransmit on timeout. It
// returns once every packet has been cumulatively acked.
func (s *Sender) Run(c net.Conn) error {
	return s.run(c)
}

func (s *Sender) run(c conn) error {
	buf := make([]byte, config.MaxDatagramSize)
	for !s.Done() {
		s.transmitWindow(c)

		if err := c.SetReadDeadline(time.Now().Add(s.rto)); err != nil {
			return err
		}
		n, err := c.Read(buf)
		if err != nil {
			// Timeout (or any other transient read error): the window
			// is retransmitted on the next loop iteration.
			continue
		}
		s.handleReply(string(buf[:n]))
	}
	s.metrics.Finish()
	return nil
}

func (s *Sender) transmitWindow(c conn) {
	end := s.base + s.window
	if end > uint64(len(s.frames)) {
		end = uint64(len(s.frames))
	}
	for i := s.base; i < end; i++ {
		switch s.state[i] {
		case sackAcked, delivered:
			continue
		}
		if s.drop != nil && s.drop.ShouldDrop(i) {
			if s.log != nil {
				s.log.Debug("simulated drop seq=%d", i)
			}
			s.state[i] = inFlight
			continue
		}
		wasSent := s.state[i] == inFlight
		if _, err := c.Write([]byte(s.frames[i])); err != nil {
			if s.log != nil {
				s.log.Warn("send seq=%d failed: %v", i, err)
			}
			continue
		}
		if wasSent {
			s.metrics.AddRetransmission()
		} else {
			s.metrics.AddSegmentSent()
		}
		s.metrics.AddBytesSent(uint64(len(s.frames[i])))
		s.state[i] = inFlight
	}
}

func (s *Sender) handleReply(raw string) {
	frame, err := protocol.Decode(raw)
	if err != nil {
		if s.log != nil {
			s.log.Debug("dropping malformed reply: %v", err)
		}
		return
	}

	switch frame.Kind {
	case protocol.KindAck:
		s.metrics.AddAckReceived()
		s.advanceBase(frame.NextExpected)
	case protocol.KindSack:
		if !s.sackMode {
			return
		}
		s.metrics.AddSackReceived()
		s.advanceBase(frame.NextExpected)
		for _, seq := range frame.Held {
			if seq < uint64(len(s.state)) && s.state[seq] != delivered {
				s.state[seq] = sackAcked
			}
		}
	default:
		// Anything else addressed to a sender (start/data/end) is ignored.
	}
}

func (s *Sender) advanceBase(nextExpected uint64) {
	if nextExpected <= s.base {
		return
	}
	limit := nextExpected
	if limit > uint64(len(s.state)) {
		limit = uint64(len(s.state))
	}
	for i := s.base; i < limit; i++ {
		s.state[i] = delivered
	}
	s.base = nextExpected
	if s.log != nil {
		s.log.Debug("New base: %d", s.base)
	}
}

// String renders a compact summary, useful in tests and debug logs.
func (s *Sender) String() string {
	return fmt.Sprintf("sender{base=%d/%d}", s.base, len(s.frames))
}
