// Package receiver implements the buffering, reassembling half of the
// RUDP file-transfer protocol: one Connection per peer address, an
// event loop dispatching inbound datagrams to connections, and an idle
// reaper that closes and forgets connections that go quiet.
package receiver

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"rudp/internal/config"
	"rudp/internal/logger"
	"rudp/internal/metrics"
	"rudp/internal/protocol"
)

// SinkFactory opens the append-only byte sink for a newly accepted peer.
// The default factory opens "<host>.<port>" under the receiver's base
// directory; tests substitute an in-memory factory.
type SinkFactory func(addr *net.UDPAddr) (io.WriteCloser, error)

// Receiver is the event loop and connection table for one listening UDP
// endpoint. It is an explicit value owned by its caller (cmd/receiver's
// main); nothing in this package is package-level state, so a process
// can run more than one Receiver concurrently.
type Receiver struct {
	connMu      sync.Mutex
	connections map[string]*Connection

	sackMode    bool
	timeout     time.Duration
	sinkFactory SinkFactory

	metrics *metrics.ReceiverMetrics
	log     *logger.Logger

	conn        *net.UDPConn
	running     atomic.Bool
	lastCleanup time.Time
}

// Option configures a Receiver at construction time.
type Option func(*Receiver)

// WithSack enables selective-ack replies.
func WithSack(enabled bool) Option {
	return func(r *Receiver) { r.sackMode = enabled }
}

// WithTimeout overrides the idle-connection timeout (also the reaper's
// sweep interval and the socket read deadline).
func WithTimeout(d time.Duration) Option {
	return func(r *Receiver) { r.timeout = d }
}

// WithBaseDir sets the directory the default sink factory writes
// "<host>.<port>" files into.
func WithBaseDir(dir string) Option {
	return func(r *Receiver) { r.sinkFactory = fileSinkFactory(dir) }
}

// WithSinkFactory overrides how per-connection sinks are opened.
func WithSinkFactory(f SinkFactory) Option {
	return func(r *Receiver) { r.sinkFactory = f }
}

// WithMetrics attaches a counter set.
func WithMetrics(m *metrics.ReceiverMetrics) Option {
	return func(r *Receiver) { r.metrics = m }
}

// WithLogger attaches a logger.
func WithLogger(l *logger.Logger) Option {
	return func(r *Receiver) { r.log = l }
}

// New builds a Receiver with the given options. Call ListenAndServe to
// bind a socket and start the event loop.
func New(opts ...Option) *Receiver {
	r := &Receiver{
		connections: make(map[string]*Connection),
		timeout:     config.DefaultTimeout,
		sinkFactory: fileSinkFactory("."),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = metrics.NewReceiverMetrics()
	}
	return r
}

// Metrics returns the receiver's counter set.
func (r *Receiver) Metrics() *metrics.ReceiverMetrics { return r.metrics }

func fileSinkFactory(dir string) SinkFactory {
	return func(addr *net.UDPAddr) (io.WriteCloser, error) {
		name := fmt.Sprintf("%s.%d", addr.IP.String(), addr.Port)
		return os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	}
}

// ListenAndServe binds a UDP socket on host:port and runs the event loop
// until Close is called. It blocks; callers typically run it in its own
// goroutine.
func (r *Receiver) ListenAndServe(host string, port int) error {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return err
	}
	_ = conn.SetReadBuffer(config.DefaultReadBuffer)
	_ = conn.SetWriteBuffer(config.DefaultWriteBuffer)
	r.conn = conn
	return r.serve(conn)
}

func (r *Receiver) serve(conn *net.UDPConn) error {
	r.running.Store(true)
	r.lastCleanup = time.Now()
	buf := make([]byte, config.MaxDatagramSize)
	for r.running.Load() {
		_ = conn.SetReadDeadline(time.Now().Add(r.timeout))
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			r.reap()
			continue
		}
		r.HandlePacket(addr, string(buf[:n]))
		if time.Since(r.lastCleanup) > r.timeout {
			r.reap()
		}
	}
	return nil
}

// HandlePacket processes one inbound datagram already read from the
// socket. Exported so tests can drive the receiver without a live
// socket.
func (r *Receiver) HandlePacket(addr *net.UDPAddr, raw string) {
	if !protocol.ValidateChecksum(raw) {
		r.metrics.AddChecksumFailure()
		if r.log != nil {
			r.log.Debug("drop checksum mismatch peer=%s", addr)
		}
		return
	}
	frame, err := protocol.Decode(raw)
	if err != nil {
		if r.log != nil {
			r.log.Debug("drop malformed frame peer=%s: %v", addr, err)
		}
		return
	}

	peer := addr.String()
	switch frame.Kind {
	case protocol.KindStart:
		r.acceptAndReply(r.connectionFor(addr, peer, frame.Seqno), addr, frame)
	case protocol.KindData, protocol.KindEnd:
		r.connMu.Lock()
		c, exists := r.connections[peer]
		r.connMu.Unlock()
		if !exists {
			if r.log != nil {
				r.log.Debug("drop %s for unknown peer=%s", frame.Kind, peer)
			}
			return
		}
		r.acceptAndReply(c, addr, frame)
	case protocol.KindAck, protocol.KindSack:
		// The receiver is not itself a sender; replies addressed to a
		// sender role are ignored rather than erroring.
	default:
		if r.log != nil {
			r.log.Debug("drop unknown kind=%q peer=%s", frame.Kind, peer)
		}
	}
}

// connectionFor returns the existing connection for peer, or creates one
// from a start packet's seqno. A re-delivered start for an existing
// connection never resets its state.
func (r *Receiver) connectionFor(addr *net.UDPAddr, peer string, startSeq uint64) *Connection {
	r.connMu.Lock()
	defer r.connMu.Unlock()

	if c, exists := r.connections[peer]; exists {
		return c
	}
	sink, err := r.sinkFactory(addr)
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to open sink for peer=%s: %v", peer, err)
		}
		// A placeholder discarding connection keeps the protocol state
		// machine uniform even though nothing will ever be written.
		sink = discardSink{}
	}
	c := newConnection(startSeq, sink)
	r.connections[peer] = c
	r.metrics.AddConnection()
	if r.log != nil {
		r.log.Info("new connection id=%s peer=%s", c.ID, peer)
	}
	return c
}

func (r *Receiver) acceptAndReply(c *Connection, addr *net.UDPAddr, frame protocol.Frame) {
	ack, deliverable, outcome := c.Accept(frame.Seqno, frame.Payload, r.sackMode)

	switch outcome {
	case AcceptDuplicate:
		r.metrics.AddDuplicateDropped()
	case AcceptOutOfWindow:
		r.metrics.AddOutOfWindowDropped()
	}

	for _, chunk := range deliverable {
		if _, err := c.sink.Write(chunk); err != nil {
			if r.log != nil {
				r.log.Error("sink write failed peer=%s: %v", addr, err)
			}
			continue
		}
		if syncer, ok := c.sink.(interface{ Sync() error }); ok {
			_ = syncer.Sync()
		}
		r.metrics.AddBytesDelivered(uint64(len(chunk)))
		r.metrics.AddSegmentAccepted()
	}

	if r.conn != nil {
		if _, err := r.conn.WriteToUDP([]byte(ack), addr); err != nil && r.log != nil {
			r.log.Warn("ack send failed peer=%s: %v", addr, err)
		}
	}
	r.metrics.AddAckSent()
}

// reap closes and forgets every connection idle for longer than timeout.
// It holds the connection-map lock across the idle check, the sink
// close, and the delete so a connection can never be reaped twice.
func (r *Receiver) reap() {
	now := time.Now()
	r.connMu.Lock()
	defer r.connMu.Unlock()
	for peer, c := range r.connections {
		if c.IdleSince(now) <= r.timeout {
			continue
		}
		_ = c.Close()
		delete(r.connections, peer)
		r.metrics.RemoveConnection()
		if r.log != nil {
			r.log.Info("reaped idle connection id=%s peer=%s", c.ID, peer)
		}
	}
	r.lastCleanup = now
}

// Close stops the event loop, closes every open sink, and closes the
// listening socket.
func (r *Receiver) Close() error {
	r.running.Store(false)
	r.connMu.Lock()
	for peer, c := range r.connections {
		_ = c.Close()
		delete(r.connections, peer)
	}
	r.connMu.Unlock()
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

// discardSink is used when a sink fails to open, so the rest of the
// state machine can proceed uniformly instead of special-casing a nil
// writer.
type discardSink struct{}

func (discardSink) Write(p []byte) (int, error) { return len(p), nil }
func (discardSink) Close() error                { return nil }
