// Package metrics collects runtime counters for the sender and the
// receiver: atomic counters for hot-path updates, snapshotted under a
// read lock for reporting, plus a bounded speed/connection history for
// simple rate charts.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// SpeedPoint is one sample in a throughput history.
type SpeedPoint struct {
	Timestamp time.Time
	Speed     float64 // bytes/second
}

// SenderMetrics tracks one sender-side transfer.
type SenderMetrics struct {
	BytesSent       uint64
	SegmentsSent    uint64 // first-time sends only, not retransmissions
	Retransmissions uint64
	AcksReceived    uint64
	SacksReceived   uint64

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	AverageSpeed float64
	PeakSpeed    float64

	SpeedHistory []SpeedPoint

	mu sync.RWMutex
}

// NewSenderMetrics starts a fresh counter set.
func NewSenderMetrics() *SenderMetrics {
	return &SenderMetrics{StartTime: time.Now(), SpeedHistory: make([]SpeedPoint, 0)}
}

func (m *SenderMetrics) AddBytesSent(n uint64)      { atomic.AddUint64(&m.BytesSent, n) }
func (m *SenderMetrics) AddSegmentSent()            { atomic.AddUint64(&m.SegmentsSent, 1) }
func (m *SenderMetrics) AddRetransmission()         { atomic.AddUint64(&m.Retransmissions, 1) }
func (m *SenderMetrics) AddAckReceived()            { atomic.AddUint64(&m.AcksReceived, 1) }
func (m *SenderMetrics) AddSackReceived()           { atomic.AddUint64(&m.SacksReceived, 1) }

// RecordSpeed appends a throughput sample, keeping the history bounded.
func (m *SenderMetrics) RecordSpeed(speed float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SpeedHistory = append(m.SpeedHistory, SpeedPoint{Timestamp: time.Now(), Speed: speed})
	if len(m.SpeedHistory) > 1000 {
		m.SpeedHistory = m.SpeedHistory[len(m.SpeedHistory)-1000:]
	}
	if speed > m.PeakSpeed {
		m.PeakSpeed = speed
	}
}

// Finish stamps EndTime/Duration and computes the average speed.
func (m *SenderMetrics) Finish() {
	m.EndTime = time.Now()
	m.Duration = m.EndTime.Sub(m.StartTime)
	if m.Duration > 0 {
		m.AverageSpeed = float64(atomic.LoadUint64(&m.BytesSent)) / m.Duration.Seconds()
	}
}

// GetSnapshot returns a point-in-time copy safe to read concurrently with
// further updates.
func (m *SenderMetrics) GetSnapshot() SenderMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return SenderMetrics{
		BytesSent:       atomic.LoadUint64(&m.BytesSent),
		SegmentsSent:    atomic.LoadUint64(&m.SegmentsSent),
		Retransmissions: atomic.LoadUint64(&m.Retransmissions),
		AcksReceived:    atomic.LoadUint64(&m.AcksReceived),
		SacksReceived:   atomic.LoadUint64(&m.SacksReceived),
		StartTime:       m.StartTime,
		EndTime:         m.EndTime,
		Duration:        m.Duration,
		AverageSpeed:    m.AverageSpeed,
		PeakSpeed:       m.PeakSpeed,
		SpeedHistory:    append([]SpeedPoint(nil), m.SpeedHistory...),
	}
}

// ConnectionPoint is one sample in the active-connection history.
type ConnectionPoint struct {
	Timestamp time.Time
	Count     int64
}

// ReceiverMetrics tracks the receiver process across all peer
// connections.
type ReceiverMetrics struct {
	ConnectionsTotal  uint64
	ConnectionsActive int64
	ConnectionsReaped uint64

	BytesDelivered     uint64
	SegmentsAccepted   uint64 // chunks appended to a sink
	AcksSent           uint64
	DuplicatesDropped  uint64
	OutOfWindowDropped uint64
	ChecksumFailures   uint64

	StartTime time.Time

	ConnectionHistory []ConnectionPoint

	mu sync.RWMutex
}

// NewReceiverMetrics starts a fresh counter set.
func NewReceiverMetrics() *ReceiverMetrics {
	return &ReceiverMetrics{StartTime: time.Now(), ConnectionHistory: make([]ConnectionPoint, 0)}
}

// AddConnection records a newly accepted peer connection.
func (m *ReceiverMetrics) AddConnection() {
	atomic.AddUint64(&m.ConnectionsTotal, 1)
	active := atomic.AddInt64(&m.ConnectionsActive, 1)
	m.recordConnectionCount(active)
}

// RemoveConnection records a connection reaped by the idle sweep.
func (m *ReceiverMetrics) RemoveConnection() {
	atomic.AddUint64(&m.ConnectionsReaped, 1)
	active := atomic.AddInt64(&m.ConnectionsActive, -1)
	if active < 0 {
		atomic.StoreInt64(&m.ConnectionsActive, 0)
		active = 0
	}
	m.recordConnectionCount(active)
}

func (m *ReceiverMetrics) AddBytesDelivered(n uint64)    { atomic.AddUint64(&m.BytesDelivered, n) }
func (m *ReceiverMetrics) AddSegmentAccepted()           { atomic.AddUint64(&m.SegmentsAccepted, 1) }
func (m *ReceiverMetrics) AddAckSent()                   { atomic.AddUint64(&m.AcksSent, 1) }
func (m *ReceiverMetrics) AddDuplicateDropped()          { atomic.AddUint64(&m.DuplicatesDropped, 1) }
func (m *ReceiverMetrics) AddOutOfWindowDropped()        { atomic.AddUint64(&m.OutOfWindowDropped, 1) }
func (m *ReceiverMetrics) AddChecksumFailure()           { atomic.AddUint64(&m.ChecksumFailures, 1) }

func (m *ReceiverMetrics) recordConnectionCount(count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ConnectionHistory = append(m.ConnectionHistory, ConnectionPoint{Timestamp: time.Now(), Count: count})
	if len(m.ConnectionHistory) > 1000 {
		m.ConnectionHistory = m.ConnectionHistory[len(m.ConnectionHistory)-1000:]
	}
}

// GetSnapshot returns a point-in-time copy safe to read concurrently with
// further updates.
func (m *ReceiverMetrics) GetSnapshot() ReceiverMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return ReceiverMetrics{
		ConnectionsTotal:   atomic.LoadUint64(&m.ConnectionsTotal),
		ConnectionsActive:  atomic.LoadInt64(&m.ConnectionsActive),
		ConnectionsReaped:  atomic.LoadUint64(&m.ConnectionsReaped),
		BytesDelivered:     atomic.LoadUint64(&m.BytesDelivered),
		SegmentsAccepted:   atomic.LoadUint64(&m.SegmentsAccepted),
		AcksSent:           atomic.LoadUint64(&m.AcksSent),
		DuplicatesDropped:  atomic.LoadUint64(&m.DuplicatesDropped),
		OutOfWindowDropped: atomic.LoadUint64(&m.OutOfWindowDropped),
		ChecksumFailures:   atomic.LoadUint64(&m.ChecksumFailures),
		StartTime:          m.StartTime,
		ConnectionHistory:  append([]ConnectionPoint(nil), m.ConnectionHistory...),
	}
}

// PerformanceMonitor periodically turns a SenderMetrics' byte counter
// into a speed sample.
type PerformanceMonitor struct {
	metrics        *SenderMetrics
	lastUpdate     time.Time
	lastBytes      uint64
	updateInterval time.Duration
}

// NewPerformanceMonitor wraps metrics with a 100ms sampling interval.
func NewPerformanceMonitor(metrics *SenderMetrics) *PerformanceMonitor {
	return &PerformanceMonitor{metrics: metrics, lastUpdate: time.Now(), updateInterval: 100 * time.Millisecond}
}

// Update samples the current byte count and, if enough time has passed,
// records a new speed point.
func (pm *PerformanceMonitor) Update() {
	now := time.Now()
	if now.Sub(pm.lastUpdate) < pm.updateInterval {
		return
	}
	currentBytes := atomic.LoadUint64(&pm.metrics.BytesSent)
	elapsed := now.Sub(pm.lastUpdate).Seconds()
	if elapsed > 0 {
		pm.metrics.RecordSpeed(float64(currentBytes-pm.lastBytes) / elapsed)
	}
	pm.lastBytes = currentBytes
	pm.lastUpdate = now
}
