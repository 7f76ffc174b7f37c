package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSenderMetricsSnapshotIsolated(t *testing.T) {
	m := NewSenderMetrics()
	m.AddBytesSent(500)
	m.AddSegmentSent()
	m.AddAckReceived()

	snap := m.GetSnapshot()
	assert.Equal(t, uint64(500), snap.BytesSent)
	assert.Equal(t, uint64(1), snap.SegmentsSent)
	assert.Equal(t, uint64(1), snap.AcksReceived)

	m.AddBytesSent(500)
	assert.Equal(t, uint64(500), snap.BytesSent, "snapshot must not see later updates")
}

func TestSenderMetricsFinishComputesAverageSpeed(t *testing.T) {
	m := NewSenderMetrics()
	m.AddBytesSent(1000)
	m.StartTime = m.StartTime.Add(-1e9) // pretend one second elapsed
	m.Finish()
	assert.Greater(t, m.AverageSpeed, 0.0)
}

func TestReceiverMetricsConnectionLifecycle(t *testing.T) {
	m := NewReceiverMetrics()
	m.AddConnection()
	m.AddConnection()
	assert.EqualValues(t, 2, m.GetSnapshot().ConnectionsActive)
	assert.EqualValues(t, 2, m.GetSnapshot().ConnectionsTotal)

	m.RemoveConnection()
	snap := m.GetSnapshot()
	assert.EqualValues(t, 1, snap.ConnectionsActive)
	assert.EqualValues(t, 1, snap.ConnectionsReaped)
}

func TestReceiverMetricsActiveNeverGoesNegative(t *testing.T) {
	m := NewReceiverMetrics()
	m.RemoveConnection()
	assert.EqualValues(t, 0, m.GetSnapshot().ConnectionsActive)
}

func TestReceiverMetricsCounters(t *testing.T) {
	m := NewReceiverMetrics()
	m.AddBytesDelivered(500)
	m.AddSegmentAccepted()
	m.AddDuplicateDropped()
	m.AddOutOfWindowDropped()
	m.AddChecksumFailure()
	m.AddAckSent()

	snap := m.GetSnapshot()
	assert.EqualValues(t, 500, snap.BytesDelivered)
	assert.EqualValues(t, 1, snap.SegmentsAccepted)
	assert.EqualValues(t, 1, snap.DuplicatesDropped)
	assert.EqualValues(t, 1, snap.OutOfWindowDropped)
	assert.EqualValues(t, 1, snap.ChecksumFailures)
	assert.EqualValues(t, 1, snap.AcksSent)
}
