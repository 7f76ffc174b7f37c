package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ReceiverCollector exposes a ReceiverMetrics snapshot to Prometheus. It
// is a custom prometheus.Collector rather than a set of prometheus.Gauge
// values because the snapshot is produced by its own atomic counters,
// not by a registry the collector owns.
type ReceiverCollector struct {
	metrics *ReceiverMetrics

	connectionsTotal  *prometheus.Desc
	connectionsActive *prometheus.Desc
	connectionsReaped *prometheus.Desc
	bytesDelivered    *prometheus.Desc
	segmentsAccepted  *prometheus.Desc
	acksSent          *prometheus.Desc
	duplicatesDropped *prometheus.Desc
	outOfWindow       *prometheus.Desc
	checksumFailures  *prometheus.Desc
}

// NewReceiverCollector wraps metrics for registration with a
// prometheus.Registry.
func NewReceiverCollector(metrics *ReceiverMetrics) *ReceiverCollector {
	ns := "rudp_receiver"
	return &ReceiverCollector{
		metrics:           metrics,
		connectionsTotal:  prometheus.NewDesc(ns+"_connections_total", "Connections accepted since start.", nil, nil),
		connectionsActive: prometheus.NewDesc(ns+"_connections_active", "Connections currently tracked.", nil, nil),
		connectionsReaped: prometheus.NewDesc(ns+"_connections_reaped_total", "Connections removed by the idle reaper.", nil, nil),
		bytesDelivered:    prometheus.NewDesc(ns+"_bytes_delivered_total", "Payload bytes written to a sink.", nil, nil),
		segmentsAccepted:  prometheus.NewDesc(ns+"_segments_accepted_total", "In-order chunks delivered to a sink.", nil, nil),
		acksSent:          prometheus.NewDesc(ns+"_acks_sent_total", "ACK/SACK frames sent.", nil, nil),
		duplicatesDropped: prometheus.NewDesc(ns+"_duplicates_dropped_total", "Chunks dropped as already-delivered or already-buffered duplicates.", nil, nil),
		outOfWindow:       prometheus.NewDesc(ns+"_out_of_window_dropped_total", "Chunks dropped for falling outside the buffer window.", nil, nil),
		checksumFailures:  prometheus.NewDesc(ns+"_checksum_failures_total", "Frames rejected by the checksum check, including frames without a parseable checksum field.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *ReceiverCollector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.connectionsTotal
	descs <- c.connectionsActive
	descs <- c.connectionsReaped
	descs <- c.bytesDelivered
	descs <- c.segmentsAccepted
	descs <- c.acksSent
	descs <- c.duplicatesDropped
	descs <- c.outOfWindow
	descs <- c.checksumFailures
}

// Collect implements prometheus.Collector.
func (c *ReceiverCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.metrics.GetSnapshot()
	ch <- prometheus.MustNewConstMetric(c.connectionsTotal, prometheus.CounterValue, float64(snap.ConnectionsTotal))
	ch <- prometheus.MustNewConstMetric(c.connectionsActive, prometheus.GaugeValue, float64(snap.ConnectionsActive))
	ch <- prometheus.MustNewConstMetric(c.connectionsReaped, prometheus.CounterValue, float64(snap.ConnectionsReaped))
	ch <- prometheus.MustNewConstMetric(c.bytesDelivered, prometheus.CounterValue, float64(snap.BytesDelivered))
	ch <- prometheus.MustNewConstMetric(c.segmentsAccepted, prometheus.CounterValue, float64(snap.SegmentsAccepted))
	ch <- prometheus.MustNewConstMetric(c.acksSent, prometheus.CounterValue, float64(snap.AcksSent))
	ch <- prometheus.MustNewConstMetric(c.duplicatesDropped, prometheus.CounterValue, float64(snap.DuplicatesDropped))
	ch <- prometheus.MustNewConstMetric(c.outOfWindow, prometheus.CounterValue, float64(snap.OutOfWindowDropped))
	ch <- prometheus.MustNewConstMetric(c.checksumFailures, prometheus.CounterValue, float64(snap.ChecksumFailures))
}

// SenderCollector exposes a SenderMetrics snapshot to Prometheus.
type SenderCollector struct {
	metrics *SenderMetrics

	bytesSent       *prometheus.Desc
	segmentsSent    *prometheus.Desc
	retransmissions *prometheus.Desc
	acksReceived    *prometheus.Desc
	sacksReceived   *prometheus.Desc
	averageSpeed    *prometheus.Desc
}

// NewSenderCollector wraps metrics for registration with a
// prometheus.Registry.
func NewSenderCollector(metrics *SenderMetrics) *SenderCollector {
	ns := "rudp_sender"
	return &SenderCollector{
		metrics:         metrics,
		bytesSent:       prometheus.NewDesc(ns+"_bytes_sent_total", "Encoded frame bytes sent, including retransmissions.", nil, nil),
		segmentsSent:    prometheus.NewDesc(ns+"_segments_sent_total", "Chunks sent for the first time.", nil, nil),
		retransmissions: prometheus.NewDesc(ns+"_retransmissions_total", "Chunks resent after an RTO.", nil, nil),
		acksReceived:    prometheus.NewDesc(ns+"_acks_received_total", "Cumulative ACK frames received.", nil, nil),
		sacksReceived:   prometheus.NewDesc(ns+"_sacks_received_total", "SACK frames received.", nil, nil),
		averageSpeed:    prometheus.NewDesc(ns+"_average_speed_bytes_per_second", "Average send speed so far.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *SenderCollector) Describe(descs chan<- *prometheus.Desc) {
	descs <- c.bytesSent
	descs <- c.segmentsSent
	descs <- c.retransmissions
	descs <- c.acksReceived
	descs <- c.sacksReceived
	descs <- c.averageSpeed
}

// Collect implements prometheus.Collector.
func (c *SenderCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.metrics.GetSnapshot()

	ch <- prometheus.MustNewConstMetric(c.bytesSent, prometheus.CounterValue, float64(snap.BytesSent))
	ch <- prometheus.MustNewConstMetric(c.segmentsSent, prometheus.CounterValue, float64(snap.SegmentsSent))
	ch <- prometheus.MustNewConstMetric(c.retransmissions, prometheus.CounterValue, float64(snap.Retransmissions))
	ch <- prometheus.MustNewConstMetric(c.acksReceived, prometheus.CounterValue, float64(snap.AcksReceived))
	ch <- prometheus.MustNewConstMetric(c.sacksReceived, prometheus.CounterValue, float64(snap.SacksReceived))
	ch <- prometheus.MustNewConstMetric(c.averageSpeed, prometheus.GaugeValue, snap.AverageSpeed)
}
