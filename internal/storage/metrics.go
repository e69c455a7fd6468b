package storage

import "github.com/prometheus/client_golang/prometheus"

// metrics mirrors the teacher's walMetrics: plain prometheus collectors
// registered once at construction, updated inline from the hot path.
type metrics struct {
	rotations     prometheus.Counter
	fsyncs        prometheus.Counter
	queueSize     prometheus.Gauge
	writeFailures prometheus.Counter
	readFailures  prometheus.Counter
}

func newMetrics(r prometheus.Registerer) *metrics {
	m := &metrics{
		rotations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goqueue_segment_rotations_total",
			Help: "Number of times a new write-head segment was allocated.",
		}),
		fsyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goqueue_fsync_total",
			Help: "Number of fsync calls issued by the storage engine.",
		}),
		queueSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "goqueue_queue_size",
			Help: "Current number of payloads logically present in the queue.",
		}),
		writeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goqueue_write_failures_total",
			Help: "Number of failed write operations.",
		}),
		readFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goqueue_read_failures_total",
			Help: "Number of failed read operations.",
		}),
	}
	if r != nil {
		r.MustRegister(m.rotations, m.fsyncs, m.queueSize, m.writeFailures, m.readFailures)
	}
	return m
}
