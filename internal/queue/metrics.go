package queue

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/ternarybob/prospect/internal/models"
)

// Prometheus collectors mirror the snapshot metrics for operators. They are
// registered once per process and labeled by queue name.
var (
	promJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prospect",
		Subsystem: "queue",
		Name:      "jobs_total",
		Help:      "Total jobs by queue and terminal outcome",
	}, []string{"queue", "outcome"})

	promQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "prospect",
		Subsystem: "queue",
		Name:      "depth",
		Help:      "Current queue occupancy by state",
	}, []string{"queue", "state"})

	promExecSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "prospect",
		Subsystem: "queue",
		Name:      "execution_seconds",
		Help:      "Job execution duration",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"queue"})
)

// queueMetrics accumulates a queue's counters and derived rolling values.
// Average execution time and queue latency use the smoothing
// avg = (old + new) / 2, seeded with the first observation.
type queueMetrics struct {
	name string

	mu              sync.Mutex
	totalJobs       int64
	completedJobs   int64
	failedJobs      int64
	cancelledJobs   int64
	avgExecution    time.Duration
	avgLatency      time.Duration
	peakConcurrency int
	completions     []time.Time // Pruned to the trailing 60s window
}

func newQueueMetrics(name string) *queueMetrics {
	return &queueMetrics{name: name}
}

func (m *queueMetrics) recordAdded(pending, active int) {
	m.mu.Lock()
	m.totalJobs++
	m.mu.Unlock()

	promQueueDepth.WithLabelValues(m.name, "pending").Set(float64(pending - active))
	promQueueDepth.WithLabelValues(m.name, "active").Set(float64(active))
}

func (m *queueMetrics) recordStarted(latency time.Duration, activeCount int) {
	m.mu.Lock()
	m.avgLatency = smooth(m.avgLatency, latency)
	if activeCount > m.peakConcurrency {
		m.peakConcurrency = activeCount
	}
	m.mu.Unlock()

	promQueueDepth.WithLabelValues(m.name, "active").Set(float64(activeCount))
}

func (m *queueMetrics) recordCompleted(duration time.Duration, pending, active int) {
	now := time.Now()
	m.mu.Lock()
	m.completedJobs++
	m.avgExecution = smooth(m.avgExecution, duration)
	m.completions = append(m.completions, now)
	m.pruneCompletions(now)
	m.mu.Unlock()

	promJobsTotal.WithLabelValues(m.name, "completed").Inc()
	promExecSeconds.WithLabelValues(m.name).Observe(duration.Seconds())
	promQueueDepth.WithLabelValues(m.name, "pending").Set(float64(pending - active))
	promQueueDepth.WithLabelValues(m.name, "active").Set(float64(active))
}

func (m *queueMetrics) recordFailed(pending, active int) {
	m.mu.Lock()
	m.failedJobs++
	m.mu.Unlock()

	promJobsTotal.WithLabelValues(m.name, "failed").Inc()
	promQueueDepth.WithLabelValues(m.name, "pending").Set(float64(pending - active))
	promQueueDepth.WithLabelValues(m.name, "active").Set(float64(active))
}

func (m *queueMetrics) recordCancelled(pending, active int) {
	m.mu.Lock()
	m.cancelledJobs++
	m.mu.Unlock()

	promJobsTotal.WithLabelValues(m.name, "cancelled").Inc()
	promQueueDepth.WithLabelValues(m.name, "pending").Set(float64(pending - active))
}

// pruneCompletions drops completion timestamps outside the 60s throughput
// window. Caller holds the lock.
func (m *queueMetrics) pruneCompletions(now time.Time) {
	cutoff := now.Add(-60 * time.Second)
	idx := 0
	for idx < len(m.completions) && m.completions[idx].Before(cutoff) {
		idx++
	}
	if idx > 0 {
		m.completions = m.completions[idx:]
	}
}

func (m *queueMetrics) snapshot(pending, active int) models.QueueMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pruneCompletions(time.Now())

	terminal := m.completedJobs + m.failedJobs
	errorRate := 0.0
	if terminal > 0 {
		errorRate = float64(m.failedJobs) / float64(terminal)
	}

	return models.QueueMetrics{
		TotalJobs:            m.totalJobs,
		CompletedJobs:        m.completedJobs,
		FailedJobs:           m.failedJobs,
		CancelledJobs:        m.cancelledJobs,
		PendingCount:         pending,
		ActiveCount:          active,
		AverageExecutionTime: m.avgExecution,
		QueueLatency:         m.avgLatency,
		Throughput:           len(m.completions),
		ErrorRate:            errorRate,
		PeakConcurrency:      m.peakConcurrency,
	}
}

// smooth applies the (old+new)/2 running average, seeding with the first value
func smooth(old, sample time.Duration) time.Duration {
	if old == 0 {
		return sample
	}
	return (old + sample) / 2
}
