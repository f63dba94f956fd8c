package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mutationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activitylog",
		Subsystem: "controller",
		Name:      "mutations_total",
		Help:      "Number of add/edit/delete operations grouped by outcome.",
	}, []string{"op", "outcome"})

	activityCountGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "activitylog",
		Subsystem: "controller",
		Name:      "activities",
		Help:      "Number of activities currently held in memory.",
	})

	saveDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "activitylog",
		Subsystem: "persistence",
		Name:      "save_duration_seconds",
		Help:      "Time spent writing the full activity list to the key-value store.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	lastPersistedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "activitylog",
		Subsystem: "persistence",
		Name:      "last_saved_timestamp_seconds",
		Help:      "Unix timestamp of the most recent successful save.",
	})
)

func init() {
	prometheus.MustRegister(mutationCounter, activityCountGauge, saveDuration, lastPersistedGauge)
}

// Mutation outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeInvalid  = "invalid"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// RecordMutation counts one controller mutation.
func RecordMutation(op, outcome string) {
	mutationCounter.WithLabelValues(op, outcome).Inc()
}

// SetActivityCount publishes the in-memory list size.
func SetActivityCount(n int) {
	activityCountGauge.Set(float64(n))
}

// ObserveSave records how long a save took and, on success, the save watermark.
func ObserveSave(start time.Time, err error) {
	saveDuration.Observe(time.Since(start).Seconds())
	if err == nil {
		lastPersistedGauge.Set(float64(time.Now().Unix()))
	}
}
