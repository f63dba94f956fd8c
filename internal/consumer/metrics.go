package consumer

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	processedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activitylog",
		Subsystem: "consumer",
		Name:      "messages_processed_total",
		Help:      "Number of activity events successfully handled.",
	}, []string{"event_type"})

	handlerErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activitylog",
		Subsystem: "consumer",
		Name:      "handler_errors_total",
		Help:      "Number of handler errors grouped by event type.",
	}, []string{"event_type"})

	decodeErrorCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "activitylog",
		Subsystem: "consumer",
		Name:      "decode_errors_total",
		Help:      "Number of records that could not be decoded.",
	})

	lastMessageGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "activitylog",
		Subsystem: "consumer",
		Name:      "last_message_timestamp_seconds",
		Help:      "Unix timestamp of the most recent successfully processed event.",
	})
)

func init() {
	prometheus.MustRegister(processedCounter, handlerErrorCounter, decodeErrorCounter, lastMessageGauge)
}

func recordProcessed(msg Message) {
	processedCounter.WithLabelValues(msg.EventType).Inc()
	if !msg.Timestamp.IsZero() {
		lastMessageGauge.Set(float64(msg.Timestamp.Unix()))
	}
}

func recordHandlerError(msg Message) {
	handlerErrorCounter.WithLabelValues(msg.EventType).Inc()
}
