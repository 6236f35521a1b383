package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Publish results used as the "result" label.
const (
	resultOK    = "ok"
	resultError = "error"
)

var (
	// ProducerPublishes counts publish attempts by topic and result.
	ProducerPublishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_producer_publishes_total",
			Help: "Kafka publish attempts by topic and result.",
		},
		[]string{"topic", "result"},
	)

	// ProducerPublishDuration observes broker round trips. Writes are
	// synchronous with RequireAll acks, so buckets reach into seconds.
	ProducerPublishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_producer_publish_duration_seconds",
			Help:    "Duration of Kafka publish calls in seconds.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"topic"},
	)
)
