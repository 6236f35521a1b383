package checkout

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CartMutations counts accepted ledger mutations by operation.
	CartMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_cart_mutations_total",
			Help: "Total number of cart ledger mutations",
		},
		[]string{"operation"},
	)

	// StepTransitions counts step changes by target step.
	StepTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_step_transitions_total",
			Help: "Total number of checkout step transitions",
		},
		[]string{"step"},
	)

	// Submissions counts order submissions by result
	// (completed, failed, cancelled, ignored).
	Submissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_order_submissions_total",
			Help: "Total number of order submissions by result",
		},
		[]string{"result"},
	)

	// SubmissionDuration observes how long the order submitter takes.
	SubmissionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "checkout_order_submission_duration_seconds",
			Help:    "Duration of order submissions in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 2.5, 5, 10, 30},
		},
	)
)
