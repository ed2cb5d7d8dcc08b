package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks transaction lifecycle outcomes.
type Metrics struct {
	Created            *prometheus.CounterVec
	Completed          prometheus.Counter
	Failed             prometheus.Counter
	Cancelled          prometheus.Counter
	Reversed           prometheus.Counter
	Swept              prometheus.Counter
	PublishFailures    prometheus.Counter
	UnmatchedResponses prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Created: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "payment",
			Name:      "transactions_created_total",
			Help:      "Transactions accepted and persisted as PENDING.",
		}, []string{"type"}),
		Completed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "payment",
			Name:      "transactions_completed_total",
			Help:      "Transactions that reached COMPLETED.",
		}),
		Failed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "payment",
			Name:      "transactions_failed_total",
			Help:      "Transactions that reached FAILED.",
		}),
		Cancelled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "payment",
			Name:      "transactions_cancelled_total",
			Help:      "Transactions cancelled while PENDING.",
		}),
		Reversed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "payment",
			Name:      "transactions_reversed_total",
			Help:      "Completed transactions that were reversed.",
		}),
		Swept: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "payment",
			Name:      "transactions_swept_total",
			Help:      "Stale transactions force-failed by the sweeper.",
		}),
		PublishFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "payment",
			Name:      "publish_failures_total",
			Help:      "Outbound event publishes that exhausted retries.",
		}),
		UnmatchedResponses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "payment",
			Name:      "unmatched_responses_total",
			Help:      "Inbound responses whose reference matched no transaction.",
		}),
	}
}

// NewNop returns metrics on a private registry, for tests.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
