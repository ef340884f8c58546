package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	ProductsCreated     prometheus.Counter
	ProductsDeleted     prometheus.Counter
	VotesRecorded       prometheus.Counter
	VotesDuplicate      prometheus.Counter
	CommentsAdded       prometheus.Counter
	Refusals            *prometheus.CounterVec
	ActiveSubscriptions prometheus.Gauge
	SnapshotsDelivered  prometheus.Counter
	CacheLookups        *prometheus.CounterVec
}

// New registers every collector on reg. Passing a fresh registry keeps tests
// isolated from the default one.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ProductsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "showcase",
			Name:      "products_created_total",
			Help:      "Products created.",
		}),
		ProductsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "showcase",
			Name:      "products_deleted_total",
			Help:      "Products deleted by their creator.",
		}),
		VotesRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "showcase",
			Name:      "votes_recorded_total",
			Help:      "Votes that changed a product tally.",
		}),
		VotesDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "showcase",
			Name:      "votes_duplicate_total",
			Help:      "Repeated votes absorbed as no-ops.",
		}),
		CommentsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "showcase",
			Name:      "comments_added_total",
			Help:      "Comments appended to products.",
		}),
		Refusals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "showcase",
			Name:      "authorization_refusals_total",
			Help:      "Mutations refused by the authorization guard.",
		}, []string{"operation", "decision"}),
		ActiveSubscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "showcase",
			Name:      "listing_subscriptions_active",
			Help:      "Open listing subscriptions.",
		}),
		SnapshotsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "showcase",
			Name:      "listing_snapshots_delivered_total",
			Help:      "Snapshots handed to subscribers.",
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "showcase",
			Name:      "product_cache_lookups_total",
			Help:      "Product cache lookups by result.",
		}, []string{"result"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.ProductsCreated,
			m.ProductsDeleted,
			m.VotesRecorded,
			m.VotesDuplicate,
			m.CommentsAdded,
			m.Refusals,
			m.ActiveSubscriptions,
			m.SnapshotsDelivered,
			m.CacheLookups,
		)
	}

	return m
}

// NewNop returns unregistered collectors.
func NewNop() *Metrics {
	return New(nil)
}
