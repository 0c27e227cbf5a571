// Package metrics собирает prometheus‑метрики маркетплейса:
// попадания в кэш, исходы входа и работу фоновой сверки подписок.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "marketplace"

// Metrics хранит коллекторы приложения.
type Metrics struct {
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
	CacheErrors prometheus.Counter

	Logins *prometheus.CounterVec

	ReconcilePasses      prometheus.Counter
	ReconcileChecked     prometheus.Counter
	ReconcileRevocations prometheus.Counter
	ReconcileFailures    prometheus.Counter
	ReconcileDuration    prometheus.Histogram
}

// Исходы входа для метки outcome.
const (
	LoginSuccess           = "success"
	LoginInvalid           = "invalid_credentials"
	LoginLockedOut         = "locked_out"
	LoginEmailNotConfirmed = "email_not_confirmed"
)

// New создаёт коллекторы и регистрирует их в reg. Если reg равен nil,
// коллекторы не регистрируются (удобно для тестов).
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Number of cache lookups served from the cache.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Number of cache lookups that called the populate function.",
		}),
		CacheErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "backend_errors_total",
			Help:      "Number of cache backend failures.",
		}),
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		ReconcilePasses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "passes_total",
			Help:      "Number of completed reconciliation passes.",
		}),
		ReconcileChecked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "checked_users_total",
			Help:      "Number of Subscriber role holders checked.",
		}),
		ReconcileRevocations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "revocations_total",
			Help:      "Number of Subscriber roles revoked.",
		}),
		ReconcileFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "failures_total",
			Help:      "Number of per-user reconciliation failures.",
		}),
		ReconcileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reconciler",
			Name:      "pass_duration_seconds",
			Help:      "Duration of reconciliation passes.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.CacheHits,
			m.CacheMisses,
			m.CacheErrors,
			m.Logins,
			m.ReconcilePasses,
			m.ReconcileChecked,
			m.ReconcileRevocations,
			m.ReconcileFailures,
			m.ReconcileDuration,
		)
	}
	return m
}
