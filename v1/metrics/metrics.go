package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// InvocationCounter tracks executed wake-up invocations.
	InvocationCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eval_invocations_total",
		Help: "Total number of executed wake-up invocations",
	})
	// InvocationErrorCounter tracks invocations whose side effect failed.
	InvocationErrorCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eval_invocation_errors_total",
		Help: "Total number of wake-up invocations that failed",
	})
	// MalformedKeyCounter tracks dropped invocations with unparseable keys.
	MalformedKeyCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eval_malformed_keys_total",
		Help: "Total number of invocations dropped for malformed keys",
	})
	// NotificationCounter tracks notifications handed to the notifier.
	NotificationCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eval_notifications_total",
		Help: "Total number of notifications sent",
	})
	// RescheduleCounter tracks cancel-then-create reconciliations.
	RescheduleCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eval_reschedules_total",
		Help: "Total number of rescheduled invocations",
	})
	// LockAcquiredCounter tracks successful lock obtains.
	LockAcquiredCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eval_lock_acquired_total",
		Help: "Total number of acquired distributed locks",
	})
	// LockDeniedCounter tracks obtains denied by a valid other holder.
	LockDeniedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eval_lock_denied_total",
		Help: "Total number of denied distributed lock obtains",
	})
	// LockStolenCounter tracks stale leases taken over by a new holder.
	LockStolenCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "eval_lock_stolen_total",
		Help: "Total number of stale distributed locks stolen",
	})
)

// NewRegistry creates a new Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// RegisterCoreMetrics registers the lifecycle metrics on the provided registry.
func RegisterCoreMetrics(reg prometheus.Registerer) {
	reg.MustRegister(
		InvocationCounter,
		InvocationErrorCounter,
		MalformedKeyCounter,
		NotificationCounter,
		RescheduleCounter,
		LockAcquiredCounter,
		LockDeniedCounter,
		LockStolenCounter,
	)
}
