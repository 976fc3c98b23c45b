// Package metrics defines the business Prometheus metrics of the habit
// tracker. It is the single source of truth for metric names, labels and
// help strings.
//
// Metrics are registered on an explicit Registerer so every router (and
// every test) can own an isolated registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/streakup/habit-tracker/internal/core/domain"
)

const namespace = "habits"

// Auth attempt labels.
const (
	OpRegister = "register"
	OpLogin    = "login"

	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultError   = "error"
)

type Metrics struct {
	// AuthAttempts counts register and login calls.
	// Labels:
	//   - operation: "register" or "login"
	//   - result: "success", "failure" (rejected input) or "error" (store failure)
	AuthAttempts *prometheus.CounterVec

	HabitsCreated prometheus.Counter
	HabitsDeleted prometheus.Counter

	// Completions counts completion requests by the transition they took.
	// Label:
	//   - outcome: "started", "continued", "reset" or "repeated"
	Completions *prometheus.CounterVec

	// StreakLength observes the current streak after each completion.
	StreakLength prometheus.Histogram

	// QueueDepth tracks pending completions in each dispatcher worker.
	// Label:
	//   - worker_id: numeric worker index
	QueueDepth *prometheus.GaugeVec
}

// New builds the metric set without registering it.
func New() *Metrics {
	return &Metrics{
		AuthAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_attempts_total",
				Help:      "Total number of register and login attempts, by operation and result.",
			},
			[]string{"operation", "result"},
		),
		HabitsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "created_total",
			Help:      "Total number of habits created.",
		}),
		HabitsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deleted_total",
			Help:      "Total number of habits deleted.",
		}),
		Completions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "completions_total",
				Help:      "Total number of habit completions, by streak outcome.",
			},
			[]string{"outcome"},
		),
		StreakLength: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "streak_length",
			Help:      "Current streak length observed after each completion.",
			Buckets:   []float64{1, 2, 3, 5, 7, 14, 30, 60, 100, 365},
		}),
		QueueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "completion_queue_depth",
				Help:      "Current number of completions pending in each dispatcher worker channel.",
			},
			[]string{"worker_id"},
		),
	}
}

// Register builds the metric set and registers it on reg.
func Register(reg prometheus.Registerer) (*Metrics, error) {
	m := New()
	for _, c := range []prometheus.Collector{
		m.AuthAttempts,
		m.HabitsCreated,
		m.HabitsDeleted,
		m.Completions,
		m.StreakLength,
		m.QueueDepth,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveCompletion has the signature of service.CompletionObserver.
func (m *Metrics) ObserveCompletion(outcome domain.CompletionOutcome, h *domain.Habit) {
	m.Completions.WithLabelValues(string(outcome)).Inc()
	m.StreakLength.Observe(float64(h.CurrentStreak))
}

// AuthAttempt records one register or login call.
func (m *Metrics) AuthAttempt(operation, result string) {
	m.AuthAttempts.WithLabelValues(operation, result).Inc()
}
