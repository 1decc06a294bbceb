// Package metrics exposes Prometheus collectors for session activity.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "live_quiz"

// Prometheus records session activity. It satisfies session.Metrics.
type Prometheus struct {
	sessionsActive   prometheus.Gauge
	sessionsCreated  prometheus.Counter
	sessionsEnded    *prometheus.CounterVec
	phaseTransitions *prometheus.CounterVec
	answersScored    *prometheus.CounterVec
	pruned           prometheus.Counter
	fanout           prometheus.Histogram
	reg              prometheus.Registerer
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer in production.
func New(reg prometheus.Registerer) *Prometheus {
	factory := promauto.With(reg)
	return &Prometheus{
		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Sessions currently held in memory.",
		}),
		sessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Sessions created since start.",
		}),
		sessionsEnded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_ended_total",
			Help:      "Sessions ended, by reason.",
		}, []string{"reason"}),
		phaseTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phase_transitions_total",
			Help:      "Phase entries across all sessions.",
		}, []string{"phase"}),
		answersScored: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "answers_scored_total",
			Help:      "Participant outcomes per question, by correctness.",
		}, []string{"correct"}),
		pruned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "participants_pruned_total",
			Help:      "Participants removed for inactivity.",
		}),
		fanout: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_fanout_recipients",
			Help:      "Connections reached per outbound event.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 200},
		}),
		reg: reg,
	}
}

func (p *Prometheus) SessionCreated() {
	p.sessionsCreated.Inc()
	p.sessionsActive.Inc()
}

func (p *Prometheus) SessionEnded(reason string) {
	p.sessionsActive.Dec()
	p.sessionsEnded.WithLabelValues(reason).Inc()
}

func (p *Prometheus) PhaseEntered(phase string) {
	p.phaseTransitions.WithLabelValues(phase).Inc()
}

func (p *Prometheus) AnswerScored(correct bool) {
	p.answersScored.WithLabelValues(strconv.FormatBool(correct)).Inc()
}

func (p *Prometheus) ParticipantsPruned(n int) {
	p.pruned.Add(float64(n))
}

func (p *Prometheus) EventDelivered(recipients int) {
	p.fanout.Observe(float64(recipients))
}

// TrackConnections exports the live WebSocket connection count.
func (p *Prometheus) TrackConnections(count func() int) {
	promauto.With(p.reg).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ws_connections",
		Help:      "Open WebSocket connections.",
	}, func() float64 { return float64(count()) })
}
