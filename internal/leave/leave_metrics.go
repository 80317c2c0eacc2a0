package leave

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts lifecycle outcomes. A nil *Metrics records nothing.
type Metrics struct {
	created   *prometheus.CounterVec
	decisions *prometheus.CounterVec
	conflicts prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leave",
			Name:      "requests_created_total",
			Help:      "Leave requests created, by leave type.",
		}, []string{"type"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leave",
			Name:      "requests_decided_total",
			Help:      "Leave requests approved or rejected, by resulting status.",
		}, []string{"status"}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "leave",
			Name:      "requests_already_processed_total",
			Help:      "Decisions refused because the request was no longer pending.",
		}),
	}
	reg.MustRegister(m.created, m.decisions, m.conflicts)
	return m
}

func (m *Metrics) observeCreated(leaveType string) {
	if m == nil {
		return
	}
	m.created.WithLabelValues(leaveType).Inc()
}

func (m *Metrics) observeDecision(status string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(status).Inc()
}

func (m *Metrics) observeConflict() {
	if m == nil {
		return
	}
	m.conflicts.Inc()
}
