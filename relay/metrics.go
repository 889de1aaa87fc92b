package relay

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts relay outcomes. A nil *Metrics is valid and records nothing.
type Metrics struct {
	admissions       *prometheus.CounterVec
	moderation       *prometheus.CounterVec
	deliveryFailures *prometheus.CounterVec
	replies          *prometheus.CounterVec
}

// NewMetrics registers the relay collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "admission_total",
			Help:      "Admission decisions by outcome.",
		}, []string{"decision"}),
		moderation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "moderation_total",
			Help:      "Moderator actions applied.",
		}, []string{"action"}),
		deliveryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "delivery_failures_total",
			Help:      "Instructions the transport could not deliver, by failure class.",
		}, []string{"class"}),
		replies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "moderator_text_total",
			Help:      "Moderator free-text messages by routing result.",
		}, []string{"route"}),
	}
	if reg != nil {
		reg.MustRegister(m.admissions, m.moderation, m.deliveryFailures, m.replies)
	}
	return m
}

func (m *Metrics) admission(k DecisionKind) {
	if m == nil {
		return
	}
	m.admissions.WithLabelValues(k.String()).Inc()
}

func (m *Metrics) moderated(a Action) {
	if m == nil {
		return
	}
	m.moderation.WithLabelValues(string(a)).Inc()
}

func (m *Metrics) moderatorText(forwarded bool) {
	if m == nil {
		return
	}
	route := "pass_through"
	if forwarded {
		route = "reply"
	}
	m.replies.WithLabelValues(route).Inc()
}

// DeliveryFailed counts a failed delivery of the given class.
func (m *Metrics) DeliveryFailed(class string) {
	if m == nil {
		return
	}
	m.deliveryFailures.WithLabelValues(class).Inc()
}
