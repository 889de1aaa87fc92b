package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/relaybot/core/config"
)

// UpdateKind names the update type the way rate_limit.exclude_updates does.
func UpdateKind(c tele.Context) string {
	upd := c.Update()
	switch {
	case upd.Callback != nil:
		return coreconfig.UpdateCallback
	case upd.Message != nil:
		return coreconfig.UpdateMessage
	case upd.Query != nil:
		return coreconfig.UpdateInlineQuery
	}
	return "other"
}

// UpdateMetrics counts handled updates and their latency by kind. A nil
// *UpdateMetrics records nothing.
type UpdateMetrics struct {
	handled  *prometheus.CounterVec
	failed   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewUpdateMetrics registers the update collectors on reg.
func NewUpdateMetrics(reg prometheus.Registerer) *UpdateMetrics {
	m := &UpdateMetrics{
		handled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tg",
			Name:      "updates_total",
			Help:      "Telegram updates handled, by kind.",
		}, []string{"kind"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tg",
			Name:      "update_errors_total",
			Help:      "Telegram updates whose handler returned an error, by kind.",
		}, []string{"kind"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tg",
			Name:      "update_duration_seconds",
			Help:      "Time spent handling a Telegram update.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"kind"}),
	}
	if reg != nil {
		reg.MustRegister(m.handled, m.failed, m.duration)
	}
	return m
}

// Middleware observes every update that reaches the handler chain.
func (m *UpdateMetrics) Middleware(next tele.HandlerFunc) tele.HandlerFunc {
	if m == nil {
		return next
	}
	return func(c tele.Context) error {
		kind := UpdateKind(c)
		start := time.Now()
		err := next(c)
		m.duration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		m.handled.WithLabelValues(kind).Inc()
		if err != nil {
			m.failed.WithLabelValues(kind).Inc()
		}
		return err
	}
}
