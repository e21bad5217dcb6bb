package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics описывает доставку событий заявок из outbox в Kafka.
type OutboxMetrics struct {
	publishAttempts *prometheus.CounterVec
	deadLetters     *prometheus.CounterVec
	pending         prometheus.Gauge
	oldestAge       prometheus.Gauge
}

// NewOutboxMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewOutboxMetrics() *OutboxMetrics {
	return NewOutboxMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOutboxMetricsWithRegisterer регистрирует метрики в переданном registerer.
func NewOutboxMetricsWithRegisterer(registerer prometheus.Registerer) *OutboxMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OutboxMetrics{
		publishAttempts: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "repairhub_outbox_publish_attempts_total",
			Help: "Outbox publish attempts for ticket events grouped by result",
		}, []string{"result"}),
		deadLetters: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "repairhub_outbox_dead_letters_total",
			Help: "Ticket events moved to the dead letter topic grouped by event type",
		}, []string{"event_type"}),
		pending: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "repairhub_outbox_pending_records",
			Help: "Ticket events waiting in the outbox",
		}),
		oldestAge: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "repairhub_outbox_oldest_pending_age_seconds",
			Help: "Age in seconds of the oldest pending outbox record",
		}),
	}
}

// RecordPublish учитывает попытку публикации: sent, retry_error, failed, dlq_failed.
func (m *OutboxMetrics) RecordPublish(result string) {
	if m == nil {
		return
	}
	m.publishAttempts.WithLabelValues(result).Inc()
}

// RecordDeadLetter учитывает событие, отправленное в DLQ.
func (m *OutboxMetrics) RecordDeadLetter(eventType string) {
	if m == nil {
		return
	}
	m.deadLetters.WithLabelValues(eventType).Inc()
}

// SetBacklog выставляет размер и возраст backlog.
func (m *OutboxMetrics) SetBacklog(pending int, oldestAge time.Duration) {
	if m == nil {
		return
	}
	if oldestAge < 0 {
		oldestAge = 0
	}
	m.pending.Set(float64(pending))
	m.oldestAge.Set(oldestAge.Seconds())
}
