package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TicketingMetrics содержит метрики мастерской: заявки, статусы, склад и события.
type TicketingMetrics struct {
	// Счётчики заявок
	ticketsOpened     prometheus.Counter
	statusTransitions *prometheus.CounterVec
	ticketsCompleted  prometheus.Counter

	// Резервирование запчастей
	partsReservations *prometheus.CounterVec

	// Время выполнения операций сервиса
	operationDuration *prometheus.HistogramVec
	operationErrors   *prometheus.CounterVec

	// Счётчики событий timeline и outbox
	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter

	// Заявки, по которым ещё идёт работа
	openTickets prometheus.Gauge
}

// NewTicketingMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewTicketingMetrics() *TicketingMetrics {
	return NewTicketingMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewTicketingMetricsWithRegisterer регистрирует метрики в переданном registerer.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewTicketingMetricsWithRegisterer(registerer prometheus.Registerer) *TicketingMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &TicketingMetrics{
		ticketsOpened: registerCounter(registerer, prometheus.CounterOpts{
			Name: "repairhub_tickets_opened_total",
			Help: "Total number of repair tickets opened",
		}),
		statusTransitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "repairhub_ticket_status_transitions_total",
			Help: "Repair ticket status transitions grouped by source and target status",
		}, []string{"from", "to"}),
		ticketsCompleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "repairhub_tickets_completed_total",
			Help: "Total number of repair tickets completed",
		}),
		partsReservations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "repairhub_parts_reservations_total",
			Help: "Parts reservation and release attempts grouped by operation and result",
		}, []string{"operation", "result"}),
		operationDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "repairhub_operation_duration_seconds",
			Help:    "Duration of ticketing service operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation"}),
		operationErrors: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "repairhub_operation_errors_total",
			Help: "Ticketing service operation errors grouped by operation and error kind",
		}, []string{"operation", "kind"}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "repairhub_timeline_events_total",
			Help: "Total number of ticket timeline events recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "repairhub_outbox_events_total",
			Help: "Total number of ticket events enqueued to the outbox",
		}),
		openTickets: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "repairhub_open_tickets",
			Help: "Tickets opened by this process and not yet completed or cancelled",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	return register(registerer, opts.Name, collector)
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	return register(registerer, opts.Name, collector)
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	return register(registerer, opts.Name, collector)
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	return register(registerer, opts.Name, collector)
}

// register регистрирует коллектор или возвращает уже зарегистрированный того же типа.
func register[T prometheus.Collector](registerer prometheus.Registerer, name string, collector T) T {
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(T)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", name))
			}
			return existing
		}
		panic(fmt.Sprintf("register collector %q: %v", name, err))
	}
	return collector
}

// RecordTicketOpened увеличивает счётчик новых заявок.
func (m *TicketingMetrics) RecordTicketOpened() {
	if m == nil {
		return
	}
	m.ticketsOpened.Inc()
	m.openTickets.Inc()
}

// RecordStatusTransition учитывает переход статуса; вход в терминальный статус уменьшает openTickets.
func (m *TicketingMetrics) RecordStatusTransition(from, to string, terminal bool) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(from, to).Inc()
	if to == "completed" {
		m.ticketsCompleted.Inc()
	}
	if terminal {
		m.openTickets.Dec()
	}
}

// RecordReservation учитывает попытку резерва или снятия резерва; ok=false означает нехватку остатка.
func (m *TicketingMetrics) RecordReservation(operation string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "insufficient"
	}
	m.partsReservations.WithLabelValues(operation, result).Inc()
}

// ObserveOperation записывает длительность операции сервиса.
func (m *TicketingMetrics) ObserveOperation(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordOperationError учитывает ошибку операции по виду (validation, not_found, conflict, ...).
func (m *TicketingMetrics) RecordOperationError(operation, kind string) {
	if m == nil {
		return
	}
	m.operationErrors.WithLabelValues(operation, kind).Inc()
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *TicketingMetrics) RecordTimelineEvent() {
	if m == nil {
		return
	}
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *TicketingMetrics) RecordOutboxEvent() {
	if m == nil {
		return
	}
	m.outboxEvents.Inc()
}
