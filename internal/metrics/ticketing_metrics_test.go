package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func newIsolatedMetrics(t *testing.T) (*TicketingMetrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewTicketingMetricsWithRegisterer(reg), reg
}

func TestNewTicketingMetrics(t *testing.T) {
	metrics := NewTicketingMetrics()
	if metrics == nil {
		t.Fatal("NewTicketingMetrics should not return nil")
	}

	// Повторная регистрация в default registry не паникует и отдаёт те же коллекторы.
	again := NewTicketingMetrics()
	if again.ticketsOpened != metrics.ticketsOpened {
		t.Error("expected the already registered counter to be reused")
	}
	if again.statusTransitions != metrics.statusTransitions {
		t.Error("expected the already registered counter vec to be reused")
	}
}

func TestRecordTicketLifecycle(t *testing.T) {
	metrics, _ := newIsolatedMetrics(t)

	metrics.RecordTicketOpened()
	metrics.RecordTicketOpened()
	metrics.RecordStatusTransition("created", "in_progress", false)
	metrics.RecordStatusTransition("in_progress", "completed", true)

	if got := testutil.ToFloat64(metrics.ticketsOpened); got != 2 {
		t.Errorf("expected 2 opened tickets, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.ticketsCompleted); got != 1 {
		t.Errorf("expected 1 completed ticket, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.openTickets); got != 1 {
		t.Errorf("expected 1 open ticket, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.statusTransitions.WithLabelValues("created", "in_progress")); got != 1 {
		t.Errorf("expected 1 created->in_progress transition, got %f", got)
	}
}

func TestRecordReservation(t *testing.T) {
	metrics, _ := newIsolatedMetrics(t)

	metrics.RecordReservation("reserve", true)
	metrics.RecordReservation("reserve", false)
	metrics.RecordReservation("reserve", false)
	metrics.RecordReservation("release", true)

	tests := []struct {
		operation string
		result    string
		want      float64
	}{
		{operation: "reserve", result: "ok", want: 1},
		{operation: "reserve", result: "insufficient", want: 2},
		{operation: "release", result: "ok", want: 1},
	}
	for _, tt := range tests {
		got := testutil.ToFloat64(metrics.partsReservations.WithLabelValues(tt.operation, tt.result))
		if got != tt.want {
			t.Errorf("%s/%s: expected %f, got %f", tt.operation, tt.result, tt.want, got)
		}
	}
}

func TestObserveOperation(t *testing.T) {
	metrics, reg := newIsolatedMetrics(t)

	metrics.ObserveOperation("open_ticket", 15*time.Millisecond)
	metrics.ObserveOperation("open_ticket", 30*time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	var histogram *dto.Histogram
	for _, family := range families {
		if family.GetName() == "repairhub_operation_duration_seconds" {
			histogram = family.GetMetric()[0].GetHistogram()
		}
	}
	if histogram == nil {
		t.Fatal("operation duration histogram not found")
	}
	if histogram.GetSampleCount() != 2 {
		t.Errorf("expected 2 samples, got %d", histogram.GetSampleCount())
	}
	if sum := histogram.GetSampleSum(); sum < 0.044 || sum > 0.046 {
		t.Errorf("expected sample sum ~0.045, got %f", sum)
	}
}

func TestRecordEventsAndErrors(t *testing.T) {
	metrics, _ := newIsolatedMetrics(t)

	metrics.RecordTimelineEvent()
	metrics.RecordOutboxEvent()
	metrics.RecordOutboxEvent()
	metrics.RecordOperationError("change_status", "conflict")

	if got := testutil.ToFloat64(metrics.timelineEvents); got != 1 {
		t.Errorf("expected 1 timeline event, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.outboxEvents); got != 2 {
		t.Errorf("expected 2 outbox events, got %f", got)
	}
	if got := testutil.ToFloat64(metrics.operationErrors.WithLabelValues("change_status", "conflict")); got != 1 {
		t.Errorf("expected 1 conflict error, got %f", got)
	}
}

func TestNilMetricsAreNoop(t *testing.T) {
	var metrics *TicketingMetrics

	metrics.RecordTicketOpened()
	metrics.RecordStatusTransition("created", "cancelled", true)
	metrics.RecordReservation("reserve", true)
	metrics.ObserveOperation("open_ticket", time.Millisecond)
	metrics.RecordOperationError("open_ticket", "validation")
	metrics.RecordTimelineEvent()
	metrics.RecordOutboxEvent()
}

func TestOutboxMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetricsWithRegisterer(reg)

	m.RecordPublish("sent")
	m.RecordPublish("sent")
	m.RecordPublish("retry_error")
	m.RecordDeadLetter("ticket.status_changed")
	m.SetBacklog(4, 90*time.Second)

	if got := testutil.ToFloat64(m.publishAttempts.WithLabelValues("sent")); got != 2 {
		t.Errorf("expected 2 sent attempts, got %v", got)
	}
	if got := testutil.ToFloat64(m.deadLetters.WithLabelValues("ticket.status_changed")); got != 1 {
		t.Errorf("expected 1 dead letter, got %v", got)
	}
	if got := testutil.ToFloat64(m.pending); got != 4 {
		t.Errorf("expected 4 pending, got %v", got)
	}
	if got := testutil.ToFloat64(m.oldestAge); got != 90 {
		t.Errorf("expected oldest age 90s, got %v", got)
	}

	m.SetBacklog(0, -time.Second)
	if got := testutil.ToFloat64(m.oldestAge); got != 0 {
		t.Errorf("negative age must clamp to 0, got %v", got)
	}

	var nilMetrics *OutboxMetrics
	nilMetrics.RecordPublish("sent")
	nilMetrics.RecordDeadLetter("ticket.created")
	nilMetrics.SetBacklog(1, time.Second)
}
