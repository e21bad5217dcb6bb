package ticketing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cowboyjack911/pc-install-repairhub/internal/domain"
	"github.com/cowboyjack911/pc-install-repairhub/internal/messaging/kafka"
	"github.com/cowboyjack911/pc-install-repairhub/internal/metrics"
)

const tracerName = "github.com/cowboyjack911/pc-install-repairhub/internal/service/ticketing"

// Dependencies перечисляет границы модулей, с которыми работает сервис.
// Timeline и Outbox необязательны: без них сервис не ведёт историю и не публикует события.
type Dependencies struct {
	Customers domain.CustomerRepository
	Assets    domain.AssetRepository
	Tickets   domain.TicketingRepository
	Inventory domain.InventoryRepository
	Timeline  domain.TimelineRepository
	Outbox    domain.OutboxRepository
}

// Service реализует сценарии мастерской поверх границ модулей ticketing и inventory.
// Сам сервис состояния не хранит: блокировки и атомарность обеспечивают адаптеры хранилища.
type Service struct {
	customers domain.CustomerRepository
	assets    domain.AssetRepository
	tickets   domain.TicketingRepository
	inventory domain.InventoryRepository
	timeline  domain.TimelineRepository
	outbox    domain.OutboxRepository

	logger  *log.Entry
	metrics *metrics.TicketingMetrics
	tracer  trace.Tracer
	now     func() time.Time
}

// Option настраивает Service.
type Option func(*Service)

// WithLogger задаёт логгер сервиса.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics включает prometheus-метрики.
func WithMetrics(m *metrics.TicketingMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTracer задаёт tracer; по умолчанию берётся глобальный otel provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithClock подменяет источник времени для событий.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService проверяет обязательные зависимости и создаёт сервис.
func NewService(deps Dependencies, opts ...Option) (*Service, error) {
	switch {
	case deps.Customers == nil:
		return nil, errors.New("ticketing service: customers repository is required")
	case deps.Assets == nil:
		return nil, errors.New("ticketing service: assets repository is required")
	case deps.Tickets == nil:
		return nil, errors.New("ticketing service: tickets repository is required")
	case deps.Inventory == nil:
		return nil, errors.New("ticketing service: inventory repository is required")
	}

	s := &Service{
		customers: deps.Customers,
		assets:    deps.Assets,
		tickets:   deps.Tickets,
		inventory: deps.Inventory,
		timeline:  deps.Timeline,
		outbox:    deps.Outbox,
		logger:    log.WithField("component", "ticketing-service"),
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// begin открывает span операции; возвращённая функция закрывает его и пишет метрики.
func (s *Service) begin(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "ticketing."+operation, trace.WithAttributes(attrs...))

	return ctx, func(errp *error) {
		s.metrics.ObserveOperation(operation, time.Since(start))
		if errp != nil && *errp != nil {
			err := *errp
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.metrics.RecordOperationError(operation, errorKind(err))
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

// errorKind сводит ошибку к метке метрики.
func errorKind(err error) string {
	switch {
	case domain.IsValidation(err):
		return "validation"
	case domain.IsReferential(err):
		return "referential"
	case domain.IsNotFound(err):
		return "not_found"
	case domain.IsConflict(err):
		return "conflict"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return "unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}

// appendTimeline пишет событие в историю заявки. Ошибка не отменяет уже сохранённое изменение.
func (s *Service) appendTimeline(ctx context.Context, ticketID uuid.UUID, eventType domain.TimelineEventType, reason string, occurred time.Time) {
	if s.timeline == nil {
		return
	}
	if occurred.IsZero() {
		occurred = s.now().UTC()
	}

	err := s.timeline.Append(ctx, domain.TimelineEvent{
		TicketID: ticketID,
		Type:     eventType,
		Reason:   reason,
		Occurred: occurred,
	})
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"ticket_id": ticketID,
			"event":     eventType,
		}).Warn("append timeline event failed")
		return
	}
	s.metrics.RecordTimelineEvent()
}

// enqueueEvent кладёт событие заявки в outbox для последующей публикации в Kafka.
// Запись идёт отдельно от сохранения заявки: при сбое между ними событие теряется,
// а изменение заявки остаётся в силе.
func (s *Service) enqueueEvent(ctx context.Context, ticket domain.RepairTicket, eventType kafka.EventType, previous domain.RepairStatus, occurred time.Time, metadata map[string]any) {
	if s.outbox == nil {
		return
	}

	event := kafka.NewTicketEvent(eventType, ticket.ID.String(), ticket.AssetID.String(), ticket.Status.String(), occurred, metadata)
	if previous != "" {
		event.PreviousStatus = previous.String()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"ticket_id": ticket.ID,
			"event":     eventType,
		}).Error("marshal event failed")
		return
	}

	_, err = s.outbox.Enqueue(ctx, domain.OutboxMessage{
		AggregateType: kafka.AggregateTypeTicket,
		AggregateID:   ticket.ID.String(),
		EventType:     string(eventType),
		Payload:       payload,
	})
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"ticket_id": ticket.ID,
			"event":     eventType,
		}).Error("enqueue event failed")
		return
	}
	s.metrics.RecordOutboxEvent()
}

func occurredAt(ticket domain.RepairTicket) time.Time {
	if ticket.UpdatedAt != nil {
		return *ticket.UpdatedAt
	}
	return ticket.CreatedAt
}

// loadTicket возвращает текущую версию заявки.
func (s *Service) loadTicket(ctx context.Context, ticketID uuid.UUID) (domain.RepairTicket, error) {
	details, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return domain.RepairTicket{}, fmt.Errorf("load ticket %s: %w", ticketID, err)
	}
	return details.Ticket, nil
}
