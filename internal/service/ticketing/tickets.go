package ticketing

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cowboyjack911/pc-install-repairhub/internal/domain"
	"github.com/cowboyjack911/pc-install-repairhub/internal/messaging/kafka"
)

// OpenTicketInput содержит данные новой заявки.
type OpenTicketInput struct {
	AssetID       uuid.UUID
	Title         string
	Description   string
	EstimatedCost domain.Money
}

// OpenTicket создаёт заявку по устройству в статусе Created.
func (s *Service) OpenTicket(ctx context.Context, in OpenTicketInput) (_ domain.RepairTicket, err error) {
	ctx, finish := s.begin(ctx, "open_ticket", attribute.String("asset.id", in.AssetID.String()))
	defer finish(&err)

	ticket, err := domain.NewRepairTicket(in.AssetID, in.Title, in.Description, in.EstimatedCost)
	if err != nil {
		return domain.RepairTicket{}, err
	}
	ticket, err = s.tickets.Create(ctx, ticket)
	if err != nil {
		return domain.RepairTicket{}, fmt.Errorf("open ticket: %w", err)
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("ticket.id", ticket.ID.String()))

	s.metrics.RecordTicketOpened()
	s.appendTimeline(ctx, ticket.ID, domain.TimelineTicketCreated, ticket.Title, ticket.CreatedAt)
	s.enqueueEvent(ctx, ticket, kafka.EventTypeTicketCreated, "", ticket.CreatedAt, map[string]any{
		"estimated_cost": ticket.EstimatedCost.String(),
	})

	s.logger.WithFields(log.Fields{
		"ticket_id": ticket.ID,
		"asset_id":  ticket.AssetID,
	}).Info("Repair ticket opened")
	return ticket, nil
}

// ChangeStatus переводит заявку в новый статус. Правила переходов проверяет хранилище
// по своей политике; reason попадает в историю заявки.
func (s *Service) ChangeStatus(ctx context.Context, ticketID uuid.UUID, next domain.RepairStatus, reason string) (_ domain.RepairTicket, err error) {
	ctx, finish := s.begin(ctx, "change_status",
		attribute.String("ticket.id", ticketID.String()),
		attribute.String("ticket.next_status", next.String()),
	)
	defer finish(&err)

	if !next.Valid() {
		return domain.RepairTicket{}, domain.NewValidationError("status", fmt.Sprintf("unknown value %q", next))
	}
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return domain.RepairTicket{}, err
	}
	previous := ticket.Status
	if previous.IsTerminal() {
		return domain.RepairTicket{}, fmt.Errorf("%w: %w: %s -> %s", domain.ErrInvalidTransition, domain.ErrTicketClosed, previous, next)
	}
	if previous == next {
		return domain.RepairTicket{}, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, previous, next)
	}

	ticket.Status = next
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return domain.RepairTicket{}, fmt.Errorf("change status: %w", err)
	}
	updated, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return domain.RepairTicket{}, err
	}

	s.metrics.RecordStatusTransition(previous.String(), next.String(), next.IsTerminal())
	s.appendTimeline(ctx, ticketID, domain.TimelineStatusChanged, transitionReason(previous, next, reason), occurredAt(updated))
	metadata := map[string]any{}
	if reason = strings.TrimSpace(reason); reason != "" {
		metadata["reason"] = reason
	}
	s.enqueueEvent(ctx, updated, kafka.EventTypeTicketStatusChanged, previous, occurredAt(updated), metadata)

	s.logger.WithFields(log.Fields{
		"ticket_id": ticketID,
		"from":      previous,
		"to":        next,
	}).Info("Repair ticket status changed")
	return updated, nil
}

func transitionReason(from, to domain.RepairStatus, reason string) string {
	base := from.String() + " -> " + to.String()
	if reason = strings.TrimSpace(reason); reason != "" {
		return base + ": " + reason
	}
	return base
}

// RecordActualCost фиксирует фактическую стоимость ремонта; без неё заявку не завершить.
func (s *Service) RecordActualCost(ctx context.Context, ticketID uuid.UUID, cost domain.Money) (_ domain.RepairTicket, err error) {
	ctx, finish := s.begin(ctx, "record_actual_cost", attribute.String("ticket.id", ticketID.String()))
	defer finish(&err)

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return domain.RepairTicket{}, err
	}
	if err := ticket.RecordActualCost(cost, s.now()); err != nil {
		return domain.RepairTicket{}, err
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return domain.RepairTicket{}, fmt.Errorf("record actual cost: %w", err)
	}
	updated, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return domain.RepairTicket{}, err
	}

	s.appendTimeline(ctx, ticketID, domain.TimelineCostRecorded, cost.String(), occurredAt(updated))
	s.enqueueEvent(ctx, updated, kafka.EventTypeTicketCostRecorded, "", occurredAt(updated), map[string]any{
		"actual_cost": cost.String(),
	})
	return updated, nil
}

// UpdateTechnicianNotes заменяет заметки мастера; пустая строка очищает их.
func (s *Service) UpdateTechnicianNotes(ctx context.Context, ticketID uuid.UUID, notes string) (_ domain.RepairTicket, err error) {
	ctx, finish := s.begin(ctx, "update_technician_notes", attribute.String("ticket.id", ticketID.String()))
	defer finish(&err)

	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return domain.RepairTicket{}, err
	}
	if err := ticket.UpdateTechnicianNotes(notes, s.now()); err != nil {
		return domain.RepairTicket{}, err
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return domain.RepairTicket{}, fmt.Errorf("update technician notes: %w", err)
	}
	updated, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return domain.RepairTicket{}, err
	}

	s.appendTimeline(ctx, ticketID, domain.TimelineNotesUpdated, "", occurredAt(updated))
	s.enqueueEvent(ctx, updated, kafka.EventTypeTicketNotesUpdated, "", occurredAt(updated), nil)
	return updated, nil
}

// TicketDetails возвращает заявку с устройством и владельцем.
func (s *Service) TicketDetails(ctx context.Context, ticketID uuid.UUID) (_ domain.TicketDetails, err error) {
	ctx, finish := s.begin(ctx, "ticket_details", attribute.String("ticket.id", ticketID.String()))
	defer finish(&err)

	return s.tickets.GetByID(ctx, ticketID)
}

// ServiceHistory возвращает все заявки устройства, новые первыми, независимо от смены владельцев.
func (s *Service) ServiceHistory(ctx context.Context, assetID uuid.UUID) (_ []domain.RepairTicket, err error) {
	ctx, finish := s.begin(ctx, "service_history", attribute.String("asset.id", assetID.String()))
	defer finish(&err)

	if _, err := s.assets.Get(ctx, assetID); err != nil {
		return nil, err
	}
	return s.tickets.GetByAsset(ctx, assetID)
}

// Timeline возвращает историю событий заявки в хронологическом порядке.
func (s *Service) Timeline(ctx context.Context, ticketID uuid.UUID) (_ []domain.TimelineEvent, err error) {
	ctx, finish := s.begin(ctx, "timeline", attribute.String("ticket.id", ticketID.String()))
	defer finish(&err)

	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		return nil, err
	}
	if s.timeline == nil {
		return []domain.TimelineEvent{}, nil
	}
	return s.timeline.List(ctx, ticketID)
}
