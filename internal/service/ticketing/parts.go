package ticketing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/cowboyjack911/pc-install-repairhub/internal/domain"
	"github.com/cowboyjack911/pc-install-repairhub/internal/messaging/kafka"
)

// ReserveParts резервирует запчасти под открытую заявку. false означает, что на складе не хватает единиц;
// остаток при этом не меняется.
func (s *Service) ReserveParts(ctx context.Context, ticketID, productID uuid.UUID, quantity int) (_ bool, err error) {
	ctx, finish := s.begin(ctx, "reserve_parts",
		attribute.String("ticket.id", ticketID.String()),
		attribute.String("product.id", productID.String()),
		attribute.Int("quantity", quantity),
	)
	defer finish(&err)

	if err := domain.ValidateQuantity(quantity); err != nil {
		return false, err
	}
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return false, err
	}
	if ticket.Status.IsTerminal() {
		return false, domain.ErrTicketClosed
	}

	ok, err := s.inventory.ReserveStock(ctx, productID, quantity)
	if err != nil {
		return false, fmt.Errorf("reserve parts: %w", err)
	}
	s.metrics.RecordReservation("reserve", ok)
	trace.SpanFromContext(ctx).SetAttributes(attribute.Bool("inventory.reserved", ok))

	reason := partsReason(productID, quantity)
	occurred := s.now().UTC()
	if !ok {
		s.appendTimeline(ctx, ticketID, domain.TimelinePartsUnavailable, reason, occurred)
		s.logger.WithFields(log.Fields{
			"ticket_id":  ticketID,
			"product_id": productID,
			"quantity":   quantity,
		}).Info("Not enough stock to reserve parts")
		return false, nil
	}

	s.appendTimeline(ctx, ticketID, domain.TimelinePartsReserved, reason, occurred)
	s.enqueueEvent(ctx, ticket, kafka.EventTypePartsReserved, "", occurred, map[string]any{
		"product_id": productID.String(),
		"quantity":   quantity,
	})
	return true, nil
}

// ReleaseParts возвращает зарезервированные запчасти на склад, в том числе по закрытой заявке.
func (s *Service) ReleaseParts(ctx context.Context, ticketID, productID uuid.UUID, quantity int) (_ bool, err error) {
	ctx, finish := s.begin(ctx, "release_parts",
		attribute.String("ticket.id", ticketID.String()),
		attribute.String("product.id", productID.String()),
		attribute.Int("quantity", quantity),
	)
	defer finish(&err)

	if err := domain.ValidateQuantity(quantity); err != nil {
		return false, err
	}
	ticket, err := s.loadTicket(ctx, ticketID)
	if err != nil {
		return false, err
	}

	ok, err := s.inventory.ReleaseStock(ctx, productID, quantity)
	if err != nil {
		return false, fmt.Errorf("release parts: %w", err)
	}
	s.metrics.RecordReservation("release", ok)
	if !ok {
		return false, nil
	}

	occurred := s.now().UTC()
	s.appendTimeline(ctx, ticketID, domain.TimelinePartsReleased, partsReason(productID, quantity), occurred)
	s.enqueueEvent(ctx, ticket, kafka.EventTypePartsReleased, "", occurred, map[string]any{
		"product_id": productID.String(),
		"quantity":   quantity,
	})
	return true, nil
}

func partsReason(productID uuid.UUID, quantity int) string {
	return fmt.Sprintf("%d x %s", quantity, productID)
}
