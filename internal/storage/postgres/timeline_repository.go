package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/cowboyjack911/pc-install-repairhub/internal/domain"
)

type timelineRepository struct {
	store *Store
}

func (r *timelineRepository) Append(ctx context.Context, event domain.TimelineEvent) error {
	if event.Occurred.IsZero() {
		event.Occurred = r.store.stamp()
	}

	err := r.store.withRetry(ctx, "append timeline event", func(ctx context.Context) error {
		_, err := r.store.db.ExecContext(ctx, `
			INSERT INTO ticketing.ticket_timeline (ticket_id, type, reason, occurred)
			VALUES ($1,$2,$3,$4)
		`, event.TicketID, string(event.Type), event.Reason, event.Occurred)
		return err
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrTicketNotFound
		}
		return fmt.Errorf("append timeline event: %w", err)
	}
	return nil
}

func (r *timelineRepository) List(ctx context.Context, ticketID uuid.UUID) ([]domain.TimelineEvent, error) {
	var events []domain.TimelineEvent
	err := r.store.withRetry(ctx, "list timeline events", func(ctx context.Context) error {
		rows, err := r.store.db.QueryContext(ctx, `
			SELECT ticket_id, type, reason, occurred
			FROM ticketing.ticket_timeline
			WHERE ticket_id = $1
			ORDER BY occurred ASC, id ASC
		`, ticketID)
		if err != nil {
			return err
		}
		defer rows.Close()

		events = make([]domain.TimelineEvent, 0)
		for rows.Next() {
			var (
				event     domain.TimelineEvent
				eventType string
			)
			if err := rows.Scan(&event.TicketID, &eventType, &event.Reason, &event.Occurred); err != nil {
				return fmt.Errorf("scan timeline event: %w", err)
			}
			event.Type = domain.TimelineEventType(eventType)
			event.Occurred = event.Occurred.UTC()
			events = append(events, event)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list timeline events: %w", err)
	}
	return events, nil
}

var _ domain.TimelineRepository = (*timelineRepository)(nil)
