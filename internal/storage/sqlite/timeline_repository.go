package sqlite

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cowboyjack911/pc-install-repairhub/internal/domain"
)

type timelineRepository struct {
	store *Store
}

func (r *timelineRepository) Append(ctx context.Context, event domain.TimelineEvent) error {
	if event.Occurred.IsZero() {
		event.Occurred = r.store.stamp()
	}

	err := r.store.transaction(ctx, func(tx *gorm.DB) error {
		found, err := exists(tx, &RepairTicketModel{}, "id = ?", event.TicketID.String())
		if err != nil {
			return err
		}
		if !found {
			return domain.ErrTicketNotFound
		}
		return tx.Create(&TimelineEventModel{
			TicketID: event.TicketID.String(),
			Type:     string(event.Type),
			Reason:   event.Reason,
			Occurred: event.Occurred.UTC(),
		}).Error
	})
	if err != nil {
		if domain.IsNotFound(err) {
			return err
		}
		return fmt.Errorf("append timeline event: %w", err)
	}
	return nil
}

func (r *timelineRepository) List(ctx context.Context, ticketID uuid.UUID) ([]domain.TimelineEvent, error) {
	var models []TimelineEventModel
	err := r.store.db.WithContext(ctx).
		Where("ticket_id = ?", ticketID.String()).
		Order("occurred ASC").Order("id ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("list timeline events: %w", err)
	}

	events := make([]domain.TimelineEvent, 0, len(models))
	for _, m := range models {
		events = append(events, domain.TimelineEvent{
			TicketID: ticketID,
			Type:     domain.TimelineEventType(m.Type),
			Reason:   m.Reason,
			Occurred: m.Occurred.UTC(),
		})
	}
	return events, nil
}

var _ domain.TimelineRepository = (*timelineRepository)(nil)
