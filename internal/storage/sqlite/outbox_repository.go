package sqlite

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/cowboyjack911/pc-install-repairhub/internal/domain"
)

const (
	outboxStatusPending = "pending"
	outboxStatusSent    = "sent"
	outboxStatusFailed  = "failed"
)

type outboxRepository struct {
	store *Store
}

func (r *outboxRepository) Enqueue(ctx context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if msg.ID == "" {
		msg.ID = domain.NewID().String()
	}
	now := r.store.stamp()

	err := r.store.transaction(ctx, func(tx *gorm.DB) error {
		dup, err := exists(tx, &OutboxMessageModel{}, "id = ?", msg.ID)
		if err != nil {
			return err
		}
		if dup {
			return domain.ErrDuplicateID
		}
		return tx.Create(&OutboxMessageModel{
			ID:            msg.ID,
			AggregateType: msg.AggregateType,
			AggregateID:   msg.AggregateID,
			EventType:     msg.EventType,
			Payload:       msg.Payload,
			Status:        outboxStatusPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}).Error
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateID) {
			return domain.OutboxMessage{}, err
		}
		return domain.OutboxMessage{}, fmt.Errorf("enqueue outbox message: %w", err)
	}
	return msg, nil
}

func (r *outboxRepository) PullPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	var models []OutboxMessageModel
	err := r.store.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").Order("id ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("pull pending outbox messages: %w", err)
	}

	result := make([]domain.OutboxMessage, 0, len(models))
	for _, m := range models {
		result = append(result, domain.OutboxMessage{
			ID:            m.ID,
			AggregateType: m.AggregateType,
			AggregateID:   m.AggregateID,
			EventType:     m.EventType,
			Payload:       m.Payload,
		})
	}
	return result, nil
}

func (r *outboxRepository) Stats(ctx context.Context) (domain.OutboxStats, error) {
	var stats domain.OutboxStats
	err := r.store.transaction(ctx, func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&OutboxMessageModel{}).Where("status = ?", outboxStatusPending).Count(&count).Error; err != nil {
			return err
		}
		stats.PendingCount = int(count)
		if count == 0 {
			return nil
		}

		var oldest OutboxMessageModel
		if err := tx.Where("status = ?", outboxStatusPending).Order("created_at ASC").First(&oldest).Error; err != nil {
			return err
		}
		stats.OldestPendingAt = oldest.CreatedAt.UTC()
		return nil
	})
	if err != nil {
		return domain.OutboxStats{}, fmt.Errorf("outbox stats query failed: %w", err)
	}
	return stats, nil
}

func (r *outboxRepository) MarkSent(ctx context.Context, id string) error {
	return r.markStatus(ctx, id, outboxStatusSent)
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id string) error {
	return r.markStatus(ctx, id, outboxStatusFailed)
}

func (r *outboxRepository) markStatus(ctx context.Context, id, status string) error {
	res := r.store.db.WithContext(ctx).
		Model(&OutboxMessageModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        status,
			"attempt_count": gorm.Expr("attempt_count + 1"),
			"updated_at":    r.store.stamp(),
		})
	if res.Error != nil {
		return fmt.Errorf("mark outbox message as %s: %w", status, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: message %s not found", domain.ErrOutboxPublish, id)
	}
	return nil
}

var _ domain.OutboxRepository = (*outboxRepository)(nil)
