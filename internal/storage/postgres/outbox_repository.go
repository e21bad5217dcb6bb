package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cowboyjack911/pc-install-repairhub/internal/domain"
)

type outboxRepository struct {
	store *Store
}

func (r *outboxRepository) Enqueue(ctx context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if msg.ID == "" {
		msg.ID = domain.NewID().String()
	}
	now := r.store.stamp()

	err := r.store.withRetry(ctx, "enqueue outbox message", func(ctx context.Context) error {
		_, err := r.store.db.ExecContext(ctx, `
			INSERT INTO outbox_messages (
				id, aggregate_type, aggregate_id, event_type, payload,
				status, attempt_count, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,'pending',0,$6,$7)
		`,
			msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.Payload, now, now,
		)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return domain.OutboxMessage{}, domain.ErrDuplicateID
		}
		return domain.OutboxMessage{}, fmt.Errorf("enqueue outbox message: %w", err)
	}
	return msg, nil
}

func (r *outboxRepository) PullPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	var result []domain.OutboxMessage
	err := r.store.withRetry(ctx, "pull pending outbox messages", func(ctx context.Context) error {
		rows, err := r.store.db.QueryContext(ctx, `
			SELECT id, aggregate_type, aggregate_id, event_type, payload
			FROM outbox_messages
			WHERE status = 'pending'
			ORDER BY created_at, id
			LIMIT $1
		`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		result = make([]domain.OutboxMessage, 0, limit)
		for rows.Next() {
			var msg domain.OutboxMessage
			if err := rows.Scan(
				&msg.ID,
				&msg.AggregateType,
				&msg.AggregateID,
				&msg.EventType,
				&msg.Payload,
			); err != nil {
				return fmt.Errorf("scan outbox message: %w", err)
			}
			result = append(result, msg)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("pull pending outbox messages: %w", err)
	}
	return result, nil
}

func (r *outboxRepository) Stats(ctx context.Context) (domain.OutboxStats, error) {
	var (
		stats  domain.OutboxStats
		oldest sql.NullTime
	)

	err := r.store.withRetry(ctx, "outbox stats", func(ctx context.Context) error {
		return r.store.db.QueryRowContext(ctx, `
			SELECT COUNT(*), MIN(created_at)
			FROM outbox_messages
			WHERE status = 'pending'
		`).Scan(&stats.PendingCount, &oldest)
	})
	if err != nil {
		return domain.OutboxStats{}, fmt.Errorf("outbox stats query failed: %w", err)
	}

	if oldest.Valid {
		stats.OldestPendingAt = oldest.Time.UTC()
	}
	return stats, nil
}

func (r *outboxRepository) MarkSent(ctx context.Context, id string) error {
	return r.markStatus(ctx, id, "sent")
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id string) error {
	return r.markStatus(ctx, id, "failed")
}

func (r *outboxRepository) markStatus(ctx context.Context, id, status string) error {
	var affected int64
	err := r.store.withRetry(ctx, "mark outbox "+status, func(ctx context.Context) error {
		res, err := r.store.db.ExecContext(ctx, `
			UPDATE outbox_messages
			SET status = $2,
			    attempt_count = attempt_count + 1,
			    updated_at = $3
			WHERE id = $1
		`, id, status, r.store.stamp())
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("mark outbox message as %s: %w", status, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: message %s not found", domain.ErrOutboxPublish, id)
	}
	return nil
}

var _ domain.OutboxRepository = (*outboxRepository)(nil)
