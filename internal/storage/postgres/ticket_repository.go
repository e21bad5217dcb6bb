package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/cowboyjack911/pc-install-repairhub/internal/domain"
)

const ticketColumns = `id, asset_id, title, description, status, created_at, updated_at, completed_at,
	estimated_cost, actual_cost, technician_notes, version`

type ticketRepository struct {
	store *Store
}

// GetByID выбирает заявку, устройство и владельца одним запросом.
func (r *ticketRepository) GetByID(ctx context.Context, ticketID uuid.UUID) (domain.TicketDetails, error) {
	var details domain.TicketDetails
	err := r.store.withRetry(ctx, "get ticket", func(ctx context.Context) error {
		row := r.store.db.QueryRowContext(ctx, `
			SELECT
				t.id, t.asset_id, t.title, t.description, t.status, t.created_at, t.updated_at,
				t.completed_at, t.estimated_cost, t.actual_cost, t.technician_notes, t.version,
				a.id, a.customer_id, a.device_type, a.manufacturer, a.model, a.serial_number,
				a.notes, a.created_at, a.updated_at,
				c.id, c.first_name, c.last_name, c.email, c.phone_number, c.address,
				c.created_at, c.updated_at
			FROM ticketing.repair_tickets t
			JOIN ticketing.assets a ON a.id = t.asset_id
			JOIN ticketing.customers c ON c.id = a.customer_id
			WHERE t.id = $1
		`, ticketID)

		var (
			t      = &details.Ticket
			a      = &details.Asset
			c      = &details.Customer
			status string
		)
		if err := row.Scan(
			&t.ID, &t.AssetID, &t.Title, &t.Description, &status, &t.CreatedAt, &t.UpdatedAt,
			&t.CompletedAt, &t.EstimatedCost, &t.ActualCost, &t.TechnicianNotes, &t.Version,
			&a.ID, &a.CustomerID, &a.DeviceType, &a.Manufacturer, &a.Model, &a.SerialNumber,
			&a.Notes, &a.CreatedAt, &a.UpdatedAt,
			&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.PhoneNumber, &c.Address,
			&c.CreatedAt, &c.UpdatedAt,
		); err != nil {
			return err
		}
		parsed, err := domain.ParseRepairStatus(status)
		if err != nil {
			return err
		}
		t.Status = parsed
		normalizeTimes(&t.CreatedAt, t.UpdatedAt, t.CompletedAt)
		normalizeTimes(&a.CreatedAt, a.UpdatedAt)
		normalizeTimes(&c.CreatedAt, c.UpdatedAt)
		return nil
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.TicketDetails{}, domain.ErrTicketNotFound
		}
		return domain.TicketDetails{}, fmt.Errorf("select ticket details: %w", err)
	}
	return details, nil
}

// GetByAsset возвращает заявки устройства, новые первыми.
func (r *ticketRepository) GetByAsset(ctx context.Context, assetID uuid.UUID) ([]domain.RepairTicket, error) {
	var tickets []domain.RepairTicket
	err := r.store.withRetry(ctx, "list tickets", func(ctx context.Context) error {
		rows, err := r.store.db.QueryContext(ctx, `
			SELECT `+ticketColumns+`
			FROM ticketing.repair_tickets
			WHERE asset_id = $1
			ORDER BY created_at DESC, id DESC
		`, assetID)
		if err != nil {
			return err
		}
		defer rows.Close()

		tickets = make([]domain.RepairTicket, 0)
		for rows.Next() {
			ticket, err := scanTicket(rows)
			if err != nil {
				return fmt.Errorf("scan ticket row: %w", err)
			}
			tickets = append(tickets, ticket)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	return tickets, nil
}

// Create сохраняет новую заявку в статусе Created.
func (r *ticketRepository) Create(ctx context.Context, ticket domain.RepairTicket) (domain.RepairTicket, error) {
	if err := ticket.PrepareForCreate(r.store.now()); err != nil {
		return domain.RepairTicket{}, err
	}

	attempt := 0
	err := r.store.withRetry(ctx, "create ticket", func(ctx context.Context) error {
		attempt++
		_, err := r.store.db.ExecContext(ctx, `
			INSERT INTO ticketing.repair_tickets (
				id, asset_id, title, description, status, created_at,
				estimated_cost, actual_cost, technician_notes, version
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`,
			ticket.ID, ticket.AssetID, ticket.Title, ticket.Description, string(ticket.Status),
			ticket.CreatedAt, ticket.EstimatedCost, ticket.ActualCost, ticket.TechnicianNotes,
			ticket.Version,
		)
		if attempt > 1 && isUniqueViolation(err) {
			// Предыдущая попытка могла закоммитить строку, но ответ потерялся.
			if r.alreadyInserted(ctx, ticket) {
				r.store.logger.WithField("ticket_id", ticket.ID).Info("Ticket insert applied by earlier attempt")
				return nil
			}
		}
		return err
	})
	switch {
	case err == nil:
		return ticket, nil
	case isForeignKeyViolation(err):
		return domain.RepairTicket{}, domain.ErrAssetNotFound
	case isUniqueViolation(err):
		return domain.RepairTicket{}, domain.ErrDuplicateID
	default:
		return domain.RepairTicket{}, fmt.Errorf("insert ticket: %w", err)
	}
}

// Update блокирует строку заявки, проверяет переход статуса и заменяет изменяемые поля.
func (r *ticketRepository) Update(ctx context.Context, ticket domain.RepairTicket) error {
	return r.store.inTx(ctx, "update ticket", func(ctx context.Context, tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT `+ticketColumns+`
			FROM ticketing.repair_tickets
			WHERE id = $1
			FOR UPDATE
		`, ticket.ID)
		stored, err := scanTicket(row)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrTicketNotFound
		}
		if err != nil {
			return fmt.Errorf("lock ticket: %w", err)
		}

		next, err := domain.ApplyUpdate(stored, ticket, r.store.policy, r.store.now())
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE ticketing.repair_tickets
			SET title = $2,
			    description = $3,
			    status = $4,
			    updated_at = $5,
			    completed_at = $6,
			    estimated_cost = $7,
			    actual_cost = $8,
			    technician_notes = $9,
			    version = $10
			WHERE id = $1 AND version = $11
		`,
			next.ID, next.Title, next.Description, string(next.Status), next.UpdatedAt,
			next.CompletedAt, next.EstimatedCost, next.ActualCost, next.TechnicianNotes,
			next.Version, stored.Version,
		)
		if err != nil {
			return fmt.Errorf("update ticket: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update ticket rows affected: %w", err)
		}
		if affected == 0 {
			return domain.ErrTicketVersionConflict
		}
		return nil
	})
}

// alreadyInserted проверяет, что строка с ID заявки совпадает с той, которую мы вставляли.
func (r *ticketRepository) alreadyInserted(ctx context.Context, ticket domain.RepairTicket) bool {
	row := r.store.db.QueryRowContext(ctx, `
		SELECT `+ticketColumns+`
		FROM ticketing.repair_tickets
		WHERE id = $1
	`, ticket.ID)
	stored, err := scanTicket(row)
	if err != nil {
		return false
	}
	return stored.AssetID == ticket.AssetID &&
		stored.Title == ticket.Title &&
		stored.Description == ticket.Description &&
		stored.Status == ticket.Status &&
		stored.CreatedAt.Equal(ticket.CreatedAt) &&
		stored.EstimatedCost == ticket.EstimatedCost &&
		stored.Version == ticket.Version
}

func scanTicket(row rowScanner) (domain.RepairTicket, error) {
	var (
		t      domain.RepairTicket
		status string
	)
	if err := row.Scan(
		&t.ID, &t.AssetID, &t.Title, &t.Description, &status, &t.CreatedAt, &t.UpdatedAt,
		&t.CompletedAt, &t.EstimatedCost, &t.ActualCost, &t.TechnicianNotes, &t.Version,
	); err != nil {
		return domain.RepairTicket{}, err
	}
	parsed, err := domain.ParseRepairStatus(status)
	if err != nil {
		return domain.RepairTicket{}, err
	}
	t.Status = parsed
	normalizeTimes(&t.CreatedAt, t.UpdatedAt, t.CompletedAt)
	return t, nil
}

var _ domain.TicketingRepository = (*ticketRepository)(nil)
