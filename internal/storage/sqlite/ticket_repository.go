package sqlite

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cowboyjack911/pc-install-repairhub/internal/domain"
)

type ticketRepository struct {
	store *Store
}

// GetByID читает заявку, устройство и владельца в одной транзакции.
func (r *ticketRepository) GetByID(ctx context.Context, ticketID uuid.UUID) (domain.TicketDetails, error) {
	var details domain.TicketDetails
	err := r.store.transaction(ctx, func(tx *gorm.DB) error {
		var ticket RepairTicketModel
		if err := tx.Where("id = ?", ticketID.String()).First(&ticket).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrTicketNotFound
			}
			return err
		}
		var asset AssetModel
		if err := tx.Where("id = ?", ticket.AssetID).First(&asset).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrAssetNotFound
			}
			return err
		}
		var customer CustomerModel
		if err := tx.Where("id = ?", asset.CustomerID).First(&customer).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrCustomerNotFound
			}
			return err
		}

		var err error
		if details.Ticket, err = ticketToDomain(ticket); err != nil {
			return err
		}
		if details.Asset, err = assetToDomain(asset); err != nil {
			return err
		}
		details.Customer, err = customerToDomain(customer)
		return err
	})
	if err != nil {
		if domain.IsNotFound(err) {
			return domain.TicketDetails{}, err
		}
		return domain.TicketDetails{}, fmt.Errorf("get ticket: %w", err)
	}
	return details, nil
}

func (r *ticketRepository) GetByAsset(ctx context.Context, assetID uuid.UUID) ([]domain.RepairTicket, error) {
	var models []RepairTicketModel
	err := r.store.db.WithContext(ctx).
		Where("asset_id = ?", assetID.String()).
		Order("created_at DESC").Order("id DESC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("list asset tickets: %w", err)
	}

	result := make([]domain.RepairTicket, 0, len(models))
	for _, m := range models {
		ticket, err := ticketToDomain(m)
		if err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, nil
}

func (r *ticketRepository) Create(ctx context.Context, ticket domain.RepairTicket) (domain.RepairTicket, error) {
	if err := ticket.PrepareForCreate(r.store.now()); err != nil {
		return domain.RepairTicket{}, err
	}

	err := r.store.transaction(ctx, func(tx *gorm.DB) error {
		found, err := exists(tx, &AssetModel{}, "id = ?", ticket.AssetID.String())
		if err != nil {
			return err
		}
		if !found {
			return domain.ErrAssetNotFound
		}
		dup, err := exists(tx, &RepairTicketModel{}, "id = ?", ticket.ID.String())
		if err != nil {
			return err
		}
		if dup {
			return domain.ErrDuplicateID
		}
		model := ticketToModel(ticket)
		return tx.Create(&model).Error
	})
	if err != nil {
		if errors.Is(err, domain.ErrAssetNotFound) || errors.Is(err, domain.ErrDuplicateID) {
			return domain.RepairTicket{}, err
		}
		return domain.RepairTicket{}, fmt.Errorf("create ticket: %w", err)
	}
	return ticket, nil
}

// Update перечитывает заявку в транзакции и записывает результат ApplyUpdate.
func (r *ticketRepository) Update(ctx context.Context, ticket domain.RepairTicket) error {
	err := r.store.transaction(ctx, func(tx *gorm.DB) error {
		var current RepairTicketModel
		if err := tx.Where("id = ?", ticket.ID.String()).First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrTicketNotFound
			}
			return err
		}
		stored, err := ticketToDomain(current)
		if err != nil {
			return err
		}
		next, err := domain.ApplyUpdate(stored, ticket, r.store.policy, r.store.now())
		if err != nil {
			return err
		}

		m := ticketToModel(next)
		res := tx.Model(&RepairTicketModel{}).
			Where("id = ? AND version = ?", m.ID, stored.Version).
			Updates(map[string]any{
				"title":                m.Title,
				"description":          m.Description,
				"status":               m.Status,
				"updated_at":           m.UpdatedAt,
				"completed_at":         m.CompletedAt,
				"estimated_cost_minor": m.EstimatedCostMinor,
				"actual_cost_minor":    m.ActualCostMinor,
				"technician_notes":     m.TechnicianNotes,
				"version":              m.Version,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrTicketVersionConflict
		}
		return nil
	})
	if err != nil {
		if domain.IsValidation(err) || domain.IsNotFound(err) || domain.IsConflict(err) {
			return err
		}
		return fmt.Errorf("update ticket: %w", err)
	}
	return nil
}

var _ domain.TicketingRepository = (*ticketRepository)(nil)
