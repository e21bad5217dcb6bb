package sqlite

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cowboyjack911/pc-install-repairhub/internal/domain"
)

type assetRepository struct {
	store *Store
}

func (r *assetRepository) Register(ctx context.Context, asset domain.Asset) (domain.Asset, error) {
	if err := asset.Validate(); err != nil {
		return domain.Asset{}, err
	}
	if asset.ID == uuid.Nil {
		asset.ID = domain.NewID()
	}
	asset.CreatedAt = r.store.stamp()
	asset.UpdatedAt = nil

	err := r.store.transaction(ctx, func(tx *gorm.DB) error {
		owner, err := exists(tx, &CustomerModel{}, "id = ?", asset.CustomerID.String())
		if err != nil {
			return err
		}
		if !owner {
			return domain.ErrCustomerNotFound
		}
		dup, err := exists(tx, &AssetModel{}, "id = ?", asset.ID.String())
		if err != nil {
			return err
		}
		if dup {
			return domain.ErrDuplicateID
		}
		model := assetToModel(asset)
		return tx.Create(&model).Error
	})
	if err != nil {
		if errors.Is(err, domain.ErrCustomerNotFound) || errors.Is(err, domain.ErrDuplicateID) {
			return domain.Asset{}, err
		}
		return domain.Asset{}, fmt.Errorf("register asset: %w", err)
	}
	return asset, nil
}

func (r *assetRepository) Get(ctx context.Context, id uuid.UUID) (domain.Asset, error) {
	var model AssetModel
	err := r.store.db.WithContext(ctx).Where("id = ?", id.String()).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Asset{}, domain.ErrAssetNotFound
		}
		return domain.Asset{}, fmt.Errorf("get asset: %w", err)
	}
	return assetToDomain(model)
}

func (r *assetRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.Asset, error) {
	var models []AssetModel
	err := r.store.db.WithContext(ctx).
		Where("customer_id = ?", customerID.String()).
		Order("created_at ASC").Order("id ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("list customer assets: %w", err)
	}

	result := make([]domain.Asset, 0, len(models))
	for _, m := range models {
		asset, err := assetToDomain(m)
		if err != nil {
			return nil, err
		}
		result = append(result, asset)
	}
	return result, nil
}

func (r *assetRepository) Update(ctx context.Context, asset domain.Asset) error {
	if err := asset.Validate(); err != nil {
		return err
	}

	err := r.store.transaction(ctx, func(tx *gorm.DB) error {
		var current AssetModel
		if err := tx.Where("id = ?", asset.ID.String()).First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrAssetNotFound
			}
			return err
		}
		owner, err := exists(tx, &CustomerModel{}, "id = ?", asset.CustomerID.String())
		if err != nil {
			return err
		}
		if !owner {
			return domain.ErrCustomerNotFound
		}

		stamp := domain.NextUpdateStamp(utcPtr(current.UpdatedAt), r.store.now())
		return tx.Model(&AssetModel{}).Where("id = ?", current.ID).Updates(map[string]any{
			"customer_id":   asset.CustomerID.String(),
			"device_type":   asset.DeviceType,
			"manufacturer":  asset.Manufacturer,
			"model":         asset.Model,
			"serial_number": asset.SerialNumber,
			"notes":         asset.Notes,
			"updated_at":    stamp,
		}).Error
	})
	if err != nil {
		if errors.Is(err, domain.ErrAssetNotFound) || errors.Is(err, domain.ErrCustomerNotFound) {
			return err
		}
		return fmt.Errorf("update asset: %w", err)
	}
	return nil
}

func (r *assetRepository) Delete(ctx context.Context, id uuid.UUID) error {
	err := r.store.transaction(ctx, func(tx *gorm.DB) error {
		found, err := exists(tx, &AssetModel{}, "id = ?", id.String())
		if err != nil {
			return err
		}
		if !found {
			return domain.ErrAssetNotFound
		}
		hasTickets, err := exists(tx, &RepairTicketModel{}, "asset_id = ?", id.String())
		if err != nil {
			return err
		}
		if hasTickets {
			return domain.ErrAssetHasTickets
		}
		return tx.Where("id = ?", id.String()).Delete(&AssetModel{}).Error
	})
	if err != nil {
		if errors.Is(err, domain.ErrAssetNotFound) || errors.Is(err, domain.ErrAssetHasTickets) {
			return err
		}
		return fmt.Errorf("delete asset: %w", err)
	}
	return nil
}

var _ domain.AssetRepository = (*assetRepository)(nil)
