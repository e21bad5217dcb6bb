package sqlite

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cowboyjack911/pc-install-repairhub/internal/domain"
)

// InventoryRepository: SQLite-реализация модуля inventory.
// Резерв выполняется одним условным UPDATE, частичных резервов не бывает.
type InventoryRepository struct {
	store *Store
}

func (r *InventoryRepository) GetStockLevel(ctx context.Context, productID uuid.UUID) (int, error) {
	level, err := r.GetStock(ctx, productID)
	if err != nil {
		return 0, err
	}
	return level.Available, nil
}

func (r *InventoryRepository) ReserveStock(ctx context.Context, productID uuid.UUID, quantity int) (bool, error) {
	return r.move(ctx, productID, quantity, "available", "reserved")
}

func (r *InventoryRepository) ReleaseStock(ctx context.Context, productID uuid.UUID, quantity int) (bool, error) {
	return r.move(ctx, productID, quantity, "reserved", "available")
}

// move переносит quantity единиц из колонки from в колонку to, если в from их достаточно.
func (r *InventoryRepository) move(ctx context.Context, productID uuid.UUID, quantity int, from, to string) (bool, error) {
	if err := domain.ValidateProductID(productID); err != nil {
		return false, err
	}
	if err := domain.ValidateQuantity(quantity); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	res := r.store.db.WithContext(ctx).
		Model(&StockLevelModel{}).
		Where("product_id = ? AND "+from+" >= ?", productID.String(), quantity).
		Updates(map[string]any{
			from:         gorm.Expr(from+" - ?", quantity),
			to:           gorm.Expr(to+" + ?", quantity),
			"updated_at": r.store.stamp(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("move stock %s -> %s: %w", from, to, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *InventoryRepository) SetStockLevel(ctx context.Context, productID uuid.UUID, available int) error {
	if err := domain.ValidateProductID(productID); err != nil {
		return err
	}
	if available < 0 {
		return domain.NewValidationError("available", "must be non-negative")
	}

	model := StockLevelModel{
		ProductID: productID.String(),
		Available: available,
		UpdatedAt: r.store.stamp(),
	}
	err := r.store.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"available", "updated_at"}),
	}).Create(&model).Error
	if err != nil {
		return fmt.Errorf("set stock level: %w", err)
	}
	return nil
}

func (r *InventoryRepository) GetStock(ctx context.Context, productID uuid.UUID) (domain.StockLevel, error) {
	if err := domain.ValidateProductID(productID); err != nil {
		return domain.StockLevel{}, err
	}

	var model StockLevelModel
	err := r.store.db.WithContext(ctx).Where("product_id = ?", productID.String()).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.StockLevel{ProductID: productID}, nil
		}
		return domain.StockLevel{}, fmt.Errorf("get stock level: %w", err)
	}
	return domain.StockLevel{
		ProductID: productID,
		Available: model.Available,
		Reserved:  model.Reserved,
		UpdatedAt: model.UpdatedAt.UTC(),
	}, nil
}

var (
	_ domain.InventoryRepository = (*InventoryRepository)(nil)
	_ domain.StockAdmin          = (*InventoryRepository)(nil)
)
