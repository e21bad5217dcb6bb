package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/cowboyjack911/pc-install-repairhub/internal/domain"
)

// InventoryRepository: PostgreSQL-реализация модуля inventory.
// Резерв и снятие резерва выполняются одиночными условными UPDATE, поэтому конкурирующие
// резервы сериализуются блокировкой строки и не могут превысить остаток.
type InventoryRepository struct {
	store *Store
}

func (r *InventoryRepository) GetStockLevel(ctx context.Context, productID uuid.UUID) (int, error) {
	if err := domain.ValidateProductID(productID); err != nil {
		return 0, err
	}

	var available int
	err := r.store.withRetry(ctx, "get stock level", func(ctx context.Context) error {
		return r.store.db.QueryRowContext(ctx, `
			SELECT available FROM inventory.stock_levels WHERE product_id = $1
		`, productID).Scan(&available)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("select stock level: %w", err)
	}
	return available, nil
}

func (r *InventoryRepository) ReserveStock(ctx context.Context, productID uuid.UUID, quantity int) (bool, error) {
	return r.move(ctx, "reserve stock", productID, quantity, `
		UPDATE inventory.stock_levels
		SET available = available - $2,
		    reserved = reserved + $2,
		    updated_at = $3
		WHERE product_id = $1
		  AND available >= $2
	`)
}

func (r *InventoryRepository) ReleaseStock(ctx context.Context, productID uuid.UUID, quantity int) (bool, error) {
	return r.move(ctx, "release stock", productID, quantity, `
		UPDATE inventory.stock_levels
		SET available = available + $2,
		    reserved = reserved - $2,
		    updated_at = $3
		WHERE product_id = $1
		  AND reserved >= $2
	`)
}

func (r *InventoryRepository) move(ctx context.Context, operation string, productID uuid.UUID, quantity int, query string) (bool, error) {
	if err := domain.ValidateProductID(productID); err != nil {
		return false, err
	}
	if err := domain.ValidateQuantity(quantity); err != nil {
		return false, err
	}

	var affected int64
	err := r.store.withRetry(ctx, operation, func(ctx context.Context) error {
		res, err := r.store.db.ExecContext(ctx, query, productID, quantity, r.store.stamp())
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return false, fmt.Errorf("%s: %w", operation, err)
	}
	return affected == 1, nil
}

// SetStockLevel задаёт свободный остаток товара, создавая строку при необходимости.
func (r *InventoryRepository) SetStockLevel(ctx context.Context, productID uuid.UUID, available int) error {
	if err := domain.ValidateProductID(productID); err != nil {
		return err
	}
	if available < 0 {
		return domain.NewValidationError("available", "must be non-negative")
	}

	err := r.store.withRetry(ctx, "set stock level", func(ctx context.Context) error {
		_, err := r.store.db.ExecContext(ctx, `
			INSERT INTO inventory.stock_levels (product_id, available, reserved, updated_at)
			VALUES ($1, $2, 0, $3)
			ON CONFLICT (product_id) DO UPDATE
			SET available = EXCLUDED.available,
			    updated_at = EXCLUDED.updated_at
		`, productID, available, r.store.stamp())
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert stock level: %w", err)
	}
	return nil
}

// GetStock возвращает свободный и зарезервированный остаток товара.
func (r *InventoryRepository) GetStock(ctx context.Context, productID uuid.UUID) (domain.StockLevel, error) {
	if err := domain.ValidateProductID(productID); err != nil {
		return domain.StockLevel{}, err
	}

	level := domain.StockLevel{ProductID: productID}
	err := r.store.withRetry(ctx, "get stock", func(ctx context.Context) error {
		return r.store.db.QueryRowContext(ctx, `
			SELECT available, reserved, updated_at
			FROM inventory.stock_levels
			WHERE product_id = $1
		`, productID).Scan(&level.Available, &level.Reserved, &level.UpdatedAt)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StockLevel{ProductID: productID}, nil
	}
	if err != nil {
		return domain.StockLevel{}, fmt.Errorf("select stock: %w", err)
	}
	level.UpdatedAt = level.UpdatedAt.UTC()
	return level, nil
}

var (
	_ domain.InventoryRepository = (*InventoryRepository)(nil)
	_ domain.StockAdmin          = (*InventoryRepository)(nil)
)
