package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cowboyjack911/pc-install-repairhub/internal/domain"
)

type stockRecord struct {
	available int
	reserved  int
	updatedAt time.Time
}

// InventoryRepository реализует модуль inventory в памяти.
// Резерв и снятие резерва выполняются под мьютексом, частичных резервов не бывает.
type InventoryRepository struct {
	mu    sync.Mutex
	items map[uuid.UUID]*stockRecord
}

// NewInventoryRepository создаёт пустой склад.
func NewInventoryRepository() *InventoryRepository {
	return &InventoryRepository{items: make(map[uuid.UUID]*stockRecord)}
}

// GetStockLevel возвращает свободный остаток; для неизвестного товара 0.
func (r *InventoryRepository) GetStockLevel(ctx context.Context, productID uuid.UUID) (int, error) {
	if err := domain.ValidateProductID(productID); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.items[productID]; ok {
		return rec.available, nil
	}
	return 0, nil
}

// ReserveStock переводит quantity единиц из свободных в зарезервированные.
func (r *InventoryRepository) ReserveStock(ctx context.Context, productID uuid.UUID, quantity int) (bool, error) {
	if err := validateStockArgs(productID, quantity); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.items[productID]
	if !ok || rec.available < quantity {
		return false, nil
	}
	rec.available -= quantity
	rec.reserved += quantity
	rec.updatedAt = time.Now().UTC()
	return true, nil
}

// ReleaseStock возвращает зарезервированные единицы в свободный остаток.
func (r *InventoryRepository) ReleaseStock(ctx context.Context, productID uuid.UUID, quantity int) (bool, error) {
	if err := validateStockArgs(productID, quantity); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.items[productID]
	if !ok || rec.reserved < quantity {
		return false, nil
	}
	rec.reserved -= quantity
	rec.available += quantity
	rec.updatedAt = time.Now().UTC()
	return true, nil
}

// SetStockLevel задаёт свободный остаток; резерв не меняется.
func (r *InventoryRepository) SetStockLevel(ctx context.Context, productID uuid.UUID, available int) error {
	if err := domain.ValidateProductID(productID); err != nil {
		return err
	}
	if available < 0 {
		return domain.NewValidationError("available", "must be non-negative")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.items[productID]
	if !ok {
		rec = &stockRecord{}
		r.items[productID] = rec
	}
	rec.available = available
	rec.updatedAt = time.Now().UTC()
	return nil
}

// GetStock возвращает полный остаток товара.
func (r *InventoryRepository) GetStock(ctx context.Context, productID uuid.UUID) (domain.StockLevel, error) {
	if err := domain.ValidateProductID(productID); err != nil {
		return domain.StockLevel{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.StockLevel{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	level := domain.StockLevel{ProductID: productID}
	if rec, ok := r.items[productID]; ok {
		level.Available = rec.available
		level.Reserved = rec.reserved
		level.UpdatedAt = rec.updatedAt
	}
	return level, nil
}

func validateStockArgs(productID uuid.UUID, quantity int) error {
	if err := domain.ValidateProductID(productID); err != nil {
		return err
	}
	return domain.ValidateQuantity(quantity)
}

var (
	_ domain.InventoryRepository = (*InventoryRepository)(nil)
	_ domain.StockAdmin          = (*InventoryRepository)(nil)
)
