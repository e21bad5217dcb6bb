package domain

import (
	"time"

	"github.com/google/uuid"
)

// StockLevel описывает складской остаток товара: свободные и зарезервированные единицы.
type StockLevel struct {
	ProductID uuid.UUID
	Available int
	Reserved  int
	UpdatedAt time.Time
}

// ValidateQuantity проверяет количество для резерва/снятия резерва.
func ValidateQuantity(quantity int) error {
	if quantity <= 0 {
		return NewValidationError("quantity", "must be greater than zero")
	}
	return nil
}

// ValidateProductID проверяет, что идентификатор товара задан.
func ValidateProductID(productID uuid.UUID) error {
	if productID == uuid.Nil {
		return NewValidationError("product_id", "is required")
	}
	return nil
}
