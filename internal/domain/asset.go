package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Asset описывает устройство клиента. История ремонтов привязана к нему, а не к владельцу.
type Asset struct {
	ID           uuid.UUID  `json:"id"`
	CustomerID   uuid.UUID  `json:"customer_id" validate:"required"`
	DeviceType   string     `json:"device_type" validate:"required,notblank,max=100"`
	Manufacturer *string    `json:"manufacturer,omitempty" validate:"omitempty,max=100"`
	Model        *string    `json:"model,omitempty" validate:"omitempty,max=200"`
	SerialNumber *string    `json:"serial_number,omitempty" validate:"omitempty,max=100"`
	Notes        *string    `json:"notes,omitempty" validate:"omitempty,max=2000"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

// AssetDetails содержит необязательные атрибуты устройства.
type AssetDetails struct {
	Manufacturer string
	Model        string
	SerialNumber string
	Notes        string
}

// NewAsset создаёт устройство клиента; пустые необязательные поля превращаются в nil.
func NewAsset(customerID uuid.UUID, deviceType string, details AssetDetails) (Asset, error) {
	a := Asset{
		CustomerID:   customerID,
		DeviceType:   strings.TrimSpace(deviceType),
		Manufacturer: trimOptional(&details.Manufacturer),
		Model:        trimOptional(&details.Model),
		SerialNumber: trimOptional(&details.SerialNumber),
		Notes:        trimOptional(&details.Notes),
	}
	if err := a.Validate(); err != nil {
		return Asset{}, err
	}
	return a, nil
}

// Validate проверяет владельца, тип устройства и ограничения длины.
func (a *Asset) Validate() error {
	return validateStruct(a)
}
