package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Customer описывает владельца устройств. Заявки на клиента не ссылаются, только через Asset.
type Customer struct {
	ID          uuid.UUID  `json:"id"`
	FirstName   string     `json:"first_name" validate:"required,notblank,max=100"`
	LastName    string     `json:"last_name" validate:"required,notblank,max=100"`
	Email       string     `json:"email" validate:"required,notblank,max=256,email"`
	PhoneNumber string     `json:"phone_number" validate:"required,notblank,max=50"`
	Address     *string    `json:"address,omitempty" validate:"omitempty,max=500"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// NewCustomer нормализует ввод и проверяет инварианты нового клиента.
func NewCustomer(firstName, lastName, email, phone string, address *string) (Customer, error) {
	c := Customer{
		FirstName:   strings.TrimSpace(firstName),
		LastName:    strings.TrimSpace(lastName),
		Email:       strings.TrimSpace(email),
		PhoneNumber: strings.TrimSpace(phone),
		Address:     trimOptional(address),
	}
	if err := c.Validate(); err != nil {
		return Customer{}, err
	}
	return c, nil
}

// FullName возвращает имя для отображения.
func (c Customer) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Validate проверяет обязательные поля и ограничения длины.
func (c *Customer) Validate() error {
	return validateStruct(c)
}
