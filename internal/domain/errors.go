package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation является базовой ошибкой валидации; все *ValidationError сопоставляются с ней через errors.Is.
	ErrValidation = errors.New("validation failed")

	// ErrCustomerNotFound возвращается, если клиент не найден в репозитории.
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrAssetNotFound возвращается, если устройство не найдено в репозитории.
	ErrAssetNotFound = errors.New("asset not found")
	// ErrTicketNotFound возвращается, если заявка на ремонт не найдена.
	ErrTicketNotFound = errors.New("repair ticket not found")

	// ErrCustomerHasAssets: удаление клиента запрещено, пока у него есть устройства.
	ErrCustomerHasAssets = errors.New("customer still owns assets")
	// ErrAssetHasTickets: удаление устройства запрещено, пока по нему есть заявки.
	ErrAssetHasTickets = errors.New("asset still has repair tickets")

	// ErrInvalidTransition означает недопустимый переход статуса заявки.
	ErrInvalidTransition = errors.New("invalid repair status transition")
	// ErrActualCostRequired: завершить заявку без фактической стоимости нельзя.
	ErrActualCostRequired = errors.New("actual cost is required to complete a ticket")
	// ErrTicketClosed: заявка в терминальном статусе больше не изменяется.
	ErrTicketClosed = errors.New("repair ticket is closed")
	// ErrDuplicateID: запись с таким идентификатором уже существует.
	ErrDuplicateID = errors.New("entity with this id already exists")
	// ErrTicketVersionConflict: заявку успели изменить после того, как вызывающий её прочитал.
	ErrTicketVersionConflict = errors.New("repair ticket version conflict")

	// ErrStoreUnavailable означает временную ошибку хранилища после исчерпания повторных попыток.
	ErrStoreUnavailable = errors.New("store temporarily unavailable")
	// ErrOutboxPublish возвращается при ошибке публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// ValidationError описывает нарушение инварианта конкретного поля.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError создаёт ошибку валидации поля.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is позволяет сравнивать любую ошибку валидации с ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// IsValidation проверяет, что ошибка относится к валидации входных данных.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound проверяет, что ошибка означает отсутствие записи.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrAssetNotFound) ||
		errors.Is(err, ErrTicketNotFound)
}

// IsReferential проверяет нарушение ссылочной целостности (restrict-on-delete).
func IsReferential(err error) bool {
	return errors.Is(err, ErrCustomerHasAssets) || errors.Is(err, ErrAssetHasTickets)
}

// IsConflict проверяет бизнес-конфликт, который вызывающая сторона может обработать.
func IsConflict(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrActualCostRequired) ||
		errors.Is(err, ErrTicketClosed) ||
		errors.Is(err, ErrDuplicateID) ||
		errors.Is(err, ErrTicketVersionConflict)
}

// IsVersionConflict проверяет, что запись устарела и её нужно перечитать.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrTicketVersionConflict)
}
