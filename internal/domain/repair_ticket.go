package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const maxNotesLength = 2000

// RepairTicket описывает одно обращение по конкретному устройству.
// Клиент достижим только через Asset, прямой ссылки нет.
type RepairTicket struct {
	ID              uuid.UUID    `json:"id"`
	AssetID         uuid.UUID    `json:"asset_id" validate:"required"`
	Title           string       `json:"title" validate:"required,notblank,max=200"`
	Description     string       `json:"description" validate:"required,notblank,max=2000"`
	Status          RepairStatus `json:"status"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       *time.Time   `json:"updated_at,omitempty"`
	CompletedAt     *time.Time   `json:"completed_at,omitempty"`
	EstimatedCost   Money        `json:"estimated_cost"`
	ActualCost      *Money       `json:"actual_cost,omitempty"`
	TechnicianNotes *string      `json:"technician_notes,omitempty" validate:"omitempty,max=2000"`
	// Version растёт на каждом сохранении; Update принимает только текущую версию.
	Version         int64        `json:"version"`
}

// TicketDetails содержит снимок заявки вместе с устройством и его владельцем.
type TicketDetails struct {
	Ticket   RepairTicket `json:"ticket"`
	Asset    Asset        `json:"asset"`
	Customer Customer     `json:"customer"`
}

// NewRepairTicket создаёт заявку в статусе Created.
func NewRepairTicket(assetID uuid.UUID, title, description string, estimate Money) (RepairTicket, error) {
	t := RepairTicket{
		AssetID:       assetID,
		Title:         strings.TrimSpace(title),
		Description:   strings.TrimSpace(description),
		Status:        RepairStatusCreated,
		EstimatedCost: estimate,
	}
	if err := t.Validate(); err != nil {
		return RepairTicket{}, err
	}
	return t, nil
}

// Validate проверяет поля, денежные суммы и статус заявки.
func (t *RepairTicket) Validate() error {
	if err := validateStruct(t); err != nil {
		return err
	}
	if !t.Status.Valid() {
		return NewValidationError("status", fmt.Sprintf("unknown value %q", t.Status))
	}
	if err := t.EstimatedCost.Validate("estimated_cost"); err != nil {
		return err
	}
	if t.ActualCost != nil {
		if err := t.ActualCost.Validate("actual_cost"); err != nil {
			return err
		}
	}
	return nil
}

// TransitionTo переводит заявку в новый статус по политике по умолчанию.
func (t *RepairTicket) TransitionTo(next RepairStatus, now time.Time) error {
	return t.TransitionWith(DefaultTransitionPolicy(), next, now)
}

// TransitionWith переводит заявку в новый статус по заданной политике.
// При ошибке заявка не изменяется. CompletedAt выставляется один раз при входе в Completed.
func (t *RepairTicket) TransitionWith(policy TransitionPolicy, next RepairStatus, now time.Time) error {
	if err := policy.Check(t, next); err != nil {
		return err
	}

	stamp := NextUpdateStamp(t.UpdatedAt, now)
	t.Status = next
	t.UpdatedAt = &stamp
	if next == RepairStatusCompleted && t.CompletedAt == nil {
		completed := stamp
		t.CompletedAt = &completed
	}
	return nil
}

// RecordActualCost фиксирует фактическую стоимость ремонта.
func (t *RepairTicket) RecordActualCost(cost Money, now time.Time) error {
	if t.Status.IsTerminal() {
		return ErrTicketClosed
	}
	if err := cost.Validate("actual_cost"); err != nil {
		return err
	}
	t.ActualCost = &cost
	t.touch(now)
	return nil
}

// UpdateEstimate меняет смету.
func (t *RepairTicket) UpdateEstimate(estimate Money, now time.Time) error {
	if t.Status.IsTerminal() {
		return ErrTicketClosed
	}
	if err := estimate.Validate("estimated_cost"); err != nil {
		return err
	}
	t.EstimatedCost = estimate
	t.touch(now)
	return nil
}

// UpdateTechnicianNotes заменяет заметки мастера; пустая строка очищает их.
func (t *RepairTicket) UpdateTechnicianNotes(notes string, now time.Time) error {
	if t.Status.IsTerminal() {
		return ErrTicketClosed
	}
	trimmed := trimOptional(&notes)
	if trimmed != nil && utf8.RuneCountInString(*trimmed) > maxNotesLength {
		return NewValidationError("technician_notes", fmt.Sprintf("must be at most %d characters", maxNotesLength))
	}
	t.TechnicianNotes = trimmed
	t.touch(now)
	return nil
}

func (t *RepairTicket) touch(now time.Time) {
	stamp := NextUpdateStamp(t.UpdatedAt, now)
	t.UpdatedAt = &stamp
}

// PrepareForCreate нормализует заявку перед первой записью: статус Created,
// серверные отметки времени, новый идентификатор при необходимости.
func (t *RepairTicket) PrepareForCreate(now time.Time) error {
	if t.Status == "" {
		t.Status = RepairStatusCreated
	}
	if t.Status != RepairStatusCreated {
		return NewValidationError("status", "new tickets must start in created")
	}
	if err := t.Validate(); err != nil {
		return err
	}
	if t.ID == uuid.Nil {
		t.ID = NewID()
	}
	t.CreatedAt = now.UTC().Truncate(time.Microsecond)
	t.Version = 1
	t.UpdatedAt = nil
	t.CompletedAt = nil
	return nil
}

// ApplyUpdate сливает входящую версию заявки с сохранённой: проверяет версию и переход статуса,
// сохраняет CompletedAt после первого выставления и ставит новую отметку updated_at.
// Возвращает запись, которую нужно сохранить. Устаревшая incoming.Version даёт ErrTicketVersionConflict.
func ApplyUpdate(stored, incoming RepairTicket, policy TransitionPolicy, now time.Time) (RepairTicket, error) {
	if incoming.Status == "" {
		incoming.Status = stored.Status
	}
	if err := incoming.Validate(); err != nil {
		return RepairTicket{}, err
	}
	if incoming.AssetID != stored.AssetID {
		return RepairTicket{}, NewValidationError("asset_id", "cannot be changed after creation")
	}
	if incoming.Version != stored.Version {
		return RepairTicket{}, fmt.Errorf("%w: ticket %s has version %d, got %d",
			ErrTicketVersionConflict, stored.ID, stored.Version, incoming.Version)
	}

	next := stored
	next.Title = incoming.Title
	next.Description = incoming.Description
	next.EstimatedCost = incoming.EstimatedCost
	next.ActualCost = incoming.ActualCost
	next.TechnicianNotes = incoming.TechnicianNotes

	if stored.Status.IsTerminal() {
		if incoming.Status != stored.Status {
			return RepairTicket{}, fmt.Errorf("%w: %w: %s -> %s", ErrInvalidTransition, ErrTicketClosed, stored.Status, incoming.Status)
		}
		if !sameTicketContent(stored, next) {
			return RepairTicket{}, ErrTicketClosed
		}
	}

	if incoming.Status != stored.Status {
		if err := policy.Check(&next, incoming.Status); err != nil {
			return RepairTicket{}, err
		}
		next.Status = incoming.Status
	}

	stamp := NextUpdateStamp(stored.UpdatedAt, now)
	next.UpdatedAt = &stamp
	next.Version = stored.Version + 1
	if next.Status == RepairStatusCompleted && stored.CompletedAt == nil {
		completed := stamp
		next.CompletedAt = &completed
	}
	return next, nil
}

func sameTicketContent(a, b RepairTicket) bool {
	return a.Title == b.Title &&
		a.Description == b.Description &&
		a.EstimatedCost == b.EstimatedCost &&
		equalMoneyPtr(a.ActualCost, b.ActualCost) &&
		equalStringPtr(a.TechnicianNotes, b.TechnicianNotes)
}

func equalMoneyPtr(a, b *Money) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
