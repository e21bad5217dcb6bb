package domain

import "fmt"

// RepairStatus описывает жизненный цикл заявки на ремонт.
type RepairStatus string

const (
	// заявка принята, работа не начата
	RepairStatusCreated RepairStatus = "created"
	// ждём согласования сметы клиентом
	RepairStatusAwaitingQuoteApproval RepairStatus = "awaiting_quote_approval"
	// мастер работает с устройством
	RepairStatusInProgress RepairStatus = "in_progress"
	// ждём запчасти
	RepairStatusAwaitingParts RepairStatus = "awaiting_parts"
	// терминальный
	RepairStatusCompleted RepairStatus = "completed"
	// терминальный
	RepairStatusCancelled RepairStatus = "cancelled"
)

var repairStatusTransitions = map[RepairStatus][]RepairStatus{
	RepairStatusCreated: {
		RepairStatusAwaitingQuoteApproval,
		RepairStatusInProgress,
		RepairStatusCancelled,
	},
	RepairStatusAwaitingQuoteApproval: {
		RepairStatusInProgress,
		RepairStatusCancelled,
	},
	RepairStatusInProgress: {
		RepairStatusAwaitingParts,
		RepairStatusCompleted,
		RepairStatusCancelled,
	},
	RepairStatusAwaitingParts: {
		RepairStatusInProgress,
		RepairStatusCancelled,
	},
	RepairStatusCompleted: {},
	RepairStatusCancelled: {},
}

// AllRepairStatuses возвращает статусы в порядке жизненного цикла.
func AllRepairStatuses() []RepairStatus {
	return []RepairStatus{
		RepairStatusCreated,
		RepairStatusAwaitingQuoteApproval,
		RepairStatusInProgress,
		RepairStatusAwaitingParts,
		RepairStatusCompleted,
		RepairStatusCancelled,
	}
}

// ParseRepairStatus превращает строку из хранилища в статус.
func ParseRepairStatus(s string) (RepairStatus, error) {
	status := RepairStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("unknown repair status %q", s)
	}
	return status, nil
}

func (s RepairStatus) String() string {
	return string(s)
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s RepairStatus) Valid() bool {
	_, ok := repairStatusTransitions[s]
	return ok
}

// IsTerminal сообщает, что из статуса переходов нет (Completed, Cancelled).
func (s RepairStatus) IsTerminal() bool {
	return s == RepairStatusCompleted || s == RepairStatusCancelled
}

// CanTransitionTo проверяет переход по таблице по умолчанию.
func (s RepairStatus) CanTransitionTo(next RepairStatus) bool {
	return DefaultTransitionPolicy().Allows(s, next)
}

// TransitionPolicy задаёт настраиваемую бизнес-политику переходов статусов.
type TransitionPolicy struct {
	Transitions map[RepairStatus][]RepairStatus
	// RequireActualCostOnCompletion запрещает Completed без ActualCost.
	RequireActualCostOnCompletion bool
}

// DefaultTransitionPolicy возвращает таблицу переходов мастерской с обязательной фактической стоимостью.
func DefaultTransitionPolicy() TransitionPolicy {
	return TransitionPolicy{
		Transitions:                   repairStatusTransitions,
		RequireActualCostOnCompletion: true,
	}
}

// Allows проверяет, разрешён ли переход from → next.
func (p TransitionPolicy) Allows(from, next RepairStatus) bool {
	transitions := p.Transitions
	if transitions == nil {
		transitions = repairStatusTransitions
	}
	for _, allowed := range transitions[from] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Check проверяет переход для конкретной заявки, включая правило фактической стоимости.
func (p TransitionPolicy) Check(t *RepairTicket, next RepairStatus) error {
	if !next.Valid() {
		return NewValidationError("status", fmt.Sprintf("unknown value %q", next))
	}
	if t.Status.IsTerminal() {
		return fmt.Errorf("%w: %w: %s -> %s", ErrInvalidTransition, ErrTicketClosed, t.Status, next)
	}
	if !p.Allows(t.Status, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, next)
	}
	if next == RepairStatusCompleted && p.RequireActualCostOnCompletion && t.ActualCost == nil {
		return ErrActualCostRequired
	}
	return nil
}
