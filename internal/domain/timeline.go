package domain

import (
	"time"

	"github.com/google/uuid"
)

// TimelineEventType описывает тип записи в истории обслуживания заявки.
type TimelineEventType string

const (
	TimelineTicketCreated    TimelineEventType = "ticket_created"
	TimelineStatusChanged    TimelineEventType = "status_changed"
	TimelineCostRecorded     TimelineEventType = "cost_recorded"
	TimelineNotesUpdated     TimelineEventType = "notes_updated"
	TimelinePartsReserved    TimelineEventType = "parts_reserved"
	TimelinePartsUnavailable TimelineEventType = "parts_unavailable"
	TimelinePartsReleased    TimelineEventType = "parts_released"
)

// TimelineEvent описывает событие в жизненном цикле заявки.
type TimelineEvent struct {
	TicketID uuid.UUID
	Type     TimelineEventType
	Reason   string
	Occurred time.Time
}
