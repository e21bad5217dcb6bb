package kafka

import "time"

// EventType определяет тип события заявки
type EventType string

const (
	EventTypeTicketCreated       EventType = "ticket.created"
	EventTypeTicketStatusChanged EventType = "ticket.status_changed"
	EventTypeTicketCostRecorded  EventType = "ticket.cost_recorded"
	EventTypeTicketNotesUpdated  EventType = "ticket.notes_updated"
	EventTypePartsReserved       EventType = "ticket.parts_reserved"
	EventTypePartsReleased       EventType = "ticket.parts_released"
)

// AggregateTypeTicket задаёт aggregate_type для событий заявок в outbox.
const AggregateTypeTicket = "repair_ticket"

// Topics для Kafka
const (
	TopicTicketEvents    = "repairhub.ticket.events"
	TopicDeadLetterQueue = "repairhub.ticket.dlq"
)

// Kafka headers, по которым потребители фильтруют события без разбора payload
const (
	HeaderEventType     = "x-event-type"
	HeaderAggregateType = "x-aggregate-type"
	HeaderOutboxID      = "x-outbox-id"
)

// TicketEvent описывает payload события заявки, которое уходит через outbox.
type TicketEvent struct {
	EventType      EventType      `json:"event_type"`
	TicketID       string         `json:"ticket_id"`
	AssetID        string         `json:"asset_id"`
	Status         string         `json:"status"`
	PreviousStatus string         `json:"previous_status,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// NewTicketEvent создает событие заявки; occurred задаёт момент изменения.
func NewTicketEvent(eventType EventType, ticketID, assetID, status string, occurred time.Time, metadata map[string]any) *TicketEvent {
	if occurred.IsZero() {
		occurred = time.Now()
	}
	return &TicketEvent{
		EventType: eventType,
		TicketID:  ticketID,
		AssetID:   assetID,
		Status:    status,
		Timestamp: occurred.UTC(),
		Metadata:  metadata,
	}
}
