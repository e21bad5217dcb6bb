package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TicketingRepository задаёт границу модуля ticketing. Другие модули работают с заявками только через неё.
type TicketingRepository interface {
	// GetByID возвращает заявку вместе с устройством и его владельцем или ErrTicketNotFound.
	GetByID(ctx context.Context, ticketID uuid.UUID) (TicketDetails, error)
	// GetByAsset возвращает все заявки устройства, новые первыми.
	GetByAsset(ctx context.Context, assetID uuid.UUID) ([]RepairTicket, error)
	// Create сохраняет новую заявку; ErrAssetNotFound, если устройства нет.
	Create(ctx context.Context, ticket RepairTicket) (RepairTicket, error)
	// Update полностью заменяет изменяемые поля; ErrTicketNotFound, если заявки нет,
	// ErrTicketVersionConflict, если Version устарела.
	Update(ctx context.Context, ticket RepairTicket) error
}

// CustomerRepository хранит клиентов. Удаление клиента с устройствами запрещено.
type CustomerRepository interface {
	Register(ctx context.Context, customer Customer) (Customer, error)
	Get(ctx context.Context, id uuid.UUID) (Customer, error)
	UpdateContact(ctx context.Context, customer Customer) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// AssetRepository хранит устройства. Удаление устройства с заявками запрещено.
type AssetRepository interface {
	Register(ctx context.Context, asset Asset) (Asset, error)
	Get(ctx context.Context, id uuid.UUID) (Asset, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]Asset, error)
	// Update меняет атрибуты устройства, в том числе владельца (передача устройства).
	Update(ctx context.Context, asset Asset) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// InventoryRepository задаёт границу модуля inventory.
type InventoryRepository interface {
	// GetStockLevel возвращает число свободных единиц; для неизвестного товара 0.
	GetStockLevel(ctx context.Context, productID uuid.UUID) (int, error)
	// ReserveStock резервирует quantity целиком или ничего; false при нехватке остатка.
	ReserveStock(ctx context.Context, productID uuid.UUID, quantity int) (bool, error)
	// ReleaseStock возвращает резерв в свободный остаток; false, если резерва меньше quantity.
	ReleaseStock(ctx context.Context, productID uuid.UUID, quantity int) (bool, error)
}

// StockAdmin задаёт складские остатки (приёмка, инвентаризация).
type StockAdmin interface {
	SetStockLevel(ctx context.Context, productID uuid.UUID, available int) error
	GetStock(ctx context.Context, productID uuid.UUID) (StockLevel, error)
}

// TimelineRepository хранит историю обслуживания заявок.
type TimelineRepository interface {
	Append(ctx context.Context, event TimelineEvent) error
	List(ctx context.Context, ticketID uuid.UUID) ([]TimelineEvent, error)
}

// OutboxPublisher публикует события из outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// Pinger проверяет доступность хранилища (для health checks).
type Pinger interface {
	Ping(ctx context.Context) error
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
