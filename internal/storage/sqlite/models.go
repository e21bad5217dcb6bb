package sqlite

import "time"

// Связи между таблицами не объявлены: ссылочную целостность (включая restrict-on-delete)
// проверяют репозитории внутри транзакций.

type CustomerModel struct {
	ID          string     `gorm:"primaryKey;size:36"`
	FirstName   string     `gorm:"size:100;not null"`
	LastName    string     `gorm:"size:100;not null"`
	Email       string     `gorm:"size:256;not null"`
	PhoneNumber string     `gorm:"size:50;not null"`
	Address     *string    `gorm:"size:500"`
	CreatedAt   time.Time  `gorm:"not null;autoCreateTime:false"`
	UpdatedAt   *time.Time `gorm:"autoUpdateTime:false"`
}

func (CustomerModel) TableName() string {
	return "customers"
}

type AssetModel struct {
	ID           string     `gorm:"primaryKey;size:36"`
	CustomerID   string     `gorm:"size:36;not null;index"`
	DeviceType   string     `gorm:"size:100;not null"`
	Manufacturer *string    `gorm:"size:100"`
	Model        *string    `gorm:"size:200"`
	SerialNumber *string    `gorm:"size:100"`
	Notes        *string    `gorm:"size:2000"`
	CreatedAt    time.Time  `gorm:"not null;autoCreateTime:false"`
	UpdatedAt    *time.Time `gorm:"autoUpdateTime:false"`
}

func (AssetModel) TableName() string {
	return "assets"
}

type RepairTicketModel struct {
	ID                 string     `gorm:"primaryKey;size:36"`
	AssetID            string     `gorm:"size:36;not null;index:idx_tickets_asset_created,priority:1"`
	Title              string     `gorm:"size:200;not null"`
	Description        string     `gorm:"size:2000;not null"`
	Status             string     `gorm:"size:32;not null"`
	CreatedAt          time.Time  `gorm:"not null;autoCreateTime:false;index:idx_tickets_asset_created,priority:2"`
	UpdatedAt          *time.Time `gorm:"autoUpdateTime:false"`
	CompletedAt        *time.Time
	EstimatedCostMinor int64   `gorm:"not null;default:0"`
	ActualCostMinor    *int64
	TechnicianNotes    *string `gorm:"size:2000"`
	Version            int64   `gorm:"not null;default:1"`
}

func (RepairTicketModel) TableName() string {
	return "repair_tickets"
}

type TimelineEventModel struct {
	ID       uint      `gorm:"primaryKey"`
	TicketID string    `gorm:"size:36;not null;index"`
	Type     string    `gorm:"size:32;not null"`
	Reason   string    `gorm:"type:text;not null"`
	Occurred time.Time `gorm:"not null;index"`
}

func (TimelineEventModel) TableName() string {
	return "ticket_timeline"
}

type StockLevelModel struct {
	ProductID string    `gorm:"primaryKey;size:36"`
	Available int       `gorm:"not null;default:0"`
	Reserved  int       `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (StockLevelModel) TableName() string {
	return "stock_levels"
}

type OutboxMessageModel struct {
	ID            string    `gorm:"primaryKey;size:64"`
	AggregateType string    `gorm:"size:64;not null"`
	AggregateID   string    `gorm:"size:64;not null"`
	EventType     string    `gorm:"size:64;not null"`
	Payload       []byte    `gorm:"not null"`
	Status        string    `gorm:"size:16;not null;index:idx_outbox_pending,priority:1"`
	AttemptCount  int       `gorm:"not null;default:0"`
	CreatedAt     time.Time `gorm:"not null;index:idx_outbox_pending,priority:2"`
	UpdatedAt     time.Time `gorm:"not null"`
}

func (OutboxMessageModel) TableName() string {
	return "outbox_messages"
}

func allModels() []any {
	return []any{
		&CustomerModel{},
		&AssetModel{},
		&RepairTicketModel{},
		&TimelineEventModel{},
		&StockLevelModel{},
		&OutboxMessageModel{},
	}
}
