package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cowboyjack911/pc-install-repairhub/internal/domain"
)

// Store хранит данные модуля ticketing в памяти (для разработки и тестов).
// Клиенты, устройства и заявки живут под одним мьютексом, поэтому проверки
// ссылочной целостности и запись выполняются атомарно.
type Store struct {
	mu        sync.RWMutex
	customers map[uuid.UUID]domain.Customer
	assets    map[uuid.UUID]domain.Asset
	tickets   map[uuid.UUID]domain.RepairTicket

	policy domain.TransitionPolicy
	now    func() time.Time
}

// Option настраивает Store.
type Option func(*Store)

// WithTransitionPolicy задаёт политику переходов статусов заявок.
func WithTransitionPolicy(policy domain.TransitionPolicy) Option {
	return func(s *Store) {
		s.policy = policy
	}
}

// WithClock подменяет источник времени (используется в тестах).
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore создаёт пустое in-memory хранилище.
func NewStore(opts ...Option) *Store {
	s := &Store{
		customers: make(map[uuid.UUID]domain.Customer),
		assets:    make(map[uuid.UUID]domain.Asset),
		tickets:   make(map[uuid.UUID]domain.RepairTicket),
		policy:    domain.DefaultTransitionPolicy(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Customers возвращает репозиторий клиентов поверх общего хранилища.
func (s *Store) Customers() domain.CustomerRepository {
	return &customerRepository{store: s}
}

// Assets возвращает репозиторий устройств поверх общего хранилища.
func (s *Store) Assets() domain.AssetRepository {
	return &assetRepository{store: s}
}

// Tickets возвращает границу модуля ticketing поверх общего хранилища.
func (s *Store) Tickets() domain.TicketingRepository {
	return &ticketRepository{store: s}
}

// Ping всегда успешен, пока контекст не отменён.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) stamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneMoney(v *domain.Money) *domain.Money {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneCustomer(c domain.Customer) domain.Customer {
	c.Address = cloneString(c.Address)
	c.UpdatedAt = cloneTime(c.UpdatedAt)
	return c
}

func cloneAsset(a domain.Asset) domain.Asset {
	a.Manufacturer = cloneString(a.Manufacturer)
	a.Model = cloneString(a.Model)
	a.SerialNumber = cloneString(a.SerialNumber)
	a.Notes = cloneString(a.Notes)
	a.UpdatedAt = cloneTime(a.UpdatedAt)
	return a
}

func cloneTicket(t domain.RepairTicket) domain.RepairTicket {
	t.UpdatedAt = cloneTime(t.UpdatedAt)
	t.CompletedAt = cloneTime(t.CompletedAt)
	t.ActualCost = cloneMoney(t.ActualCost)
	t.TechnicianNotes = cloneString(t.TechnicianNotes)
	return t
}
