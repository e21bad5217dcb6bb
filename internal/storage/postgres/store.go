package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	log "github.com/sirupsen/logrus"

	"github.com/cowboyjack911/pc-install-repairhub/internal/domain"
)

const (
	defaultConnTimeout     = 5 * time.Second
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute

	opTimeout = 5 * time.Second
)

// Store оборачивает SQL-подключение к PostgreSQL и раздаёт репозитории модулей.
type Store struct {
	db     *sql.DB
	retry  RetryConfig
	policy domain.TransitionPolicy
	now    func() time.Time
	logger *log.Entry
}

// Option настраивает Store.
type Option func(*Store)

// WithRetryConfig задаёт политику повторов для временных ошибок БД.
func WithRetryConfig(cfg RetryConfig) Option {
	return func(s *Store) {
		s.retry = cfg
	}
}

// WithTransitionPolicy задаёт политику переходов статусов заявок.
func WithTransitionPolicy(policy domain.TransitionPolicy) Option {
	return func(s *Store) {
		s.policy = policy
	}
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger задаёт логгер адаптера.
func WithLogger(logger *log.Entry) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Open открывает подключение к PostgreSQL и проверяет доступность базы.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return NewFromDB(db, opts...), nil
}

// NewFromDB оборачивает уже открытое подключение (например, go-sqlmock в тестах).
func NewFromDB(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		retry:  DefaultRetryConfig(),
		policy: domain.DefaultTransitionPolicy(),
		now:    time.Now,
		logger: log.WithField("component", "postgres-store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB возвращает raw SQL DB, когда нужен низкоуровневый доступ.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Customers возвращает PostgreSQL-реализацию CustomerRepository.
func (s *Store) Customers() domain.CustomerRepository {
	return &customerRepository{store: s}
}

// Assets возвращает PostgreSQL-реализацию AssetRepository.
func (s *Store) Assets() domain.AssetRepository {
	return &assetRepository{store: s}
}

// Tickets возвращает PostgreSQL-реализацию TicketingRepository.
func (s *Store) Tickets() domain.TicketingRepository {
	return &ticketRepository{store: s}
}

// Inventory возвращает PostgreSQL-реализацию модуля inventory.
func (s *Store) Inventory() *InventoryRepository {
	return &InventoryRepository{store: s}
}

// Timeline возвращает PostgreSQL-реализацию TimelineRepository.
func (s *Store) Timeline() domain.TimelineRepository {
	return &timelineRepository{store: s}
}

// Outbox возвращает PostgreSQL-реализацию OutboxRepository.
func (s *Store) Outbox() domain.OutboxRepository {
	return &outboxRepository{store: s}
}

// Ping проверяет доступность подключения.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres store is not initialized")
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

// EnsureSchema применяет все up-миграции.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.MigrateUp(ctx, 0)
}

// Close закрывает подключение к БД.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) stamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// inTx выполняет fn в транзакции с повторами временных ошибок.
// Откат при ошибке гарантирует, что отменённая операция не оставляет изменений.
func (s *Store) inTx(ctx context.Context, operation string, fn func(ctx context.Context, tx *sql.Tx) error) error {
	return s.withRetry(ctx, operation, func(ctx context.Context) (err error) {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() {
			if err != nil {
				_ = tx.Rollback()
			}
		}()

		if err = fn(ctx, tx); err != nil {
			return err
		}
		if err = tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", operation, err)
		}
		return nil
	})
}
