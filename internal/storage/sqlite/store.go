package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	sqlitedriver "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cowboyjack911/pc-install-repairhub/internal/domain"
)

// Store: встраиваемое SQLite-хранилище на gorm для однопользовательской установки мастерской.
// Все операции идут через одно соединение, поэтому транзакции выполняются последовательно.
type Store struct {
	db     *gorm.DB
	policy domain.TransitionPolicy
	now    func() time.Time
	logger *log.Entry
}

// Option настраивает Store.
type Option func(*Store)

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

// Open открывает файл базы (или ":memory:") и создаёт недостающие таблицы.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite path is empty")
	}

	db, err := gorm.Open(sqlitedriver.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sqlite handle: %w", err)
	}
	// ":memory:" живёт в пределах одного соединения.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	s := &Store{
		db:     db,
		policy: domain.DefaultTransitionPolicy(),
		now:    time.Now,
		logger: log.WithField("component", "sqlite-store"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := db.WithContext(ctx).AutoMigrate(allModels()...); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate sqlite schema: %w", err)
	}

	s.logger.WithField("path", path).Info("SQLite store opened")
	return s, nil
}

// DB возвращает gorm-подключение.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Customers возвращает SQLite-реализацию CustomerRepository.
func (s *Store) Customers() domain.CustomerRepository {
	return &customerRepository{store: s}
}

// Assets возвращает SQLite-реализацию AssetRepository.
func (s *Store) Assets() domain.AssetRepository {
	return &assetRepository{store: s}
}

// Tickets возвращает SQLite-реализацию TicketingRepository.
func (s *Store) Tickets() domain.TicketingRepository {
	return &ticketRepository{store: s}
}

// Inventory возвращает SQLite-реализацию модуля inventory.
func (s *Store) Inventory() *InventoryRepository {
	return &InventoryRepository{store: s}
}

// Timeline возвращает SQLite-реализацию TimelineRepository.
func (s *Store) Timeline() domain.TimelineRepository {
	return &timelineRepository{store: s}
}

// Outbox возвращает SQLite-реализацию OutboxRepository.
func (s *Store) Outbox() domain.OutboxRepository {
	return &outboxRepository{store: s}
}

// Ping проверяет доступность базы.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite store is not initialized")
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close закрывает базу.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) stamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// transaction выполняет fn в транзакции; любая ошибка fn откатывает изменения.
func (s *Store) transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// exists проверяет наличие строки модели с заданным условием.
func exists(tx *gorm.DB, model any, query string, args ...any) (bool, error) {
	var count int64
	if err := tx.Model(model).Where(query, args...).Limit(1).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
