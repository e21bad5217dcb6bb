package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/cowboyjack911/pc-install-repairhub/internal/domain"
	"github.com/cowboyjack911/pc-install-repairhub/internal/health"
	"github.com/cowboyjack911/pc-install-repairhub/internal/storage/memory"
	"github.com/cowboyjack911/pc-install-repairhub/internal/storage/postgres"
	"github.com/cowboyjack911/pc-install-repairhub/internal/storage/sqlite"
)

// runtimeDependencies содержит репозитории выбранного хранилища и функция их закрытия.
type runtimeDependencies struct {
	customers  domain.CustomerRepository
	assets     domain.AssetRepository
	tickets    domain.TicketingRepository
	inventory  domain.InventoryRepository
	stockAdmin domain.StockAdmin
	timeline   domain.TimelineRepository
	outbox     domain.OutboxRepository

	storageChecker health.Checker
	closeFn        func() error
}

func (d *runtimeDependencies) close(logger *log.Entry) {
	if d == nil || d.closeFn == nil {
		return
	}
	if err := d.closeFn(); err != nil {
		logger.WithError(err).Warn("failed to close storage")
		return
	}
	logger.Info("storage closed")
}

func transitionPolicy(cfg Config) domain.TransitionPolicy {
	policy := domain.DefaultTransitionPolicy()
	policy.RequireActualCostOnCompletion = cfg.RequireActualCost
	return policy
}

// initRuntimeDependencies открывает хранилище по cfg.StorageDriver.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	policy := transitionPolicy(cfg)

	switch cfg.StorageDriver {
	case StorageDriverMemory, "":
		store := memory.NewStore(memory.WithTransitionPolicy(policy))
		inventory := memory.NewInventoryRepository()
		logger.Info("using in-memory storage")
		return &runtimeDependencies{
			customers:      store.Customers(),
			assets:         store.Assets(),
			tickets:        store.Tickets(),
			inventory:      inventory,
			stockAdmin:     inventory,
			timeline:       memory.NewTimelineRepository(),
			outbox:         memory.NewOutboxRepository(),
			storageChecker: health.NewPingChecker("storage", store),
		}, nil

	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres storage requires postgres_dsn")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN,
			postgres.WithTransitionPolicy(policy),
			postgres.WithLogger(logger.WithField("storage", StorageDriverPostgres)),
		)
		if err != nil {
			return nil, err
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply postgres migrations: %w", err)
			}
			logger.Info("postgres migrations applied")
		}
		inventory := store.Inventory()
		return &runtimeDependencies{
			customers:      store.Customers(),
			assets:         store.Assets(),
			tickets:        store.Tickets(),
			inventory:      inventory,
			stockAdmin:     inventory,
			timeline:       store.Timeline(),
			outbox:         store.Outbox(),
			storageChecker: health.NewPingChecker("storage", store),
			closeFn:        store.Close,
		}, nil

	case StorageDriverSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath,
			sqlite.WithTransitionPolicy(policy),
			sqlite.WithLogger(logger.WithField("storage", StorageDriverSQLite)),
		)
		if err != nil {
			return nil, err
		}
		inventory := store.Inventory()
		return &runtimeDependencies{
			customers:      store.Customers(),
			assets:         store.Assets(),
			tickets:        store.Tickets(),
			inventory:      inventory,
			stockAdmin:     inventory,
			timeline:       store.Timeline(),
			outbox:         store.Outbox(),
			storageChecker: health.NewPingChecker("storage", store),
			closeFn:        store.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}
