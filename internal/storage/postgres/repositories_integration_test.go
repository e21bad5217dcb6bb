package postgres

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cowboyjack911/pc-install-repairhub/internal/domain"
)

func seedPostgresAsset(t *testing.T, store *Store) (domain.Customer, domain.Asset) {
	t.Helper()
	ctx := context.Background()

	customer, err := domain.NewCustomer("Jane", "Doe", "jane@example.com", "+1 555 0100", nil)
	require.NoError(t, err)
	customer, err = store.Customers().Register(ctx, customer)
	require.NoError(t, err)

	asset, err := domain.NewAsset(customer.ID, "Phone", domain.AssetDetails{Model: "iPhone 13", SerialNumber: "ABC123"})
	require.NoError(t, err)
	asset, err = store.Assets().Register(ctx, asset)
	require.NoError(t, err)
	return customer, asset
}

func TestPostgres_JaneDoeScenario(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	customer, asset := seedPostgresAsset(t, store)
	tickets := store.Tickets()

	ticket, err := domain.NewRepairTicket(asset.ID, "Cracked screen", "Front glass shattered", domain.MustParseMoney("150.00"))
	require.NoError(t, err)
	created, err := tickets.Create(ctx, ticket)
	require.NoError(t, err)
	require.Equal(t, domain.RepairStatusCreated, created.Status)

	reload := func() domain.RepairTicket {
		details, err := tickets.GetByID(ctx, created.ID)
		require.NoError(t, err)
		return details.Ticket
	}

	current := reload()
	current.Status = domain.RepairStatusInProgress
	require.NoError(t, tickets.Update(ctx, current))

	current = reload()
	cost := domain.MustParseMoney("145.00")
	current.ActualCost = &cost
	require.NoError(t, tickets.Update(ctx, current))

	current = reload()
	current.Status = domain.RepairStatusCompleted
	require.NoError(t, tickets.Update(ctx, current))

	stale := created
	stale.Title = "Overwritten"
	require.ErrorIs(t, tickets.Update(ctx, stale), domain.ErrTicketVersionConflict)

	details, err := tickets.GetByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, details.Ticket.CompletedAt)
	assert.Equal(t, customer.ID, details.Customer.ID)
	assert.Equal(t, "iPhone 13", *details.Asset.Model)
	assert.Equal(t, "145.00", details.Ticket.ActualCost.String())
	assert.Equal(t, "150.00", details.Ticket.EstimatedCost.String())

	history, err := tickets.GetByAsset(ctx, asset.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.RepairStatusCompleted, history[0].Status)

	completedAt := *details.Ticket.CompletedAt
	err = tickets.Update(ctx, details.Ticket)
	require.NoError(t, err)
	again, err := tickets.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, again.Ticket.CompletedAt.Equal(completedAt))
	assert.Equal(t, "Cracked screen", again.Ticket.Title)
	assert.Equal(t, int64(5), again.Ticket.Version)
}

func TestPostgres_ReferentialRules(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx := context.Background()

	ticket, err := domain.NewRepairTicket(uuid.New(), "t", "d", 0)
	require.NoError(t, err)
	_, err = store.Tickets().Create(ctx, ticket)
	require.ErrorIs(t, err, domain.ErrAssetNotFound)

	customer, asset := seedPostgresAsset(t, store)
	ticket.AssetID = asset.ID
	_, err = store.Tickets().Create(ctx, ticket)
	require.NoError(t, err)

	require.ErrorIs(t, store.Customers().Delete(ctx, customer.ID), domain.ErrCustomerHasAssets)
	require.ErrorIs(t, store.Assets().Delete(ctx, asset.ID), domain.ErrAssetHasTickets)
	require.ErrorIs(t, store.Assets().Delete(ctx, uuid.New()), domain.ErrAssetNotFound)

	asset.CustomerID = uuid.New()
	require.ErrorIs(t, store.Assets().Update(ctx, asset), domain.ErrCustomerNotFound)
}

func TestPostgres_ConcurrentReservations(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx := context.Background()
	inventory := store.Inventory()
	product := uuid.New()

	require.NoError(t, inventory.SetStockLevel(ctx, product, 3))
	ok, err := inventory.ReserveStock(ctx, product, 5)
	require.NoError(t, err)
	require.False(t, ok)
	level, err := inventory.GetStockLevel(ctx, product)
	require.NoError(t, err)
	require.Equal(t, 3, level)

	require.NoError(t, inventory.SetStockLevel(ctx, product, 5))
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)
	for _, q := range []int{3, 4} {
		wg.Add(1)
		go func(q int) {
			defer wg.Done()
			if ok, err := inventory.ReserveStock(ctx, product, q); err == nil && ok {
				successes.Add(1)
			}
		}(q)
	}
	wg.Wait()
	assert.Equal(t, int32(1), successes.Load())
}

func TestPostgres_TimelineAndOutbox(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx := context.Background()
	_, asset := seedPostgresAsset(t, store)

	ticket, err := domain.NewRepairTicket(asset.ID, "t", "d", 0)
	require.NoError(t, err)
	created, err := store.Tickets().Create(ctx, ticket)
	require.NoError(t, err)

	require.NoError(t, store.Timeline().Append(ctx, domain.TimelineEvent{
		TicketID: created.ID,
		Type:     domain.TimelineTicketCreated,
		Reason:   "created",
	}))
	events, err := store.Timeline().List(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)

	msg, err := store.Outbox().Enqueue(ctx, domain.OutboxMessage{
		AggregateType: "repair_ticket",
		AggregateID:   created.ID.String(),
		EventType:     "ticket.created",
		Payload:       []byte(`{}`),
	})
	require.NoError(t, err)

	stats, err := store.Outbox().Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.PendingCount)

	require.NoError(t, store.Outbox().MarkSent(ctx, msg.ID))
	pending, err := store.Outbox().PullPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
