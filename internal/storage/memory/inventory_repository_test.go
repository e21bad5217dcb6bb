package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cowboyjack911/pc-install-repairhub/internal/domain"
)

func TestInventory_ReserveMoreThanAvailable(t *testing.T) {
	repo := NewInventoryRepository()
	ctx := context.Background()
	product := uuid.New()
	require.NoError(t, repo.SetStockLevel(ctx, product, 3))

	ok, err := repo.ReserveStock(ctx, product, 5)
	require.NoError(t, err)
	assert.False(t, ok)

	level, err := repo.GetStockLevel(ctx, product)
	require.NoError(t, err)
	assert.Equal(t, 3, level)
}

func TestInventory_ReserveAndRelease(t *testing.T) {
	repo := NewInventoryRepository()
	ctx := context.Background()
	product := uuid.New()
	require.NoError(t, repo.SetStockLevel(ctx, product, 10))

	ok, err := repo.ReserveStock(ctx, product, 4)
	require.NoError(t, err)
	require.True(t, ok)

	stock, err := repo.GetStock(ctx, product)
	require.NoError(t, err)
	assert.Equal(t, 6, stock.Available)
	assert.Equal(t, 4, stock.Reserved)

	ok, err = repo.ReleaseStock(ctx, product, 5)
	require.NoError(t, err)
	assert.False(t, ok, "cannot release more than reserved")

	ok, err = repo.ReleaseStock(ctx, product, 4)
	require.NoError(t, err)
	assert.True(t, ok)

	level, err := repo.GetStockLevel(ctx, product)
	require.NoError(t, err)
	assert.Equal(t, 10, level)
}

func TestInventory_UnknownProductAndBadQuantity(t *testing.T) {
	repo := NewInventoryRepository()
	ctx := context.Background()

	level, err := repo.GetStockLevel(ctx, uuid.New())
	require.NoError(t, err)
	assert.Zero(t, level)

	ok, err := repo.ReserveStock(ctx, uuid.New(), 1)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.ReserveStock(ctx, uuid.New(), 0)
	assert.True(t, domain.IsValidation(err))
	_, err = repo.ReleaseStock(ctx, uuid.New(), -1)
	assert.True(t, domain.IsValidation(err))
}

func TestInventory_ConcurrentReservationsNeverOversell(t *testing.T) {
	repo := NewInventoryRepository()
	ctx := context.Background()
	product := uuid.New()
	require.NoError(t, repo.SetStockLevel(ctx, product, 5))

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)
	for _, q := range []int{3, 4} {
		wg.Add(1)
		go func(q int) {
			defer wg.Done()
			ok, err := repo.ReserveStock(ctx, product, q)
			if err == nil && ok {
				successes.Add(1)
			}
		}(q)
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	stock, err := repo.GetStock(ctx, product)
	require.NoError(t, err)
	assert.Equal(t, 5, stock.Available+stock.Reserved)
}
