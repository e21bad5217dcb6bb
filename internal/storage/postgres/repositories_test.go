package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cowboyjack911/pc-install-repairhub/internal/domain"
)

var ticketRowColumns = []string{
	"id", "asset_id", "title", "description", "status", "created_at", "updated_at",
	"completed_at", "estimated_cost", "actual_cost", "technician_notes", "version",
}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := NewFromDB(db, WithRetryConfig(RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2,
	}))
	return store, mock
}

func TestInventory_ReserveStockConditionalUpdate(t *testing.T) {
	store, mock := newMockStore(t)
	product := uuid.New()

	mock.ExpectExec(`UPDATE inventory.stock_levels`).
		WithArgs(product.String(), 2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE inventory.stock_levels`).
		WithArgs(product.String(), 5, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := store.Inventory().ReserveStock(context.Background(), product, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Inventory().ReserveStock(context.Background(), product, 5)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInventory_RejectsNonPositiveQuantity(t *testing.T) {
	store, mock := newMockStore(t)

	_, err := store.Inventory().ReleaseStock(context.Background(), uuid.New(), 0)
	require.True(t, domain.IsValidation(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInventory_UnknownProductHasZeroStock(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT available FROM inventory.stock_levels`).
		WillReturnRows(sqlmock.NewRows([]string{"available"}))

	level, err := store.Inventory().GetStockLevel(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Zero(t, level)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithRetry_RecoversFromSerializationFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE inventory.stock_levels`).
		WillReturnError(&pgconn.PgError{Code: pgSerializationFailure})
	mock.ExpectExec(`UPDATE inventory.stock_levels`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := store.Inventory().ReleaseStock(context.Background(), uuid.New(), 1)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithRetry_ExhaustedAttemptsWrapStoreUnavailable(t *testing.T) {
	store, mock := newMockStore(t)

	for i := 0; i < 3; i++ {
		mock.ExpectExec(`UPDATE inventory.stock_levels`).
			WillReturnError(&pgconn.PgError{Code: pgDeadlockDetected})
	}

	_, err := store.Inventory().ReserveStock(context.Background(), uuid.New(), 1)
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "serialization", err: &pgconn.PgError{Code: "40001"}, want: true},
		{name: "deadlock", err: &pgconn.PgError{Code: "40P01"}, want: true},
		{name: "connection failure", err: &pgconn.PgError{Code: "08006"}, want: true},
		{name: "unique violation", err: &pgconn.PgError{Code: "23505"}, want: false},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "plain", err: errors.New("boom"), want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, isTransient(tc.err))
		})
	}
}

func TestTickets_CreateMapsForeignKeyViolation(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO ticketing.repair_tickets`).
		WillReturnError(&pgconn.PgError{Code: pgForeignKeyViolation})

	ticket, err := domain.NewRepairTicket(uuid.New(), "t", "d", domain.MustParseMoney("10"))
	require.NoError(t, err)
	_, err = store.Tickets().Create(context.Background(), ticket)
	require.ErrorIs(t, err, domain.ErrAssetNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTickets_CreateRetryAfterLostCommit(t *testing.T) {
	now := time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC)
	lostCommit := &pgconn.PgError{Code: "08006"}

	t.Run("stored row matches", func(t *testing.T) {
		store, mock := newMockStore(t)
		store.now = func() time.Time { return now }
		ticket, err := domain.NewRepairTicket(uuid.New(), "Hinge", "Loose hinge", domain.MustParseMoney("40"))
		require.NoError(t, err)
		ticket.ID = uuid.New()

		mock.ExpectExec(`INSERT INTO ticketing.repair_tickets`).WillReturnError(lostCommit)
		mock.ExpectExec(`INSERT INTO ticketing.repair_tickets`).
			WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})
		mock.ExpectQuery(`SELECT (.+) FROM ticketing.repair_tickets`).
			WithArgs(ticket.ID.String()).
			WillReturnRows(sqlmock.NewRows(ticketRowColumns).AddRow(
				ticket.ID.String(), ticket.AssetID.String(), "Hinge", "Loose hinge", "created", now, nil,
				nil, "40.00", nil, nil, int64(1),
			))

		created, err := store.Tickets().Create(context.Background(), ticket)
		require.NoError(t, err)
		assert.Equal(t, ticket.ID, created.ID)
		assert.Equal(t, int64(1), created.Version)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stored row differs", func(t *testing.T) {
		store, mock := newMockStore(t)
		store.now = func() time.Time { return now }
		ticket, err := domain.NewRepairTicket(uuid.New(), "Hinge", "Loose hinge", domain.MustParseMoney("40"))
		require.NoError(t, err)
		ticket.ID = uuid.New()

		mock.ExpectExec(`INSERT INTO ticketing.repair_tickets`).WillReturnError(lostCommit)
		mock.ExpectExec(`INSERT INTO ticketing.repair_tickets`).
			WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})
		mock.ExpectQuery(`SELECT (.+) FROM ticketing.repair_tickets`).
			WithArgs(ticket.ID.String()).
			WillReturnRows(sqlmock.NewRows(ticketRowColumns).AddRow(
				ticket.ID.String(), uuid.New().String(), "Other", "Other ticket", "created", now, nil,
				nil, "10.00", nil, nil, int64(1),
			))

		_, err = store.Tickets().Create(context.Background(), ticket)
		require.ErrorIs(t, err, domain.ErrDuplicateID)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("first attempt duplicate is not retried", func(t *testing.T) {
		store, mock := newMockStore(t)
		ticket, err := domain.NewRepairTicket(uuid.New(), "Hinge", "Loose hinge", domain.MustParseMoney("40"))
		require.NoError(t, err)

		mock.ExpectExec(`INSERT INTO ticketing.repair_tickets`).
			WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})

		_, err = store.Tickets().Create(context.Background(), ticket)
		require.ErrorIs(t, err, domain.ErrDuplicateID)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTickets_CreateRejectsInvalidBeforeQuery(t *testing.T) {
	store, mock := newMockStore(t)

	_, err := store.Tickets().Create(context.Background(), domain.RepairTicket{AssetID: uuid.New()})
	require.True(t, domain.IsValidation(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTickets_UpdateRollsBackIllegalTransition(t *testing.T) {
	store, mock := newMockStore(t)
	id, assetID := uuid.New(), uuid.New()
	created := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM ticketing.repair_tickets`).
		WithArgs(id.String()).
		WillReturnRows(sqlmock.NewRows(ticketRowColumns).AddRow(
			id.String(), assetID.String(), "t", "d", "created", created, nil,
			nil, "150.00", nil, nil, int64(1),
		))
	mock.ExpectRollback()

	err := store.Tickets().Update(context.Background(), domain.RepairTicket{
		ID:            id,
		AssetID:       assetID,
		Title:         "t",
		Description:   "d",
		Status:        domain.RepairStatusCompleted,
		EstimatedCost: domain.MustParseMoney("150"),
		Version:       1,
	})
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTickets_UpdateCompletesTicket(t *testing.T) {
	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	store, mock := newMockStore(t)
	store.now = func() time.Time { return now }
	id, assetID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM ticketing.repair_tickets`).
		WithArgs(id.String()).
		WillReturnRows(sqlmock.NewRows(ticketRowColumns).AddRow(
			id.String(), assetID.String(), "t", "d", "in_progress", now.Add(-time.Hour), now.Add(-time.Minute),
			nil, "150.00", "145.00", nil, int64(4),
		))
	mock.ExpectExec(`UPDATE ticketing.repair_tickets`).
		WithArgs(id.String(), "t", "d", "completed", sqlmock.AnyArg(), sqlmock.AnyArg(), "150.00", "145.00", nil,
			int64(5), int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	cost := domain.MustParseMoney("145")
	err := store.Tickets().Update(context.Background(), domain.RepairTicket{
		ID:            id,
		AssetID:       assetID,
		Title:         "t",
		Description:   "d",
		Status:        domain.RepairStatusCompleted,
		EstimatedCost: domain.MustParseMoney("150"),
		ActualCost:    &cost,
		Version:       4,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTickets_UpdateRejectsStaleVersion(t *testing.T) {
	store, mock := newMockStore(t)
	id, assetID := uuid.New(), uuid.New()
	created := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	updated := created.Add(time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM ticketing.repair_tickets`).
		WithArgs(id.String()).
		WillReturnRows(sqlmock.NewRows(ticketRowColumns).AddRow(
			id.String(), assetID.String(), "t", "d", "created", created, updated,
			nil, "150.00", "145.00", nil, int64(2),
		))
	mock.ExpectRollback()

	err := store.Tickets().Update(context.Background(), domain.RepairTicket{
		ID:            id,
		AssetID:       assetID,
		Title:         "t",
		Description:   "d",
		Status:        domain.RepairStatusInProgress,
		EstimatedCost: domain.MustParseMoney("150"),
		Version:       1,
	})
	require.ErrorIs(t, err, domain.ErrTicketVersionConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTickets_UpdateConflictWhenRowChangedUnderneath(t *testing.T) {
	store, mock := newMockStore(t)
	id, assetID := uuid.New(), uuid.New()
	created := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM ticketing.repair_tickets`).
		WithArgs(id.String()).
		WillReturnRows(sqlmock.NewRows(ticketRowColumns).AddRow(
			id.String(), assetID.String(), "t", "d", "created", created, nil,
			nil, "150.00", nil, nil, int64(1),
		))
	mock.ExpectExec(`UPDATE ticketing.repair_tickets`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.Tickets().Update(context.Background(), domain.RepairTicket{
		ID:            id,
		AssetID:       assetID,
		Title:         "t2",
		Description:   "d",
		Status:        domain.RepairStatusCreated,
		EstimatedCost: domain.MustParseMoney("150"),
		Version:       1,
	})
	require.ErrorIs(t, err, domain.ErrTicketVersionConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTickets_GetByIDNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`FROM ticketing.repair_tickets t`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.Tickets().GetByID(context.Background(), uuid.New())
	require.ErrorIs(t, err, domain.ErrTicketNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomers_DeleteRestrictedByAssets(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`DELETE FROM ticketing.customers`).
		WillReturnError(&pgconn.PgError{Code: pgForeignKeyViolation})
	mock.ExpectExec(`DELETE FROM ticketing.customers`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.Customers().Delete(context.Background(), uuid.New())
	require.ErrorIs(t, err, domain.ErrCustomerHasAssets)

	err = store.Customers().Delete(context.Background(), uuid.New())
	require.ErrorIs(t, err, domain.ErrCustomerNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomers_GetMapsNoRows(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`FROM ticketing.customers`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "first_name", "last_name", "email", "phone_number", "address", "created_at", "updated_at",
		}))

	_, err := store.Customers().Get(context.Background(), uuid.New())
	require.ErrorIs(t, err, domain.ErrCustomerNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
