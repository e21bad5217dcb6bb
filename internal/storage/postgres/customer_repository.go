package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cowboyjack911/pc-install-repairhub/internal/domain"
)

const customerColumns = `id, first_name, last_name, email, phone_number, address, created_at, updated_at`

type customerRepository struct {
	store *Store
}

func (r *customerRepository) Register(ctx context.Context, customer domain.Customer) (domain.Customer, error) {
	if err := customer.Validate(); err != nil {
		return domain.Customer{}, err
	}
	if customer.ID == uuid.Nil {
		customer.ID = domain.NewID()
	}
	customer.CreatedAt = r.store.stamp()
	customer.UpdatedAt = nil

	err := r.store.withRetry(ctx, "register customer", func(ctx context.Context) error {
		_, err := r.store.db.ExecContext(ctx, `
			INSERT INTO ticketing.customers (
				id, first_name, last_name, email, phone_number, address, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7)
		`,
			customer.ID, customer.FirstName, customer.LastName, customer.Email,
			customer.PhoneNumber, customer.Address, customer.CreatedAt,
		)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Customer{}, domain.ErrDuplicateID
		}
		return domain.Customer{}, fmt.Errorf("insert customer: %w", err)
	}
	return customer, nil
}

func (r *customerRepository) Get(ctx context.Context, id uuid.UUID) (domain.Customer, error) {
	var customer domain.Customer
	err := r.store.withRetry(ctx, "get customer", func(ctx context.Context) error {
		row := r.store.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM ticketing.customers WHERE id = $1`, id)
		var err error
		customer, err = scanCustomer(row)
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Customer{}, domain.ErrCustomerNotFound
		}
		return domain.Customer{}, fmt.Errorf("select customer: %w", err)
	}
	return customer, nil
}

func (r *customerRepository) UpdateContact(ctx context.Context, customer domain.Customer) error {
	if err := customer.Validate(); err != nil {
		return err
	}

	return r.store.inTx(ctx, "update customer", func(ctx context.Context, tx *sql.Tx) error {
		var prev sql.NullTime
		err := tx.QueryRowContext(ctx, `
			SELECT updated_at FROM ticketing.customers WHERE id = $1 FOR UPDATE
		`, customer.ID).Scan(&prev)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrCustomerNotFound
		}
		if err != nil {
			return fmt.Errorf("lock customer: %w", err)
		}

		stamp := domain.NextUpdateStamp(nullTimePtr(prev), r.store.now())
		if _, err := tx.ExecContext(ctx, `
			UPDATE ticketing.customers
			SET first_name = $2,
			    last_name = $3,
			    email = $4,
			    phone_number = $5,
			    address = $6,
			    updated_at = $7
			WHERE id = $1
		`,
			customer.ID, customer.FirstName, customer.LastName, customer.Email,
			customer.PhoneNumber, customer.Address, stamp,
		); err != nil {
			return fmt.Errorf("update customer: %w", err)
		}
		return nil
	})
}

func (r *customerRepository) Delete(ctx context.Context, id uuid.UUID) error {
	var affected int64
	err := r.store.withRetry(ctx, "delete customer", func(ctx context.Context) error {
		res, err := r.store.db.ExecContext(ctx, `DELETE FROM ticketing.customers WHERE id = $1`, id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrCustomerHasAssets
		}
		return fmt.Errorf("delete customer: %w", err)
	}
	if affected == 0 {
		return domain.ErrCustomerNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (domain.Customer, error) {
	var c domain.Customer
	if err := row.Scan(
		&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.PhoneNumber,
		&c.Address, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return domain.Customer{}, err
	}
	normalizeTimes(&c.CreatedAt, c.UpdatedAt)
	return c, nil
}

func nullTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}

func normalizeTimes(created *time.Time, optional ...*time.Time) {
	*created = created.UTC()
	for _, t := range optional {
		if t != nil {
			*t = t.UTC()
		}
	}
}

var _ domain.CustomerRepository = (*customerRepository)(nil)
