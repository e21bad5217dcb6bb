package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/cowboyjack911/pc-install-repairhub/internal/domain"
)

const assetColumns = `id, customer_id, device_type, manufacturer, model, serial_number, notes, created_at, updated_at`

type assetRepository struct {
	store *Store
}

func (r *assetRepository) Register(ctx context.Context, asset domain.Asset) (domain.Asset, error) {
	if err := asset.Validate(); err != nil {
		return domain.Asset{}, err
	}
	if asset.ID == uuid.Nil {
		asset.ID = domain.NewID()
	}
	asset.CreatedAt = r.store.stamp()
	asset.UpdatedAt = nil

	err := r.store.withRetry(ctx, "register asset", func(ctx context.Context) error {
		_, err := r.store.db.ExecContext(ctx, `
			INSERT INTO ticketing.assets (
				id, customer_id, device_type, manufacturer, model, serial_number, notes, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		`,
			asset.ID, asset.CustomerID, asset.DeviceType, asset.Manufacturer,
			asset.Model, asset.SerialNumber, asset.Notes, asset.CreatedAt,
		)
		return err
	})
	switch {
	case err == nil:
		return asset, nil
	case isForeignKeyViolation(err):
		return domain.Asset{}, domain.ErrCustomerNotFound
	case isUniqueViolation(err):
		return domain.Asset{}, domain.ErrDuplicateID
	default:
		return domain.Asset{}, fmt.Errorf("insert asset: %w", err)
	}
}

func (r *assetRepository) Get(ctx context.Context, id uuid.UUID) (domain.Asset, error) {
	var asset domain.Asset
	err := r.store.withRetry(ctx, "get asset", func(ctx context.Context) error {
		row := r.store.db.QueryRowContext(ctx, `SELECT `+assetColumns+` FROM ticketing.assets WHERE id = $1`, id)
		var err error
		asset, err = scanAsset(row)
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Asset{}, domain.ErrAssetNotFound
		}
		return domain.Asset{}, fmt.Errorf("select asset: %w", err)
	}
	return asset, nil
}

func (r *assetRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.Asset, error) {
	var assets []domain.Asset
	err := r.store.withRetry(ctx, "list assets", func(ctx context.Context) error {
		rows, err := r.store.db.QueryContext(ctx, `
			SELECT `+assetColumns+`
			FROM ticketing.assets
			WHERE customer_id = $1
			ORDER BY created_at ASC, id ASC
		`, customerID)
		if err != nil {
			return err
		}
		defer rows.Close()

		assets = make([]domain.Asset, 0)
		for rows.Next() {
			asset, err := scanAsset(rows)
			if err != nil {
				return fmt.Errorf("scan asset row: %w", err)
			}
			assets = append(assets, asset)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	return assets, nil
}

func (r *assetRepository) Update(ctx context.Context, asset domain.Asset) error {
	if err := asset.Validate(); err != nil {
		return err
	}

	err := r.store.inTx(ctx, "update asset", func(ctx context.Context, tx *sql.Tx) error {
		var prev sql.NullTime
		err := tx.QueryRowContext(ctx, `
			SELECT updated_at FROM ticketing.assets WHERE id = $1 FOR UPDATE
		`, asset.ID).Scan(&prev)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrAssetNotFound
		}
		if err != nil {
			return fmt.Errorf("lock asset: %w", err)
		}

		stamp := domain.NextUpdateStamp(nullTimePtr(prev), r.store.now())
		_, err = tx.ExecContext(ctx, `
			UPDATE ticketing.assets
			SET customer_id = $2,
			    device_type = $3,
			    manufacturer = $4,
			    model = $5,
			    serial_number = $6,
			    notes = $7,
			    updated_at = $8
			WHERE id = $1
		`,
			asset.ID, asset.CustomerID, asset.DeviceType, asset.Manufacturer,
			asset.Model, asset.SerialNumber, asset.Notes, stamp,
		)
		if err != nil {
			return fmt.Errorf("update asset: %w", err)
		}
		return nil
	})
	if isForeignKeyViolation(err) {
		return domain.ErrCustomerNotFound
	}
	return err
}

func (r *assetRepository) Delete(ctx context.Context, id uuid.UUID) error {
	var affected int64
	err := r.store.withRetry(ctx, "delete asset", func(ctx context.Context) error {
		res, err := r.store.db.ExecContext(ctx, `DELETE FROM ticketing.assets WHERE id = $1`, id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrAssetHasTickets
		}
		return fmt.Errorf("delete asset: %w", err)
	}
	if affected == 0 {
		return domain.ErrAssetNotFound
	}
	return nil
}

func scanAsset(row rowScanner) (domain.Asset, error) {
	var a domain.Asset
	if err := row.Scan(
		&a.ID, &a.CustomerID, &a.DeviceType, &a.Manufacturer, &a.Model,
		&a.SerialNumber, &a.Notes, &a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return domain.Asset{}, err
	}
	normalizeTimes(&a.CreatedAt, a.UpdatedAt)
	return a, nil
}

var _ domain.AssetRepository = (*assetRepository)(nil)
