package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/cowboyjack911/pc-install-repairhub/internal/domain"
)

type assetRepository struct {
	store *Store
}

// Register сохраняет устройство существующего клиента.
func (r *assetRepository) Register(ctx context.Context, asset domain.Asset) (domain.Asset, error) {
	if err := asset.Validate(); err != nil {
		return domain.Asset{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.Asset{}, err
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[asset.CustomerID]; !ok {
		return domain.Asset{}, domain.ErrCustomerNotFound
	}
	if asset.ID == uuid.Nil {
		asset.ID = domain.NewID()
	}
	if _, exists := s.assets[asset.ID]; exists {
		return domain.Asset{}, domain.ErrDuplicateID
	}
	asset.CreatedAt = s.stamp()
	asset.UpdatedAt = nil
	s.assets[asset.ID] = cloneAsset(asset)
	return asset, nil
}

// Get возвращает устройство или ErrAssetNotFound.
func (r *assetRepository) Get(ctx context.Context, id uuid.UUID) (domain.Asset, error) {
	if err := ctx.Err(); err != nil {
		return domain.Asset{}, err
	}

	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	asset, ok := s.assets[id]
	if !ok {
		return domain.Asset{}, domain.ErrAssetNotFound
	}
	return cloneAsset(asset), nil
}

// ListByCustomer возвращает устройства клиента в порядке регистрации.
func (r *assetRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Asset, 0)
	for _, asset := range s.assets {
		if asset.CustomerID == customerID {
			result = append(result, cloneAsset(asset))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID.String() < result[j].ID.String()
	})
	return result, nil
}

// Update заменяет атрибуты устройства. Смена владельца проверяет, что новый клиент существует.
func (r *assetRepository) Update(ctx context.Context, asset domain.Asset) error {
	if err := asset.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.assets[asset.ID]
	if !ok {
		return domain.ErrAssetNotFound
	}
	if _, ok := s.customers[asset.CustomerID]; !ok {
		return domain.ErrCustomerNotFound
	}
	stamp := domain.NextUpdateStamp(current.UpdatedAt, s.now())
	asset.CreatedAt = current.CreatedAt
	asset.UpdatedAt = &stamp
	s.assets[asset.ID] = cloneAsset(asset)
	return nil
}

// Delete удаляет устройство без заявок.
func (r *assetRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.assets[id]; !ok {
		return domain.ErrAssetNotFound
	}
	for _, ticket := range s.tickets {
		if ticket.AssetID == id {
			return domain.ErrAssetHasTickets
		}
	}
	delete(s.assets, id)
	return nil
}

var _ domain.AssetRepository = (*assetRepository)(nil)
