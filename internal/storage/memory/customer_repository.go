package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/cowboyjack911/pc-install-repairhub/internal/domain"
)

type customerRepository struct {
	store *Store
}

// Register сохраняет нового клиента и проставляет идентификатор и created_at.
func (r *customerRepository) Register(ctx context.Context, customer domain.Customer) (domain.Customer, error) {
	if err := customer.Validate(); err != nil {
		return domain.Customer{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.Customer{}, err
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if customer.ID == uuid.Nil {
		customer.ID = domain.NewID()
	}
	if _, exists := s.customers[customer.ID]; exists {
		return domain.Customer{}, domain.ErrDuplicateID
	}
	customer.CreatedAt = s.stamp()
	customer.UpdatedAt = nil
	s.customers[customer.ID] = cloneCustomer(customer)
	return customer, nil
}

// Get возвращает клиента или ErrCustomerNotFound.
func (r *customerRepository) Get(ctx context.Context, id uuid.UUID) (domain.Customer, error) {
	if err := ctx.Err(); err != nil {
		return domain.Customer{}, err
	}

	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, ok := s.customers[id]
	if !ok {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	return cloneCustomer(customer), nil
}

// UpdateContact заменяет контактные данные; created_at сохраняется.
func (r *customerRepository) UpdateContact(ctx context.Context, customer domain.Customer) error {
	if err := customer.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.customers[customer.ID]
	if !ok {
		return domain.ErrCustomerNotFound
	}
	stamp := domain.NextUpdateStamp(current.UpdatedAt, s.now())
	customer.CreatedAt = current.CreatedAt
	customer.UpdatedAt = &stamp
	s.customers[customer.ID] = cloneCustomer(customer)
	return nil
}

// Delete удаляет клиента без устройств.
func (r *customerRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.customers[id]; !ok {
		return domain.ErrCustomerNotFound
	}
	for _, asset := range s.assets {
		if asset.CustomerID == id {
			return domain.ErrCustomerHasAssets
		}
	}
	delete(s.customers, id)
	return nil
}

var _ domain.CustomerRepository = (*customerRepository)(nil)
