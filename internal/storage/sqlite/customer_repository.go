package sqlite

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cowboyjack911/pc-install-repairhub/internal/domain"
)

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

	err := r.store.transaction(ctx, func(tx *gorm.DB) error {
		dup, err := exists(tx, &CustomerModel{}, "id = ?", customer.ID.String())
		if err != nil {
			return err
		}
		if dup {
			return domain.ErrDuplicateID
		}
		model := customerToModel(customer)
		return tx.Create(&model).Error
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateID) {
			return domain.Customer{}, err
		}
		return domain.Customer{}, fmt.Errorf("register customer: %w", err)
	}
	return customer, nil
}

func (r *customerRepository) Get(ctx context.Context, id uuid.UUID) (domain.Customer, error) {
	var model CustomerModel
	err := r.store.db.WithContext(ctx).Where("id = ?", id.String()).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Customer{}, domain.ErrCustomerNotFound
		}
		return domain.Customer{}, fmt.Errorf("get customer: %w", err)
	}
	return customerToDomain(model)
}

func (r *customerRepository) UpdateContact(ctx context.Context, customer domain.Customer) error {
	if err := customer.Validate(); err != nil {
		return err
	}

	err := r.store.transaction(ctx, func(tx *gorm.DB) error {
		var current CustomerModel
		if err := tx.Where("id = ?", customer.ID.String()).First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrCustomerNotFound
			}
			return err
		}
		stamp := domain.NextUpdateStamp(utcPtr(current.UpdatedAt), r.store.now())
		return tx.Model(&CustomerModel{}).Where("id = ?", current.ID).Updates(map[string]any{
			"first_name":   customer.FirstName,
			"last_name":    customer.LastName,
			"email":        customer.Email,
			"phone_number": customer.PhoneNumber,
			"address":      customer.Address,
			"updated_at":   stamp,
		}).Error
	})
	if err != nil {
		if errors.Is(err, domain.ErrCustomerNotFound) {
			return err
		}
		return fmt.Errorf("update customer contact: %w", err)
	}
	return nil
}

func (r *customerRepository) Delete(ctx context.Context, id uuid.UUID) error {
	err := r.store.transaction(ctx, func(tx *gorm.DB) error {
		found, err := exists(tx, &CustomerModel{}, "id = ?", id.String())
		if err != nil {
			return err
		}
		if !found {
			return domain.ErrCustomerNotFound
		}
		owns, err := exists(tx, &AssetModel{}, "customer_id = ?", id.String())
		if err != nil {
			return err
		}
		if owns {
			return domain.ErrCustomerHasAssets
		}
		return tx.Where("id = ?", id.String()).Delete(&CustomerModel{}).Error
	})
	if err != nil {
		if errors.Is(err, domain.ErrCustomerNotFound) || errors.Is(err, domain.ErrCustomerHasAssets) {
			return err
		}
		return fmt.Errorf("delete customer: %w", err)
	}
	return nil
}

var _ domain.CustomerRepository = (*customerRepository)(nil)
