package ticketing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/cowboyjack911/pc-install-repairhub/internal/domain"
)

// CustomerInput содержит контактные данные клиента.
type CustomerInput struct {
	FirstName   string
	LastName    string
	Email       string
	PhoneNumber string
	Address     *string
}

// RegisterCustomer создаёт клиента.
func (s *Service) RegisterCustomer(ctx context.Context, in CustomerInput) (_ domain.Customer, err error) {
	ctx, finish := s.begin(ctx, "register_customer")
	defer finish(&err)

	customer, err := domain.NewCustomer(in.FirstName, in.LastName, in.Email, in.PhoneNumber, in.Address)
	if err != nil {
		return domain.Customer{}, err
	}
	customer, err = s.customers.Register(ctx, customer)
	if err != nil {
		return domain.Customer{}, fmt.Errorf("register customer: %w", err)
	}

	s.logger.WithField("customer_id", customer.ID).Info("Customer registered")
	return customer, nil
}

// UpdateCustomerContact заменяет контактные данные клиента и возвращает сохранённую версию.
func (s *Service) UpdateCustomerContact(ctx context.Context, customerID uuid.UUID, in CustomerInput) (_ domain.Customer, err error) {
	ctx, finish := s.begin(ctx, "update_customer_contact", attribute.String("customer.id", customerID.String()))
	defer finish(&err)

	updated, err := domain.NewCustomer(in.FirstName, in.LastName, in.Email, in.PhoneNumber, in.Address)
	if err != nil {
		return domain.Customer{}, err
	}
	updated.ID = customerID
	if err := s.customers.UpdateContact(ctx, updated); err != nil {
		return domain.Customer{}, fmt.Errorf("update customer contact: %w", err)
	}
	return s.customers.Get(ctx, customerID)
}

// DeleteCustomer удаляет клиента без устройств.
func (s *Service) DeleteCustomer(ctx context.Context, customerID uuid.UUID) (err error) {
	ctx, finish := s.begin(ctx, "delete_customer", attribute.String("customer.id", customerID.String()))
	defer finish(&err)

	if err := s.customers.Delete(ctx, customerID); err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	s.logger.WithField("customer_id", customerID).Info("Customer deleted")
	return nil
}

// RegisterAsset регистрирует устройство существующего клиента.
func (s *Service) RegisterAsset(ctx context.Context, customerID uuid.UUID, deviceType string, details domain.AssetDetails) (_ domain.Asset, err error) {
	ctx, finish := s.begin(ctx, "register_asset", attribute.String("customer.id", customerID.String()))
	defer finish(&err)

	asset, err := domain.NewAsset(customerID, deviceType, details)
	if err != nil {
		return domain.Asset{}, err
	}
	asset, err = s.assets.Register(ctx, asset)
	if err != nil {
		return domain.Asset{}, fmt.Errorf("register asset: %w", err)
	}

	s.logger.WithFields(log.Fields{
		"asset_id":    asset.ID,
		"customer_id": customerID,
		"device_type": asset.DeviceType,
	}).Info("Asset registered")
	return asset, nil
}

// CustomerAssets возвращает устройства клиента в порядке регистрации.
func (s *Service) CustomerAssets(ctx context.Context, customerID uuid.UUID) (_ []domain.Asset, err error) {
	ctx, finish := s.begin(ctx, "customer_assets", attribute.String("customer.id", customerID.String()))
	defer finish(&err)

	if _, err := s.customers.Get(ctx, customerID); err != nil {
		return nil, err
	}
	return s.assets.ListByCustomer(ctx, customerID)
}

// TransferAsset передаёт устройство другому клиенту. История заявок остаётся у устройства.
func (s *Service) TransferAsset(ctx context.Context, assetID, newOwnerID uuid.UUID) (_ domain.Asset, err error) {
	ctx, finish := s.begin(ctx, "transfer_asset",
		attribute.String("asset.id", assetID.String()),
		attribute.String("customer.id", newOwnerID.String()),
	)
	defer finish(&err)

	asset, err := s.assets.Get(ctx, assetID)
	if err != nil {
		return domain.Asset{}, err
	}
	previousOwner := asset.CustomerID
	if previousOwner == newOwnerID {
		return asset, nil
	}

	asset.CustomerID = newOwnerID
	if err := s.assets.Update(ctx, asset); err != nil {
		return domain.Asset{}, fmt.Errorf("transfer asset: %w", err)
	}

	s.logger.WithFields(log.Fields{
		"asset_id": assetID,
		"from":     previousOwner,
		"to":       newOwnerID,
	}).Info("Asset transferred")
	return s.assets.Get(ctx, assetID)
}

// DeleteAsset удаляет устройство без заявок.
func (s *Service) DeleteAsset(ctx context.Context, assetID uuid.UUID) (err error) {
	ctx, finish := s.begin(ctx, "delete_asset", attribute.String("asset.id", assetID.String()))
	defer finish(&err)

	if err := s.assets.Delete(ctx, assetID); err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}
	s.logger.WithField("asset_id", assetID).Info("Asset deleted")
	return nil
}
