package sqlite

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cowboyjack911/pc-install-repairhub/internal/domain"
)

func customerToModel(c domain.Customer) CustomerModel {
	return CustomerModel{
		ID:          c.ID.String(),
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		Email:       c.Email,
		PhoneNumber: c.PhoneNumber,
		Address:     c.Address,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func customerToDomain(m CustomerModel) (domain.Customer, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return domain.Customer{}, fmt.Errorf("parse customer id %q: %w", m.ID, err)
	}
	return domain.Customer{
		ID:          id,
		FirstName:   m.FirstName,
		LastName:    m.LastName,
		Email:       m.Email,
		PhoneNumber: m.PhoneNumber,
		Address:     m.Address,
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   utcPtr(m.UpdatedAt),
	}, nil
}

func assetToModel(a domain.Asset) AssetModel {
	return AssetModel{
		ID:           a.ID.String(),
		CustomerID:   a.CustomerID.String(),
		DeviceType:   a.DeviceType,
		Manufacturer: a.Manufacturer,
		Model:        a.Model,
		SerialNumber: a.SerialNumber,
		Notes:        a.Notes,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func assetToDomain(m AssetModel) (domain.Asset, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return domain.Asset{}, fmt.Errorf("parse asset id %q: %w", m.ID, err)
	}
	customerID, err := uuid.Parse(m.CustomerID)
	if err != nil {
		return domain.Asset{}, fmt.Errorf("parse asset customer id %q: %w", m.CustomerID, err)
	}
	return domain.Asset{
		ID:           id,
		CustomerID:   customerID,
		DeviceType:   m.DeviceType,
		Manufacturer: m.Manufacturer,
		Model:        m.Model,
		SerialNumber: m.SerialNumber,
		Notes:        m.Notes,
		CreatedAt:    m.CreatedAt.UTC(),
		UpdatedAt:    utcPtr(m.UpdatedAt),
	}, nil
}

func ticketToModel(t domain.RepairTicket) RepairTicketModel {
	m := RepairTicketModel{
		ID:                 t.ID.String(),
		AssetID:            t.AssetID.String(),
		Title:              t.Title,
		Description:        t.Description,
		Status:             t.Status.String(),
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
		CompletedAt:        t.CompletedAt,
		EstimatedCostMinor: t.EstimatedCost.Minor(),
		TechnicianNotes:    t.TechnicianNotes,
		Version:            t.Version,
	}
	if t.ActualCost != nil {
		minor := t.ActualCost.Minor()
		m.ActualCostMinor = &minor
	}
	return m
}

func ticketToDomain(m RepairTicketModel) (domain.RepairTicket, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return domain.RepairTicket{}, fmt.Errorf("parse ticket id %q: %w", m.ID, err)
	}
	assetID, err := uuid.Parse(m.AssetID)
	if err != nil {
		return domain.RepairTicket{}, fmt.Errorf("parse ticket asset id %q: %w", m.AssetID, err)
	}
	status, err := domain.ParseRepairStatus(m.Status)
	if err != nil {
		return domain.RepairTicket{}, err
	}

	t := domain.RepairTicket{
		ID:              id,
		AssetID:         assetID,
		Title:           m.Title,
		Description:     m.Description,
		Status:          status,
		CreatedAt:       m.CreatedAt.UTC(),
		UpdatedAt:       utcPtr(m.UpdatedAt),
		CompletedAt:     utcPtr(m.CompletedAt),
		EstimatedCost:   domain.MoneyFromMinor(m.EstimatedCostMinor),
		TechnicianNotes: m.TechnicianNotes,
		Version:         m.Version,
	}
	if m.ActualCostMinor != nil {
		cost := domain.MoneyFromMinor(*m.ActualCostMinor)
		t.ActualCost = &cost
	}
	return t, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
