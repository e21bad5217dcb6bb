package memory

import (
	"bytes"
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/cowboyjack911/pc-install-repairhub/internal/domain"
)

type ticketRepository struct {
	store *Store
}

// GetByID возвращает заявку вместе с устройством и владельцем.
func (r *ticketRepository) GetByID(ctx context.Context, ticketID uuid.UUID) (domain.TicketDetails, error) {
	if err := ctx.Err(); err != nil {
		return domain.TicketDetails{}, err
	}

	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	ticket, ok := s.tickets[ticketID]
	if !ok {
		return domain.TicketDetails{}, domain.ErrTicketNotFound
	}
	asset, ok := s.assets[ticket.AssetID]
	if !ok {
		return domain.TicketDetails{}, domain.ErrAssetNotFound
	}
	customer, ok := s.customers[asset.CustomerID]
	if !ok {
		return domain.TicketDetails{}, domain.ErrCustomerNotFound
	}

	return domain.TicketDetails{
		Ticket:   cloneTicket(ticket),
		Asset:    cloneAsset(asset),
		Customer: cloneCustomer(customer),
	}, nil
}

// GetByAsset возвращает заявки устройства, новые первыми.
func (r *ticketRepository) GetByAsset(ctx context.Context, assetID uuid.UUID) ([]domain.RepairTicket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.RepairTicket, 0)
	for _, ticket := range s.tickets {
		if ticket.AssetID == assetID {
			result = append(result, cloneTicket(ticket))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return bytes.Compare(result[i].ID[:], result[j].ID[:]) > 0
	})
	return result, nil
}

// Create сохраняет новую заявку в статусе Created.
func (r *ticketRepository) Create(ctx context.Context, ticket domain.RepairTicket) (domain.RepairTicket, error) {
	s := r.store
	if err := ticket.PrepareForCreate(s.now()); err != nil {
		return domain.RepairTicket{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.RepairTicket{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.assets[ticket.AssetID]; !ok {
		return domain.RepairTicket{}, domain.ErrAssetNotFound
	}
	if _, exists := s.tickets[ticket.ID]; exists {
		return domain.RepairTicket{}, domain.ErrDuplicateID
	}
	s.tickets[ticket.ID] = cloneTicket(ticket)
	return ticket, nil
}

// Update заменяет изменяемые поля заявки с проверкой перехода статуса.
func (r *ticketRepository) Update(ctx context.Context, ticket domain.RepairTicket) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.tickets[ticket.ID]
	if !ok {
		return domain.ErrTicketNotFound
	}
	next, err := domain.ApplyUpdate(stored, ticket, s.policy, s.now())
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.tickets[ticket.ID] = cloneTicket(next)
	return nil
}

var _ domain.TicketingRepository = (*ticketRepository)(nil)
