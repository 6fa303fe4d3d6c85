package service

import (
	"context"
	"errors"

	"github.com/EdrumVIOT/Back-End/internal/auth"
	"github.com/EdrumVIOT/Back-End/internal/domain"
	"github.com/EdrumVIOT/Back-End/internal/repository"
)

// OrderService is the read/admin surface over existing orders. Order
// creation lives in CheckoutService.
type OrderService struct {
	orders repository.OrderRepository
	carts  repository.CartRepository
}

func NewOrderService(orders repository.OrderRepository, carts repository.CartRepository) *OrderService {
	return &OrderService{orders: orders, carts: carts}
}

// ListMyOrders returns the caller's orders, newest first. Orders are linked
// to users through the carts they consumed.
func (s *OrderService) ListMyOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	if userID == "" {
		return nil, ErrInvalidArgument
	}

	cartIDs, err := s.carts.IDsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.orders.ListByCartIDs(ctx, cartIDs)
}

// AdvanceStatus sets an order's fulfilment status. Admin only.
func (s *OrderService) AdvanceStatus(ctx context.Context, id auth.Identity, orderID string, status domain.OrderStatus) (*domain.Order, error) {
	if !id.Role.OneOf(auth.RoleAdmin) {
		return nil, ErrForbidden
	}
	if !status.Valid() {
		return nil, ErrInvalidArgument
	}

	order, err := s.orders.UpdateStatus(ctx, orderID, status)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}
