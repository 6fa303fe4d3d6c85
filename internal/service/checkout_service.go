package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/EdrumVIOT/Back-End/internal/cache"
	"github.com/EdrumVIOT/Back-End/internal/domain"
	"github.com/EdrumVIOT/Back-End/internal/events"
	"github.com/EdrumVIOT/Back-End/internal/repository"
	"github.com/EdrumVIOT/Back-End/internal/sms"
)

// Actions multiplexed through VerifyGuestOrder.
const (
	GuestActionResend = "resend"
	GuestActionVerify = "verify"
)

const (
	notifyTimeout  = 10 * time.Second
	cacheOpTimeout = time.Second
)

type GuestOrderRequest struct {
	PhoneNumber string
	Otp         string
	CartID      string
	Action      string
}

// OrderReceipt is what a successful checkout hands back to the client.
type OrderReceipt struct {
	OrderID     string  `json:"order_id"`
	CartID      string  `json:"cart_id"`
	TotalAmount float64 `json:"total_amount"`
}

// CheckoutService converts carts into orders: directly for authenticated
// users, and behind the OTP gate for guests.
type CheckoutService struct {
	carts     repository.CartRepository
	products  repository.ProductRepository
	orders    repository.OrderRepository
	ledger    *OtpLedger
	sender    sms.Sender
	cache     cache.CartCache
	publisher events.Publisher
}

func NewCheckoutService(
	carts repository.CartRepository,
	products repository.ProductRepository,
	orders repository.OrderRepository,
	ledger *OtpLedger,
	sender sms.Sender,
	cache cache.CartCache,
	publisher events.Publisher,
) *CheckoutService {
	return &CheckoutService{
		carts:     carts,
		products:  products,
		orders:    orders,
		ledger:    ledger,
		sender:    sender,
		cache:     cache,
		publisher: publisher,
	}
}

// RequestGuestOtp starts the guest checkout: a fresh code is issued for the
// number, subject to the ledger's cooldown.
func (s *CheckoutService) RequestGuestOtp(ctx context.Context, phoneNumber string) error {
	if phoneNumber == "" {
		return ErrInvalidArgument
	}
	return s.ledger.Issue(ctx, phoneNumber)
}

// VerifyGuestOrder is the single guest entry point, multiplexed by action.
// "resend" re-issues the code under the same rate-limit rule and never
// touches the cart. "verify" checks the code and, on success, materializes
// the guest cart into an order, consumes the code, and fires a best-effort
// confirmation text.
func (s *CheckoutService) VerifyGuestOrder(ctx context.Context, req GuestOrderRequest) (*OrderReceipt, error) {
	if req.PhoneNumber == "" {
		return nil, ErrInvalidArgument
	}

	switch req.Action {
	case GuestActionResend:
		return nil, s.ledger.Issue(ctx, req.PhoneNumber)

	case GuestActionVerify:
		if req.Otp == "" || req.CartID == "" {
			return nil, ErrInvalidArgument
		}
		if err := s.ledger.Verify(ctx, req.PhoneNumber, req.Otp); err != nil {
			return nil, err
		}

		order, err := s.materialize(ctx, domain.GuestScope(req.CartID), "", func(o *domain.Order) {
			o.Guest = true
			o.PhoneNumber = req.PhoneNumber
		})
		if err != nil {
			return nil, err
		}

		if errConsume := s.ledger.Consume(ctx, req.PhoneNumber); errConsume != nil {
			log.Warn().Err(errConsume).Str("number", req.PhoneNumber).Msg("failed to consume otp after order")
		}

		// Confirmation is fire-and-forget; a failed text never rolls back
		// the order.
		go func() {
			sendCtx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
			defer cancel()
			if errSend := s.sender.Send(sendCtx, req.PhoneNumber, "Your order confirmed"); errSend != nil {
				log.Warn().Err(errSend).Str("number", req.PhoneNumber).Msg("order confirmation text failed")
			}
		}()

		return receipt(order), nil
	}

	return nil, ErrInvalidArgument
}

// MakeOrder is the authenticated checkout: the caller's active cart (or the
// specific cart id, which must belong to the caller) is materialized.
func (s *CheckoutService) MakeOrder(ctx context.Context, userID, cartID string) (*OrderReceipt, error) {
	if userID == "" {
		return nil, ErrInvalidArgument
	}

	order, err := s.materialize(ctx, domain.OwnedScope(userID), cartID, func(o *domain.Order) {
		o.UserID = userID
	})
	if err != nil {
		return nil, err
	}
	return receipt(order), nil
}

// materialize snapshots the cart into an order and seals the cart. The cart
// is claimed first with an atomic is_ordered flip, so two concurrent
// materializations of the same cart cannot both produce an order; when the
// subsequent insert fails, the claim is reverted as compensation.
func (s *CheckoutService) materialize(ctx context.Context, scope domain.CartScope, cartID string, tag func(*domain.Order)) (*domain.Order, error) {
	cart, err := s.carts.Claim(ctx, scope, cartID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrCartNotFound):
			return nil, ErrCartNotFound
		case errors.Is(err, repository.ErrCartOrdered):
			return nil, ErrCartOrdered
		}
		return nil, err
	}

	unclaim := func() {
		if errBack := s.carts.Unclaim(ctx, cart.ID); errBack != nil {
			log.Error().Err(errBack).Str("cart_id", cart.ID.Hex()).Msg("failed to unclaim cart")
		}
	}

	if cart.IsEmpty() {
		unclaim()
		return nil, ErrEmptyCart
	}

	total, err := s.computeTotal(ctx, cart)
	if err != nil {
		unclaim()
		return nil, err
	}

	order := &domain.Order{
		CartID:      cart.ID,
		Status:      domain.OrderStatusPending,
		TotalAmount: total,
	}
	tag(order)

	if _, err := s.orders.Create(ctx, order); err != nil {
		unclaim()
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.invalidate(scope)
	s.publisher.PublishOrderCreated(ctx, order)

	log.Info().
		Str("order_id", order.ID.Hex()).
		Str("cart_id", cart.ID.Hex()).
		Float64("total", total).
		Bool("guest", order.Guest).
		Msg("order created")
	return order, nil
}

// computeTotal snapshots catalog prices at this instant. A line whose
// product no longer resolves contributes zero instead of failing the order,
// matching the storefront's historical behavior.
func (s *CheckoutService) computeTotal(ctx context.Context, cart *domain.Cart) (float64, error) {
	ids := make([]string, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}

	prices, err := s.products.PricesByIDs(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve prices: %w", err)
	}

	var total float64
	for _, item := range cart.Items {
		total += prices[item.ProductID] * float64(item.Quantity)
	}
	return total, nil
}

func (s *CheckoutService) invalidate(scope domain.CartScope) {
	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()
	if err := s.cache.Delete(ctx, scope); err != nil {
		log.Warn().Err(err).Msg("cache invalidate failed")
	}
}

func receipt(order *domain.Order) *OrderReceipt {
	return &OrderReceipt{
		OrderID:     order.ID.Hex(),
		CartID:      order.CartID.Hex(),
		TotalAmount: order.TotalAmount,
	}
}
