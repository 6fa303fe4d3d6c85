package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/EdrumVIOT/Back-End/internal/cache"
	"github.com/EdrumVIOT/Back-End/internal/domain"
	"github.com/EdrumVIOT/Back-End/internal/repository"
)

// MergeService folds a guest cart into a newly authenticated user's cart
// when a session upgrades from anonymous to identified.
type MergeService struct {
	carts repository.CartRepository
	cache cache.CartCache
}

func NewMergeService(carts repository.CartRepository, cache cache.CartCache) *MergeService {
	return &MergeService{carts: carts, cache: cache}
}

// MergeGuestCart reconciles the guest cart into the owner's active cart and
// returns the result. When the owner has no active cart the guest cart is
// re-parented in one atomic update. Otherwise the guest cart is atomically
// removed first and its lines folded in as increments, so no concurrent
// reader ever sees the same line live in two active carts.
func (s *MergeService) MergeGuestCart(ctx context.Context, ownerID, guestCartID string) (*domain.Cart, error) {
	if ownerID == "" || guestCartID == "" {
		return nil, ErrInvalidArgument
	}

	ownerScope := domain.OwnedScope(ownerID)
	guestScope := domain.GuestScope(guestCartID)

	_, err := s.carts.GetActive(ctx, ownerScope)
	if errors.Is(err, repository.ErrCartNotFound) {
		cart, errRe := s.carts.Reparent(ctx, guestCartID, ownerID)
		if errRe == nil {
			s.invalidate(ownerScope, guestScope)
			return cart, nil
		}
		if errors.Is(errRe, repository.ErrCartNotFound) {
			return nil, ErrCartNotFound
		}
		if !errors.Is(errRe, repository.ErrOwnerHasCart) {
			return nil, errRe
		}
		// An owner cart appeared between the lookup and the re-parent;
		// fall through to the fold path.
	} else if err != nil {
		return nil, err
	}

	guestCart, err := s.carts.TakeGuest(ctx, guestCartID)
	if err != nil {
		if errors.Is(err, repository.ErrCartNotFound) {
			return nil, ErrCartNotFound
		}
		return nil, err
	}

	var merged *domain.Cart
	for _, item := range guestCart.Items {
		merged, err = s.carts.AddItem(ctx, ownerScope, item)
		if err != nil {
			log.Error().Err(err).
				Str("owner", ownerID).
				Str("guest_cart", guestCartID).
				Str("product", item.ProductID).
				Msg("failed to fold guest line into owner cart")
			return nil, err
		}
	}

	if merged == nil {
		// Guest cart had no lines; the owner cart is untouched.
		merged, err = s.carts.GetActive(ctx, ownerScope)
		if errors.Is(err, repository.ErrCartNotFound) {
			return emptyCart(ownerScope), nil
		}
		if err != nil {
			return nil, err
		}
	}

	s.invalidate(ownerScope, guestScope)
	return merged, nil
}

func (s *MergeService) invalidate(scopes ...domain.CartScope) {
	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()
	for _, scope := range scopes {
		if err := s.cache.Delete(ctx, scope); err != nil {
			log.Warn().Err(err).Msg("cache invalidate failed")
		}
	}
}
