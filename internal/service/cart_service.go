package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/EdrumVIOT/Back-End/internal/cache"
	"github.com/EdrumVIOT/Back-End/internal/domain"
	"github.com/EdrumVIOT/Back-End/internal/repository"
)

// CartService is the line-item CRUD surface over a cart addressed by a
// CartScope. Mutations go straight to the store's atomic updates; reads go
// through the cache.
type CartService struct {
	repo     repository.CartRepository
	products repository.ProductRepository
	cache    cache.CartCache
	sfg      singleflight.Group // Prevents cache stampede
}

func NewCartService(repo repository.CartRepository, products repository.ProductRepository, cache cache.CartCache) *CartService {
	return &CartService{
		repo:     repo,
		products: products,
		cache:    cache,
	}
}

// AddItem validates the product and quantity, then increments or appends the
// line in the scope's active cart, creating the cart when none exists. The
// returned cart carries the minted id a guest client must hold on to.
func (s *CartService) AddItem(ctx context.Context, scope domain.CartScope, productID string, quantity int) (*domain.Cart, error) {
	if quantity < 1 {
		return nil, ErrInvalidArgument
	}

	if _, err := s.products.GetByID(ctx, productID); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	cart, err := s.repo.AddItem(ctx, scope, domain.CartItem{
		ProductID: productID,
		Quantity:  quantity,
	})
	if err != nil {
		log.Error().Err(err).Str("scope", scope.Key()).Msg("repo add item failed")
		return nil, err
	}

	s.invalidate(scope)
	return cart, nil
}

// GetCart returns the scope's active cart, or an empty cart value when none
// exists. Absence is not an error.
func (s *CartService) GetCart(ctx context.Context, scope domain.CartScope) (*domain.Cart, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(scope.Key(), func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, scope)
		if err == nil {
			return cart, nil // cart is in cache
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Warn().Err(err).Msg("cache get failed") // log cache error but continue
		}

		cart, errGet := s.repo.GetActive(ctx, scope)
		if errGet != nil {
			if errors.Is(errGet, repository.ErrCartNotFound) {
				return emptyCart(scope), nil
			}
			return nil, errGet
		}

		go func() {
			if errSet := s.cache.Set(context.Background(), scope, cart); errSet != nil {
				log.Warn().Err(errSet).Msg("cache set failed")
			}
		}()

		return cart, nil
	})

	if err != nil {
		return nil, err
	}
	return v.(*domain.Cart), nil
}

// RemoveItem drops the product's line entirely, whatever its quantity.
func (s *CartService) RemoveItem(ctx context.Context, scope domain.CartScope, productID string) (*domain.Cart, error) {
	cart, err := s.repo.RemoveItem(ctx, scope, productID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrCartNotFound):
			return nil, ErrCartNotFound
		case errors.Is(err, repository.ErrItemNotFound):
			return nil, ErrItemNotFound
		}
		log.Error().Err(err).Str("scope", scope.Key()).Msg("repo remove item failed")
		return nil, err
	}

	s.invalidate(scope)
	return cart, nil
}

func (s *CartService) Clear(ctx context.Context, scope domain.CartScope) (*domain.Cart, error) {
	cart, err := s.repo.Clear(ctx, scope)
	if err != nil {
		if errors.Is(err, repository.ErrCartNotFound) {
			return nil, ErrCartNotFound
		}
		log.Error().Err(err).Str("scope", scope.Key()).Msg("repo clear cart failed")
		return nil, err
	}

	s.invalidate(scope)
	return cart, nil
}

func (s *CartService) invalidate(scope domain.CartScope) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, scope); err != nil {
		log.Warn().Err(err).Msg("cache invalidate failed")
	}
}

func emptyCart(scope domain.CartScope) *domain.Cart {
	cart := &domain.Cart{Items: nil}
	if userID, ok := scope.Owned(); ok {
		cart.UserID = userID
	}
	return cart
}
