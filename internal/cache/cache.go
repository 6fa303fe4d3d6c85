package cache

import (
	"context"
	"errors"

	"github.com/EdrumVIOT/Back-End/internal/domain"
)

type CartCache interface {
	Get(ctx context.Context, scope domain.CartScope) (*domain.Cart, error)
	Set(ctx context.Context, scope domain.CartScope, cart *domain.Cart) error
	Delete(ctx context.Context, scope domain.CartScope) error
}

var ErrCacheMiss = errors.New("cache miss")
