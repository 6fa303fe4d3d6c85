package service

import (
	"context"
	"errors"

	"github.com/EdrumVIOT/Back-End/internal/auth"
	"github.com/EdrumVIOT/Back-End/internal/domain"
	"github.com/EdrumVIOT/Back-End/internal/repository"
)

// ProductService fronts the catalog. Reads are public; writes are admin only.
type ProductService struct {
	products repository.ProductRepository
}

func NewProductService(products repository.ProductRepository) *ProductService {
	return &ProductService{products: products}
}

func (s *ProductService) List(ctx context.Context) ([]domain.Product, error) {
	return s.products.List(ctx)
}

func (s *ProductService) Get(ctx context.Context, id string) (*domain.Product, error) {
	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return product, nil
}

func (s *ProductService) Create(ctx context.Context, id auth.Identity, product *domain.Product) (*domain.Product, error) {
	if !id.Role.OneOf(auth.RoleAdmin) {
		return nil, ErrForbidden
	}
	if product.Title == "" || product.Price < 0 {
		return nil, ErrInvalidArgument
	}

	product.OwnerID = id.UserID
	if _, err := s.products.Create(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *ProductService) Update(ctx context.Context, id auth.Identity, productID string, fields map[string]interface{}) (*domain.Product, error) {
	if !id.Role.OneOf(auth.RoleAdmin) {
		return nil, ErrForbidden
	}
	if len(fields) == 0 {
		return nil, ErrInvalidArgument
	}
	if price, ok := fields["price"].(float64); ok && price < 0 {
		return nil, ErrInvalidArgument
	}

	product, err := s.products.Update(ctx, productID, fields)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return product, nil
}

func (s *ProductService) Delete(ctx context.Context, id auth.Identity, productID string) error {
	if !id.Role.OneOf(auth.RoleAdmin) {
		return ErrForbidden
	}

	if err := s.products.Delete(ctx, productID); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return ErrProductNotFound
		}
		return err
	}
	return nil
}
