package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"garmentsapi/internal/models"
)

const homeProductsLimit = 6

// ProductInput is the writable part of a product. Nil fields keep their
// current value on update.
type ProductInput struct {
	Name          *string          `json:"name"`
	Category      *string          `json:"category"`
	Description   *string          `json:"description"`
	Price         *decimal.Decimal `json:"price"`
	Images        []string         `json:"images"`
	MinimumOrder  *int             `json:"minimumOrder"`
	PaymentMethod *string          `json:"paymentMethod"`
	Quantity      *int             `json:"quantity"`
	ShowOnHome    *bool            `json:"showOnHome"`
	Attributes    map[string]any   `json:"attributes"`
}

func (in ProductInput) apply(p *models.Product) {
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Category != nil {
		p.Category = strings.TrimSpace(*in.Category)
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.Images != nil {
		p.Images = in.Images
	}
	if in.MinimumOrder != nil {
		p.MinimumOrder = *in.MinimumOrder
	}
	if in.PaymentMethod != nil {
		p.PaymentMethod = strings.TrimSpace(*in.PaymentMethod)
	}
	if in.Quantity != nil {
		p.Quantity = *in.Quantity
	}
	if in.ShowOnHome != nil {
		p.ShowOnHome = *in.ShowOnHome
	}
	if in.Attributes != nil {
		p.Attributes = in.Attributes
	}
}

func validateProduct(p models.Product) error {
	switch {
	case p.Name == "":
		return invalid("name is required")
	case p.Price.IsNegative():
		return invalid("price must not be negative")
	case p.Quantity < 0:
		return invalid("quantity must not be negative")
	case p.MinimumOrder < 0:
		return invalid("minimumOrder must not be negative")
	}
	return nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (models.Product, error) {
	p, err := s.products.GetProductByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return models.Product{}, mapRepoErr("get product", err)
	}
	return p, nil
}

func (s *Service) ListProducts(ctx context.Context, q models.ProductQuery) ([]models.Product, int, error) {
	items, total, err := s.products.ListProducts(ctx, q)
	if err != nil {
		return nil, 0, storeErr("list products", err)
	}
	return items, total, nil
}

// HomeProducts returns the newest products flagged for the home page.
func (s *Service) HomeProducts(ctx context.Context) ([]models.Product, error) {
	items, _, err := s.products.ListProducts(ctx, models.ProductQuery{OnlyHome: true, Limit: homeProductsLimit})
	if err != nil {
		return nil, storeErr("list home products", err)
	}
	return items, nil
}

func (s *Service) CreateProduct(ctx context.Context, caller Caller, in ProductInput) (models.Product, error) {
	if in.Price == nil {
		return models.Product{}, invalid("price is required")
	}
	p := models.Product{CreatedBy: caller.Email}
	in.apply(&p)
	if err := validateProduct(p); err != nil {
		return models.Product{}, err
	}
	out, err := s.products.CreateProduct(ctx, p)
	if err != nil {
		return models.Product{}, storeErr("create product", err)
	}
	return out, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, in ProductInput) (models.Product, error) {
	p, err := s.products.GetProductByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return models.Product{}, mapRepoErr("get product", err)
	}
	in.apply(&p)
	if err := validateProduct(p); err != nil {
		return models.Product{}, err
	}
	out, err := s.products.UpdateProduct(ctx, p)
	if err != nil {
		return models.Product{}, mapRepoErr("update product", err)
	}
	return out, nil
}

// DeleteProduct removes the product only; existing orders keep their
// productId.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	if err := s.products.DeleteProduct(ctx, strings.TrimSpace(id)); err != nil {
		return mapRepoErr("delete product", err)
	}
	return nil
}
