package service

import (
	"context"
	"strings"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

const defaultCategory = "Sweets"

// ProductInput carries product fields. Nil fields are left unchanged on update.
type ProductInput struct {
	Name          *string         `json:"name"`
	Image         *string         `json:"image"`
	QuantityPrice models.PriceMap `json:"quantity_price"`
	Category      *string         `json:"category"`
}

// CatalogService manages the product catalog.
type CatalogService struct {
	products ProductRepository
	logger   *zap.Logger
}

func NewCatalogService(products ProductRepository) *CatalogService {
	return &CatalogService{
		products: products,
		logger:   util.ComponentLogger("catalog"),
	}
}

func (s *CatalogService) List(ctx context.Context) ([]models.Product, error) {
	products, err := s.products.ListProducts(ctx)
	if err != nil {
		return nil, translate(err, "products")
	}
	if products == nil {
		products = []models.Product{}
	}
	return products, nil
}

func (s *CatalogService) Get(ctx context.Context, id int64) (*models.Product, error) {
	product, err := s.products.GetProductByID(ctx, id)
	if err != nil {
		return nil, translate(err, "product")
	}
	return product, nil
}

func (s *CatalogService) Create(ctx context.Context, in ProductInput) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Create")
	defer span.End()

	product := &models.Product{Category: defaultCategory}
	applyProduct(product, in)
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	if err := s.products.CreateProduct(ctx, product); err != nil {
		return nil, util.RecordError(span, translate(err, "product"))
	}

	s.logger.Info("Product created", zap.Int64("product_id", product.ID), zap.String("name", product.Name))
	return product, nil
}

func (s *CatalogService) Update(ctx context.Context, id int64, in ProductInput) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "CatalogService.Update")
	defer span.End()

	product, err := s.products.GetProductByID(ctx, id)
	if err != nil {
		return nil, translate(err, "product")
	}

	applyProduct(product, in)
	if err := validateProduct(product); err != nil {
		return nil, err
	}
	if err := s.products.UpdateProduct(ctx, product); err != nil {
		return nil, util.RecordError(span, translate(err, "product"))
	}
	return product, nil
}

func (s *CatalogService) Delete(ctx context.Context, id int64) error {
	if err := s.products.DeleteProduct(ctx, id); err != nil {
		return translate(err, "product")
	}
	s.logger.Info("Product deleted", zap.Int64("product_id", id))
	return nil
}

func applyProduct(p *models.Product, in ProductInput) {
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Image != nil {
		p.Image = strings.TrimSpace(*in.Image)
	}
	if in.QuantityPrice != nil {
		p.QuantityPrice = in.QuantityPrice
	}
	if in.Category != nil {
		if c := strings.TrimSpace(*in.Category); c != "" {
			p.Category = c
		}
	}
}

func validateProduct(p *models.Product) error {
	if p.Name == "" {
		return apperr.Validation("name is required")
	}
	if len(p.QuantityPrice) == 0 {
		return apperr.Validation("at least one size price is required")
	}
	for size, price := range p.QuantityPrice {
		if strings.TrimSpace(size) == "" {
			return apperr.Validation("size label is required")
		}
		if price < 0 {
			return apperr.Validation("price for %s must be >= 0", size)
		}
	}
	return nil
}
