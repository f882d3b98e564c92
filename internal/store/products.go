package store

import (
	"context"

	"storefront/internal/models"

	"github.com/jmoiron/sqlx"
)

// CreateProduct inserts a product
func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	query := `
		INSERT INTO products (name, image, quantity_price, category)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, product, query,
		product.Name, product.Image, product.QuantityPrice, product.Category)
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	if err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id); err != nil {
		return nil, notFound(err)
	}
	return &product, nil
}

// ListProducts retrieves all products
func (s *Store) ListProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products, "SELECT * FROM products ORDER BY id")
	return products, err
}

// GetProductsByIDs retrieves multiple products by IDs
func (s *Store) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var products []models.Product
	err = s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// UpdateProduct rewrites the editable product fields
func (s *Store) UpdateProduct(ctx context.Context, product *models.Product) error {
	query := `
		UPDATE products SET name = $1, image = $2, quantity_price = $3, category = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING updated_at`

	err := s.db.GetContext(ctx, &product.UpdatedAt, query,
		product.Name, product.Image, product.QuantityPrice, product.Category, product.ID)
	return notFound(err)
}

// DeleteProduct removes a product
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return err
	}
	return requireRow(res)
}
