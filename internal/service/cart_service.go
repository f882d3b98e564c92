package service

import (
	"context"
	"sort"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/pricing"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// CartLine is a cart entry priced against the live catalog.
type CartLine struct {
	ProductID   int64   `json:"productId"`
	ProductName string  `json:"productName"`
	Image       string  `json:"image"`
	Size        string  `json:"size"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
}

// CartView is the synced cart.
type CartView struct {
	Items    models.Cart `json:"cartData"`
	Lines    []CartLine  `json:"items"`
	Subtotal float64     `json:"subtotal"`
}

// CartService keeps per-user size counts in sync with the catalog.
type CartService struct {
	carts    CartRepository
	products ProductRepository
	logger   *zap.Logger
}

func NewCartService(carts CartRepository, products ProductRepository) *CartService {
	return &CartService{
		carts:    carts,
		products: products,
		logger:   util.ComponentLogger("cart"),
	}
}

// Get returns the cart after dropping products, sizes and counts that no
// longer apply. The pruned cart is persisted when anything changed.
func (s *CartService) Get(ctx context.Context, userID int64) (*CartView, error) {
	ctx, span := util.StartSpan(ctx, "CartService.Get")
	defer span.End()

	var catalog map[int64]models.Product
	cart, err := s.carts.UpdateCart(ctx, userID, func(current models.Cart) (models.Cart, bool, error) {
		var err error
		catalog, err = s.catalogFor(ctx, current)
		if err != nil {
			return nil, false, err
		}
		synced, changed := syncCart(current, catalog)
		return synced, changed, nil
	})
	if err != nil {
		return nil, util.RecordError(span, translate(err, "user"))
	}

	return buildView(cart, catalog), nil
}

// Add increments the count for product/size.
func (s *CartService) Add(ctx context.Context, userID, productID int64, size string) (*CartView, error) {
	product, err := s.products.GetProductByID(ctx, productID)
	if err != nil {
		return nil, translate(err, "product")
	}
	if _, ok := product.QuantityPrice[size]; !ok {
		return nil, apperr.Validation("size %q is not offered for %s", size, product.Name)
	}

	return s.mutate(ctx, userID, func(cart models.Cart) bool {
		if cart[productID] == nil {
			cart[productID] = map[string]int{}
		}
		cart[productID][size]++
		return true
	})
}

// Remove decrements the count for product/size, pruning it at zero.
func (s *CartService) Remove(ctx context.Context, userID, productID int64, size string) (*CartView, error) {
	return s.mutate(ctx, userID, func(cart models.Cart) bool {
		sizes := cart[productID]
		if sizes == nil || sizes[size] <= 0 {
			return false
		}
		sizes[size]--
		pruneLine(cart, productID, size)
		return true
	})
}

// RemoveLine drops product/size regardless of its count.
func (s *CartService) RemoveLine(ctx context.Context, userID, productID int64, size string) (*CartView, error) {
	return s.mutate(ctx, userID, func(cart models.Cart) bool {
		if _, ok := cart[productID][size]; !ok {
			return false
		}
		delete(cart[productID], size)
		pruneLine(cart, productID, size)
		return true
	})
}

// Clear empties the cart.
func (s *CartService) Clear(ctx context.Context, userID int64) (*CartView, error) {
	_, err := s.carts.UpdateCart(ctx, userID, func(current models.Cart) (models.Cart, bool, error) {
		return models.Cart{}, len(current) > 0, nil
	})
	if err != nil {
		return nil, translate(err, "user")
	}
	s.logger.Info("Cart cleared", zap.Int64("user_id", userID))
	return buildView(models.Cart{}, nil), nil
}

func (s *CartService) mutate(ctx context.Context, userID int64, fn func(models.Cart) bool) (*CartView, error) {
	_, err := s.carts.UpdateCart(ctx, userID, func(current models.Cart) (models.Cart, bool, error) {
		return current, fn(current), nil
	})
	if err != nil {
		return nil, translate(err, "user")
	}
	return s.Get(ctx, userID)
}

func (s *CartService) catalogFor(ctx context.Context, cart models.Cart) (map[int64]models.Product, error) {
	ids := make([]int64, 0, len(cart))
	for id := range cart {
		ids = append(ids, id)
	}
	products, err := s.products.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	catalog := make(map[int64]models.Product, len(products))
	for _, p := range products {
		catalog[p.ID] = p
	}
	return catalog, nil
}

// syncCart returns cart without unknown products, unknown sizes and
// non-positive counts, and whether anything was dropped.
func syncCart(cart models.Cart, catalog map[int64]models.Product) (models.Cart, bool) {
	synced := models.Cart{}
	changed := false

	for productID, sizes := range cart {
		product, ok := catalog[productID]
		if !ok {
			changed = true
			continue
		}
		for size, count := range sizes {
			if _, ok := product.QuantityPrice[size]; !ok || count <= 0 {
				changed = true
				continue
			}
			if synced[productID] == nil {
				synced[productID] = map[string]int{}
			}
			synced[productID][size] = count
		}
		if len(sizes) == 0 {
			changed = true
		}
	}
	return synced, changed
}

func pruneLine(cart models.Cart, productID int64, size string) {
	if sizes := cart[productID]; sizes != nil {
		if sizes[size] <= 0 {
			delete(sizes, size)
		}
		if len(sizes) == 0 {
			delete(cart, productID)
		}
	}
}

func buildView(cart models.Cart, catalog map[int64]models.Product) *CartView {
	if cart == nil {
		cart = models.Cart{}
	}
	view := &CartView{Items: cart, Lines: []CartLine{}}

	priced := make([]pricing.Line, 0)
	for productID, sizes := range cart {
		product := catalog[productID]
		for size, count := range sizes {
			price := product.QuantityPrice[size]
			view.Lines = append(view.Lines, CartLine{
				ProductID:   productID,
				ProductName: product.Name,
				Image:       product.Image,
				Size:        size,
				Quantity:    count,
				Price:       price,
			})
			priced = append(priced, pricing.Line{Price: price, Quantity: count})
		}
	}

	sort.Slice(view.Lines, func(i, j int) bool {
		if view.Lines[i].ProductID != view.Lines[j].ProductID {
			return view.Lines[i].ProductID < view.Lines[j].ProductID
		}
		return view.Lines[i].Size < view.Lines[j].Size
	})
	view.Subtotal = pricing.Subtotal(priced)
	return view
}
