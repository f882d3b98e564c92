package service

import (
	"context"
	"testing"

	"storefront/internal/apperr"
	"storefront/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogCreateDefaultsCategory(t *testing.T) {
	svc := NewCatalogService(newFakeStore())
	ctx := context.Background()

	p, err := svc.Create(ctx, ProductInput{Name: ptr(" Rasgulla "), QuantityPrice: models.PriceMap{"500g": 240}})
	require.NoError(t, err)
	assert.Equal(t, "Rasgulla", p.Name)
	assert.Equal(t, "Sweets", p.Category)

	_, err = svc.Create(ctx, ProductInput{Name: ptr("Empty")})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.Create(ctx, ProductInput{Name: ptr("Bad"), QuantityPrice: models.PriceMap{"1kg": -1}})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestCatalogUpdateAndDelete(t *testing.T) {
	svc := NewCatalogService(newFakeStore())
	ctx := context.Background()

	p, err := svc.Create(ctx, ProductInput{Name: ptr("Sandesh"), QuantityPrice: models.PriceMap{"250g": 120}})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, p.ID, ProductInput{Category: ptr("Bengali"), QuantityPrice: models.PriceMap{"1kg": 450}})
	require.NoError(t, err)
	assert.Equal(t, "Sandesh", updated.Name)
	assert.Equal(t, "Bengali", updated.Category)
	assert.Equal(t, models.PriceMap{"1kg": 450}, updated.QuantityPrice)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, svc.Delete(ctx, p.ID))
	_, err = svc.Get(ctx, p.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.True(t, apperr.Is(svc.Delete(ctx, p.ID), apperr.KindNotFound))

	list, err = svc.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}
