package catalog_test

import (
	"context"
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog-service/internal/catalog"
	"catalog-service/internal/domain"
	"catalog-service/internal/query"
	"catalog-service/internal/store"
)

func seedProducts(t *testing.T, s *services) (*domain.Category, []*domain.Product) {
	t.Helper()
	ctx := context.Background()
	cat := s.category(t, "Kitchen", nil)

	var out []*domain.Product
	for _, in := range []catalog.ProductInput{
		{Name: "Chef Knife", SKU: "K-1", Price: decimal.RequireFromString("79.90"), StockQuantity: 5, CategoryID: &cat.ID},
		{Name: "Paring Knife", SKU: "K-2", Price: decimal.RequireFromString("19.90"), StockQuantity: 12, CategoryID: &cat.ID},
		{Name: "Cast Iron Pan", SKU: "P-1", Price: decimal.RequireFromString("45.00"), StockQuantity: 3,
			Attributes: json.RawMessage(`{"diameter_cm":26}`)},
	} {
		p, err := s.products.Create(ctx, in)
		require.NoError(t, err)
		out = append(out, p)
	}
	return cat, out
}

func TestProductService_Create(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	_, products := seedProducts(t, s)

	assert.Equal(t, "chef-knife", products[0].Slug)
	assert.True(t, products[0].IsActive)
	assert.JSONEq(t, `{"diameter_cm":26}`, string(products[2].Attributes))

	tests := []struct {
		name string
		in   catalog.ProductInput
		want error
	}{
		{"duplicate sku", catalog.ProductInput{Name: "Other", SKU: "K-1", Price: decimal.NewFromInt(1)}, store.ErrUniqueViolation},
		{"duplicate slug", catalog.ProductInput{Name: "Chef Knife", SKU: "K-9", Price: decimal.NewFromInt(1)}, store.ErrUniqueViolation},
		{"negative price", catalog.ProductInput{Name: "Cheap", SKU: "C-1", Price: decimal.NewFromInt(-1)}, catalog.ErrInvalidInput},
		{"missing sku", catalog.ProductInput{Name: "No SKU", Price: decimal.NewFromInt(1)}, catalog.ErrInvalidInput},
		{"unknown category", catalog.ProductInput{Name: "Lost", SKU: "L-1", Price: decimal.NewFromInt(1), CategoryID: ptr(int64(404))}, catalog.ErrInvalidInput},
		{"bad attributes", catalog.ProductInput{Name: "Broken", SKU: "B-1", Price: decimal.NewFromInt(1), Attributes: json.RawMessage(`{`)}, catalog.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.products.Create(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestProductService_CreateInDeletedCategory(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	cat := s.category(t, "Gone", nil)
	_, err := s.categories.Delete(ctx, cat.ID)
	require.NoError(t, err)

	_, err = s.products.Create(ctx, catalog.ProductInput{Name: "Late", SKU: "L-1", Price: decimal.NewFromInt(1), CategoryID: &cat.ID})
	assert.ErrorIs(t, err, catalog.ErrInvalidInput)
}

func TestProductService_List(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	cat, products := seedProducts(t, s)

	items, total, err := s.products.List(ctx, catalog.ProductFilter{SortBy: "price", Descending: true})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, items, 3)
	assert.Equal(t, []string{"K-1", "P-1", "K-2"}, []string{items[0].SKU, items[1].SKU, items[2].SKU})

	items, total, err = s.products.List(ctx, catalog.ProductFilter{
		Search:     "knife",
		CategoryID: &cat.ID,
		MinPrice:   ptr(decimal.NewFromInt(20)),
		Include:    query.Include{"category": query.Terminal()},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, items, 1)
	assert.Equal(t, products[0].ID, items[0].ID)
	require.NotNil(t, items[0].Category)
	assert.Equal(t, "kitchen", items[0].Category.Slug)

	_, _, err = s.products.List(ctx, catalog.ProductFilter{SortBy: "sku"})
	assert.ErrorIs(t, err, catalog.ErrInvalidInput)

	_, _, err = s.products.List(ctx, catalog.ProductFilter{
		MinPrice: ptr(decimal.NewFromInt(50)),
		MaxPrice: ptr(decimal.NewFromInt(10)),
	})
	assert.ErrorIs(t, err, catalog.ErrInvalidInput)

	_, err = s.products.Delete(ctx, products[1].ID)
	require.NoError(t, err)

	_, total, err = s.products.List(ctx, catalog.ProductFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	items, total, err = s.products.List(ctx, catalog.ProductFilter{IncludeDeleted: true, SortBy: "name"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, "Paring Knife", items[2].Name)
	assert.NotNil(t, items[2].DeletedAt)
}

func TestProductService_Update(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	_, products := seedProducts(t, s)
	pan := products[2]

	price := decimal.RequireFromString("39.95")
	updated, err := s.products.Update(ctx, pan.ID, catalog.ProductUpdate{
		Price:      &price,
		Attributes: json.RawMessage(`{"diameter_cm":28}`),
		ImageURL:   ptr("https://img.example.com/pan.png"),
	})
	require.NoError(t, err)
	assert.True(t, price.Equal(updated.Price))
	assert.JSONEq(t, `{"diameter_cm":28}`, string(updated.Attributes))
	assert.Equal(t, "https://img.example.com/pan.png", *updated.ImageURL)
	assert.Equal(t, pan.Name, updated.Name)
	assert.False(t, updated.UpdatedAt.Before(pan.UpdatedAt))

	_, err = s.products.Update(ctx, pan.ID, catalog.ProductUpdate{SKU: ptr("K-1")})
	assert.ErrorIs(t, err, store.ErrUniqueViolation)

	_, err = s.products.Update(ctx, 404, catalog.ProductUpdate{Name: ptr("Ghost")})
	assert.ErrorIs(t, err, store.ErrNotFound)

	unchanged, err := s.products.Update(ctx, pan.ID, catalog.ProductUpdate{})
	require.NoError(t, err)
	assert.Equal(t, pan.ID, unchanged.ID)
}

func TestProductService_AdjustStock(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	_, products := seedProducts(t, s)
	pan := products[2] // 3 in stock

	p, err := s.products.AdjustStock(ctx, pan.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, int32(10), p.StockQuantity)

	p, err = s.products.AdjustStock(ctx, pan.ID, -10)
	require.NoError(t, err)
	assert.Equal(t, int32(0), p.StockQuantity)

	_, err = s.products.AdjustStock(ctx, pan.ID, -1)
	assert.ErrorIs(t, err, catalog.ErrInsufficientStock)

	_, err = s.products.AdjustStock(ctx, 404, -1)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.products.Delete(ctx, pan.ID)
	require.NoError(t, err)
	_, err = s.products.AdjustStock(ctx, pan.ID, 1)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestProductService_AdjustStock_ExtremeDeltas(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	_, products := seedProducts(t, s)
	pan := products[2] // 3 in stock

	_, err := s.products.AdjustStock(ctx, pan.ID, math.MinInt32)
	assert.ErrorIs(t, err, catalog.ErrInsufficientStock)

	_, err = s.products.AdjustStock(ctx, pan.ID, math.MaxInt32)
	assert.ErrorIs(t, err, catalog.ErrInvalidInput)

	got, err := s.products.Get(ctx, query.ByID(pan.ID), catalog.ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(3), got.StockQuantity)

	p, err := s.products.AdjustStock(ctx, pan.ID, math.MaxInt32-3)
	require.NoError(t, err)
	assert.Equal(t, int32(math.MaxInt32), p.StockQuantity)
}

func TestProductService_Stats(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	cat, products := seedProducts(t, s)

	_, err := s.products.Delete(ctx, products[1].ID)
	require.NoError(t, err)

	stats, err := s.products.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Count)
	assert.Equal(t, int64(8), stats.TotalStock)
	require.NotNil(t, stats.MinPrice)
	assert.Equal(t, "45.00", stats.MinPrice.StringFixed(2))
	assert.Equal(t, "79.90", stats.MaxPrice.StringFixed(2))
	assert.Equal(t, "62.45", stats.AvgPrice.StringFixed(2))

	require.Len(t, stats.ByCategory, 2)
	byCat := map[bool]catalog.CategoryStats{}
	for _, cs := range stats.ByCategory {
		byCat[cs.CategoryID != nil] = cs
	}
	assert.Equal(t, int64(1), byCat[false].Count)
	assert.Equal(t, int64(1), byCat[true].Count)
	assert.Equal(t, cat.ID, *byCat[true].CategoryID)
}

func TestProductService_RestoreAfterSlugReuse(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	_, products := seedProducts(t, s)
	knife := products[0]

	_, err := s.products.Delete(ctx, knife.ID)
	require.NoError(t, err)
	_, err = s.products.Create(ctx, catalog.ProductInput{Name: "Chef Knife", SKU: "K-1b", Price: decimal.NewFromInt(99)})
	require.NoError(t, err)

	restored, err := s.products.Restore(ctx, knife.ID)
	require.NoError(t, err)
	assert.Equal(t, "chef-knife-1", restored.Slug)

	got, err := s.products.Get(ctx, query.BySlug("chef-knife"), catalog.ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "K-1b", got.SKU)

	_, err = s.products.Restore(ctx, 404)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestProductService_DeleteMany(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	_, products := seedProducts(t, s)

	n, err := s.products.DeleteMany(ctx, []int64{products[0].ID, products[1].ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	recent, err := s.products.Recent(ctx, 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, products[2].ID, recent[0].ID)
}
