package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"catalog-service/internal/domain"
	"catalog-service/internal/logger"
	"catalog-service/internal/query"
	"catalog-service/internal/schema"
	"catalog-service/internal/softdelete"
	"catalog-service/internal/store"
)

// ProductInput describes a new product. An empty Slug is derived from Name.
type ProductInput struct {
	Name          string
	Slug          string
	Description   *string
	SKU           string
	Price         decimal.Decimal
	StockQuantity int32
	CategoryID    *int64
	ImageURL      *string
	Attributes    json.RawMessage
}

// ProductUpdate changes the non-nil fields of a product.
type ProductUpdate struct {
	Name          *string
	Slug          *string
	Description   *string
	SKU           *string
	Price         *decimal.Decimal
	StockQuantity *int32
	CategoryID    *int64
	ClearCategory bool
	ImageURL      *string
	Attributes    json.RawMessage
}

// ProductFilter narrows a product listing.
type ProductFilter struct {
	Page
	Search     string
	CategoryID *int64
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	// SortBy is one of name, price, stock_quantity, created_at, updated_at.
	SortBy         string
	Descending     bool
	IncludeDeleted bool
	Include        query.Include
}

var productSortFields = map[string]bool{
	"name": true, "price": true, "stock_quantity": true, "created_at": true, "updated_at": true,
}

// ProductStats summarizes live products.
type ProductStats struct {
	Count      int64            `json:"count"`
	TotalStock int64            `json:"total_stock"`
	AvgPrice   *decimal.Decimal `json:"avg_price,omitempty"`
	MinPrice   *decimal.Decimal `json:"min_price,omitempty"`
	MaxPrice   *decimal.Decimal `json:"max_price,omitempty"`
	ByCategory []CategoryStats  `json:"by_category"`
}

// CategoryStats is the per-category part of ProductStats. CategoryID is nil
// for uncategorized products.
type CategoryStats struct {
	CategoryID *int64           `json:"category_id"`
	Count      int64            `json:"count"`
	AvgPrice   *decimal.Decimal `json:"avg_price,omitempty"`
}

// ProductService manages products.
type ProductService struct {
	products   *softdelete.Mediator[domain.Product]
	categories *softdelete.Mediator[domain.Category]
	restorer   *softdelete.Restorer[domain.Product]
	log        *logger.Logger
}

// NewProductService builds a ProductService. categories is used to validate category references.
func NewProductService(products *softdelete.Mediator[domain.Product], categories *softdelete.Mediator[domain.Category], log *logger.Logger) (*ProductService, error) {
	restorer, err := softdelete.NewRestorer(products)
	if err != nil {
		return nil, err
	}
	return &ProductService{
		products:   products,
		categories: categories,
		restorer:   restorer,
		log:        log.WithComponent("product-service"),
	}, nil
}

func (s *ProductService) checkCategory(ctx context.Context, id int64) error {
	n, err := s.categories.Count(ctx, query.NewWhere(query.Eq(schema.ColumnID, id)), softdelete.ReadOptions{})
	if err != nil {
		return err
	}
	if n == 0 {
		return invalid("category %d does not exist", id)
	}
	return nil
}

func validAttributes(raw json.RawMessage) error {
	if len(raw) > 0 && !json.Valid(raw) {
		return invalid("attributes must be valid JSON")
	}
	return nil
}

// Create stores a new live product.
func (s *ProductService) Create(ctx context.Context, in ProductInput) (*domain.Product, error) {
	switch {
	case in.Name == "":
		return nil, invalid("name is required")
	case in.SKU == "":
		return nil, invalid("sku is required")
	case in.Price.IsNegative():
		return nil, invalid("price cannot be negative")
	case in.StockQuantity < 0:
		return nil, invalid("stock_quantity cannot be negative")
	}
	slug, err := derivedSlug(in.Name, in.Slug)
	if err != nil {
		return nil, err
	}
	if err := validSlug(slug); err != nil {
		return nil, err
	}
	in.Slug = slug
	if err := validAttributes(in.Attributes); err != nil {
		return nil, err
	}
	if in.CategoryID != nil {
		if err := s.checkCategory(ctx, *in.CategoryID); err != nil {
			return nil, err
		}
	}

	p, err := s.products.Create(ctx, &domain.Product{
		Name:          in.Name,
		Slug:          in.Slug,
		Description:   in.Description,
		SKU:           in.SKU,
		Price:         in.Price,
		StockQuantity: in.StockQuantity,
		CategoryID:    in.CategoryID,
		ImageURL:      in.ImageURL,
		IsActive:      true,
		Attributes:    in.Attributes,
	})
	if err != nil {
		return nil, err
	}
	s.log.Infow("product created", "id", p.ID, "slug", p.Slug, "sku", p.SKU)
	return p, nil
}

// Get returns the product matching key.
func (s *ProductService) Get(ctx context.Context, key query.Unique, opts ReadOptions) (*domain.Product, error) {
	p, err := s.products.FindUnique(ctx, query.FindUniqueArgs{
		Where:   key,
		Include: opts.Include,
		Counts:  opts.Counts,
	}, softdelete.ReadOptions{IncludeDeleted: opts.IncludeDeleted})
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, notFound(schema.Product, key)
	}
	return p, nil
}

func (f ProductFilter) where() (query.Where, error) {
	var where query.Where
	if f.Search != "" {
		where = where.And(query.Contains("name", f.Search))
	}
	if f.CategoryID != nil {
		where = where.And(query.Eq("category_id", *f.CategoryID))
	}
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		return where, invalid("min_price cannot exceed max_price")
	}
	if f.MinPrice != nil {
		where = where.And(query.Gte("price", *f.MinPrice))
	}
	if f.MaxPrice != nil {
		where = where.And(query.Lte("price", *f.MaxPrice))
	}
	return where, nil
}

// List returns a page of products and the total number of matches.
func (s *ProductService) List(ctx context.Context, f ProductFilter) ([]domain.Product, int64, error) {
	page := f.Page.normalized()
	where, err := f.where()
	if err != nil {
		return nil, 0, err
	}
	order := []string{"created_at"}
	if f.SortBy != "" {
		if !productSortFields[f.SortBy] {
			return nil, 0, invalid("cannot sort by %q", f.SortBy)
		}
		order = []string{f.SortBy}
	}
	if f.Descending {
		order[0] = "-" + order[0]
	}
	ro := softdelete.ReadOptions{IncludeDeleted: f.IncludeDeleted}

	total, err := s.products.Count(ctx, where, ro)
	if err != nil {
		return nil, 0, err
	}
	items, err := s.products.FindMany(ctx, query.FindArgs{
		Where:   where,
		Include: f.Include,
		OrderBy: order,
		Limit:   page.Limit,
		Offset:  page.Offset,
	}, ro)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Recent returns the newest live products.
func (s *ProductService) Recent(ctx context.Context, limit int) ([]domain.Product, error) {
	items, _, err := s.List(ctx, ProductFilter{Page: Page{Limit: limit}, Descending: true})
	return items, err
}

// Update applies the set fields of u to the live product id.
func (s *ProductService) Update(ctx context.Context, id int64, u ProductUpdate) (*domain.Product, error) {
	patch := query.NewPatch()
	if u.Name != nil {
		if *u.Name == "" {
			return nil, invalid("name cannot be empty")
		}
		patch = patch.Set("name", *u.Name)
	}
	if u.Slug != nil {
		if err := validSlug(*u.Slug); err != nil {
			return nil, err
		}
		patch = patch.Set(schema.ColumnSlug, *u.Slug)
	}
	if u.Description != nil {
		patch = patch.Set("description", *u.Description)
	}
	if u.SKU != nil {
		if *u.SKU == "" {
			return nil, invalid("sku cannot be empty")
		}
		patch = patch.Set("sku", *u.SKU)
	}
	if u.Price != nil {
		if u.Price.IsNegative() {
			return nil, invalid("price cannot be negative")
		}
		patch = patch.Set("price", *u.Price)
	}
	if u.StockQuantity != nil {
		if *u.StockQuantity < 0 {
			return nil, invalid("stock_quantity cannot be negative")
		}
		patch = patch.Set("stock_quantity", *u.StockQuantity)
	}
	switch {
	case u.ClearCategory:
		patch = patch.Set("category_id", nil)
	case u.CategoryID != nil:
		if err := s.checkCategory(ctx, *u.CategoryID); err != nil {
			return nil, err
		}
		patch = patch.Set("category_id", *u.CategoryID)
	}
	if u.ImageURL != nil {
		patch = patch.Set("image_url", *u.ImageURL)
	}
	if u.Attributes != nil {
		if err := validAttributes(u.Attributes); err != nil {
			return nil, err
		}
		patch = patch.Set("attributes", u.Attributes)
	}
	if patch.Len() == 0 {
		return s.Get(ctx, query.ByID(id), ReadOptions{})
	}
	return s.products.Update(ctx, live(query.ByID(id)), patch)
}

// AdjustStock adds delta to the stock of live product id. The stock never
// drops below zero and never exceeds math.MaxInt32.
func (s *ProductService) AdjustStock(ctx context.Context, id int64, delta int32) (*domain.Product, error) {
	where := live(query.ByID(id))
	// Bounds are computed in int64 so that -math.MinInt32 does not wrap.
	switch {
	case delta < 0:
		where = where.With(query.Gte("stock_quantity", -int64(delta)))
	case delta > 0:
		where = where.With(query.Lte("stock_quantity", math.MaxInt32-int64(delta)))
	}
	p, err := s.products.Update(ctx, where,
		query.NewPatch().Set("stock_quantity", query.Expr("stock_quantity + ?", delta)))
	if errors.Is(err, store.ErrNotFound) && delta != 0 {
		if _, getErr := s.Get(ctx, query.ByID(id), ReadOptions{}); getErr == nil {
			if delta < 0 {
				return nil, fmt.Errorf("catalog: product %d: %w", id, ErrInsufficientStock)
			}
			return nil, fmt.Errorf("%w: stock of product %d would overflow", ErrInvalidInput, id)
		}
	}
	if err != nil {
		return nil, err
	}
	s.log.Debugw("stock adjusted", "id", id, "delta", delta, "stock", p.StockQuantity)
	return p, nil
}

// Delete soft-deletes product id.
func (s *ProductService) Delete(ctx context.Context, id int64) (*domain.Product, error) {
	return s.products.Delete(ctx, query.ByID(id))
}

// DeleteMany soft-deletes the live products among ids and reports how many there were.
func (s *ProductService) DeleteMany(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return s.products.DeleteMany(ctx, query.NewWhere(query.In(schema.ColumnID, ids)))
}

// Restore brings back soft-deleted product id under a free slug.
func (s *ProductService) Restore(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := s.restorer.Restore(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("catalog: restore product %d: %w", id, err)
	}
	return p, nil
}

func decimalPtr(m map[string]decimal.Decimal, col string) *decimal.Decimal {
	if v, ok := m[col]; ok {
		v = v.Round(2)
		return &v
	}
	return nil
}

// Stats summarizes live products, overall and per category.
func (s *ProductService) Stats(ctx context.Context) (*ProductStats, error) {
	ro := softdelete.ReadOptions{}
	agg, err := s.products.Aggregate(ctx, query.Where{}, query.AggregateSpec{
		Count: true,
		Sum:   []string{"stock_quantity"},
		Avg:   []string{"price"},
		Min:   []string{"price"},
		Max:   []string{"price"},
	}, ro)
	if err != nil {
		return nil, err
	}
	stats := &ProductStats{
		Count:      agg.Count,
		TotalStock: agg.Sum["stock_quantity"].IntPart(),
		AvgPrice:   decimalPtr(agg.Avg, "price"),
		MinPrice:   decimalPtr(agg.Min, "price"),
		MaxPrice:   decimalPtr(agg.Max, "price"),
		ByCategory: []CategoryStats{},
	}

	groups, err := s.products.GroupBy(ctx, query.GroupByArgs{
		By:        []string{"category_id"},
		Aggregate: query.AggregateSpec{Count: true, Avg: []string{"price"}},
	}, ro)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		cs := CategoryStats{Count: g.Result.Count, AvgPrice: decimalPtr(g.Result.Avg, "price")}
		if id, ok := g.Keys["category_id"].(int64); ok {
			cs.CategoryID = &id
		}
		stats.ByCategory = append(stats.ByCategory, cs)
	}
	return stats, nil
}
