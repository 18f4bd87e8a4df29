package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Category represents a product category in the system.
// Categories are soft-deleted: DeletedAt is set and IsActive cleared instead of removing the row.
type Category struct {
	ID               int64      `json:"id"`
	Name             string     `json:"name"`
	Slug             string     `json:"slug"`
	Description      *string    `json:"description,omitempty"`
	ParentCategoryID *int64     `json:"parent_category_id,omitempty"`
	IsActive         bool       `json:"is_active"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`

	// Populated only when the relation is expanded.
	Parent       *Category  `json:"parent,omitempty"`
	Children     []Category `json:"children,omitempty"`
	Products     []Product  `json:"products,omitempty"`
	ProductCount *int64     `json:"product_count,omitempty"`
}

func (c Category) GetSlug() string          { return c.Slug }
func (c Category) GetDeletedAt() *time.Time { return c.DeletedAt }
func (c Category) IsDeleted() bool          { return c.DeletedAt != nil }

// Product represents a product in the catalog.
type Product struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Slug          string          `json:"slug"`
	Description   *string         `json:"description,omitempty"`
	SKU           string          `json:"sku"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int32           `json:"stock_quantity"`
	CategoryID    *int64          `json:"category_id,omitempty"`
	ImageURL      *string         `json:"image_url,omitempty"`
	IsActive      bool            `json:"is_active"`
	Attributes    json.RawMessage `json:"attributes,omitempty"` // JSONB; nil when the column is NULL
	DeletedAt     *time.Time      `json:"deleted_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	Category   *Category   `json:"category,omitempty"`
	OrderItems []OrderItem `json:"order_items,omitempty"`
}

func (p Product) GetSlug() string          { return p.Slug }
func (p Product) GetDeletedAt() *time.Time { return p.DeletedAt }
func (p Product) IsDeleted() bool          { return p.DeletedAt != nil }
