package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"catalog-service/internal/domain"
)

// jsonColumn stores a raw JSON document as text, NULL when empty.
type jsonColumn json.RawMessage

func (j *jsonColumn) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append(jsonColumn(nil), v...)
	case string:
		*j = jsonColumn(v)
	default:
		return fmt.Errorf("store: cannot scan %T into a json column", src)
	}
	return nil
}

func (j jsonColumn) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

func categoryFields(c *domain.Category) map[string]any {
	return map[string]any{
		"id":                 &c.ID,
		"name":               &c.Name,
		"slug":               &c.Slug,
		"description":        &c.Description,
		"parent_category_id": &c.ParentCategoryID,
		"is_active":          &c.IsActive,
		"deleted_at":         &c.DeletedAt,
		"created_at":         &c.CreatedAt,
		"updated_at":         &c.UpdatedAt,
	}
}

func productFields(p *domain.Product) map[string]any {
	return map[string]any{
		"id":             &p.ID,
		"name":           &p.Name,
		"slug":           &p.Slug,
		"description":    &p.Description,
		"sku":            &p.SKU,
		"price":          &p.Price,
		"stock_quantity": &p.StockQuantity,
		"category_id":    &p.CategoryID,
		"image_url":      &p.ImageURL,
		"is_active":      &p.IsActive,
		"attributes":     (*jsonColumn)(&p.Attributes),
		"deleted_at":     &p.DeletedAt,
		"created_at":     &p.CreatedAt,
		"updated_at":     &p.UpdatedAt,
	}
}

func orderFields(o *domain.Order) map[string]any {
	return map[string]any{
		"id":                      &o.ID,
		"customer_email":          &o.CustomerEmail,
		"status":                  &o.Status,
		"total":                   &o.Total,
		"confirmation_token_hash": &o.ConfirmationTokenHash,
		"created_at":              &o.CreatedAt,
		"updated_at":              &o.UpdatedAt,
	}
}

func orderItemFields(i *domain.OrderItem) map[string]any {
	return map[string]any{
		"id":         &i.ID,
		"order_id":   &i.OrderID,
		"product_id": &i.ProductID,
		"quantity":   &i.Quantity,
		"unit_price": &i.UnitPrice,
		"created_at": &i.CreatedAt,
	}
}

func categoryID(c *domain.Category) int64 { return c.ID }
func productID(p *domain.Product) int64   { return p.ID }
func orderID(o *domain.Order) int64       { return o.ID }
