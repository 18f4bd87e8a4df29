package store

import (
	"fmt"

	"catalog-service/internal/domain"
	"catalog-service/internal/schema"
)

var (
	_ RecordStore[domain.Category]  = (*Table[domain.Category])(nil)
	_ RecordStore[domain.Product]   = (*Table[domain.Product])(nil)
	_ RecordStore[domain.Order]     = (*Table[domain.Order])(nil)
	_ RecordStore[domain.OrderItem] = (*Table[domain.OrderItem])(nil)
)

// SQLStores holds one table per entity kind, wired to each other for relation loading.
type SQLStores struct {
	Categories *Table[domain.Category]
	Products   *Table[domain.Product]
	Orders     *Table[domain.Order]
	OrderItems *Table[domain.OrderItem]
}

// NewSQLStores builds the tables for every model in reg and checks that each
// registered relation has a loader.
func NewSQLStores(db DBTX, dialect Dialect, reg *schema.Registry) (*SQLStores, error) {
	s := &SQLStores{
		Categories: newTable(db, dialect, reg.MustDescriptor(schema.Category), categoryFields),
		Products:   newTable(db, dialect, reg.MustDescriptor(schema.Product), productFields),
		Orders:     newTable(db, dialect, reg.MustDescriptor(schema.Order), orderFields),
		OrderItems: newTable(db, dialect, reg.MustDescriptor(schema.OrderItem), orderItemFields),
	}

	s.Categories.relations["parent"] = belongsTo(s.Categories,
		func(c *domain.Category) *int64 { return c.ParentCategoryID }, categoryID,
		func(c *domain.Category, parent *domain.Category) { c.Parent = parent })
	s.Categories.relations["children"] = hasMany(s.Categories, "parent_category_id", categoryID,
		func(c *domain.Category) *int64 { return c.ParentCategoryID },
		func(c *domain.Category, children []domain.Category) { c.Children = children })
	s.Categories.relations["products"] = hasMany(s.Products, "category_id", categoryID,
		func(p *domain.Product) *int64 { return p.CategoryID },
		func(c *domain.Category, products []domain.Product) { c.Products = products })
	s.Categories.counts["products"] = countMany(s.Products, "category_id", categoryID,
		func(c *domain.Category, n int64) { c.ProductCount = &n })

	s.Products.relations["category"] = belongsTo(s.Categories,
		func(p *domain.Product) *int64 { return p.CategoryID }, categoryID,
		func(p *domain.Product, c *domain.Category) { p.Category = c })
	s.Products.relations["order_items"] = hasMany(s.OrderItems, "product_id", productID,
		func(i *domain.OrderItem) *int64 { return &i.ProductID },
		func(p *domain.Product, items []domain.OrderItem) { p.OrderItems = items })

	s.Orders.relations["items"] = hasMany(s.OrderItems, "order_id", orderID,
		func(i *domain.OrderItem) *int64 { return &i.OrderID },
		func(o *domain.Order, items []domain.OrderItem) { o.Items = items })

	s.OrderItems.relations["order"] = belongsTo(s.Orders,
		func(i *domain.OrderItem) *int64 { return &i.OrderID }, orderID,
		func(i *domain.OrderItem, o *domain.Order) { i.Order = o })
	s.OrderItems.relations["product"] = belongsTo(s.Products,
		func(i *domain.OrderItem) *int64 { return &i.ProductID }, productID,
		func(i *domain.OrderItem, p *domain.Product) { i.Product = p })

	if err := checkLoaders(s.Categories); err != nil {
		return nil, err
	}
	if err := checkLoaders(s.Products); err != nil {
		return nil, err
	}
	if err := checkLoaders(s.Orders); err != nil {
		return nil, err
	}
	if err := checkLoaders(s.OrderItems); err != nil {
		return nil, err
	}
	return s, nil
}

func checkLoaders[T any](t *Table[T]) error {
	for name := range t.desc.Relations {
		if _, ok := t.relations[name]; !ok {
			return fmt.Errorf("store: %s relation %q has no loader", t.desc.Model, name)
		}
	}
	return nil
}
