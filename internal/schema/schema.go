// Package schema is the compile-time registry of entity kinds: their tables,
// columns, relations and whether they are soft-deletable.
package schema

import (
	"fmt"

	"catalog-service/internal/domain"
)

// Model identifies an entity kind.
type Model string

const (
	Category  Model = "category"
	Product   Model = "product"
	Order     Model = "order"
	OrderItem Model = "order_item"
)

// Columns shared by every soft-deletable table.
const (
	ColumnID        = "id"
	ColumnSlug      = "slug"
	ColumnIsActive  = "is_active"
	ColumnDeletedAt = "deleted_at"
)

// RelationKind tells on which side of a relation the foreign key lives.
type RelationKind int

const (
	// BelongsTo: the foreign key is a column of the source model.
	BelongsTo RelationKind = iota
	// HasMany: the foreign key is a column of the target model.
	HasMany
)

// Relation describes a navigable association from one model to another.
type Relation struct {
	Name       string
	Target     Model
	Kind       RelationKind
	ForeignKey string
}

// Descriptor holds everything the store and the soft-delete layer need to know about a model.
type Descriptor struct {
	Model         Model
	Table         string
	Columns       []string
	SoftDeletable bool
	Relations     map[string]Relation
}

// HasColumn reports whether col is a column of the model's table.
func (d *Descriptor) HasColumn(col string) bool {
	for _, c := range d.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// Registry maps models to their descriptors.
type Registry struct {
	models map[Model]*Descriptor
}

// NewRegistry builds a registry and checks that every relation points at a registered model.
func NewRegistry(descs ...*Descriptor) (*Registry, error) {
	r := &Registry{models: make(map[Model]*Descriptor, len(descs))}
	for _, d := range descs {
		if _, dup := r.models[d.Model]; dup {
			return nil, fmt.Errorf("schema: model %q registered twice", d.Model)
		}
		r.models[d.Model] = d
	}
	for _, d := range descs {
		for name, rel := range d.Relations {
			target, ok := r.models[rel.Target]
			if !ok {
				return nil, fmt.Errorf("schema: relation %s.%s targets unknown model %q", d.Model, name, rel.Target)
			}
			owner := d
			if rel.Kind == HasMany {
				owner = target
			}
			if !owner.HasColumn(rel.ForeignKey) {
				return nil, fmt.Errorf("schema: relation %s.%s foreign key %q is not a column of %s", d.Model, name, rel.ForeignKey, owner.Table)
			}
		}
		if d.SoftDeletable {
			for _, col := range []string{ColumnSlug, ColumnIsActive, ColumnDeletedAt} {
				if !d.HasColumn(col) {
					return nil, fmt.Errorf("schema: soft-deletable model %s lacks column %q", d.Model, col)
				}
			}
		}
	}
	return r, nil
}

// Descriptor returns the descriptor for m.
func (r *Registry) Descriptor(m Model) (*Descriptor, bool) {
	d, ok := r.models[m]
	return d, ok
}

// MustDescriptor is Descriptor for models known to be registered.
func (r *Registry) MustDescriptor(m Model) *Descriptor {
	d, ok := r.models[m]
	if !ok {
		panic(fmt.Sprintf("schema: model %q is not registered", m))
	}
	return d
}

// Relation resolves a relation by name on model m.
func (r *Registry) Relation(m Model, name string) (Relation, bool) {
	d, ok := r.models[m]
	if !ok {
		return Relation{}, false
	}
	rel, ok := d.Relations[name]
	return rel, ok
}

// IsSoftDeletable reports whether rows of m are soft-deleted.
func (r *Registry) IsSoftDeletable(m Model) bool {
	d, ok := r.models[m]
	return ok && d.SoftDeletable
}

var (
	categoryDescriptor = &Descriptor{
		Model: Category,
		Table: "categories",
		Columns: []string{
			"id", "name", "slug", "description", "parent_category_id",
			"is_active", "deleted_at", "created_at", "updated_at",
		},
		SoftDeletable: domain.IsSoftDeletable[domain.Category](),
		Relations: map[string]Relation{
			"parent":   {Name: "parent", Target: Category, Kind: BelongsTo, ForeignKey: "parent_category_id"},
			"children": {Name: "children", Target: Category, Kind: HasMany, ForeignKey: "parent_category_id"},
			"products": {Name: "products", Target: Product, Kind: HasMany, ForeignKey: "category_id"},
		},
	}

	productDescriptor = &Descriptor{
		Model: Product,
		Table: "products",
		Columns: []string{
			"id", "name", "slug", "description", "sku", "price", "stock_quantity",
			"category_id", "image_url", "is_active", "attributes",
			"deleted_at", "created_at", "updated_at",
		},
		SoftDeletable: domain.IsSoftDeletable[domain.Product](),
		Relations: map[string]Relation{
			"category":    {Name: "category", Target: Category, Kind: BelongsTo, ForeignKey: "category_id"},
			"order_items": {Name: "order_items", Target: OrderItem, Kind: HasMany, ForeignKey: "product_id"},
		},
	}

	orderDescriptor = &Descriptor{
		Model: Order,
		Table: "orders",
		Columns: []string{
			"id", "customer_email", "status", "total", "confirmation_token_hash",
			"created_at", "updated_at",
		},
		SoftDeletable: domain.IsSoftDeletable[domain.Order](),
		Relations: map[string]Relation{
			"items": {Name: "items", Target: OrderItem, Kind: HasMany, ForeignKey: "order_id"},
		},
	}

	orderItemDescriptor = &Descriptor{
		Model: OrderItem,
		Table: "order_items",
		Columns: []string{
			"id", "order_id", "product_id", "quantity", "unit_price", "created_at",
		},
		SoftDeletable: domain.IsSoftDeletable[domain.OrderItem](),
		Relations: map[string]Relation{
			"order":   {Name: "order", Target: Order, Kind: BelongsTo, ForeignKey: "order_id"},
			"product": {Name: "product", Target: Product, Kind: BelongsTo, ForeignKey: "product_id"},
		},
	}
)

// Default returns the registry of the catalog's entity kinds.
func Default() *Registry {
	r, err := NewRegistry(categoryDescriptor, productDescriptor, orderDescriptor, orderItemDescriptor)
	if err != nil {
		panic(err)
	}
	return r
}
