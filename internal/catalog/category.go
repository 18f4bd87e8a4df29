package catalog

import (
	"context"
	"fmt"

	"catalog-service/internal/domain"
	"catalog-service/internal/logger"
	"catalog-service/internal/query"
	"catalog-service/internal/schema"
	"catalog-service/internal/softdelete"
)

// CategoryInput describes a new category. An empty Slug is derived from Name.
type CategoryInput struct {
	Name             string
	Slug             string
	Description      *string
	ParentCategoryID *int64
}

// CategoryUpdate changes the non-nil fields of a category.
type CategoryUpdate struct {
	Name             *string
	Slug             *string
	Description      *string
	ParentCategoryID *int64
	// ClearParent makes the category a root category.
	ClearParent bool
}

// CategoryFilter narrows a category listing.
type CategoryFilter struct {
	Page
	ParentID       *int64
	RootsOnly      bool
	Search         string
	IncludeDeleted bool
	// WithProductCount fills ProductCount with the number of live products.
	WithProductCount bool
	Include          query.Include
}

// CategoryService manages categories.
type CategoryService struct {
	categories *softdelete.Mediator[domain.Category]
	restorer   *softdelete.Restorer[domain.Category]
	log        *logger.Logger
}

// NewCategoryService builds a CategoryService over a category mediator.
func NewCategoryService(categories *softdelete.Mediator[domain.Category], log *logger.Logger) (*CategoryService, error) {
	restorer, err := softdelete.NewRestorer(categories)
	if err != nil {
		return nil, err
	}
	return &CategoryService{categories: categories, restorer: restorer, log: log.WithComponent("category-service")}, nil
}

func validSlug(slug string) error {
	if slug == "" {
		return invalid("slug is empty")
	}
	if Slugify(slug) != slug {
		return invalid("slug %q may only hold lowercase letters, digits and single dashes", slug)
	}
	if softdelete.OriginalSlug(slug) != slug {
		return invalid("slug %q ends with a reserved suffix", slug)
	}
	return nil
}

func (s *CategoryService) checkParent(ctx context.Context, id, parentID int64) error {
	if parentID == id {
		return invalid("category cannot be its own parent")
	}
	// Walk up from the new parent; reaching id would close a cycle.
	for cur := parentID; cur != 0; {
		c, err := s.categories.FindUnique(ctx, query.FindUniqueArgs{
			Where:  query.ByID(cur),
			Select: []string{"id", "parent_category_id"},
		}, softdelete.ReadOptions{})
		if err != nil {
			return err
		}
		if c == nil {
			return invalid("parent category %d does not exist", parentID)
		}
		if c.ParentCategoryID == nil {
			return nil
		}
		cur = *c.ParentCategoryID
		if cur == id {
			return invalid("category %d cannot be moved under its own descendant %d", id, parentID)
		}
	}
	return nil
}

// Create stores a new live category.
func (s *CategoryService) Create(ctx context.Context, in CategoryInput) (*domain.Category, error) {
	if in.Name == "" {
		return nil, invalid("name is required")
	}
	slug, err := derivedSlug(in.Name, in.Slug)
	if err != nil {
		return nil, err
	}
	if err := validSlug(slug); err != nil {
		return nil, err
	}
	in.Slug = slug
	if in.ParentCategoryID != nil {
		if err := s.checkParent(ctx, 0, *in.ParentCategoryID); err != nil {
			return nil, err
		}
	}

	c, err := s.categories.Create(ctx, &domain.Category{
		Name:             in.Name,
		Slug:             in.Slug,
		Description:      in.Description,
		ParentCategoryID: in.ParentCategoryID,
		IsActive:         true,
	})
	if err != nil {
		return nil, err
	}
	s.log.Infow("category created", "id", c.ID, "slug", c.Slug)
	return c, nil
}

// Get returns the category matching key.
func (s *CategoryService) Get(ctx context.Context, key query.Unique, opts ReadOptions) (*domain.Category, error) {
	c, err := s.categories.FindUnique(ctx, query.FindUniqueArgs{
		Where:   key,
		Include: opts.Include,
		Counts:  opts.Counts,
	}, softdelete.ReadOptions{IncludeDeleted: opts.IncludeDeleted})
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, notFound(schema.Category, key)
	}
	return c, nil
}

// List returns a page of categories ordered by name and the total number of matches.
func (s *CategoryService) List(ctx context.Context, f CategoryFilter) ([]domain.Category, int64, error) {
	page := f.Page.normalized()
	var where query.Where
	switch {
	case f.ParentID != nil:
		where = where.And(query.Eq("parent_category_id", *f.ParentID))
	case f.RootsOnly:
		where = where.And(query.IsNull("parent_category_id"))
	}
	if f.Search != "" {
		where = where.And(query.Contains("name", f.Search))
	}
	var counts query.Include
	if f.WithProductCount {
		counts = query.Include{"products": query.Terminal()}
	}
	ro := softdelete.ReadOptions{IncludeDeleted: f.IncludeDeleted}

	total, err := s.categories.Count(ctx, where, ro)
	if err != nil {
		return nil, 0, err
	}
	items, err := s.categories.FindMany(ctx, query.FindArgs{
		Where:   where,
		Include: f.Include,
		Counts:  counts,
		OrderBy: []string{"name"},
		Limit:   page.Limit,
		Offset:  page.Offset,
	}, ro)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Update applies the set fields of u to the live category id.
func (s *CategoryService) Update(ctx context.Context, id int64, u CategoryUpdate) (*domain.Category, error) {
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
	switch {
	case u.ClearParent:
		patch = patch.Set("parent_category_id", nil)
	case u.ParentCategoryID != nil:
		if err := s.checkParent(ctx, id, *u.ParentCategoryID); err != nil {
			return nil, err
		}
		patch = patch.Set("parent_category_id", *u.ParentCategoryID)
	}
	if patch.Len() == 0 {
		return s.Get(ctx, query.ByID(id), ReadOptions{})
	}
	return s.categories.Update(ctx, live(query.ByID(id)), patch)
}

// Delete soft-deletes category id. Its products and children are left as they are.
func (s *CategoryService) Delete(ctx context.Context, id int64) (*domain.Category, error) {
	return s.categories.Delete(ctx, query.ByID(id))
}

// DeleteMany soft-deletes the live categories among ids and reports how many there were.
func (s *CategoryService) DeleteMany(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return s.categories.DeleteMany(ctx, query.NewWhere(query.In(schema.ColumnID, ids)))
}

// Restore brings back soft-deleted category id under a free slug.
func (s *CategoryService) Restore(ctx context.Context, id int64) (*domain.Category, error) {
	c, err := s.restorer.Restore(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("catalog: restore category %d: %w", id, err)
	}
	return c, nil
}
