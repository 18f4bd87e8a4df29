package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"catalog-service/internal/catalog"
	"catalog-service/internal/query"
)

// CategoryCreateInput defines the expected input for creating a category.
type CategoryCreateInput struct {
	Name             string  `json:"name" validate:"required,max=255"`
	Slug             string  `json:"slug" validate:"omitempty,max=255"`
	Description      *string `json:"description" validate:"omitempty"`
	ParentCategoryID *int64  `json:"parent_category_id" validate:"omitempty,gt=0"`
}

func (h *HTTPHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var input CategoryCreateInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}

	created, err := h.categories.Create(r.Context(), catalog.CategoryInput{
		Name:             input.Name,
		Slug:             input.Slug,
		Description:      input.Description,
		ParentCategoryID: input.ParentCategoryID,
	})
	if err != nil {
		h.respondWithServiceError(w, r, err, "Failed to create category")
		return
	}
	h.respondWithJSON(w, http.StatusCreated, created)
}

func (h *HTTPHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	page, limit := pagination(r)
	q := r.URL.Query()

	filter := catalog.CategoryFilter{
		Page:   catalog.Page{Limit: limit, Offset: (page - 1) * limit},
		Search: q.Get("q"),
	}
	if idStr := q.Get("parent_id"); idStr != "" {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil || id <= 0 {
			h.respondWithError(w, http.StatusBadRequest, "Invalid parent_id format")
			return
		}
		filter.ParentID = &id
	}
	var err error
	if filter.RootsOnly, err = boolParam(r, "roots_only"); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.WithProductCount, err = boolParam(r, "with_product_count"); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts, err := readOptions(r)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.IncludeDeleted = opts.IncludeDeleted
	filter.Include = opts.Include

	categories, total, err := h.categories.List(r.Context(), filter)
	if err != nil {
		h.respondWithServiceError(w, r, err, "Failed to retrieve categories")
		return
	}
	h.respondWithJSON(w, http.StatusOK, newListResponse(categories, total, page, limit))
}

func (h *HTTPHandler) getCategory(w http.ResponseWriter, r *http.Request, key query.Unique) {
	opts, err := readOptions(r)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	category, err := h.categories.Get(r.Context(), key, opts)
	if err != nil {
		h.respondWithServiceError(w, r, err, "Failed to retrieve category")
		return
	}
	h.respondWithJSON(w, http.StatusOK, category)
}

func (h *HTTPHandler) GetCategoryByID(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := h.idParam(w, r, "categoryId", "category")
	if !ok {
		return
	}
	h.getCategory(w, r, query.ByID(categoryID))
}

func (h *HTTPHandler) GetCategoryBySlug(w http.ResponseWriter, r *http.Request) {
	h.getCategory(w, r, query.BySlug(chi.URLParam(r, "slug")))
}

// CategoryUpdateInput changes the fields that are present.
type CategoryUpdateInput struct {
	Name             *string `json:"name" validate:"omitempty,min=1,max=255"`
	Slug             *string `json:"slug" validate:"omitempty,min=1,max=255"`
	Description      *string `json:"description" validate:"omitempty"`
	ParentCategoryID *int64  `json:"parent_category_id" validate:"omitempty,gt=0"`
	ClearParent      bool    `json:"clear_parent"`
}

func (h *HTTPHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := h.idParam(w, r, "categoryId", "category")
	if !ok {
		return
	}
	var input CategoryUpdateInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}
	if input.ParentCategoryID != nil && *input.ParentCategoryID == categoryID {
		h.respondWithError(w, http.StatusBadRequest, "Category cannot be its own parent")
		return
	}

	updated, err := h.categories.Update(r.Context(), categoryID, catalog.CategoryUpdate{
		Name:             input.Name,
		Slug:             input.Slug,
		Description:      input.Description,
		ParentCategoryID: input.ParentCategoryID,
		ClearParent:      input.ClearParent,
	})
	if err != nil {
		h.respondWithServiceError(w, r, err, "Failed to update category")
		return
	}
	h.respondWithJSON(w, http.StatusOK, updated)
}

func (h *HTTPHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := h.idParam(w, r, "categoryId", "category")
	if !ok {
		return
	}
	if _, err := h.categories.Delete(r.Context(), categoryID); err != nil {
		h.respondWithServiceError(w, r, err, "Failed to delete category")
		return
	}
	h.respondWithJSON(w, http.StatusNoContent, nil)
}

func (h *HTTPHandler) BulkDeleteCategories(w http.ResponseWriter, r *http.Request) {
	var input BulkDeleteInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}
	n, err := h.categories.DeleteMany(r.Context(), input.IDs)
	if err != nil {
		h.respondWithServiceError(w, r, err, "Failed to delete categories")
		return
	}
	h.respondWithJSON(w, http.StatusOK, BulkDeleteResponse{Deleted: n})
}

func (h *HTTPHandler) RestoreCategory(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := h.idParam(w, r, "categoryId", "category")
	if !ok {
		return
	}
	restored, err := h.categories.Restore(r.Context(), categoryID)
	if err != nil {
		h.respondWithServiceError(w, r, err, "Failed to restore category")
		return
	}
	h.respondWithJSON(w, http.StatusOK, restored)
}
