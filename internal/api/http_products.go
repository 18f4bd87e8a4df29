package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"catalog-service/internal/catalog"
	"catalog-service/internal/domain"
	"catalog-service/internal/query"
)

// ProductCreateInput defines the expected input for creating a product.
type ProductCreateInput struct {
	Name          string          `json:"name" validate:"required,max=255"`
	Slug          string          `json:"slug" validate:"omitempty,max=255"`
	Description   *string         `json:"description" validate:"omitempty"`
	SKU           string          `json:"sku" validate:"required,max=100"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int32           `json:"stock_quantity" validate:"gte=0"`
	CategoryID    *int64          `json:"category_id" validate:"omitempty,gt=0"`
	ImageURL      *string         `json:"image_url" validate:"omitempty,url,max=2048"`
	Attributes    json.RawMessage `json:"attributes,omitempty"`
}

func (h *HTTPHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var input ProductCreateInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}

	created, err := h.products.Create(r.Context(), catalog.ProductInput{
		Name:          input.Name,
		Slug:          input.Slug,
		Description:   input.Description,
		SKU:           input.SKU,
		Price:         input.Price,
		StockQuantity: input.StockQuantity,
		CategoryID:    input.CategoryID,
		ImageURL:      input.ImageURL,
		Attributes:    input.Attributes,
	})
	if err != nil {
		h.respondWithServiceError(w, r, err, "Failed to create product")
		return
	}
	h.respondWithJSON(w, http.StatusCreated, created)
}

func priceParam(r *http.Request, name string) (*decimal.Decimal, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, true
	}
	d, err := decimal.NewFromString(v)
	if err != nil || d.IsNegative() {
		return nil, false
	}
	return &d, true
}

func (h *HTTPHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	page, limit := pagination(r)
	q := r.URL.Query()

	filter := catalog.ProductFilter{
		Page:   catalog.Page{Limit: limit, Offset: (page - 1) * limit},
		Search: q.Get("q"),
		SortBy: q.Get("sort_by"),
	}
	if idStr := q.Get("category_id"); idStr != "" {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil || id <= 0 {
			h.respondWithError(w, http.StatusBadRequest, "Invalid category_id format")
			return
		}
		filter.CategoryID = &id
	}
	var ok bool
	if filter.MinPrice, ok = priceParam(r, "min_price"); !ok {
		h.respondWithError(w, http.StatusBadRequest, "Invalid min_price format")
		return
	}
	if filter.MaxPrice, ok = priceParam(r, "max_price"); !ok {
		h.respondWithError(w, http.StatusBadRequest, "Invalid max_price format")
		return
	}
	switch strings.ToLower(q.Get("sort_order")) {
	case "", "asc":
	case "desc":
		filter.Descending = true
	default:
		h.respondWithError(w, http.StatusBadRequest, "Invalid sort_order value. Allowed: asc, desc")
		return
	}
	opts, err := readOptions(r)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.IncludeDeleted = opts.IncludeDeleted
	filter.Include = opts.Include

	products, total, err := h.products.List(r.Context(), filter)
	if err != nil {
		h.respondWithServiceError(w, r, err, "Failed to retrieve products")
		return
	}
	h.respondWithJSON(w, http.StatusOK, newListResponse(products, total, page, limit))
}

func (h *HTTPHandler) GetProductRecommendations(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 5
	}
	if limit > 20 {
		limit = 20
	}

	recommendations, err := h.products.Recent(r.Context(), limit)
	if err != nil {
		h.respondWithServiceError(w, r, err, "Failed to fetch product recommendations")
		return
	}
	if recommendations == nil {
		recommendations = []domain.Product{}
	}
	h.respondWithJSON(w, http.StatusOK, recommendations)
}

func (h *HTTPHandler) GetProductStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.products.Stats(r.Context())
	if err != nil {
		h.respondWithServiceError(w, r, err, "Failed to compute product statistics")
		return
	}
	h.respondWithJSON(w, http.StatusOK, stats)
}

func (h *HTTPHandler) getProduct(w http.ResponseWriter, r *http.Request, key query.Unique) {
	opts, err := readOptions(r)
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	product, err := h.products.Get(r.Context(), key, opts)
	if err != nil {
		h.respondWithServiceError(w, r, err, "Failed to retrieve product")
		return
	}
	h.respondWithJSON(w, http.StatusOK, product)
}

func (h *HTTPHandler) GetProductByID(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.idParam(w, r, "productId", "product")
	if !ok {
		return
	}
	h.getProduct(w, r, query.ByID(productID))
}

func (h *HTTPHandler) GetProductBySlug(w http.ResponseWriter, r *http.Request) {
	h.getProduct(w, r, query.BySlug(chi.URLParam(r, "slug")))
}

// ProductUpdateInput changes the fields that are present.
type ProductUpdateInput struct {
	Name          *string          `json:"name" validate:"omitempty,min=1,max=255"`
	Slug          *string          `json:"slug" validate:"omitempty,min=1,max=255"`
	Description   *string          `json:"description" validate:"omitempty"`
	SKU           *string          `json:"sku" validate:"omitempty,min=1,max=100"`
	Price         *decimal.Decimal `json:"price"`
	StockQuantity *int32           `json:"stock_quantity" validate:"omitempty,gte=0"`
	CategoryID    *int64           `json:"category_id" validate:"omitempty,gt=0"`
	ClearCategory bool             `json:"clear_category"`
	ImageURL      *string          `json:"image_url" validate:"omitempty,url,max=2048"`
	Attributes    json.RawMessage  `json:"attributes,omitempty"`
}

func (h *HTTPHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.idParam(w, r, "productId", "product")
	if !ok {
		return
	}
	var input ProductUpdateInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}

	updated, err := h.products.Update(r.Context(), productID, catalog.ProductUpdate{
		Name:          input.Name,
		Slug:          input.Slug,
		Description:   input.Description,
		SKU:           input.SKU,
		Price:         input.Price,
		StockQuantity: input.StockQuantity,
		CategoryID:    input.CategoryID,
		ClearCategory: input.ClearCategory,
		ImageURL:      input.ImageURL,
		Attributes:    input.Attributes,
	})
	if err != nil {
		h.respondWithServiceError(w, r, err, "Failed to update product")
		return
	}
	h.respondWithJSON(w, http.StatusOK, updated)
}

// StockAdjustmentInput adds Delta (possibly negative) to the stock.
type StockAdjustmentInput struct {
	Delta int32 `json:"delta" validate:"required"`
}

func (h *HTTPHandler) AdjustProductStock(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.idParam(w, r, "productId", "product")
	if !ok {
		return
	}
	var input StockAdjustmentInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}
	product, err := h.products.AdjustStock(r.Context(), productID, input.Delta)
	if err != nil {
		h.respondWithServiceError(w, r, err, "Failed to adjust stock")
		return
	}
	h.respondWithJSON(w, http.StatusOK, product)
}

func (h *HTTPHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.idParam(w, r, "productId", "product")
	if !ok {
		return
	}
	if _, err := h.products.Delete(r.Context(), productID); err != nil {
		h.respondWithServiceError(w, r, err, "Failed to delete product")
		return
	}
	h.respondWithJSON(w, http.StatusNoContent, nil)
}

func (h *HTTPHandler) BulkDeleteProducts(w http.ResponseWriter, r *http.Request) {
	var input BulkDeleteInput
	if !h.decodeAndValidate(w, r, &input) {
		return
	}
	n, err := h.products.DeleteMany(r.Context(), input.IDs)
	if err != nil {
		h.respondWithServiceError(w, r, err, "Failed to delete products")
		return
	}
	h.respondWithJSON(w, http.StatusOK, BulkDeleteResponse{Deleted: n})
}

func (h *HTTPHandler) RestoreProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.idParam(w, r, "productId", "product")
	if !ok {
		return
	}
	restored, err := h.products.Restore(r.Context(), productID)
	if err != nil {
		h.respondWithServiceError(w, r, err, "Failed to restore product")
		return
	}
	h.respondWithJSON(w, http.StatusOK, restored)
}
