package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"catalog-service/internal/catalog"
	"catalog-service/internal/domain"
	"catalog-service/internal/logger"
	"catalog-service/internal/query"
	"catalog-service/internal/store"
)

// CategoryService is the category use-case surface the transports depend on.
type CategoryService interface {
	Create(ctx context.Context, in catalog.CategoryInput) (*domain.Category, error)
	Get(ctx context.Context, key query.Unique, opts catalog.ReadOptions) (*domain.Category, error)
	List(ctx context.Context, f catalog.CategoryFilter) ([]domain.Category, int64, error)
	Update(ctx context.Context, id int64, u catalog.CategoryUpdate) (*domain.Category, error)
	Delete(ctx context.Context, id int64) (*domain.Category, error)
	DeleteMany(ctx context.Context, ids []int64) (int64, error)
	Restore(ctx context.Context, id int64) (*domain.Category, error)
}

// ProductService is the product use-case surface the transports depend on.
type ProductService interface {
	Create(ctx context.Context, in catalog.ProductInput) (*domain.Product, error)
	Get(ctx context.Context, key query.Unique, opts catalog.ReadOptions) (*domain.Product, error)
	List(ctx context.Context, f catalog.ProductFilter) ([]domain.Product, int64, error)
	Recent(ctx context.Context, limit int) ([]domain.Product, error)
	Update(ctx context.Context, id int64, u catalog.ProductUpdate) (*domain.Product, error)
	AdjustStock(ctx context.Context, id int64, delta int32) (*domain.Product, error)
	Delete(ctx context.Context, id int64) (*domain.Product, error)
	DeleteMany(ctx context.Context, ids []int64) (int64, error)
	Restore(ctx context.Context, id int64) (*domain.Product, error)
	Stats(ctx context.Context) (*catalog.ProductStats, error)
}

// OrderService is the guest order surface the transports depend on.
type OrderService interface {
	Place(ctx context.Context, in catalog.PlaceOrderInput) (*catalog.PlacedOrder, error)
	Get(ctx context.Context, id int64, token string) (*domain.Order, error)
	SetStatus(ctx context.Context, id int64, status domain.OrderStatus) (*domain.Order, error)
	Delete(ctx context.Context, id int64) (*domain.Order, error)
}

// HTTPHandler holds dependencies for HTTP handlers.
type HTTPHandler struct {
	categories CategoryService
	products   ProductService
	orders     OrderService
	validate   *validator.Validate
	log        *logger.Logger
}

// NewHTTPHandler creates a new HTTPHandler with dependencies.
func NewHTTPHandler(cs CategoryService, ps ProductService, ords OrderService, log *logger.Logger) *HTTPHandler {
	return &HTTPHandler{
		categories: cs,
		products:   ps,
		orders:     ords,
		validate:   validator.New(),
		log:        log.WithComponent("http"),
	}
}

// --- Helpers ---

// ErrorResponse defines the structure for JSON error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// PaginationInfo describes the page returned by a list endpoint.
type PaginationInfo struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalItems int64 `json:"total_items"`
	TotalPages int64 `json:"total_pages"`
}

// ListResponse is the envelope of list endpoints.
type ListResponse[T any] struct {
	Data       []T            `json:"data"`
	Pagination PaginationInfo `json:"pagination"`
}

func newListResponse[T any](items []T, total int64, page, limit int) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	var pages int64
	if total > 0 {
		pages = (total + int64(limit) - 1) / int64(limit)
	}
	return ListResponse[T]{
		Data:       items,
		Pagination: PaginationInfo{Page: page, Limit: limit, TotalItems: total, TotalPages: pages},
	}
}

func (h *HTTPHandler) respondWithError(w http.ResponseWriter, code int, message string) {
	h.respondWithJSON(w, code, ErrorResponse{Error: message})
}

func (h *HTTPHandler) respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			h.log.Errorw("failed to encode JSON response", "error", err)
		}
	}
}

// respondWithServiceError maps service and store errors onto HTTP statuses.
func (h *HTTPHandler) respondWithServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var unique *store.UniqueViolationError
	switch {
	case errors.Is(err, store.ErrNotFound):
		h.respondWithError(w, http.StatusNotFound, "resource not found")
	case errors.As(err, &unique):
		h.respondWithError(w, http.StatusConflict, fmt.Sprintf("%s already exists", unique.Column))
	case errors.Is(err, catalog.ErrNotDeleted):
		h.respondWithError(w, http.StatusConflict, "resource is not deleted")
	case errors.Is(err, catalog.ErrInsufficientStock):
		h.respondWithError(w, http.StatusConflict, "insufficient stock")
	case errors.Is(err, catalog.ErrInvalidToken):
		h.respondWithError(w, http.StatusForbidden, "invalid confirmation token")
	case errors.Is(err, catalog.ErrInvalidInput),
		errors.Is(err, query.ErrMalformedInclude),
		errors.Is(err, query.ErrUnknownField):
		h.respondWithError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.Errorw(fallback, "method", r.Method, "path", r.URL.Path, "error", err)
		h.respondWithError(w, http.StatusInternalServerError, fallback)
	}
}

// decodeAndValidate reads a JSON body into dst and runs struct validation.
func (h *HTTPHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return false
	}
	return true
}

func (h *HTTPHandler) idParam(w http.ResponseWriter, r *http.Request, name, label string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		h.respondWithError(w, http.StatusBadRequest, "Invalid "+label+" ID format")
		return 0, false
	}
	return id, true
}

// pagination reads limit and page the way every list endpoint does.
func pagination(r *http.Request) (page, limit int) {
	q := r.URL.Query()
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit <= 0 {
		limit = catalog.DefaultPageSize
	}
	if limit > catalog.MaxPageSize {
		limit = catalog.MaxPageSize
	}
	page, err = strconv.Atoi(q.Get("page"))
	if err != nil || page <= 0 {
		page = 1
	}
	return page, limit
}

func boolParam(r *http.Request, name string) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be true or false", catalog.ErrInvalidInput, name)
	}
	return b, nil
}

// includeParam parses an expansion given either as dotted paths
// ("category,children.products") or as a JSON include tree.
func includeParam(r *http.Request, name string) (query.Include, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if strings.HasPrefix(v, "{") {
		return query.ParseInclude([]byte(v))
	}
	return query.ParseIncludePaths(v)
}

// privateRelations lead to customer orders, which are served only by the
// token-checked order endpoint.
var privateRelations = []string{"order_items", "order", "items"}

func publicInclude(inc query.Include) error {
	for _, name := range privateRelations {
		if inc.Mentions(name) {
			return fmt.Errorf("%w: relation %q cannot be expanded", query.ErrMalformedInclude, name)
		}
	}
	return nil
}

func readOptions(r *http.Request) (catalog.ReadOptions, error) {
	var opts catalog.ReadOptions
	var err error
	if opts.IncludeDeleted, err = boolParam(r, "include_deleted"); err != nil {
		return opts, err
	}
	if opts.Include, err = includeParam(r, "include"); err != nil {
		return opts, err
	}
	if opts.Counts, err = includeParam(r, "counts"); err != nil {
		return opts, err
	}
	if err = publicInclude(opts.Include); err != nil {
		return opts, err
	}
	return opts, publicInclude(opts.Counts)
}

// BulkDeleteInput lists the records to soft-delete.
type BulkDeleteInput struct {
	IDs []int64 `json:"ids" validate:"required,min=1,max=500,dive,gt=0"`
}

// BulkDeleteResponse reports how many live records were deleted.
type BulkDeleteResponse struct {
	Deleted int64 `json:"deleted"`
}

// --- Route Registration ---

// RegisterRoutes sets up the HTTP routes for the service.
func (h *HTTPHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/categories", func(r chi.Router) {
		r.Post("/", h.CreateCategory)
		r.Get("/", h.ListCategories)
		r.Post("/bulk-delete", h.BulkDeleteCategories)
		r.Get("/by-slug/{slug}", h.GetCategoryBySlug)
		r.Route("/{categoryId}", func(r chi.Router) {
			r.Get("/", h.GetCategoryByID)
			r.Put("/", h.UpdateCategory)
			r.Delete("/", h.DeleteCategory)
			r.Post("/restore", h.RestoreCategory)
		})
	})

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Post("/", h.CreateProduct)
		r.Get("/", h.ListProducts)
		// Static segments before {productId}.
		r.Get("/recommendations", h.GetProductRecommendations)
		r.Get("/stats", h.GetProductStats)
		r.Post("/bulk-delete", h.BulkDeleteProducts)
		r.Get("/by-slug/{slug}", h.GetProductBySlug)
		r.Route("/{productId}", func(r chi.Router) {
			r.Get("/", h.GetProductByID)
			r.Put("/", h.UpdateProduct)
			r.Delete("/", h.DeleteProduct)
			r.Post("/restore", h.RestoreProduct)
			r.Post("/stock", h.AdjustProductStock)
		})
	})

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Post("/", h.PlaceOrder)
		r.Route("/{orderId}", func(r chi.Router) {
			r.Get("/", h.GetOrder)
			r.Put("/status", h.UpdateOrderStatus)
			r.Delete("/", h.DeleteOrder)
		})
	})
}
