package api

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"

	"catalog-service/internal/catalog"
	"catalog-service/internal/domain"
	"catalog-service/internal/logger"
	"catalog-service/internal/query"
)

// MockCategoryService is a mock implementation of CategoryService.
type MockCategoryService struct {
	mock.Mock
}

func (m *MockCategoryService) Create(ctx context.Context, in catalog.CategoryInput) (*domain.Category, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *MockCategoryService) Get(ctx context.Context, key query.Unique, opts catalog.ReadOptions) (*domain.Category, error) {
	args := m.Called(ctx, key, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *MockCategoryService) List(ctx context.Context, f catalog.CategoryFilter) ([]domain.Category, int64, error) {
	args := m.Called(ctx, f)
	var categories []domain.Category
	if arg0 := args.Get(0); arg0 != nil {
		categories = arg0.([]domain.Category)
	}
	return categories, args.Get(1).(int64), args.Error(2)
}

func (m *MockCategoryService) Update(ctx context.Context, id int64, u catalog.CategoryUpdate) (*domain.Category, error) {
	args := m.Called(ctx, id, u)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *MockCategoryService) Delete(ctx context.Context, id int64) (*domain.Category, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *MockCategoryService) DeleteMany(ctx context.Context, ids []int64) (int64, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCategoryService) Restore(ctx context.Context, id int64) (*domain.Category, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

// MockProductService is a mock implementation of ProductService.
type MockProductService struct {
	mock.Mock
}

func (m *MockProductService) product(args mock.Arguments) (*domain.Product, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *MockProductService) Create(ctx context.Context, in catalog.ProductInput) (*domain.Product, error) {
	return m.product(m.Called(ctx, in))
}

func (m *MockProductService) Get(ctx context.Context, key query.Unique, opts catalog.ReadOptions) (*domain.Product, error) {
	return m.product(m.Called(ctx, key, opts))
}

func (m *MockProductService) List(ctx context.Context, f catalog.ProductFilter) ([]domain.Product, int64, error) {
	args := m.Called(ctx, f)
	var products []domain.Product
	if arg0 := args.Get(0); arg0 != nil {
		products = arg0.([]domain.Product)
	}
	return products, args.Get(1).(int64), args.Error(2)
}

func (m *MockProductService) Recent(ctx context.Context, limit int) ([]domain.Product, error) {
	args := m.Called(ctx, limit)
	var products []domain.Product
	if arg0 := args.Get(0); arg0 != nil {
		products = arg0.([]domain.Product)
	}
	return products, args.Error(1)
}

func (m *MockProductService) Update(ctx context.Context, id int64, u catalog.ProductUpdate) (*domain.Product, error) {
	return m.product(m.Called(ctx, id, u))
}

func (m *MockProductService) AdjustStock(ctx context.Context, id int64, delta int32) (*domain.Product, error) {
	return m.product(m.Called(ctx, id, delta))
}

func (m *MockProductService) Delete(ctx context.Context, id int64) (*domain.Product, error) {
	return m.product(m.Called(ctx, id))
}

func (m *MockProductService) DeleteMany(ctx context.Context, ids []int64) (int64, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockProductService) Restore(ctx context.Context, id int64) (*domain.Product, error) {
	return m.product(m.Called(ctx, id))
}

func (m *MockProductService) Stats(ctx context.Context) (*catalog.ProductStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.ProductStats), args.Error(1)
}

// MockOrderService is a mock implementation of OrderService.
type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) Place(ctx context.Context, in catalog.PlaceOrderInput) (*catalog.PlacedOrder, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.PlacedOrder), args.Error(1)
}

func (m *MockOrderService) order(args mock.Arguments) (*domain.Order, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderService) Get(ctx context.Context, id int64, token string) (*domain.Order, error) {
	return m.order(m.Called(ctx, id, token))
}

func (m *MockOrderService) SetStatus(ctx context.Context, id int64, status domain.OrderStatus) (*domain.Order, error) {
	return m.order(m.Called(ctx, id, status))
}

func (m *MockOrderService) Delete(ctx context.Context, id int64) (*domain.Order, error) {
	return m.order(m.Called(ctx, id))
}

// setupTestChiServer wires the handler into a chi router behind an httptest server.
func setupTestChiServer(t *testing.T, cs CategoryService, ps ProductService, ords OrderService) *httptest.Server {
	t.Helper()
	handler := NewHTTPHandler(cs, ps, ords, logger.Nop())
	router := chi.NewRouter()
	handler.RegisterRoutes(router)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

// PtrTo returns a pointer to v.
func PtrTo[T any](v T) *T {
	return &v
}
