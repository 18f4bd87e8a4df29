package catalog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"catalog-service/internal/catalog"
	"catalog-service/internal/domain"
	"catalog-service/internal/logger"
	"catalog-service/internal/schema"
	"catalog-service/internal/softdelete"
	"catalog-service/internal/store"
	"catalog-service/internal/store/storetest"
)

type services struct {
	stores     *store.SQLStores
	categories *catalog.CategoryService
	products   *catalog.ProductService
	orders     *catalog.OrderService
}

func newServices(t *testing.T, orderOpts ...catalog.OrderOption) *services {
	t.Helper()
	s := storetest.Open(t)
	reg := schema.Default()
	log := logger.Nop()

	cm, err := softdelete.New[domain.Category](s.Categories, schema.Category, reg)
	require.NoError(t, err)
	pm, err := softdelete.New[domain.Product](s.Products, schema.Product, reg)
	require.NoError(t, err)
	om, err := softdelete.New[domain.Order](s.Orders, schema.Order, reg)
	require.NoError(t, err)
	im, err := softdelete.New[domain.OrderItem](s.OrderItems, schema.OrderItem, reg)
	require.NoError(t, err)

	categories, err := catalog.NewCategoryService(cm, log)
	require.NoError(t, err)
	products, err := catalog.NewProductService(pm, cm, log)
	require.NoError(t, err)
	orders := catalog.NewOrderService(om, im, pm, log, append([]catalog.OrderOption{catalog.WithBcryptCost(bcrypt.MinCost)}, orderOpts...)...)

	return &services{stores: s, categories: categories, products: products, orders: orders}
}

func (s *services) category(t *testing.T, name string, parent *int64) *domain.Category {
	t.Helper()
	c, err := s.categories.Create(context.Background(), catalog.CategoryInput{Name: name, ParentCategoryID: parent})
	require.NoError(t, err)
	return c
}

func ptr[T any](v T) *T { return &v }
