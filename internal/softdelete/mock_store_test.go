package softdelete

import (
	"context"

	"github.com/stretchr/testify/mock"

	"catalog-service/internal/query"
)

// mockStore is a testify mock of store.RecordStore.
type mockStore[T any] struct {
	mock.Mock
}

func (m *mockStore[T]) FindUnique(ctx context.Context, args query.FindUniqueArgs) (*T, error) {
	ret := m.Called(ctx, args)
	rec, _ := ret.Get(0).(*T)
	return rec, ret.Error(1)
}

func (m *mockStore[T]) FindMany(ctx context.Context, args query.FindArgs) ([]T, error) {
	ret := m.Called(ctx, args)
	recs, _ := ret.Get(0).([]T)
	return recs, ret.Error(1)
}

func (m *mockStore[T]) Count(ctx context.Context, where query.Where) (int64, error) {
	ret := m.Called(ctx, where)
	return ret.Get(0).(int64), ret.Error(1)
}

func (m *mockStore[T]) Aggregate(ctx context.Context, where query.Where, spec query.AggregateSpec) (query.AggregateResult, error) {
	ret := m.Called(ctx, where, spec)
	return ret.Get(0).(query.AggregateResult), ret.Error(1)
}

func (m *mockStore[T]) GroupBy(ctx context.Context, args query.GroupByArgs) ([]query.Group, error) {
	ret := m.Called(ctx, args)
	groups, _ := ret.Get(0).([]query.Group)
	return groups, ret.Error(1)
}

func (m *mockStore[T]) Create(ctx context.Context, data *T) (*T, error) {
	ret := m.Called(ctx, data)
	rec, _ := ret.Get(0).(*T)
	return rec, ret.Error(1)
}

func (m *mockStore[T]) Update(ctx context.Context, where query.Unique, patch query.Patch) (*T, error) {
	ret := m.Called(ctx, where, patch)
	rec, _ := ret.Get(0).(*T)
	return rec, ret.Error(1)
}

func (m *mockStore[T]) UpdateMany(ctx context.Context, where query.Where, patch query.Patch) (int64, error) {
	ret := m.Called(ctx, where, patch)
	return ret.Get(0).(int64), ret.Error(1)
}

func (m *mockStore[T]) Delete(ctx context.Context, where query.Unique) (*T, error) {
	ret := m.Called(ctx, where)
	rec, _ := ret.Get(0).(*T)
	return rec, ret.Error(1)
}

func (m *mockStore[T]) DeleteMany(ctx context.Context, where query.Where) (int64, error) {
	ret := m.Called(ctx, where)
	return ret.Get(0).(int64), ret.Error(1)
}
