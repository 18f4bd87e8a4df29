package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"catalog-service/internal/catalog"
	"catalog-service/internal/domain"
	"catalog-service/internal/query"
	"catalog-service/internal/store"
)

func doRequest(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func decodeError(t *testing.T, res *http.Response) string {
	t.Helper()
	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&errResp))
	return errResp.Error
}

func TestHTTPHandler_CreateCategory_Success(t *testing.T) {
	svc := new(MockCategoryService)
	server := setupTestChiServer(t, svc, nil, nil)

	now := time.Now().Truncate(time.Millisecond)
	input := CategoryCreateInput{Name: "New API Test Category", Description: PtrTo("Description for API category")}
	expected := &domain.Category{
		ID: 1, Name: input.Name, Slug: "new-api-test-category", Description: input.Description,
		IsActive: true, CreatedAt: now, UpdatedAt: now,
	}

	svc.On("Create", mock.Anything, mock.MatchedBy(func(in catalog.CategoryInput) bool {
		return in.Name == input.Name && in.Description != nil && *in.Description == *input.Description
	})).Return(expected, nil).Once()

	res := doRequest(t, http.MethodPost, server.URL+"/api/v1/categories", input)
	require.Equal(t, http.StatusCreated, res.StatusCode)

	var got domain.Category
	require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
	assert.Equal(t, expected.ID, got.ID)
	assert.Equal(t, expected.Slug, got.Slug)
	assert.WithinDuration(t, now, got.CreatedAt, time.Second)

	svc.AssertExpectations(t)
}

func TestHTTPHandler_CreateCategory_InvalidPayload_Validation(t *testing.T) {
	svc := new(MockCategoryService)
	server := setupTestChiServer(t, svc, nil, nil)

	res := doRequest(t, http.MethodPost, server.URL+"/api/v1/categories", CategoryCreateInput{Name: ""})

	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Contains(t, decodeError(t, res), "Validation failed")
	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestHTTPHandler_CreateCategory_SlugExists(t *testing.T) {
	svc := new(MockCategoryService)
	server := setupTestChiServer(t, svc, nil, nil)

	svc.On("Create", mock.Anything, mock.AnythingOfType("catalog.CategoryInput")).
		Return(nil, &store.UniqueViolationError{Table: "categories", Column: "slug", Err: errors.New("dup")}).Once()

	res := doRequest(t, http.MethodPost, server.URL+"/api/v1/categories", CategoryCreateInput{Name: "Existing"})

	assert.Equal(t, http.StatusConflict, res.StatusCode)
	assert.Equal(t, "slug already exists", decodeError(t, res))
	svc.AssertExpectations(t)
}

func TestHTTPHandler_ListCategories_Success(t *testing.T) {
	svc := new(MockCategoryService)
	server := setupTestChiServer(t, svc, nil, nil)

	categories := []domain.Category{{ID: 1, Name: "Cat A"}, {ID: 2, Name: "Cat B"}}
	svc.On("List", mock.Anything, catalog.CategoryFilter{
		Page:             catalog.Page{Limit: 10, Offset: 10},
		ParentID:         PtrTo(int64(3)),
		Search:           "cat",
		IncludeDeleted:   true,
		WithProductCount: true,
	}).Return(categories, int64(12), nil).Once()

	res := doRequest(t, http.MethodGet,
		server.URL+"/api/v1/categories?page=2&limit=10&parent_id=3&q=cat&include_deleted=true&with_product_count=true", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var payload ListResponse[domain.Category]
	require.NoError(t, json.NewDecoder(res.Body).Decode(&payload))
	assert.Len(t, payload.Data, 2)
	assert.Equal(t, PaginationInfo{Page: 2, Limit: 10, TotalItems: 12, TotalPages: 2}, payload.Pagination)

	svc.AssertExpectations(t)
}

func TestHTTPHandler_ListCategories_BadParams(t *testing.T) {
	svc := new(MockCategoryService)
	server := setupTestChiServer(t, svc, nil, nil)

	for _, q := range []string{"parent_id=abc", "include_deleted=maybe", "include=children..products", "roots_only=2"} {
		res := doRequest(t, http.MethodGet, server.URL+"/api/v1/categories?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, res.StatusCode, q)
	}
	svc.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

func TestHTTPHandler_GetCategory_IncludeAndDeleted(t *testing.T) {
	svc := new(MockCategoryService)
	server := setupTestChiServer(t, svc, nil, nil)

	var opts catalog.ReadOptions
	svc.On("Get", mock.Anything, query.ByID(7), mock.Anything).
		Run(func(args mock.Arguments) { opts = args.Get(2).(catalog.ReadOptions) }).
		Return(&domain.Category{ID: 7, Name: "Boots"}, nil).Once()

	res := doRequest(t, http.MethodGet,
		server.URL+"/api/v1/categories/7?include_deleted=true&include=parent,children.products&counts=products", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	assert.True(t, opts.IncludeDeleted)
	assert.Equal(t, []string{"children", "parent"}, opts.Include.Names())
	assert.Equal(t, []string{"products"}, opts.Include["children"].Include.Names())
	assert.Equal(t, []string{"products"}, opts.Counts.Names())
	svc.AssertExpectations(t)
}

func TestHTTPHandler_GetCategory_JSONInclude(t *testing.T) {
	svc := new(MockCategoryService)
	server := setupTestChiServer(t, svc, nil, nil)

	var opts catalog.ReadOptions
	svc.On("Get", mock.Anything, query.BySlug("boots"), mock.Anything).
		Run(func(args mock.Arguments) { opts = args.Get(2).(catalog.ReadOptions) }).
		Return(&domain.Category{ID: 7, Slug: "boots"}, nil).Once()

	include := `{"products":{"include_deleted":true,"limit":3,"order_by":["-price"]}}`
	req, err := http.NewRequest(http.MethodGet, server.URL+"/api/v1/categories/by-slug/boots", nil)
	require.NoError(t, err)
	q := req.URL.Query()
	q.Set("include", include)
	req.URL.RawQuery = q.Encode()
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)
	node := opts.Include["products"]
	require.NotNil(t, node)
	assert.True(t, node.IncludeDeleted)
	assert.Equal(t, 3, node.Limit)
	assert.Equal(t, []string{"-price"}, node.OrderBy)
}

func TestHTTPHandler_GetCategoryByID_NotFound(t *testing.T) {
	svc := new(MockCategoryService)
	server := setupTestChiServer(t, svc, nil, nil)

	svc.On("Get", mock.Anything, query.ByID(99), catalog.ReadOptions{}).
		Return(nil, fmt.Errorf("catalog: category id=99: %w", store.ErrNotFound)).Once()

	res := doRequest(t, http.MethodGet, server.URL+"/api/v1/categories/99", nil)

	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, "resource not found", decodeError(t, res))
	svc.AssertExpectations(t)
}

func TestHTTPHandler_GetCategoryByID_InvalidID(t *testing.T) {
	server := setupTestChiServer(t, new(MockCategoryService), nil, nil)

	res := doRequest(t, http.MethodGet, server.URL+"/api/v1/categories/abc", nil)

	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "Invalid category ID format", decodeError(t, res))
}

func TestHTTPHandler_UpdateCategory_Success(t *testing.T) {
	svc := new(MockCategoryService)
	server := setupTestChiServer(t, svc, nil, nil)

	input := CategoryUpdateInput{Name: PtrTo("Updated Category Name"), ClearParent: true}
	svc.On("Update", mock.Anything, int64(1), catalog.CategoryUpdate{Name: input.Name, ClearParent: true}).
		Return(&domain.Category{ID: 1, Name: *input.Name}, nil).Once()

	res := doRequest(t, http.MethodPut, server.URL+"/api/v1/categories/1", input)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var got domain.Category
	require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
	assert.Equal(t, "Updated Category Name", got.Name)
	svc.AssertExpectations(t)
}

func TestHTTPHandler_UpdateCategory_OwnParent(t *testing.T) {
	svc := new(MockCategoryService)
	server := setupTestChiServer(t, svc, nil, nil)

	res := doRequest(t, http.MethodPut, server.URL+"/api/v1/categories/5", CategoryUpdateInput{ParentCategoryID: PtrTo(int64(5))})

	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "Category cannot be its own parent", decodeError(t, res))
	svc.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestHTTPHandler_UpdateCategory_ServiceValidation(t *testing.T) {
	svc := new(MockCategoryService)
	server := setupTestChiServer(t, svc, nil, nil)

	svc.On("Update", mock.Anything, int64(5), mock.Anything).
		Return(nil, fmt.Errorf("%w: slug %q ends with a reserved suffix", catalog.ErrInvalidInput, "a-deleted-1")).Once()

	res := doRequest(t, http.MethodPut, server.URL+"/api/v1/categories/5", CategoryUpdateInput{Slug: PtrTo("a-deleted-1")})

	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Contains(t, decodeError(t, res), "reserved suffix")
}

func TestHTTPHandler_DeleteCategory(t *testing.T) {
	svc := new(MockCategoryService)
	server := setupTestChiServer(t, svc, nil, nil)

	svc.On("Delete", mock.Anything, int64(1)).Return(&domain.Category{ID: 1}, nil).Once()
	svc.On("Delete", mock.Anything, int64(99)).Return(nil, store.ErrNotFound).Once()

	res := doRequest(t, http.MethodDelete, server.URL+"/api/v1/categories/1", nil)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)

	res = doRequest(t, http.MethodDelete, server.URL+"/api/v1/categories/99", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	svc.AssertExpectations(t)
}

func TestHTTPHandler_BulkDeleteCategories(t *testing.T) {
	svc := new(MockCategoryService)
	server := setupTestChiServer(t, svc, nil, nil)

	svc.On("DeleteMany", mock.Anything, []int64{1, 2, 3}).Return(int64(2), nil).Once()

	res := doRequest(t, http.MethodPost, server.URL+"/api/v1/categories/bulk-delete", BulkDeleteInput{IDs: []int64{1, 2, 3}})
	require.Equal(t, http.StatusOK, res.StatusCode)
	var got BulkDeleteResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
	assert.Equal(t, int64(2), got.Deleted)

	res = doRequest(t, http.MethodPost, server.URL+"/api/v1/categories/bulk-delete", BulkDeleteInput{IDs: []int64{}})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res = doRequest(t, http.MethodPost, server.URL+"/api/v1/categories/bulk-delete", BulkDeleteInput{IDs: []int64{0}})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	svc.AssertExpectations(t)
}

func TestHTTPHandler_RestoreCategory(t *testing.T) {
	svc := new(MockCategoryService)
	server := setupTestChiServer(t, svc, nil, nil)

	svc.On("Restore", mock.Anything, int64(4)).Return(&domain.Category{ID: 4, Slug: "boots-1", IsActive: true}, nil).Once()
	svc.On("Restore", mock.Anything, int64(5)).
		Return(nil, fmt.Errorf("catalog: restore category 5: %w", catalog.ErrNotDeleted)).Once()

	res := doRequest(t, http.MethodPost, server.URL+"/api/v1/categories/4/restore", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var got domain.Category
	require.NoError(t, json.NewDecoder(res.Body).Decode(&got))
	assert.Equal(t, "boots-1", got.Slug)

	res = doRequest(t, http.MethodPost, server.URL+"/api/v1/categories/5/restore", nil)
	assert.Equal(t, http.StatusConflict, res.StatusCode)

	svc.AssertExpectations(t)
}

func TestHTTPHandler_InternalErrorsAreHidden(t *testing.T) {
	svc := new(MockCategoryService)
	server := setupTestChiServer(t, svc, nil, nil)

	svc.On("Get", mock.Anything, query.ByID(1), catalog.ReadOptions{}).Return(nil, errors.New("pq: connection refused")).Once()

	res := doRequest(t, http.MethodGet, server.URL+"/api/v1/categories/1", nil)

	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	assert.Equal(t, "Failed to retrieve category", decodeError(t, res))
}
