package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormlogger "gorm.io/gorm/logger"

	"catalog-service/internal/api"
	"catalog-service/internal/config"
	"catalog-service/internal/logger"
	"catalog-service/internal/metrics"
	"catalog-service/internal/store"
)

type testApp struct {
	server   *httptest.Server
	registry *prometheus.Registry
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	db, err := store.OpenSQLite(":memory:", gormlogger.Silent)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		BcryptCost: 4,
		HttpServer: config.ServerConfig{RequestTimeout: 5 * time.Second},
	}
	log := logger.Nop()
	registry := prometheus.NewRegistry()

	svc, err := buildServices(db, store.SQLite, cfg, log, metrics.NewRecorder(registry))
	require.NoError(t, err)

	router := chi.NewRouter()
	setupBaseMiddleware(router, cfg, log)
	registerHealthCheck(router, log, db)
	api.NewHTTPHandler(svc.categories, svc.products, svc.orders, log).RegisterRoutes(router)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &testApp{server: server, registry: registry}
}

func (a *testApp) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, a.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	if out != nil && res.StatusCode < 300 && res.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(res.Body).Decode(out))
	}
	return res.StatusCode
}

type record struct {
	ID       int64    `json:"id"`
	Slug     string   `json:"slug"`
	IsActive bool     `json:"is_active"`
	Products []record `json:"products"`
}

func TestApp_SoftDeleteLifecycle(t *testing.T) {
	app := newTestApp(t)

	var category record
	require.Equal(t, http.StatusCreated, app.do(t, http.MethodPost, "/api/v1/categories",
		map[string]any{"name": "Shoes"}, &category))
	assert.Equal(t, "shoes", category.Slug)

	var boots record
	require.Equal(t, http.StatusCreated, app.do(t, http.MethodPost, "/api/v1/products", map[string]any{
		"name": "Trail Boots", "sku": "TB-1", "price": "120.00", "stock_quantity": 3, "category_id": category.ID,
	}, &boots))
	assert.Equal(t, "trail-boots", boots.Slug)

	productPath := fmt.Sprintf("/api/v1/products/%d", boots.ID)
	require.Equal(t, http.StatusNoContent, app.do(t, http.MethodDelete, productPath, nil, nil))
	assert.Equal(t, http.StatusNotFound, app.do(t, http.MethodGet, productPath, nil, nil))
	assert.Equal(t, http.StatusNotFound, app.do(t, http.MethodDelete, productPath, nil, nil))

	var hidden record
	require.Equal(t, http.StatusOK, app.do(t, http.MethodGet, productPath+"?include_deleted=true", nil, &hidden))
	assert.Regexp(t, `^trail-boots-deleted-\d+$`, hidden.Slug)
	assert.False(t, hidden.IsActive)

	var shown record
	categoryPath := fmt.Sprintf("/api/v1/categories/%d", category.ID)
	require.Equal(t, http.StatusOK, app.do(t, http.MethodGet, categoryPath+"?include=products", nil, &shown))
	assert.Empty(t, shown.Products)

	var replacement record
	require.Equal(t, http.StatusCreated, app.do(t, http.MethodPost, "/api/v1/products", map[string]any{
		"name": "Trail Boots", "sku": "TB-2", "price": 99.5, "category_id": category.ID,
	}, &replacement))
	assert.Equal(t, "trail-boots", replacement.Slug)

	var restored record
	require.Equal(t, http.StatusOK, app.do(t, http.MethodPost, productPath+"/restore", nil, &restored))
	assert.Equal(t, "trail-boots-1", restored.Slug)
	assert.True(t, restored.IsActive)
	assert.Equal(t, http.StatusConflict, app.do(t, http.MethodPost, productPath+"/restore", nil, nil))

	require.Equal(t, http.StatusOK, app.do(t, http.MethodGet, categoryPath+"?include=products", nil, &shown))
	assert.Len(t, shown.Products, 2)

	deletes, err := testutil.GatherAndCount(app.registry, "catalog_soft_deletes_total")
	require.NoError(t, err)
	assert.Equal(t, 1, deletes)
	restores, err := testutil.GatherAndCount(app.registry, "catalog_restores_total")
	require.NoError(t, err)
	assert.Equal(t, 1, restores)
}

func TestApp_HealthCheck(t *testing.T) {
	app := newTestApp(t)

	var body map[string]any
	require.Equal(t, http.StatusOK, app.do(t, http.MethodGet, "/api/v1/healthz", nil, &body))
	assert.Equal(t, "healthy", body["database"])
	assert.Equal(t, defaultAppName, body["serviceName"])
}

func TestGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Info, gormLogLevel("debug"))
	assert.Equal(t, gormlogger.Error, gormLogLevel("error"))
	assert.Equal(t, gormlogger.Warn, gormLogLevel("info"))
}
