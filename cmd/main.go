package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	gormlogger "gorm.io/gorm/logger"

	"catalog-service/internal/api"
	"catalog-service/internal/catalog"
	"catalog-service/internal/config"
	"catalog-service/internal/domain"
	"catalog-service/internal/logger"
	"catalog-service/internal/metrics"
	"catalog-service/internal/schema"
	"catalog-service/internal/softdelete"
	"catalog-service/internal/store"
	"catalog-service/migrations"
)

const defaultAppName = "CatalogService"

func main() {
	boot := zap.Must(zap.NewProduction()).Sugar()
	if err := godotenv.Load(); err != nil {
		// Environment variables may be set some other way.
		boot.Info(".env file not found, relying on system environment")
	}

	cfg, err := config.Load()
	if err != nil {
		boot.Fatalw("error loading configuration", "error", err)
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Development: cfg.LogDevelopment})
	if err != nil {
		boot.Fatalw("error building logger", "error", err)
	}
	defer log.Sync()
	log = log.With("service", defaultAppName)
	log.Infow("configuration loaded", "app_env", cfg.AppEnv, "log_level", cfg.LogLevel, "storage", cfg.Storage.Driver)

	// --- Database Connection ---
	db, dialect, err := openDatabase(cfg, log)
	if err != nil {
		log.Fatalw("failed to initialize database", "error", err)
	}
	defer func() {
		// Fallback if startup fails before the graceful shutdown closes it.
		if err := db.Close(); err != nil {
			log.Debugw("database already closed", "error", err)
		}
	}()

	// --- Services ---
	var observer softdelete.Observer
	if cfg.MetricsEnabled {
		observer = metrics.NewRecorder(prometheus.DefaultRegisterer)
	}
	svc, err := buildServices(db, dialect, cfg, log, observer)
	if err != nil {
		log.Fatalw("failed to wire services", "error", err)
	}

	httpAPIHandler := api.NewHTTPHandler(svc.categories, svc.products, svc.orders, log)
	grpcAPIHandler := api.NewGRPCHandler(svc.categories, svc.products, log)

	// --- Setup & Start HTTP Server ---
	httpRouter := chi.NewRouter()
	setupBaseMiddleware(httpRouter, cfg, log)
	registerHealthCheck(httpRouter, log, db)
	if cfg.MetricsEnabled {
		httpRouter.Handle("/metrics", promhttp.Handler())
	}
	httpAPIHandler.RegisterRoutes(httpRouter)

	httpServer := &http.Server{
		Addr:         ":" + cfg.HttpServer.Port,
		Handler:      httpRouter,
		ReadTimeout:  cfg.HttpServer.TimeoutRead,
		WriteTimeout: cfg.HttpServer.TimeoutWrite,
		IdleTimeout:  cfg.HttpServer.TimeoutIdle,
	}

	go func() {
		log.Infow("HTTP server listening", "port", cfg.HttpServer.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("HTTP server ListenAndServe error", "error", err)
		}
		log.Info("HTTP server has stopped")
	}()

	// --- Setup & Start gRPC Server ---
	grpcServer := setupGRPCServer(log, grpcAPIHandler)
	grpcListener, err := net.Listen("tcp", ":"+cfg.GrpcServer.Port)
	if err != nil {
		log.Fatalw("failed to listen for gRPC", "port", cfg.GrpcServer.Port, "error", err)
	}

	go func() {
		log.Infow("gRPC server listening", "port", cfg.GrpcServer.Port)
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Fatalw("gRPC server Serve error", "error", err)
		}
		log.Info("gRPC server has stopped")
	}()

	// --- Graceful Shutdown ---
	shutdownComplete := make(chan struct{})
	go waitForShutdown(log, httpServer, grpcServer, db, shutdownComplete)

	<-shutdownComplete
	log.Info("service shutdown sequence finished")
}

// openDatabase connects to the configured backend and makes sure its schema exists.
func openDatabase(cfg *config.Config, log *logger.Logger) (*sql.DB, store.Dialect, error) {
	dialect, ok := store.DialectByName(cfg.Storage.Driver)
	if !ok {
		return nil, nil, errors.New("unsupported storage driver " + cfg.Storage.Driver)
	}

	if dialect == store.SQLite {
		db, err := store.OpenSQLite(cfg.Storage.SQLitePath, gormLogLevel(cfg.LogLevel))
		if err != nil {
			return nil, nil, err
		}
		log.Infow("sqlite database opened", "path", cfg.Storage.SQLitePath)
		return db, dialect, nil
	}

	db, err := sql.Open("postgres", cfg.Postgres.DSN())
	if err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	if cfg.Storage.AutoMigrate {
		applied, err := migrations.ApplyPostgres(ctx, db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		log.Infow("postgres migrations applied", "versions", applied)
	}
	log.Info("postgres connection established")
	return db, dialect, nil
}

func gormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "debug":
		return gormlogger.Info
	case "error":
		return gormlogger.Error
	default:
		return gormlogger.Warn
	}
}

type services struct {
	categories *catalog.CategoryService
	products   *catalog.ProductService
	orders     *catalog.OrderService
}

// buildServices puts a soft-delete mediator in front of every table and the
// catalog services on top of the mediators.
func buildServices(db store.DBTX, dialect store.Dialect, cfg *config.Config, log *logger.Logger, observer softdelete.Observer) (*services, error) {
	reg := schema.Default()
	stores, err := store.NewSQLStores(db, dialect, reg)
	if err != nil {
		return nil, err
	}

	opts := []softdelete.Option{softdelete.WithLogger(log)}
	if observer != nil {
		opts = append(opts, softdelete.WithObserver(observer))
	}
	categories, err := softdelete.New[domain.Category](stores.Categories, schema.Category, reg, opts...)
	if err != nil {
		return nil, err
	}
	products, err := softdelete.New[domain.Product](stores.Products, schema.Product, reg, opts...)
	if err != nil {
		return nil, err
	}
	orders, err := softdelete.New[domain.Order](stores.Orders, schema.Order, reg, opts...)
	if err != nil {
		return nil, err
	}
	items, err := softdelete.New[domain.OrderItem](stores.OrderItems, schema.OrderItem, reg, opts...)
	if err != nil {
		return nil, err
	}

	categoryService, err := catalog.NewCategoryService(categories, log)
	if err != nil {
		return nil, err
	}
	productService, err := catalog.NewProductService(products, categories, log)
	if err != nil {
		return nil, err
	}
	orderService := catalog.NewOrderService(orders, items, products, log, catalog.WithBcryptCost(cfg.BcryptCost))

	return &services{categories: categoryService, products: productService, orders: orderService}, nil
}

func setupBaseMiddleware(router *chi.Mux, cfg *config.Config, log *logger.Logger) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(cfg.HttpServer.RequestTimeout))
	log.Debugw("base HTTP middleware registered", "request_timeout", cfg.HttpServer.RequestTimeout)
}

func registerHealthCheck(router *chi.Mux, log *logger.Logger, db *sql.DB) {
	healthPath := "/api/v1/healthz"
	router.Get(healthPath, func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		dbStatus := "healthy"
		if err := db.PingContext(ctx); err != nil {
			dbStatus = "unhealthy"
			log.Warnw("health check DB ping failed", "error", err)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK) // payload carries the detailed status
		json.NewEncoder(w).Encode(map[string]any{
			"status":      "healthy",
			"serviceName": defaultAppName,
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
			"database":    dbStatus,
		})
	})
	log.Debugw("HTTP health check registered", "path", healthPath)
}

// unaryLogger logs every unary call with its duration and status.
func unaryLogger(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		fields := []zap.Field{zap.String("method", info.FullMethod), zap.Duration("duration", time.Since(start))}
		if err != nil {
			log.Warn("gRPC call failed", append(fields, zap.Error(err))...)
		} else {
			log.Debug("gRPC call", fields...)
		}
		return resp, err
	}
}

func setupGRPCServer(log *logger.Logger, grpcAPIHandler *api.GRPCHandler) *grpc.Server {
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(unaryLogger(log.WithComponent("grpc").Zap())))

	grpcAPIHandler.Register(s)
	log.Infow("gRPC service registered", "service", api.CatalogServiceName)

	grpc_health_v1.RegisterHealthServer(s, health.NewServer())
	reflection.Register(s)
	log.Debug("gRPC health check and reflection services registered")

	return s
}

func waitForShutdown(
	log *logger.Logger,
	httpServer *http.Server,
	grpcServer *grpc.Server,
	db *sql.DB,
	shutdownComplete chan struct{},
) {
	defer close(shutdownComplete)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	receivedSignal := <-sigChan
	log.Infow("starting graceful shutdown", "signal", receivedSignal.String())

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	stoppedGrpc := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stoppedGrpc)
	}()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warnw("HTTP server graceful shutdown failed", "error", err)
	} else {
		log.Info("HTTP server gracefully shut down")
	}

	select {
	case <-stoppedGrpc:
		log.Info("gRPC server gracefully shut down")
	case <-shutdownCtx.Done():
		log.Warnw("gRPC server graceful shutdown timed out, forcing stop", "error", shutdownCtx.Err())
		grpcServer.Stop()
	}

	if err := db.Close(); err != nil {
		log.Warnw("error closing database connection", "error", err)
	}
	log.Info("graceful shutdown sequence completed")
}
