package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds the application's configuration values.
// Tags like `envconfig:"APP_PORT"` specify the environment variable name.
type Config struct {
	AppEnv         string `envconfig:"APP_ENV" default:"development"` // e.g., development, staging, production
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`      // debug, info, warn, error
	LogDevelopment bool   `envconfig:"LOG_DEVELOPMENT" default:"false"`
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"`
	BcryptCost     int    `envconfig:"ORDER_TOKEN_BCRYPT_COST" default:"10"`
	HttpServer     ServerConfig
	GrpcServer     GrpcServerConfig
	Storage        StorageConfig
	Postgres       PostgresConfig
}

// ServerConfig holds HTTP server-specific configurations.
type ServerConfig struct {
	Port           string        `envconfig:"HTTP_SERVER_PORT" default:"8080"`
	TimeoutRead    time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_READ" default:"15s"`
	TimeoutWrite   time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_WRITE" default:"15s"`
	TimeoutIdle    time.Duration `envconfig:"HTTP_SERVER_TIMEOUT_IDLE" default:"60s"`
	RequestTimeout time.Duration `envconfig:"HTTP_SERVER_REQUEST_TIMEOUT" default:"10s"`
}

// GrpcServerConfig holds gRPC server-specific configurations.
type GrpcServerConfig struct {
	Port string `envconfig:"GRPC_SERVER_PORT" default:"9090"`
}

// StorageConfig selects the database backend.
type StorageConfig struct {
	Driver     string `envconfig:"STORAGE_DRIVER" default:"postgres"`
	SQLitePath string `envconfig:"SQLITE_PATH" default:"catalog.db"`

	// AutoMigrate applies the embedded PostgreSQL migrations at startup.
	// SQLite is always migrated through gorm.
	AutoMigrate bool `envconfig:"STORAGE_AUTO_MIGRATE" default:"true"`
}

// PostgresConfig holds PostgreSQL database connection details.
// The fields are only required when the postgres driver is selected.
type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST"`
	Port     string `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER"`
	Password string `envconfig:"POSTGRES_PASSWORD"`
	DBName   string `envconfig:"POSTGRES_DBNAME"`
	SSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
}

// DSN constructs the Data Source Name string for connecting to PostgreSQL.
func (pc *PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		pc.Host, pc.Port, pc.User, pc.Password, pc.DBName, pc.SSLMode)
}

// Validate checks settings that depend on each other.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverPostgres:
		var missing []error
		for name, v := range map[string]string{
			"POSTGRES_HOST":     c.Postgres.Host,
			"POSTGRES_USER":     c.Postgres.User,
			"POSTGRES_PASSWORD": c.Postgres.Password,
			"POSTGRES_DBNAME":   c.Postgres.DBName,
		} {
			if v == "" {
				missing = append(missing, fmt.Errorf("%s is required for the postgres driver", name))
			}
		}
		if len(missing) > 0 {
			return errors.Join(missing...)
		}
	case DriverSQLite:
		if c.Storage.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("ORDER_TOKEN_BCRYPT_COST must be between 4 and 31, got %d", c.BcryptCost)
	}
	return nil
}

// Load reads the configuration from environment variables and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}
