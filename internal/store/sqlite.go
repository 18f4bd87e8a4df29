package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Table models used only to let gorm create the SQLite schema. Reads and
// writes go through Table.

type categoryRow struct {
	ID               int64      `gorm:"primaryKey;autoIncrement"`
	Name             string     `gorm:"size:255;not null"`
	Slug             string     `gorm:"size:255;not null;uniqueIndex"`
	Description      *string    `gorm:"type:text"`
	ParentCategoryID *int64     `gorm:"index"`
	IsActive         bool       `gorm:"not null;default:true"`
	DeletedAt        *time.Time `gorm:"index"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (categoryRow) TableName() string { return "categories" }

type productRow struct {
	ID            int64      `gorm:"primaryKey;autoIncrement"`
	Name          string     `gorm:"size:255;not null"`
	Slug          string     `gorm:"size:255;not null;uniqueIndex"`
	Description   *string    `gorm:"type:text"`
	SKU           string     `gorm:"column:sku;size:100;not null;uniqueIndex"`
	Price         float64    `gorm:"type:numeric(12,2);not null"`
	StockQuantity int32      `gorm:"not null;default:0"`
	CategoryID    *int64     `gorm:"index"`
	ImageURL      *string    `gorm:"size:1024"`
	IsActive      bool       `gorm:"not null;default:true"`
	Attributes    *string    `gorm:"type:text"` // text affinity keeps JSON scalars from being coerced to numbers
	DeletedAt     *time.Time `gorm:"index"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (productRow) TableName() string { return "products" }

type orderRow struct {
	ID                    int64   `gorm:"primaryKey;autoIncrement"`
	CustomerEmail         string  `gorm:"size:255;not null"`
	Status                string  `gorm:"size:20;not null;default:pending"`
	Total                 float64 `gorm:"type:numeric(12,2);not null"`
	ConfirmationTokenHash *string `gorm:"size:255"`
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (orderRow) TableName() string { return "orders" }

type orderItemRow struct {
	ID        int64   `gorm:"primaryKey;autoIncrement"`
	OrderID   int64   `gorm:"not null;index"`
	ProductID int64   `gorm:"not null;index"`
	Quantity  int32   `gorm:"not null"`
	UnitPrice float64 `gorm:"type:numeric(12,2);not null"`
	CreatedAt time.Time
}

func (orderItemRow) TableName() string { return "order_items" }

// OpenSQLite opens (or creates) a SQLite database through gorm, migrates the
// catalog schema and returns the underlying *sql.DB for the SQL store.
// An in-memory database is pinned to a single connection so every query sees
// the same data.
func OpenSQLite(dsn string, level logger.LogLevel) (*sql.DB, error) {
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite %q: %w", dsn, err)
	}
	db, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("store: sqlite handle: %w", err)
	}
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
	}
	if err := gdb.AutoMigrate(&categoryRow{}, &productRow{}, &orderRow{}, &orderItemRow{}); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate sqlite: %w", err)
	}
	return db, nil
}
