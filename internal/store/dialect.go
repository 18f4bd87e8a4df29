package store

import (
	"errors"
	"regexp"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/lib/pq"
)

// Dialect captures what differs between the supported databases.
type Dialect interface {
	Name() string
	Placeholder() squirrel.PlaceholderFormat
	// UniqueViolation reports whether err is a unique constraint failure and,
	// when the driver exposes it, the offending column.
	UniqueViolation(err error) (column string, ok bool)
}

var (
	// Postgres talks to PostgreSQL through lib/pq.
	Postgres Dialect = postgresDialect{}
	// SQLite talks to SQLite through the gorm sqlite driver.
	SQLite Dialect = sqliteDialect{}
)

// DialectByName resolves a configured storage driver name.
func DialectByName(name string) (Dialect, bool) {
	switch strings.ToLower(name) {
	case "postgres", "postgresql":
		return Postgres, true
	case "sqlite", "sqlite3":
		return SQLite, true
	}
	return nil, false
}

type postgresDialect struct{}

var pqKeyDetail = regexp.MustCompile(`Key \((\w+)\)`)

func (postgresDialect) Name() string { return "postgres" }

func (postgresDialect) Placeholder() squirrel.PlaceholderFormat { return squirrel.Dollar }

func (postgresDialect) UniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" { // unique_violation
		return "", false
	}
	if m := pqKeyDetail.FindStringSubmatch(pqErr.Detail); m != nil {
		return m[1], true
	}
	// Fall back to the <table>_<column>_key constraint naming convention.
	c := pqErr.Constraint
	if pqErr.Table != "" && strings.HasPrefix(c, pqErr.Table+"_") && strings.HasSuffix(c, "_key") {
		return strings.TrimSuffix(strings.TrimPrefix(c, pqErr.Table+"_"), "_key"), true
	}
	return "", true
}

type sqliteDialect struct{}

var sqliteUnique = regexp.MustCompile(`UNIQUE constraint failed: \w+\.(\w+)`)

func (sqliteDialect) Name() string { return "sqlite" }

func (sqliteDialect) Placeholder() squirrel.PlaceholderFormat { return squirrel.Question }

func (sqliteDialect) UniqueViolation(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	m := sqliteUnique.FindStringSubmatch(err.Error())
	if m == nil {
		return "", false
	}
	return m[1], true
}
