package query

import "github.com/shopspring/decimal"

// FindArgs are the arguments of a multi-record read.
type FindArgs struct {
	Where   Where
	Include Include
	// Counts reports the cardinality of has-many relations instead of loading them.
	Counts  Include
	OrderBy []string // column names, "-" prefix for descending
	Limit   int
	Offset  int
	Select  []string // projection; empty means every column
}

// FindUniqueArgs are the arguments of a single-record read.
type FindUniqueArgs struct {
	Where   Unique
	Include Include
	Counts  Include
	Select  []string
}

// Expression is a raw SQL fragment used as a patch value, e.g. "stock_quantity + ?".
type Expression struct {
	SQL  string
	Args []any
}

// Expr builds an Expression.
func Expr(sql string, args ...any) Expression { return Expression{SQL: sql, Args: args} }

// Assignment is one column update.
type Assignment struct {
	Column string
	Value  any
}

// Patch is an ordered set of column assignments.
type Patch struct {
	sets []Assignment
}

// NewPatch returns an empty patch.
func NewPatch() Patch { return Patch{} }

// Set assigns v to column, replacing an earlier assignment to the same column.
func (p Patch) Set(column string, v any) Patch {
	out := make([]Assignment, 0, len(p.sets)+1)
	for _, a := range p.sets {
		if a.Column != column {
			out = append(out, a)
		}
	}
	return Patch{sets: append(out, Assignment{Column: column, Value: v})}
}

// Assignments returns the assignments in order.
func (p Patch) Assignments() []Assignment {
	out := make([]Assignment, len(p.sets))
	copy(out, p.sets)
	return out
}

// Get returns the value assigned to column.
func (p Patch) Get(column string) (any, bool) {
	for _, a := range p.sets {
		if a.Column == column {
			return a.Value, true
		}
	}
	return nil, false
}

// Len is the number of assignments.
func (p Patch) Len() int { return len(p.sets) }

// AggregateSpec lists the aggregates to compute.
type AggregateSpec struct {
	Count bool
	Sum   []string
	Avg   []string
	Min   []string
	Max   []string
}

// AggregateResult holds computed aggregates keyed by column. Aggregates over an
// empty set are absent from the maps.
type AggregateResult struct {
	Count int64
	Sum   map[string]decimal.Decimal
	Avg   map[string]decimal.Decimal
	Min   map[string]decimal.Decimal
	Max   map[string]decimal.Decimal
}

// GroupByArgs are the arguments of a grouped aggregate.
type GroupByArgs struct {
	By        []string
	Where     Where
	Aggregate AggregateSpec
}

// Group is one row of a grouped aggregate.
type Group struct {
	Keys   map[string]any
	Result AggregateResult
}
