// Package query defines the value objects describing a "find many" call:
// pagination, sorting and filter predicates, plus the paged result envelope.
// Queries are constructed fresh per call and normalized before use; they are
// never persisted.
package query

import "math"

// Pagination bounds. A limit outside [MinLimit, MaxLimit] is clamped, never
// rejected.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MinLimit     = 1
	MaxLimit     = 100
)

// DefaultSortField is used when a query does not name a sort key.
const DefaultSortField = "created_at"

// Order is the direction of a single-key sort.
type Order string

// Supported sort directions.
const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// Op discriminates the predicate variants.
type Op string

// Predicate operators. The set is deliberately small; richer predicates are
// added as new variants without changing how they compose with the tenant
// filter.
const (
	OpEq    Op = "eq"
	OpRange Op = "range"
	OpIn    Op = "in"
)

// Predicate is a single filter condition on one field. Predicates always
// AND-compose with each other and with the tenant filter applied by the
// storage layer; there is no OR or negation.
type Predicate struct {
	Field string
	Op    Op

	// Value is set for OpEq.
	Value any

	// Lo and Hi bound an OpRange predicate (inclusive). Either may be nil
	// for a half-open range.
	Lo any
	Hi any

	// Values is the candidate set for OpIn.
	Values []any
}

// Eq matches rows whose field equals value.
func Eq(field string, value any) Predicate {
	return Predicate{Field: field, Op: OpEq, Value: value}
}

// Range matches rows whose field lies in [lo, hi]. Pass nil for an open end.
func Range(field string, lo, hi any) Predicate {
	return Predicate{Field: field, Op: OpRange, Lo: lo, Hi: hi}
}

// In matches rows whose field equals any of values.
func In(field string, values ...any) Predicate {
	return Predicate{Field: field, Op: OpIn, Values: values}
}

// Query describes pagination, sorting and filters for a find-many operation.
// The zero value is usable: Normalize fills every unset field with its
// default.
type Query struct {
	Page      int
	Limit     int
	SortBy    string
	SortOrder Order
	Filters   []Predicate
}

// Normalize returns a copy of q with page, limit, sort key and sort order
// clamped or defaulted. The original query is not modified.
func (q Query) Normalize() Query {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit < MinLimit {
		q.Limit = MinLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if q.SortBy == "" {
		q.SortBy = DefaultSortField
	}
	if q.SortOrder != Asc && q.SortOrder != Desc {
		q.SortOrder = Desc
	}
	return q
}

// Offset returns the row offset of the query's page window. It assumes q has
// been normalized.
func (q Query) Offset() int { return (q.Page - 1) * q.Limit }

// Result is the envelope returned by paged finders. TotalCount is the exact
// number of matching rows ignoring pagination; TotalPages and HasMore are
// derived from it and never stored.
type Result[T any] struct {
	Data       []T
	TotalCount int64
	Page       int
	TotalPages int
	HasMore    bool
}

// NewResult derives the pagination envelope for one page of data. An empty
// match set yields TotalPages 0 and HasMore false regardless of the requested
// page.
func NewResult[T any](data []T, totalCount int64, page, limit int) Result[T] {
	totalPages := 0
	if totalCount > 0 && limit > 0 {
		totalPages = int(math.Ceil(float64(totalCount) / float64(limit)))
	}
	return Result[T]{
		Data:       data,
		TotalCount: totalCount,
		Page:       page,
		TotalPages: totalPages,
		HasMore:    page < totalPages,
	}
}
