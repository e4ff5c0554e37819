package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize_Defaults(t *testing.T) {
	t.Parallel()

	q := Query{}.Normalize()

	assert.Equal(t, DefaultPage, q.Page)
	assert.Equal(t, DefaultLimit, q.Limit)
	assert.Equal(t, DefaultSortField, q.SortBy)
	assert.Equal(t, Desc, q.SortOrder)
}

func TestNormalize_Clamping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		in        Query
		wantPage  int
		wantLimit int
	}{
		{name: "negative page", in: Query{Page: -3, Limit: 20}, wantPage: 1, wantLimit: 20},
		{name: "zero page", in: Query{Page: 0, Limit: 20}, wantPage: 1, wantLimit: 20},
		{name: "limit below minimum", in: Query{Page: 2, Limit: -1}, wantPage: 2, wantLimit: 1},
		{name: "limit above maximum", in: Query{Page: 2, Limit: 500}, wantPage: 2, wantLimit: 100},
		{name: "valid values untouched", in: Query{Page: 4, Limit: 25}, wantPage: 4, wantLimit: 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := tt.in.Normalize()
			assert.Equal(t, tt.wantPage, got.Page)
			assert.Equal(t, tt.wantLimit, got.Limit)
		})
	}
}

func TestNormalize_InvalidSortOrder(t *testing.T) {
	t.Parallel()

	q := Query{SortOrder: Order("sideways")}.Normalize()
	assert.Equal(t, Desc, q.SortOrder)

	q = Query{SortOrder: Asc}.Normalize()
	assert.Equal(t, Asc, q.SortOrder)
}

func TestNormalize_DoesNotMutateReceiver(t *testing.T) {
	t.Parallel()

	orig := Query{Page: -1}
	_ = orig.Normalize()
	assert.Equal(t, -1, orig.Page)
}

func TestOffset(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, Query{Page: 1, Limit: 10}.Offset())
	assert.Equal(t, 20, Query{Page: 3, Limit: 10}.Offset())
	assert.Equal(t, 50, Query{Page: 2, Limit: 50}.Offset())
}

func TestNewResult_Derivation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		total      int64
		page       int
		limit      int
		wantPages  int
		wantMore   bool
	}{
		{name: "exact multiple", total: 30, page: 1, limit: 10, wantPages: 3, wantMore: true},
		{name: "partial last page", total: 25, page: 3, limit: 10, wantPages: 3, wantMore: false},
		{name: "middle page", total: 25, page: 2, limit: 10, wantPages: 3, wantMore: true},
		{name: "empty match set", total: 0, page: 1, limit: 10, wantPages: 0, wantMore: false},
		{name: "page beyond end", total: 5, page: 9, limit: 10, wantPages: 1, wantMore: false},
		{name: "single row", total: 1, page: 1, limit: 10, wantPages: 1, wantMore: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res := NewResult[string](nil, tt.total, tt.page, tt.limit)
			assert.Equal(t, tt.wantPages, res.TotalPages)
			assert.Equal(t, tt.wantMore, res.HasMore)
			assert.Equal(t, tt.total, res.TotalCount)
			assert.Equal(t, tt.page, res.Page)
		})
	}
}

func TestPredicateConstructors(t *testing.T) {
	t.Parallel()

	eq := Eq("status", "draft")
	assert.Equal(t, OpEq, eq.Op)
	assert.Equal(t, "status", eq.Field)
	assert.Equal(t, "draft", eq.Value)

	rng := Range("due_date", "2025-01-01", nil)
	assert.Equal(t, OpRange, rng.Op)
	assert.Equal(t, "2025-01-01", rng.Lo)
	assert.Nil(t, rng.Hi)

	in := In("id", "a", "b", "c")
	assert.Equal(t, OpIn, in.Op)
	assert.Len(t, in.Values, 3)
}
