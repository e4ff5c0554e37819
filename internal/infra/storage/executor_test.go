package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classhive/classhive/internal/domain/query"
)

type testRow struct {
	ID     string `db:"id"`
	Status string `db:"status"`
}

func newTestExecutor(t *testing.T) *Executor[testRow] {
	t.Helper()

	cols := []string{"id", "tenant_id", "status", "due_date", "created_at", "updated_at"}
	colSet := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		colSet[c] = struct{}{}
	}
	return &Executor[testRow]{
		table:      "things",
		tenantID:   "tenant-a",
		selectList: "id, tenant_id, status, due_date, created_at, updated_at",
		columns:    colSet,
	}
}

func TestNewExecutor_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewExecutor[testRow](ExecutorConfig{})
	assert.Error(t, err)

	_, err = NewExecutor[testRow](ExecutorConfig{Table: "things", Columns: []string{"id"}, TenantID: "t1"})
	assert.Error(t, err, "missing pool must be rejected")
}

func TestBuildWhere_TenantFilterAlwaysFirst(t *testing.T) {
	t.Parallel()

	e := newTestExecutor(t)

	where, args, err := e.buildWhere(nil)
	require.NoError(t, err)
	assert.Equal(t, "tenant_id = $1", where)
	assert.Equal(t, []any{"tenant-a"}, args)

	where, args, err = e.buildWhere([]query.Predicate{query.Eq("status", "draft")})
	require.NoError(t, err)
	assert.Equal(t, "tenant_id = $1 AND status = $2", where)
	assert.Equal(t, []any{"tenant-a", "draft"}, args)
}

func TestBuildWhere_Range(t *testing.T) {
	t.Parallel()

	e := newTestExecutor(t)

	tests := []struct {
		name      string
		pred      query.Predicate
		wantWhere string
		wantArgs  []any
	}{
		{
			name:      "closed range",
			pred:      query.Range("due_date", "2025-01-01", "2025-12-31"),
			wantWhere: "tenant_id = $1 AND due_date >= $2 AND due_date <= $3",
			wantArgs:  []any{"tenant-a", "2025-01-01", "2025-12-31"},
		},
		{
			name:      "open upper bound",
			pred:      query.Range("due_date", "2025-01-01", nil),
			wantWhere: "tenant_id = $1 AND due_date >= $2",
			wantArgs:  []any{"tenant-a", "2025-01-01"},
		},
		{
			name:      "open lower bound",
			pred:      query.Range("due_date", nil, "2025-12-31"),
			wantWhere: "tenant_id = $1 AND due_date <= $2",
			wantArgs:  []any{"tenant-a", "2025-12-31"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			where, args, err := e.buildWhere([]query.Predicate{tt.pred})
			require.NoError(t, err)
			assert.Equal(t, tt.wantWhere, where)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestBuildWhere_In(t *testing.T) {
	t.Parallel()

	e := newTestExecutor(t)

	where, args, err := e.buildWhere([]query.Predicate{query.In("status", "draft", "published")})
	require.NoError(t, err)
	assert.Equal(t, "tenant_id = $1 AND status IN ($2, $3)", where)
	assert.Equal(t, []any{"tenant-a", "draft", "published"}, args)
}

func TestBuildWhere_EmptyInMatchesNothing(t *testing.T) {
	t.Parallel()

	e := newTestExecutor(t)

	where, args, err := e.buildWhere([]query.Predicate{query.In("status")})
	require.NoError(t, err)
	assert.Equal(t, "tenant_id = $1 AND FALSE", where)
	assert.Equal(t, []any{"tenant-a"}, args)
}

func TestBuildWhere_UnknownFieldRejected(t *testing.T) {
	t.Parallel()

	e := newTestExecutor(t)

	_, _, err := e.buildWhere([]query.Predicate{query.Eq("password; DROP TABLE things", "x")})
	require.Error(t, err)
	assert.True(t, IsRepositoryError(err))
}

func TestBuildWhere_PredicatesCompose(t *testing.T) {
	t.Parallel()

	e := newTestExecutor(t)

	where, args, err := e.buildWhere([]query.Predicate{
		query.Eq("status", "published"),
		query.Range("due_date", "2025-06-01", nil),
		query.In("id", "a", "b"),
	})
	require.NoError(t, err)
	assert.Equal(t, "tenant_id = $1 AND status = $2 AND due_date >= $3 AND id IN ($4, $5)", where)
	assert.Len(t, args, 5)
}

func TestOrderBy_SecondaryIDTieBreak(t *testing.T) {
	t.Parallel()

	e := newTestExecutor(t)

	order, err := e.OrderClause(query.Query{SortBy: "due_date", SortOrder: query.Asc}.Normalize(), "")
	require.NoError(t, err)
	assert.Equal(t, "ORDER BY due_date ASC, id ASC", order)

	order, err = e.OrderClause(query.Query{SortBy: "created_at", SortOrder: query.Desc}.Normalize(), "")
	require.NoError(t, err)
	assert.Equal(t, "ORDER BY created_at DESC, id ASC", order)
}

func TestOrderBy_AliasPrefixesEveryColumn(t *testing.T) {
	t.Parallel()

	e := newTestExecutor(t)

	order, err := e.OrderClause(query.Query{SortBy: "due_date", SortOrder: query.Desc}.Normalize(), "a.")
	require.NoError(t, err)
	assert.Equal(t, "ORDER BY a.due_date DESC, a.id ASC", order)
}

func TestOrderBy_IDSortHasNoDuplicateKey(t *testing.T) {
	t.Parallel()

	e := newTestExecutor(t)

	order, err := e.OrderClause(query.Query{SortBy: "id", SortOrder: query.Asc}.Normalize(), "")
	require.NoError(t, err)
	assert.Equal(t, "ORDER BY id ASC", order)
}

func TestOrderBy_UnknownSortKeyRejected(t *testing.T) {
	t.Parallel()

	e := newTestExecutor(t)

	_, err := e.OrderClause(query.Query{SortBy: "secret_col"}.Normalize(), "")
	require.Error(t, err)
	assert.True(t, IsRepositoryError(err))
}

func TestFilterValues_DropsReservedColumns(t *testing.T) {
	t.Parallel()

	e := newTestExecutor(t)

	got, err := e.filterValues(Values{
		{Column: "id", Arg: "attacker-chosen"},
		{Column: "tenant_id", Arg: "tenant-b"},
		{Column: "created_at", Arg: "1970-01-01"},
		{Column: "updated_at", Arg: "1970-01-01"},
		{Column: "status", Arg: "draft"},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "status", got[0].Column)
}

func TestFilterValues_UnknownColumnRejected(t *testing.T) {
	t.Parallel()

	e := newTestExecutor(t)

	_, err := e.filterValues(Values{{Column: "no_such_col", Arg: 1}})
	require.Error(t, err)
	assert.True(t, IsRepositoryError(err))
}

func TestRepositoryError_Matching(t *testing.T) {
	t.Parallel()

	err := wrapErr("insert", "things", assert.AnError)
	assert.True(t, IsRepositoryError(err))

	var re *RepositoryError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "insert", re.Op)
	assert.Equal(t, "things", re.Table)

	// Re-wrapping must not nest.
	again := wrapErr("outer", "things", err)
	require.ErrorAs(t, again, &re)
	assert.Equal(t, "insert", re.Op)

	assert.Nil(t, wrapErr("insert", "things", nil))
}
