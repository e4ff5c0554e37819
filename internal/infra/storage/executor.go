// Package storage provides the tenant-scoped query executor that every
// concrete repository composes, plus the shared tracing and error-wrapping
// helpers for PostgreSQL access through pgx.
//
// The executor enforces tenant isolation structurally: every statement it
// issues starts its WHERE clause with a tenant_id equality on the tenant the
// executor was bound to at construction time. Caller-supplied predicates are
// AND-composed after that filter and can only narrow the result set, never
// widen it.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/classhive/classhive/internal/domain/query"
)

// Columns managed exclusively by the executor. They are never accepted from
// caller-supplied values: id and tenant_id are assigned at insert time,
// created_at is set once, updated_at is refreshed on every update.
var reservedColumns = map[string]struct{}{
	"id":         {},
	"tenant_id":  {},
	"created_at": {},
	"updated_at": {},
}

// Value is a single column assignment used by Insert, Update and BulkUpdate.
type Value struct {
	Column string
	Arg    any
}

// Values is an ordered list of column assignments. Order is preserved in the
// generated SQL so statements are deterministic.
type Values []Value

// Metrics records the outcome of executor round trips. Implementations must
// be safe for concurrent use. A nil Metrics disables recording.
type Metrics interface {
	ObserveOperation(ctx context.Context, table, op string, d time.Duration, err error)
}

// ExecutorConfig carries the dependencies and binding of an Executor.
type ExecutorConfig struct {
	Pool   *pgxpool.Pool
	Tracer trace.Tracer

	// Table is the relation the executor operates on.
	Table string

	// Columns is the full select list for Table. It doubles as the
	// whitelist for filter fields and sort keys; predicates naming any
	// other field are rejected before SQL is built.
	Columns []string

	// TenantID is the tenant every statement is scoped to. Must be a
	// non-empty opaque string.
	TenantID string

	// IDFn generates ids for inserted rows. Defaults to UUIDv4.
	IDFn func() string

	// Metrics is optional.
	Metrics Metrics
}

// Executor is the tenant-scoped CRUD and query engine for one table. Concrete
// repositories hold one by composition and build their finders on its
// primitives; they must not talk to the pool directly for anything the
// executor covers.
type Executor[T any] struct {
	pool     *pgxpool.Pool
	tracer   trace.Tracer
	table    string
	tenantID string
	idFn     func() string
	metrics  Metrics

	selectList string
	columns    map[string]struct{}
}

// NewExecutor constructs an executor bound to cfg.TenantID. It fails on a
// missing pool, table, column list or tenant id rather than defer the problem
// to the first query.
func NewExecutor[T any](cfg ExecutorConfig) (*Executor[T], error) {
	if cfg.Pool == nil {
		return nil, fmt.Errorf("storage: pool is required")
	}
	if cfg.Table == "" {
		return nil, fmt.Errorf("storage: table is required")
	}
	if len(cfg.Columns) == 0 {
		return nil, fmt.Errorf("storage: column list is required")
	}
	if strings.TrimSpace(cfg.TenantID) == "" {
		return nil, fmt.Errorf("storage: tenant id is required")
	}

	idFn := cfg.IDFn
	if idFn == nil {
		idFn = func() string { return uuid.New().String() }
	}

	cols := make(map[string]struct{}, len(cfg.Columns))
	for _, c := range cfg.Columns {
		cols[c] = struct{}{}
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("storage")
	}

	return &Executor[T]{
		pool:       cfg.Pool,
		tracer:     tracer,
		table:      cfg.Table,
		tenantID:   cfg.TenantID,
		idFn:       idFn,
		metrics:    cfg.Metrics,
		selectList: strings.Join(cfg.Columns, ", "),
		columns:    cols,
	}, nil
}

// TenantID returns the tenant the executor is bound to.
func (e *Executor[T]) TenantID() string { return e.tenantID }

// Table returns the relation the executor operates on.
func (e *Executor[T]) Table() string { return e.table }

// SelectList returns the comma-joined column list. Specialized finders that
// hand-write SQL reuse it so their projection stays in sync with T.
func (e *Executor[T]) SelectList() string { return e.selectList }

// Pool exposes the underlying connection pool for specialized finders that
// cannot be expressed through predicates (joins, pattern matches). Such
// methods must re-apply the tenant filter first in their own WHERE clause.
func (e *Executor[T]) Pool() *pgxpool.Pool { return e.pool }

// Tracer returns the tracer used for executor spans.
func (e *Executor[T]) Tracer() trace.Tracer { return e.tracer }

// FindByID returns the row with the given id within the bound tenant, or nil
// when no such row exists for this tenant. A row owned by another tenant is
// indistinguishable from an absent one.
func (e *Executor[T]) FindByID(ctx context.Context, id string) (*T, error) {
	const op = "find_by_id"

	var out *T
	err := e.run(ctx, op, func(ctx context.Context) error {
		sql := fmt.Sprintf("SELECT %s FROM %s WHERE tenant_id = $1 AND id = $2", e.selectList, e.table)
		rows, err := e.pool.Query(ctx, sql, e.tenantID, id)
		if err != nil {
			return err
		}
		row, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[T])
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		out = &row
		return nil
	})
	if err != nil {
		return nil, wrapErr(op, e.table, err)
	}
	return out, nil
}

// FindAll returns one page of rows matching the query's predicates within the
// bound tenant, along with the exact total count of matching rows independent
// of the page window. Sorting is single-key with id as tie-break so repeated
// calls over an unmutated dataset page deterministically.
func (e *Executor[T]) FindAll(ctx context.Context, q query.Query) (query.Result[T], error) {
	const op = "find_all"
	q = q.Normalize()

	where, args, err := e.buildWhere(q.Filters)
	if err != nil {
		return query.Result[T]{}, err
	}
	order, err := e.OrderClause(q, "")
	if err != nil {
		return query.Result[T]{}, err
	}

	var (
		total int64
		data  []T
	)
	runErr := e.run(ctx, op, func(ctx context.Context) error {
		countSQL := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", e.table, where)
		if err := e.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
			return err
		}

		pageArgs := append(args, q.Limit, q.Offset())
		selectSQL := fmt.Sprintf(
			"SELECT %s FROM %s WHERE %s %s LIMIT $%d OFFSET $%d",
			e.selectList, e.table, where, order, len(pageArgs)-1, len(pageArgs),
		)
		rows, err := e.pool.Query(ctx, selectSQL, pageArgs...)
		if err != nil {
			return err
		}
		data, err = pgx.CollectRows(rows, pgx.RowToStructByName[T])
		return err
	})
	if runErr != nil {
		return query.Result[T]{}, wrapErr(op, e.table, runErr)
	}

	return query.NewResult(data, total, q.Page, q.Limit), nil
}

// Insert stores a new row owned by the bound tenant and returns it as stored.
// The id is generated, tenant_id is injected and both timestamps are set
// server-side; any reserved column present in vals is discarded.
func (e *Executor[T]) Insert(ctx context.Context, vals Values) (*T, error) {
	const op = "insert"

	vals, err := e.filterValues(vals)
	if err != nil {
		return nil, err
	}

	cols := []string{"id", "tenant_id"}
	args := []any{e.idFn(), e.tenantID}
	placeholders := []string{"$1", "$2"}
	for _, v := range vals {
		args = append(args, v.Arg)
		cols = append(cols, v.Column)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}
	cols = append(cols, "created_at", "updated_at")
	placeholders = append(placeholders, "now()", "now()")

	var out T
	err = e.run(ctx, op, func(ctx context.Context) error {
		sql := fmt.Sprintf(
			"INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
			e.table, strings.Join(cols, ", "), strings.Join(placeholders, ", "), e.selectList,
		)
		rows, err := e.pool.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[T])
		return err
	})
	if err != nil {
		return nil, wrapErr(op, e.table, err)
	}
	return &out, nil
}

// Update applies the given column assignments to the tenant's row with the
// given id, refreshes updated_at and returns the stored row. It returns nil
// when no row with that id exists for this tenant. Reserved columns in vals
// are discarded.
func (e *Executor[T]) Update(ctx context.Context, id string, vals Values) (*T, error) {
	const op = "update"

	vals, err := e.filterValues(vals)
	if err != nil {
		return nil, err
	}

	args := []any{e.tenantID, id}
	var sets []string
	for _, v := range vals {
		args = append(args, v.Arg)
		sets = append(sets, fmt.Sprintf("%s = $%d", v.Column, len(args)))
	}
	sets = append(sets, "updated_at = now()")

	var out *T
	err = e.run(ctx, op, func(ctx context.Context) error {
		sql := fmt.Sprintf(
			"UPDATE %s SET %s WHERE tenant_id = $1 AND id = $2 RETURNING %s",
			e.table, strings.Join(sets, ", "), e.selectList,
		)
		rows, err := e.pool.Query(ctx, sql, args...)
		if err != nil {
			return err
		}
		row, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[T])
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		out = &row
		return nil
	})
	if err != nil {
		return nil, wrapErr(op, e.table, err)
	}
	return out, nil
}

// Delete removes the tenant's row with the given id and reports whether a row
// was actually removed. Deleting an absent or foreign-tenant id succeeds with
// false.
func (e *Executor[T]) Delete(ctx context.Context, id string) (bool, error) {
	const op = "delete"

	var deleted bool
	err := e.run(ctx, op, func(ctx context.Context) error {
		sql := fmt.Sprintf("DELETE FROM %s WHERE tenant_id = $1 AND id = $2", e.table)
		tag, err := e.pool.Exec(ctx, sql, e.tenantID, id)
		if err != nil {
			return err
		}
		deleted = tag.RowsAffected() > 0
		return nil
	})
	if err != nil {
		return false, wrapErr(op, e.table, err)
	}
	return deleted, nil
}

// Count returns the exact number of the tenant's rows matching the
// predicates.
func (e *Executor[T]) Count(ctx context.Context, preds ...query.Predicate) (int64, error) {
	const op = "count"

	where, args, err := e.buildWhere(preds)
	if err != nil {
		return 0, err
	}

	var total int64
	runErr := e.run(ctx, op, func(ctx context.Context) error {
		sql := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", e.table, where)
		return e.pool.QueryRow(ctx, sql, args...).Scan(&total)
	})
	if runErr != nil {
		return 0, wrapErr(op, e.table, runErr)
	}
	return total, nil
}

// Exists reports whether the tenant owns a row with the given id. It does not
// leak the existence of foreign-tenant rows.
func (e *Executor[T]) Exists(ctx context.Context, id string) (bool, error) {
	const op = "exists"

	var exists bool
	err := e.run(ctx, op, func(ctx context.Context) error {
		sql := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE tenant_id = $1 AND id = $2)", e.table)
		return e.pool.QueryRow(ctx, sql, e.tenantID, id).Scan(&exists)
	})
	if err != nil {
		return false, wrapErr(op, e.table, err)
	}
	return exists, nil
}

// BulkUpdate applies the column assignments to every tenant-owned row whose
// id is in ids, in a single statement, and returns the number of rows
// changed. Ids belonging to other tenants are ignored by the tenant guard,
// not rejected. The statement is atomic: either all matched rows update or
// none do.
func (e *Executor[T]) BulkUpdate(ctx context.Context, ids []string, vals Values) (int64, error) {
	const op = "bulk_update"

	if len(ids) == 0 {
		return 0, nil
	}

	vals, err := e.filterValues(vals)
	if err != nil {
		return 0, err
	}

	args := []any{e.tenantID, ids}
	var sets []string
	for _, v := range vals {
		args = append(args, v.Arg)
		sets = append(sets, fmt.Sprintf("%s = $%d", v.Column, len(args)))
	}
	sets = append(sets, "updated_at = now()")

	var changed int64
	err = e.run(ctx, op, func(ctx context.Context) error {
		sql := fmt.Sprintf(
			"UPDATE %s SET %s WHERE tenant_id = $1 AND id = ANY($2)",
			e.table, strings.Join(sets, ", "),
		)
		tag, err := e.pool.Exec(ctx, sql, args...)
		if err != nil {
			return err
		}
		changed = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, wrapErr(op, e.table, err)
	}
	return changed, nil
}

// filterValues drops reserved columns from vals and validates the remaining
// column names against the whitelist. Dropping rather than rejecting reserved
// columns keeps callers from steering identity, ownership or timestamps
// through an update payload.
func (e *Executor[T]) filterValues(vals Values) (Values, error) {
	out := make(Values, 0, len(vals))
	for _, v := range vals {
		if _, reserved := reservedColumns[v.Column]; reserved {
			continue
		}
		if err := e.checkColumn(v.Column); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// buildWhere renders the conjunction of the tenant filter and the given
// predicates. The tenant filter is always first and always present.
func (e *Executor[T]) buildWhere(preds []query.Predicate) (string, []any, error) {
	var b strings.Builder
	b.WriteString("tenant_id = $1")
	args := []any{e.tenantID}

	for _, p := range preds {
		if err := e.checkColumn(p.Field); err != nil {
			return "", nil, err
		}
		switch p.Op {
		case query.OpEq:
			args = append(args, p.Value)
			fmt.Fprintf(&b, " AND %s = $%d", p.Field, len(args))
		case query.OpRange:
			if p.Lo != nil {
				args = append(args, p.Lo)
				fmt.Fprintf(&b, " AND %s >= $%d", p.Field, len(args))
			}
			if p.Hi != nil {
				args = append(args, p.Hi)
				fmt.Fprintf(&b, " AND %s <= $%d", p.Field, len(args))
			}
		case query.OpIn:
			if len(p.Values) == 0 {
				// An empty candidate set matches nothing.
				b.WriteString(" AND FALSE")
				continue
			}
			placeholders := make([]string, len(p.Values))
			for i, v := range p.Values {
				args = append(args, v)
				placeholders[i] = fmt.Sprintf("$%d", len(args))
			}
			fmt.Fprintf(&b, " AND %s IN (%s)", p.Field, strings.Join(placeholders, ", "))
		default:
			return "", nil, wrapErr("build_query", e.table, fmt.Errorf("unsupported predicate operator %q", p.Op))
		}
	}

	return b.String(), args, nil
}

// OrderClause renders the ORDER BY clause for a normalized query, validating
// the sort key against the column whitelist. When the sort key is not id, id
// is appended as a secondary key so ties break consistently across pages.
// Specialized finders that hand-write SQL reuse it, passing a table alias
// ("a.") when their statement needs one.
func (e *Executor[T]) OrderClause(q query.Query, alias string) (string, error) {
	if err := e.checkColumn(q.SortBy); err != nil {
		return "", err
	}
	dir := "DESC"
	if q.SortOrder == query.Asc {
		dir = "ASC"
	}
	if q.SortBy == "id" {
		return fmt.Sprintf("ORDER BY %sid %s", alias, dir), nil
	}
	return fmt.Sprintf("ORDER BY %s%s %s, %sid ASC", alias, q.SortBy, dir, alias), nil
}

// checkColumn rejects field names outside the configured column list before
// any SQL is built. Field names are interpolated into statements, so this
// whitelist is what keeps caller input out of the SQL text.
func (e *Executor[T]) checkColumn(name string) error {
	if _, ok := e.columns[name]; !ok {
		return wrapErr("build_query", e.table, fmt.Errorf("unknown field %q", name))
	}
	return nil
}

// run executes op inside a client span and records its duration.
func (e *Executor[T]) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attrs := []attribute.KeyValue{
		attribute.String("db.system", "postgresql"),
		attribute.String("db.table", e.table),
		attribute.String("db.operation", op),
		attribute.String("tenant.id", e.tenantID),
	}

	start := time.Now()
	err := ExecuteAndTrace(ctx, e.tracer, e.table+"."+op, attrs, fn)
	if e.metrics != nil {
		e.metrics.ObserveOperation(ctx, e.table, op, time.Since(start), err)
	}
	return err
}
