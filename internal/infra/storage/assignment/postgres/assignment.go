// Package postgres implements the assignment repository on PostgreSQL. All
// generic access goes through the shared tenant-scoped executor; only the
// class join hand-writes SQL, and it re-applies the tenant filter itself.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/classhive/classhive/internal/domain/assignment"
	"github.com/classhive/classhive/internal/domain/query"
	"github.com/classhive/classhive/internal/infra/storage"
	"github.com/classhive/classhive/pkg/common/timeutil"
)

const assignmentsTable = "assignments"

var assignmentColumns = []string{
	"id", "tenant_id", "title", "description", "class_id",
	"status", "due_date", "max_points", "created_at", "updated_at",
}

// assignmentStore implements assignment.Repository for one tenant.
type assignmentStore struct {
	exec  *storage.Executor[assignment.Assignment]
	clock timeutil.Provider
}

// Compile-time check that assignmentStore satisfies the repository contract.
var _ assignment.Repository = (*assignmentStore)(nil)

type storeConfig struct {
	clock   timeutil.Provider
	metrics storage.Metrics
}

// Option configures a store beyond its required dependencies.
type Option func(*storeConfig)

// WithClock overrides the time source used by overdue queries. Tests use it
// to pin now().
func WithClock(clock timeutil.Provider) Option {
	return func(c *storeConfig) { c.clock = clock }
}

// WithMetrics records executor round trips.
func WithMetrics(m storage.Metrics) Option {
	return func(c *storeConfig) { c.metrics = m }
}

// NewStore creates an assignment repository bound to tenantID.
func NewStore(pool *pgxpool.Pool, tracer trace.Tracer, tenantID string, opts ...Option) (assignment.Repository, error) {
	cfg := storeConfig{clock: timeutil.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	exec, err := storage.NewExecutor[assignment.Assignment](storage.ExecutorConfig{
		Pool:     pool,
		Tracer:   tracer,
		Table:    assignmentsTable,
		Columns:  assignmentColumns,
		TenantID: tenantID,
		Metrics:  cfg.metrics,
	})
	if err != nil {
		return nil, err
	}

	return &assignmentStore{exec: exec, clock: cfg.clock}, nil
}

func (s *assignmentStore) TenantID() string { return s.exec.TenantID() }

func (s *assignmentStore) FindByID(ctx context.Context, id string) (*assignment.Assignment, error) {
	return s.exec.FindByID(ctx, id)
}

func (s *assignmentStore) FindAll(ctx context.Context, q query.Query) (query.Result[assignment.Assignment], error) {
	return s.exec.FindAll(ctx, q)
}

func (s *assignmentStore) Create(ctx context.Context, params assignment.CreateParams) (*assignment.Assignment, error) {
	return s.exec.Insert(ctx, storage.Values{
		{Column: "title", Arg: params.Title},
		{Column: "description", Arg: params.Description},
		{Column: "class_id", Arg: params.ClassID},
		{Column: "status", Arg: string(assignment.StatusDraft)},
		{Column: "due_date", Arg: params.DueDate},
		{Column: "max_points", Arg: params.MaxPoints},
	})
}

func (s *assignmentStore) Update(ctx context.Context, id string, params assignment.UpdateParams) (*assignment.Assignment, error) {
	var vals storage.Values
	if params.Title != nil {
		vals = append(vals, storage.Value{Column: "title", Arg: *params.Title})
	}
	if params.Description != nil {
		vals = append(vals, storage.Value{Column: "description", Arg: *params.Description})
	}
	if params.ClassID != nil {
		vals = append(vals, storage.Value{Column: "class_id", Arg: *params.ClassID})
	}
	if params.DueDate != nil {
		vals = append(vals, storage.Value{Column: "due_date", Arg: *params.DueDate})
	}
	if params.MaxPoints != nil {
		vals = append(vals, storage.Value{Column: "max_points", Arg: *params.MaxPoints})
	}
	return s.exec.Update(ctx, id, vals)
}

func (s *assignmentStore) Delete(ctx context.Context, id string) (bool, error) {
	return s.exec.Delete(ctx, id)
}

func (s *assignmentStore) Count(ctx context.Context, preds ...query.Predicate) (int64, error) {
	return s.exec.Count(ctx, preds...)
}

func (s *assignmentStore) Exists(ctx context.Context, id string) (bool, error) {
	return s.exec.Exists(ctx, id)
}

func (s *assignmentStore) FindByClass(ctx context.Context, classID string, q query.Query) (query.Result[assignment.Assignment], error) {
	return s.exec.FindAll(ctx, withFilters(q, query.Eq("class_id", classID)))
}

func (s *assignmentStore) FindByStatus(ctx context.Context, status assignment.Status, q query.Query) (query.Result[assignment.Assignment], error) {
	return s.exec.FindAll(ctx, withFilters(q, query.Eq("status", string(status))))
}

func (s *assignmentStore) FindDueBetween(ctx context.Context, from, to time.Time, q query.Query) (query.Result[assignment.Assignment], error) {
	return s.exec.FindAll(ctx, withFilters(q, query.Range("due_date", from, to)))
}

func (s *assignmentStore) FindOverdue(ctx context.Context, q query.Query) (query.Result[assignment.Assignment], error) {
	return s.exec.FindAll(ctx, withFilters(q,
		query.Eq("status", string(assignment.StatusPublished)),
		query.Range("due_date", nil, s.clock.Now()),
	))
}

// FindWithClass joins assignments with their class name. The join condition
// carries its own tenant equality so a class row from another tenant can
// never satisfy it, even if a class_id collides across tenants.
func (s *assignmentStore) FindWithClass(ctx context.Context, q query.Query) (query.Result[assignment.WithClass], error) {
	const op = "find_with_class"

	q = q.Normalize()
	order, err := s.exec.OrderClause(q, "a.")
	if err != nil {
		return query.Result[assignment.WithClass]{}, err
	}

	const fromJoin = `FROM assignments a
		JOIN classes c ON c.id = a.class_id AND c.tenant_id = a.tenant_id
		WHERE a.tenant_id = $1`

	countSQL := "SELECT COUNT(*) " + fromJoin
	selectSQL := fmt.Sprintf(
		`SELECT a.id, a.tenant_id, a.title, a.description, a.class_id,
			a.status, a.due_date, a.max_points, a.created_at, a.updated_at,
			c.name AS class_name %s %s`,
		fromJoin, order,
	)

	var (
		data  []assignment.WithClass
		total int64
	)
	runErr := storage.ExecuteAndTrace(ctx, s.exec.Tracer(), assignmentsTable+"."+op, dbAttrs(op, s.TenantID()), func(ctx context.Context) error {
		data, total, err = storage.CollectPage[assignment.WithClass](
			ctx, s.exec.Pool(), countSQL, selectSQL, []any{s.TenantID()}, q,
		)
		return err
	})
	if runErr != nil {
		return query.Result[assignment.WithClass]{}, storage.WrapErr(op, assignmentsTable, runErr)
	}
	return query.NewResult(data, total, q.Page, q.Limit), nil
}

func (s *assignmentStore) ReassignClass(ctx context.Context, ids []string, classID string) (int64, error) {
	return s.exec.BulkUpdate(ctx, ids, storage.Values{
		{Column: "class_id", Arg: classID},
	})
}

func (s *assignmentStore) Publish(ctx context.Context, id string) (*assignment.Assignment, error) {
	return s.transition(ctx, id, assignment.StatusPublished)
}

func (s *assignmentStore) Archive(ctx context.Context, id string) (*assignment.Assignment, error) {
	return s.transition(ctx, id, assignment.StatusArchived)
}

// transition moves the assignment to next under the lifecycle rules. The
// allowed source states are part of the UPDATE's WHERE clause, so the check
// and the write are one atomic statement and concurrent transitions cannot
// interleave into a state the lifecycle forbids. When the guard rejects, a
// follow-up read distinguishes a missing row from a wrong state.
func (s *assignmentStore) transition(ctx context.Context, id string, next assignment.Status) (*assignment.Assignment, error) {
	const op = "transition"

	var from []string
	for _, st := range []assignment.Status{assignment.StatusDraft, assignment.StatusPublished, assignment.StatusArchived} {
		if st.CanTransitionTo(next) {
			from = append(from, string(st))
		}
	}

	sql := fmt.Sprintf(
		"UPDATE %s SET status = $3, updated_at = now() WHERE tenant_id = $1 AND id = $2 AND status = ANY($4) RETURNING %s",
		assignmentsTable, s.exec.SelectList(),
	)

	var updated *assignment.Assignment
	runErr := storage.ExecuteAndTrace(ctx, s.exec.Tracer(), assignmentsTable+"."+op, dbAttrs(op, s.TenantID()), func(ctx context.Context) error {
		rows, err := s.exec.Pool().Query(ctx, sql, s.TenantID(), id, string(next), from)
		if err != nil {
			return err
		}
		row, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[assignment.Assignment])
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		updated = &row
		return nil
	})
	if runErr != nil {
		return nil, storage.WrapErr(op, assignmentsTable, runErr)
	}
	if updated != nil {
		return updated, nil
	}

	current, err := s.exec.FindByID(ctx, id)
	if err != nil || current == nil {
		return nil, err
	}
	return nil, fmt.Errorf("%s to %s: %w", current.Status, next, assignment.ErrInvalidTransition)
}

// Clone copies the assignment into target's tenant. The copy is created
// through target, so identity, ownership and timestamps are assigned fresh
// and it starts as a draft regardless of the source's state.
func (s *assignmentStore) Clone(ctx context.Context, id string, target assignment.Repository) (*assignment.Assignment, error) {
	src, err := s.exec.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if src == nil {
		return nil, nil
	}
	return target.Create(ctx, assignment.CloneParams(src))
}

// withFilters returns q with extra predicates appended, without mutating the
// caller's filter slice.
func withFilters(q query.Query, preds ...query.Predicate) query.Query {
	filters := make([]query.Predicate, 0, len(q.Filters)+len(preds))
	filters = append(filters, q.Filters...)
	filters = append(filters, preds...)
	q.Filters = filters
	return q
}

func dbAttrs(op, tenantID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("db.system", "postgresql"),
		attribute.String("db.table", assignmentsTable),
		attribute.String("db.operation", op),
		attribute.String("tenant.id", tenantID),
	}
}
