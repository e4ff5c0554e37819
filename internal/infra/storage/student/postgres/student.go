// Package postgres implements the student repository on PostgreSQL.
package postgres

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/classhive/classhive/internal/domain/query"
	"github.com/classhive/classhive/internal/domain/student"
	"github.com/classhive/classhive/internal/infra/storage"
)

const studentsTable = "students"

var studentColumns = []string{
	"id", "tenant_id", "first_name", "last_name", "email",
	"class_id", "status", "created_at", "updated_at",
}

// studentStore implements student.Repository for one tenant.
type studentStore struct {
	exec *storage.Executor[student.Student]
}

// Compile-time check that studentStore satisfies the repository contract.
var _ student.Repository = (*studentStore)(nil)

type storeConfig struct {
	metrics storage.Metrics
}

// Option configures a store beyond its required dependencies.
type Option func(*storeConfig)

// WithMetrics records executor round trips.
func WithMetrics(m storage.Metrics) Option {
	return func(c *storeConfig) { c.metrics = m }
}

// NewStore creates a student repository bound to tenantID.
func NewStore(pool *pgxpool.Pool, tracer trace.Tracer, tenantID string, opts ...Option) (student.Repository, error) {
	var cfg storeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	exec, err := storage.NewExecutor[student.Student](storage.ExecutorConfig{
		Pool:     pool,
		Tracer:   tracer,
		Table:    studentsTable,
		Columns:  studentColumns,
		TenantID: tenantID,
		Metrics:  cfg.metrics,
	})
	if err != nil {
		return nil, err
	}
	return &studentStore{exec: exec}, nil
}

func (s *studentStore) TenantID() string { return s.exec.TenantID() }

func (s *studentStore) FindByID(ctx context.Context, id string) (*student.Student, error) {
	return s.exec.FindByID(ctx, id)
}

func (s *studentStore) FindAll(ctx context.Context, q query.Query) (query.Result[student.Student], error) {
	return s.exec.FindAll(ctx, q)
}

func (s *studentStore) Create(ctx context.Context, params student.CreateParams) (*student.Student, error) {
	return s.exec.Insert(ctx, storage.Values{
		{Column: "first_name", Arg: params.FirstName},
		{Column: "last_name", Arg: params.LastName},
		{Column: "email", Arg: params.Email},
		{Column: "class_id", Arg: params.ClassID},
		{Column: "status", Arg: string(student.StatusEnrolled)},
	})
}

func (s *studentStore) Update(ctx context.Context, id string, params student.UpdateParams) (*student.Student, error) {
	var vals storage.Values
	if params.FirstName != nil {
		vals = append(vals, storage.Value{Column: "first_name", Arg: *params.FirstName})
	}
	if params.LastName != nil {
		vals = append(vals, storage.Value{Column: "last_name", Arg: *params.LastName})
	}
	if params.Email != nil {
		vals = append(vals, storage.Value{Column: "email", Arg: *params.Email})
	}
	if params.ClassID != nil {
		vals = append(vals, storage.Value{Column: "class_id", Arg: *params.ClassID})
	}
	if params.Status != nil {
		vals = append(vals, storage.Value{Column: "status", Arg: string(*params.Status)})
	}
	return s.exec.Update(ctx, id, vals)
}

func (s *studentStore) Delete(ctx context.Context, id string) (bool, error) {
	return s.exec.Delete(ctx, id)
}

func (s *studentStore) Count(ctx context.Context, preds ...query.Predicate) (int64, error) {
	return s.exec.Count(ctx, preds...)
}

func (s *studentStore) Exists(ctx context.Context, id string) (bool, error) {
	return s.exec.Exists(ctx, id)
}

func (s *studentStore) FindByClass(ctx context.Context, classID string, q query.Query) (query.Result[student.Student], error) {
	q.Filters = append(append([]query.Predicate{}, q.Filters...), query.Eq("class_id", classID))
	return s.exec.FindAll(ctx, q)
}

func (s *studentStore) FindByStatus(ctx context.Context, status student.EnrollmentStatus, q query.Query) (query.Result[student.Student], error) {
	q.Filters = append(append([]query.Predicate{}, q.Filters...), query.Eq("status", string(status)))
	return s.exec.FindAll(ctx, q)
}

// SearchByName matches students whose first or last name starts with prefix,
// case-insensitively. Pattern matching is outside the predicate set, so the
// statement is written by hand; the tenant filter still comes first.
func (s *studentStore) SearchByName(ctx context.Context, prefix string, q query.Query) (query.Result[student.Student], error) {
	const op = "search_by_name"

	q = q.Normalize()
	order, err := s.exec.OrderClause(q, "")
	if err != nil {
		return query.Result[student.Student]{}, err
	}

	const where = `FROM students
		WHERE tenant_id = $1 AND (first_name ILIKE $2 OR last_name ILIKE $2)`

	countSQL := "SELECT COUNT(*) " + where
	selectSQL := "SELECT " + s.exec.SelectList() + " " + where + " " + order
	args := []any{s.TenantID(), escapeLikePrefix(prefix) + "%"}

	var (
		data  []student.Student
		total int64
	)
	runErr := storage.ExecuteAndTrace(ctx, s.exec.Tracer(), studentsTable+"."+op, searchAttrs(op, s.TenantID()), func(ctx context.Context) error {
		data, total, err = storage.CollectPage[student.Student](ctx, s.exec.Pool(), countSQL, selectSQL, args, q)
		return err
	})
	if runErr != nil {
		return query.Result[student.Student]{}, storage.WrapErr(op, studentsTable, runErr)
	}
	return query.NewResult(data, total, q.Page, q.Limit), nil
}

// escapeLikePrefix neutralizes LIKE metacharacters in user input so a prefix
// of "100%" matches the literal text rather than everything.
func escapeLikePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix)
}

func searchAttrs(op, tenantID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("db.system", "postgresql"),
		attribute.String("db.table", studentsTable),
		attribute.String("db.operation", op),
		attribute.String("tenant.id", tenantID),
	}
}
