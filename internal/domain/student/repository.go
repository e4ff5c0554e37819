package student

import (
	"context"

	"github.com/classhive/classhive/internal/domain/query"
)

// Repository is the tenant-scoped data access contract for students. The
// same conventions as the assignment repository apply: one tenant per
// instance, misses reported as nil/false with a nil error, foreign-tenant
// rows indistinguishable from absent ones.
type Repository interface {
	// TenantID returns the tenant this repository is bound to.
	TenantID() string

	// FindByID returns the student with the given id, or nil when the tenant
	// owns no such student.
	FindByID(ctx context.Context, id string) (*Student, error)

	// FindAll returns one page of the tenant's students matching the query,
	// with an exact total count.
	FindAll(ctx context.Context, q query.Query) (query.Result[Student], error)

	// Create enrolls a new student with this tenant.
	Create(ctx context.Context, params CreateParams) (*Student, error)

	// Update patches the set fields of the tenant's student and returns the
	// stored result, or nil when the id does not exist for this tenant.
	Update(ctx context.Context, id string, params UpdateParams) (*Student, error)

	// Delete removes the tenant's student and reports whether a row was
	// removed.
	Delete(ctx context.Context, id string) (bool, error)

	// Count returns the number of the tenant's students matching the
	// predicates.
	Count(ctx context.Context, preds ...query.Predicate) (int64, error)

	// Exists reports whether the tenant owns a student with the given id.
	Exists(ctx context.Context, id string) (bool, error)

	// FindByClass returns the tenant's students in one class.
	FindByClass(ctx context.Context, classID string, q query.Query) (query.Result[Student], error)

	// FindByStatus returns the tenant's students with one enrollment status.
	FindByStatus(ctx context.Context, status EnrollmentStatus, q query.Query) (query.Result[Student], error)

	// SearchByName returns the tenant's students whose first or last name
	// starts with prefix, case-insensitively.
	SearchByName(ctx context.Context, prefix string, q query.Query) (query.Result[Student], error)
}
