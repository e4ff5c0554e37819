package assignment

import (
	"context"
	"time"

	"github.com/classhive/classhive/internal/domain/query"
)

// Repository is the tenant-scoped data access contract for assignments. An
// implementation is bound to exactly one tenant at construction time; no
// operation can observe or touch another tenant's rows, and a foreign
// tenant's row is indistinguishable from an absent one.
//
// Lookups report a miss with a nil entity (or false) and a nil error; a
// non-nil error always means the backend failed.
type Repository interface {
	// TenantID returns the tenant this repository is bound to.
	TenantID() string

	// FindByID returns the assignment with the given id, or nil when the
	// tenant owns no such assignment.
	FindByID(ctx context.Context, id string) (*Assignment, error)

	// FindAll returns one page of the tenant's assignments matching the
	// query, with an exact total count.
	FindAll(ctx context.Context, q query.Query) (query.Result[Assignment], error)

	// Create stores a new draft assignment owned by this tenant.
	Create(ctx context.Context, params CreateParams) (*Assignment, error)

	// Update patches the set fields of the tenant's assignment and returns
	// the stored result, or nil when the id does not exist for this tenant.
	Update(ctx context.Context, id string, params UpdateParams) (*Assignment, error)

	// Delete removes the tenant's assignment and reports whether a row was
	// removed. Deleting an absent id succeeds with false.
	Delete(ctx context.Context, id string) (bool, error)

	// Count returns the number of the tenant's assignments matching the
	// predicates.
	Count(ctx context.Context, preds ...query.Predicate) (int64, error)

	// Exists reports whether the tenant owns an assignment with the given id.
	Exists(ctx context.Context, id string) (bool, error)

	// FindByClass returns the tenant's assignments for one class.
	FindByClass(ctx context.Context, classID string, q query.Query) (query.Result[Assignment], error)

	// FindByStatus returns the tenant's assignments in one lifecycle state.
	FindByStatus(ctx context.Context, status Status, q query.Query) (query.Result[Assignment], error)

	// FindDueBetween returns the tenant's assignments due in [from, to].
	FindDueBetween(ctx context.Context, from, to time.Time, q query.Query) (query.Result[Assignment], error)

	// FindOverdue returns the tenant's published assignments whose due date
	// has passed.
	FindOverdue(ctx context.Context, q query.Query) (query.Result[Assignment], error)

	// FindWithClass returns the tenant's assignments joined with their class
	// name. The projection is read-only.
	FindWithClass(ctx context.Context, q query.Query) (query.Result[WithClass], error)

	// ReassignClass moves the given assignments to another class in a single
	// statement and returns how many rows changed. Ids the tenant does not
	// own are skipped, not rejected.
	ReassignClass(ctx context.Context, ids []string, classID string) (int64, error)

	// Publish transitions a draft to published. It returns nil when the id
	// does not exist for this tenant and ErrInvalidTransition when the
	// assignment is not a draft.
	Publish(ctx context.Context, id string) (*Assignment, error)

	// Archive transitions a draft or published assignment to archived, under
	// the same miss and transition semantics as Publish.
	Archive(ctx context.Context, id string) (*Assignment, error)

	// Clone copies the tenant's assignment into target, which may belong to a
	// different tenant. The copy gets a fresh id, target's tenant and new
	// timestamps, and always starts as a draft. It returns nil when the
	// source id does not exist for this tenant.
	Clone(ctx context.Context, id string, target Repository) (*Assignment, error)
}
