// Package registry provides the per-tenant repository factory. It caches one
// repository instance per (kind, tenant) pair so repeated lookups for the
// same tenant return the same instance, and supports explicit eviction when a
// tenant's configuration changes.
package registry

import (
	"errors"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/trace"

	"github.com/classhive/classhive/internal/domain/assignment"
	"github.com/classhive/classhive/internal/domain/student"
	"github.com/classhive/classhive/internal/infra/storage"
	assignmentpg "github.com/classhive/classhive/internal/infra/storage/assignment/postgres"
	studentpg "github.com/classhive/classhive/internal/infra/storage/student/postgres"
)

// ErrInvalidTenant is returned for empty or blank tenant ids.
var ErrInvalidTenant = errors.New("invalid tenant id")

// Store kinds, used as cache and metrics labels.
const (
	KindAssignments = "assignments"
	KindStudents    = "students"
)

// Metrics records cache behavior. A nil Metrics disables recording.
type Metrics interface {
	ObserveLookup(kind string, hit bool)
	ObserveEviction(count int64)
}

// Registry hands out tenant-bound repositories, constructing each lazily on
// first request and caching it until evicted. It is an explicit dependency:
// construct one and pass it where needed, there is no package-level instance.
//
// Eviction only empties the cache. Repository references already handed out
// keep working; the next lookup for that tenant just builds a fresh instance.
type Registry struct {
	pool         *pgxpool.Pool
	tracer       trace.Tracer
	metrics      Metrics
	storeMetrics storage.Metrics

	mu          sync.RWMutex
	assignments map[string]assignment.Repository
	students    map[string]student.Repository
}

// Option configures a Registry.
type Option func(*Registry)

// WithMetrics attaches cache metrics.
func WithMetrics(m Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithStoreMetrics instruments every repository the registry constructs.
func WithStoreMetrics(m storage.Metrics) Option {
	return func(r *Registry) { r.storeMetrics = m }
}

// New creates an empty registry over the given pool.
func New(pool *pgxpool.Pool, tracer trace.Tracer, opts ...Option) (*Registry, error) {
	if pool == nil {
		return nil, errors.New("registry: pool is required")
	}

	r := &Registry{
		pool:        pool,
		tracer:      tracer,
		assignments: make(map[string]assignment.Repository),
		students:    make(map[string]student.Repository),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Assignments returns the assignment repository bound to tenantID, creating
// and caching it on first use.
func (r *Registry) Assignments(tenantID string) (assignment.Repository, error) {
	return lookup(r, r.assignments, KindAssignments, tenantID, func() (assignment.Repository, error) {
		return assignmentpg.NewStore(r.pool, r.tracer, tenantID, assignmentpg.WithMetrics(r.storeMetrics))
	})
}

// Students returns the student repository bound to tenantID, creating and
// caching it on first use.
func (r *Registry) Students(tenantID string) (student.Repository, error) {
	return lookup(r, r.students, KindStudents, tenantID, func() (student.Repository, error) {
		return studentpg.NewStore(r.pool, r.tracer, tenantID, studentpg.WithMetrics(r.storeMetrics))
	})
}

// ClearTenant evicts every cached repository for one tenant.
func (r *Registry) ClearTenant(tenantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted int64
	if _, ok := r.assignments[tenantID]; ok {
		delete(r.assignments, tenantID)
		evicted++
	}
	if _, ok := r.students[tenantID]; ok {
		delete(r.students, tenantID)
		evicted++
	}
	if r.metrics != nil && evicted > 0 {
		r.metrics.ObserveEviction(evicted)
	}
}

// Clear evicts every cached repository for every tenant. Entries are deleted
// in place rather than by swapping the maps: the map fields are read without
// the lock when handed to lookup, so they must never be reassigned after
// construction.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := int64(len(r.assignments) + len(r.students))
	for k := range r.assignments {
		delete(r.assignments, k)
	}
	for k := range r.students {
		delete(r.students, k)
	}
	if r.metrics != nil && evicted > 0 {
		r.metrics.ObserveEviction(evicted)
	}
}

// Size returns the number of cached repositories across all tenants.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.assignments) + len(r.students)
}

// lookup implements the double-checked read-then-insert shared by all store
// kinds. The write lock covers the re-check, construction and insert, so
// concurrent first lookups for the same tenant still yield one instance.
func lookup[R any](r *Registry, cache map[string]R, kind, tenantID string, build func() (R, error)) (R, error) {
	var zero R
	if strings.TrimSpace(tenantID) == "" {
		return zero, ErrInvalidTenant
	}

	r.mu.RLock()
	repo, ok := cache[tenantID]
	r.mu.RUnlock()
	if ok {
		if r.metrics != nil {
			r.metrics.ObserveLookup(kind, true)
		}
		return repo, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if repo, ok := cache[tenantID]; ok {
		if r.metrics != nil {
			r.metrics.ObserveLookup(kind, true)
		}
		return repo, nil
	}

	repo, err := build()
	if err != nil {
		return zero, err
	}
	cache[tenantID] = repo
	if r.metrics != nil {
		r.metrics.ObserveLookup(kind, false)
	}
	return repo, nil
}
