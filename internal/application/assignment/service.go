// Package assignment provides assignment-related application services on top
// of the tenant-scoped repositories. Inbound payloads are validated here;
// the storage core below assumes clean input.
package assignment

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/classhive/classhive/internal/application/sdk/validate"
	"github.com/classhive/classhive/internal/domain/assignment"
	"github.com/classhive/classhive/internal/domain/query"
	"github.com/classhive/classhive/pkg/common/logger"
)

// RepositoryProvider resolves the assignment repository bound to a tenant.
// It is satisfied by the storage registry.
type RepositoryProvider interface {
	Assignments(tenantID string) (assignment.Repository, error)
}

// Service provides assignment application services. All methods take the
// acting tenant explicitly; the service resolves a tenant-bound repository
// per call and never caches one across tenants.
type Service struct {
	repos RepositoryProvider

	logger *logger.Logger
	tracer trace.Tracer
}

// NewService creates a new assignment service.
func NewService(repos RepositoryProvider, log *logger.Logger, tracer trace.Tracer) *Service {
	return &Service{
		repos:  repos,
		logger: log.With("component", "assignment_service"),
		tracer: tracer,
	}
}

// Create validates and stores a new draft assignment for the tenant.
func (s *Service) Create(ctx context.Context, tenantID string, na NewAssignment) (*assignment.Assignment, error) {
	log := logger.NewLoggerContext(s.logger.With(
		"operation_type", "create",
		"tenant_id", tenantID,
		"class_id", na.ClassID,
	))
	ctx, span := s.tracer.Start(ctx, "assignment.Create", trace.WithAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.String("class.id", na.ClassID),
	))
	defer span.End()

	if err := validate.Check(na); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid payload")
		return nil, err
	}

	params := na.toParams()
	if err := params.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid assignment")
		return nil, err
	}

	repo, err := s.repos.Assignments(tenantID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "error resolving repository")
		return nil, fmt.Errorf("resolving repository for tenant (%s): %w", tenantID, err)
	}

	created, err := repo.Create(ctx, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "error persisting assignment")
		return nil, fmt.Errorf("persisting assignment: %w", err)
	}
	span.SetAttributes(attribute.String("assignment.id", created.ID))
	log.Add("assignment_id", created.ID)
	log.Info(ctx, "assignment created")
	span.SetStatus(codes.Ok, "assignment created")

	return created, nil
}

// Update validates and applies a patch to the tenant's assignment.
func (s *Service) Update(ctx context.Context, tenantID, id string, ua UpdateAssignment) (*assignment.Assignment, error) {
	ctx, span := s.tracer.Start(ctx, "assignment.Update", trace.WithAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.String("assignment.id", id),
	))
	defer span.End()

	if err := validate.Check(ua); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid payload")
		return nil, err
	}

	params := ua.toParams()
	if err := params.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid patch")
		return nil, err
	}

	repo, err := s.repos.Assignments(tenantID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "error resolving repository")
		return nil, fmt.Errorf("resolving repository for tenant (%s): %w", tenantID, err)
	}

	updated, err := repo.Update(ctx, id, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "error updating assignment")
		return nil, fmt.Errorf("updating assignment (%s): %w", id, err)
	}
	if updated == nil {
		span.RecordError(assignment.ErrNotFound)
		span.SetStatus(codes.Error, "assignment not found")
		return nil, assignment.ErrNotFound
	}

	s.logger.Info(ctx, "assignment updated", "tenant_id", tenantID, "assignment_id", id)
	span.SetStatus(codes.Ok, "assignment updated")

	return updated, nil
}

// List returns one page of the tenant's assignments.
func (s *Service) List(ctx context.Context, tenantID string, q query.Query) (query.Result[assignment.Assignment], error) {
	ctx, span := s.tracer.Start(ctx, "assignment.List", trace.WithAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.Int("page", q.Page),
	))
	defer span.End()

	repo, err := s.repos.Assignments(tenantID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "error resolving repository")
		return query.Result[assignment.Assignment]{}, fmt.Errorf("resolving repository for tenant (%s): %w", tenantID, err)
	}

	res, err := repo.FindAll(ctx, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "error listing assignments")
		return query.Result[assignment.Assignment]{}, fmt.Errorf("listing assignments: %w", err)
	}
	span.SetAttributes(attribute.Int64("total_count", res.TotalCount))
	span.SetStatus(codes.Ok, "assignments listed")

	return res, nil
}

// Publish moves the tenant's draft assignment to published.
func (s *Service) Publish(ctx context.Context, tenantID, id string) (*assignment.Assignment, error) {
	return s.transition(ctx, tenantID, id, "assignment.Publish", func(ctx context.Context, repo assignment.Repository) (*assignment.Assignment, error) {
		return repo.Publish(ctx, id)
	})
}

// Archive moves the tenant's assignment to archived.
func (s *Service) Archive(ctx context.Context, tenantID, id string) (*assignment.Assignment, error) {
	return s.transition(ctx, tenantID, id, "assignment.Archive", func(ctx context.Context, repo assignment.Repository) (*assignment.Assignment, error) {
		return repo.Archive(ctx, id)
	})
}

func (s *Service) transition(
	ctx context.Context,
	tenantID, id, spanName string,
	fn func(ctx context.Context, repo assignment.Repository) (*assignment.Assignment, error),
) (*assignment.Assignment, error) {
	ctx, span := s.tracer.Start(ctx, spanName, trace.WithAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.String("assignment.id", id),
	))
	defer span.End()

	repo, err := s.repos.Assignments(tenantID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "error resolving repository")
		return nil, fmt.Errorf("resolving repository for tenant (%s): %w", tenantID, err)
	}

	result, err := fn(ctx, repo)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "error transitioning assignment")
		return nil, err
	}
	if result == nil {
		span.RecordError(assignment.ErrNotFound)
		span.SetStatus(codes.Error, "assignment not found")
		return nil, assignment.ErrNotFound
	}

	s.logger.Info(ctx, "assignment transitioned",
		"tenant_id", tenantID, "assignment_id", id, "status", result.Status)
	span.SetStatus(codes.Ok, "assignment transitioned")

	return result, nil
}

// CloneToTenant copies an assignment from one tenant's catalog into
// another's. The copy belongs entirely to the target tenant and starts as a
// draft.
func (s *Service) CloneToTenant(ctx context.Context, sourceTenantID, id, targetTenantID string) (*assignment.Assignment, error) {
	log := logger.NewLoggerContext(s.logger.With(
		"operation_type", "clone",
		"source_tenant_id", sourceTenantID,
		"target_tenant_id", targetTenantID,
		"assignment_id", id,
	))
	ctx, span := s.tracer.Start(ctx, "assignment.CloneToTenant", trace.WithAttributes(
		attribute.String("tenant.id", sourceTenantID),
		attribute.String("target.tenant.id", targetTenantID),
		attribute.String("assignment.id", id),
	))
	defer span.End()

	source, err := s.repos.Assignments(sourceTenantID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "error resolving source repository")
		return nil, fmt.Errorf("resolving repository for tenant (%s): %w", sourceTenantID, err)
	}

	target, err := s.repos.Assignments(targetTenantID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "error resolving target repository")
		return nil, fmt.Errorf("resolving repository for tenant (%s): %w", targetTenantID, err)
	}

	clone, err := source.Clone(ctx, id, target)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "error cloning assignment")
		return nil, fmt.Errorf("cloning assignment (%s): %w", id, err)
	}
	if clone == nil {
		span.RecordError(assignment.ErrNotFound)
		span.SetStatus(codes.Error, "assignment not found")
		return nil, assignment.ErrNotFound
	}

	log.Add("clone_id", clone.ID)
	log.Info(ctx, "assignment cloned")
	span.SetStatus(codes.Ok, "assignment cloned")

	return clone, nil
}
