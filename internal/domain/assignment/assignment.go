// Package assignment defines the assignment aggregate: the entity, its
// status lifecycle, the typed create/update payloads and the repository
// contract the storage layer implements.
package assignment

import (
	"errors"
	"strings"
	"time"

	"github.com/classhive/classhive/internal/domain/entity"
)

// Common errors
var (
	ErrNotFound          = errors.New("assignment not found")
	ErrInvalidTitle      = errors.New("invalid assignment title")
	ErrInvalidClass      = errors.New("invalid class id")
	ErrInvalidStatus     = errors.New("invalid assignment status")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Status represents an assignment's lifecycle state.
type Status string

// Predefined assignment statuses.
const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// IsValid reports whether s is one of the predefined statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusArchived:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
// Drafts publish or archive; published assignments only archive; archived is
// terminal.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusDraft:
		return next == StatusPublished || next == StatusArchived
	case StatusPublished:
		return next == StatusArchived
	default:
		return false
	}
}

// Assignment is a piece of coursework given to a class. Identity, tenant
// ownership and timestamps live on the embedded base and are managed by the
// storage layer.
type Assignment struct {
	entity.Entity

	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	ClassID     string    `db:"class_id" json:"class_id"`
	Status      Status    `db:"status" json:"status"`
	DueDate     time.Time `db:"due_date" json:"due_date"`
	MaxPoints   int       `db:"max_points" json:"max_points"`
}

// WithClass is an assignment enriched with the name of its class. It is a
// read-only projection produced by joined finders and is never written back.
type WithClass struct {
	Assignment

	ClassName string `db:"class_name" json:"class_name"`
}

// CreateParams is the payload for creating an assignment. It deliberately has
// no id, tenant or timestamp fields; those are assigned by the storage layer.
// New assignments always start as drafts.
type CreateParams struct {
	Title       string
	Description string
	ClassID     string
	DueDate     time.Time
	MaxPoints   int
}

// Validate checks the payload's domain rules.
func (p CreateParams) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return ErrInvalidTitle
	}
	if strings.TrimSpace(p.ClassID) == "" {
		return ErrInvalidClass
	}
	return nil
}

// UpdateParams is the patch payload for an assignment. Nil fields are left
// untouched. Status is absent on purpose: lifecycle changes go through
// Publish and Archive so the transition rules always apply.
type UpdateParams struct {
	Title       *string
	Description *string
	ClassID     *string
	DueDate     *time.Time
	MaxPoints   *int
}

// Validate checks the set fields against the same rules as creation.
func (p UpdateParams) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return ErrInvalidTitle
	}
	if p.ClassID != nil && strings.TrimSpace(*p.ClassID) == "" {
		return ErrInvalidClass
	}
	return nil
}

// CloneParams derives the creation payload for a copy of a. The copy carries
// no identity, ownership or timestamps; whichever repository creates it
// assigns its own tenant.
func CloneParams(a *Assignment) CreateParams {
	return CreateParams{
		Title:       a.Title,
		Description: a.Description,
		ClassID:     a.ClassID,
		DueDate:     a.DueDate,
		MaxPoints:   a.MaxPoints,
	}
}
