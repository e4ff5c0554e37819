// Package student defines the student record, its enrollment lifecycle and
// the repository contract for student data access.
package student

import (
	"errors"
	"net/mail"
	"strings"

	"github.com/classhive/classhive/internal/domain/entity"
)

// Common errors
var (
	ErrInvalidName   = errors.New("invalid student name")
	ErrInvalidEmail  = errors.New("invalid student email")
	ErrInvalidStatus = errors.New("invalid enrollment status")
)

// EnrollmentStatus represents a student's standing with the school.
type EnrollmentStatus string

// Predefined enrollment statuses.
const (
	StatusEnrolled  EnrollmentStatus = "enrolled"
	StatusWithdrawn EnrollmentStatus = "withdrawn"
	StatusGraduated EnrollmentStatus = "graduated"
)

// IsValid reports whether s is one of the predefined statuses.
func (s EnrollmentStatus) IsValid() bool {
	switch s {
	case StatusEnrolled, StatusWithdrawn, StatusGraduated:
		return true
	default:
		return false
	}
}

// Student is a learner enrolled with one tenant. Identity, tenant ownership
// and timestamps live on the embedded base.
type Student struct {
	entity.Entity

	FirstName string           `db:"first_name" json:"first_name"`
	LastName  string           `db:"last_name" json:"last_name"`
	Email     string           `db:"email" json:"email"`
	ClassID   string           `db:"class_id" json:"class_id"`
	Status    EnrollmentStatus `db:"status" json:"status"`
}

// CreateParams is the payload for enrolling a student. Identity, tenant and
// timestamps are absent on purpose; the storage layer assigns them. New
// students start enrolled.
type CreateParams struct {
	FirstName string
	LastName  string
	Email     string
	ClassID   string
}

// Validate checks the payload's domain rules.
func (p CreateParams) Validate() error {
	if strings.TrimSpace(p.FirstName) == "" || strings.TrimSpace(p.LastName) == "" {
		return ErrInvalidName
	}
	if _, err := mail.ParseAddress(p.Email); err != nil {
		return ErrInvalidEmail
	}
	return nil
}

// UpdateParams is the patch payload for a student. Nil fields are left
// untouched.
type UpdateParams struct {
	FirstName *string
	LastName  *string
	Email     *string
	ClassID   *string
	Status    *EnrollmentStatus
}

// Validate checks the set fields.
func (p UpdateParams) Validate() error {
	if p.FirstName != nil && strings.TrimSpace(*p.FirstName) == "" {
		return ErrInvalidName
	}
	if p.LastName != nil && strings.TrimSpace(*p.LastName) == "" {
		return ErrInvalidName
	}
	if p.Email != nil {
		if _, err := mail.ParseAddress(*p.Email); err != nil {
			return ErrInvalidEmail
		}
	}
	if p.Status != nil && !p.Status.IsValid() {
		return ErrInvalidStatus
	}
	return nil
}
