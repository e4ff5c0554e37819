package assignment

import (
	"time"

	"github.com/classhive/classhive/internal/domain/assignment"
)

// NewAssignment is the inbound payload for creating an assignment. Identity,
// tenant and timestamps are deliberately absent; they are assigned below this
// layer.
type NewAssignment struct {
	Title       string    `json:"title" validate:"required,min=1,max=200"`
	Description string    `json:"description" validate:"max=2000"`
	ClassID     string    `json:"class_id" validate:"required"`
	DueDate     time.Time `json:"due_date" validate:"required"`
	MaxPoints   int       `json:"max_points" validate:"gte=0,lte=1000"`
}

func (na NewAssignment) toParams() assignment.CreateParams {
	return assignment.CreateParams{
		Title:       na.Title,
		Description: na.Description,
		ClassID:     na.ClassID,
		DueDate:     na.DueDate,
		MaxPoints:   na.MaxPoints,
	}
}

// UpdateAssignment is the inbound patch payload. Nil fields stay untouched.
type UpdateAssignment struct {
	Title       *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=2000"`
	ClassID     *string    `json:"class_id" validate:"omitempty,min=1"`
	DueDate     *time.Time `json:"due_date"`
	MaxPoints   *int       `json:"max_points" validate:"omitempty,gte=0,lte=1000"`
}

func (ua UpdateAssignment) toParams() assignment.UpdateParams {
	return assignment.UpdateParams{
		Title:       ua.Title,
		Description: ua.Description,
		ClassID:     ua.ClassID,
		DueDate:     ua.DueDate,
		MaxPoints:   ua.MaxPoints,
	}
}
