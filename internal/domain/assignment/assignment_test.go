package assignment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusDraft, StatusPublished, true},
		{StatusDraft, StatusArchived, true},
		{StatusPublished, StatusArchived, true},
		{StatusPublished, StatusDraft, false},
		{StatusArchived, StatusDraft, false},
		{StatusArchived, StatusPublished, false},
		{StatusDraft, StatusDraft, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestStatusIsValid(t *testing.T) {
	t.Parallel()

	assert.True(t, StatusDraft.IsValid())
	assert.True(t, StatusPublished.IsValid())
	assert.True(t, StatusArchived.IsValid())
	assert.False(t, Status("deleted").IsValid())
	assert.False(t, Status("").IsValid())
}

func TestCreateParamsValidate(t *testing.T) {
	t.Parallel()

	valid := CreateParams{Title: "Essay", ClassID: "class-1"}
	assert.NoError(t, valid.Validate())

	assert.ErrorIs(t, CreateParams{ClassID: "class-1"}.Validate(), ErrInvalidTitle)
	assert.ErrorIs(t, CreateParams{Title: "  ", ClassID: "class-1"}.Validate(), ErrInvalidTitle)
	assert.ErrorIs(t, CreateParams{Title: "Essay"}.Validate(), ErrInvalidClass)
}

func TestUpdateParamsValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, UpdateParams{}.Validate(), "empty patch is a no-op, not an error")

	title := "New title"
	assert.NoError(t, UpdateParams{Title: &title}.Validate())

	blank := "   "
	assert.ErrorIs(t, UpdateParams{Title: &blank}.Validate(), ErrInvalidTitle)
	assert.ErrorIs(t, UpdateParams{ClassID: &blank}.Validate(), ErrInvalidClass)
}

func TestCloneParams_StripsIdentity(t *testing.T) {
	t.Parallel()

	due := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	src := &Assignment{
		Title:       "Midterm project",
		Description: "Build something",
		ClassID:     "class-9",
		Status:      StatusPublished,
		DueDate:     due,
		MaxPoints:   100,
	}
	src.ID = "original-id"
	src.TenantID = "tenant-a"

	p := CloneParams(src)
	assert.Equal(t, src.Title, p.Title)
	assert.Equal(t, src.ClassID, p.ClassID)
	assert.Equal(t, due, p.DueDate)
	assert.NoError(t, p.Validate())
}
