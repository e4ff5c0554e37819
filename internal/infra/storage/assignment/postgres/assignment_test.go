package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classhive/classhive/internal/domain/assignment"
	"github.com/classhive/classhive/internal/domain/query"
	"github.com/classhive/classhive/internal/infra/storage"
	"github.com/classhive/classhive/internal/infra/storage/testutil"
	"github.com/classhive/classhive/pkg/common/timeutil"
)

func setupAssignmentTest(t *testing.T, opts ...Option) (context.Context, *pgxpool.Pool, assignment.Repository, func()) {
	t.Helper()

	pool, cleanup := testutil.SetupTestContainer(t)
	repo, err := NewStore(pool, testutil.NoOpTracer(), "tenant-a", opts...)
	require.NoError(t, err)

	return context.Background(), pool, repo, cleanup
}

func otherTenantStore(t *testing.T, pool *pgxpool.Pool) assignment.Repository {
	t.Helper()

	repo, err := NewStore(pool, testutil.NoOpTracer(), "tenant-b")
	require.NoError(t, err)
	return repo
}

func createAssignment(t *testing.T, ctx context.Context, repo assignment.Repository, title, classID string, due time.Time) *assignment.Assignment {
	t.Helper()

	created, err := repo.Create(ctx, assignment.CreateParams{
		Title:     title,
		ClassID:   classID,
		DueDate:   due,
		MaxPoints: 100,
	})
	require.NoError(t, err)
	require.NotNil(t, created)
	return created
}

func insertClass(t *testing.T, ctx context.Context, pool *pgxpool.Pool, id, tenantID, name string) {
	t.Helper()

	_, err := pool.Exec(ctx,
		"INSERT INTO classes (id, tenant_id, name) VALUES ($1, $2, $3)",
		id, tenantID, name)
	require.NoError(t, err)
}

func TestAssignmentStore_CreateAssignsOwnership(t *testing.T) {
	t.Parallel()

	ctx, _, repo, cleanup := setupAssignmentTest(t)
	defer cleanup()

	due := time.Now().Add(72 * time.Hour)
	created := createAssignment(t, ctx, repo, "Essay on photosynthesis", "class-1", due)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "tenant-a", created.TenantID)
	assert.Equal(t, assignment.StatusDraft, created.Status)
	assert.False(t, created.CreatedAt.IsZero())
	assert.False(t, created.UpdatedAt.IsZero())

	found, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "Essay on photosynthesis", found.Title)
}

func TestAssignmentStore_TenantIsolation(t *testing.T) {
	t.Parallel()

	ctx, pool, repoA, cleanup := setupAssignmentTest(t)
	defer cleanup()
	repoB := otherTenantStore(t, pool)

	created := createAssignment(t, ctx, repoA, "Tenant A only", "class-1", time.Now().Add(time.Hour))

	// A foreign tenant's row is indistinguishable from a missing one.
	found, err := repoB.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, found)

	exists, err := repoB.Exists(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	title := "hijacked"
	updated, err := repoB.Update(ctx, created.ID, assignment.UpdateParams{Title: &title})
	require.NoError(t, err)
	assert.Nil(t, updated)

	deleted, err := repoB.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	all, err := repoB.FindAll(ctx, query.Query{})
	require.NoError(t, err)
	assert.Empty(t, all.Data)
	assert.Zero(t, all.TotalCount)

	// The row is untouched for its owner.
	kept, err := repoA.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, kept)
	assert.Equal(t, "Tenant A only", kept.Title)
}

func TestAssignmentStore_UpdatePatchSemantics(t *testing.T) {
	t.Parallel()

	ctx, _, repo, cleanup := setupAssignmentTest(t)
	defer cleanup()

	created := createAssignment(t, ctx, repo, "Before", "class-1", time.Now().Add(time.Hour))

	title := "After"
	points := 50
	updated, err := repo.Update(ctx, created.ID, assignment.UpdateParams{Title: &title, MaxPoints: &points})
	require.NoError(t, err)
	require.NotNil(t, updated)

	assert.Equal(t, "After", updated.Title)
	assert.Equal(t, 50, updated.MaxPoints)
	assert.Equal(t, created.ClassID, updated.ClassID, "unset fields stay untouched")
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt) || updated.UpdatedAt.Equal(created.UpdatedAt))

	missing, err := repo.Update(ctx, "no-such-id", assignment.UpdateParams{Title: &title})
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAssignmentStore_DeleteIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx, _, repo, cleanup := setupAssignmentTest(t)
	defer cleanup()

	created := createAssignment(t, ctx, repo, "Doomed", "class-1", time.Now().Add(time.Hour))

	deleted, err := repo.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, deleted, "second delete reports nothing removed, not an error")
}

func TestAssignmentStore_PaginationIsExactAndStable(t *testing.T) {
	t.Parallel()

	ctx, _, repo, cleanup := setupAssignmentTest(t)
	defer cleanup()

	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		createAssignment(t, ctx, repo, fmt.Sprintf("Assignment %02d", i), "class-1", base.Add(time.Duration(i)*time.Hour))
	}

	seen := make(map[string]bool)
	sizes := []int{10, 10, 5}
	for page := 1; page <= 3; page++ {
		res, err := repo.FindAll(ctx, query.Query{
			Page: page, Limit: 10, SortBy: "due_date", SortOrder: query.Asc,
		})
		require.NoError(t, err)

		assert.Len(t, res.Data, sizes[page-1])
		assert.Equal(t, int64(25), res.TotalCount)
		assert.Equal(t, 3, res.TotalPages)
		assert.Equal(t, page < 3, res.HasMore)

		for _, a := range res.Data {
			assert.False(t, seen[a.ID], "pages must not overlap")
			seen[a.ID] = true
		}
	}
	assert.Len(t, seen, 25)
}

func TestAssignmentStore_Finders(t *testing.T) {
	t.Parallel()

	ctx, _, repo, cleanup := setupAssignmentTest(t)
	defer cleanup()

	due := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	a1 := createAssignment(t, ctx, repo, "Math quiz", "class-math", due)
	createAssignment(t, ctx, repo, "History essay", "class-history", due.Add(48*time.Hour))
	createAssignment(t, ctx, repo, "Math homework", "class-math", due.Add(30*24*time.Hour))

	byClass, err := repo.FindByClass(ctx, "class-math", query.Query{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), byClass.TotalCount)

	_, err = repo.Publish(ctx, a1.ID)
	require.NoError(t, err)

	byStatus, err := repo.FindByStatus(ctx, assignment.StatusDraft, query.Query{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), byStatus.TotalCount)

	between, err := repo.FindDueBetween(ctx, due.Add(-time.Hour), due.Add(72*time.Hour), query.Query{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), between.TotalCount)

	count, err := repo.Count(ctx, query.Eq("class_id", "class-math"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestAssignmentStore_FindOverdue(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	ctx, _, repo, cleanup := setupAssignmentTest(t, WithClock(timeutil.NewMock(now)))
	defer cleanup()

	past := createAssignment(t, ctx, repo, "Past due published", "class-1", now.Add(-24*time.Hour))
	createAssignment(t, ctx, repo, "Past due still draft", "class-1", now.Add(-24*time.Hour))
	future := createAssignment(t, ctx, repo, "Future published", "class-1", now.Add(24*time.Hour))

	_, err := repo.Publish(ctx, past.ID)
	require.NoError(t, err)
	_, err = repo.Publish(ctx, future.ID)
	require.NoError(t, err)

	overdue, err := repo.FindOverdue(ctx, query.Query{})
	require.NoError(t, err)
	require.Equal(t, int64(1), overdue.TotalCount)
	assert.Equal(t, past.ID, overdue.Data[0].ID)
}

func TestAssignmentStore_FindWithClass(t *testing.T) {
	t.Parallel()

	ctx, pool, repo, cleanup := setupAssignmentTest(t)
	defer cleanup()

	insertClass(t, ctx, pool, "class-bio", "tenant-a", "Biology")
	insertClass(t, ctx, pool, "class-foreign", "tenant-b", "Foreign Biology")

	withName := createAssignment(t, ctx, repo, "Dissection report", "class-bio", time.Now().Add(time.Hour))
	// The class id resolves to a row owned by another tenant; the join-time
	// tenant check must exclude it.
	createAssignment(t, ctx, repo, "Orphaned", "class-foreign", time.Now().Add(time.Hour))

	res, err := repo.FindWithClass(ctx, query.Query{})
	require.NoError(t, err)
	require.Equal(t, int64(1), res.TotalCount)
	assert.Equal(t, withName.ID, res.Data[0].ID)
	assert.Equal(t, "Biology", res.Data[0].ClassName)
}

func TestAssignmentStore_ReassignClass(t *testing.T) {
	t.Parallel()

	ctx, pool, repoA, cleanup := setupAssignmentTest(t)
	defer cleanup()
	repoB := otherTenantStore(t, pool)

	a1 := createAssignment(t, ctx, repoA, "One", "class-old", time.Now().Add(time.Hour))
	a2 := createAssignment(t, ctx, repoA, "Two", "class-old", time.Now().Add(time.Hour))
	foreign := createAssignment(t, ctx, repoB, "Other tenant", "class-old", time.Now().Add(time.Hour))

	changed, err := repoA.ReassignClass(ctx, []string{a1.ID, a2.ID, foreign.ID, "no-such-id"}, "class-new")
	require.NoError(t, err)
	assert.Equal(t, int64(2), changed, "foreign and unknown ids are skipped")

	kept, err := repoB.FindByID(ctx, foreign.ID)
	require.NoError(t, err)
	require.NotNil(t, kept)
	assert.Equal(t, "class-old", kept.ClassID)

	changed, err = repoA.ReassignClass(ctx, nil, "class-new")
	require.NoError(t, err)
	assert.Zero(t, changed)
}

func TestAssignmentStore_Lifecycle(t *testing.T) {
	t.Parallel()

	ctx, _, repo, cleanup := setupAssignmentTest(t)
	defer cleanup()

	created := createAssignment(t, ctx, repo, "Lifecycle", "class-1", time.Now().Add(time.Hour))

	published, err := repo.Publish(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, published)
	assert.Equal(t, assignment.StatusPublished, published.Status)

	_, err = repo.Publish(ctx, created.ID)
	assert.ErrorIs(t, err, assignment.ErrInvalidTransition)

	archived, err := repo.Archive(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, archived)
	assert.Equal(t, assignment.StatusArchived, archived.Status)

	_, err = repo.Archive(ctx, created.ID)
	assert.ErrorIs(t, err, assignment.ErrInvalidTransition)

	missing, err := repo.Publish(ctx, "no-such-id")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

// A transition the lifecycle forbids must not write anything: the state guard
// is part of the UPDATE itself, so a terminal row stays terminal no matter how
// the attempt is interleaved with other transitions.
func TestAssignmentStore_RejectedTransitionLeavesStateUntouched(t *testing.T) {
	t.Parallel()

	ctx, _, repo, cleanup := setupAssignmentTest(t)
	defer cleanup()

	created := createAssignment(t, ctx, repo, "Terminal", "class-1", time.Now().Add(time.Hour))

	archived, err := repo.Archive(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, archived)

	_, err = repo.Publish(ctx, created.ID)
	assert.ErrorIs(t, err, assignment.ErrInvalidTransition)

	stored, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, assignment.StatusArchived, stored.Status)
	assert.Equal(t, archived.UpdatedAt, stored.UpdatedAt, "a rejected transition must not touch the row")
}

func TestAssignmentStore_CloneAcrossTenants(t *testing.T) {
	t.Parallel()

	ctx, pool, repoA, cleanup := setupAssignmentTest(t)
	defer cleanup()
	repoB := otherTenantStore(t, pool)

	src := createAssignment(t, ctx, repoA, "Shared curriculum", "class-1", time.Now().Add(time.Hour))
	_, err := repoA.Publish(ctx, src.ID)
	require.NoError(t, err)

	clone, err := repoA.Clone(ctx, src.ID, repoB)
	require.NoError(t, err)
	require.NotNil(t, clone)

	assert.NotEqual(t, src.ID, clone.ID)
	assert.Equal(t, "tenant-b", clone.TenantID)
	assert.Equal(t, assignment.StatusDraft, clone.Status, "clones restart as drafts")
	assert.Equal(t, src.Title, clone.Title)

	// The clone is visible only to the target tenant.
	fromA, err := repoA.FindByID(ctx, clone.ID)
	require.NoError(t, err)
	assert.Nil(t, fromA)

	missing, err := repoA.Clone(ctx, "no-such-id", repoB)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAssignmentStore_BackendFailuresWrap(t *testing.T) {
	t.Parallel()

	ctx, _, repo, cleanup := setupAssignmentTest(t)
	defer cleanup()

	// The status check constraint rejects this value below the repository.
	_, err := repo.(*assignmentStore).exec.Insert(ctx, storage.Values{
		{Column: "title", Arg: "bad"},
		{Column: "class_id", Arg: "class-1"},
		{Column: "status", Arg: "not-a-status"},
		{Column: "due_date", Arg: time.Now()},
	})
	require.Error(t, err)
	assert.True(t, storage.IsRepositoryError(err))

	var re *storage.RepositoryError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "insert", re.Op)
	assert.Equal(t, assignmentsTable, re.Table)
}
