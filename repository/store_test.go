package repository

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/qforge/qbank/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	repo := New(db)
	require.NoError(t, repo.AutoMigrate())
	return repo
}

func TestCreateAndGet(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	created, err := Create(ctx, repo, &models.Program{Name: "Engineering", Description: "Engineering program"})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := Get[models.Program](ctx, repo, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "Engineering", got.Name)
}

func TestGetMissingIsNotFound(t *testing.T) {
	repo := newTestRepository(t)

	_, err := Get[models.Program](context.Background(), repo, "no-such-id")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListSorted(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for _, name := range []string{"Banana", "Apple", "Cherry"} {
		_, err := Create(ctx, repo, &models.Program{Name: name})
		require.NoError(t, err)
	}

	asc, err := List[models.Program](ctx, repo, "name", true)
	require.NoError(t, err)
	require.Len(t, asc, 3)
	assert.Equal(t, "Apple", asc[0].Name)
	assert.Equal(t, "Cherry", asc[2].Name)

	desc, err := List[models.Program](ctx, repo, "name", false)
	require.NoError(t, err)
	assert.Equal(t, "Cherry", desc[0].Name)
}

func TestFilterExactMatch(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	program, err := Create(ctx, repo, &models.Program{Name: "Science"})
	require.NoError(t, err)
	_, err = Create(ctx, repo, &models.Course{ProgramID: &program.ID, Name: "Physics"})
	require.NoError(t, err)
	_, err = Create(ctx, repo, &models.Course{Name: "Unattached"})
	require.NoError(t, err)

	matched, err := Filter[models.Course](ctx, repo, map[string]any{"program_id": program.ID}, "name", true)
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "Physics", matched[0].Name)
}

func TestFilterSkipsNilCriteria(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := Create(ctx, repo, &models.Course{Name: "Math"})
	require.NoError(t, err)
	_, err = Create(ctx, repo, &models.Course{Name: "History"})
	require.NoError(t, err)

	// A nil value must drop the criterion, not match IS NULL.
	all, err := Filter[models.Course](ctx, repo, map[string]any{"program_id": nil}, "name", true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestUpdateChangesColumns(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	created, err := Create(ctx, repo, &models.Program{Name: "Old Name", Description: "keep me"})
	require.NoError(t, err)

	updated, err := Update[models.Program](ctx, repo, created.ID, map[string]any{"name": "New Name"})
	require.NoError(t, err)
	assert.Equal(t, "New Name", updated.Name)
	assert.Equal(t, "keep me", updated.Description)
}

func TestUpdateMissingIsNotFound(t *testing.T) {
	repo := newTestRepository(t)

	_, err := Update[models.Program](context.Background(), repo, "no-such-id", map[string]any{"name": "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRemovesRow(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	created, err := Create(ctx, repo, &models.Program{Name: "Doomed"})
	require.NoError(t, err)

	require.NoError(t, Delete[models.Program](ctx, repo, created.ID))

	_, err = Get[models.Program](ctx, repo, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteMissingIsNotAnError(t *testing.T) {
	repo := newTestRepository(t)

	assert.NoError(t, Delete[models.Program](context.Background(), repo, "no-such-id"))
}

func TestGetWithPreload(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	program, err := Create(ctx, repo, &models.Program{Name: "Arts"})
	require.NoError(t, err)
	course, err := Create(ctx, repo, &models.Course{ProgramID: &program.ID, Name: "Literature"})
	require.NoError(t, err)

	got, err := Get[models.Course](ctx, repo, course.ID, "Program")
	require.NoError(t, err)
	require.NotNil(t, got.Program)
	assert.Equal(t, "Arts", got.Program.Name)
}
