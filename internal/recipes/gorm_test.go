package recipes

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	apperrors "procrecipe/internal/errors"
	"procrecipe/models"
)

// staleRead rewrites the next `times` single-recipe reads on db with rewind, so the
// repository acts on a snapshot taken before another writer committed.
func staleRead(t *testing.T, db *gorm.DB, times int, rewind func(r *models.Recipe)) {
	t.Helper()
	remaining := times
	name := "test:stale_read:" + uuid.NewString()
	err := db.Callback().Query().After("gorm:query").Register(name, func(tx *gorm.DB) {
		recipe, ok := tx.Statement.Dest.(*models.Recipe)
		if !ok || remaining == 0 || tx.Error != nil {
			return
		}
		remaining--
		rewind(recipe)
	})
	require.NoError(t, err)
}

func TestGormUpdateKeepsConcurrentDeprecation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newGormDB(t)
	repo := NewGormRepository(db)

	created, err := repo.Create(ctx, sawDraft("SAW-STD"))
	require.NoError(t, err)
	_, err = repo.Activate(ctx, created.ID)
	require.NoError(t, err)
	_, err = repo.Deprecate(ctx, created.ID)
	require.NoError(t, err)

	staleRead(t, db, 1, func(r *models.Recipe) { r.Status = models.StatusActive })

	notes := "recut blade"
	updated, err := repo.Update(ctx, created.ID, Patch{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, models.StatusDeprecated, updated.Status)
	assert.Equal(t, 2, updated.Version)

	fetched, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDeprecated, fetched.Status)
	assert.Equal(t, "recut blade", fetched.Notes)
	assert.Equal(t, 2, fetched.Version)

	active, err := repo.List(ctx, Filter{Status: models.StatusActive})
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestGormUpdateKeepsConcurrentActivation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newGormDB(t)
	repo := NewGormRepository(db)

	created, err := repo.Create(ctx, sawDraft("SAW-STD"))
	require.NoError(t, err)
	_, err = repo.Activate(ctx, created.ID)
	require.NoError(t, err)

	staleRead(t, db, 1, func(r *models.Recipe) { r.Status = models.StatusDraft })

	name := "Band saw cut, bundled"
	updated, err := repo.Update(ctx, created.ID, Patch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, updated.Status)

	fetched, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, fetched.Status)
	assert.Equal(t, name, fetched.Name)
	assert.Equal(t, 2, fetched.Version)
}

func TestGormUpdateRetriesStaleVersion(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newGormDB(t)
	repo := NewGormRepository(db)

	created, err := repo.Create(ctx, sawDraft("SAW-STD"))
	require.NoError(t, err)
	other := "other writer"
	_, err = repo.Update(ctx, created.ID, Patch{Notes: &other})
	require.NoError(t, err)

	staleRead(t, db, 1, func(r *models.Recipe) {
		r.Version = 1
		r.Notes = ""
	})

	notes := "mine"
	updated, err := repo.Update(ctx, created.ID, Patch{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Version, "retry builds on the committed version")

	fetched, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "mine", fetched.Notes)
	assert.Equal(t, 3, fetched.Version)
}

func TestGormUpdateGivesUpAfterMaxRetries(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newGormDB(t)
	repo := NewGormRepository(db)
	repo.maxRetries = 3

	created, err := repo.Create(ctx, sawDraft("SAW-STD"))
	require.NoError(t, err)
	other := "other writer"
	_, err = repo.Update(ctx, created.ID, Patch{Notes: &other})
	require.NoError(t, err)

	staleRead(t, db, repo.maxRetries, func(r *models.Recipe) { r.Version = 1 })

	notes := "never lands"
	_, err = repo.Update(ctx, created.ID, Patch{Notes: &notes})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInternal))
	assert.True(t, errors.Is(err, errStale))

	fetched, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "other writer", fetched.Notes)
	assert.Equal(t, 2, fetched.Version)
}
