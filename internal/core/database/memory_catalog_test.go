package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivecmu/filehub/internal/core"
	"github.com/hivecmu/filehub/internal/models"
)

func hashPtr(s string) *string { return &s }

func TestFindByHashReturnsEarliestRecord(t *testing.T) {
	store := NewMemoryCatalog()
	ctx := context.Background()

	first, err := store.Insert(ctx, &models.FileRecord{WorkspaceID: "ws1", Name: "a.txt", ContentHash: hashPtr("deadbeef")})
	require.NoError(t, err)
	_, err = store.Insert(ctx, &models.FileRecord{WorkspaceID: "ws1", Name: "b.txt", ContentHash: hashPtr("deadbeef")})
	require.NoError(t, err)

	found, err := store.FindByHash(ctx, "ws1", "deadbeef")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, first.ID, found.ID)

	missing, err := store.FindByHash(ctx, "ws2", "deadbeef")
	require.NoError(t, err)
	assert.Nil(t, missing, "hash lookups are scoped to the workspace")
}

func TestMarkIndexedRequiresIndexEntry(t *testing.T) {
	store := NewMemoryCatalog()
	ctx := context.Background()

	rec, err := store.Insert(ctx, &models.FileRecord{WorkspaceID: "ws1", Name: "a.txt"})
	require.NoError(t, err)

	err = store.MarkIndexed(ctx, rec.ID)
	assert.ErrorIs(t, err, core.ErrStorage)

	require.NoError(t, store.UpsertIndexEntry(ctx, rec.ID, []float32{1, 0}, models.IndexFacets{}))
	require.NoError(t, store.MarkIndexed(ctx, rec.ID))

	stored, err := store.GetFile(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, stored.Indexed)
}

func TestQueryAppliesDefaultLimit(t *testing.T) {
	store := NewMemoryCatalog()
	ctx := context.Background()

	for i := 0; i < DefaultQueryLimit+10; i++ {
		_, err := store.Insert(ctx, &models.FileRecord{WorkspaceID: "ws1", Name: fmt.Sprintf("f%03d.txt", i)})
		require.NoError(t, err)
	}

	recs, err := store.Query(ctx, "ws1", models.SearchFilters{}, 0)
	require.NoError(t, err)
	assert.Len(t, recs, DefaultQueryLimit)
}

func TestQueryFilters(t *testing.T) {
	store := NewMemoryCatalog()
	ctx := context.Background()

	pdf := "application/pdf"
	channel := "chan-1"
	_, err := store.Insert(ctx, &models.FileRecord{WorkspaceID: "ws1", Name: "a.pdf", MimeType: &pdf, ChannelID: &channel, Tags: []string{"roadmap"}})
	require.NoError(t, err)
	_, err = store.Insert(ctx, &models.FileRecord{WorkspaceID: "ws1", Name: "b.txt", Tags: []string{"notes"}})
	require.NoError(t, err)

	byTag, err := store.Query(ctx, "ws1", models.SearchFilters{Tags: []string{"roadmap"}}, 0)
	require.NoError(t, err)
	require.Len(t, byTag, 1)
	assert.Equal(t, "a.pdf", byTag[0].Name)

	byMime, err := store.Query(ctx, "ws1", models.SearchFilters{MimeType: &pdf}, 0)
	require.NoError(t, err)
	require.Len(t, byMime, 1)

	byChannel, err := store.Query(ctx, "ws1", models.SearchFilters{ChannelID: &channel}, 0)
	require.NoError(t, err)
	require.Len(t, byChannel, 1)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%`, escapeLike(`100%`))
	assert.Equal(t, `a\_b`, escapeLike(`a_b`))
	assert.Equal(t, `c:\\share`, escapeLike(`c:\share`))
	assert.Equal(t, `plain`, escapeLike(`plain`))
	assert.Equal(t, ``, escapeLike(``))
}

// Wildcard characters in a query are data, not pattern syntax; "%" must not
// match every file.
func TestTextQueryTreatsMetacharactersLiterally(t *testing.T) {
	store := NewMemoryCatalog()
	ctx := context.Background()

	_, err := store.Insert(ctx, &models.FileRecord{WorkspaceID: "ws1", Name: "notes.txt"})
	require.NoError(t, err)
	_, err = store.Insert(ctx, &models.FileRecord{WorkspaceID: "ws1", Name: "discount 50%.pdf"})
	require.NoError(t, err)

	recs, err := store.TextQuery(ctx, "ws1", "%", models.SearchFilters{}, 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "discount 50%.pdf", recs[0].Name)
}

func TestJobStatusTransitions(t *testing.T) {
	store := NewMemoryCatalog()
	ctx := context.Background()

	job, err := store.CreateJob(ctx, &models.FileJob{WorkspaceID: "ws1"})
	require.NoError(t, err)
	assert.Equal(t, models.JobCreated, job.Status)

	// Forward moves, including skipping a stage, are allowed.
	require.NoError(t, store.UpdateJobStatus(ctx, job.ID, models.JobDeduplicated, nil))

	// Backward moves are not.
	err = store.UpdateJobStatus(ctx, job.ID, models.JobHarvested, nil)
	assert.ErrorIs(t, err, core.ErrStorage)

	// Terminal states freeze the job.
	require.NoError(t, store.UpdateJobStatus(ctx, job.ID, models.JobFailed, nil))
	err = store.UpdateJobStatus(ctx, job.ID, models.JobIndexed, nil)
	assert.ErrorIs(t, err, core.ErrStorage)

	stored, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, stored.Status)
}

func TestUpdateJobStatusStats(t *testing.T) {
	store := NewMemoryCatalog()
	ctx := context.Background()

	job, err := store.CreateJob(ctx, &models.FileJob{WorkspaceID: "ws1"})
	require.NoError(t, err)

	require.NoError(t, store.UpdateJobStatus(ctx, job.ID, models.JobIndexed, map[string]int{"tagged": 3, "indexed": 2}))

	stored, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"tagged": 3, "indexed": 2}, stored.Stats)
}
