package search

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivecmu/filehub/internal/core"
	db "github.com/hivecmu/filehub/internal/core/database"
	"github.com/hivecmu/filehub/internal/models"
)

// stubEmbedder maps every input to the same unit vector, so any stored
// entry equal to it scores cosine similarity 1.
type stubEmbedder struct {
	dim  int
	fail bool
}

func (s *stubEmbedder) Dimension() int { return s.dim }

func (s *stubEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	if s.fail {
		return nil, errors.New("embedding provider unavailable")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = unitVector(s.dim)
	}
	return out, nil
}

func unitVector(dim int) []float32 {
	v := make([]float32, dim)
	v[0] = 1
	return v
}

func oppositeVector(dim int) []float32 {
	v := make([]float32, dim)
	v[0] = -1
	return v
}

func seedFile(t *testing.T, store *db.MemoryCatalog, rec models.FileRecord) *models.FileRecord {
	t.Helper()
	out, err := store.Insert(context.Background(), &rec)
	require.NoError(t, err)
	return out
}

func seedIndexed(t *testing.T, store *db.MemoryCatalog, rec models.FileRecord, vec []float32) *models.FileRecord {
	t.Helper()
	out := seedFile(t, store, rec)
	require.NoError(t, store.UpsertIndexEntry(context.Background(), out.ID, vec, models.IndexFacets{Tags: out.Tags}))
	require.NoError(t, store.MarkIndexed(context.Background(), out.ID))
	return out
}

func TestSearchEmptyQueryIsFilterOnly(t *testing.T) {
	store := db.NewMemoryCatalog()
	seedFile(t, store, models.FileRecord{WorkspaceID: "ws1", Name: "notes.txt", Tags: []string{"docs"}})
	seedFile(t, store, models.FileRecord{WorkspaceID: "ws2", Name: "other.txt"})

	eng := NewEngine(store, &stubEmbedder{dim: 4}, nil)
	recs, err := eng.Search(context.Background(), "ws1", "", models.SearchFilters{}, 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "notes.txt", recs[0].Name)
	assert.Nil(t, recs[0].MatchReason, "filter-only listing carries no match reason")
}

func TestSearchFallsBackToTextMatchWhenEmbeddingFails(t *testing.T) {
	store := db.NewMemoryCatalog()
	seedFile(t, store, models.FileRecord{WorkspaceID: "ws1", Name: "notes.txt"})
	seedFile(t, store, models.FileRecord{WorkspaceID: "ws1", Name: "budget.xlsx"})

	eng := NewEngine(store, &stubEmbedder{dim: 4, fail: true}, nil)
	recs, err := eng.Search(context.Background(), "ws1", "notes", models.SearchFilters{}, 0)
	require.NoError(t, err, "degraded semantic tier must not surface an error")
	require.Len(t, recs, 1)
	assert.Equal(t, "notes.txt", recs[0].Name)
	require.NotNil(t, recs[0].MatchReason)
	assert.Contains(t, *recs[0].MatchReason, "Filename matches")
}

func TestSearchFilenameReasonBeatsSemantic(t *testing.T) {
	store := db.NewMemoryCatalog()
	seedIndexed(t, store, models.FileRecord{
		WorkspaceID: "ws1",
		Name:        "bug-fix-auth-flow.mp4",
		Tags:        []string{"engineering"},
	}, unitVector(4))

	eng := NewEngine(store, &stubEmbedder{dim: 4}, nil)
	recs, err := eng.Search(context.Background(), "ws1", "auth", models.SearchFilters{}, 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.NotNil(t, recs[0].MatchReason)
	assert.Contains(t, *recs[0].MatchReason, "Filename matches")
	require.NotNil(t, recs[0].Similarity)
	assert.InDelta(t, 1.0, *recs[0].Similarity, 1e-9)
}

func TestSearchTagReason(t *testing.T) {
	store := db.NewMemoryCatalog()
	seedFile(t, store, models.FileRecord{
		WorkspaceID: "ws1",
		Name:        "zzz.bin",
		Tags:        []string{"engineering", "design"},
	})

	eng := NewEngine(store, &stubEmbedder{dim: 4, fail: true}, nil)
	recs, err := eng.Search(context.Background(), "ws1", "engineering", models.SearchFilters{}, 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.NotNil(t, recs[0].MatchReason)
	assert.Equal(t, "Tags: engineering", *recs[0].MatchReason)
}

func TestSearchContentReasonListsMatchedWords(t *testing.T) {
	store := db.NewMemoryCatalog()
	content := "Our goals this quarter are ambitious"
	seedIndexed(t, store, models.FileRecord{
		WorkspaceID:      "ws1",
		Name:             "zzz.bin",
		ExtractedContent: &content,
	}, unitVector(4))

	eng := NewEngine(store, &stubEmbedder{dim: 4}, nil)
	recs, err := eng.Search(context.Background(), "ws1", "quarter goals", models.SearchFilters{}, 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.NotNil(t, recs[0].MatchReason)
	assert.Equal(t, `Content contains: "quarter, goals"`, *recs[0].MatchReason)
	require.NotNil(t, recs[0].ContentPreview)
	assert.Equal(t, content, *recs[0].ContentPreview)
}

func TestSearchSemanticOnlyReason(t *testing.T) {
	store := db.NewMemoryCatalog()
	seedIndexed(t, store, models.FileRecord{WorkspaceID: "ws1", Name: "zzz.bin"}, unitVector(4))

	eng := NewEngine(store, &stubEmbedder{dim: 4}, nil)
	recs, err := eng.Search(context.Background(), "ws1", "unrelated words", models.SearchFilters{}, 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.NotNil(t, recs[0].MatchReason)
	assert.Equal(t, "Semantically similar content", *recs[0].MatchReason)
}

func TestSearchSimilarityClampedToZero(t *testing.T) {
	store := db.NewMemoryCatalog()
	seedIndexed(t, store, models.FileRecord{WorkspaceID: "ws1", Name: "zzz.bin"}, oppositeVector(4))

	eng := NewEngine(store, &stubEmbedder{dim: 4}, nil)
	recs, err := eng.Search(context.Background(), "ws1", "unrelated words", models.SearchFilters{}, 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.NotNil(t, recs[0].Similarity)
	assert.Equal(t, 0.0, *recs[0].Similarity)
	require.NotNil(t, recs[0].MatchReason)
	assert.Equal(t, "Partial match", *recs[0].MatchReason)
}

func TestSearchPreviewTruncated(t *testing.T) {
	store := db.NewMemoryCatalog()
	content := strings.Repeat("x", PreviewChars+40)
	seedFile(t, store, models.FileRecord{
		WorkspaceID:      "ws1",
		Name:             "notes.txt",
		ExtractedContent: &content,
	})

	eng := NewEngine(store, &stubEmbedder{dim: 4, fail: true}, nil)
	recs, err := eng.Search(context.Background(), "ws1", "notes", models.SearchFilters{}, 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.NotNil(t, recs[0].ContentPreview)
	assert.Equal(t, strings.Repeat("x", PreviewChars)+"...", *recs[0].ContentPreview)
}

type failingTextStore struct {
	*db.MemoryCatalog
}

func (f *failingTextStore) TextQuery(context.Context, string, string, models.SearchFilters, int) ([]models.FileRecord, error) {
	return nil, core.WrapErr(core.ErrStorage, nil, "text query down")
}

func TestSearchFinalTierErrorPropagates(t *testing.T) {
	store := &failingTextStore{db.NewMemoryCatalog()}
	eng := NewEngine(store, &stubEmbedder{dim: 4, fail: true}, nil)

	_, err := eng.Search(context.Background(), "ws1", "notes", models.SearchFilters{}, 0)
	assert.ErrorIs(t, err, core.ErrStorage)
}
