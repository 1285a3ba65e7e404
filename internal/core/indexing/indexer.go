// Package indexing builds the vector-index projection of the catalog: one
// embedding per file, derived from its name, tags and extracted content.
package indexing

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hivecmu/filehub/internal/core"
	"github.com/hivecmu/filehub/internal/models"
)

// ContentCap bounds how much extracted content feeds the embedding input.
const ContentCap = 2000

// Indexer embeds a file's composed text and upserts it into the vector
// index, then flips the record's indexed flag.
type Indexer struct {
	store    core.CatalogStore
	embedder core.EmbeddingProvider
	log      *slog.Logger
}

func NewIndexer(store core.CatalogStore, embedder core.EmbeddingProvider, log *slog.Logger) *Indexer {
	if log == nil {
		log = slog.Default()
	}
	return &Indexer{store: store, embedder: embedder, log: log}
}

// ComposeText builds the embedding input: name, then space-joined tags, then
// extracted content capped at ContentCap characters. The name leads so the
// vector carries signal even when extraction failed and tags are empty.
func ComposeText(rec *models.FileRecord) string {
	var b strings.Builder
	b.WriteString(rec.Name)
	if len(rec.Tags) > 0 {
		b.WriteByte(' ')
		b.WriteString(strings.Join(rec.Tags, " "))
	}
	if rec.ExtractedContent != nil && *rec.ExtractedContent != "" {
		b.WriteByte(' ')
		content := []rune(*rec.ExtractedContent)
		if len(content) > ContentCap {
			content = content[:ContentCap]
		}
		b.WriteString(string(content))
	}
	return b.String()
}

// IndexFile loads the record, embeds its composed text and persists the
// index entry. MarkIndexed runs strictly after a successful upsert; the two
// writes are not atomic, but the indexed flag is never observable without a
// vector behind it. Embedding or dimension failures leave the record
// unindexed and otherwise untouched.
func (ix *Indexer) IndexFile(ctx context.Context, fileID string) (*models.FileRecord, error) {
	rec, err := ix.store.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, core.WrapErr(core.ErrNotFound, nil, "file "+fileID)
	}

	vecs, err := ix.embedder.EmbedTexts(ctx, []string{ComposeText(rec)})
	if err != nil {
		return nil, core.WrapErr(core.ErrIndexingFailed, err, "embed file "+fileID)
	}
	if len(vecs) != 1 {
		return nil, core.WrapErr(core.ErrIndexingFailed, nil, "embedder returned no vector")
	}
	if dim := ix.embedder.Dimension(); dim > 0 && len(vecs[0]) != dim {
		ix.log.Warn("embedding dimension mismatch", "file_id", fileID, "got", len(vecs[0]), "want", dim)
		return nil, core.WrapErr(core.ErrIndexingFailed, nil, "embedding dimension mismatch")
	}

	facets := models.IndexFacets{
		Tags:             rec.Tags,
		MimeType:         rec.MimeType,
		ExtractionMethod: rec.ExtractionMethod,
	}
	if err := ix.store.UpsertIndexEntry(ctx, fileID, vecs[0], facets); err != nil {
		return nil, core.WrapErr(core.ErrIndexingFailed, err, "upsert index entry")
	}
	if err := ix.store.MarkIndexed(ctx, fileID); err != nil {
		return nil, core.WrapErr(core.ErrIndexingFailed, err, "mark indexed")
	}

	rec.Indexed = true
	return rec, nil
}
