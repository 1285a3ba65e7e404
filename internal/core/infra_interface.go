package core

import (
	"context"

	"github.com/hivecmu/filehub/internal/models"
)

// CatalogStore is the system of record for files, the vector index and sync
// jobs. It abstracts Postgres/pgvector so higher layers never depend on a
// specific DB; an in-memory driver backs tests and local development.
//
// Lookup methods return (nil, nil) when the row does not exist; callers that
// need a NotFound error wrap it themselves. Every other failure is wrapped
// with ErrStorage.
type CatalogStore interface {
	// FindByHash classifies duplicates within one workspace. It never
	// blocks an insert; the same bytes in two workspaces are independent.
	FindByHash(ctx context.Context, workspaceID, hash string) (*models.FileRecord, error)

	Insert(ctx context.Context, draft *models.FileRecord) (*models.FileRecord, error)
	GetFile(ctx context.Context, fileID string) (*models.FileRecord, error)
	UpdateTags(ctx context.Context, fileID string, tags []string) (*models.FileRecord, error)
	UpdateExtraction(ctx context.Context, fileID, text, method string) error

	// MarkIndexed must only ever be called after a successful
	// UpsertIndexEntry for the same file.
	MarkIndexed(ctx context.Context, fileID string) error
	UpsertIndexEntry(ctx context.Context, fileID string, embedding []float32, facets models.IndexFacets) error

	// Query lists files matching the conjunctive filters, newest first.
	Query(ctx context.Context, workspaceID string, filters models.SearchFilters, limit int) ([]models.FileRecord, error)

	// TextQuery adds a substring match on name plus a tag-membership match
	// to Query's filters.
	TextQuery(ctx context.Context, workspaceID, query string, filters models.SearchFilters, limit int) ([]models.FileRecord, error)

	// SemanticQuery ranks indexed files by cosine similarity to the query
	// vector, most similar first. Similarity on each record is clamped to
	// [0,1].
	SemanticQuery(ctx context.Context, workspaceID string, queryVec []float32, filters models.SearchFilters, limit int) ([]models.FileRecord, error)

	ListUntagged(ctx context.Context, workspaceID string) ([]models.FileRecord, error)
	ListUnindexed(ctx context.Context, workspaceID string) ([]models.FileRecord, error)

	CreateJob(ctx context.Context, job *models.FileJob) (*models.FileJob, error)
	GetJob(ctx context.Context, jobID string) (*models.FileJob, error)
	// UpdateJobStatus enforces the forward-only job state machine.
	UpdateJobStatus(ctx context.Context, jobID string, status models.JobStatus, stats map[string]int) error

	Close() error
}

// EmbeddingProvider turns texts into fixed-dimension vectors. Dimension
// reports the configured output size; implementations return vectors of
// exactly that length or an error.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Tagger derives normalized topical tags for a file. The local
// implementation is deterministic and network-free; the model-backed one may
// fail, and failures are wrapped with ErrTaggingFailed.
type Tagger interface {
	Tag(ctx context.Context, tc models.TagContext) (*models.TagResult, error)
}

// ObjectClient is the blob store this pipeline consumes: bytes in, URL out.
// Abstract so AWS can be swapped for MinIO, GCS, etc.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (url string, err error)
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)
	DeleteFile(ctx context.Context, bucket, key string) error
}
