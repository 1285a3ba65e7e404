package models

import (
	"time"
)

// FileRecord is the catalog entry for one uploaded or synced file occurrence.
// Duplicates are first-class records: identical bytes in the same workspace
// produce a second row with IsDuplicate set, never a merge or a rejection.
type FileRecord struct {
	ID          string  `db:"id" json:"id"`
	WorkspaceID string  `db:"workspace_id" json:"workspace_id"`
	ChannelID   *string `db:"channel_id" json:"channel_id,omitempty"`
	SourceID    *string `db:"source_id" json:"source_id,omitempty"`     // nil means direct upload
	ExternalID  *string `db:"external_id" json:"external_id,omitempty"` // provider-side id, unique within a source

	Name      string  `db:"name" json:"name"`
	MimeType  *string `db:"mime_type" json:"mime_type,omitempty"`
	SizeBytes *int64  `db:"size_bytes" json:"size_bytes,omitempty"`
	URL       *string `db:"url" json:"url,omitempty"` // blob store pointer

	// ContentHash is nil only for pointer-only sync records, where no bytes
	// were ever supplied.
	ContentHash *string `db:"content_hash" json:"content_hash,omitempty"`

	Tags             []string `db:"tags" json:"tags"`
	ExtractedContent *string  `db:"extracted_content" json:"extracted_content,omitempty"`
	ExtractionMethod *string  `db:"extraction_method" json:"extraction_method,omitempty"`

	IsDuplicate bool `db:"is_duplicate" json:"is_duplicate"`
	Indexed     bool `db:"indexed" json:"indexed"`

	UploadedBy *string   `db:"uploaded_by" json:"uploaded_by,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`

	// Search-result decoration; never persisted.
	Similarity     *float64 `db:"-" json:"similarity,omitempty"`
	ContentPreview *string  `db:"-" json:"content_preview,omitempty"`
	MatchReason    *string  `db:"-" json:"match_reason,omitempty"`
}

// FileDraft carries the caller-supplied fields of a new file. Identity,
// hash, dedup flag and extraction fields are filled in by the orchestrator
// and the store.
type FileDraft struct {
	WorkspaceID string
	ChannelID   *string
	SourceID    *string
	ExternalID  *string
	Name        string
	MimeType    *string
	SizeBytes   *int64
	URL         *string
	UploadedBy  *string
}

// JobStatus is the forward-only lifecycle of a bulk sync job.
type JobStatus string

const (
	JobCreated      JobStatus = "created"
	JobHarvested    JobStatus = "harvested"
	JobDeduplicated JobStatus = "deduplicated"
	JobIndexed      JobStatus = "indexed"
	JobFailed       JobStatus = "failed"
)

var jobStatusRank = map[JobStatus]int{
	JobCreated:      0,
	JobHarvested:    1,
	JobDeduplicated: 2,
	JobIndexed:      3,
	JobFailed:       3,
}

// CanAdvance reports whether a job may move from one status to another.
// Skipping stages forward is allowed; moving backward is not. Terminal
// states (indexed, failed) never change.
func (s JobStatus) CanAdvance(to JobStatus) bool {
	from, ok := jobStatusRank[s]
	if !ok {
		return false
	}
	dst, ok := jobStatusRank[to]
	if !ok {
		return false
	}
	if s == JobIndexed || s == JobFailed {
		return false
	}
	return dst > from
}

// FileJob is one unit of bulk-sync work.
type FileJob struct {
	ID          string         `db:"id" json:"id"`
	WorkspaceID string         `db:"workspace_id" json:"workspace_id"`
	Status      JobStatus      `db:"status" json:"status"`
	Stats       map[string]int `db:"stats" json:"stats,omitempty"`
	CreatedBy   *string        `db:"created_by" json:"created_by,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// IndexFacets is the small metadata blob stored next to a vector so the
// index can answer combined filter+similarity queries without a second
// lookup. The files table stays the source of truth.
type IndexFacets struct {
	Tags             []string `json:"tags"`
	MimeType         *string  `json:"mime_type,omitempty"`
	ExtractionMethod *string  `json:"extraction_method,omitempty"`
}

// SearchFilters are conjunctive: tag overlap, exact mime type, exact channel.
type SearchFilters struct {
	Tags      []string
	MimeType  *string
	ChannelID *string
}

// TagContext is what a tagging capability gets to look at.
type TagContext struct {
	Name           string
	MimeType       *string
	ContentSnippet string
}

// TagResult is the outcome of a tagging call. The local tagger fills only
// Tags; the model-backed tagger also reports category, confidence and a
// one-line summary.
type TagResult struct {
	Tags       []string `json:"tags"`
	Category   string   `json:"category,omitempty"`
	Confidence float64  `json:"confidence,omitempty"`
	Summary    string   `json:"summary,omitempty"`
}

// BulkResult counts confirmed successes of a bulk tag-and-index pass.
type BulkResult struct {
	Tagged  int `json:"tagged"`
	Indexed int `json:"indexed"`
}
