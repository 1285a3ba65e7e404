// Package services ties the pipeline together: hashing, dedup
// classification, extraction, tagging, indexing and bulk processing, all
// behind one façade the transport layer calls.
package services

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/hivecmu/filehub/internal/core"
	"github.com/hivecmu/filehub/internal/core/extraction"
	"github.com/hivecmu/filehub/internal/core/fingerprint"
	"github.com/hivecmu/filehub/internal/core/indexing"
	"github.com/hivecmu/filehub/internal/models"
)

// DefaultBulkWorkers bounds concurrency inside BulkTagAndIndex. Items are
// per-file independent, so a small pool is safe; the store is the only
// shared resource and supports concurrent writes.
const DefaultBulkWorkers = 4

// tagSnippetChars is how much extracted content the tagger gets to see.
const tagSnippetChars = 500

// Orchestrator is the ingestion façade. All collaborators are injected;
// there are no package-level singletons.
type Orchestrator struct {
	store       core.CatalogStore
	extractor   *extraction.Extractor
	tagger      core.Tagger
	indexer     *indexing.Indexer
	log         *slog.Logger
	bulkWorkers int
}

func NewOrchestrator(store core.CatalogStore, extractor *extraction.Extractor, tagger core.Tagger, indexer *indexing.Indexer, bulkWorkers int, log *slog.Logger) *Orchestrator {
	if bulkWorkers <= 0 {
		bulkWorkers = DefaultBulkWorkers
	}
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		store:       store,
		extractor:   extractor,
		tagger:      tagger,
		indexer:     indexer,
		log:         log,
		bulkWorkers: bulkWorkers,
	}
}

// AddFile catalogs a new file. When bytes are present it hashes them,
// classifies the record as a duplicate if the workspace already holds the
// same content (insertion proceeds regardless), and attempts extraction.
// Extraction failure is absorbed: the record is inserted with no content.
func (o *Orchestrator) AddFile(ctx context.Context, draft models.FileDraft, data []byte) (*models.FileRecord, error) {
	rec := &models.FileRecord{
		WorkspaceID: draft.WorkspaceID,
		ChannelID:   draft.ChannelID,
		SourceID:    draft.SourceID,
		ExternalID:  draft.ExternalID,
		Name:        draft.Name,
		MimeType:    draft.MimeType,
		SizeBytes:   draft.SizeBytes,
		URL:         draft.URL,
		UploadedBy:  draft.UploadedBy,
		Tags:        []string{},
	}

	if len(data) > 0 {
		hash := fingerprint.Hash(data)
		rec.ContentHash = &hash

		existing, err := o.store.FindByHash(ctx, draft.WorkspaceID, hash)
		if err != nil {
			return nil, err
		}
		rec.IsDuplicate = existing != nil

		mimeType := ""
		if draft.MimeType != nil {
			mimeType = *draft.MimeType
		}
		if res, err := o.extractor.Extract(ctx, data, mimeType, draft.Name); err != nil {
			o.log.Debug("content extraction skipped", "file", draft.Name, "error", err)
		} else {
			rec.ExtractedContent = &res.Text
			rec.ExtractionMethod = &res.Method
		}
	}

	return o.store.Insert(ctx, rec)
}

// TagFile runs the tagging capability over one file and persists the
// result. Tagging failures pass through unchanged for the caller to decide;
// the file keeps its empty tag set.
func (o *Orchestrator) TagFile(ctx context.Context, fileID string) (*models.FileRecord, error) {
	rec, err := o.store.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, core.WrapErr(core.ErrNotFound, nil, "file "+fileID)
	}

	tc := models.TagContext{Name: rec.Name, MimeType: rec.MimeType}
	if rec.ExtractedContent != nil {
		runes := []rune(*rec.ExtractedContent)
		if len(runes) > tagSnippetChars {
			runes = runes[:tagSnippetChars]
		}
		tc.ContentSnippet = string(runes)
	}

	res, err := o.tagger.Tag(ctx, tc)
	if err != nil {
		return nil, err
	}
	return o.store.UpdateTags(ctx, fileID, res.Tags)
}

// IndexFile delegates to the embedding indexer.
func (o *Orchestrator) IndexFile(ctx context.Context, fileID string) (*models.FileRecord, error) {
	return o.indexer.IndexFile(ctx, fileID)
}

// BulkTagAndIndex tags every untagged file, then indexes every unindexed
// file, using a bounded worker pool. Per-item failures are swallowed so one
// bad file cannot abort the batch. Only confirmed successes count, and a
// tagging pass that produced no tags is not a success: some files carry no
// taggable signal at all, and counting them would make every repeat run over
// an unchanged workspace report nonzero work. Listing failures propagate.
func (o *Orchestrator) BulkTagAndIndex(ctx context.Context, workspaceID string) (models.BulkResult, error) {
	var result models.BulkResult

	untagged, err := o.store.ListUntagged(ctx, workspaceID)
	if err != nil {
		return result, err
	}
	var tagged atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.bulkWorkers)
	for _, rec := range untagged {
		fileID := rec.ID
		g.Go(func() error {
			res, err := o.TagFile(gctx, fileID)
			if err != nil {
				o.log.Debug("bulk tag item failed", "file_id", fileID, "error", err)
				return nil
			}
			if len(res.Tags) > 0 {
				tagged.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	unindexed, err := o.store.ListUnindexed(ctx, workspaceID)
	if err != nil {
		return result, err
	}
	var indexed atomic.Int64
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(o.bulkWorkers)
	for _, rec := range unindexed {
		fileID := rec.ID
		g.Go(func() error {
			if _, err := o.IndexFile(gctx, fileID); err != nil {
				o.log.Debug("bulk index item failed", "file_id", fileID, "error", err)
				return nil
			}
			indexed.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	result.Tagged = int(tagged.Load())
	result.Indexed = int(indexed.Load())
	return result, nil
}

// CreateJob opens a sync job in its initial state.
func (o *Orchestrator) CreateJob(ctx context.Context, workspaceID string, createdBy *string) (*models.FileJob, error) {
	return o.store.CreateJob(ctx, &models.FileJob{
		WorkspaceID: workspaceID,
		Status:      models.JobCreated,
		CreatedBy:   createdBy,
	})
}

// GetJob returns a job or NotFound.
func (o *Orchestrator) GetJob(ctx context.Context, jobID string) (*models.FileJob, error) {
	job, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, core.WrapErr(core.ErrNotFound, nil, "job "+jobID)
	}
	return job, nil
}

// RunSyncJob creates a job, runs a bulk tag-and-index pass over the
// workspace and drives the job to its terminal state. Dedup classification
// already happened at insert time, so the job jumps to deduplicated before
// the enrichment pass.
func (o *Orchestrator) RunSyncJob(ctx context.Context, workspaceID string, createdBy *string) (*models.FileJob, error) {
	job, err := o.CreateJob(ctx, workspaceID, createdBy)
	if err != nil {
		return nil, err
	}
	if err := o.store.UpdateJobStatus(ctx, job.ID, models.JobDeduplicated, nil); err != nil {
		return nil, err
	}

	res, err := o.BulkTagAndIndex(ctx, workspaceID)
	if err != nil {
		if ferr := o.store.UpdateJobStatus(ctx, job.ID, models.JobFailed, nil); ferr != nil {
			o.log.Error("failed to mark job failed", "job_id", job.ID, "error", ferr)
		}
		return nil, err
	}

	stats := map[string]int{"tagged": res.Tagged, "indexed": res.Indexed}
	if err := o.store.UpdateJobStatus(ctx, job.ID, models.JobIndexed, stats); err != nil {
		return nil, err
	}
	return o.GetJob(ctx, job.ID)
}

// IsNotFound reports whether err is the pipeline's NotFound kind.
func IsNotFound(err error) bool {
	return errors.Is(err, core.ErrNotFound)
}
