package db

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hivecmu/filehub/internal/core"
	"github.com/hivecmu/filehub/internal/models"
)

// MemoryCatalog is the in-memory CatalogStore driver. It backs unit tests
// and STORE_DRIVER=memory development runs; semantics mirror the Postgres
// driver, including clamped cosine similarity and the forward-only job
// state machine.
type MemoryCatalog struct {
	mu      sync.RWMutex
	files   map[string]*models.FileRecord
	index   map[string]*memoryIndexEntry
	jobs    map[string]*models.FileJob
	nextSeq int64
	seq     map[string]int64 // insertion order, tie-break for equal timestamps
}

type memoryIndexEntry struct {
	embedding []float32
	facets    models.IndexFacets
	indexedAt time.Time
}

var _ core.CatalogStore = (*MemoryCatalog)(nil)

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		files: map[string]*models.FileRecord{},
		index: map[string]*memoryIndexEntry{},
		jobs:  map[string]*models.FileJob{},
		seq:   map[string]int64{},
	}
}

func (m *MemoryCatalog) Close() error { return nil }

func (m *MemoryCatalog) FindByHash(_ context.Context, workspaceID, hash string) (*models.FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *models.FileRecord
	for _, rec := range m.files {
		if rec.WorkspaceID != workspaceID || rec.ContentHash == nil || *rec.ContentHash != hash {
			continue
		}
		if best == nil || m.seq[rec.ID] < m.seq[best.ID] {
			best = rec
		}
	}
	if best == nil {
		return nil, nil
	}
	return copyRecord(best), nil
}

func (m *MemoryCatalog) Insert(_ context.Context, draft *models.FileRecord) (*models.FileRecord, error) {
	if draft == nil {
		return nil, core.WrapErr(core.ErrStorage, nil, "nil file record")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := copyRecord(draft)
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if _, exists := m.files[rec.ID]; exists {
		return nil, core.WrapErr(core.ErrStorage, nil, "duplicate file id "+rec.ID)
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
	m.files[rec.ID] = rec
	m.nextSeq++
	m.seq[rec.ID] = m.nextSeq
	return copyRecord(rec), nil
}

func (m *MemoryCatalog) GetFile(_ context.Context, fileID string) (*models.FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.files[fileID]
	if !ok {
		return nil, nil
	}
	return copyRecord(rec), nil
}

func (m *MemoryCatalog) UpdateTags(_ context.Context, fileID string, tags []string) (*models.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.files[fileID]
	if !ok {
		return nil, core.WrapErr(core.ErrNotFound, nil, "file "+fileID)
	}
	if tags == nil {
		tags = []string{}
	}
	rec.Tags = append([]string(nil), tags...)
	rec.UpdatedAt = time.Now().UTC()
	return copyRecord(rec), nil
}

func (m *MemoryCatalog) UpdateExtraction(_ context.Context, fileID, text, method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.files[fileID]
	if !ok {
		return core.WrapErr(core.ErrNotFound, nil, "file "+fileID)
	}
	rec.ExtractedContent = &text
	rec.ExtractionMethod = &method
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryCatalog) MarkIndexed(_ context.Context, fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.files[fileID]
	if !ok {
		return core.WrapErr(core.ErrNotFound, nil, "file "+fileID)
	}
	if _, hasVector := m.index[fileID]; !hasVector {
		// Flipping indexed with no vector behind it is a bug in the
		// caller, not a race to tolerate.
		return core.WrapErr(core.ErrStorage, nil, "mark indexed without index entry for "+fileID)
	}
	rec.Indexed = true
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryCatalog) UpsertIndexEntry(_ context.Context, fileID string, embedding []float32, facets models.IndexFacets) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[fileID]; !ok {
		return core.WrapErr(core.ErrNotFound, nil, "file "+fileID)
	}
	m.index[fileID] = &memoryIndexEntry{
		embedding: append([]float32(nil), embedding...),
		facets:    facets,
		indexedAt: time.Now().UTC(),
	}
	return nil
}

// IndexEntry exposes the stored vector for a file, or nil. Test hook; the
// Postgres driver has no equivalent because the SQL layer is inspectable.
func (m *MemoryCatalog) IndexEntry(fileID string) []float32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.index[fileID]
	if !ok {
		return nil
	}
	return append([]float32(nil), entry.embedding...)
}

func (m *MemoryCatalog) Query(_ context.Context, workspaceID string, filters models.SearchFilters, limit int) ([]models.FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.collect(workspaceID, filters, "")
	m.sortNewestFirst(out)
	return truncate(out, limit), nil
}

func (m *MemoryCatalog) TextQuery(_ context.Context, workspaceID, query string, filters models.SearchFilters, limit int) ([]models.FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.collect(workspaceID, filters, strings.ToLower(query))
	m.sortNewestFirst(out)
	return truncate(out, limit), nil
}

func (m *MemoryCatalog) SemanticQuery(_ context.Context, workspaceID string, queryVec []float32, filters models.SearchFilters, limit int) ([]models.FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	type scored struct {
		rec        models.FileRecord
		similarity float64
	}
	var hits []scored
	for _, rec := range m.files {
		if rec.WorkspaceID != workspaceID || !matchesFilters(rec, filters) {
			continue
		}
		entry, ok := m.index[rec.ID]
		if !ok {
			continue
		}
		sim := cosineSimilarity(queryVec, entry.embedding)
		if sim < 0 {
			sim = 0
		} else if sim > 1 {
			sim = 1
		}
		cp := copyRecord(rec)
		hits = append(hits, scored{rec: *cp, similarity: sim})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].similarity > hits[j].similarity })

	out := make([]models.FileRecord, 0, len(hits))
	for i := range hits {
		sim := hits[i].similarity
		hits[i].rec.Similarity = &sim
		out = append(out, hits[i].rec)
	}
	return truncate(out, limit), nil
}

func (m *MemoryCatalog) ListUntagged(_ context.Context, workspaceID string) ([]models.FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.FileRecord
	for _, rec := range m.files {
		if rec.WorkspaceID == workspaceID && len(rec.Tags) == 0 {
			out = append(out, *copyRecord(rec))
		}
	}
	m.sortOldestFirst(out)
	return out, nil
}

func (m *MemoryCatalog) ListUnindexed(_ context.Context, workspaceID string) ([]models.FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.FileRecord
	for _, rec := range m.files {
		if rec.WorkspaceID == workspaceID && !rec.Indexed {
			out = append(out, *copyRecord(rec))
		}
	}
	m.sortOldestFirst(out)
	return out, nil
}

func (m *MemoryCatalog) CreateJob(_ context.Context, job *models.FileJob) (*models.FileJob, error) {
	if job == nil {
		return nil, core.WrapErr(core.ErrStorage, nil, "nil job")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	j := *job
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.Status == "" {
		j.Status = models.JobCreated
	}
	now := time.Now().UTC()
	j.CreatedAt = now
	j.UpdatedAt = now
	m.jobs[j.ID] = copyJob(&j)
	return copyJob(&j), nil
}

func (m *MemoryCatalog) GetJob(_ context.Context, jobID string) (*models.FileJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return nil, nil
	}
	return copyJob(j), nil
}

func (m *MemoryCatalog) UpdateJobStatus(_ context.Context, jobID string, status models.JobStatus, stats map[string]int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok {
		return core.WrapErr(core.ErrNotFound, nil, "job "+jobID)
	}
	if !j.Status.CanAdvance(status) {
		return core.WrapErr(core.ErrStorage, nil,
			fmt.Sprintf("job %s cannot move %s -> %s", jobID, j.Status, status))
	}
	j.Status = status
	if stats != nil {
		j.Stats = copyStats(stats)
	}
	j.UpdatedAt = time.Now().UTC()
	return nil
}

// collect returns matching records; textQuery empty means filters only.
func (m *MemoryCatalog) collect(workspaceID string, filters models.SearchFilters, textQuery string) []models.FileRecord {
	var out []models.FileRecord
	for _, rec := range m.files {
		if rec.WorkspaceID != workspaceID || !matchesFilters(rec, filters) {
			continue
		}
		if textQuery != "" && !matchesText(rec, textQuery) {
			continue
		}
		out = append(out, *copyRecord(rec))
	}
	return out
}

func matchesText(rec *models.FileRecord, lowerQuery string) bool {
	if strings.Contains(strings.ToLower(rec.Name), lowerQuery) {
		return true
	}
	for _, tag := range rec.Tags {
		if strings.Contains(strings.ToLower(tag), lowerQuery) {
			return true
		}
	}
	return false
}

func matchesFilters(rec *models.FileRecord, f models.SearchFilters) bool {
	if len(f.Tags) > 0 {
		overlap := false
		for _, want := range f.Tags {
			for _, have := range rec.Tags {
				if want == have {
					overlap = true
					break
				}
			}
			if overlap {
				break
			}
		}
		if !overlap {
			return false
		}
	}
	if f.MimeType != nil && (rec.MimeType == nil || *rec.MimeType != *f.MimeType) {
		return false
	}
	if f.ChannelID != nil && (rec.ChannelID == nil || *rec.ChannelID != *f.ChannelID) {
		return false
	}
	return true
}

func (m *MemoryCatalog) sortNewestFirst(recs []models.FileRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.After(recs[j].CreatedAt)
		}
		return m.seq[recs[i].ID] > m.seq[recs[j].ID]
	})
}

func (m *MemoryCatalog) sortOldestFirst(recs []models.FileRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.Before(recs[j].CreatedAt)
		}
		return m.seq[recs[i].ID] < m.seq[recs[j].ID]
	})
}

func truncate(recs []models.FileRecord, limit int) []models.FileRecord {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	if len(recs) > limit {
		return recs[:limit]
	}
	return recs
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func copyRecord(rec *models.FileRecord) *models.FileRecord {
	cp := *rec
	cp.Tags = append([]string(nil), rec.Tags...)
	if cp.Tags == nil {
		cp.Tags = []string{}
	}
	return &cp
}

func copyJob(j *models.FileJob) *models.FileJob {
	cp := *j
	cp.Stats = copyStats(j.Stats)
	return &cp
}

func copyStats(stats map[string]int) map[string]int {
	if stats == nil {
		return nil
	}
	cp := make(map[string]int, len(stats))
	for k, v := range stats {
		cp[k] = v
	}
	return cp
}
