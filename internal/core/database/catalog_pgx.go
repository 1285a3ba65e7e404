package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/hivecmu/filehub/internal/config"
	"github.com/hivecmu/filehub/internal/core"
	"github.com/hivecmu/filehub/internal/models"
)

// fileColumns is the canonical select list; every scan uses scanFile with
// this exact order.
const fileColumns = `id, workspace_id, channel_id, source_id, external_id, name, mime_type,
	size_bytes, url, content_hash, tags, extracted_content, extraction_method,
	is_duplicate, indexed, uploaded_by, created_at, updated_at`

// DefaultQueryLimit caps result counts when the caller passes none.
const DefaultQueryLimit = 50

// CatalogClient implements core.CatalogStore on Postgres with pgvector.
type CatalogClient struct {
	db *sql.DB
}

var _ core.CatalogStore = (*CatalogClient)(nil)

func NewCatalogClient(ctx context.Context, cfg *config.Config) (*CatalogClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("catalog client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	sqlDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, sqlDB, cfg.EmbedDim); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &CatalogClient{db: sqlDB}, nil
}

func (c *CatalogClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *CatalogClient) FindByHash(ctx context.Context, workspaceID, hash string) (*models.FileRecord, error) {
	q := `SELECT ` + fileColumns + `
		FROM files
		WHERE workspace_id = $1 AND content_hash = $2
		ORDER BY created_at ASC
		LIMIT 1`
	rec, err := scanFile(c.db.QueryRowContext(ctx, q, workspaceID, hash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, core.WrapErr(core.ErrStorage, err, "find by hash")
	}
	return rec, nil
}

func (c *CatalogClient) Insert(ctx context.Context, draft *models.FileRecord) (*models.FileRecord, error) {
	if draft == nil {
		return nil, core.WrapErr(core.ErrStorage, nil, "nil file record")
	}
	rec := *draft
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
	tagsJSON, err := json.Marshal(rec.Tags)
	if err != nil {
		return nil, core.WrapErr(core.ErrStorage, err, "encode tags")
	}

	const q = `
		INSERT INTO files
			(id, workspace_id, channel_id, source_id, external_id, name, mime_type,
			 size_bytes, url, content_hash, tags, extracted_content, extraction_method,
			 is_duplicate, indexed, uploaded_by, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err = c.db.ExecContext(ctx, q,
		rec.ID, rec.WorkspaceID, rec.ChannelID, rec.SourceID, rec.ExternalID, rec.Name, rec.MimeType,
		rec.SizeBytes, rec.URL, rec.ContentHash, tagsJSON, rec.ExtractedContent, rec.ExtractionMethod,
		rec.IsDuplicate, rec.Indexed, rec.UploadedBy, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return nil, core.WrapErr(core.ErrStorage, err, "insert file")
	}
	return &rec, nil
}

func (c *CatalogClient) GetFile(ctx context.Context, fileID string) (*models.FileRecord, error) {
	q := `SELECT ` + fileColumns + ` FROM files WHERE id = $1`
	rec, err := scanFile(c.db.QueryRowContext(ctx, q, fileID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, core.WrapErr(core.ErrStorage, err, "get file")
	}
	return rec, nil
}

func (c *CatalogClient) UpdateTags(ctx context.Context, fileID string, tags []string) (*models.FileRecord, error) {
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, core.WrapErr(core.ErrStorage, err, "encode tags")
	}
	q := `UPDATE files SET tags = $2, updated_at = now() WHERE id = $1 RETURNING ` + fileColumns
	rec, err := scanFile(c.db.QueryRowContext(ctx, q, fileID, tagsJSON))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.WrapErr(core.ErrNotFound, nil, "file "+fileID)
	}
	if err != nil {
		return nil, core.WrapErr(core.ErrStorage, err, "update tags")
	}
	return rec, nil
}

func (c *CatalogClient) UpdateExtraction(ctx context.Context, fileID, text, method string) error {
	const q = `UPDATE files SET extracted_content = $2, extraction_method = $3, updated_at = now() WHERE id = $1`
	res, err := c.db.ExecContext(ctx, q, fileID, text, method)
	if err != nil {
		return core.WrapErr(core.ErrStorage, err, "update extraction")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.WrapErr(core.ErrNotFound, nil, "file "+fileID)
	}
	return nil
}

func (c *CatalogClient) MarkIndexed(ctx context.Context, fileID string) error {
	const q = `UPDATE files SET indexed = true, updated_at = now() WHERE id = $1`
	res, err := c.db.ExecContext(ctx, q, fileID)
	if err != nil {
		return core.WrapErr(core.ErrStorage, err, "mark indexed")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.WrapErr(core.ErrNotFound, nil, "file "+fileID)
	}
	return nil
}

func (c *CatalogClient) UpsertIndexEntry(ctx context.Context, fileID string, embedding []float32, facets models.IndexFacets) error {
	facetsJSON, err := json.Marshal(facets)
	if err != nil {
		return core.WrapErr(core.ErrStorage, err, "encode facets")
	}
	const q = `
		INSERT INTO file_index (file_id, embedding, facets, indexed_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (file_id) DO UPDATE
		SET embedding = EXCLUDED.embedding, facets = EXCLUDED.facets, indexed_at = now()
	`
	if _, err := c.db.ExecContext(ctx, q, fileID, pgvector.NewVector(embedding), facetsJSON); err != nil {
		return core.WrapErr(core.ErrStorage, err, "upsert index entry")
	}
	return nil
}

func (c *CatalogClient) Query(ctx context.Context, workspaceID string, filters models.SearchFilters, limit int) ([]models.FileRecord, error) {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	where := []string{"workspace_id = $1"}
	args := []any{workspaceID}
	where, args = appendFilters(where, args, filters, "")

	args = append(args, limit)
	q := fmt.Sprintf(`SELECT %s FROM files WHERE %s ORDER BY created_at DESC LIMIT $%d`,
		fileColumns, strings.Join(where, " AND "), len(args))

	return c.queryFiles(ctx, q, args...)
}

func (c *CatalogClient) TextQuery(ctx context.Context, workspaceID, query string, filters models.SearchFilters, limit int) ([]models.FileRecord, error) {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	where := []string{"workspace_id = $1"}
	args := []any{workspaceID}

	args = append(args, escapeLike(query))
	where = append(where, fmt.Sprintf(`(name ILIKE '%%' || $%d || '%%'
		OR EXISTS (SELECT 1 FROM jsonb_array_elements_text(tags) AS t(tag) WHERE t.tag ILIKE '%%' || $%d || '%%'))`,
		len(args), len(args)))

	where, args = appendFilters(where, args, filters, "")

	args = append(args, limit)
	q := fmt.Sprintf(`SELECT %s FROM files WHERE %s ORDER BY created_at DESC LIMIT $%d`,
		fileColumns, strings.Join(where, " AND "), len(args))

	return c.queryFiles(ctx, q, args...)
}

func (c *CatalogClient) SemanticQuery(ctx context.Context, workspaceID string, queryVec []float32, filters models.SearchFilters, limit int) ([]models.FileRecord, error) {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	where := []string{"f.workspace_id = $1"}
	args := []any{workspaceID, pgvector.NewVector(queryVec)}
	where, args = appendFilters(where, args, filters, "f.")

	args = append(args, limit)
	cols := prefixColumns("f.")
	q := fmt.Sprintf(`
		SELECT %s, 1 - (fi.embedding <=> $2) AS similarity
		FROM files f
		JOIN file_index fi ON fi.file_id = f.id
		WHERE %s
		ORDER BY fi.embedding <=> $2
		LIMIT $%d`, cols, strings.Join(where, " AND "), len(args))

	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, core.WrapErr(core.ErrStorage, err, "semantic query")
	}
	defer rows.Close()

	var out []models.FileRecord
	for rows.Next() {
		rec, similarity, err := scanFileWithSimilarity(rows)
		if err != nil {
			return nil, core.WrapErr(core.ErrStorage, err, "scan semantic row")
		}
		// Raw cosine arithmetic can drift just outside [0,1].
		if similarity < 0 {
			similarity = 0
		} else if similarity > 1 {
			similarity = 1
		}
		rec.Similarity = &similarity
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (c *CatalogClient) ListUntagged(ctx context.Context, workspaceID string) ([]models.FileRecord, error) {
	q := `SELECT ` + fileColumns + `
		FROM files
		WHERE workspace_id = $1 AND tags = '[]'::jsonb
		ORDER BY created_at ASC`
	return c.queryFiles(ctx, q, workspaceID)
}

func (c *CatalogClient) ListUnindexed(ctx context.Context, workspaceID string) ([]models.FileRecord, error) {
	q := `SELECT ` + fileColumns + `
		FROM files
		WHERE workspace_id = $1 AND indexed = false
		ORDER BY created_at ASC`
	return c.queryFiles(ctx, q, workspaceID)
}

func (c *CatalogClient) CreateJob(ctx context.Context, job *models.FileJob) (*models.FileJob, error) {
	if job == nil {
		return nil, core.WrapErr(core.ErrStorage, nil, "nil job")
	}
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

	statsJSON, err := marshalStats(j.Stats)
	if err != nil {
		return nil, core.WrapErr(core.ErrStorage, err, "encode stats")
	}

	const q = `
		INSERT INTO file_jobs (id, workspace_id, status, stats, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if _, err := c.db.ExecContext(ctx, q, j.ID, j.WorkspaceID, string(j.Status), statsJSON, j.CreatedBy, j.CreatedAt, j.UpdatedAt); err != nil {
		return nil, core.WrapErr(core.ErrStorage, err, "insert job")
	}
	return &j, nil
}

func (c *CatalogClient) GetJob(ctx context.Context, jobID string) (*models.FileJob, error) {
	const q = `SELECT id, workspace_id, status, stats, created_by, created_at, updated_at FROM file_jobs WHERE id = $1`
	var (
		j         models.FileJob
		status    string
		statsJSON []byte
	)
	err := c.db.QueryRowContext(ctx, q, jobID).Scan(
		&j.ID, &j.WorkspaceID, &status, &statsJSON, &j.CreatedBy, &j.CreatedAt, &j.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, core.WrapErr(core.ErrStorage, err, "get job")
	}
	j.Status = models.JobStatus(status)
	if len(statsJSON) > 0 {
		if err := json.Unmarshal(statsJSON, &j.Stats); err != nil {
			return nil, core.WrapErr(core.ErrStorage, err, "decode stats")
		}
	}
	return &j, nil
}

func (c *CatalogClient) UpdateJobStatus(ctx context.Context, jobID string, status models.JobStatus, stats map[string]int) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return core.WrapErr(core.ErrStorage, err, "begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM file_jobs WHERE id = $1 FOR UPDATE`, jobID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return core.WrapErr(core.ErrNotFound, nil, "job "+jobID)
	}
	if err != nil {
		return core.WrapErr(core.ErrStorage, err, "lock job")
	}
	if !models.JobStatus(current).CanAdvance(status) {
		return core.WrapErr(core.ErrStorage, nil,
			fmt.Sprintf("job %s cannot move %s -> %s", jobID, current, status))
	}

	statsJSON, err := marshalStats(stats)
	if err != nil {
		return core.WrapErr(core.ErrStorage, err, "encode stats")
	}
	const q = `UPDATE file_jobs SET status = $2, stats = COALESCE($3::jsonb, stats), updated_at = now() WHERE id = $1`
	if _, err := tx.ExecContext(ctx, q, jobID, string(status), statsJSON); err != nil {
		return core.WrapErr(core.ErrStorage, err, "update job")
	}
	if err := tx.Commit(); err != nil {
		return core.WrapErr(core.ErrStorage, err, "commit job update")
	}
	return nil
}

func (c *CatalogClient) queryFiles(ctx context.Context, q string, args ...any) ([]models.FileRecord, error) {
	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, core.WrapErr(core.ErrStorage, err, "query files")
	}
	defer rows.Close()

	var out []models.FileRecord
	for rows.Next() {
		rec, err := scanFile(rows)
		if err != nil {
			return nil, core.WrapErr(core.ErrStorage, err, "scan file row")
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// escapeLike neutralizes LIKE metacharacters in a user query so "%" matches
// a literal percent sign, not every row. Backslash is Postgres's default
// escape character for ILIKE.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// appendFilters adds the conjunctive search filters to a WHERE clause.
// Tags are normalized tokens with no commas, so a comma-joined parameter
// split server-side keeps the query free of array-literal plumbing.
func appendFilters(where []string, args []any, f models.SearchFilters, prefix string) ([]string, []any) {
	if len(f.Tags) > 0 {
		args = append(args, strings.Join(f.Tags, ","))
		where = append(where, fmt.Sprintf(
			`EXISTS (SELECT 1 FROM jsonb_array_elements_text(%stags) AS ft(tag) WHERE ft.tag = ANY (string_to_array($%d, ',')))`,
			prefix, len(args)))
	}
	if f.MimeType != nil {
		args = append(args, *f.MimeType)
		where = append(where, fmt.Sprintf("%smime_type = $%d", prefix, len(args)))
	}
	if f.ChannelID != nil {
		args = append(args, *f.ChannelID)
		where = append(where, fmt.Sprintf("%schannel_id = $%d", prefix, len(args)))
	}
	return where, args
}

func prefixColumns(prefix string) string {
	parts := strings.Split(fileColumns, ",")
	for i := range parts {
		parts[i] = prefix + strings.TrimSpace(parts[i])
	}
	return strings.Join(parts, ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(r rowScanner) (*models.FileRecord, error) {
	var (
		rec      models.FileRecord
		tagsJSON []byte
	)
	err := r.Scan(
		&rec.ID, &rec.WorkspaceID, &rec.ChannelID, &rec.SourceID, &rec.ExternalID, &rec.Name, &rec.MimeType,
		&rec.SizeBytes, &rec.URL, &rec.ContentHash, &tagsJSON, &rec.ExtractedContent, &rec.ExtractionMethod,
		&rec.IsDuplicate, &rec.Indexed, &rec.UploadedBy, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := decodeTags(tagsJSON, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func scanFileWithSimilarity(r rowScanner) (*models.FileRecord, float64, error) {
	var (
		rec        models.FileRecord
		tagsJSON   []byte
		similarity float64
	)
	err := r.Scan(
		&rec.ID, &rec.WorkspaceID, &rec.ChannelID, &rec.SourceID, &rec.ExternalID, &rec.Name, &rec.MimeType,
		&rec.SizeBytes, &rec.URL, &rec.ContentHash, &tagsJSON, &rec.ExtractedContent, &rec.ExtractionMethod,
		&rec.IsDuplicate, &rec.Indexed, &rec.UploadedBy, &rec.CreatedAt, &rec.UpdatedAt,
		&similarity,
	)
	if err != nil {
		return nil, 0, err
	}
	if err := decodeTags(tagsJSON, &rec); err != nil {
		return nil, 0, err
	}
	return &rec, similarity, nil
}

func decodeTags(tagsJSON []byte, rec *models.FileRecord) error {
	rec.Tags = []string{}
	if len(tagsJSON) == 0 {
		return nil
	}
	return json.Unmarshal(tagsJSON, &rec.Tags)
}

func marshalStats(stats map[string]int) (any, error) {
	if stats == nil {
		return nil, nil
	}
	b, err := json.Marshal(stats)
	if err != nil {
		return nil, err
	}
	return b, nil
}
