// Package search answers catalog queries through a cascade of strategies:
// semantic vector search when a query string is present, a plain text/tag
// match when the semantic tier degrades, and a pure filter listing when no
// query was given. Degradation is absorbed, never surfaced; only the final
// tier's storage failure becomes the caller's error.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hivecmu/filehub/internal/core"
	"github.com/hivecmu/filehub/internal/models"
)

// DefaultLimit caps result counts when the caller passes none.
const DefaultLimit = 50

// PreviewChars is the length of the content preview on search hits.
const PreviewChars = 150

const reasonSeparator = "; "

// Engine reads only from the catalog store and the vector index.
type Engine struct {
	store    core.CatalogStore
	embedder core.EmbeddingProvider
	log      *slog.Logger
}

func NewEngine(store core.CatalogStore, embedder core.EmbeddingProvider, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{store: store, embedder: embedder, log: log}
}

// Search runs the cascade. As long as the final tier's storage query
// succeeds it returns a (possibly empty) result list, never an error for a
// degraded semantic tier.
func (e *Engine) Search(ctx context.Context, workspaceID, query string, filters models.SearchFilters, limit int) ([]models.FileRecord, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	query = strings.TrimSpace(query)

	if query == "" {
		return e.store.Query(ctx, workspaceID, filters, limit)
	}

	recs, err := e.semantic(ctx, workspaceID, query, filters, limit)
	if err == nil {
		return recs, nil
	}
	e.log.Warn("semantic search degraded, falling back to text match",
		"workspace_id", workspaceID, "error", err)

	recs, err = e.store.TextQuery(ctx, workspaceID, query, filters, limit)
	if err != nil {
		return nil, err
	}
	decorate(recs, query)
	return recs, nil
}

func (e *Engine) semantic(ctx context.Context, workspaceID, query string, filters models.SearchFilters, limit int) ([]models.FileRecord, error) {
	vecs, err := e.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vecs))
	}
	if dim := e.embedder.Dimension(); dim > 0 && len(vecs[0]) != dim {
		return nil, fmt.Errorf("embed query: dimension %d, index expects %d", len(vecs[0]), dim)
	}

	recs, err := e.store.SemanticQuery(ctx, workspaceID, vecs[0], filters, limit)
	if err != nil {
		return nil, fmt.Errorf("semantic query: %w", err)
	}
	decorate(recs, query)
	return recs, nil
}

// decorate attaches similarity clamping, content previews and match reasons
// to query-bearing results.
func decorate(recs []models.FileRecord, query string) {
	for i := range recs {
		rec := &recs[i]
		if rec.Similarity != nil {
			s := clamp01(*rec.Similarity)
			rec.Similarity = &s
		}
		if p := preview(rec.ExtractedContent); p != "" {
			rec.ContentPreview = &p
		}
		reason := matchReason(rec, query)
		rec.MatchReason = &reason
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func preview(content *string) string {
	if content == nil || *content == "" {
		return ""
	}
	runes := []rune(*content)
	if len(runes) <= PreviewChars {
		return *content
	}
	return string(runes[:PreviewChars]) + "..."
}

// matchReason explains why a record matched, favoring exact lexical signals
// over semantic ones when both apply. The reason order is part of the
// contract: filename, then tags, then content words, then similarity bands.
func matchReason(rec *models.FileRecord, query string) string {
	lquery := strings.ToLower(query)
	tokens := strings.Fields(lquery)
	similarity := 0.0
	if rec.Similarity != nil {
		similarity = *rec.Similarity
	}

	var reasons []string

	lname := strings.ToLower(rec.Name)
	if strings.Contains(lname, lquery) || containsAny(lname, tokens) {
		reasons = append(reasons, "Filename matches")
	}

	var hitTags []string
	for _, tag := range rec.Tags {
		ltag := strings.ToLower(tag)
		if strings.Contains(ltag, lquery) || containsAny(ltag, tokens) {
			hitTags = append(hitTags, tag)
			if len(hitTags) == 3 {
				break
			}
		}
	}
	if len(hitTags) > 0 {
		reasons = append(reasons, "Tags: "+strings.Join(hitTags, ", "))
	}

	var hitWords []string
	if rec.ExtractedContent != nil {
		lcontent := strings.ToLower(*rec.ExtractedContent)
		for _, tok := range tokens {
			if len(tok) > 2 && strings.Contains(lcontent, tok) {
				hitWords = append(hitWords, tok)
				if len(hitWords) == 3 {
					break
				}
			}
		}
	}
	if len(hitWords) > 0 {
		reasons = append(reasons, fmt.Sprintf("Content contains: %q", strings.Join(hitWords, ", ")))
	} else if similarity > 0.3 {
		reasons = append(reasons, "Semantically similar content")
	}

	if len(reasons) == 0 {
		switch {
		case similarity > 0.5:
			return "Strong semantic match"
		case similarity > 0.3:
			return "Related content"
		default:
			return "Partial match"
		}
	}
	return strings.Join(reasons, reasonSeparator)
}

func containsAny(s string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(s, tok) {
			return true
		}
	}
	return false
}
