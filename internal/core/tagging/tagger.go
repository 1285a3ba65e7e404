// Package tagging derives topical tags for cataloged files. The local
// tagger is a deterministic, network-free heuristic over filename, mime
// type and extracted content, suitable as a fast default; a model-backed
// Tagger lives in internal/core/llm.
package tagging

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/hivecmu/filehub/internal/core"
	"github.com/hivecmu/filehub/internal/models"
)

// MaxTags bounds the tag set the local tagger emits.
const MaxTags = 8

var _ core.Tagger = (*LocalTagger)(nil)

// LocalTagger tags files without any external call. Same input, same tags.
type LocalTagger struct{}

func NewLocalTagger() *LocalTagger {
	return &LocalTagger{}
}

// Tag never fails; the error return satisfies core.Tagger.
func (LocalTagger) Tag(_ context.Context, tc models.TagContext) (*models.TagResult, error) {
	var tags []string
	seen := map[string]bool{}
	add := func(t string) {
		t = Normalize(t)
		if t == "" || seen[t] || len(tags) >= MaxTags {
			return
		}
		seen[t] = true
		tags = append(tags, t)
	}

	if cat := mimeCategory(tc.MimeType); cat != "" {
		add(cat)
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(tc.Name)), ".")
	if ext != "" {
		add(ext)
	}
	stem := strings.TrimSuffix(filepath.Base(tc.Name), filepath.Ext(tc.Name))
	for _, tok := range splitTokens(stem) {
		add(tok)
	}
	for _, kw := range contentKeywords(tc.ContentSnippet, MaxTags) {
		add(kw)
	}

	if tags == nil {
		tags = []string{}
	}
	return &models.TagResult{Tags: tags}, nil
}

// Normalize lowercases a raw tag and collapses runs of separators and
// punctuation into single hyphens: "Q4 Roadmap" -> "q4-roadmap".
func Normalize(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	var b strings.Builder
	lastHyphen := true // suppress a leading hyphen
	for _, r := range raw {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

func splitTokens(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func mimeCategory(mimeType *string) string {
	if mimeType == nil {
		return ""
	}
	mt := strings.ToLower(*mimeType)
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	switch {
	case strings.HasPrefix(mt, "image/"):
		return "image"
	case strings.HasPrefix(mt, "video/"):
		return "video"
	case strings.HasPrefix(mt, "audio/"):
		return "audio"
	case strings.HasPrefix(mt, "text/"):
		return "document"
	}
	switch mt {
	case "application/pdf", "application/msword", "application/rtf",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.oasis.opendocument.text":
		return "document"
	case "application/vnd.ms-excel", "text/csv",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return "spreadsheet"
	case "application/vnd.ms-powerpoint",
		"application/vnd.openxmlformats-officedocument.presentationml.presentation":
		return "presentation"
	case "application/zip", "application/gzip", "application/x-tar", "application/x-7z-compressed":
		return "archive"
	case "application/json", "application/xml", "application/x-yaml", "application/javascript":
		return "data"
	}
	return ""
}

// contentKeywords picks the most frequent non-trivial words from the first
// part of the extracted content. Sorting is frequency-then-alphabetical so
// the result is stable.
func contentKeywords(snippet string, max int) []string {
	if snippet == "" {
		return nil
	}
	freq := map[string]int{}
	for _, tok := range splitTokens(strings.ToLower(snippet)) {
		if len(tok) < 4 || stopwords[tok] || isNumeric(tok) {
			continue
		}
		freq[tok]++
	}
	words := make([]string, 0, len(freq))
	for w := range freq {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if freq[words[i]] != freq[words[j]] {
			return freq[words[i]] > freq[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > max {
		words = words[:max]
	}
	return words
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

var stopwords = map[string]bool{
	"this": true, "that": true, "with": true, "from": true, "have": true,
	"will": true, "your": true, "about": true, "been": true, "they": true,
	"their": true, "would": true, "there": true, "which": true, "when": true,
	"what": true, "were": true, "than": true, "then": true, "them": true,
	"these": true, "those": true, "some": true, "such": true, "into": true,
	"over": true, "only": true, "also": true, "more": true, "most": true,
	"other": true, "because": true, "while": true, "where": true, "after": true,
	"before": true, "between": true, "each": true, "here": true, "does": true,
	"should": true, "could": true,
}
