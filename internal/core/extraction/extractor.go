// Package extraction turns raw file bytes into plain text, best effort.
// Unsupported formats fail with core.ErrExtractionFailed, which callers
// treat as non-fatal: the file is cataloged without extracted content.
package extraction

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"code.sajari.com/docconv"

	"github.com/hivecmu/filehub/internal/core"
)

// Extraction method names recorded on the file record.
const (
	MethodPlainText = "plain-text"
	MethodDocconv   = "docconv"
)

// DefaultMaxChars caps extracted text length.
const DefaultMaxChars = 100_000

// Result is extracted text plus how it was produced.
type Result struct {
	Text      string
	Method    string
	Truncated bool
}

// Extractor dispatches on mime type (or filename extension when the caller
// declared none) to a plain-text fast path or to docconv, which handles PDF
// text layers, office documents, HTML and, in OCR-enabled builds, images.
type Extractor struct {
	maxChars       int
	useReadability bool
	log            *slog.Logger
}

func NewExtractor(maxChars int, useReadability bool, log *slog.Logger) *Extractor {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{maxChars: maxChars, useReadability: useReadability, log: log}
}

// Extract produces plain text from data. mimeType may be empty; the
// extension of filename is consulted then. Output is capped at maxChars,
// with Truncated set when cut.
func (e *Extractor) Extract(ctx context.Context, data []byte, mimeType, filename string) (*Result, error) {
	if len(data) == 0 {
		return nil, core.WrapErr(core.ErrExtractionFailed, nil, "no content")
	}

	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	if mt == "" || mt == "application/octet-stream" {
		mt = docconv.MimeTypeByExtension(filename)
	}

	if isPlainText(mt) {
		if !utf8.Valid(data) {
			return nil, core.WrapErr(core.ErrExtractionFailed, nil, "declared text is not valid utf-8")
		}
		return e.capped(string(data), MethodPlainText), nil
	}

	// Media containers have no text layer; don't bother docconv with them.
	if strings.HasPrefix(mt, "video/") || strings.HasPrefix(mt, "audio/") {
		return nil, core.WrapErr(core.ErrExtractionFailed, nil, "no extractor for "+mt)
	}

	if err := ctx.Err(); err != nil {
		return nil, core.WrapErr(core.ErrExtractionFailed, err, "extraction canceled")
	}

	res, err := docconv.Convert(bytes.NewReader(data), mt, e.useReadability)
	if err != nil {
		e.log.Debug("docconv extraction failed", "mime_type", mt, "file", filename, "error", err)
		return nil, core.WrapErr(core.ErrExtractionFailed, err, "docconv convert")
	}
	text := strings.TrimSpace(res.Body)
	if text == "" {
		return nil, core.WrapErr(core.ErrExtractionFailed, nil, "docconv produced empty text for "+mt)
	}
	return e.capped(text, MethodDocconv), nil
}

func (e *Extractor) capped(text, method string) *Result {
	runes := []rune(text)
	if len(runes) <= e.maxChars {
		return &Result{Text: text, Method: method}
	}
	return &Result{Text: string(runes[:e.maxChars]), Method: method, Truncated: true}
}

func isPlainText(mt string) bool {
	if strings.HasPrefix(mt, "text/") {
		return true
	}
	switch mt {
	case "application/json", "application/xml", "application/x-yaml",
		"application/yaml", "application/javascript", "application/sql":
		return true
	}
	return false
}
