package core

import (
	"errors"
	"fmt"
)

// Error kinds for the ingestion and search pipeline. Every operation returns
// its failure wrapped around exactly one of these sentinels so callers match
// with errors.Is instead of string comparison.
//
// Propagation policy:
//   - ErrStorage always propagates to the immediate caller.
//   - ErrExtractionFailed never propagates past AddFile; the record is
//     inserted with no extracted content.
//   - ErrTaggingFailed / ErrIndexingFailed propagate from TagFile/IndexFile
//     but are counted, not surfaced, inside BulkTagAndIndex.
//   - Search degradation is not an error at all; the cascade absorbs it.
var (
	ErrNotFound         = errors.New("not found")
	ErrStorage          = errors.New("storage error")
	ErrExtractionFailed = errors.New("extraction failed")
	ErrTaggingFailed    = errors.New("tagging failed")
	ErrIndexingFailed   = errors.New("indexing failed")
)

// WrapErr tags cause with a pipeline error kind, keeping both in the chain.
func WrapErr(kind error, cause error, msg string) error {
	if cause == nil {
		return fmt.Errorf("%s: %w", msg, kind)
	}
	return fmt.Errorf("%s: %w: %w", msg, kind, cause)
}
