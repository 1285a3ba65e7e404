package extraction

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivecmu/filehub/internal/core"
)

func TestExtractPlainText(t *testing.T) {
	e := NewExtractor(0, false, nil)
	res, err := e.Extract(context.Background(), []byte("meeting notes\nfor q4"), "text/plain", "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "meeting notes\nfor q4", res.Text)
	assert.Equal(t, MethodPlainText, res.Method)
	assert.False(t, res.Truncated)
}

func TestExtractDispatchesByExtensionWhenMimeMissing(t *testing.T) {
	e := NewExtractor(0, false, nil)
	res, err := e.Extract(context.Background(), []byte("plain body"), "", "readme.txt")
	require.NoError(t, err)
	assert.Equal(t, MethodPlainText, res.Method)
}

func TestExtractStripsMimeParams(t *testing.T) {
	e := NewExtractor(0, false, nil)
	res, err := e.Extract(context.Background(), []byte("hi"), "text/plain; charset=utf-8", "a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hi", res.Text)
}

func TestExtractTruncates(t *testing.T) {
	e := NewExtractor(10, false, nil)
	res, err := e.Extract(context.Background(), []byte(strings.Repeat("x", 25)), "text/plain", "big.txt")
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	assert.Len(t, res.Text, 10)
}

func TestExtractUnsupportedMediaFails(t *testing.T) {
	e := NewExtractor(0, false, nil)
	_, err := e.Extract(context.Background(), []byte{0, 1, 2, 3}, "video/mp4", "clip.mp4")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrExtractionFailed)
}

func TestExtractEmptyBytesFails(t *testing.T) {
	e := NewExtractor(0, false, nil)
	_, err := e.Extract(context.Background(), nil, "text/plain", "empty.txt")
	assert.ErrorIs(t, err, core.ErrExtractionFailed)
}

func TestExtractInvalidUTF8TextFails(t *testing.T) {
	e := NewExtractor(0, false, nil)
	_, err := e.Extract(context.Background(), []byte{0xff, 0xfe, 0xfd}, "text/plain", "junk.txt")
	assert.ErrorIs(t, err, core.ErrExtractionFailed)
}
