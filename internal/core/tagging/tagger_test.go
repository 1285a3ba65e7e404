package tagging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivecmu/filehub/internal/models"
)

func strPtr(s string) *string { return &s }

func TestLocalTaggerDeterministic(t *testing.T) {
	tagger := NewLocalTagger()
	tc := models.TagContext{
		Name:           "Q4 Roadmap Draft.pdf",
		MimeType:       strPtr("application/pdf"),
		ContentSnippet: "roadmap roadmap milestones milestones milestones budget",
	}
	a, err := tagger.Tag(context.Background(), tc)
	require.NoError(t, err)
	b, err := tagger.Tag(context.Background(), tc)
	require.NoError(t, err)
	assert.Equal(t, a.Tags, b.Tags)
}

func TestLocalTaggerFilenameAndMime(t *testing.T) {
	tagger := NewLocalTagger()
	res, err := tagger.Tag(context.Background(), models.TagContext{
		Name:     "bug-fix-auth-flow.mp4",
		MimeType: strPtr("video/mp4"),
	})
	require.NoError(t, err)
	assert.Contains(t, res.Tags, "video")
	assert.Contains(t, res.Tags, "auth")
	assert.Contains(t, res.Tags, "flow")
	assert.LessOrEqual(t, len(res.Tags), MaxTags)
}

func TestLocalTaggerNonEmptyForPlainName(t *testing.T) {
	tagger := NewLocalTagger()
	res, err := tagger.Tag(context.Background(), models.TagContext{Name: "notes.txt"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Tags)
}

func TestLocalTaggerNormalizedOutput(t *testing.T) {
	tagger := NewLocalTagger()
	res, err := tagger.Tag(context.Background(), models.TagContext{
		Name:           "Meeting NOTES (final).docx",
		ContentSnippet: "Quarterly Planning planning PLANNING discussion",
	})
	require.NoError(t, err)
	for _, tag := range res.Tags {
		assert.Equal(t, Normalize(tag), tag, "tag %q is not normalized", tag)
	}
	assert.Contains(t, res.Tags, "planning")
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "q4-roadmap", Normalize("Q4 Roadmap"))
	assert.Equal(t, "a-b", Normalize("  a__b  "))
	assert.Equal(t, "", Normalize("***"))
	assert.Equal(t, "done", Normalize("done!"))
}
