package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/hivecmu/filehub/internal/core"
	"github.com/hivecmu/filehub/internal/core/tagging"
	"github.com/hivecmu/filehub/internal/models"
)

const taggerSystemPrompt = `You label files for a team file catalog.
Given a filename, mime type and a content snippet, respond with topical tags
(short lowercase tokens), a single category, a confidence between 0 and 1,
and a one-sentence summary.`

// GeminiTagger is the model-backed tagging capability. It asks the model
// for a JSON object and normalizes the returned tags the same way the local
// tagger does, so both modes produce interchangeable tag sets.
type GeminiTagger struct {
	client    *genai.Client
	modelName string
}

func NewGeminiTagger(ctx context.Context, apiKey, modelName string) (*GeminiTagger, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &GeminiTagger{client: cl, modelName: modelName}, nil
}

func (g *GeminiTagger) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

func (g *GeminiTagger) Tag(ctx context.Context, tc models.TagContext) (*models.TagResult, error) {
	m := g.client.GenerativeModel(g.modelName)
	m.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(taggerSystemPrompt)},
	}
	m.ResponseMIMEType = "application/json"
	m.ResponseSchema = &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"tags":       {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			"category":   {Type: genai.TypeString},
			"confidence": {Type: genai.TypeNumber},
			"summary":    {Type: genai.TypeString},
		},
		Required: []string{"tags", "category", "confidence"},
	}

	mimeType := "unknown"
	if tc.MimeType != nil {
		mimeType = *tc.MimeType
	}
	prompt := fmt.Sprintf("Filename: %s\nMime type: %s\nContent snippet:\n%s", tc.Name, mimeType, tc.ContentSnippet)

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, core.WrapErr(core.ErrTaggingFailed, err, "gemini generate")
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, core.WrapErr(core.ErrTaggingFailed, nil, "gemini returned no candidates")
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}

	var res models.TagResult
	if err := json.Unmarshal([]byte(b.String()), &res); err != nil {
		return nil, core.WrapErr(core.ErrTaggingFailed, err, "parse gemini response")
	}

	norm := make([]string, 0, len(res.Tags))
	seen := map[string]bool{}
	for _, t := range res.Tags {
		t = tagging.Normalize(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		norm = append(norm, t)
	}
	res.Tags = norm
	return &res, nil
}

var _ core.Tagger = (*GeminiTagger)(nil)
