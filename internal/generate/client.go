package generate

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log"
	"text/template"
	"time"

	"ai-post-wizard/internal/hashtag"
	"ai-post-wizard/internal/llm"
	"ai-post-wizard/internal/metrics"
	"ai-post-wizard/internal/shared"
	"ai-post-wizard/internal/strategy"
)

//go:embed research_prompt.md
var researchPrompt string

//go:embed caption_prompt.md
var captionPrompt string

//go:embed hashtags_prompt.md
var hashtagsPrompt string

//go:embed title_prompt.md
var titlePrompt string

// Generator implements Client on top of two text-generation backends: a
// strategist model for research and a writer model for everything else.
type Generator struct {
	strategist llm.TextGenerator
	writer     llm.TextGenerator
	metrics    *metrics.Store
}

// NewGenerator creates a Generator. The metrics store may be nil.
func NewGenerator(strategist, writer llm.TextGenerator, store *metrics.Store) *Generator {
	return &Generator{strategist: strategist, writer: writer, metrics: store}
}

// Research asks the strategist model for a full strategy. A response without
// a content idea list is ErrMalformedStrategy; the caller treats that as
// fatal, never as something to patch over.
func (g *Generator) Research(ctx context.Context, req ResearchRequest) (*ResearchResponse, error) {
	raw, err := g.run(ctx, g.strategist, "research", researchPrompt, req)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Strategy         strategy.Strategy `json:"strategy"`
		DetectedCategory string            `json:"detected_category"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse research response: %w", err)
	}
	if len(parsed.Strategy.ContentIdeas) == 0 {
		return nil, ErrMalformedStrategy
	}
	if len(parsed.Strategy.KeyPrinciples) > strategy.KeyPrincipleCount {
		parsed.Strategy.KeyPrinciples = parsed.Strategy.KeyPrinciples[:strategy.KeyPrincipleCount]
	}

	return &ResearchResponse{
		Strategy:         parsed.Strategy,
		DetectedCategory: parsed.DetectedCategory,
	}, nil
}

// Caption asks the writer model for a caption.
func (g *Generator) Caption(ctx context.Context, req CaptionRequest) (string, error) {
	raw, err := g.run(ctx, g.writer, "caption", captionPrompt, req)
	if err != nil {
		return "", err
	}

	var parsed struct {
		Caption string `json:"caption"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return "", fmt.Errorf("failed to parse caption response: %w", err)
	}
	if parsed.Caption == "" {
		return "", fmt.Errorf("caption response is empty")
	}
	return parsed.Caption, nil
}

// Hashtags asks the writer model for one batch of scored tags. Scores are
// clamped to the raw domain.
func (g *Generator) Hashtags(ctx context.Context, req HashtagRequest) ([]hashtag.ScoredTag, error) {
	raw, err := g.run(ctx, g.writer, "hashtags", hashtagsPrompt, req)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Hashtags []hashtag.ScoredTag `json:"hashtags"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse hashtag response: %w", err)
	}
	if len(parsed.Hashtags) == 0 {
		return nil, fmt.Errorf("hashtag response is empty")
	}

	for i := range parsed.Hashtags {
		if parsed.Hashtags[i].Score < 0 {
			parsed.Hashtags[i].Score = 0
		}
		if parsed.Hashtags[i].Score > hashtag.MaxRawScore {
			parsed.Hashtags[i].Score = hashtag.MaxRawScore
		}
	}
	return parsed.Hashtags, nil
}

// HashtagBatch adapts Hashtags to the hashtag engine's Source contract.
func (g *Generator) HashtagBatch(ctx context.Context, niche, platform string, batch int, existing []string) ([]hashtag.ScoredTag, error) {
	return g.Hashtags(ctx, HashtagRequest{
		Niche:        niche,
		Platform:     platform,
		Batch:        batch,
		ExistingTags: existing,
	})
}

// Title asks the writer model for a reworded title.
func (g *Generator) Title(ctx context.Context, req TitleRequest) (string, error) {
	raw, err := g.run(ctx, g.writer, "title", titlePrompt, req)
	if err != nil {
		return "", err
	}

	var parsed struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return "", fmt.Errorf("failed to parse title response: %w", err)
	}
	if parsed.Title == "" {
		return "", fmt.Errorf("title response is empty")
	}
	return parsed.Title, nil
}

func (g *Generator) run(ctx context.Context, gen llm.TextGenerator, stage, promptTmpl string, data any) (string, error) {
	prompt, err := buildPrompt(stage, promptTmpl, data)
	if err != nil {
		return "", err
	}

	start := time.Now()
	resp, err := gen.GenerateContent(ctx, prompt)
	g.recordMeta(shared.StageMeta{Stage: stage, Usage: resp.Usage, Latency: time.Since(start)})
	if err != nil {
		return "", fmt.Errorf("%s generation failed: %w", stage, err)
	}

	return llm.StripCodeFence(resp.Content), nil
}

func (g *Generator) recordMeta(meta shared.StageMeta) {
	if g.metrics == nil {
		return
	}
	if err := g.metrics.RecordMeta(meta); err != nil {
		log.Printf("Warning: failed to record %s metrics: %v", meta.Stage, err)
	}
}

func buildPrompt(name, promptTmpl string, data any) (string, error) {
	tmpl, err := template.New(name).Parse(promptTmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
