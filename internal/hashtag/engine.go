package hashtag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
)

// MaxRawScore is the upper bound of the raw score domain returned by the
// generation endpoint.
const MaxRawScore = 54

// ScoredTag is a single hashtag with its raw score.
type ScoredTag struct {
	Tag   string `json:"tag"`
	Score int    `json:"score"`
}

// Result is one research result set: a niche, a platform and the scored tags
// fetched so far, ordered descending by raw score.
type Result struct {
	Niche    string
	Platform string
	Tags     []ScoredTag
}

// Source fetches one batch of scored hashtags.
type Source interface {
	HashtagBatch(ctx context.Context, niche, platform string, batch int, existing []string) ([]ScoredTag, error)
}

// Engine owns hashtag research state: the current result set, the batch
// counter and the selection set.
type Engine struct {
	mu        sync.Mutex
	source    Source
	result    *Result
	nextBatch int

	// selection keeps set semantics plus insertion order for clipboard
	// serialization.
	selected  map[string]bool
	selection []string
}

// NewEngine creates a new Engine backed by the given batch source.
func NewEngine(source Source) *Engine {
	return &Engine{
		source:   source,
		selected: make(map[string]bool),
	}
}

// Research requests batch 0 for the niche and platform, replacing any prior
// result set and clearing the selection.
func (e *Engine) Research(ctx context.Context, niche, platform string) (*Result, error) {
	tags, err := e.source.HashtagBatch(ctx, niche, platform, 0, nil)
	if err != nil {
		return nil, fmt.Errorf("hashtag research failed: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.clearSelectionLocked()
	e.nextBatch = 1
	e.result = &Result{Niche: niche, Platform: platform, Tags: sortedByScore(tags)}
	return e.snapshotLocked(), nil
}

// OnPlatformChanged re-runs research for the current niche when the platform
// no longer matches the existing result set. It fires automatically on a
// platform switch, not from a user action.
func (e *Engine) OnPlatformChanged(ctx context.Context, newPlatform string) (*Result, error) {
	e.mu.Lock()
	if e.result == nil || e.result.Platform == newPlatform {
		e.mu.Unlock()
		return nil, nil
	}
	niche := e.result.Niche
	e.mu.Unlock()

	return e.Research(ctx, niche, newPlatform)
}

// GenerateMore fetches the next batch, drops tags already present (exact
// string match) and re-sorts the whole merged list descending by raw score.
func (e *Engine) GenerateMore(ctx context.Context) (*Result, error) {
	e.mu.Lock()
	if e.result == nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("no active result set")
	}
	niche, platform, batch := e.result.Niche, e.result.Platform, e.nextBatch
	existing := make([]string, len(e.result.Tags))
	for i, t := range e.result.Tags {
		existing[i] = t.Tag
	}
	e.mu.Unlock()

	tags, err := e.source.HashtagBatch(ctx, niche, platform, batch, existing)
	if err != nil {
		return nil, fmt.Errorf("hashtag batch %d failed: %w", batch, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	present := make(map[string]bool, len(e.result.Tags))
	for _, t := range e.result.Tags {
		present[t.Tag] = true
	}
	merged := e.result.Tags
	for _, t := range tags {
		if present[t.Tag] {
			continue
		}
		present[t.Tag] = true
		merged = append(merged, t)
	}

	e.nextBatch = batch + 1
	e.result.Tags = sortedByScore(merged)
	return e.snapshotLocked(), nil
}

// Clear drops the result set, batch counter and selection.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.result = nil
	e.nextBatch = 0
	e.clearSelectionLocked()
}

// Result returns a copy of the current result set, or nil when none exists.
func (e *Engine) Result() *Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// ToggleTag adds the tag to the selection, or removes it when already
// present. Reinserting never duplicates.
func (e *Engine) ToggleTag(tag string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.selected[tag] {
		delete(e.selected, tag)
		for i, s := range e.selection {
			if s == tag {
				e.selection = append(e.selection[:i], e.selection[i+1:]...)
				break
			}
		}
		return
	}
	e.selected[tag] = true
	e.selection = append(e.selection, tag)
}

// SelectAll replaces the selection with every tag in the current result list.
func (e *Engine) SelectAll() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.clearSelectionLocked()
	if e.result == nil {
		return
	}
	for _, t := range e.result.Tags {
		e.selected[t.Tag] = true
		e.selection = append(e.selection, t.Tag)
	}
}

// ClearSelection empties the selection set.
func (e *Engine) ClearSelection() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clearSelectionLocked()
}

// Selection returns the selected tags in current iteration order.
func (e *Engine) Selection() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.selection...)
}

// ClipboardText serializes the selection as space-joined tags.
func (e *Engine) ClipboardText() string {
	return strings.Join(e.Selection(), " ")
}

func (e *Engine) clearSelectionLocked() {
	e.selected = make(map[string]bool)
	e.selection = nil
}

func (e *Engine) snapshotLocked() *Result {
	if e.result == nil {
		return nil
	}
	cp := *e.result
	cp.Tags = append([]ScoredTag(nil), e.result.Tags...)
	return &cp
}

// sortedByScore returns the tags ordered descending by raw score. The sort is
// stable so equal scores keep their fetch order.
func sortedByScore(tags []ScoredTag) []ScoredTag {
	out := append([]ScoredTag(nil), tags...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// DisplayScore converts a raw score in [0, MaxRawScore] to the 0-100 scale
// shown to the user.
func DisplayScore(raw int) int {
	return int(math.Round(float64(raw) / MaxRawScore * 100))
}

// Band buckets a display score into its qualitative label.
func Band(displayScore int) string {
	switch {
	case displayScore >= 90:
		return "Outstanding"
	case displayScore >= 70:
		return "High"
	case displayScore >= 50:
		return "Medium"
	case displayScore >= 30:
		return "Low"
	default:
		return "Very Low"
	}
}
