package generate

import (
	"context"
	"errors"

	"ai-post-wizard/internal/hashtag"
	"ai-post-wizard/internal/profile"
	"ai-post-wizard/internal/strategy"
)

// ErrMalformedStrategy marks a research response missing its content idea
// list. The research stage treats it as fatal and never patches it with
// defaults.
var ErrMalformedStrategy = errors.New("research response has no content ideas")

// ResearchRequest asks for a full strategy for a profile.
type ResearchRequest struct {
	Profile  profile.Profile
	Guidance string
}

// ResearchResponse is the strategy plus an optionally detected, more
// specific category for the profile.
type ResearchResponse struct {
	Strategy         strategy.Strategy
	DetectedCategory string
}

// CaptionRequest asks for a caption for the selected idea.
type CaptionRequest struct {
	Profile        profile.Profile
	Idea           strategy.ContentIdea
	Guidance       string
	CurrentCaption string
}

// HashtagRequest asks for one batch of scored hashtags.
type HashtagRequest struct {
	Niche        string
	Platform     string
	Batch        int
	ExistingTags []string
}

// TitleRequest asks for a reworded post title.
type TitleRequest struct {
	Profile      profile.Profile
	Idea         strategy.ContentIdea
	CurrentTitle string
}

// Client is the contract the orchestrator and hashtag engine consume. The
// concrete text-generation backend sits behind it.
type Client interface {
	Research(ctx context.Context, req ResearchRequest) (*ResearchResponse, error)
	Caption(ctx context.Context, req CaptionRequest) (string, error)
	Hashtags(ctx context.Context, req HashtagRequest) ([]hashtag.ScoredTag, error)
	Title(ctx context.Context, req TitleRequest) (string, error)
}
