package strategy

import (
	"errors"
	"math/rand"
)

// KeyPrincipleCount is the fixed number of principles a strategy carries.
const KeyPrincipleCount = 5

// ErrNoAlternatives is returned when every idea in the pool is excluded.
var ErrNoAlternatives = errors.New("no alternative ideas available")

// ContentIdea is a single post concept inside a strategy.
type ContentIdea struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Angle       string `json:"angle"`
}

// Strategy is the output of the research stage. It is replaced wholesale by
// subsequent research or regeneration calls, never mutated in place.
type Strategy struct {
	HeadlineSummary string        `json:"headline_summary"`
	KeyPrinciples   []string      `json:"key_principles"`
	ContentIdeas    []ContentIdea `json:"content_ideas"`
	PostingTimes    []string      `json:"posting_times"`
}

// ContainsIdea reports whether an idea with the given title is present.
func (s *Strategy) ContainsIdea(title string) bool {
	for _, idea := range s.ContentIdeas {
		if idea.Title == title {
			return true
		}
	}
	return false
}

// PickAlternative returns a random idea whose title differs from excludeTitle.
// It returns ErrNoAlternatives when the pool has nothing else to offer.
func (s *Strategy) PickAlternative(excludeTitle string) (ContentIdea, error) {
	var pool []ContentIdea
	for _, idea := range s.ContentIdeas {
		if idea.Title != excludeTitle {
			pool = append(pool, idea)
		}
	}
	if len(pool) == 0 {
		return ContentIdea{}, ErrNoAlternatives
	}
	return pool[rand.Intn(len(pool))], nil
}

// BestPostingTime returns the first suggested slot, or a sensible default
// when the strategy carries none.
func (s *Strategy) BestPostingTime() string {
	if len(s.PostingTimes) > 0 {
		return s.PostingTimes[0]
	}
	return "Weekdays 6-8pm"
}
