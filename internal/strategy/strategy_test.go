package strategy

import (
	"errors"
	"testing"
)

func testStrategy() *Strategy {
	return &Strategy{
		HeadlineSummary: "Show the craft behind the counter.",
		KeyPrinciples:   []string{"a", "b", "c", "d", "e"},
		ContentIdeas: []ContentIdea{
			{Title: "Morning bake timelapse", Angle: "behind-the-scenes"},
			{Title: "Meet the baker", Angle: "people"},
		},
		PostingTimes: []string{"Tue 7am", "Sat 9am"},
	}
}

func TestContainsIdea(t *testing.T) {
	s := testStrategy()
	if !s.ContainsIdea("Meet the baker") {
		t.Error("Expected idea to be present")
	}
	if s.ContainsIdea("Something else") {
		t.Error("Expected idea to be absent")
	}
}

func TestPickAlternative(t *testing.T) {
	s := testStrategy()

	idea, err := s.PickAlternative("Morning bake timelapse")
	if err != nil {
		t.Fatalf("PickAlternative failed: %v", err)
	}
	if idea.Title != "Meet the baker" {
		t.Errorf("Expected the only other idea, got '%s'", idea.Title)
	}

	s.ContentIdeas = s.ContentIdeas[:1]
	if _, err := s.PickAlternative("Morning bake timelapse"); !errors.Is(err, ErrNoAlternatives) {
		t.Errorf("Expected ErrNoAlternatives, got %v", err)
	}
}

func TestBestPostingTime(t *testing.T) {
	s := testStrategy()
	if got := s.BestPostingTime(); got != "Tue 7am" {
		t.Errorf("Expected first slot, got '%s'", got)
	}

	s.PostingTimes = nil
	if got := s.BestPostingTime(); got == "" {
		t.Error("Expected a default slot, got empty string")
	}
}
