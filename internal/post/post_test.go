package post

import (
	"reflect"
	"strings"
	"testing"

	"ai-post-wizard/internal/profile"
	"ai-post-wizard/internal/strategy"
)

func TestSplitCaption(t *testing.T) {
	t.Run("WithTagBlock", func(t *testing.T) {
		body, tags := SplitCaption("Fresh bread every morning.\n\n#Bakery #Lisbon #Sourdough")
		if body != "Fresh bread every morning." {
			t.Errorf("Unexpected body: %q", body)
		}
		if len(tags) != 3 || tags[0] != "#Bakery" {
			t.Errorf("Unexpected tags: %v", tags)
		}
	})

	t.Run("NoTagBlock", func(t *testing.T) {
		caption := "Fresh bread every morning.\n\nCome visit us."
		body, tags := SplitCaption(caption)
		if body != caption {
			t.Errorf("Expected caption unchanged, got %q", body)
		}
		if tags != nil {
			t.Errorf("Expected no tags, got %v", tags)
		}
	})

	t.Run("MixedTrailingBlock", func(t *testing.T) {
		caption := "Fresh bread.\n\nvisit #Bakery"
		body, tags := SplitCaption(caption)
		if body != caption || tags != nil {
			t.Errorf("A block with non-tag tokens must not be split, got body=%q tags=%v", body, tags)
		}
	})

	t.Run("NoBlankLine", func(t *testing.T) {
		body, tags := SplitCaption("#Bakery #Lisbon")
		if body != "#Bakery #Lisbon" || tags != nil {
			t.Errorf("Expected caption unchanged, got body=%q tags=%v", body, tags)
		}
	})
}

func TestMergeTags(t *testing.T) {
	t.Run("CaseInsensitiveFirstWins", func(t *testing.T) {
		merged := MergeTags([]string{"#Fitness", "#Lisbon"}, []string{"#fitness", "#Bakery"})
		if len(merged) != 3 {
			t.Fatalf("Expected 3 tags, got %v", merged)
		}
		if merged[0] != "#Fitness" {
			t.Errorf("Expected original casing preserved, got %v", merged)
		}
	})

	t.Run("BlankEntriesDropped", func(t *testing.T) {
		merged := MergeTags([]string{"", "  "}, []string{"#A"})
		if len(merged) != 1 || merged[0] != "#A" {
			t.Errorf("Expected just #A, got %v", merged)
		}
	})
}

func TestJoinCaption(t *testing.T) {
	got := JoinCaption("Body text.\n", []string{"#A", "#B"})
	if got != "Body text.\n\n#A #B" {
		t.Errorf("Unexpected joined caption: %q", got)
	}

	if got := JoinCaption("Body text.", nil); got != "Body text." {
		t.Errorf("Expected body unchanged with no tags, got %q", got)
	}
}

func TestTagify(t *testing.T) {
	cases := map[string]string{
		"artisan bakery": "#ArtisanBakery",
		"Lisbon":         "#Lisbon",
		"café & bar":     "#CafBar",
		"":               "",
		"!!!":            "",
	}
	for in, want := range cases {
		if got := Tagify(in); got != want {
			t.Errorf("Tagify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFallback(t *testing.T) {
	p := profile.Profile{Name: "Bloom Bakery", Category: "Bakery", Location: "Lisbon"}
	idea := strategy.ContentIdea{
		Title:       "Morning bake timelapse",
		Description: "Show the first batch coming out of the oven.",
		Angle:       "behind the scenes",
	}

	d := Fallback(p, idea)
	if d.Title != "Morning bake timelapse" {
		t.Errorf("Unexpected title: %q", d.Title)
	}
	if d.Caption == "" {
		t.Fatal("Fallback must always produce a non-empty caption")
	}
	if !strings.Contains(d.Caption, "Show the first batch") {
		t.Errorf("Expected idea description in caption, got %q", d.Caption)
	}
	if !strings.Contains(d.Caption, "#Bakery") {
		t.Errorf("Expected derived hashtags in caption, got %q", d.Caption)
	}

	// Deterministic: same inputs, same output.
	if again := Fallback(p, idea); !reflect.DeepEqual(again, d) {
		t.Error("Fallback must be deterministic")
	}
}
