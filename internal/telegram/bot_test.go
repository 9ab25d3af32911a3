package telegram

import (
	"strings"
	"testing"

	"ai-post-wizard/internal/hashtag"
	"ai-post-wizard/internal/post"
	"ai-post-wizard/internal/profile"
	"ai-post-wizard/internal/strategy"
)

func TestParseProfileForm(t *testing.T) {
	text := `Name: Beanhaus
Location: Lisbon
Category: coffee shop
Platform: Instagram
Type: creator
Goals: grow local following`

	p := parseProfileForm(text)

	if p.Name != "Beanhaus" {
		t.Errorf("Name = %q", p.Name)
	}
	if p.Location != "Lisbon" {
		t.Errorf("Location = %q", p.Location)
	}
	if p.Category != "coffee shop" {
		t.Errorf("Category = %q", p.Category)
	}
	if p.Platform != "instagram" {
		t.Errorf("Platform should be lowercased, got %q", p.Platform)
	}
	if p.ActorType != profile.ActorCreator {
		t.Errorf("ActorType = %q", p.ActorType)
	}
	if p.CreatorGoals != "grow local following" {
		t.Errorf("CreatorGoals = %q", p.CreatorGoals)
	}
}

func TestParseProfileFormBareName(t *testing.T) {
	p := parseProfileForm("Beanhaus")

	if p.Name != "Beanhaus" {
		t.Errorf("A bare line should become the name, got %q", p.Name)
	}
	if p.ActorType != profile.ActorBusiness {
		t.Errorf("Default actor type should be business, got %q", p.ActorType)
	}
}

func TestFormatStrategyMarkdown(t *testing.T) {
	s := &strategy.Strategy{
		HeadlineSummary: "Coffee content that converts",
		KeyPrinciples:   []string{"Show the process", "Post at peak hours"},
		PostingTimes:    []string{"Tue 9am"},
	}

	out := formatStrategyMarkdown(s)

	if !strings.Contains(out, "🧭 *Your Content Strategy*") {
		t.Error("Missing strategy header")
	}
	if !strings.Contains(out, "• Show the process") {
		t.Error("Missing key principle")
	}
	if !strings.Contains(out, "• Tue 9am") {
		t.Error("Missing posting time")
	}
}

func TestFormatIdeasMarkdown(t *testing.T) {
	s := &strategy.Strategy{
		ContentIdeas: []strategy.ContentIdea{
			{Title: "Latte art timelapse", Description: "30s pour", Angle: "craft"},
			{Title: "Meet the roaster"},
		},
	}

	out := formatIdeasMarkdown(s)

	if !strings.Contains(out, "*1. Latte art timelapse*") {
		t.Error("Missing numbered idea title")
	}
	if !strings.Contains(out, "_Angle: craft_") {
		t.Error("Missing idea angle")
	}
	if !strings.Contains(out, "*2. Meet the roaster*") {
		t.Error("Missing second idea")
	}
}

func TestFormatPostMarkdown(t *testing.T) {
	d := &post.Details{
		Title:       "Latte art timelapse",
		Caption:     "Watch this pour come together.",
		Hashtags:    []string{"#Coffee", "#Lisbon"},
		PostingTime: "Tue 9am",
	}

	out := formatPostMarkdown(d)

	if !strings.Contains(out, "*Title:* Latte art timelapse") {
		t.Error("Missing title")
	}
	if !strings.Contains(out, "Watch this pour come together.") {
		t.Error("Missing caption")
	}
	if !strings.Contains(out, "#Coffee #Lisbon") {
		t.Error("Missing hashtag line")
	}
	if !strings.Contains(out, "🕐 *Post at:* Tue 9am") {
		t.Error("Missing posting time")
	}
}

func TestFormatHashtagsMarkdown(t *testing.T) {
	r := &hashtag.Result{
		Niche:    "coffee",
		Platform: "instagram",
		Tags: []hashtag.ScoredTag{
			{Tag: "#Coffee", Score: 49},
			{Tag: "#Latte", Score: 20},
		},
	}

	out := formatHashtagsMarkdown(r, []string{"#Coffee"})

	if !strings.Contains(out, "#️⃣ *Hashtags for coffee on instagram*") {
		t.Error("Missing header")
	}
	// 49/54 rounds to 91: Outstanding.
	if !strings.Contains(out, "#Coffee — 91 (Outstanding)") {
		t.Error("Missing display score and band for #Coffee")
	}
	// 20/54 rounds to 37: Low.
	if !strings.Contains(out, "#Latte — 37 (Low)") {
		t.Error("Missing display score and band for #Latte")
	}
	if !strings.Contains(out, "✅ #Coffee") {
		t.Error("Selected tag should carry a checkmark")
	}
	if !strings.Contains(out, "_1 selected_") {
		t.Error("Missing selection count")
	}
}

func TestEscapeMarkdown(t *testing.T) {
	if got := escapeMarkdown("a `b` c"); got != "a 'b' c" {
		t.Errorf("escapeMarkdown = %q", got)
	}
}
