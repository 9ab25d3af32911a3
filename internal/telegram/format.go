package telegram

import (
	"fmt"
	"strings"

	"ai-post-wizard/internal/hashtag"
	"ai-post-wizard/internal/post"
	"ai-post-wizard/internal/profile"
	"ai-post-wizard/internal/strategy"
)

func formatProfileMarkdown(p profile.Profile) string {
	var sb strings.Builder
	sb.WriteString("👤 *Your Profile*\n\n")
	sb.WriteString(fmt.Sprintf("*Name:* %s\n", p.Name))
	if p.Category != "" {
		sb.WriteString(fmt.Sprintf("*Category:* %s\n", p.Category))
	}
	sb.WriteString(fmt.Sprintf("*Location:* %s\n", p.Location))
	if p.Platform != "" {
		sb.WriteString(fmt.Sprintf("*Platform:* %s\n", p.Platform))
	}
	if p.CreatorGoals != "" {
		sb.WriteString(fmt.Sprintf("*Goals:* %s\n", p.CreatorGoals))
	}
	return sb.String()
}

func formatStrategyMarkdown(s *strategy.Strategy) string {
	var sb strings.Builder
	sb.WriteString("🧭 *Your Content Strategy*\n\n")
	if s.HeadlineSummary != "" {
		sb.WriteString("_" + s.HeadlineSummary + "_\n\n")
	}

	sb.WriteString("*Key Principles*\n")
	for _, p := range s.KeyPrinciples {
		sb.WriteString("• " + p + "\n")
	}

	if len(s.PostingTimes) > 0 {
		sb.WriteString("\n🕐 *Best Posting Times*\n")
		for _, t := range s.PostingTimes {
			sb.WriteString("• " + t + "\n")
		}
	}
	return sb.String()
}

func formatIdeasMarkdown(s *strategy.Strategy) string {
	var sb strings.Builder
	sb.WriteString("💡 *Content Ideas*\n\n")
	for i, idea := range s.ContentIdeas {
		sb.WriteString(fmt.Sprintf("*%d. %s*\n", i+1, idea.Title))
		if idea.Description != "" {
			sb.WriteString(idea.Description + "\n")
		}
		if idea.Angle != "" {
			sb.WriteString("_Angle: " + idea.Angle + "_\n")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Pick one to build your post around.")
	return sb.String()
}

func formatPostMarkdown(d *post.Details) string {
	var sb strings.Builder
	sb.WriteString("📝 *Your Post*\n\n")
	sb.WriteString(fmt.Sprintf("*Title:* %s\n\n", d.Title))
	sb.WriteString(d.Caption + "\n")
	if len(d.Hashtags) > 0 {
		sb.WriteString("\n" + strings.Join(d.Hashtags, " ") + "\n")
	}
	if d.PostingTime != "" {
		sb.WriteString(fmt.Sprintf("\n🕐 *Post at:* %s\n", d.PostingTime))
	}
	return sb.String()
}

func formatHashtagsMarkdown(r *hashtag.Result, selected []string) string {
	selectedSet := make(map[string]bool, len(selected))
	for _, t := range selected {
		selectedSet[t] = true
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("#️⃣ *Hashtags for %s on %s*\n\n", r.Niche, r.Platform))
	for _, t := range r.Tags {
		display := hashtag.DisplayScore(t.Score)
		mark := "  "
		if selectedSet[t.Tag] {
			mark = "✅"
		}
		sb.WriteString(fmt.Sprintf("%s %s — %d (%s)\n", mark, t.Tag, display, hashtag.Band(display)))
	}
	if len(selected) > 0 {
		sb.WriteString(fmt.Sprintf("\n_%d selected_", len(selected)))
	}
	return sb.String()
}

// escapeMarkdown neutralizes backticks in upstream error text before it is
// embedded in a Markdown code block.
func escapeMarkdown(s string) string {
	return strings.ReplaceAll(s, "`", "'")
}
