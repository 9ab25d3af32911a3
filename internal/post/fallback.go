package post

import (
	"fmt"
	"strings"

	"ai-post-wizard/internal/profile"
	"ai-post-wizard/internal/strategy"
)

// Fallback deterministically produces usable post details from the profile
// and selected idea alone. It is a pure function with no network access; the
// caption stage falls back to it on any generation failure or timeout.
func Fallback(p profile.Profile, idea strategy.ContentIdea) Details {
	var b strings.Builder

	desc := strings.TrimSpace(idea.Description)
	if desc == "" {
		desc = fmt.Sprintf("Here's a look at what %s is all about.", p.Name)
	}
	b.WriteString(desc)
	b.WriteString("\n\n")

	if p.Location != "" {
		fmt.Fprintf(&b, "Come see us in %s", p.Location)
		if p.Category != "" {
			fmt.Fprintf(&b, " — your local %s", strings.ToLower(p.Category))
		}
		b.WriteString(". ")
	}
	b.WriteString("Drop a comment and tell us what you'd like to see next!")

	tags := DeriveHashtags(p)
	if t := Tagify(idea.Angle); t != "" {
		tags = MergeTags(tags, []string{t})
	}

	return Details{
		Title:       DeriveTitle(idea),
		Caption:     JoinCaption(b.String(), tags),
		Hashtags:    nil,
		PostingTime: "",
	}
}
