package post

import (
	"strings"

	"ai-post-wizard/internal/profile"
	"ai-post-wizard/internal/strategy"
)

// Details is the finished, platform-ready post. Rewrite, reword and
// more-hashtags actions mutate it in place.
type Details struct {
	Title       string   `json:"title"`
	Caption     string   `json:"caption"`
	Hashtags    []string `json:"hashtags"`
	PostingTime string   `json:"posting_time"`
}

// DeriveTitle builds a post title locally from the selected idea.
func DeriveTitle(idea strategy.ContentIdea) string {
	title := strings.TrimSpace(idea.Title)
	if title == "" {
		return "New post"
	}
	return title
}

// DeriveHashtags builds a small starter tag set locally from the profile.
func DeriveHashtags(p profile.Profile) []string {
	var tags []string
	if t := Tagify(p.Category); t != "" {
		tags = append(tags, t)
	}
	if t := Tagify(p.Location); t != "" {
		tags = append(tags, t)
	}
	if t := Tagify(p.Name); t != "" {
		tags = append(tags, t)
	}
	return MergeTags(nil, tags)
}

// Tagify turns free text into a single #CamelCase hashtag token.
func Tagify(text string) string {
	var b strings.Builder
	for _, word := range strings.Fields(text) {
		cleaned := strings.Map(func(r rune) rune {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
				return r
			}
			return -1
		}, word)
		if cleaned == "" {
			continue
		}
		b.WriteString(strings.ToUpper(cleaned[:1]))
		b.WriteString(cleaned[1:])
	}
	if b.Len() == 0 {
		return ""
	}
	return "#" + b.String()
}
