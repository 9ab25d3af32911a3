package post

import (
	"strings"
)

// SplitCaption separates a caption into its non-hashtag body and the trailing
// hashtag block, using the conventional blank-line boundary. A trailing block
// only counts when every token in it starts with the tag sigil.
func SplitCaption(caption string) (body string, tags []string) {
	idx := strings.LastIndex(caption, "\n\n")
	if idx < 0 {
		return caption, nil
	}

	tail := strings.TrimSpace(caption[idx+2:])
	if tail == "" {
		return caption, nil
	}

	fields := strings.Fields(tail)
	for _, f := range fields {
		if !strings.HasPrefix(f, "#") {
			return caption, nil
		}
	}
	return caption[:idx], fields
}

// MergeTags merges existing and incoming hashtag lists, deduplicating
// case-insensitively. The first occurrence wins and keeps its original
// casing.
func MergeTags(existing, incoming []string) []string {
	seen := make(map[string]bool)
	var merged []string
	for _, tag := range append(append([]string{}, existing...), incoming...) {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, tag)
	}
	return merged
}

// JoinCaption rewrites the caption as body + blank line + joined tag block.
// An empty tag set leaves the body alone.
func JoinCaption(body string, tags []string) string {
	body = strings.TrimRight(body, "\n ")
	if len(tags) == 0 {
		return body
	}
	return body + "\n\n" + strings.Join(tags, " ")
}
