package monitor

import (
	"strings"

	"github.com/vkoval/leadscout/source"
)

// MatchesKeywords reports whether any configured keyword occurs in the
// post's title or body, case-insensitively. An empty keyword list matches
// nothing: monitoring refuses to start without keywords, and a cleared
// list mid-run silently drops every post.
func MatchesKeywords(post *source.Post, keywords []string) bool {
	if len(keywords) == 0 {
		return false
	}
	haystack := strings.ToLower(post.Title + " " + post.Text)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}
