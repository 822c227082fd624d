package dispatch

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// stripPolicy drops all HTML from untrusted strings before formatting.
var stripPolicy = bluemonday.StrictPolicy()

// Sanitize cleans a user-supplied or model-supplied string for inclusion
// in a notification payload: HTML stripped, entities decoded, whitespace
// runs collapsed. Applied uniformly to every untrusted string.
func Sanitize(s string) string {
	s = stripPolicy.Sanitize(s)
	s = html.UnescapeString(s)
	return strings.TrimSpace(s)
}

// markdownEscaper escapes the characters that collide with the notification
// channel's Markdown dialect. An unbalanced '*' or '_' in post text makes
// the channel reject the whole message.
var markdownEscaper = strings.NewReplacer(
	"_", "\\_",
	"*", "\\*",
	"[", "\\[",
	"`", "\\`",
)

// EscapeMarkdown escapes Markdown control characters for the channel.
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// Clean runs Sanitize then EscapeMarkdown.
func Clean(s string) string {
	return EscapeMarkdown(Sanitize(s))
}

// linkURLEscaper escapes the characters that close a Markdown inline link
// early. A ')' in a raw URL truncates the link and leaks the tail into the
// message text.
var linkURLEscaper = strings.NewReplacer(
	"(", "%28",
	")", "%29",
)

// escapeLinkURL escapes a URL for embedding in [label](url) position.
func escapeLinkURL(s string) string {
	return linkURLEscaper.Replace(s)
}

// Excerpt truncates s to at most n runes, appending an ellipsis when cut.
func Excerpt(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n])) + "…"
}
