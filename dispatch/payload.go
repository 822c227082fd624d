package dispatch

import (
	"fmt"
	"strings"

	"github.com/vkoval/leadscout/classify"
	"github.com/vkoval/leadscout/source"
)

// excerptRunes caps the post text excerpt in the notification card.
const excerptRunes = 250

// Action is an inline affordance attached to a payload.
type Action struct {
	Label string
	URL   string
	// Data is a callback token for non-URL actions.
	Data string
}

// Payload is the rendered notification for one accepted lead.
type Payload struct {
	Text    string
	Actions []Action
}

func scoreTier(score int) string {
	switch {
	case score >= 8:
		return "🔥"
	case score >= 6:
		return "⚡"
	default:
		return "📌"
	}
}

func intentIndicator(intent string) string {
	switch intent {
	case "high":
		return "🎯"
	case "medium":
		return "👀"
	default:
		return "💤"
	}
}

// FormatLead renders the notification card for an accepted lead.
// Every untrusted string passes through Clean before entering the payload.
func FormatLead(post *source.Post, v *classify.Verdict) Payload {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s *New lead found!* [%d/10]\n\n", scoreTier(v.RelevanceScore), v.RelevanceScore)
	fmt.Fprintf(&sb, "📍 *r/%s* | [Open post](%s)\n", Clean(post.Subreddit), escapeLinkURL(post.URL))
	fmt.Fprintf(&sb, "👤 *u/%s* %s\n\n", Clean(post.Author), intentIndicator(v.AuthorInsights.BuyingIntent))

	title := Clean(Excerpt(post.Title, 100))
	if title != "" {
		fmt.Fprintf(&sb, "📝 *%s*\n\n", title)
	}
	if text := Clean(Excerpt(post.Text, excerptRunes)); text != "" {
		sb.WriteString(text)
		sb.WriteString("\n\n")
	}

	sb.WriteString("━━━━━━━━━━━━━━\n")
	sb.WriteString("🧠 *Author insights:*\n")
	ai := v.AuthorInsights
	fmt.Fprintf(&sb, "  • Role: %s\n", Clean(ai.LikelyRole))
	fmt.Fprintf(&sb, "  • Company: %s\n", Clean(ai.CompanyStage))
	fmt.Fprintf(&sb, "  • Tech: %s\n", Clean(ai.TechSavvy))
	fmt.Fprintf(&sb, "  • Intent: %s\n", Clean(ai.BuyingIntent))
	if p := Clean(ai.Personality); p != "" {
		fmt.Fprintf(&sb, "  • %s\n", p)
	}

	if len(v.PainPoints) > 0 {
		sb.WriteString("\n💥 *Pain points:*\n")
		for _, p := range v.PainPoints {
			fmt.Fprintf(&sb, "  • %s\n", Clean(p))
		}
	}

	if s := Clean(v.OpportunitySummary); s != "" {
		fmt.Fprintf(&sb, "\n💡 *Why this is a lead:*\n%s\n", s)
	}

	sb.WriteString("\n━━━━━━━━━━━━━━\n")
	fmt.Fprintf(&sb, "✉️ *Drafted outreach:*\n_%s_", Clean(v.OutreachMessage))

	actions := []Action{
		{Label: "✉️ Copy message", Data: "copy_msg"},
	}
	if post.URL != "" {
		actions = append(actions, Action{Label: "🔗 Open post", URL: post.URL})
	}
	if u := post.AuthorURL(); u != "" {
		actions = append(actions, Action{Label: "👤 Profile", URL: u})
	}

	return Payload{Text: sb.String(), Actions: actions}
}

// FormatOutreach renders the auto_send follow-up carrying the outreach
// draft for the operator to review and copy. It is never delivered to the
// lead's own account.
func FormatOutreach(post *source.Post, v *classify.Verdict) string {
	return fmt.Sprintf("📤 *Auto-send*\nMessage ready for u/%s:\n\n`%s`",
		Clean(post.Author), Sanitize(v.OutreachMessage))
}
