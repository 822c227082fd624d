package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vkoval/leadscout/classify"
	"github.com/vkoval/leadscout/settings"
	"github.com/vkoval/leadscout/source"
)

type fakeNotifier struct {
	leads    []Payload
	outreach []string
	leadErr  error
}

func (f *fakeNotifier) NotifyLead(ctx context.Context, p Payload) error {
	if f.leadErr != nil {
		return f.leadErr
	}
	f.leads = append(f.leads, p)
	return nil
}

func (f *fakeNotifier) NotifyOutreach(ctx context.Context, text string) error {
	f.outreach = append(f.outreach, text)
	return nil
}

func verdictWithScore(score int) *classify.Verdict {
	return &classify.Verdict{
		RelevanceScore:     score,
		PainPoints:         []string{"manual work"},
		AuthorInsights:     classify.AuthorInsights{BuyingIntent: "high", LikelyRole: "founder"},
		OpportunitySummary: "Good fit.",
		OutreachMessage:    "Hi there",
	}
}

func testPost() *source.Post {
	return &source.Post{
		ID: "p1", Title: "Need a CRM", Text: "5-person team",
		Author: "u1", Subreddit: "startups",
		URL: "https://reddit.com/r/startups/comments/p1/x/",
	}
}

func TestGateThreshold(t *testing.T) {
	// WHAT: Dispatch happens iff score >= min_score. Raising the threshold
	// can only shrink the dispatched set.
	ctx := context.Background()
	for _, tc := range []struct {
		score, min int
		want       Outcome
	}{
		{8, 6, Sent},
		{6, 6, Sent},
		{5, 6, BelowThreshold},
		{0, 0, Sent},
		{10, 10, Sent},
	} {
		n := &fakeNotifier{}
		d := New(n, nil, nil)
		got, err := d.MaybeDispatch(ctx, testPost(), verdictWithScore(tc.score), settings.Settings{MinScore: tc.min, Mode: settings.ModeNotify})
		if err != nil {
			t.Fatalf("dispatch: %v", err)
		}
		if got != tc.want {
			t.Errorf("score=%d min=%d: got %v, want %v", tc.score, tc.min, got, tc.want)
		}
		if (len(n.leads) == 1) != (tc.want == Sent) {
			t.Errorf("score=%d min=%d: notifier calls %d", tc.score, tc.min, len(n.leads))
		}
	}
}

func TestDeliveryFailureIsNotBelowThreshold(t *testing.T) {
	// WHAT: When the gate clears but the channel send fails, the outcome is
	// Failed, not BelowThreshold; the caller can tell a rejected lead from
	// a lost one.
	n := &fakeNotifier{leadErr: errors.New("channel unavailable")}
	d := New(n, nil, nil)

	got, err := d.MaybeDispatch(context.Background(), testPost(), verdictWithScore(9),
		settings.Settings{MinScore: 6, Mode: settings.ModeNotify})
	if err == nil {
		t.Fatal("expected the delivery error to propagate")
	}
	if got != Failed {
		t.Fatalf("outcome = %v, want Failed", got)
	}
	if got.String() != "failed" {
		t.Errorf("String() = %q", got.String())
	}
}

func TestAutoSendAddsOutreachMessage(t *testing.T) {
	// WHAT: auto_send delivers a second message with the draft; notify does not.
	ctx := context.Background()

	n := &fakeNotifier{}
	d := New(n, nil, nil)
	d.MaybeDispatch(ctx, testPost(), verdictWithScore(9), settings.Settings{MinScore: 6, Mode: settings.ModeAutoSend})
	if len(n.outreach) != 1 {
		t.Fatalf("outreach messages: got %d, want 1", len(n.outreach))
	}
	if !strings.Contains(n.outreach[0], "u/u1") {
		t.Errorf("outreach missing recipient hint: %q", n.outreach[0])
	}

	n2 := &fakeNotifier{}
	d2 := New(n2, nil, nil)
	d2.MaybeDispatch(ctx, testPost(), verdictWithScore(9), settings.Settings{MinScore: 6, Mode: settings.ModeNotify})
	if len(n2.outreach) != 0 {
		t.Errorf("notify mode sent outreach: %d", len(n2.outreach))
	}
}

func TestFormatLeadCard(t *testing.T) {
	// WHAT: The card carries score tier, link, author, insights, and draft.
	p := FormatLead(testPost(), verdictWithScore(8))
	for _, want := range []string{"🔥", "[8/10]", "r/startups", "u/u1", "🎯", "founder", "manual work", "Good fit.", "Hi there"} {
		if !strings.Contains(p.Text, want) {
			t.Errorf("card missing %q", want)
		}
	}
	var urls []string
	for _, a := range p.Actions {
		urls = append(urls, a.URL)
	}
	joined := strings.Join(urls, " ")
	if !strings.Contains(joined, "comments/p1") || !strings.Contains(joined, "reddit.com/u/u1") {
		t.Errorf("actions missing links: %v", p.Actions)
	}
}

func TestFormatLeadEscapesMarkup(t *testing.T) {
	// WHAT: Markdown control characters in untrusted fields are escaped
	// and HTML is stripped, so the channel never rejects the render.
	post := testPost()
	post.Title = "my_var is *broken* <b>[help]</b>"
	v := verdictWithScore(8)
	v.OpportunitySummary = "uses `backticks` and <script>alert(1)</script>"

	p := FormatLead(post, v)
	for _, want := range []string{`my\_var`, `\*broken\*`, `\[help]`, "\\`backticks\\`"} {
		if !strings.Contains(p.Text, want) {
			t.Errorf("escape missing %q in %q", want, p.Text)
		}
	}
	if strings.Contains(p.Text, "<script>") || strings.Contains(p.Text, "<b>") {
		t.Error("html not stripped")
	}
}

func TestFormatLeadEscapesLinkURL(t *testing.T) {
	// WHAT: Parentheses in the post URL are percent-escaped inside the
	// inline link, so a ')' cannot close the link early and leak the tail
	// into the card text.
	post := testPost()
	post.URL = "https://en.wikipedia.org/wiki/CRM_(disambiguation)?ref=(a)"

	p := FormatLead(post, verdictWithScore(8))
	if !strings.Contains(p.Text, "[Open post](https://en.wikipedia.org/wiki/CRM_%28disambiguation%29?ref=%28a%29)") {
		t.Fatalf("link not escaped:\n%s", p.Text)
	}
	// The button keeps the raw URL; only the Markdown link position escapes.
	var buttonURL string
	for _, a := range p.Actions {
		if a.Label == "🔗 Open post" {
			buttonURL = a.URL
		}
	}
	if buttonURL != post.URL {
		t.Errorf("button URL = %q, want raw URL", buttonURL)
	}
}

func TestExcerptCapsLongText(t *testing.T) {
	// WHAT: Post body excerpt is capped and marked with an ellipsis.
	post := testPost()
	post.Text = strings.Repeat("word ", 200)
	p := FormatLead(post, verdictWithScore(8))
	if strings.Contains(p.Text, strings.Repeat("word ", 60)) {
		t.Error("excerpt not capped")
	}
	if !strings.Contains(p.Text, "…") {
		t.Error("missing ellipsis")
	}
}

func TestSanitize(t *testing.T) {
	// WHAT: Sanitize strips tags, decodes entities, trims.
	got := Sanitize("  <p>a &amp; b</p> ")
	if got != "a & b" {
		t.Errorf("got %q", got)
	}
}
