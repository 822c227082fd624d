package source

import (
	"strings"
	"testing"
)

func TestExtractEmbeddedSchema(t *testing.T) {
	// WHAT: The primary pattern decodes post objects embedded as JSON,
	// including unescaping of literal-encoded text.
	markup := []byte(`<html><script>window.__data={"feed":{` +
		`"post":{"id":"e1","title":"Need a CRM","text":"line one\nline two \u2714 done","author":"founder","subreddit":"startups","permalink":"/r/startups/comments/e1/x/"},` +
		`"post":{"id":"e2","title":"Hiring","text":"we hire","author":"hr_guy","url":"https://reddit.com/r/jobs/e2"}}};</script></html>`)

	posts := NewExtractor().ExtractPosts(markup, "crm")
	if len(posts) != 2 {
		t.Fatalf("posts: got %d, want 2", len(posts))
	}
	if posts[0].ID != "e1" {
		t.Errorf("id: got %q", posts[0].ID)
	}
	if !strings.Contains(posts[0].Text, "line one\nline two") {
		t.Errorf("text not unescaped: %q", posts[0].Text)
	}
	if !strings.Contains(posts[0].Text, "✔") {
		t.Errorf("unicode escape not decoded: %q", posts[0].Text)
	}
	if posts[0].URL != "https://reddit.com/r/startups/comments/e1/x/" {
		t.Errorf("permalink url: got %q", posts[0].URL)
	}
	if posts[0].SourceKeyword != "crm" {
		t.Errorf("keyword: got %q", posts[0].SourceKeyword)
	}
}

func TestExtractFallbackDOM(t *testing.T) {
	// WHAT: When no embedded data matches, the DOM pattern takes over.
	// WHY: Markup ships without the JSON payload on some page variants.
	markup := []byte(`<html><body>
		<article data-post-id="d1">
			<h3>Looking for invoicing software</h3>
			<a href="/r/smallbusiness/comments/d1/x/">link</a>
			<a href="/user/shop_owner/">u/shop_owner</a>
			<p>Spreadsheets are killing me.</p>
		</article>
		<div data-testid="post-container" data-author="dev_dana">
			<h3>Rate my landing page</h3>
			<p>Feedback welcome.</p>
		</div>
	</body></html>`)

	posts := NewExtractor().ExtractPosts(markup, "invoicing")
	if len(posts) != 2 {
		t.Fatalf("posts: got %d, want 2", len(posts))
	}
	if posts[0].ID != "d1" {
		t.Errorf("id: got %q", posts[0].ID)
	}
	if posts[0].Author != "shop_owner" {
		t.Errorf("author from profile link: got %q", posts[0].Author)
	}
	if posts[0].URL != "https://reddit.com/r/smallbusiness/comments/d1/x/" {
		t.Errorf("url: got %q", posts[0].URL)
	}
	if posts[0].Title != "Looking for invoicing software" {
		t.Errorf("title: got %q", posts[0].Title)
	}
	if posts[1].Author != "dev_dana" {
		t.Errorf("author attr: got %q", posts[1].Author)
	}
}

func TestExtractPrimaryWinsOverFallback(t *testing.T) {
	// WHAT: The first pattern yielding matches wins; the DOM is not consulted.
	markup := []byte(`<html><script>{"post":{"id":"p","title":"t","text":"b","author":"a"}}</script>
		<article><h3>dom title</h3><p>dom body</p><a href="/user/x/">x</a></article></html>`)

	posts := NewExtractor().ExtractPosts(markup, "")
	if len(posts) != 1 || posts[0].ID != "p" {
		t.Fatalf("expected only the embedded post, got %+v", posts)
	}
}

func TestExtractSuppressesDuplicateText(t *testing.T) {
	// WHAT: Duplicate text within one extraction pass is dropped.
	markup := []byte(`<html><script>` +
		`{"post":{"id":"a1","title":"same","text":"body","author":"u1"}}` +
		`{"post":{"id":"a2","title":"same","text":"body","author":"u2"}}` +
		`</script></html>`)

	posts := NewExtractor().ExtractPosts(markup, "")
	if len(posts) != 1 {
		t.Fatalf("posts: got %d, want 1", len(posts))
	}
}

func TestExtractEmptyMarkup(t *testing.T) {
	// WHAT: Garbage in, empty slice out. Never panic, never error.
	for _, markup := range []string{"", "<html></html>", `{"post":{`, "not html at all"} {
		posts := NewExtractor().ExtractPosts([]byte(markup), "kw")
		if len(posts) != 0 {
			t.Errorf("markup %q: got %d posts, want 0", markup, len(posts))
		}
	}
}
