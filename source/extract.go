package source

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Extractor pulls post-shaped records out of captured page markup.
//
// Two extraction patterns are tried in sequence: the embedded-data JSON
// shape the platform ships inside its markup (primary), then a DOM walk
// over post-shaped elements (fallback). The first pattern yielding any
// matches wins. Both patterns are best-effort against upstream markup
// changes and must never be the sole correctness authority.
type Extractor struct {
	md *converter.Converter
}

// NewExtractor creates an Extractor.
func NewExtractor() *Extractor {
	return &Extractor{
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
	}
}

// embeddedPost is the JSON shape the primary pattern looks for.
type embeddedPost struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Text      string `json:"text"`
	Author    string `json:"author"`
	AuthorBio string `json:"author_bio"`
	Permalink string `json:"permalink"`
	URL       string `json:"url"`
	Subreddit string `json:"subreddit"`
}

// postKeyPattern locates embedded post objects: `"post":{`.
var postKeyPattern = regexp.MustCompile(`"post"\s*:\s*\{`)

// ExtractPosts extracts post records from raw markup. Duplicate text within
// a single pass is suppressed. The keyword is recorded on every record.
func (e *Extractor) ExtractPosts(markup []byte, keyword string) []Post {
	posts := e.extractEmbedded(markup)
	if len(posts) == 0 {
		posts = e.extractDOM(markup)
	}

	seen := make(map[string]struct{}, len(posts))
	out := make([]Post, 0, len(posts))
	for _, p := range posts {
		key := strings.TrimSpace(p.Title + "\n" + p.Text)
		if key == "\n" || key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		p.SourceKeyword = keyword
		out = append(out, p)
		if len(out) >= MaxBatch {
			break
		}
	}
	return out
}

// extractEmbedded scans for post objects embedded as JSON in the markup.
// JSON decoding unescapes the literal-encoded text (\n, \uXXXX, \" ...).
func (e *Extractor) extractEmbedded(markup []byte) []Post {
	var posts []Post
	for _, loc := range postKeyPattern.FindAllIndex(markup, -1) {
		start := loc[1] - 1 // position of the opening brace
		obj, ok := balancedObject(markup[start:])
		if !ok {
			continue
		}
		var ep embeddedPost
		if err := json.Unmarshal(obj, &ep); err != nil {
			continue
		}
		if ep.Author == "" || (ep.Title == "" && ep.Text == "") {
			continue
		}
		p := Post{
			ID:        ep.ID,
			Title:     ep.Title,
			Text:      ep.Text,
			Author:    ep.Author,
			AuthorBio: ep.AuthorBio,
			Subreddit: ep.Subreddit,
			URL:       ep.URL,
		}
		if p.URL == "" && ep.Permalink != "" {
			p.URL = "https://reddit.com" + ep.Permalink
		}
		posts = append(posts, p)
	}
	return posts
}

// balancedObject returns the byte range of the JSON object starting at b[0],
// which must be '{'. String literals and escapes are honoured.
func balancedObject(b []byte) ([]byte, bool) {
	if len(b) == 0 || b[0] != '{' {
		return nil, false
	}
	depth := 0
	inString := false
	for i := 0; i < len(b); i++ {
		c := b[i]
		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return b[:i+1], true
			}
		}
	}
	return nil, false
}

// extractDOM is the fallback pattern: walk the parsed document for
// post-shaped elements (article tags or data-testid markers) and read
// author/title/body out of their subtrees.
func (e *Extractor) extractDOM(markup []byte) []Post {
	doc, err := xhtml.Parse(bytes.NewReader(markup))
	if err != nil {
		return nil
	}

	var posts []Post
	var walk func(*xhtml.Node)
	walk = func(n *xhtml.Node) {
		if n.Type == xhtml.ElementNode && isPostNode(n) {
			if p, ok := e.postFromNode(n); ok {
				posts = append(posts, p)
			}
			return // do not descend into a matched post
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return posts
}

func isPostNode(n *xhtml.Node) bool {
	if n.DataAtom == atom.Article {
		return true
	}
	v := attrValue(n, "data-testid")
	return v == "post-container" || v == "post"
}

func (e *Extractor) postFromNode(n *xhtml.Node) (Post, bool) {
	p := Post{
		ID:     attrValue(n, "data-post-id"),
		Author: attrValue(n, "data-author"),
		URL:    firstLink(n),
	}
	if h := firstHeading(n); h != nil {
		p.Title = collectText(h)
	}
	p.Text = e.nodeText(n)
	if p.Author == "" {
		p.Author = authorFromLink(n)
	}
	if p.Title == "" && p.Text == "" {
		return Post{}, false
	}
	return p, true
}

// nodeText renders a node's inner markup as markdown-flavoured plain text.
// Falls back to raw text collection when conversion fails.
func (e *Extractor) nodeText(n *xhtml.Node) string {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		xhtml.Render(&buf, c)
	}
	text, err := e.md.ConvertString(buf.String())
	if err != nil || strings.TrimSpace(text) == "" {
		return collectText(n)
	}
	return strings.TrimSpace(text)
}

func attrValue(n *xhtml.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func firstHeading(n *xhtml.Node) *xhtml.Node {
	var found *xhtml.Node
	var walk func(*xhtml.Node)
	walk = func(c *xhtml.Node) {
		if found != nil {
			return
		}
		switch c.DataAtom {
		case atom.H1, atom.H2, atom.H3:
			found = c
			return
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			walk(k)
		}
	}
	walk(n)
	return found
}

func firstLink(n *xhtml.Node) string {
	var href string
	var walk func(*xhtml.Node)
	walk = func(c *xhtml.Node) {
		if href != "" {
			return
		}
		if c.DataAtom == atom.A {
			if v := attrValue(c, "href"); strings.Contains(v, "/comments/") {
				href = v
				return
			}
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			walk(k)
		}
	}
	walk(n)
	if href != "" && strings.HasPrefix(href, "/") {
		return "https://reddit.com" + href
	}
	return href
}

// authorFromLink looks for a /u/ or /user/ profile link inside the post node.
func authorFromLink(n *xhtml.Node) string {
	var author string
	var walk func(*xhtml.Node)
	walk = func(c *xhtml.Node) {
		if author != "" {
			return
		}
		if c.DataAtom == atom.A {
			href := attrValue(c, "href")
			for _, prefix := range []string{"/user/", "/u/"} {
				if idx := strings.Index(href, prefix); idx >= 0 {
					author = strings.Trim(href[idx+len(prefix):], "/")
					return
				}
			}
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			walk(k)
		}
	}
	walk(n)
	return author
}

// collectText concatenates the text content of a subtree, skipping
// script/style, with whitespace collapsed.
func collectText(n *xhtml.Node) string {
	var sb strings.Builder
	var walk func(*xhtml.Node)
	walk = func(c *xhtml.Node) {
		switch c.DataAtom {
		case atom.Script, atom.Style, atom.Noscript:
			return
		}
		if c.Type == xhtml.TextNode {
			sb.WriteString(c.Data)
			sb.WriteString(" ")
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			walk(k)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
