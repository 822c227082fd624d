package classify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/vkoval/leadscout/source"
)

// maxPostChars caps the post text submitted to the model to bound request cost.
const maxPostChars = 2000

// Context is the operator context embedded in every classification request.
type Context struct {
	Product  string
	Seller   string
	Language string
}

// Classifier scores one post against the operator context.
// Implementations must be safe for concurrent use and must never return
// an error for malformed model output; they degrade instead.
type Classifier interface {
	Classify(ctx context.Context, post *source.Post, opCtx Context) (*Verdict, error)
}

// ClassifyFunc adapts a function to the Classifier interface.
type ClassifyFunc func(ctx context.Context, post *source.Post, opCtx Context) (*Verdict, error)

// Classify implements Classifier.
func (f ClassifyFunc) Classify(ctx context.Context, post *source.Post, opCtx Context) (*Verdict, error) {
	return f(ctx, post, opCtx)
}

// GeminiConfig configures the Gemini-backed classifier.
type GeminiConfig struct {
	// APIKey for the service.
	APIKey string
	// Model name. Default: gemini-2.5-flash.
	Model string
	// RequestsPerMinute throttles calls. Default: 10.
	RequestsPerMinute int
}

func (c *GeminiConfig) defaults() {
	if c.Model == "" {
		c.Model = "gemini-2.5-flash"
	}
	if c.RequestsPerMinute <= 0 {
		c.RequestsPerMinute = 10
	}
}

// GeminiClassifier calls the Gemini API and parses the JSON verdict.
type GeminiClassifier struct {
	client  *genai.Client
	config  GeminiConfig
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewGeminiClassifier creates the classifier and its throttle.
func NewGeminiClassifier(ctx context.Context, cfg GeminiConfig, logger *slog.Logger) (*GeminiClassifier, error) {
	cfg.defaults()
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("classify: api key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("classify: new client: %w", err)
	}
	return &GeminiClassifier{
		client:  client,
		config:  cfg,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
		logger:  logger,
	}, nil
}

// Classify submits the post and parses the verdict. Transport failures and
// malformed output both yield a degraded verdict; the call is never retried
// within a cycle.
func (g *GeminiClassifier) Classify(ctx context.Context, post *source.Post, opCtx Context) (*Verdict, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	prompt := BuildPrompt(post, opCtx)
	result, err := g.client.Models.GenerateContent(ctx, g.config.Model, genai.Text(prompt), nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		g.logger.Warn("classify: request failed, degrading", "post_id", post.ID, "error", err)
		return DegradedVerdict(""), nil
	}

	raw := ""
	if result != nil && len(result.Candidates) > 0 &&
		result.Candidates[0].Content != nil && len(result.Candidates[0].Content.Parts) > 0 {
		raw = result.Candidates[0].Content.Parts[0].Text
	}
	return ParseVerdict(raw), nil
}

// BuildPrompt renders the classification request. Post text is truncated
// to bound request cost; the response is required to be bare JSON.
func BuildPrompt(post *source.Post, opCtx Context) string {
	body := post.Text
	if body == "" {
		body = "(no body)"
	}
	body = Truncate(body, maxPostChars)

	product := opCtx.Product
	if product == "" {
		product = "not specified"
	}
	seller := opCtx.Seller
	if seller == "" {
		seller = "not specified"
	}
	lang := opCtx.Language
	if lang == "" {
		lang = "en"
	}

	var sb strings.Builder
	sb.WriteString("You are a B2B sales intelligence analyst. Analyze this social media post and provide insights.\n\n")
	sb.WriteString("POST DETAILS:\n")
	fmt.Fprintf(&sb, "- Subreddit: r/%s\n", post.Subreddit)
	fmt.Fprintf(&sb, "- Author: u/%s\n", post.Author)
	if post.AuthorBio != "" {
		fmt.Fprintf(&sb, "- Author bio: %s\n", Truncate(post.AuthorBio, 300))
	}
	fmt.Fprintf(&sb, "- Title: %s\n", post.Title)
	fmt.Fprintf(&sb, "- Body: %s\n", body)
	fmt.Fprintf(&sb, "- URL: %s\n\n", post.URL)
	fmt.Fprintf(&sb, "PRODUCT/SERVICE BEING SOLD: %s\n", product)
	fmt.Fprintf(&sb, "SELLER NAME: %s\n\n", seller)
	sb.WriteString(`Respond ONLY with valid JSON (no markdown, no explanation):
{
  "relevance_score": <0-10, how relevant this lead is>,
  "pain_points": ["<pain point 1>", "<pain point 2>"],
  "author_insights": {
    "likely_role": "<guessed job title/role>",
    "company_stage": "<startup/smb/enterprise/individual/unknown>",
    "tech_savvy": "<low/medium/high>",
    "buying_intent": "<low/medium/high>",
    "personality": "<brief 1-sentence personality read>"
  },
  "opportunity_summary": "<2-3 sentences: why this is a good lead and what they need>",
  "outreach_message": "<personalized DM message, 3-5 sentences, human and warm, NOT salesy, reference their specific situation, offer value first. Language: `)
	sb.WriteString(lang)
	sb.WriteString(`>"
}`)
	return sb.String()
}

// Truncate cuts s to at most n bytes on a rune boundary.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	// Back off to a valid rune boundary.
	for len(cut) > 0 {
		if r, size := utf8.DecodeLastRuneInString(cut); r != utf8.RuneError || size > 1 {
			break
		}
		cut = cut[:len(cut)-1]
	}
	return cut
}
