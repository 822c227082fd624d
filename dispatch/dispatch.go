// Package dispatch applies the relevance threshold to classified posts
// and delivers accepted leads to the notification channel.
package dispatch

import (
	"context"
	"log/slog"

	"github.com/vkoval/leadscout/classify"
	"github.com/vkoval/leadscout/leadstore"
	"github.com/vkoval/leadscout/settings"
	"github.com/vkoval/leadscout/source"
)

// Outcome of a dispatch decision.
type Outcome int

const (
	// BelowThreshold means the verdict did not clear the minimum score.
	BelowThreshold Outcome = iota
	// Sent means the lead was delivered to the notification channel.
	Sent
	// Failed means the gate cleared but delivery did not succeed.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Sent:
		return "sent"
	case Failed:
		return "failed"
	default:
		return "below_threshold"
	}
}

// Notifier delivers rendered payloads to the notification channel.
type Notifier interface {
	// NotifyLead sends the lead card.
	NotifyLead(ctx context.Context, p Payload) error
	// NotifyOutreach sends the auto_send follow-up with the draft.
	NotifyOutreach(ctx context.Context, text string) error
}

// Dispatcher gates classified posts and sends accepted leads.
type Dispatcher struct {
	notifier Notifier
	leads    leadstore.Store
	logger   *slog.Logger
}

// New creates a Dispatcher. A nil leads store disables history recording.
func New(notifier Notifier, leads leadstore.Store, logger *slog.Logger) *Dispatcher {
	if leads == nil {
		leads = leadstore.NopStore{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{notifier: notifier, leads: leads, logger: logger}
}

// MaybeDispatch applies the threshold gate and delivers the lead when it
// clears. In auto_send mode a second message carries the outreach draft.
// Lead history recording is best-effort and never blocks delivery.
func (d *Dispatcher) MaybeDispatch(ctx context.Context, post *source.Post, v *classify.Verdict, st settings.Settings) (Outcome, error) {
	log := d.logger.With("post_id", post.Fingerprint(), "score", v.RelevanceScore, "min_score", st.MinScore)

	if v.RelevanceScore < st.MinScore {
		log.Info("dispatch: below threshold")
		return BelowThreshold, nil
	}

	if err := d.notifier.NotifyLead(ctx, FormatLead(post, v)); err != nil {
		return Failed, err
	}

	if st.Mode == settings.ModeAutoSend {
		if err := d.notifier.NotifyOutreach(ctx, FormatOutreach(post, v)); err != nil {
			// The card already went out; the draft is recoverable from history.
			log.Warn("dispatch: outreach follow-up failed", "error", err)
		}
	}

	if err := d.leads.SaveLead(ctx, &leadstore.Lead{
		PostID:          post.Fingerprint(),
		Subreddit:       post.Subreddit,
		Author:          post.Author,
		Title:           post.Title,
		URL:             post.URL,
		Score:           v.RelevanceScore,
		Summary:         v.OpportunitySummary,
		OutreachMessage: v.OutreachMessage,
	}); err != nil {
		log.Warn("dispatch: lead history write failed", "error", err)
	}

	log.Info("dispatch: sent")
	return Sent, nil
}
