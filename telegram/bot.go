// Package telegram is the operator front end: a single-chat command bot
// that configures the pipeline, controls the monitoring task, and delivers
// lead notifications.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vkoval/leadscout/classify"
	"github.com/vkoval/leadscout/dispatch"
	"github.com/vkoval/leadscout/monitor"
	"github.com/vkoval/leadscout/settings"
	"github.com/vkoval/leadscout/source"
)

// api is the slice of tgbotapi.BotAPI the bot uses. Tests substitute a fake.
type api interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Config configures the bot.
type Config struct {
	// Token is the bot token.
	Token string
	// ChatID is the single operator chat. Updates from any other chat
	// are dropped.
	ChatID int64
}

// Bot wires the command surface to the settings manager and the monitor
// controller, and implements dispatch.Notifier for lead delivery.
type Bot struct {
	api        api
	chatID     int64
	sets       *settings.Manager
	controller *monitor.Controller
	classifier classify.Classifier
	logger     *slog.Logger
}

// New connects to the Telegram API and builds the bot. The monitor
// controller is attached afterwards: the bot is the controller's notifier,
// so it must exist first.
func New(cfg Config, sets *settings.Manager, classifier classify.Classifier, logger *slog.Logger) (*Bot, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram: token required")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram: chat id required")
	}
	client, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram: connect: %w", err)
	}
	return newBot(client, cfg.ChatID, sets, classifier, logger), nil
}

func newBot(client api, chatID int64, sets *settings.Manager,
	classifier classify.Classifier, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		api:        client,
		chatID:     chatID,
		sets:       sets,
		classifier: classifier,
		logger:     logger,
	}
}

// Attach binds the monitor controller. Must happen before Run.
func (b *Bot) Attach(controller *monitor.Controller) {
	b.controller = controller
}

// Run processes updates until the context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	b.logger.Info("telegram: bot started", "chat_id", b.chatID)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		b.handleCallback(update.CallbackQuery)
		return
	}
	msg := update.Message
	if msg == nil || !msg.IsCommand() {
		return
	}
	if msg.Chat.ID != b.chatID {
		b.logger.Warn("telegram: command from unauthorized chat", "chat_id", msg.Chat.ID)
		return
	}

	cmd := msg.Command()
	args := strings.Fields(msg.CommandArguments())
	b.logger.Info("telegram: command", "command", cmd)

	switch cmd {
	case "start":
		b.cmdStart()
	case "setup":
		b.cmdSetup()
	case "status":
		b.cmdStatus()
	case "mode":
		b.cmdMode()
	case "start_monitor":
		b.cmdStartMonitor(ctx)
	case "stop_monitor":
		b.cmdStopMonitor()
	case "test":
		b.cmdTest(ctx)
	case "set_keywords":
		b.cmdSetKeywords(args)
	case "set_subreddits":
		b.cmdSetSubreddits(args)
	case "set_product":
		b.cmdSetProduct(msg.CommandArguments())
	case "set_name":
		b.cmdSetName(msg.CommandArguments())
	case "set_language":
		b.cmdSetLanguage(args)
	case "set_score":
		b.cmdSetScore(args)
	default:
		b.reply("Unknown command. See /start for the command list.", false)
	}
}

func (b *Bot) handleCallback(q *tgbotapi.CallbackQuery) {
	if _, err := b.api.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
		b.logger.Warn("telegram: callback ack failed", "error", err)
	}
	if q.Data == "copy_msg" {
		b.reply("ℹ️ The message is already in the card above — copy the text after ✉️", false)
	}
}

func (b *Bot) cmdStart() {
	b.reply(`🤖 *LeadScout*

I watch selected communities and surface potential customers for you.

*Commands:*
/setup — configure monitoring
/status — current configuration
/start\_monitor — start monitoring
/stop\_monitor — stop monitoring
/mode — toggle mode (notify/auto\_send)
/test — run a test analysis`, true)
}

func (b *Bot) cmdSetup() {
	b.reply("⚙️ *Setup*\n\nSend configuration commands:\n\n"+
		"`/set_keywords saas crm automation` — keywords\n"+
		"`/set_subreddits entrepreneur startups SaaS` — subreddits\n"+
		"`/set_product CRM for small business` — what you sell\n"+
		"`/set_name Alex` — your name\n"+
		"`/set_language en` — outreach language\n"+
		"`/set_score 6` — minimum score (0-10)", true)
}

func (b *Bot) cmdStatus() {
	st := b.sets.Snapshot()
	running := "🔴 Stopped"
	if b.controller.Running() {
		running = "🟢 Active"
	}
	mode := "🔔 Notify only"
	if st.Mode == settings.ModeAutoSend {
		mode = "📤 Auto-send"
	}

	b.reply(fmt.Sprintf(`📊 *Monitoring status*

%s
Mode: %s
Keywords: %s
Subreddits: %s
Product: %s
Minimum score: %d/10
Language: %s
Seen posts: %d`,
		running, mode,
		orUnset(strings.Join(st.Keywords, ", ")),
		orUnset(strings.Join(st.Subreddits, ", ")),
		orUnset(st.YourProduct),
		st.MinScore, st.Language,
		b.controller.SeenCount()), true)
}

func orUnset(s string) string {
	if s == "" {
		return "not set"
	}
	return s
}

func (b *Bot) cmdMode() {
	mode, err := b.sets.ToggleMode()
	if err != nil {
		b.replyErr("toggle mode", err)
		return
	}
	if mode == settings.ModeAutoSend {
		b.reply("✅ Mode: *📤 Auto-send*\nA ready-to-copy outreach draft follows every lead card.", true)
	} else {
		b.reply("✅ Mode: *🔔 Notify only*\nYou get the lead card and decide yourself.", true)
	}
}

func (b *Bot) cmdStartMonitor(ctx context.Context) {
	err := b.controller.Start(ctx)
	switch {
	case err == nil:
		st := b.sets.Snapshot()
		b.reply(fmt.Sprintf("🟢 Monitoring started!\nWatching: %s\nKeywords: %s",
			strings.Join(st.Subreddits, ", "), strings.Join(st.Keywords, ", ")), false)
	case errors.Is(err, monitor.ErrAlreadyRunning):
		b.reply("⚠️ Monitoring is already running!", false)
	case errors.Is(err, monitor.ErrNoKeywords), errors.Is(err, monitor.ErrNoScope):
		b.reply("⚠️ Configure /set_keywords and /set_subreddits first", false)
	default:
		b.replyErr("start monitor", err)
	}
}

func (b *Bot) cmdStopMonitor() {
	if err := b.controller.Stop(); err != nil {
		if errors.Is(err, monitor.ErrNotRunning) {
			b.reply("⚠️ Monitoring is not running.", false)
			return
		}
		b.replyErr("stop monitor", err)
		return
	}
	b.reply("🔴 Monitoring stopped.", false)
}

// cmdTest classifies a canned post without touching the fingerprint store.
// The classifier call runs off the command path so a slow upstream never
// blocks update handling.
func (b *Bot) cmdTest(ctx context.Context) {
	b.reply("🔍 Analyzing a test post...", false)

	post := &source.Post{
		ID:        "test",
		Title:     "Looking for a CRM solution for our 5-person sales team - budget around $500/mo",
		Text:      "We're a B2B SaaS startup, currently using spreadsheets but it's getting messy. Need something with email tracking and pipeline management.",
		URL:       "https://reddit.com/r/entrepreneur/test",
		Author:    "startup_founder_99",
		Subreddit: "entrepreneur",
	}

	go func() {
		st := b.sets.Snapshot()
		verdict, err := b.classifier.Classify(ctx, post, classify.Context{
			Product:  st.YourProduct,
			Seller:   st.YourName,
			Language: st.Language,
		})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.logger.Warn("telegram: test classification failed", "error", err)
			verdict = classify.DegradedVerdict("")
		}

		if verdict.RelevanceScore < st.MinScore {
			b.reply(fmt.Sprintf("📉 Test post: score %d/10 — below the %d threshold.",
				verdict.RelevanceScore, st.MinScore), false)
			return
		}
		if err := b.NotifyLead(ctx, dispatch.FormatLead(post, verdict)); err != nil {
			b.logger.Warn("telegram: test card send failed", "error", err)
		}
	}()
}

func (b *Bot) cmdSetKeywords(args []string) {
	if len(args) == 0 {
		b.reply("Usage: /set_keywords keyword1 keyword2", false)
		return
	}
	if err := b.sets.SetKeywords(args); err != nil {
		b.replyErr("set keywords", err)
		return
	}
	b.reply("✅ Keywords: "+strings.Join(b.sets.Snapshot().Keywords, ", "), false)
}

func (b *Bot) cmdSetSubreddits(args []string) {
	if len(args) == 0 {
		b.reply("Usage: /set_subreddits sub1 sub2", false)
		return
	}
	if err := b.sets.SetSubreddits(args); err != nil {
		b.replyErr("set subreddits", err)
		return
	}
	b.reply("✅ Subreddits: "+strings.Join(b.sets.Snapshot().Subreddits, ", "), false)
}

func (b *Bot) cmdSetProduct(raw string) {
	product := strings.TrimSpace(raw)
	if product == "" {
		b.reply("Usage: /set_product product description", false)
		return
	}
	if err := b.sets.SetProduct(product); err != nil {
		b.replyErr("set product", err)
		return
	}
	b.reply("✅ Product: "+product, false)
}

func (b *Bot) cmdSetName(raw string) {
	name := strings.TrimSpace(raw)
	if name == "" {
		b.reply("Usage: /set_name Alex", false)
		return
	}
	if err := b.sets.SetName(name); err != nil {
		b.replyErr("set name", err)
		return
	}
	b.reply("✅ Name: "+name, false)
}

func (b *Bot) cmdSetLanguage(args []string) {
	lang := "en"
	if len(args) > 0 {
		lang = args[0]
	}
	if err := b.sets.SetLanguage(lang); err != nil {
		b.replyErr("set language", err)
		return
	}
	b.reply("✅ Language: "+lang, false)
}

func (b *Bot) cmdSetScore(args []string) {
	if len(args) == 0 {
		b.reply("Usage: /set_score 6", false)
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		b.reply("Usage: /set_score 6", false)
		return
	}
	if err := b.sets.SetMinScore(n); err != nil {
		b.replyErr("set score", err)
		return
	}
	b.reply(fmt.Sprintf("✅ Minimum score: %d/10", b.sets.Snapshot().MinScore), false)
}

// NotifyLead implements dispatch.Notifier.
func (b *Bot) NotifyLead(_ context.Context, p dispatch.Payload) error {
	msg := tgbotapi.NewMessage(b.chatID, p.Text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true

	if len(p.Actions) > 0 {
		row := make([]tgbotapi.InlineKeyboardButton, 0, len(p.Actions))
		for _, a := range p.Actions {
			if a.URL != "" {
				row = append(row, tgbotapi.NewInlineKeyboardButtonURL(a.Label, a.URL))
			} else {
				row = append(row, tgbotapi.NewInlineKeyboardButtonData(a.Label, a.Data))
			}
		}
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(row)
	}

	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("telegram: send lead card: %w", err)
	}
	return nil
}

// NotifyOutreach implements dispatch.Notifier.
func (b *Bot) NotifyOutreach(_ context.Context, text string) error {
	msg := tgbotapi.NewMessage(b.chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("telegram: send outreach draft: %w", err)
	}
	return nil
}

func (b *Bot) reply(text string, markdown bool) {
	msg := tgbotapi.NewMessage(b.chatID, text)
	if markdown {
		msg.ParseMode = tgbotapi.ModeMarkdown
	}
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Warn("telegram: reply failed", "error", err)
	}
}

func (b *Bot) replyErr(op string, err error) {
	b.logger.Error("telegram: "+op+" failed", "error", err)
	b.reply("❌ Something went wrong, try again.", false)
}
