package telegram

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"ai-post-wizard/internal/generate"
	"ai-post-wizard/internal/hashtag"
	"ai-post-wizard/internal/identity"
	"ai-post-wizard/internal/quota"
	"ai-post-wizard/internal/wizard"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// pending marks what the next free-text message from a chat is for.
type pending string

const (
	pendingNone     pending = ""
	pendingGuidance pending = "guidance"
	pendingHashtags pending = "hashtags"
)

// session is the per-chat wizard state. Each chat gets its own orchestrator,
// quota ledger and hashtag engine; the Telegram user ID doubles as the
// identity.
type session struct {
	chatID   int64
	userID   string
	wiz      *wizard.Orchestrator
	hashtags *hashtag.Engine
	ledger   *quota.Ledger

	mu      sync.Mutex
	pending pending
	// statusMessageID is the message edited in place during the research and
	// caption loading stages.
	statusMessageID int
}

func (s *session) setPending(p pending) {
	s.mu.Lock()
	s.pending = p
	s.mu.Unlock()
}

func (s *session) takePending() pending {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.pending
	s.pending = pendingNone
	return p
}

// sessions is a concurrency-safe chat-to-session map.
type sessions struct {
	mu sync.Mutex
	m  map[int64]*session
}

func newSessions() *sessions {
	return &sessions{m: make(map[int64]*session)}
}

func (s *sessions) get(chatID int64) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.m[chatID]
	return sess, ok
}

func (s *sessions) put(sess *session) {
	s.mu.Lock()
	s.m[sess.chatID] = sess
	s.mu.Unlock()
}

// openSession returns the chat's session, creating and signing it in on
// first contact.
func (b *Bot) openSession(ctx context.Context, chatID, userID int64) (*session, error) {
	if sess, ok := b.sessions.get(chatID); ok {
		return sess, nil
	}

	chatDir := filepath.Join(b.cfg.DataDir, "chats", fmt.Sprintf("%d", chatID))
	if err := os.MkdirAll(chatDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create chat data dir: %w", err)
	}
	cache, err := quota.NewCacheStore(chatDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open usage cache: %w", err)
	}

	notifier := &chatNotifier{api: b.api, chatID: chatID}
	ledger := quota.NewLedger(cache, b.history, quota.WithUpgradePrompter(notifier))
	ledger.LoadLocal()

	sess := &session{
		chatID:   chatID,
		userID:   fmt.Sprintf("%d", userID),
		ledger:   ledger,
		hashtags: hashtag.NewEngine(hashtagSource{gen: b.gen}),
	}
	sess.wiz = wizard.New(b.gen, ledger, notifier,
		wizard.WithHistory(b.history),
		wizard.WithProgressSink(&progressEditor{api: b.api, session: sess}),
	)
	if err := sess.wiz.SignIn(ctx, &identity.Actor{ID: sess.userID}); err != nil {
		log.Printf("Warning: failed to restore counters for chat %d: %v", chatID, err)
	}

	b.sessions.put(sess)
	return sess, nil
}

// hashtagSource adapts the generation client to the hashtag engine.
type hashtagSource struct {
	gen generate.Client
}

func (s hashtagSource) HashtagBatch(ctx context.Context, niche, platform string, batch int, existing []string) ([]hashtag.ScoredTag, error) {
	return s.gen.Hashtags(ctx, generate.HashtagRequest{
		Niche:        niche,
		Platform:     platform,
		Batch:        batch,
		ExistingTags: existing,
	})
}

// chatNotifier routes wizard notifications to the chat.
type chatNotifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

func (n *chatNotifier) send(text string) {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = "Markdown"
	if _, err := n.api.Send(msg); err != nil {
		log.Printf("Failed to send notification: %v", err)
	}
}

func (n *chatNotifier) Info(message string)  { n.send("ℹ️ " + message) }
func (n *chatNotifier) Toast(message string) { n.send(message) }
func (n *chatNotifier) Error(message string) { n.send("❌ *" + message + "*") }

func (n *chatNotifier) PromptUpgrade(feature quota.Feature) {
	msg := tgbotapi.NewMessage(n.chatID, "⭐ *You've used your free "+featureLabel(feature)+" for this post.*\nUpgrade for unlimited reruns.")
	msg.ParseMode = "Markdown"
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⭐ See Premium", "premium"),
		),
	)
	if _, err := n.api.Send(msg); err != nil {
		log.Printf("Failed to send upgrade prompt: %v", err)
	}
}

func featureLabel(f quota.Feature) string {
	switch f {
	case quota.FeatureRegenerateIdea:
		return "idea swaps"
	case quota.FeatureRewriteCaption:
		return "caption rewrites"
	case quota.FeatureRewordTitle:
		return "title rewords"
	case quota.FeatureMoreHashtags:
		return "hashtag refills"
	case quota.FeatureGuideAI:
		return "AI guidance"
	case quota.FeatureHashtagResearch:
		return "hashtag research runs"
	default:
		return "uses of this feature"
	}
}

// progressEditor renders the simulated research progress by editing the
// status message in place. Edits are throttled to multiples of 15 points to
// stay under Telegram's edit rate limits.
type progressEditor struct {
	api     *tgbotapi.BotAPI
	session *session

	mu   sync.Mutex
	last int
}

func (p *progressEditor) Progress(percent int, message string) {
	p.mu.Lock()
	if percent != 100 && percent-p.last < 15 {
		p.mu.Unlock()
		return
	}
	p.last = percent
	p.mu.Unlock()

	p.session.mu.Lock()
	messageID := p.session.statusMessageID
	p.session.mu.Unlock()
	if messageID == 0 {
		return
	}

	text := fmt.Sprintf("🔍 *Researching your niche...* %d%%", percent)
	if message != "" {
		text += "\n_" + message + "_"
	}
	edit := tgbotapi.NewEditMessageText(p.session.chatID, messageID, text)
	edit.ParseMode = "Markdown"
	if _, err := p.api.Send(edit); err != nil {
		log.Printf("Failed to edit progress message: %v", err)
	}
}
