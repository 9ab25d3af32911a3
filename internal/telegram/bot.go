package telegram

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"ai-post-wizard/internal/config"
	"ai-post-wizard/internal/generate"
	"ai-post-wizard/internal/hashtag"
	"ai-post-wizard/internal/history"
	"ai-post-wizard/internal/metrics"
	"ai-post-wizard/internal/profile"
	"ai-post-wizard/internal/quota"
	"ai-post-wizard/internal/wizard"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Bot wraps the Telegram API and drives one post wizard per chat.
type Bot struct {
	api          *tgbotapi.BotAPI
	cfg          *config.Config
	gen          generate.Client
	importer     *profile.Importer
	history      *history.Repository
	metricsStore *metrics.Store
	sessions     *sessions
}

// NewBot initializes the Telegram Bot and sets the Webhook.
func NewBot(
	cfg *config.Config,
	gen generate.Client,
	importer *profile.Importer,
	historyRepo *history.Repository,
	metricsStore *metrics.Store,
) (*Bot, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}

	log.Printf("Authorized on account %s", bot.Self.UserName)

	webhookURL := cfg.TelegramWebhookURL
	wh, _ := tgbotapi.NewWebhook(webhookURL)
	resp, err := bot.Request(wh)
	if err != nil {
		return nil, fmt.Errorf("failed to set webhook to %s: %w", webhookURL, err)
	}
	log.Printf("Webhook set response: %s", resp.Description)

	return &Bot{
		api:          bot,
		cfg:          cfg,
		gen:          gen,
		importer:     importer,
		history:      historyRepo,
		metricsStore: metricsStore,
		sessions:     newSessions(),
	}, nil
}

// RegisterHandlers registers the webhook handler with the default HTTP mux.
func (b *Bot) RegisterHandlers() {
	http.HandleFunc("/webhook", b.handleWebhook)
	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	update, err := b.api.HandleUpdate(r)
	if err != nil {
		log.Printf("Error parsing update: %v", err)
		return
	}

	if update.CallbackQuery != nil {
		if !b.allowed(update.CallbackQuery.From.ID) {
			return
		}
		go b.handleCallbackQuery(update.CallbackQuery)
		return
	}

	if update.Message == nil {
		return
	}

	if !b.allowed(update.Message.From.ID) {
		log.Printf("⚠️ Unauthorized access attempt from UserID: %d (@%s)", update.Message.From.ID, update.Message.From.UserName)
		return
	}

	go b.processMessage(update.Message)
}

func (b *Bot) allowed(userID int64) bool {
	for _, id := range b.cfg.TelegramAllowedIDs {
		if userID == id {
			return true
		}
	}
	return false
}

func (b *Bot) processMessage(msg *tgbotapi.Message) {
	ctx := context.Background()

	sess, err := b.openSession(ctx, msg.Chat.ID, msg.From.ID)
	if err != nil {
		log.Printf("Failed to open session for chat %d: %v", msg.Chat.ID, err)
		return
	}

	switch {
	case msg.Text == "/start":
		b.sendWelcome(msg.Chat.ID)
		return
	case msg.Text == "/metrics":
		b.handleMetricsRequest(msg)
		return
	case msg.Text == "/history":
		b.handleHistoryRequest(ctx, sess)
		return
	case msg.Text == "/reset":
		sess.wiz.StartOver(ctx)
		sess.hashtags.Clear()
		b.send(msg.Chat.ID, "🔁 Starting fresh. Tell me about yourself or your business.")
		return
	case msg.Text == "/signout":
		if err := sess.wiz.SignOut(ctx); err != nil {
			log.Printf("Sign-out failed for chat %d: %v", msg.Chat.ID, err)
		}
		b.send(msg.Chat.ID, "👋 Signed out. Your usage history is kept safe.")
		return
	}

	switch sess.takePending() {
	case pendingGuidance:
		b.runGuidance(ctx, sess, msg.Text)
		return
	case pendingHashtags:
		b.runHashtagResearch(ctx, sess, msg.Text)
		return
	}

	if strings.HasPrefix(msg.Text, "http://") || strings.HasPrefix(msg.Text, "https://") {
		b.handleImportRequest(ctx, sess, msg.Text)
		return
	}

	b.runResearch(ctx, sess, parseProfileForm(msg.Text))
}

func (b *Bot) sendWelcome(chatID int64) {
	text := `👋 *Welcome to Post Wizard!*

Tell me about yourself or your business and I'll research your niche, suggest content ideas and write your post.

Send a few lines like:

` + "```" + `
Name: Beanhaus
Location: Lisbon
Category: coffee shop
Platform: instagram
Goals: grow local following
` + "```" + `

Or just paste your website URL and I'll fill in the details.`
	b.send(chatID, text)
}

// handleImportRequest scrapes the URL into a profile draft and runs research
// on it.
func (b *Bot) handleImportRequest(ctx context.Context, sess *session, url string) {
	statusMsg := tgbotapi.NewMessage(sess.chatID, "🔗 *Importing your profile...*")
	statusMsg.ParseMode = "Markdown"
	sent, err := b.api.Send(statusMsg)
	if err != nil {
		log.Printf("Failed to send import status: %v", err)
		return
	}

	prof, err := b.importer.FromURL(ctx, url)
	if err != nil {
		log.Printf("Error importing profile from %s: %v", url, err)
		edit := tgbotapi.NewEditMessageText(sess.chatID, sent.MessageID,
			fmt.Sprintf("❌ *Couldn't read that page:*\n```\n%v\n```", escapeMarkdown(err.Error())))
		edit.ParseMode = "Markdown"
		b.api.Send(edit)
		return
	}

	edit := tgbotapi.NewEditMessageText(sess.chatID, sent.MessageID,
		formatProfileMarkdown(*prof)+"\nLooks right? Starting research...")
	edit.ParseMode = "Markdown"
	b.api.Send(edit)

	b.runResearch(ctx, sess, *prof)
}

// runResearch drives the whole research stage against one status message
// that the progress editor updates in place.
func (b *Bot) runResearch(ctx context.Context, sess *session, prof profile.Profile) {
	statusMsg := tgbotapi.NewMessage(sess.chatID, "🔍 *Researching your niche...*")
	statusMsg.ParseMode = "Markdown"
	sent, err := b.api.Send(statusMsg)
	if err != nil {
		log.Printf("Failed to send research status: %v", err)
		return
	}
	sess.mu.Lock()
	sess.statusMessageID = sent.MessageID
	sess.mu.Unlock()

	if err := sess.wiz.SubmitProfile(ctx, prof); err != nil {
		edit := tgbotapi.NewEditMessageText(sess.chatID, sent.MessageID, "❌ *Research didn't complete.*")
		edit.ParseMode = "Markdown"
		b.api.Send(edit)
		return
	}

	strat := sess.wiz.Strategy()
	edit := tgbotapi.NewEditMessageText(sess.chatID, sent.MessageID, formatStrategyMarkdown(strat))
	edit.ParseMode = "Markdown"
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💡 Choose an idea", "ideas"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("#️⃣ Hashtag research", "ht"),
			tgbotapi.NewInlineKeyboardButtonData("⭐ Premium", "premium"),
		),
	)
	edit.ReplyMarkup = &keyboard
	b.api.Send(edit)
}

func (b *Bot) handleCallbackQuery(query *tgbotapi.CallbackQuery) {
	ctx := context.Background()

	sess, err := b.openSession(ctx, query.Message.Chat.ID, query.From.ID)
	if err != nil {
		log.Printf("Failed to open session for chat %d: %v", query.Message.Chat.ID, err)
		return
	}

	// Answer callback to remove spinner.
	b.api.Request(tgbotapi.NewCallback(query.ID, ""))

	data := query.Data
	action, arg := data, ""
	if i := strings.Index(data, "|"); i >= 0 {
		action, arg = data[:i], data[i+1:]
	}

	switch action {
	case "ideas":
		b.showIdeas(sess)
	case "idea":
		b.handleIdeaChosen(sess, arg)
	case "regen":
		if err := sess.wiz.RegenerateIdea(ctx); err != nil {
			log.Printf("Regenerate idea failed: %v", err)
			return
		}
		if sel := sess.wiz.SelectedIdea(); sel != nil {
			b.showRecordVideo(sess, sel.Title)
		}
	case "save_idea":
		if err := sess.wiz.SaveCurrentIdea(ctx); err != nil {
			log.Printf("Save idea failed: %v", err)
			return
		}
		b.send(sess.chatID, "💾 Idea saved to your history.")
	case "advance":
		b.runCaption(ctx, sess)
	case "rewrite":
		if err := sess.wiz.RewriteCaption(ctx, ""); err != nil {
			log.Printf("Rewrite caption failed: %v", err)
			return
		}
		b.showPost(sess)
	case "guide":
		if sess.wiz.PostDetails() == nil {
			b.send(sess.chatID, "Write your post first, then guide the rewrite.")
			return
		}
		sess.setPending(pendingGuidance)
		b.send(sess.chatID, "🧭 Tell me how to adjust the caption.")
	case "title":
		if err := sess.wiz.RewordTitle(ctx); err != nil {
			log.Printf("Reword title failed: %v", err)
			return
		}
		b.showPost(sess)
	case "tags":
		if err := sess.wiz.RequestMoreHashtags(ctx); err != nil {
			log.Printf("More hashtags failed: %v", err)
			return
		}
		b.showPost(sess)
	case "restart":
		sess.wiz.StartOver(ctx)
		sess.hashtags.Clear()
		b.send(sess.chatID, "🔁 Starting fresh. Tell me about yourself or your business.")
	case "premium":
		if err := sess.wiz.NavigateTo(wizard.StepPremium); err == nil {
			b.showPremium(sess)
		}
	case "back_aux":
		sess.wiz.ReturnFromAuxiliary()
		b.send(sess.chatID, "⬅️ Back to your post.")
	case "ht":
		b.startHashtagResearch(ctx, sess)
	case "ht_more":
		b.moreHashtags(ctx, sess, query.Message.MessageID)
	case "ht_tag":
		sess.hashtags.ToggleTag(arg)
		b.refreshHashtags(sess, query.Message.MessageID)
	case "ht_all":
		sess.hashtags.SelectAll()
		b.refreshHashtags(sess, query.Message.MessageID)
	case "ht_clear":
		sess.hashtags.ClearSelection()
		b.refreshHashtags(sess, query.Message.MessageID)
	case "ht_copy":
		if text := sess.hashtags.ClipboardText(); text != "" {
			b.send(sess.chatID, "📋 Copy these:\n\n`"+text+"`")
		}
	}
}

func (b *Bot) showIdeas(sess *session) {
	strat := sess.wiz.Strategy()
	if strat == nil {
		b.send(sess.chatID, "Run research first.")
		return
	}
	if err := sess.wiz.NavigateTo(wizard.StepChooseIdea); err != nil {
		log.Printf("Navigate to idea list failed: %v", err)
		return
	}

	msg := tgbotapi.NewMessage(sess.chatID, formatIdeasMarkdown(strat))
	msg.ParseMode = "Markdown"
	var row []tgbotapi.InlineKeyboardButton
	for i := range strat.ContentIdeas {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(
			strconv.Itoa(i+1), fmt.Sprintf("idea|%d", i)))
	}
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(row...))
	b.api.Send(msg)
}

func (b *Bot) handleIdeaChosen(sess *session, arg string) {
	strat := sess.wiz.Strategy()
	if strat == nil {
		return
	}
	idx, err := strconv.Atoi(arg)
	if err != nil || idx < 0 || idx >= len(strat.ContentIdeas) {
		return
	}
	if err := sess.wiz.SelectIdea(strat.ContentIdeas[idx]); err != nil {
		log.Printf("Select idea failed: %v", err)
		return
	}
	if err := sess.wiz.NavigateTo(wizard.StepRecordVideo); err != nil {
		log.Printf("Navigate to record-video failed: %v", err)
		return
	}
	b.showRecordVideo(sess, strat.ContentIdeas[idx].Title)
}

func (b *Bot) showRecordVideo(sess *session, ideaTitle string) {
	msg := tgbotapi.NewMessage(sess.chatID,
		fmt.Sprintf("🎥 *%s*\n\nRecord your video for this idea. When you're done, I'll write the caption.", ideaTitle))
	msg.ParseMode = "Markdown"
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Done — write my caption", "advance"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔄 Swap idea", "regen"),
			tgbotapi.NewInlineKeyboardButtonData("💾 Save idea", "save_idea"),
		),
	)
	b.api.Send(msg)
}

func (b *Bot) runCaption(ctx context.Context, sess *session) {
	statusMsg := tgbotapi.NewMessage(sess.chatID, "✍️ *Writing your caption...*")
	statusMsg.ParseMode = "Markdown"
	sent, err := b.api.Send(statusMsg)
	if err != nil {
		log.Printf("Failed to send caption status: %v", err)
		return
	}

	if err := sess.wiz.AdvanceFromRecordVideo(ctx, ""); err != nil {
		log.Printf("Caption stage failed: %v", err)
		return
	}

	details := sess.wiz.PostDetails()
	if details == nil {
		return
	}
	edit := tgbotapi.NewEditMessageText(sess.chatID, sent.MessageID, formatPostMarkdown(details))
	edit.ParseMode = "Markdown"
	keyboard := postKeyboard()
	edit.ReplyMarkup = &keyboard
	b.api.Send(edit)
}

func (b *Bot) showPost(sess *session) {
	details := sess.wiz.PostDetails()
	if details == nil {
		return
	}
	msg := tgbotapi.NewMessage(sess.chatID, formatPostMarkdown(details))
	msg.ParseMode = "Markdown"
	msg.ReplyMarkup = postKeyboard()
	b.api.Send(msg)
}

func postKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✍️ Rewrite", "rewrite"),
			tgbotapi.NewInlineKeyboardButtonData("🏷 Reword title", "title"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("#️⃣ More hashtags", "tags"),
			tgbotapi.NewInlineKeyboardButtonData("🧭 Guide AI", "guide"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔁 Start over", "restart"),
		),
	)
}

func (b *Bot) runGuidance(ctx context.Context, sess *session, guidance string) {
	if err := sess.wiz.GuideAI(ctx, guidance); err != nil {
		log.Printf("Guided rewrite failed: %v", err)
		return
	}
	b.showPost(sess)
}

func (b *Bot) showPremium(sess *session) {
	var sb strings.Builder
	sb.WriteString("⭐ *Premium*\n\n")
	sb.WriteString("• Unlimited idea swaps and caption rewrites\n")
	sb.WriteString("• Unlimited hashtag research\n")
	sb.WriteString("• Priority generation\n")

	msg := tgbotapi.NewMessage(sess.chatID, sb.String())
	msg.ParseMode = "Markdown"
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "back_aux"),
		),
	)
	b.api.Send(msg)
}

// startHashtagResearch runs research with the profile niche when one exists,
// otherwise asks for it.
func (b *Bot) startHashtagResearch(ctx context.Context, sess *session) {
	if err := sess.wiz.NavigateTo(wizard.StepHashtagResearch); err != nil {
		log.Printf("Navigate to hashtag research failed: %v", err)
		return
	}
	prof := sess.wiz.Profile()
	if prof.Category != "" {
		b.runHashtagResearch(ctx, sess, prof.Category)
		return
	}
	sess.setPending(pendingHashtags)
	b.send(sess.chatID, "#️⃣ What niche should I research hashtags for?")
}

func (b *Bot) runHashtagResearch(ctx context.Context, sess *session, niche string) {
	if !sess.ledger.Check(quota.FeatureHashtagResearch).Allowed {
		return
	}

	platform := sess.wiz.Profile().Platform
	if platform == "" {
		platform = "instagram"
	}

	result, err := sess.hashtags.Research(ctx, niche, platform)
	if err != nil {
		log.Printf("Hashtag research failed: %v", err)
		b.send(sess.chatID, "❌ *Hashtag research didn't complete.* Try again.")
		return
	}
	sess.ledger.Increment(ctx, quota.FeatureHashtagResearch)

	msg := tgbotapi.NewMessage(sess.chatID, formatHashtagsMarkdown(result, nil))
	msg.ParseMode = "Markdown"
	msg.ReplyMarkup = hashtagKeyboard(result)
	b.api.Send(msg)
}

func (b *Bot) moreHashtags(ctx context.Context, sess *session, messageID int) {
	if _, err := sess.hashtags.GenerateMore(ctx); err != nil {
		log.Printf("Generate more hashtags failed: %v", err)
		b.send(sess.chatID, "❌ Couldn't fetch more hashtags right now.")
		return
	}
	b.refreshHashtags(sess, messageID)
}

func (b *Bot) refreshHashtags(sess *session, messageID int) {
	result := sess.hashtags.Result()
	if result == nil {
		return
	}
	edit := tgbotapi.NewEditMessageText(sess.chatID, messageID,
		formatHashtagsMarkdown(result, sess.hashtags.Selection()))
	edit.ParseMode = "Markdown"
	keyboard := hashtagKeyboard(result)
	edit.ReplyMarkup = &keyboard
	b.api.Send(edit)
}

func hashtagKeyboard(r *hashtag.Result) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for _, t := range r.Tags {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(t.Tag, "ht_tag|"+t.Tag))
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("➕ More", "ht_more"),
		tgbotapi.NewInlineKeyboardButtonData("✅ All", "ht_all"),
		tgbotapi.NewInlineKeyboardButtonData("🧹 None", "ht_clear"),
	))
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("📋 Copy selected", "ht_copy"),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (b *Bot) handleHistoryRequest(ctx context.Context, sess *session) {
	records, err := b.history.ListPosts(ctx, sess.userID, 10)
	if err != nil {
		log.Printf("Failed to list post history: %v", err)
		b.send(sess.chatID, "❌ Error fetching your history.")
		return
	}
	if len(records) == 0 {
		b.send(sess.chatID, "🗂 *Your History*\n\n_No posts yet_")
		return
	}

	var sb strings.Builder
	sb.WriteString("🗂 *Your History*\n\n")
	for _, r := range records {
		sb.WriteString(fmt.Sprintf("• *%s* — %s\n", r.Title, r.CreatedAt.Format("2006-01-02")))
	}
	b.send(sess.chatID, sb.String())
}

func (b *Bot) handleMetricsRequest(msg *tgbotapi.Message) {
	if msg.From.ID != b.cfg.TelegramAdminID {
		b.send(msg.Chat.ID, "⛔ *Access Denied*: Admin only.")
		return
	}
	b.handleMetricsCommand(msg.Chat.ID)
}

func (b *Bot) handleMetricsCommand(chatID int64) {
	usage, err := b.metricsStore.GetDailyUsage(7)
	if err != nil {
		b.send(chatID, "❌ Error fetching metrics.")
		return
	}

	health := metrics.GetSysHealth(b.cfg.DataDir)

	var sb strings.Builder
	sb.WriteString("📊 *Usage & Health Report*\n\n")

	sb.WriteString("🗓 *Recent LLM Activity*\n")
	if len(usage) == 0 {
		sb.WriteString("_No data yet_\n")
	}
	for _, d := range usage {
		sb.WriteString(fmt.Sprintf("• *%s*: %d tokens (%d execs)\n", d.Date, d.TotalPrompt+d.TotalCompletion, d.TotalExecution))
	}

	sb.WriteString("\n🧠 *System Health*\n")
	sb.WriteString(fmt.Sprintf("• RAM: %dMB (Alloc) / %dMB (Sys)\n", health.AllocMB, health.SysMB))
	sb.WriteString(fmt.Sprintf("• Goroutines: %d\n", health.Goroutines))
	sb.WriteString(fmt.Sprintf("• Uptime: %s\n", health.Uptime))
	sb.WriteString(fmt.Sprintf("• Disk Data: %s\n", health.DataDiskSize))

	b.send(chatID, sb.String())
}

func (b *Bot) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("Failed to send message: %v", err)
	}
}

// parseProfileForm reads "Key: value" lines into a profile. Unlabeled text
// becomes the name so a bare business name still works.
func parseProfileForm(text string) profile.Profile {
	var p profile.Profile
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			if p.Name == "" {
				p.Name = line
			}
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "name", "business":
			p.Name = value
		case "location", "city":
			p.Location = value
		case "category", "niche":
			p.Category = value
		case "platform":
			p.Platform = strings.ToLower(value)
		case "goals", "goal":
			p.CreatorGoals = value
		case "type":
			if strings.EqualFold(value, "creator") {
				p.ActorType = profile.ActorCreator
			} else {
				p.ActorType = profile.ActorBusiness
			}
		}
	}
	if p.ActorType == "" {
		p.ActorType = profile.ActorBusiness
	}
	return p
}
