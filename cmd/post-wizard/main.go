package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"ai-post-wizard/internal/config"
	"ai-post-wizard/internal/database"
	"ai-post-wizard/internal/generate"
	"ai-post-wizard/internal/hashtag"
	"ai-post-wizard/internal/history"
	"ai-post-wizard/internal/identity"
	"ai-post-wizard/internal/llm"
	"ai-post-wizard/internal/metrics"
	"ai-post-wizard/internal/profile"
	"ai-post-wizard/internal/quota"
	"ai-post-wizard/internal/wizard"
)

func main() {
	urlFlag := flag.String("url", "", "Import the profile from a website URL")
	nameFlag := flag.String("name", "", "Business or creator name")
	locationFlag := flag.String("location", "", "Location (city or region)")
	categoryFlag := flag.String("category", "", "Business category or niche")
	platformFlag := flag.String("platform", "instagram", "Target platform")
	goalsFlag := flag.String("goals", "", "Creator goals")
	typeFlag := flag.String("type", "business", "Profile type: business or creator")
	hashtagsFlag := flag.String("hashtags", "", "Run hashtag research for a niche and exit")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	geminiClient, err := llm.NewGeminiClient(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize Gemini client: %v", err)
	}
	defer geminiClient.Close()

	writerModel := llm.NewGroqClient(cfg, llm.ModelWriter, 0.7)

	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	historyRepo := history.NewRepository(db.SQL)
	metricsStore := metrics.NewStore(db.SQL)
	generator := generate.NewGenerator(geminiClient, writerModel, metricsStore)

	cache, err := quota.NewCacheStore(cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to open usage cache: %v", err)
	}

	notifier := &consoleNotifier{}
	ledger := quota.NewLedger(cache, historyRepo, quota.WithUpgradePrompter(notifier))
	ledger.LoadLocal()
	defer ledger.Flush(ctx)

	if *hashtagsFlag != "" {
		runHashtagResearch(ctx, generator, ledger, *hashtagsFlag, *platformFlag)
		return
	}

	wiz := wizard.New(generator, ledger, notifier,
		wizard.WithHistory(historyRepo),
		wizard.WithProgressSink(&consoleProgress{}),
	)

	// A session token attaches durable usage history to the run. Without
	// one, the persisted device id stands in so counters survive cache
	// expiry on the same install.
	if token := os.Getenv("POST_WIZARD_SESSION_TOKEN"); token != "" {
		actor, err := identity.ParseSessionToken(token, cfg.SessionTokenSecret)
		if err != nil {
			log.Fatalf("Invalid session token: %v", err)
		}
		if err := wiz.SignIn(ctx, actor); err != nil {
			log.Fatalf("Failed to sign in: %v", err)
		}
	} else if deviceID, err := quota.DeviceID(cfg.DataDir); err == nil {
		if err := wiz.SignIn(ctx, &identity.Actor{ID: "device:" + deviceID}); err != nil {
			log.Printf("Warning: failed to restore device usage history: %v", err)
		}
	}

	prof := profile.Profile{
		Name:         *nameFlag,
		Location:     *locationFlag,
		Category:     *categoryFlag,
		Platform:     *platformFlag,
		CreatorGoals: *goalsFlag,
		ActorType:    profile.ActorBusiness,
	}
	if strings.EqualFold(*typeFlag, "creator") {
		prof.ActorType = profile.ActorCreator
	}

	if *urlFlag != "" {
		imported, err := profile.NewImporter().FromURL(ctx, *urlFlag)
		if err != nil {
			log.Fatalf("Failed to import profile from %s: %v", *urlFlag, err)
		}
		prof = *imported
		if prof.Platform == "" {
			prof.Platform = *platformFlag
		}
		fmt.Printf("Imported profile: %s (%s)\n", prof.Name, prof.Category)
	}

	if err := wiz.SubmitProfile(ctx, prof); err != nil {
		os.Exit(1)
	}

	strat := wiz.Strategy()
	fmt.Println()
	fmt.Println("=== Content Strategy ===")
	if strat.HeadlineSummary != "" {
		fmt.Println(strat.HeadlineSummary)
		fmt.Println()
	}
	for _, p := range strat.KeyPrinciples {
		fmt.Printf("  * %s\n", p)
	}

	reader := bufio.NewScanner(os.Stdin)

	fmt.Println()
	fmt.Println("=== Content Ideas ===")
	for i, idea := range strat.ContentIdeas {
		fmt.Printf("  %d. %s — %s\n", i+1, idea.Title, idea.Description)
	}
	idx := promptIndex(reader, "Pick an idea", len(strat.ContentIdeas))
	if err := wiz.SelectIdea(strat.ContentIdeas[idx]); err != nil {
		log.Fatalf("Failed to select idea: %v", err)
	}
	if err := wiz.NavigateTo(wizard.StepChooseIdea); err == nil {
		_ = wiz.NavigateTo(wizard.StepRecordVideo)
	}

	fmt.Println()
	fmt.Print("Record your video, then press Enter to get your caption... ")
	reader.Scan()

	if err := wiz.AdvanceFromRecordVideo(ctx, ""); err != nil {
		log.Fatalf("Caption stage failed: %v", err)
	}
	printPost(wiz)

	for {
		fmt.Println()
		fmt.Println("[r]ewrite caption  [t]itle reword  [h]ashtags  [g]uide AI  [i]dea swap  [q]uit")
		fmt.Print("> ")
		if !reader.Scan() {
			return
		}
		switch strings.TrimSpace(reader.Text()) {
		case "r":
			if err := wiz.RewriteCaption(ctx, ""); err != nil {
				log.Printf("Rewrite failed: %v", err)
				continue
			}
			printPost(wiz)
		case "t":
			if err := wiz.RewordTitle(ctx); err != nil {
				log.Printf("Reword failed: %v", err)
				continue
			}
			printPost(wiz)
		case "h":
			if err := wiz.RequestMoreHashtags(ctx); err != nil {
				log.Printf("More hashtags failed: %v", err)
				continue
			}
			printPost(wiz)
		case "g":
			fmt.Print("How should the caption change? ")
			if !reader.Scan() {
				return
			}
			if err := wiz.GuideAI(ctx, reader.Text()); err != nil {
				log.Printf("Guidance failed: %v", err)
				continue
			}
			printPost(wiz)
		case "i":
			if err := wiz.RegenerateIdea(ctx); err != nil {
				log.Printf("Idea swap failed: %v", err)
				continue
			}
			if sel := wiz.SelectedIdea(); sel != nil {
				fmt.Printf("New idea: %s\n", sel.Title)
			}
		case "q":
			return
		}
	}
}

func printPost(wiz *wizard.Orchestrator) {
	details := wiz.PostDetails()
	if details == nil {
		return
	}
	fmt.Println()
	fmt.Println("=== Your Post ===")
	fmt.Printf("Title: %s\n\n", details.Title)
	fmt.Println(details.Caption)
	if len(details.Hashtags) > 0 {
		fmt.Println()
		fmt.Println(strings.Join(details.Hashtags, " "))
	}
	if details.PostingTime != "" {
		fmt.Printf("\nBest time to post: %s\n", details.PostingTime)
	}
}

func promptIndex(reader *bufio.Scanner, label string, n int) int {
	for {
		fmt.Printf("%s [1-%d]: ", label, n)
		if !reader.Scan() {
			os.Exit(0)
		}
		idx, err := strconv.Atoi(strings.TrimSpace(reader.Text()))
		if err == nil && idx >= 1 && idx <= n {
			return idx - 1
		}
	}
}

func runHashtagResearch(ctx context.Context, generator *generate.Generator, ledger *quota.Ledger, niche, platform string) {
	if !ledger.Check(quota.FeatureHashtagResearch).Allowed {
		return
	}

	engine := hashtag.NewEngine(generator)
	result, err := engine.Research(ctx, niche, platform)
	if err != nil {
		log.Fatalf("Hashtag research failed: %v", err)
	}
	ledger.Increment(ctx, quota.FeatureHashtagResearch)

	fmt.Printf("=== Hashtags for %s on %s ===\n", result.Niche, result.Platform)
	for _, t := range result.Tags {
		display := hashtag.DisplayScore(t.Score)
		fmt.Printf("  %-24s %3d  %s\n", t.Tag, display, hashtag.Band(display))
	}
}

// consoleNotifier prints wizard notifications to stdout.
type consoleNotifier struct{}

func (consoleNotifier) Info(message string)  { fmt.Println("[!] " + message) }
func (consoleNotifier) Toast(message string) { fmt.Println(message) }
func (consoleNotifier) Error(message string) { fmt.Println("ERROR: " + message) }
func (consoleNotifier) PromptUpgrade(feature quota.Feature) {
	fmt.Println("You've hit the free limit for this action. Upgrade for unlimited use.")
}

// consoleProgress renders simulated research progress on one line.
type consoleProgress struct{}

func (consoleProgress) Progress(percent int, message string) {
	fmt.Printf("\rResearching... %3d%%", percent)
	if percent == 100 {
		fmt.Println()
	}
}
