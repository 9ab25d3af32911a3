package wizard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"ai-post-wizard/internal/generate"
	"ai-post-wizard/internal/identity"
	"ai-post-wizard/internal/post"
	"ai-post-wizard/internal/profile"
	"ai-post-wizard/internal/quota"
	"ai-post-wizard/internal/strategy"
)

// ErrInvalidTransition is returned for a navigation the step graph forbids.
var ErrInvalidTransition = errors.New("invalid step transition")

// Config holds the orchestrator's timing knobs. The defaults match the
// production feel; tests shrink them.
type Config struct {
	// CaptionTimeout bounds the caption generation call. The research call
	// deliberately has no timeout: its policy is fail-hard, never fall back.
	CaptionTimeout time.Duration
	// SettleDelay is the minimum time the caption loading surface stays up,
	// so the perceived pipeline is never shorter than the animation.
	SettleDelay time.Duration
	// AdvanceDelay is the pause between research completing and the step
	// advancing to principles.
	AdvanceDelay time.Duration
	// ProgressInterval is the simulated progress tick cadence.
	ProgressInterval time.Duration
}

// DefaultConfig returns the production timing.
func DefaultConfig() Config {
	return Config{
		CaptionTimeout:   15 * time.Second,
		SettleDelay:      6 * time.Second,
		AdvanceDelay:     1200 * time.Millisecond,
		ProgressInterval: 180 * time.Millisecond,
	}
}

// HistoryStore persists pipeline artifacts when an identity exists.
type HistoryStore interface {
	SavePost(ctx context.Context, identityID string, d post.Details) error
	SaveProfile(ctx context.Context, identityID string, p profile.Profile) error
	SaveIdea(ctx context.Context, identityID string, idea strategy.ContentIdea) error
	SaveWorkflowSnapshot(ctx context.Context, identityID string, snapshot any) error
}

// Snapshot is the write-only workflow record sent to the durable store. It
// is never read back: sessions always restart at the form.
type Snapshot struct {
	Step         Step            `json:"step"`
	Profile      profile.Profile `json:"profile"`
	SelectedIdea string          `json:"selected_idea,omitempty"`
	HasStrategy  bool            `json:"has_strategy"`
}

// Orchestrator sequences the generation pipeline: it owns the active step,
// enforces prerequisites before each transition, runs the asynchronous
// stages and consults the quota ledger before every gated action.
type Orchestrator struct {
	cfg      Config
	gen      generate.Client
	ledger   *quota.Ledger
	notifier Notifier
	sink     ProgressSink
	history  HistoryStore

	signOutFn func(ctx context.Context) error

	// signingOut is the single-flight guard for sign-out. It must be a
	// synchronous flag checked-and-set before any awaited work: a duplicate
	// sign-out would double-trigger irreversible session teardown.
	signingOut atomic.Bool

	mu       sync.Mutex
	step     Step
	prevStep Step
	actor    *identity.Actor
	prof     profile.Profile
	strat    *strategy.Strategy
	selected *strategy.ContentIdea
	details  *post.Details
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConfig overrides the timing defaults.
func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) { o.cfg = cfg }
}

// WithHistory attaches the durable history store.
func WithHistory(h HistoryStore) Option {
	return func(o *Orchestrator) { o.history = h }
}

// WithProgressSink attaches the simulated-progress receiver.
func WithProgressSink(s ProgressSink) Option {
	return func(o *Orchestrator) { o.sink = s }
}

// WithSignOut attaches the external session-teardown call.
func WithSignOut(fn func(ctx context.Context) error) Option {
	return func(o *Orchestrator) { o.signOutFn = fn }
}

// New creates an Orchestrator at the form step.
func New(gen generate.Client, ledger *quota.Ledger, notifier Notifier, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:      DefaultConfig(),
		gen:      gen,
		ledger:   ledger,
		notifier: notifier,
		step:     StepForm,
		prevStep: StepForm,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Step returns the active step.
func (o *Orchestrator) Step() Step {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.step
}

// Profile returns the current profile.
func (o *Orchestrator) Profile() profile.Profile {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.prof
}

// Strategy returns the current strategy, or nil before research succeeds.
func (o *Orchestrator) Strategy() *strategy.Strategy {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.strat == nil {
		return nil
	}
	cp := *o.strat
	return &cp
}

// SelectedIdea returns the selected idea, or nil.
func (o *Orchestrator) SelectedIdea() *strategy.ContentIdea {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.selected == nil {
		return nil
	}
	cp := *o.selected
	return &cp
}

// PostDetails returns the current post details, or nil.
func (o *Orchestrator) PostDetails() *post.Details {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.details == nil {
		return nil
	}
	cp := *o.details
	return &cp
}

// SignIn attaches an identity. Usage counters are restored from the durable
// store; the wizard step is not, by design.
func (o *Orchestrator) SignIn(ctx context.Context, actor *identity.Actor) error {
	if err := o.ledger.SetActor(ctx, actor); err != nil {
		return fmt.Errorf("failed to restore usage counters: %w", err)
	}
	o.mu.Lock()
	o.actor = actor
	o.mu.Unlock()
	return nil
}

// SignOut tears the session down. The atomic guard makes a rapid double
// invocation a no-op rather than a double teardown.
func (o *Orchestrator) SignOut(ctx context.Context) error {
	if !o.signingOut.CompareAndSwap(false, true) {
		return nil
	}
	defer o.signingOut.Store(false)

	o.ledger.Flush(ctx)

	if o.signOutFn != nil {
		if err := o.signOutFn(ctx); err != nil {
			return fmt.Errorf("session teardown failed: %w", err)
		}
	}

	o.ledger.ClearActor()
	o.mu.Lock()
	o.actor = nil
	o.mu.Unlock()
	return nil
}

// StartOver resets all content state and usage counters and returns to the
// form. This is the only explicit counter reset in the system.
func (o *Orchestrator) StartOver(ctx context.Context) {
	o.ledger.Reset(ctx)

	o.mu.Lock()
	o.step = StepForm
	o.prevStep = StepForm
	o.prof = profile.Profile{}
	o.strat = nil
	o.selected = nil
	o.details = nil
	o.mu.Unlock()
}

// SubmitProfile validates the profile and runs the research stage. Research
// failure is fatal: the step returns to the form and no placeholder strategy
// is ever substituted.
func (o *Orchestrator) SubmitProfile(ctx context.Context, p profile.Profile) error {
	if err := p.Validate(); err != nil {
		o.notifier.Info("Please fill in your name and location before continuing.")
		return err
	}

	o.mu.Lock()
	if !CanTransition(o.step, StepResearching) {
		o.mu.Unlock()
		return ErrInvalidTransition
	}
	o.prof = p
	o.step = StepResearching
	o.mu.Unlock()

	sim := startSimulator(o.sink, o.cfg.ProgressInterval)

	resp, err := o.gen.Research(ctx, generate.ResearchRequest{Profile: p})
	if err != nil {
		sim.abort()
		o.mu.Lock()
		o.step = StepForm
		o.mu.Unlock()
		o.notifier.Error("Research failed. Please try again.")
		return fmt.Errorf("research stage failed: %w", err)
	}
	sim.finish()

	o.mu.Lock()
	o.prof.ApplyDetectedCategory(resp.DetectedCategory)
	o.setStrategyLocked(resp.Strategy)
	o.mu.Unlock()

	o.persistProfile(ctx)
	o.sleep(ctx, o.cfg.AdvanceDelay)

	o.mu.Lock()
	o.step = StepPrinciples
	o.mu.Unlock()
	o.saveSnapshot(ctx)
	return nil
}

// setStrategyLocked replaces the strategy wholesale and clears a selection
// whose idea is no longer present in the new list.
func (o *Orchestrator) setStrategyLocked(s strategy.Strategy) {
	o.strat = &s
	if o.selected != nil && !s.ContainsIdea(o.selected.Title) {
		o.selected = nil
	}
}

// SelectIdea stores the idea as the selection. It is idempotent and rejects
// ideas outside the current strategy.
func (o *Orchestrator) SelectIdea(idea strategy.ContentIdea) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.strat == nil || !o.strat.ContainsIdea(idea.Title) {
		return fmt.Errorf("idea %q is not in the current strategy", idea.Title)
	}
	o.selected = &idea
	return nil
}

// NavigateTo moves along the step graph. Auxiliary steps are reachable from
// anywhere; entering record-video requires a selected idea.
func (o *Orchestrator) NavigateTo(to Step) error {
	o.mu.Lock()
	if !CanTransition(o.step, to) {
		from := o.step
		o.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if to == StepRecordVideo && o.selected == nil {
		o.mu.Unlock()
		o.notifier.Info("Pick a content idea first.")
		return nil
	}
	if IsAuxiliary(to) && !IsAuxiliary(o.step) {
		o.prevStep = o.step
	}
	o.step = to
	o.mu.Unlock()
	return nil
}

// ReturnFromAuxiliary leaves premium/history/businesses/hashtag-research and
// restores the previous functional step.
func (o *Orchestrator) ReturnFromAuxiliary() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !IsAuxiliary(o.step) {
		return
	}
	o.step = o.prevStep
}

// AdvanceFromRecordVideo runs the caption stage. Its policy is the opposite
// of research: any failure or timeout falls back to the deterministic local
// generator, and the step always reaches post-details. The loading surface
// is shown for at least SettleDelay.
func (o *Orchestrator) AdvanceFromRecordVideo(ctx context.Context, guidance string) error {
	o.mu.Lock()
	if o.strat == nil || o.selected == nil {
		o.mu.Unlock()
		o.notifier.Info("Pick a content idea first.")
		return nil
	}
	if !CanTransition(o.step, StepGeneratingCaption) {
		o.mu.Unlock()
		return ErrInvalidTransition
	}
	prof := o.prof
	idea := *o.selected
	postingTime := o.strat.BestPostingTime()
	o.step = StepGeneratingCaption
	o.mu.Unlock()

	shownAt := time.Now()

	cctx, cancel := context.WithTimeout(ctx, o.cfg.CaptionTimeout)
	caption, err := o.gen.Caption(cctx, generate.CaptionRequest{
		Profile:  prof,
		Idea:     idea,
		Guidance: guidance,
	})
	cancel()

	var details post.Details
	if err != nil {
		log.Printf("caption generation failed, using local fallback: %v", err)
		details = post.Fallback(prof, idea)
		details.PostingTime = postingTime
		o.notifier.Toast("We drafted a caption locally — feel free to rewrite it.")
	} else {
		details = post.Details{
			Title:       post.DeriveTitle(idea),
			Caption:     caption,
			Hashtags:    post.DeriveHashtags(prof),
			PostingTime: postingTime,
		}
	}

	if remaining := o.cfg.SettleDelay - time.Since(shownAt); remaining > 0 {
		o.sleep(ctx, remaining)
	}

	o.mu.Lock()
	o.details = &details
	o.step = StepPostDetails
	o.mu.Unlock()

	o.persistPost(ctx)
	o.saveSnapshot(ctx)
	return nil
}

// RegenerateIdea swaps the selection for another idea from the current
// strategy, excluding the one already selected. Gated.
func (o *Orchestrator) RegenerateIdea(ctx context.Context) error {
	if !o.ledger.Check(quota.FeatureRegenerateIdea).Allowed {
		return nil
	}

	o.mu.Lock()
	if o.strat == nil || o.selected == nil {
		o.mu.Unlock()
		o.notifier.Info("Pick a content idea first.")
		return nil
	}
	alt, err := o.strat.PickAlternative(o.selected.Title)
	if err != nil {
		o.mu.Unlock()
		o.notifier.Toast("No other ideas to swap in — run research again for a fresh set.")
		return nil
	}
	o.selected = &alt
	o.mu.Unlock()

	o.ledger.Increment(ctx, quota.FeatureRegenerateIdea)
	o.saveSnapshot(ctx)
	return nil
}

// RewriteCaption regenerates the caption body, preserving the trailing
// hashtag block. Gated; on failure the action is simply not applied.
func (o *Orchestrator) RewriteCaption(ctx context.Context, guidance string) error {
	if !o.ledger.Check(quota.FeatureRewriteCaption).Allowed {
		return nil
	}

	o.mu.Lock()
	if o.details == nil || o.selected == nil {
		o.mu.Unlock()
		return fmt.Errorf("no post to rewrite yet")
	}
	prof := o.prof
	idea := *o.selected
	body, tags := post.SplitCaption(o.details.Caption)
	o.mu.Unlock()

	caption, err := o.gen.Caption(ctx, generate.CaptionRequest{
		Profile:        prof,
		Idea:           idea,
		Guidance:       guidance,
		CurrentCaption: body,
	})
	if err != nil {
		log.Printf("caption rewrite failed: %v", err)
		o.notifier.Toast("Couldn't rewrite the caption right now — kept the current one.")
		return nil
	}

	o.mu.Lock()
	if o.details != nil {
		o.details.Caption = post.JoinCaption(caption, tags)
	}
	o.mu.Unlock()

	o.ledger.Increment(ctx, quota.FeatureRewriteCaption)
	o.persistPost(ctx)
	return nil
}

// GuideAI re-runs caption generation with explicit user guidance. Gated
// separately from plain rewrites.
func (o *Orchestrator) GuideAI(ctx context.Context, guidance string) error {
	if !o.ledger.Check(quota.FeatureGuideAI).Allowed {
		return nil
	}

	o.mu.Lock()
	if o.details == nil || o.selected == nil {
		o.mu.Unlock()
		return fmt.Errorf("no post to guide yet")
	}
	prof := o.prof
	idea := *o.selected
	body, tags := post.SplitCaption(o.details.Caption)
	o.mu.Unlock()

	caption, err := o.gen.Caption(ctx, generate.CaptionRequest{
		Profile:        prof,
		Idea:           idea,
		Guidance:       guidance,
		CurrentCaption: body,
	})
	if err != nil {
		log.Printf("guided caption failed: %v", err)
		o.notifier.Toast("Couldn't apply your guidance right now — kept the current caption.")
		return nil
	}

	o.mu.Lock()
	if o.details != nil {
		o.details.Caption = post.JoinCaption(caption, tags)
	}
	o.mu.Unlock()

	o.ledger.Increment(ctx, quota.FeatureGuideAI)
	o.persistPost(ctx)
	return nil
}

// RewordTitle regenerates the post title. Gated; on failure the action is
// simply not applied.
func (o *Orchestrator) RewordTitle(ctx context.Context) error {
	if !o.ledger.Check(quota.FeatureRewordTitle).Allowed {
		return nil
	}

	o.mu.Lock()
	if o.details == nil || o.selected == nil {
		o.mu.Unlock()
		return fmt.Errorf("no post to reword yet")
	}
	prof := o.prof
	idea := *o.selected
	current := o.details.Title
	o.mu.Unlock()

	title, err := o.gen.Title(ctx, generate.TitleRequest{
		Profile:      prof,
		Idea:         idea,
		CurrentTitle: current,
	})
	if err != nil {
		log.Printf("title reword failed: %v", err)
		o.notifier.Toast("Couldn't reword the title right now — kept the current one.")
		return nil
	}

	o.mu.Lock()
	if o.details != nil {
		o.details.Title = title
	}
	o.mu.Unlock()

	o.ledger.Increment(ctx, quota.FeatureRewordTitle)
	o.persistPost(ctx)
	return nil
}

// RequestMoreHashtags splits the caption at the conventional blank-line
// boundary, asks for new tags seeded with the existing set, merges with
// case-insensitive first-wins dedup and rewrites the caption. Gated.
func (o *Orchestrator) RequestMoreHashtags(ctx context.Context) error {
	if !o.ledger.Check(quota.FeatureMoreHashtags).Allowed {
		return nil
	}

	o.mu.Lock()
	if o.details == nil {
		o.mu.Unlock()
		return fmt.Errorf("no post to extend yet")
	}
	prof := o.prof
	body, existing := post.SplitCaption(o.details.Caption)
	if len(existing) == 0 && len(o.details.Hashtags) > 0 {
		existing = o.details.Hashtags
	}
	o.mu.Unlock()

	niche := prof.Category
	if niche == "" {
		niche = prof.Name
	}
	scored, err := o.gen.Hashtags(ctx, generate.HashtagRequest{
		Niche:        niche,
		Platform:     prof.Platform,
		Batch:        0,
		ExistingTags: existing,
	})
	if err != nil {
		log.Printf("hashtag generation failed: %v", err)
		o.notifier.Toast("Couldn't fetch more hashtags right now.")
		return nil
	}

	incoming := make([]string, len(scored))
	for i, s := range scored {
		incoming[i] = s.Tag
	}
	merged := post.MergeTags(existing, incoming)

	o.mu.Lock()
	if o.details != nil {
		o.details.Caption = post.JoinCaption(body, merged)
		// The tags live in the caption from here on.
		o.details.Hashtags = nil
	}
	o.mu.Unlock()

	o.ledger.Increment(ctx, quota.FeatureMoreHashtags)
	o.persistPost(ctx)
	return nil
}

// SaveCurrentIdea appends the selected idea to history.
func (o *Orchestrator) SaveCurrentIdea(ctx context.Context) error {
	o.mu.Lock()
	actor := o.actor
	idea := o.selected
	o.mu.Unlock()

	if idea == nil {
		return fmt.Errorf("no idea selected")
	}
	if actor.Anonymous() || o.history == nil {
		return nil
	}
	return o.history.SaveIdea(ctx, actor.ID, *idea)
}

func (o *Orchestrator) persistPost(ctx context.Context) {
	o.mu.Lock()
	actor := o.actor
	details := o.details
	o.mu.Unlock()

	if actor.Anonymous() || o.history == nil || details == nil {
		return
	}
	if err := o.history.SavePost(ctx, actor.ID, *details); err != nil {
		log.Printf("Warning: failed to persist post to history: %v", err)
	}
}

func (o *Orchestrator) persistProfile(ctx context.Context) {
	o.mu.Lock()
	actor := o.actor
	prof := o.prof
	o.mu.Unlock()

	if actor.Anonymous() || o.history == nil {
		return
	}
	if err := o.history.SaveProfile(ctx, actor.ID, prof); err != nil {
		log.Printf("Warning: failed to persist profile to history: %v", err)
	}
}

func (o *Orchestrator) saveSnapshot(ctx context.Context) {
	o.mu.Lock()
	actor := o.actor
	snap := Snapshot{
		Step:        o.step,
		Profile:     o.prof,
		HasStrategy: o.strat != nil,
	}
	if o.selected != nil {
		snap.SelectedIdea = o.selected.Title
	}
	o.mu.Unlock()

	if actor.Anonymous() || o.history == nil {
		return
	}
	if err := o.history.SaveWorkflowSnapshot(ctx, actor.ID, snap); err != nil {
		log.Printf("Warning: failed to persist workflow snapshot: %v", err)
	}
}

// sleep waits for d or until the context is done, whichever comes first.
func (o *Orchestrator) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
