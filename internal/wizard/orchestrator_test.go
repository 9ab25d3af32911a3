package wizard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-post-wizard/internal/generate"
	"ai-post-wizard/internal/hashtag"
	"ai-post-wizard/internal/identity"
	"ai-post-wizard/internal/post"
	"ai-post-wizard/internal/profile"
	"ai-post-wizard/internal/quota"
	"ai-post-wizard/internal/strategy"
)

type fakeClient struct {
	mu sync.Mutex

	researchResp *generate.ResearchResponse
	researchErr  error

	caption      string
	captionErr   error
	captionDelay time.Duration
	captionCalls int

	title    string
	titleErr error

	tags       []hashtag.ScoredTag
	hashtagErr error

	lastCaptionReq generate.CaptionRequest
}

func (f *fakeClient) Research(ctx context.Context, req generate.ResearchRequest) (*generate.ResearchResponse, error) {
	if f.researchErr != nil {
		return nil, f.researchErr
	}
	return f.researchResp, nil
}

func (f *fakeClient) Caption(ctx context.Context, req generate.CaptionRequest) (string, error) {
	f.mu.Lock()
	f.captionCalls++
	f.lastCaptionReq = req
	delay := f.captionDelay
	captionErr := f.captionErr
	caption := f.caption
	f.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if captionErr != nil {
		return "", captionErr
	}
	return caption, nil
}

func (f *fakeClient) Hashtags(ctx context.Context, req generate.HashtagRequest) ([]hashtag.ScoredTag, error) {
	if f.hashtagErr != nil {
		return nil, f.hashtagErr
	}
	return f.tags, nil
}

func (f *fakeClient) Title(ctx context.Context, req generate.TitleRequest) (string, error) {
	if f.titleErr != nil {
		return "", f.titleErr
	}
	return f.title, nil
}

type fakeNotifier struct {
	mu      sync.Mutex
	infos   []string
	toasts  []string
	errs    []string
	prompts []quota.Feature
}

func (n *fakeNotifier) Info(msg string)  { n.mu.Lock(); n.infos = append(n.infos, msg); n.mu.Unlock() }
func (n *fakeNotifier) Toast(msg string) { n.mu.Lock(); n.toasts = append(n.toasts, msg); n.mu.Unlock() }
func (n *fakeNotifier) Error(msg string) { n.mu.Lock(); n.errs = append(n.errs, msg); n.mu.Unlock() }
func (n *fakeNotifier) PromptUpgrade(f quota.Feature) {
	n.mu.Lock()
	n.prompts = append(n.prompts, f)
	n.mu.Unlock()
}

type fakeHistory struct {
	mu        sync.Mutex
	posts     []post.Details
	profiles  []profile.Profile
	ideas     []strategy.ContentIdea
	snapshots []any
}

func (h *fakeHistory) SavePost(ctx context.Context, id string, d post.Details) error {
	h.mu.Lock()
	h.posts = append(h.posts, d)
	h.mu.Unlock()
	return nil
}

func (h *fakeHistory) SaveProfile(ctx context.Context, id string, p profile.Profile) error {
	h.mu.Lock()
	h.profiles = append(h.profiles, p)
	h.mu.Unlock()
	return nil
}

func (h *fakeHistory) SaveIdea(ctx context.Context, id string, idea strategy.ContentIdea) error {
	h.mu.Lock()
	h.ideas = append(h.ideas, idea)
	h.mu.Unlock()
	return nil
}

func (h *fakeHistory) SaveWorkflowSnapshot(ctx context.Context, id string, s any) error {
	h.mu.Lock()
	h.snapshots = append(h.snapshots, s)
	h.mu.Unlock()
	return nil
}

type memStore struct {
	mu       sync.Mutex
	counters map[string]map[string]int
}

func newMemStore() *memStore {
	return &memStore{counters: make(map[string]map[string]int)}
}

func (s *memStore) LoadCounters(ctx context.Context, id string) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.counters[id]))
	for k, v := range s.counters[id] {
		out[k] = v
	}
	return out, nil
}

func (s *memStore) SaveCounters(ctx context.Context, id string, counters map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[id] = counters
	return nil
}

type recordingSink struct {
	mu       sync.Mutex
	percents []int
}

func (r *recordingSink) Progress(percent int, message string) {
	r.mu.Lock()
	r.percents = append(r.percents, percent)
	r.mu.Unlock()
}

func testStrategy() strategy.Strategy {
	return strategy.Strategy{
		HeadlineSummary: "Coffee content that converts",
		KeyPrinciples:   []string{"Show the process", "Post at peak hours"},
		ContentIdeas: []strategy.ContentIdea{
			{Title: "Latte art timelapse", Description: "30s pour", Angle: "craft"},
			{Title: "Meet the roaster", Description: "behind the scenes", Angle: "people"},
			{Title: "Bean origin story", Description: "farm to cup", Angle: "story"},
		},
		PostingTimes: []string{"Tue 9am", "Sat 11am"},
	}
}

func testProfile() profile.Profile {
	return profile.Profile{
		Name:      "Beanhaus",
		Category:  "coffee shop",
		Location:  "Lisbon",
		Platform:  "instagram",
		ActorType: profile.ActorBusiness,
	}
}

func fastConfig() Config {
	return Config{
		CaptionTimeout:   50 * time.Millisecond,
		SettleDelay:      time.Millisecond,
		AdvanceDelay:     time.Millisecond,
		ProgressInterval: time.Millisecond,
	}
}

func newTestLedger(t *testing.T, notifier *fakeNotifier) *quota.Ledger {
	t.Helper()
	cache, err := quota.NewCacheStore(t.TempDir())
	require.NoError(t, err)
	ledger := quota.NewLedger(cache, newMemStore(),
		quota.WithUpgradePrompter(notifier),
		quota.WithSaveDelay(time.Millisecond),
	)
	ledger.LoadLocal()
	return ledger
}

func newTestOrchestrator(t *testing.T, gen generate.Client) (*Orchestrator, *fakeNotifier, *fakeHistory) {
	t.Helper()
	notifier := &fakeNotifier{}
	history := &fakeHistory{}
	o := New(gen, newTestLedger(t, notifier), notifier,
		WithConfig(fastConfig()),
		WithHistory(history),
	)
	return o, notifier, history
}

// runToPostDetails drives the pipeline through research, selection and
// caption generation.
func runToPostDetails(t *testing.T, o *Orchestrator, gen *fakeClient) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, o.SubmitProfile(ctx, testProfile()))
	require.NoError(t, o.NavigateTo(StepChooseIdea))
	require.NoError(t, o.SelectIdea(gen.researchResp.Strategy.ContentIdeas[0]))
	require.NoError(t, o.NavigateTo(StepRecordVideo))
	require.NoError(t, o.AdvanceFromRecordVideo(ctx, ""))
	require.Equal(t, StepPostDetails, o.Step())
}

func TestSubmitProfileValidation(t *testing.T) {
	gen := &fakeClient{researchResp: &generate.ResearchResponse{Strategy: testStrategy()}}
	o, notifier, _ := newTestOrchestrator(t, gen)

	err := o.SubmitProfile(context.Background(), profile.Profile{Name: "Beanhaus"})

	var verr *profile.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, StepForm, o.Step())
	assert.Len(t, notifier.infos, 1)
}

func TestResearchFailureReturnsToFormWithoutStrategy(t *testing.T) {
	gen := &fakeClient{researchErr: errors.New("upstream 503")}
	o, notifier, _ := newTestOrchestrator(t, gen)

	err := o.SubmitProfile(context.Background(), testProfile())

	require.Error(t, err)
	assert.Equal(t, StepForm, o.Step())
	assert.Nil(t, o.Strategy(), "a failed research must never leave a placeholder strategy")
	assert.Len(t, notifier.errs, 1)
}

func TestResearchSuccessAdvancesToPrinciples(t *testing.T) {
	gen := &fakeClient{researchResp: &generate.ResearchResponse{
		Strategy:         testStrategy(),
		DetectedCategory: "specialty coffee",
	}}
	sink := &recordingSink{}
	notifier := &fakeNotifier{}
	o := New(gen, newTestLedger(t, notifier), notifier,
		WithConfig(fastConfig()),
		WithProgressSink(sink),
	)

	require.NoError(t, o.SubmitProfile(context.Background(), testProfile()))

	assert.Equal(t, StepPrinciples, o.Step())
	require.NotNil(t, o.Strategy())
	assert.Equal(t, "specialty coffee", o.Profile().Category)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.NotEmpty(t, sink.percents)
	assert.Equal(t, 100, sink.percents[len(sink.percents)-1])
	for _, p := range sink.percents[:len(sink.percents)-1] {
		assert.LessOrEqual(t, p, 95)
	}
}

func TestProgressNeverCompletesOnFailure(t *testing.T) {
	gen := &fakeClient{researchErr: errors.New("boom")}
	sink := &recordingSink{}
	notifier := &fakeNotifier{}
	o := New(gen, newTestLedger(t, notifier), notifier,
		WithConfig(fastConfig()),
		WithProgressSink(sink),
	)

	require.Error(t, o.SubmitProfile(context.Background(), testProfile()))

	sink.mu.Lock()
	defer sink.mu.Unlock()
	for _, p := range sink.percents {
		assert.LessOrEqual(t, p, 95)
	}
}

func TestStrategyReplacementClearsStaleSelection(t *testing.T) {
	gen := &fakeClient{researchResp: &generate.ResearchResponse{Strategy: testStrategy()}}
	o, _, _ := newTestOrchestrator(t, gen)
	ctx := context.Background()

	require.NoError(t, o.SubmitProfile(ctx, testProfile()))
	require.NoError(t, o.SelectIdea(gen.researchResp.Strategy.ContentIdeas[0]))
	require.NotNil(t, o.SelectedIdea())

	// A fresh strategy keeps the selection only while its idea survives.
	kept := testStrategy()
	o.mu.Lock()
	o.setStrategyLocked(kept)
	o.mu.Unlock()
	require.NotNil(t, o.SelectedIdea())

	o.mu.Lock()
	o.setStrategyLocked(strategy.Strategy{
		HeadlineSummary: "New direction",
		ContentIdeas: []strategy.ContentIdea{
			{Title: "Totally new idea", Description: "x", Angle: "y"},
		},
	})
	o.mu.Unlock()

	assert.Nil(t, o.SelectedIdea())
}

func TestSelectIdeaRejectsUnknownIdea(t *testing.T) {
	gen := &fakeClient{researchResp: &generate.ResearchResponse{Strategy: testStrategy()}}
	o, _, _ := newTestOrchestrator(t, gen)

	require.NoError(t, o.SubmitProfile(context.Background(), testProfile()))
	err := o.SelectIdea(strategy.ContentIdea{Title: "Not in the list"})
	require.Error(t, err)
}

func TestAdvanceRequiresSelectedIdea(t *testing.T) {
	gen := &fakeClient{researchResp: &generate.ResearchResponse{Strategy: testStrategy()}}
	o, notifier, _ := newTestOrchestrator(t, gen)
	ctx := context.Background()

	require.NoError(t, o.SubmitProfile(ctx, testProfile()))
	require.NoError(t, o.NavigateTo(StepChooseIdea))

	require.NoError(t, o.AdvanceFromRecordVideo(ctx, ""))
	assert.Equal(t, StepChooseIdea, o.Step())
	assert.NotEmpty(t, notifier.infos)
}

func TestCaptionSuccessReachesPostDetails(t *testing.T) {
	gen := &fakeClient{
		researchResp: &generate.ResearchResponse{Strategy: testStrategy()},
		caption:      "Watch this pour come together.",
	}
	o, _, _ := newTestOrchestrator(t, gen)
	runToPostDetails(t, o, gen)

	details := o.PostDetails()
	require.NotNil(t, details)
	assert.Equal(t, "Watch this pour come together.", details.Caption)
	assert.Equal(t, "Latte art timelapse", details.Title)
	assert.Equal(t, "Tue 9am", details.PostingTime)
	assert.NotEmpty(t, details.Hashtags)
}

func TestCaptionFailureFallsBackLocally(t *testing.T) {
	gen := &fakeClient{
		researchResp: &generate.ResearchResponse{Strategy: testStrategy()},
		captionErr:   errors.New("model unavailable"),
	}
	o, notifier, _ := newTestOrchestrator(t, gen)
	runToPostDetails(t, o, gen)

	details := o.PostDetails()
	require.NotNil(t, details)
	assert.NotEmpty(t, details.Caption, "fallback caption must never be empty")
	assert.NotEmpty(t, notifier.toasts)
	assert.Empty(t, notifier.errs, "caption failure is soft, never a blocking error")
}

func TestCaptionTimeoutFallsBackLocally(t *testing.T) {
	gen := &fakeClient{
		researchResp: &generate.ResearchResponse{Strategy: testStrategy()},
		caption:      "too late",
		captionDelay: time.Second,
	}
	o, notifier, _ := newTestOrchestrator(t, gen)
	runToPostDetails(t, o, gen)

	details := o.PostDetails()
	require.NotNil(t, details)
	assert.NotEqual(t, "too late", details.Caption)
	assert.NotEmpty(t, details.Caption)
	assert.NotEmpty(t, notifier.toasts)
}

func TestRegenerateIdeaSwapsSelection(t *testing.T) {
	gen := &fakeClient{
		researchResp: &generate.ResearchResponse{Strategy: testStrategy()},
		caption:      "ok",
	}
	o, _, _ := newTestOrchestrator(t, gen)
	ctx := context.Background()

	require.NoError(t, o.SubmitProfile(ctx, testProfile()))
	require.NoError(t, o.SelectIdea(gen.researchResp.Strategy.ContentIdeas[0]))

	require.NoError(t, o.RegenerateIdea(ctx))

	sel := o.SelectedIdea()
	require.NotNil(t, sel)
	assert.NotEqual(t, "Latte art timelapse", sel.Title)
}

func TestGatedActionDeniesAfterThreshold(t *testing.T) {
	gen := &fakeClient{
		researchResp: &generate.ResearchResponse{Strategy: testStrategy()},
	}
	o, notifier, _ := newTestOrchestrator(t, gen)
	ctx := context.Background()

	require.NoError(t, o.SubmitProfile(ctx, testProfile()))
	require.NoError(t, o.SelectIdea(gen.researchResp.Strategy.ContentIdeas[0]))

	threshold := quota.Threshold(quota.FeatureRegenerateIdea)
	for i := 0; i < threshold; i++ {
		require.NoError(t, o.RegenerateIdea(ctx))
	}
	assert.Empty(t, notifier.prompts)

	before := o.SelectedIdea()
	require.NoError(t, o.RegenerateIdea(ctx), "denial is a side effect, not an error")

	require.Len(t, notifier.prompts, 1)
	assert.Equal(t, quota.FeatureRegenerateIdea, notifier.prompts[0])
	assert.Equal(t, before.Title, o.SelectedIdea().Title, "a denied action must not apply")
}

func TestRewriteCaptionPreservesHashtagBlock(t *testing.T) {
	gen := &fakeClient{
		researchResp: &generate.ResearchResponse{Strategy: testStrategy()},
		caption:      "Original body.\n\n#Coffee #Lisbon",
	}
	o, _, _ := newTestOrchestrator(t, gen)
	runToPostDetails(t, o, gen)

	gen.mu.Lock()
	gen.caption = "Rewritten body."
	gen.mu.Unlock()

	require.NoError(t, o.RewriteCaption(context.Background(), "make it punchier"))

	details := o.PostDetails()
	require.NotNil(t, details)
	assert.Equal(t, "Rewritten body.\n\n#Coffee #Lisbon", details.Caption)

	gen.mu.Lock()
	defer gen.mu.Unlock()
	assert.Equal(t, "Original body.", gen.lastCaptionReq.CurrentCaption)
	assert.Equal(t, "make it punchier", gen.lastCaptionReq.Guidance)
}

func TestRewriteCaptionFailureKeepsCurrent(t *testing.T) {
	gen := &fakeClient{
		researchResp: &generate.ResearchResponse{Strategy: testStrategy()},
		caption:      "Keep me.",
	}
	o, notifier, _ := newTestOrchestrator(t, gen)
	runToPostDetails(t, o, gen)

	gen.mu.Lock()
	gen.captionErr = errors.New("down")
	gen.mu.Unlock()

	require.NoError(t, o.RewriteCaption(context.Background(), ""))

	assert.Equal(t, "Keep me.", o.PostDetails().Caption)
	assert.NotEmpty(t, notifier.toasts)
}

func TestRequestMoreHashtagsMergesCaseInsensitively(t *testing.T) {
	gen := &fakeClient{
		researchResp: &generate.ResearchResponse{Strategy: testStrategy()},
		caption:      "Great body.\n\n#Coffee #Lisbon",
		tags: []hashtag.ScoredTag{
			{Tag: "#COFFEE", Score: 50},
			{Tag: "#Espresso", Score: 40},
		},
	}
	o, _, _ := newTestOrchestrator(t, gen)
	runToPostDetails(t, o, gen)

	require.NoError(t, o.RequestMoreHashtags(context.Background()))

	details := o.PostDetails()
	require.NotNil(t, details)
	assert.Equal(t, "Great body.\n\n#Coffee #Lisbon #Espresso", details.Caption)
	assert.Empty(t, details.Hashtags, "tags live in the caption after a merge")
}

func TestRewordTitle(t *testing.T) {
	gen := &fakeClient{
		researchResp: &generate.ResearchResponse{Strategy: testStrategy()},
		caption:      "ok",
		title:        "A sharper title",
	}
	o, _, _ := newTestOrchestrator(t, gen)
	runToPostDetails(t, o, gen)

	require.NoError(t, o.RewordTitle(context.Background()))
	assert.Equal(t, "A sharper title", o.PostDetails().Title)
}

func TestHistoryPersistedOnlyWithIdentity(t *testing.T) {
	gen := &fakeClient{
		researchResp: &generate.ResearchResponse{Strategy: testStrategy()},
		caption:      "ok",
	}
	o, _, history := newTestOrchestrator(t, gen)
	runToPostDetails(t, o, gen)

	history.mu.Lock()
	assert.Empty(t, history.posts, "anonymous sessions never write history")
	history.mu.Unlock()

	o2, _, history2 := newTestOrchestrator(t, gen)
	require.NoError(t, o2.SignIn(context.Background(), &identity.Actor{ID: "user-1"}))
	runToPostDetails(t, o2, gen)

	history2.mu.Lock()
	defer history2.mu.Unlock()
	assert.Len(t, history2.posts, 1)
	assert.Len(t, history2.profiles, 1)
	assert.NotEmpty(t, history2.snapshots)
}

func TestSignOutSingleFlight(t *testing.T) {
	gen := &fakeClient{researchResp: &generate.ResearchResponse{Strategy: testStrategy()}}
	notifier := &fakeNotifier{}

	var teardowns atomic.Int32
	o := New(gen, newTestLedger(t, notifier), notifier,
		WithConfig(fastConfig()),
		WithSignOut(func(ctx context.Context) error {
			time.Sleep(20 * time.Millisecond)
			teardowns.Add(1)
			return nil
		}),
	)
	require.NoError(t, o.SignIn(context.Background(), &identity.Actor{ID: "user-1"}))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = o.SignOut(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), teardowns.Load(), "concurrent sign-outs must tear down exactly once")
}

func TestAuxiliaryNavigationRoundTrip(t *testing.T) {
	gen := &fakeClient{researchResp: &generate.ResearchResponse{Strategy: testStrategy()}}
	o, _, _ := newTestOrchestrator(t, gen)

	require.NoError(t, o.SubmitProfile(context.Background(), testProfile()))
	require.Equal(t, StepPrinciples, o.Step())

	require.NoError(t, o.NavigateTo(StepHashtagResearch))
	require.Equal(t, StepHashtagResearch, o.Step())

	o.ReturnFromAuxiliary()
	assert.Equal(t, StepPrinciples, o.Step())
}

func TestStartOverResetsStateAndCounters(t *testing.T) {
	gen := &fakeClient{
		researchResp: &generate.ResearchResponse{Strategy: testStrategy()},
		caption:      "ok",
	}
	o, _, _ := newTestOrchestrator(t, gen)
	ctx := context.Background()
	runToPostDetails(t, o, gen)
	require.NoError(t, o.RegenerateIdea(ctx))

	o.StartOver(ctx)

	assert.Equal(t, StepForm, o.Step())
	assert.Nil(t, o.Strategy())
	assert.Nil(t, o.SelectedIdea())
	assert.Nil(t, o.PostDetails())
}
