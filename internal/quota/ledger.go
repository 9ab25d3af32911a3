package quota

import (
	"context"
	"log"
	"sync"
	"time"

	"ai-post-wizard/internal/identity"
)

// DefaultSaveDelay is the debounce applied to durable counter writes.
const DefaultSaveDelay = 500 * time.Millisecond

// DurableStore persists identity-scoped counters. It is reachable only when
// an identity exists.
type DurableStore interface {
	LoadCounters(ctx context.Context, identityID string) (map[string]int, error)
	SaveCounters(ctx context.Context, identityID string, counters map[string]int) error
}

// UpgradePrompter receives the deny side effect: quota denial routes to an
// upgrade decision, it is never an error.
type UpgradePrompter interface {
	PromptUpgrade(feature Feature)
}

// Decision is the outcome of a quota check.
type Decision struct {
	Allowed   bool
	Used      int
	Threshold int
}

// Ledger merges the local cache and the durable store into one authoritative
// count per feature. Counters only increase through Increment; they reset to
// zero exclusively through Reset or cache expiry during load.
type Ledger struct {
	mu        sync.Mutex
	cache     *CacheStore
	store     DurableStore
	prompter  UpgradePrompter
	saveDelay time.Duration
	now       func() time.Time

	// local holds the device-scoped channel, remote the identity-scoped one.
	local  map[Feature]int
	remote map[Feature]int
	actor  *identity.Actor
	loaded bool

	saveTimer *time.Timer
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithUpgradePrompter sets the deny side-effect target.
func WithUpgradePrompter(p UpgradePrompter) Option {
	return func(l *Ledger) { l.prompter = p }
}

// WithSaveDelay overrides the durable-save debounce.
func WithSaveDelay(d time.Duration) Option {
	return func(l *Ledger) { l.saveDelay = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// NewLedger creates a Ledger. The durable store may be nil for
// anonymous-only deployments.
func NewLedger(cache *CacheStore, store DurableStore, opts ...Option) *Ledger {
	l := &Ledger{
		cache:     cache,
		store:     store,
		saveDelay: DefaultSaveDelay,
		now:       time.Now,
		local:     make(map[Feature]int),
		remote:    make(map[Feature]int),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadLocal restores the device-scoped counters from the local cache. Until
// it has run, local writes are skipped so default zeros cannot clobber
// not-yet-loaded state.
func (l *Ledger) LoadLocal() {
	counters := l.cache.Load(l.now())

	l.mu.Lock()
	defer l.mu.Unlock()
	l.local = counters
	l.loaded = true
}

// SetActor attaches an identity and restores its usage counters from the
// durable store. Only counters are restored: workflow state never comes back
// from the store, so every session starts the wizard at the form.
func (l *Ledger) SetActor(ctx context.Context, actor *identity.Actor) error {
	l.mu.Lock()
	l.actor = actor
	l.remote = make(map[Feature]int)
	l.mu.Unlock()

	if actor.Anonymous() || l.store == nil {
		return nil
	}

	counters, err := l.store.LoadCounters(ctx, actor.ID)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for feature, count := range counters {
		l.remote[Feature(feature)] = count
	}
	return nil
}

// ClearActor detaches the identity. The device-scoped channel is untouched,
// which is what makes the sign-out/sign-in reset trick pointless for
// abuse-resistant features.
func (l *Ledger) ClearActor() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.actor = nil
	l.remote = make(map[Feature]int)
}

// Effective returns the count compared against thresholds: the max of both
// channels for abuse-resistant features, otherwise the active actor's scope.
func (l *Ledger) Effective(feature Feature) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.effectiveLocked(feature)
}

func (l *Ledger) effectiveLocked(feature Feature) int {
	if AbuseResistant(feature) {
		return max(l.local[feature], l.remote[feature])
	}
	if !l.actor.Anonymous() {
		return l.remote[feature]
	}
	return l.local[feature]
}

// Check decides whether a gated action may run. Subscribed actors always
// pass. A deny fires the upgrade prompt and is not an error.
func (l *Ledger) Check(feature Feature) Decision {
	l.mu.Lock()
	actor := l.actor
	used := l.effectiveLocked(feature)
	l.mu.Unlock()

	threshold := Threshold(feature)
	if actor != nil && actor.Subscribed {
		return Decision{Allowed: true, Used: used, Threshold: threshold}
	}

	if used >= threshold {
		if l.prompter != nil {
			l.prompter.PromptUpgrade(feature)
		}
		return Decision{Allowed: false, Used: used, Threshold: threshold}
	}
	return Decision{Allowed: true, Used: used, Threshold: threshold}
}

// Increment bumps the feature counter and schedules persistence. It is a
// no-op for subscribed actors. Persistence is fire-and-forget: a lost write
// costs one usage sync, which is acceptable.
func (l *Ledger) Increment(ctx context.Context, feature Feature) {
	l.mu.Lock()

	if l.actor != nil && l.actor.Subscribed {
		l.mu.Unlock()
		return
	}

	identityPresent := !l.actor.Anonymous()
	if AbuseResistant(feature) {
		// Dual-write the post-increment value under both scopes.
		next := l.effectiveLocked(feature) + 1
		l.local[feature] = next
		if identityPresent {
			l.remote[feature] = next
		}
	} else if identityPresent {
		l.remote[feature]++
	} else {
		l.local[feature]++
	}

	l.persistLocalLocked()
	if identityPresent {
		l.scheduleRemoteSaveLocked()
	}
	l.mu.Unlock()
}

// Reset zeroes every counter in both channels. This is the explicit
// start-over path, the only reset besides cache expiry.
func (l *Ledger) Reset(ctx context.Context) {
	l.mu.Lock()
	for feature := range l.local {
		l.local[feature] = 0
	}
	for feature := range l.remote {
		l.remote[feature] = 0
	}
	l.persistLocalLocked()
	identityPresent := !l.actor.Anonymous()
	l.mu.Unlock()

	if identityPresent {
		l.Flush(ctx)
	}
}

// Flush cancels any pending debounce and writes the identity counters now.
func (l *Ledger) Flush(ctx context.Context) {
	l.mu.Lock()
	if l.saveTimer != nil {
		l.saveTimer.Stop()
		l.saveTimer = nil
	}
	actor := l.actor
	snapshot := l.remoteSnapshotLocked()
	l.mu.Unlock()

	if actor.Anonymous() || l.store == nil {
		return
	}
	if err := l.store.SaveCounters(ctx, actor.ID, snapshot); err != nil {
		log.Printf("Warning: failed to persist usage counters: %v", err)
	}
}

func (l *Ledger) persistLocalLocked() {
	if !l.loaded {
		return
	}
	if err := l.cache.Save(l.local, l.now()); err != nil {
		log.Printf("Warning: failed to write usage cache: %v", err)
	}
}

func (l *Ledger) scheduleRemoteSaveLocked() {
	if l.store == nil {
		return
	}
	if l.saveTimer != nil {
		l.saveTimer.Reset(l.saveDelay)
		return
	}
	l.saveTimer = time.AfterFunc(l.saveDelay, func() {
		l.mu.Lock()
		l.saveTimer = nil
		actor := l.actor
		snapshot := l.remoteSnapshotLocked()
		l.mu.Unlock()

		if actor.Anonymous() {
			return
		}
		if err := l.store.SaveCounters(context.Background(), actor.ID, snapshot); err != nil {
			log.Printf("Warning: failed to persist usage counters: %v", err)
		}
	})
}

func (l *Ledger) remoteSnapshotLocked() map[string]int {
	snapshot := make(map[string]int, len(l.remote))
	for feature, count := range l.remote {
		snapshot[string(feature)] = count
	}
	return snapshot
}
