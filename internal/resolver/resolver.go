// Package resolver is the central reconciliation state machine. It listens
// for identity-provider events, races profile enrichment against retries and
// offline detection, merges results with the source-priority policy, and
// publishes the converged session to the store and the local cache.
package resolver

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"concord/internal/cache"
	"concord/internal/identity"
	"concord/internal/platform/config"
	"concord/internal/platform/metrics"
	"concord/internal/profile"
	"concord/internal/session"
	"concord/internal/session/store"
	"concord/pkg/domain"
	domainerrors "concord/pkg/domain-errors"
)

// Resolver owns the published session: it is the cell's single writer and
// the sole trigger of cache writes.
//
// Every provider event gets a monotonically increasing generation. An
// in-flight enrichment carries the generation of the event that started it
// and its result is discarded when a newer event has superseded it, so a
// slow enrichment for a stale sign-in can never overwrite the session
// established by a later one.
type Resolver struct {
	provider identity.Provider
	profiles profile.Store
	cache    cache.Adapter
	cell     *store.Store
	retrier  *Retrier
	log      *slog.Logger
	metrics  *metrics.Metrics

	resolutionTimeout time.Duration

	mu         sync.Mutex
	generation uint64
	published  bool

	sf singleflight.Group
	wg sync.WaitGroup
}

func New(
	provider identity.Provider,
	profiles profile.Store,
	cacheAdapter cache.Adapter,
	cell *store.Store,
	retrier *Retrier,
	cfg config.Resolver,
	log *slog.Logger,
	m *metrics.Metrics,
) *Resolver {
	return &Resolver{
		provider:          provider,
		profiles:          profiles,
		cache:             cacheAdapter,
		cell:              cell,
		retrier:           retrier,
		log:               log,
		metrics:           m,
		resolutionTimeout: cfg.ResolutionTimeout,
	}
}

// Start bootstraps from the cache, subscribes to provider events and arms
// the global resolution watchdog. The returned stop function detaches the
// provider subscription; in-flight enrichments drain via ctx.
func (r *Resolver) Start(ctx context.Context) (stop func()) {
	if snap := r.cache.Load(); snap != nil {
		// Optimistic bootstrap so consumers are not blank while the live
		// provider answer is still in flight. Does not advance the state
		// machine: the snapshot stays provisional.
		r.log.Info("bootstrapping provisional session from cache",
			"subject_id", snap.Session.SubjectID, "saved_at", snap.SavedAt)
		r.cell.PublishProvisional(&snap.Session)
	}
	r.cell.SetLoading(true)

	go r.watchdog(ctx)

	unsubscribe := r.provider.OnChange(func(p *identity.Principal) {
		if p == nil {
			r.ResolveSignOut()
			return
		}
		if err := r.ResolveSignIn(ctx, *p); err != nil {
			r.log.Error("sign-in event could not be resolved", "error", err)
		}
	})
	return unsubscribe
}

// Wait blocks until background work has drained. Test hook.
func (r *Resolver) Wait() { r.wg.Wait() }

// ResolveSignIn publishes a basic session for the principal immediately,
// persists it, then enriches asynchronously. Called from provider change
// events and directly by the login/register intents.
func (r *Resolver) ResolveSignIn(ctx context.Context, p identity.Principal) error {
	if p.SubjectID.IsZero() {
		return domainerrors.New(domainerrors.CodeUnexpected, "principal has no subject id")
	}

	gen := r.beginEvent()
	basic := session.NewBasic(p)
	// The basic publish is what unblocks the route guard; it must never
	// wait on enrichment.
	r.publishIfCurrent(gen, basic)
	r.metrics.ObserveSessionPublished(string(domain.CompletenessBasic))

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.enrich(ctx, gen, p)
	}()
	return nil
}

// ResolveSignOut publishes the signed-out state and clears the cache.
func (r *Resolver) ResolveSignOut() {
	gen := r.beginEvent()
	r.publishIfCurrent(gen, nil)
	r.metrics.ObserveSessionPublished("signed-out")
}

func (r *Resolver) enrich(ctx context.Context, gen uint64, p identity.Principal) {
	// Duplicate notifications for the same subject collapse onto one fetch.
	v, _, _ := r.sf.Do(p.SubjectID.String(), func() (any, error) {
		return r.retrier.FetchEnrichedProfile(ctx, p.SubjectID), nil
	})
	out := v.(Outcome)

	switch {
	case !out.OK():
		// The already-published basic session stays untouched; a degraded
		// session is a valid success (logged, never surfaced).
		r.log.Warn("enrichment failed, session remains basic",
			"subject_id", p.SubjectID, "reason", string(out.Failure))
		r.metrics.ObserveEnrichmentOutcome(string(out.Failure))

	case out.Doc == nil:
		r.ensureProfile(ctx, p)
		r.metrics.ObserveEnrichmentOutcome("absent")

	default:
		merged := session.NewBasic(p).MergeProfile(out.Doc)
		if !r.publishIfCurrent(gen, merged) {
			r.log.Debug("stale enrichment result discarded",
				"subject_id", p.SubjectID, "generation", gen)
			r.metrics.ObserveEnrichmentOutcome("stale-discarded")
			return
		}
		r.metrics.ObserveEnrichmentOutcome("success")
		r.metrics.ObserveSessionPublished(string(domain.CompletenessEnriched))
	}
}

// ensureProfile creates the subject's document from the basic fields when
// none exists yet. Idempotent; a failed create never downgrades the
// already-published session.
func (r *Resolver) ensureProfile(ctx context.Context, p identity.Principal) {
	doc := &profile.Document{
		SubjectID:   p.SubjectID,
		Email:       p.Email,
		DisplayName: p.DisplayName,
		Phone:       p.Phone,
	}
	if err := r.profiles.Set(ctx, doc); err != nil {
		r.log.Warn("initial profile create failed, session remains basic",
			"subject_id", p.SubjectID, "error", err)
		return
	}
	r.log.Info("created initial profile document", "subject_id", p.SubjectID)
}

// watchdog surfaces the one condition allowed to look like "authentication
// is stuck": nothing published before the resolution deadline. It then makes
// a last-resort attempt to reconstruct a basic session from the provider's
// current principal.
func (r *Resolver) watchdog(ctx context.Context) {
	timer := time.NewTimer(r.resolutionTimeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	r.mu.Lock()
	published := r.published
	r.mu.Unlock()
	if published {
		return
	}

	r.log.Error("session resolution timed out", "timeout", r.resolutionTimeout)
	r.cell.SetError(domainerrors.New(domainerrors.CodeResolutionTimeout, "session resolution timed out"))

	p, err := r.provider.CurrentPrincipal(ctx)
	if err != nil {
		r.log.Error("last-resort principal read failed", "error", err)
		return
	}
	if p == nil {
		return
	}
	if err := r.ResolveSignIn(ctx, *p); err != nil {
		r.log.Error("last-resort resolution failed", "error", err)
	}
}

func (r *Resolver) beginEvent() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generation++
	return r.generation
}

// publishIfCurrent publishes sess (and mirrors it to the cache) only when
// gen is still the newest event. Publishing and the generation check share
// one critical section so a stale result can never interleave past a newer
// event's publish.
func (r *Resolver) publishIfCurrent(gen uint64, sess *session.Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.generation {
		return false
	}
	r.cell.Publish(sess)
	r.published = true
	if sess == nil {
		r.cache.Clear()
	} else {
		r.cache.Save(sess)
	}
	return true
}
