// Package guard decides, under uncertainty, whether a protected view may
// render. It consumes the session store, falls back to the local cache on
// timeout, and escalates manual recovery by attempt count.
package guard

import (
	"context"
	"log/slog"
	"time"

	"concord/internal/cache"
	"concord/internal/platform/config"
	"concord/internal/platform/metrics"
	"concord/internal/session"
	"concord/internal/session/store"
)

// State is the guard's observable position.
type State string

const (
	StateLoading      State = "loading"
	StateRetryOffered State = "retry-offered"
	StateTimedOut     State = "timed-out"
	StateAuthorized   State = "authorized"
	StateUnauthorized State = "unauthorized"
	StateError        State = "error"
)

// Source names where the authorizing session came from.
type Source string

const (
	SourceLive  Source = "live"  // authoritative session from the resolver
	SourceStore Source = "store" // store value (possibly provisional) at timeout
	SourceCache Source = "cache" // last-resort cache snapshot at timeout
	SourceNone  Source = ""
)

// Decision is the guard's terminal answer for one navigation.
type Decision struct {
	State        State
	Session      *session.Session
	Source       Source
	TimedOut     bool
	RetryOffered bool
	Err          error
}

// Guard evaluates protected navigations. Terminal states are not sticky:
// every call to Evaluate re-runs the state machine from scratch.
type Guard struct {
	cell    *store.Store
	cache   cache.Adapter
	cfg     config.Guard
	log     *slog.Logger
	metrics *metrics.Metrics

	recovery *recoveryTracker
}

func New(cell *store.Store, cacheAdapter cache.Adapter, cfg config.Guard, log *slog.Logger, m *metrics.Metrics) *Guard {
	return &Guard{
		cell:     cell,
		cache:    cacheAdapter,
		cfg:      cfg,
		log:      log,
		metrics:  m,
		recovery: newRecoveryTracker(),
	}
}

// Evaluate runs the guard state machine for one navigation and blocks until
// a terminal state. An authorized signal always pre-empts pending timeout
// transitions; the timeout deadline guarantees liveness.
func (g *Guard) Evaluate(ctx context.Context) Decision {
	updates, cancel := g.cell.Subscribe()
	defer cancel()

	// A settled cell answers without waiting.
	if d, done := g.immediate(g.cell.View()); done {
		return g.decide(d)
	}

	retryTimer := time.NewTimer(g.cfg.RetryAfter)
	defer retryTimer.Stop()
	timeoutTimer := time.NewTimer(g.cfg.TimeoutAfter)
	defer timeoutTimer.Stop()

	retryOffered := false
	for {
		select {
		case <-updates:
			if d, done := g.immediate(g.cell.View()); done {
				d.RetryOffered = retryOffered
				return g.decide(d)
			}

		case <-retryTimer.C:
			// Offer a manual retry affordance without giving up on the
			// resolution in flight.
			retryOffered = true
			g.log.Info("session resolution slow, offering manual retry")

		case <-timeoutTimer.C:
			d := g.resolveTimedOut()
			d.RetryOffered = retryOffered
			return g.decide(d)

		case <-ctx.Done():
			return g.decide(Decision{State: StateError, Err: ctx.Err(), RetryOffered: retryOffered})
		}
	}
}

// immediate maps a cell view to a terminal decision where one exists.
func (g *Guard) immediate(v store.View) (Decision, bool) {
	switch {
	case v.Session != nil && !v.Provisional:
		return Decision{State: StateAuthorized, Session: v.Session, Source: SourceLive}, true
	case v.Err != nil:
		return Decision{State: StateError, Err: v.Err}, true
	case !v.Loading && v.Session == nil:
		// Resolution settled on signed-out.
		return Decision{State: StateUnauthorized}, true
	}
	return Decision{}, false
}

// resolveTimedOut applies the timeout priority order: store session first,
// cache snapshot second, unauthorized last.
func (g *Guard) resolveTimedOut() Decision {
	g.log.Warn("route guard timed out waiting for session resolution")
	if v := g.cell.View(); v.Session != nil {
		return Decision{State: StateAuthorized, Session: v.Session, Source: SourceStore, TimedOut: true}
	}
	if snap := g.cache.Load(); snap != nil {
		sess := snap.Session
		return Decision{State: StateAuthorized, Session: &sess, Source: SourceCache, TimedOut: true}
	}
	return Decision{State: StateUnauthorized, TimedOut: true}
}

func (g *Guard) decide(d Decision) Decision {
	if d.State == StateAuthorized {
		// A successful pass resets the manual recovery escalation.
		g.recovery.reset()
	}
	g.metrics.ObserveGuardDecision(string(d.State))
	return d
}
