package resolver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"concord/internal/netmon"
	"concord/internal/platform/config"
	"concord/internal/platform/metrics"
	"concord/internal/profile"
	"concord/pkg/domain"
	"concord/pkg/platform/sentinel"
)

// RetryPolicy bounds the enrichment fetch loop.
type RetryPolicy struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
	BaseDelay      time.Duration
	MaxDelay       time.Duration
}

func PolicyFromConfig(cfg config.Resolver) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    cfg.MaxAttempts,
		AttemptTimeout: cfg.AttemptTimeout,
		BaseDelay:      cfg.BaseDelay,
		MaxDelay:       cfg.MaxDelay,
	}
}

// RetryState is the explicit backoff bookkeeping: Attempt counts completed
// attempts, NextDelay is the gap before the next one. Keeping it a plain
// value makes the backoff law testable without timers.
type RetryState struct {
	Attempt   int
	NextDelay time.Duration
}

func NewRetryState(p RetryPolicy) RetryState {
	return RetryState{NextDelay: p.BaseDelay}
}

// Advance records a completed attempt and doubles the delay up to the cap.
func (s *RetryState) Advance(p RetryPolicy) {
	s.Attempt++
	next := s.NextDelay * 2
	if p.MaxDelay > 0 && next > p.MaxDelay {
		next = p.MaxDelay
	}
	s.NextDelay = next
}

func (s RetryState) Exhausted(p RetryPolicy) bool {
	return s.Attempt >= p.MaxAttempts
}

// FailureReason classifies why enrichment did not yield a document.
type FailureReason string

const (
	FailureTimeout          FailureReason = "timeout"
	FailureRemote           FailureReason = "remote-error"
	FailureOfflineAbandoned FailureReason = "offline-abandoned"
)

// Outcome is the retrier's resolution. Exactly one of three shapes: a
// document (success), a nil document with empty Failure (the store
// definitively has no document for this subject), or a Failure reason.
// The retrier never lets an error escape this boundary.
type Outcome struct {
	Doc     *profile.Document
	Failure FailureReason
}

func (o Outcome) OK() bool { return o.Failure == "" }

// Retrier performs enrichment fetch attempts with per-attempt timeouts and
// exponential backoff, abandoning early when the device goes offline.
type Retrier struct {
	profiles profile.Store
	net      *netmon.Monitor
	policy   RetryPolicy
	log      *slog.Logger
	metrics  *metrics.Metrics
}

func NewRetrier(profiles profile.Store, net *netmon.Monitor, policy RetryPolicy, log *slog.Logger, m *metrics.Metrics) *Retrier {
	return &Retrier{profiles: profiles, net: net, policy: policy, log: log, metrics: m}
}

// FetchEnrichedProfile runs the bounded retry loop for one subject.
func (r *Retrier) FetchEnrichedProfile(ctx context.Context, id domain.SubjectID) Outcome {
	state := NewRetryState(r.policy)
	last := FailureRemote
	for {
		r.metrics.ObserveEnrichmentAttempt()
		doc, err := r.fetchOnce(ctx, id)
		switch {
		case err == nil:
			return Outcome{Doc: doc}
		case errors.Is(err, sentinel.ErrNotFound):
			// Definitive answer: the subject has no document yet.
			return Outcome{}
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, sentinel.ErrTimeout):
			last = FailureTimeout
		default:
			last = FailureRemote
		}
		r.log.Debug("enrichment attempt failed",
			"subject_id", id, "attempt", state.Attempt, "reason", string(last), "error", err)

		if ctx.Err() != nil {
			return Outcome{Failure: last}
		}

		delay := state.NextDelay
		state.Advance(r.policy)
		if state.Exhausted(r.policy) {
			return Outcome{Failure: last}
		}
		// An offline device abandons immediately instead of burning the
		// remaining attempts; this is distinct from exhaustion.
		if !r.net.Online() {
			return Outcome{Failure: FailureOfflineAbandoned}
		}
		select {
		case <-ctx.Done():
			return Outcome{Failure: last}
		case <-time.After(delay):
		}
		if !r.net.Online() {
			return Outcome{Failure: FailureOfflineAbandoned}
		}
	}
}

func (r *Retrier) fetchOnce(ctx context.Context, id domain.SubjectID) (*profile.Document, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, r.policy.AttemptTimeout)
	defer cancel()
	return r.profiles.Get(attemptCtx, id)
}
