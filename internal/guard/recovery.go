package guard

import "sync"

// RecoveryAction is one named manual recovery strategy. The sequence
// escalates: reload first, clear local state second, and from the third
// attempt on send the user back to sign-in.
type RecoveryAction string

const (
	ActionReload         RecoveryAction = "reload"
	ActionClearAndReload RecoveryAction = "clear-and-reload"
	ActionRedirectSignIn RecoveryAction = "redirect-sign-in"
)

// recoverySequence is the explicit escalation ladder, indexed by attempt.
// Attempts beyond its length repeat the final action.
var recoverySequence = []RecoveryAction{
	ActionReload,
	ActionClearAndReload,
	ActionRedirectSignIn,
}

type recoveryTracker struct {
	mu       sync.Mutex
	attempts int
}

func newRecoveryTracker() *recoveryTracker {
	return &recoveryTracker{}
}

func (t *recoveryTracker) next() (RecoveryAction, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := t.attempts
	if idx >= len(recoverySequence) {
		idx = len(recoverySequence) - 1
	}
	t.attempts++
	return recoverySequence[idx], t.attempts
}

func (t *recoveryTracker) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempts = 0
}

// NextRecovery returns the escalated action for a manual retry and performs
// its local side effect: clear-and-reload wipes the cached snapshot so the
// next resolution starts clean.
func (g *Guard) NextRecovery() RecoveryAction {
	action, attempt := g.recovery.next()
	if action == ActionClearAndReload {
		g.cache.Clear()
	}
	g.log.Info("manual recovery requested", "attempt", attempt, "action", string(action))
	return action
}

// ResetRecovery clears the escalation, as a fresh successful navigation
// does.
func (g *Guard) ResetRecovery() {
	g.recovery.reset()
}
