package cache

import (
	"sync"
	"time"

	"concord/internal/session"
)

// Memory is an in-process cache adapter for tests and ephemeral runs. The
// failure knobs simulate quota and corruption conditions.
type Memory struct {
	mu   sync.Mutex
	snap *session.Snapshot

	failSaves   bool
	corruptLoad bool

	saves, clears int
}

func NewMemory() *Memory {
	return &Memory{}
}

// FailSaves makes subsequent Save calls drop their snapshot, as a quota
// failure would.
func (m *Memory) FailSaves(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSaves = fail
}

// CorruptLoad makes Load behave as if the stored record could not be
// decoded.
func (m *Memory) CorruptLoad(corrupt bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.corruptLoad = corrupt
}

// Seed installs a snapshot directly, as a previous process run would have.
func (m *Memory) Seed(sess *session.Session, savedAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = &session.Snapshot{Session: *sess, SavedAt: savedAt}
}

func (m *Memory) Load() *session.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.corruptLoad || m.snap == nil {
		return nil
	}
	copied := *m.snap
	return &copied
}

func (m *Memory) Save(sess *session.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.failSaves {
		return
	}
	m.snap = &session.Snapshot{Session: *sess, SavedAt: time.Now()}
}

func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clears++
	m.snap = nil
}

// Saves and Clears report call counts for assertions.
func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *Memory) Clears() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clears
}
