// Package netmon publishes a single process-wide online/offline signal.
// Every other component treats the signal as read-only; only the monitor
// (fed by a probe or an embedding process) flips it.
package netmon

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Monitor holds the current connectivity state and fans transitions out to
// subscribers. Absent any probe or external signal it assumes online.
type Monitor struct {
	mu     sync.RWMutex
	online bool
	subs   map[int]func(online bool)
	nextID int
	log    *slog.Logger
}

func New(log *slog.Logger) *Monitor {
	return &Monitor{
		online: true,
		subs:   make(map[int]func(bool)),
		log:    log,
	}
}

// Online reports the current connectivity state.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// SetOnline records a connectivity transition and broadcasts it to all
// subscribers before returning. No-op when the state is unchanged.
// Subscribers run on the caller's goroutine and must not block.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	subs := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	m.log.Info("connectivity transition", "online", online)
	for _, fn := range subs {
		fn(online)
	}
}

// Subscribe registers fn for future transitions and returns an unsubscribe
// function. fn is not called with the current state.
func (m *Monitor) Subscribe(fn func(online bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// Probe reports whether the network currently looks reachable.
type Probe func(ctx context.Context) bool

// HTTPProbe builds a Probe that issues a HEAD request against url.
func HTTPProbe(url string, timeout time.Duration) Probe {
	client := &http.Client{Timeout: timeout}
	return func(ctx context.Context) bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
		if err != nil {
			return false
		}
		resp, err := client.Do(req)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return true
	}
}

// Run drives the monitor from a periodic probe until ctx is done. A nil
// probe degrades to assume-online: the monitor keeps its current state and
// Run returns immediately.
func (m *Monitor) Run(ctx context.Context, probe Probe, interval time.Duration) {
	if probe == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SetOnline(probe(ctx))
		}
	}
}
