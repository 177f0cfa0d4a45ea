package netmon

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestMonitorAssumesOnline(t *testing.T) {
	m := New(testLogger())
	assert.True(t, m.Online(), "monitor must assume online until told otherwise")
}

func TestMonitorBroadcastsTransitionsSynchronously(t *testing.T) {
	m := New(testLogger())

	var seen []bool
	cancel := m.Subscribe(func(online bool) { seen = append(seen, online) })
	defer cancel()

	m.SetOnline(false)
	m.SetOnline(true)

	// Subscribers run inline on the caller's goroutine, so the transitions
	// are visible as soon as SetOnline returns.
	assert.Equal(t, []bool{false, true}, seen)
	assert.True(t, m.Online())
}

func TestMonitorSuppressesDuplicateTransitions(t *testing.T) {
	m := New(testLogger())

	calls := 0
	cancel := m.Subscribe(func(bool) { calls++ })
	defer cancel()

	m.SetOnline(true) // already online
	m.SetOnline(false)
	m.SetOnline(false)

	assert.Equal(t, 1, calls)
	assert.False(t, m.Online())
}

func TestMonitorUnsubscribeStopsDelivery(t *testing.T) {
	m := New(testLogger())

	calls := 0
	cancel := m.Subscribe(func(bool) { calls++ })
	m.SetOnline(false)
	cancel()
	m.SetOnline(true)

	assert.Equal(t, 1, calls)
}
