// Package cache persists the last published Session to durable local
// storage. The cache is a bootstrap and timeout fallback only: a malformed
// record reads as absent and write failures are logged, never propagated, so
// no cache condition can fail a reconciliation.
package cache

import "concord/internal/session"

// Adapter is the local cache port. Load returns nil for absent or corrupt
// snapshots; Save and Clear are best-effort.
type Adapter interface {
	Load() *session.Snapshot
	Save(sess *session.Session)
	Clear()
}
