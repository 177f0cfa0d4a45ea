package cache

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"concord/internal/platform/metrics"
	"concord/internal/session"
)

const snapshotKey = "session/current"

// Badger stores the single session snapshot in a BadgerDB at the configured
// cache directory, surviving process restarts.
type Badger struct {
	db      *badger.DB
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewBadger(db *badger.DB, log *slog.Logger, m *metrics.Metrics) *Badger {
	return &Badger{db: db, log: log, metrics: m, now: time.Now}
}

// Open opens (creating if needed) the cache database at dir.
func Open(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	return badger.Open(opts)
}

func (b *Badger) Load() *session.Snapshot {
	var raw []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(snapshotKey))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		b.metrics.ObserveCacheOp("load", "miss")
		return nil
	}
	if err != nil {
		b.log.Warn("cache read failed, treating as absent", "error", err)
		b.metrics.ObserveCacheOp("load", "error")
		return nil
	}

	var snap session.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil || snap.Session.SubjectID.IsZero() {
		// Corrupt records are discarded, never surfaced as fatal.
		b.log.Warn("corrupt cache snapshot discarded", "error", err)
		b.metrics.ObserveCacheOp("load", "corrupt")
		b.Clear()
		return nil
	}
	b.metrics.ObserveCacheOp("load", "hit")
	return &snap
}

func (b *Badger) Save(sess *session.Session) {
	snap := session.Snapshot{Session: *sess, SavedAt: b.now()}
	raw, err := json.Marshal(&snap)
	if err != nil {
		b.log.Warn("cache snapshot encode failed", "error", err)
		b.metrics.ObserveCacheOp("save", "error")
		return
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(snapshotKey), raw)
	})
	if err != nil {
		b.log.Warn("cache write failed", "error", err, "subject_id", sess.SubjectID)
		b.metrics.ObserveCacheOp("save", "error")
		return
	}
	b.metrics.ObserveCacheOp("save", "ok")
}

func (b *Badger) Clear() {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(snapshotKey))
	})
	if err != nil {
		b.log.Warn("cache clear failed", "error", err)
		b.metrics.ObserveCacheOp("clear", "error")
		return
	}
	b.metrics.ObserveCacheOp("clear", "ok")
}
