package profile

import (
	"context"
	"sync"
	"time"

	"concord/pkg/domain"
	"concord/pkg/platform/sentinel"
)

// MemoryStore is an in-memory document store for development and tests. The
// failure knobs simulate the remote store's degraded modes.
type MemoryStore struct {
	mu      sync.Mutex
	docs    map[domain.SubjectID]Document
	enabled bool

	// FailNextGets makes the next N Get calls fail with ErrUnavailable.
	failNextGets int
	// Latency is added to every Get; lets tests exercise attempt timeouts.
	latency time.Duration

	getCalls int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:    make(map[domain.SubjectID]Document),
		enabled: true,
	}
}

// FailGets arranges for the next n Get calls to fail with ErrUnavailable.
func (s *MemoryStore) FailGets(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNextGets = n
}

// SetLatency delays every subsequent Get by d.
func (s *MemoryStore) SetLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = d
}

// GetCalls reports how many Get attempts the store has served or rejected.
func (s *MemoryStore) GetCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getCalls
}

func (s *MemoryStore) Get(ctx context.Context, id domain.SubjectID) (*Document, error) {
	s.mu.Lock()
	s.getCalls++
	if !s.enabled {
		s.mu.Unlock()
		return nil, sentinel.ErrUnavailable
	}
	if s.failNextGets > 0 {
		s.failNextGets--
		s.mu.Unlock()
		return nil, sentinel.ErrUnavailable
	}
	latency := s.latency
	doc, ok := s.docs[id]
	s.mu.Unlock()

	if latency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(latency):
		}
	}
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := doc
	return &copied, nil
}

func (s *MemoryStore) Set(ctx context.Context, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled {
		return sentinel.ErrUnavailable
	}
	s.docs[doc.SubjectID] = *doc
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled {
		return sentinel.ErrUnavailable
	}
	if _, ok := s.docs[doc.SubjectID]; !ok {
		return sentinel.ErrNotFound
	}
	s.docs[doc.SubjectID] = *doc
	return nil
}

func (s *MemoryStore) SetNetworkEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}
