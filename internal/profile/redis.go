package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	"concord/pkg/domain"
	"concord/pkg/platform/sentinel"
)

const redisKeyPrefix = "profile:"

// RedisStore is a document store backed by Redis, for self-hosted
// deployments where the profile documents live alongside the rest of the
// stack. Documents are stored as JSON under profile:<subject-id>.
type RedisStore struct {
	client  *redis.Client
	enabled atomic.Bool
}

func NewRedisStore(client *redis.Client) *RedisStore {
	s := &RedisStore{client: client}
	s.enabled.Store(true)
	return s
}

func (s *RedisStore) Get(ctx context.Context, id domain.SubjectID) (*Document, error) {
	if !s.enabled.Load() {
		return nil, sentinel.ErrUnavailable
	}
	raw, err := s.client.Get(ctx, redisKeyPrefix+id.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get profile: %v", sentinel.ErrUnavailable, err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode profile: %v", sentinel.ErrCorrupt, err)
	}
	return &doc, nil
}

func (s *RedisStore) Set(ctx context.Context, doc *Document) error {
	if !s.enabled.Load() {
		return sentinel.ErrUnavailable
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+doc.SubjectID.String(), raw, 0).Err(); err != nil {
		return fmt.Errorf("%w: set profile: %v", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Update(ctx context.Context, doc *Document) error {
	if !s.enabled.Load() {
		return sentinel.ErrUnavailable
	}
	key := redisKeyPrefix + doc.SubjectID.String()
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: check profile: %v", sentinel.ErrUnavailable, err)
	}
	if exists == 0 {
		return sentinel.ErrNotFound
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := s.client.Set(ctx, key, raw, 0).Err(); err != nil {
		return fmt.Errorf("%w: update profile: %v", sentinel.ErrUnavailable, err)
	}
	return nil
}

// SetNetworkEnabled short-circuits remote calls while the device is offline.
func (s *RedisStore) SetNetworkEnabled(enabled bool) {
	s.enabled.Store(enabled)
}
