package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"VoltX/internal/domain/models"
	domrepo "VoltX/internal/domain/repository"
	"VoltX/pkg/cache"
	"VoltX/pkg/queue"
)

// RedisUniverseSource reads the ranking that the external scanner writes to Redis.
// The value is either a RankedSymbols object or a bare JSON array of symbols.
type RedisUniverseSource struct {
	cache cache.Service
	key   string
}

var _ domrepo.UniverseSource = (*RedisUniverseSource)(nil)

func NewRedisUniverseSource(c cache.Service, key string) *RedisUniverseSource {
	return &RedisUniverseSource{cache: c, key: key}
}

func (s *RedisUniverseSource) Latest(ctx context.Context) (*models.RankedSymbols, error) {
	raw, err := s.cache.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, fmt.Errorf("no ranking at %s", s.key)
		}
		return nil, fmt.Errorf("read ranking: %w", err)
	}
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "[") {
		var symbols []string
		if err := json.Unmarshal([]byte(raw), &symbols); err != nil {
			return nil, fmt.Errorf("decode ranking: %w", err)
		}
		return &models.RankedSymbols{Symbols: symbols}, nil
	}
	var ranked models.RankedSymbols
	if err := json.Unmarshal([]byte(raw), &ranked); err != nil {
		return nil, fmt.Errorf("decode ranking: %w", err)
	}
	return &ranked, nil
}

// Publish writes a ranking. Used by tooling and tests that stand in for the scanner.
func (s *RedisUniverseSource) Publish(ctx context.Context, r models.RankedSymbols, ttl time.Duration) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode ranking: %w", err)
	}
	return s.cache.Set(ctx, s.key, string(b), ttl)
}

// RedisRiskStore keeps the risk snapshot across restarts.
type RedisRiskStore struct {
	cache cache.Service
	key   string
	ttl   time.Duration
}

var _ domrepo.RiskStateStore = (*RedisRiskStore)(nil)

func NewRedisRiskStore(c cache.Service, key string) *RedisRiskStore {
	return &RedisRiskStore{cache: c, key: key, ttl: 48 * time.Hour}
}

func (s *RedisRiskStore) Save(ctx context.Context, st models.RiskState) error {
	b, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode risk state: %w", err)
	}
	return s.cache.Set(ctx, s.key, string(b), s.ttl)
}

// Load returns nil without error when nothing was saved.
func (s *RedisRiskStore) Load(ctx context.Context) (*models.RiskState, error) {
	raw, err := s.cache.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, nil
		}
		return nil, fmt.Errorf("read risk state: %w", err)
	}
	var st models.RiskState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, fmt.Errorf("decode risk state: %w", err)
	}
	return &st, nil
}

// QueueAlertSink pushes urgent alerts onto the Redis job queue.
type QueueAlertSink struct {
	queue   queue.Publisher
	msgType string
}

var _ domrepo.AlertSink = (*QueueAlertSink)(nil)

func NewQueueAlertSink(q queue.Publisher, msgType string) *QueueAlertSink {
	return &QueueAlertSink{queue: q, msgType: msgType}
}

func (s *QueueAlertSink) Raise(ctx context.Context, a models.Alert) error {
	if err := s.queue.Publish(ctx, s.msgType, a); err != nil {
		return fmt.Errorf("enqueue alert: %w", err)
	}
	return nil
}
