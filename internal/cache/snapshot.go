package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Snapshot TTLs: a decision stays interesting for one trade cycle, the
// portfolio view only until the next monitor tick refreshes it.
const (
	decisionTTL  = 13 * time.Hour
	portfolioTTL = 5 * time.Minute
)

// SnapshotStore keeps the latest evaluation artifacts in Redis as JSON
// so the API and bots can serve them without touching the engine.
type SnapshotStore struct {
	client redis.Cmdable
}

func NewSnapshotStore(client redis.Cmdable) *SnapshotStore {
	return &SnapshotStore{client: client}
}

func (s *SnapshotStore) SetLatestSignal(ctx context.Context, symbol string, v any) error {
	return s.set(ctx, "signal:latest:"+symbol, v, decisionTTL)
}

func (s *SnapshotStore) LatestSignal(ctx context.Context, symbol string, out any) (bool, error) {
	return s.get(ctx, "signal:latest:"+symbol, out)
}

func (s *SnapshotStore) SetPortfolio(ctx context.Context, v any) error {
	return s.set(ctx, "portfolio:metrics", v, portfolioTTL)
}

func (s *SnapshotStore) Portfolio(ctx context.Context, out any) (bool, error) {
	return s.get(ctx, "portfolio:metrics", out)
}

func (s *SnapshotStore) set(ctx context.Context, key string, v any, ttl time.Duration) error {
	if s == nil || s.client == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

func (s *SnapshotStore) get(ctx context.Context, key string, out any) (bool, error) {
	if s == nil || s.client == nil {
		return false, nil
	}
	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, err
	}
	return true, nil
}
