package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/evdnx/gotrade/logger"
	"github.com/evdnx/gotrade/risk"
)

const positionKey = "gotrade:position:%s"

// PositionStore snapshots the position state in Redis. Every snapshot is
// also kept in memory, so reads keep working while Redis is unreachable
// or when no client is configured.
type PositionStore struct {
	client *redis.Client
	log    logger.Logger

	mu  sync.RWMutex
	mem map[string]risk.PositionState
}

// NewPositionStore wraps client, which may be nil for memory only.
func NewPositionStore(client *redis.Client, log logger.Logger) *PositionStore {
	if log == nil {
		log = logger.Nop()
	}
	return &PositionStore{client: client, log: log, mem: make(map[string]risk.PositionState)}
}

type positionSnapshot struct {
	IsLong                  bool    `json:"is_long"`
	LastBuyPrice            float64 `json:"last_buy_price"`
	LastSellPrice           float64 `json:"last_sell_price"`
	PartialQuantityDiscount float64 `json:"partial_quantity_discount"`
}

// Save stores p under symbol. Redis failures are logged, not returned.
func (s *PositionStore) Save(ctx context.Context, symbol string, p risk.PositionState) error {
	s.mu.Lock()
	s.mem[symbol] = p
	s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	data, err := json.Marshal(positionSnapshot(p))
	if err != nil {
		return fmt.Errorf("marshal position: %w", err)
	}
	if err := s.client.Set(ctx, fmt.Sprintf(positionKey, symbol), data, 0).Err(); err != nil {
		s.log.Warn("redis_save_failed", logger.String("symbol", symbol), logger.Err(err))
	}
	return nil
}

// Load returns the last snapshot of symbol, preferring Redis.
func (s *PositionStore) Load(ctx context.Context, symbol string) (risk.PositionState, bool, error) {
	if s.client != nil {
		data, err := s.client.Get(ctx, fmt.Sprintf(positionKey, symbol)).Bytes()
		switch {
		case err == nil:
			var snap positionSnapshot
			if err := json.Unmarshal(data, &snap); err != nil {
				return risk.PositionState{}, false, fmt.Errorf("unmarshal position: %w", err)
			}
			return risk.PositionState(snap), true, nil
		case errors.Is(err, redis.Nil):
		default:
			s.log.Warn("redis_load_failed", logger.String("symbol", symbol), logger.Err(err))
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.mem[symbol]
	return p, ok, nil
}

// Close releases the Redis client.
func (s *PositionStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
