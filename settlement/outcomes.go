package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openfacilitator/go-facilitator/types"
)

const pendingMarker = "pending"

// OutcomeStore records settlement outcomes per payload fingerprint so the
// same payload is broadcast at most once; a replay returns the recorded
// outcome instead of producing a second broadcast attempt.
type OutcomeStore interface {
	// Begin claims the fingerprint. It returns the recorded outcome if one
	// exists, or acquired=true when this caller holds the claim. acquired=false
	// with no prior outcome means another settlement is in flight.
	Begin(ctx context.Context, fingerprint string) (prior *types.SettleResponse, acquired bool, err error)

	// Finish records the outcome for a claimed fingerprint.
	Finish(ctx context.Context, fingerprint string, result *types.SettleResponse) error
}

// RedisOutcomeStore keeps fingerprint records in redis with a TTL; records
// only need to outlive the window in which a caller could plausibly replay.
type RedisOutcomeStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisOutcomeStore(rdb *redis.Client, ttl time.Duration) *RedisOutcomeStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisOutcomeStore{rdb: rdb, ttl: ttl}
}

func outcomeKey(fingerprint string) string {
	return "settlement:outcome:" + fingerprint
}

func (s *RedisOutcomeStore) Begin(ctx context.Context, fingerprint string) (*types.SettleResponse, bool, error) {
	ok, err := s.rdb.SetNX(ctx, outcomeKey(fingerprint), pendingMarker, s.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if ok {
		return nil, true, nil
	}

	raw, err := s.rdb.Get(ctx, outcomeKey(fingerprint)).Result()
	if errors.Is(err, redis.Nil) {
		// Record expired between SetNX and Get; treat as in flight.
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if raw == pendingMarker {
		return nil, false, nil
	}

	var prior types.SettleResponse
	if err := json.Unmarshal([]byte(raw), &prior); err != nil {
		return nil, false, err
	}
	return &prior, false, nil
}

func (s *RedisOutcomeStore) Finish(ctx context.Context, fingerprint string, result *types.SettleResponse) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, outcomeKey(fingerprint), string(raw), s.ttl).Err()
}
