package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Period is the entitlement window granted per payment.
const Period = 30 * 24 * time.Hour

const maxCASRetries = 5

// Subscription is a user's entitlement row. Repeated payments extend
// ExpiresAt; LastPaymentRef makes webhook delivery retries idempotent.
type Subscription struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	Tier           string    `json:"tier"`
	ExpiresAt      time.Time `json:"expiresAt"`
	LastPaymentRef string    `json:"lastPaymentRef"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Active reports whether the subscription covers the given instant.
func (s *Subscription) Active(now time.Time) bool {
	return s != nil && now.Before(s.ExpiresAt)
}

// Store keeps one subscription row per user in redis.
type Store struct {
	rdb   *redis.Client
	clock func() time.Time
}

func NewStore(rdb *redis.Client, clock func() time.Time) *Store {
	if clock == nil {
		clock = time.Now
	}
	return &Store{rdb: rdb, clock: clock}
}

func subscriptionKey(userID string) string {
	return "subscription:user:" + userID
}

// Get returns the user's subscription, or nil when none exists.
func (s *Store) Get(ctx context.Context, userID string) (*Subscription, error) {
	raw, err := s.rdb.Get(ctx, subscriptionKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var sub Subscription
	if err := json.Unmarshal([]byte(raw), &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// CreateOrExtend grants one period for the payment identified by paymentRef.
// A payment ref seen before is a delivery retry and changes nothing. An
// active subscription extends from its current expiry, a lapsed or absent one
// starts a fresh period from now. The watch/tx loop makes concurrent
// deliveries for the same user serialize instead of double-granting.
func (s *Store) CreateOrExtend(ctx context.Context, userID, tier, paymentRef string) (*Subscription, bool, error) {
	var (
		out     *Subscription
		created bool
	)

	txn := func(tx *redis.Tx) error {
		now := s.clock().UTC()

		var sub *Subscription
		raw, err := tx.Get(ctx, subscriptionKey(userID)).Result()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			sub = &Subscription{}
			if err := json.Unmarshal([]byte(raw), sub); err != nil {
				return err
			}
		}

		if sub != nil && sub.LastPaymentRef == paymentRef {
			out, created = sub, false
			return nil
		}

		if sub == nil {
			sub = &Subscription{
				ID:        uuid.NewString(),
				UserID:    userID,
				Tier:      tier,
				ExpiresAt: now.Add(Period),
				CreatedAt: now,
			}
			created = true
		} else {
			base := now
			if sub.ExpiresAt.After(base) {
				base = sub.ExpiresAt
			}
			sub.ExpiresAt = base.Add(Period)
			sub.Tier = tier
			created = false
		}
		sub.LastPaymentRef = paymentRef

		encoded, err := json.Marshal(sub)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, subscriptionKey(userID), string(encoded), 0)
			return nil
		})
		if err != nil {
			return err
		}
		out = sub
		return nil
	}

	for i := 0; i < maxCASRetries; i++ {
		err := s.rdb.Watch(ctx, txn, subscriptionKey(userID))
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, false, err
		}
		return out, created, nil
	}
	return nil, false, errors.New("subscription update contention, retries exhausted")
}
