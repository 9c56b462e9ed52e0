package vault

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openfacilitator/go-facilitator/types"
)

// Wallet is one custodial wallet row: one per (user, network), created once
// and never mutated afterwards.
type Wallet struct {
	UserID       string        `json:"userId"`
	Network      types.Network `json:"network"`
	Address      string        `json:"address"`
	EncryptedKey string        `json:"encryptedKey"`
	CreatedAt    time.Time     `json:"createdAt"`
}

// WalletStore persists wallets and the address → user index the webhook
// activator resolves payers through.
type WalletStore struct {
	rdb *redis.Client
}

func NewWalletStore(rdb *redis.Client) *WalletStore {
	return &WalletStore{rdb: rdb}
}

func walletKey(userID string, network types.Network) string {
	return "wallet:" + userID + ":" + network.String()
}

func addressKey(address string) string {
	return "wallet:addr:" + address
}

func addressFoldKey(address string) string {
	return "wallet:addrfold:" + strings.ToLower(address)
}

func userWalletsKey(userID string) string {
	return "wallets:user:" + userID
}

// Create inserts the wallet if no row exists for (user, network) yet. It
// returns the stored wallet and whether this call created it.
func (s *WalletStore) Create(ctx context.Context, w Wallet) (Wallet, bool, error) {
	raw, err := json.Marshal(w)
	if err != nil {
		return Wallet{}, false, err
	}

	created, err := s.rdb.SetNX(ctx, walletKey(w.UserID, w.Network), string(raw), 0).Result()
	if err != nil {
		return Wallet{}, false, err
	}
	if !created {
		existing, err := s.Get(ctx, w.UserID, w.Network)
		if err != nil {
			return Wallet{}, false, err
		}
		if existing == nil {
			return Wallet{}, false, errors.New("wallet row vanished during create")
		}
		return *existing, false, nil
	}

	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, addressKey(w.Address), w.UserID, 0)
	if w.Network.IsEVM() {
		// EVM addresses are case-insensitive; ledger addresses are
		// case-sensitive and get no folded index entry.
		pipe.Set(ctx, addressFoldKey(w.Address), w.UserID, 0)
	}
	pipe.SAdd(ctx, userWalletsKey(w.UserID), w.Network.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return Wallet{}, false, err
	}

	return w, true, nil
}

// Get returns the wallet for (user, network), or nil when absent.
func (s *WalletStore) Get(ctx context.Context, userID string, network types.Network) (*Wallet, error) {
	raw, err := s.rdb.Get(ctx, walletKey(userID, network)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var w Wallet
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// Networks lists the networks a user holds wallets on.
func (s *WalletStore) Networks(ctx context.Context, userID string) ([]types.Network, error) {
	members, err := s.rdb.SMembers(ctx, userWalletsKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]types.Network, 0, len(members))
	for _, m := range members {
		out = append(out, types.Network(m))
	}
	return out, nil
}

// FindUserByAddress resolves a wallet address to its owning user: exact match
// first, then the case-folded index (populated for EVM wallets only).
func (s *WalletStore) FindUserByAddress(ctx context.Context, address string) (string, bool, error) {
	userID, err := s.rdb.Get(ctx, addressKey(address)).Result()
	if err == nil {
		return userID, true, nil
	}
	if !errors.Is(err, redis.Nil) {
		return "", false, err
	}

	userID, err = s.rdb.Get(ctx, addressFoldKey(address)).Result()
	if err == nil {
		return userID, true, nil
	}
	if !errors.Is(err, redis.Nil) {
		return "", false, err
	}
	return "", false, nil
}
