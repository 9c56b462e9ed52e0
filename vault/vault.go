package vault

import (
	"context"
	"encoding/hex"
	"time"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/gagliardetto/solana-go"

	"github.com/openfacilitator/go-facilitator/logger"
	"github.com/openfacilitator/go-facilitator/types"
)

// ClassifyFunc maps a network name to its chain family, rejecting networks
// the deployment does not serve.
type ClassifyFunc func(network types.Network) (types.ChainFamily, error)

// GenerateResult reports the wallet address and whether this call created the
// wallet or found an existing one.
type GenerateResult struct {
	Address string        `json:"address"`
	Network types.Network `json:"network"`
	Created bool          `json:"created"`
}

// Vault generates custodial wallets and hands their signing keys to
// settlement without ever exposing plaintext keys outside a scoped callback.
type Vault struct {
	store    *WalletStore
	box      *cipherBox
	classify ClassifyFunc
	log      logger.Logger
}

func New(store *WalletStore, masterSecretHex string, classify ClassifyFunc, log logger.Logger) (*Vault, error) {
	box, err := newCipherBox(masterSecretHex)
	if err != nil {
		return nil, types.Errorf(types.ErrConfig, "vault: %v", err)
	}
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &Vault{store: store, box: box, classify: classify, log: log}, nil
}

// Generate creates a wallet for (user, network), or returns the existing one.
// At most one wallet exists per (user, network) even under concurrent calls.
func (v *Vault) Generate(ctx context.Context, userID string, network types.Network) (*GenerateResult, error) {
	family, err := v.classify(network)
	if err != nil {
		return nil, err
	}

	address, keyMaterial, err := newKeypair(family)
	if err != nil {
		return nil, err
	}
	defer zero(keyMaterial)

	encrypted, err := v.box.seal(keyMaterial)
	if err != nil {
		return nil, err
	}

	stored, created, err := v.store.Create(ctx, Wallet{
		UserID:       userID,
		Network:      network,
		Address:      address,
		EncryptedKey: encrypted,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	if created {
		v.log.Info("wallet generated", map[string]any{
			"user":    userID,
			"network": network,
			"address": stored.Address,
		})
	}

	return &GenerateResult{Address: stored.Address, Network: network, Created: created}, nil
}

// WithSigningKey decrypts the user's key for the network, runs fn with the
// plaintext, and zeroes the buffer before returning. The key must not escape
// fn. For EVM wallets the key is passed hex encoded; for ledger wallets it is
// the base58 private key, both as raw bytes of the string form.
func (v *Vault) WithSigningKey(ctx context.Context, userID string, network types.Network, fn func(key []byte) error) error {
	wallet, err := v.store.Get(ctx, userID, network)
	if err != nil {
		return err
	}
	if wallet == nil {
		return types.Errorf(types.ErrInvalidPayload, "no wallet for user %q on %s", userID, network)
	}

	key, err := v.box.open(wallet.EncryptedKey)
	if err != nil {
		return err
	}
	defer zero(key)

	return fn(key)
}

// Address returns the wallet address for (user, network), or "" when absent.
func (v *Vault) Address(ctx context.Context, userID string, network types.Network) (string, error) {
	wallet, err := v.store.Get(ctx, userID, network)
	if err != nil {
		return "", err
	}
	if wallet == nil {
		return "", nil
	}
	return wallet.Address, nil
}

// Networks lists the networks the user holds wallets on.
func (v *Vault) Networks(ctx context.Context, userID string) ([]types.Network, error) {
	return v.store.Networks(ctx, userID)
}

// ResolveUser maps a wallet address back to its owning user.
func (v *Vault) ResolveUser(ctx context.Context, address string) (string, bool, error) {
	return v.store.FindUserByAddress(ctx, address)
}

// newKeypair returns the public address and the plaintext key material in the
// string form the family's signer consumes.
func newKeypair(family types.ChainFamily) (address string, keyMaterial []byte, err error) {
	switch family {
	case types.FamilyEVM:
		priv, err := gethcrypto.GenerateKey()
		if err != nil {
			return "", nil, err
		}
		address = gethcrypto.PubkeyToAddress(priv.PublicKey).Hex()
		keyMaterial = []byte(hex.EncodeToString(gethcrypto.FromECDSA(priv)))
		return address, keyMaterial, nil
	case types.FamilyLedger:
		wallet := solana.NewWallet()
		address = wallet.PublicKey().String()
		keyMaterial = []byte(wallet.PrivateKey.String())
		return address, keyMaterial, nil
	default:
		return "", nil, types.Errorf(types.ErrConfig, "no key generator for family %q", family)
	}
}
