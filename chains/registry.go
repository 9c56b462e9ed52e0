// Package chains maps logical network identifiers to chain metadata and RPC
// client handles. The registry is built once at process start and never
// mutated; every component that needs chain access takes it by reference.
package chains

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/ethclient"
	solrpc "github.com/gagliardetto/solana-go/rpc"

	"github.com/openfacilitator/go-facilitator/types"
)

// chainInfo is the static classification table: family and (for EVM) the
// numeric chain identifier used in signature-domain construction.
var chainInfo = map[types.Network]struct {
	family  types.ChainFamily
	chainID int64
}{
	types.NetworkEthereum:     {types.FamilyEVM, 1},
	types.NetworkSepolia:      {types.FamilyEVM, 11155111},
	types.NetworkBase:         {types.FamilyEVM, 8453},
	types.NetworkBaseSepolia:  {types.FamilyEVM, 84532},
	types.NetworkSolana:       {types.FamilyLedger, 0},
	types.NetworkSolanaDevnet: {types.FamilyLedger, 0},
}

// Handle exposes one configured chain: its family, RPC endpoint, and the
// lazily-connecting client for that family.
type Handle struct {
	Network types.Network
	Family  types.ChainFamily
	RPCURL  string

	// ChainID is set for EVM networks only.
	ChainID *big.Int

	evm    *ethclient.Client
	ledger *solrpc.Client
}

// EVM returns the go-ethereum client. Nil for ledger networks.
func (h *Handle) EVM() *ethclient.Client { return h.evm }

// Ledger returns the ledger RPC client. Nil for EVM networks.
func (h *Handle) Ledger() *solrpc.Client { return h.ledger }

// ChainConfig declares one network the facilitator accepts.
type ChainConfig struct {
	Network types.Network
	RPCURL  string
}

// Registry is the immutable network → handle lookup.
type Registry struct {
	handles map[types.Network]*Handle
}

// NewRegistry dials a client handle per configured network. Unknown network
// identifiers are a configuration error, not a payment verdict.
func NewRegistry(configs []ChainConfig) (*Registry, error) {
	handles := make(map[types.Network]*Handle, len(configs))

	for _, cfg := range configs {
		info, ok := chainInfo[cfg.Network]
		if !ok {
			return nil, types.Errorf(types.ErrConfig, "unknown network %q", cfg.Network)
		}
		if cfg.RPCURL == "" {
			return nil, types.Errorf(types.ErrConfig, "network %s has no rpc url", cfg.Network)
		}

		h := &Handle{
			Network: cfg.Network,
			Family:  info.family,
			RPCURL:  cfg.RPCURL,
		}

		switch info.family {
		case types.FamilyEVM:
			client, err := ethclient.Dial(cfg.RPCURL)
			if err != nil {
				return nil, fmt.Errorf("dial %s rpc: %w", cfg.Network, err)
			}
			h.evm = client
			h.ChainID = big.NewInt(info.chainID)
		case types.FamilyLedger:
			h.ledger = solrpc.New(cfg.RPCURL)
		}

		handles[cfg.Network] = h
	}

	return &Registry{handles: handles}, nil
}

// Resolve returns the handle for a network, or an unsupported-network error
// when the facilitator is not configured for it.
func (r *Registry) Resolve(network types.Network) (*Handle, error) {
	h, ok := r.handles[network]
	if !ok {
		return nil, types.Errorf(types.ReasonUnsupportedNetwork, "network %s not supported by this facilitator", network)
	}
	return h, nil
}

// Family classifies a configured network by chain family.
func (r *Registry) Family(network types.Network) (types.ChainFamily, error) {
	h, err := r.Resolve(network)
	if err != nil {
		return "", err
	}
	return h.Family, nil
}

// Networks lists every configured network.
func (r *Registry) Networks() []types.Network {
	out := make([]types.Network, 0, len(r.handles))
	for n := range r.handles {
		out = append(out, n)
	}
	return out
}

// Close closes all client connections.
func (r *Registry) Close() {
	for _, h := range r.handles {
		if h.evm != nil {
			h.evm.Close()
		}
	}
}
