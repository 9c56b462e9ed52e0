package chains

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/openfacilitator/go-facilitator/types"
)

// Token describes one accepted payment asset on one network.
type Token struct {
	Network  types.Network
	Address  string
	Symbol   string
	Decimals int32
}

// knownTokens is the static acceptance table; supported() is derived from it.
var knownTokens = []Token{
	{types.NetworkBase, "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", "USDC", 6},
	{types.NetworkBaseSepolia, "0x036CbD53842c5426634e7929541eC2318f3dCF7e", "USDC", 6},
	{types.NetworkEthereum, "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", "USDC", 6},
	{types.NetworkSepolia, "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238", "USDC", 6},
	{types.NetworkSolana, "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", "USDC", 6},
	{types.NetworkSolanaDevnet, "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU", "USDC", 6},

	{types.NetworkBase, "0x4200000000000000000000000000000000000006", "WETH", 18},
	{types.NetworkBaseSepolia, "0x4200000000000000000000000000000000000006", "WETH", 18},
	{types.NetworkEthereum, "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", "WETH", 18},
	{types.NetworkSepolia, "0x7b79995e5f793A07Bc00c21412e50Ecae098E7f9", "WETH", 18},

	{types.NetworkSolana, "So11111111111111111111111111111111111111112", "SOL", 9},
}

// TokensFor returns the accepted tokens on one network.
func TokensFor(network types.Network) []Token {
	var out []Token
	for _, t := range knownTokens {
		if t.Network == network {
			out = append(out, t)
		}
	}
	return out
}

// LookupToken finds a token by network and address. EVM addresses compare
// case-insensitively; ledger addresses must match exactly.
func LookupToken(network types.Network, address string) (Token, bool) {
	for _, t := range knownTokens {
		if t.Network != network {
			continue
		}
		if t.Address == address {
			return t, true
		}
		if network.IsEVM() && strings.EqualFold(t.Address, address) {
			return t, true
		}
	}
	return Token{}, false
}

// DisplayAmount formats an atomic amount in the token's display units.
func (t Token) DisplayAmount(atomic *big.Int) string {
	return decimal.NewFromBigInt(atomic, -t.Decimals).String()
}
