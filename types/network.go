package types

// ChainFamily classifies how a network settles payments: EVM networks redeem
// a detached EIP-3009 authorization, ledger networks broadcast a transaction
// the payer has already signed in full.
type ChainFamily string

const (
	FamilyEVM    ChainFamily = "evm"
	FamilyLedger ChainFamily = "ledger"
)

// Network represents supported blockchain networks
type Network string

const (
	// EVM networks
	NetworkEthereum    Network = "ethereum"
	NetworkSepolia     Network = "sepolia" // testnet
	NetworkBase        Network = "base"
	NetworkBaseSepolia Network = "base-sepolia" // testnet

	// Ledger networks
	NetworkSolana       Network = "solana"
	NetworkSolanaDevnet Network = "solana-devnet" // testnet
)

func (n Network) IsEVM() bool {
	return n == NetworkEthereum || n == NetworkSepolia || n == NetworkBase || n == NetworkBaseSepolia
}

func (n Network) IsLedger() bool {
	return n == NetworkSolana || n == NetworkSolanaDevnet
}

// Family returns the chain family, or "" for an unknown network.
func (n Network) Family() ChainFamily {
	switch {
	case n.IsEVM():
		return FamilyEVM
	case n.IsLedger():
		return FamilyLedger
	default:
		return ""
	}
}

func (n Network) IsTestnet() bool {
	return n == NetworkSepolia || n == NetworkBaseSepolia || n == NetworkSolanaDevnet
}

func (n Network) String() string {
	return string(n)
}
