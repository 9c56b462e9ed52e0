package chains

import (
	"context"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
	solrpc "github.com/gagliardetto/solana-go/rpc"

	"github.com/openfacilitator/go-facilitator/types"
)

// balanceOfSelector is the first four bytes of keccak256("balanceOf(address)").
var balanceOfSelector = []byte{0x70, 0xa0, 0x82, 0x31}

// TokenBalance reads the address's balance of a token on the handle's chain,
// in atomic units. EVM networks call balanceOf on the token contract; ledger
// networks sum the owner's token accounts for the mint.
func TokenBalance(ctx context.Context, handle *Handle, token Token, address string) (*big.Int, error) {
	switch handle.Family {
	case types.FamilyEVM:
		return evmTokenBalance(ctx, handle, token, address)
	case types.FamilyLedger:
		return ledgerTokenBalance(ctx, handle, token, address)
	default:
		return nil, types.Errorf(types.ErrConfig, "no balance reader for family %q", handle.Family)
	}
}

func evmTokenBalance(ctx context.Context, handle *Handle, token Token, address string) (*big.Int, error) {
	if !types.LooksLikeEVMAddress(address) {
		return nil, types.Errorf(types.ErrInvalidPayload, "invalid address %q", address)
	}
	contract := common.HexToAddress(token.Address)
	callData := append(append([]byte{}, balanceOfSelector...), common.LeftPadBytes(common.HexToAddress(address).Bytes(), 32)...)

	out, err := handle.EVM().CallContract(ctx, ethereum.CallMsg{To: &contract, Data: callData}, nil)
	if err != nil {
		return nil, fmt.Errorf("balanceOf call on %s: %w", handle.Network, err)
	}
	return new(big.Int).SetBytes(out), nil
}

func ledgerTokenBalance(ctx context.Context, handle *Handle, token Token, address string) (*big.Int, error) {
	owner, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, types.Errorf(types.ErrInvalidPayload, "invalid address %q: %v", address, err)
	}
	mint, err := solana.PublicKeyFromBase58(token.Address)
	if err != nil {
		return nil, types.Errorf(types.ErrConfig, "invalid mint %q: %v", token.Address, err)
	}

	accounts, err := handle.Ledger().GetTokenAccountsByOwner(ctx, owner,
		&solrpc.GetTokenAccountsConfig{Mint: &mint},
		&solrpc.GetTokenAccountsOpts{Encoding: solana.EncodingJSONParsed},
	)
	if err != nil {
		return nil, fmt.Errorf("token accounts on %s: %w", handle.Network, err)
	}

	total := new(big.Int)
	for _, acc := range accounts.Value {
		bal, err := handle.Ledger().GetTokenAccountBalance(ctx, acc.Pubkey, solrpc.CommitmentFinalized)
		if err != nil {
			return nil, fmt.Errorf("token balance on %s: %w", handle.Network, err)
		}
		amount, ok := new(big.Int).SetString(bal.Value.Amount, 10)
		if !ok {
			return nil, fmt.Errorf("unparseable token amount %q", bal.Value.Amount)
		}
		total.Add(total, amount)
	}
	return total, nil
}
