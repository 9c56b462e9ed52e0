package settlement

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/openfacilitator/go-facilitator/chains"
	"github.com/openfacilitator/go-facilitator/logger"
	"github.com/openfacilitator/go-facilitator/types"
)

// transferWithAuthorizationABI is the EIP-3009 authorized-transfer entry
// point on the token contract (v,r,s form, as implemented by USDC).
const transferWithAuthorizationABI = `
[
  {
    "name": "transferWithAuthorization",
    "type": "function",
    "stateMutability": "nonpayable",
    "inputs": [
      { "name": "from", "type": "address" },
      { "name": "to", "type": "address" },
      { "name": "value", "type": "uint256" },
      { "name": "validAfter", "type": "uint256" },
      { "name": "validBefore", "type": "uint256" },
      { "name": "nonce", "type": "bytes32" },
      { "name": "v", "type": "uint8" },
      { "name": "r", "type": "bytes32" },
      { "name": "s", "type": "bytes32" }
    ],
    "outputs": []
  }
]
`

// fallbackGasLimit is used when gas estimation is unavailable; authorized
// transfers on USDC-style contracts stay well under this.
const fallbackGasLimit = 120_000

// EVMExecutor broadcasts a meta-transaction invoking the token contract's
// authorized-transfer entry point, with gas paid by the facilitator key.
type EVMExecutor struct {
	tokenABI abi.ABI
	log      logger.Logger
}

func NewEVMExecutor(log logger.Logger) *EVMExecutor {
	if log == nil {
		log = logger.NoopLogger{}
	}
	parsed, err := abi.JSON(strings.NewReader(transferWithAuthorizationABI))
	if err != nil {
		// Static ABI; a parse failure is a programming error.
		panic(err)
	}
	return &EVMExecutor{tokenABI: parsed, log: log}
}

func (e *EVMExecutor) Execute(ctx context.Context, handle *chains.Handle, payload *types.PaymentPayload, req *types.PaymentRequirements, signingKey string) *types.SettleResponse {
	if payload.EVM == nil {
		return evmFail(req.Network, types.ReasonMissingAuthorization)
	}
	if signingKey == "" {
		return evmFail(req.Network, types.ReasonMissingSigningKey)
	}

	priv, err := crypto.HexToECDSA(strings.TrimPrefix(signingKey, "0x"))
	if err != nil {
		return evmFail(req.Network, "invalid signing key")
	}

	callData, err := PackTransferWithAuthorization(e.tokenABI, payload.EVM.Authorization, payload.EVM.Signature)
	if err != nil {
		return evmFail(req.Network, err.Error())
	}

	client := handle.EVM()
	from := crypto.PubkeyToAddress(priv.PublicKey)
	token := common.HexToAddress(req.Asset)

	nonce, err := client.PendingNonceAt(ctx, from)
	if err != nil {
		return evmFail(req.Network, fmt.Sprintf("%s: %v", types.ReasonNetworkError, err))
	}

	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return evmFail(req.Network, fmt.Sprintf("%s: %v", types.ReasonNetworkError, err))
	}

	// Estimation doubles as a dry run: a revert (used nonce, bad signature,
	// insufficient payer balance) surfaces here before anything is broadcast.
	gasLimit, err := client.EstimateGas(ctx, ethereum.CallMsg{
		From: from,
		To:   &token,
		Data: callData,
	})
	if err != nil {
		return evmFail(req.Network, fmt.Sprintf("settlement would revert: %v", err))
	}
	if gasLimit == 0 {
		gasLimit = fallbackGasLimit
	}

	tx := gethtypes.NewTransaction(nonce, token, big.NewInt(0), gasLimit, gasPrice, callData)
	signedTx, err := gethtypes.SignTx(tx, gethtypes.LatestSignerForChainID(handle.ChainID), priv)
	if err != nil {
		return evmFail(req.Network, fmt.Sprintf("sign transaction: %v", err))
	}

	if err := client.SendTransaction(ctx, signedTx); err != nil {
		return evmFail(req.Network, fmt.Sprintf("%s: %v", types.ReasonNetworkError, err))
	}

	e.log.Info("evm settlement broadcast", map[string]any{
		"network": req.Network,
		"tx":      signedTx.Hash().Hex(),
		"from":    payload.EVM.Authorization.From,
	})

	return &types.SettleResponse{
		Success:              true,
		TransactionReference: signedTx.Hash().Hex(),
		Network:              req.Network,
	}
}

func evmFail(network, message string) *types.SettleResponse {
	return &types.SettleResponse{Success: false, Network: network, ErrorMessage: message}
}

// PackTransferWithAuthorization builds the calldata for the authorized
// transfer using the payer's authorization and detached signature.
func PackTransferWithAuthorization(tokenABI abi.ABI, auth types.EVMAuthorization, sigHex string) ([]byte, error) {
	v, r, s, err := SplitSignature(sigHex)
	if err != nil {
		return nil, err
	}

	value, err := types.ParseBigInt(auth.Value.String())
	if err != nil {
		return nil, fmt.Errorf("authorization.value: %w", err)
	}
	validAfter, err := types.ParseBigInt(auth.ValidAfter.String())
	if err != nil {
		return nil, fmt.Errorf("authorization.validAfter: %w", err)
	}
	validBefore, err := types.ParseBigInt(auth.ValidBefore.String())
	if err != nil {
		return nil, fmt.Errorf("authorization.validBefore: %w", err)
	}
	nonce, err := HexToBytes32(auth.Nonce)
	if err != nil {
		return nil, fmt.Errorf("authorization.nonce: %w", err)
	}

	return tokenABI.Pack(
		"transferWithAuthorization",
		common.HexToAddress(auth.From),
		common.HexToAddress(auth.To),
		value,
		validAfter,
		validBefore,
		nonce,
		v,
		r,
		s,
	)
}

// SplitSignature splits a 65-byte ECDSA signature into v, r, s. The contract
// expects v as 27/28; a 0/1 recovery id is normalized up.
func SplitSignature(sigHex string) (v uint8, r [32]byte, s [32]byte, err error) {
	sigBytes, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil {
		return
	}
	if len(sigBytes) != 65 {
		err = fmt.Errorf("invalid signature length: %d", len(sigBytes))
		return
	}

	copy(r[:], sigBytes[0:32])
	copy(s[:], sigBytes[32:64])
	v = sigBytes[64]

	if v < 27 {
		v += 27
	}
	return
}

func HexToBytes32(hexStr string) ([32]byte, error) {
	var out [32]byte

	b, err := hex.DecodeString(strings.TrimPrefix(hexStr, "0x"))
	if err != nil {
		return out, err
	}
	if len(b) != 32 {
		return out, fmt.Errorf("expected 32 bytes, got %d", len(b))
	}

	copy(out[:], b)
	return out, nil
}
