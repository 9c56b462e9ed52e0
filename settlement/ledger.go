package settlement

import (
	"context"
	"encoding/base64"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/openfacilitator/go-facilitator/chains"
	"github.com/openfacilitator/go-facilitator/logger"
	"github.com/openfacilitator/go-facilitator/types"
)

// LedgerExecutor submits a pre-signed ledger transaction as-is. The payer
// signed the transfer; the facilitator key only co-signs when the transaction
// names it as fee payer.
type LedgerExecutor struct {
	log logger.Logger
}

func NewLedgerExecutor(log logger.Logger) *LedgerExecutor {
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &LedgerExecutor{log: log}
}

func (e *LedgerExecutor) Execute(ctx context.Context, handle *chains.Handle, payload *types.PaymentPayload, req *types.PaymentRequirements, signingKey string) *types.SettleResponse {
	if payload.Ledger == nil || payload.Ledger.Transaction == "" {
		return ledgerFail(req.Network, types.ReasonMalformedPayload)
	}

	txBytes, err := base64.StdEncoding.DecodeString(payload.Ledger.Transaction)
	if err != nil {
		return ledgerFail(req.Network, fmt.Sprintf("invalid transaction base64: %v", err))
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(txBytes))
	if err != nil {
		return ledgerFail(req.Network, fmt.Sprintf("transaction decode failed: %v", err))
	}

	if signingKey != "" {
		if err := coSignAsFeePayer(tx, signingKey); err != nil {
			return ledgerFail(req.Network, err.Error())
		}
	}

	sig, err := handle.Ledger().SendTransaction(ctx, tx)
	if err != nil {
		return ledgerFail(req.Network, fmt.Sprintf("%s: %v", types.ReasonNetworkError, err))
	}

	e.log.Info("ledger settlement broadcast", map[string]any{
		"network": req.Network,
		"tx":      sig.String(),
	})

	return &types.SettleResponse{
		Success:              true,
		TransactionReference: sig.String(),
		Network:              req.Network,
	}
}

// coSignAsFeePayer fills in the facilitator's signature slot when the
// transaction lists its key among required signers and the slot is empty.
// Already-complete transactions pass through untouched.
func coSignAsFeePayer(tx *solana.Transaction, signingKey string) error {
	pk, err := solana.PrivateKeyFromBase58(signingKey)
	if err != nil {
		return fmt.Errorf("invalid signing key: %w", err)
	}
	pub := pk.PublicKey()

	required := int(tx.Message.Header.NumRequiredSignatures)
	if len(tx.Signatures) < required {
		grown := make([]solana.Signature, required)
		copy(grown, tx.Signatures)
		tx.Signatures = grown
	}

	for i := 0; i < required && i < len(tx.Message.AccountKeys); i++ {
		if !tx.Message.AccountKeys[i].Equals(pub) {
			continue
		}
		if !tx.Signatures[i].IsZero() {
			return nil
		}
		msgBytes, err := tx.Message.MarshalBinary()
		if err != nil {
			return fmt.Errorf("marshal message: %w", err)
		}
		sig, err := pk.Sign(msgBytes)
		if err != nil {
			return fmt.Errorf("fee payer signing failed: %w", err)
		}
		tx.Signatures[i] = sig
		return nil
	}
	return nil
}

func ledgerFail(network, message string) *types.SettleResponse {
	return &types.SettleResponse{Success: false, Network: network, ErrorMessage: message}
}
