// Package verification decides whether a payment payload satisfies a set of
// payment requirements. Verification is read-only and side-effect-free so a
// resource server can probe acceptance repeatedly without cost or risk.
package verification

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/openfacilitator/go-facilitator/chains"
	"github.com/openfacilitator/go-facilitator/logger"
	"github.com/openfacilitator/go-facilitator/types"
)

// ledgerPayerPlaceholder stands in for the payer of a pre-signed ledger
// transaction; the real payer is only recoverable after settlement.
const ledgerPayerPlaceholder = "solana-payer"

// Verifier cross-checks decoded payment payloads against requirements.
type Verifier struct {
	registry *chains.Registry
	clock    func() time.Time
	log      logger.Logger
}

func NewVerifier(registry *chains.Registry, clock func() time.Time, log logger.Logger) *Verifier {
	if clock == nil {
		clock = time.Now
	}
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &Verifier{registry: registry, clock: clock, log: log}
}

// Verify decodes the payload envelope and returns a validity verdict plus the
// payer identity. Failures are reported in the result; verification never
// returns an error past this boundary. InvalidReason carries a stable reason
// code; the human detail goes to the log.
func (v *Verifier) Verify(ctx context.Context, encodedPayload string, req *types.PaymentRequirements) *types.VerifyResponse {
	if err := req.Validate(); err != nil {
		return v.invalid(types.ReasonMalformedPayload, err.Error())
	}

	handle, err := v.registry.Resolve(types.Network(req.Network))
	if err != nil {
		return v.invalid(types.ReasonUnsupportedNetwork,
			fmt.Sprintf("network %s not supported by this facilitator", req.Network))
	}

	payload, err := types.DecodePaymentPayload(encodedPayload, handle.Family)
	if err != nil {
		return v.invalid(types.ReasonMalformedPayload, err.Error())
	}

	switch handle.Family {
	case types.FamilyEVM:
		return v.verifyEVM(payload, req)
	case types.FamilyLedger:
		return v.verifyLedger(payload)
	default:
		return v.invalid(types.ReasonUnsupportedNetwork,
			fmt.Sprintf("unknown chain family for network %s", req.Network))
	}
}

// verifyEVM checks the authorization's validity window and amount against the
// requirements, using the facilitator's own clock and unsigned big-integer
// comparison. Signature recovery and nonce state are settlement concerns.
func (v *Verifier) verifyEVM(payload *types.PaymentPayload, req *types.PaymentRequirements) *types.VerifyResponse {
	if payload.EVM == nil {
		return v.invalid(types.ReasonMissingAuthorization, "missing authorization in EVM payment payload")
	}
	auth := payload.EVM.Authorization

	if auth.From == "" || !types.LooksLikeEVMAddress(auth.From) {
		return v.invalid(types.ReasonMalformedPayload, "authorization.from is not a valid address")
	}

	validAfter, err := types.ParseBigInt(auth.ValidAfter.String())
	if err != nil {
		return v.invalid(types.ReasonMalformedPayload, fmt.Sprintf("authorization.validAfter: %v", err))
	}
	validBefore, err := types.ParseBigInt(auth.ValidBefore.String())
	if err != nil {
		return v.invalid(types.ReasonMalformedPayload, fmt.Sprintf("authorization.validBefore: %v", err))
	}

	now := big.NewInt(v.clock().Unix())
	if now.Cmp(validAfter) < 0 {
		return v.invalid(types.ReasonNotYetValid, "payment not yet valid")
	}
	if now.Cmp(validBefore) > 0 {
		return v.invalid(types.ReasonExpired, "payment has expired")
	}

	value, err := types.ParseBigInt(auth.Value.String())
	if err != nil {
		return v.invalid(types.ReasonMalformedPayload, fmt.Sprintf("authorization.value: %v", err))
	}
	required, err := types.ParseBigInt(req.MaxAmountRequired)
	if err != nil {
		return v.invalid(types.ReasonMalformedPayload, fmt.Sprintf("maxAmountRequired: %v", err))
	}

	// Boundary inclusive: value == required is accepted.
	if value.Cmp(required) < 0 {
		return v.invalid(types.ReasonAmountTooLow,
			fmt.Sprintf("payment amount %s is less than required %s", value, required))
	}

	return &types.VerifyResponse{Valid: true, Payer: auth.From}
}

// verifyLedger is deliberately shallow: the transaction is opaque and
// pre-signed, so signature and balance checks are deferred to settlement.
func (v *Verifier) verifyLedger(payload *types.PaymentPayload) *types.VerifyResponse {
	if payload.Ledger == nil || payload.Ledger.Transaction == "" {
		return v.invalid(types.ReasonMalformedPayload, "missing transaction in ledger payment payload")
	}
	return &types.VerifyResponse{Valid: true, Payer: ledgerPayerPlaceholder}
}

func (v *Verifier) invalid(reason, detail string) *types.VerifyResponse {
	v.log.Debug("payment rejected", map[string]any{"reason": reason, "detail": detail})
	return &types.VerifyResponse{Valid: false, InvalidReason: reason}
}
