// Package facilitator implements an x402 payment facilitator: it verifies
// payment payloads against requirements and settles accepted payments on
// chain, across EVM and ledger network families.
package facilitator

import (
	"context"
	"sort"
	"time"

	"github.com/openfacilitator/go-facilitator/chains"
	"github.com/openfacilitator/go-facilitator/logger"
	"github.com/openfacilitator/go-facilitator/metrics"
	"github.com/openfacilitator/go-facilitator/settlement"
	"github.com/openfacilitator/go-facilitator/types"
	"github.com/openfacilitator/go-facilitator/verification"
)

// PaymentScheme is the only scheme this facilitator implements.
const PaymentScheme = "exact"

// Facilitator bundles verification and settlement over one chain registry.
type Facilitator struct {
	registry *chains.Registry
	verifier *verification.Verifier
	settler  *settlement.Service

	log     logger.Logger
	metrics metrics.Recorder
}

// New builds a facilitator over the given registry. Options default to a noop
// logger and recorder, a 30s settlement timeout, and no outcome store (no
// replay protection; supply WithOutcomeStore in production).
func New(registry *chains.Registry, opts ...Option) *Facilitator {
	o := &options{
		log:     logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(o)
	}

	verifier := verification.NewVerifier(registry, o.clock, o.log)
	settler := settlement.NewService(registry, verifier, o.outcomes, o.timeout, o.log, o.metrics)

	return &Facilitator{
		registry: registry,
		verifier: verifier,
		settler:  settler,
		log:      o.log,
		metrics:  o.metrics,
	}
}

// Verify checks a payment payload against requirements. The verdict is
// returned in the response; Verify itself never fails.
func (f *Facilitator) Verify(ctx context.Context, req *types.VerifyRequest) *types.VerifyResponse {
	start := time.Now()
	defer func() {
		f.metrics.ObserveLatency("verify", time.Since(start), map[string]string{"network": req.PaymentRequirements.Network})
	}()

	verdict := f.verifier.Verify(ctx, req.PaymentPayload, &req.PaymentRequirements)

	outcome := "verify_rejected"
	if verdict.Valid {
		outcome = "verify_accepted"
	}
	f.metrics.IncCounter(outcome, map[string]string{"network": req.PaymentRequirements.Network})

	return verdict
}

// Settle verifies and then executes a payment with the supplied signing key.
func (f *Facilitator) Settle(ctx context.Context, req *types.SettleRequest) *types.SettleResponse {
	return f.settler.Settle(ctx, req.PaymentPayload, &req.PaymentRequirements, req.SigningKey)
}

// Settler exposes the settlement service for callers that manage signing keys
// themselves, such as a custodial key vault.
func (f *Facilitator) Settler() *settlement.Service {
	return f.settler
}

// Registry returns the chain registry the facilitator was built over.
func (f *Facilitator) Registry() *chains.Registry {
	return f.registry
}

// Supported enumerates the (scheme, network, asset) tuples this deployment
// accepts, derived from the configured networks and the known token table.
func (f *Facilitator) Supported() *types.SupportedResponse {
	kinds := make([]types.SupportedKind, 0)
	for _, network := range f.registry.Networks() {
		for _, token := range chains.TokensFor(network) {
			kinds = append(kinds, types.SupportedKind{
				Scheme:  PaymentScheme,
				Network: network.String(),
				Asset:   token.Address,
			})
		}
	}
	sort.Slice(kinds, func(i, j int) bool {
		if kinds[i].Network != kinds[j].Network {
			return kinds[i].Network < kinds[j].Network
		}
		return kinds[i].Asset < kinds[j].Asset
	})
	return &types.SupportedResponse{
		X402Version: types.ProtocolVersion,
		Kinds:       kinds,
	}
}
