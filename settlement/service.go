// Package settlement converts verified payment payloads into on-chain
// broadcasts. Settlement always re-runs verification first: it must never
// execute on an unverified payload.
package settlement

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/openfacilitator/go-facilitator/chains"
	"github.com/openfacilitator/go-facilitator/logger"
	"github.com/openfacilitator/go-facilitator/metrics"
	"github.com/openfacilitator/go-facilitator/types"
	"github.com/openfacilitator/go-facilitator/verification"
)

// Executor is one chain-family settlement implementation. It receives a
// payload that has already passed verification.
type Executor interface {
	Execute(ctx context.Context, handle *chains.Handle, payload *types.PaymentPayload, req *types.PaymentRequirements, signingKey string) *types.SettleResponse
}

// Service dispatches settlements to the chain-family executors and enforces
// at-most-once semantics per payload fingerprint.
type Service struct {
	registry  *chains.Registry
	verifier  *verification.Verifier
	executors map[types.ChainFamily]Executor
	outcomes  OutcomeStore
	timeout   time.Duration
	log       logger.Logger
	metrics   metrics.Recorder
}

func NewService(
	registry *chains.Registry,
	verifier *verification.Verifier,
	outcomes OutcomeStore,
	timeout time.Duration,
	log logger.Logger,
	rec metrics.Recorder,
) *Service {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = logger.NoopLogger{}
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Service{
		registry: registry,
		verifier: verifier,
		executors: map[types.ChainFamily]Executor{
			types.FamilyEVM:    NewEVMExecutor(log),
			types.FamilyLedger: NewLedgerExecutor(log),
		},
		outcomes: outcomes,
		timeout:  timeout,
		log:      log,
		metrics:  rec,
	}
}

// RegisterExecutor replaces the executor for a chain family.
func (s *Service) RegisterExecutor(family types.ChainFamily, e Executor) {
	s.executors[family] = e
}

// Settle verifies the payload and, if valid, broadcasts the transfer. RPC
// rejections are reported in the result and never retried internally.
func (s *Service) Settle(ctx context.Context, encodedPayload string, req *types.PaymentRequirements, signingKey string) *types.SettleResponse {
	settleCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		s.metrics.ObserveLatency("settle", time.Since(start), map[string]string{"network": req.Network})
	}()

	verdict := s.verifier.Verify(settleCtx, encodedPayload, req)
	if !verdict.Valid {
		s.metrics.IncCounter("settle_rejected", map[string]string{"network": req.Network})
		return s.fail(req.Network, verdict.InvalidReason)
	}

	handle, err := s.registry.Resolve(types.Network(req.Network))
	if err != nil {
		return s.fail(req.Network, types.ReasonUnsupportedNetwork)
	}

	payload, err := types.DecodePaymentPayload(encodedPayload, handle.Family)
	if err != nil {
		return s.fail(req.Network, types.ReasonMalformedPayload)
	}

	executor, ok := s.executors[handle.Family]
	if !ok {
		return s.fail(req.Network, "no settlement executor for network "+req.Network)
	}

	fp := Fingerprint(encodedPayload, req.Network)
	if s.outcomes != nil {
		prior, acquired, err := s.outcomes.Begin(settleCtx, fp)
		if err != nil {
			return s.fail(req.Network, types.ReasonNetworkError)
		}
		if prior != nil {
			s.log.Warn("settlement replay, returning recorded outcome", map[string]any{
				"network":     req.Network,
				"fingerprint": fp,
			})
			return prior
		}
		if !acquired {
			return s.fail(req.Network, types.ReasonAlreadySettled)
		}
	}

	result := executor.Execute(settleCtx, handle, payload, req, signingKey)

	if s.outcomes != nil {
		if err := s.outcomes.Finish(settleCtx, fp, result); err != nil {
			s.log.Error("failed to record settlement outcome", map[string]any{
				"network":     req.Network,
				"fingerprint": fp,
				"error":       err.Error(),
			})
		}
	}

	outcome := "settle_failed"
	if result.Success {
		outcome = "settle_succeeded"
	}
	s.metrics.IncCounter(outcome, map[string]string{"network": req.Network})

	return result
}

func (s *Service) fail(network, message string) *types.SettleResponse {
	return &types.SettleResponse{
		Success:      false,
		Network:      network,
		ErrorMessage: message,
	}
}

// Fingerprint identifies one settlement attempt: same payload bytes on the
// same network hash to the same fingerprint.
func Fingerprint(encodedPayload, network string) string {
	h := sha256.Sum256([]byte(encodedPayload + "|" + network))
	return hex.EncodeToString(h[:])
}
