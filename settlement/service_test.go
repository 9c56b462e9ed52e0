package settlement

import (
	"context"
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfacilitator/go-facilitator/chains"
	"github.com/openfacilitator/go-facilitator/types"
	"github.com/openfacilitator/go-facilitator/verification"
)

var fixedNow = time.Unix(1_700_000_000, 0)

func fixedClock() time.Time { return fixedNow }

// fakeExecutor records invocations and returns a canned response.
type fakeExecutor struct {
	calls    int
	lastKey  string
	response *types.SettleResponse
}

func (f *fakeExecutor) Execute(_ context.Context, _ *chains.Handle, _ *types.PaymentPayload, req *types.PaymentRequirements, signingKey string) *types.SettleResponse {
	f.calls++
	f.lastKey = signingKey
	if f.response != nil {
		return f.response
	}
	return &types.SettleResponse{
		Success:              true,
		TransactionReference: "0xfeed",
		Network:              req.Network,
	}
}

func testRegistry(t *testing.T) *chains.Registry {
	t.Helper()
	registry, err := chains.NewRegistry([]chains.ChainConfig{
		{Network: types.NetworkBaseSepolia, RPCURL: "http://localhost:8545"},
	})
	require.NoError(t, err)
	t.Cleanup(registry.Close)
	return registry
}

func testOutcomes(t *testing.T) *RedisOutcomeStore {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisOutcomeStore(rdb, time.Hour)
}

func evmPayload(t *testing.T, value string, validBefore int64) string {
	t.Helper()
	body := fmt.Sprintf(`{
		"authorization": {
			"from": "0x1111111111111111111111111111111111111111",
			"to": "0x2222222222222222222222222222222222222222",
			"value": %q,
			"validAfter": "0",
			"validBefore": "%d",
			"nonce": "0x0000000000000000000000000000000000000000000000000000000000000001"
		},
		"signature": "0xdead"
	}`, value, validBefore)
	return base64.StdEncoding.EncodeToString([]byte(body))
}

func requirements(amount string) *types.PaymentRequirements {
	return &types.PaymentRequirements{
		Scheme:            "exact",
		Network:           "base-sepolia",
		MaxAmountRequired: amount,
		Asset:             "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
	}
}

func newTestService(t *testing.T, fake *fakeExecutor) *Service {
	t.Helper()
	registry := testRegistry(t)
	verifier := verification.NewVerifier(registry, fixedClock, nil)
	svc := NewService(registry, verifier, testOutcomes(t), 5*time.Second, nil, nil)
	svc.RegisterExecutor(types.FamilyEVM, fake)
	return svc
}

func TestSettleExecutesValidPayment(t *testing.T) {
	fake := &fakeExecutor{}
	svc := newTestService(t, fake)

	result := svc.Settle(context.Background(), evmPayload(t, "1000000", fixedNow.Unix()+100), requirements("1000000"), "key-material")

	assert.True(t, result.Success)
	assert.Equal(t, "0xfeed", result.TransactionReference)
	assert.Equal(t, 1, fake.calls)
	assert.Equal(t, "key-material", fake.lastKey)
}

func TestSettleNeverExecutesInvalidPayment(t *testing.T) {
	fake := &fakeExecutor{}
	svc := newTestService(t, fake)

	// Expired authorization: verification rejects, the executor must not run.
	result := svc.Settle(context.Background(), evmPayload(t, "1000000", fixedNow.Unix()-1), requirements("1000000"), "key")

	assert.False(t, result.Success)
	assert.Equal(t, types.ReasonExpired, result.ErrorMessage)
	assert.Equal(t, 0, fake.calls)
}

func TestSettleNeverExecutesUnderpayment(t *testing.T) {
	fake := &fakeExecutor{}
	svc := newTestService(t, fake)

	result := svc.Settle(context.Background(), evmPayload(t, "999999", fixedNow.Unix()+100), requirements("1000000"), "key")

	assert.False(t, result.Success)
	assert.Equal(t, types.ReasonAmountTooLow, result.ErrorMessage)
	assert.Equal(t, 0, fake.calls)
}

func TestSettleReplayReturnsRecordedOutcome(t *testing.T) {
	fake := &fakeExecutor{}
	svc := newTestService(t, fake)

	payload := evmPayload(t, "1000000", fixedNow.Unix()+100)
	first := svc.Settle(context.Background(), payload, requirements("1000000"), "key")
	require.True(t, first.Success)

	second := svc.Settle(context.Background(), payload, requirements("1000000"), "key")

	assert.True(t, second.Success)
	assert.Equal(t, first.TransactionReference, second.TransactionReference)
	assert.Equal(t, 1, fake.calls, "replay must not re-broadcast")
}

func TestSettleFailureOutcomeIsRecordedToo(t *testing.T) {
	fake := &fakeExecutor{response: &types.SettleResponse{
		Success:      false,
		Network:      "base-sepolia",
		ErrorMessage: "settlement would revert: nonce used",
	}}
	svc := newTestService(t, fake)

	payload := evmPayload(t, "1000000", fixedNow.Unix()+100)
	first := svc.Settle(context.Background(), payload, requirements("1000000"), "key")
	second := svc.Settle(context.Background(), payload, requirements("1000000"), "key")

	assert.False(t, first.Success)
	assert.Equal(t, first.ErrorMessage, second.ErrorMessage)
	assert.Equal(t, 1, fake.calls)
}

func TestSettleInFlightFingerprintRejected(t *testing.T) {
	fake := &fakeExecutor{}
	registry := testRegistry(t)
	verifier := verification.NewVerifier(registry, fixedClock, nil)
	outcomes := testOutcomes(t)
	svc := NewService(registry, verifier, outcomes, 5*time.Second, nil, nil)
	svc.RegisterExecutor(types.FamilyEVM, fake)

	payload := evmPayload(t, "1000000", fixedNow.Unix()+100)

	// Claim the fingerprint as if another settlement were mid-flight.
	_, acquired, err := outcomes.Begin(context.Background(), Fingerprint(payload, "base-sepolia"))
	require.NoError(t, err)
	require.True(t, acquired)

	result := svc.Settle(context.Background(), payload, requirements("1000000"), "key")

	assert.False(t, result.Success)
	assert.Equal(t, types.ReasonAlreadySettled, result.ErrorMessage)
	assert.Equal(t, 0, fake.calls)
}

func TestFingerprintDependsOnPayloadAndNetwork(t *testing.T) {
	a := Fingerprint("payload-a", "base")
	assert.Equal(t, a, Fingerprint("payload-a", "base"))
	assert.NotEqual(t, a, Fingerprint("payload-b", "base"))
	assert.NotEqual(t, a, Fingerprint("payload-a", "base-sepolia"))
}
