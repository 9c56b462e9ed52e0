package types

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encode(t *testing.T, body string) string {
	t.Helper()
	return base64.StdEncoding.EncodeToString([]byte(body))
}

func TestDecodePaymentPayloadFlatShape(t *testing.T) {
	body := `{
		"authorization": {
			"from": "0x1111111111111111111111111111111111111111",
			"to": "0x2222222222222222222222222222222222222222",
			"value": "1000000",
			"validAfter": "0",
			"validBefore": "99999999999",
			"nonce": "0x0000000000000000000000000000000000000000000000000000000000000001"
		},
		"signature": "0xdead"
	}`

	payload, err := DecodePaymentPayload(encode(t, body), FamilyEVM)
	require.NoError(t, err)
	require.NotNil(t, payload.EVM)
	assert.Equal(t, FamilyEVM, payload.Family)
	assert.Nil(t, payload.Ledger)
	assert.Equal(t, "0x1111111111111111111111111111111111111111", payload.EVM.Authorization.From)
	assert.Equal(t, "1000000", payload.EVM.Authorization.Value.String())
	assert.Equal(t, "0xdead", payload.EVM.Signature)
}

func TestDecodePaymentPayloadNestedShape(t *testing.T) {
	body := `{
		"payload": {
			"authorization": {
				"from": "0x1111111111111111111111111111111111111111",
				"to": "0x2222222222222222222222222222222222222222",
				"value": "42",
				"validAfter": "0",
				"validBefore": "99999999999",
				"nonce": "0x01"
			},
			"signature": "0xbeef"
		}
	}`

	payload, err := DecodePaymentPayload(encode(t, body), FamilyEVM)
	require.NoError(t, err)
	require.NotNil(t, payload.EVM)
	assert.Equal(t, "42", payload.EVM.Authorization.Value.String())
	assert.Equal(t, "0xbeef", payload.EVM.Signature)
}

func TestDecodePaymentPayloadNumericFields(t *testing.T) {
	// Some clients send uint256 fields as JSON numbers instead of strings.
	body := `{
		"authorization": {
			"from": "0x1111111111111111111111111111111111111111",
			"to": "0x2222222222222222222222222222222222222222",
			"value": 1000000,
			"validAfter": 0,
			"validBefore": 99999999999,
			"nonce": "0x01"
		},
		"signature": "0xdead"
	}`

	payload, err := DecodePaymentPayload(encode(t, body), FamilyEVM)
	require.NoError(t, err)
	require.NotNil(t, payload.EVM)
	assert.Equal(t, "1000000", payload.EVM.Authorization.Value.String())
	assert.Equal(t, "99999999999", payload.EVM.Authorization.ValidBefore.String())
}

func TestDecodePaymentPayloadMissingAuthorization(t *testing.T) {
	// A well-formed envelope with no authorization decodes to a nil EVM case
	// so the verifier can report the absence precisely.
	payload, err := DecodePaymentPayload(encode(t, `{"signature": "0xdead"}`), FamilyEVM)
	require.NoError(t, err)
	assert.Nil(t, payload.EVM)
}

func TestDecodePaymentPayloadLedger(t *testing.T) {
	payload, err := DecodePaymentPayload(encode(t, `{"transaction": "AQID"}`), FamilyLedger)
	require.NoError(t, err)
	require.NotNil(t, payload.Ledger)
	assert.Nil(t, payload.EVM)
	assert.Equal(t, "AQID", payload.Ledger.Transaction)
}

func TestDecodePaymentPayloadLedgerNestedShape(t *testing.T) {
	payload, err := DecodePaymentPayload(encode(t, `{"payload": {"transaction": "AQID"}}`), FamilyLedger)
	require.NoError(t, err)
	require.NotNil(t, payload.Ledger)
	assert.Equal(t, "AQID", payload.Ledger.Transaction)
}

func TestDecodePaymentPayloadBadBase64(t *testing.T) {
	_, err := DecodePaymentPayload("not-base64!!!", FamilyEVM)
	assert.Error(t, err)
}

func TestDecodePaymentPayloadBadJSON(t *testing.T) {
	_, err := DecodePaymentPayload(encode(t, `{"authorization": `), FamilyEVM)
	assert.Error(t, err)
}
