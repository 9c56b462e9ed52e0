package settlement

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfacilitator/go-facilitator/types"
)

func testAuthorization() types.EVMAuthorization {
	return types.EVMAuthorization{
		From:        "0x1111111111111111111111111111111111111111",
		To:          "0x2222222222222222222222222222222222222222",
		Value:       "1000000",
		ValidAfter:  "0",
		ValidBefore: "99999999999",
		Nonce:       "0x0000000000000000000000000000000000000000000000000000000000000001",
	}
}

// 65 bytes: r || s || v.
func testSignature(v byte) string {
	return "0x" + strings.Repeat("11", 32) + strings.Repeat("22", 32) + map[byte]string{0: "00", 1: "01", 27: "1b", 28: "1c"}[v]
}

func TestSplitSignature(t *testing.T) {
	v, r, s, err := SplitSignature(testSignature(28))
	require.NoError(t, err)
	assert.Equal(t, uint8(28), v)
	assert.Equal(t, byte(0x11), r[0])
	assert.Equal(t, byte(0x22), s[0])
}

func TestSplitSignatureNormalizesRecoveryID(t *testing.T) {
	// Wallets emit v as 0/1; the contract expects 27/28.
	v, _, _, err := SplitSignature(testSignature(0))
	require.NoError(t, err)
	assert.Equal(t, uint8(27), v)

	v, _, _, err = SplitSignature(testSignature(1))
	require.NoError(t, err)
	assert.Equal(t, uint8(28), v)
}

func TestSplitSignatureRejectsBadInput(t *testing.T) {
	_, _, _, err := SplitSignature("0xdead")
	assert.Error(t, err)

	_, _, _, err = SplitSignature("not-hex")
	assert.Error(t, err)
}

func TestPackTransferWithAuthorization(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(transferWithAuthorizationABI))
	require.NoError(t, err)

	callData, err := PackTransferWithAuthorization(parsed, testAuthorization(), testSignature(27))
	require.NoError(t, err)

	// 4-byte selector + 9 packed words.
	assert.Len(t, callData, 4+9*32)

	method, err := parsed.MethodById(callData[:4])
	require.NoError(t, err)
	assert.Equal(t, "transferWithAuthorization", method.Name)
}

func TestPackRejectsBadNonce(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(transferWithAuthorizationABI))
	require.NoError(t, err)

	auth := testAuthorization()
	auth.Nonce = "0x01"
	_, err = PackTransferWithAuthorization(parsed, auth, testSignature(27))
	assert.Error(t, err)
}

func TestHexToBytes32(t *testing.T) {
	out, err := HexToBytes32("0x" + strings.Repeat("ab", 32))
	require.NoError(t, err)
	assert.Equal(t, byte(0xab), out[0])
	assert.Equal(t, byte(0xab), out[31])

	_, err = HexToBytes32("0xabcd")
	assert.Error(t, err)
}
