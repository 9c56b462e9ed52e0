package types

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Uint256String holds a uint256-sized value as a decimal string. Clients send
// these fields as either JSON strings or JSON numbers; both are accepted.
type Uint256String string

func (u *Uint256String) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if len(s) >= 2 && s[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*u = Uint256String(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*u = Uint256String(n.String())
	return nil
}

func (u Uint256String) String() string { return string(u) }

// EVMAuthorization is an EIP-3009 TransferWithAuthorization statement: a
// bounded token transfer the payer signed off-chain, valid only inside
// [ValidAfter, ValidBefore].
type EVMAuthorization struct {
	From        string        `json:"from"`
	To          string        `json:"to"`
	Value       Uint256String `json:"value"`
	ValidAfter  Uint256String `json:"validAfter"`
	ValidBefore Uint256String `json:"validBefore"`
	Nonce       string        `json:"nonce"` // bytes32 hex
}

// EVMPayload carries an authorization plus its detached 65-byte signature.
type EVMPayload struct {
	Authorization EVMAuthorization `json:"authorization"`
	Signature     string           `json:"signature"`
}

// LedgerPayload carries a complete pre-signed transaction, base64-encoded.
// It is opaque to the verifier; the payer identity is only recoverable after
// settlement.
type LedgerPayload struct {
	Transaction string `json:"transaction"`
}

// PaymentPayload is the decoded payment envelope: a tagged union with exactly
// one chain-family case populated, selected once at decode time.
type PaymentPayload struct {
	Family ChainFamily

	EVM    *EVMPayload
	Ledger *LedgerPayload
}

// envelope matches both wire nestings: fields at the top level, or wrapped in
// a "payload" object. Both shapes are in the wild and must be accepted.
type envelope struct {
	Authorization *EVMAuthorization `json:"authorization"`
	Signature     string            `json:"signature"`
	Transaction   string            `json:"transaction"`
	Payload       *struct {
		Authorization *EVMAuthorization `json:"authorization"`
		Signature     string            `json:"signature"`
		Transaction   string            `json:"transaction"`
	} `json:"payload"`
}

// DecodePaymentPayload parses a base64-encoded JSON payment payload into the
// chain-family union for the given family. The family comes from the payment
// requirements' network, not from the payload itself.
func DecodePaymentPayload(encoded string, family ChainFamily) (*PaymentPayload, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid base64: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid payload json: %w", err)
	}

	auth, sig, tx := env.Authorization, env.Signature, env.Transaction
	if env.Payload != nil {
		if auth == nil {
			auth = env.Payload.Authorization
			sig = env.Payload.Signature
		}
		if tx == "" {
			tx = env.Payload.Transaction
		}
	}

	switch family {
	case FamilyEVM:
		if auth == nil {
			// Envelope parsed but carries no authorization: the verifier
			// reports this as missing_authorization, not malformed.
			return &PaymentPayload{Family: FamilyEVM}, nil
		}
		return &PaymentPayload{
			Family: FamilyEVM,
			EVM:    &EVMPayload{Authorization: *auth, Signature: sig},
		}, nil
	case FamilyLedger:
		if tx == "" {
			return &PaymentPayload{Family: FamilyLedger}, nil
		}
		return &PaymentPayload{
			Family: FamilyLedger,
			Ledger: &LedgerPayload{Transaction: tx},
		}, nil
	default:
		return nil, fmt.Errorf("unknown chain family %q", family)
	}
}
