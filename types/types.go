package types

import "fmt"

// ProtocolVersion is the x402 protocol version this facilitator speaks.
const ProtocolVersion = 1

// PaymentRequirements defines the acceptance policy a resource server sets
// for one payment. Immutable once supplied.
type PaymentRequirements struct {
	// Scheme of the payment protocol to use (e.g., "exact").
	Scheme string `json:"scheme" validate:"required"`

	// Network of the blockchain to send payment on (e.g., "base").
	Network string `json:"network" validate:"required"`

	// Maximum amount required to pay for the resource in atomic units of the
	// asset. Represented as a string because Go does not support uint256.
	MaxAmountRequired string `json:"maxAmountRequired" validate:"required"`

	// Address of the asset contract (token mint on ledger networks).
	Asset string `json:"asset" validate:"required"`

	// Address to which the payment must be sent.
	PayTo string `json:"payTo,omitempty"`

	// URL of the resource to pay for.
	Resource string `json:"resource,omitempty"`

	// Description of the resource being purchased.
	Description string `json:"description,omitempty"`
}

// VerifyRequest is the payload sent to the facilitator to verify a payment.
type VerifyRequest struct {
	X402Version int `json:"x402Version"`

	// Base64-encoded payment payload from the client.
	PaymentPayload string `json:"paymentPayload" validate:"required"`

	PaymentRequirements PaymentRequirements `json:"paymentRequirements"`
}

// SettleRequest asks the facilitator to execute a verified payment on-chain.
// Either UserID (custodial signing wallet) or SigningKey must be set.
type SettleRequest struct {
	X402Version int `json:"x402Version"`

	PaymentPayload      string              `json:"paymentPayload" validate:"required"`
	PaymentRequirements PaymentRequirements `json:"paymentRequirements"`

	UserID     string `json:"userId,omitempty"`
	SigningKey string `json:"signingKey,omitempty"`
}

// VerifyResponse is the facilitator's verification verdict. Terminal, never
// persisted. Valid=true always carries a non-empty Payer.
type VerifyResponse struct {
	Valid         bool   `json:"valid"`
	Payer         string `json:"payer,omitempty"`
	InvalidReason string `json:"invalidReason,omitempty"`
}

// SettleResponse is the facilitator's settlement outcome. Terminal.
type SettleResponse struct {
	Success              bool   `json:"success"`
	TransactionReference string `json:"transactionReference,omitempty"`
	Network              string `json:"network"`
	ErrorMessage         string `json:"errorMessage,omitempty"`
}

// SupportedKind is one (scheme, network, asset) tuple the facilitator accepts.
type SupportedKind struct {
	Scheme  string `json:"scheme"`
	Network string `json:"network"`
	Asset   string `json:"asset"`
}

type SupportedResponse struct {
	X402Version int             `json:"x402Version"`
	Kinds       []SupportedKind `json:"kinds"`
}

// FacilitatorError is a hard failure: configuration or infrastructure, never
// a payment verdict. Payment verdicts travel inside results.
type FacilitatorError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *FacilitatorError) Error() string {
	return e.Message
}

func Errorf(code, format string, args ...any) *FacilitatorError {
	return &FacilitatorError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Error codes for hard failures.
const (
	ErrConfig           = "config_error"
	ErrInvalidSignature = "invalid_signature"
	ErrInvalidPayload   = "invalid_payload"
)

// Invalid reasons reported in VerifyResponse / SettleResponse.
const (
	ReasonUnsupportedNetwork   = "unsupported_network"
	ReasonMalformedPayload     = "malformed_payload"
	ReasonMissingAuthorization = "missing_authorization"
	ReasonNotYetValid          = "not_yet_valid"
	ReasonExpired              = "expired"
	ReasonAmountTooLow         = "amount_too_low"
	ReasonMissingSigningKey    = "missing_signing_key"
	ReasonNetworkError         = "network_error"
	ReasonAlreadySettled       = "already_settled"
)
