package types

import (
	"fmt"
	"math/big"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks that the requirements carry everything verification needs.
func (pr *PaymentRequirements) Validate() error {
	if err := validate.Struct(pr); err != nil {
		return fmt.Errorf("invalid payment requirements: %w", err)
	}
	if _, err := ParseBigInt(pr.MaxAmountRequired); err != nil {
		return fmt.Errorf("paymentRequirements.maxAmountRequired: %w", err)
	}
	return nil
}

// Validate checks that the VerifyRequest contains all required fields.
func (v *VerifyRequest) Validate() error {
	if v.X402Version != ProtocolVersion {
		return fmt.Errorf("unsupported x402Version %d", v.X402Version)
	}
	if err := validate.Struct(v); err != nil {
		return err
	}
	return v.PaymentRequirements.Validate()
}

// Validate checks that the SettleRequest contains all required fields.
func (s *SettleRequest) Validate() error {
	if s.X402Version != ProtocolVersion {
		return fmt.Errorf("unsupported x402Version %d", s.X402Version)
	}
	if err := validate.Struct(s); err != nil {
		return err
	}
	return s.PaymentRequirements.Validate()
}

// ParseBigInt parses an unsigned decimal string into a big.Int. Protocol
// amount comparisons go through big.Int, never floating point.
func ParseBigInt(value string) (*big.Int, error) {
	if value == "" {
		return nil, fmt.Errorf("value cannot be empty")
	}
	n, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", value)
	}
	if n.Sign() < 0 {
		return nil, fmt.Errorf("value cannot be negative")
	}
	return n, nil
}

var hexAddressRe = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// LooksLikeEVMAddress reports whether s has the shape of a 20-byte hex
// address. EVM addresses compare case-insensitively; ledger addresses are
// base58 and must never be case-folded.
func LooksLikeEVMAddress(s string) bool {
	return hexAddressRe.MatchString(s)
}
