package subscription

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/openfacilitator/go-facilitator/logger"
	"github.com/openfacilitator/go-facilitator/metrics"
	"github.com/openfacilitator/go-facilitator/types"
)

// PaymentEventType is the only webhook event that grants entitlement; other
// event types are acknowledged and ignored.
const PaymentEventType = "payment_link.payment"

// DefaultTier is the tier granted by payment-link payments.
const DefaultTier = "starter"

// PayerResolver maps an on-chain payer address to a user id.
type PayerResolver interface {
	ResolveUser(ctx context.Context, address string) (userID string, found bool, err error)
}

// PaymentEvent is the webhook body for a completed payment-link payment.
type PaymentEvent struct {
	Event   string `json:"event"`
	Payment struct {
		PayerAddress    string `json:"payerAddress"`
		TransactionHash string `json:"transactionHash"`
		Amount          string `json:"amount"`
		Currency        string `json:"currency"`
		Network         string `json:"network"`
	} `json:"payment"`
}

// ActivationResult describes what an accepted webhook delivery did. Action is
// "created", "extended", "ignored" (foreign event type), or "user_not_found".
type ActivationResult struct {
	Action       string          `json:"action"`
	UserID       string          `json:"userId,omitempty"`
	Subscription *Subscription   `json:"subscription,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
}

// Activator turns verified payment webhooks into subscription grants.
type Activator struct {
	secret   []byte
	resolver PayerResolver
	store    *Store
	log      logger.Logger
	metrics  metrics.Recorder
}

func NewActivator(secret string, resolver PayerResolver, store *Store, log logger.Logger, rec metrics.Recorder) (*Activator, error) {
	if secret == "" {
		return nil, types.Errorf(types.ErrConfig, "webhook secret is required")
	}
	if log == nil {
		log = logger.NoopLogger{}
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Activator{
		secret:   []byte(secret),
		resolver: resolver,
		store:    store,
		log:      log,
		metrics:  rec,
	}, nil
}

// Activate authenticates and processes one webhook delivery. The signature
// covers the exact raw body bytes; a body reserialized before verification
// would not authenticate. Business outcomes (unknown payer, foreign event)
// come back as results so the caller acknowledges the delivery; only bad
// signatures and malformed bodies are errors.
func (a *Activator) Activate(ctx context.Context, rawBody []byte, signatureHeader string) (*ActivationResult, error) {
	if !a.verifySignature(rawBody, signatureHeader) {
		a.metrics.IncCounter("webhook_rejected", nil)
		return nil, types.Errorf(types.ErrInvalidSignature, "webhook signature mismatch")
	}

	var event PaymentEvent
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return nil, types.Errorf(types.ErrInvalidPayload, "webhook body: %v", err)
	}

	if event.Event != PaymentEventType {
		a.log.Debug("ignoring webhook event", map[string]any{"event": event.Event})
		return &ActivationResult{Action: "ignored"}, nil
	}

	if event.Payment.PayerAddress == "" || event.Payment.TransactionHash == "" {
		return nil, types.Errorf(types.ErrInvalidPayload, "payment event missing payerAddress or transactionHash")
	}

	amount := decimal.Zero
	if event.Payment.Amount != "" {
		parsed, err := decimal.NewFromString(event.Payment.Amount)
		if err != nil {
			return nil, types.Errorf(types.ErrInvalidPayload, "payment amount %q: %v", event.Payment.Amount, err)
		}
		amount = parsed
	}

	userID, found, err := a.resolver.ResolveUser(ctx, event.Payment.PayerAddress)
	if err != nil {
		return nil, err
	}
	if !found {
		a.log.Warn("payment from unknown payer", map[string]any{
			"payer": event.Payment.PayerAddress,
			"tx":    event.Payment.TransactionHash,
		})
		a.metrics.IncCounter("webhook_unknown_payer", map[string]string{"network": event.Payment.Network})
		return &ActivationResult{Action: "user_not_found", Amount: amount}, nil
	}

	sub, created, err := a.store.CreateOrExtend(ctx, userID, DefaultTier, event.Payment.TransactionHash)
	if err != nil {
		return nil, err
	}

	action := "extended"
	if created {
		action = "created"
	}
	a.log.Info("subscription activated", map[string]any{
		"user":    userID,
		"action":  action,
		"tx":      event.Payment.TransactionHash,
		"expires": sub.ExpiresAt,
	})
	a.metrics.IncCounter("subscription_"+action, map[string]string{"network": event.Payment.Network})

	return &ActivationResult{
		Action:       action,
		UserID:       userID,
		Subscription: sub,
		Amount:       amount,
	}, nil
}

func (a *Activator) verifySignature(rawBody []byte, signatureHeader string) bool {
	if signatureHeader == "" {
		return false
	}
	provided, err := hex.DecodeString(signatureHeader)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, a.secret)
	mac.Write(rawBody)
	return hmac.Equal(provided, mac.Sum(nil))
}

// Sign computes the signature header value for a body, for trusted internal
// callers emitting webhooks.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
