package main

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	facilitator "github.com/openfacilitator/go-facilitator"
	"github.com/openfacilitator/go-facilitator/chains"
	"github.com/openfacilitator/go-facilitator/logger"
	"github.com/openfacilitator/go-facilitator/subscription"
	"github.com/openfacilitator/go-facilitator/types"
	"github.com/openfacilitator/go-facilitator/vault"
)

// webhookSignatureHeader carries the hex HMAC-SHA256 of the raw request body.
const webhookSignatureHeader = "X-Webhook-Signature"

type handler struct {
	fac       *facilitator.Facilitator
	vault     *vault.Vault
	activator *subscription.Activator
	log       logger.Logger
}

func newHandler(fac *facilitator.Facilitator, v *vault.Vault, activator *subscription.Activator, log logger.Logger) *handler {
	return &handler{fac: fac, vault: v, activator: activator, log: log}
}

func (h *handler) register(r *gin.Engine) {
	r.POST("/verify", h.verify)
	r.POST("/settle", h.settle)
	r.GET("/supported", h.supported)

	internal := r.Group("/internal")
	internal.POST("/wallets", h.generateWallet)
	internal.GET("/wallets/:userId", h.listWallets)
	internal.GET("/wallets/:userId/:network/balance", h.walletBalance)
	internal.POST("/webhooks/subscription", h.webhook)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (h *handler) verify(c *gin.Context) {
	var req types.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.fac.Verify(c.Request.Context(), &req))
}

// settle executes a payment. With a userId the signing key comes from the
// custodial vault and never leaves its scoped callback; with an explicit
// signingKey the caller supplies their own. Business failures are 200 with
// success=false; only transport and infrastructure faults are non-200.
func (h *handler) settle(c *gin.Context) {
	var req types.SettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()

	if req.UserID == "" {
		c.JSON(http.StatusOK, h.fac.Settle(ctx, &req))
		return
	}

	var result *types.SettleResponse
	err := h.vault.WithSigningKey(ctx, req.UserID, types.Network(req.PaymentRequirements.Network), func(key []byte) error {
		result = h.fac.Settler().Settle(ctx, req.PaymentPayload, &req.PaymentRequirements, string(key))
		return nil
	})
	if err != nil {
		var facErr *types.FacilitatorError
		if errors.As(err, &facErr) && facErr.Code == types.ErrInvalidPayload {
			c.JSON(http.StatusOK, &types.SettleResponse{
				Success:      false,
				Network:      req.PaymentRequirements.Network,
				ErrorMessage: types.ReasonMissingSigningKey,
			})
			return
		}
		h.log.Error("custodial settle failed", map[string]any{"user": req.UserID, "error": err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "settlement unavailable"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handler) supported(c *gin.Context) {
	c.JSON(http.StatusOK, h.fac.Supported())
}

type generateWalletRequest struct {
	UserID  string `json:"userId" binding:"required"`
	Network string `json:"network" binding:"required"`
}

func (h *handler) generateWallet(c *gin.Context) {
	var req generateWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.vault.Generate(c.Request.Context(), req.UserID, types.Network(req.Network))
	if err != nil {
		var facErr *types.FacilitatorError
		if errors.As(err, &facErr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": facErr.Message})
			return
		}
		h.log.Error("wallet generation failed", map[string]any{"user": req.UserID, "error": err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "wallet generation failed"})
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	c.JSON(status, result)
}

func (h *handler) listWallets(c *gin.Context) {
	userID := c.Param("userId")
	ctx := c.Request.Context()

	networks, err := h.vault.Networks(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "wallet lookup failed"})
		return
	}

	wallets := make([]gin.H, 0, len(networks))
	for _, network := range networks {
		address, err := h.vault.Address(ctx, userID, network)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "wallet lookup failed"})
			return
		}
		wallets = append(wallets, gin.H{"network": network, "address": address})
	}
	c.JSON(http.StatusOK, gin.H{"userId": userID, "wallets": wallets})
}

// walletBalance reports the wallet's USDC balance on one network, in both
// atomic and display units.
func (h *handler) walletBalance(c *gin.Context) {
	userID := c.Param("userId")
	network := types.Network(c.Param("network"))
	ctx := c.Request.Context()

	handle, err := h.fac.Registry().Resolve(network)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	address, err := h.vault.Address(ctx, userID, network)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "wallet lookup failed"})
		return
	}
	if address == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "no wallet for user on network"})
		return
	}

	token, ok := usdcFor(network)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no USDC token known for network"})
		return
	}

	atomic, err := chains.TokenBalance(ctx, handle, token, address)
	if err != nil {
		h.log.Error("balance query failed", map[string]any{"network": network, "error": err.Error()})
		c.JSON(http.StatusBadGateway, gin.H{"error": "balance query failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"network": network,
		"address": address,
		"asset":   token.Address,
		"atomic":  atomic.String(),
		"amount":  token.DisplayAmount(atomic),
	})
}

func usdcFor(network types.Network) (chains.Token, bool) {
	for _, t := range chains.TokensFor(network) {
		if t.Symbol == "USDC" {
			return t, true
		}
	}
	return chains.Token{}, false
}

// webhook authenticates and applies one payment notification. Business
// outcomes (unknown payer, ignored event) are 200 so sender retries do not
// amplify; 401 is reserved for signature mismatch.
func (h *handler) webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	result, err := h.activator.Activate(c.Request.Context(), body, c.GetHeader(webhookSignatureHeader))
	if err != nil {
		var facErr *types.FacilitatorError
		if errors.As(err, &facErr) {
			switch facErr.Code {
			case types.ErrInvalidSignature:
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			case types.ErrInvalidPayload:
				c.JSON(http.StatusBadRequest, gin.H{"error": facErr.Message})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": facErr.Message})
			}
			return
		}
		h.log.Error("webhook processing failed", map[string]any{"error": err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "webhook processing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": result.Action == "created" || result.Action == "extended",
		"result":  result,
	})
}
