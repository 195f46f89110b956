package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lottoplay/momo-backend/internal/config"
	"github.com/lottoplay/momo-backend/internal/models"
	"github.com/lottoplay/momo-backend/internal/services"
)

// PaymentHandler handles payment-related HTTP requests
type PaymentHandler struct {
	paymentService        services.PaymentService
	reconciliationService services.ReconciliationService
	poller                *services.StatusPoller
	cfg                   *config.Config
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(paymentService services.PaymentService, reconciliationService services.ReconciliationService, poller *services.StatusPoller, cfg *config.Config) *PaymentHandler {
	return &PaymentHandler{
		paymentService:        paymentService,
		reconciliationService: reconciliationService,
		poller:                poller,
		cfg:                   cfg,
	}
}

// InitiatePayment handles POST /payments/initiate
func (h *PaymentHandler) InitiatePayment(c *gin.Context) {
	var req models.InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "VALIDATION_ERROR"})
		return
	}

	userID := c.GetString("userID")

	resp, err := h.paymentService.InitiatePayment(c, userID, req)
	if err != nil {
		switch {
		case services.IsValidationError(err):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "VALIDATION_ERROR"})
		case services.IsConfigurationError(err):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Payment service is not available", "code": "SERVICE_UNAVAILABLE"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to initiate payment: " + err.Error(), "code": "INTERNAL_ERROR"})
		}
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetPaymentStatus handles GET /payments/:id/status
func (h *PaymentHandler) GetPaymentStatus(c *gin.Context) {
	transactionID := c.Param("id")
	userID := c.GetString("userID")
	// Admins may inspect any transaction
	if role := c.GetString("userRole"); role == "admin" {
		userID = ""
	}

	status, err := h.paymentService.CheckPaymentStatus(c, transactionID, userID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Transaction not found", "code": "NOT_FOUND"})
		case errors.Is(err, services.ErrForbidden):
			c.JSON(http.StatusForbidden, gin.H{"error": "Transaction belongs to another user", "code": "FORBIDDEN"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check payment status: " + err.Error(), "code": "INTERNAL_ERROR"})
		}
		return
	}

	c.JSON(http.StatusOK, status)
}

// WaitForPayment handles GET /payments/:id/wait. It holds the request
// open and polls the status check until the transaction turns terminal,
// the polling budget runs out, or the client disconnects. Disconnecting
// (or timing out) only stops polling; the transaction record is left for
// the background sweeper or the webhook to finish. The same transaction
// can be waited on again at any time.
func (h *PaymentHandler) WaitForPayment(c *gin.Context) {
	transactionID := c.Param("id")
	userID := c.GetString("userID")
	if role := c.GetString("userRole"); role == "admin" {
		userID = ""
	}

	result, err := h.poller.Poll(c.Request.Context(), transactionID, userID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Transaction not found", "code": "NOT_FOUND"})
		case errors.Is(err, services.ErrForbidden):
			c.JSON(http.StatusForbidden, gin.H{"error": "Transaction belongs to another user", "code": "FORBIDDEN"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Polling failed: " + err.Error(), "code": "INTERNAL_ERROR"})
		}
		return
	}
	if result.Cancelled {
		return // client went away, nothing to write
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   result.LastStatus,
		"checks":   result.Checks,
		"timedOut": result.TimedOut,
	})
}

// GetUserTransactions handles GET /payments/user/:userId
func (h *PaymentHandler) GetUserTransactions(c *gin.Context) {
	targetUserID := c.Param("userId")
	if c.GetString("userRole") != "admin" && c.GetString("userID") != targetUserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Cannot list another user's transactions", "code": "FORBIDDEN"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	txns, err := h.paymentService.GetUserTransactions(c, targetUserID, page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list transactions: " + err.Error(), "code": "INTERNAL_ERROR"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": txns, "page": page, "limit": limit})
}

// ReconcilePayments handles POST /payments/reconcile
func (h *PaymentHandler) ReconcilePayments(c *gin.Context) {
	var req struct {
		UserID   string `json:"userId"`
		MaxAgeMs int64  `json:"maxAge"`
		Limit    int    `json:"limit"`
	}
	// Body is optional; defaults apply when absent.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "VALIDATION_ERROR"})
			return
		}
	}

	result, err := h.reconciliationService.Sweep(c, services.SweepOptions{
		UserID: req.UserID,
		MaxAge: time.Duration(req.MaxAgeMs) * time.Millisecond,
		Limit:  req.Limit,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Sweep rate limit exceeded", "code": "RATE_LIMITED"})
		case errors.Is(err, services.ErrSweepInProgress):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "A sweep is already running", "code": "SWEEP_IN_PROGRESS"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Sweep failed: " + err.Error(), "code": "INTERNAL_ERROR"})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// ProviderWebhook handles POST /payments/webhook
func (h *PaymentHandler) ProviderWebhook(c *gin.Context) {
	secret := h.cfg.Momo.WebhookSecret
	if secret != "" {
		got := c.GetHeader("X-Webhook-Secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid webhook secret", "code": "UNAUTHORIZED"})
			return
		}
	}

	var payload models.ProviderWebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "VALIDATION_ERROR"})
		return
	}

	txn, applied, err := h.paymentService.ApplyProviderNotification(c, payload)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Unknown provider transaction id", "code": "NOT_FOUND"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to apply notification: " + err.Error(), "code": "INTERNAL_ERROR"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactionId": txn.ID, "status": txn.Status, "applied": applied})
}
