package services

import (
	"context"
	"time"

	"github.com/lottoplay/momo-backend/internal/models"
	"github.com/lottoplay/momo-backend/pkg/momo"
)

// GatewayClient is the slice of the mobile-money gateway client the
// services need. pkg/momo.Client satisfies it; tests substitute mocks.
type GatewayClient interface {
	Initiate(ctx context.Context, req momo.InitiateRequest) (*momo.GatewayResponse, error)
	QueryStatus(ctx context.Context, providerTransactionID string) (*momo.GatewayResponse, error)
	HasCredentials() bool
}

// PaymentService defines the interface for payment lifecycle operations
type PaymentService interface {
	// InitiatePayment validates the request, creates the transaction
	// record and makes exactly one gateway initiation call.
	InitiatePayment(ctx context.Context, userID string, req models.InitiatePaymentRequest) (*models.InitiatePaymentResponse, error)

	// CheckPaymentStatus returns the current canonical status, re-querying
	// the gateway when the stored status is not yet terminal. A transport
	// failure degrades to the stored status rather than surfacing an error.
	CheckPaymentStatus(ctx context.Context, transactionID, userID string) (*models.PaymentStatusResponse, error)

	// ApplyProviderNotification applies an inbound webhook status push
	// under the monotonic-terminal guard. Duplicate or out-of-order
	// terminal notifications are no-ops.
	ApplyProviderNotification(ctx context.Context, payload models.ProviderWebhookPayload) (*models.PaymentTransaction, bool, error)

	// GetUserTransactions lists a user's payment transactions, newest first.
	GetUserTransactions(ctx context.Context, userID string, page, limit int) ([]*models.PaymentTransaction, error)
}

// SweepOptions parameterize one reconciliation sweep. Zero values fall
// back to the configured defaults.
type SweepOptions struct {
	UserID string
	MaxAge time.Duration
	Limit  int
}

// ReconciliationService defines the interface for the background sweep
type ReconciliationService interface {
	// Sweep re-queries the gateway for stuck transactions and advances
	// them toward a terminal state. Candidates are processed strictly
	// sequentially with inter-call pacing; a failure on one candidate
	// never aborts the batch.
	Sweep(ctx context.Context, opts SweepOptions) (*models.SweepResult, error)
}
