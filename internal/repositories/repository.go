package repositories

import (
	"context"
	"time"

	"github.com/lottoplay/momo-backend/internal/models"
)

// StatusUpdate carries the fields a status transition writes to a
// payment transaction. Nil pointer fields are left untouched.
type StatusUpdate struct {
	Status         models.PaymentStatus
	ProviderStatus string
	ErrorMessage   string
	CompletedAt    *time.Time
	FailedAt       *time.Time
}

// StuckQuery selects reconciliation candidates: non-terminal
// transactions older than Cutoff that reached the gateway.
type StuckQuery struct {
	Cutoff time.Time
	Limit  int
	UserID string // optional filter
}

// PaymentTransactionRepository defines the interface for payment transaction data operations
type PaymentTransactionRepository interface {
	Create(ctx context.Context, txn *models.PaymentTransaction) error
	FindByID(ctx context.Context, id string) (*models.PaymentTransaction, error)
	FindByProviderRef(ctx context.Context, providerTransactionID string) (*models.PaymentTransaction, error)
	FindByUserID(ctx context.Context, userID string, page, limit int) ([]*models.PaymentTransaction, error)

	// FindStuck returns candidates for background reconciliation:
	// status in {PENDING, PROCESSING}, created before the cutoff, with a
	// provider transaction id set, newest first, capped at Limit.
	FindStuck(ctx context.Context, q StuckQuery) ([]*models.PaymentTransaction, error)

	// ApplyStatus performs the guarded status write: the update only
	// matches while the stored status is still non-terminal, so a
	// transaction that has already reached a terminal state is never
	// overwritten. Returns the post-update record and whether the write
	// was applied.
	ApplyStatus(ctx context.Context, id string, update StatusUpdate) (*models.PaymentTransaction, bool, error)

	// MarkBackgroundCheck increments backgroundCheckCount and stamps
	// lastBackgroundCheckAt, optionally recording a check error.
	MarkBackgroundCheck(ctx context.Context, id string, checkErr string) error

	SetProviderRef(ctx context.Context, id, providerTransactionID, providerStatus string) error
}

// UserRepository defines the interface for user data operations
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}
