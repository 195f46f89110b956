package models

import (
	"strings"
	"time"
)

// PaymentStatus is the canonical payment state, independent of the
// vocabulary the mobile-money gateway uses on the wire.
type PaymentStatus string

const (
	StatusPending    PaymentStatus = "PENDING"
	StatusProcessing PaymentStatus = "PROCESSING"
	StatusSuccess    PaymentStatus = "SUCCESS"
	StatusFailed     PaymentStatus = "FAILED"
	StatusCancelled  PaymentStatus = "CANCELLED"
	StatusExpired    PaymentStatus = "EXPIRED"
)

// IsTerminal reports whether no further transition is permitted from s.
func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving from s to next is allowed under
// the partial order PENDING < PROCESSING < terminal. A terminal state
// never transitions again; writing the same status is always a no-op
// the caller may skip.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if s == StatusProcessing && next == StatusPending {
		return false
	}
	return s != next
}

// MapProviderStatus translates a raw gateway status string into the
// canonical status. Unrecognized input maps to PENDING: the payment is
// never assumed settled or failed without explicit provider confirmation.
func MapProviderStatus(raw string) PaymentStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "SUCCESS":
		return StatusSuccess
	case "FAILED":
		return StatusFailed
	case "CANCELED", "CANCELLED":
		return StatusCancelled
	case "TIMEOUT":
		return StatusExpired
	case "PENDING":
		return StatusPending
	default:
		return StatusPending
	}
}

// PaymentMethod identifies the mobile-money carrier handling the charge.
type PaymentMethod string

const (
	MethodMTNMomo     PaymentMethod = "MTN_MOMO"
	MethodOrangeMoney PaymentMethod = "ORANGE_MONEY"
)

// AllowedPaymentMethods is the closed set of carriers the gateway supports.
var AllowedPaymentMethods = []PaymentMethod{MethodMTNMomo, MethodOrangeMoney}

// IsValid reports whether m is one of the supported carriers.
func (m PaymentMethod) IsValid() bool {
	for _, allowed := range AllowedPaymentMethods {
		if m == allowed {
			return true
		}
	}
	return false
}

// PaymentTransaction represents a mobile-money payment attempt. Records
// are retained for audit and never deleted; only status and the
// reconciliation bookkeeping fields change after creation.
type PaymentTransaction struct {
	ID                    string        `bson:"_id" json:"id"`
	GameID                string        `bson:"gameId,omitempty" json:"gameId,omitempty"`
	ProductID             string        `bson:"productId,omitempty" json:"productId,omitempty"`
	UserID                string        `bson:"userId" json:"userId"`
	Amount                float64       `bson:"amount" json:"amount"`
	Currency              string        `bson:"currency" json:"currency"`
	PaymentMethod         PaymentMethod `bson:"paymentMethod" json:"paymentMethod"`
	PhoneNumber           string        `bson:"phoneNumber" json:"phoneNumber"`
	Status                PaymentStatus `bson:"status" json:"status"`
	ProviderTransactionID string        `bson:"providerTransactionId,omitempty" json:"providerTransactionId,omitempty"`
	ProviderStatus        string        `bson:"providerStatus,omitempty" json:"providerStatus,omitempty"`
	ErrorMessage          string        `bson:"errorMessage,omitempty" json:"errorMessage,omitempty"`
	BackgroundCheckCount  int           `bson:"backgroundCheckCount" json:"backgroundCheckCount"`
	LastBackgroundCheckAt *time.Time    `bson:"lastBackgroundCheckAt,omitempty" json:"lastBackgroundCheckAt,omitempty"`
	CompletedAt           *time.Time    `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	FailedAt              *time.Time    `bson:"failedAt,omitempty" json:"failedAt,omitempty"`
	CreatedAt             time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt             time.Time     `bson:"updatedAt" json:"updatedAt"`
}

// InitiatePaymentRequest is the inbound body for POST /payments/initiate.
// Exactly one of GameID/ProductID must be set.
type InitiatePaymentRequest struct {
	GameID        string        `json:"gameId,omitempty"`
	ProductID     string        `json:"productId,omitempty"`
	PaymentMethod PaymentMethod `json:"paymentMethod" binding:"required"`
	PhoneNumber   string        `json:"phoneNumber" binding:"required"`
	Amount        float64       `json:"amount" binding:"required"`
	Currency      string        `json:"currency" binding:"required"`
}

// InitiatePaymentResponse is returned by the initiation endpoint.
type InitiatePaymentResponse struct {
	Success               bool          `json:"success"`
	TransactionID         string        `json:"transactionId,omitempty"`
	ProviderTransactionID string        `json:"providerTransactionId,omitempty"`
	Status                PaymentStatus `json:"status,omitempty"`
	Message               string        `json:"message"`
	ProcessingTimeMs      int64         `json:"processingTime"`
}

// PaymentStatusResponse is returned by the status-check endpoint.
type PaymentStatusResponse struct {
	TransactionID         string        `json:"transactionId"`
	Status                PaymentStatus `json:"status"`
	ProviderStatus        string        `json:"providerStatus,omitempty"`
	ProviderTransactionID string        `json:"providerTransactionId,omitempty"`
	Amount                float64       `json:"amount"`
	Currency              string        `json:"currency"`
	UpdatedAt             time.Time     `json:"updatedAt"`
}

// ProviderWebhookPayload is the asynchronous push the gateway sends when
// a payment settles on its side.
type ProviderWebhookPayload struct {
	ProviderTransactionID string `json:"providerTransactionId" binding:"required"`
	Status                string `json:"status" binding:"required"`
	Amount                string `json:"amount,omitempty"`
	OrderID               string `json:"orderId,omitempty"`
	Phone                 string `json:"phone,omitempty"`
}

// SweepCandidateResult records the outcome of one reconciliation attempt
// inside a sweep.
type SweepCandidateResult struct {
	TransactionID  string        `json:"transactionId"`
	PreviousStatus PaymentStatus `json:"previousStatus"`
	NewStatus      PaymentStatus `json:"newStatus"`
	Updated        bool          `json:"updated"`
	Error          string        `json:"error,omitempty"`
}

// SweepResult summarizes one reconciliation sweep.
type SweepResult struct {
	Found      int                    `json:"found"`
	Updated    int                    `json:"updated"`
	Candidates []SweepCandidateResult `json:"candidates"`
	SweptAt    time.Time              `json:"sweptAt"`
}
