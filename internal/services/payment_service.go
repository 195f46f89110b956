package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/exp/slog"

	"github.com/lottoplay/momo-backend/internal/models"
	"github.com/lottoplay/momo-backend/internal/repositories"
	"github.com/lottoplay/momo-backend/internal/utils"
	"github.com/lottoplay/momo-backend/pkg/momo"
)

// Compile-time check to ensure PaymentServiceImpl implements PaymentService
var _ PaymentService = (*PaymentServiceImpl)(nil)

// minimumAmounts is the per-currency floor for an initiation request.
var minimumAmounts = map[string]float64{
	"XAF": 1,
}

type PaymentServiceImpl struct {
	txnRepo  repositories.PaymentTransactionRepository
	userRepo repositories.UserRepository
	gateway  GatewayClient
}

func NewPaymentService(txnRepo repositories.PaymentTransactionRepository, userRepo repositories.UserRepository, gateway GatewayClient) *PaymentServiceImpl {
	return &PaymentServiceImpl{
		txnRepo:  txnRepo,
		userRepo: userRepo,
		gateway:  gateway,
	}
}

// InitiatePayment runs validation first and fails fast: any rejected
// input returns before a record is created or the gateway is called.
// After validation exactly one gateway call is made. The operation is
// not idempotent across client retries; a retried request produces a
// second, independent transaction.
func (s *PaymentServiceImpl) InitiatePayment(ctx context.Context, userID string, req models.InitiatePaymentRequest) (*models.InitiatePaymentResponse, error) {
	start := time.Now()

	normalizedPhone, err := s.validateInitiateRequest(userID, req)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, &ValidationError{Field: "userId", Message: "unknown user"}
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.IsActive {
		return nil, &ValidationError{Field: "userId", Message: "user account is not active"}
	}

	if !s.gateway.HasCredentials() {
		return nil, &ConfigurationError{Message: "payment gateway credentials are not configured"}
	}

	txn := &models.PaymentTransaction{
		ID:            uuid.NewString(),
		GameID:        req.GameID,
		ProductID:     req.ProductID,
		UserID:        userID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		PaymentMethod: req.PaymentMethod,
		PhoneNumber:   normalizedPhone,
		Status:        models.StatusPending,
	}
	if err := s.txnRepo.Create(ctx, txn); err != nil {
		return nil, fmt.Errorf("failed to create payment transaction: %w", err)
	}

	slog.Info("Initiating mobile-money payment",
		"transactionId", txn.ID, "method", txn.PaymentMethod,
		"amount", txn.Amount, "currency", txn.Currency)

	gwResp, gwErr := s.gateway.Initiate(ctx, momo.InitiateRequest{
		Amount:   strconv.FormatFloat(req.Amount, 'f', -1, 64),
		Currency: req.Currency,
		Phone:    normalizedPhone,
		Method:   string(req.PaymentMethod),
		OrderID:  txn.ID,
	})
	if gwErr != nil {
		// A single failed initiation is never retried; the subscriber
		// must re-initiate. Transport errors and rejections both close
		// this attempt as FAILED.
		slog.Warn("Gateway initiation failed", "transactionId", txn.ID, "error", gwErr)
		failedAt := time.Now()
		if _, _, err := s.txnRepo.ApplyStatus(ctx, txn.ID, repositories.StatusUpdate{
			Status:       models.StatusFailed,
			ErrorMessage: gwErr.Error(),
			FailedAt:     &failedAt,
		}); err != nil {
			slog.Error("Failed to record failed initiation", "transactionId", txn.ID, "error", err)
		}
		return &models.InitiatePaymentResponse{
			Success:          false,
			TransactionID:    txn.ID,
			Status:           models.StatusFailed,
			Message:          "Payment initiation failed: " + gwErr.Error(),
			ProcessingTimeMs: time.Since(start).Milliseconds(),
		}, nil
	}

	rawStatus := gatewayStatus(gwResp)
	if err := s.txnRepo.SetProviderRef(ctx, txn.ID, gwResp.Data.ID, rawStatus); err != nil {
		slog.Error("Failed to persist provider transaction id", "transactionId", txn.ID, "error", err)
	}

	mapped := models.MapProviderStatus(rawStatus)
	if txn.Status.CanTransitionTo(mapped) {
		if _, _, err := s.txnRepo.ApplyStatus(ctx, txn.ID, statusUpdateFor(mapped, rawStatus, "")); err != nil {
			slog.Error("Failed to persist initial status", "transactionId", txn.ID, "error", err)
		}
	}

	slog.Info("Payment initiated", "transactionId", txn.ID,
		"providerTransactionId", gwResp.Data.ID, "status", mapped)

	return &models.InitiatePaymentResponse{
		Success:               true,
		TransactionID:         txn.ID,
		ProviderTransactionID: gwResp.Data.ID,
		Status:                mapped,
		Message:               "Payment initiated. Confirm the charge on your handset.",
		ProcessingTimeMs:      time.Since(start).Milliseconds(),
	}, nil
}

func (s *PaymentServiceImpl) validateInitiateRequest(userID string, req models.InitiatePaymentRequest) (string, error) {
	if userID == "" {
		return "", &ValidationError{Field: "userId", Message: "user id is required"}
	}
	if (req.GameID == "") == (req.ProductID == "") {
		return "", &ValidationError{Field: "gameId/productId", Message: "exactly one of gameId or productId must be set"}
	}
	if !req.PaymentMethod.IsValid() {
		return "", &ValidationError{Field: "paymentMethod", Message: fmt.Sprintf("unsupported payment method %q", req.PaymentMethod)}
	}
	normalizedPhone, err := utils.ValidatePhoneForMethod(req.PhoneNumber, req.PaymentMethod)
	if err != nil {
		return "", &ValidationError{Field: "phoneNumber", Message: err.Error()}
	}
	if req.Currency == "" {
		return "", &ValidationError{Field: "currency", Message: "currency is required"}
	}
	if req.Amount <= 0 {
		return "", &ValidationError{Field: "amount", Message: "amount must be positive"}
	}
	if min, ok := minimumAmounts[req.Currency]; ok && req.Amount < min {
		return "", &ValidationError{Field: "amount", Message: fmt.Sprintf("minimum amount for %s is %v", req.Currency, min)}
	}
	return normalizedPhone, nil
}

// CheckPaymentStatus is the operation both the client poller and the UI
// hit. It only consults the gateway while the stored status is
// non-terminal, and it treats a transport failure as "no new
// information": the caller sees the last stored status, never an error
// that could be mistaken for payment failure.
func (s *PaymentServiceImpl) CheckPaymentStatus(ctx context.Context, transactionID, userID string) (*models.PaymentStatusResponse, error) {
	txn, err := s.txnRepo.FindByID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}
	if userID != "" && txn.UserID != userID {
		return nil, ErrForbidden
	}

	if txn.Status.IsTerminal() || txn.ProviderTransactionID == "" {
		return statusResponse(txn), nil
	}

	gwResp, gwErr := s.gateway.QueryStatus(ctx, txn.ProviderTransactionID)
	if gwErr != nil {
		if momo.IsRejection(gwErr) {
			failedAt := time.Now()
			updated, _, err := s.txnRepo.ApplyStatus(ctx, txn.ID, repositories.StatusUpdate{
				Status:       models.StatusFailed,
				ErrorMessage: gwErr.Error(),
				FailedAt:     &failedAt,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to record gateway rejection: %w", err)
			}
			return statusResponse(updated), nil
		}
		// Transport failure: unknown outcome, report the stored state.
		slog.Warn("Status query failed, returning stored status",
			"transactionId", txn.ID, "error", gwErr)
		return statusResponse(txn), nil
	}

	rawStatus := gatewayStatus(gwResp)
	mapped := models.MapProviderStatus(rawStatus)
	if mapped == txn.Status || !txn.Status.CanTransitionTo(mapped) {
		return statusResponse(txn), nil
	}

	updated, applied, err := s.txnRepo.ApplyStatus(ctx, txn.ID, statusUpdateFor(mapped, rawStatus, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to apply status transition: %w", err)
	}
	if applied {
		slog.Info("Payment status advanced", "transactionId", txn.ID,
			"from", txn.Status, "to", mapped)
	}
	return statusResponse(updated), nil
}

// ApplyProviderNotification handles the gateway's asynchronous webhook
// push. It shares the monotonic-terminal guard with every other writer,
// so duplicate or stale notifications after a terminal transition are
// no-ops rather than errors.
func (s *PaymentServiceImpl) ApplyProviderNotification(ctx context.Context, payload models.ProviderWebhookPayload) (*models.PaymentTransaction, bool, error) {
	txn, err := s.txnRepo.FindByProviderRef(ctx, payload.ProviderTransactionID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, false, ErrNotFound
		}
		return nil, false, fmt.Errorf("failed to load transaction by provider ref: %w", err)
	}

	mapped := models.MapProviderStatus(payload.Status)
	if mapped == txn.Status || !txn.Status.CanTransitionTo(mapped) {
		slog.Info("Webhook ignored, no transition",
			"transactionId", txn.ID, "storedStatus", txn.Status, "providerStatus", payload.Status)
		return txn, false, nil
	}

	updated, applied, err := s.txnRepo.ApplyStatus(ctx, txn.ID, statusUpdateFor(mapped, payload.Status, ""))
	if err != nil {
		return nil, false, fmt.Errorf("failed to apply webhook status: %w", err)
	}
	if applied {
		slog.Info("Webhook applied", "transactionId", txn.ID, "from", txn.Status, "to", mapped)
	}
	return updated, applied, nil
}

// GetUserTransactions lists a user's payment transactions for the audit view.
func (s *PaymentServiceImpl) GetUserTransactions(ctx context.Context, userID string, page, limit int) ([]*models.PaymentTransaction, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.txnRepo.FindByUserID(ctx, userID, page, limit)
}

// gatewayStatus prefers the payload-level status over the envelope one.
func gatewayStatus(resp *momo.GatewayResponse) string {
	if resp.Data.Status != "" {
		return resp.Data.Status
	}
	return resp.Status
}

// statusUpdateFor builds the repository write for a mapped status,
// stamping completedAt/failedAt on the first transition into the
// corresponding terminal state. The repository's guarded update makes
// the stamp set-once: a terminal record never matches again.
func statusUpdateFor(mapped models.PaymentStatus, rawStatus, errMsg string) repositories.StatusUpdate {
	update := repositories.StatusUpdate{
		Status:         mapped,
		ProviderStatus: rawStatus,
		ErrorMessage:   errMsg,
	}
	now := time.Now()
	switch mapped {
	case models.StatusSuccess:
		update.CompletedAt = &now
	case models.StatusFailed, models.StatusCancelled, models.StatusExpired:
		update.FailedAt = &now
	}
	return update
}

func statusResponse(txn *models.PaymentTransaction) *models.PaymentStatusResponse {
	return &models.PaymentStatusResponse{
		TransactionID:         txn.ID,
		Status:                txn.Status,
		ProviderStatus:        txn.ProviderStatus,
		ProviderTransactionID: txn.ProviderTransactionID,
		Amount:                txn.Amount,
		Currency:              txn.Currency,
		UpdatedAt:             txn.UpdatedAt,
	}
}
