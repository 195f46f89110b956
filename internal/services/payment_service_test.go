package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lottoplay/momo-backend/internal/models"
	"github.com/lottoplay/momo-backend/internal/services"
	"github.com/lottoplay/momo-backend/pkg/momo"
)

func activeUser(id string) *models.User {
	return &models.User{ID: id, MSISDN: "237671234567", Role: "player", IsActive: true}
}

func validRequest() models.InitiatePaymentRequest {
	return models.InitiatePaymentRequest{
		GameID:        "game-1",
		PaymentMethod: models.MethodMTNMomo,
		PhoneNumber:   "671234567",
		Amount:        500,
		Currency:      "XAF",
	}
}

func TestInitiatePayment_ValidationRejectsBeforeGateway(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.InitiatePaymentRequest)
	}{
		{"zero amount", func(r *models.InitiatePaymentRequest) { r.Amount = 0 }},
		{"negative amount", func(r *models.InitiatePaymentRequest) { r.Amount = -50 }},
		{"below XAF minimum", func(r *models.InitiatePaymentRequest) { r.Amount = 0.5 }},
		{"unknown method", func(r *models.InitiatePaymentRequest) { r.PaymentMethod = "AIRTEL" }},
		{"invalid phone", func(r *models.InitiatePaymentRequest) { r.PhoneNumber = "123" }},
		{"orange number on mtn method", func(r *models.InitiatePaymentRequest) { r.PhoneNumber = "691234567" }},
		{"missing purchase target", func(r *models.InitiatePaymentRequest) { r.GameID = "" }},
		{"both purchase targets", func(r *models.InitiatePaymentRequest) { r.ProductID = "prod-1" }},
		{"missing currency", func(r *models.InitiatePaymentRequest) { r.Currency = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeTxnRepo()
			gateway := &fakeGateway{}
			svc := services.NewPaymentService(repo, newFakeUserRepo(activeUser("u1")), gateway)

			req := validRequest()
			tt.mutate(&req)

			_, err := svc.InitiatePayment(context.Background(), "u1", req)
			require.Error(t, err)
			assert.True(t, services.IsValidationError(err), "expected validation error, got %v", err)

			initiateCalls, _ := gateway.calls()
			assert.Zero(t, initiateCalls, "gateway must not be called on rejected input")
			assert.Zero(t, repo.createCalls, "no record may be created on rejected input")
		})
	}
}

func TestInitiatePayment_MissingCredentials(t *testing.T) {
	repo := newFakeTxnRepo()
	gateway := &fakeGateway{noCreds: true}
	svc := services.NewPaymentService(repo, newFakeUserRepo(activeUser("u1")), gateway)

	_, err := svc.InitiatePayment(context.Background(), "u1", validRequest())
	require.Error(t, err)
	assert.True(t, services.IsConfigurationError(err))

	initiateCalls, _ := gateway.calls()
	assert.Zero(t, initiateCalls)
	assert.Zero(t, repo.createCalls)
}

func TestInitiatePayment_Success(t *testing.T) {
	repo := newFakeTxnRepo()
	gateway := &fakeGateway{}
	svc := services.NewPaymentService(repo, newFakeUserRepo(activeUser("u1")), gateway)

	resp, err := svc.InitiatePayment(context.Background(), "u1", validRequest())
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.TransactionID)
	assert.NotEmpty(t, resp.ProviderTransactionID)
	assert.Equal(t, models.StatusPending, resp.Status)

	initiateCalls, _ := gateway.calls()
	assert.Equal(t, 1, initiateCalls, "exactly one gateway call per initiation")

	stored := repo.get(resp.TransactionID)
	require.NotNil(t, stored)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Equal(t, "237671234567", stored.PhoneNumber, "phone must be stored normalized")
	assert.Equal(t, resp.ProviderTransactionID, stored.ProviderTransactionID)
	assert.Equal(t, 500.0, stored.Amount)
}

func TestInitiatePayment_TransportErrorRecordsFailed(t *testing.T) {
	repo := newFakeTxnRepo()
	gateway := &fakeGateway{
		initiateErr: &momo.TransportError{Op: "initiate", Err: errors.New("connection timed out")},
	}
	svc := services.NewPaymentService(repo, newFakeUserRepo(activeUser("u1")), gateway)

	resp, err := svc.InitiatePayment(context.Background(), "u1", validRequest())
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Equal(t, models.StatusFailed, resp.Status)

	stored := repo.get(resp.TransactionID)
	require.NotNil(t, stored)
	assert.Equal(t, models.StatusFailed, stored.Status)
	assert.NotNil(t, stored.FailedAt)
	assert.Contains(t, stored.ErrorMessage, "timed out")
}

func TestInitiatePayment_GatewayRejectionRecordsFailed(t *testing.T) {
	repo := newFakeTxnRepo()
	gateway := &fakeGateway{
		initiateErr: &momo.RejectionError{Op: "initiate", Code: 400, Message: "subscriber not registered"},
	}
	svc := services.NewPaymentService(repo, newFakeUserRepo(activeUser("u1")), gateway)

	resp, err := svc.InitiatePayment(context.Background(), "u1", validRequest())
	require.NoError(t, err)
	assert.False(t, resp.Success)

	stored := repo.get(resp.TransactionID)
	require.NotNil(t, stored)
	assert.Equal(t, models.StatusFailed, stored.Status)
	assert.Contains(t, stored.ErrorMessage, "subscriber not registered")
}

func TestCheckPaymentStatus_UnknownAndForbidden(t *testing.T) {
	repo := newFakeTxnRepo()
	gateway := &fakeGateway{}
	svc := services.NewPaymentService(repo, newFakeUserRepo(activeUser("u1")), gateway)

	_, err := svc.CheckPaymentStatus(context.Background(), "missing", "u1")
	assert.ErrorIs(t, err, services.ErrNotFound)

	resp, err := svc.InitiatePayment(context.Background(), "u1", validRequest())
	require.NoError(t, err)

	_, err = svc.CheckPaymentStatus(context.Background(), resp.TransactionID, "someone-else")
	assert.ErrorIs(t, err, services.ErrForbidden)
}

func TestCheckPaymentStatus_TerminalShortCircuits(t *testing.T) {
	repo := newFakeTxnRepo()
	gateway := &fakeGateway{}
	svc := services.NewPaymentService(repo, newFakeUserRepo(activeUser("u1")), gateway)

	resp, err := svc.InitiatePayment(context.Background(), "u1", validRequest())
	require.NoError(t, err)

	gateway.queryFn = func(ref string) (*momo.GatewayResponse, error) {
		return &momo.GatewayResponse{Status: "SUCCESS", Data: momo.GatewayData{ID: ref, Status: "SUCCESS", Amount: "500.0"}}, nil
	}

	status, err := svc.CheckPaymentStatus(context.Background(), resp.TransactionID, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, status.Status)

	stored := repo.get(resp.TransactionID)
	assert.NotNil(t, stored.CompletedAt)

	_, queriesAfterFirst := gateway.calls()

	// A second identical check is a no-op: the stored state is terminal
	// and the gateway is not consulted again.
	status, err = svc.CheckPaymentStatus(context.Background(), resp.TransactionID, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, status.Status)

	_, queriesAfterSecond := gateway.calls()
	assert.Equal(t, queriesAfterFirst, queriesAfterSecond)
}

func TestCheckPaymentStatus_TransportErrorDegradesToStored(t *testing.T) {
	repo := newFakeTxnRepo()
	gateway := &fakeGateway{}
	svc := services.NewPaymentService(repo, newFakeUserRepo(activeUser("u1")), gateway)

	resp, err := svc.InitiatePayment(context.Background(), "u1", validRequest())
	require.NoError(t, err)

	gateway.queryFn = func(ref string) (*momo.GatewayResponse, error) {
		return nil, &momo.TransportError{Op: "queryStatus", Err: errors.New("dial tcp: i/o timeout")}
	}

	status, err := svc.CheckPaymentStatus(context.Background(), resp.TransactionID, "u1")
	require.NoError(t, err, "a transient check failure must not surface as an error")
	assert.Equal(t, models.StatusPending, status.Status, "stored status is reported unchanged")
}

func TestApplyProviderNotification(t *testing.T) {
	repo := newFakeTxnRepo()
	gateway := &fakeGateway{}
	svc := services.NewPaymentService(repo, newFakeUserRepo(activeUser("u1")), gateway)

	resp, err := svc.InitiatePayment(context.Background(), "u1", validRequest())
	require.NoError(t, err)

	_, _, err = svc.ApplyProviderNotification(context.Background(), models.ProviderWebhookPayload{
		ProviderTransactionID: "unknown-ref",
		Status:                "SUCCESS",
	})
	assert.ErrorIs(t, err, services.ErrNotFound)

	txn, applied, err := svc.ApplyProviderNotification(context.Background(), models.ProviderWebhookPayload{
		ProviderTransactionID: resp.ProviderTransactionID,
		Status:                "SUCCESS",
		Amount:                "500.0",
	})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, models.StatusSuccess, txn.Status)
	assert.NotNil(t, txn.CompletedAt)
	firstCompletedAt := *txn.CompletedAt

	// Duplicate and contradictory notifications after a terminal
	// transition must both be ignored.
	for _, status := range []string{"SUCCESS", "FAILED", "CANCELLED"} {
		txn, applied, err = svc.ApplyProviderNotification(context.Background(), models.ProviderWebhookPayload{
			ProviderTransactionID: resp.ProviderTransactionID,
			Status:                status,
		})
		require.NoError(t, err)
		assert.False(t, applied, "terminal state must never be overwritten (payload %s)", status)
		assert.Equal(t, models.StatusSuccess, txn.Status)
		assert.Equal(t, firstCompletedAt, *txn.CompletedAt)
	}
}
