package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapProviderStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want PaymentStatus
	}{
		{"PENDING", StatusPending},
		{"SUCCESS", StatusSuccess},
		{"FAILED", StatusFailed},
		{"CANCELED", StatusCancelled},
		{"CANCELLED", StatusCancelled},
		{"TIMEOUT", StatusExpired},
		{"success", StatusSuccess},
		{" timeout ", StatusExpired},
		// Anything the table does not recognize is conservatively PENDING.
		{"", StatusPending},
		{"UNKNOWN", StatusPending},
		{"IN_PROGRESS", StatusPending},
		{"ERROR", StatusPending},
		{"null", StatusPending},
		{"200", StatusPending},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MapProviderStatus(tt.raw), "raw=%q", tt.raw)
	}
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusProcessing.IsTerminal())
	assert.True(t, StatusSuccess.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.True(t, StatusExpired.IsTerminal())
}

func TestCanTransitionTo(t *testing.T) {
	terminals := []PaymentStatus{StatusSuccess, StatusFailed, StatusCancelled, StatusExpired}
	all := append([]PaymentStatus{StatusPending, StatusProcessing}, terminals...)

	// Terminal states never transition anywhere.
	for _, from := range terminals {
		for _, to := range all {
			assert.False(t, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}

	// Forward moves are allowed.
	assert.True(t, StatusPending.CanTransitionTo(StatusProcessing))
	for _, to := range terminals {
		assert.True(t, StatusPending.CanTransitionTo(to))
		assert.True(t, StatusProcessing.CanTransitionTo(to))
	}

	// No backwards or self moves.
	assert.False(t, StatusProcessing.CanTransitionTo(StatusPending))
	assert.False(t, StatusPending.CanTransitionTo(StatusPending))
	assert.False(t, StatusProcessing.CanTransitionTo(StatusProcessing))
}

func TestPaymentMethodIsValid(t *testing.T) {
	assert.True(t, MethodMTNMomo.IsValid())
	assert.True(t, MethodOrangeMoney.IsValid())
	assert.False(t, PaymentMethod("AIRTEL").IsValid())
	assert.False(t, PaymentMethod("").IsValid())
}
