package services

import (
	"context"
	"time"

	"golang.org/x/exp/slog"

	"github.com/lottoplay/momo-backend/internal/config"
	"github.com/lottoplay/momo-backend/internal/models"
)

// PollResult reports how a polling session ended. The poller owns no
// authoritative state: a soft timeout stops polling but leaves the
// transaction exactly as the last check saw it, and re-opening the same
// transaction simply starts a fresh poller.
type PollResult struct {
	LastStatus *models.PaymentStatusResponse
	Checks     int
	TimedOut   bool
	Cancelled  bool
}

// StatusPoller drives a bounded, session-scoped polling loop over the
// status-check operation. Many pollers may run concurrently, one per
// open session; they coordinate only through the idempotent status
// check, so no locking is needed between them.
type StatusPoller struct {
	payments PaymentService

	initialDelay time.Duration
	interval     time.Duration
	maxDuration  time.Duration
}

func NewStatusPoller(payments PaymentService, cfg config.PollerConfig) *StatusPoller {
	return &StatusPoller{
		payments:     payments,
		initialDelay: cfg.InitialDelay,
		interval:     cfg.Interval,
		maxDuration:  cfg.MaxDuration,
	}
}

// Poll repeatedly checks the transaction's status until it turns
// terminal, the wall-clock budget runs out, or ctx is cancelled. The
// budget expiring is a soft timeout: the transaction is not marked
// EXPIRED here; only the provider (or an explicit TIMEOUT status) can
// do that. Cancellation stops polling only, it tells the gateway
// nothing.
func (p *StatusPoller) Poll(ctx context.Context, transactionID, userID string) (*PollResult, error) {
	result := &PollResult{}

	deadline := time.NewTimer(p.maxDuration)
	defer deadline.Stop()

	initial := time.NewTimer(p.initialDelay)
	defer initial.Stop()

	select {
	case <-ctx.Done():
		result.Cancelled = true
		return result, nil
	case <-deadline.C:
		result.TimedOut = true
		return result, nil
	case <-initial.C:
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		status, err := p.payments.CheckPaymentStatus(ctx, transactionID, userID)
		if err != nil {
			// Transport problems never reach here (the status check
			// degrades them to the stored status); this is a genuine
			// unknown-transaction or authorization failure.
			return nil, err
		}
		result.LastStatus = status
		result.Checks++

		if status.Status.IsTerminal() {
			slog.Info("Polling finished, terminal status reached",
				"transactionId", transactionID, "status", status.Status, "checks", result.Checks)
			return result, nil
		}

		select {
		case <-ctx.Done():
			result.Cancelled = true
			return result, nil
		case <-deadline.C:
			slog.Info("Polling stopped on wall-clock budget",
				"transactionId", transactionID, "lastStatus", status.Status, "checks", result.Checks)
			result.TimedOut = true
			return result, nil
		case <-ticker.C:
		}
	}
}
