package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/exp/slog"
	"golang.org/x/time/rate"

	"github.com/lottoplay/momo-backend/internal/config"
	"github.com/lottoplay/momo-backend/internal/models"
	"github.com/lottoplay/momo-backend/internal/repositories"
	"github.com/lottoplay/momo-backend/pkg/momo"
)

// Compile-time check to ensure ReconciliationServiceImpl implements ReconciliationService
var _ ReconciliationService = (*ReconciliationServiceImpl)(nil)

// ReconciliationServiceImpl periodically re-queries the gateway for
// transactions stuck in a non-terminal state and advances them under the
// same monotonic-terminal guard as every other writer.
type ReconciliationServiceImpl struct {
	txnRepo repositories.PaymentTransactionRepository
	gateway GatewayClient

	defaultMaxAge time.Duration
	defaultLimit  int

	limiter *sweepRateLimiter
	pacer   *rate.Limiter
	busy    atomic.Bool
}

func NewReconciliationService(txnRepo repositories.PaymentTransactionRepository, gateway GatewayClient, cfg config.ReconciliationConfig) *ReconciliationServiceImpl {
	return &ReconciliationServiceImpl{
		txnRepo:       txnRepo,
		gateway:       gateway,
		defaultMaxAge: cfg.MaxAge,
		defaultLimit:  cfg.BatchLimit,
		limiter:       newSweepRateLimiter(cfg.MaxSweepsPerMinute, cfg.MaxSweepsPerHour),
		// Burst of 1: the first gateway call goes out immediately, every
		// later call waits out the pacing delay.
		pacer: rate.NewLimiter(rate.Every(cfg.PacingDelay), 1),
	}
}

// Sweep runs one reconciliation pass. The busy flag keeps at most one
// sweep in flight and is checked first, so an overlapping call does not
// consume one of the caller's invocation slots. Caps are checked before
// any gateway work so an over-limit caller costs the provider nothing.
// Candidates are processed strictly sequentially with inter-call pacing,
// and a failure on one candidate is recorded against that candidate only.
func (s *ReconciliationServiceImpl) Sweep(ctx context.Context, opts SweepOptions) (*models.SweepResult, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrSweepInProgress
	}
	defer s.busy.Store(false)

	if !s.limiter.Allow() {
		perMinute, perHour := s.limiter.Counts()
		slog.Warn("Sweep rejected by rate limit", "perMinute", perMinute, "perHour", perHour)
		return nil, ErrRateLimited
	}

	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = s.defaultMaxAge
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}

	candidates, err := s.txnRepo.FindStuck(ctx, repositories.StuckQuery{
		Cutoff: time.Now().Add(-maxAge),
		Limit:  limit,
		UserID: opts.UserID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query stuck transactions: %w", err)
	}

	result := &models.SweepResult{
		Found:   len(candidates),
		SweptAt: time.Now(),
	}
	slog.Info("Reconciliation sweep started", "candidates", len(candidates), "maxAge", maxAge, "limit", limit)

	for _, txn := range candidates {
		if err := s.pacer.Wait(ctx); err != nil {
			// Context cancelled mid-sweep; report what was done so far.
			slog.Warn("Sweep interrupted", "processed", len(result.Candidates), "error", err)
			return result, nil
		}
		result.Candidates = append(result.Candidates, s.reconcileOne(ctx, txn))
	}

	for _, c := range result.Candidates {
		if c.Updated {
			result.Updated++
		}
	}

	slog.Info("Reconciliation sweep finished", "found", result.Found, "updated", result.Updated)
	return result, nil
}

// reconcileOne re-queries the gateway for a single stuck transaction.
// Every path stamps the background-check bookkeeping so repeatedly
// failing lookups stay observable.
func (s *ReconciliationServiceImpl) reconcileOne(ctx context.Context, txn *models.PaymentTransaction) models.SweepCandidateResult {
	res := models.SweepCandidateResult{
		TransactionID:  txn.ID,
		PreviousStatus: txn.Status,
		NewStatus:      txn.Status,
	}

	gwResp, gwErr := s.gateway.QueryStatus(ctx, txn.ProviderTransactionID)
	if gwErr != nil {
		if momo.IsRejection(gwErr) {
			failedAt := time.Now()
			if _, applied, err := s.txnRepo.ApplyStatus(ctx, txn.ID, repositories.StatusUpdate{
				Status:       models.StatusFailed,
				ErrorMessage: gwErr.Error(),
				FailedAt:     &failedAt,
			}); err != nil {
				res.Error = err.Error()
			} else if applied {
				res.NewStatus = models.StatusFailed
				res.Updated = true
			}
		} else {
			// Transport failure: outcome unknown, leave the status alone.
			res.Error = gwErr.Error()
		}
		if err := s.txnRepo.MarkBackgroundCheck(ctx, txn.ID, res.Error); err != nil {
			slog.Error("Failed to stamp background check", "transactionId", txn.ID, "error", err)
		}
		slog.Warn("Sweep candidate check failed", "transactionId", txn.ID, "error", gwErr)
		return res
	}

	rawStatus := gatewayStatus(gwResp)
	mapped := models.MapProviderStatus(rawStatus)
	if mapped != txn.Status && txn.Status.CanTransitionTo(mapped) {
		_, applied, err := s.txnRepo.ApplyStatus(ctx, txn.ID, statusUpdateFor(mapped, rawStatus, ""))
		if err != nil {
			res.Error = err.Error()
		} else if applied {
			res.NewStatus = mapped
			res.Updated = true
			slog.Info("Sweep advanced transaction", "transactionId", txn.ID, "from", txn.Status, "to", mapped)
		}
	}

	if err := s.txnRepo.MarkBackgroundCheck(ctx, txn.ID, ""); err != nil {
		slog.Error("Failed to stamp background check", "transactionId", txn.ID, "error", err)
	}
	return res
}
