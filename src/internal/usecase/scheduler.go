package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/api-sage/escrow-engine/src/internal/domain"
	"github.com/api-sage/escrow-engine/src/internal/logger"
	"golang.org/x/sync/errgroup"
)

type TickResult struct {
	ReleasedCount        int      `json:"releasedCount"`
	SkippedCount         int      `json:"skippedCount"`
	FailedTransactionIDs []string `json:"failedTransactionIds"`
}

// Scheduler releases scheduled transactions whose release time has passed.
// It keeps no state between ticks; every decision is re-checked under the
// account lock, so several schedulers may tick at once.
type Scheduler struct {
	escrow    *EscrowService
	batchSize int
	workers   int
	clock     func() time.Time
}

func NewScheduler(escrow *EscrowService, batchSize int, workers int, clock func() time.Time) *Scheduler {
	if batchSize <= 0 {
		batchSize = 100
	}
	if workers <= 0 {
		workers = 1
	}
	if clock == nil {
		clock = time.Now
	}
	return &Scheduler{
		escrow:    escrow,
		batchSize: batchSize,
		workers:   workers,
		clock:     clock,
	}
}

func (s *Scheduler) Tick(ctx context.Context, now time.Time) (TickResult, error) {
	now = now.UTC()
	result := TickResult{FailedTransactionIDs: []string{}}

	var due []domain.EscrowTransaction
	err := s.escrow.store.ReadSnapshot(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		var err error
		due, err = uow.Transactions().ListDue(ctx, now, s.batchSize)
		return err
	})
	if err != nil {
		logger.Error("release scheduler list due failed", err, logger.Fields{"now": now})
		return result, err
	}

	var mu sync.Mutex
	group := new(errgroup.Group)
	group.SetLimit(s.workers)

	for _, tx := range due {
		if ctx.Err() != nil {
			break
		}
		id := tx.ID
		group.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			released, err := s.escrow.releaseDue(ctx, id, now)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				logger.Error("release scheduler release failed", err, logger.Fields{
					"transactionId": id,
					"errorClass":    domain.Classify(err),
				})
				result.FailedTransactionIDs = append(result.FailedTransactionIDs, id)
			case released:
				result.ReleasedCount++
			default:
				result.SkippedCount++
			}
			return nil
		})
	}
	_ = group.Wait()

	logger.Info("release scheduler tick complete", logger.Fields{
		"now":      now,
		"due":      len(due),
		"released": result.ReleasedCount,
		"skipped":  result.SkippedCount,
		"failed":   len(result.FailedTransactionIDs),
	})
	return result, nil
}

// Run ticks every interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("release scheduler started", logger.Fields{"interval": interval.String()})
	for {
		select {
		case <-ctx.Done():
			logger.Info("release scheduler stopped", nil)
			return
		case <-ticker.C:
			if _, err := s.Tick(ctx, s.clock()); err != nil && ctx.Err() == nil {
				logger.Error("release scheduler tick failed", err, nil)
			}
		}
	}
}
