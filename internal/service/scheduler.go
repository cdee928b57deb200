package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kursadbilgin/payout-notifier/internal/domain"
	"github.com/kursadbilgin/payout-notifier/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultBatchConcurrency = 4

type summarizer interface {
	Summarize(ctx context.Context, scope repository.Scope) ([]domain.Group, error)
}

type dispatcher interface {
	Dispatch(ctx context.Context, req DispatchRequest) (*DispatchReport, error)
}

// Scheduler runs the daily aggregated batch: at each interval it groups
// the operator's eligible payments for the current date and dispatches one
// notification per provider. The claim transaction makes the batch safe to
// run alongside manual triggers.
type Scheduler struct {
	summaries   summarizer
	dispatches  dispatcher
	operatorID  string
	interval    time.Duration
	concurrency int
	logger      *zap.Logger
	now         func() time.Time
}

func NewScheduler(
	summaries summarizer,
	dispatches dispatcher,
	operatorID string,
	interval time.Duration,
	logger *zap.Logger,
) (*Scheduler, error) {
	if summaries == nil {
		return nil, fmt.Errorf("summary service is required")
	}
	if dispatches == nil {
		return nil, fmt.Errorf("dispatch service is required")
	}
	if operatorID == "" {
		return nil, fmt.Errorf("operator id is required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scheduler{
		summaries:   summaries,
		dispatches:  dispatches,
		operatorID:  operatorID,
		interval:    interval,
		concurrency: defaultBatchConcurrency,
		logger:      logger,
		now:         time.Now,
	}, nil
}

func (s *Scheduler) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Run an initial batch so a restart does not wait for the first ticker edge.
	if err := s.runBatch(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("auto-dispatch initial batch failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.runBatch(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("auto-dispatch batch failed", zap.Error(err))
			}
		}
	}
}

// runBatch dispatches every group in today's scope. Per-group failures are
// logged and the batch continues; losing a claim race to a concurrent
// manual trigger is expected and not an error.
func (s *Scheduler) runBatch(ctx context.Context) error {
	date := s.now().UTC().Truncate(24 * time.Hour)

	groups, err := s.summaries.Summarize(ctx, repository.Scope{
		OperatorID: s.operatorID,
		Date:       date,
	})
	if err != nil {
		return fmt.Errorf("failed to summarize batch scope: %w", err)
	}
	if len(groups) == 0 {
		return nil
	}

	s.logger.Info("auto-dispatch batch started",
		zap.String("date", date.Format("2006-01-02")),
		zap.Int("groups", len(groups)),
	)

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i := range groups {
		group := groups[i]
		g.Go(func() error {
			_, err := s.dispatches.Dispatch(groupCtx, DispatchRequest{
				OperatorID: s.operatorID,
				ProviderID: group.ProviderID,
				Date:       date,
			})
			if err == nil || errors.Is(err, domain.ErrNoEligibleRecords) {
				return nil
			}

			s.logger.Error("auto-dispatch failed for provider",
				zap.String("providerId", group.ProviderID),
				zap.String("date", date.Format("2006-01-02")),
				zap.Error(err),
			)
			return nil
		})
	}

	return g.Wait()
}
