package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/obinnaeke/tradelane-backend/internal/subscriptions"
	"github.com/obinnaeke/tradelane-backend/pkg/logger"
)

const (
	defaultSweepBatchSize  = 100
	defaultSweepMaxBatches = 50
)

// SubscriptionSweepJobParams configures the billing-period sweep job.
type SubscriptionSweepJobParams struct {
	Logger     *logger.Logger
	Sweeper    subscriptionSweeper
	BatchSize  int
	MaxBatches int
	Now        func() time.Time
}

type subscriptionSweeper interface {
	Sweep(ctx context.Context, cutoff time.Time, batchSize int) (*subscriptions.SweepResult, error)
}

// NewSubscriptionSweepJob builds the job that advances lapsed subscriptions.
func NewSubscriptionSweepJob(params SubscriptionSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sweeper == nil {
		return nil, fmt.Errorf("subscription sweeper required")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultSweepBatchSize
	}
	maxBatches := params.MaxBatches
	if maxBatches <= 0 {
		maxBatches = defaultSweepMaxBatches
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &subscriptionSweepJob{
		logg:       params.Logger,
		sweeper:    params.Sweeper,
		batchSize:  batchSize,
		maxBatches: maxBatches,
		now:        now,
	}, nil
}

type subscriptionSweepJob struct {
	logg       *logger.Logger
	sweeper    subscriptionSweeper
	batchSize  int
	maxBatches int
	now        func() time.Time
}

func (j *subscriptionSweepJob) Name() string { return "subscription-sweep" }

// Run drains lapsed subscriptions in batches. The cutoff is fixed at the
// start of the run so subscriptions expiring mid-run wait for the next one.
func (j *subscriptionSweepJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC()
	advanced := 0
	batches := 0
	for batches < j.maxBatches {
		result, err := j.sweeper.Sweep(ctx, cutoff, j.batchSize)
		if err != nil {
			return fmt.Errorf("subscription sweep: %w", err)
		}
		advanced += result.Advanced
		batches++
		if !result.HasMore {
			break
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":   cutoff,
		"advanced": advanced,
		"batches":  batches,
	})
	j.logg.Info(logCtx, "subscription sweep complete")
	return nil
}
