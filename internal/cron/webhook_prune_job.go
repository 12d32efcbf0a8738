package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/obinnaeke/tradelane-backend/internal/webhooks"
	"github.com/obinnaeke/tradelane-backend/pkg/logger"
)

const (
	webhookRetentionDays       = 30
	defaultWebhookPruneBatch   = 500
	defaultWebhookPruneBatches = 20
)

// WebhookPruneJobParams configures the webhook dedup retention job.
type WebhookPruneJobParams struct {
	Logger     *logger.Logger
	Pruner     webhookPruner
	Retention  int
	BatchSize  int
	MaxBatches int
	Now        func() time.Time
}

type webhookPruner interface {
	PruneOlderThan(ctx context.Context, cutoff time.Time, batchSize int) (*webhooks.PruneResult, error)
}

// NewWebhookPruneJob builds the job that trims old webhook dedup rows.
func NewWebhookPruneJob(params WebhookPruneJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Pruner == nil {
		return nil, fmt.Errorf("webhook pruner required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = webhookRetentionDays
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultWebhookPruneBatch
	}
	maxBatches := params.MaxBatches
	if maxBatches <= 0 {
		maxBatches = defaultWebhookPruneBatches
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &webhookPruneJob{
		logg:       params.Logger,
		pruner:     params.Pruner,
		retention:  retention,
		batchSize:  batchSize,
		maxBatches: maxBatches,
		now:        now,
	}, nil
}

type webhookPruneJob struct {
	logg       *logger.Logger
	pruner     webhookPruner
	retention  int
	batchSize  int
	maxBatches int
	now        func() time.Time
}

func (j *webhookPruneJob) Name() string { return "webhook-event-prune" }

func (j *webhookPruneJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().AddDate(0, 0, -j.retention)
	var deleted int64
	batches := 0
	for batches < j.maxBatches {
		result, err := j.pruner.PruneOlderThan(ctx, cutoff, j.batchSize)
		if err != nil {
			return fmt.Errorf("webhook prune: %w", err)
		}
		deleted += result.Deleted
		batches++
		if !result.HasMore {
			break
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   deleted,
		"batches":        batches,
	})
	j.logg.Info(logCtx, "webhook event prune complete")
	return nil
}
