package webhooks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/obinnaeke/tradelane-backend/pkg/db/models"
)

// Repository persists the webhook dedup rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, event *models.WebhookEvent) error
	FindByTransactionRef(ctx context.Context, transactionRef string) (*models.WebhookEvent, error)
	DeleteByID(ctx context.Context, id uuid.UUID) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a webhook event repository bound to the database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, event *models.WebhookEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) FindByTransactionRef(ctx context.Context, transactionRef string) (*models.WebhookEvent, error) {
	if transactionRef == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var event models.WebhookEvent
	if err := r.db.WithContext(ctx).
		Where("transaction_ref = ?", transactionRef).
		First(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *repository) DeleteByID(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.WebhookEvent{}, "id = ?", id).Error
}

// DeleteOlderThan removes at most limit dedup rows created before cutoff.
// Two-step select-then-delete keeps the query portable across the postgres
// and sqlite drivers.
func (r *repository) DeleteOlderThan(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("created_at < ?", cutoff).
		Order("created_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	result := r.db.WithContext(ctx).Delete(&models.WebhookEvent{}, "id IN ?", ids)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
