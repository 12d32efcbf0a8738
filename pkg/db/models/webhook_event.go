package models

import (
	"time"

	"github.com/google/uuid"
)

// WebhookEvent records one processor delivery per transaction reference.
// The unique index is the dedup surface: the first committed insert wins
// and every later delivery collapses onto it.
type WebhookEvent struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TransactionRef string    `gorm:"column:transaction_ref;not null;uniqueIndex:idx_webhook_events_transaction_ref"`
	EventType      string    `gorm:"column:event_type;not null"`
	Signature      *string   `gorm:"column:signature"`
	ProcessedAt    time.Time `gorm:"column:processed_at;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}
