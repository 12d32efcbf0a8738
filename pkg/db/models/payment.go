package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dbtypes "github.com/obinnaeke/tradelane-backend/pkg/db/types"
	"github.com/obinnaeke/tradelane-backend/pkg/enums"
)

// Payment owns the money side of a checkout or subscription purchase.
// TransactionRef is globally unique; (owner_id, idempotency_key) is unique
// for rows that carry a key, which is what collapses racing retries.
type Payment struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID        uuid.UUID           `gorm:"column:owner_id;type:uuid;not null;index"`
	OrderID        *uuid.UUID          `gorm:"column:order_id;type:uuid"`
	OrderIDs       dbtypes.UUIDArray   `gorm:"column:order_ids;type:uuid[];not null;default:'{}'"`
	SubscriptionID *uuid.UUID          `gorm:"column:subscription_id;type:uuid"`
	TransactionRef string              `gorm:"column:transaction_ref;not null;uniqueIndex:idx_payments_transaction_ref"`
	ProcessorRef   *string             `gorm:"column:processor_ref"`
	Amount         decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency       enums.Currency      `gorm:"column:currency;type:char(3);not null;default:'USD'"`
	Status         enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'pending'"`
	PaymentType    enums.PaymentType   `gorm:"column:payment_type;type:payment_type;not null"`
	Metadata       json.RawMessage     `gorm:"column:metadata;type:jsonb"`
	IdempotencyKey *string             `gorm:"column:idempotency_key"`
	RequestHash    *string             `gorm:"column:request_hash"`
	RefundedAmount decimal.Decimal     `gorm:"column:refunded_amount;type:numeric(12,2);not null;default:0"`
	RefundReason   *string             `gorm:"column:refund_reason"`
	RefundRef      *string             `gorm:"column:refund_ref"`
	RefundedAt     *time.Time          `gorm:"column:refunded_at"`
	SucceededAt    *time.Time          `gorm:"column:succeeded_at"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
