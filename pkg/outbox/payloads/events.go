package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/obinnaeke/tradelane-backend/pkg/enums"
)

// OrderCreatedEvent signals a checkout split into per-seller orders.
// PaymentID is nil for direct checkouts.
type OrderCreatedEvent struct {
	PaymentID *uuid.UUID      `json:"payment_id,omitempty"`
	BuyerID   uuid.UUID       `json:"buyer_id"`
	OrderIDs  []uuid.UUID     `json:"order_ids"`
	Total     decimal.Decimal `json:"total"`
}

// PaymentStatusEvent is emitted when a payment reaches success or failure.
type PaymentStatusEvent struct {
	PaymentID      uuid.UUID           `json:"payment_id"`
	TransactionRef string              `json:"transaction_ref"`
	Status         enums.PaymentStatus `json:"status"`
	PaymentType    enums.PaymentType   `json:"payment_type"`
	Amount         decimal.Decimal     `json:"amount"`
	Currency       enums.Currency      `json:"currency"`
}

// PaymentRefundedEvent carries one recorded refund against a payment.
type PaymentRefundedEvent struct {
	PaymentID      uuid.UUID           `json:"payment_id"`
	TransactionRef string              `json:"transaction_ref"`
	RefundRef      *string             `json:"refund_ref,omitempty"`
	Amount         decimal.Decimal     `json:"amount"`
	TotalRefunded  decimal.Decimal     `json:"total_refunded"`
	Status         enums.PaymentStatus `json:"status"`
	Reason         string              `json:"reason,omitempty"`
}

// SubscriptionStatusEvent mirrors subscription lifecycle transitions.
type SubscriptionStatusEvent struct {
	SubscriptionID   uuid.UUID                `json:"subscription_id"`
	BusinessID       uuid.UUID                `json:"business_id"`
	PlanID           uuid.UUID                `json:"plan_id"`
	Status           enums.SubscriptionStatus `json:"status"`
	BillingCycle     enums.BillingCycle       `json:"billing_cycle"`
	CurrentPeriodEnd time.Time                `json:"current_period_end"`
}

// NotificationRequestedEvent tells downstream systems to alert a user.
type NotificationRequestedEvent struct {
	RecipientID uuid.UUID  `json:"recipient_id"`
	Type        string     `json:"type"`
	ResourceID  *uuid.UUID `json:"resource_id,omitempty"`
	Message     string     `json:"message"`
}
