package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/obinnaeke/tradelane-backend/pkg/enums"
)

// Order is one seller's slice of a checkout, exactly one per (payment, seller).
type Order struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID       uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null;index"`
	SellerID      uuid.UUID         `gorm:"column:seller_id;type:uuid;not null;index"`
	PaymentID     *uuid.UUID        `gorm:"column:payment_id;type:uuid;index"`
	Title         string            `gorm:"column:title;not null"`
	CustomerLabel string            `gorm:"column:customer_label;not null"`
	Amount        decimal.Decimal   `gorm:"column:amount;type:numeric(12,2);not null"`
	Status        enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending'"`
	Description   *string           `gorm:"column:description"`
	Items         []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
