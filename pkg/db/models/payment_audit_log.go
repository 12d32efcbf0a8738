package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/obinnaeke/tradelane-backend/pkg/enums"
)

// PaymentAuditLog is an append-only observability trail. It never drives
// business logic and failures to write it never fail the request.
type PaymentAuditLog struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PaymentID *uuid.UUID        `gorm:"column:payment_id;type:uuid;index"`
	UserID    *uuid.UUID        `gorm:"column:user_id;type:uuid"`
	Action    enums.AuditAction `gorm:"column:action;not null"`
	Status    *string           `gorm:"column:status"`
	IPAddress *string           `gorm:"column:ip_address"`
	UserAgent *string           `gorm:"column:user_agent"`
	Error     *string           `gorm:"column:error"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
}
