package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Calculation records one usage of the quota-limited calculator surface.
// The plan limit enforcer counts these per calendar month.
type Calculation struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BusinessID uuid.UUID       `gorm:"column:business_id;type:uuid;not null;index"`
	Kind       string          `gorm:"column:kind;not null"`
	Input      json.RawMessage `gorm:"column:input;type:jsonb"`
	Result     json.RawMessage `gorm:"column:result;type:jsonb"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
}
