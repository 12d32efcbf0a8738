package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/obinnaeke/tradelane-backend/pkg/types"
)

// SubscriptionPlan captures the catalog of purchasable plans and their
// usage ceilings. Limits use -1 for unlimited.
type SubscriptionPlan struct {
	ID           uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Slug         string           `gorm:"column:slug;not null;uniqueIndex:idx_subscription_plans_slug"`
	Name         string           `gorm:"column:name;not null"`
	Description  *string          `gorm:"column:description"`
	PriceMonthly decimal.Decimal  `gorm:"column:price_monthly;type:numeric(12,2);not null"`
	PriceAnnual  decimal.Decimal  `gorm:"column:price_annual;type:numeric(12,2);not null"`
	Features     pq.StringArray   `gorm:"column:features;type:text[];default:ARRAY[]::text[]"`
	Limits       types.PlanLimits `gorm:"column:limits;type:jsonb;serializer:json"`
	TrialDays    int              `gorm:"column:trial_days;not null;default:14"`
	IsActive     bool             `gorm:"column:is_active;not null;default:true"`
	SortOrder    int              `gorm:"column:sort_order;not null;default:0"`
	CreatedAt    time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
