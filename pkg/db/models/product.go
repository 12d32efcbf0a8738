package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/obinnaeke/tradelane-backend/pkg/enums"
)

// Product is the commerce core's read model of a catalog listing. The catalog
// service owns every column except quantity, which only the inventory ledger
// may write.
type Product struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID          uuid.UUID           `gorm:"column:seller_id;type:uuid;not null;index"`
	Name              string              `gorm:"column:name;not null"`
	Price             decimal.Decimal     `gorm:"column:price;type:numeric(12,2);not null"`
	Quantity          int                 `gorm:"column:quantity;not null;default:0"`
	Status            enums.ProductStatus `gorm:"column:status;type:product_status;not null;default:'active'"`
	LowStockThreshold *int                `gorm:"column:low_stock_threshold"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
