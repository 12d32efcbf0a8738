package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/obinnaeke/tradelane-backend/pkg/enums"
)

// InventoryTransaction is one append-only stock movement. Rows are never
// updated or deleted; the quantity timeline replays from them.
type InventoryTransaction struct {
	ID               uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID        uuid.UUID             `gorm:"column:product_id;type:uuid;not null;index"`
	SellerID         uuid.UUID             `gorm:"column:seller_id;type:uuid;not null;index"`
	EventType        enums.LedgerEventType `gorm:"column:event_type;type:ledger_event_type;not null"`
	Direction        enums.LedgerDirection `gorm:"column:direction;type:ledger_direction;not null"`
	Quantity         int                   `gorm:"column:quantity;not null"`
	PreviousQuantity int                   `gorm:"column:previous_quantity;not null"`
	NewQuantity      int                   `gorm:"column:new_quantity;not null"`
	Reason           *string               `gorm:"column:reason"`
	Reference        *string               `gorm:"column:reference"`
	ActorID          uuid.UUID             `gorm:"column:actor_id;type:uuid;not null"`
	CreatedAt        time.Time             `gorm:"column:created_at;autoCreateTime"`
}
