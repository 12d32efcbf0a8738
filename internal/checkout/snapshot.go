package checkout

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Buyer identifies who is checking out. SubjectID owns the cart rows;
// BusinessID is stamped on the created orders and drives plan limits.
type Buyer struct {
	SubjectID  uuid.UUID
	BusinessID uuid.UUID
}

// SnapshotItem is one frozen cart line. Unit price and seller are captured at
// snapshot time and are authoritative for later fulfilment.
type SnapshotItem struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	SellerID    uuid.UUID       `json:"seller_id"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// CartSnapshot freezes a buyer's cart at payment-creation time so fulfilment
// never trusts the live cart or live prices.
type CartSnapshot struct {
	BuyerBusinessID uuid.UUID      `json:"buyer_business_id"`
	Items           []SnapshotItem `json:"items"`
}

// Subtotal sums price times quantity over all snapshot lines.
func (s CartSnapshot) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range s.Items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}
