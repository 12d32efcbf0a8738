package payments

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/obinnaeke/tradelane-backend/internal/checkout"
	"github.com/obinnaeke/tradelane-backend/internal/subscriptions"
	"github.com/obinnaeke/tradelane-backend/pkg/enums"
	pkgerrors "github.com/obinnaeke/tradelane-backend/pkg/errors"
)

// Payment metadata is a tagged union keyed by the payment_type column: order
// payments carry the frozen cart snapshot, subscription payments carry the
// activation intent. Both are validated when the payment is written so the
// success path can trust what it decodes.

func encodeMetadata(payload any) (json.RawMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode payment metadata")
	}
	return raw, nil
}

func decodeCartSnapshot(raw json.RawMessage) (*checkout.CartSnapshot, error) {
	if len(raw) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment metadata missing")
	}
	var snapshot checkout.CartSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode cart snapshot")
	}
	if snapshot.BuyerBusinessID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "snapshot missing buyer business")
	}
	if len(snapshot.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "snapshot has no items")
	}
	for _, item := range snapshot.Items {
		if item.ProductID == uuid.Nil || item.SellerID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "snapshot item missing ids")
		}
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "snapshot item quantity must be positive")
		}
		if item.UnitPrice.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "snapshot item price cannot be negative")
		}
	}
	return &snapshot, nil
}

// decodeActivationIntent validates the plan and cycle; the business id is
// stamped from the authenticated actor at create time, so decoders of stored
// metadata check it separately.
func decodeActivationIntent(raw json.RawMessage) (*subscriptions.ActivationIntent, error) {
	if len(raw) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription intent required")
	}
	var intent subscriptions.ActivationIntent
	if err := json.Unmarshal(raw, &intent); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode subscription intent")
	}
	if intent.PlanID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription intent missing plan")
	}
	if !intent.Cycle.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid billing cycle")
	}
	return &intent, nil
}

// requestHash fingerprints the client-visible request so one idempotency key
// cannot silently cover two different requests.
func requestHash(paymentType enums.PaymentType, currency enums.Currency, amount *decimal.Decimal, metadata json.RawMessage) string {
	var amountPart string
	if amount != nil {
		amountPart = amount.StringFixed(2)
	}
	joined := strings.Join([]string{
		string(paymentType),
		string(currency),
		amountPart,
		string(metadata),
	}, "|")
	sum := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(sum[:])
}
