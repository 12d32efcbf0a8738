package enums

import "fmt"

// LedgerEventType classifies an inventory movement.
type LedgerEventType string

const (
	LedgerEventTypeRestock    LedgerEventType = "restock"
	LedgerEventTypeSale       LedgerEventType = "sale"
	LedgerEventTypeAdjustment LedgerEventType = "adjustment"
	LedgerEventTypeReturn     LedgerEventType = "return"
	LedgerEventTypeCorrection LedgerEventType = "correction"
)

var validLedgerEventTypes = []LedgerEventType{
	LedgerEventTypeRestock,
	LedgerEventTypeSale,
	LedgerEventTypeAdjustment,
	LedgerEventTypeReturn,
	LedgerEventTypeCorrection,
}

// String implements fmt.Stringer.
func (t LedgerEventType) String() string {
	return string(t)
}

// IsValid reports whether the value matches the canonical ledger event enum.
func (t LedgerEventType) IsValid() bool {
	for _, candidate := range validLedgerEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseLedgerEventType converts raw input into LedgerEventType.
func ParseLedgerEventType(value string) (LedgerEventType, error) {
	for _, candidate := range validLedgerEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger event type %q", value)
}
