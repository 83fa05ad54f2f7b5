package enums

import "fmt"

// InventoryTransactionType labels a stock movement in the append-only ledger.
type InventoryTransactionType string

const (
	InventoryTransactionReservation InventoryTransactionType = "reservation"
	InventoryTransactionRelease     InventoryTransactionType = "release"
	InventoryTransactionFulfillment InventoryTransactionType = "fulfillment"
	InventoryTransactionReturn      InventoryTransactionType = "return"
	InventoryTransactionAdjustment  InventoryTransactionType = "adjustment"
)

var validInventoryTransactionTypes = []InventoryTransactionType{
	InventoryTransactionReservation,
	InventoryTransactionRelease,
	InventoryTransactionFulfillment,
	InventoryTransactionReturn,
	InventoryTransactionAdjustment,
}

// String implements fmt.Stringer.
func (t InventoryTransactionType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known InventoryTransactionType.
func (t InventoryTransactionType) IsValid() bool {
	for _, candidate := range validInventoryTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseInventoryTransactionType converts raw input into an InventoryTransactionType.
func ParseInventoryTransactionType(value string) (InventoryTransactionType, error) {
	for _, candidate := range validInventoryTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid inventory transaction type %q", value)
}
