package enums

import "fmt"

// DiscountType classifies how a discount instance came to exist.
type DiscountType string

const (
	DiscountTypeGiftCard  DiscountType = "gift_card"
	DiscountTypePromoCode DiscountType = "promo_code"
	DiscountTypeManual    DiscountType = "manual"
)

var validDiscountTypes = []DiscountType{
	DiscountTypeGiftCard,
	DiscountTypePromoCode,
	DiscountTypeManual,
}

// String implements fmt.Stringer.
func (d DiscountType) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DiscountType.
func (d DiscountType) IsValid() bool {
	for _, candidate := range validDiscountTypes {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDiscountType converts raw input into a DiscountType.
func ParseDiscountType(value string) (DiscountType, error) {
	for _, candidate := range validDiscountTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid discount type %q", value)
}
