package domain

import (
	"fmt"
	"strings"
	"time"
)

// CodeType is the discount mechanism a promo code grants at checkout.
type CodeType string

const (
	CodeTypePercentage  CodeType = "PERCENTAGE"
	CodeTypeFixedAmount CodeType = "FIXED_AMOUNT"
)

// IsValidCodeType checks whether the given string is a valid promo code type.
func IsValidCodeType(t string) bool {
	switch CodeType(t) {
	case CodeTypePercentage, CodeTypeFixedAmount:
		return true
	}
	return false
}

// CodeStatus is the promo code lifecycle state. Codes are created PENDING,
// become ACTIVE only through payment confirmation, and end up EXPIRED when
// their end date passes or their usage limit is exhausted.
type CodeStatus string

const (
	CodeStatusPending CodeStatus = "PENDING"
	CodeStatusActive  CodeStatus = "ACTIVE"
	CodeStatusExpired CodeStatus = "EXPIRED"
)

// Value bounds per code type. Business-tunable.
const (
	PercentageValueMin = 2
	PercentageValueMax = 20

	FixedAmountValueMin = 2000
	FixedAmountValueMax = 100000
)

// ValidateCodeValue checks the type-specific value bound.
func ValidateCodeValue(t CodeType, value int64) error {
	switch t {
	case CodeTypePercentage:
		if value < PercentageValueMin || value > PercentageValueMax {
			return fmt.Errorf("percentage value %d out of range [%d, %d]",
				value, PercentageValueMin, PercentageValueMax)
		}
	case CodeTypeFixedAmount:
		if value < FixedAmountValueMin || value > FixedAmountValueMax {
			return fmt.Errorf("fixed amount value %d out of range [%d, %d]",
				value, FixedAmountValueMin, FixedAmountValueMax)
		}
	default:
		return fmt.Errorf("unknown code type %q", t)
	}
	return nil
}

// NormalizeCode uppercases a raw code and validates its charset. Codes are
// unique case-insensitively and may only contain A-Z and 0-9.
func NormalizeCode(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if len(code) < 3 || len(code) > 32 {
		return "", fmt.Errorf("code must be between 3 and 32 characters")
	}
	for _, r := range code {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", fmt.Errorf("code may only contain letters and digits")
		}
	}
	return code, nil
}

// CodeDuration is the validity tier an owner purchases a promo code for.
type CodeDuration string

const (
	Duration1Week   CodeDuration = "1_WEEK"
	Duration1Month  CodeDuration = "1_MONTH"
	Duration3Months CodeDuration = "3_MONTHS"
	Duration1Year   CodeDuration = "1_YEAR"
)

// ValidDurations returns the purchasable duration tiers in ascending order.
func ValidDurations() []CodeDuration {
	return []CodeDuration{Duration1Week, Duration1Month, Duration3Months, Duration1Year}
}

// Valid checks whether the duration is one of the purchasable tiers.
func (d CodeDuration) Valid() bool {
	for _, v := range ValidDurations() {
		if d == v {
			return true
		}
	}
	return false
}

// TierIndex returns the duration's position in the ascending tier order
// (1_WEEK = 0 ... 1_YEAR = 3), used by markup policies. Unknown durations
// return 0.
func (d CodeDuration) TierIndex() int {
	for i, v := range ValidDurations() {
		if d == v {
			return i
		}
	}
	return 0
}

// EndDateFrom derives the end date from a start date using exact calendar
// arithmetic. Month additions clamp to the last day of the target month, so
// 2025-01-31 + 1_MONTH yields 2025-02-28 rather than spilling into March.
func (d CodeDuration) EndDateFrom(start time.Time) time.Time {
	switch d {
	case Duration1Week:
		return start.AddDate(0, 0, 7)
	case Duration1Month:
		return addMonthsClamped(start, 1)
	case Duration3Months:
		return addMonthsClamped(start, 3)
	case Duration1Year:
		return addMonthsClamped(start, 12)
	default:
		return start
	}
}

// addMonthsClamped adds calendar months, clamping the day of month to the
// last day of the target month instead of normalizing into the next one.
func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	first := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, hour, min, sec, t.Nanosecond(), t.Location())
}

// PromoCode is a coupon purchased by a catalog owner. Activation applies a
// self-funding markup to the owner's catalog; the code itself is redeemed by
// shoppers at checkout (outside this service).
type PromoCode struct {
	ID              string       `json:"id"`
	Code            string       `json:"code"`
	Type            CodeType     `json:"type"`
	Value           int64        `json:"value"`
	Duration        CodeDuration `json:"duration"`
	StartDate       time.Time    `json:"start_date"`
	EndDate         time.Time    `json:"end_date"`
	UsageLimit      *int         `json:"usage_limit,omitempty"`
	UsageCount      int          `json:"usage_count"`
	MinOrderAmount  int64        `json:"min_order_amount"`
	OwnerID         string       `json:"owner_id"`
	Status          CodeStatus   `json:"status"`
	IsActive        bool         `json:"is_active"`
	ActivationPrice int64        `json:"activation_price"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// Exhausted reports whether the code's usage limit is reached. A nil limit
// is unlimited.
func (c *PromoCode) Exhausted() bool {
	return c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit
}

// Expired reports whether the code should transition to EXPIRED: its end
// date has passed or its usage limit is exhausted.
func (c *PromoCode) Expired(now time.Time) bool {
	return now.After(c.EndDate) || c.Exhausted()
}
