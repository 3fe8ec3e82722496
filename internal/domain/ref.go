package domain

import (
	"fmt"
	"strings"
)

// RefKind identifies which discount mechanism owns an entity's pricing.
type RefKind string

const (
	RefKindRule      RefKind = "rule"
	RefKindPromoCode RefKind = "promo"
)

// DiscountRef is the single tag recording which promotion rule or promo code
// currently owns an entity's pricing. An entity is tagged by at most one ref
// at a time, so revert can unambiguously select every entity priced by a
// given rule or code.
type DiscountRef struct {
	Kind RefKind
	ID   string
}

// RuleRef builds a ref pointing at a promotion rule.
func RuleRef(id string) DiscountRef {
	return DiscountRef{Kind: RefKindRule, ID: id}
}

// PromoRef builds a ref pointing at a promo code.
func PromoRef(id string) DiscountRef {
	return DiscountRef{Kind: RefKindPromoCode, ID: id}
}

// String returns the canonical form, e.g. "rule:<id>" or "promo:<id>".
// This is also the storage representation.
func (r DiscountRef) String() string {
	return string(r.Kind) + ":" + r.ID
}

// ParseDiscountRef parses the canonical "kind:id" form.
func ParseDiscountRef(s string) (DiscountRef, error) {
	kind, id, ok := strings.Cut(s, ":")
	if !ok || id == "" {
		return DiscountRef{}, fmt.Errorf("malformed discount ref %q", s)
	}
	switch RefKind(kind) {
	case RefKindRule, RefKindPromoCode:
		return DiscountRef{Kind: RefKind(kind), ID: id}, nil
	default:
		return DiscountRef{}, fmt.Errorf("unknown discount ref kind %q", kind)
	}
}

// MarshalText implements encoding.TextMarshaler so refs serialize as their
// canonical string form in JSON responses.
func (r DiscountRef) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *DiscountRef) UnmarshalText(b []byte) error {
	parsed, err := ParseDiscountRef(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
