package domain

// MarkupPolicy decides how much an owner's catalog is marked up when one of
// their promo codes activates, and what the code itself costs to activate.
// Both quantities must be monotonic: a strictly larger discount value or a
// longer duration tier never yields a smaller factor or price.
//
// The exact coefficients are business policy, so implementations are
// swappable and the default takes its coefficients from configuration.
type MarkupPolicy interface {
	// Factor returns the multiplicative markup (>= 1.0) applied to every
	// price in the owner's catalog while the code is active.
	Factor(d CodeDuration, t CodeType, value int64) float64

	// ActivationPrice returns the price, in minor units, the owner pays to
	// activate the code.
	ActivationPrice(d CodeDuration, t CodeType, value int64) int64
}

// LinearMarkupPolicy computes markup factors and activation prices as linear
// functions of the normalized discount value and the duration tier index.
// With non-negative weights both outputs are monotonic in value and duration.
type LinearMarkupPolicy struct {
	// BaseFactor is the factor for the smallest value and shortest duration,
	// typically 1.0.
	BaseFactor float64
	// ValuePerPointFactor is added to the factor per normalized value point.
	ValuePerPointFactor float64
	// DurationTierFactor is added to the factor per duration tier above 1_WEEK.
	DurationTierFactor float64

	// BasePrice is the activation price floor in minor units.
	BasePrice int64
	// PricePerPoint is added per normalized value point.
	PricePerPoint int64
	// PricePerTier is added per duration tier above 1_WEEK.
	PricePerTier int64
}

// DefaultMarkupPolicy returns the stock coefficients. A 20% one-year code
// yields a factor of 1.13; a 2% one-week code yields 1.01.
func DefaultMarkupPolicy() LinearMarkupPolicy {
	return LinearMarkupPolicy{
		BaseFactor:          1.0,
		ValuePerPointFactor: 0.005,
		DurationTierFactor:  0.01,
		BasePrice:           5000,
		PricePerPoint:       150,
		PricePerTier:        2500,
	}
}

// normalizedValue maps both code types onto a comparable point scale:
// percentage points directly, fixed amounts per thousand minor units.
func normalizedValue(t CodeType, value int64) int64 {
	if t == CodeTypeFixedAmount {
		return value / 1000
	}
	return value
}

// Factor implements MarkupPolicy.
func (p LinearMarkupPolicy) Factor(d CodeDuration, t CodeType, value int64) float64 {
	f := p.BaseFactor +
		p.ValuePerPointFactor*float64(normalizedValue(t, value)) +
		p.DurationTierFactor*float64(d.TierIndex())
	if f < 1.0 {
		f = 1.0
	}
	return f
}

// ActivationPrice implements MarkupPolicy.
func (p LinearMarkupPolicy) ActivationPrice(d CodeDuration, t CodeType, value int64) int64 {
	price := p.BasePrice +
		p.PricePerPoint*normalizedValue(t, value) +
		p.PricePerTier*int64(d.TierIndex())
	if price < 1 {
		price = 1
	}
	return price
}
