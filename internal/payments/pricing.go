package payments

import (
	"errors"
	"math"
)

// Pricing errors.
var (
	ErrUnknownTier = errors.New("unknown tier")
	ErrNoPrice     = errors.New("no price configured")
)

// PriceTable is the server-held source of truth for charged amounts.
// Client-supplied prices are never accepted; only a tier key is, and it must
// resolve here.
type PriceTable struct {
	Tiers            map[string]int64 // tier key -> price in minor units
	BasePrice        int64            // used when no tiers are configured
	SurchargePercent float64
	Currency         string
}

// Amount resolves the charged amount in minor units for a tier key: the
// table price plus the configured surcharge, rounded to the nearest minor
// unit.
func (t PriceTable) Amount(tier string) (int64, error) {
	base := t.BasePrice
	if len(t.Tiers) > 0 {
		p, ok := t.Tiers[tier]
		if !ok {
			return 0, ErrUnknownTier
		}
		base = p
	}
	if base <= 0 {
		return 0, ErrNoPrice
	}
	return applySurcharge(base, t.SurchargePercent), nil
}

func applySurcharge(amount int64, percent float64) int64 {
	if percent == 0 {
		return amount
	}
	return int64(math.Round(float64(amount) * (1 + percent/100)))
}
