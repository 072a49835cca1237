package entities

import "github.com/shopspring/decimal"

// RoundingPolicy selects how the precision normalizer rounds quantities.
// It is market-level configuration; getting it wrong corrupts fund
// accounting downstream, so it is honored exactly.
type RoundingPolicy string

const (
	RoundHalfUp RoundingPolicy = "round"    // round half away from zero
	Truncate    RoundingPolicy = "truncate" // drop excess digits
)

// Market is the resolved configuration of a trading pair. It is passed
// explicitly into creation and normalization instead of being looked up
// through the order.
type Market struct {
	ID              string          `json:"id"`
	BaseUnit        string          `json:"base_unit"`  // ask currency
	QuoteUnit       string          `json:"quote_unit"` // bid currency
	PricePrecision  int32           `json:"price_precision"`
	AmountPrecision int32           `json:"amount_precision"`
	AskFee          decimal.Decimal `json:"ask_fee"`
	BidFee          decimal.Decimal `json:"bid_fee"`
	Rounding        RoundingPolicy  `json:"rounding"`
}

// FeeFor returns the fee rate charged to the given side.
func (m Market) FeeFor(side OrderSide) decimal.Decimal {
	if side == SideBid {
		return m.BidFee
	}
	return m.AskFee
}

// RoundPrice rounds to the quote currency display scale.
func (m Market) RoundPrice(d decimal.Decimal) decimal.Decimal {
	return m.round(d, m.PricePrecision)
}

// RoundAmount rounds to the base currency display scale.
func (m Market) RoundAmount(d decimal.Decimal) decimal.Decimal {
	return m.round(d, m.AmountPrecision)
}

func (m Market) round(d decimal.Decimal, scale int32) decimal.Decimal {
	if m.Rounding == Truncate {
		return d.Truncate(scale)
	}
	return d.Round(scale)
}
