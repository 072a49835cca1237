package usecases

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mintex/exchange-core/backend/internal/entities"
)

// PriceLevel is one standing (price, available volume) pair of the book.
type PriceLevel struct {
	Price  decimal.Decimal
	Volume decimal.Decimal
}

// ValueFunc prices the volume consumed at a level. Bid-side estimation pays
// price times volume in quote currency; ask-side estimation spends the
// volume itself in base currency.
type ValueFunc func(price, volume decimal.Decimal) decimal.Decimal

// BidValue is the quote-currency cost of consuming volume at price.
func BidValue(price, volume decimal.Decimal) decimal.Decimal {
	return price.Mul(volume)
}

// AskValue is the base-currency cost of consuming volume at price.
func AskValue(_, volume decimal.Decimal) decimal.Decimal {
	return volume
}

// EstimateRequiredFunds walks the levels strictly in the given order,
// consuming min(remaining, level volume) at each and accumulating the cost
// reported by value. The caller supplies levels best price first. If the
// levels are exhausted while volume remains, the market order cannot be
// filled at current depth and entities.ErrInsufficientLiquidity is
// returned.
func EstimateRequiredFunds(volume decimal.Decimal, levels []PriceLevel, value ValueFunc) (decimal.Decimal, error) {
	required := decimal.Zero
	remaining := volume

	for _, level := range levels {
		if !remaining.IsPositive() {
			break
		}

		consumed := decimal.Min(remaining, level.Volume)
		required = required.Add(value(level.Price, consumed))
		remaining = remaining.Sub(consumed)
	}

	if remaining.IsPositive() {
		return decimal.Zero, fmt.Errorf("estimating funds for volume %s: %w", volume, entities.ErrInsufficientLiquidity)
	}

	return required, nil
}
