// Package mocked provides in-process stand-ins for the external providers
// this core consumes as opaque collaborators: market configuration and
// order-book depth snapshots.
package mocked

import (
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/mintex/exchange-core/backend/internal/entities"
	"github.com/mintex/exchange-core/backend/internal/usecases"
)

// MarketRegistry resolves market configuration (fee rates, precision
// scales, rounding policy) by market id.
type MarketRegistry struct {
	logger  *slog.Logger
	markets map[string]entities.Market
}

func NewMarketRegistry(logger *slog.Logger) *MarketRegistry {
	return &MarketRegistry{
		logger:  logger,
		markets: make(map[string]entities.Market),
	}
}

// InitializeMarkets seeds the registry with the default trading pairs.
func (r *MarketRegistry) InitializeMarkets() {
	pairs := []entities.Market{
		{
			ID:              "btc_usd",
			BaseUnit:        "btc",
			QuoteUnit:       "usd",
			PricePrecision:  2,
			AmountPrecision: 8,
			AskFee:          decimal.NewFromFloat(0.0015),
			BidFee:          decimal.NewFromFloat(0.0015),
			Rounding:        entities.RoundHalfUp,
		},
		{
			ID:              "eth_usd",
			BaseUnit:        "eth",
			QuoteUnit:       "usd",
			PricePrecision:  2,
			AmountPrecision: 8,
			AskFee:          decimal.NewFromFloat(0.002),
			BidFee:          decimal.NewFromFloat(0.002),
			Rounding:        entities.RoundHalfUp,
		},
		{
			ID:              "eth_btc",
			BaseUnit:        "eth",
			QuoteUnit:       "btc",
			PricePrecision:  8,
			AmountPrecision: 8,
			AskFee:          decimal.NewFromFloat(0.001),
			BidFee:          decimal.NewFromFloat(0.001),
			Rounding:        entities.Truncate,
		},
	}

	for _, m := range pairs {
		r.markets[m.ID] = m
	}

	r.logger.Info("Initialized market registry", "count", len(r.markets))
}

func (r *MarketRegistry) Get(id string) (entities.Market, error) {
	market, ok := r.markets[id]
	if !ok {
		return entities.Market{}, entities.ErrUnknownMarket
	}
	return market, nil
}

func (r *MarketRegistry) All() []entities.Market {
	all := make([]entities.Market, 0, len(r.markets))
	for _, m := range r.markets {
		all = append(all, m)
	}
	return all
}

// DepthSource serves order-book level snapshots, best price first, for
// market order estimation. Levels are fed in by whatever tracks the live
// book; reads and writes may race, hence the lock.
type DepthSource struct {
	mu     sync.RWMutex
	levels map[string]map[entities.OrderSide][]usecases.PriceLevel
}

func NewDepthSource() *DepthSource {
	return &DepthSource{
		levels: make(map[string]map[entities.OrderSide][]usecases.PriceLevel),
	}
}

// SetLevels replaces the standing levels of one side of a market. The
// caller supplies them already ordered best price first.
func (d *DepthSource) SetLevels(marketID string, side entities.OrderSide, levels []usecases.PriceLevel) {
	d.mu.Lock()
	defer d.mu.Unlock()

	sides, ok := d.levels[marketID]
	if !ok {
		sides = make(map[entities.OrderSide][]usecases.PriceLevel)
		d.levels[marketID] = sides
	}
	sides[side] = levels
}

// Levels returns a copy of the standing levels of one side of a market.
func (d *DepthSource) Levels(marketID string, side entities.OrderSide) []usecases.PriceLevel {
	d.mu.RLock()
	defer d.mu.RUnlock()

	sides, ok := d.levels[marketID]
	if !ok {
		return nil
	}

	snapshot := make([]usecases.PriceLevel, len(sides[side]))
	copy(snapshot, sides[side])
	return snapshot
}
