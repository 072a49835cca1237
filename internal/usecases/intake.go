package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mintex/exchange-core/backend/internal/entities"
)

// CreateOrderRequest carries the caller-supplied fields of a new order.
// Price is optional; it must be present exactly for limit orders.
// OriginVolume defaults to Volume when not independently supplied.
type CreateOrderRequest struct {
	MemberID     int64
	Side         entities.OrderSide
	OrdType      entities.OrderType
	Price        *decimal.Decimal
	Volume       decimal.Decimal
	OriginVolume *decimal.Decimal
}

// CreateOrder validates, precision-normalizes and persists a new pending
// order. The resolved market configuration is passed in explicitly; depth
// supplies the opposite-side book levels a market order is estimated
// against, best price first. The reservation amount (locked) is fixed here;
// the actual ledger movement happens at submit.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest, market entities.Market, depth []PriceLevel) (*entities.Order, error) {
	now := time.Now().UTC()

	order := &entities.Order{
		MemberID:     req.MemberID,
		MarketID:     market.ID,
		Bid:          market.QuoteUnit,
		Ask:          market.BaseUnit,
		Side:         req.Side,
		OrdType:      req.OrdType,
		Volume:       req.Volume,
		OriginVolume: req.Volume,
		Fee:          market.FeeFor(req.Side),
		State:        entities.StatePending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.Price != nil {
		order.Price = decimal.NullDecimal{Decimal: *req.Price, Valid: true}
	}
	if req.OriginVolume != nil {
		order.OriginVolume = *req.OriginVolume
	}

	NormalizeOrder(order, market)

	if err := order.Validate(); err != nil {
		return nil, err
	}

	locked, err := requiredFunds(order, depth)
	if err != nil {
		return nil, err
	}
	order.Locked = locked
	order.OriginLocked = locked

	if err := s.repo.Insert(ctx, order); err != nil {
		return nil, fmt.Errorf("persisting order: %w", err)
	}

	s.logger.Info("order created",
		"order_id", order.ID,
		"member_id", order.MemberID,
		"market", order.MarketID,
		"side", order.Side,
		"ord_type", order.OrdType,
		"volume", order.Volume,
		"locked", order.Locked)

	s.notifier.OrderCreated(ctx, order)

	return order, nil
}

// NormalizeOrder rounds the order's quantities to the market's configured
// scales: price to the quote currency scale, volumes to the base currency
// scale. The market's rounding policy is honored exactly.
func NormalizeOrder(order *entities.Order, market entities.Market) {
	if order.Price.Valid {
		order.Price.Decimal = market.RoundPrice(order.Price.Decimal)
	}
	order.Volume = market.RoundAmount(order.Volume)
	order.OriginVolume = market.RoundAmount(order.OriginVolume)
}

// requiredFunds computes the reservation backing an order. Limit orders
// need price times volume (bid) or the volume itself (ask); market orders
// are estimated against the supplied depth and fail when liquidity is
// short.
func requiredFunds(order *entities.Order, depth []PriceLevel) (decimal.Decimal, error) {
	if order.OrdType == entities.TypeLimit {
		if order.Side == entities.SideBid {
			return order.Price.Decimal.Mul(order.Volume), nil
		}
		return order.Volume, nil
	}

	value := AskValue
	if order.Side == entities.SideBid {
		value = BidValue
	}
	return EstimateRequiredFunds(order.Volume, depth, value)
}
