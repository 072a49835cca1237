package entities

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func validLimitOrder() *Order {
	return &Order{
		ID:           42,
		MemberID:     7,
		MarketID:     "btc_usd",
		Bid:          "usd",
		Ask:          "btc",
		Side:         SideBid,
		OrdType:      TypeLimit,
		Price:        decimal.NullDecimal{Decimal: dec("100"), Valid: true},
		Volume:       dec("1"),
		OriginVolume: dec("1"),
		Locked:       dec("100"),
		OriginLocked: dec("100"),
		State:        StatePending,
		CreatedAt:    time.Unix(1700000000, 0).UTC(),
	}
}

func TestStateWeights(t *testing.T) {
	require.Equal(t, 0, StatePending.Weight())
	require.Equal(t, 100, StateWait.Weight())
	require.Equal(t, 200, StateDone.Weight())
	require.Equal(t, -100, StateCancel.Weight())
	require.Equal(t, -200, StateReject.Weight())
}

func TestTerminalStates(t *testing.T) {
	require.False(t, StatePending.Terminal())
	require.False(t, StateWait.Terminal())
	require.True(t, StateDone.Terminal())
	require.True(t, StateCancel.Terminal())
	require.True(t, StateReject.Terminal())
}

func TestLockedCurrencyBySide(t *testing.T) {
	order := validLimitOrder()

	require.Equal(t, "usd", order.LockedCurrency())
	require.Equal(t, "btc", order.IncomeCurrency())

	order.Side = SideAsk
	require.Equal(t, "btc", order.LockedCurrency())
	require.Equal(t, "usd", order.IncomeCurrency())
}

func TestFundsUsed(t *testing.T) {
	order := validLimitOrder()
	require.True(t, order.FundsUsed().IsZero())

	order.Locked = dec("40")
	require.True(t, order.FundsUsed().Equal(dec("60")))
	require.False(t, order.FundsUsed().IsNegative())
}

func TestValidate(t *testing.T) {
	require.NoError(t, validLimitOrder().Validate())

	noPrice := validLimitOrder()
	noPrice.Price = decimal.NullDecimal{}
	require.ErrorIs(t, noPrice.Validate(), ErrMissingPrice)

	negativePrice := validLimitOrder()
	negativePrice.Price.Decimal = dec("-1")
	require.ErrorIs(t, negativePrice.Validate(), ErrMissingPrice)

	pricedMarket := validLimitOrder()
	pricedMarket.OrdType = TypeMarket
	require.ErrorIs(t, pricedMarket.Validate(), ErrPriceNotAllowed)

	market := validLimitOrder()
	market.OrdType = TypeMarket
	market.Price = decimal.NullDecimal{}
	require.NoError(t, market.Validate())

	zeroVolume := validLimitOrder()
	zeroVolume.Volume = decimal.Zero
	require.ErrorIs(t, zeroVolume.Validate(), ErrInvalidVolume)

	badType := validLimitOrder()
	badType.OrdType = "stop"
	require.ErrorIs(t, badType.Validate(), ErrInvalidOrderType)

	badSide := validLimitOrder()
	badSide.Side = "long"
	require.ErrorIs(t, badSide.Validate(), ErrInvalidOrderSide)
}

func TestNewMailboxMessage(t *testing.T) {
	order := validLimitOrder()
	msg := NewMailboxMessage(order)

	require.Equal(t, int64(42), msg.ID)
	require.Equal(t, "btc_usd", msg.Market)
	require.Equal(t, SideBid, msg.Side)
	require.Equal(t, TypeLimit, msg.OrdType)
	require.True(t, msg.Volume.Equal(dec("1")))
	require.True(t, msg.Price.Valid)
	require.True(t, msg.Price.Decimal.Equal(dec("100")))
	require.True(t, msg.Locked.Equal(dec("100")))
	require.Equal(t, int64(1700000000), msg.Timestamp)
}

func TestMarketRounding(t *testing.T) {
	market := Market{PricePrecision: 2, AmountPrecision: 4, Rounding: RoundHalfUp}

	require.True(t, market.RoundPrice(dec("10.005")).Equal(dec("10.01")))
	require.True(t, market.RoundAmount(dec("0.00005")).Equal(dec("0.0001")))

	market.Rounding = Truncate
	require.True(t, market.RoundPrice(dec("10.009")).Equal(dec("10.00")))
	require.True(t, market.RoundAmount(dec("0.00009")).Equal(dec("0")))
}

func TestMarketFeeFor(t *testing.T) {
	market := Market{AskFee: dec("0.001"), BidFee: dec("0.002")}

	require.True(t, market.FeeFor(SideAsk).Equal(dec("0.001")))
	require.True(t, market.FeeFor(SideBid).Equal(dec("0.002")))
}
