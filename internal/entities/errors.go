package entities

import "errors"

var (
	// ErrOrderNotFound is returned when an order id resolves to no row.
	ErrOrderNotFound = errors.New("order not found")

	// ErrInsufficientFunds is reported by the fund ledger when the source
	// sub-account balance does not cover the transfer amount.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientLiquidity is raised by the depth estimator when the
	// supplied levels cannot absorb the requested volume.
	ErrInsufficientLiquidity = errors.New("insufficient market liquidity")

	ErrMissingPrice     = errors.New("limit order requires a positive price")
	ErrPriceNotAllowed  = errors.New("market order must not specify a price")
	ErrInvalidOrderType = errors.New("invalid order type")
	ErrInvalidOrderSide = errors.New("invalid order side")
	ErrInvalidVolume    = errors.New("order volume must be positive")
	ErrUnknownMarket    = errors.New("unknown market")
)
