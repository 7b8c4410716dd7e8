package types

import "errors"

// Sentinel errors for the trading core.
var (
	// Precondition errors
	ErrInvalidFeeRate   = errors.New("invalid transaction cost parameters")
	ErrMarketMismatch   = errors.New("position and listener belong to different markets")
	ErrNoArbitragePath  = errors.New("markets do not form a closed conversion cycle")
	ErrInvalidOrderSize = errors.New("invalid order size")
	ErrInvalidPrice     = errors.New("invalid price value")

	// Order errors
	ErrOrderNotExecuted     = errors.New("order has not been executed")
	ErrOrderAlreadyExecuted = errors.New("order already executed")
	ErrOverfill             = errors.New("fill exceeds remaining order size")
	ErrOrderTimeout         = errors.New("order timeout")

	// Advance order errors
	ErrAlreadyActivated = errors.New("advance order already activated")

	// Actor errors
	ErrActorClosed = errors.New("market actor shut down")

	// Data errors
	ErrDataUnavailable       = errors.New("market data unavailable")
	ErrInsufficientLiquidity = errors.New("insufficient orderbook liquidity")

	// State errors
	ErrStateNotFound = errors.New("state not found")

	// Validation errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrInvalidSymbol = errors.New("invalid symbol")
)
