package trader

import "errors"

// Skip-class errors: each one terminates processing of a single observed
// trade with a logged cause and never aborts the batch.
var (
	// ErrStaleTrade marks a BUY older than the copy window. A stale BUY
	// confers no informational edge; SELLs are never age-skipped.
	ErrStaleTrade = errors.New("observed buy is too old to copy")

	// ErrMarketUnavailable marks a market that is inactive, not accepting
	// orders, or carries no price for the traded outcome.
	ErrMarketUnavailable = errors.New("market unavailable for trading")

	// ErrPriceDrift marks a BUY whose market price has moved too far from
	// the observed execution price.
	ErrPriceDrift = errors.New("price drifted too far from observed trade")

	// ErrInsufficientCapital marks a BUY the portfolio cannot pay for.
	ErrInsufficientCapital = errors.New("insufficient available cash")

	// ErrNoPosition marks a SELL against a (market, outcome) pair we do not
	// hold.
	ErrNoPosition = errors.New("no open position for observed sell")

	// ErrBelowMinOrder marks a scaled trade too small to be worth copying.
	ErrBelowMinOrder = errors.New("scaled order below minimum size")
)
