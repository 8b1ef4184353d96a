package exchange

import (
	"context"

	"github.com/vutran1810/futures-hedge-bot/pkg/types"
)

// OrderSide is the direction of an order.
type OrderSide string

const (
	Buy  OrderSide = "Buy"
	Sell OrderSide = "Sell"
)

// OrderResult is the fill confirmation returned by the exchange.
type OrderResult struct {
	OrderID   string
	Symbol    string
	Side      OrderSide
	Contracts int
	Price     float64
}

// ExecutionPort places and closes leveraged positions. Implementations must
// be safe for concurrent use; the live loop calls them from the cycle
// goroutine while the health server reads connectivity.
type ExecutionPort interface {
	// PlaceOrder opens a position with the given leverage. Contracts is the
	// integer contract count, never a notional value.
	PlaceOrder(ctx context.Context, symbol string, side OrderSide, contracts int, leverage int) (*OrderResult, error)

	// ClosePosition submits a reduce-only order for the given contracts.
	ClosePosition(ctx context.Context, symbol string, side OrderSide, contracts int) (*OrderResult, error)
}

// MarketDataPort supplies account state and per-symbol market snapshots.
type MarketDataPort interface {
	AccountBalance(ctx context.Context) (float64, error)
	Snapshot(ctx context.Context, symbol string) (types.MarketSnapshot, error)
}

// Port combines execution and market data, the full exchange surface the
// bot needs.
type Port interface {
	ExecutionPort
	MarketDataPort
}
