package backtest

import (
	"context"
	"fmt"

	"github.com/vutran1810/futures-hedge-bot/internal/exchange"
)

// SimExchange fills every order instantly at the current replay price.
type SimExchange struct {
	price    float64
	orderSeq int
	OrderLog []exchange.OrderResult
}

// NewSimExchange creates a simulated execution port.
func NewSimExchange() *SimExchange {
	return &SimExchange{}
}

// SetPrice moves the simulated market to the given price.
func (s *SimExchange) SetPrice(price float64) {
	s.price = price
}

func (s *SimExchange) PlaceOrder(_ context.Context, symbol string, side exchange.OrderSide, contracts, leverage int) (*exchange.OrderResult, error) {
	if contracts <= 0 {
		return nil, fmt.Errorf("contracts must be positive, got %d", contracts)
	}
	return s.fill(symbol, side, contracts), nil
}

func (s *SimExchange) ClosePosition(_ context.Context, symbol string, side exchange.OrderSide, contracts int) (*exchange.OrderResult, error) {
	if contracts <= 0 {
		return nil, fmt.Errorf("contracts must be positive, got %d", contracts)
	}
	return s.fill(symbol, side, contracts), nil
}

func (s *SimExchange) fill(symbol string, side exchange.OrderSide, contracts int) *exchange.OrderResult {
	s.orderSeq++
	result := exchange.OrderResult{
		OrderID:   fmt.Sprintf("SIM-%d", s.orderSeq),
		Symbol:    symbol,
		Side:      side,
		Contracts: contracts,
		Price:     s.price,
	}
	s.OrderLog = append(s.OrderLog, result)
	return &result
}
