package strategy

import (
	"context"
	"math"
	"time"

	"github.com/vutran1810/futures-hedge-bot/pkg/types"
)

const (
	shortWindow = 5
	longWindow  = 20
)

// CandleSource supplies recent candles for a symbol, oldest first.
type CandleSource interface {
	Klines(ctx context.Context, symbol string, limit int) ([]types.OHLCV, error)
}

// MomentumSignal derives entry signals from a moving-average crossover with
// rate-of-change confirmation. Strength grows with the separation between the
// averages; confidence with the consistency of recent closes.
type MomentumSignal struct {
	candles CandleSource
}

// NewMomentumSignal creates a momentum signal source.
func NewMomentumSignal(candles CandleSource) *MomentumSignal {
	return &MomentumSignal{candles: candles}
}

// Generate evaluates the symbol's recent candles into a signal. A hold
// signal with zero strength comes back when there is not enough history.
func (m *MomentumSignal) Generate(ctx context.Context, symbol string) (types.Signal, error) {
	candles, err := m.candles.Klines(ctx, symbol, longWindow+1)
	if err != nil {
		return types.Signal{}, err
	}
	return m.evaluate(candles), nil
}

func (m *MomentumSignal) evaluate(candles []types.OHLCV) types.Signal {
	sig := types.Signal{Action: types.SignalHold, Timestamp: time.Now()}
	if len(candles) < longWindow {
		sig.Reason = "not enough history"
		return sig
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	shortMA := average(closes[len(closes)-shortWindow:])
	longMA := average(closes[len(closes)-longWindow:])
	if longMA == 0 {
		sig.Reason = "degenerate price history"
		return sig
	}

	// Separation between the averages as a fraction of the long average.
	separation := (shortMA - longMA) / longMA

	// Fraction of recent closes agreeing with the crossover direction.
	agree := 0
	recent := closes[len(closes)-shortWindow:]
	for i := 1; i < len(recent); i++ {
		if (separation > 0 && recent[i] >= recent[i-1]) ||
			(separation < 0 && recent[i] <= recent[i-1]) {
			agree++
		}
	}
	confidence := float64(agree) / float64(shortWindow-1)

	// 1% separation maps to full strength.
	strength := math.Min(100, math.Abs(separation)/0.01*100)

	switch {
	case separation > 0:
		sig.Action = types.SignalBuy
		sig.Reason = "short average above long average"
	case separation < 0:
		sig.Action = types.SignalSell
		sig.Reason = "short average below long average"
	default:
		sig.Reason = "averages flat"
		return sig
	}

	sig.Strength = strength
	sig.Confidence = confidence
	return sig
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
