package backtest

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vutran1810/futures-hedge-bot/pkg/types"
)

func syntheticCandles(start float64, growth float64, n int) []types.OHLCV {
	candles := make([]types.OHLCV, n)
	price := start
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range candles {
		candles[i] = types.OHLCV{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      price,
			High:      price * 1.002,
			Low:       price * 0.998,
			Close:     price,
			Volume:    1000,
		}
		price *= 1 + growth
	}
	return candles
}

func TestNewBacktester_Validation(t *testing.T) {
	_, err := NewBacktester(Config{})
	assert.Error(t, err)

	_, err = NewBacktester(Config{Symbol: "XRPUSDT"})
	assert.Error(t, err)

	_, err = NewBacktester(DefaultConfig("XRPUSDT"))
	assert.NoError(t, err)
}

func TestRun_RequiresWarmup(t *testing.T) {
	bt, err := NewBacktester(DefaultConfig("XRPUSDT"))
	require.NoError(t, err)

	_, err = bt.Run(context.Background(), syntheticCandles(2.50, 0.005, 10))
	assert.Error(t, err)
}

func TestRun_UptrendIsProfitable(t *testing.T) {
	bt, err := NewBacktester(DefaultConfig("XRPUSDT"))
	require.NoError(t, err)

	// A steady 0.5% per candle uptrend: momentum entries ride to take profit.
	result, err := bt.Run(context.Background(), syntheticCandles(2.50, 0.005, 120))
	require.NoError(t, err)

	assert.GreaterOrEqual(t, result.Trades, 1)
	assert.GreaterOrEqual(t, result.Wins, 1)
	assert.Greater(t, result.TotalPnL, 0.0)
	assert.Greater(t, result.FinalBalance, result.InitialBalance)
	assert.Equal(t, result.Wins+result.Losses, result.Trades)
	assert.Len(t, result.EquityCurve, 120-warmupCandles)
	assert.False(t, math.IsNaN(result.MaxDrawdown))
}

func TestRun_FlatMarketStaysOut(t *testing.T) {
	bt, err := NewBacktester(DefaultConfig("XRPUSDT"))
	require.NoError(t, err)

	result, err := bt.Run(context.Background(), syntheticCandles(2.50, 0, 80))
	require.NoError(t, err)

	assert.Zero(t, result.Trades)
	assert.InDelta(t, result.InitialBalance, result.FinalBalance, 1e-9)
}

func TestRun_CancelledContext(t *testing.T) {
	bt, err := NewBacktester(DefaultConfig("XRPUSDT"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = bt.Run(ctx, syntheticCandles(2.50, 0.005, 120))
	assert.ErrorIs(t, err, context.Canceled)
}
