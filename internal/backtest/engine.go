package backtest

import (
	"context"
	"fmt"
	"math"

	"github.com/vutran1810/futures-hedge-bot/internal/bot"
	"github.com/vutran1810/futures-hedge-bot/internal/journal"
	"github.com/vutran1810/futures-hedge-bot/internal/portfolio"
	"github.com/vutran1810/futures-hedge-bot/internal/risk"
	"github.com/vutran1810/futures-hedge-bot/internal/strategy"
	"github.com/vutran1810/futures-hedge-bot/pkg/types"
)

const (
	warmupCandles  = 20
	volatilityBars = 24
)

// Config holds the parameters of one backtest run.
type Config struct {
	Symbol          string
	InitialBalance  float64
	ReserveFraction float64
	Risk            risk.Config
	Exit            strategy.Config
	MinLeverage     int
	BaseLeverage    int
	MaxLeverage     int
	Journal         journal.Journal
}

// DefaultConfig runs with the production risk and exit parameters.
func DefaultConfig(symbol string) Config {
	return Config{
		Symbol:          symbol,
		InitialBalance:  1000,
		ReserveFraction: 0.20,
		Risk:            risk.DefaultConfig(),
		Exit:            strategy.DefaultConfig(),
		MinLeverage:     5,
		BaseLeverage:    11,
		MaxLeverage:     20,
	}
}

// replaySource serves the candles seen so far as the signal history.
type replaySource struct {
	window []types.OHLCV
}

func (r *replaySource) Klines(_ context.Context, _ string, limit int) ([]types.OHLCV, error) {
	if limit > len(r.window) {
		limit = len(r.window)
	}
	return r.window[len(r.window)-limit:], nil
}

// Backtester replays historical candles through the full trading engine:
// the same sizing, allocation, leverage and lifecycle code that runs live,
// against a simulated exchange that fills at the close.
type Backtester struct {
	cfg Config
}

// NewBacktester creates a backtester.
func NewBacktester(cfg Config) (*Backtester, error) {
	if cfg.Symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if cfg.InitialBalance <= 0 {
		return nil, fmt.Errorf("initial balance must be positive, got %.2f", cfg.InitialBalance)
	}
	return &Backtester{cfg: cfg}, nil
}

// Run replays the candles and returns the run summary. Settled P&L
// compounds: the ledger re-syncs to the new balance after every close.
func (b *Backtester) Run(ctx context.Context, candles []types.OHLCV) (Result, error) {
	if len(candles) <= warmupCandles {
		return Result{}, fmt.Errorf("need more than %d candles, got %d", warmupCandles, len(candles))
	}

	ledger, err := portfolio.NewLedger(b.cfg.InitialBalance, b.cfg.ReserveFraction,
		b.cfg.Risk.MinPositionValue, portfolio.StrategyEqual, []string{b.cfg.Symbol})
	if err != nil {
		return Result{}, err
	}
	leverage, err := portfolio.NewDynamicLeverage(b.cfg.MinLeverage, b.cfg.BaseLeverage, b.cfg.MaxLeverage)
	if err != nil {
		return Result{}, err
	}

	sim := NewSimExchange()
	engine, err := bot.NewEngine(bot.Params{
		Funding:  risk.NewFundingStrategy(b.cfg.Risk),
		Ledger:   ledger,
		Leverage: leverage,
		Exec:     sim,
		Journal:  b.cfg.Journal,
		ExitCfg:  b.cfg.Exit,
	})
	if err != nil {
		return Result{}, err
	}

	replay := &replaySource{}
	signals := strategy.NewMomentumSignal(replay)

	result := Result{
		Symbol:         b.cfg.Symbol,
		Candles:        len(candles),
		InitialBalance: b.cfg.InitialBalance,
	}
	balance := b.cfg.InitialBalance
	var grossProfit, grossLoss float64

	for i := warmupCandles; i < len(candles); i++ {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		default:
		}

		candle := candles[i]
		sim.SetPrice(candle.Close)
		replay.window = candles[:i+1]

		sig, err := signals.Generate(ctx, b.cfg.Symbol)
		if err != nil {
			return Result{}, err
		}

		snap := types.MarketSnapshot{
			Symbol:     b.cfg.Symbol,
			Price:      candle.Close,
			Volatility: trailingVolatility(candles[:i+1]),
			Timestamp:  candle.Timestamp,
		}

		decision, err := engine.EvaluateCycle(ctx, snap, sig)
		if err != nil {
			return Result{}, fmt.Errorf("candle %d: %w", i, err)
		}

		if decision.Action == strategy.ActionClose {
			balance += decision.PnL
			result.Trades++
			result.TotalPnL += decision.PnL
			if decision.PnL > 0 {
				result.Wins++
				grossProfit += decision.PnL
			} else {
				result.Losses++
				grossLoss += -decision.PnL
			}
			if balance < 0 {
				balance = 0
			}
			if err := engine.SyncBalance(balance); err != nil {
				return Result{}, err
			}
		}

		result.EquityCurve = append(result.EquityCurve,
			balance+engine.UnrealizedPnL(b.cfg.Symbol, candle.Close))
	}

	result.FinalBalance = balance
	result.computeMetrics(grossProfit, grossLoss)
	return result, nil
}

// trailingVolatility is the standard deviation of the last close-to-close
// returns, capped at the volatility window.
func trailingVolatility(candles []types.OHLCV) float64 {
	start := len(candles) - volatilityBars - 1
	if start < 0 {
		start = 0
	}
	window := candles[start:]

	returns := make([]float64, 0, len(window)-1)
	for i := 1; i < len(window); i++ {
		if window[i-1].Close == 0 {
			continue
		}
		returns = append(returns, (window[i].Close-window[i-1].Close)/window[i-1].Close)
	}
	if len(returns) == 0 {
		return 0
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))

	return math.Sqrt(variance)
}
