package risk

import (
	"errors"
	"fmt"
	"math"
)

// Trade gate errors. Both are recoverable: the affected symbol is skipped for
// the current cycle and the scheduler keeps running.
var (
	// ErrInsufficientFunds means the allocation cannot cover the proposed
	// position (or cannot cover even one contract).
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrCircuitBreakerOpen means the consecutive-loss breaker blocked the
	// trade. The breaker clears when a winning trade resets the loss counter,
	// or through an explicit operator reset on the ledger.
	ErrCircuitBreakerOpen = errors.New("circuit breaker open")
)

const (
	// Loss counts at which the breakers engage. At softBreakerLosses only the
	// minimum position percent is allowed; at hardBreakerLosses all trading
	// on the symbol is blocked.
	softBreakerLosses = 3
	hardBreakerLosses = 5

	// Volatility above 10% saturates the volatility sub-score at zero.
	maxVolatility = 0.10
)

// Tier maps a volatility band to a position-size multiplier.
type Tier struct {
	Name          string
	VolatilityMax float64
	Multiplier    float64
}

// Config holds the funding strategy parameters, all percentages in [0,100].
type Config struct {
	ReservePercent      float64 // balance fraction never allocated or spent
	BasePositionPercent float64 // starting point for risk-scaled sizing
	MinPositionPercent  float64 // floor for a single position
	MaxPositionPercent  float64 // cap for a single position
	MinPositionValue    float64 // exchange minimum order value, quote currency
}

// DefaultConfig mirrors the production defaults: 20% reserve, 15% base
// position scaled into [5%, 40%].
func DefaultConfig() Config {
	return Config{
		ReservePercent:      20.0,
		BasePositionPercent: 15.0,
		MinPositionPercent:  5.0,
		MaxPositionPercent:  40.0,
		MinPositionValue:    10.0,
	}
}

// FundingStrategy converts account state, market volatility and trade history
// into a contract quantity and an allow/deny verdict. It holds no mutable
// trade state: every call takes the statistics it needs as arguments.
type FundingStrategy struct {
	cfg   Config
	tiers []Tier
}

// NewFundingStrategy creates a funding strategy with the default risk tiers:
// low volatility (≤2%) sizes up 1.5x, medium (≤5%) is neutral, high cuts to 0.6x.
func NewFundingStrategy(cfg Config) *FundingStrategy {
	return &FundingStrategy{
		cfg: cfg,
		tiers: []Tier{
			{Name: "low", VolatilityMax: 0.02, Multiplier: 1.5},
			{Name: "medium", VolatilityMax: 0.05, Multiplier: 1.0},
			{Name: "high", VolatilityMax: math.Inf(1), Multiplier: 0.6},
		},
	}
}

// Config returns the strategy configuration.
func (f *FundingStrategy) Config() Config {
	return f.cfg
}

// AvailableFunds returns the tradable part of the balance after the reserve.
func (f *FundingStrategy) AvailableFunds(totalBalance float64) float64 {
	reserve := totalBalance * (f.cfg.ReservePercent / 100)
	return math.Max(0, totalBalance-reserve)
}

// RiskScore blends four normalized factors into [0,1], where 1 is lowest
// risk: volatility (30%), win rate (25%), consecutive losses (25%) and signal
// strength (20%).
func (f *FundingStrategy) RiskScore(volatility, winRate float64, consecutiveLosses int, signalStrength float64) float64 {
	volatilityScore := math.Max(0, 1-volatility/maxVolatility)
	winRateScore := winRate / 100
	lossScore := math.Max(0, 1-float64(consecutiveLosses)*0.20)
	signalScore := signalStrength / 100

	score := 0.30*volatilityScore + 0.25*winRateScore + 0.25*lossScore + 0.20*signalScore
	return clamp01(score)
}

// RiskTier returns the tier whose volatility band contains the given value.
func (f *FundingStrategy) RiskTier(volatility float64) Tier {
	for _, tier := range f.tiers {
		if volatility <= tier.VolatilityMax {
			return tier
		}
	}
	return f.tiers[len(f.tiers)-1]
}

// SizingInput carries everything SizePosition needs for one symbol.
// AvailableBalance is the symbol's post-reserve allocation: the reserve has
// already been excluded by the allocation ledger.
type SizingInput struct {
	AvailableBalance  float64
	Price             float64
	Leverage          int
	Volatility        float64
	WinRate           float64 // 0-100
	ConsecutiveLosses int
	SignalStrength    float64 // 0-100
	ExistingExposure  float64 // value of positions already open across symbols
}

// SizingResult is the sized outcome of a SizePosition call. It is only
// meaningful when SizePosition returned a nil error; a rejection is reported
// as an error so callers cannot mistake "zero contracts" for success.
type SizingResult struct {
	Contracts int
	Value     float64 // margin value in quote currency, before leverage
	Percent   float64 // of the available balance
	Tier      Tier
	Score     float64
}

// SizePosition computes the contract quantity for one entry.
//
// The sizing percent is base × risk score × tier multiplier, clamped into
// [min, max]. The resulting value is promoted to the configured exchange
// minimum when the allocation can cover it, and the contract count is
// promoted to 1 when the full allocation could buy at least one contract.
// Anything below those floors is rejected with ErrInsufficientFunds.
func (f *FundingStrategy) SizePosition(in SizingInput) (SizingResult, error) {
	if in.Price <= 0 {
		return SizingResult{}, fmt.Errorf("invalid price %.4f", in.Price)
	}
	if in.Leverage < 1 {
		return SizingResult{}, fmt.Errorf("invalid leverage %d", in.Leverage)
	}
	if in.AvailableBalance <= 0 {
		return SizingResult{}, fmt.Errorf("%w: no allocation available", ErrInsufficientFunds)
	}

	score := f.RiskScore(in.Volatility, in.WinRate, in.ConsecutiveLosses, in.SignalStrength)
	tier := f.RiskTier(in.Volatility)

	percent := f.cfg.BasePositionPercent * score * tier.Multiplier
	percent = math.Max(f.cfg.MinPositionPercent, math.Min(f.cfg.MaxPositionPercent, percent))

	// Concentration damping: with half the book already deployed, new entries
	// shrink by 30%.
	if in.ExistingExposure > 0 && in.AvailableBalance > 0 {
		if in.ExistingExposure/in.AvailableBalance > 0.5 {
			percent *= 0.7
		}
	}

	value := in.AvailableBalance * (percent / 100)

	// Exchange minimum order value. Promote when affordable, reject otherwise.
	if value < f.cfg.MinPositionValue {
		if in.AvailableBalance >= f.cfg.MinPositionValue {
			value = f.cfg.MinPositionValue
			percent = value / in.AvailableBalance * 100
		} else {
			return SizingResult{}, fmt.Errorf("%w: position value %.2f below exchange minimum %.2f",
				ErrInsufficientFunds, value, f.cfg.MinPositionValue)
		}
	}

	contracts := int(value * float64(in.Leverage) / in.Price)
	if contracts < 1 {
		// The scaled value cannot buy a contract; the full allocation might.
		if in.AvailableBalance*float64(in.Leverage)/in.Price >= 1 {
			contracts = 1
			value = in.Price / float64(in.Leverage)
			percent = value / in.AvailableBalance * 100
		} else {
			return SizingResult{}, fmt.Errorf("%w: allocation %.2f cannot cover one contract at %.4f (%dx)",
				ErrInsufficientFunds, in.AvailableBalance, in.Price, in.Leverage)
		}
	}

	return SizingResult{
		Contracts: contracts,
		Value:     value,
		Percent:   percent,
		Tier:      tier,
		Score:     score,
	}, nil
}

// AllowTrade is the fail-closed approval gate, checked after sizing:
//
//   - no funds left after the reserve → ErrInsufficientFunds
//   - position larger than the available funds → ErrInsufficientFunds
//   - 5+ consecutive losses → hard breaker, all trading blocked
//   - 3-4 consecutive losses → soft breaker, only the minimum percent allowed
//
// A nil return means the trade may proceed.
func (f *FundingStrategy) AllowTrade(availableFunds, positionValue float64, consecutiveLosses int) error {
	if availableFunds <= 0 {
		return fmt.Errorf("%w: no funds after reserve (%.2f)", ErrInsufficientFunds, availableFunds)
	}

	if positionValue > availableFunds {
		return fmt.Errorf("%w: position %.2f exceeds available funds %.2f",
			ErrInsufficientFunds, positionValue, availableFunds)
	}

	if consecutiveLosses >= hardBreakerLosses {
		return fmt.Errorf("%w: %d consecutive losses, trading suspended",
			ErrCircuitBreakerOpen, consecutiveLosses)
	}

	if consecutiveLosses >= softBreakerLosses {
		maxValue := availableFunds * (f.cfg.MinPositionPercent / 100)
		if positionValue > maxValue+1e-9 {
			return fmt.Errorf("%w: after %d losses only minimum position size allowed (%.2f > %.2f)",
				ErrCircuitBreakerOpen, consecutiveLosses, positionValue, maxValue)
		}
	}

	return nil
}

// BreakerState reports the circuit breaker stage for a loss streak:
// 0 closed, 1 soft (minimum size only), 2 hard (trading blocked).
func BreakerState(consecutiveLosses int) int {
	switch {
	case consecutiveLosses >= hardBreakerLosses:
		return 2
	case consecutiveLosses >= softBreakerLosses:
		return 1
	default:
		return 0
	}
}

// MaxLoss estimates the worst-case loss for a position that exits at its
// stop: margin × stop-loss percent.
func (f *FundingStrategy) MaxLoss(contracts int, entryPrice float64, leverage int, stopLossPercent float64) float64 {
	if leverage < 1 {
		leverage = 1
	}
	positionValue := float64(contracts) * entryPrice
	margin := positionValue / float64(leverage)
	return margin * (stopLossPercent / 100)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
