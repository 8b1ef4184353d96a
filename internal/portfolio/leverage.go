package portfolio

import (
	"fmt"
	"math"
)

// Leverage factor weights. The three lenses are deliberate tunables, not
// load-bearing constants: volatility dominates, signal confidence and recent
// performance split the rest.
const (
	weightVolatility  = 0.4
	weightCondition   = 0.3
	weightPerformance = 0.3

	// Each consecutive loss shaves 15% off the performance factor.
	lossPenaltyStep = 0.15
)

// DynamicLeverage selects a leverage value bounded by configured limits,
// adapting to volatility, signal confidence and recent performance.
type DynamicLeverage struct {
	minLeverage  int
	baseLeverage int
	maxLeverage  int
}

// NewDynamicLeverage creates a leverage selector. The base value anchors the
// conservative fallback; selection itself interpolates between the bounds.
func NewDynamicLeverage(minLev, baseLev, maxLev int) (*DynamicLeverage, error) {
	if minLev < 1 {
		return nil, fmt.Errorf("min leverage must be >= 1, got %d", minLev)
	}
	if maxLev < minLev {
		return nil, fmt.Errorf("max leverage %d below min leverage %d", maxLev, minLev)
	}
	if baseLev < minLev || baseLev > maxLev {
		return nil, fmt.Errorf("base leverage %d outside [%d, %d]", baseLev, minLev, maxLev)
	}
	return &DynamicLeverage{minLeverage: minLev, baseLeverage: baseLev, maxLeverage: maxLev}, nil
}

// Bounds returns the configured leverage range.
func (d *DynamicLeverage) Bounds() (min, max int) {
	return d.minLeverage, d.maxLeverage
}

// SelectLeverage interpolates between the configured bounds using a composite
// of three factors in [0,1]:
//
//   - volatility factor: inverse of normalized volatility (calm market → high)
//   - condition factor: proportional to signal confidence
//   - performance factor: win rate penalized by consecutive losses
//
// The result is monotonic: leverage never decreases when volatility drops,
// confidence rises or the win rate improves, all else equal.
func (d *DynamicLeverage) SelectLeverage(volatility, confidence, winRate float64, consecutiveLosses int) int {
	volatilityFactor := clampUnit(1 - volatility/0.10)
	conditionFactor := clampUnit(confidence)
	performanceFactor := clampUnit(winRate/100 - float64(consecutiveLosses)*lossPenaltyStep)

	composite := weightVolatility*volatilityFactor +
		weightCondition*conditionFactor +
		weightPerformance*performanceFactor

	leverage := d.minLeverage + int(math.Round(composite*float64(d.maxLeverage-d.minLeverage)))
	return d.Clamp(leverage)
}

// Conservative returns the leverage used when market conditions cannot be
// assessed: half the base value, floored at the minimum.
func (d *DynamicLeverage) Conservative() int {
	return d.Clamp(d.baseLeverage / 2)
}

// Clamp forces a leverage value into the configured range.
func (d *DynamicLeverage) Clamp(leverage int) int {
	if leverage < d.minLeverage {
		return d.minLeverage
	}
	if leverage > d.maxLeverage {
		return d.maxLeverage
	}
	return leverage
}

// ValidateLeverage checks a leverage value against the configured bounds.
func (d *DynamicLeverage) ValidateLeverage(leverage int) error {
	if leverage < d.minLeverage {
		return fmt.Errorf("leverage %d is below minimum allowed %d", leverage, d.minLeverage)
	}
	if leverage > d.maxLeverage {
		return fmt.Errorf("leverage %d exceeds maximum allowed %d", leverage, d.maxLeverage)
	}
	return nil
}

// RequiredMargin calculates the margin a position needs at a given leverage.
// Formula: Required Margin = Position Value / Leverage
func RequiredMargin(positionValue float64, leverage int) float64 {
	if leverage < 1 {
		return positionValue
	}
	return positionValue / float64(leverage)
}

// MaxPositionSize calculates the largest position a margin amount supports.
// Formula: Max Position = Available Margin × Leverage
func MaxPositionSize(availableMargin float64, leverage int) float64 {
	if availableMargin <= 0 || leverage < 1 {
		return 0
	}
	return availableMargin * float64(leverage)
}

// LiquidationPrice approximates the liquidation level for a leveraged
// position. The 0.9 factor leaves room for fees.
func LiquidationPrice(entryPrice float64, leverage int, isLong bool) float64 {
	if leverage <= 1 {
		return 0
	}
	liquidationFactor := 1.0 / float64(leverage) * 0.9
	if isLong {
		return entryPrice * (1.0 - liquidationFactor)
	}
	return entryPrice * (1.0 + liquidationFactor)
}

func clampUnit(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
