package risk

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvailableFunds(t *testing.T) {
	f := NewFundingStrategy(DefaultConfig())

	assert.InDelta(t, 800.0, f.AvailableFunds(1000), 1e-9)
	assert.InDelta(t, 80.0, f.AvailableFunds(100), 1e-9)
	assert.Equal(t, 0.0, f.AvailableFunds(0))
}

func TestRiskScoreWeights(t *testing.T) {
	f := NewFundingStrategy(DefaultConfig())

	// All factors at their best give the maximum score.
	assert.InDelta(t, 1.0, f.RiskScore(0, 100, 0, 100), 1e-9)

	// The documented scenario: 2% volatility, 70% win rate, no losses,
	// strength 80.
	score := f.RiskScore(0.02, 70, 0, 80)
	assert.InDelta(t, 0.825, score, 1e-9)

	// Extreme volatility saturates its component at zero.
	assert.InDelta(t, 0.70, f.RiskScore(0.50, 100, 0, 100), 1e-9)
}

func TestRiskTiers(t *testing.T) {
	f := NewFundingStrategy(DefaultConfig())

	tests := []struct {
		volatility float64
		tier       string
		multiplier float64
	}{
		{0.005, "low", 1.5},
		{0.02, "low", 1.5},
		{0.03, "medium", 1.0},
		{0.05, "medium", 1.0},
		{0.08, "high", 0.6},
		{0.50, "high", 0.6},
	}

	for _, tt := range tests {
		tier := f.RiskTier(tt.volatility)
		assert.Equal(t, tt.tier, tier.Name, "volatility %.3f", tt.volatility)
		assert.Equal(t, tt.multiplier, tier.Multiplier)
	}
}

// TestSizePosition_FavorableConditions is the reference sizing scenario:
// $1000 total balance (=$800 after reserve), 2% volatility, 70% win rate,
// no losses, strength 80, 10x at $2.50 → ~594 contracts, ~$148.50 value.
func TestSizePosition_FavorableConditions(t *testing.T) {
	f := NewFundingStrategy(DefaultConfig())

	available := f.AvailableFunds(1000)
	res, err := f.SizePosition(SizingInput{
		AvailableBalance:  available,
		Price:             2.50,
		Leverage:          10,
		Volatility:        0.02,
		WinRate:           70,
		ConsecutiveLosses: 0,
		SignalStrength:    80,
	})

	require.NoError(t, err)
	assert.Equal(t, 594, res.Contracts)
	assert.InDelta(t, 148.50, res.Value, 0.01)
	assert.InDelta(t, 18.5625, res.Percent, 0.001)
	assert.Equal(t, "low", res.Tier.Name)
}

// TestSizePosition_DefensiveFloor: hostile conditions collapse sizing onto the
// 5% floor → ~$40 position value, 160 contracts.
func TestSizePosition_DefensiveFloor(t *testing.T) {
	f := NewFundingStrategy(DefaultConfig())

	res, err := f.SizePosition(SizingInput{
		AvailableBalance:  800,
		Price:             2.50,
		Leverage:          10,
		Volatility:        0.08,
		WinRate:           30,
		ConsecutiveLosses: 2,
		SignalStrength:    55,
	})

	require.NoError(t, err)
	assert.Equal(t, 160, res.Contracts)
	assert.InDelta(t, 40.0, res.Value, 0.01)
	assert.InDelta(t, 5.0, res.Percent, 1e-9)
	assert.Equal(t, "high", res.Tier.Name)
}

// TestSizePosition_SignalMonotonicity: a stronger signal never shrinks the
// computed position percent, all else equal.
func TestSizePosition_SignalMonotonicity(t *testing.T) {
	f := NewFundingStrategy(DefaultConfig())

	prev := -1.0
	for strength := 0.0; strength <= 100; strength += 5 {
		res, err := f.SizePosition(SizingInput{
			AvailableBalance: 800,
			Price:            2.50,
			Leverage:         10,
			Volatility:       0.03,
			WinRate:          50,
			SignalStrength:   strength,
		})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.Percent, prev, "strength %.0f", strength)
		prev = res.Percent
	}
}

func TestSizePosition_OneContractPromotion(t *testing.T) {
	f := NewFundingStrategy(Config{
		ReservePercent:      20,
		BasePositionPercent: 15,
		MinPositionPercent:  5,
		MaxPositionPercent:  40,
		MinPositionValue:    1,
	})

	// 5% of $30 at 1x cannot buy a $25 contract, but the full allocation can.
	res, err := f.SizePosition(SizingInput{
		AvailableBalance:  30,
		Price:             25,
		Leverage:          1,
		Volatility:        0.08,
		WinRate:           30,
		ConsecutiveLosses: 4,
		SignalStrength:    10,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Contracts)
	assert.InDelta(t, 25.0, res.Value, 1e-9)

	// With a $10 allocation even the promotion fails.
	_, err = f.SizePosition(SizingInput{
		AvailableBalance: 10,
		Price:            25,
		Leverage:         1,
		Volatility:       0.08,
		WinRate:          30,
		SignalStrength:   10,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientFunds))
}

func TestSizePosition_MinimumValuePromotion(t *testing.T) {
	f := NewFundingStrategy(Config{
		ReservePercent:      20,
		BasePositionPercent: 15,
		MinPositionPercent:  5,
		MaxPositionPercent:  40,
		MinPositionValue:    25,
	})

	// 5% of $100 = $5 < $25 minimum; the allocation covers the minimum, so
	// the value is promoted.
	res, err := f.SizePosition(SizingInput{
		AvailableBalance:  100,
		Price:             0.50,
		Leverage:          5,
		Volatility:        0.08,
		WinRate:           20,
		ConsecutiveLosses: 2,
		SignalStrength:    30,
	})
	require.NoError(t, err)
	assert.InDelta(t, 25.0, res.Value, 1e-9)
	assert.Equal(t, 250, res.Contracts)

	// A $15 allocation cannot meet the $25 exchange minimum.
	_, err = f.SizePosition(SizingInput{
		AvailableBalance: 15,
		Price:            0.50,
		Leverage:         5,
		Volatility:       0.08,
		WinRate:          20,
		SignalStrength:   30,
	})
	assert.True(t, errors.Is(err, ErrInsufficientFunds))
}

func TestSizePosition_ExposureDamping(t *testing.T) {
	f := NewFundingStrategy(DefaultConfig())

	base, err := f.SizePosition(SizingInput{
		AvailableBalance: 800,
		Price:            2.50,
		Leverage:         10,
		Volatility:       0.03,
		WinRate:          60,
		SignalStrength:   70,
	})
	require.NoError(t, err)

	damped, err := f.SizePosition(SizingInput{
		AvailableBalance: 800,
		Price:            2.50,
		Leverage:         10,
		Volatility:       0.03,
		WinRate:          60,
		SignalStrength:   70,
		ExistingExposure: 500,
	})
	require.NoError(t, err)
	assert.Less(t, damped.Percent, base.Percent)
}

func TestAllowTrade_CircuitBreakers(t *testing.T) {
	f := NewFundingStrategy(DefaultConfig())

	// Hard breaker: 5 losses block everything, regardless of size.
	for _, value := range []float64{0.01, 10, 500} {
		err := f.AllowTrade(800, value, 5)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrCircuitBreakerOpen), "value %.2f", value)
	}

	// Soft breaker: 3-4 losses only allow the minimum percent (5% of 800 = 40).
	for _, losses := range []int{3, 4} {
		assert.NoError(t, f.AllowTrade(800, 40, losses))
		err := f.AllowTrade(800, 41, losses)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrCircuitBreakerOpen))
	}

	// Below the soft threshold everything within funds is allowed.
	assert.NoError(t, f.AllowTrade(800, 300, 2))
}

func TestAllowTrade_InsufficientFunds(t *testing.T) {
	f := NewFundingStrategy(DefaultConfig())

	err := f.AllowTrade(0, 10, 0)
	assert.True(t, errors.Is(err, ErrInsufficientFunds))

	err = f.AllowTrade(-5, 10, 0)
	assert.True(t, errors.Is(err, ErrInsufficientFunds))

	err = f.AllowTrade(100, 150, 0)
	assert.True(t, errors.Is(err, ErrInsufficientFunds))
}

func TestMaxLoss(t *testing.T) {
	f := NewFundingStrategy(DefaultConfig())

	// 100 contracts at $2.50 with 10x: $25 margin, 3% stop → $0.75 max loss.
	loss := f.MaxLoss(100, 2.50, 10, 3)
	assert.InDelta(t, 0.75, loss, 1e-9)
}
