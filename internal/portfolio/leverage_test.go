package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDynamicLeverage_Validation(t *testing.T) {
	_, err := NewDynamicLeverage(0, 5, 10)
	assert.Error(t, err)

	_, err = NewDynamicLeverage(10, 10, 5)
	assert.Error(t, err)

	// Base outside the bounds.
	_, err = NewDynamicLeverage(5, 25, 20)
	assert.Error(t, err)
	_, err = NewDynamicLeverage(5, 3, 20)
	assert.Error(t, err)

	d, err := NewDynamicLeverage(5, 11, 20)
	require.NoError(t, err)
	min, max := d.Bounds()
	assert.Equal(t, 5, min)
	assert.Equal(t, 20, max)
}

func TestConservative(t *testing.T) {
	d, err := NewDynamicLeverage(5, 11, 20)
	require.NoError(t, err)
	assert.Equal(t, 5, d.Conservative())

	d, err = NewDynamicLeverage(2, 16, 20)
	require.NoError(t, err)
	assert.Equal(t, 8, d.Conservative())
}

func TestSelectLeverage_Bounds(t *testing.T) {
	d, err := NewDynamicLeverage(5, 11, 20)
	require.NoError(t, err)

	// Best possible conditions hit the ceiling.
	assert.Equal(t, 20, d.SelectLeverage(0, 1.0, 100, 0))

	// Worst conditions sit on the floor.
	assert.Equal(t, 5, d.SelectLeverage(0.50, 0, 0, 10))

	// Everything in between stays inside the range.
	for vol := 0.0; vol <= 0.12; vol += 0.01 {
		lev := d.SelectLeverage(vol, 0.5, 55, 1)
		assert.GreaterOrEqual(t, lev, 5)
		assert.LessOrEqual(t, lev, 20)
	}
}

// Leverage must not decrease when volatility drops, confidence rises, or the
// win rate improves, all else equal.
func TestSelectLeverage_Monotonicity(t *testing.T) {
	d, err := NewDynamicLeverage(1, 11, 25)
	require.NoError(t, err)

	t.Run("volatility", func(t *testing.T) {
		prev := -1
		for vol := 0.10; vol >= 0; vol -= 0.01 {
			lev := d.SelectLeverage(vol, 0.5, 55, 0)
			assert.GreaterOrEqual(t, lev, prev)
			prev = lev
		}
	})

	t.Run("confidence", func(t *testing.T) {
		prev := -1
		for conf := 0.0; conf <= 1.0; conf += 0.1 {
			lev := d.SelectLeverage(0.03, conf, 55, 0)
			assert.GreaterOrEqual(t, lev, prev)
			prev = lev
		}
	})

	t.Run("win rate", func(t *testing.T) {
		prev := -1
		for wr := 0.0; wr <= 100; wr += 10 {
			lev := d.SelectLeverage(0.03, 0.5, wr, 0)
			assert.GreaterOrEqual(t, lev, prev)
			prev = lev
		}
	})
}

func TestSelectLeverage_LossStreakReducesLeverage(t *testing.T) {
	d, err := NewDynamicLeverage(1, 11, 25)
	require.NoError(t, err)

	clean := d.SelectLeverage(0.02, 0.7, 70, 0)
	bruised := d.SelectLeverage(0.02, 0.7, 70, 4)
	assert.Greater(t, clean, bruised)
}

func TestValidateLeverage(t *testing.T) {
	d, err := NewDynamicLeverage(5, 11, 20)
	require.NoError(t, err)

	assert.NoError(t, d.ValidateLeverage(5))
	assert.NoError(t, d.ValidateLeverage(11))
	assert.NoError(t, d.ValidateLeverage(20))
	assert.Error(t, d.ValidateLeverage(4))
	assert.Error(t, d.ValidateLeverage(21))
}

func TestRequiredMargin(t *testing.T) {
	tests := []struct {
		name           string
		positionValue  float64
		leverage       int
		expectedMargin float64
	}{
		{"10x leverage on $100 position", 100, 10, 10},
		{"50x leverage on $1000 position", 1000, 50, 20},
		{"1x leverage (spot) on $500 position", 500, 1, 500},
		{"zero leverage requires full amount", 200, 0, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expectedMargin, RequiredMargin(tt.positionValue, tt.leverage), 1e-9)
		})
	}
}

func TestMaxPositionSize(t *testing.T) {
	assert.InDelta(t, 500, MaxPositionSize(50, 10), 1e-9)
	assert.InDelta(t, 100, MaxPositionSize(100, 1), 1e-9)
	assert.Zero(t, MaxPositionSize(0, 10))
	assert.Zero(t, MaxPositionSize(-1, 10))
}

func TestLiquidationPrice(t *testing.T) {
	// 10x long from $100: 9% below entry.
	assert.InDelta(t, 91.0, LiquidationPrice(100, 10, true), 1e-9)
	// 10x short from $100: 9% above entry.
	assert.InDelta(t, 109.0, LiquidationPrice(100, 10, false), 1e-9)
	// Spot has no liquidation.
	assert.Zero(t, LiquidationPrice(100, 1, true))
}
