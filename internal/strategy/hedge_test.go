package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vutran1810/futures-hedge-bot/pkg/types"
)

func buySignal(strength float64) types.Signal {
	return types.Signal{Action: types.SignalBuy, Strength: strength}
}

func sellSignal(strength float64) types.Signal {
	return types.Signal{Action: types.SignalSell, Strength: strength}
}

func holdSignal() types.Signal {
	return types.Signal{Action: types.SignalHold}
}

func TestEntrySuggestions(t *testing.T) {
	tests := []struct {
		name   string
		signal types.Signal
		action ActionType
		side   PositionSide
	}{
		{"strong buy opens long", buySignal(75), ActionOpen, SideLong},
		{"strong sell opens short", sellSignal(80), ActionOpen, SideShort},
		{"threshold strength opens", buySignal(60), ActionOpen, SideLong},
		{"weak buy is ignored", buySignal(59), ActionNone, SideLong},
		{"hold is ignored", holdSignal(), ActionNone, SideLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHedgeStrategy("XRPUSDT", DefaultConfig())
			s := h.Evaluate(2.50, tt.signal)
			assert.Equal(t, tt.action, s.Action)
			if tt.action == ActionOpen {
				assert.Equal(t, tt.side, s.Side)
			}
		})
	}
}

func TestOpen_ArmsProtectiveExits(t *testing.T) {
	h := NewHedgeStrategy("XRPUSDT", DefaultConfig())
	require.NoError(t, h.Open(SideLong, 2.50, 100, 10))

	assert.Equal(t, StateOpenLong, h.State())
	pos, ok := h.Position()
	require.True(t, ok)
	assert.InDelta(t, 2.50*0.97, pos.StopLoss, 1e-9)
	assert.InDelta(t, 2.50*1.12, pos.TakeProfit, 1e-9)
	assert.InDelta(t, 2.50, pos.TrailingExtreme, 1e-9)

	// A second open is rejected.
	assert.Error(t, h.Open(SideLong, 2.60, 50, 10))
}

func TestOpen_ShortMirrorsExits(t *testing.T) {
	h := NewHedgeStrategy("XRPUSDT", DefaultConfig())
	require.NoError(t, h.Open(SideShort, 2.50, 100, 10))

	assert.Equal(t, StateOpenShort, h.State())
	pos, _ := h.Position()
	assert.InDelta(t, 2.50*1.03, pos.StopLoss, 1e-9)
	assert.InDelta(t, 2.50*0.88, pos.TakeProfit, 1e-9)
}

func TestLongExits(t *testing.T) {
	tests := []struct {
		name   string
		price  float64
		action ActionType
	}{
		{"stop loss", 2.40, ActionClose},   // below 2.425
		{"take profit", 2.81, ActionClose}, // above 2.80
		{"quiet hold", 2.52, ActionHold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHedgeStrategy("XRPUSDT", DefaultConfig())
			require.NoError(t, h.Open(SideLong, 2.50, 100, 10))
			s := h.Evaluate(tt.price, holdSignal())
			assert.Equal(t, tt.action, s.Action)
			if tt.action == ActionClose {
				assert.Equal(t, SideShort, s.Side)
			}
		})
	}
}

func TestTrailingStop_Long(t *testing.T) {
	h := NewHedgeStrategy("XRPUSDT", DefaultConfig())
	require.NoError(t, h.Open(SideLong, 2.50, 100, 10))

	// Price runs up; the trailing extreme follows.
	s := h.Evaluate(2.70, holdSignal())
	assert.Equal(t, ActionHold, s.Action)
	pos, _ := h.Position()
	assert.InDelta(t, 2.70, pos.TrailingExtreme, 1e-9)

	// A 2% dip from the high is tolerated (threshold 2.5%).
	s = h.Evaluate(2.70*0.98, holdSignal())
	assert.Equal(t, ActionHold, s.Action)

	// A 3% retrace trips the trailing stop.
	s = h.Evaluate(2.70*0.97, holdSignal())
	assert.Equal(t, ActionClose, s.Action)
}

func TestTrailingStop_Short(t *testing.T) {
	h := NewHedgeStrategy("XRPUSDT", DefaultConfig())
	require.NoError(t, h.Open(SideShort, 2.50, 100, 10))

	// Price falls; the extreme tracks the low.
	s := h.Evaluate(2.30, holdSignal())
	assert.Equal(t, ActionHold, s.Action)
	pos, _ := h.Position()
	assert.InDelta(t, 2.30, pos.TrailingExtreme, 1e-9)

	// A 3% bounce off the low closes the short.
	s = h.Evaluate(2.30*1.03, holdSignal())
	assert.Equal(t, ActionClose, s.Action)
	assert.Equal(t, SideLong, s.Side)
}

func TestHedgeTrigger(t *testing.T) {
	h := NewHedgeStrategy("XRPUSDT", DefaultConfig())
	require.NoError(t, h.Open(SideLong, 2.50, 100, 10))

	// 1% down: hold.
	s := h.Evaluate(2.475, holdSignal())
	assert.Equal(t, ActionHold, s.Action)

	// 2.4% down: still above the stop (3%), loss beyond 2% → hedge short.
	s = h.Evaluate(2.44, holdSignal())
	assert.Equal(t, ActionHedge, s.Action)
	assert.Equal(t, SideShort, s.Side)

	// Execute the hedge at half size.
	contracts := h.HedgeContracts()
	assert.Equal(t, 50, contracts)
	require.NoError(t, h.OpenHedge(2.44, contracts, 8))
	assert.Equal(t, StateHedgedLong, h.State())

	// No second hedge while one is open.
	s = h.Evaluate(2.44, holdSignal())
	assert.Equal(t, ActionHold, s.Action)
}

func TestHedgedClose_CombinedSettlement(t *testing.T) {
	h := NewHedgeStrategy("XRPUSDT", DefaultConfig())
	require.NoError(t, h.Open(SideLong, 2.50, 100, 10))
	require.NoError(t, h.OpenHedge(2.44, 50, 8))

	// Price collapses through the stop; primary exit closes both legs.
	s := h.Evaluate(2.40, holdSignal())
	require.Equal(t, ActionClose, s.Action)

	realized, err := h.CloseAll(2.40)
	require.NoError(t, err)

	// Primary: 100×(2.40−2.50) = −10. Hedge: 50×(2.44−2.40) = +2.
	assert.InDelta(t, -8.0, realized, 1e-9)
	assert.Equal(t, StateFlat, h.State())
	_, hasPos := h.Position()
	assert.False(t, hasPos)
}

func TestHedgeSizing_Bounds(t *testing.T) {
	h := NewHedgeStrategy("XRPUSDT", DefaultConfig())
	require.NoError(t, h.Open(SideLong, 2.50, 1, 10))

	// A one-contract primary still hedges with one contract.
	assert.Equal(t, 1, h.HedgeContracts())

	// But a hedge larger than the primary is rejected.
	assert.Error(t, h.OpenHedge(2.40, 2, 10))
}

func TestCloseAll_RequiresPosition(t *testing.T) {
	h := NewHedgeStrategy("XRPUSDT", DefaultConfig())
	_, err := h.CloseAll(2.50)
	assert.Error(t, err)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "FLAT", StateFlat.String())
	assert.Equal(t, "OPEN_LONG", StateOpenLong.String())
	assert.Equal(t, "HEDGED_SHORT", StateHedgedShort.String())
}

func TestUnrealizedPnL(t *testing.T) {
	h := NewHedgeStrategy("XRPUSDT", DefaultConfig())
	require.NoError(t, h.Open(SideShort, 3.00, 200, 5))

	// Short gains as price falls: 200×(3.00−2.85) = 30.
	assert.InDelta(t, 30.0, h.UnrealizedPnL(2.85), 1e-9)
	assert.Equal(t, 200, h.TotalContracts())
}
