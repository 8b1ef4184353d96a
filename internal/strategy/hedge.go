package strategy

import (
	"fmt"
	"time"

	"github.com/vutran1810/futures-hedge-bot/pkg/types"
)

// PositionSide represents the direction of a position
type PositionSide int

const (
	SideLong PositionSide = iota
	SideShort
)

func (ps PositionSide) String() string {
	switch ps {
	case SideLong:
		return "LONG"
	case SideShort:
		return "SHORT"
	default:
		return "UNKNOWN"
	}
}

// Opposite returns the other side.
func (ps PositionSide) Opposite() PositionSide {
	if ps == SideLong {
		return SideShort
	}
	return SideLong
}

// State is the lifecycle state of one symbol's position. Flat is both the
// initial state and the state re-entered after every close; the machine
// cycles indefinitely.
type State int

const (
	StateFlat State = iota
	StateOpenLong
	StateOpenShort
	StateHedgedLong  // long primary + short hedge
	StateHedgedShort // short primary + long hedge
)

func (s State) String() string {
	switch s {
	case StateFlat:
		return "FLAT"
	case StateOpenLong:
		return "OPEN_LONG"
	case StateOpenShort:
		return "OPEN_SHORT"
	case StateHedgedLong:
		return "HEDGED_LONG"
	case StateHedgedShort:
		return "HEDGED_SHORT"
	default:
		return "UNKNOWN"
	}
}

// Position is one open position, owned exclusively by its symbol's lifecycle.
// TrailingExtreme tracks the best price seen since entry: the running high
// for a long, the running low for a short.
type Position struct {
	Side            PositionSide
	EntryPrice      float64
	Contracts       int
	Leverage        int
	StopLoss        float64
	TakeProfit      float64
	TrailingExtreme float64
	EntryTime       time.Time
}

// EntryValue is the notional value of the position at its entry price.
func (p *Position) EntryValue() float64 {
	return float64(p.Contracts) * p.EntryPrice
}

// PnL returns the position's profit at the given price.
func (p *Position) PnL(price float64) float64 {
	if p.Side == SideLong {
		return float64(p.Contracts) * (price - p.EntryPrice)
	}
	return float64(p.Contracts) * (p.EntryPrice - price)
}

// PnLPercent returns the profit as a percentage of the entry value.
func (p *Position) PnLPercent(price float64) float64 {
	entryValue := p.EntryValue()
	if entryValue == 0 {
		return 0
	}
	return p.PnL(price) / entryValue * 100
}

// ActionType is what the lifecycle wants to do this cycle.
type ActionType int

const (
	ActionNone ActionType = iota
	ActionOpen
	ActionClose
	ActionHedge
	ActionHold
)

func (a ActionType) String() string {
	switch a {
	case ActionOpen:
		return "OPEN"
	case ActionClose:
		return "CLOSE"
	case ActionHedge:
		return "HEDGE"
	case ActionHold:
		return "HOLD"
	default:
		return "NONE"
	}
}

// Suggestion is the lifecycle's proposal for the current cycle. An Open or
// Hedge suggestion still has to pass sizing and the trade-approval gate
// before anything is executed.
type Suggestion struct {
	Action ActionType
	Side   PositionSide
	Reason string
}

// The entry gate and the hedge trigger.
const (
	entrySignalStrength = 60.0

	// A primary position losing more than this percent of its entry value
	// gets an opposite-side hedge.
	hedgeTriggerPercent = 2.0
)

// Config holds the protective-exit parameters, all in percent.
type Config struct {
	StopLossPercent     float64
	TakeProfitPercent   float64
	TrailingStopPercent float64
	HedgeRatio          float64 // hedge size as a fraction of the primary, max 0.5
}

// DefaultConfig mirrors the production exit parameters: 3% stop, 12% take
// profit, 2.5% trailing stop, half-size hedges.
func DefaultConfig() Config {
	return Config{
		StopLossPercent:     3.0,
		TakeProfitPercent:   12.0,
		TrailingStopPercent: 2.5,
		HedgeRatio:          0.5,
	}
}

// HedgeStrategy is the per-symbol position lifecycle: entry on a strong
// signal, protective exits, a hedge against a losing primary, and a combined
// close. One instance per symbol; not safe for concurrent use.
type HedgeStrategy struct {
	cfg     Config
	symbol  string
	primary *Position
	hedge   *Position
}

// NewHedgeStrategy creates the lifecycle for one symbol, starting flat.
func NewHedgeStrategy(symbol string, cfg Config) *HedgeStrategy {
	if cfg.HedgeRatio <= 0 || cfg.HedgeRatio > 0.5 {
		cfg.HedgeRatio = 0.5
	}
	return &HedgeStrategy{cfg: cfg, symbol: symbol}
}

// Symbol returns the symbol this lifecycle manages.
func (h *HedgeStrategy) Symbol() string {
	return h.symbol
}

// State derives the current lifecycle state.
func (h *HedgeStrategy) State() State {
	switch {
	case h.primary == nil:
		return StateFlat
	case h.hedge == nil && h.primary.Side == SideLong:
		return StateOpenLong
	case h.hedge == nil:
		return StateOpenShort
	case h.primary.Side == SideLong:
		return StateHedgedLong
	default:
		return StateHedgedShort
	}
}

// Position returns a copy of the primary position, if any.
func (h *HedgeStrategy) Position() (Position, bool) {
	if h.primary == nil {
		return Position{}, false
	}
	return *h.primary, true
}

// Hedge returns a copy of the hedge position, if any.
func (h *HedgeStrategy) Hedge() (Position, bool) {
	if h.hedge == nil {
		return Position{}, false
	}
	return *h.hedge, true
}

// Evaluate runs one cycle of the state machine against the current price and
// signal, in fixed order: entry when flat, then protective exits, then the
// hedge trigger, otherwise hold. It updates the trailing extreme as a side
// effect but never opens or closes positions itself; the caller executes the
// suggestion and reports back through Open, OpenHedge and CloseAll.
func (h *HedgeStrategy) Evaluate(price float64, sig types.Signal) Suggestion {
	if h.primary == nil {
		return h.evaluateEntry(sig)
	}

	h.updateTrailingExtreme(price)

	if reason, triggered := h.exitTriggered(price); triggered {
		return Suggestion{Action: ActionClose, Side: h.primary.Side.Opposite(), Reason: reason}
	}

	if h.hedge == nil {
		if pct := h.primary.PnLPercent(price); pct < -hedgeTriggerPercent {
			return Suggestion{
				Action: ActionHedge,
				Side:   h.primary.Side.Opposite(),
				Reason: fmt.Sprintf("primary %s losing %.2f%%, hedging", h.primary.Side, -pct),
			}
		}
	}

	return Suggestion{Action: ActionHold, Reason: "monitoring position"}
}

func (h *HedgeStrategy) evaluateEntry(sig types.Signal) Suggestion {
	if !sig.IsActionable() || sig.Strength < entrySignalStrength {
		return Suggestion{Action: ActionNone, Reason: "no strong entry signal"}
	}
	side := SideLong
	if sig.Action == types.SignalSell {
		side = SideShort
	}
	reason := sig.Reason
	if reason == "" {
		reason = fmt.Sprintf("%s signal, strength %.0f", sig.Action, sig.Strength)
	}
	return Suggestion{Action: ActionOpen, Side: side, Reason: reason}
}

func (h *HedgeStrategy) updateTrailingExtreme(price float64) {
	if h.primary.Side == SideLong {
		if price > h.primary.TrailingExtreme {
			h.primary.TrailingExtreme = price
		}
	} else {
		if price < h.primary.TrailingExtreme {
			h.primary.TrailingExtreme = price
		}
	}
}

// exitTriggered checks the primary's protective exits: stop loss, take
// profit, then the trailing stop against the extreme.
func (h *HedgeStrategy) exitTriggered(price float64) (string, bool) {
	p := h.primary
	if p.Side == SideLong {
		if price <= p.StopLoss {
			return fmt.Sprintf("stop loss hit at %.4f (entry %.4f)", price, p.EntryPrice), true
		}
		if price >= p.TakeProfit {
			return fmt.Sprintf("take profit hit at %.4f (entry %.4f)", price, p.EntryPrice), true
		}
		retrace := (p.TrailingExtreme - price) / p.TrailingExtreme * 100
		if retrace >= h.cfg.TrailingStopPercent {
			return fmt.Sprintf("trailing stop: %.2f%% retrace from high %.4f", retrace, p.TrailingExtreme), true
		}
		return "", false
	}

	if price >= p.StopLoss {
		return fmt.Sprintf("stop loss hit at %.4f (entry %.4f)", price, p.EntryPrice), true
	}
	if price <= p.TakeProfit {
		return fmt.Sprintf("take profit hit at %.4f (entry %.4f)", price, p.EntryPrice), true
	}
	retrace := (price - p.TrailingExtreme) / p.TrailingExtreme * 100
	if retrace >= h.cfg.TrailingStopPercent {
		return fmt.Sprintf("trailing stop: %.2f%% bounce from low %.4f", retrace, p.TrailingExtreme), true
	}
	return "", false
}

// Open records a filled entry and arms the protective exits around it.
func (h *HedgeStrategy) Open(side PositionSide, entryPrice float64, contracts, leverage int) error {
	if h.primary != nil {
		return fmt.Errorf("%s: position already open", h.symbol)
	}
	if contracts < 1 {
		return fmt.Errorf("%s: contracts must be >= 1, got %d", h.symbol, contracts)
	}
	if entryPrice <= 0 {
		return fmt.Errorf("%s: invalid entry price %.4f", h.symbol, entryPrice)
	}

	sl := entryPrice * (1 - h.cfg.StopLossPercent/100)
	tp := entryPrice * (1 + h.cfg.TakeProfitPercent/100)
	if side == SideShort {
		sl = entryPrice * (1 + h.cfg.StopLossPercent/100)
		tp = entryPrice * (1 - h.cfg.TakeProfitPercent/100)
	}

	h.primary = &Position{
		Side:            side,
		EntryPrice:      entryPrice,
		Contracts:       contracts,
		Leverage:        leverage,
		StopLoss:        sl,
		TakeProfit:      tp,
		TrailingExtreme: entryPrice,
		EntryTime:       time.Now(),
	}
	return nil
}

// HedgeContracts returns the size an opposite-side hedge would get: the
// configured fraction of the primary, at least one contract.
func (h *HedgeStrategy) HedgeContracts() int {
	if h.primary == nil {
		return 0
	}
	contracts := int(float64(h.primary.Contracts) * h.cfg.HedgeRatio)
	if contracts < 1 {
		contracts = 1
	}
	return contracts
}

// OpenHedge records a filled hedge against the primary. The hedge has no
// exits of its own; it lives and dies with the primary.
func (h *HedgeStrategy) OpenHedge(entryPrice float64, contracts, leverage int) error {
	if h.primary == nil {
		return fmt.Errorf("%s: no primary position to hedge", h.symbol)
	}
	if h.hedge != nil {
		return fmt.Errorf("%s: hedge already open", h.symbol)
	}
	if contracts < 1 || contracts > h.primary.Contracts {
		return fmt.Errorf("%s: hedge size %d out of range (primary %d)", h.symbol, contracts, h.primary.Contracts)
	}

	h.hedge = &Position{
		Side:            h.primary.Side.Opposite(),
		EntryPrice:      entryPrice,
		Contracts:       contracts,
		Leverage:        leverage,
		TrailingExtreme: entryPrice,
		EntryTime:       time.Now(),
	}
	return nil
}

// CloseAll closes the primary and any hedge at the given price and returns
// the combined realized P&L as one settlement. The lifecycle returns to flat.
func (h *HedgeStrategy) CloseAll(price float64) (float64, error) {
	if h.primary == nil {
		return 0, fmt.Errorf("%s: no position to close", h.symbol)
	}
	realized := h.primary.PnL(price)
	if h.hedge != nil {
		realized += h.hedge.PnL(price)
	}
	h.primary = nil
	h.hedge = nil
	return realized, nil
}

// TotalContracts returns the combined open contract count, primary plus hedge.
func (h *HedgeStrategy) TotalContracts() int {
	total := 0
	if h.primary != nil {
		total += h.primary.Contracts
	}
	if h.hedge != nil {
		total += h.hedge.Contracts
	}
	return total
}

// UnrealizedPnL returns the combined open P&L at the given price.
func (h *HedgeStrategy) UnrealizedPnL(price float64) float64 {
	total := 0.0
	if h.primary != nil {
		total += h.primary.PnL(price)
	}
	if h.hedge != nil {
		total += h.hedge.PnL(price)
	}
	return total
}
