package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"

	boterrors "github.com/vutran1810/futures-hedge-bot/internal/errors"
	"github.com/vutran1810/futures-hedge-bot/internal/exchange"
	"github.com/vutran1810/futures-hedge-bot/internal/journal"
	"github.com/vutran1810/futures-hedge-bot/internal/logger"
	"github.com/vutran1810/futures-hedge-bot/internal/monitoring"
	"github.com/vutran1810/futures-hedge-bot/internal/notifications"
	"github.com/vutran1810/futures-hedge-bot/internal/portfolio"
	"github.com/vutran1810/futures-hedge-bot/internal/risk"
	"github.com/vutran1810/futures-hedge-bot/internal/strategy"
	"github.com/vutran1810/futures-hedge-bot/pkg/types"
)

// Decision is the outcome of one symbol's evaluation cycle.
type Decision struct {
	Symbol    string
	Action    strategy.ActionType
	Side      strategy.PositionSide
	Contracts int
	Leverage  int
	Price     float64
	PnL       float64
	Reason    string

	// Entry risk figures, set on ActionOpen.
	RequiredMargin   float64
	LiquidationPrice float64
	MaxLoss          float64
}

// Params wires the engine's collaborators.
type Params struct {
	Funding  *risk.FundingStrategy
	Ledger   *portfolio.Ledger
	Leverage *portfolio.DynamicLeverage
	Exec     exchange.ExecutionPort
	Journal  journal.Journal
	Notifier notifications.Notifier
	Log      *logger.Logger
	ExitCfg  strategy.Config
}

// Engine orchestrates one evaluation cycle per symbol: lifecycle first (exits
// and hedges of an open position), then the entry path of leverage selection,
// allocation (with a signal boost when underfunded), sizing and the approval
// gate. All trading state mutations happen on the cycle goroutine; the engine
// serializes cycles with its own mutex.
type Engine struct {
	mu         sync.Mutex
	funding    *risk.FundingStrategy
	ledger     *portfolio.Ledger
	leverage   *portfolio.DynamicLeverage
	exec       exchange.ExecutionPort
	journal    journal.Journal
	notifier   notifications.Notifier
	log        *logger.Logger
	exitCfg    strategy.Config
	lifecycles map[string]*strategy.HedgeStrategy
}

// NewEngine builds an engine with one position lifecycle per ledger symbol.
func NewEngine(p Params) (*Engine, error) {
	if p.Funding == nil || p.Ledger == nil || p.Leverage == nil || p.Exec == nil {
		return nil, errors.New("funding, ledger, leverage and exec are required")
	}
	if p.Journal == nil {
		p.Journal = journal.Nop{}
	}
	if p.Notifier == nil {
		p.Notifier = notifications.NopNotifier{}
	}

	lifecycles := make(map[string]*strategy.HedgeStrategy)
	for _, sym := range p.Ledger.Symbols() {
		lifecycles[sym] = strategy.NewHedgeStrategy(sym, p.ExitCfg)
	}

	return &Engine{
		funding:    p.Funding,
		ledger:     p.Ledger,
		leverage:   p.Leverage,
		exec:       p.Exec,
		journal:    p.Journal,
		notifier:   p.Notifier,
		log:        p.Log,
		exitCfg:    p.ExitCfg,
		lifecycles: lifecycles,
	}, nil
}

// EvaluateCycle runs one cycle for a symbol. Recoverable conditions (not
// enough funds, a tripped breaker, exhausted redistribution) come back as a
// no-trade decision with a nil error; only validation and exchange failures
// return an error.
func (e *Engine) EvaluateCycle(ctx context.Context, snap types.MarketSnapshot, sig types.Signal) (Decision, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	lifecycle, ok := e.lifecycles[snap.Symbol]
	if !ok {
		return Decision{}, boterrors.NewBotError(boterrors.ErrorCategoryValidation, "engine", "evaluate",
			fmt.Sprintf("unknown symbol %q", snap.Symbol))
	}

	monitoring.UpdatePrice(snap.Symbol, snap.Price)

	suggestion := lifecycle.Evaluate(snap.Price, sig)
	switch suggestion.Action {
	case strategy.ActionClose:
		return e.closePosition(ctx, lifecycle, snap, suggestion)
	case strategy.ActionHedge:
		return e.openHedge(ctx, lifecycle, snap, sig, suggestion)
	case strategy.ActionOpen:
		return e.openPosition(ctx, lifecycle, snap, sig, suggestion)
	default:
		return Decision{Symbol: snap.Symbol, Action: suggestion.Action, Reason: suggestion.Reason}, nil
	}
}

func (e *Engine) openPosition(ctx context.Context, lifecycle *strategy.HedgeStrategy, snap types.MarketSnapshot, sig types.Signal, suggestion strategy.Suggestion) (Decision, error) {
	symbol := snap.Symbol
	pair, ok := e.ledger.Pair(symbol)
	if !ok {
		return Decision{}, boterrors.NewBotError(boterrors.ErrorCategoryValidation, "engine", "open",
			fmt.Sprintf("no allocation record for %q", symbol))
	}

	lev := e.leverage.SelectLeverage(snap.Volatility, sig.Confidence, pair.WinRate, pair.ConsecutiveLosses)

	allocation := e.ledger.Allocation(symbol)
	minValue := e.funding.Config().MinPositionValue
	if allocation < minValue {
		moved, err := e.ledger.BoostAllocationForSignal(symbol, sig)
		if err != nil {
			if errors.Is(err, portfolio.ErrRedistributionExhausted) {
				return e.noTrade(symbol, "redistribution exhausted: "+err.Error(), "REDISTRIBUTION"), nil
			}
			return Decision{}, err
		}
		if moved > 0 {
			e.logRisk("%s boosted by %.2f for signal strength %.0f", symbol, moved, sig.Strength)
		}
		allocation = e.ledger.Allocation(symbol)
		monitoring.UpdateAllocation(symbol, allocation)
	}

	sizing, err := e.funding.SizePosition(risk.SizingInput{
		AvailableBalance:  allocation,
		Price:             snap.Price,
		Leverage:          lev,
		Volatility:        snap.Volatility,
		WinRate:           pair.WinRate,
		ConsecutiveLosses: pair.ConsecutiveLosses,
		SignalStrength:    sig.Strength,
		ExistingExposure:  e.openExposure(),
	})
	if err != nil {
		if errors.Is(err, risk.ErrInsufficientFunds) {
			return e.noTrade(symbol, err.Error(), "INSUFFICIENT_FUNDS"), nil
		}
		return Decision{}, err
	}

	if err := e.funding.AllowTrade(allocation, sizing.Value, pair.ConsecutiveLosses); err != nil {
		monitoring.UpdateCircuitBreaker(symbol, risk.BreakerState(pair.ConsecutiveLosses))
		if errors.Is(err, risk.ErrCircuitBreakerOpen) {
			_ = notifications.NotifyCircuitBreaker(e.notifier, symbol, pair.ConsecutiveLosses)
			return e.noTrade(symbol, err.Error(), "CIRCUIT_BREAKER"), nil
		}
		if errors.Is(err, risk.ErrInsufficientFunds) {
			return e.noTrade(symbol, err.Error(), "INSUFFICIENT_FUNDS"), nil
		}
		return Decision{}, err
	}

	// The notional must stay within what the allocation can carry as margin.
	notional := float64(sizing.Contracts) * snap.Price
	if maxNotional := portfolio.MaxPositionSize(allocation, lev); notional > maxNotional {
		return Decision{}, boterrors.NewBotError(boterrors.ErrorCategoryPosition, "engine", "open",
			fmt.Sprintf("notional %.2f exceeds margin capacity %.2f at %dx", notional, maxNotional, lev))
	}

	orderSide := exchange.Buy
	if suggestion.Side == strategy.SideShort {
		orderSide = exchange.Sell
	}
	result, err := e.exec.PlaceOrder(ctx, symbol, orderSide, sizing.Contracts, lev)
	if err != nil {
		monitoring.RecordError("order")
		return Decision{}, boterrors.WrapError(err, boterrors.ErrorCategoryOrder, "engine", "place order").
			WithContext("symbol", symbol).
			WithContext("contracts", sizing.Contracts)
	}

	fillPrice := result.Price
	if fillPrice <= 0 {
		fillPrice = snap.Price
	}

	if err := lifecycle.Open(suggestion.Side, fillPrice, sizing.Contracts, lev); err != nil {
		return Decision{}, boterrors.WrapError(err, boterrors.ErrorCategoryPosition, "engine", "record open")
	}
	e.ledger.SetPositionOpen(symbol, true)

	margin := portfolio.RequiredMargin(float64(sizing.Contracts)*fillPrice, lev)
	liquidation := portfolio.LiquidationPrice(fillPrice, lev, suggestion.Side == strategy.SideLong)
	worstCase := e.funding.MaxLoss(sizing.Contracts, fillPrice, lev, e.exitCfg.StopLossPercent)
	e.logRisk("%s entry: margin %.2f, liquidation %.4f, stop-loss exposure %.2f",
		symbol, margin, liquidation, worstCase)

	monitoring.RecordTrade(symbol, "OPEN", suggestion.Side.String(), sizing.Value)
	monitoring.UpdateLeverage(symbol, lev)
	e.logTrade(symbol, "OPEN", suggestion.Side.String(), result.OrderID, sizing.Contracts, fillPrice, sizing.Value, lev)
	_ = notifications.NotifyTradeOpened(e.notifier, symbol, suggestion.Side.String(), sizing.Contracts, fillPrice, lev)
	_ = e.journal.Record(journal.Entry{
		Symbol:    symbol,
		Action:    "OPEN",
		Side:      suggestion.Side.String(),
		Contracts: sizing.Contracts,
		Leverage:  lev,
		Price:     fillPrice,
		Value:     sizing.Value,
		Reason:    suggestion.Reason,
	})

	return Decision{
		Symbol:           symbol,
		Action:           strategy.ActionOpen,
		Side:             suggestion.Side,
		Contracts:        sizing.Contracts,
		Leverage:         lev,
		Price:            fillPrice,
		Reason:           suggestion.Reason,
		RequiredMargin:   margin,
		LiquidationPrice: liquidation,
		MaxLoss:          worstCase,
	}, nil
}

func (e *Engine) openHedge(ctx context.Context, lifecycle *strategy.HedgeStrategy, snap types.MarketSnapshot, sig types.Signal, suggestion strategy.Suggestion) (Decision, error) {
	symbol := snap.Symbol
	contracts := lifecycle.HedgeContracts()

	// The hedge leg gets its own leverage from current conditions, not the
	// leverage the primary entered with.
	hedgeLeverage := e.leverage.Conservative()
	if pair, ok := e.ledger.Pair(symbol); ok {
		hedgeLeverage = e.leverage.SelectLeverage(snap.Volatility, sig.Confidence, pair.WinRate, pair.ConsecutiveLosses)
	}

	orderSide := exchange.Buy
	if suggestion.Side == strategy.SideShort {
		orderSide = exchange.Sell
	}
	result, err := e.exec.PlaceOrder(ctx, symbol, orderSide, contracts, hedgeLeverage)
	if err != nil {
		monitoring.RecordError("hedge")
		return Decision{}, boterrors.WrapError(err, boterrors.ErrorCategoryOrder, "engine", "place hedge").
			WithContext("symbol", symbol)
	}

	fillPrice := result.Price
	if fillPrice <= 0 {
		fillPrice = snap.Price
	}

	if err := lifecycle.OpenHedge(fillPrice, contracts, hedgeLeverage); err != nil {
		return Decision{}, boterrors.WrapError(err, boterrors.ErrorCategoryPosition, "engine", "record hedge")
	}

	monitoring.RecordTrade(symbol, "HEDGE", suggestion.Side.String(), float64(contracts)*fillPrice)
	e.logTrade(symbol, "HEDGE", suggestion.Side.String(), result.OrderID, contracts, fillPrice, float64(contracts)*fillPrice, hedgeLeverage)
	_ = notifications.NotifyHedgeOpened(e.notifier, symbol, contracts, fillPrice)
	_ = e.journal.Record(journal.Entry{
		Symbol:    symbol,
		Action:    "HEDGE",
		Side:      suggestion.Side.String(),
		Contracts: contracts,
		Leverage:  hedgeLeverage,
		Price:     fillPrice,
		Value:     float64(contracts) * fillPrice,
		Reason:    suggestion.Reason,
	})

	return Decision{
		Symbol:    symbol,
		Action:    strategy.ActionHedge,
		Side:      suggestion.Side,
		Contracts: contracts,
		Leverage:  hedgeLeverage,
		Price:     fillPrice,
		Reason:    suggestion.Reason,
	}, nil
}

func (e *Engine) closePosition(ctx context.Context, lifecycle *strategy.HedgeStrategy, snap types.MarketSnapshot, suggestion strategy.Suggestion) (Decision, error) {
	symbol := snap.Symbol
	primary, _ := lifecycle.Position()

	// Close each leg with its own reduce-only order.
	closeSide := exchange.Sell
	if primary.Side == strategy.SideShort {
		closeSide = exchange.Buy
	}
	if _, err := e.exec.ClosePosition(ctx, symbol, closeSide, primary.Contracts); err != nil {
		monitoring.RecordError("close")
		return Decision{}, boterrors.WrapError(err, boterrors.ErrorCategoryOrder, "engine", "close primary").
			WithContext("symbol", symbol)
	}
	if hedge, hasHedge := lifecycle.Hedge(); hasHedge {
		hedgeClose := exchange.Sell
		if hedge.Side == strategy.SideShort {
			hedgeClose = exchange.Buy
		}
		if _, err := e.exec.ClosePosition(ctx, symbol, hedgeClose, hedge.Contracts); err != nil {
			monitoring.RecordError("close")
			return Decision{}, boterrors.WrapError(err, boterrors.ErrorCategoryOrder, "engine", "close hedge").
				WithContext("symbol", symbol)
		}
	}

	realized, err := lifecycle.CloseAll(snap.Price)
	if err != nil {
		return Decision{}, boterrors.WrapError(err, boterrors.ErrorCategoryPosition, "engine", "settle")
	}

	win := realized > 0
	e.ledger.RecordTradeResult(symbol, realized, win)
	e.ledger.SetPositionOpen(symbol, false)

	if pair, ok := e.ledger.Pair(symbol); ok {
		monitoring.UpdateCircuitBreaker(symbol, risk.BreakerState(pair.ConsecutiveLosses))
	}
	monitoring.RecordTrade(symbol, "CLOSE", suggestion.Side.String(), float64(primary.Contracts)*snap.Price)
	monitoring.RecordRealizedPnL(symbol, realized)
	e.logClosed(symbol, primary.EntryPrice, snap.Price, realized)
	_ = notifications.NotifyTradeClosed(e.notifier, symbol, realized)
	_ = e.journal.Record(journal.Entry{
		Symbol:    symbol,
		Action:    "CLOSE",
		Side:      suggestion.Side.String(),
		Contracts: primary.Contracts,
		Leverage:  primary.Leverage,
		Price:     snap.Price,
		Value:     float64(primary.Contracts) * snap.Price,
		PnL:       realized,
		Win:       win,
		Reason:    suggestion.Reason,
	})

	return Decision{
		Symbol:    symbol,
		Action:    strategy.ActionClose,
		Side:      suggestion.Side,
		Contracts: primary.Contracts,
		Price:     snap.Price,
		PnL:       realized,
		Reason:    suggestion.Reason,
	}, nil
}

// SyncBalance refreshes the ledger from a live account balance and
// reallocates.
func (e *Engine) SyncBalance(balance float64) error {
	if err := e.ledger.SetTotalBalance(balance); err != nil {
		return err
	}
	for _, sym := range e.ledger.Symbols() {
		monitoring.UpdateAllocation(sym, e.ledger.Allocation(sym))
	}
	monitoring.UpdateReserve(balance - e.ledger.Available())
	return e.ledger.CheckReserveInvariant()
}

// State returns a symbol's lifecycle state.
func (e *Engine) State(symbol string) strategy.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if lc, ok := e.lifecycles[symbol]; ok {
		return lc.State()
	}
	return strategy.StateFlat
}

// UnrealizedPnL returns a symbol's combined open P&L at the given price.
func (e *Engine) UnrealizedPnL(symbol string, price float64) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if lc, ok := e.lifecycles[symbol]; ok {
		return lc.UnrealizedPnL(price)
	}
	return 0
}

// Rankings exposes the ledger's performance ranking for reporting.
func (e *Engine) Rankings() []portfolio.PairRanking {
	return e.ledger.Rankings()
}

// OnTradeClosed records a settlement that happened outside EvaluateCycle,
// such as a position closed directly on the exchange. It updates the loss
// streak, breaker state and metrics the same way an engine-driven close does.
func (e *Engine) OnTradeClosed(symbol string, pnl float64, win bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.ledger.RecordTradeResult(symbol, pnl, win)
	e.ledger.SetPositionOpen(symbol, false)
	if pair, ok := e.ledger.Pair(symbol); ok {
		monitoring.UpdateCircuitBreaker(symbol, risk.BreakerState(pair.ConsecutiveLosses))
	}
	monitoring.RecordRealizedPnL(symbol, pnl)
}

// ResetBreaker clears a symbol's loss streak. Operator override.
func (e *Engine) ResetBreaker(symbol string) {
	e.ledger.ResetBreaker(symbol)
	monitoring.UpdateCircuitBreaker(symbol, 0)
}

// openExposure sums the entry value of every open position across symbols.
func (e *Engine) openExposure() float64 {
	total := 0.0
	for _, lc := range e.lifecycles {
		if pos, ok := lc.Position(); ok {
			total += pos.EntryValue()
		}
		if hedge, ok := lc.Hedge(); ok {
			total += hedge.EntryValue()
		}
	}
	return total
}

func (e *Engine) noTrade(symbol, reason, errType string) Decision {
	monitoring.RecordError(errType)
	e.logRisk("%s trade blocked: %s", symbol, reason)
	return Decision{Symbol: symbol, Action: strategy.ActionNone, Reason: reason}
}

func (e *Engine) logRisk(format string, args ...interface{}) {
	if e.log != nil {
		e.log.Risk(format, args...)
	}
}

func (e *Engine) logTrade(symbol, action, side, orderID string, contracts int, price, value float64, leverage int) {
	if e.log != nil {
		e.log.LogTradeExecution(symbol, action, side, orderID, contracts, price, value, leverage)
	}
}

func (e *Engine) logClosed(symbol string, entry, exit, pnl float64) {
	if e.log != nil {
		e.log.LogClosedTrade(symbol, entry, exit, pnl)
	}
}
