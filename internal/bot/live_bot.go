package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vutran1810/futures-hedge-bot/internal/exchange"
	"github.com/vutran1810/futures-hedge-bot/internal/logger"
	"github.com/vutran1810/futures-hedge-bot/internal/monitoring"
	"github.com/vutran1810/futures-hedge-bot/internal/strategy"
	"github.com/vutran1810/futures-hedge-bot/pkg/types"
)

// SignalSource produces one entry signal per symbol per cycle.
type SignalSource interface {
	Generate(ctx context.Context, symbol string) (types.Signal, error)
}

// LiveBot drives the engine on a fixed schedule. Each tick it refreshes the
// account balance, then walks the symbols serially: snapshot, signal,
// evaluate. One symbol's failure never stops the others, and shutdown is
// honored between symbols so a cycle never leaves a half-applied mutation.
type LiveBot struct {
	engine   *Engine
	market   exchange.MarketDataPort
	signals  SignalSource
	log      *logger.Logger
	health   *monitoring.HealthChecker
	interval time.Duration

	scheduler *cron.Cron
	cancel    context.CancelFunc
	runCtx    context.Context

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

// LiveParams wires the live bot.
type LiveParams struct {
	Engine   *Engine
	Market   exchange.MarketDataPort
	Signals  SignalSource
	Log      *logger.Logger
	Health   *monitoring.HealthChecker
	Interval time.Duration
}

// NewLiveBot builds a live bot with a per-cycle timeout of half the interval.
func NewLiveBot(p LiveParams) (*LiveBot, error) {
	if p.Engine == nil || p.Market == nil || p.Signals == nil {
		return nil, errors.New("engine, market and signals are required")
	}
	if p.Interval < time.Second {
		return nil, fmt.Errorf("interval %s is below 1s", p.Interval)
	}
	return &LiveBot{
		engine:   p.Engine,
		market:   p.Market,
		signals:  p.Signals,
		log:      p.Log,
		health:   p.Health,
		interval: p.Interval,
	}, nil
}

// Start syncs the balance once, then schedules the cycle.
func (b *LiveBot) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return errors.New("already running")
	}

	b.runCtx, b.cancel = context.WithCancel(ctx)

	if err := b.syncBalance(b.runCtx); err != nil {
		b.cancel()
		return fmt.Errorf("initial balance sync: %w", err)
	}

	b.scheduler = cron.New()
	if _, err := b.scheduler.AddFunc(fmt.Sprintf("@every %s", b.interval), b.runCycle); err != nil {
		b.cancel()
		return fmt.Errorf("schedule trading cycle: %w", err)
	}
	b.scheduler.Start()
	b.running = true

	b.logInfo("live bot started, interval %s, symbols %v", b.interval, b.engine.ledger.Symbols())
	return nil
}

// Stop cancels in-flight work and waits for the current cycle to finish.
func (b *LiveBot) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	b.mu.Unlock()

	b.cancel()
	stopCtx := b.scheduler.Stop()
	<-stopCtx.Done()
	b.wg.Wait()

	b.logInfo("live bot stopped")
}

// RunCycleNow triggers one cycle immediately, outside the schedule.
func (b *LiveBot) RunCycleNow() {
	b.runCycle()
}

func (b *LiveBot) runCycle() {
	b.wg.Add(1)
	defer b.wg.Done()

	base := b.runCtx
	if base == nil {
		base = context.Background()
	}

	// A cycle never outlives half its interval; a stuck exchange call is
	// abandoned rather than overlapping the next tick.
	ctx, cancelTimeout := context.WithTimeout(base, b.interval/2)
	defer cancelTimeout()

	if err := b.syncBalance(ctx); err != nil {
		b.logError("balance sync", err)
		b.recordHealthError(err)
		monitoring.RecordError("balance_sync")
		return
	}

	for _, symbol := range b.engine.ledger.Symbols() {
		// Cooperative shutdown between symbols.
		select {
		case <-ctx.Done():
			b.logInfo("cycle interrupted before %s", symbol)
			return
		default:
		}

		b.processSymbol(ctx, symbol)
	}

	if b.health != nil {
		b.health.SetConnected(true)
	}
}

func (b *LiveBot) processSymbol(ctx context.Context, symbol string) {
	snap, err := b.market.Snapshot(ctx, symbol)
	if err != nil {
		b.logError(fmt.Sprintf("%s snapshot", symbol), err)
		b.recordHealthError(err)
		monitoring.RecordError("snapshot")
		return
	}

	sig, err := b.signals.Generate(ctx, symbol)
	if err != nil {
		b.logError(fmt.Sprintf("%s signal", symbol), err)
		monitoring.RecordError("signal")
		return
	}

	decision, err := b.engine.EvaluateCycle(ctx, snap, sig)
	if err != nil {
		b.logError(fmt.Sprintf("%s evaluate", symbol), err)
		b.recordHealthError(err)
		return
	}

	if b.health != nil {
		b.health.RecordCycle(symbol, snap.Price)
	}
	if b.log != nil {
		b.log.LogCycleSummary(symbol, snap.Price, b.engine.State(symbol).String(),
			decision.Action.String(), b.engine.ledger.Allocation(symbol))
	}
}

func (b *LiveBot) syncBalance(ctx context.Context) error {
	balance, err := b.market.AccountBalance(ctx)
	if err != nil {
		if b.health != nil {
			b.health.SetConnected(false)
		}
		return err
	}
	return b.engine.SyncBalance(balance)
}

func (b *LiveBot) logInfo(format string, args ...interface{}) {
	if b.log != nil {
		b.log.Info(format, args...)
	}
}

func (b *LiveBot) logError(context string, err error) {
	if b.log != nil {
		b.log.LogError(context, err)
	}
}

func (b *LiveBot) recordHealthError(err error) {
	if b.health != nil {
		b.health.RecordError(err.Error())
	}
}

var _ SignalSource = (*strategy.MomentumSignal)(nil)
