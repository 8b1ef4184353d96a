package portfolio

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vutran1810/futures-hedge-bot/pkg/types"
)

// ErrRedistributionExhausted means the donor pairs could not supply any
// capital for a signal boost. Recoverable: the triggering signal is dropped
// for the current cycle.
var ErrRedistributionExhausted = errors.New("redistribution exhausted")

// Boost parameters from the redistribution design: a strong signal is
// entitled to 10% of the allocated book, a very strong one to 15%. Idle
// donors give up to half their balance, pairs with open positions less.
const (
	boostSignalStrength  = 60.0
	strongSignalStrength = 70.0

	boostTargetPercent  = 0.10
	strongTargetPercent = 0.15

	idleDonorCap   = 0.50
	activeDonorCap = 0.30

	donorFloorPercent     = 0.05
	topHolderFloorPercent = 0.20

	maxEventHistory = 1000

	// Tolerance for the reserve invariant under float rounding.
	balanceEpsilon = 1e-6
)

// How many recent outcomes the dynamic strategy weighs.
const recentOutcomeWindow = 10

// PairAllocation is the per-instrument record the ledger owns: the balance
// share assigned to one trading pair plus its settlement statistics.
type PairAllocation struct {
	Symbol            string
	Allocated         float64
	TotalTrades       int
	WinningTrades     int
	LosingTrades      int
	ConsecutiveLosses int
	HasPosition       bool
	LastUpdated       time.Time

	// Most recent settled outcomes, newest last. Feeds StrategyDynamic.
	recentOutcomes []bool
}

func (p *PairAllocation) settledTrades() int {
	return p.WinningTrades + p.LosingTrades
}

// winFraction returns the win rate in [0,1].
func (p *PairAllocation) winFraction() float64 {
	settled := p.settledTrades()
	if settled == 0 {
		return 0
	}
	return float64(p.WinningTrades) / float64(settled)
}

// WinRate returns the win rate as a percentage (0-100).
func (p *PairAllocation) WinRate() float64 {
	return p.winFraction() * 100
}

// recencyScore weighs the last outcomes with linearly increasing weight,
// newest heaviest. Neutral 0.5 without history.
func (p *PairAllocation) recencyScore() float64 {
	if len(p.recentOutcomes) == 0 {
		return 0.5
	}
	var weighted, totalWeight float64
	for i, won := range p.recentOutcomes {
		w := float64(i + 1)
		totalWeight += w
		if won {
			weighted += w
		}
	}
	return weighted / totalWeight
}

// compositeScore blends win rate (60%) with trade-count reliability (40%,
// saturating at 20 trades).
func (p *PairAllocation) compositeScore() float64 {
	if p.settledTrades() == 0 {
		return 0
	}
	activity := float64(p.TotalTrades) / 20.0
	if activity > 1 {
		activity = 1
	}
	return 0.6*p.winFraction() + 0.4*activity
}

// AllocationEvent records one mutation of the ledger for auditing.
type AllocationEvent struct {
	Timestamp   time.Time
	EventType   string // ALLOCATE, REBALANCE, BOOST, SETTLE, ADD, REMOVE
	Symbol      string
	Amount      float64
	Description string
}

// PairRanking is the reporting view of one pair's performance.
type PairRanking struct {
	Symbol        string
	Score         float64
	WinRate       float64
	TotalTrades   int
	WinningTrades int
	LosingTrades  int
}

// PairSnapshot is a read-only copy of a pair's state handed to callers.
type PairSnapshot struct {
	Symbol            string
	Allocated         float64
	TotalTrades       int
	WinningTrades     int
	LosingTrades      int
	ConsecutiveLosses int
	HasPosition       bool
	WinRate           float64 // 0-100
}

// Ledger owns the instrument → allocated balance mapping for the whole
// tradable set. It is the only cross-instrument shared state: every mutation
// runs under one mutex, so a redistribution is observed either completely or
// not at all.
type Ledger struct {
	mu               sync.RWMutex
	totalBalance     float64
	reserveFraction  float64
	minPositionValue float64
	strategy         Strategy
	pairs            map[string]*PairAllocation
	symbols          []string
	history          []AllocationEvent
}

// NewLedger creates a ledger for the given tradable set and runs the initial
// allocation. reserveFraction must be in [0,1).
func NewLedger(totalBalance, reserveFraction, minPositionValue float64, strategy Strategy, symbols []string) (*Ledger, error) {
	if totalBalance < 0 {
		return nil, fmt.Errorf("total balance must be >= 0, got %.2f", totalBalance)
	}
	if reserveFraction < 0 || reserveFraction >= 1 {
		return nil, fmt.Errorf("reserve fraction must be in [0,1), got %.2f", reserveFraction)
	}
	if len(symbols) == 0 {
		return nil, errors.New("at least one trading pair is required")
	}

	l := &Ledger{
		totalBalance:     totalBalance,
		reserveFraction:  reserveFraction,
		minPositionValue: minPositionValue,
		strategy:         strategy,
		pairs:            make(map[string]*PairAllocation, len(symbols)),
	}
	for _, sym := range symbols {
		if _, dup := l.pairs[sym]; dup {
			return nil, fmt.Errorf("duplicate trading pair %q", sym)
		}
		l.pairs[sym] = &PairAllocation{Symbol: sym, LastUpdated: time.Now()}
		l.symbols = append(l.symbols, sym)
	}

	l.allocateLocked("ALLOCATE")
	return l, nil
}

// Available returns the tradable balance after the reserve.
func (l *Ledger) Available() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.availableLocked()
}

func (l *Ledger) availableLocked() float64 {
	return l.totalBalance * (1 - l.reserveFraction)
}

// TotalBalance returns the account balance the ledger was last synced to.
func (l *Ledger) TotalBalance() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.totalBalance
}

// SetTotalBalance syncs the ledger to a fresh account balance and reallocates
// the tradable part across all pairs with the configured strategy.
func (l *Ledger) SetTotalBalance(balance float64) error {
	if balance < 0 {
		return fmt.Errorf("total balance must be >= 0, got %.2f", balance)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.totalBalance = balance
	l.allocateLocked("REBALANCE")
	return nil
}

// Rebalance reapplies the allocation strategy to the current balance.
func (l *Ledger) Rebalance() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allocateLocked("REBALANCE")
}

func (l *Ledger) allocateLocked(eventType string) {
	pairs := make([]*PairAllocation, 0, len(l.symbols))
	for _, sym := range l.symbols {
		pairs = append(pairs, l.pairs[sym])
	}
	l.strategy.allocate(l.availableLocked(), pairs)
	now := time.Now()
	for _, p := range pairs {
		p.LastUpdated = now
	}
	l.recordEventLocked(AllocationEvent{
		Timestamp:   now,
		EventType:   eventType,
		Symbol:      "ALL",
		Amount:      l.availableLocked(),
		Description: fmt.Sprintf("%s allocation across %d pairs", l.strategy, len(pairs)),
	})
}

// Allocation returns the balance currently assigned to a pair.
func (l *Ledger) Allocation(symbol string) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if p, ok := l.pairs[symbol]; ok {
		return p.Allocated
	}
	return 0
}

// TotalAllocated returns the sum of all pair allocations.
func (l *Ledger) TotalAllocated() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.totalAllocatedLocked()
}

func (l *Ledger) totalAllocatedLocked() float64 {
	total := 0.0
	for _, p := range l.pairs {
		total += p.Allocated
	}
	return total
}

// Symbols returns the tradable set in stable order.
func (l *Ledger) Symbols() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, len(l.symbols))
	copy(out, l.symbols)
	return out
}

// Pair returns a read-only snapshot of one pair's state.
func (l *Ledger) Pair(symbol string) (PairSnapshot, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.pairs[symbol]
	if !ok {
		return PairSnapshot{}, false
	}
	return PairSnapshot{
		Symbol:            p.Symbol,
		Allocated:         p.Allocated,
		TotalTrades:       p.TotalTrades,
		WinningTrades:     p.WinningTrades,
		LosingTrades:      p.LosingTrades,
		ConsecutiveLosses: p.ConsecutiveLosses,
		HasPosition:       p.HasPosition,
		WinRate:           p.WinRate(),
	}, true
}

// SetPositionOpen flags whether a pair currently holds an open position.
// Open pairs donate less during redistribution.
func (l *Ledger) SetPositionOpen(symbol string, open bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.pairs[symbol]; ok {
		p.HasPosition = open
		p.LastUpdated = time.Now()
	}
}

// RecordTradeResult books one settlement: win/loss counters and the
// consecutive-loss counter that drives the circuit breakers. A win clears
// the breaker.
func (l *Ledger) RecordTradeResult(symbol string, pnl float64, win bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.pairs[symbol]
	if !ok {
		return
	}

	p.TotalTrades++
	if win {
		p.WinningTrades++
		p.ConsecutiveLosses = 0
	} else {
		p.LosingTrades++
		p.ConsecutiveLosses++
	}
	p.recentOutcomes = append(p.recentOutcomes, win)
	if len(p.recentOutcomes) > recentOutcomeWindow {
		p.recentOutcomes = p.recentOutcomes[len(p.recentOutcomes)-recentOutcomeWindow:]
	}
	p.LastUpdated = time.Now()

	l.recordEventLocked(AllocationEvent{
		Timestamp:   p.LastUpdated,
		EventType:   "SETTLE",
		Symbol:      symbol,
		Amount:      pnl,
		Description: fmt.Sprintf("settled pnl %.4f win=%t streak=%d", pnl, win, p.ConsecutiveLosses),
	})
}

// ResetBreaker clears a pair's consecutive-loss counter. Operator override
// for a hard circuit breaker that would otherwise only clear on a win.
func (l *Ledger) ResetBreaker(symbol string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.pairs[symbol]; ok {
		p.ConsecutiveLosses = 0
		p.LastUpdated = time.Now()
	}
}

// AddPair introduces a new instrument to the tradable set and reallocates.
func (l *Ledger) AddPair(symbol string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.pairs[symbol]; exists {
		return fmt.Errorf("pair %q already tracked", symbol)
	}
	l.pairs[symbol] = &PairAllocation{Symbol: symbol, LastUpdated: time.Now()}
	l.symbols = append(l.symbols, symbol)
	l.allocateLocked("ADD")
	return nil
}

// RemovePair drops an instrument; its balance folds back into the pool and
// is spread equally over the remaining pairs.
func (l *Ledger) RemovePair(symbol string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.pairs[symbol]
	if !ok {
		return fmt.Errorf("unknown pair %q", symbol)
	}
	if p.HasPosition {
		return fmt.Errorf("pair %q has an open position", symbol)
	}

	released := p.Allocated
	delete(l.pairs, symbol)
	for i, sym := range l.symbols {
		if sym == symbol {
			l.symbols = append(l.symbols[:i], l.symbols[i+1:]...)
			break
		}
	}
	if len(l.symbols) > 0 && released > 0 {
		share := released / float64(len(l.symbols))
		for _, sym := range l.symbols {
			l.pairs[sym].Allocated += share
		}
	}
	l.recordEventLocked(AllocationEvent{
		Timestamp:   time.Now(),
		EventType:   "REMOVE",
		Symbol:      symbol,
		Amount:      released,
		Description: fmt.Sprintf("pair removed, %.2f folded back", released),
	})
	return nil
}

// BoostAllocationForSignal redistributes capital toward a pair with a strong
// signal but an allocation below the minimum tradable value.
//
// Donors are the other pairs, idle ones drained first, each capped (50% idle,
// 30% active) and never drawn below its floor: max(min position value, 5% of
// the allocated book), 20% for the largest holder. All debits and the single
// credit apply inside one critical section, so concurrent readers never see
// a partial redistribution. Partial satisfaction is acceptable; the caller
// re-checks the resulting allocation before approving a trade.
//
// Returns the amount moved. ErrRedistributionExhausted when the donors could
// not supply anything at all.
func (l *Ledger) BoostAllocationForSignal(symbol string, sig types.Signal) (float64, error) {
	if sig.Strength < boostSignalStrength {
		return 0, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	target, ok := l.pairs[symbol]
	if !ok {
		return 0, fmt.Errorf("unknown pair %q", symbol)
	}

	totalAllocated := l.totalAllocatedLocked()
	if totalAllocated <= 0 {
		return 0, fmt.Errorf("%w: nothing allocated", ErrRedistributionExhausted)
	}

	targetPercent := boostTargetPercent
	if sig.Strength >= strongSignalStrength {
		targetPercent = strongTargetPercent
	}
	targetValue := targetPercent * totalAllocated
	if l.minPositionValue > targetValue {
		targetValue = l.minPositionValue
	}

	needed := targetValue - target.Allocated
	if needed <= 0 {
		return 0, nil
	}

	topHolder := l.topHolderLocked()

	var idle, active []*PairAllocation
	for _, sym := range l.symbols {
		p := l.pairs[sym]
		if p == target {
			continue
		}
		if p.HasPosition {
			active = append(active, p)
		} else {
			idle = append(idle, p)
		}
	}
	// Largest donors first within each group.
	byBalance := func(pairs []*PairAllocation) {
		sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].Allocated > pairs[j].Allocated })
	}
	byBalance(idle)
	byBalance(active)

	type transfer struct {
		donor  *PairAllocation
		amount float64
	}
	var plan []transfer
	moved := 0.0

	drain := func(donors []*PairAllocation, capFraction float64) {
		for _, donor := range donors {
			if moved >= needed {
				return
			}
			floorPercent := donorFloorPercent
			if donor == topHolder {
				floorPercent = topHolderFloorPercent
			}
			floor := floorPercent * totalAllocated
			if l.minPositionValue > floor {
				floor = l.minPositionValue
			}

			available := donor.Allocated - floor
			if available <= 0 {
				continue
			}
			take := donor.Allocated * capFraction
			if available < take {
				take = available
			}
			if remaining := needed - moved; remaining < take {
				take = remaining
			}
			if take <= 0 {
				continue
			}
			plan = append(plan, transfer{donor: donor, amount: take})
			moved += take
		}
	}

	drain(idle, idleDonorCap)
	drain(active, activeDonorCap)

	if moved <= 0 {
		return 0, fmt.Errorf("%w: needed %.2f for %s, donors at their floors",
			ErrRedistributionExhausted, needed, symbol)
	}

	// Apply atomically: every donor debit together with the target credit.
	now := time.Now()
	for _, tr := range plan {
		tr.donor.Allocated -= tr.amount
		tr.donor.LastUpdated = now
	}
	target.Allocated += moved
	target.LastUpdated = now

	l.recordEventLocked(AllocationEvent{
		Timestamp: now,
		EventType: "BOOST",
		Symbol:    symbol,
		Amount:    moved,
		Description: fmt.Sprintf("boosted to %.2f (needed %.2f) from %d donors",
			target.Allocated, needed, len(plan)),
	})
	return moved, nil
}

func (l *Ledger) topHolderLocked() *PairAllocation {
	var top *PairAllocation
	for _, sym := range l.symbols {
		p := l.pairs[sym]
		if top == nil || p.Allocated > top.Allocated {
			top = p
		}
	}
	return top
}

// Rankings returns every pair's composite score and trade counts in
// descending score order. Reporting only, no side effects.
func (l *Ledger) Rankings() []PairRanking {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rankings := make([]PairRanking, 0, len(l.symbols))
	for _, sym := range l.symbols {
		p := l.pairs[sym]
		rankings = append(rankings, PairRanking{
			Symbol:        p.Symbol,
			Score:         p.compositeScore(),
			WinRate:       p.WinRate(),
			TotalTrades:   p.TotalTrades,
			WinningTrades: p.WinningTrades,
			LosingTrades:  p.LosingTrades,
		})
	}
	sort.SliceStable(rankings, func(i, j int) bool { return rankings[i].Score > rankings[j].Score })
	return rankings
}

// CheckReserveInvariant verifies that the allocations never exceed the
// post-reserve balance, within float tolerance.
func (l *Ledger) CheckReserveInvariant() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	allocated := l.totalAllocatedLocked()
	available := l.availableLocked()
	if allocated > available+balanceEpsilon {
		return fmt.Errorf("reserve invariant violated: allocated %.6f > available %.6f", allocated, available)
	}
	return nil
}

// History returns the most recent allocation events, newest last.
func (l *Ledger) History(limit int) []AllocationEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := len(l.history)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]AllocationEvent, limit)
	copy(out, l.history[n-limit:])
	return out
}

func (l *Ledger) recordEventLocked(event AllocationEvent) {
	l.history = append(l.history, event)
	if len(l.history) > maxEventHistory {
		l.history = l.history[len(l.history)-maxEventHistory:]
	}
}
