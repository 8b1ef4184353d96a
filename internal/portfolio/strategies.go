package portfolio

import (
	"fmt"
	"math"
	"strings"
)

// Strategy selects how the available balance is split across trading pairs.
// It is parsed once from configuration; adding a strategy means adding a
// variant here, not branching on strings at call sites.
type Strategy int

const (
	// StrategyEqual splits the available balance evenly.
	StrategyEqual Strategy = iota

	// StrategyWeighted allocates proportionally to historical win rate.
	// Pairs without trade history receive an equal share.
	StrategyWeighted

	// StrategyDynamic blends win rate with a recency-weighted outcome
	// sequence, adapting faster than StrategyWeighted.
	StrategyDynamic

	// StrategyBest concentrates 80% of the balance on the highest composite
	// scorer and splits the remainder equally among the rest.
	StrategyBest
)

func (s Strategy) String() string {
	switch s {
	case StrategyEqual:
		return "equal"
	case StrategyWeighted:
		return "weighted"
	case StrategyDynamic:
		return "dynamic"
	case StrategyBest:
		return "best"
	default:
		return "unknown"
	}
}

// ParseStrategy converts a configuration name into a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "equal", "":
		return StrategyEqual, nil
	case "weighted":
		return StrategyWeighted, nil
	case "dynamic":
		return StrategyDynamic, nil
	case "best":
		return StrategyBest, nil
	default:
		return StrategyEqual, fmt.Errorf("unknown allocation strategy %q", name)
	}
}

// Share of the available balance the best pair receives under StrategyBest.
const bestPairShare = 0.80

// allocate distributes available across the pairs in place. Callers hold the
// ledger write lock. The sum of the results equals available (up to float
// rounding), which keeps the reserve invariant by construction.
func (s Strategy) allocate(available float64, pairs []*PairAllocation) {
	if len(pairs) == 0 {
		return
	}

	switch s {
	case StrategyWeighted:
		allocateWeighted(available, pairs)
	case StrategyDynamic:
		allocateDynamic(available, pairs)
	case StrategyBest:
		allocateBest(available, pairs)
	default:
		allocateEqual(available, pairs)
	}
}

func allocateEqual(available float64, pairs []*PairAllocation) {
	share := available / float64(len(pairs))
	for _, p := range pairs {
		p.Allocated = share
	}
}

// allocateWeighted gives pairs without settled trades an equal baseline share
// and distributes the remainder across the rest proportionally to win rate.
func allocateWeighted(available float64, pairs []*PairAllocation) {
	equalShare := available / float64(len(pairs))

	var seasoned []*PairAllocation
	remainder := available
	for _, p := range pairs {
		if p.settledTrades() == 0 {
			p.Allocated = equalShare
			remainder -= equalShare
		} else {
			seasoned = append(seasoned, p)
		}
	}

	if len(seasoned) == 0 {
		return
	}

	totalWeight := 0.0
	for _, p := range seasoned {
		totalWeight += p.winFraction()
	}
	if totalWeight <= 0 {
		// Everyone with history has lost everything; split evenly.
		share := remainder / float64(len(seasoned))
		for _, p := range seasoned {
			p.Allocated = share
		}
		return
	}

	for _, p := range seasoned {
		p.Allocated = remainder * (p.winFraction() / totalWeight)
	}
}

// allocateDynamic blends lifetime win rate with the recency-weighted outcome
// sequence, floored at a 10% weight so no pair is starved completely.
func allocateDynamic(available float64, pairs []*PairAllocation) {
	weights := make([]float64, len(pairs))
	totalWeight := 0.0

	for i, p := range pairs {
		w := 0.5*p.winFraction() + 0.5*p.recencyScore()
		weights[i] = math.Max(0.10, w)
		totalWeight += weights[i]
	}

	for i, p := range pairs {
		p.Allocated = available * (weights[i] / totalWeight)
	}
}

// allocateBest concentrates capital on the top composite scorer. Without any
// trading history the composite is undefined, so it falls back to equal.
func allocateBest(available float64, pairs []*PairAllocation) {
	var best *PairAllocation
	bestScore := math.Inf(-1)
	for _, p := range pairs {
		if p.settledTrades() == 0 {
			continue
		}
		if score := p.compositeScore(); score > bestScore {
			bestScore = score
			best = p
		}
	}

	if best == nil {
		allocateEqual(available, pairs)
		return
	}

	if len(pairs) == 1 {
		best.Allocated = available
		return
	}

	reserveShare := available * (1 - bestPairShare) / float64(len(pairs)-1)
	for _, p := range pairs {
		if p == best {
			p.Allocated = available * bestPairShare
		} else {
			p.Allocated = reserveShare
		}
	}
}
