package types

import "time"

// SignalAction represents the direction suggested by the signal subsystem
type SignalAction int

const (
	SignalHold SignalAction = iota
	SignalBuy
	SignalSell
)

func (sa SignalAction) String() string {
	switch sa {
	case SignalBuy:
		return "BUY"
	case SignalSell:
		return "SELL"
	default:
		return "HOLD"
	}
}

// Signal is a per-symbol, per-cycle trading signal produced by an external
// indicator or ML subsystem. Strength is 0-100, Confidence 0-1. Signals are
// ephemeral and never persisted beyond the cycle that produced them.
type Signal struct {
	Action     SignalAction
	Strength   float64
	Confidence float64
	Reason     string
	Timestamp  time.Time
}

// IsActionable reports whether the signal direction calls for a trade at all.
func (s Signal) IsActionable() bool {
	return s.Action == SignalBuy || s.Action == SignalSell
}
