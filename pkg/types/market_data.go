package types

import "time"

type OHLCV struct {
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timestamp time.Time
}

type Ticker struct {
	Symbol    string
	Price     float64
	Volume    float64
	Timestamp time.Time
}

type Balance struct {
	Asset  string
	Free   float64
	Locked float64
}

// VolumeTrend describes the direction of recent traded volume.
type VolumeTrend int

const (
	VolumeFlat VolumeTrend = iota
	VolumeRising
	VolumeFalling
)

func (vt VolumeTrend) String() string {
	switch vt {
	case VolumeRising:
		return "RISING"
	case VolumeFalling:
		return "FALLING"
	default:
		return "FLAT"
	}
}

// MarketSnapshot is the per-symbol market view consumed by the trading core
// once per cycle. Volatility is the standard deviation of recent returns,
// expressed as a fraction (0.02 = 2%).
type MarketSnapshot struct {
	Symbol      string
	Price       float64
	Volatility  float64
	VolumeTrend VolumeTrend
	Timestamp   time.Time
}
