package backtest

import "math"

// Result summarizes one backtest run.
type Result struct {
	Symbol         string
	Candles        int
	Trades         int
	Wins           int
	Losses         int
	TotalPnL       float64
	InitialBalance float64
	FinalBalance   float64
	ReturnPercent  float64
	WinRate        float64 // 0-100
	ProfitFactor   float64
	MaxDrawdown    float64 // fraction of peak equity
	EquityCurve    []float64
}

// computeMetrics fills the derived fields from the raw counters and curve.
func (r *Result) computeMetrics(grossProfit, grossLoss float64) {
	if r.InitialBalance > 0 {
		r.ReturnPercent = (r.FinalBalance - r.InitialBalance) / r.InitialBalance * 100
	}
	if r.Trades > 0 {
		r.WinRate = float64(r.Wins) / float64(r.Trades) * 100
	}
	if grossLoss > 0 {
		r.ProfitFactor = grossProfit / grossLoss
	} else if grossProfit > 0 {
		r.ProfitFactor = math.Inf(1)
	}
	r.MaxDrawdown = maxDrawdown(r.EquityCurve)
}

// maxDrawdown returns the largest peak-to-trough equity drop as a fraction.
func maxDrawdown(equity []float64) float64 {
	peak := math.Inf(-1)
	worst := 0.0
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}
