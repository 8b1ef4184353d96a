package reporting

import (
	"fmt"
	"io"
	"math"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/vutran1810/futures-hedge-bot/internal/backtest"
	"github.com/vutran1810/futures-hedge-bot/internal/portfolio"
)

// RenderBacktestResult prints a backtest summary table.
func RenderBacktestResult(w io.Writer, result backtest.Result) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("BACKTEST RESULTS")
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"Symbol", result.Symbol},
		{"Candles", result.Candles},
		{"Initial Balance", fmt.Sprintf("$%.2f", result.InitialBalance)},
		{"Final Balance", fmt.Sprintf("$%.2f", result.FinalBalance)},
		{"Total Return", fmt.Sprintf("%.2f%%", result.ReturnPercent)},
	})

	t.AppendSeparator()

	t.AppendRows([]table.Row{
		{"Total Trades", result.Trades},
		{"Winning Trades", result.Wins},
		{"Losing Trades", result.Losses},
		{"Win Rate", fmt.Sprintf("%.1f%%", result.WinRate)},
		{"Profit Factor", formatProfitFactor(result.ProfitFactor)},
		{"Max Drawdown", fmt.Sprintf("%.2f%%", result.MaxDrawdown*100)},
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 16, WidthMax: 16, Align: text.AlignLeft},
		{Number: 2, WidthMin: 14, WidthMax: 30, Align: text.AlignRight},
	})

	t.Render()
}

// RenderRankings prints the pair performance rankings, best first.
func RenderRankings(w io.Writer, rankings []portfolio.PairRanking) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("PAIR RANKINGS")
	t.SetStyle(table.StyleRounded)

	t.AppendHeader(table.Row{"#", "Symbol", "Score", "Win Rate", "Trades", "W", "L"})
	for i, r := range rankings {
		t.AppendRow(table.Row{
			i + 1,
			r.Symbol,
			fmt.Sprintf("%.3f", r.Score),
			fmt.Sprintf("%.1f%%", r.WinRate),
			r.TotalTrades,
			r.WinningTrades,
			r.LosingTrades,
		})
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, WidthMin: 10, Align: text.AlignLeft},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})

	t.Render()
}

func formatProfitFactor(pf float64) string {
	if math.IsInf(pf, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.2f", pf)
}
