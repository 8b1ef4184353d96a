package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/vutran1810/futures-hedge-bot/internal/backtest"
	"github.com/vutran1810/futures-hedge-bot/internal/journal"
)

const (
	summarySheet = "Summary"
	tradesSheet  = "Trades"
	equitySheet  = "Equity"
)

// WriteBacktestXLSX writes a backtest result to an Excel workbook with a
// summary sheet, the trade journal and the equity curve.
func WriteBacktestXLSX(result backtest.Result, trades []journal.Entry, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	fx.SetSheetName(fx.GetSheetName(0), summarySheet)
	if _, err := fx.NewSheet(tradesSheet); err != nil {
		return err
	}
	if _, err := fx.NewSheet(equitySheet); err != nil {
		return err
	}

	headStyle, _ := fx.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})

	if err := writeSummarySheet(fx, headStyle, result); err != nil {
		return err
	}
	if err := writeTradesSheet(fx, headStyle, trades); err != nil {
		return err
	}
	if err := writeEquitySheet(fx, headStyle, result); err != nil {
		return err
	}

	return fx.SaveAs(path)
}

func writeSummarySheet(fx *excelize.File, headStyle int, result backtest.Result) error {
	rows := [][]interface{}{
		{"Metric", "Value"},
		{"Symbol", result.Symbol},
		{"Candles", result.Candles},
		{"Initial Balance", fmt.Sprintf("%.2f", result.InitialBalance)},
		{"Final Balance", fmt.Sprintf("%.2f", result.FinalBalance)},
		{"Total Return %", fmt.Sprintf("%.2f", result.ReturnPercent)},
		{"Total PnL", fmt.Sprintf("%.2f", result.TotalPnL)},
		{"Max Drawdown %", fmt.Sprintf("%.2f", result.MaxDrawdown*100)},
		{"Profit Factor", formatProfitFactor(result.ProfitFactor)},
		{"Total Trades", result.Trades},
		{"Winning Trades", result.Wins},
		{"Losing Trades", result.Losses},
		{"Win Rate %", fmt.Sprintf("%.1f", result.WinRate)},
	}

	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return err
			}
			if err := fx.SetCellValue(summarySheet, cell, v); err != nil {
				return err
			}
			if r == 0 {
				fx.SetCellStyle(summarySheet, cell, cell, headStyle)
			}
		}
	}
	return nil
}

func writeTradesSheet(fx *excelize.File, headStyle int, trades []journal.Entry) error {
	headers := []string{"ID", "Symbol", "Action", "Side", "Contracts", "Leverage", "Price", "Value", "PnL", "Reason", "Time"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		fx.SetCellValue(tradesSheet, cell, h)
		fx.SetCellStyle(tradesSheet, cell, cell, headStyle)
	}

	for r, t := range trades {
		values := []interface{}{
			t.ID,
			t.Symbol,
			t.Action,
			t.Side,
			t.Contracts,
			t.Leverage,
			fmt.Sprintf("%.6f", t.Price),
			fmt.Sprintf("%.2f", t.Value),
			fmt.Sprintf("%.2f", t.PnL),
			t.Reason,
			t.Time.Format("2006-01-02 15:04:05"),
		}
		for c, v := range values {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			fx.SetCellValue(tradesSheet, cell, v)
		}
	}
	return nil
}

func writeEquitySheet(fx *excelize.File, headStyle int, result backtest.Result) error {
	headers := []string{"Candle", "Equity"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		fx.SetCellValue(equitySheet, cell, h)
		fx.SetCellStyle(equitySheet, cell, cell, headStyle)
	}

	for i, equity := range result.EquityCurve {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		fx.SetCellValue(equitySheet, cell, i+1)
		cell, err = excelize.CoordinatesToCellName(2, i+2)
		if err != nil {
			return err
		}
		fx.SetCellValue(equitySheet, cell, equity)
	}
	return nil
}
