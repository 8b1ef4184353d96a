package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/vutran1810/futures-hedge-bot/internal/backtest"
	"github.com/vutran1810/futures-hedge-bot/internal/journal"
	"github.com/vutran1810/futures-hedge-bot/pkg/reporting"
)

func main() {
	var (
		symbol   = flag.String("symbol", "XRPUSDT", "Trading pair to replay")
		dataFile = flag.String("data", "", "Historical candle CSV (timestamp,open,high,low,close,volume)")
		balance  = flag.Float64("balance", 1000, "Initial balance in USDT")
		output   = flag.String("output", "", "Excel report path (optional, .xlsx)")
		envFile  = flag.String("env", ".env", "Environment file path")
	)
	flag.Parse()

	if *dataFile == "" {
		log.Fatal("Please specify a data file with -data flag")
	}
	if _, err := os.Stat(*envFile); err == nil {
		if err := godotenv.Load(*envFile); err != nil {
			log.Printf("Warning: could not load %s: %v", *envFile, err)
		}
	}

	candles, err := backtest.LoadCSV(*dataFile, backtest.DefaultCSVMapping)
	if err != nil {
		log.Fatalf("Failed to load candle data: %v", err)
	}
	fmt.Printf("Loaded %d candles from %s\n", len(candles), *dataFile)

	cfg := backtest.DefaultConfig(*symbol)
	cfg.InitialBalance = *balance
	trades := journal.NewMemory()
	cfg.Journal = trades

	bt, err := backtest.NewBacktester(cfg)
	if err != nil {
		log.Fatalf("Invalid backtest config: %v", err)
	}

	result, err := bt.Run(context.Background(), candles)
	if err != nil {
		log.Fatalf("Backtest failed: %v", err)
	}

	reporting.RenderBacktestResult(os.Stdout, result)

	if *output != "" {
		if err := reporting.WriteBacktestXLSX(result, trades.All(), *output); err != nil {
			log.Fatalf("Failed to write report: %v", err)
		}
		fmt.Printf("Report saved to: %s\n", *output)
	}
}
