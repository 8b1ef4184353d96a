package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/vutran1810/futures-hedge-bot/internal/bot"
	"github.com/vutran1810/futures-hedge-bot/internal/config"
	"github.com/vutran1810/futures-hedge-bot/internal/exchange/bybit"
	"github.com/vutran1810/futures-hedge-bot/internal/journal"
	"github.com/vutran1810/futures-hedge-bot/internal/logger"
	"github.com/vutran1810/futures-hedge-bot/internal/monitoring"
	"github.com/vutran1810/futures-hedge-bot/internal/notifications"
	"github.com/vutran1810/futures-hedge-bot/internal/portfolio"
	"github.com/vutran1810/futures-hedge-bot/internal/risk"
	"github.com/vutran1810/futures-hedge-bot/internal/strategy"
)

func main() {
	var (
		configFile = flag.String("config", "", "Configuration file (YAML)")
		envFile    = flag.String("env", ".env", "Environment file path")
	)
	flag.Parse()

	if err := loadEnvFile(*envFile); err != nil {
		log.Printf("No env file loaded (%v), using process environment", err)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("Bot exited with error: %v", err)
	}
}

func run(cfg *config.Config) error {
	fileLog, err := logger.NewLogger("hedge-bot")
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer fileLog.Close()
	log.Printf("Logging to %s", fileLog.GetLogPath())

	client := bybit.NewClient(bybit.Config{
		APIKey:    cfg.Exchange.APIKey,
		APISecret: cfg.Exchange.APISecret,
		Testnet:   cfg.Exchange.Testnet,
		Demo:      cfg.Exchange.Demo,
	})
	log.Printf("Exchange: %s (%s)", cfg.Exchange.Name, client.Environment())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	balance, err := client.AvailableBalance(ctx)
	cancel()
	if err != nil {
		return fmt.Errorf("fetch initial balance: %w", err)
	}
	log.Printf("Initial balance: $%.2f across %d pairs", balance, len(cfg.Trading.Pairs))

	allocStrategy, err := portfolio.ParseStrategy(cfg.Trading.AllocationStrategy)
	if err != nil {
		return fmt.Errorf("parse allocation strategy: %w", err)
	}
	ledger, err := portfolio.NewLedger(balance, cfg.ReserveFraction(),
		cfg.Risk.MinPositionValue, allocStrategy, cfg.Trading.Pairs)
	if err != nil {
		return fmt.Errorf("build ledger: %w", err)
	}
	leverage, err := portfolio.NewDynamicLeverage(cfg.Trading.MinLeverage, cfg.Trading.BaseLeverage, cfg.Trading.MaxLeverage)
	if err != nil {
		return fmt.Errorf("build leverage selector: %w", err)
	}

	tradeJournal, err := journal.NewSQLite(cfg.Journal.Path)
	if err != nil {
		return fmt.Errorf("open trade journal: %w", err)
	}
	defer tradeJournal.Close()

	var notifier notifications.Notifier = notifications.NopNotifier{}
	if cfg.Notifications.TelegramToken != "" {
		notifier = notifications.NewTelegramNotifier(
			cfg.Notifications.TelegramToken, cfg.Notifications.TelegramChatID)
	} else {
		log.Println("Telegram notifications disabled (no token configured)")
	}

	exitCfg := strategy.DefaultConfig()
	exitCfg.StopLossPercent = cfg.Risk.StopLossPercent
	exitCfg.TakeProfitPercent = cfg.Risk.TakeProfitPercent
	exitCfg.TrailingStopPercent = cfg.Risk.TrailingStopPercent

	engine, err := bot.NewEngine(bot.Params{
		Funding: risk.NewFundingStrategy(risk.Config{
			ReservePercent:      cfg.Risk.ReservePercent,
			BasePositionPercent: cfg.Risk.BasePositionPercent,
			MinPositionPercent:  cfg.Risk.MinPositionPercent,
			MaxPositionPercent:  cfg.Risk.MaxPositionPercent,
			MinPositionValue:    cfg.Risk.MinPositionValue,
		}),
		Ledger:   ledger,
		Leverage: leverage,
		Exec:     client,
		Journal:  tradeJournal,
		Notifier: notifier,
		Log:      fileLog,
		ExitCfg:  exitCfg,
	})
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	health := monitoring.NewHealthChecker()
	liveBot, err := bot.NewLiveBot(bot.LiveParams{
		Engine:   engine,
		Market:   client,
		Signals:  strategy.NewMomentumSignal(client),
		Log:      fileLog,
		Health:   health,
		Interval: cfg.Trading.Interval,
	})
	if err != nil {
		return fmt.Errorf("build live bot: %w", err)
	}

	metricsServer := startServer(cfg.Monitoring.PrometheusPort, "/metrics", monitoring.NewMetricsHandler())
	healthServer := startServer(cfg.Monitoring.HealthPort, "/health", health)

	if err := liveBot.Start(context.Background()); err != nil {
		return fmt.Errorf("start live bot: %w", err)
	}
	log.Printf("Bot running, evaluating every %s", cfg.Trading.Interval)

	if err := notifier.SendAlert("info", "Hedge bot started"); err != nil {
		log.Printf("Startup notification failed: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Printf("Received %s, shutting down", sig)

	liveBot.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
	_ = healthServer.Shutdown(shutdownCtx)

	log.Println("Shutdown complete")
	return nil
}

func startServer(port int, path string, handler http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, handler)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server on %s failed: %v", srv.Addr, err)
		}
	}()
	return srv
}

func loadEnvFile(envFile string) error {
	if _, err := os.Stat(envFile); err == nil {
		return godotenv.Load(envFile)
	}
	return fmt.Errorf("env file %s not found", envFile)
}
