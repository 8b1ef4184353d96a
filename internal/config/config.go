package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vutran1810/futures-hedge-bot/internal/errors"
)

// Config is the full bot configuration. Values come from a YAML file when one
// is given, environment variables override, and anything left unset falls
// back to the production defaults. Validate must pass before the first cycle.
type Config struct {
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`

	Exchange struct {
		Name      string `yaml:"name"`
		APIKey    string `yaml:"api_key"`
		APISecret string `yaml:"api_secret"`
		Testnet   bool   `yaml:"testnet"`
		Demo      bool   `yaml:"demo"`
	} `yaml:"exchange"`

	Trading struct {
		Pairs              []string      `yaml:"pairs"`
		Interval           time.Duration `yaml:"interval"`
		AllocationStrategy string        `yaml:"allocation_strategy"`
		BaseLeverage       int           `yaml:"base_leverage"`
		MinLeverage        int           `yaml:"min_leverage"`
		MaxLeverage        int           `yaml:"max_leverage"`
	} `yaml:"trading"`

	Risk struct {
		ReservePercent      float64 `yaml:"reserve_percent"`
		BasePositionPercent float64 `yaml:"base_position_percent"`
		MinPositionPercent  float64 `yaml:"min_position_percent"`
		MaxPositionPercent  float64 `yaml:"max_position_percent"`
		MinPositionValue    float64 `yaml:"min_position_value"`
		StopLossPercent     float64 `yaml:"stop_loss_percent"`
		TakeProfitPercent   float64 `yaml:"take_profit_percent"`
		TrailingStopPercent float64 `yaml:"trailing_stop_percent"`
	} `yaml:"risk"`

	Journal struct {
		Path string `yaml:"path"`
	} `yaml:"journal"`

	Monitoring struct {
		PrometheusPort int `yaml:"prometheus_port"`
		HealthPort     int `yaml:"health_port"`
	} `yaml:"monitoring"`

	Notifications struct {
		TelegramToken  string `yaml:"telegram_token"`
		TelegramChatID string `yaml:"telegram_chat_id"`
	} `yaml:"notifications"`
}

// Default returns the production defaults: 20% reserve, 15% base position
// in [5%, 40%], 3/12/2.5 exit percents, 5-20x leverage around a base of 11.
func Default() *Config {
	cfg := &Config{}
	cfg.Environment = "development"
	cfg.LogLevel = "info"
	cfg.Exchange.Name = "bybit"
	cfg.Exchange.Testnet = true
	cfg.Trading.Pairs = []string{"XRPUSDT"}
	cfg.Trading.Interval = time.Minute
	cfg.Trading.AllocationStrategy = "equal"
	cfg.Trading.BaseLeverage = 11
	cfg.Trading.MinLeverage = 5
	cfg.Trading.MaxLeverage = 20
	cfg.Risk.ReservePercent = 20.0
	cfg.Risk.BasePositionPercent = 15.0
	cfg.Risk.MinPositionPercent = 5.0
	cfg.Risk.MaxPositionPercent = 40.0
	cfg.Risk.MinPositionValue = 10.0
	cfg.Risk.StopLossPercent = 3.0
	cfg.Risk.TakeProfitPercent = 12.0
	cfg.Risk.TrailingStopPercent = 2.5
	cfg.Journal.Path = "trades.db"
	cfg.Monitoring.PrometheusPort = 8080
	cfg.Monitoring.HealthPort = 8081
	return cfg
}

// Load builds the configuration: defaults, then the optional YAML file, then
// environment variables on top.
func Load(yamlPath string) (*Config, error) {
	cfg := Default()

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", yamlPath, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Environment = getEnv("ENV", c.Environment)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.Exchange.Name = getEnv("EXCHANGE_NAME", c.Exchange.Name)
	c.Exchange.APIKey = getEnv("EXCHANGE_API_KEY", c.Exchange.APIKey)
	c.Exchange.APISecret = getEnv("EXCHANGE_API_SECRET", c.Exchange.APISecret)
	c.Exchange.Testnet = getEnvBool("EXCHANGE_TESTNET", c.Exchange.Testnet)
	c.Exchange.Demo = getEnvBool("EXCHANGE_DEMO", c.Exchange.Demo)

	if pairs := os.Getenv("TRADING_PAIRS"); pairs != "" {
		c.Trading.Pairs = splitPairs(pairs)
	}
	c.Trading.Interval = getEnvDuration("TRADING_INTERVAL", c.Trading.Interval)
	c.Trading.AllocationStrategy = getEnv("ALLOCATION_STRATEGY", c.Trading.AllocationStrategy)
	c.Trading.BaseLeverage = getEnvInt("BASE_LEVERAGE", c.Trading.BaseLeverage)
	c.Trading.MinLeverage = getEnvInt("MIN_LEVERAGE", c.Trading.MinLeverage)
	c.Trading.MaxLeverage = getEnvInt("MAX_LEVERAGE", c.Trading.MaxLeverage)

	c.Risk.ReservePercent = getEnvFloat("RESERVE_PERCENT", c.Risk.ReservePercent)
	c.Risk.BasePositionPercent = getEnvFloat("BASE_POSITION_PERCENT", c.Risk.BasePositionPercent)
	c.Risk.MinPositionPercent = getEnvFloat("MIN_POSITION_PERCENT", c.Risk.MinPositionPercent)
	c.Risk.MaxPositionPercent = getEnvFloat("MAX_POSITION_PERCENT", c.Risk.MaxPositionPercent)
	c.Risk.MinPositionValue = getEnvFloat("MIN_POSITION_VALUE", c.Risk.MinPositionValue)
	c.Risk.StopLossPercent = getEnvFloat("STOP_LOSS_PERCENT", c.Risk.StopLossPercent)
	c.Risk.TakeProfitPercent = getEnvFloat("TAKE_PROFIT_PERCENT", c.Risk.TakeProfitPercent)
	c.Risk.TrailingStopPercent = getEnvFloat("TRAILING_STOP_PERCENT", c.Risk.TrailingStopPercent)

	c.Journal.Path = getEnv("JOURNAL_PATH", c.Journal.Path)
	c.Monitoring.PrometheusPort = getEnvInt("PROMETHEUS_PORT", c.Monitoring.PrometheusPort)
	c.Monitoring.HealthPort = getEnvInt("HEALTH_PORT", c.Monitoring.HealthPort)
	c.Notifications.TelegramToken = getEnv("TELEGRAM_BOT_TOKEN", c.Notifications.TelegramToken)
	c.Notifications.TelegramChatID = getEnv("TELEGRAM_CHAT_ID", c.Notifications.TelegramChatID)
}

// Validate checks the configuration invariants. Any error here is fatal: the
// bot must abort before the first cycle.
func (c *Config) Validate() error {
	fail := func(format string, args ...interface{}) error {
		return errors.NewBotError(errors.ErrorCategoryConfiguration, "config", "validate",
			fmt.Sprintf(format, args...))
	}

	if len(c.Trading.Pairs) == 0 {
		return fail("at least one trading pair is required")
	}
	seen := make(map[string]bool, len(c.Trading.Pairs))
	for _, pair := range c.Trading.Pairs {
		if pair == "" {
			return fail("empty trading pair")
		}
		if seen[pair] {
			return fail("duplicate trading pair %q", pair)
		}
		seen[pair] = true
	}

	if c.Trading.MinLeverage < 1 {
		return fail("min leverage must be >= 1, got %d", c.Trading.MinLeverage)
	}
	if c.Trading.MinLeverage > c.Trading.MaxLeverage {
		return fail("min leverage %d exceeds max leverage %d", c.Trading.MinLeverage, c.Trading.MaxLeverage)
	}
	if c.Trading.BaseLeverage < c.Trading.MinLeverage || c.Trading.BaseLeverage > c.Trading.MaxLeverage {
		return fail("base leverage %d outside [%d, %d]", c.Trading.BaseLeverage, c.Trading.MinLeverage, c.Trading.MaxLeverage)
	}

	if c.Risk.ReservePercent < 0 || c.Risk.ReservePercent >= 100 {
		return fail("reserve percent must be in [0, 100), got %.1f", c.Risk.ReservePercent)
	}
	if c.Risk.MinPositionPercent <= 0 || c.Risk.MinPositionPercent > c.Risk.MaxPositionPercent {
		return fail("position percent range [%.1f, %.1f] is invalid", c.Risk.MinPositionPercent, c.Risk.MaxPositionPercent)
	}
	if c.Risk.BasePositionPercent < c.Risk.MinPositionPercent || c.Risk.BasePositionPercent > c.Risk.MaxPositionPercent {
		return fail("base position percent %.1f outside [%.1f, %.1f]",
			c.Risk.BasePositionPercent, c.Risk.MinPositionPercent, c.Risk.MaxPositionPercent)
	}
	if c.Risk.MinPositionValue < 0 {
		return fail("min position value must be >= 0, got %.2f", c.Risk.MinPositionValue)
	}

	if c.Risk.StopLossPercent <= 0 || c.Risk.TakeProfitPercent <= 0 || c.Risk.TrailingStopPercent <= 0 {
		return fail("stop loss, take profit and trailing stop percents must be positive")
	}

	if c.Trading.Interval < time.Second {
		return fail("trading interval %s is below 1s", c.Trading.Interval)
	}

	return nil
}

// ReserveFraction converts the reserve percent into a fraction.
func (c *Config) ReserveFraction() float64 {
	return c.Risk.ReservePercent / 100
}

func splitPairs(raw string) []string {
	parts := strings.Split(raw, ",")
	pairs := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			pairs = append(pairs, trimmed)
		}
	}
	return pairs
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}
