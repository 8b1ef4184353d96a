package notifications

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

type TelegramNotifier struct {
	token  string
	chatID string
}

func NewTelegramNotifier(token, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		token:  token,
		chatID: chatID,
	}
}

func (t *TelegramNotifier) SendAlert(level, message string) error {
	emoji := "ℹ️"
	switch level {
	case "warning":
		emoji = "⚠️"
	case "error":
		emoji = "🚨"
	case "success":
		emoji = "✅"
	}

	text := fmt.Sprintf("%s *Hedge Bot Alert*\n\n%s", emoji, message)

	apiURL := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.token)

	data := url.Values{}
	data.Set("chat_id", t.chatID)
	data.Set("text", text)
	data.Set("parse_mode", "Markdown")

	resp, err := http.Post(apiURL, "application/x-www-form-urlencoded",
		strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	return nil
}

// NotifyTradeOpened formats and sends an open-position alert.
func NotifyTradeOpened(n Notifier, symbol, side string, contracts int, price float64, leverage int) error {
	msg := fmt.Sprintf("Opened %s %s\nContracts: %d @ $%.4f\nLeverage: %dx", side, symbol, contracts, price, leverage)
	return n.SendAlert("success", msg)
}

// NotifyTradeClosed formats and sends a close alert with realized P&L.
func NotifyTradeClosed(n Notifier, symbol string, pnl float64) error {
	level := "success"
	if pnl < 0 {
		level = "warning"
	}
	return n.SendAlert(level, fmt.Sprintf("Closed %s\nRealized P&L: $%.2f", symbol, pnl))
}

// NotifyHedgeOpened formats and sends a hedge alert.
func NotifyHedgeOpened(n Notifier, symbol string, contracts int, price float64) error {
	msg := fmt.Sprintf("Hedge opened on %s\nContracts: %d @ $%.4f", symbol, contracts, price)
	return n.SendAlert("warning", msg)
}

// NotifyCircuitBreaker alerts when a symbol's breaker trips.
func NotifyCircuitBreaker(n Notifier, symbol string, losses int) error {
	msg := fmt.Sprintf("Circuit breaker tripped on %s after %d consecutive losses. Trading halted for this pair.", symbol, losses)
	return n.SendAlert("error", msg)
}
