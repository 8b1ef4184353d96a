package bybit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	bybit_api "github.com/bybit-exchange/bybit.go.api"

	"github.com/vutran1810/futures-hedge-bot/internal/exchange"
)

// PlaceOrder sets leverage for the symbol and submits a market order for
// the given contract count.
func (c *Client) PlaceOrder(ctx context.Context, symbol string, side exchange.OrderSide, contracts int, leverage int) (*exchange.OrderResult, error) {
	if contracts <= 0 {
		return nil, fmt.Errorf("contracts must be positive, got %d", contracts)
	}
	if err := c.setLeverage(ctx, symbol, leverage); err != nil {
		return nil, err
	}

	return c.marketOrder(ctx, symbol, side, contracts, false)
}

// ClosePosition submits a reduce-only market order.
func (c *Client) ClosePosition(ctx context.Context, symbol string, side exchange.OrderSide, contracts int) (*exchange.OrderResult, error) {
	if contracts <= 0 {
		return nil, fmt.Errorf("contracts must be positive, got %d", contracts)
	}

	return c.marketOrder(ctx, symbol, side, contracts, true)
}

// AccountBalance satisfies the market data port.
func (c *Client) AccountBalance(ctx context.Context) (float64, error) {
	return c.AvailableBalance(ctx)
}

func (c *Client) marketOrder(ctx context.Context, symbol string, side exchange.OrderSide, contracts int, reduceOnly bool) (*exchange.OrderResult, error) {
	apiParams := map[string]interface{}{
		"category":  "linear",
		"symbol":    symbol,
		"side":      string(side),
		"orderType": "Market",
		"qty":       strconv.Itoa(contracts),
	}
	if reduceOnly {
		apiParams["reduceOnly"] = true
	}

	var orderID string
	err := c.retry(ctx, DefaultRetryConfig(), func() error {
		result, err := c.httpClient.NewUtaBybitServiceWithParams(apiParams).PlaceOrder(ctx)
		if err != nil {
			return err
		}
		orderID, err = parseOrderID(result)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("place order for %s: %w", symbol, err)
	}

	price, err := c.LatestPrice(ctx, symbol)
	if err != nil {
		// The order went through; price is informational only.
		price = 0
	}

	return &exchange.OrderResult{
		OrderID:   orderID,
		Symbol:    symbol,
		Side:      side,
		Contracts: contracts,
		Price:     price,
	}, nil
}

func (c *Client) setLeverage(ctx context.Context, symbol string, leverage int) error {
	params := map[string]interface{}{
		"category":     "linear",
		"symbol":       symbol,
		"buyLeverage":  strconv.Itoa(leverage),
		"sellLeverage": strconv.Itoa(leverage),
	}

	err := c.retry(ctx, DefaultRetryConfig(), func() error {
		result, err := c.httpClient.NewUtaBybitServiceWithParams(params).SetPositionLeverage(ctx)
		if err != nil {
			return err
		}
		return checkResponse(result)
	})
	if err != nil {
		// 110043 means leverage is already at the requested value.
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Code == ErrCodeLeverageNotChange {
			return nil
		}
		return fmt.Errorf("set leverage %dx for %s: %w", leverage, symbol, err)
	}

	return nil
}

func parseOrderID(response interface{}) (string, error) {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return "", fmt.Errorf("invalid response type")
	}
	if serverResp.RetCode != 0 {
		return "", NewAPIError(serverResp.RetCode, serverResp.RetMsg)
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}

	var orderResult struct {
		OrderID string `json:"orderId"`
	}
	if err := json.Unmarshal(resultBytes, &orderResult); err != nil {
		return "", fmt.Errorf("unmarshal order result: %w", err)
	}
	if orderResult.OrderID == "" {
		return "", fmt.Errorf("no order id in response")
	}

	return orderResult.OrderID, nil
}

func checkResponse(response interface{}) error {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return fmt.Errorf("invalid response type")
	}
	if serverResp.RetCode != 0 {
		return NewAPIError(serverResp.RetCode, serverResp.RetMsg)
	}
	return nil
}
