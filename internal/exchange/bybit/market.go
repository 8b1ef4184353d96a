package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"

	"github.com/vutran1810/futures-hedge-bot/pkg/types"
)

const (
	klineInterval   = "60" // 1h candles
	volatilityBars  = 24
	volumeTrendBars = 6
)

// LatestPrice returns the last traded price for a linear perpetual symbol.
func (c *Client) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	params := map[string]interface{}{
		"category": "linear",
		"symbol":   symbol,
	}

	var price float64
	err := c.retry(ctx, DefaultRetryConfig(), func() error {
		result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
		if err != nil {
			return err
		}
		price, err = parseLastPrice(result)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("get latest price for %s: %w", symbol, err)
	}

	return price, nil
}

// Snapshot builds the per-cycle market view for a symbol: last price,
// volatility as the standard deviation of hourly returns, and the recent
// volume trend.
func (c *Client) Snapshot(ctx context.Context, symbol string) (types.MarketSnapshot, error) {
	candles, err := c.Klines(ctx, symbol, volatilityBars+1)
	if err != nil {
		return types.MarketSnapshot{}, err
	}
	if len(candles) < 2 {
		return types.MarketSnapshot{}, fmt.Errorf("not enough kline data for %s", symbol)
	}

	return types.MarketSnapshot{
		Symbol:      symbol,
		Price:       candles[len(candles)-1].Close,
		Volatility:  returnsVolatility(candles),
		VolumeTrend: volumeTrend(candles),
		Timestamp:   time.Now(),
	}, nil
}

// Klines fetches the most recent hourly candles, oldest first.
func (c *Client) Klines(ctx context.Context, symbol string, limit int) ([]types.OHLCV, error) {
	params := map[string]interface{}{
		"category": "linear",
		"symbol":   symbol,
		"interval": klineInterval,
		"limit":    limit,
	}

	var candles []types.OHLCV
	err := c.retry(ctx, DefaultRetryConfig(), func() error {
		result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetMarketKline(ctx)
		if err != nil {
			return err
		}
		candles, err = parseKlines(result)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get klines for %s: %w", symbol, err)
	}

	return candles, nil
}

func parseLastPrice(response interface{}) (float64, error) {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return 0, fmt.Errorf("invalid response type")
	}
	if serverResp.RetCode != 0 {
		return 0, NewAPIError(serverResp.RetCode, serverResp.RetMsg)
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return 0, fmt.Errorf("marshal result: %w", err)
	}

	var tickerResult struct {
		List []struct {
			Symbol    string `json:"symbol"`
			LastPrice string `json:"lastPrice"`
		} `json:"list"`
	}
	if err := json.Unmarshal(resultBytes, &tickerResult); err != nil {
		return 0, fmt.Errorf("unmarshal ticker result: %w", err)
	}
	if len(tickerResult.List) == 0 {
		return 0, fmt.Errorf("no ticker data found")
	}

	return parseFloat64(tickerResult.List[0].LastPrice), nil
}

func parseKlines(response interface{}) ([]types.OHLCV, error) {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return nil, fmt.Errorf("invalid response type")
	}
	if serverResp.RetCode != 0 {
		return nil, NewAPIError(serverResp.RetCode, serverResp.RetMsg)
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}

	var klineResult struct {
		List [][]string `json:"list"`
	}
	if err := json.Unmarshal(resultBytes, &klineResult); err != nil {
		return nil, fmt.Errorf("unmarshal kline result: %w", err)
	}

	// Bybit returns newest first: [startTime, open, high, low, close, volume, turnover].
	candles := make([]types.OHLCV, 0, len(klineResult.List))
	for i := len(klineResult.List) - 1; i >= 0; i-- {
		item := klineResult.List[i]
		if len(item) < 7 {
			continue
		}
		candles = append(candles, types.OHLCV{
			Timestamp: time.UnixMilli(parseInt64(item[0])),
			Open:      parseFloat64(item[1]),
			High:      parseFloat64(item[2]),
			Low:       parseFloat64(item[3]),
			Close:     parseFloat64(item[4]),
			Volume:    parseFloat64(item[5]),
		})
	}

	return candles, nil
}

// returnsVolatility is the standard deviation of close-to-close returns.
func returnsVolatility(candles []types.OHLCV) float64 {
	returns := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		if candles[i-1].Close == 0 {
			continue
		}
		returns = append(returns, (candles[i].Close-candles[i-1].Close)/candles[i-1].Close)
	}
	if len(returns) == 0 {
		return 0
	}

	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))

	return math.Sqrt(variance)
}

// volumeTrend compares recent volume against the preceding window.
func volumeTrend(candles []types.OHLCV) types.VolumeTrend {
	if len(candles) < 2*volumeTrendBars {
		return types.VolumeFlat
	}

	var recent, prior float64
	n := len(candles)
	for _, c := range candles[n-volumeTrendBars:] {
		recent += c.Volume
	}
	for _, c := range candles[n-2*volumeTrendBars : n-volumeTrendBars] {
		prior += c.Volume
	}
	if prior == 0 {
		return types.VolumeFlat
	}

	ratio := recent / prior
	switch {
	case ratio > 1.2:
		return types.VolumeRising
	case ratio < 0.8:
		return types.VolumeFalling
	default:
		return types.VolumeFlat
	}
}
