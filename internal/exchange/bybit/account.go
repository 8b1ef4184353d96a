package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
)

// AvailableBalance returns the total available USDT balance of the unified
// account.
func (c *Client) AvailableBalance(ctx context.Context) (float64, error) {
	params := map[string]interface{}{
		"accountType": "UNIFIED",
		"coin":        "USDT",
	}

	var balance float64
	err := c.retry(ctx, DefaultRetryConfig(), func() error {
		result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetAccountWallet(ctx)
		if err != nil {
			return err
		}
		balance, err = parseWalletBalance(result)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("get account balance: %w", err)
	}

	return balance, nil
}

func parseWalletBalance(response interface{}) (float64, error) {
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

	var walletResult struct {
		List []struct {
			TotalAvailableBalance string `json:"totalAvailableBalance"`
			Coin                  []struct {
				Coin             string `json:"coin"`
				AvailableToTrade string `json:"availableToTrade"`
				WalletBalance    string `json:"walletBalance"`
			} `json:"coin"`
		} `json:"list"`
	}

	if err := json.Unmarshal(resultBytes, &walletResult); err != nil {
		return 0, fmt.Errorf("unmarshal wallet result: %w", err)
	}
	if len(walletResult.List) == 0 {
		return 0, fmt.Errorf("no account data found")
	}

	account := walletResult.List[0]
	if account.TotalAvailableBalance != "" {
		return parseFloat64(account.TotalAvailableBalance), nil
	}

	for _, coin := range account.Coin {
		if coin.Coin == "USDT" {
			if coin.AvailableToTrade != "" {
				return parseFloat64(coin.AvailableToTrade), nil
			}
			return parseFloat64(coin.WalletBalance), nil
		}
	}

	return 0, fmt.Errorf("USDT balance not found in account")
}

func parseFloat64(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func parseInt64(s string) int64 {
	i, _ := strconv.ParseInt(s, 10, 64)
	return i
}
