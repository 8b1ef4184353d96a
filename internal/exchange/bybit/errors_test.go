package bybit

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limit", NewAPIError(ErrCodeRateLimitExceeded, "too many visits"), true},
		{"server error", NewAPIError(502, "bad gateway"), true},
		{"insufficient funds", NewAPIError(ErrCodeInsufficientFunds, "ab not enough"), false},
		{"param error", NewAPIError(10001, "params error"), false},
		{"wrapped api error", fmt.Errorf("place order: %w", NewAPIError(ErrCodeRateLimitExceeded, "slow down")), true},
		{"network timeout", errors.New("dial tcp: i/o timeout"), true},
		{"connection refused", errors.New("connect: connection refused"), true},
		{"plain error", errors.New("something else"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestIsInsufficientFunds(t *testing.T) {
	assert.True(t, IsInsufficientFunds(NewAPIError(ErrCodeInsufficientFunds, "ab not enough")))
	assert.True(t, IsInsufficientFunds(fmt.Errorf("order: %w", NewAPIError(ErrCodeInsufficientFunds, "margin"))))
	assert.False(t, IsInsufficientFunds(NewAPIError(ErrCodeRateLimitExceeded, "too many visits")))
	assert.False(t, IsInsufficientFunds(errors.New("insufficient funds")))
}
