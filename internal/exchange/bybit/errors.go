package bybit

import (
	"errors"
	"fmt"
	"strings"
)

// Bybit v5 return codes the bot cares about.
const (
	ErrCodeRateLimitExceeded = 10006
	ErrCodeInsufficientFunds = 110007
	ErrCodeLeverageNotChange = 110043
)

// APIError is a non-zero retCode from the Bybit v5 API.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bybit api error %d: %s", e.Code, e.Message)
}

// NewAPIError creates an APIError from a response code and message.
func NewAPIError(code int, message string) *APIError {
	return &APIError{Code: code, Message: message}
}

// IsRetryable reports whether an error is worth retrying: rate limits,
// transient server errors, or network failures.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case ErrCodeRateLimitExceeded, 500, 502, 503, 504:
			return true
		}
		return false
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset")
}

// IsInsufficientFunds reports whether the exchange rejected an order for
// lack of margin.
func IsInsufficientFunds(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == ErrCodeInsufficientFunds
}
