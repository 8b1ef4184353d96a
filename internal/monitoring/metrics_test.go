package monitoring

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordRealizedPnL_AcceptsLosses(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordRealizedPnL("SOLUSDT", 25.0)
		RecordRealizedPnL("SOLUSDT", -40.0)
	})

	got := testutil.ToFloat64(realizedPnL.WithLabelValues("SOLUSDT"))
	assert.InDelta(t, -15.0, got, 1e-9)
}

func TestRecordTrade_ObservesOpenValueOnly(t *testing.T) {
	RecordTrade("DOTUSDT", "OPEN", "LONG", 120.0)
	RecordTrade("DOTUSDT", "CLOSE", "LONG", 130.0)

	opens := testutil.ToFloat64(tradesTotal.WithLabelValues("DOTUSDT", "OPEN", "LONG"))
	closes := testutil.ToFloat64(tradesTotal.WithLabelValues("DOTUSDT", "CLOSE", "LONG"))
	assert.Equal(t, 1.0, opens)
	assert.Equal(t, 1.0, closes)
}
