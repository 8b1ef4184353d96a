package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJournal(t *testing.T) *SQLiteJournal {
	t.Helper()

	j, err := NewSQLite(filepath.Join(t.TempDir(), "trades.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	return j
}

func TestRecordAndEntries(t *testing.T) {
	t.Parallel()

	j := newTestJournal(t)

	open := Entry{
		Symbol:    "XRPUSDT",
		Action:    "OPEN",
		Side:      "LONG",
		Contracts: 594,
		Leverage:  12,
		Price:     0.25,
		Value:     148.50,
		Reason:    "signal strength 85",
		Time:      time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, j.Record(open))

	clos := Entry{
		Symbol:    "XRPUSDT",
		Action:    "CLOSE",
		Side:      "SHORT",
		Contracts: 594,
		Leverage:  12,
		Price:     0.28,
		Value:     166.32,
		PnL:       17.82,
		Win:       true,
		Reason:    "take profit",
		Time:      time.Date(2026, 8, 1, 14, 0, 0, 0, time.UTC),
	}
	require.NoError(t, j.Record(clos))

	entries, err := j.Entries("XRPUSDT", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// ULIDs assigned at insert time sort newest first.
	assert.Equal(t, "CLOSE", entries[0].Action)
	assert.Equal(t, "OPEN", entries[1].Action)
	assert.NotEmpty(t, entries[0].ID)
	assert.True(t, entries[0].Win)
	assert.InDelta(t, 17.82, entries[0].PnL, 1e-9)
	assert.Equal(t, 594, entries[1].Contracts)
	assert.Equal(t, "signal strength 85", entries[1].Reason)
}

func TestEntries_LimitAndIsolation(t *testing.T) {
	t.Parallel()

	j := newTestJournal(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, j.Record(Entry{Symbol: "ADAUSDT", Action: "OPEN", Side: "LONG", Contracts: 10, Leverage: 5, Price: 0.5, Value: 5}))
	}
	require.NoError(t, j.Record(Entry{Symbol: "SOLUSDT", Action: "OPEN", Side: "SHORT", Contracts: 1, Leverage: 5, Price: 150, Value: 150}))

	entries, err := j.Entries("ADAUSDT", 3)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	other, err := j.Entries("SOLUSDT", 0)
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	j := newTestJournal(t)

	require.NoError(t, j.Record(Entry{Symbol: "XRPUSDT", Action: "CLOSE", Side: "SHORT", Contracts: 100, Leverage: 10, Price: 2.6, Value: 260, PnL: 10, Win: true}))
	require.NoError(t, j.Record(Entry{Symbol: "XRPUSDT", Action: "CLOSE", Side: "SHORT", Contracts: 100, Leverage: 10, Price: 2.4, Value: 240, PnL: -10, Win: false}))
	require.NoError(t, j.Record(Entry{Symbol: "XRPUSDT", Action: "CLOSE", Side: "SHORT", Contracts: 100, Leverage: 10, Price: 2.7, Value: 270, PnL: 20, Win: true}))
	// Opens are excluded from the summary.
	require.NoError(t, j.Record(Entry{Symbol: "XRPUSDT", Action: "OPEN", Side: "LONG", Contracts: 100, Leverage: 10, Price: 2.5, Value: 250}))

	s, err := j.Summarize("XRPUSDT")
	require.NoError(t, err)
	assert.Equal(t, 3, s.Trades)
	assert.Equal(t, 2, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.InDelta(t, 20.0, s.TotalPnL, 1e-9)
}

func TestSummarize_EmptySymbol(t *testing.T) {
	t.Parallel()

	j := newTestJournal(t)

	s, err := j.Summarize("UNKNOWN")
	require.NoError(t, err)
	assert.Zero(t, s.Trades)
	assert.Zero(t, s.TotalPnL)
}
