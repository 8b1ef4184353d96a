package journal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_RecordAndEntries(t *testing.T) {
	m := NewMemory()

	require.NoError(t, m.Record(Entry{Symbol: "XRPUSDT", Action: "OPEN", Side: "LONG", Contracts: 594, Price: 2.50}))
	require.NoError(t, m.Record(Entry{Symbol: "ADAUSDT", Action: "OPEN", Side: "SHORT", Contracts: 100, Price: 0.80}))
	require.NoError(t, m.Record(Entry{Symbol: "XRPUSDT", Action: "CLOSE", Side: "LONG", Contracts: 594, Price: 2.80, PnL: 178.2, Win: true}))

	entries, err := m.Entries("XRPUSDT", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "CLOSE", entries[0].Action)
	assert.Equal(t, "OPEN", entries[1].Action)
	assert.NotEmpty(t, entries[0].ID)
	assert.False(t, entries[0].Time.IsZero())

	limited, err := m.Entries("XRPUSDT", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "CLOSE", limited[0].Action)

	all := m.All()
	assert.Len(t, all, 3)
	assert.Equal(t, "XRPUSDT", all[0].Symbol)
}

func TestMemory_Summarize(t *testing.T) {
	m := NewMemory()

	require.NoError(t, m.Record(Entry{Symbol: "XRPUSDT", Action: "OPEN", Price: 2.50}))
	require.NoError(t, m.Record(Entry{Symbol: "XRPUSDT", Action: "CLOSE", PnL: 15, Win: true}))
	require.NoError(t, m.Record(Entry{Symbol: "XRPUSDT", Action: "CLOSE", PnL: -5, Win: false}))

	s, err := m.Summarize("XRPUSDT")
	require.NoError(t, err)
	assert.Equal(t, 2, s.Trades)
	assert.Equal(t, 1, s.Wins)
	assert.Equal(t, 1, s.Losses)
	assert.InDelta(t, 10.0, s.TotalPnL, 1e-9)
	assert.False(t, s.LastTradeAt.IsZero())
}
