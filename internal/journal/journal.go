package journal

import (
	"sync"
	"time"

	"github.com/vutran1810/futures-hedge-bot/pkg/id"
)

// Entry is one journaled trading event. Every order fill, hedge, and
// settlement is recorded with its sizing context so sessions can be
// reconstructed after a restart.
type Entry struct {
	ID        string
	Symbol    string
	Action    string // OPEN, CLOSE, HEDGE
	Side      string // LONG, SHORT
	Contracts int
	Leverage  int
	Price     float64
	Value     float64
	PnL       float64
	Win       bool
	Reason    string
	Time      time.Time
}

// Summary aggregates a symbol's journaled history.
type Summary struct {
	Symbol      string
	Trades      int
	Wins        int
	Losses      int
	TotalPnL    float64
	LastTradeAt time.Time
}

// Journal persists trading events.
type Journal interface {
	Record(e Entry) error
	Entries(symbol string, limit int) ([]Entry, error)
	Summarize(symbol string) (Summary, error)
	Close() error
}

// Memory keeps entries in process memory. Used by backtests, where the
// full trade list feeds the report but nothing outlives the run.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Record(e Entry) error {
	if e.ID == "" {
		e.ID = id.New()
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *Memory) Entries(symbol string, limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Entry, 0, len(m.entries))
	for i := len(m.entries) - 1; i >= 0; i-- {
		if symbol != "" && m.entries[i].Symbol != symbol {
			continue
		}
		out = append(out, m.entries[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) Summarize(symbol string) (Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Summary{Symbol: symbol}
	for _, e := range m.entries {
		if e.Symbol != symbol || e.Action != "CLOSE" {
			continue
		}
		s.Trades++
		s.TotalPnL += e.PnL
		if e.Win {
			s.Wins++
		} else {
			s.Losses++
		}
		if e.Time.After(s.LastTradeAt) {
			s.LastTradeAt = e.Time
		}
	}
	return s, nil
}

func (m *Memory) Close() error { return nil }

// All returns every entry in record order.
func (m *Memory) All() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}

// Nop discards all entries.
type Nop struct{}

func (Nop) Record(Entry) error                   { return nil }
func (Nop) Entries(string, int) ([]Entry, error) { return nil, nil }
func (Nop) Summarize(string) (Summary, error)    { return Summary{}, nil }
func (Nop) Close() error                         { return nil }
