package journal

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vutran1810/futures-hedge-bot/pkg/id"
)

const schema = `
CREATE TABLE IF NOT EXISTS trades (
	id         TEXT PRIMARY KEY,
	symbol     TEXT NOT NULL,
	action     TEXT NOT NULL,
	side       TEXT NOT NULL,
	contracts  INTEGER NOT NULL,
	leverage   INTEGER NOT NULL,
	price      REAL NOT NULL,
	value      REAL NOT NULL,
	pnl        REAL NOT NULL DEFAULT 0,
	win        INTEGER NOT NULL DEFAULT 0,
	reason     TEXT,
	trade_time TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);
`

// SQLiteJournal persists trade entries to a local SQLite database.
type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init journal schema: %w", err)
	}

	return &SQLiteJournal{db: db}, nil
}

// Record inserts an entry, assigning a ULID and timestamp when missing.
func (j *SQLiteJournal) Record(e Entry) error {
	if e.ID == "" {
		e.ID = id.New()
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}

	_, err := j.db.Exec(`
		INSERT INTO trades
		(id, symbol, action, side, contracts, leverage, price, value, pnl, win, reason, trade_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Symbol, e.Action, e.Side, e.Contracts, e.Leverage,
		e.Price, e.Value, e.PnL, boolToInt(e.Win), e.Reason, e.Time,
	)
	return err
}

// Entries returns the most recent entries for a symbol, newest first.
// A limit of 0 returns everything.
func (j *SQLiteJournal) Entries(symbol string, limit int) ([]Entry, error) {
	query := `
		SELECT id, symbol, action, side, contracts, leverage, price, value, pnl, win, reason, trade_time
		FROM trades WHERE symbol = ? ORDER BY id DESC`
	args := []interface{}{symbol}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var win int
		var reason sql.NullString
		if err := rows.Scan(&e.ID, &e.Symbol, &e.Action, &e.Side, &e.Contracts, &e.Leverage,
			&e.Price, &e.Value, &e.PnL, &win, &reason, &e.Time); err != nil {
			return nil, err
		}
		e.Win = win != 0
		e.Reason = reason.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Summarize aggregates the closed trades for a symbol.
func (j *SQLiteJournal) Summarize(symbol string) (Summary, error) {
	row := j.db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(win), 0), COALESCE(SUM(pnl), 0), COALESCE(MAX(trade_time), '')
		FROM trades WHERE symbol = ? AND action = 'CLOSE'`, symbol)

	var s Summary
	var lastRaw string
	if err := row.Scan(&s.Trades, &s.Wins, &s.TotalPnL, &lastRaw); err != nil {
		return Summary{}, err
	}
	s.Symbol = symbol
	s.Losses = s.Trades - s.Wins
	if lastRaw != "" {
		if t, err := time.Parse("2006-01-02 15:04:05.999999999-07:00", lastRaw); err == nil {
			s.LastTradeAt = t
		}
	}
	return s, nil
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
