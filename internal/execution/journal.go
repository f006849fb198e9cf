package execution

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Journal persists trade fills to SQLite for analysis and audit.
type Journal struct {
	mu sync.Mutex
	db *sql.DB
}

// NewJournal opens (or creates) a SQLite journal database.
func NewJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_sync=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS fills (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id    TEXT NOT NULL,
		name        TEXT NOT NULL,
		symbol      TEXT NOT NULL,
		action      TEXT NOT NULL,
		qty         INTEGER NOT NULL,
		price       REAL NOT NULL,
		slippage    REAL DEFAULT 0,
		reason      TEXT,
		filled_at   DATETIME NOT NULL,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_fills_symbol ON fills(symbol);
	CREATE INDEX IF NOT EXISTS idx_fills_filled_at ON fills(filled_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}

	log.Printf("[journal] opened trade journal at %s", dbPath)
	return &Journal{db: db}, nil
}

// RecordFill persists a fill to the journal.
func (j *Journal) RecordFill(fill Fill) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(
		`INSERT INTO fills (order_id, name, symbol, action, qty, price, slippage, reason, filled_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fill.OrderID,
		fill.Name,
		fill.Symbol,
		string(fill.Action),
		fill.Qty,
		fill.Price,
		fill.Slippage,
		fill.Reason,
		fill.FilledAt.UTC().Format(time.RFC3339),
	)
	return err
}

// FillRecord represents a row from the fills table.
type FillRecord struct {
	ID       int64   `json:"id"`
	OrderID  string  `json:"order_id"`
	Name     string  `json:"name"`
	Symbol   string  `json:"symbol"`
	Action   string  `json:"action"`
	Qty      int64   `json:"qty"`
	Price    float64 `json:"price"`
	Slippage float64 `json:"slippage"`
	Reason   string  `json:"reason"`
	FilledAt string  `json:"filled_at"`
}

// GetFills returns the last N fills, newest first.
func (j *Journal) GetFills(limit int) ([]FillRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(
		`SELECT id, order_id, name, symbol, action, qty, price, slippage, COALESCE(reason, ''), filled_at
		 FROM fills ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fills []FillRecord
	for rows.Next() {
		var f FillRecord
		if err := rows.Scan(&f.ID, &f.OrderID, &f.Name, &f.Symbol, &f.Action,
			&f.Qty, &f.Price, &f.Slippage, &f.Reason, &f.FilledAt); err != nil {
			continue
		}
		fills = append(fills, f)
	}
	return fills, rows.Err()
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}
