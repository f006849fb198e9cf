package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"squeezetrader/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = time.Second
)

// WriterConfig configures the SQLite bar writer.
type WriterConfig struct {
	DBPath     string        // path to SQLite database file, e.g. "data/bars.db"
	BatchSize  int           // bars per transaction (default 100)
	FlushDelay time.Duration // max time a bar waits before commit (default 1s)
}

// Writer is a single-goroutine SQLite writer with transaction batching.
type Writer struct {
	db         *sql.DB
	batchSize  int
	flushDelay time.Duration

	// OnCommit is called after each committed batch (for metrics).
	OnCommit func(n int, took time.Duration)
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New creates a new SQLite Writer, initializes the database with WAL mode and schema.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Set connection pool for single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	w := &Writer{db: db, batchSize: cfg.BatchSize, flushDelay: cfg.FlushDelay}
	if w.batchSize <= 0 {
		w.batchSize = defaultBatchSize
	}
	if w.flushDelay <= 0 {
		w.flushDelay = defaultFlushDelay
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return w, nil
}

func open(path string) (*sql.DB, error) {
	return sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bars (
			symbol  TEXT    NOT NULL,
			ts      INTEGER NOT NULL,
			seq     INTEGER NOT NULL,
			open    REAL    NOT NULL,
			high    REAL    NOT NULL,
			low     REAL    NOT NULL,
			close   REAL    NOT NULL,
			volume  INTEGER,
			PRIMARY KEY (symbol, ts)
		);
	`)
	return err
}

// Run reads bars from barCh and inserts them in batched transactions.
// Flushes every batchSize bars OR every flushDelay, whichever first.
// Blocks until ctx is cancelled or barCh is closed.
func (w *Writer) Run(ctx context.Context, barCh <-chan model.Bar) {
	batch := make([]model.Bar, 0, w.batchSize)
	timer := time.NewTimer(w.flushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		if err := w.insertBatch(batch); err != nil {
			log.Printf("[sqlite] batch insert error: %v", err)
		} else if w.OnCommit != nil {
			w.OnCommit(len(batch), time.Since(start))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case bar, ok := <-barCh:
			if !ok {
				flush()
				return
			}
			batch = append(batch, bar)
			if len(batch) >= w.batchSize {
				flush()
				timer.Reset(w.flushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(w.flushDelay)
		}
	}
}

// insertBatch inserts a batch of bars in a single transaction.
func (w *Writer) insertBatch(bars []model.Bar) error {
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO bars (symbol, ts, seq, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.Exec(b.Symbol, b.Time.Unix(), b.Seq, b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert bar %s@%d: %w", b.Symbol, b.Time.Unix(), err)
		}
	}

	return tx.Commit()
}

// LastTimestamp returns the close time (Unix seconds) of the newest stored bar
// for symbol, or 0 if none exist.
func (w *Writer) LastTimestamp(symbol string) (int64, error) {
	var ts sql.NullInt64
	err := w.db.QueryRow(`SELECT MAX(ts) FROM bars WHERE symbol = ?`, symbol).Scan(&ts)
	if err != nil {
		return 0, err
	}
	if !ts.Valid {
		return 0, nil
	}
	return ts.Int64, nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}

var _ model.BarWriter = (*Writer)(nil)
