// Package sqlite persists engine decisions to a local WAL-mode SQLite
// database for audit.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"confluence-engine/internal/model"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
)

// JournalConfig configures the decision journal.
type JournalConfig struct {
	DBPath        string        // e.g. "data/decisions.db"
	BatchSize     int           // flush after this many decisions
	FlushInterval time.Duration // or after this long, whichever comes first
}

// Journal is a single-goroutine SQLite writer with transaction batching.
type Journal struct {
	db         *sql.DB
	batchSize  int
	flushDelay time.Duration

	// OnCommit, if set, is called after each successful batch commit.
	OnCommit func(n int, took time.Duration)
}

// Open opens (or creates) the journal database in WAL mode and ensures the schema.
func Open(cfg JournalConfig) (*Journal, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	j := &Journal{db: db, batchSize: cfg.BatchSize, flushDelay: cfg.FlushInterval}
	if j.batchSize <= 0 {
		j.batchSize = defaultBatchSize
	}
	if j.flushDelay <= 0 {
		j.flushDelay = defaultFlushDelay
	}

	log.Printf("[sqlite] opened decision journal at %s", cfg.DBPath)
	return j, nil
}

// DB returns the underlying sql.DB for health checks.
func (j *Journal) DB() *sql.DB { return j.db }

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS decisions (
			id          TEXT    PRIMARY KEY,
			cycle_id    TEXT,
			symbol      TEXT    NOT NULL,
			ts          INTEGER NOT NULL,
			accepted    INTEGER NOT NULL,
			reason      TEXT,
			state       TEXT    NOT NULL,
			confidence  REAL,
			data        TEXT    NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_decisions_symbol_ts ON decisions(symbol, ts);
		CREATE INDEX IF NOT EXISTS idx_decisions_cycle ON decisions(cycle_id);
	`)
	return err
}

// Run reads decisions and inserts them in batched transactions. It flushes
// every BatchSize decisions or every FlushInterval, whichever comes first,
// and blocks until ctx is cancelled or decisions is closed.
func (j *Journal) Run(ctx context.Context, decisions <-chan model.Decision) {
	batch := make([]model.Decision, 0, j.batchSize)
	timer := time.NewTimer(j.flushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		if err := j.insertBatch(batch); err != nil {
			log.Printf("[sqlite] batch insert error: %v", err)
		} else if j.OnCommit != nil {
			j.OnCommit(len(batch), time.Since(start))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case d, ok := <-decisions:
			if !ok {
				flush()
				return
			}
			batch = append(batch, d)
			if len(batch) >= j.batchSize {
				flush()
				timer.Reset(j.flushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(j.flushDelay)
		}
	}
}

// Write inserts decisions synchronously in one transaction.
func (j *Journal) Write(decisions ...model.Decision) error {
	if len(decisions) == 0 {
		return nil
	}
	return j.insertBatch(decisions)
}

func (j *Journal) insertBatch(decisions []model.Decision) error {
	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO decisions (id, cycle_id, symbol, ts, accepted, reason, state, confidence, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, d := range decisions {
		data, err := json.Marshal(d)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("marshal decision %s: %w", d.ID, err)
		}

		var reason sql.NullString
		state := d.Capital.State
		if d.Result != nil {
			state = d.Result.GuardState
			if d.Result.RejectReason != "" {
				reason = sql.NullString{String: string(d.Result.RejectReason), Valid: true}
			}
		}
		var confidence sql.NullFloat64
		if d.Signal != nil {
			confidence = sql.NullFloat64{Float64: d.Signal.Confidence, Valid: true}
		}

		if _, err := stmt.Exec(
			d.ID, d.CycleID, d.Symbol, d.TS.UnixMilli(),
			d.Accepted(), reason, string(state), confidence, string(data),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert decision %s: %w", d.ID, err)
		}
	}

	return tx.Commit()
}

// Recent returns up to limit decisions for symbol, newest first. An empty
// symbol matches every symbol.
func (j *Journal) Recent(ctx context.Context, symbol string, limit int) ([]model.Decision, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT data FROM decisions ORDER BY ts DESC, rowid DESC LIMIT ?`
	args := []any{limit}
	if symbol != "" {
		query = `SELECT data FROM decisions WHERE symbol = ? ORDER BY ts DESC, rowid DESC LIMIT ?`
		args = []any{symbol, limit}
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query decisions: %w", err)
	}
	defer rows.Close()

	var out []model.Decision
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("sqlite scan decision: %w", err)
		}
		var d model.Decision
		if err := json.Unmarshal([]byte(data), &d); err != nil {
			return nil, fmt.Errorf("unmarshal decision: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}
