package detectionlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MSB0095/sol-beast-sub004/internal/logger"
)

// Record is one detection verdict, accepted or rejected. Persisted so a
// restart does not erase what the engine saw and why it acted.
type Record struct {
	ID        int64  `json:"id"`
	Timestamp int64  `json:"ts"`
	Signature string `json:"signature"`
	Mint      string `json:"mint"`
	Name      string `json:"name,omitempty"`
	Symbol    string `json:"symbol,omitempty"`
	Creator   string `json:"creator,omitempty"`
	Curve     string `json:"curve"`
	// PriceSOL and LiquiditySOL are decimal strings; empty when the curve
	// fetch failed before pricing.
	PriceSOL     string `json:"price_sol,omitempty"`
	LiquiditySOL string `json:"liquidity_sol,omitempty"`
	Accepted     bool   `json:"accepted"`
	Reason       string `json:"reason,omitempty"`
	BuySignature string `json:"buy_signature,omitempty"`
}

// Store keeps the detection log in its own SQLite file, separate from the
// intent journal so dashboard reads never contend with trade writes.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("detection log path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS detections (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    ts            INTEGER NOT NULL,
    signature     TEXT NOT NULL,
    mint          TEXT NOT NULL,
    name          TEXT NOT NULL DEFAULT '',
    symbol        TEXT NOT NULL DEFAULT '',
    creator       TEXT NOT NULL DEFAULT '',
    curve         TEXT NOT NULL DEFAULT '',
    price_sol     TEXT NOT NULL DEFAULT '',
    liquidity_sol TEXT NOT NULL DEFAULT '',
    accepted      INTEGER NOT NULL,
    reason        TEXT NOT NULL DEFAULT '',
    buy_signature TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_detections_ts ON detections(ts);
CREATE INDEX IF NOT EXISTS idx_detections_mint ON detections(mint);
`)
	return err
}

// Append is best effort: a logging failure must never block detection.
func (s *Store) Append(ctx context.Context, rec Record) {
	if rec.Timestamp == 0 {
		rec.Timestamp = time.Now().Unix()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO detections (ts, signature, mint, name, symbol, creator, curve, price_sol, liquidity_sol, accepted, reason, buy_signature)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Timestamp, rec.Signature, rec.Mint, rec.Name, rec.Symbol, rec.Creator, rec.Curve,
		rec.PriceSOL, rec.LiquiditySOL, boolToInt(rec.Accepted), rec.Reason, rec.BuySignature)
	if err != nil {
		logger.Warnf("[STORE] detection append %s: %v", rec.Signature, err)
	}
}

// Recent returns the newest detections, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx, `
SELECT id, ts, signature, mint, name, symbol, creator, curve, price_sol, liquidity_sol, accepted, reason, buy_signature
FROM detections ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var accepted int
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.Signature, &rec.Mint, &rec.Name, &rec.Symbol,
			&rec.Creator, &rec.Curve, &rec.PriceSOL, &rec.LiquiditySOL, &accepted, &rec.Reason, &rec.BuySignature); err != nil {
			return nil, err
		}
		rec.Accepted = accepted != 0
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
