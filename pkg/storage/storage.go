package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when an id does not resolve inside the caller's regiment.
var ErrNotFound = errors.New("not found")

// timeLayout is fixed width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

type DB struct {
	sql *sql.DB
	now func() time.Time
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS users (
  id          TEXT PRIMARY KEY,
  name        TEXT NOT NULL,
  discord_id  TEXT
);
CREATE TABLE IF NOT EXISTS stockpiles (
  id                 TEXT PRIMARY KEY,
  regiment_id        TEXT NOT NULL,
  name               TEXT NOT NULL,
  type               TEXT NOT NULL CHECK (type IN ('SEAPORT','STORAGE_DEPOT')),
  hex                TEXT NOT NULL,
  location_name      TEXT NOT NULL,
  last_refreshed_at  TEXT,
  created_at         TEXT NOT NULL,
  updated_at         TEXT NOT NULL,
  UNIQUE(regiment_id, name)
);
CREATE INDEX IF NOT EXISTS idx_stockpiles_regiment ON stockpiles(regiment_id);
CREATE TABLE IF NOT EXISTS stockpile_items (
  stockpile_id  TEXT NOT NULL REFERENCES stockpiles(id) ON DELETE CASCADE,
  item_code     TEXT NOT NULL,
  quantity      INTEGER NOT NULL,
  crated        INTEGER NOT NULL CHECK (crated IN (0,1)),
  confidence    REAL,
  UNIQUE(stockpile_id, item_code, crated)
);
CREATE INDEX IF NOT EXISTS idx_items_code ON stockpile_items(item_code);
CREATE TABLE IF NOT EXISTS scans (
  seq             INTEGER PRIMARY KEY AUTOINCREMENT,
  id              TEXT NOT NULL UNIQUE,
  stockpile_id    TEXT NOT NULL REFERENCES stockpiles(id) ON DELETE CASCADE,
  scanned_by      TEXT NOT NULL,
  item_count      INTEGER NOT NULL DEFAULT 0,
  ocr_confidence  REAL,
  war_number      INTEGER,
  created_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scans_history ON scans(stockpile_id, created_at, seq);
CREATE INDEX IF NOT EXISTS idx_scans_war ON scans(war_number);
CREATE TABLE IF NOT EXISTS scan_items (
  scan_id     TEXT NOT NULL REFERENCES scans(id) ON DELETE CASCADE,
  item_code   TEXT NOT NULL,
  quantity    INTEGER NOT NULL,
  crated      INTEGER NOT NULL CHECK (crated IN (0,1)),
  confidence  REAL
);
CREATE INDEX IF NOT EXISTS idx_scan_items_scan ON scan_items(scan_id);
CREATE TABLE IF NOT EXISTS refreshes (
  id            TEXT PRIMARY KEY,
  stockpile_id  TEXT NOT NULL REFERENCES stockpiles(id) ON DELETE CASCADE,
  refreshed_by  TEXT NOT NULL,
  war_number    INTEGER,
  created_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_refreshes_time ON refreshes(created_at);
CREATE TABLE IF NOT EXISTS production_orders (
  id                  TEXT PRIMARY KEY,
  regiment_id         TEXT NOT NULL,
  name                TEXT NOT NULL,
  description         TEXT,
  status              TEXT NOT NULL,
  priority            INTEGER NOT NULL DEFAULT 0,
  is_mpf              INTEGER NOT NULL DEFAULT 0,
  is_standing_order   INTEGER NOT NULL DEFAULT 0,
  linked_stockpile_id TEXT UNIQUE REFERENCES stockpiles(id) ON DELETE SET NULL,
  war_number          INTEGER,
  created_by          TEXT NOT NULL,
  created_at          TEXT NOT NULL,
  completed_at        TEXT
);
CREATE INDEX IF NOT EXISTS idx_orders_regiment ON production_orders(regiment_id);
CREATE TABLE IF NOT EXISTS production_order_items (
  order_id           TEXT NOT NULL REFERENCES production_orders(id) ON DELETE CASCADE,
  item_code          TEXT NOT NULL,
  quantity_required  INTEGER NOT NULL,
  quantity_produced  INTEGER NOT NULL DEFAULT 0,
  UNIQUE(order_id, item_code)
);
CREATE TABLE IF NOT EXISTS production_contributions (
  id          TEXT PRIMARY KEY,
  order_id    TEXT NOT NULL REFERENCES production_orders(id) ON DELETE CASCADE,
  item_code   TEXT NOT NULL,
  user_id     TEXT NOT NULL,
  quantity    INTEGER NOT NULL CHECK (quantity > 0),
  war_number  INTEGER,
  created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_contributions_time ON production_contributions(created_at);
CREATE TABLE IF NOT EXISTS operations (
  id                        TEXT PRIMARY KEY,
  regiment_id               TEXT NOT NULL,
  name                      TEXT NOT NULL,
  description               TEXT,
  status                    TEXT NOT NULL,
  location                  TEXT,
  destination_stockpile_id  TEXT REFERENCES stockpiles(id) ON DELETE SET NULL,
  war_number                INTEGER,
  created_by                TEXT NOT NULL,
  created_at                TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS operation_requirements (
  operation_id  TEXT NOT NULL REFERENCES operations(id) ON DELETE CASCADE,
  item_code     TEXT NOT NULL,
  quantity      INTEGER NOT NULL,
  priority      INTEGER NOT NULL DEFAULT 0,
  UNIQUE(operation_id, item_code)
);
    `); err != nil {
		return nil, err
	}
	return &DB{sql: db, now: time.Now}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// GetStats returns the dashboard counters of one regiment.
func (d *DB) GetStats(ctx context.Context, regimentID string) (*RegimentStats, error) {
	var s RegimentStats
	row := d.sql.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM stockpiles WHERE regiment_id = ?),
			(SELECT COALESCE(SUM(i.quantity), 0) FROM stockpile_items i JOIN stockpiles s ON s.id = i.stockpile_id WHERE s.regiment_id = ?),
			(SELECT COUNT(*) FROM operations WHERE regiment_id = ? AND status IN ('PLANNING','ACTIVE')),
			(SELECT COUNT(*) FROM production_orders WHERE regiment_id = ? AND status IN ('PENDING','IN_PROGRESS','READY_FOR_PICKUP')),
			(SELECT COUNT(*) FROM scans sc JOIN stockpiles s ON s.id = sc.stockpile_id WHERE s.regiment_id = ? AND sc.created_at >= ?)
	`, regimentID, regimentID, regimentID, regimentID, regimentID, formatTime(d.now().Add(-24*time.Hour)))
	if err := row.Scan(&s.StockpileCount, &s.TotalItems, &s.ActiveOperationCount, &s.PendingProductionCount, &s.ScansLast24Hours); err != nil {
		return nil, err
	}

	var hex, name, updated string
	err := d.sql.QueryRowContext(ctx, "SELECT hex, name, updated_at FROM stockpiles WHERE regiment_id = ? ORDER BY updated_at DESC LIMIT 1", regimentID).Scan(&hex, &name, &updated)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, err
	default:
		s.LastUpdatedStockpile = hex + " - " + name
		t := parseTime(updated)
		s.LastUpdatedAt = &t
	}
	return &s, nil
}

func newID() string {
	return uuid.NewString()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t
	}
	// Rows written by hand through `db shell` may use other layouts.
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func timePtr(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func intPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int64)
	return &v
}

func floatPtr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	v := nf.Float64
	return &v
}

func nullInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
