package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// FindCurrentItems returns the current item rows of a regiment. A non-empty
// stockpileID limits the result to that stockpile.
func (d *DB) FindCurrentItems(ctx context.Context, regimentID, stockpileID string) ([]ItemRow, error) {
	q := `SELECT i.stockpile_id, i.item_code, i.quantity, i.crated, i.confidence
		FROM stockpile_items i JOIN stockpiles s ON s.id = i.stockpile_id
		WHERE s.regiment_id = ?`
	args := []interface{}{regimentID}
	if stockpileID != "" {
		q += " AND i.stockpile_id = ?"
		args = append(args, stockpileID)
	}
	q += " ORDER BY i.stockpile_id, i.item_code, i.crated"

	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ItemRow
	for rows.Next() {
		var (
			r      ItemRow
			crated int
			conf   sql.NullFloat64
		)
		if err := rows.Scan(&r.StockpileID, &r.ItemCode, &r.Quantity, &crated, &conf); err != nil {
			return nil, err
		}
		r.Crated = crated == 1
		r.Confidence = floatPtr(conf)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReplaceCurrentItems records a new scan and swaps the stockpile's current
// items for the scanned ones. Everything happens in one transaction.
func (d *DB) ReplaceCurrentItems(ctx context.Context, in ScanInput) (Scan, error) {
	if in.StockpileID == "" || in.ScannedByUserID == "" {
		return Scan{}, errors.New("invalid scan identifiers")
	}
	items := mergeScanItems(in.Items)
	created := in.CreatedAt
	if created.IsZero() {
		created = d.now()
	}
	scan := Scan{
		ID:              newID(),
		StockpileID:     in.StockpileID,
		ScannedByUserID: in.ScannedByUserID,
		ItemCount:       len(items),
		OCRConfidence:   averageConfidence(items),
		WarNumber:       in.WarNumber,
		CreatedAt:       created.UTC(),
	}

	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return Scan{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM stockpile_items WHERE stockpile_id = ?", in.StockpileID); err != nil {
		return Scan{}, err
	}

	var res sql.Result
	res, err = tx.ExecContext(ctx, "INSERT INTO scans(id, stockpile_id, scanned_by, item_count, ocr_confidence, war_number, created_at) VALUES(?,?,?,?,?,?,?)",
		scan.ID, scan.StockpileID, scan.ScannedByUserID, scan.ItemCount, nullFloat(scan.OCRConfidence), nullInt(scan.WarNumber), formatTime(scan.CreatedAt))
	if err != nil {
		return Scan{}, err
	}
	if scan.Seq, err = res.LastInsertId(); err != nil {
		return Scan{}, err
	}

	var curStmt, scanStmt *sql.Stmt
	if curStmt, err = tx.PrepareContext(ctx, "INSERT INTO stockpile_items(stockpile_id, item_code, quantity, crated, confidence) VALUES(?,?,?,?,?)"); err != nil {
		return Scan{}, err
	}
	defer curStmt.Close()
	if scanStmt, err = tx.PrepareContext(ctx, "INSERT INTO scan_items(scan_id, item_code, quantity, crated, confidence) VALUES(?,?,?,?,?)"); err != nil {
		return Scan{}, err
	}
	defer scanStmt.Close()

	for _, it := range items {
		if _, err = curStmt.ExecContext(ctx, in.StockpileID, it.ItemCode, it.Quantity, boolToInt(it.Crated), nullFloat(it.Confidence)); err != nil {
			return Scan{}, err
		}
		if _, err = scanStmt.ExecContext(ctx, scan.ID, it.ItemCode, it.Quantity, boolToInt(it.Crated), nullFloat(it.Confidence)); err != nil {
			return Scan{}, err
		}
	}

	if _, err = tx.ExecContext(ctx, "UPDATE stockpiles SET updated_at = ? WHERE id = ?", formatTime(d.now()), in.StockpileID); err != nil {
		return Scan{}, err
	}
	if err = tx.Commit(); err != nil {
		return Scan{}, err
	}
	return scan, nil
}

func averageConfidence(items []ScanItem) *float64 {
	var sum float64
	var n int
	for _, it := range items {
		if it.Confidence != nil {
			sum += *it.Confidence
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	return &avg
}

const scanColumns = "sc.seq, sc.id, sc.stockpile_id, sc.scanned_by, sc.item_count, sc.ocr_confidence, sc.war_number, sc.created_at"

func scanScan(row interface{ Scan(...interface{}) error }) (Scan, error) {
	var (
		s       Scan
		conf    sql.NullFloat64
		war     sql.NullInt64
		created string
	)
	if err := row.Scan(&s.Seq, &s.ID, &s.StockpileID, &s.ScannedByUserID, &s.ItemCount, &conf, &war, &created); err != nil {
		return Scan{}, err
	}
	s.OCRConfidence = floatPtr(conf)
	s.WarNumber = intPtr(war)
	s.CreatedAt = parseTime(created)
	return s, nil
}

// FindScans returns the regiment's scans matching q, newest first.
func (d *DB) FindScans(ctx context.Context, regimentID string, q ScanQuery) ([]Scan, error) {
	where := "WHERE s.regiment_id = ?"
	args := []interface{}{regimentID}
	if q.StockpileID != "" {
		where += " AND sc.stockpile_id = ?"
		args = append(args, q.StockpileID)
	}
	if !q.Since.IsZero() {
		where += " AND sc.created_at >= ?"
		args = append(args, formatTime(q.Since))
	}
	if q.WarNumber != nil {
		where += " AND sc.war_number = ?"
		args = append(args, *q.WarNumber)
	}
	query := "SELECT " + scanColumns + " FROM scans sc JOIN stockpiles s ON s.id = sc.stockpile_id " + where + " ORDER BY sc.created_at DESC, sc.seq DESC"
	if q.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, q.Limit, q.Offset)
	}

	rows, err := d.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Scan
	for rows.Next() {
		s, err := scanScan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// FindScanItems loads the snapshot lines of the given scans keyed by scan id.
// Scans without lines map to an empty slice.
func (d *DB) FindScanItems(ctx context.Context, scanIDs ...string) (map[string][]ScanItem, error) {
	out := make(map[string][]ScanItem, len(scanIDs))
	if len(scanIDs) == 0 {
		return out, nil
	}
	args := make([]interface{}, len(scanIDs))
	for i, id := range scanIDs {
		args[i] = id
		out[id] = []ScanItem{}
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(scanIDs)), ",")
	rows, err := d.sql.QueryContext(ctx, "SELECT scan_id, item_code, quantity, crated, confidence FROM scan_items WHERE scan_id IN ("+placeholders+") ORDER BY rowid", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			it     ScanItem
			crated int
			conf   sql.NullFloat64
		)
		if err := rows.Scan(&it.ScanID, &it.ItemCode, &it.Quantity, &crated, &conf); err != nil {
			return nil, err
		}
		it.Crated = crated == 1
		it.Confidence = floatPtr(conf)
		out[it.ScanID] = append(out[it.ScanID], it)
	}
	return out, rows.Err()
}

// FindPreviousScan returns the scan immediately preceding s in its stockpile's
// history, or nil when s is the first one.
func (d *DB) FindPreviousScan(ctx context.Context, s Scan) (*Scan, error) {
	at := formatTime(s.CreatedAt)
	row := d.sql.QueryRowContext(ctx, "SELECT "+scanColumns+` FROM scans sc
		WHERE sc.stockpile_id = ? AND (sc.created_at < ? OR (sc.created_at = ? AND sc.seq < ?))
		ORDER BY sc.created_at DESC, sc.seq DESC LIMIT 1`, s.StockpileID, at, at, s.Seq)
	prev, err := scanScan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("previous scan of %s: %w", s.ID, err)
	}
	return &prev, nil
}
