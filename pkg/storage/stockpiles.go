package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// CreateStockpile inserts a new stockpile and fills in its id and timestamps.
func (d *DB) CreateStockpile(ctx context.Context, s *Stockpile) error {
	if s.RegimentID == "" || strings.TrimSpace(s.Name) == "" {
		return errors.New("invalid stockpile identifiers")
	}
	if !s.Type.Valid() {
		return fmt.Errorf("invalid stockpile type %q", s.Type)
	}
	now := d.now().UTC()
	if s.ID == "" {
		s.ID = newID()
	}
	s.Name = strings.TrimSpace(s.Name)
	s.Hex = NormalizeHex(s.Hex)
	s.CreatedAt, s.UpdatedAt = now, now
	_, err := d.sql.ExecContext(ctx, `INSERT INTO stockpiles(id, regiment_id, name, type, hex, location_name, last_refreshed_at, created_at, updated_at) VALUES(?,?,?,?,?,?,?,?,?)`,
		s.ID, s.RegimentID, s.Name, string(s.Type), s.Hex, s.LocationName, nullTime(s.LastRefreshedAt), formatTime(now), formatTime(now))
	return err
}

const stockpileColumns = "id, regiment_id, name, type, hex, location_name, last_refreshed_at, created_at, updated_at"

func scanStockpile(row interface{ Scan(...interface{}) error }) (Stockpile, error) {
	var (
		s                Stockpile
		typ              string
		refreshed        sql.NullString
		created, updated string
	)
	if err := row.Scan(&s.ID, &s.RegimentID, &s.Name, &typ, &s.Hex, &s.LocationName, &refreshed, &created, &updated); err != nil {
		return Stockpile{}, err
	}
	s.Type = StockpileType(typ)
	s.LastRefreshedAt = timePtr(refreshed)
	s.CreatedAt = parseTime(created)
	s.UpdatedAt = parseTime(updated)
	return s, nil
}

// GetStockpile returns a stockpile of the regiment, or ErrNotFound.
func (d *DB) GetStockpile(ctx context.Context, regimentID, id string) (*Stockpile, error) {
	row := d.sql.QueryRowContext(ctx, "SELECT "+stockpileColumns+" FROM stockpiles WHERE id = ? AND regiment_id = ?", id, regimentID)
	s, err := scanStockpile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("stockpile %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListStockpiles returns the regiment's stockpiles, most recently updated first.
// A non-empty hexFilter keeps stockpiles whose hex contains it, case-insensitively.
func (d *DB) ListStockpiles(ctx context.Context, regimentID, hexFilter string) ([]Stockpile, error) {
	where := "WHERE regiment_id = ?"
	args := []interface{}{regimentID}
	if hexFilter = NormalizeHex(hexFilter); hexFilter != "" {
		where += " AND LOWER(hex) LIKE ?"
		args = append(args, fmt.Sprintf("%%%s%%", strings.ToLower(hexFilter)))
	}
	rows, err := d.sql.QueryContext(ctx, "SELECT "+stockpileColumns+" FROM stockpiles "+where+" ORDER BY updated_at DESC, name", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Stockpile
	for rows.Next() {
		s, err := scanStockpile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteStockpile removes a stockpile together with its items, scans and refreshes.
func (d *DB) DeleteStockpile(ctx context.Context, regimentID, id string) error {
	res, err := d.sql.ExecContext(ctx, "DELETE FROM stockpiles WHERE id = ? AND regiment_id = ?", id, regimentID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("stockpile %s: %w", id, ErrNotFound)
	}
	return nil
}

// RecordRefresh stamps the stockpile's refresh time and appends a refresh event.
func (d *DB) RecordRefresh(ctx context.Context, regimentID, stockpileID, userID string, warNumber *int) (*Refresh, error) {
	now := d.now().UTC()
	ref := &Refresh{ID: newID(), StockpileID: stockpileID, RefreshedByUserID: userID, WarNumber: warNumber, CreatedAt: now}

	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var res sql.Result
	res, err = tx.ExecContext(ctx, "UPDATE stockpiles SET last_refreshed_at = ?, updated_at = ? WHERE id = ? AND regiment_id = ?", formatTime(now), formatTime(now), stockpileID, regimentID)
	if err != nil {
		return nil, err
	}
	var n int64
	if n, err = res.RowsAffected(); err != nil {
		return nil, err
	}
	if n == 0 {
		err = fmt.Errorf("stockpile %s: %w", stockpileID, ErrNotFound)
		return nil, err
	}
	_, err = tx.ExecContext(ctx, "INSERT INTO refreshes(id, stockpile_id, refreshed_by, war_number, created_at) VALUES(?,?,?,?,?)", ref.ID, stockpileID, userID, nullInt(warNumber), formatTime(now))
	if err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return ref, nil
}

// FindRefreshEvents returns the regiment's refresh events matching q, oldest first.
func (d *DB) FindRefreshEvents(ctx context.Context, regimentID string, q EventQuery) ([]Refresh, error) {
	where, args := eventWhere("r", regimentID, q)
	rows, err := d.sql.QueryContext(ctx, "SELECT r.id, r.stockpile_id, r.refreshed_by, r.war_number, r.created_at FROM refreshes r JOIN stockpiles s ON s.id = r.stockpile_id "+where+" ORDER BY r.created_at", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Refresh
	for rows.Next() {
		var (
			r       Refresh
			war     sql.NullInt64
			created string
		)
		if err := rows.Scan(&r.ID, &r.StockpileID, &r.RefreshedByUserID, &war, &created); err != nil {
			return nil, err
		}
		r.WarNumber = intPtr(war)
		r.CreatedAt = parseTime(created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// eventWhere builds the shared regiment/window filter. The regiment column
// lives on the joined table aliased "s" for stockpile events and "o" for orders.
func eventWhere(alias, regimentID string, q EventQuery) (string, []interface{}) {
	owner := "s"
	if alias == "c" {
		owner = "o"
	}
	where := "WHERE " + owner + ".regiment_id = ?"
	args := []interface{}{regimentID}
	if !q.Since.IsZero() {
		where += " AND " + alias + ".created_at >= ?"
		args = append(args, formatTime(q.Since))
	}
	if q.WarNumber != nil {
		where += " AND " + alias + ".war_number = ?"
		args = append(args, *q.WarNumber)
	}
	return where, args
}
