package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// CreateOperation inserts an operation with its requirements.
func (d *DB) CreateOperation(ctx context.Context, op *Operation) (err error) {
	if op.RegimentID == "" || strings.TrimSpace(op.Name) == "" {
		return errors.New("invalid operation identifiers")
	}
	now := d.now().UTC()
	if op.ID == "" {
		op.ID = newID()
	}
	if op.Status == "" {
		op.Status = OperationPlanning
	}
	op.Name = strings.TrimSpace(op.Name)
	op.CreatedAt = now

	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `INSERT INTO operations(id, regiment_id, name, description, status, location, destination_stockpile_id, war_number, created_by, created_at)
		VALUES(?,?,?,?,?,?,?,?,?,?)`,
		op.ID, op.RegimentID, op.Name, nullIfEmpty(op.Description), string(op.Status), nullIfEmpty(op.Location),
		nullString(op.DestinationStockpileID), nullInt(op.WarNumber), op.CreatedByUserID, formatTime(now))
	if err != nil {
		return err
	}
	for _, r := range op.Requirements {
		if _, err = tx.ExecContext(ctx, "INSERT INTO operation_requirements(operation_id, item_code, quantity, priority) VALUES(?,?,?,?)",
			op.ID, NormalizeItemCode(r.ItemCode), r.Quantity, r.Priority); err != nil {
			return err
		}
	}
	return tx.Commit()
}

const operationColumns = "id, regiment_id, name, description, status, location, destination_stockpile_id, war_number, created_by, created_at"

func scanOperation(row interface{ Scan(...interface{}) error }) (Operation, error) {
	var (
		op                   Operation
		desc, location, dest sql.NullString
		status, created      string
		war                  sql.NullInt64
	)
	if err := row.Scan(&op.ID, &op.RegimentID, &op.Name, &desc, &status, &location, &dest, &war, &op.CreatedByUserID, &created); err != nil {
		return op, err
	}
	op.Description = desc.String
	op.Location = location.String
	op.Status = OperationStatus(status)
	if dest.Valid {
		op.DestinationStockpileID = &dest.String
	}
	op.WarNumber = intPtr(war)
	op.CreatedAt = parseTime(created)
	return op, nil
}

// GetOperation returns an operation of the regiment with its requirements, or ErrNotFound.
func (d *DB) GetOperation(ctx context.Context, regimentID, id string) (*Operation, error) {
	row := d.sql.QueryRowContext(ctx, "SELECT "+operationColumns+" FROM operations WHERE id = ? AND regiment_id = ?", id, regimentID)
	op, err := scanOperation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("operation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	reqs, err := d.findRequirements(ctx, op.ID)
	if err != nil {
		return nil, err
	}
	op.Requirements = reqs[op.ID]
	return &op, nil
}

// ListOperations returns the regiment's operations matching q, newest first,
// each with its requirements.
func (d *DB) ListOperations(ctx context.Context, regimentID string, q OperationQuery) ([]Operation, error) {
	where := "WHERE regiment_id = ?"
	args := []interface{}{regimentID}
	if q.Status != "" {
		where += " AND status = ?"
		args = append(args, string(q.Status))
	}
	if q.WarNumber != nil {
		where += " AND war_number = ?"
		args = append(args, *q.WarNumber)
	}
	query := "SELECT " + operationColumns + " FROM operations " + where + " ORDER BY created_at DESC, rowid DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := d.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		out []Operation
		ids []string
	)
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, op)
		ids = append(ids, op.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	reqs, err := d.findRequirements(ctx, ids...)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Requirements = reqs[out[i].ID]
	}
	return out, nil
}

func (d *DB) findRequirements(ctx context.Context, operationIDs ...string) (map[string][]Requirement, error) {
	out := make(map[string][]Requirement, len(operationIDs))
	if len(operationIDs) == 0 {
		return out, nil
	}
	args := make([]interface{}, len(operationIDs))
	for i, id := range operationIDs {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(operationIDs)), ",")
	rows, err := d.sql.QueryContext(ctx, "SELECT operation_id, item_code, quantity, priority FROM operation_requirements WHERE operation_id IN ("+placeholders+") ORDER BY rowid", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id string
			r  Requirement
		)
		if err := rows.Scan(&id, &r.ItemCode, &r.Quantity, &r.Priority); err != nil {
			return nil, err
		}
		out[id] = append(out[id], r)
	}
	return out, rows.Err()
}
