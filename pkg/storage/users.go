package storage

import (
	"context"
	"strings"
)

// UpsertUser stores or renames a user.
func (d *DB) UpsertUser(ctx context.Context, id, name string) error {
	_, err := d.sql.ExecContext(ctx, `INSERT INTO users(id, name) VALUES(?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name`, id, strings.TrimSpace(name))
	return err
}

// UserNames resolves display names for the given user ids. Unknown ids are absent from the result.
func (d *DB) UserNames(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	rows, err := d.sql.QueryContext(ctx, "SELECT id, name FROM users WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[id] = name
	}
	return out, rows.Err()
}
