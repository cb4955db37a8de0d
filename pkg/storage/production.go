package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// CreateProductionOrder inserts an order with its items.
func (d *DB) CreateProductionOrder(ctx context.Context, o *ProductionOrder) (err error) {
	if o.RegimentID == "" || strings.TrimSpace(o.Name) == "" {
		return errors.New("invalid production order identifiers")
	}
	now := d.now().UTC()
	if o.ID == "" {
		o.ID = newID()
	}
	if o.Status == "" {
		o.Status = OrderPending
	}
	o.Name = strings.TrimSpace(o.Name)
	o.CreatedAt = now

	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `INSERT INTO production_orders(id, regiment_id, name, description, status, priority, is_mpf, is_standing_order, linked_stockpile_id, war_number, created_by, created_at, completed_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		o.ID, o.RegimentID, o.Name, nullIfEmpty(o.Description), string(o.Status), o.Priority, boolToInt(o.IsMPF), boolToInt(o.IsStandingOrder),
		nullString(o.LinkedStockpileID), nullInt(o.WarNumber), o.CreatedByUserID, formatTime(now), nullTime(o.CompletedAt))
	if err != nil {
		return err
	}
	for _, it := range o.Items {
		if _, err = tx.ExecContext(ctx, "INSERT INTO production_order_items(order_id, item_code, quantity_required, quantity_produced) VALUES(?,?,?,?)",
			o.ID, NormalizeItemCode(it.ItemCode), it.QuantityRequired, it.QuantityProduced); err != nil {
			return err
		}
	}
	return tx.Commit()
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// GetProductionOrder returns an order of the regiment with its items, or ErrNotFound.
func (d *DB) GetProductionOrder(ctx context.Context, regimentID, id string) (*ProductionOrder, error) {
	return getProductionOrder(ctx, d.sql, regimentID, id)
}

const orderColumns = "id, regiment_id, name, description, status, priority, is_mpf, is_standing_order, linked_stockpile_id, war_number, created_by, created_at, completed_at"

func scanOrder(row interface{ Scan(...interface{}) error }) (ProductionOrder, error) {
	var (
		o                 ProductionOrder
		desc, linked      sql.NullString
		completed         sql.NullString
		status, created   string
		isMPF, isStanding int
		war               sql.NullInt64
	)
	if err := row.Scan(&o.ID, &o.RegimentID, &o.Name, &desc, &status, &o.Priority, &isMPF, &isStanding, &linked, &war, &o.CreatedByUserID, &created, &completed); err != nil {
		return o, err
	}
	o.Description = desc.String
	o.Status = OrderStatus(status)
	o.IsMPF = isMPF == 1
	o.IsStandingOrder = isStanding == 1
	if linked.Valid {
		o.LinkedStockpileID = &linked.String
	}
	o.WarNumber = intPtr(war)
	o.CreatedAt = parseTime(created)
	o.CompletedAt = timePtr(completed)
	return o, nil
}

func getProductionOrder(ctx context.Context, q queryer, regimentID, id string) (*ProductionOrder, error) {
	row := q.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM production_orders WHERE id = ? AND regiment_id = ?", id, regimentID)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("production order %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	its, err := findOrderItems(ctx, q, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = its[o.ID]
	return &o, nil
}

// ListProductionOrders returns the regiment's orders matching q, highest
// priority first and newest first within a priority, each with its items.
func (d *DB) ListProductionOrders(ctx context.Context, regimentID string, q OrderQuery) ([]ProductionOrder, error) {
	where := "WHERE regiment_id = ?"
	args := []interface{}{regimentID}
	if q.Status != "" {
		where += " AND status = ?"
		args = append(args, string(q.Status))
	}
	if q.IsMPF != nil {
		where += " AND is_mpf = ?"
		args = append(args, boolToInt(*q.IsMPF))
	}
	if q.IsStandingOrder != nil {
		where += " AND is_standing_order = ?"
		args = append(args, boolToInt(*q.IsStandingOrder))
	}
	if q.WarNumber != nil {
		where += " AND war_number = ?"
		args = append(args, *q.WarNumber)
	}
	query := "SELECT " + orderColumns + " FROM production_orders " + where + " ORDER BY priority DESC, created_at DESC, rowid DESC"
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
		out []ProductionOrder
		ids []string
	)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rows.Close()

	its, err := findOrderItems(ctx, d.sql, ids...)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = its[out[i].ID]
	}
	return out, nil
}

func findOrderItems(ctx context.Context, q queryer, orderIDs ...string) (map[string][]ProductionOrderItem, error) {
	out := make(map[string][]ProductionOrderItem, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}
	args := make([]interface{}, len(orderIDs))
	for i, id := range orderIDs {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(orderIDs)), ",")
	rows, err := q.QueryContext(ctx, "SELECT order_id, item_code, quantity_required, quantity_produced FROM production_order_items WHERE order_id IN ("+placeholders+") ORDER BY rowid", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id string
			it ProductionOrderItem
		)
		if err := rows.Scan(&id, &it.ItemCode, &it.QuantityRequired, &it.QuantityProduced); err != nil {
			return nil, err
		}
		out[id] = append(out[id], it)
	}
	return out, rows.Err()
}

// ApplyProductionProgress sets produced quantities on an order. Every increase
// is appended to the contribution ledger as a delta attributed to userID;
// decreases only correct the order. A pending order moves to IN_PROGRESS once
// anything is produced, and to COMPLETED once every item is produced unless it
// is an MPF order (those wait for pickup).
func (d *DB) ApplyProductionProgress(ctx context.Context, regimentID, orderID, userID string, warNumber *int, updates []ProgressUpdate) (order *ProductionOrder, contributions []Contribution, err error) {
	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	order, err = getProductionOrder(ctx, tx, regimentID, orderID)
	if err != nil {
		return nil, nil, err
	}
	now := d.now().UTC()

	idx := make(map[string]int, len(order.Items))
	for i, it := range order.Items {
		idx[it.ItemCode] = i
	}
	for _, u := range updates {
		code := NormalizeItemCode(u.ItemCode)
		i, ok := idx[code]
		if !ok {
			err = fmt.Errorf("item %s on order %s: %w", code, orderID, ErrNotFound)
			return nil, nil, err
		}
		delta := u.QuantityProduced - order.Items[i].QuantityProduced
		if delta == 0 {
			continue
		}
		if _, err = tx.ExecContext(ctx, "UPDATE production_order_items SET quantity_produced = ? WHERE order_id = ? AND item_code = ?", u.QuantityProduced, orderID, code); err != nil {
			return nil, nil, err
		}
		order.Items[i].QuantityProduced = u.QuantityProduced
		if delta < 0 {
			continue
		}
		c := Contribution{ID: newID(), OrderID: orderID, ItemCode: code, UserID: userID, Quantity: delta, WarNumber: warNumber, CreatedAt: now}
		if _, err = tx.ExecContext(ctx, "INSERT INTO production_contributions(id, order_id, item_code, user_id, quantity, war_number, created_at) VALUES(?,?,?,?,?,?,?)",
			c.ID, c.OrderID, c.ItemCode, c.UserID, c.Quantity, nullInt(c.WarNumber), formatTime(c.CreatedAt)); err != nil {
			return nil, nil, err
		}
		contributions = append(contributions, c)
	}

	status := nextOrderStatus(order)
	if status != order.Status {
		var completed *time.Time
		if status == OrderCompleted {
			completed = &now
		}
		if _, err = tx.ExecContext(ctx, "UPDATE production_orders SET status = ?, completed_at = ? WHERE id = ?", string(status), nullTime(completed), orderID); err != nil {
			return nil, nil, err
		}
		order.Status = status
		order.CompletedAt = completed
	}
	if err = tx.Commit(); err != nil {
		return nil, nil, err
	}
	return order, contributions, nil
}

func nextOrderStatus(o *ProductionOrder) OrderStatus {
	switch o.Status {
	case OrderCancelled, OrderFulfilled, OrderCompleted, OrderReadyForPickup:
		return o.Status
	}
	if !o.IsMPF && len(o.Items) > 0 && orderDone(o) {
		return OrderCompleted
	}
	if o.Status == OrderPending && orderStarted(o) {
		return OrderInProgress
	}
	return o.Status
}

func orderStarted(o *ProductionOrder) bool {
	for _, it := range o.Items {
		if it.QuantityProduced > 0 {
			return true
		}
	}
	return false
}

func orderDone(o *ProductionOrder) bool {
	for _, it := range o.Items {
		if it.QuantityProduced < it.QuantityRequired {
			return false
		}
	}
	return true
}

// FindProductionContributions returns the regiment's contribution events matching q, oldest first.
func (d *DB) FindProductionContributions(ctx context.Context, regimentID string, q EventQuery) ([]Contribution, error) {
	where, args := eventWhere("c", regimentID, q)
	rows, err := d.sql.QueryContext(ctx, "SELECT c.id, c.order_id, c.item_code, c.user_id, c.quantity, c.war_number, c.created_at FROM production_contributions c JOIN production_orders o ON o.id = c.order_id "+where+" ORDER BY c.created_at", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Contribution
	for rows.Next() {
		var (
			c       Contribution
			war     sql.NullInt64
			created string
		)
		if err := rows.Scan(&c.ID, &c.OrderID, &c.ItemCode, &c.UserID, &c.Quantity, &war, &created); err != nil {
			return nil, err
		}
		c.WarNumber = intPtr(war)
		c.CreatedAt = parseTime(created)
		out = append(out, c)
	}
	return out, rows.Err()
}
