package pending

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/renshaw/taskwire/internal/models"
)

// Enqueue appends a mailbox entry with delivered=false. An empty ID is
// assigned a fresh UUID; CreatedAt defaults to now.
func (db *DB) Enqueue(ctx context.Context, n models.PendingNotification) (models.PendingNotification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	n.Delivered = false
	n.DeliveredAt = nil

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO pending_notifications (id, identity, title, message, type, priority, task_id, created_at, delivered)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)
	`, n.ID, n.Identity, n.Title, n.Message, n.Type, n.Priority, n.TaskID, n.CreatedAt)
	if err != nil {
		return models.PendingNotification{}, fmt.Errorf("pending: enqueue: %w", err)
	}
	return n, nil
}

// FetchAndMarkDelivered returns every undelivered entry for identity in
// creation order and flips each to delivered with a delivery timestamp.
// A second call immediately after returns an empty set (idempotent drain).
// Entries are never deleted here: the table is an append-only log.
func (db *DB) FetchAndMarkDelivered(ctx context.Context, identity string) ([]models.PendingNotification, error) {
	lock := db.identityLock(identity)
	lock.Lock()
	defer lock.Unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("pending: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	rows, err := tx.QueryContext(ctx, `
		SELECT id, identity, title, message, type, priority, task_id, created_at
		FROM pending_notifications
		WHERE identity = ? AND delivered = 0
		ORDER BY created_at, id
	`, identity)
	if err != nil {
		return nil, fmt.Errorf("pending: fetch: %w", err)
	}

	var out []models.PendingNotification
	for rows.Next() {
		var n models.PendingNotification
		if err := rows.Scan(&n.ID, &n.Identity, &n.Title, &n.Message, &n.Type, &n.Priority, &n.TaskID, &n.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("pending: scan: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("pending: rows: %w", err)
	}
	rows.Close()

	if len(out) == 0 {
		return nil, tx.Commit()
	}

	deliveredAt := time.Now().UTC()
	stmt, err := tx.PrepareContext(ctx, `UPDATE pending_notifications SET delivered = 1, delivered_at = ? WHERE id = ?`)
	if err != nil {
		return nil, fmt.Errorf("pending: prepare mark: %w", err)
	}
	defer stmt.Close()
	for i := range out {
		if _, err := stmt.ExecContext(ctx, deliveredAt, out[i].ID); err != nil {
			return nil, fmt.Errorf("pending: mark delivered: %w", err)
		}
		out[i].Delivered = true
		out[i].DeliveredAt = &deliveredAt
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("pending: commit: %w", err)
	}
	return out, nil
}

// CountUndelivered returns the number of undelivered entries for identity.
func (db *DB) CountUndelivered(ctx context.Context, identity string) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pending_notifications WHERE identity = ? AND delivered = 0`,
		identity,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("pending: count: %w", err)
	}
	return count, nil
}

// ListByIdentity returns entries for identity, optionally including already
// delivered ones. Read-only; used by the audit/ops surfaces.
func (db *DB) ListByIdentity(ctx context.Context, identity string, includeDelivered bool) ([]models.PendingNotification, error) {
	query := `
		SELECT id, identity, title, message, type, priority, task_id, created_at, delivered, delivered_at
		FROM pending_notifications
		WHERE identity = ?
	`
	if !includeDelivered {
		query += ` AND delivered = 0`
	}
	query += ` ORDER BY created_at, id`

	rows, err := db.conn.QueryContext(ctx, query, identity)
	if err != nil {
		return nil, fmt.Errorf("pending: list: %w", err)
	}
	defer rows.Close()

	var out []models.PendingNotification
	for rows.Next() {
		var n models.PendingNotification
		var delivered int
		var deliveredAt sql.NullTime
		if err := rows.Scan(&n.ID, &n.Identity, &n.Title, &n.Message, &n.Type, &n.Priority, &n.TaskID, &n.CreatedAt, &delivered, &deliveredAt); err != nil {
			return nil, fmt.Errorf("pending: scan: %w", err)
		}
		n.Delivered = delivered != 0
		if deliveredAt.Valid {
			t := deliveredAt.Time
			n.DeliveredAt = &t
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
