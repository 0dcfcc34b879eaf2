package database

import (
	"database/sql"
	"fmt"
	"log"

	"stock-alert-telegram-bot/internal/types"
)

// AddAlert saves an alert and returns its persistent id. Duplicate
// alerts for the same chat/ticker/expression are permitted.
func (db *DB) AddAlert(chatID int64, ticker, expression string, referenceClose float64) (int64, error) {
	query := `
	INSERT INTO alerts (chat_id, ticker, expression, reference_close)
	VALUES (?, ?, ?, ?);`

	res, err := db.conn.Exec(query, chatID, ticker, expression, referenceClose)
	if err != nil {
		return 0, fmt.Errorf("failed to insert alert: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted alert id: %w", err)
	}

	log.Printf("Alert inserted: ID: %d, ChatID: %d, Ticker: %s, Expression: %s, ReferenceClose: %.2f",
		id, chatID, ticker, expression, referenceClose)
	return id, nil
}

// AlertsByChatID fetches all alerts for a chat in creation order. The
// DisplayRow on each alert is a 1-based position recomputed here on
// every call; it is what users see and reference, not the persistent id.
func (db *DB) AlertsByChatID(chatID int64) ([]types.Alert, error) {
	query := `
	SELECT id, chat_id, ticker, expression, reference_close, created_at
	FROM alerts WHERE chat_id = ? ORDER BY id;`

	rows, err := db.conn.Query(query, chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts for chat ID %d: %w", chatID, err)
	}
	defer rows.Close()

	alerts, err := scanAlerts(rows)
	if err != nil {
		return nil, err
	}

	for i := range alerts {
		alerts[i].DisplayRow = i + 1
	}
	return alerts, nil
}

// AllAlerts fetches every alert across all chats, for the check cycle.
func (db *DB) AllAlerts() ([]types.Alert, error) {
	query := `
	SELECT id, chat_id, ticker, expression, reference_close, created_at
	FROM alerts ORDER BY id;`

	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	return scanAlerts(rows)
}

func scanAlerts(rows *sql.Rows) ([]types.Alert, error) {
	var alerts []types.Alert
	for rows.Next() {
		var alert types.Alert
		if err := rows.Scan(&alert.ID, &alert.ChatID, &alert.Ticker, &alert.Expression, &alert.ReferenceClose, &alert.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// DeleteAlert removes an alert by its persistent id.
func (db *DB) DeleteAlert(alertID int64) error {
	query := `DELETE FROM alerts WHERE id = ?;`
	_, err := db.conn.Exec(query, alertID)
	if err != nil {
		return fmt.Errorf("failed to delete alert: %w", err)
	}
	return nil
}

// DeleteAlertByRow resolves a displayed row number to the persistent id
// through the current listing, then deletes. A row number that matches
// nothing is a silent no-op: if the listing changed between display and
// deletion the row may point at a different alert, which is a known
// hazard of row-number addressing.
func (db *DB) DeleteAlertByRow(chatID int64, row int) error {
	alerts, err := db.AlertsByChatID(chatID)
	if err != nil {
		return err
	}

	for _, alert := range alerts {
		if alert.DisplayRow == row {
			return db.DeleteAlert(alert.ID)
		}
	}

	log.Printf("No alert at row %d for chat %d, nothing deleted", row, chatID)
	return nil
}

// UpdateReferenceClose overwrites the stored reference price in place.
// Safe to repeat with the same value.
func (db *DB) UpdateReferenceClose(alertID int64, close float64) error {
	query := `UPDATE alerts SET reference_close = ? WHERE id = ?;`
	_, err := db.conn.Exec(query, close, alertID)
	if err != nil {
		return fmt.Errorf("failed to update reference close for alert %d: %w", alertID, err)
	}
	return nil
}

// ChatIDs returns the distinct chats that own at least one alert.
func (db *DB) ChatIDs() ([]int64, error) {
	query := `SELECT DISTINCT chat_id FROM alerts;`

	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat IDs: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
