package db

import (
	"context"
	"fmt"
	"time"

	"github.com/linuxlewis/claude-usage/internal/models"
)

// SnapshotRow is one recorded usage reading.
type SnapshotRow struct {
	ID        int64
	AccountID string
	Highest   float64
	FiveHour  float64
	SevenDay  float64
	FetchedAt time.Time
}

// sqlite's date functions want this layout; time.Time's default string
// form is not comparable with it.
const timeLayout = "2006-01-02 15:04:05"

// InsertSnapshot records one successful usage fetch.
func (db *DB) InsertSnapshot(accountID string, snap *models.UsageSnapshot, fetchedAt time.Time) error {
	if snap == nil {
		return fmt.Errorf("nil snapshot for account %s", accountID)
	}

	query := `
	INSERT INTO usage_snapshots (account_id, highest, five_hour, seven_day, fetched_at)
	VALUES (?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(context.Background(), query,
		accountID,
		models.HighestUtilization(snap),
		snap.FiveHour.Utilization,
		snap.SevenDay.Utilization,
		fetchedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert usage snapshot: %w", err)
	}
	return nil
}

// RecentHighest returns the highest-utilization series for an account,
// oldest first, capped at limit points. It feeds the history chart.
func (db *DB) RecentHighest(accountID string, limit int) ([]float64, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
	SELECT highest FROM (
		SELECT id, highest FROM usage_snapshots
		WHERE account_id = ?
		ORDER BY id DESC
		LIMIT ?
	) ORDER BY id ASC
	`
	rows, err := db.QueryContext(context.Background(), query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var series []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		series = append(series, v)
	}
	return series, rows.Err()
}

// Snapshots returns full rows for an account, newest first.
func (db *DB) Snapshots(accountID string, limit int) ([]SnapshotRow, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
	SELECT id, account_id, highest, five_hour, seven_day, fetched_at
	FROM usage_snapshots
	WHERE account_id = ?
	ORDER BY id DESC
	LIMIT ?
	`
	rows, err := db.QueryContext(context.Background(), query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []SnapshotRow
	for rows.Next() {
		var row SnapshotRow
		var fetched string
		if err := rows.Scan(&row.ID, &row.AccountID, &row.Highest, &row.FiveHour, &row.SevenDay, &fetched); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		t, err := time.ParseInLocation(timeLayout, fetched, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parse fetched_at %q: %w", fetched, err)
		}
		row.FetchedAt = t
		result = append(result, row)
	}
	return result, rows.Err()
}

// Prune deletes snapshots older than the retention window.
func (db *DB) Prune(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format(timeLayout)

	res, err := db.ExecContext(context.Background(),
		`DELETE FROM usage_snapshots WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return res.RowsAffected()
}

// DeleteAccount removes all history recorded for an account.
func (db *DB) DeleteAccount(accountID string) error {
	_, err := db.ExecContext(context.Background(),
		`DELETE FROM usage_snapshots WHERE account_id = ?`, accountID)
	if err != nil {
		return fmt.Errorf("delete account history: %w", err)
	}
	return nil
}
