package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/linuxlewis/claude-usage/internal/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := New(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func sampleSnapshot(fiveHour, sevenDay float64) *models.UsageSnapshot {
	return &models.UsageSnapshot{
		FiveHour: models.UsageLimit{Utilization: fiveHour},
		SevenDay: models.UsageLimit{Utilization: sevenDay},
	}
}

func TestInsertAndQuerySnapshots(t *testing.T) {
	database := openTestDB(t)
	now := time.Date(2026, 2, 8, 12, 0, 0, 0, time.UTC)

	for i, util := range []float64{10, 20, 30} {
		snap := sampleSnapshot(util, util/2)
		if err := database.InsertSnapshot("acc1", snap, now.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	rows, err := database.Snapshots("acc1", 10)
	if err != nil {
		t.Fatalf("query snapshots: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	// Newest first.
	if rows[0].Highest != 30 {
		t.Errorf("rows[0].Highest = %v, want 30", rows[0].Highest)
	}
	if !rows[0].FetchedAt.Equal(now.Add(2 * time.Minute)) {
		t.Errorf("rows[0].FetchedAt = %v, want %v", rows[0].FetchedAt, now.Add(2*time.Minute))
	}
}

func TestRecentHighestOrderedOldestFirst(t *testing.T) {
	database := openTestDB(t)
	now := time.Now()

	for i, util := range []float64{10, 20, 30, 40} {
		if err := database.InsertSnapshot("acc1", sampleSnapshot(util, 0), now); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	series, err := database.RecentHighest("acc1", 3)
	if err != nil {
		t.Fatalf("query series: %v", err)
	}
	want := []float64{20, 30, 40}
	if len(series) != len(want) {
		t.Fatalf("got %d points, want %d", len(series), len(want))
	}
	for i := range want {
		if series[i] != want[i] {
			t.Errorf("series[%d] = %v, want %v", i, series[i], want[i])
		}
	}
}

func TestSnapshotsIsolatedPerAccount(t *testing.T) {
	database := openTestDB(t)
	now := time.Now()

	if err := database.InsertSnapshot("acc1", sampleSnapshot(10, 0), now); err != nil {
		t.Fatal(err)
	}
	if err := database.InsertSnapshot("acc2", sampleSnapshot(20, 0), now); err != nil {
		t.Fatal(err)
	}

	series, err := database.RecentHighest("acc1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(series) != 1 || series[0] != 10 {
		t.Errorf("acc1 series = %v, want [10]", series)
	}
}

func TestPrune(t *testing.T) {
	database := openTestDB(t)

	old := time.Now().Add(-40 * 24 * time.Hour)
	if err := database.InsertSnapshot("acc1", sampleSnapshot(10, 0), old); err != nil {
		t.Fatal(err)
	}
	if err := database.InsertSnapshot("acc1", sampleSnapshot(20, 0), time.Now()); err != nil {
		t.Fatal(err)
	}

	deleted, err := database.Prune(30 * 24 * time.Hour)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if deleted != 1 {
		t.Errorf("pruned %d rows, want 1", deleted)
	}
}

func TestDeleteAccount(t *testing.T) {
	database := openTestDB(t)

	if err := database.InsertSnapshot("acc1", sampleSnapshot(10, 0), time.Now()); err != nil {
		t.Fatal(err)
	}
	if err := database.DeleteAccount("acc1"); err != nil {
		t.Fatalf("delete account: %v", err)
	}

	rows, err := database.Snapshots("acc1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Errorf("got %d rows after delete, want 0", len(rows))
	}
}
