package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-locks/internal/infrastructure/database"
	_ "github.com/nerrad567/gray-logic-locks/migrations" // registers embedded schema
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "audit.db"), BusyTimeout: 1})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func TestCreate_GeneratesIDAndTimestamp(t *testing.T) {
	repo := newTestRepo(t)
	e := &Entry{DeviceID: "12345", Action: ActionLock, Source: SourceAPI, Outcome: "issued"}

	if err := repo.Create(context.Background(), e); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if e.ID == "" || e.CreatedAt.IsZero() {
		t.Errorf("ID/CreatedAt not generated: %+v", e)
	}
}

func TestCreate_RequiresDeviceAndAction(t *testing.T) {
	repo := newTestRepo(t)
	if err := repo.Create(context.Background(), &Entry{Action: ActionLock}); err == nil {
		t.Error("Create() without device_id should fail")
	}
	if err := repo.Create(context.Background(), &Entry{DeviceID: "1"}); err == nil {
		t.Error("Create() without action should fail")
	}
}

func TestList(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

	entries := []Entry{
		{DeviceID: "1", Action: ActionLock, Source: SourceAPI, Outcome: "issued"},
		{DeviceID: "1", Action: ActionMonitor, Source: SourceMonitor, Outcome: "settled",
			Detail: map[string]any{"state": "Locked"}},
		{DeviceID: "2", Action: ActionOpen, Source: SourceMQTT, Outcome: "rejected", MessageKey: "errors.firstUnLock"},
	}
	for i := range entries {
		entries[i].CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := repo.Create(ctx, &entries[i]); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	tests := []struct {
		name      string
		filter    Filter
		wantTotal int
		wantFirst string
	}{
		{"all newest first", Filter{}, 3, ActionOpen},
		{"by device", Filter{DeviceID: "1"}, 2, ActionMonitor},
		{"by action", Filter{Action: ActionLock}, 1, ActionLock},
		{"by outcome", Filter{Outcome: "rejected"}, 1, ActionOpen},
		{"paged", Filter{Limit: 1, Offset: 2}, 3, ActionLock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if res.Total != tt.wantTotal {
				t.Errorf("Total = %d, want %d", res.Total, tt.wantTotal)
			}
			if len(res.Entries) == 0 || res.Entries[0].Action != tt.wantFirst {
				t.Errorf("first entry = %+v, want action %s", res.Entries, tt.wantFirst)
			}
		})
	}

	res, err := repo.List(ctx, Filter{Action: ActionMonitor})
	if err != nil {
		t.Fatal(err)
	}
	got := res.Entries[0]
	if got.Detail["state"] != "Locked" || !got.CreatedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("round-tripped entry = %+v", got)
	}

	res, err = repo.List(ctx, Filter{Outcome: "rejected"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Entries[0].MessageKey != "errors.firstUnLock" {
		t.Errorf("MessageKey = %q", res.Entries[0].MessageKey)
	}
}

func TestList_ClampsLimit(t *testing.T) {
	repo := newTestRepo(t)
	res, err := repo.List(context.Background(), Filter{Limit: 10000, Offset: -3})
	if err != nil {
		t.Fatal(err)
	}
	if res.Limit != maxLimit || res.Offset != 0 || res.Entries == nil {
		t.Errorf("clamped result = %+v", res)
	}
}
