package sqlite

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"tix/internal/domain"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "tix-test.db")
	db, err := InitDB(dbPath)
	if err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func strPtr(s string) *string { return &s }

func testSnapshot(syncedAt time.Time) Snapshot {
	updated := int64(2000)
	return Snapshot{
		APIRoot: "http://localhost:5000/api",
		Issues: []domain.Issue{
			{ID: 2, Name: "WEB-0002", Project: "WEB", Type: "BUG", Priority: 1, Status: "OPEN", Resolution: "UNRESOLVED", Summary: "Broken login"},
			{ID: 1, Name: "WEB-0001", Project: "WEB", Type: "TASK", Priority: 3, Status: "DONE", Resolution: "COMPLETE",
				Assignee: strPtr("amy"), Description: strPtr("details"), UpdatedAt: &updated, CreatedAt: 1000},
		},
		Activity: []domain.Activity{
			{ID: 11, IssueID: 1, Type: "STATUS", Text: "DONE", CreatedBy: "amy", CreatedAt: 300},
			{ID: 10, IssueID: 1, Type: "COMMENT", Text: "started", CreatedBy: "amy", CreatedAt: 100},
			{ID: 12, IssueID: 2, Type: "COMMENT", Text: "repro", CreatedBy: "bob", CreatedAt: 200},
		},
		SyncedAt: syncedAt,
	}
}

func TestInitDBCreatesTables(t *testing.T) {
	db := newTestDB(t)

	for _, table := range []string{"issues", "activity", "syncs"} {
		var count int
		if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&count); err != nil {
			t.Fatalf("query sqlite_master failed: %v", err)
		}
		if count != 1 {
			t.Fatalf("expected table %s to exist", table)
		}
	}
}

func TestSaveAndLoadSnapshot(t *testing.T) {
	db := newTestDB(t)
	base := time.Now().UTC().Truncate(time.Second)

	rec, err := SaveSnapshot(db, testSnapshot(base))
	if err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	if _, err := uuid.Parse(rec.ID); err != nil {
		t.Fatalf("sync id is not a uuid: %q", rec.ID)
	}
	if rec.IssueCount != 2 || rec.ActivityCount != 3 {
		t.Fatalf("unexpected counts: %+v", rec)
	}

	issues, err := LoadIssues(db)
	if err != nil {
		t.Fatalf("LoadIssues failed: %v", err)
	}
	if len(issues) != 2 || issues[0].Name != "WEB-0002" || issues[1].Name != "WEB-0001" {
		t.Fatalf("issues not returned in fetch order: %+v", issues)
	}
	if issues[0].Assignee != nil || issues[0].Description != nil || issues[0].UpdatedAt != nil {
		t.Fatalf("expected nil optional fields, got %+v", issues[0])
	}
	if issues[1].Assignee == nil || *issues[1].Assignee != "amy" {
		t.Fatalf("assignee not round-tripped: %v", issues[1].Assignee)
	}
	if issues[1].UpdatedAt == nil || *issues[1].UpdatedAt != 2000 {
		t.Fatalf("updated_at not round-tripped: %v", issues[1].UpdatedAt)
	}

	activity, err := LoadActivity(db, 1)
	if err != nil {
		t.Fatalf("LoadActivity failed: %v", err)
	}
	if len(activity) != 2 || activity[0].ID != 10 || activity[1].ID != 11 {
		t.Fatalf("unexpected activity order: %+v", activity)
	}

	latest, err := LatestSync(db)
	if err != nil {
		t.Fatalf("LatestSync failed: %v", err)
	}
	if latest.ID != rec.ID || !latest.SyncedAt.Equal(base) {
		t.Fatalf("unexpected latest sync: %+v", latest)
	}
}

func TestSaveSnapshotReplacesPrevious(t *testing.T) {
	db := newTestDB(t)
	base := time.Now().UTC().Truncate(time.Second)

	if _, err := SaveSnapshot(db, testSnapshot(base)); err != nil {
		t.Fatalf("first SaveSnapshot failed: %v", err)
	}
	second := Snapshot{
		Issues:   []domain.Issue{{ID: 9, Name: "OPS-0001", Type: "EPIC", Status: "OPEN", Resolution: "UNRESOLVED"}},
		SyncedAt: base.Add(time.Hour),
	}
	rec, err := SaveSnapshot(db, second)
	if err != nil {
		t.Fatalf("second SaveSnapshot failed: %v", err)
	}

	issues, err := LoadIssues(db)
	if err != nil {
		t.Fatalf("LoadIssues failed: %v", err)
	}
	if len(issues) != 1 || issues[0].Name != "OPS-0001" {
		t.Fatalf("expected only the new snapshot, got %+v", issues)
	}
	activity, err := LoadActivity(db, 1)
	if err != nil {
		t.Fatalf("LoadActivity failed: %v", err)
	}
	if len(activity) != 0 {
		t.Fatalf("expected old activity to be cleared, got %d", len(activity))
	}

	latest, err := LatestSync(db)
	if err != nil {
		t.Fatalf("LatestSync failed: %v", err)
	}
	if latest.ID != rec.ID {
		t.Fatalf("expected latest sync %s, got %s", rec.ID, latest.ID)
	}
}

func TestFindIssue(t *testing.T) {
	db := newTestDB(t)
	if _, err := SaveSnapshot(db, testSnapshot(time.Now())); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	is, err := FindIssue(db, "WEB-0001")
	if err != nil {
		t.Fatalf("FindIssue failed: %v", err)
	}
	if is.ID != 1 || is.Status != "DONE" {
		t.Fatalf("unexpected issue: %+v", is)
	}

	if _, err := FindIssue(db, "WEB-0404"); !errors.Is(err, ErrIssueNotFound) {
		t.Fatalf("expected ErrIssueNotFound, got %v", err)
	}
}

func TestLatestSyncEmpty(t *testing.T) {
	db := newTestDB(t)
	if _, err := LatestSync(db); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("expected ErrNoSnapshot, got %v", err)
	}
	issues, err := LoadIssues(db)
	if err != nil {
		t.Fatalf("LoadIssues failed: %v", err)
	}
	if len(issues) != 0 {
		t.Fatalf("expected no issues, got %d", len(issues))
	}
}
