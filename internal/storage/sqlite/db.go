// Package sqlite keeps a local snapshot of the last records fetched from the
// tracker API so views can be rendered offline. It is a cache, not a system
// of record: every sync replaces the previous snapshot wholesale.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"tix/internal/domain"
)

var (
	ErrNoSnapshot    = errors.New("no snapshot stored; run sync first")
	ErrIssueNotFound = errors.New("issue not in snapshot")
)

// Snapshot is one fetch worth of records.
type Snapshot struct {
	APIRoot  string
	Issues   []domain.Issue
	Activity []domain.Activity
	SyncedAt time.Time
}

// SyncRecord describes a stored snapshot.
type SyncRecord struct {
	ID            string
	APIRoot       string
	IssueCount    int
	ActivityCount int
	SyncedAt      time.Time
}

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS issues (
		seq                    INTEGER PRIMARY KEY AUTOINCREMENT,
		id                     INTEGER NOT NULL,
		created_by             TEXT DEFAULT '',
		created_at             INTEGER DEFAULT 0,
		updated_at             INTEGER,
		issue_project          TEXT DEFAULT '',
		issue_name             TEXT NOT NULL,
		issue_type             TEXT NOT NULL,
		issue_priority         INTEGER DEFAULT 0,
		issue_story_points     INTEGER DEFAULT 0,
		issue_summary          TEXT DEFAULT '',
		issue_description      TEXT,
		issue_status           TEXT NOT NULL,
		issue_resolution       TEXT NOT NULL,
		issue_affected_version TEXT,
		issue_fixed_version    TEXT,
		issue_assigned_to      TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_issues_name ON issues(issue_name);
	CREATE INDEX IF NOT EXISTS idx_issues_assigned_to ON issues(issue_assigned_to);

	CREATE TABLE IF NOT EXISTS activity (
		seq           INTEGER PRIMARY KEY AUTOINCREMENT,
		id            INTEGER NOT NULL,
		issue_id      INTEGER NOT NULL,
		activity_type TEXT NOT NULL,
		activity_text TEXT DEFAULT '',
		created_by    TEXT DEFAULT '',
		created_at    INTEGER DEFAULT 0,
		updated_at    INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_activity_issue ON activity(issue_id);

	CREATE TABLE IF NOT EXISTS syncs (
		id             TEXT PRIMARY KEY,
		api_root       TEXT DEFAULT '',
		issue_count    INTEGER NOT NULL,
		activity_count INTEGER NOT NULL,
		synced_at      DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_syncs_synced_at ON syncs(synced_at);
	`
	_, err = db.Exec(schema)
	if err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// SaveSnapshot replaces the stored issues and activity with snap in a
// single transaction and records the sync.
func SaveSnapshot(db *sql.DB, snap Snapshot) (SyncRecord, error) {
	if snap.SyncedAt.IsZero() {
		snap.SyncedAt = time.Now()
	}
	rec := SyncRecord{
		ID:            uuid.NewString(),
		APIRoot:       snap.APIRoot,
		IssueCount:    len(snap.Issues),
		ActivityCount: len(snap.Activity),
		SyncedAt:      snap.SyncedAt.UTC(),
	}

	tx, err := db.Begin()
	if err != nil {
		return SyncRecord{}, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM issues`); err != nil {
		return SyncRecord{}, fmt.Errorf("clearing issues: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM activity`); err != nil {
		return SyncRecord{}, fmt.Errorf("clearing activity: %w", err)
	}

	issueStmt, err := tx.Prepare(
		`INSERT INTO issues (id, created_by, created_at, updated_at, issue_project, issue_name, issue_type,
			issue_priority, issue_story_points, issue_summary, issue_description, issue_status,
			issue_resolution, issue_affected_version, issue_fixed_version, issue_assigned_to)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return SyncRecord{}, err
	}
	defer issueStmt.Close()

	for _, is := range snap.Issues {
		_, err := issueStmt.Exec(
			is.ID, is.CreatedBy, is.CreatedAt, is.UpdatedAt, is.Project, is.Name, is.Type,
			is.Priority, is.StoryPoints, is.Summary, is.Description, is.Status,
			is.Resolution, is.AffectedVersion, is.FixedVersion, is.Assignee,
		)
		if err != nil {
			return SyncRecord{}, fmt.Errorf("inserting issue %s: %w", is.Name, err)
		}
	}

	activityStmt, err := tx.Prepare(
		`INSERT INTO activity (id, issue_id, activity_type, activity_text, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return SyncRecord{}, err
	}
	defer activityStmt.Close()

	for _, a := range snap.Activity {
		if _, err := activityStmt.Exec(a.ID, a.IssueID, a.Type, a.Text, a.CreatedBy, a.CreatedAt, a.UpdatedAt); err != nil {
			return SyncRecord{}, fmt.Errorf("inserting activity %d: %w", a.ID, err)
		}
	}

	_, err = tx.Exec(
		`INSERT INTO syncs (id, api_root, issue_count, activity_count, synced_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.APIRoot, rec.IssueCount, rec.ActivityCount, rec.SyncedAt,
	)
	if err != nil {
		return SyncRecord{}, fmt.Errorf("recording sync: %w", err)
	}
	return rec, tx.Commit()
}

const issueColumns = `id, created_by, created_at, updated_at, issue_project, issue_name, issue_type,
	issue_priority, issue_story_points, issue_summary, issue_description, issue_status,
	issue_resolution, issue_affected_version, issue_fixed_version, issue_assigned_to`

type scanner interface {
	Scan(dest ...any) error
}

func scanIssue(row scanner) (domain.Issue, error) {
	var is domain.Issue
	err := row.Scan(
		&is.ID, &is.CreatedBy, &is.CreatedAt, &is.UpdatedAt, &is.Project, &is.Name, &is.Type,
		&is.Priority, &is.StoryPoints, &is.Summary, &is.Description, &is.Status,
		&is.Resolution, &is.AffectedVersion, &is.FixedVersion, &is.Assignee,
	)
	return is, err
}

// LoadIssues returns the stored issues in the order they were fetched.
func LoadIssues(db *sql.DB) ([]domain.Issue, error) {
	rows, err := db.Query(`SELECT ` + issueColumns + ` FROM issues ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	issues := []domain.Issue{}
	for rows.Next() {
		is, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		issues = append(issues, is)
	}
	return issues, rows.Err()
}

// FindIssue returns the stored issue with the given name.
func FindIssue(db *sql.DB, name string) (domain.Issue, error) {
	row := db.QueryRow(`SELECT `+issueColumns+` FROM issues WHERE issue_name = ? ORDER BY seq LIMIT 1`, name)
	is, err := scanIssue(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Issue{}, fmt.Errorf("%s: %w", name, ErrIssueNotFound)
	}
	return is, err
}

// LoadActivity returns the stored activity of one issue, oldest first.
func LoadActivity(db *sql.DB, issueID int64) ([]domain.Activity, error) {
	rows, err := db.Query(
		`SELECT id, issue_id, activity_type, activity_text, created_by, created_at, updated_at
		 FROM activity WHERE issue_id = ? ORDER BY created_at, id`,
		issueID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	activity := []domain.Activity{}
	for rows.Next() {
		var a domain.Activity
		if err := rows.Scan(&a.ID, &a.IssueID, &a.Type, &a.Text, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		activity = append(activity, a)
	}
	return activity, rows.Err()
}

func LatestSync(db *sql.DB) (SyncRecord, error) {
	var rec SyncRecord
	err := db.QueryRow(
		`SELECT id, api_root, issue_count, activity_count, synced_at FROM syncs ORDER BY synced_at DESC LIMIT 1`,
	).Scan(&rec.ID, &rec.APIRoot, &rec.IssueCount, &rec.ActivityCount, &rec.SyncedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return SyncRecord{}, ErrNoSnapshot
	}
	return rec, err
}
