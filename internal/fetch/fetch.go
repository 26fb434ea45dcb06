package fetch

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"tix/internal/domain"
	"tix/internal/enum"
	"tix/internal/storage/sqlite"
)

// Source is the part of the tracker API a sync needs.
type Source interface {
	ListIssues(ctx context.Context, params map[string]string) ([]domain.Issue, error)
	ListActivity(ctx context.Context, params map[string]string) ([]domain.Activity, error)
}

// Result tracks what one sync fetched and stored.
type Result struct {
	Issues       int
	Activity     int
	Unrecognized int
	Sync         sqlite.SyncRecord
	Errors       []string
}

// Run fetches every issue and activity entry and replaces the local
// snapshot with them. A failed activity fetch is a warning: the issues are
// still stored, with activity taken from the issue payloads if present.
func Run(ctx context.Context, apiRoot string, src Source, db *sql.DB) (Result, error) {
	var result Result
	log.Info().Str("api_root", apiRoot).Msg("sync start")

	issues, err := src.ListIssues(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("fetching issues: %w", err)
	}
	result.Issues = len(issues)
	for _, is := range issues {
		if !recognized(is) {
			log.Warn().Str("issue", is.Name).Str("type", is.Type).Str("status", is.Status).
				Str("resolution", is.Resolution).Msg("sync unrecognized enum value")
			result.Unrecognized++
		}
	}

	activity, err := src.ListActivity(ctx, nil)
	if err != nil {
		log.Warn().Err(err).Msg("sync activity fetch failed")
		result.Errors = append(result.Errors, fmt.Sprintf("Activity: %v", err))
		activity = nestedActivity(issues)
	}
	result.Activity = len(activity)

	rec, err := sqlite.SaveSnapshot(db, sqlite.Snapshot{
		APIRoot:  apiRoot,
		Issues:   issues,
		Activity: activity,
		SyncedAt: time.Now(),
	})
	if err != nil {
		return result, fmt.Errorf("saving snapshot: %w", err)
	}
	result.Sync = rec
	log.Info().Str("sync_id", rec.ID).Int("issues", result.Issues).Int("activity", result.Activity).Msg("sync done")
	return result, nil
}

func recognized(is domain.Issue) bool {
	return enum.IssueType.Contains(is.Type) &&
		enum.IssueStatus.Contains(is.Status) &&
		enum.IssueResolution.Contains(is.Resolution)
}

func nestedActivity(issues []domain.Issue) []domain.Activity {
	var out []domain.Activity
	for _, is := range issues {
		for _, a := range is.Activity {
			if a.IssueID == 0 {
				a.IssueID = is.ID
			}
			out = append(out, a)
		}
	}
	return out
}

// FormatSummary returns a human-readable summary of a Result.
func FormatSummary(result Result) string {
	if result.Sync.ID == "" {
		if len(result.Errors) > 0 {
			return fmt.Sprintf("Sync failed:\n%s", strings.Join(result.Errors, "\n"))
		}
		return "Sync failed."
	}

	msg := fmt.Sprintf("Synced %d issues and %d activity entries", result.Issues, result.Activity)
	if result.Unrecognized > 0 {
		msg += fmt.Sprintf(" (%d with unrecognized values)", result.Unrecognized)
	}
	msg += "."
	if len(result.Errors) > 0 {
		msg += fmt.Sprintf("\nWarnings:\n%s", strings.Join(result.Errors, "\n"))
	}
	return msg
}
