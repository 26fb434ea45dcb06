package domain

import (
	"fmt"
	"strings"
	"time"

	"tix/internal/enum"
)

// Issue is one record from the /issues endpoint. Enum fields hold the
// canonical uppercase member name, or the raw value when it is not a
// member of its domain.
type Issue struct {
	ID               int64      `json:"id"`
	CreatedBy        string     `json:"created_by"`
	CreatedAt        int64      `json:"created_at"`
	UpdatedAt        *int64     `json:"updated_at"`
	Project          string     `json:"issue_project"`
	Name             string     `json:"issue_name"`
	Type             string     `json:"issue_type"`
	Priority         int        `json:"issue_priority"`
	StoryPoints      int        `json:"issue_story_points"`
	Summary          string     `json:"issue_summary"`
	Description      *string    `json:"issue_description"`
	Status           string     `json:"issue_status"`
	Resolution       string     `json:"issue_resolution"`
	AffectedVersion  *string    `json:"issue_affected_version"`
	FixedVersion     *string    `json:"issue_fixed_version"`
	Assignee         *string    `json:"issue_assigned_to"`
	Activity         []Activity `json:"activity,omitempty"`
}

// Activity is one entry from the /activity endpoint.
type Activity struct {
	ID        int64  `json:"id"`
	IssueID   int64  `json:"issue_id"`
	Type      string `json:"activity_type"`
	Text      string `json:"activity_text"`
	CreatedBy string `json:"created_by"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt *int64 `json:"updated_at"`
}

// Open reports whether the issue still carries the UNRESOLVED sentinel.
func (i Issue) Open() bool {
	return i.Resolution == enum.ResolutionUnresolved
}

// AssignedTo returns the assignee, or "" when unassigned.
func (i Issue) AssignedTo() string {
	if i.Assignee == nil {
		return ""
	}
	return *i.Assignee
}

func (i Issue) Created() time.Time {
	return MillisToTime(i.CreatedAt)
}

func (a Activity) Created() time.Time {
	return MillisToTime(a.CreatedAt)
}

// MillisToTime converts the API's epoch-millisecond timestamps. Zero stays
// the zero time.
func MillisToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

const DefaultIssueNumberPadding = 4

// FormatIssueName builds the PROJECT-0001 style name used by the API.
func FormatIssueName(project string, seq, padding int) string {
	if padding <= 0 {
		padding = DefaultIssueNumberPadding
	}
	return fmt.Sprintf("%s-%0*d", strings.TrimSpace(project), padding, seq)
}
