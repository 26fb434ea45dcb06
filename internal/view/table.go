package view

import (
	"fmt"
	"sort"
	"strings"

	"tix/internal/domain"
	"tix/internal/enum"
)

// Filter selects issues for the table view. Zero-value fields mean "no
// filter" for that dimension; all set fields must match.
type Filter struct {
	Status     string
	Type       string
	Resolution string
	Project    string

	// Assignee follows FilterByAssignee: nil disables the dimension.
	Assignee *string
}

// Apply returns the records matching filter, in source order.
func Apply(records []domain.Issue, filter Filter) []domain.Issue {
	matched := FilterByAssignee(records, filter.Assignee)
	if filter.Status == "" && filter.Type == "" && filter.Resolution == "" && filter.Project == "" {
		return matched
	}
	out := make([]domain.Issue, 0, len(matched))
	for _, issue := range matched {
		if filter.Status != "" && issue.Status != filter.Status {
			continue
		}
		if filter.Type != "" && issue.Type != filter.Type {
			continue
		}
		if filter.Resolution != "" && issue.Resolution != filter.Resolution {
			continue
		}
		if filter.Project != "" && issue.Project != filter.Project {
			continue
		}
		out = append(out, issue)
	}
	return out
}

// SortByPriority returns a copy of records ordered by ascending priority
// (1 is the most urgent), then by issue name.
func SortByPriority(records []domain.Issue) []domain.Issue {
	out := append([]domain.Issue(nil), records...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// GroupField names a column the issue table can be grouped by.
type GroupField string

const (
	FieldNone       GroupField = ""
	FieldStatus     GroupField = "status"
	FieldType       GroupField = "type"
	FieldResolution GroupField = "resolution"
	FieldAssignee   GroupField = "assignee"
	FieldProject    GroupField = "project"
)

// Unassigned is the group key for issues with no assignee.
const Unassigned = "(unassigned)"

// GroupTable groups records by a table column. Enum columns are seeded with
// their full domain; free-text columns only get the keys that occur.
func GroupTable(records []domain.Issue, field GroupField) (GroupedView, error) {
	switch GroupField(strings.ToLower(string(field))) {
	case FieldStatus:
		return GroupByStatus(records, DashboardKeys())
	case FieldType:
		return GroupBy(records, enum.IssueType.Names(), func(issue domain.Issue) string { return issue.Type })
	case FieldResolution:
		return GroupBy(records, enum.IssueResolution.Names(), func(issue domain.Issue) string { return issue.Resolution })
	case FieldAssignee:
		return GroupBy(records, nil, func(issue domain.Issue) string {
			if issue.Assignee == nil || *issue.Assignee == "" {
				return Unassigned
			}
			return *issue.Assignee
		})
	case FieldProject:
		return GroupBy(records, nil, func(issue domain.Issue) string { return issue.Project })
	}
	return GroupedView{}, fmt.Errorf("%w: unknown group field %q", domain.ErrInvalidInput, field)
}

// ActivityFor returns the activity of one issue, oldest first.
func ActivityFor(activity []domain.Activity, issueID int64) []domain.Activity {
	out := make([]domain.Activity, 0)
	for _, a := range activity {
		if a.IssueID == issueID {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}
