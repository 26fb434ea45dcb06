// Package view derives render-ready views from a collection of issue
// records: status groupings, assignee and resolution filters, and the
// empty-state signal used by the dashboard.
//
// Every function is pure. Inputs are never modified and source order is
// preserved within each derived sequence. Unrecognized enum values are not
// errors: a record with an unknown status gets its own group and an unknown
// resolution counts as closed, so no record is ever dropped from a view.
package view

import (
	"fmt"

	"tix/internal/domain"
	"tix/internal/enum"
)

// DefaultExcludedStatuses are the backlog and terminal buckets ignored by
// IsEmpty when deciding whether the user is caught up.
var DefaultExcludedStatuses = []string{enum.StatusOpen, enum.StatusDone, enum.StatusReleased}

type Group struct {
	Key    string
	Issues []domain.Issue
}

// Count is a key with the number of records in its group.
type Count struct {
	Key   string
	Count int
}

// GroupedView is an ordered mapping from group key to records. Seeded keys
// come first in the order they were given, followed by any groups opened
// for unrecognized values in first-seen order.
type GroupedView struct {
	groups []Group
	index  map[string]int
}

// DashboardKeys returns every IssueStatus name in code order.
func DashboardKeys() []string {
	return enum.IssueStatus.Names()
}

// GroupByStatus groups records by issue_status, seeding one (possibly
// empty) group per key.
func GroupByStatus(records []domain.Issue, keys []string) (GroupedView, error) {
	return GroupBy(records, keys, func(issue domain.Issue) string {
		return issue.Status
	})
}

// GroupBy is GroupByStatus for an arbitrary key function.
func GroupBy(records []domain.Issue, keys []string, keyOf func(domain.Issue) string) (GroupedView, error) {
	v := GroupedView{
		groups: make([]Group, 0, len(keys)),
		index:  make(map[string]int, len(keys)),
	}
	for _, key := range keys {
		if key == "" {
			return GroupedView{}, fmt.Errorf("%w: empty group key", domain.ErrInvalidInput)
		}
		if _, dup := v.index[key]; dup {
			return GroupedView{}, fmt.Errorf("%w: duplicate group key %q", domain.ErrInvalidInput, key)
		}
		v.index[key] = len(v.groups)
		v.groups = append(v.groups, Group{Key: key, Issues: []domain.Issue{}})
	}
	for _, issue := range records {
		key := keyOf(issue)
		i, ok := v.index[key]
		if !ok {
			i = len(v.groups)
			v.index[key] = i
			v.groups = append(v.groups, Group{Key: key, Issues: []domain.Issue{}})
		}
		v.groups[i].Issues = append(v.groups[i].Issues, issue)
	}
	return v, nil
}

func (v GroupedView) Keys() []string {
	keys := make([]string, len(v.groups))
	for i, g := range v.groups {
		keys[i] = g.Key
	}
	return keys
}

// Groups returns the groups in view order. The slices are shared with the
// view; callers must not modify them.
func (v GroupedView) Groups() []Group {
	return v.groups
}

func (v GroupedView) Len() int {
	return len(v.groups)
}

func (v GroupedView) Has(key string) bool {
	_, ok := v.index[key]
	return ok
}

// Get returns the records grouped under key. It is never nil for a key
// that is present in the view.
func (v GroupedView) Get(key string) []domain.Issue {
	i, ok := v.index[key]
	if !ok {
		return nil
	}
	return v.groups[i].Issues
}

// Total is the number of records across all groups.
func (v GroupedView) Total() int {
	total := 0
	for _, g := range v.groups {
		total += len(g.Issues)
	}
	return total
}

// Flatten concatenates the groups in view order.
func (v GroupedView) Flatten() []domain.Issue {
	out := make([]domain.Issue, 0, v.Total())
	for _, g := range v.groups {
		out = append(out, g.Issues...)
	}
	return out
}

func (v GroupedView) Counts() []Count {
	counts := make([]Count, len(v.groups))
	for i, g := range v.groups {
		counts[i] = Count{Key: g.Key, Count: len(g.Issues)}
	}
	return counts
}

// FilterByAssignee returns the records assigned to *user. A nil user means
// there is no session, and records is returned unchanged.
func FilterByAssignee(records []domain.Issue, user *string) []domain.Issue {
	if user == nil {
		return records
	}
	out := make([]domain.Issue, 0, len(records))
	for _, issue := range records {
		if issue.Assignee != nil && *issue.Assignee == *user {
			out = append(out, issue)
		}
	}
	return out
}

// Partition splits records into open (UNRESOLVED) and closed issues.
type Partition struct {
	Open   []domain.Issue
	Closed []domain.Issue
}

// PartitionByResolution places every record in exactly one of Open or
// Closed. Anything other than the UNRESOLVED sentinel is closed.
func PartitionByResolution(records []domain.Issue) Partition {
	p := Partition{
		Open:   []domain.Issue{},
		Closed: []domain.Issue{},
	}
	for _, issue := range records {
		if issue.Open() {
			p.Open = append(p.Open, issue)
		} else {
			p.Closed = append(p.Closed, issue)
		}
	}
	return p
}

// IsEmpty reports whether every group outside excluded has no records.
func IsEmpty(v GroupedView, excluded []string) bool {
	skip := make(map[string]struct{}, len(excluded))
	for _, key := range excluded {
		skip[key] = struct{}{}
	}
	for _, g := range v.groups {
		if _, ok := skip[g.Key]; ok {
			continue
		}
		if len(g.Issues) > 0 {
			return false
		}
	}
	return true
}
