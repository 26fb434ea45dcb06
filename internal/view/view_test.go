package view

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tix/internal/domain"
	"tix/internal/enum"
)

func strPtr(s string) *string { return &s }

func issue(name, status, resolution string, assignee *string) domain.Issue {
	return domain.Issue{Name: name, Status: status, Resolution: resolution, Assignee: assignee}
}

func names(issues []domain.Issue) []string {
	out := make([]string, len(issues))
	for i, is := range issues {
		out[i] = is.Name
	}
	return out
}

func scenarioRecords() []domain.Issue {
	return []domain.Issue{
		issue("A-1", "OPEN", "UNRESOLVED", nil),
		issue("A-2", "DONE", "COMPLETE", strPtr("bob")),
	}
}

func TestGroupByStatusScenario(t *testing.T) {
	v, err := GroupByStatus(scenarioRecords(), []string{"OPEN", "DONE", "ASSIGNED"})
	require.NoError(t, err)

	assert.Equal(t, []string{"OPEN", "DONE", "ASSIGNED"}, v.Keys())
	assert.Equal(t, []string{"A-1"}, names(v.Get("OPEN")))
	assert.Equal(t, []string{"A-2"}, names(v.Get("DONE")))
	assert.NotNil(t, v.Get("ASSIGNED"))
	assert.Empty(t, v.Get("ASSIGNED"))
}

func TestGroupByStatusKeepsUnknownStatuses(t *testing.T) {
	records := []domain.Issue{
		issue("A-1", "TRIAGE", "UNRESOLVED", nil),
		issue("A-2", "OPEN", "UNRESOLVED", nil),
		issue("A-3", "42", "UNRESOLVED", nil),
		issue("A-4", "TRIAGE", "UNRESOLVED", nil),
	}
	v, err := GroupByStatus(records, []string{"OPEN", "DONE"})
	require.NoError(t, err)

	assert.Equal(t, []string{"OPEN", "DONE", "TRIAGE", "42"}, v.Keys())
	assert.Equal(t, []string{"A-1", "A-4"}, names(v.Get("TRIAGE")))
	assert.Equal(t, len(records), v.Total())
}

func TestGroupByStatusRejectsMalformedKeys(t *testing.T) {
	_, err := GroupByStatus(nil, []string{"OPEN", "OPEN"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = GroupByStatus(nil, []string{"OPEN", ""})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestGroupByStatusDoesNotMutateInput(t *testing.T) {
	records := scenarioRecords()
	before := append([]domain.Issue(nil), records...)
	_, err := GroupByStatus(records, DashboardKeys())
	require.NoError(t, err)
	assert.Equal(t, before, records)
}

func TestDashboardKeysCoverEveryStatus(t *testing.T) {
	v, err := GroupByStatus(nil, DashboardKeys())
	require.NoError(t, err)
	for _, name := range enum.IssueStatus.Names() {
		assert.True(t, v.Has(name), name)
		assert.NotNil(t, v.Get(name), name)
	}
	assert.Equal(t, 0, v.Total())
}

func TestFilterByAssigneeScenario(t *testing.T) {
	records := scenarioRecords()
	assert.Equal(t, []string{"A-2"}, names(FilterByAssignee(records, strPtr("bob"))))
	assert.Empty(t, FilterByAssignee(records, strPtr("carol")))
}

func TestFilterByAssigneeNilIsIdentity(t *testing.T) {
	records := scenarioRecords()
	got := FilterByAssignee(records, nil)
	require.Len(t, got, len(records))
	assert.Same(t, &records[0], &got[0])
}

func TestFilterByAssigneeEmptyUserMatchesNobodyUnassigned(t *testing.T) {
	records := []domain.Issue{
		issue("A-1", "OPEN", "UNRESOLVED", nil),
		issue("A-2", "OPEN", "UNRESOLVED", strPtr("")),
	}
	assert.Equal(t, []string{"A-2"}, names(FilterByAssignee(records, strPtr(""))))
}

func TestPartitionByResolutionScenario(t *testing.T) {
	records := []domain.Issue{
		issue("A-1", "OPEN", "UNRESOLVED", nil),
		issue("A-2", "DONE", "COMPLETE", nil),
	}
	p := PartitionByResolution(records)
	assert.Equal(t, []string{"A-1"}, names(p.Open))
	assert.Equal(t, []string{"A-2"}, names(p.Closed))
}

func TestPartitionByResolutionTreatsUnknownAsClosed(t *testing.T) {
	records := []domain.Issue{
		issue("A-1", "OPEN", "unresolved", nil),
		issue("A-2", "OPEN", "", nil),
		issue("A-3", "OPEN", "UNKNOWN", nil),
	}
	p := PartitionByResolution(records)
	assert.Empty(t, p.Open)
	assert.Equal(t, []string{"A-1", "A-2", "A-3"}, names(p.Closed))
}

func TestIsEmpty(t *testing.T) {
	records := []domain.Issue{
		issue("A-1", "OPEN", "UNRESOLVED", nil),
		issue("A-2", "DONE", "COMPLETE", nil),
		issue("A-3", "RELEASED", "COMPLETE", nil),
	}
	v, err := GroupByStatus(records, DashboardKeys())
	require.NoError(t, err)
	assert.True(t, IsEmpty(v, DefaultExcludedStatuses))
	assert.False(t, IsEmpty(v, nil))

	records = append(records, issue("A-4", "IN_PROGRESS", "UNRESOLVED", nil))
	v, err = GroupByStatus(records, DashboardKeys())
	require.NoError(t, err)
	assert.False(t, IsEmpty(v, DefaultExcludedStatuses))
}

func TestIsEmptyCountsUnrecognizedGroups(t *testing.T) {
	v, err := GroupByStatus([]domain.Issue{issue("A-1", "TRIAGE", "UNRESOLVED", nil)}, DashboardKeys())
	require.NoError(t, err)
	assert.False(t, IsEmpty(v, DefaultExcludedStatuses))
}

func TestCounts(t *testing.T) {
	v, err := GroupByStatus(scenarioRecords(), []string{"OPEN", "ASSIGNED", "DONE"})
	require.NoError(t, err)
	assert.Equal(t, []Count{{"OPEN", 1}, {"ASSIGNED", 0}, {"DONE", 1}}, v.Counts())
}

var (
	propertyStatuses    = append(enum.IssueStatus.Names(), "TRIAGE", "7", "")
	propertyResolutions = append(enum.IssueResolution.Names(), "resolved", "")
	propertyAssignees   = []*string{nil, strPtr("amy"), strPtr("bob"), strPtr("")}
)

func randomRecords(r *rand.Rand) []domain.Issue {
	n := r.Intn(40)
	out := make([]domain.Issue, n)
	for i := range out {
		out[i] = issue(
			fmt.Sprintf("P-%d", i),
			propertyStatuses[r.Intn(len(propertyStatuses))],
			propertyResolutions[r.Intn(len(propertyResolutions))],
			propertyAssignees[r.Intn(len(propertyAssignees))],
		)
	}
	return out
}

func TestViewProperties(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	keys := []string{"OPEN", "ASSIGNED", "DONE"}

	for round := 0; round < 200; round++ {
		records := randomRecords(r)

		// Coverage: every key present, nothing lost.
		v, err := GroupByStatus(records, keys)
		require.NoError(t, err)
		for _, k := range keys {
			require.True(t, v.Has(k))
		}
		require.Equal(t, len(records), v.Total())

		// Idempotence: regrouping the flattened view is a no-op.
		again, err := GroupByStatus(v.Flatten(), keys)
		require.NoError(t, err)
		require.Equal(t, v.Keys(), again.Keys())
		for _, k := range v.Keys() {
			require.Equal(t, names(v.Get(k)), names(again.Get(k)))
		}

		// Partition completeness and disjointness.
		p := PartitionByResolution(records)
		require.Equal(t, len(records), len(p.Open)+len(p.Closed))
		seen := make(map[string]bool)
		for _, is := range append(append([]domain.Issue(nil), p.Open...), p.Closed...) {
			require.False(t, seen[is.Name], "duplicate %s", is.Name)
			seen[is.Name] = true
		}

		// Filter pass-through.
		require.Equal(t, records, FilterByAssignee(records, nil))
	}
}
