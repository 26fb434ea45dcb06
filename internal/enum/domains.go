package enum

import "strings"

// Issue and activity domains. Names are the canonical uppercase form used on
// the wire; UNRESOLVED marks an issue that is still open.

const (
	StatusOpen        = "OPEN"
	StatusAssigned    = "ASSIGNED"
	StatusInProgress  = "IN_PROGRESS"
	StatusOnHold      = "ON_HOLD"
	StatusUnderReview = "UNDER_REVIEW"
	StatusDone        = "DONE"
	StatusReleased    = "RELEASED"

	ResolutionUnresolved = "UNRESOLVED"
	ResolutionComplete   = "COMPLETE"
)

var IssueType = MustNew("IssueType",
	Member{Unknown, 0},
	Member{"BUG", 1},
	Member{"TASK", 2},
	Member{"FEATURE", 3},
	Member{"REQUIREMENT", 4},
	Member{"SUPPORT", 5},
	Member{"EPIC", 6},
)

var IssueStatus = MustNew("IssueStatus",
	Member{Unknown, 0},
	Member{StatusOpen, 1},
	Member{StatusAssigned, 2},
	Member{StatusInProgress, 3},
	Member{StatusOnHold, 4},
	Member{StatusUnderReview, 5},
	Member{StatusDone, 6},
	Member{StatusReleased, 7},
)

var IssueResolution = MustNew("IssueResolution",
	Member{Unknown, 0},
	Member{ResolutionUnresolved, 1},
	Member{"INVALID", 2},
	Member{"WONT_FIX", 3},
	Member{"OVERCOME_BY_EVENTS", 4},
	Member{"UNABLE_TO_REPLICATE", 5},
	Member{"DUPLICATE", 6},
	Member{ResolutionComplete, 7},
)

var ActivityType = MustNew("ActivityType",
	Member{Unknown, 0},
	Member{"COMMENT", 1},
	Member{"ASSIGNMENT", 2},
	Member{"STATUS", 3},
	Member{"RESOLUTION", 4},
)

// Lookup returns the static domain with the given name, matched
// case-insensitively against "type", "status", "resolution" and "activity"
// as well as the full domain names.
func Lookup(name string) (*Domain, bool) {
	switch normalizeDomainName(name) {
	case "type", "issuetype":
		return IssueType, true
	case "status", "issuestatus":
		return IssueStatus, true
	case "resolution", "issueresolution":
		return IssueResolution, true
	case "activity", "activitytype":
		return ActivityType, true
	}
	return nil, false
}

var domainNameReplacer = strings.NewReplacer("_", "", "-", "", " ", "")

func normalizeDomainName(name string) string {
	return domainNameReplacer.Replace(strings.ToLower(strings.TrimSpace(name)))
}
