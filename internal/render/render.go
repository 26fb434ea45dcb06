// Package render turns views into markdown text for the terminal and for
// report files.
package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tix/internal/domain"
	"tix/internal/enum"
	"tix/internal/view"
)

const (
	CaughtUpMessage = "You're all caught up!"
	timestampLayout = "2006-01-02 15:04"
)

type DashboardOptions struct {
	Title    string
	Excluded []string
}

// Dashboard renders one "### KEY (n)" section per group. The UNKNOWN group
// is only shown when something landed in it.
func Dashboard(v view.GroupedView, opts DashboardOptions) string {
	var b strings.Builder
	title := opts.Title
	if title == "" {
		title = "Dashboard"
	}
	fmt.Fprintf(&b, "## %s\n\n", title)
	if view.IsEmpty(v, opts.Excluded) {
		b.WriteString(CaughtUpMessage + "\n\n")
	}

	for _, g := range v.Groups() {
		if g.Key == enum.Unknown && len(g.Issues) == 0 {
			continue
		}
		fmt.Fprintf(&b, "### %s (%d)\n\n", g.Key, len(g.Issues))
		for _, is := range g.Issues {
			b.WriteString(issueBullet(is) + "\n")
		}
		if len(g.Issues) > 0 {
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func issueBullet(is domain.Issue) string {
	line := fmt.Sprintf("- [%s] **%s**", is.Type, is.Name)
	if is.Summary != "" {
		line += " " + is.Summary
	}
	return line
}

// Table renders records as a markdown table with the issue table columns.
func Table(records []domain.Issue) string {
	var b strings.Builder
	b.WriteString("| Type | Priority | Name | Summary | Assignee | Story Points |\n")
	b.WriteString("|---|---|---|---|---|---|\n")
	for _, is := range records {
		assignee := is.AssignedTo()
		if assignee == "" {
			assignee = "-"
		}
		fmt.Fprintf(&b, "| %s | %d | %s | %s | %s | %d |\n",
			Label(is.Type), is.Priority, is.Name, cell(is.Summary), cell(assignee), is.StoryPoints)
	}
	return b.String()
}

// GroupedTable renders one table per non-empty group.
func GroupedTable(v view.GroupedView) string {
	var sections []string
	for _, g := range v.Groups() {
		if len(g.Issues) == 0 {
			continue
		}
		sections = append(sections, fmt.Sprintf("### %s (%d)\n\n%s", g.Key, len(g.Issues), Table(g.Issues)))
	}
	if len(sections) == 0 {
		return "No issues.\n"
	}
	return strings.Join(sections, "\n")
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}

// Detail renders one issue with its activity timeline.
func Detail(is domain.Issue, activity []domain.Activity, loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s: %s\n\n", is.Name, is.Summary)
	if !is.Open() {
		fmt.Fprintf(&b, "Resolved: %s\n\n", Label(is.Resolution))
	}

	rows := [][2]string{
		{"Type", Label(is.Type)},
		{"Status", Label(is.Status)},
		{"Priority", fmt.Sprintf("%d", is.Priority)},
		{"Story Points", fmt.Sprintf("%d", is.StoryPoints)},
		{"Resolution", Label(is.Resolution)},
		{"Affected Version", deref(is.AffectedVersion)},
		{"Fixed Version", deref(is.FixedVersion)},
		{"Assignee", is.AssignedTo()},
		{"Reporter", is.CreatedBy},
		{"Created", formatTimestamp(is.CreatedAt, loc)},
	}
	if is.UpdatedAt != nil {
		rows = append(rows, [2]string{"Updated", formatTimestamp(*is.UpdatedAt, loc)})
	}
	for _, r := range rows {
		if r[1] == "" {
			continue
		}
		fmt.Fprintf(&b, "- **%s:** %s\n", r[0], r[1])
	}

	if desc := deref(is.Description); desc != "" {
		fmt.Fprintf(&b, "\n### Description\n\n%s\n", strings.TrimSpace(desc))
	}

	fmt.Fprintf(&b, "\n### Activity (%d)\n", len(activity))
	for _, a := range activity {
		fmt.Fprintf(&b, "\n%s\n", ActivityLine(a, loc))
		if text := strings.TrimSpace(a.Text); text != "" {
			fmt.Fprintf(&b, "\n%s\n", text)
		}
	}
	return b.String()
}

// ActivityLine renders "<user> added a/an <type> - <time>".
func ActivityLine(a domain.Activity, loc *time.Location) string {
	article := "a"
	if a.Type != "" && strings.ContainsRune("AEIOU", rune(a.Type[0])) {
		article = "an"
	}
	return fmt.Sprintf("%s added %s %s - %s", a.CreatedBy, article, a.Type, formatTimestamp(a.CreatedAt, loc))
}

// Label turns an enum name such as IN_PROGRESS into "In Progress".
func Label(name string) string {
	words := strings.Fields(strings.ReplaceAll(name, "_", " "))
	for i, w := range words {
		w = strings.ToLower(w)
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func formatTimestamp(ms int64, loc *time.Location) string {
	t := domain.MillisToTime(ms)
	if t.IsZero() {
		return ""
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(timestampLayout)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// WriteReportFile writes content to <outputDir>/<name>_<yyyymmdd>.md and
// returns the path.
func WriteReportFile(content, outputDir string, reportDate time.Time, name string) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", err
	}
	filename := fmt.Sprintf("%s_%s.md", sanitizeFilename(name), reportDate.Format("20060102"))
	path := filepath.Join(outputDir, filename)
	return path, os.WriteFile(path, []byte(content), 0644)
}

func sanitizeFilename(s string) string {
	replacer := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_", " ", "_")
	return replacer.Replace(s)
}
