package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"tix/internal/enum"
)

// ErrInvalidInput marks a collection that is not shaped like one: a
// payload that is not a JSON array, or a malformed key set handed to the
// view engine.
var ErrInvalidInput = errors.New("invalid input")

// enumField accepts either a member name or a legacy numeric code.
type enumField struct {
	raw json.RawMessage
}

func (f *enumField) UnmarshalJSON(data []byte) error {
	f.raw = append(f.raw[:0], data...)
	return nil
}

// resolve maps the raw value onto d. Names are trimmed and uppercased,
// codes go through NameOf whether they arrive as numbers or as decimal text,
// and null or "" become UNKNOWN. A code with no owner is kept as its decimal
// text so the record is never dropped.
func (f enumField) resolve(d *enum.Domain) (string, error) {
	raw := bytes.TrimSpace(f.raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return enum.Unknown, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrInvalidInput, d.Name(), err)
		}
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			return enum.Unknown, nil
		}
		if _, err := strconv.Atoi(s); err == nil {
			if name, err := d.ParseCode(s); err == nil {
				return name, nil
			}
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("%w: %s: expected name or code, got %s", ErrInvalidInput, d.Name(), raw)
	}
	code, err := strconv.Atoi(n.String())
	if err != nil {
		return "", fmt.Errorf("%w: %s: expected integer code, got %s", ErrInvalidInput, d.Name(), raw)
	}
	name, err := d.NameOf(code)
	if err != nil {
		return n.String(), nil
	}
	return name, nil
}

type wireIssue struct {
	Issue
	Type       enumField `json:"issue_type"`
	Status     enumField `json:"issue_status"`
	Resolution enumField `json:"issue_resolution"`
}

type wireActivity struct {
	Activity
	Type enumField `json:"activity_type"`
}

// DecodeIssues decodes a JSON array of issue records and normalizes their
// enum fields. JSON null decodes to an empty collection.
func DecodeIssues(data []byte) ([]Issue, error) {
	var wire []wireIssue
	if err := decodeArray(data, &wire); err != nil {
		return nil, err
	}
	issues := make([]Issue, 0, len(wire))
	for i, w := range wire {
		issue := w.Issue
		var err error
		if issue.Type, err = w.Type.resolve(enum.IssueType); err != nil {
			return nil, fmt.Errorf("issue %d: %w", i, err)
		}
		if issue.Status, err = w.Status.resolve(enum.IssueStatus); err != nil {
			return nil, fmt.Errorf("issue %d: %w", i, err)
		}
		if issue.Resolution, err = w.Resolution.resolve(enum.IssueResolution); err != nil {
			return nil, fmt.Errorf("issue %d: %w", i, err)
		}
		for j := range issue.Activity {
			issue.Activity[j].Type = strings.ToUpper(strings.TrimSpace(issue.Activity[j].Type))
		}
		issues = append(issues, issue)
	}
	return issues, nil
}

// DecodeIssue decodes a single issue object, as returned by /issues/<name>.
func DecodeIssue(data []byte) (Issue, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Issue{}, fmt.Errorf("%w: expected JSON object", ErrInvalidInput)
	}
	issues, err := DecodeIssues(append(append([]byte{'['}, trimmed...), ']'))
	if err != nil {
		return Issue{}, err
	}
	return issues[0], nil
}

// DecodeActivity decodes a JSON array of activity entries.
func DecodeActivity(data []byte) ([]Activity, error) {
	var wire []wireActivity
	if err := decodeArray(data, &wire); err != nil {
		return nil, err
	}
	out := make([]Activity, 0, len(wire))
	for i, w := range wire {
		a := w.Activity
		var err error
		if a.Type, err = w.Type.resolve(enum.ActivityType); err != nil {
			return nil, fmt.Errorf("activity %d: %w", i, err)
		}
		out = append(out, a)
	}
	return out, nil
}

func decodeArray(data []byte, v any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("%w: empty payload", ErrInvalidInput)
	}
	if bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] != '[' {
		return fmt.Errorf("%w: expected JSON array", ErrInvalidInput)
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}
