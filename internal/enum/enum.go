// Package enum holds closed name<->code domains such as issue status.
//
// A Domain is built once with New (or MustNew for package-level tables),
// validated as a bijection, and never mutated afterwards. Lookups go in one
// explicit direction: CodeOf for names, NameOf for codes. ParseCode covers
// legacy records that carry a code as decimal text.
package enum

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Unknown is the sentinel member every domain reserves for code 0.
const Unknown = "UNKNOWN"

var (
	ErrUnknownMember = errors.New("unknown enum member")
	ErrInvalidDomain = errors.New("invalid enum domain")
)

type Member struct {
	Name string
	Code int
}

// Domain is an immutable, ordered name<->code bijection. Safe for
// concurrent reads.
type Domain struct {
	name    string
	members []Member
	byName  map[string]int
	byCode  map[int]string
}

func New(name string, members ...Member) (*Domain, error) {
	d := &Domain{
		name:    name,
		members: make([]Member, 0, len(members)),
		byName:  make(map[string]int, len(members)),
		byCode:  make(map[int]string, len(members)),
	}
	for _, m := range members {
		if strings.TrimSpace(m.Name) == "" {
			return nil, fmt.Errorf("%s: %w: empty member name (code %d)", name, ErrInvalidDomain, m.Code)
		}
		if m.Code < 0 {
			return nil, fmt.Errorf("%s: %w: negative code %d for %s", name, ErrInvalidDomain, m.Code, m.Name)
		}
		if _, dup := d.byName[m.Name]; dup {
			return nil, fmt.Errorf("%s: %w: duplicate name %s", name, ErrInvalidDomain, m.Name)
		}
		if owner, dup := d.byCode[m.Code]; dup {
			return nil, fmt.Errorf("%s: %w: %s and %s share code %d", name, ErrInvalidDomain, owner, m.Name, m.Code)
		}
		if m.Code == 0 && m.Name != Unknown {
			return nil, fmt.Errorf("%s: %w: code 0 is reserved for %s, got %s", name, ErrInvalidDomain, Unknown, m.Name)
		}
		d.byName[m.Name] = m.Code
		d.byCode[m.Code] = m.Name
		d.members = append(d.members, m)
	}
	if code, ok := d.byName[Unknown]; !ok || code != 0 {
		return nil, fmt.Errorf("%s: %w: missing %s=0 sentinel", name, ErrInvalidDomain, Unknown)
	}
	return d, nil
}

// MustNew is New for static tables; it panics on an invalid domain.
func MustNew(name string, members ...Member) *Domain {
	d, err := New(name, members...)
	if err != nil {
		panic(err)
	}
	return d
}

func (d *Domain) Name() string {
	return d.name
}

func (d *Domain) Len() int {
	return len(d.members)
}

// CodeOf returns the code bound to name. Matching is exact; callers holding
// user or wire input normalize casing first.
func (d *Domain) CodeOf(name string) (int, error) {
	code, ok := d.byName[name]
	if !ok {
		return 0, fmt.Errorf("%s: %w: name %q", d.name, ErrUnknownMember, name)
	}
	return code, nil
}

// NameOf returns the name that owns code.
func (d *Domain) NameOf(code int) (string, error) {
	name, ok := d.byCode[code]
	if !ok {
		return "", fmt.Errorf("%s: %w: code %d", d.name, ErrUnknownMember, code)
	}
	return name, nil
}

// ParseCode resolves a decimal code token such as "3" to its member name.
func (d *Domain) ParseCode(token string) (string, error) {
	code, err := strconv.Atoi(strings.TrimSpace(token))
	if err != nil {
		return "", fmt.Errorf("%s: %w: %q is not a code", d.name, ErrUnknownMember, token)
	}
	return d.NameOf(code)
}

func (d *Domain) Contains(name string) bool {
	_, ok := d.byName[name]
	return ok
}

// Names returns member names in declaration order.
func (d *Domain) Names() []string {
	names := make([]string, len(d.members))
	for i, m := range d.members {
		names[i] = m.Name
	}
	return names
}

func (d *Domain) Members() []Member {
	return append([]Member(nil), d.members...)
}
