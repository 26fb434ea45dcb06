package enum

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticDomainsAreBijections(t *testing.T) {
	for _, d := range []*Domain{IssueType, IssueStatus, IssueResolution, ActivityType} {
		t.Run(d.Name(), func(t *testing.T) {
			for _, m := range d.Members() {
				code, err := d.CodeOf(m.Name)
				require.NoError(t, err)
				assert.Equal(t, m.Code, code)

				name, err := d.NameOf(m.Code)
				require.NoError(t, err)
				assert.Equal(t, m.Name, name)
			}
			assert.Equal(t, Unknown, d.Names()[0])
		})
	}
}

func TestIssueStatusLookups(t *testing.T) {
	code, err := IssueStatus.CodeOf("OPEN")
	require.NoError(t, err)
	assert.Equal(t, 1, code)

	name, err := IssueStatus.NameOf(1)
	require.NoError(t, err)
	assert.Equal(t, "OPEN", name)

	_, err = IssueStatus.CodeOf("NOPE")
	assert.ErrorIs(t, err, ErrUnknownMember)

	_, err = IssueStatus.NameOf(42)
	assert.ErrorIs(t, err, ErrUnknownMember)
}

func TestCodeOfIsCaseSensitive(t *testing.T) {
	_, err := IssueResolution.CodeOf("unresolved")
	assert.ErrorIs(t, err, ErrUnknownMember)
}

func TestParseCode(t *testing.T) {
	name, err := IssueStatus.ParseCode(" 3 ")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, name)

	_, err = IssueStatus.ParseCode("OPEN")
	assert.ErrorIs(t, err, ErrUnknownMember)

	_, err = IssueStatus.ParseCode("99")
	assert.ErrorIs(t, err, ErrUnknownMember)
}

func TestNewRejectsInvalidDomains(t *testing.T) {
	tests := []struct {
		name    string
		members []Member
	}{
		{"shared code", []Member{{Unknown, 0}, {"A", 1}, {"B", 1}}},
		{"duplicate name", []Member{{Unknown, 0}, {"A", 1}, {"A", 2}}},
		{"empty name", []Member{{Unknown, 0}, {" ", 1}}},
		{"negative code", []Member{{Unknown, 0}, {"A", -1}}},
		{"missing sentinel", []Member{{"A", 1}, {"B", 2}}},
		{"code zero taken", []Member{{"A", 0}, {Unknown, 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := New("Test", tt.members...)
			assert.Nil(t, d)
			assert.True(t, errors.Is(err, ErrInvalidDomain), "got %v", err)
		})
	}
}

func TestMustNewPanicsOnInvalidDomain(t *testing.T) {
	assert.Panics(t, func() {
		MustNew("Broken", Member{Unknown, 0}, Member{"A", 0})
	})
}

func TestNamesPreserveDeclarationOrder(t *testing.T) {
	d, err := New("Order", Member{Unknown, 0}, Member{"ZED", 5}, Member{"ALPHA", 2})
	require.NoError(t, err)
	assert.Equal(t, []string{Unknown, "ZED", "ALPHA"}, d.Names())

	names := d.Names()
	names[0] = "MUTATED"
	assert.Equal(t, Unknown, d.Names()[0])
}

func TestLookup(t *testing.T) {
	d, ok := Lookup("Status")
	require.True(t, ok)
	assert.Same(t, IssueStatus, d)

	d, ok = Lookup("issue_resolution")
	require.True(t, ok)
	assert.Same(t, IssueResolution, d)

	_, ok = Lookup("priority")
	assert.False(t, ok)
}
