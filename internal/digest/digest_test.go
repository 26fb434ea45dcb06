package digest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tix/internal/config"
	"tix/internal/domain"
	"tix/internal/view"
)

func strPtr(s string) *string { return &s }

func digestRecords() []domain.Issue {
	return []domain.Issue{
		{Name: "WEB-0001", Status: "IN_PROGRESS", Resolution: "UNRESOLVED", Assignee: strPtr("amy")},
		{Name: "WEB-0002", Status: "IN_PROGRESS", Resolution: "UNRESOLVED", Assignee: strPtr("amy")},
		{Name: "WEB-0003", Status: "OPEN", Resolution: "UNRESOLVED", Assignee: strPtr("amy")},
		{Name: "WEB-0004", Status: "DONE", Resolution: "COMPLETE", Assignee: strPtr("amy")},
		{Name: "WEB-0005", Status: "UNDER_REVIEW", Resolution: "UNRESOLVED", Assignee: strPtr("bob")},
		{Name: "WEB-0006", Status: "DONE", Resolution: "COMPLETE", Assignee: strPtr("carol")},
	}
}

func TestBuildForUser(t *testing.T) {
	d, err := Build(digestRecords(), strPtr("amy"), view.DefaultExcludedStatuses)
	require.NoError(t, err)
	assert.Equal(t, "amy", d.User)
	assert.Equal(t, 3, d.Open)
	assert.Equal(t, 1, d.Closed)
	assert.False(t, d.CaughtUp)

	groups := d.Actionable()
	require.Len(t, groups, 1)
	assert.Equal(t, "IN_PROGRESS", groups[0].Key)

	assert.Equal(t, "*Issue digest for amy*\n• In Progress (2): WEB-0001, WEB-0002\n3 open, 1 closed", FormatMessage(d))
}

func TestBuildCaughtUp(t *testing.T) {
	d, err := Build(digestRecords(), strPtr("carol"), view.DefaultExcludedStatuses)
	require.NoError(t, err)
	assert.True(t, d.CaughtUp)
	assert.Empty(t, d.Actionable())
	assert.Equal(t, "*Issue digest for carol*\nYou're all caught up! (0 open, 1 closed)", FormatMessage(d))
}

func TestBuildTeam(t *testing.T) {
	d, err := Build(digestRecords(), nil, view.DefaultExcludedStatuses)
	require.NoError(t, err)
	assert.Equal(t, "", d.User)
	assert.Equal(t, 4, d.Open)
	assert.Contains(t, FormatMessage(d), "*Team issue digest*\n")
	assert.Contains(t, FormatMessage(d), "• Under Review (1): WEB-0005\n")
}

func TestParseMember(t *testing.T) {
	cases := []struct{ in, user, ref string }{
		{"amy", "amy", "amy"},
		{" amy : U0123ABCD ", "amy", "U0123ABCD"},
		{"bob:Bob Stone", "bob", "Bob Stone"},
		{"carol:", "carol", "carol"},
	}
	for _, tc := range cases {
		user, ref := ParseMember(tc.in)
		assert.Equal(t, tc.user, user, tc.in)
		assert.Equal(t, tc.ref, ref, tc.in)
	}
}

type post struct{ target, text string }

type fakePoster struct {
	posts   []post
	failFor string
}

func (f *fakePoster) PostChannel(_ context.Context, channelID, text string) error {
	f.posts = append(f.posts, post{"#" + channelID, text})
	return nil
}

func (f *fakePoster) PostDirect(_ context.Context, member, text string) error {
	if member == f.failFor {
		return errors.New("user_not_found")
	}
	f.posts = append(f.posts, post{"@" + member, text})
	return nil
}

type fakeSummarizer struct{ calls int }

func (f *fakeSummarizer) Summarize(_ context.Context, d Digest) (string, error) {
	f.calls++
	return "Focus on " + d.Actionable()[0].Issues[0].Name + ".", nil
}

func issuesFn(records []domain.Issue) func(context.Context) ([]domain.Issue, error) {
	return func(context.Context) ([]domain.Issue, error) { return records, nil }
}

func TestSendPostsChannelAndMembers(t *testing.T) {
	poster := &fakePoster{failFor: "U0GHOST00"}
	summarizer := &fakeSummarizer{}
	cfg := config.Config{
		DigestChannelID:  "C123",
		DigestMembers:    []string{"amy:U0AMY0000", "carol", "ghost:U0GHOST00"},
		ExcludedStatuses: view.DefaultExcludedStatuses,
		DigestLLMSummary: true,
	}

	err := Send(context.Background(), cfg, Deps{Issues: issuesFn(digestRecords()), Poster: poster, Summarizer: summarizer})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost: user_not_found")

	require.Len(t, poster.posts, 3)
	assert.Equal(t, "#C123", poster.posts[0].target)
	assert.Equal(t, "@U0AMY0000", poster.posts[1].target)
	assert.Contains(t, poster.posts[1].text, "\n\nFocus on WEB-0001.")
	assert.Equal(t, "@carol", poster.posts[2].target)
	assert.NotContains(t, poster.posts[2].text, "Focus on", "caught-up digests skip the summary")
	assert.Equal(t, 2, summarizer.calls)
}

func TestSendLoadError(t *testing.T) {
	deps := Deps{
		Issues: func(context.Context) ([]domain.Issue, error) { return nil, errors.New("api down") },
		Poster: &fakePoster{},
	}
	err := Send(context.Background(), config.Config{DigestChannelID: "C1"}, deps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api down")
}

func TestStartSchedulerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := StartScheduler(ctx, config.Config{DigestSchedule: "0 9 * * 1-5"}, Deps{})
	assert.NoError(t, err)
}

func TestStartSchedulerRequiresSchedule(t *testing.T) {
	err := StartScheduler(context.Background(), config.Config{}, Deps{})
	assert.ErrorIs(t, err, ErrNoSchedule)

	err = StartScheduler(context.Background(), config.Config{DigestSchedule: "bad"}, Deps{})
	assert.Error(t, err)
}
