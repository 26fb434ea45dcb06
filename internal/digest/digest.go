// Package digest builds the per-user "what is on my plate" summary from the
// view engine and delivers it on a cron schedule.
package digest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"tix/internal/config"
	"tix/internal/domain"
	"tix/internal/render"
	"tix/internal/view"
)

var ErrNoSchedule = errors.New("digest_schedule not set")

// Digest is the actionable state of one user's issues, or of the whole
// tracker when User is empty.
type Digest struct {
	User     string
	View     view.GroupedView
	Excluded []string
	Open     int
	Closed   int
	CaughtUp bool
}

// Build derives a digest: records are narrowed to user, closed issues are
// set aside, and the open ones are grouped by status. A nil user covers
// everyone.
func Build(records []domain.Issue, user *string, excluded []string) (Digest, error) {
	mine := view.FilterByAssignee(records, user)
	p := view.PartitionByResolution(mine)
	v, err := view.GroupByStatus(p.Open, view.DashboardKeys())
	if err != nil {
		return Digest{}, err
	}
	d := Digest{
		View:     v,
		Excluded: excluded,
		Open:     len(p.Open),
		Closed:   len(p.Closed),
		CaughtUp: view.IsEmpty(v, excluded),
	}
	if user != nil {
		d.User = *user
	}
	return d, nil
}

// Actionable returns the non-empty groups outside the excluded statuses.
func (d Digest) Actionable() []view.Group {
	skip := make(map[string]bool, len(d.Excluded))
	for _, k := range d.Excluded {
		skip[k] = true
	}
	var out []view.Group
	for _, g := range d.View.Groups() {
		if skip[g.Key] || len(g.Issues) == 0 {
			continue
		}
		out = append(out, g)
	}
	return out
}

func FormatMessage(d Digest) string {
	var b strings.Builder
	if d.User != "" {
		fmt.Fprintf(&b, "*Issue digest for %s*\n", d.User)
	} else {
		b.WriteString("*Team issue digest*\n")
	}
	if d.CaughtUp {
		fmt.Fprintf(&b, "%s (%d open, %d closed)", render.CaughtUpMessage, d.Open, d.Closed)
		return b.String()
	}
	for _, g := range d.Actionable() {
		names := make([]string, len(g.Issues))
		for i, is := range g.Issues {
			names[i] = is.Name
		}
		fmt.Fprintf(&b, "• %s (%d): %s\n", render.Label(g.Key), len(g.Issues), strings.Join(names, ", "))
	}
	fmt.Fprintf(&b, "%d open, %d closed", d.Open, d.Closed)
	return b.String()
}

// ParseMember splits a digest_members entry. "amy" means tracker user amy,
// resolved in Slack by the same name; "amy:U0123ABCD" or "amy:Amy Lee"
// names the Slack account explicitly.
func ParseMember(entry string) (user, slackRef string) {
	entry = strings.TrimSpace(entry)
	if i := strings.Index(entry, ":"); i >= 0 {
		user = strings.TrimSpace(entry[:i])
		slackRef = strings.TrimSpace(entry[i+1:])
	} else {
		user = entry
	}
	if slackRef == "" {
		slackRef = user
	}
	return user, slackRef
}

type Poster interface {
	PostChannel(ctx context.Context, channelID, text string) error
	PostDirect(ctx context.Context, member, text string) error
}

type Summarizer interface {
	Summarize(ctx context.Context, d Digest) (string, error)
}

type Deps struct {
	Issues func(ctx context.Context) ([]domain.Issue, error)
	Poster Poster
	// Summarizer is optional; it is only used when digest_llm_summary is on.
	Summarizer Summarizer
}

// Send builds and posts one round of digests: the team digest to the
// channel, then one DM per member. Delivery failures are logged and
// returned together; one bad member does not stop the rest.
func Send(ctx context.Context, cfg config.Config, deps Deps) error {
	records, err := deps.Issues(ctx)
	if err != nil {
		return fmt.Errorf("loading issues: %w", err)
	}

	var errs []error
	if cfg.DigestChannelID != "" {
		if err := sendOne(ctx, cfg, deps, records, nil, func(text string) error {
			return deps.Poster.PostChannel(ctx, cfg.DigestChannelID, text)
		}); err != nil {
			log.Error().Err(err).Str("channel", cfg.DigestChannelID).Msg("digest channel post failed")
			errs = append(errs, err)
		} else {
			log.Info().Str("channel", cfg.DigestChannelID).Msg("digest sent")
		}
	}

	for _, entry := range cfg.DigestMembers {
		user, ref := ParseMember(entry)
		if user == "" {
			continue
		}
		if err := sendOne(ctx, cfg, deps, records, &user, func(text string) error {
			return deps.Poster.PostDirect(ctx, ref, text)
		}); err != nil {
			log.Error().Err(err).Str("member", user).Msg("digest dm failed")
			errs = append(errs, fmt.Errorf("%s: %w", user, err))
			continue
		}
		log.Info().Str("member", user).Msg("digest sent")
	}
	return errors.Join(errs...)
}

func sendOne(ctx context.Context, cfg config.Config, deps Deps, records []domain.Issue, user *string, post func(string) error) error {
	d, err := Build(records, user, cfg.ExcludedStatuses)
	if err != nil {
		return err
	}
	text := FormatMessage(d)
	if cfg.DigestLLMSummary && deps.Summarizer != nil && !d.CaughtUp {
		summary, err := deps.Summarizer.Summarize(ctx, d)
		if err != nil {
			log.Warn().Err(err).Msg("digest summary failed")
		} else if summary = strings.TrimSpace(summary); summary != "" {
			text += "\n\n" + summary
		}
	}
	return post(text)
}

// StartScheduler sends digests on cfg.DigestSchedule (5-field cron) until
// ctx is done. It blocks.
func StartScheduler(ctx context.Context, cfg config.Config, deps Deps) error {
	schedule := strings.TrimSpace(cfg.DigestSchedule)
	if schedule == "" {
		return ErrNoSchedule
	}
	sched, err := config.ParseSchedule(schedule)
	if err != nil {
		return fmt.Errorf("invalid digest_schedule '%s': %w", schedule, err)
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	log.Info().Str("cron", schedule).Int("members", len(cfg.DigestMembers)).Msg("digest scheduled")

	for {
		now := time.Now().In(loc)
		next := sched.Next(now)
		wait := next.Sub(now)
		log.Info().Str("next", next.Format("Mon Jan 2 15:04")).Dur("in", wait.Round(time.Minute)).Msg("digest next run")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info().Msg("digest scheduler stopped")
			return nil
		case <-timer.C:
		}

		if err := Send(ctx, cfg, deps); err != nil {
			log.Error().Err(err).Msg("digest round failed")
		}
	}
}
