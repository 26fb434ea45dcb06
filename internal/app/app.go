package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"tix/internal/config"
	"tix/internal/digest"
	"tix/internal/domain"
	"tix/internal/enum"
	"tix/internal/fetch"
	"tix/internal/httpx"
	"tix/internal/integrations/llm"
	slackbot "tix/internal/integrations/slack"
	"tix/internal/integrations/tixapi"
	"tix/internal/logger"
	"tix/internal/render"
	"tix/internal/storage/sqlite"
	"tix/internal/view"
)

// usageError marks bad command-line input; it exits with status 2.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return usageError{msg: fmt.Sprintf(format, args...)}
}

func Main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// Run executes one command and returns the process exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printUsage(stderr)
		if len(args) == 0 {
			return 2
		}
		return 0
	}

	cmd, rest := args[0], args[1:]
	var err error
	if _, ok := commands[cmd]; !ok {
		err = usagef("unknown command %q", cmd)
	} else if cmd == "enum" {
		// Enum lookups are static and need no configuration.
		err = runEnum(rest, stdout)
	} else {
		err = runWithConfig(ctx, cmd, rest, stdout)
	}
	if err == nil {
		return 0
	}

	var ue usageError
	if errors.As(err, &ue) || errors.Is(err, pflag.ErrHelp) {
		if !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintf(stderr, "error: %v\n", err)
		}
		printUsage(stderr)
		return 2
	}
	log.Error().Err(err).Str("command", cmd).Msg("command failed")
	fmt.Fprintf(stderr, "error: %v\n", err)
	return 1
}

var commands = map[string]bool{
	"dashboard": true,
	"issues":    true,
	"show":      true,
	"sync":      true,
	"digest":    true,
	"enum":      true,
	"settings":  true,
}

type session struct {
	cfg    config.Config
	stdout io.Writer
	client *tixapi.Client
	db     *sql.DB
}

func runWithConfig(ctx context.Context, cmd string, args []string, stdout io.Writer) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger.New(cfg)
	applied := httpx.ConfigureExternalHTTPClient(cfg.ExternalHTTPTimeoutSeconds)
	log.Debug().Str("env", cfg.Env).Str("api_root", cfg.APIRoot).Dur("http_timeout", applied).Msg("config loaded")

	s := &session{cfg: cfg, stdout: stdout, client: tixapi.NewClient(cfg.APIRoot)}
	defer s.close()

	switch cmd {
	case "dashboard":
		return s.dashboard(ctx, args)
	case "issues":
		return s.issues(ctx, args)
	case "show":
		return s.show(ctx, args)
	case "sync":
		return s.sync(ctx, args)
	case "digest":
		return s.digest(ctx, args)
	case "settings":
		return s.settings(args)
	}
	return usagef("unknown command %q", cmd)
}

func (s *session) openDB() (*sql.DB, error) {
	if s.db != nil {
		return s.db, nil
	}
	db, err := sqlite.InitDB(s.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot %s: %w", s.cfg.DBPath, err)
	}
	s.db = db
	return db, nil
}

func (s *session) close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

// loadIssues fetches from the API, or reads the snapshot when offline. An
// API failure falls back to the snapshot if one exists.
func (s *session) loadIssues(ctx context.Context, offline bool) ([]domain.Issue, error) {
	if !offline {
		issues, err := s.client.ListIssues(ctx, nil)
		if err == nil {
			return issues, nil
		}
		db, dbErr := s.openDB()
		if dbErr != nil {
			return nil, err
		}
		if _, snapErr := sqlite.LatestSync(db); snapErr != nil {
			return nil, err
		}
		log.Warn().Err(err).Msg("api unavailable, using snapshot")
	}

	db, err := s.openDB()
	if err != nil {
		return nil, err
	}
	if _, err := sqlite.LatestSync(db); err != nil {
		return nil, err
	}
	return sqlite.LoadIssues(db)
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseFlags(fs *pflag.FlagSet, args []string) error {
	err := fs.Parse(args)
	if err == nil || errors.Is(err, pflag.ErrHelp) {
		return err
	}
	return usagef("%s: %v", fs.Name(), err)
}

func (s *session) dashboard(ctx context.Context, args []string) error {
	fs := newFlagSet("dashboard")
	user := fs.String("user", "", "show issues assigned to this user (default: configured user)")
	all := fs.Bool("all", false, "ignore the session user and show everyone's issues")
	closed := fs.Bool("closed", false, "include resolved issues")
	offline := fs.Bool("offline", false, "render from the local snapshot")
	write := fs.Bool("write", false, "also write the dashboard to a markdown file in report_output_dir")
	out := fs.String("out", "", "write the markdown file to this directory instead (implies --write)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return usagef("unexpected argument: %s", fs.Arg(0))
	}

	records, err := s.loadIssues(ctx, *offline)
	if err != nil {
		return err
	}

	sessionUser := s.cfg.SessionUser()
	if fs.Changed("user") {
		sessionUser = user
	}
	if *all {
		sessionUser = nil
	}
	mine := view.FilterByAssignee(records, sessionUser)
	if !*closed {
		mine = view.PartitionByResolution(mine).Open
	}
	v, err := view.GroupByStatus(mine, view.DashboardKeys())
	if err != nil {
		return err
	}

	title := "Dashboard"
	if sessionUser != nil {
		title = "Dashboard: " + *sessionUser
	}
	content := render.Dashboard(v, render.DashboardOptions{Title: title, Excluded: s.cfg.ExcludedStatuses})
	fmt.Fprint(s.stdout, content)

	if *write || *out != "" {
		dir := *out
		if dir == "" {
			dir = s.cfg.ReportOutputDir
		}
		name := "dashboard"
		if sessionUser != nil {
			name += "_" + *sessionUser
		}
		path, err := render.WriteReportFile(content, dir, time.Now().In(s.cfg.Location), name)
		if err != nil {
			return fmt.Errorf("writing dashboard: %w", err)
		}
		log.Info().Str("path", path).Msg("dashboard written")
	}
	return nil
}

func (s *session) issues(ctx context.Context, args []string) error {
	fs := newFlagSet("issues")
	var filter view.Filter
	fs.StringVar(&filter.Status, "status", "", "only issues with this status")
	fs.StringVar(&filter.Type, "type", "", "only issues of this type")
	fs.StringVar(&filter.Resolution, "resolution", "", "only issues with this resolution")
	fs.StringVar(&filter.Project, "project", "", "only issues in this project")
	assignee := fs.String("assignee", "", "only issues assigned to this user")
	mine := fs.Bool("mine", false, "only issues assigned to the configured user")
	groupBy := fs.String("group-by", "", "group the table by status, type, resolution, assignee or project")
	offline := fs.Bool("offline", false, "read from the local snapshot")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return usagef("unexpected argument: %s", fs.Arg(0))
	}

	filter.Status = strings.ToUpper(strings.TrimSpace(filter.Status))
	filter.Type = strings.ToUpper(strings.TrimSpace(filter.Type))
	filter.Resolution = strings.ToUpper(strings.TrimSpace(filter.Resolution))
	switch {
	case fs.Changed("assignee"):
		filter.Assignee = assignee
	case *mine:
		filter.Assignee = s.cfg.SessionUser()
		if filter.Assignee == nil {
			return usagef("--mine needs a configured user")
		}
	}

	records, err := s.loadIssues(ctx, *offline)
	if err != nil {
		return err
	}
	selected := view.SortByPriority(view.Apply(records, filter))

	if *groupBy == "" {
		fmt.Fprint(s.stdout, render.Table(selected))
		return nil
	}
	v, err := view.GroupTable(selected, view.GroupField(*groupBy))
	if err != nil {
		return usagef("%v", err)
	}
	fmt.Fprint(s.stdout, render.GroupedTable(v))
	return nil
}

func (s *session) show(ctx context.Context, args []string) error {
	fs := newFlagSet("show")
	offline := fs.Bool("offline", false, "read from the local snapshot")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usagef("show takes exactly one issue name")
	}
	name := strings.ToUpper(strings.TrimSpace(fs.Arg(0)))

	var (
		issue    domain.Issue
		activity []domain.Activity
		err      error
	)
	if *offline {
		db, dbErr := s.openDB()
		if dbErr != nil {
			return dbErr
		}
		if issue, err = sqlite.FindIssue(db, name); err != nil {
			return err
		}
		if activity, err = sqlite.LoadActivity(db, issue.ID); err != nil {
			return err
		}
	} else {
		issue, err = s.client.GetIssue(ctx, name)
		if errors.Is(err, tixapi.ErrNotFound) {
			return fmt.Errorf("issue %s not found", name)
		}
		if err != nil {
			return err
		}
		activity, err = s.client.ListActivity(ctx, map[string]string{"issue_id": strconv.FormatInt(issue.ID, 10)})
		if err != nil {
			return err
		}
		activity = append(activity, issue.Activity...)
		activity = dedupeActivity(activity)
	}

	fmt.Fprint(s.stdout, render.Detail(issue, view.ActivityFor(activity, issue.ID), s.cfg.Location))
	return nil
}

func dedupeActivity(activity []domain.Activity) []domain.Activity {
	seen := make(map[int64]bool, len(activity))
	out := activity[:0]
	for _, a := range activity {
		if a.ID != 0 && seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		out = append(out, a)
	}
	return out
}

func (s *session) sync(ctx context.Context, args []string) error {
	fs := newFlagSet("sync")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	db, err := s.openDB()
	if err != nil {
		return err
	}
	result, err := fetch.Run(ctx, s.cfg.APIRoot, s.client, db)
	fmt.Fprintln(s.stdout, fetch.FormatSummary(result))
	return err
}

// stdoutPoster prints digests instead of posting them.
type stdoutPoster struct{ w io.Writer }

func (p stdoutPoster) PostChannel(_ context.Context, channelID, text string) error {
	_, err := fmt.Fprintf(p.w, "--- #%s\n%s\n", channelID, text)
	return err
}

func (p stdoutPoster) PostDirect(_ context.Context, member, text string) error {
	_, err := fmt.Fprintf(p.w, "--- @%s\n%s\n", member, text)
	return err
}

func (s *session) digest(ctx context.Context, args []string) error {
	fs := newFlagSet("digest")
	once := fs.Bool("once", false, "send one round of digests now and exit")
	dryRun := fs.Bool("dry-run", false, "print digests instead of posting to Slack")
	offline := fs.Bool("offline", false, "build digests from the local snapshot")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	deps := digest.Deps{
		Issues: func(ctx context.Context) ([]domain.Issue, error) {
			return s.loadIssues(ctx, *offline)
		},
	}
	if *dryRun {
		deps.Poster = stdoutPoster{w: s.stdout}
	} else {
		if !s.cfg.DigestConfigured() {
			return fmt.Errorf("digest needs slack_bot_token and digest_channel_id or digest_members")
		}
		deps.Poster = slackbot.NewNotifier(s.cfg.SlackBotToken)
	}
	if s.cfg.DigestLLMSummary {
		deps.Summarizer = llm.NewSummarizer(s.cfg.AnthropicAPIKey, s.cfg.LLMModel)
	}

	cfg := s.cfg
	if *dryRun && cfg.DigestChannelID == "" && len(cfg.DigestMembers) == 0 {
		cfg.DigestChannelID = "dry-run"
	}
	if *once {
		return digest.Send(ctx, cfg, deps)
	}
	return digest.StartScheduler(ctx, cfg, deps)
}

func (s *session) settings(args []string) error {
	if len(args) > 0 {
		return usagef("settings takes no arguments")
	}
	tw := tabwriter.NewWriter(s.stdout, 0, 4, 2, ' ', 0)
	if s.cfg.Path != "" {
		fmt.Fprintf(tw, "config\t%s\n", s.cfg.Path)
	}
	for _, row := range s.cfg.Settings() {
		fmt.Fprintf(tw, "%s\t%s\n", row[0], row[1])
	}
	return tw.Flush()
}

// runEnum resolves KEY in DOMAIN. A numeric key is treated as a code and
// anything else as a case-insensitive name; with no key the whole domain is
// listed. Negative codes need a "--" before them.
func runEnum(args []string, stdout io.Writer) error {
	fs := newFlagSet("enum")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() < 1 || fs.NArg() > 2 {
		return usagef("usage: enum DOMAIN [KEY]")
	}
	d, ok := enum.Lookup(fs.Arg(0))
	if !ok {
		return usagef("unknown enum domain %q (want type, status, resolution or activity)", fs.Arg(0))
	}

	if fs.NArg() == 1 {
		tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
		for _, m := range d.Members() {
			fmt.Fprintf(tw, "%d\t%s\n", m.Code, m.Name)
		}
		return tw.Flush()
	}

	key := strings.TrimSpace(fs.Arg(1))
	if _, err := strconv.Atoi(key); err == nil {
		name, err := d.ParseCode(key)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, name)
		return nil
	}
	code, err := d.CodeOf(strings.ToUpper(key))
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, code)
	return nil
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: tix <command> [flags]

Commands:
  dashboard [--user U] [--all] [--closed] [--offline] [--write] [--out DIR]
  issues    [--status S] [--type T] [--resolution R] [--project P]
            [--assignee U | --mine] [--group-by FIELD] [--offline]
  show      NAME [--offline]
  sync
  digest    [--once] [--dry-run] [--offline]
  enum      DOMAIN [--] [KEY]
  settings
`)
}
