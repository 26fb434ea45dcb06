package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"tix/internal/enum"
)

const defaultExternalHTTPTimeout = 90 * time.Second
const defaultExternalHTTPTimeoutSeconds = int(defaultExternalHTTPTimeout / time.Second)

const (
	EnvDevelopment = "development"
	EnvDocker      = "docker"
	EnvProduction  = "production"
	EnvTesting     = "testing"
)

const (
	developmentAPIRoot = "http://localhost:5000/api"
	proxiedAPIRoot     = "http://localhost:8080/api"
)

type Config struct {
	Env      string `yaml:"env"`
	APIRoot  string `yaml:"api_root"`
	User     string `yaml:"user"`
	LogLevel string `yaml:"log_level"`

	DBPath                     string `yaml:"db_path"`
	ReportOutputDir            string `yaml:"report_output_dir"`
	ExternalHTTPTimeoutSeconds int    `yaml:"external_http_timeout_seconds"`
	Timezone                   string `yaml:"timezone"`

	ExcludedStatuses []string `yaml:"excluded_statuses"`

	SlackBotToken    string   `yaml:"slack_bot_token"`
	DigestChannelID  string   `yaml:"digest_channel_id"`
	DigestMembers    []string `yaml:"digest_members"`
	DigestSchedule   string   `yaml:"digest_schedule"`
	DigestLLMSummary bool     `yaml:"digest_llm_summary"`

	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	LLMModel        string `yaml:"llm_model"`

	Location *time.Location `yaml:"-"` // computed from Timezone, not from YAML
	Path     string         `yaml:"-"`
}

// LoadConfig reads config.yaml (or CONFIG_PATH), applies environment
// overrides and defaults, and validates the result. A .env file in the
// working directory is loaded first; it never overrides variables that are
// already set.
func LoadConfig() (Config, error) {
	var cfg Config

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("loading .env: %w", err)
	}

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing %s: %w", configPath, err)
		}
		cfg.Path = configPath
	}

	envOverride(&cfg.Env, "TIX_ENV")
	envOverride(&cfg.APIRoot, "API_ROOT")
	envOverrideAllowEmpty(&cfg.User, "TIX_USER")
	envOverride(&cfg.LogLevel, "LOG_LEVEL")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.ReportOutputDir, "REPORT_OUTPUT_DIR")
	if err := envOverrideInt(&cfg.ExternalHTTPTimeoutSeconds, "EXTERNAL_HTTP_TIMEOUT_SECONDS"); err != nil {
		return cfg, err
	}
	envOverride(&cfg.Timezone, "TIMEZONE")
	envOverrideList(&cfg.ExcludedStatuses, "EXCLUDED_STATUSES")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.DigestChannelID, "DIGEST_CHANNEL_ID")
	envOverrideList(&cfg.DigestMembers, "DIGEST_MEMBERS")
	envOverrideAllowEmpty(&cfg.DigestSchedule, "DIGEST_SCHEDULE")
	envOverrideBool(&cfg.DigestLLMSummary, "DIGEST_LLM_SUMMARY")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.LLMModel, "LLM_MODEL")

	if cfg.Env == "" {
		cfg.Env = EnvDevelopment
	}
	if cfg.APIRoot == "" {
		cfg.APIRoot = DefaultAPIRoot(cfg.Env)
	}
	cfg.APIRoot = strings.TrimRight(cfg.APIRoot, "/")
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./tix.db"
	}
	if cfg.ReportOutputDir == "" {
		cfg.ReportOutputDir = "./reports"
	}
	if cfg.ExternalHTTPTimeoutSeconds == 0 {
		cfg.ExternalHTTPTimeoutSeconds = defaultExternalHTTPTimeoutSeconds
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}
	if cfg.ExcludedStatuses == nil {
		cfg.ExcludedStatuses = []string{enum.StatusOpen, enum.StatusDone, enum.StatusReleased}
	}
	for i, s := range cfg.ExcludedStatuses {
		cfg.ExcludedStatuses[i] = strings.ToUpper(strings.TrimSpace(s))
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Env {
	case EnvDevelopment, EnvDocker, EnvProduction, EnvTesting:
	default:
		return fmt.Errorf("env must be one of %s, %s, %s, %s; got '%s'", EnvDevelopment, EnvDocker, EnvProduction, EnvTesting, c.Env)
	}

	if strings.EqualFold(c.Timezone, "Local") {
		c.Location = time.Local
	} else {
		loc, err := time.LoadLocation(c.Timezone)
		if err != nil {
			return fmt.Errorf("invalid timezone '%s': %w", c.Timezone, err)
		}
		c.Location = loc
	}

	if c.ExternalHTTPTimeoutSeconds < 5 {
		return fmt.Errorf("invalid external_http_timeout_seconds '%d': must be >= 5", c.ExternalHTTPTimeoutSeconds)
	}
	for _, s := range c.ExcludedStatuses {
		if _, err := enum.IssueStatus.CodeOf(s); err != nil {
			return fmt.Errorf("invalid excluded_statuses: %w", err)
		}
	}

	if c.DigestSchedule != "" {
		if _, err := ParseSchedule(c.DigestSchedule); err != nil {
			return fmt.Errorf("invalid digest_schedule '%s': %w", c.DigestSchedule, err)
		}
		if c.SlackBotToken == "" {
			return fmt.Errorf("slack_bot_token is required when digest_schedule is set")
		}
	}
	if c.DigestLLMSummary && c.AnthropicAPIKey == "" {
		return fmt.Errorf("anthropic_api_key is required when digest_llm_summary is enabled")
	}
	return nil
}

// DefaultAPIRoot points at the dev server directly in development and at
// the proxy everywhere else.
func DefaultAPIRoot(env string) string {
	if env == EnvDevelopment {
		return developmentAPIRoot
	}
	return proxiedAPIRoot
}

// ParseSchedule parses a standard 5-field cron expression
// (minute hour day-of-month month day-of-week).
func ParseSchedule(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return parser.Parse(strings.TrimSpace(expr))
}

// SessionUser returns the configured user, or nil when there is no
// session. Views treat nil as "show everything".
func (c Config) SessionUser() *string {
	if strings.TrimSpace(c.User) == "" {
		return nil
	}
	user := strings.TrimSpace(c.User)
	return &user
}

func (c Config) DigestConfigured() bool {
	return c.SlackBotToken != "" && (c.DigestChannelID != "" || len(c.DigestMembers) > 0)
}

// Settings lists the effective configuration as name/value rows with
// secrets masked.
func (c Config) Settings() [][2]string {
	return [][2]string{
		{"env", c.Env},
		{"api_root", c.APIRoot},
		{"user", c.User},
		{"log_level", c.LogLevel},
		{"db_path", c.DBPath},
		{"report_output_dir", c.ReportOutputDir},
		{"external_http_timeout_seconds", strconv.Itoa(c.ExternalHTTPTimeoutSeconds)},
		{"timezone", c.Timezone},
		{"excluded_statuses", strings.Join(c.ExcludedStatuses, ",")},
		{"slack_bot_token", mask(c.SlackBotToken)},
		{"digest_channel_id", c.DigestChannelID},
		{"digest_members", strings.Join(c.DigestMembers, ",")},
		{"digest_schedule", c.DigestSchedule},
		{"digest_llm_summary", strconv.FormatBool(c.DigestLLMSummary)},
		{"anthropic_api_key", mask(c.AnthropicAPIKey)},
		{"llm_model", c.LLMModel},
	}
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return secret[:4] + "****"
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideAllowEmpty(field *string, envKey string) {
	if val, ok := os.LookupEnv(envKey); ok {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}

func envOverrideBool(field *bool, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = strings.EqualFold(val, "true") || val == "1"
	}
}

func envOverrideList(field *[]string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = nil
		for _, part := range strings.Split(val, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				*field = append(*field, part)
			}
		}
	}
}
