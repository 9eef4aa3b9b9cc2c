// Package config builds the run configuration once, at the process boundary.
// Components receive a *Config and never read the environment themselves.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/harveywai/expirywatch/pkg/expiry"
	"github.com/harveywai/expirywatch/pkg/providers/domain"
)

var (
	// ErrMissingRepository is returned when neither GITHUB_REPOSITORY nor a git
	// origin remote names the repository.
	ErrMissingRepository = errors.New("repository not configured")
	ErrMissingToken      = errors.New("token is required")
	ErrNoURLs            = errors.New("no urls configured")
)

// Config holds everything one run needs.
type Config struct {
	URLs            []string
	CheckType       expiry.CheckType
	MinimumLeftDays int
	Assignees       []string
	Token           string

	Owner  string
	Repo   string
	APIURL string

	// OutputPath is the GITHUB_OUTPUT file. Empty prints outputs to stdout.
	OutputPath string
	// HistoryDB enables the SQLite run history when set.
	HistoryDB  string
	WebhookURL string
	// WebhookSecret is sent as a bearer token; WebhookTemplate overrides the
	// notification body.
	WebhookSecret   string
	WebhookTemplate string
	Workers         int
	Timeout         time.Duration
	Debug           bool

	// JWTSecret signs and validates trigger tokens for the HTTP server.
	JWTSecret string
}

// Options controls where Load looks for configuration.
type Options struct {
	// ConfigFile is an optional YAML file. Environment variables win over it.
	ConfigFile string
	// WorkDir is searched for a git repository when GITHUB_REPOSITORY is unset.
	WorkDir string
}

// keys maps each setting to the environment variables consulted, in order.
// Action inputs arrive as INPUT_<NAME>.
var keys = map[string][]string{
	"urls":              {"INPUT_URLS", "INPUT_URL", "URLS"},
	"check_action":      {"INPUT_CHECK_ACTION", "CHECK_ACTION"},
	"minimum_left_days": {"INPUT_MINIMUM_LEFT_DAYS", "MINIMUM_LEFT_DAYS"},
	"assignees":         {"INPUT_ASSIGNEES", "ASSIGNEES"},
	"token":             {"INPUT_TOKEN", "GITHUB_TOKEN"},
	"repository":        {"INPUT_REPOSITORY", "GITHUB_REPOSITORY"},
	"api_url":           {"INPUT_API_URL", "GITHUB_API_URL"},
	"output":            {"GITHUB_OUTPUT"},
	"history_db":        {"INPUT_HISTORY_DB", "EXPIRYWATCH_HISTORY_DB"},
	"webhook_url":       {"INPUT_WEBHOOK_URL", "EXPIRYWATCH_WEBHOOK_URL"},
	"webhook_secret":    {"INPUT_WEBHOOK_SECRET", "EXPIRYWATCH_WEBHOOK_SECRET"},
	"webhook_template":  {"INPUT_WEBHOOK_TEMPLATE", "EXPIRYWATCH_WEBHOOK_TEMPLATE"},
	"workers":           {"INPUT_WORKERS", "EXPIRYWATCH_WORKERS"},
	"timeout_seconds":   {"INPUT_TIMEOUT_SECONDS", "EXPIRYWATCH_TIMEOUT_SECONDS"},
	"debug":             {"RUNNER_DEBUG", "EXPIRYWATCH_DEBUG"},
	"jwt_secret":        {"EXPIRYWATCH_JWT_SECRET"},
}

// Load reads the configuration from the environment and the optional file.
// Values that fail to parse are errors, never silently defaulted.
func Load(opts Options) (*Config, error) {
	v := viper.New()
	v.SetDefault("check_action", string(expiry.CheckSSL))
	v.SetDefault("minimum_left_days", "30")
	v.SetDefault("workers", "1")
	v.SetDefault("timeout_seconds", "10")
	v.SetDefault("api_url", "https://api.github.com")

	for key, envs := range keys {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", opts.ConfigFile, err)
		}
	}

	checkType, err := expiry.ParseCheckType(v.GetString("check_action"))
	if err != nil {
		return nil, err
	}

	minDays, err := parseInt(v, "minimum_left_days")
	if err != nil {
		return nil, err
	}
	workers, err := parseInt(v, "workers")
	if err != nil {
		return nil, err
	}
	timeoutSec, err := parseInt(v, "timeout_seconds")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		URLs:            ParseURLs(listValue(v, "urls", "\n")),
		CheckType:       checkType,
		MinimumLeftDays: minDays,
		Assignees:       ParseAssignees(listValue(v, "assignees", ",")),
		Token:           strings.TrimSpace(v.GetString("token")),
		APIURL:          v.GetString("api_url"),
		OutputPath:      v.GetString("output"),
		HistoryDB:       v.GetString("history_db"),
		WebhookURL:      v.GetString("webhook_url"),
		WebhookSecret:   v.GetString("webhook_secret"),
		WebhookTemplate: v.GetString("webhook_template"),
		Workers:         workers,
		Timeout:         time.Duration(timeoutSec) * time.Second,
		Debug:           isTruthy(v.GetString("debug")),
		JWTSecret:       v.GetString("jwt_secret"),
	}

	repository := strings.TrimSpace(v.GetString("repository"))
	if repository == "" {
		repository = repositoryFromGit(opts.WorkDir)
	}
	if repository != "" {
		owner, repo, err := SplitRepository(repository)
		if err != nil {
			return nil, err
		}
		cfg.Owner, cfg.Repo = owner, repo
	}

	return cfg, nil
}

// ValidateForRun checks the settings needed to reconcile an issue.
func (c *Config) ValidateForRun() error {
	if len(c.URLs) == 0 {
		return ErrNoURLs
	}
	if c.Token == "" {
		return ErrMissingToken
	}
	if c.Owner == "" || c.Repo == "" {
		return ErrMissingRepository
	}
	return nil
}

// Repository returns "owner/repo".
func (c *Config) Repository() string {
	return c.Owner + "/" + c.Repo
}

// ParseURLs splits a newline (or comma) separated list into normalized hosts.
func ParseURLs(raw string) []string {
	var out []string
	for _, field := range strings.FieldsFunc(raw, func(r rune) bool { return r == '\n' || r == ',' }) {
		if host := domain.NormalizeHost(field); host != "" {
			out = append(out, host)
		}
	}
	return out
}

// ParseAssignees splits a comma-separated handle list, dropping blanks.
func ParseAssignees(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if a := strings.TrimSpace(part); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// SplitRepository parses "owner/repo".
func SplitRepository(s string) (string, string, error) {
	owner, repo, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("invalid repository %q (want owner/repo)", s)
	}
	return owner, repo, nil
}

// parseInt converts a setting numerically. The threshold in particular must be
// compared as a number: "9" < "10" is false as text.
func parseInt(v *viper.Viper, key string) (int, error) {
	raw := strings.TrimSpace(v.GetString(key))
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be an integer", key, raw)
	}
	return n, nil
}

// listValue reads a setting that may be a YAML list or a delimited string.
func listValue(v *viper.Viper, key, sep string) string {
	if list, ok := v.Get(key).([]any); ok {
		parts := make([]string, 0, len(list))
		for _, item := range list {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, sep)
	}
	return v.GetString(key)
}

func isTruthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
