package cfg

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/linnemanlabs/sift/internal/authmw"
	"github.com/linnemanlabs/sift/internal/fingerprint"
	"github.com/linnemanlabs/sift/internal/sweep"
)

// Config adds app-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	DatabaseURL           string
	APITokens             string

	ClaudeAPIKey            string
	ClaudeModel             string
	ClassifierEnabled       bool
	ClassifierTimeout       time.Duration
	ClassifierRatePerMinute float64
	ClassifierBurst         int

	BurstMinOccurrences int
	BurstWindow         time.Duration
	BurstMaxItems       int
	PatternCacheTTL     time.Duration
	DedupWindow         time.Duration

	AssignmentFile string
	IgnoreSeedFile string

	SweepBurstsSchedule  string
	SweepSnoozesSchedule string
	SweepTriageSchedule  string
	SweepTimeout         time.Duration
	TriageBatchLimit     int
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.StringVar(&c.APITokens, "api-tokens", "", "API bearer tokens as name=token pairs, comma separated")

	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for the Claude disposition classifier")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-20250514", "Claude model to use")
	fs.BoolVar(&c.ClassifierEnabled, "classifier", true, "ask Claude for disposition suggestions (rules only when false)")
	fs.DurationVar(&c.ClassifierTimeout, "classifier-timeout", 15*time.Second, "timeout for one classifier call including rate limit wait")
	fs.Float64Var(&c.ClassifierRatePerMinute, "classifier-rate", 30, "classifier calls per minute (0 = unlimited)")
	fs.IntVar(&c.ClassifierBurst, "classifier-burst", 5, "classifier rate limiter burst")

	fs.IntVar(&c.BurstMinOccurrences, "burst-min-occurrences", 3, "same-fingerprint items inside the window that form a burst group (2..1000)")
	fs.DurationVar(&c.BurstWindow, "burst-window", 5*time.Minute, "trailing window for burst detection")
	fs.IntVar(&c.BurstMaxItems, "burst-max-items", 50, "maximum item ids recorded per burst group")
	fs.DurationVar(&c.PatternCacheTTL, "pattern-cache-ttl", time.Minute, "how long the active ignore pattern set is cached")
	fs.DurationVar(&c.DedupWindow, "dedup-window", fingerprint.DefaultDedupWindow, "window in which identical error captures are counted instead of stored (0 = off)")

	fs.StringVar(&c.AssignmentFile, "assignment-file", "", "YAML assignment table (empty = built-in table)")
	fs.StringVar(&c.IgnoreSeedFile, "ignore-seed-file", "", "YAML ignore patterns created at startup")

	fs.StringVar(&c.SweepBurstsSchedule, "sweep-bursts", "@every 1m", "cron schedule for burst promotion (empty = manual only)")
	fs.StringVar(&c.SweepSnoozesSchedule, "sweep-snoozes", "@every 5m", "cron schedule for waking expired snoozes (empty = manual only)")
	fs.StringVar(&c.SweepTriageSchedule, "sweep-triage", "@every 2m", "cron schedule for triaging untriaged items (empty = manual only)")
	fs.DurationVar(&c.SweepTimeout, "sweep-timeout", 2*time.Minute, "timeout for a single sweep run")
	fs.IntVar(&c.TriageBatchLimit, "triage-batch-limit", 100, "items triaged per triage sweep (1..10000)")
}

// Tokens parses APITokens. Call after Validate.
func (c *Config) Tokens() authmw.Tokens {
	t, _ := authmw.ParseTokens(c.APITokens)
	return t
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// the API is never served unauthenticated
	if tokens, err := authmw.ParseTokens(c.APITokens); err != nil {
		errs = append(errs, fmt.Errorf("invalid API_TOKENS: %w", err))
	} else if len(tokens) == 0 {
		errs = append(errs, errors.New("API_TOKENS is required"))
	}

	if c.ClassifierEnabled {
		if c.ClaudeAPIKey == "" {
			errs = append(errs, errors.New("CLAUDE_API_KEY is required when CLASSIFIER is enabled"))
		}
		if c.ClaudeModel == "" {
			errs = append(errs, errors.New("CLAUDE_MODEL is required when CLASSIFIER is enabled"))
		}
	}
	if c.ClassifierTimeout <= 0 {
		errs = append(errs, fmt.Errorf("invalid CLASSIFIER_TIMEOUT %s (must be positive)", c.ClassifierTimeout))
	}
	if c.ClassifierRatePerMinute < 0 {
		errs = append(errs, fmt.Errorf("invalid CLASSIFIER_RATE %g (must not be negative)", c.ClassifierRatePerMinute))
	}
	if c.ClassifierBurst < 1 {
		errs = append(errs, fmt.Errorf("invalid CLASSIFIER_BURST %d (must be at least 1)", c.ClassifierBurst))
	}

	if c.BurstMinOccurrences < 2 || c.BurstMinOccurrences > 1000 {
		errs = append(errs, fmt.Errorf("invalid BURST_MIN_OCCURRENCES %d (must be 2..1000)", c.BurstMinOccurrences))
	}
	if c.BurstWindow <= 0 {
		errs = append(errs, fmt.Errorf("invalid BURST_WINDOW %s (must be positive)", c.BurstWindow))
	}
	if c.BurstMaxItems < 1 {
		errs = append(errs, fmt.Errorf("invalid BURST_MAX_ITEMS %d (must be at least 1)", c.BurstMaxItems))
	}
	if c.PatternCacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("invalid PATTERN_CACHE_TTL %s (must be positive)", c.PatternCacheTTL))
	}
	if c.DedupWindow < 0 {
		errs = append(errs, fmt.Errorf("invalid DEDUP_WINDOW %s (must not be negative)", c.DedupWindow))
	}

	for _, s := range []struct{ name, spec string }{
		{"SWEEP_BURSTS", c.SweepBurstsSchedule},
		{"SWEEP_SNOOZES", c.SweepSnoozesSchedule},
		{"SWEEP_TRIAGE", c.SweepTriageSchedule},
	} {
		if s.spec == "" {
			continue
		}
		if _, err := sweep.ParseSchedule(s.spec); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", s.name, err))
		}
	}
	if c.SweepTimeout <= 0 {
		errs = append(errs, fmt.Errorf("invalid SWEEP_TIMEOUT %s (must be positive)", c.SweepTimeout))
	}
	if c.TriageBatchLimit < 1 || c.TriageBatchLimit > 10000 {
		errs = append(errs, fmt.Errorf("invalid TRIAGE_BATCH_LIMIT %d (must be 1..10000)", c.TriageBatchLimit))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
