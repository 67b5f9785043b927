// Package disposition suggests what should happen to a feedback item: one
// best-effort call to an external classifier, with a deterministic rule-based
// fallback whenever that call cannot be used.
package disposition

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/sift/internal/feedback"
)

// Provider is the external classifier backend.
type Provider interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Input is what the classifier sees about an item.
type Input struct {
	Item *feedback.Item
	// GroupSize is the count of the item's burst group, 0 if ungrouped.
	GroupSize int
}

// Config bounds classifier usage.
type Config struct {
	// Timeout caps a single classifier call, rate limiter wait included.
	Timeout time.Duration
	// PerMinute limits calls; 0 disables limiting.
	PerMinute float64
	// Burst is the limiter bucket size; defaults to 1.
	Burst int
}

// DefaultTimeout is used when Config.Timeout is unset.
const DefaultTimeout = 15 * time.Second

// Hooks observe classifier outcomes for metrics.
type Hooks struct {
	// OnResult is called once per Suggest with the suggestion source ("llm",
	// "rules" or "none") and, for fallbacks, the failure reason.
	OnResult func(source string, reason Reason)
}

// Classifier produces disposition suggestions.
type Classifier struct {
	provider Provider
	timeout  time.Duration
	limiter  *rate.Limiter
	logger   log.Logger
	hooks    Hooks
}

// NewClassifier returns a Classifier. A nil provider makes every call use
// the rule-based fallback.
func NewClassifier(provider Provider, cfg Config, logger log.Logger, hooks Hooks) *Classifier {
	if logger == nil {
		logger = log.Nop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PerMinute < 0 {
		panic(xerrors.New("classifier rate must not be negative"))
	}
	c := &Classifier{provider: provider, timeout: cfg.Timeout, logger: logger, hooks: hooks}
	if cfg.PerMinute > 0 {
		burst := max(cfg.Burst, 1)
		c.limiter = rate.NewLimiter(rate.Limit(cfg.PerMinute/60), burst)
	}
	return c
}

// Outcome is the result of Suggest.
type Outcome struct {
	// Suggestion is nil when the classifier failed and no rule matched.
	Suggestion *feedback.Suggestion
	// Err is the classifier failure that triggered the fallback, if any.
	Err error
}

// Suggest asks the external classifier and falls back to the rules on any
// failure. It never returns an error; Outcome.Err explains a fallback.
func (c *Classifier) Suggest(ctx context.Context, in Input) Outcome {
	s, err := c.Classify(ctx, in)
	if err == nil {
		c.report(string(feedback.SourceLLM), "")
		return Outcome{Suggestion: s}
	}

	reason := ReasonProvider
	var ce *ClassificationError
	if errors.As(err, &ce) {
		reason = ce.Reason
	}
	if reason != ReasonDisabled {
		c.logger.Warn(ctx, "classifier failed, using rules", "reason", reason, "error", err)
	}

	fb := Fallback(in)
	if fb == nil {
		c.report("none", reason)
	} else {
		c.report(string(feedback.SourceRules), reason)
	}
	return Outcome{Suggestion: fb, Err: err}
}

func (c *Classifier) report(source string, reason Reason) {
	if c.hooks.OnResult != nil {
		c.hooks.OnResult(source, reason)
	}
}

// Classify makes a single bounded call to the provider. All failures are
// *ClassificationError.
func (c *Classifier) Classify(ctx context.Context, in Input) (*feedback.Suggestion, error) {
	if c.provider == nil {
		return nil, classErr(ReasonDisabled, nil)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, classErr(ReasonRateLimited, err)
		}
	}

	text, err := c.provider.Complete(ctx, SystemPrompt, BuildPrompt(in))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, classErr(ReasonTimeout, err)
		}
		return nil, classErr(ReasonProvider, err)
	}
	return ParseResponse(text)
}
