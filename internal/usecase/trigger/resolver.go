package trigger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/faqbot/internal/domain"
	"github.com/kailas-cloud/faqbot/internal/domain/flow"
	"github.com/kailas-cloud/faqbot/internal/domain/intent"
	"github.com/kailas-cloud/faqbot/internal/metrics"
	"github.com/kailas-cloud/faqbot/internal/textmatch"
)

// DefaultSimilarityCutoff is the minimum token-set similarity (0-100) for
// accepting a classifier reply that is not an exact trigger name.
const DefaultSimilarityCutoff = 70

const noneSentinel = "NONE"

// Tier names the strategy that matched a trigger.
type Tier string

// Resolution tiers, tried in this order.
const (
	TierSemantic  Tier = "semantic"
	TierKeyword   Tier = "keyword"
	TierSubstring Tier = "substring"
)

// Config holds resolver settings.
type Config struct {
	// Keywords maps a trigger name to phrases that start it.
	Keywords         map[string][]string
	SimilarityCutoff float64
	Timeout          time.Duration
}

// Result is a resolved entry point.
type Result struct {
	Step   flow.Step
	Tier   Tier
	Intent intent.Intent
}

// Resolver decides whether a free-form message starts a dialog.
type Resolver struct {
	catalog   Catalog
	completer domain.Completer
	keywords  map[string][]string
	cutoff    float64
	timeout   time.Duration
	logger    *zap.Logger
}

// New creates a Resolver. completer may be nil, which disables the semantic tier.
func New(catalog Catalog, completer domain.Completer, cfg Config, logger *zap.Logger) *Resolver {
	cutoff := cfg.SimilarityCutoff
	if cutoff <= 0 {
		cutoff = DefaultSimilarityCutoff
	}
	keywords := make(map[string][]string, len(cfg.Keywords))
	for trig, words := range cfg.Keywords {
		for _, w := range words {
			if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
				keywords[normalizeName(trig)] = append(keywords[normalizeName(trig)], w)
			}
		}
	}
	return &Resolver{
		catalog:   catalog,
		completer: completer,
		keywords:  keywords,
		cutoff:    cutoff,
		timeout:   cfg.Timeout,
		logger:    logger,
	}
}

// Resolve returns the step-1 step of the flow the message starts. It never fails:
// classifier errors are logged and the next tier is tried. Result.Intent always
// carries the semantic tier's outcome.
func (r *Resolver) Resolve(ctx context.Context, text string) (Result, bool) {
	entries := r.catalog.EntryPoints()
	if len(entries) == 0 {
		return Result{Intent: intent.NoMatch()}, false
	}

	in := r.Classify(ctx, text, entries)
	if in.IsMatched() {
		if s, ok := find(entries, in.Name()); ok {
			return Result{Step: s, Tier: TierSemantic, Intent: in}, true
		}
	}

	lower := strings.ToLower(text)

	for _, s := range entries {
		for _, kw := range r.keywords[normalizeName(s.Trigger())] {
			if strings.Contains(lower, kw) {
				return Result{Step: s, Tier: TierKeyword, Intent: in}, true
			}
		}
	}

	for _, s := range entries {
		if strings.Contains(lower, normalizeName(s.Trigger())) {
			return Result{Step: s, Tier: TierSubstring, Intent: in}, true
		}
	}

	return Result{Intent: in}, false
}

// Classify asks the language model which flow the message belongs to.
func (r *Resolver) Classify(ctx context.Context, text string, entries []flow.Step) intent.Intent {
	if r.completer == nil || len(entries) == 0 {
		return intent.NoMatch()
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	reply, err := r.completer.Complete(ctx, buildPrompt(text, entries))
	if err != nil {
		metrics.CollaboratorErrorsTotal.WithLabelValues("llm").Inc()
		r.logger.Warn("Trigger classification unavailable", zap.Error(err))
		return intent.Unavailable(err)
	}

	return r.interpret(reply, entries)
}

func (r *Resolver) interpret(reply string, entries []flow.Step) intent.Intent {
	answer := cleanReply(reply)
	if answer == "" || strings.EqualFold(answer, noneSentinel) {
		return intent.NoMatch()
	}

	if s, ok := find(entries, answer); ok {
		return intent.Matched(s.Trigger())
	}

	normalized := textmatch.Normalize(answer)
	best, bestScore := "", 0.0
	for _, s := range entries {
		score := textmatch.TokenSetRatio(normalized, textmatch.Normalize(s.Trigger()))
		if score > bestScore {
			best, bestScore = s.Trigger(), score
		}
	}
	if bestScore >= r.cutoff {
		return intent.Matched(best)
	}

	r.logger.Debug("Classifier reply matched no trigger",
		zap.String("reply", answer), zap.Float64("best_score", bestScore))
	return intent.NoMatch()
}

func buildPrompt(text string, entries []flow.Step) string {
	var b strings.Builder
	b.WriteString("You route customer messages to guided dialogs.\n")
	b.WriteString("Available dialogs (name: opening question):\n")
	for _, s := range entries {
		fmt.Fprintf(&b, "- %s: %s\n", s.Trigger(), oneLine(s.Prompt()))
	}
	fmt.Fprintf(&b, "\nMessage: %s\n\n", oneLine(text))
	fmt.Fprintf(&b, "Reply with exactly one dialog name from the list, or %s if none fits. ", noneSentinel)
	b.WriteString("Do not add any other words.")
	return b.String()
}

// cleanReply keeps the first line of the reply without quotes or trailing punctuation.
func cleanReply(reply string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(reply), "\n")
	return strings.Trim(strings.TrimSpace(line), "\"'`“”「」『』.,。、!?！？:： ")
}

func find(entries []flow.Step, name string) (flow.Step, bool) {
	name = normalizeName(name)
	for _, s := range entries {
		if normalizeName(s.Trigger()) == name {
			return s, true
		}
	}
	return flow.Step{}, false
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
