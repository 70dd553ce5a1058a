package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/faqbot/internal/domain"
	"github.com/kailas-cloud/faqbot/internal/domain/conversation"
	"github.com/kailas-cloud/faqbot/internal/domain/flow"
	"github.com/kailas-cloud/faqbot/internal/logger"
	"github.com/kailas-cloud/faqbot/internal/metrics"
	"github.com/kailas-cloud/faqbot/internal/textmatch"
	"github.com/kailas-cloud/faqbot/internal/usecase/retrieval"
)

// DefaultStateTTL is how long an idle dialog survives.
const DefaultStateTTL = 30 * time.Minute

// DefaultCancelWords end a dialog from any step.
var DefaultCancelWords = []string{"cancel", "stop", "quit", "キャンセル", "やめる"}

// Tier names the part of the pipeline that produced a reply.
type Tier string

// Reply tiers.
const (
	TierDialogStart Tier = "dialog_start"
	TierDialogStep  Tier = "dialog_step"
	TierDialogEnd   Tier = "dialog_end"
	TierCancel      Tier = "cancel"
	TierKnowledge   Tier = "knowledge"
	TierRetrieval   Tier = "retrieval"
	TierUngrounded  Tier = "ungrounded"
	TierSuggestion  Tier = "suggestion"
	TierFallback    Tier = "fallback"
	TierError       Tier = "error"
)

// Reply is what the user is sent back. Options, when present, are selectable labels.
type Reply struct {
	Text    string   `json:"text"`
	Options []string `json:"options,omitempty"`
	Tier    Tier     `json:"tier"`
}

// Config holds pipeline settings.
type Config struct {
	StateTTL    time.Duration
	CancelWords []string
	Messages    Messages
}

// Deps are the collaborators of the pipeline. Retriever and Reloader may be nil.
type Deps struct {
	States    StateStore
	Dialogs   DialogCatalog
	Triggers  TriggerResolver
	Knowledge KnowledgeMatcher
	Retriever Retriever
	Reloader  CatalogReloader
}

// Pipeline resolves inbound messages. It is the only writer of conversation state.
// Messages of one user are processed one at a time.
type Pipeline struct {
	deps        Deps
	ttl         time.Duration
	cancelWords map[string]bool
	msgs        Messages
	locks       *userLocks
	now         func() time.Time
	logger      *zap.Logger
}

// New creates a Pipeline.
func New(deps Deps, cfg Config, logger *zap.Logger) *Pipeline {
	ttl := cfg.StateTTL
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	words := cfg.CancelWords
	if len(words) == 0 {
		words = DefaultCancelWords
	}
	cancel := make(map[string]bool, len(words))
	for _, w := range words {
		if n := textmatch.Normalize(w); n != "" {
			cancel[n] = true
		}
	}
	return &Pipeline{
		deps:        deps,
		ttl:         ttl,
		cancelWords: cancel,
		msgs:        cfg.Messages.withDefaults(),
		locks:       newUserLocks(),
		now:         time.Now,
		logger:      logger,
	}
}

// HandleMessage resolves one message. It always returns a presentable reply:
// state store write failures yield the try-again message, anything unexpected
// the apology.
func (p *Pipeline) HandleMessage(ctx context.Context, userID, text string) (reply Reply) {
	start := time.Now()
	log := logger.FromContextOr(ctx, p.logger).With(zap.String("user_id", userID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("Message handling panicked", zap.Any("panic", r), zap.Stack("stack"))
			reply = Reply{Text: p.msgs.Apology, Tier: TierError}
		}
		metrics.ResolutionTotal.WithLabelValues(string(reply.Tier)).Inc()
		metrics.ResolutionDuration.Observe(time.Since(start).Seconds())
		log.Debug("Message resolved",
			zap.String("tier", string(reply.Tier)),
			zap.Duration("duration", time.Since(start)),
		)
	}()

	unlock := p.locks.lock(userID)
	defer unlock()

	reply, err := p.handle(ctx, log, userID, text)
	if err != nil {
		log.Error("Message handling failed", zap.Error(err))
		if errors.Is(err, domain.ErrStateStore) {
			return Reply{Text: p.msgs.TryAgain, Tier: TierError}
		}
		return Reply{Text: p.msgs.Apology, Tier: TierError}
	}
	return reply
}

func (p *Pipeline) handle(ctx context.Context, log *zap.Logger, userID, text string) (Reply, error) {
	if p.isCancel(text) {
		cancelled, err := p.cancel(ctx, userID)
		if err != nil {
			return Reply{}, err
		}
		if cancelled {
			log.Info("Dialog cancelled by user")
			return Reply{Text: p.msgs.Cancelled, Tier: TierCancel}, nil
		}
		return Reply{Text: p.msgs.NoConversation, Tier: TierCancel}, nil
	}

	st, err := p.state(ctx, userID)
	if err != nil {
		return Reply{}, err
	}
	if st != nil {
		return p.continueDialog(ctx, log, st, text)
	}
	return p.resolveFree(ctx, log, userID, text)
}

// continueDialog treats text as the answer to the current step.
func (p *Pipeline) continueDialog(ctx context.Context, log *zap.Logger, st *conversation.State, text string) (Reply, error) {
	current, ok := p.deps.Dialogs.Lookup(st.Trigger, st.CurrentStep)
	if !ok {
		log.Warn("Current dialog step vanished, closing flow",
			zap.String("trigger", st.Trigger), zap.Int("step", st.CurrentStep))
		return p.closeFlow(ctx, log, st)
	}

	tr := current.Answer(text)
	if tr.Selected {
		st.Record(current.Number(), tr.Option)
	}

	next, ok := p.deps.Dialogs.Lookup(st.Trigger, tr.Next)
	switch {
	case !ok:
		return p.closeFlow(ctx, log, st)
	case next.IsTerminal():
		if err := p.deps.States.Delete(ctx, st.UserID); err != nil {
			return Reply{}, fmt.Errorf("finish dialog: %w", err)
		}
		log.Info("Dialog finished", zap.String("trigger", st.Trigger), zap.Int("step", next.Number()))
		return Reply{Text: next.Prompt(), Tier: TierDialogEnd}, nil
	default:
		st.Advance(next.Number(), p.now())
		if err := p.deps.States.Put(ctx, st.UserID, st, p.ttl); err != nil {
			return Reply{}, fmt.Errorf("advance dialog: %w", err)
		}
		return stepReply(next, TierDialogStep), nil
	}
}

// closeFlow ends a flow that has no final step to show, answering from the
// recorded choices: knowledge base, then grounded retrieval, then a summary.
func (p *Pipeline) closeFlow(ctx context.Context, log *zap.Logger, st *conversation.State) (Reply, error) {
	answers := st.Answers()
	text := p.closingAnswer(ctx, st.Trigger, answers)

	if err := p.deps.States.Delete(ctx, st.UserID); err != nil {
		return Reply{}, fmt.Errorf("close dialog: %w", err)
	}
	log.Info("Dialog closed", zap.String("trigger", st.Trigger), zap.Int("answers", len(answers)))
	return Reply{Text: text, Tier: TierDialogEnd}, nil
}

func (p *Pipeline) closingAnswer(ctx context.Context, trigger string, answers []string) string {
	query := strings.TrimSpace(trigger + " " + strings.Join(answers, " "))

	if res, ok := p.deps.Knowledge.Lookup(query); ok {
		return res.Entry.Answer()
	}
	if p.deps.Retriever != nil {
		if out := p.deps.Retriever.Resolve(ctx, query); out.Status == retrieval.StatusGrounded {
			return out.Text
		}
	}
	return p.msgs.flowComplete(trigger, answers)
}

// resolveFree runs the tiers for a user who is not in a dialog.
func (p *Pipeline) resolveFree(ctx context.Context, log *zap.Logger, userID, text string) (Reply, error) {
	if res, ok := p.deps.Triggers.Resolve(ctx, text); ok {
		return p.startDialog(ctx, log, userID, res.Step, string(res.Tier))
	}

	match := p.deps.Knowledge.Match(ctx, text)
	if match.Found {
		return Reply{Text: match.Best.Entry.Answer(), Tier: TierKnowledge}, nil
	}

	if p.deps.Retriever != nil {
		out := p.deps.Retriever.Resolve(ctx, text)
		switch {
		case out.Status == retrieval.StatusGrounded:
			return Reply{Text: out.Text, Tier: TierRetrieval}, nil
		case out.Status == retrieval.StatusDisabled && out.Text != "":
			return Reply{Text: out.Text, Tier: TierUngrounded}, nil
		}
		log.Debug("Retrieval produced no answer", zap.Stringer("status", out.Status))
	}

	if len(match.Candidates) > 0 {
		options := make([]string, len(match.Candidates))
		for i, c := range match.Candidates {
			options[i] = c.Entry.Question()
		}
		return Reply{Text: p.msgs.Suggestions, Options: options, Tier: TierSuggestion}, nil
	}

	return Reply{Text: p.msgs.Fallback, Tier: TierFallback}, nil
}

func (p *Pipeline) startDialog(ctx context.Context, log *zap.Logger, userID string, entry flow.Step, via string) (Reply, error) {
	log.Info("Dialog started", zap.String("trigger", entry.Trigger()), zap.String("via", via))

	if entry.IsTerminal() {
		return Reply{Text: entry.Prompt(), Tier: TierDialogEnd}, nil
	}

	st := conversation.New(userID, entry.Trigger(), entry.Number(), p.now())
	if err := p.deps.States.Put(ctx, userID, st, p.ttl); err != nil {
		return Reply{}, fmt.Errorf("start dialog: %w", err)
	}
	return stepReply(entry, TierDialogStart), nil
}

// Cancel ends the user's dialog. It reports false when none was in progress.
func (p *Pipeline) Cancel(ctx context.Context, userID string) (bool, error) {
	unlock := p.locks.lock(userID)
	defer unlock()
	return p.cancel(ctx, userID)
}

func (p *Pipeline) cancel(ctx context.Context, userID string) (bool, error) {
	st, err := p.state(ctx, userID)
	if err != nil {
		return false, err
	}
	if st == nil {
		return false, nil
	}
	if err := p.deps.States.Delete(ctx, userID); err != nil {
		return false, fmt.Errorf("cancel dialog: %w", err)
	}
	return true, nil
}

// Dialog returns the user's conversation state, or nil when not in a dialog.
func (p *Pipeline) Dialog(ctx context.Context, userID string) (*conversation.State, error) {
	return p.state(ctx, userID)
}

// IsInDialog reports whether the user has a conversation in progress.
func (p *Pipeline) IsInDialog(ctx context.Context, userID string) (bool, error) {
	st, err := p.state(ctx, userID)
	if err != nil {
		return false, err
	}
	return st != nil, nil
}

// ReloadCatalogs refreshes both catalogs now. The knowledge match cache is
// invalidated by the catalog reload hooks.
func (p *Pipeline) ReloadCatalogs(ctx context.Context) error {
	if p.deps.Reloader == nil {
		return nil
	}
	if err := p.deps.Reloader.ReloadAll(ctx); err != nil {
		return fmt.Errorf("reload catalogs: %w", err)
	}
	return nil
}

func (p *Pipeline) state(ctx context.Context, userID string) (*conversation.State, error) {
	st, err := p.deps.States.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load dialog state: %w", err)
	}
	return st, nil
}

func (p *Pipeline) isCancel(text string) bool {
	return p.cancelWords[textmatch.Normalize(text)]
}

func stepReply(s flow.Step, tier Tier) Reply {
	return Reply{Text: s.Prompt(), Options: s.Options(), Tier: tier}
}
