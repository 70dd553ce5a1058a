package knowledge

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/kailas-cloud/faqbot/internal/domain"
	domknow "github.com/kailas-cloud/faqbot/internal/domain/knowledge"
	"github.com/kailas-cloud/faqbot/internal/metrics"
	"github.com/kailas-cloud/faqbot/internal/textmatch"
)

// Matcher defaults.
const (
	DefaultThreshold         = 0.72
	DefaultTopN              = 3
	DefaultCacheTTL          = 10 * time.Minute
	DefaultMinCandidateScore = 0.4
	DefaultOverrideMaxItems  = 50

	OverrideConfidence = 0.95
	priorityBoostStep  = 0.05
)

// Tier scores.
const (
	scoreExact   = 1.0
	scorePhrase  = 0.6
	scoreKeyword = 0.4
)

const noneSentinel = "NONE"

// Config holds matcher settings. Zero values take the defaults.
type Config struct {
	Threshold         float64
	TopN              int
	CacheTTL          time.Duration
	MinCandidateScore float64
	// SemanticOverride lets the language model pick an entry before scoring decides.
	SemanticOverride bool
	OverrideMaxItems int
	Timeout          time.Duration
}

// Matcher scores queries against the knowledge catalog.
type Matcher struct {
	catalog   Catalog
	completer domain.Completer
	cfg       Config
	cache     *gocache.Cache
	logger    *zap.Logger
}

// New creates a Matcher. completer may be nil, which disables the semantic override.
func New(catalog Catalog, completer domain.Completer, cfg Config, logger *zap.Logger) *Matcher {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.TopN <= 0 {
		cfg.TopN = DefaultTopN
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.MinCandidateScore <= 0 {
		cfg.MinCandidateScore = DefaultMinCandidateScore
	}
	if cfg.OverrideMaxItems <= 0 {
		cfg.OverrideMaxItems = DefaultOverrideMaxItems
	}
	return &Matcher{
		catalog:   catalog,
		completer: completer,
		cfg:       cfg,
		cache:     gocache.New(cfg.CacheTTL, 2*cfg.CacheTTL),
		logger:    logger,
	}
}

// Invalidate drops every cached result. Wired to catalog reloads. Cache keys
// also carry the catalog version, so a result computed from an older catalog
// is never served after a reload.
func (m *Matcher) Invalidate() {
	m.cache.Flush()
	m.logger.Debug("Knowledge match cache invalidated")
}

// Match scores query against every active entry. A semantic override, when
// enabled and answered, wins regardless of the threshold.
func (m *Matcher) Match(ctx context.Context, query string) domknow.Match {
	normalized := textmatch.Normalize(query)
	if normalized == "" {
		return domknow.Match{}
	}

	entries, version := m.catalog.Snapshot()
	key := cacheKey("match", version, normalized)
	if cached, ok := m.cache.Get(key); ok {
		metrics.KnowledgeCacheTotal.WithLabelValues("hit").Inc()
		return cached.(domknow.Match)
	}
	metrics.KnowledgeCacheTotal.WithLabelValues("miss").Inc()

	ranked := rank(normalized, entries)

	cacheable := true
	if m.cfg.SemanticOverride && m.completer != nil && len(ranked) > 0 {
		res, ok, err := m.override(ctx, query, ranked)
		switch {
		case err != nil:
			cacheable = false
		case ok:
			match := domknow.Match{Found: true, Best: &res, Candidates: []domknow.Result{res}}
			m.cache.SetDefault(key, match)
			return match
		}
	}

	match := m.decide(ranked)
	if cacheable {
		m.cache.SetDefault(key, match)
	}
	return match
}

// Lookup is the lexical-only match used to close a finished flow.
func (m *Matcher) Lookup(query string) (domknow.Result, bool) {
	normalized := textmatch.Normalize(query)
	if normalized == "" {
		return domknow.Result{}, false
	}

	entries, version := m.catalog.Snapshot()
	key := cacheKey("lookup", version, normalized)
	if cached, ok := m.cache.Get(key); ok {
		metrics.KnowledgeCacheTotal.WithLabelValues("hit").Inc()
		match := cached.(domknow.Match)
		return bestOf(match)
	}
	metrics.KnowledgeCacheTotal.WithLabelValues("miss").Inc()

	match := m.decide(rank(normalized, entries))
	m.cache.SetDefault(key, match)
	return bestOf(match)
}

func bestOf(match domknow.Match) (domknow.Result, bool) {
	if !match.Found || match.Best == nil {
		return domknow.Result{}, false
	}
	return *match.Best, true
}

// decide applies the threshold and trims the candidates to top-N.
func (m *Matcher) decide(ranked []domknow.Result) domknow.Match {
	var match domknow.Match
	if len(ranked) > 0 && ranked[0].Score >= m.cfg.Threshold {
		best := ranked[0]
		match.Found = true
		match.Best = &best
	}
	for _, r := range ranked {
		if len(match.Candidates) == m.cfg.TopN || r.Score < m.cfg.MinCandidateScore {
			break
		}
		match.Candidates = append(match.Candidates, r)
	}
	return match
}

func cacheKey(kind string, version uint64, normalized string) string {
	return kind + ":" + strconv.FormatUint(version, 10) + ":" + normalized
}

// rank scores entries, best first. Ties go to the higher priority, then to
// catalog order.
func rank(query string, entries []domknow.Entry) []domknow.Result {
	results := make([]domknow.Result, 0, len(entries))
	for _, e := range entries {
		if r, ok := Score(query, e); ok {
			results = append(results, r)
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Entry.Priority() > results[j].Entry.Priority()
	})
	return results
}

// Score rates one entry against an already normalized query. Each search text
// gets its tier score or its fuzzy similarity, whichever is higher, boosted by
// priority and clamped to [0,1]; an exact match is always 1. The entry keeps
// its best text.
func Score(query string, e domknow.Entry) (domknow.Result, bool) {
	boost := max(0, 1+float64(e.Priority())*priorityBoostStep)
	keywords := queryKeywords(query)

	var best domknow.Result
	found := false
	for _, text := range e.SearchTexts() {
		target := textmatch.Normalize(text)
		if target == "" {
			continue
		}

		var score float64
		var kind domknow.MatchType
		switch {
		case query == target:
			score, kind = scoreExact, domknow.MatchExact
		case strings.Contains(query, target) || strings.Contains(target, query):
			score, kind = scorePhrase, domknow.MatchPhrase
		case containsAny(target, keywords):
			score, kind = scoreKeyword, domknow.MatchKeyword
		default:
			kind = domknow.MatchFuzzy
		}

		if kind != domknow.MatchExact {
			// the tier floors the score; fuzzy similarity can lift it
			score = min(1, max(score, textmatch.Blend(query, target))*boost)
		}

		if !found || score > best.Score {
			best = domknow.Result{Entry: e, Score: score, MatchType: kind}
			found = true
		}
	}
	return best, found
}

// queryKeywords are the query tokens long enough to be meaningful substrings.
func queryKeywords(query string) []string {
	var out []string
	for _, t := range textmatch.Tokens(query) {
		if len([]rune(t)) >= 2 {
			out = append(out, t)
		}
	}
	return out
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func (m *Matcher) override(ctx context.Context, query string, ranked []domknow.Result) (domknow.Result, bool, error) {
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.Timeout)
		defer cancel()
	}

	choices := ranked[:min(len(ranked), m.cfg.OverrideMaxItems)]
	reply, err := m.completer.Complete(ctx, buildOverridePrompt(query, choices))
	if err != nil {
		metrics.CollaboratorErrorsTotal.WithLabelValues("llm").Inc()
		m.logger.Warn("Knowledge override unavailable", zap.Error(err))
		return domknow.Result{}, false, fmt.Errorf("knowledge override: %w", err)
	}

	n, ok := parseChoice(reply)
	if !ok || n < 1 || n > len(choices) {
		return domknow.Result{}, false, nil
	}
	return domknow.Result{
		Entry:     choices[n-1].Entry,
		Score:     OverrideConfidence,
		MatchType: domknow.MatchSemanticOverride,
	}, true, nil
}

func buildOverridePrompt(query string, choices []domknow.Result) string {
	var b strings.Builder
	b.WriteString("Pick the FAQ entry that answers the user's question.\n")
	b.WriteString("Entries:\n")
	for i, c := range choices {
		fmt.Fprintf(&b, "%d. %s\n", i+1, strings.Join(strings.Fields(c.Entry.Question()), " "))
	}
	fmt.Fprintf(&b, "\nQuestion: %s\n\n", strings.Join(strings.Fields(query), " "))
	fmt.Fprintf(&b, "Reply with the entry number only, or %s if no entry answers it.", noneSentinel)
	return b.String()
}

// parseChoice reads the first number in the reply. NONE or no number is no choice.
func parseChoice(reply string) (int, bool) {
	reply = textmatch.Normalize(reply)
	if reply == "" || strings.EqualFold(reply, noneSentinel) {
		return 0, false
	}
	start := strings.IndexFunc(reply, unicode.IsDigit)
	if start < 0 {
		return 0, false
	}
	end := start
	for end < len(reply) && reply[end] >= '0' && reply[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(reply[start:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
