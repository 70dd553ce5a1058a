package knowledge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	domknow "github.com/kailas-cloud/faqbot/internal/domain/knowledge"
	"github.com/kailas-cloud/faqbot/internal/textmatch"
)

func newMatcher(cat Catalog, llm *fakeCompleter, cfg Config) *Matcher {
	if llm == nil {
		return New(cat, nil, cfg, zap.NewNop())
	}
	return New(cat, llm, cfg, zap.NewNop())
}

func TestMatch_ExactNormalizedScoresOne(t *testing.T) {
	m := newMatcher(faqCatalog(t), nil, Config{})

	got := m.Match(context.Background(), "  How to RESET password?! ")

	require.True(t, got.Found)
	assert.Equal(t, "k1", got.Best.Entry.ID())
	assert.Equal(t, domknow.MatchExact, got.Best.MatchType)
	assert.InDelta(t, 1.0, got.Best.Score, 1e-9)
}

func TestMatch_ResetPasswordScenario(t *testing.T) {
	m := newMatcher(faqCatalog(t), nil, Config{Threshold: 0.72})

	got := m.Match(context.Background(), "reset password")

	require.True(t, got.Found)
	assert.Equal(t, "k1", got.Best.Entry.ID())
	assert.Contains(t, []domknow.MatchType{domknow.MatchExact, domknow.MatchPhrase}, got.Best.MatchType)
	assert.GreaterOrEqual(t, got.Best.Score, 0.72)
}

func TestMatch_UnrelatedQuery(t *testing.T) {
	m := newMatcher(faqCatalog(t), nil, Config{Threshold: 0.72})

	got := m.Match(context.Background(), "xyz completely unrelated")

	assert.False(t, got.Found)
	assert.Nil(t, got.Best)
	for _, c := range got.Candidates {
		assert.Less(t, c.Score, 0.72)
	}
}

func TestMatch_KeywordTierBelowThresholdIsCandidate(t *testing.T) {
	cat := &fakeCatalog{entries: []domknow.Entry{entry(t, "k1", "how to reset password", nil, 0)}}
	m := newMatcher(cat, nil, Config{})

	got := m.Match(context.Background(), "password policy")

	assert.False(t, got.Found)
	require.Len(t, got.Candidates, 1)
	assert.Equal(t, domknow.MatchKeyword, got.Candidates[0].MatchType)
	assert.InDelta(t, 0.4, got.Candidates[0].Score, 1e-9)
}

func TestMatch_PriorityBoost(t *testing.T) {
	m := newMatcher(faqCatalog(t), nil, Config{})

	got := m.Match(context.Background(), "shipping cost")

	require.True(t, got.Found)
	assert.Equal(t, "k3", got.Best.Entry.ID())
	unboosted := textmatch.Blend("shipping cost", "shipping")
	assert.InDelta(t, unboosted*1.05, got.Best.Score, 1e-9)
}

func TestMatch_TiesPreferPriorityThenCatalogOrder(t *testing.T) {
	cat := &fakeCatalog{entries: []domknow.Entry{
		entry(t, "low", "track my order", nil, 0),
		entry(t, "high", "track my order", nil, 5),
		entry(t, "high2", "track my order", nil, 5),
	}}
	m := newMatcher(cat, nil, Config{TopN: 3})

	got := m.Match(context.Background(), "track my order")

	require.True(t, got.Found)
	require.Len(t, got.Candidates, 3)
	assert.Equal(t, "high", got.Candidates[0].Entry.ID())
	assert.Equal(t, "high2", got.Candidates[1].Entry.ID())
	assert.Equal(t, "low", got.Candidates[2].Entry.ID())
	for _, c := range got.Candidates {
		assert.InDelta(t, 1.0, c.Score, 1e-9)
	}
}

func TestMatch_TopN(t *testing.T) {
	cat := &fakeCatalog{entries: []domknow.Entry{
		entry(t, "a", "reset password a", nil, 0),
		entry(t, "b", "reset password b", nil, 0),
		entry(t, "c", "reset password c", nil, 0),
		entry(t, "d", "reset password d", nil, 0),
	}}
	m := newMatcher(cat, nil, Config{TopN: 2})

	got := m.Match(context.Background(), "reset password")

	assert.Len(t, got.Candidates, 2)
	assert.Equal(t, "a", got.Candidates[0].Entry.ID())
}

func TestMatch_EmptyQuery(t *testing.T) {
	m := newMatcher(faqCatalog(t), nil, Config{})

	got := m.Match(context.Background(), " !? ")

	assert.False(t, got.Found)
	assert.Empty(t, got.Candidates)
}

func TestMatch_SemanticOverrideBypassesThreshold(t *testing.T) {
	llm := &fakeCompleter{pick: "what are your opening hours"}
	m := newMatcher(faqCatalog(t), llm, Config{SemanticOverride: true})

	got := m.Match(context.Background(), "when do you open")

	require.True(t, got.Found)
	assert.Equal(t, "k2", got.Best.Entry.ID())
	assert.Equal(t, domknow.MatchSemanticOverride, got.Best.MatchType)
	assert.InDelta(t, OverrideConfidence, got.Best.Score, 1e-9)
	assert.Len(t, got.Candidates, 1)
}

func TestMatch_SemanticOverrideNoneFallsBackToScores(t *testing.T) {
	llm := &fakeCompleter{reply: "NONE"}
	m := newMatcher(faqCatalog(t), llm, Config{SemanticOverride: true})

	got := m.Match(context.Background(), "reset password")

	require.True(t, got.Found)
	assert.Equal(t, domknow.MatchPhrase, got.Best.MatchType)
	assert.Equal(t, 1, llm.calls)
}

func TestMatch_SemanticOverrideOutOfRange(t *testing.T) {
	llm := &fakeCompleter{reply: "42"}
	m := newMatcher(faqCatalog(t), llm, Config{SemanticOverride: true})

	got := m.Match(context.Background(), "when do you open")

	assert.False(t, got.Found)
}

func TestMatch_OverrideErrorIsNotCached(t *testing.T) {
	llm := &fakeCompleter{err: errors.New("llm down")}
	m := newMatcher(faqCatalog(t), llm, Config{SemanticOverride: true})

	first := m.Match(context.Background(), "reset password")
	second := m.Match(context.Background(), "reset password")

	assert.True(t, first.Found)
	assert.True(t, second.Found)
	assert.Equal(t, 2, llm.calls)
}

func TestMatch_CacheUntilInvalidated(t *testing.T) {
	cat := faqCatalog(t)
	m := newMatcher(cat, nil, Config{})
	ctx := context.Background()

	first := m.Match(ctx, "reset password")
	require.True(t, first.Found)

	cat.replace(entry(t, "k9", "reset password", nil, 0))
	second := m.Match(ctx, "reset password")
	assert.Equal(t, first.Best.Entry.ID(), second.Best.Entry.ID())

	m.Invalidate()
	third := m.Match(ctx, "reset password")
	require.True(t, third.Found)
	assert.Equal(t, "k9", third.Best.Entry.ID())
	assert.Equal(t, domknow.MatchExact, third.Best.MatchType)
}

func TestMatch_ResultFromOlderVersionNotServed(t *testing.T) {
	cat := faqCatalog(t)
	m := newMatcher(cat, nil, Config{})
	ctx := context.Background()

	// The reload's flush runs first, then a match against the old entries
	// is cached, then the new entries become visible.
	m.Invalidate()
	stale := m.Match(ctx, "reset password")
	require.True(t, stale.Found)
	cat.reload(entry(t, "k9", "reset password", nil, 0))

	fresh := m.Match(ctx, "reset password")
	require.True(t, fresh.Found)
	assert.Equal(t, "k9", fresh.Best.Entry.ID())

	res, ok := m.Lookup("reset password")
	require.True(t, ok)
	assert.Equal(t, "k9", res.Entry.ID())
}

func TestLookup(t *testing.T) {
	llm := &fakeCompleter{reply: "1"}
	m := newMatcher(faqCatalog(t), llm, Config{SemanticOverride: true})

	res, ok := m.Lookup("shipping delivery")
	require.True(t, ok)
	assert.Equal(t, "k3", res.Entry.ID())
	assert.Zero(t, llm.calls, "lookup never asks the language model")

	_, ok = m.Lookup("xyz completely unrelated")
	assert.False(t, ok)
}

func TestParseChoice(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"2", 2, true},
		{"Entry 3.", 3, true},
		{"#１２", 12, true},
		{"NONE", 0, false},
		{"none", 0, false},
		{"", 0, false},
		{"no idea", 0, false},
	}
	for _, tc := range tests {
		n, ok := parseChoice(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.want, n, tc.in)
	}
}
