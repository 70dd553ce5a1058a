package knowledge

// MatchType explains how a result was found.
type MatchType string

// Match type constants, strongest first.
const (
	MatchExact            MatchType = "exact"
	MatchPhrase           MatchType = "phrase"
	MatchKeyword          MatchType = "keyword"
	MatchFuzzy            MatchType = "fuzzy"
	MatchSemanticOverride MatchType = "semantic-override"
)

// Result is a scored candidate entry. Score is in [0,1].
type Result struct {
	Entry     Entry
	Score     float64
	MatchType MatchType
}

// Match is the outcome of matching one query against the catalog.
// Found means Best cleared the threshold or came from a semantic override;
// Candidates holds the ranked top-N either way, for suggestions.
type Match struct {
	Found      bool
	Best       *Result
	Candidates []Result
}
