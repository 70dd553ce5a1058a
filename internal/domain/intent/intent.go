// Package intent models the outcome of asking the language model to classify a message.
package intent

// Kind enumerates classification outcomes.
type Kind int

const (
	// KindNoMatch means the model answered but named no known choice, either
	// explicitly or with a reply that resolves to none.
	KindNoMatch Kind = iota
	// KindMatched means the model chose a known name.
	KindMatched
	// KindUnavailable means the model could not be asked: it errored or timed out.
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindMatched:
		return "matched"
	case KindNoMatch:
		return "no_match"
	case KindUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Intent is a classification result. The zero value is NoMatch.
type Intent struct {
	kind Kind
	name string
	err  error
}

// Matched returns an intent naming the selected trigger or entry.
func Matched(name string) Intent { return Intent{kind: KindMatched, name: name} }

// NoMatch returns an intent for an explicit "nothing applies" answer.
func NoMatch() Intent { return Intent{kind: KindNoMatch} }

// Unavailable wraps the collaborator failure that prevented classification.
func Unavailable(err error) Intent { return Intent{kind: KindUnavailable, err: err} }

// Kind returns the outcome.
func (i Intent) Kind() Kind { return i.kind }

// Name is the matched name, empty unless Kind is KindMatched.
func (i Intent) Name() string { return i.name }

// Err is the cause, nil unless Kind is KindUnavailable.
func (i Intent) Err() error { return i.err }

// IsMatched reports whether a name was selected.
func (i Intent) IsMatched() bool { return i.kind == KindMatched }
