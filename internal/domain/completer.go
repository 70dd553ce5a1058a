package domain

import "context"

// Completer is the language-model collaborator: a single prompt in, a single text out.
// Callers bound every call with a context deadline and treat errors as a tier miss.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
