package trigger

import "github.com/kailas-cloud/faqbot/internal/domain/flow"

// Catalog is the read side of the dialog catalog used for trigger resolution.
type Catalog interface {
	EntryPoints() []flow.Step
}
