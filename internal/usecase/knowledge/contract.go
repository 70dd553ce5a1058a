package knowledge

import domknow "github.com/kailas-cloud/faqbot/internal/domain/knowledge"

// Catalog is the read side of the knowledge catalog.
type Catalog interface {
	// Snapshot returns the active entries and the version they belong to.
	Snapshot() ([]domknow.Entry, uint64)
}
