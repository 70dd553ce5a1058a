package faqbot

import "github.com/kailas-cloud/faqbot/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound               = domain.ErrNotFound
	ErrInvalidInput           = domain.ErrInvalidInput
	ErrInvalidRow             = domain.ErrInvalidRow
	ErrStateStore             = domain.ErrStateStore
	ErrRetrievalDisabled      = domain.ErrRetrievalDisabled
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
	ErrContentSource          = domain.ErrContentSource
)
