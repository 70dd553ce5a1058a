package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource (absent conversation state, unknown entry).
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput signals a malformed request.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidRow signals a catalog row that failed strict parsing.
	ErrInvalidRow = errors.New("invalid row")
	// ErrStateStore signals a state store failure that must reach the caller.
	ErrStateStore = errors.New("state store failure")
	// ErrCollaboratorUnavailable signals a language-model or vector store call that failed or timed out.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
	// ErrRetrievalDisabled signals that the embedding model or vector store is not configured or reachable.
	ErrRetrievalDisabled = errors.New("retrieval disabled")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrContentSource signals a content source read failure.
	ErrContentSource = errors.New("content source failure")
)

// StateStoreError wraps ErrStateStore with the operation that failed.
type StateStoreError struct {
	Op  string
	Err error
}

func (e *StateStoreError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStateStore.Error(), e.Op, e.Err)
}

func (e *StateStoreError) Unwrap() []error { return []error{ErrStateStore, e.Err} }

// NewStateStoreError wraps err as a state store failure for op.
func NewStateStoreError(op string, err error) error {
	return &StateStoreError{Op: op, Err: err}
}
