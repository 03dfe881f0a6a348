package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfeidau/payledger/internal/store"
)

// Kind classifies a row level failure.
type Kind string

const (
	// KindValidation marks a malformed or incomplete row. Never retried.
	KindValidation Kind = "ValidationError"
	// KindIdentityConflict marks a lost race to create or claim an identity.
	// The row is retried once and re-resolves to the winner.
	KindIdentityConflict Kind = "IdentityConflict"
	// KindTenantMismatch marks a matched entry owned by another organization.
	// Never retried.
	KindTenantMismatch Kind = "TenantMismatch"
	// KindStorage marks a persistence failure. Retried once.
	KindStorage Kind = "StorageError"
)

var (
	ErrInvalidRow     = errors.New("invalid row")
	ErrTenantMismatch = errors.New("entry belongs to another organization")
)

// RowError is the failure of a single row. It never aborts a batch.
type RowError struct {
	Kind Kind
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the row may succeed if processed again.
func (e *RowError) Retryable() bool {
	return e.Kind == KindIdentityConflict || e.Kind == KindStorage
}

// KindOf classifies err, defaulting to KindStorage for anything unrecognised.
func KindOf(err error) Kind {
	var rowErr *RowError
	if errors.As(err, &rowErr) {
		return rowErr.Kind
	}
	if errors.Is(err, store.ErrEntryIdentityConflict) {
		return KindIdentityConflict
	}
	return KindStorage
}

// storageError wraps a store failure. Identity conflicts keep their own kind
// and context errors are returned unchanged so cancellation is not retried.
func storageError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, store.ErrEntryIdentityConflict) {
		return &RowError{Kind: KindIdentityConflict, Err: fmt.Errorf("%s: %w", op, err)}
	}
	return &RowError{Kind: KindStorage, Err: fmt.Errorf("%s: %w", op, err)}
}
