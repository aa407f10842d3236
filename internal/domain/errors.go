package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks bad or missing input. Records failing validation
	// are skipped and counted, never written.
	ErrValidation = errors.New("validation error")

	// ErrIndexUnavailable marks a store that is unreachable or a query that
	// failed. Retrieval degrades to the remaining sources.
	ErrIndexUnavailable = errors.New("index unavailable")

	// ErrModelUnavailable marks a missing or failing language model. It is
	// terminal for the call that hit it.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrNoAnswer is returned when the model responds without usable content.
	ErrNoAnswer = fmt.Errorf("%w: no answer generated", ErrModelUnavailable)
)

// Store names used in IndexError and in logs/metrics.
const (
	StoreVector = "vector"
	StoreGraph  = "graph"
)

// IndexError records which store and operation failed.
type IndexError struct {
	Store string
	Op    string
	Err   error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%s index %s: %v", e.Store, e.Op, e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }

// Is makes every IndexError match ErrIndexUnavailable.
func (e *IndexError) Is(target error) bool {
	return target == ErrIndexUnavailable
}

// NewIndexError wraps err for the given store and operation. A nil err
// yields nil.
func NewIndexError(store, op string, err error) error {
	if err == nil {
		return nil
	}
	var ie *IndexError
	if errors.As(err, &ie) && ie.Store == store {
		return err
	}
	return &IndexError{Store: store, Op: op, Err: err}
}

// ModelError carries remediation guidance for a missing model.
type ModelError struct {
	Reason      string
	Remediation string
}

func (e *ModelError) Error() string {
	if e.Remediation == "" {
		return fmt.Sprintf("model unavailable: %s", e.Reason)
	}
	return fmt.Sprintf("model unavailable: %s (%s)", e.Reason, e.Remediation)
}

func (e *ModelError) Is(target error) bool {
	return target == ErrModelUnavailable
}
