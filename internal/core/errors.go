package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/importcheck/internal/schema"
)

// Sentinel errors returned by the service and the storage adapters.
// Callers match them with errors.Is.
var (
	// ErrInvalidSpecification is the schema package's sentinel, re-exported
	// so callers of core do not need to import schema to match it.
	ErrInvalidSpecification = schema.ErrInvalidSpecification

	ErrNotFound           = errors.New("not found")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrTimeout            = errors.New("timed out")
)

// notFound wraps ErrNotFound with the kind and id of the missing entity.
func notFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}

// invalid wraps ErrInvalidSpecification with a formatted reason.
func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidSpecification, fmt.Sprintf(format, args...))
}

// classifyContext maps context errors to ErrTimeout so callers see a single
// sentinel for deadline failures. Other errors pass through unchanged.
func classifyContext(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}
