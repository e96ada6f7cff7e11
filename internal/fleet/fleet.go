// Package fleet implements the validated operations on a maintenance document.
// Every function either applies its whole change or returns an error and
// leaves the document untouched. The functions do no I/O; the server runs
// them inside a store update and the client runs them on its local cache.
package fleet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"loom-maintenance-backend/internal/model"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInUse             = errors.New("in use")
	ErrDuplicate         = errors.New("already exists")
	ErrInvalid           = errors.New("invalid")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrBadCredentials    = errors.New("invalid username or password")
)

func notFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}

func inUse(kind, id, byKind, byName string) error {
	return fmt.Errorf("%s %q is used by %s %q: %w", kind, id, byKind, byName, ErrInUse)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// newID returns requested when it is free, or a generated ID when requested is empty.
func newID(d *model.Document, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	if requested == "" {
		return uuid.NewString(), nil
	}
	if d.HasID(requested) {
		return "", fmt.Errorf("id %q: %w", requested, ErrDuplicate)
	}
	return requested, nil
}

// set applies a non-nullable tagged field to dst.
func set[T any](dst *T, o model.Opt[T], field string) error {
	if !o.Set {
		return nil
	}
	if o.Null {
		return invalid("%s cannot be null", field)
	}
	*dst = o.Value
	return nil
}

// setNullable applies a nullable tagged field; null stores the zero value.
func setNullable[T any](dst *T, o model.Opt[T]) {
	if !o.Set {
		return
	}
	if o.Null {
		var zero T
		*dst = zero
		return
	}
	*dst = o.Value
}

func removeAt[T any](s []T, i int) []T {
	return append(s[:i], s[i+1:]...)
}
