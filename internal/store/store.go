package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"loom-maintenance-backend/internal/logs"
	"loom-maintenance-backend/internal/model"
)

var (
	// ErrNoData means no usable document is stored. Callers should report a
	// retryable error rather than fail hard.
	ErrNoData = errors.New("no data available")
	// ErrEmpty means nothing has been stored yet.
	ErrEmpty = fmt.Errorf("%w: nothing stored yet", ErrNoData)
)

// DefaultMaxBackups is the number of previous document versions kept.
const DefaultMaxBackups = 10

// Store persists the maintenance document as a single unit.
type Store interface {
	// Read returns the current document or an error wrapping ErrNoData.
	Read(ctx context.Context) (*model.Document, error)
	// Write replaces the document, stamps LastModified and returns what was stored.
	Write(ctx context.Context, doc *model.Document) (*model.Document, error)
	// Update runs fn on the current document and writes the result. Updates
	// are serialized; an error from fn aborts without writing.
	Update(ctx context.Context, fn func(*model.Document) error) (*model.Document, error)
}

// EnsureSeed writes the seed document when the store is empty. A corrupt
// store is left alone. It reports whether the seed was written.
func EnsureSeed(ctx context.Context, s Store, now time.Time) (bool, error) {
	_, err := s.Read(ctx)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, ErrEmpty) {
		return false, err
	}
	doc, err := model.Seed(now)
	if err != nil {
		return false, fmt.Errorf("failed to build seed document: %w", err)
	}
	if _, err := s.Write(ctx, doc); err != nil {
		return false, fmt.Errorf("failed to write seed document: %w", err)
	}
	logs.Logger.Info("store was empty, wrote seed document")
	return true, nil
}

// prepare copies doc for storage: collections allocated and LastModified stamped.
func prepare(doc *model.Document, now time.Time) *model.Document {
	out := doc.Clone()
	out.Normalize()
	out.LastModified = now.UTC()
	return out
}
