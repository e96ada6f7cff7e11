package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"loom-maintenance-backend/internal/model"
)

// GormStore keeps every version of the document as a row of
// document_snapshots. The newest row is current; the previous maxBackups
// rows are kept as backups.
type GormStore struct {
	db         *gorm.DB
	maxBackups int
	now        func() time.Time
	mu         sync.Mutex
}

// NewGormStore creates a new GORM-backed store. The table must already be migrated.
func NewGormStore(db *gorm.DB, maxBackups int) *GormStore {
	if maxBackups <= 0 {
		maxBackups = DefaultMaxBackups
	}
	return &GormStore{db: db, maxBackups: maxBackups, now: time.Now}
}

// Read returns the newest snapshot.
func (s *GormStore) Read(ctx context.Context) (*model.Document, error) {
	var snap model.DocumentSnapshot
	err := s.db.WithContext(ctx).Order("id DESC").First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document snapshot: %w", err)
	}
	var doc model.Document
	if err := json.Unmarshal(snap.Body, &doc); err != nil {
		return nil, fmt.Errorf("%w: corrupt snapshot %d: %v", ErrNoData, snap.ID, err)
	}
	return &doc, nil
}

// Write stores doc as a new snapshot.
func (s *GormStore) Write(ctx context.Context, doc *model.Document) (*model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(ctx, doc)
}

// Update runs a read-modify-write cycle under the store lock.
func (s *GormStore) Update(ctx context.Context, fn func(*model.Document) error) (*model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.Read(ctx)
	if err != nil {
		return nil, err
	}
	if err := fn(doc); err != nil {
		return nil, err
	}
	return s.write(ctx, doc)
}

func (s *GormStore) write(ctx context.Context, doc *model.Document) (*model.Document, error) {
	now := s.now()
	out := prepare(doc, now)
	body, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		snap := model.DocumentSnapshot{CreatedAt: now.UTC(), Body: datatypes.JSON(body)}
		if err := tx.Create(&snap).Error; err != nil {
			return fmt.Errorf("failed to insert snapshot: %w", err)
		}

		var ids []uint64
		if err := tx.Model(&model.DocumentSnapshot{}).Order("id DESC").Pluck("id", &ids).Error; err != nil {
			return fmt.Errorf("failed to list snapshots: %w", err)
		}
		if keep := s.maxBackups + 1; len(ids) > keep {
			if err := tx.Delete(&model.DocumentSnapshot{}, ids[keep:]).Error; err != nil {
				return fmt.Errorf("failed to prune snapshots: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
