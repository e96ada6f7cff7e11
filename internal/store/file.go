package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"loom-maintenance-backend/internal/logs"
	"loom-maintenance-backend/internal/model"
)

const (
	// DataFileName is the name of the document file inside the data directory.
	DataFileName = "maintenance-data.json"
	backupPrefix = "backup-"
	backupLayout = "2006-01-02T15-04-05.000000000"
)

// FileStore keeps the document as one JSON file and a rotating set of backups.
type FileStore struct {
	dir        string
	maxBackups int
	now        func() time.Time
	mu         sync.Mutex
}

// NewFileStore creates the data directory if needed.
func NewFileStore(dir string, maxBackups int) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dir, err)
	}
	if maxBackups <= 0 {
		maxBackups = DefaultMaxBackups
	}
	return &FileStore{dir: dir, maxBackups: maxBackups, now: time.Now}, nil
}

// Path returns the location of the document file.
func (s *FileStore) Path() string {
	return filepath.Join(s.dir, DataFileName)
}

// Read parses the document file. A missing file yields ErrEmpty, an
// unreadable or corrupt one an error wrapping ErrNoData.
func (s *FileStore) Read(ctx context.Context) (*model.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(s.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoData, err)
	}
	var doc model.Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("%w: corrupt document %s: %v", ErrNoData, s.Path(), err)
	}
	return &doc, nil
}

// Write replaces the document file.
func (s *FileStore) Write(ctx context.Context, doc *model.Document) (*model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.write(doc)
}

// Update runs a read-modify-write cycle under the store lock.
func (s *FileStore) Update(ctx context.Context, fn func(*model.Document) error) (*model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.Read(ctx)
	if err != nil {
		return nil, err
	}
	if err := fn(doc); err != nil {
		return nil, err
	}
	return s.write(doc)
}

// write backs up the current file, then writes a temp file in the same
// directory and renames it over the target so readers never see a partial
// document.
func (s *FileStore) write(doc *model.Document) (*model.Document, error) {
	now := s.now()
	out := prepare(doc, now)
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}

	if err := s.backup(now); err != nil {
		logs.Logger.WithError(err).Warn("failed to back up document, writing anyway")
	}

	tmp, err := os.CreateTemp(s.dir, ".maintenance-data-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.Path()); err != nil {
		return nil, fmt.Errorf("failed to replace document: %w", err)
	}

	if err := s.prune(); err != nil {
		logs.Logger.WithError(err).Warn("failed to prune old backups")
	}
	return out, nil
}

func (s *FileStore) backup(now time.Time) error {
	b, err := os.ReadFile(s.Path())
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	name := filepath.Join(s.dir, backupPrefix+now.UTC().Format(backupLayout)+".json")
	return os.WriteFile(name, b, 0o644)
}

// Backups lists the backup files, oldest first.
func (s *FileStore) Backups() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), backupPrefix) && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *FileStore) prune() error {
	names, err := s.Backups()
	if err != nil {
		return err
	}
	for len(names) > s.maxBackups {
		if err := os.Remove(filepath.Join(s.dir, names[0])); err != nil {
			return err
		}
		names = names[1:]
	}
	return nil
}
