package diskstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BaSui01/cortex/types"
	"go.uber.org/zap"
)

// ErrNotFound is returned when no persisted collection exists for a key.
var ErrNotFound = errors.New("diskstore: collection not found")

// ErrInvalidOwner is returned for owner ids that cannot be used as a directory name.
var ErrInvalidOwner = errors.New("diskstore: invalid owner id")

var fileNames = map[types.IndexSource]string{
	types.SourceGraph:  "graph.json",
	types.SourceSparse: "index.json",
}

// Store persists graph and sparse collections as JSON files under
// <root>/<source>/<owner>/. Writes are atomic (temp file + rename), so a
// collection is either absent or fully loadable.
type Store struct {
	root   string
	logger *zap.Logger
}

// New creates a Store rooted at root.
func New(root string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		root:   root,
		logger: logger.With(zap.String("component", "diskstore")),
	}
}

// Root returns the storage root.
func (s *Store) Root() string { return s.root }

// Path returns the file backing a collection.
func (s *Store) Path(key types.CollectionKey) (string, error) {
	name, ok := fileNames[key.Source]
	if !ok {
		return "", fmt.Errorf("diskstore: unsupported source %q", key.Source)
	}
	owner := strings.TrimSpace(key.OwnerID)
	if owner == "" || owner == "." || owner == ".." || strings.ContainsAny(owner, `/\`) {
		return "", ErrInvalidOwner
	}
	return filepath.Join(s.root, string(key.Source), owner, name), nil
}

// Exists reports whether a collection has been persisted.
func (s *Store) Exists(key types.CollectionKey) bool {
	path, err := s.Path(key)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Save marshals v and atomically replaces the collection file.
func (s *Store) Save(ctx context.Context, key types.CollectionKey, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.Path(key)
	if err != nil {
		return err
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	// Atomic write: temp file in the same directory, then rename
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}

	s.logger.Debug("collection persisted",
		zap.String("collection", key.String()),
		zap.Int("bytes", len(data)),
	)
	return nil
}

// Load reads the collection into v. Absent collections yield ErrNotFound.
func (s *Store) Load(ctx context.Context, key types.CollectionKey, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.Path(key)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}
