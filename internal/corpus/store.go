// Package corpus stores document snapshots as one JSON file per document
// and watches the directory for new ones.
package corpus

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/efebarandurmaz/hybridrag/internal/domain"
)

// Ext is the snapshot file extension.
const Ext = ".json"

// ErrNotFound is returned by Load for an unknown snapshot id.
var ErrNotFound = errors.New("snapshot not found")

// Store is a directory of snapshot files. The snapshot id is the file's
// base name (e.g. "p1.json"), which is also the record id.
type Store struct {
	mu      sync.RWMutex
	rootDir string
}

// Open creates or opens a store rooted at dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create corpus directory %s: %w", dir, err)
	}
	return &Store{rootDir: dir}, nil
}

// Dir returns the root directory.
func (s *Store) Dir() string { return s.rootDir }

// IDFor maps a source file name (e.g. "p1.pdf") to its snapshot id
// ("p1.json").
func IDFor(sourceName string) string {
	base := filepath.Base(sourceName)
	return strings.TrimSuffix(base, filepath.Ext(base)) + Ext
}

// Save writes snap under id, replacing any previous version. The file is
// written to a hidden temp file first and renamed into place so watchers
// never see a partial snapshot.
func (s *Store) Save(id string, snap domain.Snapshot) error {
	if err := validID(id); err != nil {
		return err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.rootDir, "."+id+".*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", id, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write snapshot %s: %w", id, err)
	}
	if err := os.Rename(tmp.Name(), s.path(id)); err != nil {
		return fmt.Errorf("write snapshot %s: %w", id, err)
	}
	return nil
}

// Load reads the snapshot stored under id.
func (s *Store) Load(id string) (domain.Snapshot, error) {
	if err := validID(id); err != nil {
		return domain.Snapshot{}, err
	}
	s.mu.RLock()
	data, err := os.ReadFile(s.path(id))
	s.mu.RUnlock()
	if errors.Is(err, os.ErrNotExist) {
		return domain.Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("read snapshot %s: %w", id, err)
	}
	snap, err := domain.DecodeSnapshot(data)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("snapshot %s: %w", id, err)
	}
	return snap, nil
}

// List returns the ids of all stored snapshots in lexicographic order.
// Hidden files are ignored.
func (s *Store) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.rootDir)
	if err != nil {
		return nil, fmt.Errorf("list corpus %s: %w", s.rootDir, err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !isSnapshotName(e.Name()) {
			continue
		}
		ids = append(ids, e.Name())
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes the snapshot stored under id. Deleting a missing id is
// not an error.
func (s *Store) Delete(id string) error {
	if err := validID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove snapshot %s: %w", id, err)
	}
	return nil
}

// LoadError describes a snapshot that could not be turned into a record.
type LoadError struct {
	ID  string
	Err error
}

// Records loads every snapshot as a record, in List order. Snapshots that
// cannot be read or decoded are returned separately and do not stop the
// walk.
func (s *Store) Records() ([]domain.Record, []LoadError, error) {
	ids, err := s.List()
	if err != nil {
		return nil, nil, err
	}
	recs := make([]domain.Record, 0, len(ids))
	var bad []LoadError
	for _, id := range ids {
		snap, err := s.Load(id)
		if err != nil {
			bad = append(bad, LoadError{ID: id, Err: err})
			continue
		}
		recs = append(recs, snap.Record(id))
	}
	return recs, bad, nil
}

// ContentHash computes the SHA-256 hash of content as a hex string.
func ContentHash(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}

func (s *Store) path(id string) string {
	return filepath.Join(s.rootDir, id)
}

func isSnapshotName(name string) bool {
	return !strings.HasPrefix(name, ".") && strings.HasSuffix(name, Ext)
}

func validID(id string) error {
	if id == "" || id != filepath.Base(id) || !isSnapshotName(id) {
		return fmt.Errorf("%w: invalid snapshot id %q", domain.ErrValidation, id)
	}
	return nil
}
