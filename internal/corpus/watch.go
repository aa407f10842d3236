package corpus

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/efebarandurmaz/hybridrag/internal/domain"
)

// Change is a snapshot that appeared or changed on disk. Err is set when
// the file could not be loaded; Record is then zero except for its ID.
type Change struct {
	ID     string
	Record domain.Record
	Err    error
}

// Watch emits a Change for every snapshot created or rewritten in the
// store directory until ctx is canceled. Rewrites with identical content
// are suppressed. The returned channel is closed when watching stops.
func (s *Store) Watch(ctx context.Context, logger *zap.Logger) (<-chan Change, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(s.rootDir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", s.rootDir, err)
	}

	out := make(chan Change)
	go func() {
		defer close(out)
		defer w.Close()

		seen := make(map[string]string)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				ch := s.handleEvent(ev, seen)
				if ch == nil {
					continue
				}
				select {
				case out <- *ch:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Warn("corpus watcher error", zap.Error(err))
			}
		}
	}()
	return out, nil
}

// handleEvent turns a filesystem event into a Change, or nil when the
// event is not a new or modified snapshot.
func (s *Store) handleEvent(ev fsnotify.Event, seen map[string]string) *Change {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return nil
	}
	id := filepath.Base(ev.Name)
	if !isSnapshotName(id) {
		return nil
	}
	if info, err := os.Stat(ev.Name); err != nil || info.IsDir() {
		return nil
	}

	data, err := os.ReadFile(ev.Name)
	if err != nil {
		return &Change{ID: id, Err: fmt.Errorf("read snapshot %s: %w", id, err)}
	}
	hash := ContentHash(data)
	if seen[id] == hash {
		return nil
	}
	seen[id] = hash

	snap, err := domain.DecodeSnapshot(data)
	if err != nil {
		return &Change{ID: id, Err: fmt.Errorf("snapshot %s: %w", id, err)}
	}
	return &Change{ID: id, Record: snap.Record(id)}
}
