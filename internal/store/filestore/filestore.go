// Package filestore keeps each key in its own file under a directory and
// uses fsnotify to observe rewrites, including those made by other
// processes pointed at the same directory.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/hh6422123-cyber/Eak/internal/log"
	"github.com/hh6422123-cyber/Eak/internal/store"
)

const (
	fileSuffix = ".json"
	tmpPrefix  = ".tmp-"
)

// FileStore implements store.Area on a directory.
type FileStore struct {
	dir string
	log *zerolog.Logger

	mu     sync.Mutex
	closed bool
}

// New creates the directory if needed and returns a store rooted at it.
func New(dir string, logger *zerolog.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("filestore: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileStore{dir: dir, log: log.OrNop(logger)}, nil
}

// Dir returns the directory backing the store.
func (s *FileStore) Dir() string {
	return s.dir
}

// Get reads the file for key.
func (s *FileStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	if err := s.usable(); err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read %q: %w", key, err)
	}
	return data, true, nil
}

// Set writes value to a temp file and renames it over the key file so
// readers never observe a partial blob.
func (s *FileStore) Set(_ context.Context, key string, value []byte) error {
	if err := s.usable(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, tmpPrefix+"*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return fmt.Errorf("write %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path(key)); err != nil {
		return fmt.Errorf("replace %q: %w", key, err)
	}
	return nil
}

// Watch starts an fsnotify watcher on the directory. Events on temp files
// and foreign files are ignored.
func (s *FileStore) Watch(ctx context.Context) (<-chan store.Change, error) {
	if err := s.usable(); err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(s.dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", s.dir, err)
	}

	out := make(chan store.Change, 16)
	go func() {
		defer close(out)
		defer w.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
					continue
				}
				key, ok := keyFromPath(ev.Name)
				if !ok {
					continue
				}
				select {
				case out <- store.Change{Key: key}:
				default:
				}
			case werr, ok := <-w.Errors:
				if !ok {
					return
				}
				s.log.Warn().Err(werr).Str("dir", s.dir).Msg("storage watcher error")
			}
		}
	}()

	return out, nil
}

// Close marks the store unusable. Files are left in place.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *FileStore) usable() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrUnavailable
	}
	return nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key)+fileSuffix)
}

func keyFromPath(path string) (string, bool) {
	name := filepath.Base(path)
	if strings.HasPrefix(name, tmpPrefix) || !strings.HasSuffix(name, fileSuffix) {
		return "", false
	}
	key, err := url.PathUnescape(strings.TrimSuffix(name, fileSuffix))
	if err != nil {
		return "", false
	}
	return key, true
}
