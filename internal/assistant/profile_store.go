package assistant

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const reloadDebounce = 200 * time.Millisecond

// ProfileStore holds the active profile and keeps it in sync with its file.
type ProfileStore struct {
	path   string
	logger *zap.Logger

	current atomic.Pointer[Profile]

	mu        sync.Mutex // serializes writers and guards listeners
	listeners []func(Profile)
}

// NewProfileStore loads the profile at path, writing the default profile
// if the file does not exist yet.
func NewProfileStore(path string, logger *zap.Logger) (*ProfileStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ProfileStore{path: path, logger: logger}

	p, err := LoadProfile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := SaveProfile(path, p); err != nil {
			return nil, fmt.Errorf("write default profile: %w", err)
		}
		logger.Info("default assistant profile created", zap.String("path", path))
	case err != nil:
		return nil, err
	}
	s.current.Store(&p)
	return s, nil
}

// Path returns the profile file location.
func (s *ProfileStore) Path() string { return s.path }

// Current returns the active profile.
func (s *ProfileStore) Current() Profile {
	return *s.current.Load()
}

// OnChange registers fn to be called with every newly activated profile.
func (s *ProfileStore) OnChange(fn func(Profile)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Update applies fn to a copy of the active profile, validates and persists
// the result, then activates it.
func (s *ProfileStore) Update(fn func(*Profile)) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.Current()
	fn(&next)
	if err := next.Validate(); err != nil {
		return s.Current(), err
	}
	if err := SaveProfile(s.path, next); err != nil {
		return s.Current(), err
	}
	s.activate(next)
	return next, nil
}

// Reload re-reads the profile file. An invalid file keeps the active profile.
func (s *ProfileStore) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := LoadProfile(s.path)
	if err != nil {
		return err
	}
	if p == s.Current() {
		return nil
	}
	s.activate(p)
	s.logger.Info("assistant profile reloaded",
		zap.String("model", p.Model),
		zap.Int("window_size", p.WindowSize),
	)
	return nil
}

// activate must be called with s.mu held.
func (s *ProfileStore) activate(p Profile) {
	s.current.Store(&p)
	for _, fn := range s.listeners {
		fn(p)
	}
}

// Watch reloads the profile whenever its file changes, until ctx is done.
// The parent directory is watched so atomic replacements are seen.
func (s *ProfileStore) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	if err := w.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(s.path), err)
	}

	d := newDebouncer(reloadDebounce)
	defer d.Stop()

	name := filepath.Clean(s.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-w.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if filepath.Clean(evt.Name) != name || evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			d.Trigger(func() {
				if err := s.Reload(); err != nil && !errors.Is(err, os.ErrNotExist) {
					s.logger.Warn("assistant profile reload failed", zap.Error(err))
				}
			})
		case err, ok := <-w.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			s.logger.Warn("profile watcher error", zap.Error(err))
		}
	}
}

// debouncer runs the last triggered callback once events stop for interval.
type debouncer struct {
	mu       sync.Mutex
	interval time.Duration
	timer    *time.Timer
	stopped  bool
}

func newDebouncer(interval time.Duration) *debouncer {
	return &debouncer{interval: interval}
}

func (d *debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, fn)
}

func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}
