// Package lock keeps a single daemon per session with an advisory flock on
// the session's LOCK file.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// Holder describes the process holding a lock, as recorded in the file.
type Holder struct {
	PID     int
	Owner   string
	Started time.Time
}

func (h Holder) String() string {
	if h.Owner == "" {
		return fmt.Sprintf("PID %d", h.PID)
	}
	return fmt.Sprintf("%s (PID %d)", h.Owner, h.PID)
}

// LockHeldError is returned when another process holds the lock.
type LockHeldError struct {
	Holder
	Path string
}

func (e *LockHeldError) Error() string {
	return fmt.Sprintf("session already served by %s, lock %s", e.Holder, e.Path)
}

// Lock is an acquired lock file.
type Lock struct {
	file *os.File
	path string
}

// Acquire takes the lock at path for owner without blocking. The parent
// directory is created when missing.
func Acquire(path, owner string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			h, _ := readHolder(path)
			return nil, &LockHeldError{Holder: h, Path: path}
		}
		return nil, fmt.Errorf("flock %s: %w", path, err)
	}

	h := Holder{PID: os.Getpid(), Owner: owner, Started: time.Now().UTC().Truncate(time.Second)}
	if err := writeHolder(f, h); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write lock file: %w", err)
	}
	return &Lock{file: f, path: path}, nil
}

// Inspect reports who holds the lock at path. It returns nil when the lock
// is free or the file does not exist.
func Inspect(path string) (*Holder, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	err = syscall.Flock(int(f.Fd()), syscall.LOCK_SH|syscall.LOCK_NB)
	if err == nil {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		return nil, nil
	}
	if !errors.Is(err, syscall.EWOULDBLOCK) {
		return nil, fmt.Errorf("flock %s: %w", path, err)
	}
	h, err := readHolder(path)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// Release removes the lock file and drops the lock. It is safe on a nil or
// already released Lock.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = os.Remove(l.path)
	err := l.file.Close()
	l.file = nil
	return err
}

func writeHolder(f *os.File, h Holder) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	_, err := f.WriteAt([]byte(fmt.Sprintf("pid=%d\nowner=%s\nstarted=%s\n",
		h.PID, h.Owner, h.Started.Format(time.RFC3339))), 0)
	return err
}

func readHolder(path string) (Holder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Holder{}, err
	}
	var h Holder
	for _, line := range strings.Split(string(data), "\n") {
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch k {
		case "pid":
			h.PID, _ = strconv.Atoi(v)
		case "owner":
			h.Owner = v
		case "started":
			h.Started, _ = time.Parse(time.RFC3339, v)
		}
	}
	return h, nil
}
