// Package lockfile keeps two detection passes from running at once.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"
)

// DefaultPath is the lock used when nothing else is configured.
const DefaultPath = "/tmp/zone-change-detector.lock"

// ErrLocked is returned when another live process holds the lock.
var ErrLocked = errors.New("another instance is running")

var takeOverSeq atomic.Uint64

// Lock is a held lock file.
type Lock struct {
	path string
	pid  int
}

// Acquire creates path exclusively and writes the current PID into it. An
// existing lock is taken over when its PID is not alive or, with a positive
// staleAfter, when it is older than staleAfter.
func Acquire(path string, staleAfter time.Duration) (*Lock, error) {
	pid := os.Getpid()
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			_, werr := f.WriteString(strconv.Itoa(pid) + "\n")
			cerr := f.Close()
			if werr != nil || cerr != nil {
				_ = os.Remove(path)
				return nil, fmt.Errorf("write lock file: %w", errors.Join(werr, cerr))
			}
			return &Lock{path: path, pid: pid}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create lock file: %w", err)
		}
		stale, err := isStale(path, staleAfter)
		if err != nil {
			return nil, err
		}
		if !stale {
			return nil, fmt.Errorf("%w (lock file %s)", ErrLocked, path)
		}
		taken, err := takeOver(path, staleAfter, pid)
		if err != nil {
			return nil, err
		}
		if !taken {
			return nil, fmt.Errorf("%w (lock file %s)", ErrLocked, path)
		}
	}
	return nil, fmt.Errorf("%w (lock file %s)", ErrLocked, path)
}

// takeOver moves a stale lock aside under a unique name and deletes it. Only
// one of several processes racing for the same stale lock can rename it; the
// others see it gone and back off. If the moved file turns out to be a fresh
// lock created after the staleness check, it is linked back in place.
func takeOver(path string, staleAfter time.Duration, pid int) (bool, error) {
	moved := fmt.Sprintf("%s.stale-%d-%d-%d", path, pid, time.Now().UnixNano(), takeOverSeq.Add(1))
	if err := os.Rename(path, moved); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("move stale lock file: %w", err)
	}
	defer os.Remove(moved)

	stale, err := isStale(moved, staleAfter)
	if err != nil {
		return false, err
	}
	if !stale {
		// link fails if yet another lock appeared; that one wins
		_ = os.Link(moved, path)
		return false, nil
	}
	return true, nil
}

// Release removes the lock file if this process still owns it.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	owner, err := readPID(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err == nil && owner != l.pid {
		return fmt.Errorf("lock file %s is now held by pid %d", l.path, owner)
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove lock file: %w", err)
	}
	return nil
}

func (l *Lock) Path() string { return l.path }

func isStale(path string, staleAfter time.Duration) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat lock file: %w", err)
	}
	if staleAfter > 0 && time.Since(info.ModTime()) > staleAfter {
		return true, nil
	}
	pid, err := readPID(path)
	if err != nil {
		// lock files written by older tooling are empty; only age can expire them
		return false, nil
	}
	return !processAlive(pid), nil
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("lock file %s has no pid", path)
	}
	return pid, nil
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
