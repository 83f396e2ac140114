package fingerprint

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// DefaultPath is where hashes are kept when nothing else is configured.
const DefaultPath = "/tmp/dns_zone_hashes.txt"

// Hashes maps a zone name to the hex digest of its zone file.
type Hashes map[string]string

// Clone returns an independent copy.
func (h Hashes) Clone() Hashes {
	out := make(Hashes, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// Store persists Hashes as "zone:hash" lines. It remembers the line order
// of the last Load or Save so rewriting an unchanged file is byte stable.
type Store struct {
	fs   afero.Fs
	path string

	mu    sync.Mutex
	order []string
}

// NewStore returns a Store backed by fs. A nil fs means the OS filesystem.
func NewStore(fs afero.Fs, path string) *Store {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if path == "" {
		path = DefaultPath
	}
	return &Store{fs: fs, path: path}
}

// Path returns the hash file location.
func (s *Store) Path() string { return s.path }

// Load reads the hash file. A missing file yields an empty map. Lines are
// split on the last colon; blank and malformed lines are ignored.
func (s *Store) Load() (Hashes, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Hashes{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read hash file: %w", err)
	}

	hashes := Hashes{}
	var order []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		idx := strings.LastIndex(line, ":")
		if idx <= 0 || idx == len(line)-1 {
			continue
		}
		zone := line[:idx]
		if _, seen := hashes[zone]; !seen {
			order = append(order, zone)
		}
		hashes[zone] = line[idx+1:]
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("parse hash file: %w", err)
	}

	s.mu.Lock()
	s.order = order
	s.mu.Unlock()
	return hashes, nil
}

// lineOrder keeps zones already in the file where they were and appends
// new zones sorted.
func (s *Store) lineOrder(hashes Hashes) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	zones := make([]string, 0, len(hashes))
	kept := make(map[string]bool, len(s.order))
	for _, zone := range s.order {
		if _, ok := hashes[zone]; ok && !kept[zone] {
			zones = append(zones, zone)
			kept[zone] = true
		}
	}
	var added []string
	for zone := range hashes {
		if !kept[zone] {
			added = append(added, zone)
		}
	}
	sort.Strings(added)
	return append(zones, added...)
}

// Save replaces the hash file atomically: the content goes to a temporary
// file in the same directory which is synced and renamed over the target.
func (s *Store) Save(hashes Hashes) error {
	zones := s.lineOrder(hashes)

	var buf bytes.Buffer
	for _, zone := range zones {
		fmt.Fprintf(&buf, "%s:%s\n", zone, hashes[zone])
	}

	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create hash file directory: %w", err)
	}
	tmp, err := afero.TempFile(s.fs, dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp hash file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = s.fs.Remove(tmpName) }

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write temp hash file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp hash file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp hash file: %w", err)
	}
	if err := s.fs.Rename(tmpName, s.path); err != nil {
		cleanup()
		return fmt.Errorf("replace hash file: %w", err)
	}

	s.mu.Lock()
	s.order = zones
	s.mu.Unlock()
	return nil
}
