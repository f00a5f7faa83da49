// Package scratch allocates the per-request temporary files handed to the
// renderer and guarantees their removal.
package scratch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/rs/xid"

	"pdfconvert/internal/domain"
	"pdfconvert/internal/infra/logging"
)

const filePrefix = "pdfconvert-"

// Manager creates scratch files inside a single directory.
type Manager struct {
	dir string
}

// NewManager returns a manager rooted at dir. An empty dir means the OS temp dir.
func NewManager(dir string) *Manager {
	if dir == "" {
		dir = os.TempDir()
	}
	return &Manager{dir: dir}
}

// Dir is the directory scratch files are created in.
func (m *Manager) Dir() string {
	return m.dir
}

// Acquire creates a new, empty, uniquely named file for kind. The name mixes
// a globally unique id with random bytes chosen under O_EXCL, so concurrent
// requests never share a path.
func (m *Manager) Acquire(kind domain.ScratchKind) (domain.ScratchFile, error) {
	pattern := filePrefix + xid.New().String() + "-*" + kind.Ext()
	f, err := os.CreateTemp(m.dir, pattern)
	if err != nil {
		return domain.ScratchFile{}, fmt.Errorf("create %s scratch file: %w", kind, err)
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return domain.ScratchFile{}, fmt.Errorf("close %s scratch file: %w", kind, err)
	}
	return domain.ScratchFile{Path: path, Kind: kind}, nil
}

// Release removes the file. Failures are logged and swallowed.
func (m *Manager) Release(f domain.ScratchFile) {
	if f.Path == "" {
		return
	}
	if err := os.Remove(f.Path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logging.Debug("Scratch file already gone", "path", f.Path, "kind", f.Kind.String())
			return
		}
		logging.Warn("Failed to remove scratch file", "path", f.Path, "kind", f.Kind.String(), "error", err)
		return
	}
	logging.Debug("Removed scratch file", "path", f.Path, "kind", f.Kind.String())
}

// Count returns how many scratch files created by any manager live in the directory.
func (m *Manager) Count() (int, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), filePrefix) {
			n++
		}
	}
	return n, nil
}

// Scope ties a set of scratch files to one request. Close releases all of
// them exactly once, no matter how many times it is called.
type Scope struct {
	m *Manager

	mu     sync.Mutex
	files  []domain.ScratchFile
	closed bool
}

// NewScope opens a scope. Defer Close immediately after calling it.
func (m *Manager) NewScope() *Scope {
	return &Scope{m: m}
}

// Acquire creates a scratch file owned by the scope.
func (s *Scope) Acquire(kind domain.ScratchKind) (domain.ScratchFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ScratchFile{}, errors.New("scratch scope already closed")
	}
	f, err := s.m.Acquire(kind)
	if err != nil {
		return domain.ScratchFile{}, err
	}
	s.files = append(s.files, f)
	return f, nil
}

// Close releases every file acquired through the scope.
func (s *Scope) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	files := s.files
	s.files = nil
	s.mu.Unlock()

	for _, f := range files {
		s.m.Release(f)
	}
}

