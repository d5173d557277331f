// Package workdir owns the lifecycle of a pipeline run's intermediate
// files. A Manager is scoped to exactly one run and injected into every
// component that writes intermediates; concurrent runs never share one.
package workdir

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/taigi0315/study-english-with-suits-sub006/pkg/log"
)

// Manager tracks every intermediate file and directory of one run and is
// the sole owner of their deletion.
type Manager struct {
	root string

	mu         sync.Mutex
	registered []string
	closed     bool
}

// New creates a run-scoped working directory under baseDir. The directory
// name carries the run ID so parallel runs stay disjoint on disk.
func New(baseDir, runID string) (*Manager, error) {
	root := filepath.Join(baseDir, "run-"+runID)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create working directory: %w", err)
	}
	return &Manager{root: root}, nil
}

// Root returns the run's working directory
func (m *Manager) Root() string {
	return m.root
}

// Path returns a path inside the working directory without creating it
func (m *Manager) Path(elem ...string) string {
	return filepath.Join(append([]string{m.root}, elem...)...)
}

// Subdir creates (if needed) and returns a subdirectory of the run root
func (m *Manager) Subdir(name string) (string, error) {
	dir := filepath.Join(m.root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create subdirectory %s: %w", name, err)
	}
	m.Register(dir)
	return dir, nil
}

// Register records a file or directory for cleanup. Paths outside the run
// root are still accepted; the caller decided they are intermediates.
func (m *Manager) Register(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		log.Warn("registering %s on a closed workdir manager", path)
		return
	}
	m.registered = append(m.registered, path)
}

// Remove deletes one registered intermediate early, e.g. a partial encoder
// output after a failed slice.
func (m *Manager) Remove(path string) {
	if err := os.RemoveAll(path); err != nil {
		log.Warn("failed to remove intermediate %s: %v", path, err)
	}
}

// Cleanup deletes every registered intermediate and the run directory
// itself. Safe to call multiple times and on every outcome; intended for
// defer at run start.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	registered := m.registered
	m.registered = nil
	m.mu.Unlock()

	for i := len(registered) - 1; i >= 0; i-- {
		if err := os.RemoveAll(registered[i]); err != nil {
			log.Warn("failed to remove %s: %v", registered[i], err)
		}
	}
	if err := os.RemoveAll(m.root); err != nil {
		log.Warn("failed to remove working directory %s: %v", m.root, err)
	}
}
