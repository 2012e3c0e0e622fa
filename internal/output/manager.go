// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

// Package output manages the per-stream output directories under a single
// root (usually a tmpfs mount).
//
// Every stream name is validated and its directory is checked for
// containment under the root before any filesystem call is made. Invalid
// names are rejected, never rewritten.
package output

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

const (
	dirPerm = 0o755

	// maxNameLength keeps names usable as a single path component on all
	// common filesystems.
	maxNameLength = 255
)

// Manager owns the output root and the stream directories inside it.
type Manager struct {
	root string
	fs   FS
}

// NewManager creates a manager rooted at root. A nil fsys uses the real
// filesystem. The root is made absolute but not created; see EnsureRoot.
func NewManager(root string, fsys FS) (*Manager, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("output root must not be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve output root %q: %w", root, err)
	}
	if fsys == nil {
		fsys = OSFS{}
	}
	return &Manager{root: filepath.Clean(abs), fs: fsys}, nil
}

// Root returns the absolute output root.
func (m *Manager) Root() string {
	return m.root
}

// EnsureRoot creates the output root if it does not exist.
func (m *Manager) EnsureRoot() error {
	if err := m.fs.MkdirAll(m.root, dirPerm); err != nil {
		return &FilesystemError{Op: "mkdir", Path: m.root, Err: err}
	}
	return nil
}

// ValidateName reports whether name is usable as a stream directory name.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty", ErrInvalidStreamName)
	case len(name) > maxNameLength:
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidStreamName, maxNameLength)
	case name == ".":
		return fmt.Errorf("%w: %q", ErrInvalidStreamName, name)
	case strings.Contains(name, ".."):
		return fmt.Errorf("%w: %q contains a parent reference", ErrInvalidStreamName, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidStreamName, name)
	case strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: contains NUL", ErrInvalidStreamName)
	}
	return nil
}

// Resolve returns the absolute directory for stream name. It performs no
// filesystem access.
func (m *Manager) Resolve(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}

	dir := filepath.Join(m.root, name)
	if !m.contains(dir) {
		return "", fmt.Errorf("%w: %q escapes the output root", ErrInvalidStreamName, name)
	}
	return dir, nil
}

// contains reports whether path is a strict descendant of the root.
func (m *Manager) contains(path string) bool {
	rel, err := filepath.Rel(m.root, path)
	if err != nil {
		return false
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return !filepath.IsAbs(rel)
}

// Prepare creates the stream directory if needed and removes everything in
// it. It returns the absolute directory ready for a fresh relay process.
func (m *Manager) Prepare(name string) (string, error) {
	dir, err := m.Resolve(name)
	if err != nil {
		return "", err
	}

	if err := m.fs.MkdirAll(dir, dirPerm); err != nil {
		return "", &FilesystemError{Op: "mkdir", Path: dir, Err: err}
	}
	if err := m.checkDir(dir); err != nil {
		return "", err
	}
	if err := m.purgeDir(dir); err != nil {
		return "", err
	}
	return dir, nil
}

// Purge removes every entry in the stream directory. A missing directory is
// not an error.
func (m *Manager) Purge(name string) error {
	dir, err := m.Resolve(name)
	if err != nil {
		return err
	}

	if err := m.checkDir(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return m.purgeDir(dir)
}

// HasArtifacts reports whether the stream directory holds at least one
// non-empty regular file, which is how a relay proves it is producing output.
func (m *Manager) HasArtifacts(name string) (bool, error) {
	dir, err := m.Resolve(name)
	if err != nil {
		return false, err
	}

	entries, err := m.fs.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, &FilesystemError{Op: "readdir", Path: dir, Err: err}
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Relays rotate segments; a file may vanish between list and stat.
			continue
		}
		if info.Size() > 0 {
			return true, nil
		}
	}
	return false, nil
}

// ResolveFile returns the absolute path of a media file inside the stream
// directory. It validates both names and performs no filesystem access.
func (m *Manager) ResolveFile(name, file string) (string, error) {
	dir, err := m.Resolve(name)
	if err != nil {
		return "", err
	}
	if err := ValidateFileName(file); err != nil {
		return "", err
	}

	path := filepath.Join(dir, file)
	if filepath.Dir(path) != dir {
		return "", fmt.Errorf("%w: %q", ErrInvalidFileName, file)
	}
	return path, nil
}

func (m *Manager) checkDir(dir string) error {
	info, err := m.fs.Lstat(dir)
	if err != nil {
		return &FilesystemError{Op: "lstat", Path: dir, Err: err}
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		return &FilesystemError{Op: "lstat", Path: dir, Err: errSymlink}
	}
	if !info.IsDir() {
		return &FilesystemError{Op: "lstat", Path: dir, Err: errNotDirectory}
	}
	return nil
}

func (m *Manager) purgeDir(dir string) error {
	entries, err := m.fs.ReadDir(dir)
	if err != nil {
		return &FilesystemError{Op: "readdir", Path: dir, Err: err}
	}
	for _, e := range entries {
		p := filepath.Join(dir, e.Name())
		if err := m.fs.RemoveAll(p); err != nil {
			return &FilesystemError{Op: "remove", Path: p, Err: err}
		}
	}
	return nil
}
