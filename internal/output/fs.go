// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

package output

import (
	"os"
)

// FS is the filesystem capability used by the Manager. Paths are absolute.
type FS interface {
	MkdirAll(path string, perm os.FileMode) error
	ReadDir(name string) ([]os.DirEntry, error)
	RemoveAll(path string) error
	Lstat(name string) (os.FileInfo, error)
}

// OSFS is FS backed by the os package.
type OSFS struct{}

func (OSFS) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }

func (OSFS) ReadDir(name string) ([]os.DirEntry, error) { return os.ReadDir(name) }

func (OSFS) RemoveAll(path string) error { return os.RemoveAll(path) }

func (OSFS) Lstat(name string) (os.FileInfo, error) { return os.Lstat(name) }
