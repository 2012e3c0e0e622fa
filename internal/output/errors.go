// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

package output

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidStreamName is returned for stream names that cannot be used
	// as a single path segment under the output root.
	ErrInvalidStreamName = errors.New("invalid stream name")

	// ErrInvalidFileName is returned for requested file names that are not
	// a plain media file inside a stream directory.
	ErrInvalidFileName = errors.New("invalid file name")

	errNotDirectory = errors.New("not a directory")
	errSymlink      = errors.New("refusing to use symlinked stream directory")
)

// FilesystemError reports a failed operation on the output area.
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("output %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error {
	return e.Err
}
