// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

package output

import (
	"fmt"
	"path/filepath"
	"strings"
)

// mediaTypes maps servable extensions to their Content-Type.
var mediaTypes = map[string]string{
	".m3u8": "application/vnd.apple.mpegurl",
	".ts":   "video/mp2t",
	".m4s":  "video/iso.segment",
	".mp4":  "video/mp4",
	".aac":  "audio/aac",
	".vtt":  "text/vtt",
}

// ValidateFileName reports whether file is a plain media file name.
func ValidateFileName(file string) error {
	if file == "" || file == "." || strings.Contains(file, "..") ||
		strings.ContainsAny(file, "/\\\x00") || strings.HasPrefix(file, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidFileName, file)
	}
	if _, ok := mediaTypes[strings.ToLower(filepath.Ext(file))]; !ok {
		return fmt.Errorf("%w: unsupported extension %q", ErrInvalidFileName, filepath.Ext(file))
	}
	return nil
}

// ContentType returns the Content-Type for a media file name, or
// application/octet-stream for unknown extensions.
func ContentType(file string) string {
	if ct, ok := mediaTypes[strings.ToLower(filepath.Ext(file))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// IsManifest reports whether file is an HLS playlist.
func IsManifest(file string) bool {
	return strings.EqualFold(filepath.Ext(file), ".m3u8")
}
