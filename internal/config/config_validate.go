// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

package config

import (
	"fmt"
	"path/filepath"

	"github.com/tomtom215/vtxlink/internal/validation"
)

// Validate checks struct tags first, then the cross-field rules tags cannot express.
//
// Stream names are deliberately not checked for path safety here: a stream
// with an unusable name fails inside its own lifecycle while every other
// stream still starts.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr
	}

	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateSupervisor(); err != nil {
		return err
	}
	return c.validateStreams()
}

func (c *Config) validateServer() error {
	root := filepath.Clean(c.Server.HLSRoot)
	if root == "/" || root == "." {
		return fmt.Errorf("server.hls_root %q must be a dedicated directory", c.Server.HLSRoot)
	}
	if c.Server.ManifestWait > 0 && c.Server.ManifestPollInterval > c.Server.ManifestWait {
		return fmt.Errorf("server.manifest_poll_interval (%s) must not exceed server.manifest_wait (%s)",
			c.Server.ManifestPollInterval, c.Server.ManifestWait)
	}
	return nil
}

func (c *Config) validateSupervisor() error {
	if c.Supervisor.OutputCheckInterval >= c.Supervisor.SpawnTimeout {
		return fmt.Errorf("supervisor.output_check_interval (%s) must be shorter than supervisor.spawn_timeout (%s)",
			c.Supervisor.OutputCheckInterval, c.Supervisor.SpawnTimeout)
	}
	return nil
}

func (c *Config) validateStreams() error {
	seen := make(map[string]int, len(c.Streams))
	for i, sc := range c.Streams {
		if j, dup := seen[sc.Name]; dup {
			return fmt.Errorf("streams[%d]: duplicate stream name %q (first defined at streams[%d])", i, sc.Name, j)
		}
		seen[sc.Name] = i
	}
	return nil
}
