// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

// Package models defines the JSON shapes of the management API: the
// APIResponse envelope and the system status view. Stream statuses and
// transitions are served as stream.Status and stream.Transition directly.
package models
