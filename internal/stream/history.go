// VTX Link - Edge Media Stream Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vtxlink

package stream

import "sync"

// History is a fixed-size ring of recent transitions.
type History struct {
	mu   sync.Mutex
	buf  []Transition
	next int
	full bool
}

// NewHistory creates a ring holding up to size transitions.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{buf: make([]Transition, size)}
}

// OnTransition implements Observer.
func (h *History) OnTransition(t Transition) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.buf[h.next] = t
	h.next++
	if h.next == len(h.buf) {
		h.next = 0
		h.full = true
	}
}

// Len returns the number of stored transitions.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.full {
		return len(h.buf)
	}
	return h.next
}

// Recent returns up to limit of the newest transitions in chronological
// order. A non-positive limit returns everything stored.
func (h *History) Recent(limit int) []Transition {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := h.next
	if h.full {
		n = len(h.buf)
	}
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]Transition, limit)
	start := h.next - limit
	if start < 0 {
		start += len(h.buf)
	}
	for i := 0; i < limit; i++ {
		out[i] = h.buf[(start+i)%len(h.buf)]
	}
	return out
}
