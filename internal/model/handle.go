package model

import "sync"

// Handle owns at most one live model and swaps it atomically. Replacing
// releases the previous model so stale weights cannot serve predictions.
type Handle struct {
	mu sync.RWMutex
	m  *Model
}

// NewHandle returns an empty handle.
func NewHandle() *Handle {
	return &Handle{}
}

// Replace installs m as the live model and releases the previous one.
// Passing nil just clears the handle.
func (h *Handle) Replace(m *Model) {
	h.mu.Lock()
	old := h.m
	h.m = m
	h.mu.Unlock()

	if old != nil && old != m {
		old.Release()
	}
}

// Model returns the live model, or ErrNotReady when none is installed.
func (h *Handle) Model() (*Model, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.m == nil || h.m.released {
		return nil, ErrNotReady
	}

	return h.m, nil
}

// Close releases the live model, if any.
func (h *Handle) Close() {
	h.Replace(nil)
}
