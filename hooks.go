package shelf

import (
	"sync"

	"github.com/agentstation/shelf/pkg/records"
)

// Hook function types for override events
type (
	// OverrideSetHook is called after an override has been persisted
	OverrideSetHook func(key records.Key, onLoan bool)

	// OverrideClearedHook is called after an override has been removed
	OverrideClearedHook func(key records.Key)
)

// hooks manages event callbacks for override changes
type hooks struct {
	mu                sync.RWMutex
	onOverrideSet     []OverrideSetHook
	onOverrideCleared []OverrideClearedHook
}

// newHooks creates a new hooks instance
func newHooks() *hooks {
	return &hooks{}
}

// OnOverrideSet registers a callback for when an override is set
func (h *hooks) OnOverrideSet(fn OverrideSetHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onOverrideSet = append(h.onOverrideSet, fn)
}

// OnOverrideCleared registers a callback for when an override is cleared
func (h *hooks) OnOverrideCleared(fn OverrideClearedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onOverrideCleared = append(h.onOverrideCleared, fn)
}

func (h *hooks) triggerSet(key records.Key, onLoan bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, hook := range h.onOverrideSet {
		hook(key, onLoan)
	}
}

func (h *hooks) triggerCleared(key records.Key) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, hook := range h.onOverrideCleared {
		hook(key)
	}
}
