package permission

import (
	"errors"
	"sync"
)

// Registry maps actions to bit positions within a Mask64.
type Registry struct {
	mu        sync.RWMutex
	actionBit map[Action]int
	bitAction map[int]Action
	frozen    bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		actionBit: make(map[Action]int),
		bitAction: make(map[int]Action),
	}
}

// Register assigns the next free bit to action and returns it.
func (r *Registry) Register(action Action) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return -1, errors.New("registry frozen")
	}
	if action == "" {
		return -1, errors.New("action name cannot be empty")
	}
	if _, exists := r.actionBit[action]; exists {
		return -1, errors.New("action already registered")
	}

	next := len(r.actionBit)
	if next >= 64 {
		return -1, errors.New("action limit exceeded")
	}

	r.actionBit[action] = next
	r.bitAction[next] = action
	return next, nil
}

// Bit returns the bit index for action, or false if it is not registered.
func (r *Registry) Bit(action Action) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.actionBit[action]
	return bit, ok
}

// Action returns the action assigned to bit.
func (r *Registry) Action(bit int) (Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.bitAction[bit]
	return a, ok
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Count returns the number of registered actions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.actionBit)
}
