package permission

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrEthical07/estateAuth/session"
)

// Scope selects which records a role may touch.
type Scope uint8

const (
	// ScopeNone grants nothing.
	ScopeNone Scope = iota
	// ScopeOwned restricts the role to records it owns.
	ScopeOwned
	// ScopeAll lets the role see every record.
	ScopeAll
)

type roleGrant struct {
	mask  Mask64
	scope Scope
}

// RoleManager binds each role to an action mask and a visibility scope.
type RoleManager struct {
	registry *Registry

	mu     sync.RWMutex
	roles  map[session.Role]roleGrant
	frozen bool
}

// NewRoleManager returns a manager resolving action names through registry.
func NewRoleManager(registry *Registry) *RoleManager {
	return &RoleManager{
		registry: registry,
		roles:    make(map[session.Role]roleGrant),
	}
}

// RegisterRole grants actions to role within scope.
func (rm *RoleManager) RegisterRole(role session.Role, scope Scope, actions ...Action) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.frozen {
		return errors.New("role manager frozen")
	}
	if !role.Valid() {
		return fmt.Errorf("unknown role %q", role)
	}
	if _, exists := rm.roles[role]; exists {
		return errors.New("role already registered")
	}

	var mask Mask64
	for _, a := range actions {
		bit, ok := rm.registry.Bit(a)
		if !ok {
			return errors.New("action not registered: " + string(a))
		}
		mask.Set(bit)
	}

	rm.roles[role] = roleGrant{mask: mask, scope: scope}
	return nil
}

// Mask returns the action mask granted to role.
func (rm *RoleManager) Mask(role session.Role) (Mask64, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	g, ok := rm.roles[role]
	return g.mask, ok
}

// Scope returns the visibility scope granted to role; unknown roles get ScopeNone.
func (rm *RoleManager) Scope(role session.Role) Scope {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.roles[role].scope
}

// Freeze prevents further role registrations.
func (rm *RoleManager) Freeze() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.frozen = true
}

// Count returns the number of registered roles.
func (rm *RoleManager) Count() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.roles)
}
