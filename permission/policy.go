package permission

import (
	"github.com/MrEthical07/estateAuth/session"
)

// Policy is the fixed role to visibility table. It is immutable once built and safe for
// concurrent use.
type Policy struct {
	registry *Registry
	roles    *RoleManager
}

// NewPolicy wraps a frozen registry and role manager.
func NewPolicy(registry *Registry, roles *RoleManager) *Policy {
	registry.Freeze()
	roles.Freeze()
	return &Policy{registry: registry, roles: roles}
}

// DefaultPolicy returns the listing policy: admins and superadmins act on every record,
// agents and users act only on records they own, and only admins moderate.
func DefaultPolicy() *Policy {
	registry := NewRegistry()
	for _, a := range Actions() {
		if _, err := registry.Register(a); err != nil {
			panic(err)
		}
	}

	owned := []Action{ActionRead, ActionCreate, ActionUpdate, ActionDelete}
	roles := NewRoleManager(registry)
	must(roles.RegisterRole(session.RoleSuperAdmin, ScopeAll, Actions()...))
	must(roles.RegisterRole(session.RoleAdmin, ScopeAll, Actions()...))
	must(roles.RegisterRole(session.RoleAgent, ScopeOwned, owned...))
	must(roles.RegisterRole(session.RoleUser, ScopeOwned, owned...))

	return NewPolicy(registry, roles)
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// Allows reports whether role may attempt action at all.
func (p *Policy) Allows(role session.Role, action Action) bool {
	bit, ok := p.registry.Bit(action)
	if !ok {
		return false
	}
	mask, ok := p.roles.Mask(role)
	if !ok {
		return false
	}
	return mask.Has(bit)
}

// BuildFilter derives the query restriction for requesterID acting as role. The result
// depends only on its arguments.
func (p *Policy) BuildFilter(role session.Role, action Action, requesterID string) Filter {
	if !p.Allows(role, action) {
		return DenyAll()
	}

	switch p.roles.Scope(role) {
	case ScopeAll:
		return Filter{}
	case ScopeOwned:
		if requesterID == "" {
			return DenyAll()
		}
		return Filter{Constraints: []Constraint{{Field: FieldOwner, Value: requesterID}}}
	default:
		return DenyAll()
	}
}

var defaultPolicy = DefaultPolicy()

// BuildFilter applies DefaultPolicy.
func BuildFilter(role session.Role, action Action, requesterID string) Filter {
	return defaultPolicy.BuildFilter(role, action, requesterID)
}

// PublicFilter restricts anonymous listing reads to published records.
func PublicFilter() Filter {
	return Filter{Constraints: []Constraint{{Field: FieldStatus, Value: StatusPublished}}}
}
