package permission

import (
	"strconv"
	"strings"
)

// Record fields the policy constrains.
const (
	FieldOwner  = "owner_id"
	FieldStatus = "status"
)

// StatusPublished is the listing status visible to anonymous callers.
const StatusPublished = "published"

// Constraint is an equality restriction on one record field.
type Constraint struct {
	Field string
	Value string
}

// Filter is the query fragment restricting which records a caller may read or mutate.
// The zero value is unrestricted.
type Filter struct {
	Deny        bool
	Constraints []Constraint
}

// DenyAll returns a filter that matches nothing.
func DenyAll() Filter {
	return Filter{Deny: true}
}

// Unrestricted reports whether the filter imposes no restriction at all.
func (f Filter) Unrestricted() bool {
	return !f.Deny && len(f.Constraints) == 0
}

// Value returns the required value for field, if constrained.
func (f Filter) Value(field string) (string, bool) {
	for _, c := range f.Constraints {
		if c.Field == field {
			return c.Value, true
		}
	}
	return "", false
}

// Equal reports whether two filters are identical.
func (f Filter) Equal(other Filter) bool {
	if f.Deny != other.Deny || len(f.Constraints) != len(other.Constraints) {
		return false
	}
	for i := range f.Constraints {
		if f.Constraints[i] != other.Constraints[i] {
			return false
		}
	}
	return true
}

// Expression renders the constraints for logs and audit metadata. Unrestricted and deny
// filters render as the empty string.
func (f Filter) Expression() string {
	if f.Deny || len(f.Constraints) == 0 {
		return ""
	}
	parts := make([]string, 0, len(f.Constraints))
	for _, c := range f.Constraints {
		parts = append(parts, c.Field+" == "+strconv.Quote(c.Value))
	}
	return strings.Join(parts, " and ")
}

// Matches reports whether a record's field map satisfies every constraint. Values compare
// as exact strings, the same comparison the store applies in SQL; a missing or non-string
// field never matches.
func (f Filter) Matches(record map[string]any) bool {
	if f.Deny {
		return false
	}
	for _, c := range f.Constraints {
		v, ok := record[c.Field].(string)
		if !ok || v != c.Value {
			return false
		}
	}
	return true
}

func (f Filter) String() string {
	switch {
	case f.Deny:
		return "deny"
	case len(f.Constraints) == 0:
		return "unrestricted"
	default:
		return f.Expression()
	}
}
