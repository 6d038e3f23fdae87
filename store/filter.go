package store

import (
	"github.com/uptrace/bun"

	"github.com/MrEthical07/estateAuth/permission"
)

// filterColumns lists the record fields a permission filter may constrain.
var filterColumns = map[string]struct{}{
	permission.FieldOwner:  {},
	permission.FieldStatus: {},
}

type whereQuery[Q any] interface {
	Where(query string, args ...interface{}) Q
}

// applyFilter appends f to q as WHERE clauses. Deny filters and constraints on unknown
// columns compile to a predicate that matches nothing.
func applyFilter[Q whereQuery[Q]](q Q, f permission.Filter) Q {
	if f.Deny {
		return q.Where("1 = 0")
	}
	for _, c := range f.Constraints {
		if _, ok := filterColumns[c.Field]; !ok {
			return q.Where("1 = 0")
		}
		q = q.Where("? = ?", bun.Ident(c.Field), c.Value)
	}
	return q
}
