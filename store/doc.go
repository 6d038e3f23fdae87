// Package store persists users, agents and listings with Bun over SQLite and applies
// permission filters as SQL WHERE clauses.
//
// Every read or mutation of a listing takes a [permission.Filter]. A deny filter compiles to
// a predicate that matches nothing, so a query built from a denied filter returns no rows
// and mutates nothing; callers see [ErrNotFound].
package store
