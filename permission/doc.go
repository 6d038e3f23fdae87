// Package permission turns a caller's role and intended action into a query filter.
//
// # Model
//
// A [Registry] assigns each [Action] a bit in a [Mask64]; a [RoleManager] grants each role a
// mask and a [Scope]. [Policy.BuildFilter] combines them into a [Filter]: deny when the
// role lacks the action, unrestricted for ScopeAll, and owner_id == requester for
// ScopeOwned.
//
// # Architecture boundaries
//
// This package is pure computation. Filters are consumed by the store package, which turns
// them into SQL, and by [Filter.Matches], which applies the same equality test in memory.
//
// # What this package must NOT do
//
//   - Access the database, Redis or the network.
//   - Import estateAuth or store.
//   - Change the role table after a Policy is built.
package permission
