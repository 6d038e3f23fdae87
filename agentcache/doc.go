// Package agentcache is the bounded, expiring read cache in front of the agent directory.
//
// Entries expire after a fixed TTL and the least recently used entry is evicted once the
// cache is full. Invalidations run registered hooks and, when a Redis client is configured,
// fan out to every other process sharing the channel so that profile edits are visible
// cluster-wide without waiting for expiry.
//
// What this package must NOT do:
//   - decide who may read or edit a profile
//   - hand out pointers into its own storage
package agentcache
