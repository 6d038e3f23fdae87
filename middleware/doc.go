// Package middleware adapts estateAuth sessions to net/http handler chains.
//
// # Chain
//
//   - [ClientIP] records the caller address used for throttling and audit events.
//   - [LoadSession] decodes the session cookie and stores it in the request context.
//   - [RequireSession] and [RequireRole] reject requests that lack a session or role.
//
// LoadSession never rejects a request. A missing or unreadable cookie is anonymous access;
// handlers and the Engine decide what anonymous callers may see.
//
// # What this package must NOT do
//
//   - Decode cookies directly (delegates to the Engine).
//   - Make ownership decisions; those belong to permission filters.
package middleware
