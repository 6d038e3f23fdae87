// Package session provides the cookie-carried session record, the codecs that serialize it
// into a cookie value, and the reader/writer pair used at the HTTP boundary.
//
// # Encoding
//
// [PlainCodec] stores the record as base64url JSON with the fields userId, role, sessionId
// and createdAt. [SignedCodec] carries the same fields as an HS256 JWT. Both reject unknown
// roles and missing fields with [ErrInvalidSession] and unparseable values with
// [ErrMalformedSession].
//
// # Reading
//
// [Reader.Read] fails open: an absent, malformed or invalid cookie yields no session rather
// than an error. Route handlers decide whether anonymous access is allowed.
//
// # What this package must NOT do
//
//   - Persist sessions server-side.
//   - Import estateAuth, permission or store.
//   - Make authorization decisions.
package session
