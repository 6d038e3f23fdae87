// Package estateAuth is the session and authorization core of a property listing service.
//
// An [Engine] is assembled with [New] and [Builder.Build]. It reads the caller's session from
// a cookie, derives a [permission.Filter] from the caller's role, and hands that filter to the
// store so every listing query is narrowed before it reaches the database. The agent directory
// is served through a bounded cache whose invalidations fan out over Redis.
//
// # Flow
//
//	request -> session.Reader -> (role, user id) -> permission.Policy -> Filter -> store
//
// Sessions are carried entirely in the cookie; nothing is stored server-side. A cookie that is
// absent, corrupted or expired reads as anonymous, and anonymous callers see only published
// listings.
//
// # Signed cookies
//
// Without Config.Session.SigningKey the cookie is base64url JSON and can be edited by the
// client. Production deployments set a key of at least 32 bytes, which switches to HS256 JWT
// cookies.
//
// # What this package must NOT do
//
//   - Store sessions in Redis or the database.
//   - Render HTML.
//   - Trust a role that did not come out of the configured codec.
package estateAuth
