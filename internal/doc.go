// Package internal groups packages private to estateAuth.
//
// # Sub-packages
//
//   - rate: Redis fixed-window counters for login and registration throttling
//   - server: chi router and JSON handlers for the estated daemon
package internal
