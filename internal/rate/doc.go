// Package rate holds the Redis fixed-window counters that throttle login and registration.
//
// A window starts at the first counted hit (INCR, then EXPIRE when the counter is 1) and
// lasts Window. Keys:
//   - estate:rl:login:acct:<email>
//   - estate:rl:login:ip:<ip>
//   - estate:rl:register:ip:<ip>
//
// What this package must NOT do:
//   - decide what a failed attempt is; callers record failures explicitly
//   - be imported outside this module
package rate
