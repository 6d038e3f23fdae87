// Package password hashes and verifies account passwords with Argon2id.
//
// Hashes are PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Hasher.NeedsRehash] reports hashes produced with weaker parameters than the current
// configuration so callers can re-hash after a successful login.
//
// What this package must NOT do:
//   - store passwords or hashes
//   - log plaintext or parameters
//   - import other estateAuth packages
package password
