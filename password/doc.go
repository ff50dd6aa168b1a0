// Package password implements credential hashing, validation policy, and
// password generation.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// The [Hasher] supports transparent parameter upgrades: if the stored hash was
// produced with weaker parameters, [Hasher.NeedsUpgrade] returns true so the
// caller can re-hash on the next successful login.
//
// # Policy
//
// [Policy] is an ordered pipeline of [Rule] checks. Validation is
// fail-fast: the first vetoing rule wins and its [Violation] is returned.
// The similarity rule compares the candidate against the caller-supplied
// [Profile]; the other rules are purely structural.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords — callers supply plaintext and receive hashes.
//   - Import any other authcore package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
