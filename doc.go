// Package authcore provides the authentication and authorization core of
// a multi-tenant business backend: credential verification with failed-
// login lockout, JWT access/refresh token pairs with rotate-and-revoke
// refresh handling, a device-classified session registry, role-based
// access control with expiring assignments, and Django-compatible
// password reset tokens.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder],
// [Config], the [UserStore] and [LoginAttemptStore] contracts, and value
// types (LoginResult, Identity, AuditEvent). Domain mechanics live in the
// sub-packages — token issuance in token, session rows in sessions, role
// resolution in rbac, hashing and policy in password, reset tokens in
// reset — and the engine wires them together. Persistence is pluggable:
// store/gormstore implements every store contract on PostgreSQL, and the
// sessions and rbac packages ship in-memory stores for tests and
// single-node use.
//
// # What this package must NOT do
//
//   - Send email or render anything user-facing; reset flows hand back
//     tokens and the caller delivers them.
//   - Expose Redis clients or storage details in its public API.
//   - Decide HTTP semantics; callers map sentinel errors to their own
//     status codes.
package authcore
