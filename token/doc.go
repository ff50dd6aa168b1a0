// Package token issues and verifies signed access/refresh token pairs and
// maintains the Redis-backed refresh revocation list used during rotation.
package token
