// Package sessions tracks one registry entry per issued token: who logged
// in, from where, on what kind of device, and whether the session has
// since ended. Ending is one-way; ended rows stay behind for audit until
// a retention sweep purges them.
package sessions
