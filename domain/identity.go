// Package domain contains core concepts of the chat system.
// This file defines the authenticated principal bound to a connection.
package domain

// Identity is issued by the credential verifier at login and attached to
// a connection after successful admission. It is never mutated by the
// messaging core.
type Identity struct {
	ID       int64
	Username string
}
