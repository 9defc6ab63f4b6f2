// Package model defines the data structures used throughout the application.
package model

// User is the authenticated identity of the current session.
//
// Users are never stored in their own table. A User is built from an OAuth
// provider profile on login, cached in the session and dropped on logout.
//
// ID is namespaced by provider so identities from different providers can
// never collide: GitHub users are "github|<numeric id>", Auth0 users keep the
// "sub" claim as-is (which Auth0 already prefixes, e.g. "auth0|abc").
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
