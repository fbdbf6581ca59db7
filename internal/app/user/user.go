/*
Package user contains core data structures related to participant identity.

A Subject is the authenticated identity resolved from a bearer token. One subject
may hold several live channels (tabs, devices) at the same time.
*/
package user

// Subject represents the identity of a chat participant.
// Fields use JSON tags for serialization in websocket events and REST responses.
type Subject struct {

	// ID is the opaque subject identifier issued by the login service.
	ID string `json:"id"`

	// Alias is the anonymous display name shown to other participants.
	Alias string `json:"alias"`
}

// IsZero reports whether s carries no identity.
func (s Subject) IsZero() bool {
	return s.ID == ""
}
