package jwt

import "github.com/golang-jwt/jwt"

// Payload defines the JWT claims accepted by the chat gateway.
// Tokens are minted by the campus login service; this server only verifies them.
type Payload struct {
	// StandardClaims carries exp/iat/iss and, in Subject ("sub"), the opaque subject identifier.
	jwt.StandardClaims

	// Alias is an optional display alias. When empty the gateway derives an anonymous one.
	Alias string `json:"alias,omitempty"`
}

// SubjectID returns the subject identifier carried in the "sub" claim.
func (p *Payload) SubjectID() string {
	return p.Subject
}
