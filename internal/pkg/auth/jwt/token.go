package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt"

	"campuschat/internal/app/user"
	"campuschat/internal/pkg/randx"
)

const (
	// SessionExpiration is the default lifetime for tokens minted by GenerateToken.
	SessionExpiration = 24 * time.Hour

	// TokenIssuer identifies the issuer of the token.
	TokenIssuer = "campus-login"
)

var (
	// ErrMissingSubject is returned for tokens without a "sub" claim.
	ErrMissingSubject = errors.New("token has no subject")
)

// GenerateToken creates and signs a new HS256 token for subjectID.
// Production tokens come from the login service; this is used by development tooling and tests.
func GenerateToken(subjectID, alias, secretKey string, duration time.Duration) (string, error) {
	now := time.Now()

	payload := &Payload{
		StandardClaims: jwt.StandardClaims{
			Subject:   subjectID,
			ExpiresAt: now.Add(duration).Unix(),
			IssuedAt:  now.Unix(),
			Issuer:    TokenIssuer,
		},
		Alias: alias,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, payload)

	return token.SignedString([]byte(secretKey))
}

// ParseToken parses and validates the JWT Token string using the provided secretKey.
func ParseToken(tokenString string, secretKey string) (*Payload, error) {
	claims := &Payload{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secretKey), nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid or expired token")
	}

	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}

	return claims, nil
}

// Verifier resolves bearer tokens into subjects.
type Verifier struct {
	secret string
}

// NewVerifier returns a Verifier for HS256 tokens signed with secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

// Verify validates the token and returns the subject it identifies.
func (v *Verifier) Verify(token string) (user.Subject, error) {
	payload, err := ParseToken(token, v.secret)
	if err != nil {
		return user.Subject{}, err
	}

	return SubjectFromPayload(payload), nil
}

// SubjectFromPayload builds a Subject, deriving the anonymous alias when the token has none.
func SubjectFromPayload(p *Payload) user.Subject {
	alias := p.Alias
	if alias == "" {
		alias = randx.AnonAlias(p.Subject)
	}

	return user.Subject{ID: p.Subject, Alias: alias}
}
