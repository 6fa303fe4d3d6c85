package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid or expired access token")

// Identity is the verified subject of a request.
type Identity struct {
	UserID string
	Role   Role
}

type claims struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier validates bearer tokens issued by the auth service.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

func (v *Verifier) Verify(token string) (Identity, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}

	role, err := ParseRole(c.Role)
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	if c.UserID == "" {
		return Identity{}, ErrInvalidToken
	}

	return Identity{UserID: c.UserID, Role: role}, nil
}

// Sign issues a token for the identity. Token issuance belongs to the auth
// service; this exists for tests and local tooling.
func (v *Verifier) Sign(id Identity) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		UserID: id.UserID,
		Role:   string(id.Role),
	})
	return token.SignedString(v.secret)
}
