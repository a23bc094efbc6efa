package auth

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid access token")
	ErrTokenExpired = errors.New("access token expired")
)

// Claims is the subset of a GoTrue access token the storefront reads.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() string { return c.Subject }

// Verifier checks GoTrue access tokens signed with the project's JWT secret.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Enabled is false when no secret is configured; callers then trust GoTrue's answers as-is.
func (v *Verifier) Enabled() bool {
	return v != nil && len(v.secret) > 0
}

func (v *Verifier) Parse(tokenStr string) (*Claims, error) {
	tokenStr = strings.TrimSpace(strings.TrimPrefix(tokenStr, "Bearer "))
	tok, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Join(ErrInvalidToken, err)
	}
	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
