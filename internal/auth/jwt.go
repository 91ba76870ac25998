package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload carried by every bearer token this service mints:
// a coder/admin identity and, for guest tokens, the single job they may
// code.
type Claims struct {
	UserID        int64  `json:"uid"`
	Name          string `json:"name"`
	IsAdmin       bool   `json:"admin,omitempty"`
	RestrictedJob *int64 `json:"restrictedJob,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies bearer tokens with an HMAC secret.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl}
}

// Mint issues a signed bearer token for the given identity.
func (t *TokenIssuer) Mint(userID int64, name string, isAdmin bool, restrictedJob *int64) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:        userID,
		Name:          name,
		IsAdmin:       isAdmin,
		RestrictedJob: restrictedJob,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify parses and validates a bearer token, returning its claims.
func (t *TokenIssuer) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
