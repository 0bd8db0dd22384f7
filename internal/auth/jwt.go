package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token is a signed session token.
type Token struct {
	Value     string
	ID        string
	ExpiresAt time.Time
}

// Claims represents JWT payload.
type Claims struct {
	Subject string `json:"sub"`
	Role    Role   `json:"role"`
	Email   string `json:"email"`
	jwt.RegisteredClaims
}

// Session returns the session the claims describe.
func (c Claims) Session() Session {
	return Session{UserID: c.Subject, Email: c.Email, Role: c.Role, TokenID: c.ID}
}

// Issue signs a session token valid for ttl.
func Issue(s Session, issuer, key string, ttl time.Duration) (Token, error) {
	now := time.Now()
	exp := now.Add(ttl)
	id := uuid.NewString()

	claims := Claims{
		Subject: s.UserID,
		Role:    s.Role,
		Email:   s.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Issuer:    issuer,
			Subject:   s.UserID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		return Token{}, err
	}
	return Token{Value: signed, ID: id, ExpiresAt: exp}, nil
}

// Parse validates a token and returns claims.
func Parse(tokenStr, key, issuer string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	})
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if issuer != "" && claims.Issuer != issuer {
		return Claims{}, errors.New("issuer mismatch")
	}
	if !claims.Role.Valid() {
		return Claims{}, errors.New("unknown role")
	}
	return *claims, nil
}
