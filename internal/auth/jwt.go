package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Claims struct {
	PlayerID string `json:"pid,omitempty"`
	IsAdmin  bool   `json:"admin"`
	jwt.RegisteredClaims
}

var ErrInvalidToken = errors.New("invalid token")

// GenerateToken signs a caller token. playerID is nil for admin tokens.
func GenerateToken(secret []byte, playerID *uuid.UUID, isAdmin bool, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		IsAdmin: isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   "admin",
		},
	}
	if playerID != nil {
		claims.PlayerID = playerID.String()
		claims.Subject = playerID.String()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func ParseToken(secret []byte, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// Caller converts verified claims into a Caller.
func (c *Claims) Caller() (Caller, error) {
	caller := Caller{IsAdmin: c.IsAdmin}
	if c.PlayerID != "" {
		id, err := uuid.Parse(c.PlayerID)
		if err != nil {
			return Caller{}, ErrInvalidToken
		}
		caller.PlayerID = &id
	}
	return caller, nil
}
