package service

import (
	"fmt"

	"marketplace-ledger/internal/core/ports"

	"github.com/golang-jwt/jwt/v5"
)

// ActorTokenServiceImpl implements ports.ActorTokenService for HS256 tokens
// issued by the marketplace identity service with a shared secret.
type ActorTokenServiceImpl struct {
	secret []byte
}

// NewActorTokenService creates a new ActorTokenServiceImpl.
func NewActorTokenService(secret string) *ActorTokenServiceImpl {
	return &ActorTokenServiceImpl{secret: []byte(secret)}
}

// Verify parses and validates a bearer token, returning the actor claims.
func (s *ActorTokenServiceImpl) Verify(tokenString string) (*ports.ActorClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return nil, fmt.Errorf("missing subject claim")
	}
	role, ok := claims["role"].(string)
	if !ok || role == "" {
		return nil, fmt.Errorf("missing role claim")
	}

	return &ports.ActorClaims{ActorID: sub, Role: role}, nil
}
