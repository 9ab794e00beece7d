package utils

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type jwtCustomClaims struct {
	SessionID string `json:"session_id"`
	Phone     string `json:"phone"`
	jwt.RegisteredClaims
}

// GenerateToken creates a signed JWT bound to an identity session and its
// verified phone number.
func GenerateToken(secret string, sessionID uuid.UUID, phone string, ttl time.Duration) (string, error) {
	claims := &jwtCustomClaims{
		SessionID: sessionID.String(),
		Phone:     phone,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken validates the token and returns the embedded session id and
// phone number.
func ParseToken(secret, tokenString string) (uuid.UUID, string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwtCustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return uuid.Nil, "", err
	}

	if claims, ok := token.Claims.(*jwtCustomClaims); ok && token.Valid {
		id, err := uuid.Parse(claims.SessionID)
		if err != nil {
			return uuid.Nil, "", err
		}
		return id, claims.Phone, nil
	}

	return uuid.Nil, "", jwt.ErrTokenInvalidClaims
}
