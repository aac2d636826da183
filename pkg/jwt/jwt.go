package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrWrongTokenType = errors.New("wrong token type")
)

// Claims identify the user and the login session a token belongs to. Access
// and refresh tokens issued by one login share a SessionID, so ending the
// session invalidates both.
type Claims struct {
	UserID    string    `json:"user_id"`
	SessionID string    `json:"sid"`
	Type      TokenType `json:"typ"`
	jwt.RegisteredClaims
}

func GenerateToken(userID, sessionID string, expiration time.Duration, secret string) (string, error) {
	return generate(userID, sessionID, AccessToken, expiration, secret)
}

func GenerateRefreshToken(userID, sessionID string, expiration time.Duration, secret string) (string, error) {
	return generate(userID, sessionID, RefreshToken, expiration, secret)
}

func generate(userID, sessionID string, typ TokenType, expiration time.Duration, secret string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:    userID,
		SessionID: sessionID,
		Type:      typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiration)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken checks signature and time claims of an access token.
func ValidateToken(tokenString, secret string) (*Claims, error) {
	return validate(tokenString, secret, AccessToken)
}

func ValidateRefreshToken(tokenString, secret string) (*Claims, error) {
	return validate(tokenString, secret, RefreshToken)
}

func validate(tokenString, secret string, want TokenType) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	if claims.Type != want {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}
