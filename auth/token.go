package auth

import (
	"comms-lab/domain"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "comms-lab"

// CustomClaims defines the data stored inside the JWT.
type CustomClaims struct {
	UserID uint64   `json:"user_id"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// Actor turns the verified claims into the identity used by the services.
func (c CustomClaims) Actor() domain.Actor {
	return domain.Actor{ID: domain.UserID(c.UserID), Roles: c.Roles}
}

// TokenManager signs and verifies HS256 session tokens with an explicit secret.
type TokenManager struct {
	secret   []byte
	duration time.Duration
	now      func() time.Time
}

func NewTokenManager(secret string, duration time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), duration: duration, now: time.Now}
}

// Generate creates a signed JWT for a user.
func (m *TokenManager) Generate(userID domain.UserID, roles []string) (string, error) {
	now := m.now()
	claims := &CustomClaims{
		UserID: uint64(userID),
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Validate parses the token, checks its signature, issuer and expiration.
func (m *TokenManager) Validate(tokenString string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*CustomClaims); ok && token.Valid && claims.UserID != 0 {
		return claims, nil
	}
	return nil, jwt.ErrTokenInvalidClaims
}
