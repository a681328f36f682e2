package services

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	audienceSession = "session"
	audienceRecover = "recover"
)

// TokenClaims is the payload shared by session and recovery tokens.
type TokenClaims struct {
	UserID int64 `json:"id"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 tokens for one audience.
type Tokens struct {
	secret   []byte
	ttl      time.Duration
	audience string
	now      func() time.Time
}

// NewSessionTokens signs login sessions with the primary key.
func NewSessionTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, audience: audienceSession, now: time.Now}
}

// NewRecoveryTokens signs password-recovery grants with the recovery key.
func NewRecoveryTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, audience: audienceRecover, now: time.Now}
}

// Issue signs a token for userID. Every token carries a unique jti.
func (t *Tokens) Issue(userID int64) (string, error) {
	now := t.now()
	claims := TokenClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(userID, 10),
			Audience:  jwt.ClaimStrings{t.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Parse verifies signature, audience and expiry and returns the claims.
func (t *Tokens) Parse(tokenString string) (TokenClaims, error) {
	claims := TokenClaims{}
	token, err := jwt.ParseWithClaims(strings.TrimSpace(tokenString), &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return t.secret, nil
	},
		jwt.WithAudience(t.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return TokenClaims{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return TokenClaims{}, ErrTokenInvalid
	}
	if claims.UserID < 1 {
		id, err := strconv.ParseInt(claims.Subject, 10, 64)
		if err != nil || id < 1 {
			return TokenClaims{}, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
		}
		claims.UserID = id
	}
	return claims, nil
}

// TTL is the lifetime of issued tokens.
func (t *Tokens) TTL() time.Duration {
	return t.ttl
}
