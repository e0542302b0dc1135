package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/kirillkom/yfetch-digest/internal/core/domain"
)

// JWTManager signs and verifies HS256 access tokens whose subject is the
// user id.
type JWTManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTManager(secret, issuer string, ttl time.Duration) (*JWTManager, error) {
	if len(secret) < 32 {
		return nil, errors.New("jwt secret must be at least 32 characters")
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &JWTManager{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

func (m *JWTManager) Issue(userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", domain.WrapError(domain.ErrAuthorization, "issue token", errors.New("user id is empty"))
	}
	now := m.now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   userID,
		Issuer:    m.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify returns the user id carried by a valid token.
func (m *JWTManager) Verify(token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", domain.WrapError(domain.ErrAuthorization, "verify token", errors.New("token is empty"))
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithTimeFunc(m.now), jwt.WithExpirationRequired())
	if err != nil {
		return "", domain.WrapError(domain.ErrAuthorization, "verify token", err)
	}
	if !parsed.Valid || strings.TrimSpace(claims.Subject) == "" {
		return "", domain.WrapError(domain.ErrAuthorization, "verify token", errors.New("invalid token claims"))
	}
	return claims.Subject, nil
}

// TokenSource mints a fresh token on every call.
type TokenSource struct {
	manager *JWTManager
}

func NewTokenSource(manager *JWTManager) *TokenSource {
	return &TokenSource{manager: manager}
}

func (s *TokenSource) Token(ctx context.Context, userID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.manager.Issue(userID)
}
