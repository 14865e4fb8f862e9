package usecase

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"inbox-triage/internal/auth/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrMissingSecret = errors.New("APPROVAL_SIGNING_SECRET is required")
	ErrInvalidToken  = errors.New("invalid token")
)

// DefaultTTL is used when a token is issued without an explicit lifetime.
const DefaultTTL = 7 * 24 * time.Hour

// Tokens issues and validates HS256 approval tokens.
type Tokens struct {
	secret []byte
	now    func() time.Time
}

func NewTokens(secret string) (*Tokens, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingSecret
	}
	return &Tokens{secret: []byte(secret), now: time.Now}, nil
}

// Issue signs a token for approver valid for ttl.
func (t *Tokens) Issue(approver string, ttl time.Duration) (*domain.IssuedToken, error) {
	approver = strings.TrimSpace(approver)
	if approver == "" {
		return nil, errors.New("approver is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := t.now()
	expiresAt := now.Add(ttl)
	tokenID := uuid.New().String()
	claims := jwt.MapClaims{
		"sub": approver,
		"jti": tokenID,
		"exp": expiresAt.Unix(),
		"iat": now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &domain.IssuedToken{
		Token:     signed,
		Subject:   approver,
		TokenID:   tokenID,
		ExpiresAt: time.Unix(expiresAt.Unix(), 0).UTC(),
	}, nil
}

// Validate checks the signature and expiry of tokenString.
func (t *Tokens) Validate(tokenString string) (*domain.Approver, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	subject, err := claims.GetSubject()
	if err != nil || strings.TrimSpace(subject) == "" {
		return nil, ErrInvalidToken
	}

	approver := &domain.Approver{Subject: subject}
	if jti, ok := claims["jti"].(string); ok {
		approver.TokenID = jti
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		approver.IssuedAt = iat.UTC()
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		approver.ExpiresAt = exp.UTC()
	}
	return approver, nil
}
