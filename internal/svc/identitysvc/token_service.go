package identitysvc

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mkrupp/store/internal/domain"
)

// TokenService issues and validates session tokens bound to a user id.
type TokenService interface {
	// Issue creates a signed token for userID that expires after the configured TTL.
	Issue(userID uuid.UUID) (string, error)
	// Validate checks signature and expiry of token and returns the embedded user id.
	// Every rejection matches domain.ErrInvalidToken.
	Validate(token string) (uuid.UUID, error)
}

// JWTTokenService implements TokenService with HS256 signed JWTs.
type JWTTokenService struct {
	secret SigningSecret
	ttl    time.Duration
	now    func() time.Time
}

var _ TokenService = (*JWTTokenService)(nil)

// TokenServiceOption configures a JWTTokenService.
type TokenServiceOption func(*JWTTokenService)

// WithClock replaces the time source used for issuing and validating tokens.
func WithClock(now func() time.Time) TokenServiceOption {
	return func(s *JWTTokenService) {
		s.now = now
	}
}

// NewJWTTokenService creates a token service signing with secret. Tokens expire ttl after issue.
func NewJWTTokenService(secret SigningSecret, ttl time.Duration, opts ...TokenServiceOption) *JWTTokenService {
	svc := &JWTTokenService{
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc
}

// Issue implements TokenService.
func (s *JWTTokenService) Issue(userID uuid.UUID) (string, error) {
	now := s.now()

	//nolint:exhaustruct
	claims := domain.TokenClaims{
		UserID: userID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret.bytes())
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return token, nil
}

// Validate implements TokenService. A token is valid strictly before its expiry instant.
func (s *JWTTokenService) Validate(token string) (uuid.UUID, error) {
	var claims domain.TokenClaims

	parsed, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) {
			return s.secret.bytes(), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return uuid.Nil, errors.Join(domain.ErrInvalidToken, fmt.Errorf("parse token: %w", err))
	} else if !parsed.Valid {
		return uuid.Nil, domain.ErrInvalidToken
	}

	// expired from the exp instant on, independent of the parser's leeway rules
	if !s.now().Before(claims.ExpiresAt.Time) {
		return uuid.Nil, errors.Join(domain.ErrInvalidToken, jwt.ErrTokenExpired)
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, errors.Join(domain.ErrInvalidToken, fmt.Errorf("parse user id: %w", err))
	}

	return userID, nil
}
