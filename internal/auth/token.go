package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/segmentio/ksuid"

	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/apperr"
)

// DefaultTokenTTL is how long an issued token stays valid.
const DefaultTokenTTL = 24 * time.Hour

// verification failure reasons
var (
	ErrTokenExpired          = errors.New("token expired")
	ErrTokenMalformed        = errors.New("token malformed")
	ErrTokenSignatureInvalid = errors.New("token signature invalid")
)

// TokenConfig holds the process-wide signing configuration.
type TokenConfig struct {
	Secret []byte
	TTL    time.Duration
	Issuer string
}

// TokenConfigFromEnv reads JWT_SECRET (base64), JWT_TTL and JWT_ISSUER.
// When JWT_SECRET is empty and dev is set an ephemeral key is generated.
func TokenConfigFromEnv(dev bool) (TokenConfig, error) {
	cfg := TokenConfig{TTL: DefaultTokenTTL, Issuer: os.Getenv("JWT_ISSUER")}
	if v := os.Getenv("JWT_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("parse JWT_TTL: %w", err)
		}
		cfg.TTL = ttl
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		if !dev {
			return cfg, errors.New("JWT_SECRET is required")
		}
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return cfg, fmt.Errorf("generate signing key: %w", err)
		}
		cfg.Secret = key
		return cfg, nil
	}
	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return cfg, fmt.Errorf("decode JWT_SECRET: %w", err)
	}
	if len(key) < 32 {
		return cfg, errors.New("JWT_SECRET must decode to at least 32 bytes")
	}
	cfg.Secret = key
	return cfg, nil
}

// TokenService issues and verifies signed, time-limited identity tokens.
type TokenService struct {
	key    []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// TokenOption customizes a TokenService.
type TokenOption func(*TokenService)

// WithClock overrides the time source used for issuing and verifying.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

// NewTokenService builds a service signing with HS256.
func NewTokenService(cfg TokenConfig, opts ...TokenOption) (*TokenService, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("signing key is empty")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	s := &TokenService{key: cfg.Secret, ttl: ttl, issuer: cfg.Issuer, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue creates a token for the given subject email.
func (s *TokenService) Issue(subjectEmail string) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		ID:        ksuid.New().String(),
		Subject:   subjectEmail,
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the token and returns its subject. Failures are *apperr.Error
// of kind TokenExpired or TokenInvalid wrapping one of ErrTokenExpired,
// ErrTokenMalformed or ErrTokenSignatureInvalid.
func (s *TokenService) Verify(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", classify(err)
	}
	if claims.Subject == "" {
		return "", apperr.Wrap(apperr.KindTokenInvalid, ErrTokenMalformed, "token has no subject")
	}
	return claims.Subject, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return apperr.Wrap(apperr.KindTokenExpired, ErrTokenExpired, "JWT expired")
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return apperr.Wrap(apperr.KindTokenInvalid, ErrTokenSignatureInvalid, "JWT signature does not match")
	default:
		return apperr.Wrap(apperr.KindTokenInvalid, ErrTokenMalformed, "JWT is invalid")
	}
}
