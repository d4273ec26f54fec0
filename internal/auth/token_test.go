package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/apperr"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func newTestTokens(t *testing.T, now func() time.Time) *TokenService {
	t.Helper()
	s, err := NewTokenService(TokenConfig{Secret: testKey}, WithClock(now))
	require.NoError(t, err)
	return s
}

func TestIssueAndVerify(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := newTestTokens(t, func() time.Time { return now })

	tok, err := s.Issue("adm@site.com")
	require.NoError(t, err)

	sub, err := s.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "adm@site.com", sub)
}

func TestIssuedTokenExpiresAfter24Hours(t *testing.T) {
	issued := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	clock := issued
	s := newTestTokens(t, func() time.Time { return clock })

	tok, err := s.Issue("user@site.com")
	require.NoError(t, err)

	claims := &jwt.RegisteredClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(tok, claims)
	require.NoError(t, err)
	assert.Equal(t, issued.Add(24*time.Hour).Unix(), claims.ExpiresAt.Unix())
	assert.NotEmpty(t, claims.ID)

	clock = issued.Add(23 * time.Hour)
	_, err = s.Verify(tok)
	require.NoError(t, err)

	clock = issued.Add(25 * time.Hour)
	_, err = s.Verify(tok)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.Equal(t, apperr.KindTokenExpired, apperr.KindOf(err))
}

func TestVerifyMalformed(t *testing.T) {
	s := newTestTokens(t, time.Now)

	for _, tok := range []string{"", "garbage", "a.b.c"} {
		_, err := s.Verify(tok)
		require.Error(t, err, tok)
		assert.ErrorIs(t, err, ErrTokenMalformed, tok)
		assert.Equal(t, apperr.KindTokenInvalid, apperr.KindOf(err))
	}
}

func TestVerifySignatureInvalid(t *testing.T) {
	s := newTestTokens(t, time.Now)
	other, err := NewTokenService(TokenConfig{Secret: []byte(strings.Repeat("z", 32))})
	require.NoError(t, err)

	tok, err := other.Issue("adm@site.com")
	require.NoError(t, err)

	_, err = s.Verify(tok)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTokenSignatureInvalid)
}

func TestVerifyRejectsOtherAlgorithms(t *testing.T) {
	s := newTestTokens(t, time.Now)
	claims := jwt.RegisteredClaims{
		Subject:   "adm@site.com",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(testKey)
	require.NoError(t, err)

	_, err = s.Verify(tok)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTokenSignatureInvalid)
}

func TestVerifyRequiresSubject(t *testing.T) {
	s := newTestTokens(t, time.Now)
	claims := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testKey)
	require.NoError(t, err)

	_, err = s.Verify(tok)
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestRotatingKeyInvalidatesTokens(t *testing.T) {
	s := newTestTokens(t, time.Now)
	tok, err := s.Issue("adm@site.com")
	require.NoError(t, err)

	rotated, err := NewTokenService(TokenConfig{Secret: []byte(strings.Repeat("r", 32))})
	require.NoError(t, err)
	_, err = rotated.Verify(tok)
	assert.ErrorIs(t, err, ErrTokenSignatureInvalid)
}

func TestTokenConfigFromEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := TokenConfigFromEnv(false)
	require.Error(t, err)

	cfg, err := TokenConfigFromEnv(true)
	require.NoError(t, err)
	assert.Len(t, cfg.Secret, 32)
	assert.Equal(t, DefaultTokenTTL, cfg.TTL)

	t.Setenv("JWT_SECRET", "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY=")
	t.Setenv("JWT_TTL", "1h")
	cfg, err = TokenConfigFromEnv(false)
	require.NoError(t, err)
	assert.Equal(t, testKey, cfg.Secret)
	assert.Equal(t, time.Hour, cfg.TTL)

	t.Setenv("JWT_SECRET", "c2hvcnQ=")
	_, err = TokenConfigFromEnv(false)
	require.Error(t, err)
}
