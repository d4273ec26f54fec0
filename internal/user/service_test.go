package user

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/auth"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/cache"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/mutation"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/store"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-task-tracker/pkg/database"
	"github.com/ovaphlow/pitchfork/service-task-tracker/pkg/utilities"
)

func newTestService(t *testing.T) (*Service, *cache.LRU) {
	t.Helper()
	ctx := context.Background()
	log := zap.NewNop().Sugar()
	db, err := database.Connect(database.Config{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	st := store.New(db)
	require.NoError(t, st.EnsureSchema(ctx))
	lru, err := cache.NewLRU(32)
	require.NoError(t, err)
	ids, err := utilities.NewIDGenerator(2)
	require.NoError(t, err)
	tokens, err := auth.NewTokenService(auth.TokenConfig{Secret: []byte("0123456789abcdef0123456789abcdef")})
	require.NoError(t, err)
	orch := mutation.New(st, lru, ids, log)
	return NewService(st, cache.NewReader(lru, log), orch, tokens, auth.BcryptHasher{Cost: bcrypt.MinCost}, ids, log), lru
}

func profile(email string) Profile {
	return Profile{FirstName: "First", LastName: "Last", Email: email, Password: "secret"}
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*Profile)
	}{
		{"short first name", func(p *Profile) { p.FirstName = "Al" }},
		{"long last name", func(p *Profile) { p.LastName = "abcdefghijklmnopqrstu" }},
		{"no at sign", func(p *Profile) { p.Email = "site.com" }},
		{"short password", func(p *Profile) { p.Password = "12" }},
		{"bad role", func(p *Profile) { p.Role = "ROOT" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := profile("a@site.com")
			tt.mutate(&p)
			_, err := svc.Register(ctx, p)
			assert.True(t, errors.Is(err, apperr.ErrInvalid), err)
		})
	}

	id, err := svc.Register(ctx, profile("  A@Site.com "))
	require.NoError(t, err)
	v, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "a@site.com", v.Email)
	assert.Equal(t, entity.RoleUser, v.Role)
}

func TestFindIdentityReadsThroughCache(t *testing.T) {
	svc, lru := newTestService(t)
	ctx := context.Background()
	id, err := svc.Register(ctx, profile("a@site.com"))
	require.NoError(t, err)

	ident, err := svc.FindIdentityByEmail(ctx, "a@site.com")
	require.NoError(t, err)
	assert.Equal(t, id, ident.ID)
	assert.Equal(t, 1, lru.Len(cache.KindUserByEmail))

	_, err = svc.FindIdentityByEmail(ctx, "missing@site.com")
	assert.True(t, errors.Is(err, apperr.ErrUnknownEntity))
	assert.Equal(t, 1, lru.Len(cache.KindUserByEmail))

	// a profile update empties the by-email cache
	p := &auth.Principal{UserID: id, Role: entity.RoleUser}
	_, err = svc.Update(ctx, p, profile("b@site.com"))
	require.NoError(t, err)
	assert.Equal(t, 0, lru.Len(cache.KindUserByEmail))
	_, err = svc.FindIdentityByEmail(ctx, "a@site.com")
	assert.True(t, errors.Is(err, apperr.ErrUnknownEntity))
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id, err := svc.Register(ctx, profile("a@site.com"))
	require.NoError(t, err)

	res, err := svc.Login(ctx, "A@site.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, id, res.UserID)
	sub, err := svc.tokens.Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, "a@site.com", sub)

	_, err = svc.Login(ctx, "a@site.com", "nope")
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func TestGetPopulatesRelations(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	id, err := svc.Register(ctx, profile("a@site.com"))
	require.NoError(t, err)
	p := &auth.Principal{UserID: id, Role: entity.RoleUser}
	created, err := svc.orch.CreateTask(ctx, p, mutation.TaskInput{
		Title: "Mine", Description: "Authored and executed", Status: "ON_HOLD", Priority: "LOW", ExecutorID: &id,
	})
	require.NoError(t, err)

	v, err := svc.Get(ctx, id)
	require.NoError(t, err)
	authored, ok := v.AsAuthor.Items()
	require.True(t, ok)
	require.Len(t, authored, 1)
	assert.Equal(t, created.Value.ID, authored[0].ID)
	executed, ok := v.AsExecutor.Items()
	require.True(t, ok)
	assert.Len(t, executed, 1)
	comments, ok := v.Comments.Items()
	assert.True(t, ok)
	assert.Empty(t, comments)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	_, ok = list[0].AsAuthor.Items()
	assert.False(t, ok)
}
