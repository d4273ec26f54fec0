package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/user/entity"
)

const bearerPrefix = "Bearer "

// IdentityStore looks up accounts by email. A missing account is reported as
// an apperr.ErrUnknownEntity error.
type IdentityStore interface {
	FindIdentityByEmail(ctx context.Context, email string) (*entity.Identity, error)
}

// Resolver turns the Authorization header of each request into a Principal.
type Resolver struct {
	tokens *TokenService
	users  IdentityStore
	logger *zap.SugaredLogger
}

func NewResolver(tokens *TokenService, users IdentityStore, logger *zap.SugaredLogger) *Resolver {
	return &Resolver{tokens: tokens, users: users, logger: logger}
}

// Resolve returns the principal for an Authorization header value. A nil
// principal with a nil error means anonymous. tokenErr carries the
// verification failure, if any; err is only set for identity store failures.
func (r *Resolver) Resolve(ctx context.Context, header string) (p *Principal, tokenErr error, err error) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return nil, nil, nil
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	email, verr := r.tokens.Verify(token)
	if verr != nil {
		return nil, verr, nil
	}
	id, lerr := r.users.FindIdentityByEmail(ctx, email)
	if lerr != nil {
		if errors.Is(lerr, apperr.ErrUnknownEntity) {
			return nil, nil, nil
		}
		return nil, nil, lerr
	}
	return &Principal{UserID: id.ID, Role: id.Role}, nil, nil
}

// Middleware resolves the caller once per request and stores the result in
// the request context. Token failures never abort the request: the caller
// continues as anonymous and the failure is kept for error reporting.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()
		p, tokenErr, err := r.Resolve(ctx, req.Header.Get("Authorization"))
		if err != nil {
			r.logger.Errorw("identity lookup failed", "path", req.URL.Path, "err", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(apperr.BodyOf(err))
			return
		}
		if tokenErr != nil {
			r.logger.Debugw("bearer token rejected", "path", req.URL.Path, "err", tokenErr)
		}
		ctx = withIdentity(ctx, requestIdentity{principal: p, tokenErr: tokenErr})
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}
