package user

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/auth"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/cache"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/mutation"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/projection"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/store"
	"github.com/ovaphlow/pitchfork/service-task-tracker/internal/user/entity"
	userrepo "github.com/ovaphlow/pitchfork/service-task-tracker/internal/user/repo"
	"github.com/ovaphlow/pitchfork/service-task-tracker/pkg/utilities"
)

var ErrBadCredentials = apperr.New(apperr.KindUnauthenticated, "Bad credentials")

// Service handles registration, login, identity lookup and user projections.
// Mutations of existing users go through the orchestrator.
type Service struct {
	store  *store.Store
	reader *cache.Reader
	orch   *mutation.Orchestrator
	tokens *auth.TokenService
	hasher auth.PasswordHasher
	ids    *utilities.IDGenerator
	logger *zap.SugaredLogger
}

func NewService(st *store.Store, reader *cache.Reader, orch *mutation.Orchestrator, tokens *auth.TokenService,
	hasher auth.PasswordHasher, ids *utilities.IDGenerator, logger *zap.SugaredLogger) *Service {
	if hasher == nil {
		hasher = auth.BcryptHasher{}
	}
	return &Service{store: st, reader: reader, orch: orch, tokens: tokens, hasher: hasher, ids: ids, logger: logger}
}

// Profile is the body of register and update requests.
type Profile struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      string `json:"role"`
}

func (p *Profile) validate() (entity.Role, error) {
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	checks := []struct {
		field, value string
	}{
		{"firstName", p.FirstName},
		{"lastName", p.LastName},
		{"password", p.Password},
	}
	for _, c := range checks {
		if n := len([]rune(strings.TrimSpace(c.value))); n < 3 || len([]rune(c.value)) > 20 {
			return "", apperr.New(apperr.KindInvalid, "%s: size must be between 3 and 20", c.field)
		}
	}
	if at := strings.Index(p.Email, "@"); at <= 0 || at == len(p.Email)-1 {
		return "", apperr.New(apperr.KindInvalid, "email: must be a well-formed email address")
	}
	role, err := entity.ParseRole(p.Role)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInvalid, err, "role: must be USER or ADMIN")
	}
	return role, nil
}

// Register creates an account and returns its id.
func (s *Service) Register(ctx context.Context, p Profile) (int64, error) {
	role, err := p.validate()
	if err != nil {
		return 0, err
	}
	hash, err := s.hasher.Hash(p.Password)
	if err != nil {
		return 0, err
	}
	u := &entity.User{
		ID:           s.ids.Next(),
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		Email:        p.Email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    userrepo.Now(),
	}
	err = s.store.InTx(ctx, func(r store.Repos) error {
		if _, err := r.Users.GetByEmail(ctx, u.Email); err == nil {
			return apperr.New(apperr.KindConflict, "Email already registered: %s", u.Email)
		} else if !errors.Is(err, apperr.ErrUnknownEntity) {
			return err
		}
		return r.Users.Create(ctx, u)
	})
	if err != nil {
		return 0, err
	}
	s.logger.Infow("user registered", "user_id", u.ID, "role", u.Role)
	return u.ID, nil
}

// LoginResult is returned on successful authentication.
type LoginResult struct {
	UserID int64  `json:"userId"`
	Token  string `json:"token"`
}

// Login checks the password and issues a bearer token. Unknown emails and
// wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.store.Repos().Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperr.ErrUnknownEntity) {
			return nil, ErrBadCredentials
		}
		return nil, err
	}
	if !s.hasher.Verify(u.PasswordHash, password) {
		return nil, ErrBadCredentials
	}
	token, err := s.tokens.Issue(u.Email)
	if err != nil {
		return nil, err
	}
	if s.hasher.NeedsRehash(u.PasswordHash) {
		s.logger.Debugw("password hash uses an outdated cost", "user_id", u.ID)
	}
	return &LoginResult{UserID: u.ID, Token: token}, nil
}

// FindIdentityByEmail implements auth.IdentityStore, read through the
// by-email cache.
func (s *Service) FindIdentityByEmail(ctx context.Context, email string) (*entity.Identity, error) {
	id, err := cache.Fetch(ctx, s.reader, cache.EmailKey(email), func(ctx context.Context) (entity.Identity, error) {
		u, err := s.store.Repos().Users.GetByEmail(ctx, email)
		if err != nil {
			return entity.Identity{}, err
		}
		return u.Identity(), nil
	})
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// Get returns the full projection of a user, relations populated.
func (s *Service) Get(ctx context.Context, id int64) (View, error) {
	return cache.Fetch(ctx, s.reader, cache.UserKey(id), func(ctx context.Context) (View, error) {
		r := s.store.Repos()
		u, err := r.Users.GetByID(ctx, id)
		if err != nil {
			return View{}, err
		}
		v := newView(u)
		authored, err := r.Tasks.RefsByAuthor(ctx, id)
		if err != nil {
			return View{}, err
		}
		executed, err := r.Tasks.RefsByExecutor(ctx, id)
		if err != nil {
			return View{}, err
		}
		comments, err := r.Comments.RefsByAuthor(ctx, id)
		if err != nil {
			return View{}, err
		}
		v.AsAuthor = projection.Populated(authored)
		v.AsExecutor = projection.Populated(executed)
		v.Comments = projection.Populated(comments)
		return v, nil
	})
}

// List returns every user without relations.
func (s *Service) List(ctx context.Context) ([]View, error) {
	users, err := s.store.Repos().Users.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]View, len(users))
	for i := range users {
		out[i] = newView(&users[i])
	}
	return out, nil
}

// Update replaces the caller's own profile.
func (s *Service) Update(ctx context.Context, p *auth.Principal, prof Profile) (View, error) {
	if p == nil {
		return View{}, apperr.New(apperr.KindUnauthenticated, "Authentication required")
	}
	role, err := prof.validate()
	if err != nil {
		return View{}, err
	}
	if strings.TrimSpace(prof.Role) == "" {
		// keep the current role
		role = ""
	}
	hash, err := s.hasher.Hash(prof.Password)
	if err != nil {
		return View{}, err
	}
	res, err := s.orch.UpdateUser(ctx, p, p.UserID, mutation.UserChanges{
		FirstName:    prof.FirstName,
		LastName:     prof.LastName,
		Email:        prof.Email,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		return View{}, err
	}
	return newView(res.Value), nil
}

// Delete removes a user; the caller must be an ADMIN.
func (s *Service) Delete(ctx context.Context, p *auth.Principal, id int64) (mutation.UserDeletion, error) {
	res, err := s.orch.DeleteUser(ctx, p, id)
	if err != nil {
		return mutation.UserDeletion{}, err
	}
	s.logger.Infow("user deleted", "user_id", id, "detached_tasks", len(res.Value.DetachedTasks), "evicted", len(res.Evicted))
	return res.Value, nil
}
