package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"

	"github.com/delifood/delifood/internal/events"
	"github.com/delifood/delifood/internal/rbac"
	"github.com/delifood/delifood/internal/shared"
	"github.com/delifood/delifood/internal/token"
)

// Repository persists accounts and their role assignments.
type Repository interface {
	CreateUser(ctx context.Context, u User) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	UpdateUser(ctx context.Context, id string, patch UserPatch) (User, error)
	DeleteUser(ctx context.Context, id string) error
	SetUserRoles(ctx context.Context, id string, roleIDs []string) error
}

// Roles looks up roles and resolves the permissions they grant.
type Roles interface {
	GetRoleByName(ctx context.Context, name string) (rbac.Role, error)
	RolesByIDs(ctx context.Context, ids []string) ([]rbac.Role, error)
	Resolve(ctx context.Context, roleIDs []string) (rbac.Grant, error)
}

// Publisher emits domain events.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// Service wraps authentication and account administration rules.
type Service struct {
	repo      Repository
	roles     Roles
	issuer    *token.Issuer
	publisher Publisher
	logger    *slog.Logger
	hashCost  int
	now       func() time.Time
}

// NewService constructs a new Service.
func NewService(repo Repository, roles Roles, issuer *token.Issuer, publisher Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		roles:     roles,
		issuer:    issuer,
		publisher: publisher,
		logger:    logger,
		hashCost:  bcrypt.DefaultCost,
		now:       time.Now,
	}
}

// NormalizeEmail trims and case-folds an address.
func NormalizeEmail(email string) string {
	return cases.Fold().String(strings.TrimSpace(email))
}

// SignUp registers an account with the default role and announces it.
func (s *Service) SignUp(ctx context.Context, email, password string) (User, error) {
	role, err := s.roles.GetRoleByName(ctx, DefaultRole)
	if err != nil {
		return User{}, fmt.Errorf("auth: default role %q: %w", DefaultRole, unexpected(err))
	}
	return s.create(ctx, email, password, []string{role.ID})
}

// CreateUser registers an account with explicit roles.
func (s *Service) CreateUser(ctx context.Context, email, password string, roleIDs []string) (User, error) {
	if err := s.checkRoles(ctx, roleIDs); err != nil {
		return User{}, err
	}
	return s.create(ctx, email, password, roleIDs)
}

func (s *Service) create(ctx context.Context, email, password string, roleIDs []string) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return User{}, fmt.Errorf("auth: hash password: %w", err)
	}
	now := s.now().UTC()
	if roleIDs == nil {
		roleIDs = []string{}
	}
	user, err := s.repo.CreateUser(ctx, User{
		ID:           uuid.NewString(),
		Email:        NormalizeEmail(email),
		PasswordHash: string(hash),
		RoleIDs:      roleIDs,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return User{}, err
	}
	s.announce(ctx, events.TopicUserCreated, user)
	return user, nil
}

// SignIn verifies credentials and mints a token carrying the flattened
// permission set. An unknown email is not found; a wrong password is
// unprocessable.
func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	user, err := s.repo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Session{}, shared.Unprocessable("invalid credentials")
	}
	grant, err := s.roles.Resolve(ctx, user.RoleIDs)
	if err != nil {
		return Session{}, err
	}
	perms := grant.Permissions.Values()
	raw, payload, err := s.issuer.Issue(user.ID, grant.Roles, perms)
	if err != nil {
		return Session{}, err
	}
	return Session{
		User:      SignedInUser{ID: user.ID, Email: user.Email, Roles: grant.Roles, Permissions: perms},
		Token:     raw,
		ExpiresAt: payload.ExpiresTime().UTC(),
	}, nil
}

// ListUsers returns every account.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// GetUser fetches an account by id.
func (s *Service) GetUser(ctx context.Context, id string) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// PatchUser updates email and/or password and announces the change.
func (s *Service) PatchUser(ctx context.Context, id string, email, password *string) (User, error) {
	if email == nil && password == nil {
		return User{}, shared.Invalid("nothing to update")
	}
	var patch UserPatch
	if email != nil {
		e := NormalizeEmail(*email)
		patch.Email = &e
	}
	if password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*password), s.hashCost)
		if err != nil {
			return User{}, fmt.Errorf("auth: hash password: %w", err)
		}
		h := string(hash)
		patch.PasswordHash = &h
	}
	user, err := s.repo.UpdateUser(ctx, id, patch)
	if err != nil {
		return User{}, err
	}
	s.announce(ctx, events.TopicUserUpdated, user)
	return user, nil
}

// DeleteUser removes an account. Replicas elsewhere are left in place.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	return s.repo.DeleteUser(ctx, id)
}

// PutUserRoles replaces the roles of an account. Tokens already issued keep
// their permissions until they expire.
func (s *Service) PutUserRoles(ctx context.Context, id string, roleIDs []string) (User, error) {
	if err := s.checkRoles(ctx, roleIDs); err != nil {
		return User{}, err
	}
	if _, err := s.repo.GetUser(ctx, id); err != nil {
		return User{}, err
	}
	if err := s.repo.SetUserRoles(ctx, id, roleIDs); err != nil {
		return User{}, err
	}
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	s.announce(ctx, events.TopicUserUpdated, user)
	return user, nil
}

func (s *Service) checkRoles(ctx context.Context, roleIDs []string) error {
	seen := make(map[string]struct{}, len(roleIDs))
	for _, id := range roleIDs {
		if _, ok := seen[id]; ok {
			return shared.Unprocessable("the array contains duplicate roles")
		}
		seen[id] = struct{}{}
	}
	if len(roleIDs) == 0 {
		return nil
	}
	found, err := s.roles.RolesByIDs(ctx, roleIDs)
	if err != nil {
		return err
	}
	if len(found) != len(roleIDs) {
		return shared.Unprocessable("one of the roles does not exist")
	}
	return nil
}

// publishTimeout bounds an announce once it is detached from the request.
const publishTimeout = 5 * time.Second

// announce publishes a user event. The write has already committed, so a
// publish failure is logged rather than returned, and a cancelled request
// must not drop the event.
func (s *Service) announce(ctx context.Context, topic string, u User) {
	payload := events.UserPayload{ID: u.ID, Email: u.Email, UpdatedAt: u.UpdatedAt}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.Publish(ctx, topic, payload); err != nil {
		s.logger.Error("publish user event",
			slog.String("topic", topic),
			slog.String("user_id", u.ID),
			slog.Any("error", err))
	}
}

// unexpected hides a missing seed row behind a plain error so it surfaces
// as a server fault instead of a client-facing 404.
func unexpected(err error) error {
	if errors.Is(err, shared.ErrNotFound) {
		return errors.New("not seeded")
	}
	return err
}
