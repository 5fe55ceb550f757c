package auth

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/delifood/delifood/internal/rbac"
	"github.com/delifood/delifood/internal/shared"
)

type memRepo struct {
	mu    sync.Mutex
	users map[string]User
}

func newMemRepo() *memRepo {
	return &memRepo{users: map[string]User{}}
}

func (m *memRepo) CreateUser(_ context.Context, u User) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return User{}, &shared.ConflictError{Entity: "users", Constraint: "users_email_key"}
		}
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *memRepo) FindByEmail(_ context.Context, email string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, fmt.Errorf("users: %w", shared.ErrNotFound)
}

func (m *memRepo) GetUser(_ context.Context, id string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, fmt.Errorf("users: %w", shared.ErrNotFound)
	}
	return u, nil
}

func (m *memRepo) ListUsers(_ context.Context) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (m *memRepo) UpdateUser(_ context.Context, id string, patch UserPatch) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, fmt.Errorf("users: %w", shared.ErrNotFound)
	}
	if patch.Email != nil {
		u.Email = *patch.Email
	}
	if patch.PasswordHash != nil {
		u.PasswordHash = *patch.PasswordHash
	}
	m.users[id] = u
	return u, nil
}

func (m *memRepo) DeleteUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return fmt.Errorf("users: %w", shared.ErrNotFound)
	}
	delete(m.users, id)
	return nil
}

func (m *memRepo) SetUserRoles(_ context.Context, id string, roleIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return fmt.Errorf("users: %w", shared.ErrNotFound)
	}
	u.RoleIDs = append([]string(nil), roleIDs...)
	m.users[id] = u
	return nil
}

// staticRoles serves a fixed role catalogue.
type staticRoles struct {
	roles map[string]rbac.RoleView
}

func newStaticRoles() *staticRoles {
	return &staticRoles{roles: map[string]rbac.RoleView{
		"r-user": {ID: "r-user", Name: DefaultRole, Permissions: []rbac.Permission{
			{ID: "p1", Value: "get:cart"}, {ID: "p2", Value: "create:cart/item"},
		}},
		"r-admin": {ID: "r-admin", Name: "Admin", Permissions: []rbac.Permission{
			{ID: "p3", Value: "list:user"}, {ID: "p4", Value: "put:user/role"}, {ID: "p1", Value: "get:cart"},
		}},
	}}
}

func (s *staticRoles) GetRoleByName(_ context.Context, name string) (rbac.Role, error) {
	for _, r := range s.roles {
		if r.Name == name {
			return rbac.Role{ID: r.ID, Name: r.Name}, nil
		}
	}
	return rbac.Role{}, fmt.Errorf("roles: %w", shared.ErrNotFound)
}

func (s *staticRoles) RolesByIDs(_ context.Context, ids []string) ([]rbac.Role, error) {
	var out []rbac.Role
	for _, id := range ids {
		if r, ok := s.roles[id]; ok {
			out = append(out, rbac.Role{ID: r.ID, Name: r.Name})
		}
	}
	return out, nil
}

func (s *staticRoles) Resolve(_ context.Context, ids []string) (rbac.Grant, error) {
	var views []rbac.RoleView
	var names []string
	for _, id := range ids {
		if r, ok := s.roles[id]; ok {
			views = append(views, r)
			names = append(names, r.Name)
		}
	}
	return rbac.Grant{Roles: names, Permissions: rbac.Flatten(views)}, nil
}

type published struct {
	topic   string
	payload any
}

type recordingPublisher struct {
	mu        sync.Mutex
	fail      bool
	events    []published
	deadlines []bool
}

func (p *recordingPublisher) Publish(ctx context.Context, topic string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.fail {
		return errors.New("broker down")
	}
	_, ok := ctx.Deadline()
	p.deadlines = append(p.deadlines, ok)
	p.events = append(p.events, published{topic: topic, payload: payload})
	return nil
}

func (p *recordingPublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.topic)
	}
	return out
}
