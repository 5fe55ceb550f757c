package rbac

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/delifood/delifood/internal/shared"
)

type memRepo struct {
	mu    sync.Mutex
	perms map[string]Permission
	roles map[string]Role
	reads int
}

func newMemRepo() *memRepo {
	return &memRepo{perms: map[string]Permission{}, roles: map[string]Role{}}
}

func (m *memRepo) CreatePermission(_ context.Context, p Permission) (Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.perms {
		if existing.Value == p.Value {
			return Permission{}, &shared.ConflictError{Entity: "permissions", Constraint: "permissions_value_key"}
		}
	}
	m.perms[p.ID] = p
	return p, nil
}

func (m *memRepo) GetPermission(_ context.Context, id string) (Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.perms[id]
	if !ok {
		return Permission{}, fmt.Errorf("permissions: %w", shared.ErrNotFound)
	}
	return p, nil
}

func (m *memRepo) ListPermissions(_ context.Context) ([]Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Permission, 0, len(m.perms))
	for _, p := range m.perms {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Value < out[j].Value })
	return out, nil
}

func (m *memRepo) PermissionsByIDs(_ context.Context, ids []string) ([]Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	var out []Permission
	for _, id := range ids {
		if p, ok := m.perms[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memRepo) UpdatePermission(_ context.Context, id string, patch PermissionPatch) (Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.perms[id]
	if !ok {
		return Permission{}, fmt.Errorf("permissions: %w", shared.ErrNotFound)
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Value != nil {
		p.Value = *patch.Value
	}
	m.perms[id] = p
	return p, nil
}

func (m *memRepo) DeletePermission(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.perms[id]; !ok {
		return fmt.Errorf("permissions: %w", shared.ErrNotFound)
	}
	delete(m.perms, id)
	for rid, role := range m.roles {
		role.PermissionIDs = without(role.PermissionIDs, id)
		m.roles[rid] = role
	}
	return nil
}

func (m *memRepo) CreateRole(_ context.Context, r Role) (Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.roles {
		if existing.Name == r.Name {
			return Role{}, &shared.ConflictError{Entity: "roles", Constraint: "roles_name_key"}
		}
	}
	m.roles[r.ID] = r
	return r, nil
}

func (m *memRepo) GetRole(_ context.Context, id string) (Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.roles[id]
	if !ok {
		return Role{}, fmt.Errorf("roles: %w", shared.ErrNotFound)
	}
	return r, nil
}

func (m *memRepo) GetRoleByName(_ context.Context, name string) (Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.roles {
		if r.Name == name {
			return r, nil
		}
	}
	return Role{}, fmt.Errorf("roles: %w", shared.ErrNotFound)
}

func (m *memRepo) ListRoles(_ context.Context) ([]Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Role, 0, len(m.roles))
	for _, r := range m.roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memRepo) RolesByIDs(_ context.Context, ids []string) ([]Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	var out []Role
	for _, id := range ids {
		if r, ok := m.roles[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRepo) UpdateRole(_ context.Context, id string, patch RolePatch) (Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.roles[id]
	if !ok {
		return Role{}, fmt.Errorf("roles: %w", shared.ErrNotFound)
	}
	if patch.Name != nil {
		r.Name = *patch.Name
	}
	if patch.Description != nil {
		r.Description = *patch.Description
	}
	m.roles[id] = r
	return r, nil
}

func (m *memRepo) DeleteRole(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[id]; !ok {
		return fmt.Errorf("roles: %w", shared.ErrNotFound)
	}
	delete(m.roles, id)
	return nil
}

func (m *memRepo) SetRolePermissions(_ context.Context, roleID string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.roles[roleID]
	if !ok {
		return fmt.Errorf("roles: %w", shared.ErrNotFound)
	}
	r.PermissionIDs = append([]string(nil), ids...)
	m.roles[roleID] = r
	return nil
}

func without(ids []string, drop string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}

var _ Repository = (*memRepo)(nil)
