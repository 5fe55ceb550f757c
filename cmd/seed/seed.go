package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/delifood/delifood/internal/auth"
	"github.com/delifood/delifood/internal/rbac"
	"github.com/delifood/delifood/internal/shared"
)

var (
	verbs    = []string{"create", "get", "list", "patch", "update", "delete"}
	entities = []string{"permission", "role", "user", "product", "tag", "category", "cart", "cart/item"}
	extra    = []rbac.Permission{
		{Name: "Put role permissions", Value: "put:role/permission"},
		{Name: "Put user role", Value: "put:user/role"},
		{Name: "Put product categories", Value: "put:product/categories"},
		{Name: "Put product tags", Value: "put:product/tags"},
	}
)

// catalogue lists every default permission.
func catalogue() []rbac.Permission {
	out := make([]rbac.Permission, 0, len(verbs)*len(entities)+len(extra))
	for _, entity := range entities {
		for _, verb := range verbs {
			out = append(out, rbac.Permission{Name: verb + " " + entity, Value: verb + ":" + entity})
		}
	}
	return append(out, extra...)
}

// userGrants is what the self-service User role may do.
func userGrants(value string) bool {
	switch value {
	case "get:product", "list:product":
		return true
	}
	for _, verb := range verbs {
		if value == verb+":cart" || value == verb+":cart/item" {
			return true
		}
	}
	return false
}

// RBAC is the slice of rbac.Service the seeder drives.
type RBAC interface {
	ListPermissions(ctx context.Context) ([]rbac.Permission, error)
	CreatePermission(ctx context.Context, name, value string) (rbac.Permission, error)
	GetRoleByName(ctx context.Context, name string) (rbac.Role, error)
	CreateRole(ctx context.Context, name, description string) (rbac.Role, error)
	PutRolePermissions(ctx context.Context, roleID string, permissionIDs []string) (rbac.RoleView, error)
}

// Users is the slice of auth.Service the seeder drives.
type Users interface {
	CreateUser(ctx context.Context, email, password string, roleIDs []string) (auth.User, error)
}

// Seeder installs the default catalogue. Every step tolerates a previous run.
type Seeder struct {
	rbac   RBAC
	users  Users
	logger *slog.Logger
}

// Run seeds permissions, the Admin and User roles and the admin account.
func (s *Seeder) Run(ctx context.Context, adminEmail, adminPassword string) error {
	perms, err := s.permissions(ctx)
	if err != nil {
		return err
	}
	var all, user []string
	for _, p := range perms {
		all = append(all, p.ID)
		if userGrants(p.Value) {
			user = append(user, p.ID)
		}
	}
	admin, err := s.role(ctx, "Admin", "Full access", all)
	if err != nil {
		return err
	}
	if _, err := s.role(ctx, auth.DefaultRole, "Self-service shopper", user); err != nil {
		return err
	}
	_, err = s.users.CreateUser(ctx, adminEmail, adminPassword, []string{admin.ID})
	switch {
	case errors.Is(err, shared.ErrConflict):
		s.logger.Info("admin account already present", slog.String("email", adminEmail))
	case err != nil:
		return fmt.Errorf("seed admin: %w", err)
	default:
		s.logger.Info("admin account created", slog.String("email", adminEmail))
	}
	return nil
}

func (s *Seeder) permissions(ctx context.Context) ([]rbac.Permission, error) {
	existing, err := s.rbac.ListPermissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list permissions: %w", err)
	}
	byValue := make(map[string]rbac.Permission, len(existing))
	for _, p := range existing {
		byValue[p.Value] = p
	}
	want := catalogue()
	out := make([]rbac.Permission, 0, len(want))
	created := 0
	for _, p := range want {
		if cur, ok := byValue[p.Value]; ok {
			out = append(out, cur)
			continue
		}
		cur, err := s.rbac.CreatePermission(ctx, p.Name, p.Value)
		if err != nil {
			return nil, fmt.Errorf("create permission %s: %w", p.Value, err)
		}
		created++
		out = append(out, cur)
	}
	s.logger.Info("permissions seeded", slog.Int("created", created), slog.Int("total", len(out)))
	return out, nil
}

func (s *Seeder) role(ctx context.Context, name, description string, permissionIDs []string) (rbac.Role, error) {
	role, err := s.rbac.GetRoleByName(ctx, name)
	if errors.Is(err, shared.ErrNotFound) {
		role, err = s.rbac.CreateRole(ctx, name, description)
	}
	if err != nil {
		return rbac.Role{}, fmt.Errorf("role %s: %w", name, err)
	}
	if _, err := s.rbac.PutRolePermissions(ctx, role.ID, permissionIDs); err != nil {
		return rbac.Role{}, fmt.Errorf("role %s permissions: %w", name, err)
	}
	s.logger.Info("role seeded", slog.String("role", name), slog.Int("permissions", len(permissionIDs)))
	return role, nil
}
