package rbac

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/delifood/delifood/internal/shared"
)

var permissionValuePattern = regexp.MustCompile(`^[a-z][a-z-]*:[a-z][a-z-]*(/[a-z][a-z-]*)*$`)

// Repository persists permissions and roles.
type Repository interface {
	Reader
	CreatePermission(ctx context.Context, p Permission) (Permission, error)
	GetPermission(ctx context.Context, id string) (Permission, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	UpdatePermission(ctx context.Context, id string, patch PermissionPatch) (Permission, error)
	DeletePermission(ctx context.Context, id string) error

	CreateRole(ctx context.Context, r Role) (Role, error)
	GetRole(ctx context.Context, id string) (Role, error)
	GetRoleByName(ctx context.Context, name string) (Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	UpdateRole(ctx context.Context, id string, patch RolePatch) (Role, error)
	DeleteRole(ctx context.Context, id string) error
	SetRolePermissions(ctx context.Context, roleID string, permissionIDs []string) error
}

// Service orchestrates RBAC operations.
type Service struct {
	repo     Repository
	resolver *Resolver
	now      func() time.Time
}

// NewService constructs a Service backed by the provided repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, resolver: NewResolver(repo), now: time.Now}
}

// Resolver exposes the permission resolver backed by the same repository.
func (s *Service) Resolver() *Resolver {
	return s.resolver
}

// Resolve flattens the permissions granted by roleIDs.
func (s *Service) Resolve(ctx context.Context, roleIDs []string) (Grant, error) {
	return s.resolver.Resolve(ctx, roleIDs)
}

// RolesByIDs returns the roles matching ids; unknown ids are skipped.
func (s *Service) RolesByIDs(ctx context.Context, ids []string) ([]Role, error) {
	return s.repo.RolesByIDs(ctx, ids)
}

// ListPermissions returns all permissions.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// GetPermission fetches a permission by id.
func (s *Service) GetPermission(ctx context.Context, id string) (Permission, error) {
	return s.repo.GetPermission(ctx, id)
}

// CreatePermission inserts a new permission. Duplicate values conflict.
func (s *Service) CreatePermission(ctx context.Context, name, value string) (Permission, error) {
	name = strings.TrimSpace(name)
	value = strings.TrimSpace(value)
	if name == "" {
		return Permission{}, shared.Invalid("permission name required")
	}
	if !permissionValuePattern.MatchString(value) {
		return Permission{}, shared.Invalid("permission value must look like verb:resource[/sub]")
	}
	return s.repo.CreatePermission(ctx, Permission{
		ID:        uuid.NewString(),
		Name:      name,
		Value:     value,
		CreatedAt: s.now().UTC(),
	})
}

// PatchPermission updates the provided fields. Tokens already issued keep
// the old value until they expire.
func (s *Service) PatchPermission(ctx context.Context, id string, patch PermissionPatch) (Permission, error) {
	if patch.Name == nil && patch.Value == nil {
		return Permission{}, shared.Invalid("nothing to update")
	}
	if patch.Value != nil {
		v := strings.TrimSpace(*patch.Value)
		if !permissionValuePattern.MatchString(v) {
			return Permission{}, shared.Invalid("permission value must look like verb:resource[/sub]")
		}
		patch.Value = &v
	}
	return s.repo.UpdatePermission(ctx, id, patch)
}

// DeletePermission removes a permission.
func (s *Service) DeletePermission(ctx context.Context, id string) error {
	return s.repo.DeletePermission(ctx, id)
}

// ListRoles returns all roles without their permissions expanded.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole returns the role joined with its permissions.
func (s *Service) GetRole(ctx context.Context, id string) (RoleView, error) {
	if _, err := s.repo.GetRole(ctx, id); err != nil {
		return RoleView{}, err
	}
	views, err := s.resolver.Views(ctx, []string{id})
	if err != nil {
		return RoleView{}, err
	}
	if len(views) == 0 {
		return RoleView{}, fmt.Errorf("rbac: role %s: %w", id, shared.ErrNotFound)
	}
	return views[0], nil
}

// GetRoleByName fetches a role by its unique name.
func (s *Service) GetRoleByName(ctx context.Context, name string) (Role, error) {
	return s.repo.GetRoleByName(ctx, name)
}

// CreateRole inserts a new role with no permissions.
func (s *Service) CreateRole(ctx context.Context, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, shared.Invalid("role name required")
	}
	now := s.now().UTC()
	return s.repo.CreateRole(ctx, Role{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

// PatchRole updates name and/or description.
func (s *Service) PatchRole(ctx context.Context, id string, patch RolePatch) (Role, error) {
	if patch.Name == nil && patch.Description == nil {
		return Role{}, shared.Invalid("nothing to update")
	}
	if patch.Name != nil {
		n := strings.TrimSpace(*patch.Name)
		if n == "" {
			return Role{}, shared.Invalid("role name required")
		}
		patch.Name = &n
	}
	return s.repo.UpdateRole(ctx, id, patch)
}

// DeleteRole removes a role.
func (s *Service) DeleteRole(ctx context.Context, id string) error {
	return s.repo.DeleteRole(ctx, id)
}

// PutRolePermissions replaces the permissions of a role. Duplicate ids and
// ids that do not reference an existing permission are rejected as
// unprocessable.
func (s *Service) PutRolePermissions(ctx context.Context, roleID string, permissionIDs []string) (RoleView, error) {
	if hasDuplicates(permissionIDs) {
		return RoleView{}, shared.Unprocessable("the array contains duplicate permissions")
	}
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return RoleView{}, err
	}
	found, err := s.repo.PermissionsByIDs(ctx, permissionIDs)
	if err != nil {
		return RoleView{}, err
	}
	if len(found) != len(permissionIDs) {
		return RoleView{}, shared.Unprocessable("one of the permissions does not exist")
	}
	if err := s.repo.SetRolePermissions(ctx, roleID, permissionIDs); err != nil {
		return RoleView{}, err
	}
	return s.GetRole(ctx, roleID)
}
