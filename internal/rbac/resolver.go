package rbac

import (
	"context"
	"fmt"
)

// Flatten collects every permission value across roles, deduplicated.
// No roles yields an empty set.
func Flatten(roles []RoleView) PermissionSet {
	set := NewPermissionSet()
	for _, role := range roles {
		for _, p := range role.Permissions {
			set.Add(p.Value)
		}
	}
	return set
}

// Reader fetches flat role and permission collections by id.
type Reader interface {
	RolesByIDs(ctx context.Context, ids []string) ([]Role, error)
	PermissionsByIDs(ctx context.Context, ids []string) ([]Permission, error)
}

// Resolver assembles role read models from flat collections and joins them
// in memory instead of walking a populated object graph.
type Resolver struct {
	reader Reader
}

// NewResolver constructs a Resolver.
func NewResolver(reader Reader) *Resolver {
	return &Resolver{reader: reader}
}

// Views loads the given roles and attaches their permissions. Ids that do not
// resolve are skipped; the order of roleIDs is preserved.
func (r *Resolver) Views(ctx context.Context, roleIDs []string) ([]RoleView, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}
	roles, err := r.reader.RolesByIDs(ctx, uniqueStrings(roleIDs))
	if err != nil {
		return nil, fmt.Errorf("rbac: load roles: %w", err)
	}

	roleIndex := make(map[string]int, len(roles))
	var permIDs []string
	for i, role := range roles {
		roleIndex[role.ID] = i
		permIDs = append(permIDs, role.PermissionIDs...)
	}

	perms, err := r.reader.PermissionsByIDs(ctx, uniqueStrings(permIDs))
	if err != nil {
		return nil, fmt.Errorf("rbac: load permissions: %w", err)
	}
	permIndex := make(map[string]int, len(perms))
	for i, p := range perms {
		permIndex[p.ID] = i
	}

	views := make([]RoleView, 0, len(roles))
	seen := make(map[string]struct{}, len(roleIDs))
	for _, id := range roleIDs {
		idx, ok := roleIndex[id]
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		role := roles[idx]
		view := RoleView{ID: role.ID, Name: role.Name, Description: role.Description, Permissions: make([]Permission, 0, len(role.PermissionIDs))}
		for _, pid := range role.PermissionIDs {
			if pi, ok := permIndex[pid]; ok {
				view.Permissions = append(view.Permissions, perms[pi])
			}
		}
		views = append(views, view)
	}
	return views, nil
}

// Resolve returns the role names and flattened permission set for roleIDs.
func (r *Resolver) Resolve(ctx context.Context, roleIDs []string) (Grant, error) {
	views, err := r.Views(ctx, roleIDs)
	if err != nil {
		return Grant{}, err
	}
	names := make([]string, 0, len(views))
	for _, v := range views {
		names = append(names, v.Name)
	}
	return Grant{Roles: names, Permissions: Flatten(views)}, nil
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// hasDuplicates reports whether ids repeats any entry.
func hasDuplicates(ids []string) bool {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}
