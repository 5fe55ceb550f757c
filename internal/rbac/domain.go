package rbac

import "time"

// Permission is an atomic capability. Value has the form <verb>:<resource>[/<sub>].
type Permission struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"createdAt"`
}

// Role bundles permissions. Roles do not inherit from each other.
type Role struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	PermissionIDs []string  `json:"permissions"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// RoleView is the read model of a role joined with its permissions.
type RoleView struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Permissions []Permission `json:"permissions"`
}

// Grant is what a set of role assignments resolves to.
type Grant struct {
	Roles       []string
	Permissions PermissionSet
}

// PermissionPatch carries optional permission field updates.
type PermissionPatch struct {
	Name  *string
	Value *string
}

// RolePatch carries optional role field updates.
type RolePatch struct {
	Name        *string
	Description *string
}
