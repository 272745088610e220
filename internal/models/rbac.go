package models

import "time"

// Built-in role names seeded by operations tooling. Registration falls back
// to RoleViewer when no role is supplied.
const (
	RoleAdmin    = "ADMIN"
	RoleManager  = "MANAGER"
	RoleDesigner = "DESIGNER"
	RoleSales    = "SALES"
	RoleViewer   = "VIEWER"
)

type Role struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Permission is an atomic capability in resource:action form, unique by name.
type Permission struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
