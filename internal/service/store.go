package service

import (
	"context"
	"time"

	"craftquote/api/internal/models"
)

// Narrow persistence contracts consumed by the services and satisfied by the
// pgx repositories. Absence is reported with the repository sentinel errors,
// never folded into a generic failure.

type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	List(ctx context.Context) ([]models.User, error)
	UpdatePassword(ctx context.Context, id string, passwordHash []byte) error
	SetRole(ctx context.Context, id string, roleID string) error
}

type SessionStore interface {
	Create(ctx context.Context, session models.Session) error
	FindByTokenHash(ctx context.Context, tokenHash []byte) (models.Session, error)
	Rotate(ctx context.Context, id string, currentHash, newHash []byte, expiresAt time.Time, userAgent, ipAddress string) error
	DeleteByID(ctx context.Context, id string) error
	DeleteByTokenHash(ctx context.Context, tokenHash []byte) error
	DeleteByUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	ListByUser(ctx context.Context, userID string) ([]models.Session, error)
}

type RBACStore interface {
	CreateRole(ctx context.Context, role models.Role) error
	GetRoleByID(ctx context.Context, id string) (models.Role, error)
	GetRoleByName(ctx context.Context, name string) (models.Role, error)
	ListRoles(ctx context.Context) ([]models.Role, error)
	CreatePermission(ctx context.Context, perm models.Permission) error
	ListPermissions(ctx context.Context) ([]models.Permission, error)
	GrantPermission(ctx context.Context, roleID string, permissionID string) error
	PermissionsForUser(ctx context.Context, userID string) ([]string, error)
	PermissionsForRole(ctx context.Context, roleName string) ([]string, error)
}
