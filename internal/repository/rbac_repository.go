package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"craftquote/api/internal/models"
)

var (
	ErrRoleNotFound       = errors.New("role not found")
	ErrPermissionNotFound = errors.New("permission not found")
	ErrDuplicateName      = errors.New("name already exists")
)

type RBACRepository struct {
	pool *pgxpool.Pool
}

func NewRBACRepository(pool *pgxpool.Pool) *RBACRepository {
	return &RBACRepository{pool: pool}
}

func (r *RBACRepository) CreateRole(ctx context.Context, role models.Role) error {
	const query = `
		INSERT INTO roles (id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
	`
	_, err := r.pool.Exec(ctx, query, role.ID, role.Name, role.Description)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateName
		}
		return err
	}
	return nil
}

func (r *RBACRepository) GetRoleByID(ctx context.Context, id string) (models.Role, error) {
	const query = `
		SELECT id, name, description, created_at, updated_at FROM roles WHERE id = $1
	`
	return scanRole(r.pool.QueryRow(ctx, query, id))
}

func (r *RBACRepository) GetRoleByName(ctx context.Context, name string) (models.Role, error) {
	const query = `
		SELECT id, name, description, created_at, updated_at FROM roles WHERE name = $1
	`
	return scanRole(r.pool.QueryRow(ctx, query, name))
}

func (r *RBACRepository) ListRoles(ctx context.Context) ([]models.Role, error) {
	const query = `
		SELECT id, name, description, created_at, updated_at FROM roles ORDER BY name
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []models.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (r *RBACRepository) CreatePermission(ctx context.Context, perm models.Permission) error {
	const query = `
		INSERT INTO permissions (id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
	`
	_, err := r.pool.Exec(ctx, query, perm.ID, perm.Name, perm.Description)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateName
		}
		return err
	}
	return nil
}

func (r *RBACRepository) ListPermissions(ctx context.Context) ([]models.Permission, error) {
	const query = `
		SELECT id, name, description, created_at, updated_at FROM permissions ORDER BY name
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []models.Permission
	for rows.Next() {
		var perm models.Permission
		if err := rows.Scan(&perm.ID, &perm.Name, &perm.Description, &perm.CreatedAt, &perm.UpdatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}

// GrantPermission inserts the (role, permission) join row. The composite
// primary key makes the grant idempotent.
func (r *RBACRepository) GrantPermission(ctx context.Context, roleID string, permissionID string) error {
	const query = `
		INSERT INTO role_permissions (role_id, permission_id, created_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (role_id, permission_id) DO NOTHING
	`
	_, err := r.pool.Exec(ctx, query, roleID, permissionID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return ErrPermissionNotFound
		}
		return err
	}
	return nil
}

// PermissionsForUser resolves user -> role -> permissions in one traversal.
// An unknown user or a role with no grants both come back as an empty slice.
func (r *RBACRepository) PermissionsForUser(ctx context.Context, userID string) ([]string, error) {
	const query = `
		SELECT p.name
		FROM users u
		JOIN role_permissions rp ON rp.role_id = u.role_id
		JOIN permissions p ON p.id = rp.permission_id
		WHERE u.id = $1
		ORDER BY p.name
	`
	return r.queryNames(ctx, query, userID)
}

func (r *RBACRepository) PermissionsForRole(ctx context.Context, roleName string) ([]string, error) {
	const query = `
		SELECT p.name
		FROM roles r
		JOIN role_permissions rp ON rp.role_id = r.id
		JOIN permissions p ON p.id = rp.permission_id
		WHERE r.name = $1
		ORDER BY p.name
	`
	return r.queryNames(ctx, query, roleName)
}

func (r *RBACRepository) queryNames(ctx context.Context, query string, arg any) ([]string, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func scanRole(row pgx.Row) (models.Role, error) {
	var role models.Role
	if err := row.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Role{}, ErrRoleNotFound
		}
		return models.Role{}, err
	}
	return role, nil
}

const foreignKeyViolation = "23503"
