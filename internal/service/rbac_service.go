package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"craftquote/api/internal/ids"
	"craftquote/api/internal/models"
	"craftquote/api/internal/repository"
)

// RBACService answers "does this user's role grant permission X". Resolution
// is read-heavy and sits on the hot path of every gated request, so the
// user's permission set is cached in redis for a short TTL. Postgres stays
// authoritative; any cache failure falls through to the store.
type RBACService struct {
	users    UserStore
	store    RBACStore
	cache    *redis.Client
	cacheTTL time.Duration
	log      zerolog.Logger
}

func NewRBACService(users UserStore, store RBACStore, cache *redis.Client, cacheTTL time.Duration, log zerolog.Logger) *RBACService {
	return &RBACService{
		users:    users,
		store:    store,
		cache:    cache,
		cacheTTL: cacheTTL,
		log:      log,
	}
}

// PermissionRequirement is the declarative gate attached to a protected
// operation: any-of a set, all-of a set, or nothing beyond authentication.
type PermissionRequirement struct {
	all   bool
	perms []string
}

// AnyOf passes when the user holds at least one of the named permissions.
func AnyOf(perms ...string) PermissionRequirement {
	return PermissionRequirement{perms: perms}
}

// AllOf passes only when the user holds every named permission.
func AllOf(perms ...string) PermissionRequirement {
	return PermissionRequirement{all: true, perms: perms}
}

// NoneRequired passes for any authenticated caller without a resolver lookup.
func NoneRequired() PermissionRequirement {
	return PermissionRequirement{}
}

func (r PermissionRequirement) Empty() bool {
	return len(r.perms) == 0
}

func (r PermissionRequirement) String() string {
	if r.Empty() {
		return "authenticated"
	}
	sep := " OR "
	if r.all {
		sep = " AND "
	}
	return strings.Join(r.perms, sep)
}

// GetUserPermissions resolves user -> role -> permission set in a single
// traversal. A user without a resolvable role yields the empty set, never an
// error.
func (s *RBACService) GetUserPermissions(ctx context.Context, userID string) ([]string, error) {
	if cached, ok := s.cacheGet(ctx, userID); ok {
		return cached, nil
	}

	perms, err := s.store.PermissionsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.cacheSet(ctx, userID, perms)
	return perms, nil
}

func (s *RBACService) HasPermission(ctx context.Context, userID string, permission string) (bool, error) {
	return s.HasAnyPermission(ctx, userID, []string{permission})
}

// HasAnyPermission reports whether the user's set intersects the requested
// set. An empty request is vacuously true.
func (s *RBACService) HasAnyPermission(ctx context.Context, userID string, permissions []string) (bool, error) {
	if len(permissions) == 0 {
		return true, nil
	}
	held, err := s.permissionSet(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, p := range permissions {
		if _, ok := held[p]; ok {
			return true, nil
		}
	}
	return false, nil
}

// HasAllPermissions reports whether the requested set is a subset of the
// user's set. An empty request is vacuously true.
func (s *RBACService) HasAllPermissions(ctx context.Context, userID string, permissions []string) (bool, error) {
	if len(permissions) == 0 {
		return true, nil
	}
	held, err := s.permissionSet(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, p := range permissions {
		if _, ok := held[p]; !ok {
			return false, nil
		}
	}
	return true, nil
}

// Authorize evaluates a requirement for the user. Fail-closed: a resolver
// failure denies with ErrForbidden, never defaults to allow.
func (s *RBACService) Authorize(ctx context.Context, userID string, req PermissionRequirement) error {
	if req.Empty() {
		return nil
	}
	if userID == "" {
		return ErrForbidden
	}

	var (
		ok  bool
		err error
	)
	if req.all {
		ok, err = s.HasAllPermissions(ctx, userID, req.perms)
	} else {
		ok, err = s.HasAnyPermission(ctx, userID, req.perms)
	}
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Str("required", req.String()).Msg("permission resolution failed")
		return ErrForbidden
	}
	if !ok {
		return fmt.Errorf("%w: required %s", ErrForbidden, req.String())
	}
	return nil
}

func (s *RBACService) CreateRole(ctx context.Context, name string, description string) (models.Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Role{}, fmt.Errorf("role name required")
	}

	role := models.Role{
		ID:          ids.New(),
		Name:        name,
		Description: description,
	}
	if err := s.store.CreateRole(ctx, role); err != nil {
		if errors.Is(err, repository.ErrDuplicateName) {
			return models.Role{}, ErrConflict
		}
		return models.Role{}, err
	}
	return role, nil
}

func (s *RBACService) CreatePermission(ctx context.Context, name string, description string) (models.Permission, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Permission{}, fmt.Errorf("permission name required")
	}

	perm := models.Permission{
		ID:          ids.New(),
		Name:        name,
		Description: description,
	}
	if err := s.store.CreatePermission(ctx, perm); err != nil {
		if errors.Is(err, repository.ErrDuplicateName) {
			return models.Permission{}, ErrConflict
		}
		return models.Permission{}, err
	}
	return perm, nil
}

// AssignRoleToUser points the user at a new role. Missing role and missing
// user both resolve to ErrNotFound.
func (s *RBACService) AssignRoleToUser(ctx context.Context, userID string, roleID string) error {
	if _, err := s.store.GetRoleByID(ctx, roleID); err != nil {
		if errors.Is(err, repository.ErrRoleNotFound) {
			return fmt.Errorf("%w: role %s", ErrNotFound, roleID)
		}
		return err
	}

	if err := s.users.SetRole(ctx, userID, roleID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return fmt.Errorf("%w: user %s", ErrNotFound, userID)
		}
		return err
	}

	s.cacheInvalidate(ctx, userID)
	return nil
}

// GrantPermissionToRole adds a permission to a role's set. Idempotent on
// repeat grants. Users holding the role pick the change up once their cached
// set expires.
func (s *RBACService) GrantPermissionToRole(ctx context.Context, roleID string, permissionID string) error {
	if _, err := s.store.GetRoleByID(ctx, roleID); err != nil {
		if errors.Is(err, repository.ErrRoleNotFound) {
			return fmt.Errorf("%w: role %s", ErrNotFound, roleID)
		}
		return err
	}
	if err := s.store.GrantPermission(ctx, roleID, permissionID); err != nil {
		if errors.Is(err, repository.ErrPermissionNotFound) {
			return fmt.Errorf("%w: permission %s", ErrNotFound, permissionID)
		}
		return err
	}
	return nil
}

// GetRolePermissions returns a role's permission names; an unknown role is
// the empty set, not an error.
func (s *RBACService) GetRolePermissions(ctx context.Context, roleName string) ([]string, error) {
	return s.store.PermissionsForRole(ctx, roleName)
}

func (s *RBACService) ListRoles(ctx context.Context) ([]models.Role, error) {
	return s.store.ListRoles(ctx)
}

func (s *RBACService) ListPermissions(ctx context.Context) ([]models.Permission, error) {
	return s.store.ListPermissions(ctx)
}

func (s *RBACService) permissionSet(ctx context.Context, userID string) (map[string]struct{}, error) {
	perms, err := s.GetUserPermissions(ctx, userID)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set, nil
}

func permCacheKey(userID string) string {
	return "perms:" + userID
}

func (s *RBACService) cacheGet(ctx context.Context, userID string) ([]string, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, permCacheKey(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.log.Debug().Err(err).Msg("permission cache read failed")
		}
		return nil, false
	}
	var perms []string
	if err := json.Unmarshal(raw, &perms); err != nil {
		return nil, false
	}
	return perms, true
}

func (s *RBACService) cacheSet(ctx context.Context, userID string, perms []string) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(perms)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, permCacheKey(userID), raw, s.cacheTTL).Err(); err != nil {
		s.log.Debug().Err(err).Msg("permission cache write failed")
	}
}

func (s *RBACService) cacheInvalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, permCacheKey(userID)).Err(); err != nil {
		s.log.Debug().Err(err).Msg("permission cache invalidate failed")
	}
}
