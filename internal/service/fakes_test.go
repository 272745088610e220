package service

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"craftquote/api/internal/config"
	"craftquote/api/internal/models"
	"craftquote/api/internal/repository"
)

// In-memory stores mirroring the pgx repositories, including their sentinel
// errors and the conditional-update rotation semantics.

type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]models.User
	roles *fakeRBACStore
}

func newFakeUserStore(roles *fakeRBACStore) *fakeUserStore {
	return &fakeUserStore{users: make(map[string]models.User), roles: roles}
}

func (f *fakeUserStore) Create(_ context.Context, user models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserStore) FindByEmail(_ context.Context, email string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (f *fakeUserStore) GetByID(_ context.Context, id string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUserStore) List(_ context.Context) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	users := make([]models.User, 0, len(f.users))
	for _, user := range f.users {
		users = append(users, user)
	}
	return users, nil
}

func (f *fakeUserStore) UpdatePassword(_ context.Context, id string, passwordHash []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = time.Now()
	f.users[id] = user
	return nil
}

func (f *fakeUserStore) SetRole(_ context.Context, id string, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.RoleID = roleID
	if f.roles != nil {
		if role, err := f.roles.GetRoleByID(context.Background(), roleID); err == nil {
			user.RoleName = role.Name
		}
	}
	f.users[id] = user
	return nil
}

type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]models.Session
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[string]models.Session)}
}

func (f *fakeSessionStore) Create(_ context.Context, session models.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	session.CreatedAt = time.Now()
	f.sessions[session.ID] = session
	return nil
}

func (f *fakeSessionStore) FindByTokenHash(_ context.Context, tokenHash []byte) (models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, session := range f.sessions {
		if bytes.Equal(session.RefreshTokenHash, tokenHash) {
			return session, nil
		}
	}
	return models.Session{}, repository.ErrSessionNotFound
}

func (f *fakeSessionStore) Rotate(_ context.Context, id string, currentHash, newHash []byte, expiresAt time.Time, userAgent, ipAddress string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[id]
	if !ok || !bytes.Equal(session.RefreshTokenHash, currentHash) {
		return repository.ErrSessionNotFound
	}
	session.RefreshTokenHash = newHash
	session.ExpiresAt = expiresAt
	if userAgent != "" {
		session.UserAgent = userAgent
	}
	if ipAddress != "" {
		session.IPAddress = ipAddress
	}
	f.sessions[id] = session
	return nil
}

func (f *fakeSessionStore) DeleteByID(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id)
	return nil
}

func (f *fakeSessionStore) DeleteByTokenHash(_ context.Context, tokenHash []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, session := range f.sessions {
		if bytes.Equal(session.RefreshTokenHash, tokenHash) {
			delete(f.sessions, id)
		}
	}
	return nil
}

func (f *fakeSessionStore) DeleteByUser(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, session := range f.sessions {
		if session.UserID == userID {
			delete(f.sessions, id)
		}
	}
	return nil
}

func (f *fakeSessionStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var deleted int64
	for id, session := range f.sessions {
		if session.ExpiresAt.Before(now) {
			delete(f.sessions, id)
			deleted++
		}
	}
	return deleted, nil
}

func (f *fakeSessionStore) ListByUser(_ context.Context, userID string) ([]models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sessions []models.Session
	for _, session := range f.sessions {
		if session.UserID == userID {
			sessions = append(sessions, session)
		}
	}
	return sessions, nil
}

func (f *fakeSessionStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

type fakeRBACStore struct {
	mu     sync.Mutex
	roles  map[string]models.Role
	perms  map[string]models.Permission
	grants map[string]map[string]struct{}
	users  *fakeUserStore
}

func newFakeRBACStore() *fakeRBACStore {
	return &fakeRBACStore{
		roles:  make(map[string]models.Role),
		perms:  make(map[string]models.Permission),
		grants: make(map[string]map[string]struct{}),
	}
}

func (f *fakeRBACStore) CreateRole(_ context.Context, role models.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.roles {
		if existing.Name == role.Name {
			return repository.ErrDuplicateName
		}
	}
	f.roles[role.ID] = role
	return nil
}

func (f *fakeRBACStore) GetRoleByID(_ context.Context, id string) (models.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	role, ok := f.roles[id]
	if !ok {
		return models.Role{}, repository.ErrRoleNotFound
	}
	return role, nil
}

func (f *fakeRBACStore) GetRoleByName(_ context.Context, name string) (models.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, role := range f.roles {
		if role.Name == name {
			return role, nil
		}
	}
	return models.Role{}, repository.ErrRoleNotFound
}

func (f *fakeRBACStore) ListRoles(_ context.Context) ([]models.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	roles := make([]models.Role, 0, len(f.roles))
	for _, role := range f.roles {
		roles = append(roles, role)
	}
	return roles, nil
}

func (f *fakeRBACStore) CreatePermission(_ context.Context, perm models.Permission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.perms {
		if existing.Name == perm.Name {
			return repository.ErrDuplicateName
		}
	}
	f.perms[perm.ID] = perm
	return nil
}

func (f *fakeRBACStore) ListPermissions(_ context.Context) ([]models.Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	perms := make([]models.Permission, 0, len(f.perms))
	for _, perm := range f.perms {
		perms = append(perms, perm)
	}
	return perms, nil
}

func (f *fakeRBACStore) GrantPermission(_ context.Context, roleID string, permissionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.perms[permissionID]; !ok {
		return repository.ErrPermissionNotFound
	}
	if f.grants[roleID] == nil {
		f.grants[roleID] = make(map[string]struct{})
	}
	f.grants[roleID][permissionID] = struct{}{}
	return nil
}

func (f *fakeRBACStore) PermissionsForUser(ctx context.Context, userID string) ([]string, error) {
	user, err := f.users.GetByID(ctx, userID)
	if err != nil {
		return nil, nil
	}
	return f.permissionNames(user.RoleID), nil
}

func (f *fakeRBACStore) PermissionsForRole(_ context.Context, roleName string) ([]string, error) {
	f.mu.Lock()
	roleID := ""
	for id, role := range f.roles {
		if role.Name == roleName {
			roleID = id
		}
	}
	f.mu.Unlock()
	if roleID == "" {
		return nil, nil
	}
	return f.permissionNames(roleID), nil
}

func (f *fakeRBACStore) permissionNames(roleID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for permID := range f.grants[roleID] {
		names = append(names, f.perms[permID].Name)
	}
	return names
}

type testEnv struct {
	cfg      *config.AppConfig
	users    *fakeUserStore
	sessions *fakeSessionStore
	rbacData *fakeRBACStore
	session  *SessionService
	auth     *AuthService
	rbac     *RBACService
}

func newTestEnv() *testEnv {
	cfg := &config.AppConfig{
		Security: config.SecurityConfig{
			JWTSecret:         "unit-test-secret",
			AccessTokenTTL:    15 * time.Minute,
			RefreshTokenTTL:   720 * time.Hour,
			RefreshTokenBytes: 64,
		},
	}

	rbacData := newFakeRBACStore()
	users := newFakeUserStore(rbacData)
	rbacData.users = users
	sessions := newFakeSessionStore()

	logger := zerolog.Nop()
	sessionSvc := NewSessionService(users, sessions, cfg, logger)
	authSvc := NewAuthService(users, rbacData, sessionSvc, logger)
	rbacSvc := NewRBACService(users, rbacData, nil, 0, logger)

	return &testEnv{
		cfg:      cfg,
		users:    users,
		sessions: sessions,
		rbacData: rbacData,
		session:  sessionSvc,
		auth:     authSvc,
		rbac:     rbacSvc,
	}
}

// seedUser inserts a user with a role, bypassing registration.
func (e *testEnv) seedUser(id, email, roleName string, perms ...string) {
	ctx := context.Background()
	role, err := e.rbacData.GetRoleByName(ctx, roleName)
	if err != nil {
		role = models.Role{ID: "role-" + roleName, Name: roleName}
		_ = e.rbacData.CreateRole(ctx, role)
	}
	for _, p := range perms {
		perm := models.Permission{ID: "perm-" + p, Name: p}
		_ = e.rbacData.CreatePermission(ctx, perm)
		_ = e.rbacData.GrantPermission(ctx, role.ID, perm.ID)
	}
	_ = e.users.Create(ctx, models.User{
		ID:       id,
		Email:    email,
		RoleID:   role.ID,
		RoleName: role.Name,
	})
}
