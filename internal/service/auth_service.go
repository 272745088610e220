package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"craftquote/api/internal/ids"
	"craftquote/api/internal/models"
	"craftquote/api/internal/repository"
	"craftquote/api/internal/security"
)

// AuthService is the front door: registration, login and the pass-throughs
// to the session lifecycle.
type AuthService struct {
	users    UserStore
	rbac     RBACStore
	sessions *SessionService
	log      zerolog.Logger
}

func NewAuthService(users UserStore, rbac RBACStore, sessions *SessionService, log zerolog.Logger) *AuthService {
	return &AuthService{
		users:    users,
		rbac:     rbac,
		sessions: sessions,
		log:      log,
	}
}

type RegisterInput struct {
	Email    string
	Password string
	FullName string
}

type AuthResult struct {
	TokenPair
	User models.User
}

// Register creates a user under the default VIEWER role and opens their
// first session. A taken email fails with ErrConflict.
func (s *AuthService) Register(ctx context.Context, input RegisterInput, meta SessionMetadata) (AuthResult, error) {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	if input.Email == "" || input.Password == "" {
		return AuthResult{}, fmt.Errorf("email and password required")
	}

	if _, err := s.users.FindByEmail(ctx, input.Email); err == nil {
		return AuthResult{}, fmt.Errorf("%w: email", ErrConflict)
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return AuthResult{}, err
	}

	role, err := s.ensureDefaultRole(ctx)
	if err != nil {
		return AuthResult{}, err
	}

	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		return AuthResult{}, err
	}

	user := models.User{
		ID:           ids.New(),
		Email:        input.Email,
		PasswordHash: passwordHash,
		FullName:     input.FullName,
		RoleID:       role.ID,
		RoleName:     role.Name,
	}

	if err := s.users.Create(ctx, user); err != nil {
		// a concurrent registration can slip past the pre-check
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return AuthResult{}, fmt.Errorf("%w: email", ErrConflict)
		}
		return AuthResult{}, err
	}

	tokens, err := s.sessions.CreateSession(ctx, user.ID, meta)
	if err != nil {
		return AuthResult{}, err
	}

	return AuthResult{TokenPair: tokens, User: user}, nil
}

type LoginInput struct {
	Email    string
	Password string
}

// Login verifies credentials and opens a session. Unknown email and wrong
// password fail with the same error and the same external message.
func (s *AuthService) Login(ctx context.Context, input LoginInput, meta SessionMetadata) (AuthResult, error) {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))

	user, err := s.users.FindByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, err
	}

	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil || !ok {
		return AuthResult{}, ErrInvalidCredentials
	}

	tokens, err := s.sessions.CreateSession(ctx, user.ID, meta)
	if err != nil {
		return AuthResult{}, err
	}

	return AuthResult{TokenPair: tokens, User: user}, nil
}

// Refresh exchanges a refresh token for a new pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta SessionMetadata) (TokenPair, error) {
	return s.sessions.RefreshTokens(ctx, refreshToken, meta)
}

// Logout revokes the presented refresh token. Idempotent.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.sessions.RevokeSession(ctx, refreshToken)
}

// LogoutAll revokes every session of the user. Idempotent.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) error {
	return s.sessions.RevokeAllUserSessions(ctx, userID)
}

// Profile returns the subject's record for display.
func (s *AuthService) Profile(ctx context.Context, userID string) (models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

// ChangePassword verifies the current password, stores the new hash and
// revokes every session so stolen refresh tokens die with the old password.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrNotFound
		}
		return err
	}

	ok, err := security.VerifyPassword(currentPassword, user.PasswordHash)
	if err != nil || !ok {
		return ErrInvalidCredentials
	}

	newHash, err := security.HashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := s.users.UpdatePassword(ctx, userID, newHash); err != nil {
		return err
	}

	if err := s.sessions.RevokeAllUserSessions(ctx, userID); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("session revocation after password change failed")
	}
	return nil
}

// ListUsers backs the users:read admin surface.
func (s *AuthService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.users.List(ctx)
}

func (s *AuthService) ensureDefaultRole(ctx context.Context) (models.Role, error) {
	role, err := s.rbac.GetRoleByName(ctx, models.RoleViewer)
	if err == nil {
		return role, nil
	}
	if !errors.Is(err, repository.ErrRoleNotFound) {
		return models.Role{}, err
	}

	role = models.Role{
		ID:          ids.New(),
		Name:        models.RoleViewer,
		Description: "Default viewer role",
	}
	if err := s.rbac.CreateRole(ctx, role); err != nil {
		if errors.Is(err, repository.ErrDuplicateName) {
			return s.rbac.GetRoleByName(ctx, models.RoleViewer)
		}
		return models.Role{}, err
	}
	return role, nil
}
