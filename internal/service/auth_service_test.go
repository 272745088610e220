package service

import (
	"context"
	"errors"
	"testing"

	"craftquote/api/internal/models"
)

func TestRegisterAssignsDefaultRole(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	result, err := env.auth.Register(ctx, RegisterInput{
		Email:    "New@Example.com",
		Password: "long enough password",
		FullName: "New User",
	}, SessionMetadata{})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if result.User.Email != "new@example.com" {
		t.Fatalf("email not normalized: %s", result.User.Email)
	}
	if result.User.RoleName != models.RoleViewer {
		t.Fatalf("expected default role %s, got %s", models.RoleViewer, result.User.RoleName)
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Fatalf("registration must open a session: %+v", result.TokenPair)
	}

	// the VIEWER role was created on demand and is reused afterwards
	if _, err := env.rbacData.GetRoleByName(ctx, models.RoleViewer); err != nil {
		t.Fatalf("default role missing after register: %v", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	input := RegisterInput{Email: "dup@example.com", Password: "long enough password"}
	if _, err := env.auth.Register(ctx, input, SessionMetadata{}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := env.auth.Register(ctx, input, SessionMetadata{}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestLoginWrongPasswordAndUnknownEmailFailIdentically(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	if _, err := env.auth.Register(ctx, RegisterInput{
		Email:    "known@example.com",
		Password: "correct password!",
	}, SessionMetadata{}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, wrongPw := env.auth.Login(ctx, LoginInput{Email: "known@example.com", Password: "not it"}, SessionMetadata{})
	_, unknown := env.auth.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "not it"}, SessionMetadata{})

	if !errors.Is(wrongPw, ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected ErrInvalidCredentials, got %v", wrongPw)
	}
	if !errors.Is(unknown, ErrInvalidCredentials) {
		t.Fatalf("unknown email: expected ErrInvalidCredentials, got %v", unknown)
	}
	if wrongPw.Error() != unknown.Error() {
		t.Fatalf("error messages differ: %q vs %q", wrongPw, unknown)
	}
}

func TestLoginSuccessThenRefresh(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	if _, err := env.auth.Register(ctx, RegisterInput{
		Email:    "user@example.com",
		Password: "correct password!",
	}, SessionMetadata{}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	result, err := env.auth.Login(ctx, LoginInput{Email: "user@example.com", Password: "correct password!"}, SessionMetadata{UserAgent: "browser"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	pair, err := env.auth.Refresh(ctx, result.RefreshToken, SessionMetadata{})
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if pair.RefreshToken == result.RefreshToken {
		t.Fatalf("refresh must rotate the token")
	}
}

func TestLogoutAllLeavesOtherUsersAlone(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	a, err := env.auth.Register(ctx, RegisterInput{Email: "a@example.com", Password: "password-a!"}, SessionMetadata{})
	if err != nil {
		t.Fatalf("Register a: %v", err)
	}
	b, err := env.auth.Register(ctx, RegisterInput{Email: "b@example.com", Password: "password-b!"}, SessionMetadata{})
	if err != nil {
		t.Fatalf("Register b: %v", err)
	}

	if err := env.auth.LogoutAll(ctx, a.User.ID); err != nil {
		t.Fatalf("LogoutAll: %v", err)
	}

	if _, err := env.auth.Refresh(ctx, a.RefreshToken, SessionMetadata{}); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("a's refresh token must be dead, got %v", err)
	}
	if _, err := env.auth.Refresh(ctx, b.RefreshToken, SessionMetadata{}); err != nil {
		t.Fatalf("b's refresh token must still work: %v", err)
	}
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	reg, err := env.auth.Register(ctx, RegisterInput{Email: "u@example.com", Password: "old password!!"}, SessionMetadata{})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := env.auth.ChangePassword(ctx, reg.User.ID, "wrong", "new password!!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong current password: expected ErrInvalidCredentials, got %v", err)
	}

	if err := env.auth.ChangePassword(ctx, reg.User.ID, "old password!!", "new password!!"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}

	if _, err := env.auth.Refresh(ctx, reg.RefreshToken, SessionMetadata{}); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("old refresh token must die with the password, got %v", err)
	}
	if _, err := env.auth.Login(ctx, LoginInput{Email: "u@example.com", Password: "old password!!"}, SessionMetadata{}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password must no longer log in, got %v", err)
	}
	if _, err := env.auth.Login(ctx, LoginInput{Email: "u@example.com", Password: "new password!!"}, SessionMetadata{}); err != nil {
		t.Fatalf("new password must log in: %v", err)
	}
}

func TestRegisteredViewerCanReadButNotCreate(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	reg, err := env.auth.Register(ctx, RegisterInput{Email: "v@example.com", Password: "viewer password"}, SessionMetadata{})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	role, err := env.rbacData.GetRoleByName(ctx, models.RoleViewer)
	if err != nil {
		t.Fatalf("GetRoleByName: %v", err)
	}
	perm, err := env.rbac.CreatePermission(ctx, "quotes:read", "")
	if err != nil {
		t.Fatalf("CreatePermission: %v", err)
	}
	if err := env.rbac.GrantPermissionToRole(ctx, role.ID, perm.ID); err != nil {
		t.Fatalf("GrantPermissionToRole: %v", err)
	}

	if err := env.rbac.Authorize(ctx, reg.User.ID, AnyOf("quotes:read")); err != nil {
		t.Fatalf("viewer should read quotes: %v", err)
	}
	if err := env.rbac.Authorize(ctx, reg.User.ID, AnyOf("quotes:create")); !errors.Is(err, ErrForbidden) {
		t.Fatalf("viewer must not create quotes, got %v", err)
	}
}

func TestProfileNotFound(t *testing.T) {
	env := newTestEnv()

	if _, err := env.auth.Profile(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
