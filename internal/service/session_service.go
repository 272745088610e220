package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"craftquote/api/internal/config"
	"craftquote/api/internal/ids"
	"craftquote/api/internal/models"
	"craftquote/api/internal/repository"
	"craftquote/api/internal/security"
)

// SessionService owns the refresh-token lifecycle. Refresh tokens are opaque
// and storage-checked so they stay revocable; access tokens are signed and
// never looked up, bounding the cost of per-request authorization. Revoking a
// refresh token cannot recall an access token already in flight; that window
// is capped by the short access TTL.
type SessionService struct {
	users    UserStore
	sessions SessionStore
	cfg      *config.AppConfig
	log      zerolog.Logger
}

func NewSessionService(users UserStore, sessions SessionStore, cfg *config.AppConfig, log zerolog.Logger) *SessionService {
	return &SessionService{
		users:    users,
		sessions: sessions,
		cfg:      cfg,
		log:      log,
	}
}

// SessionMetadata is optional client context recorded with a session.
type SessionMetadata struct {
	UserAgent string
	IPAddress string
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// CreateSession persists a new session row for the user and returns a fresh
// token pair. The caller vouches that userID came from a trusted path (a
// verified password or a rotated refresh token).
func (s *SessionService) CreateSession(ctx context.Context, userID string, meta SessionMetadata) (TokenPair, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return TokenPair{}, ErrUnauthenticated
		}
		return TokenPair{}, err
	}

	refreshToken, refreshHash, err := security.GenerateRefreshToken(s.cfg.Security.RefreshTokenBytes)
	if err != nil {
		return TokenPair{}, err
	}

	session := models.Session{
		ID:               ids.New(),
		UserID:           user.ID,
		RefreshTokenHash: refreshHash,
		UserAgent:        meta.UserAgent,
		IPAddress:        meta.IPAddress,
		ExpiresAt:        time.Now().Add(s.cfg.Security.RefreshTokenTTL),
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return TokenPair{}, err
	}

	accessToken, err := security.GenerateAccessToken(
		s.cfg.Security.JWTSecret,
		user.ID,
		user.Email,
		user.RoleName,
		s.cfg.Security.AccessTokenTTL,
	)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// RefreshTokens exchanges a refresh token for a new pair, rotating the
// session row in place. The old token value is dead the moment the rotation
// commits; when two callers race with the same token, the conditional update
// lets exactly one through and the other fails as if the token were unknown.
func (s *SessionService) RefreshTokens(ctx context.Context, refreshToken string, meta SessionMetadata) (TokenPair, error) {
	currentHash := security.HashRefreshToken(refreshToken)

	session, err := s.sessions.FindByTokenHash(ctx, currentHash)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return TokenPair{}, ErrUnauthenticated
		}
		return TokenPair{}, err
	}

	if session.ExpiresAt.Before(time.Now()) {
		if err := s.sessions.DeleteByID(ctx, session.ID); err != nil {
			s.log.Warn().Err(err).Str("session_id", session.ID).Msg("delete expired session failed")
		}
		return TokenPair{}, ErrUnauthenticated
	}

	newToken, newHash, err := security.GenerateRefreshToken(s.cfg.Security.RefreshTokenBytes)
	if err != nil {
		return TokenPair{}, err
	}

	expiresAt := time.Now().Add(s.cfg.Security.RefreshTokenTTL)
	if err := s.sessions.Rotate(ctx, session.ID, currentHash, newHash, expiresAt, meta.UserAgent, meta.IPAddress); err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			// lost the rotation race; the presented value is already superseded
			return TokenPair{}, ErrUnauthenticated
		}
		return TokenPair{}, err
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return TokenPair{}, ErrUnauthenticated
		}
		return TokenPair{}, err
	}

	accessToken, err := security.GenerateAccessToken(
		s.cfg.Security.JWTSecret,
		user.ID,
		user.Email,
		user.RoleName,
		s.cfg.Security.AccessTokenTTL,
	)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{AccessToken: accessToken, RefreshToken: newToken}, nil
}

// RevokeSession deletes the session matching the token. Unknown tokens are
// not an error.
func (s *SessionService) RevokeSession(ctx context.Context, refreshToken string) error {
	return s.sessions.DeleteByTokenHash(ctx, security.HashRefreshToken(refreshToken))
}

// RevokeAllUserSessions signs the user out everywhere. Idempotent.
func (s *SessionService) RevokeAllUserSessions(ctx context.Context, userID string) error {
	return s.sessions.DeleteByUser(ctx, userID)
}

// CleanExpiredSessions removes every session past its expiry. Runs from the
// scheduler, safe to overlap with itself and with refresh traffic.
func (s *SessionService) CleanExpiredSessions(ctx context.Context) error {
	deleted, err := s.sessions.DeleteExpired(ctx, time.Now())
	if err != nil {
		return err
	}
	if deleted > 0 {
		s.log.Info().Int64("deleted", deleted).Msg("expired sessions removed")
	}
	return nil
}

// ListUserSessions returns the user's active sessions for display.
func (s *SessionService) ListUserSessions(ctx context.Context, userID string) ([]models.Session, error) {
	return s.sessions.ListByUser(ctx, userID)
}
