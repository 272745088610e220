package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"craftquote/api/internal/config"
	"craftquote/api/internal/middleware"
	"craftquote/api/internal/repository"
	"craftquote/api/internal/service"
)

type HandlerSet struct {
	log      zerolog.Logger
	cfg      *config.AppConfig
	auth     *service.AuthService
	sessions *service.SessionService
	rbac     *service.RBACService
}

func NewHandlerSet(log zerolog.Logger, db *pgxpool.Pool, cache *redis.Client, cfg *config.AppConfig) HandlerSet {
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	rbacRepo := repository.NewRBACRepository(db)

	sessions := service.NewSessionService(userRepo, sessionRepo, cfg, log)
	auth := service.NewAuthService(userRepo, rbacRepo, sessions, log)
	rbac := service.NewRBACService(userRepo, rbacRepo, cache, cfg.Security.PermissionCacheTTL, log)

	return HandlerSet{
		log:      log,
		cfg:      cfg,
		auth:     auth,
		sessions: sessions,
		rbac:     rbac,
	}
}

// Sessions exposes the session service for out-of-band callers (the sweep
// scheduler).
func (h HandlerSet) Sessions() *service.SessionService {
	return h.sessions
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")

	auth := v1.Group("/auth")
	auth.POST("/register", h.RegisterUser)
	auth.POST("/login", h.Login)
	auth.POST("/refresh", h.Refresh)
	auth.POST("/logout", h.Logout)

	// authentication required, no permission requirement
	me := v1.Group("/auth")
	me.Use(middleware.Auth(h.cfg))
	me.GET("/me", h.Me)
	me.GET("/sessions", h.ListSessions)
	me.POST("/logout-all", h.LogoutAll)
	me.POST("/change-password", h.ChangePassword)

	users := v1.Group("/users")
	users.Use(middleware.Auth(h.cfg))
	users.GET("", h.gated(service.AnyOf("users:read")), h.ListUsers)
	users.GET("/:id", h.gated(service.AnyOf("users:read")), h.GetUser)
	users.PUT("/:id/role", h.gated(service.AllOf("users:update", "roles:read")), h.AssignRole)

	rbac := v1.Group("/rbac")
	rbac.Use(middleware.Auth(h.cfg))
	rbac.GET("/roles", h.gated(service.AnyOf("roles:read")), h.ListRoles)
	rbac.POST("/roles", h.gated(service.AnyOf("roles:create")), h.CreateRole)
	rbac.GET("/roles/:name/permissions", h.gated(service.AnyOf("roles:read")), h.GetRolePermissions)
	rbac.POST("/roles/:id/permissions", h.gated(service.AnyOf("roles:update")), h.GrantPermission)
	rbac.GET("/permissions", h.gated(service.AnyOf("roles:read")), h.ListPermissions)
	rbac.POST("/permissions", h.gated(service.AnyOf("roles:create")), h.CreatePermission)
}

func (h HandlerSet) gated(req service.PermissionRequirement) gin.HandlerFunc {
	return middleware.RequirePermissions(h.rbac, req)
}

// respondError maps the service error taxonomy onto HTTP statuses. Credential
// failures share one message regardless of cause.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials"})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "already_exists"})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
