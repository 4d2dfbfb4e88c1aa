package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/MrEthical07/fastauth"
	"github.com/MrEthical07/fastauth/middleware"
	"github.com/MrEthical07/fastauth/store"
)

// Engine is the subset of *fastauth.Engine the handlers call.
type Engine interface {
	Register(ctx context.Context, req fastauth.RegisterRequest) (*fastauth.AuthResult, error)
	Login(ctx context.Context, req fastauth.LoginRequest) (*fastauth.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*fastauth.AuthResult, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context, userID string) (int64, error)
	ValidateAccessToken(ctx context.Context, token string) (*fastauth.Claims, error)
	User(ctx context.Context, userID string) (*store.User, error)
	ChangePassword(ctx context.Context, userID, current, next string) error
}

const claimsKey = "fastauth.claims"

type Handler struct {
	engine Engine
	logger zerolog.Logger
}

func NewHandler(engine Engine, logger zerolog.Logger) *Handler {
	return &Handler{engine: engine, logger: logger}
}

// Routes mounts the endpoints on r.
func (h *Handler) Routes(r gin.IRouter) {
	r.Use(h.requestMeta())
	r.POST("/register", h.register)
	r.POST("/login", h.login)
	r.POST("/refresh", h.refresh)
	r.POST("/logout", h.logout)

	authed := r.Group("", h.RequireAuth())
	authed.POST("/logout-all", h.logoutAll)
	authed.POST("/password", h.changePassword)
	authed.GET("/me", h.me)
}

// NewRouter returns a gin engine in release mode with recovery, request
// logging and the auth routes.
func NewRouter(engine Engine, logger zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	NewHandler(engine, logger).Routes(r)
	return r
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type changePasswordRequest struct {
	Current string `json:"current_password"`
	New     string `json:"new_password"`
}

func (h *Handler) register(c *gin.Context) {
	var req fastauth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "malformed_body", "request body must be JSON")
		return
	}
	res, err := h.engine.Register(c.Request.Context(), req)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	respondCreated(c, tokenResponse(res))
}

func (h *Handler) login(c *gin.Context) {
	var req fastauth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "malformed_body", "request body must be JSON")
		return
	}
	res, err := h.engine.Login(c.Request.Context(), req)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	respondOK(c, tokenResponse(res))
}

func (h *Handler) refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "malformed_body", "request body must be JSON")
		return
	}
	res, err := h.engine.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	respondOK(c, tokenResponse(res))
}

func (h *Handler) logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "malformed_body", "request body must be JSON")
		return
	}
	if err := h.engine.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		respondEngineError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) logoutAll(c *gin.Context) {
	claims := ClaimsFrom(c)
	n, err := h.engine.LogoutAll(c.Request.Context(), claims.UserID)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	respondOK(c, gin.H{"removed": n})
}

func (h *Handler) changePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "malformed_body", "request body must be JSON")
		return
	}
	claims := ClaimsFrom(c)
	if err := h.engine.ChangePassword(c.Request.Context(), claims.UserID, req.Current, req.New); err != nil {
		respondEngineError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) me(c *gin.Context) {
	claims := ClaimsFrom(c)
	u, err := h.engine.User(c.Request.Context(), claims.UserID)
	if err != nil {
		respondEngineError(c, err)
		return
	}
	respondOK(c, userResponse(u))
}

// RequireAuth validates the bearer token and stores the claims for
// [ClaimsFrom]. Token parsing and the challenge header match
// [middleware.Guard].
func (h *Handler) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := middleware.BearerToken(c.Request)
		if !ok {
			c.Header("WWW-Authenticate", middleware.Challenge(nil))
			respondError(c, http.StatusUnauthorized, "missing_token", "bearer token required")
			return
		}
		claims, err := h.engine.ValidateAccessToken(c.Request.Context(), token)
		if err != nil {
			c.Header("WWW-Authenticate", middleware.Challenge(err))
			respondEngineError(c, err)
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// ClaimsFrom returns the claims stored by RequireAuth, or an empty value.
func ClaimsFrom(c *gin.Context) *fastauth.Claims {
	if v, ok := c.Get(claimsKey); ok {
		if claims, ok := v.(*fastauth.Claims); ok {
			return claims
		}
	}
	return &fastauth.Claims{}
}

func (h *Handler) requestMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(middleware.WithRequestMeta(c.Request))
		c.Next()
	}
}

func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := logger.Info()
		switch {
		case status >= 500:
			ev = logger.Error()
		case status >= 400:
			ev = logger.Warn()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("request")
	}
}
