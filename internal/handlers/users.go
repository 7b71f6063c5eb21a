package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/orgnest/orgnest/internal/auth"
	"github.com/orgnest/orgnest/internal/metrics"
	"github.com/orgnest/orgnest/internal/middleware"
	"github.com/orgnest/orgnest/internal/rate"
)

// UserHandler serves signup, the token endpoints and the current-user
// route. All session semantics live in the auth engine; this layer only
// binds requests and maps the error taxonomy onto status codes.
type UserHandler struct {
	Engine  *auth.Engine
	Limiter rate.Limiter
	Metrics *metrics.Metrics
	Log     *zap.Logger
}

type signupRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type userResponse struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (h *UserHandler) Register(r *gin.Engine, guard gin.HandlerFunc) {
	r.POST("/signup", h.Signup)
	r.POST("/token", h.Token)
	r.POST("/refresh-token", h.RefreshToken)

	protected := r.Group("/", guard)
	protected.POST("/revoke-refresh-token", h.RevokeRefreshToken)
	protected.GET("/users/me", h.Me)
}

func (h *UserHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid payload"})
		return
	}

	err := h.Engine.Signup(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.Metrics.Auth("signup", "failure")
		if errors.Is(err, auth.ErrEmailTaken) {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Email already registered"})
			return
		}
		h.fail(c, "signup", err)
		return
	}

	h.Metrics.Auth("signup", "success")
	c.JSON(http.StatusOK, gin.H{"message": "User created successfully"})
}

// Token implements the password grant: credentials arrive as form fields
// with the email in "username".
func (h *UserHandler) Token(c *gin.Context) {
	email := c.PostForm("username")
	pw := c.PostForm("password")
	if email == "" || pw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "username and password are required"})
		return
	}

	if h.Limiter != nil {
		ok, err := h.Limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			h.Log.Warn("login rate limiter unavailable", zap.Error(err))
		}
		if !ok {
			h.Metrics.Auth("login", "rate_limited")
			c.JSON(http.StatusTooManyRequests, gin.H{"detail": "too many login attempts"})
			return
		}
	}

	pair, err := h.Engine.Login(c.Request.Context(), email, pw)
	if err != nil {
		h.Metrics.Auth("login", "failure")
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.Header("WWW-Authenticate", "Bearer")
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "Incorrect username or password"})
			return
		}
		h.fail(c, "login", err)
		return
	}

	h.Metrics.Auth("login", "success")
	c.JSON(http.StatusOK, pair)
}

func (h *UserHandler) RefreshToken(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid payload"})
		return
	}

	pair, err := h.Engine.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.Metrics.Auth("refresh", "failure")
		switch {
		case errors.Is(err, auth.ErrTokenRevoked):
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "Refresh token revoked"})
		case errors.Is(err, auth.ErrInvalidCredentials):
			c.Header("WWW-Authenticate", "Bearer")
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "Could not validate credentials"})
		default:
			h.fail(c, "refresh", err)
		}
		return
	}

	h.Metrics.Auth("refresh", "success")
	c.JSON(http.StatusOK, pair)
}

func (h *UserHandler) RevokeRefreshToken(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Could not validate credentials"})
		return
	}

	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid payload"})
		return
	}

	if err := h.Engine.Revoke(c.Request.Context(), req.RefreshToken, user); err != nil {
		h.Metrics.Auth("revoke", "failure")
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "Invalid refresh token"})
			return
		}
		h.fail(c, "revoke", err)
		return
	}

	h.Metrics.Auth("revoke", "success")
	c.JSON(http.StatusOK, gin.H{"message": "Refresh token revoked"})
}

func (h *UserHandler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Could not validate credentials"})
		return
	}
	c.JSON(http.StatusOK, userResponse{Name: user.Name, Email: user.Email})
}

// fail maps the remaining error classes: store outages become 503, any
// other failure is a logged 500. Nothing crashes the serving process.
func (h *UserHandler) fail(c *gin.Context, op string, err error) {
	if errors.Is(err, auth.ErrUnavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"detail": "Service temporarily unavailable"})
		return
	}
	h.Log.Error("unhandled auth failure", zap.String("op", op), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal error"})
}
