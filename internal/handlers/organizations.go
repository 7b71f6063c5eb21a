package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/orgnest/orgnest/internal/middleware"
	"github.com/orgnest/orgnest/internal/storage"
	"github.com/orgnest/orgnest/internal/tasks"
)

// OrganizationStore is the slice of the document store the organization
// routes need.
type OrganizationStore interface {
	Create(ctx context.Context, org *storage.Organization) error
	GetByID(ctx context.Context, id string) (*storage.Organization, error)
	List(ctx context.Context) ([]storage.Organization, error)
	UpdateFields(ctx context.Context, id string, fields map[string]string) (*storage.Organization, error)
	Delete(ctx context.Context, id string) error
	AddMember(ctx context.Context, id string, member storage.Member) error
}

// UserLookup resolves invitees.
type UserLookup interface {
	FindByEmail(ctx context.Context, email string) (*storage.User, error)
}

// OrganizationHandler is conventional CRUD glue around the document store
// plus invitation dispatch. All routes sit behind the auth guard.
type OrganizationHandler struct {
	Store OrganizationStore
	Users UserLookup
	Queue tasks.Enqueuer
	Log   *zap.Logger
}

type organizationCreateRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description" binding:"required"`
}

// organizationUpdateRequest is the explicit allow-list of client-mutable
// fields; nothing else on the document can be patched from the outside.
type organizationUpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type inviteRequest struct {
	UserEmail string `json:"user_email" binding:"required,email"`
}

func (h *OrganizationHandler) Register(r *gin.Engine, guard gin.HandlerFunc) {
	orgs := r.Group("/organizations", guard)
	orgs.POST("", h.Create)
	orgs.GET("", h.List)
	orgs.GET("/:id", h.Get)
	orgs.PUT("/:id", h.Update)
	orgs.DELETE("/:id", h.Delete)
	orgs.POST("/:id/invite", h.Invite)
}

func (h *OrganizationHandler) Create(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Could not validate credentials"})
		return
	}

	var req organizationCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid payload"})
		return
	}

	org := &storage.Organization{
		Name:        req.Name,
		Description: req.Description,
		Members: []storage.Member{{
			UserID:      user.ID,
			Email:       user.Email,
			AccessLevel: "admin",
		}},
	}

	if err := h.Store.Create(c.Request.Context(), org); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Organization name already exists"})
			return
		}
		h.fail(c, "create organization", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": org.ID.Hex()})
}

func (h *OrganizationHandler) Get(c *gin.Context) {
	org, err := h.Store.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Organization not found"})
			return
		}
		h.fail(c, "get organization", err)
		return
	}
	c.JSON(http.StatusOK, org)
}

func (h *OrganizationHandler) List(c *gin.Context) {
	orgs, err := h.Store.List(c.Request.Context())
	if err != nil {
		h.fail(c, "list organizations", err)
		return
	}
	c.JSON(http.StatusOK, orgs)
}

func (h *OrganizationHandler) Update(c *gin.Context) {
	var req organizationUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid payload"})
		return
	}

	fields := map[string]string{}
	if req.Name != nil {
		fields["name"] = *req.Name
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}

	org, err := h.Store.UpdateFields(c.Request.Context(), c.Param("id"), fields)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Organization not found"})
			return
		}
		h.fail(c, "update organization", err)
		return
	}
	c.JSON(http.StatusOK, org)
}

func (h *OrganizationHandler) Delete(c *gin.Context) {
	if err := h.Store.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Organization not found"})
			return
		}
		h.fail(c, "delete organization", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Organization deleted successfully"})
}

func (h *OrganizationHandler) Invite(c *gin.Context) {
	inviter, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Could not validate credentials"})
		return
	}

	var req inviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid payload"})
		return
	}

	ctx := c.Request.Context()

	org, err := h.Store.GetByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Organization not found"})
			return
		}
		h.fail(c, "invite lookup", err)
		return
	}

	invited, err := h.Users.FindByEmail(ctx, req.UserEmail)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "User not found"})
			return
		}
		h.fail(c, "invite user lookup", err)
		return
	}

	if org.HasMember(invited.ID) {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "User is already a member of this organization"})
		return
	}

	err = h.Store.AddMember(ctx, c.Param("id"), storage.Member{
		UserID:      invited.ID,
		Email:       invited.Email,
		AccessLevel: "member",
	})
	if err != nil {
		h.fail(c, "invite add member", err)
		return
	}

	// Membership is already persisted; a queue hiccup only costs the
	// notification.
	if h.Queue != nil {
		err := h.Queue.EnqueueInvitation(ctx, tasks.InvitationEmailPayload{
			OrganizationName: org.Name,
			InvitedEmail:     invited.Email,
			InviterEmail:     inviter.Email,
		})
		if err != nil {
			h.Log.Warn("invitation email enqueue failed",
				zap.String("organization", org.Name),
				zap.String("invited", invited.Email),
				zap.Error(err),
			)
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "User invited successfully"})
}

func (h *OrganizationHandler) fail(c *gin.Context, op string, err error) {
	h.Log.Error("organization handler failure", zap.String("op", op), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal error"})
}
