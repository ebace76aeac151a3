package user

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/projecthub/server/internal/model"
	apperrors "github.com/projecthub/server/internal/shared/errors"
	"github.com/projecthub/server/internal/shared/middleware"
	"github.com/projecthub/server/internal/shared/response"
)

// Handler handles HTTP requests for users.
type Handler struct {
	service *Service
}

// NewHandler creates a new user handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the user directory routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	users := r.Group("/users")
	{
		users.GET("", h.List)
		users.GET("/me", h.GetCurrentUser)
		users.GET("/:id", h.Get)
	}
}

// List handles GET /users.
//
//	@Summary		List users
//	@Description	List registered users. Admins and managers only.
//	@Tags			Users
//	@Produce		json
//	@Security		BearerAuth
//	@Param			role	query		string	false	"Filter by role"
//	@Param			search	query		string	false	"Search name and email"
//	@Success		200		{object}	response.Envelope{data=[]model.User}
//	@Failure		401		{object}	response.Envelope
//	@Failure		403		{object}	response.Envelope
//	@Router			/users [get]
func (h *Handler) List(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var q ListUsersQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	users, err := h.service.List(c.Request.Context(), p, q.Filter())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, users)
}

// GetCurrentUser handles GET /users/me.
//
//	@Summary		Get current user
//	@Tags			Users
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	response.Envelope{data=model.User}
//	@Failure		401	{object}	response.Envelope
//	@Router			/users/me [get]
func (h *Handler) GetCurrentUser(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	u, err := h.service.Me(c.Request.Context(), p)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, u)
}

// Get handles GET /users/:id.
//
//	@Summary		Get user
//	@Tags			Users
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"User ID"
//	@Success		200	{object}	response.Envelope{data=model.User}
//	@Failure		401	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Router			/users/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	if _, ok := principal(c); !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperrors.NotFound("user"))
		return
	}

	u, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, u)
}

func principal(c *gin.Context) (model.Principal, bool) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		response.Error(c, apperrors.Unauthorized(""))
	}
	return p, ok
}
