package project

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/projecthub/server/internal/model"
	apperrors "github.com/projecthub/server/internal/shared/errors"
	"github.com/projecthub/server/internal/shared/middleware"
	"github.com/projecthub/server/internal/shared/response"
)

// Handler handles HTTP requests for projects.
type Handler struct {
	service *Service
}

// NewHandler creates a new project handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers project routes. createLimit runs in front of the
// create endpoint only.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, createLimit ...gin.HandlerFunc) {
	handlers := append([]gin.HandlerFunc{}, createLimit...)
	handlers = append(handlers, h.Create)

	projects := r.Group("/projects")
	{
		projects.GET("", h.List)
		projects.POST("", handlers...)
		projects.GET("/:id", h.Get)
		projects.PUT("/:id", h.Update)
		projects.DELETE("/:id", h.Delete)

		projects.POST("/:id/team", h.AddTeamMember)
		projects.GET("/:id/analytics", h.Analytics)
	}
}

// List handles GET /projects.
//
//	@Summary		List projects
//	@Description	List the projects visible to the caller
//	@Tags			Projects
//	@Produce		json
//	@Security		BearerAuth
//	@Param			status		query		string	false	"Filter by status"
//	@Param			priority	query		string	false	"Filter by priority"
//	@Param			search		query		string	false	"Search name and description"
//	@Success		200		{object}	response.Envelope{data=[]model.Project}
//	@Failure		401		{object}	response.Envelope
//	@Router			/projects [get]
func (h *Handler) List(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var q ListProjectsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	projects, err := h.service.List(c.Request.Context(), p, q.Filter())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, projects)
}

// Get handles GET /projects/:id.
//
//	@Summary		Get project
//	@Tags			Projects
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"Project ID"
//	@Success		200	{object}	response.Envelope{data=Detail}
//	@Failure		401		{object}	response.Envelope
//	@Failure		403		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Router			/projects/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	p, id, ok := principalAndID(c)
	if !ok {
		return
	}

	detail, err := h.service.Get(c.Request.Context(), p, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, detail)
}

// Create handles POST /projects.
//
//	@Summary		Create project
//	@Tags			Projects
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		CreateProjectRequest	true	"Create project request"
//	@Success		201		{object}	response.Envelope{data=model.Project}
//	@Failure		400		{object}	response.Envelope
//	@Failure		403		{object}	response.Envelope
//	@Failure		422		{object}	response.Envelope
//	@Failure		429		{object}	response.Envelope
//	@Router			/projects [post]
func (h *Handler) Create(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	project, err := h.service.Create(c.Request.Context(), p, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusCreated, project)
}

// Update handles PUT /projects/:id.
//
//	@Summary		Update project
//	@Tags			Projects
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string				true	"Project ID"
//	@Param			request	body		UpdateProjectRequest	true	"Fields to change"
//	@Success		200		{object}	response.Envelope{data=model.Project}
//	@Failure		401		{object}	response.Envelope
//	@Failure		403		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Failure		409		{object}	response.Envelope
//	@Router			/projects/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	p, id, ok := principalAndID(c)
	if !ok {
		return
	}

	var req UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	project, err := h.service.Update(c.Request.Context(), p, id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, project)
}

// Delete handles DELETE /projects/:id.
//
//	@Summary		Delete project
//	@Description	Delete a project together with its tasks
//	@Tags			Projects
//	@Security		BearerAuth
//	@Param			id	path		string	true	"Project ID"
//	@Success		200	{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		403		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Router			/projects/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	p, id, ok := principalAndID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), p, id); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{})
}

// AddTeamMember handles POST /projects/:id/team.
//
//	@Summary		Add team member
//	@Tags			Projects
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string				true	"Project ID"
//	@Param			request	body		AddTeamMemberRequest	true	"Member to add"
//	@Success		200		{object}	response.Envelope{data=model.Project}
//	@Failure		401		{object}	response.Envelope
//	@Failure		403		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Failure		422		{object}	response.Envelope
//	@Router			/projects/{id}/team [post]
func (h *Handler) AddTeamMember(c *gin.Context) {
	p, id, ok := principalAndID(c)
	if !ok {
		return
	}

	var req AddTeamMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	project, err := h.service.AddTeamMember(c.Request.Context(), p, id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, project)
}

// Analytics handles GET /projects/:id/analytics.
//
//	@Summary		Project analytics
//	@Tags			Projects
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"Project ID"
//	@Success		200	{object}	response.Envelope{data=Analytics}
//	@Failure		401		{object}	response.Envelope
//	@Failure		403		{object}	response.Envelope
//	@Failure		404		{object}	response.Envelope
//	@Router			/projects/{id}/analytics [get]
func (h *Handler) Analytics(c *gin.Context) {
	p, id, ok := principalAndID(c)
	if !ok {
		return
	}

	analytics, err := h.service.Analytics(c.Request.Context(), p, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, analytics)
}

func principal(c *gin.Context) (model.Principal, bool) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		response.Error(c, apperrors.Unauthorized(""))
	}
	return p, ok
}

func principalAndID(c *gin.Context) (model.Principal, uuid.UUID, bool) {
	p, ok := principal(c)
	if !ok {
		return p, uuid.Nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperrors.NotFound("project"))
		return p, uuid.Nil, false
	}
	return p, id, true
}
