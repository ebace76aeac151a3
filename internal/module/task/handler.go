package task

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/projecthub/server/internal/model"
	apperrors "github.com/projecthub/server/internal/shared/errors"
	"github.com/projecthub/server/internal/shared/middleware"
	"github.com/projecthub/server/internal/shared/response"
)

// Handler handles HTTP requests for tasks.
type Handler struct {
	service *Service
}

// NewHandler creates a new task handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers task routes. createLimit runs in front of the
// create endpoint only.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, createLimit ...gin.HandlerFunc) {
	handlers := append([]gin.HandlerFunc{}, createLimit...)
	handlers = append(handlers, h.Create)

	tasks := r.Group("/tasks")
	{
		tasks.GET("", h.List)
		tasks.POST("", handlers...)
		tasks.GET("/:id", h.Get)
		tasks.PUT("/:id", h.Update)
		tasks.DELETE("/:id", h.Delete)
		tasks.POST("/:id/comments", h.AddComment)
	}
}

// List handles GET /tasks.
//
//	@Summary		List tasks
//	@Tags			Tasks
//	@Produce		json
//	@Security		BearerAuth
//	@Param			project		query		string	false	"Filter by project ID"
//	@Param			status		query		string	false	"Filter by status"
//	@Param			priority	query		string	false	"Filter by priority"
//	@Param			assignedTo	query		string	false	"Filter by assignee ID"
//	@Param			search		query		string	false	"Search title and description"
//	@Success		200			{object}	response.Envelope{data=[]model.Task}
//	@Failure		401			{object}	response.Envelope
//	@Router			/tasks [get]
func (h *Handler) List(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var q ListTasksQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	tasks, err := h.service.List(c.Request.Context(), p, q.Filter())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, tasks)
}

// Get handles GET /tasks/:id.
func (h *Handler) Get(c *gin.Context) {
	p, id, ok := principalAndID(c)
	if !ok {
		return
	}

	task, err := h.service.Get(c.Request.Context(), p, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, task)
}

// Create handles POST /tasks.
//
//	@Summary		Create task
//	@Tags			Tasks
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		CreateTaskRequest	true	"Create task request"
//	@Success		201		{object}	response.Envelope{data=model.Task}
//	@Failure		422		{object}	response.Envelope
//	@Router			/tasks [post]
func (h *Handler) Create(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	task, err := h.service.Create(c.Request.Context(), p, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusCreated, task)
}

// Update handles PUT /tasks/:id.
func (h *Handler) Update(c *gin.Context) {
	p, id, ok := principalAndID(c)
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	task, err := h.service.Update(c.Request.Context(), p, id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, task)
}

// Delete handles DELETE /tasks/:id.
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

// AddComment handles POST /tasks/:id/comments.
//
//	@Summary		Comment on task
//	@Tags			Tasks
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string				true	"Task ID"
//	@Param			request	body		AddCommentRequest	true	"Comment"
//	@Success		200		{object}	response.Envelope{data=model.Task}
//	@Router			/tasks/{id}/comments [post]
func (h *Handler) AddComment(c *gin.Context) {
	p, id, ok := principalAndID(c)
	if !ok {
		return
	}

	var req AddCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	task, err := h.service.AddComment(c.Request.Context(), p, id, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, http.StatusOK, task)
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
		response.Error(c, apperrors.NotFound("task"))
		return p, uuid.Nil, false
	}
	return p, id, true
}
