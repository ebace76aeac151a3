package task

import (
	"time"

	"github.com/google/uuid"

	"github.com/projecthub/server/internal/model"
	"github.com/projecthub/server/internal/module/query"
)

// CreateTaskRequest represents a request to create a task.
type CreateTaskRequest struct {
	Title          string           `json:"title" binding:"required,max=200"`
	Description    string           `json:"description" binding:"max=2000"`
	ProjectID      uuid.UUID        `json:"project_id" binding:"required"`
	AssignedTo     []uuid.UUID      `json:"assigned_to"`
	Status         model.TaskStatus `json:"status" binding:"omitempty,oneof=todo in-progress review done"`
	Priority       model.Priority   `json:"priority" binding:"omitempty,oneof=low medium high critical"`
	DueDate        *time.Time       `json:"due_date"`
	EstimatedHours float64          `json:"estimated_hours" binding:"gte=0"`
	Tags           []string         `json:"tags"`
}

// UpdateTaskRequest represents a partial task update. Nil fields are left unchanged.
// ClearDueDate removes the due date and wins over DueDate.
type UpdateTaskRequest struct {
	Title          *string           `json:"title" binding:"omitempty,max=200"`
	Description    *string           `json:"description" binding:"omitempty,max=2000"`
	AssignedTo     []uuid.UUID       `json:"assigned_to"`
	Status         *model.TaskStatus `json:"status" binding:"omitempty,oneof=todo in-progress review done"`
	Priority       *model.Priority   `json:"priority" binding:"omitempty,oneof=low medium high critical"`
	DueDate        *time.Time        `json:"due_date"`
	ClearDueDate   bool              `json:"clear_due_date"`
	EstimatedHours *float64          `json:"estimated_hours" binding:"omitempty,gte=0"`
	ActualHours    *float64          `json:"actual_hours" binding:"omitempty,gte=0"`
	Tags           []string          `json:"tags"`
}

// AddCommentRequest represents a comment to append to a task.
type AddCommentRequest struct {
	Text string `json:"text" binding:"required,max=1000"`
}

// ListTasksQuery holds the list query string.
type ListTasksQuery struct {
	Project    string           `form:"project" binding:"omitempty,uuid"`
	Status     model.TaskStatus `form:"status" binding:"omitempty,oneof=todo in-progress review done"`
	Priority   model.Priority   `form:"priority" binding:"omitempty,oneof=low medium high critical"`
	AssignedTo string           `form:"assignedTo" binding:"omitempty,uuid"`
	Search     string           `form:"search"`
}

// Filter converts the query into a list filter. Ids were validated on binding.
func (q ListTasksQuery) Filter() query.TaskFilter {
	f := query.TaskFilter{Status: q.Status, Priority: q.Priority, Search: q.Search}
	if id, err := uuid.Parse(q.Project); err == nil {
		f.Project = id
	}
	if id, err := uuid.Parse(q.AssignedTo); err == nil {
		f.AssignedTo = id
	}
	return f
}
