package project

import (
	"time"

	"github.com/google/uuid"

	"github.com/projecthub/server/internal/model"
	"github.com/projecthub/server/internal/module/query"
)

// CreateProjectRequest represents a request to create a project.
type CreateProjectRequest struct {
	Name        string              `json:"name" binding:"required,max=100"`
	Description string              `json:"description" binding:"required,max=500"`
	Status      model.ProjectStatus `json:"status" binding:"omitempty,oneof=planning active on-hold completed cancelled"`
	Priority    model.Priority      `json:"priority" binding:"omitempty,oneof=low medium high critical"`
	StartDate   time.Time           `json:"start_date" binding:"required"`
	EndDate     time.Time           `json:"end_date" binding:"required"`
	Budget      *float64            `json:"budget" binding:"omitempty,gte=0"`
	Tags        []string            `json:"tags"`
	Progress    int                 `json:"progress" binding:"gte=0,lte=100"`
}

// UpdateProjectRequest represents a partial project update. Nil fields are left unchanged.
type UpdateProjectRequest struct {
	Name        *string              `json:"name" binding:"omitempty,max=100"`
	Description *string              `json:"description" binding:"omitempty,max=500"`
	Status      *model.ProjectStatus `json:"status" binding:"omitempty,oneof=planning active on-hold completed cancelled"`
	Priority    *model.Priority      `json:"priority" binding:"omitempty,oneof=low medium high critical"`
	StartDate   *time.Time           `json:"start_date"`
	EndDate     *time.Time           `json:"end_date"`
	Budget      *float64             `json:"budget" binding:"omitempty,gte=0"`
	Tags        []string             `json:"tags"`
	Progress    *int                 `json:"progress" binding:"omitempty,gte=0,lte=100"`
}

// AddTeamMemberRequest represents a request to add a user to a project team.
type AddTeamMemberRequest struct {
	UserID uuid.UUID      `json:"user_id" binding:"required"`
	Role   model.TeamRole `json:"role" binding:"omitempty,oneof=member lead viewer"`
}

// ListProjectsQuery holds the list query string.
type ListProjectsQuery struct {
	Status   model.ProjectStatus `form:"status" binding:"omitempty,oneof=planning active on-hold completed cancelled"`
	Priority model.Priority      `form:"priority" binding:"omitempty,oneof=low medium high critical"`
	Search   string              `form:"search"`
}

// Filter converts the query into a list filter.
func (q ListProjectsQuery) Filter() query.ProjectFilter {
	return query.ProjectFilter{Status: q.Status, Priority: q.Priority, Search: q.Search}
}

// Detail is a project together with its tasks.
type Detail struct {
	*model.Project
	Tasks []*model.Task `json:"tasks"`
}

// Analytics summarizes the tasks of a project.
type Analytics struct {
	TotalTasks          int     `json:"total_tasks"`
	CompletedTasks      int     `json:"completed_tasks"`
	InProgressTasks     int     `json:"in_progress_tasks"`
	ReviewTasks         int     `json:"review_tasks"`
	TodoTasks           int     `json:"todo_tasks"`
	OverdueTasks        int     `json:"overdue_tasks"`
	TotalEstimatedHours float64 `json:"total_estimated_hours"`
	TotalActualHours    float64 `json:"total_actual_hours"`
	Progress            int     `json:"progress"`
}
