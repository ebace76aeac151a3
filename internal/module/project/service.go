// Package project implements the project command handlers: listing, reading,
// creating, updating and deleting projects, team management and analytics.
package project

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/projecthub/server/internal/model"
	"github.com/projecthub/server/internal/module/access"
	"github.com/projecthub/server/internal/module/query"
	"github.com/projecthub/server/internal/port/outbound"
	apperrors "github.com/projecthub/server/internal/shared/errors"
	"github.com/projecthub/server/internal/shared/events"
)

// Service provides project business logic.
type Service struct {
	store     outbound.EntityStore
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a new project service.
func NewService(store outbound.EntityStore, publisher events.Publisher, logger *zap.Logger) *Service {
	return &Service{
		store:     store,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// List returns the projects p may see that match f, newest first.
func (s *Service) List(ctx context.Context, p model.Principal, f query.ProjectFilter) ([]*model.Project, error) {
	return s.store.Projects().Find(ctx, query.ProjectPredicate(p, f))
}

// Get returns a project with its tasks.
func (s *Service) Get(ctx context.Context, p model.Principal, id uuid.UUID) (*Detail, error) {
	project, err := s.readable(ctx, p, id)
	if err != nil {
		return nil, err
	}

	tasks, err := s.store.Tasks().Find(ctx, query.ProjectTasks(id))
	if err != nil {
		return nil, err
	}
	return &Detail{Project: project, Tasks: tasks}, nil
}

// Create creates a project owned by p. No event is emitted since the room
// cannot have subscribers yet.
func (s *Service) Create(ctx context.Context, p model.Principal, req *CreateProjectRequest) (*model.Project, error) {
	if err := access.AuthorizeCreateProject(p); err != nil {
		return nil, err
	}

	project := &model.Project{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Status:      req.Status,
		Priority:    req.Priority,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Budget:      req.Budget,
		OwnerID:     p.ID,
		Team:        []model.TeamMember{},
		Tags:        req.Tags,
		Progress:    req.Progress,
	}
	if project.Status == "" {
		project.Status = model.ProjectStatusPlanning
	}
	if project.Priority == "" {
		project.Priority = model.PriorityMedium
	}

	if err := validate(project); err != nil {
		return nil, err
	}
	if err := s.store.Projects().Insert(ctx, project); err != nil {
		return nil, err
	}

	s.logger.Info("project created",
		zap.String("project_id", project.ID.String()),
		zap.String("user_id", p.ID.String()),
	)
	return project, nil
}

// Update applies req to a project. Only admins and the owner may update.
func (s *Service) Update(ctx context.Context, p model.Principal, id uuid.UUID, req *UpdateProjectRequest) (*model.Project, error) {
	var updated *model.Project
	err := apperrors.RetryOnConflict(func() error {
		project, err := s.store.Projects().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := access.Authorize(p, project, access.ActionUpdate); err != nil {
			return err
		}

		req.applyTo(project)
		if err := validate(project); err != nil {
			return err
		}
		if err := s.store.Projects().UpdateByID(ctx, project); err != nil {
			return err
		}
		updated = project
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, p, updated.ID, events.Payload{
		EntityID: updated.ID,
		Action:   events.ActionUpdated,
		Summary:  updated.Name,
		Data:     updated.Clone(),
	})
	return updated, nil
}

// Delete removes a project and every task in it. Tasks go first; a failure
// between the two steps leaves orphaned tasks that are no longer reachable
// through any project.
func (s *Service) Delete(ctx context.Context, p model.Principal, id uuid.UUID) error {
	project, err := s.store.Projects().FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := access.Authorize(p, project, access.ActionDelete); err != nil {
		return err
	}

	removed, err := s.store.Tasks().DeleteMany(ctx, query.ProjectTasks(id))
	if err != nil {
		return err
	}
	if err := s.store.Projects().DeleteByID(ctx, id); err != nil {
		s.logger.Error("project delete failed after its tasks were removed",
			zap.String("project_id", id.String()),
			zap.Int64("tasks_deleted", removed),
			zap.Error(err),
		)
		return err
	}

	s.logger.Info("project deleted",
		zap.String("project_id", id.String()),
		zap.String("user_id", p.ID.String()),
		zap.Int64("tasks_deleted", removed),
	)

	s.publish(ctx, p, id, events.Payload{
		EntityID: id,
		Action:   events.ActionDeleted,
		Summary:  project.Name,
		Data:     project,
	})
	return nil
}

// AddTeamMember adds a user to the project team. Adding a user who is already
// on the team fails validation and leaves the team unchanged.
func (s *Service) AddTeamMember(ctx context.Context, p model.Principal, id uuid.UUID, req *AddTeamMemberRequest) (*model.Project, error) {
	role := req.Role
	if role == "" {
		role = model.TeamRoleMember
	}

	var (
		updated *model.Project
		member  model.TeamMember
	)
	err := apperrors.RetryOnConflict(func() error {
		project, err := s.store.Projects().FindByID(ctx, id)
		if err != nil {
			return err
		}
		if err := access.Authorize(p, project, access.ActionManageTeam); err != nil {
			return err
		}
		if !role.IsValid() {
			return apperrors.Validationf("invalid team role %q", role)
		}
		if _, err := s.store.Users().FindByID(ctx, req.UserID); err != nil {
			return err
		}
		if project.HasMember(req.UserID) {
			return apperrors.Validation("user already in team")
		}

		member = model.TeamMember{UserID: req.UserID, Role: role, JoinedAt: s.now().UTC()}
		project.Team = append(project.Team, member)
		if err := s.store.Projects().UpdateByID(ctx, project); err != nil {
			return err
		}
		updated = project
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("team member added",
		zap.String("project_id", id.String()),
		zap.String("user_id", req.UserID.String()),
		zap.String("role", string(role)),
	)

	s.publish(ctx, p, id, events.Payload{
		EntityID: id,
		Action:   events.ActionAdded,
		Summary:  updated.Name,
		Data:     member,
	})
	return updated, nil
}

// Analytics folds the project's tasks into summary counts.
func (s *Service) Analytics(ctx context.Context, p model.Principal, id uuid.UUID) (*Analytics, error) {
	project, err := s.readable(ctx, p, id)
	if err != nil {
		return nil, err
	}

	tasks, err := s.store.Tasks().Find(ctx, query.ProjectTasks(id))
	if err != nil {
		return nil, err
	}
	a := Summarize(project, tasks, s.now())
	return &a, nil
}

// AuthorizeRoom checks that p may subscribe to the project's realtime room.
func (s *Service) AuthorizeRoom(ctx context.Context, p model.Principal, projectID uuid.UUID) error {
	_, err := s.readable(ctx, p, projectID)
	return err
}

// Summarize computes analytics over tasks as of now.
func Summarize(project *model.Project, tasks []*model.Task, now time.Time) Analytics {
	a := Analytics{TotalTasks: len(tasks), Progress: project.Progress}
	for _, t := range tasks {
		switch t.Status {
		case model.TaskStatusDone:
			a.CompletedTasks++
		case model.TaskStatusInProgress:
			a.InProgressTasks++
		case model.TaskStatusReview:
			a.ReviewTasks++
		case model.TaskStatusTodo:
			a.TodoTasks++
		}
		if t.IsOverdue(now) {
			a.OverdueTasks++
		}
		a.TotalEstimatedHours += t.EstimatedHours
		a.TotalActualHours += t.ActualHours
	}
	return a
}

func (s *Service) readable(ctx context.Context, p model.Principal, id uuid.UUID) (*model.Project, error) {
	project, err := s.store.Projects().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.AuthorizeRead(p, project); err != nil {
		return nil, err
	}
	return project, nil
}

func (s *Service) publish(ctx context.Context, p model.Principal, projectID uuid.UUID, payload events.Payload) {
	s.publisher.Publish(ctx, events.NewChangeEvent(events.KindProjectUpdated, projectID, p.ID, payload))
}

func (r *UpdateProjectRequest) applyTo(project *model.Project) {
	if r.Name != nil {
		project.Name = strings.TrimSpace(*r.Name)
	}
	if r.Description != nil {
		project.Description = strings.TrimSpace(*r.Description)
	}
	if r.Status != nil {
		project.Status = *r.Status
	}
	if r.Priority != nil {
		project.Priority = *r.Priority
	}
	if r.StartDate != nil {
		project.StartDate = *r.StartDate
	}
	if r.EndDate != nil {
		project.EndDate = *r.EndDate
	}
	if r.Budget != nil {
		b := *r.Budget
		project.Budget = &b
	}
	if r.Tags != nil {
		project.Tags = r.Tags
	}
	if r.Progress != nil {
		project.Progress = *r.Progress
	}
}

func validate(p *model.Project) error {
	switch {
	case p.Name == "":
		return apperrors.Validation("project name is required")
	case utf8.RuneCountInString(p.Name) > 100:
		return apperrors.Validation("project name cannot exceed 100 characters")
	case p.Description == "":
		return apperrors.Validation("project description is required")
	case utf8.RuneCountInString(p.Description) > 500:
		return apperrors.Validation("project description cannot exceed 500 characters")
	case !p.Status.IsValid():
		return apperrors.Validationf("invalid project status %q", p.Status)
	case !p.Priority.IsValid():
		return apperrors.Validationf("invalid priority %q", p.Priority)
	case p.StartDate.IsZero() || p.EndDate.IsZero():
		return apperrors.Validation("start and end dates are required")
	case !p.EndDate.After(p.StartDate):
		return apperrors.Validation("end date must be after start date")
	case p.Budget != nil && *p.Budget < 0:
		return apperrors.Validation("budget cannot be negative")
	case p.Progress < 0 || p.Progress > 100:
		return apperrors.Validation("progress must be between 0 and 100")
	}
	for i, m := range p.Team {
		if !m.Role.IsValid() {
			return apperrors.Validationf("invalid team role %q", m.Role)
		}
		for _, other := range p.Team[:i] {
			if other.UserID == m.UserID {
				return apperrors.Validation("user already in team")
			}
		}
	}
	return nil
}
