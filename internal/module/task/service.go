// Package task implements the task command handlers and comments.
package task

import (
	"context"
	"errors"
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

const maxCommentLength = 1000

// Service provides task business logic.
type Service struct {
	store     outbound.EntityStore
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a new task service.
func NewService(store outbound.EntityStore, publisher events.Publisher, logger *zap.Logger) *Service {
	return &Service{
		store:     store,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// List returns the tasks p created or is assigned to that match f, newest first.
func (s *Service) List(ctx context.Context, p model.Principal, f query.TaskFilter) ([]*model.Task, error) {
	return s.store.Tasks().Find(ctx, query.TaskPredicate(p, f))
}

// Get returns a task readable through its project.
func (s *Service) Get(ctx context.Context, p model.Principal, id uuid.UUID) (*model.Task, error) {
	task, project, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.AuthorizeTask(p, task, project); err != nil {
		return nil, err
	}
	return task, nil
}

// Create adds a task to a project p may contribute to.
func (s *Service) Create(ctx context.Context, p model.Principal, req *CreateTaskRequest) (*model.Task, error) {
	project, err := s.store.Projects().FindByID(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	if err := access.Authorize(p, project, access.ActionContribute); err != nil {
		return nil, err
	}

	task := &model.Task{
		Title:          strings.TrimSpace(req.Title),
		Description:    strings.TrimSpace(req.Description),
		ProjectID:      project.ID,
		AssignedTo:     uniqueIDs(req.AssignedTo),
		CreatedBy:      p.ID,
		Status:         req.Status,
		Priority:       req.Priority,
		DueDate:        req.DueDate,
		EstimatedHours: req.EstimatedHours,
		Tags:           req.Tags,
		Comments:       []model.Comment{},
	}
	if task.Status == "" {
		task.Status = model.TaskStatusTodo
	}
	if task.Priority == "" {
		task.Priority = model.PriorityMedium
	}

	if err := validate(task, project); err != nil {
		return nil, err
	}
	if err := s.store.Tasks().Insert(ctx, task); err != nil {
		return nil, err
	}

	s.logger.Info("task created",
		zap.String("task_id", task.ID.String()),
		zap.String("project_id", project.ID.String()),
		zap.String("user_id", p.ID.String()),
	)

	s.publish(ctx, events.KindTaskUpdated, p, task.ProjectID, events.Payload{
		EntityID: task.ID,
		Action:   events.ActionCreated,
		Summary:  task.Title,
		Data:     task.Clone(),
	})
	return task, nil
}

// Update applies req to a task.
func (s *Service) Update(ctx context.Context, p model.Principal, id uuid.UUID, req *UpdateTaskRequest) (*model.Task, error) {
	var updated *model.Task
	err := apperrors.RetryOnConflict(func() error {
		task, project, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		if err := access.Authorize(p, project, access.ActionContribute); err != nil {
			return err
		}

		req.applyTo(task)
		if err := validate(task, project); err != nil {
			return err
		}
		if err := s.store.Tasks().UpdateByID(ctx, task); err != nil {
			return err
		}
		updated = task
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.KindTaskUpdated, p, updated.ProjectID, events.Payload{
		EntityID: updated.ID,
		Action:   events.ActionUpdated,
		Summary:  updated.Title,
		Data:     updated.Clone(),
	})
	return updated, nil
}

// Delete removes a task. Only admins and the project owner may delete.
func (s *Service) Delete(ctx context.Context, p model.Principal, id uuid.UUID) error {
	task, project, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := access.Authorize(p, project, access.ActionDelete); err != nil {
		return err
	}
	if err := s.store.Tasks().DeleteByID(ctx, id); err != nil {
		return err
	}

	s.logger.Info("task deleted",
		zap.String("task_id", id.String()),
		zap.String("project_id", task.ProjectID.String()),
		zap.String("user_id", p.ID.String()),
	)

	s.publish(ctx, events.KindTaskUpdated, p, task.ProjectID, events.Payload{
		EntityID: task.ID,
		Action:   events.ActionDeleted,
		Summary:  task.Title,
		Data:     task,
	})
	return nil
}

// AddComment appends a comment authored by p.
func (s *Service) AddComment(ctx context.Context, p model.Principal, id uuid.UUID, req *AddCommentRequest) (*model.Task, error) {
	text := strings.TrimSpace(req.Text)

	var (
		updated *model.Task
		comment model.Comment
	)
	err := apperrors.RetryOnConflict(func() error {
		task, project, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		if err := access.Authorize(p, project, access.ActionComment); err != nil {
			return err
		}
		if err := validateComment(text); err != nil {
			return err
		}

		comment = model.Comment{ID: uuid.New(), AuthorID: p.ID, Text: text, CreatedAt: s.now().UTC()}
		task.Comments = append(task.Comments, comment)
		if err := s.store.Tasks().UpdateByID(ctx, task); err != nil {
			return err
		}
		updated = task
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.KindCommentAdded, p, updated.ProjectID, events.Payload{
		EntityID: updated.ID,
		Action:   events.ActionAdded,
		Summary:  updated.Title,
		Data:     comment,
	})
	return updated, nil
}

// load fetches a task and its project. A task whose project no longer exists
// is reported as not found.
func (s *Service) load(ctx context.Context, id uuid.UUID) (*model.Task, *model.Project, error) {
	task, err := s.store.Tasks().FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	project, err := s.store.Projects().FindByID(ctx, task.ProjectID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Warn("task references a missing project",
				zap.String("task_id", id.String()),
				zap.String("project_id", task.ProjectID.String()),
			)
			return nil, nil, apperrors.NotFound("task")
		}
		return nil, nil, err
	}
	return task, project, nil
}

func (s *Service) publish(ctx context.Context, kind events.Kind, p model.Principal, projectID uuid.UUID, payload events.Payload) {
	s.publisher.Publish(ctx, events.NewChangeEvent(kind, projectID, p.ID, payload))
}

func (r *UpdateTaskRequest) applyTo(task *model.Task) {
	if r.Title != nil {
		task.Title = strings.TrimSpace(*r.Title)
	}
	if r.Description != nil {
		task.Description = strings.TrimSpace(*r.Description)
	}
	if r.AssignedTo != nil {
		task.AssignedTo = uniqueIDs(r.AssignedTo)
	}
	if r.Status != nil {
		task.Status = *r.Status
	}
	if r.Priority != nil {
		task.Priority = *r.Priority
	}
	switch {
	case r.ClearDueDate:
		task.DueDate = nil
	case r.DueDate != nil:
		d := *r.DueDate
		task.DueDate = &d
	}
	if r.EstimatedHours != nil {
		task.EstimatedHours = *r.EstimatedHours
	}
	if r.ActualHours != nil {
		task.ActualHours = *r.ActualHours
	}
	if r.Tags != nil {
		task.Tags = r.Tags
	}
}

// validate checks task fields and that every assignee participates in project.
func validate(t *model.Task, project *model.Project) error {
	switch {
	case t.Title == "":
		return apperrors.Validation("task title is required")
	case utf8.RuneCountInString(t.Title) > 200:
		return apperrors.Validation("task title cannot exceed 200 characters")
	case utf8.RuneCountInString(t.Description) > 2000:
		return apperrors.Validation("task description cannot exceed 2000 characters")
	case !t.Status.IsValid():
		return apperrors.Validationf("invalid task status %q", t.Status)
	case !t.Priority.IsValid():
		return apperrors.Validationf("invalid priority %q", t.Priority)
	case t.EstimatedHours < 0 || t.ActualHours < 0:
		return apperrors.Validation("hours cannot be negative")
	}
	for _, id := range t.AssignedTo {
		if !project.IsParticipant(id) {
			return apperrors.Validationf("user %s is not a member of this project", id)
		}
	}
	return nil
}

func validateComment(text string) error {
	switch {
	case text == "":
		return apperrors.Validation("comment text is required")
	case utf8.RuneCountInString(text) > maxCommentLength:
		return apperrors.Validation("comment cannot exceed 1000 characters")
	}
	return nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
