package task

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/projecthub/server/internal/adapter/outbound/memory"
	"github.com/projecthub/server/internal/model"
	"github.com/projecthub/server/internal/module/query"
	"github.com/projecthub/server/internal/port/outbound"
	apperrors "github.com/projecthub/server/internal/shared/errors"
	"github.com/projecthub/server/internal/shared/events"
)

type recorder struct {
	mu     sync.Mutex
	events []*events.ChangeEvent
}

func (r *recorder) Publish(_ context.Context, ev *events.ChangeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []*events.ChangeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*events.ChangeEvent(nil), r.events...)
}

type fixture struct {
	store   *memory.Store
	events  *recorder
	service *Service

	admin, owner, member, viewer, outsider model.Principal
	project                                *model.Project
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{store: memory.NewStore(), events: &recorder{}}
	f.service = NewService(f.store, f.events, zap.NewNop())

	mkUser := func(role model.UserRole) model.Principal {
		u := &model.User{Name: string(role), Email: uuid.NewString() + "@example.com", Role: role}
		require.NoError(t, f.store.Users().Insert(ctx, u))
		return u.Principal()
	}
	f.admin = mkUser(model.UserRoleAdmin)
	f.owner = mkUser(model.UserRoleManager)
	f.member = mkUser(model.UserRoleMember)
	f.viewer = mkUser(model.UserRoleMember)
	f.outsider = mkUser(model.UserRoleMember)

	f.project = &model.Project{
		Name:        "Apollo",
		Description: "Moon landing",
		Status:      model.ProjectStatusActive,
		Priority:    model.PriorityHigh,
		StartDate:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		OwnerID:     f.owner.ID,
		Team: []model.TeamMember{
			{UserID: f.member.ID, Role: model.TeamRoleMember},
			{UserID: f.viewer.ID, Role: model.TeamRoleViewer},
		},
	}
	require.NoError(t, f.store.Projects().Insert(ctx, f.project))
	return f
}

func (f *fixture) create(t *testing.T, p model.Principal, mutate func(*CreateTaskRequest)) *model.Task {
	t.Helper()
	req := &CreateTaskRequest{Title: "Write checklist", ProjectID: f.project.ID}
	if mutate != nil {
		mutate(req)
	}
	task, err := f.service.Create(context.Background(), p, req)
	require.NoError(t, err)
	return task
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("team member creates with defaults", func(t *testing.T) {
		f := newFixture(t)
		task := f.create(t, f.member, func(r *CreateTaskRequest) {
			r.AssignedTo = []uuid.UUID{f.owner.ID, f.viewer.ID, f.owner.ID}
		})

		assert.Equal(t, f.member.ID, task.CreatedBy)
		assert.Equal(t, model.TaskStatusTodo, task.Status)
		assert.Equal(t, model.PriorityMedium, task.Priority)
		assert.Equal(t, []uuid.UUID{f.owner.ID, f.viewer.ID}, task.AssignedTo)
		assert.Empty(t, task.Comments)

		evs := f.events.all()
		require.Len(t, evs, 1)
		assert.Equal(t, events.KindTaskUpdated, evs[0].Kind)
		assert.Equal(t, events.ActionCreated, evs[0].Payload.Action)
		assert.Equal(t, f.project.ID, evs[0].ProjectID)
		assert.Equal(t, task.ID, evs[0].Payload.EntityID)
	})

	t.Run("outsider is forbidden", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.service.Create(ctx, f.outsider, &CreateTaskRequest{Title: "x", ProjectID: f.project.ID})
		assert.True(t, errors.Is(err, apperrors.ErrForbidden))
		assert.Empty(t, f.events.all())
	})

	t.Run("viewer is forbidden", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.service.Create(ctx, f.viewer, &CreateTaskRequest{Title: "x", ProjectID: f.project.ID})
		assert.True(t, errors.Is(err, apperrors.ErrForbidden))
	})

	t.Run("missing project", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.service.Create(ctx, f.admin, &CreateTaskRequest{Title: "x", ProjectID: uuid.New()})
		assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	})

	t.Run("assignees must participate in the project", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.service.Create(ctx, f.owner, &CreateTaskRequest{
			Title:      "x",
			ProjectID:  f.project.ID,
			AssignedTo: []uuid.UUID{f.outsider.ID},
		})
		assert.True(t, errors.Is(err, apperrors.ErrValidation))

		all, err := f.store.Tasks().Find(ctx, query.All())
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("field validation", func(t *testing.T) {
		f := newFixture(t)
		tests := []struct {
			name   string
			mutate func(*CreateTaskRequest)
		}{
			{"blank title", func(r *CreateTaskRequest) { r.Title = " " }},
			{"long title", func(r *CreateTaskRequest) { r.Title = strings.Repeat("a", 201) }},
			{"bad status", func(r *CreateTaskRequest) { r.Status = "blocked" }},
			{"bad priority", func(r *CreateTaskRequest) { r.Priority = "urgent" }},
			{"negative hours", func(r *CreateTaskRequest) { r.EstimatedHours = -1 }},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				req := &CreateTaskRequest{Title: "ok", ProjectID: f.project.ID}
				tt.mutate(req)
				_, err := f.service.Create(ctx, f.owner, req)
				assert.True(t, errors.Is(err, apperrors.ErrValidation), "got %v", err)
			})
		}
	})
}

func TestService_GetAndList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	mine := f.create(t, f.member, nil)
	assigned := f.create(t, f.owner, func(r *CreateTaskRequest) { r.AssignedTo = []uuid.UUID{f.member.ID} })
	other := f.create(t, f.owner, func(r *CreateTaskRequest) { r.Title = "Checklist for launch" })

	got, err := f.service.Get(ctx, f.viewer, other.ID)
	require.NoError(t, err, "project readers can read any of its tasks")
	assert.Equal(t, other.ID, got.ID)

	_, err = f.service.Get(ctx, f.outsider, other.ID)
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))

	_, err = f.service.Get(ctx, f.owner, uuid.New())
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	list, err := f.service.List(ctx, f.member, query.TaskFilter{})
	require.NoError(t, err)
	ids := []uuid.UUID{}
	for _, task := range list {
		ids = append(ids, task.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{mine.ID, assigned.ID}, ids)

	list, err = f.service.List(ctx, f.member, query.TaskFilter{Search: "launch"})
	require.NoError(t, err)
	assert.Empty(t, list, "search never widens visibility")

	list, err = f.service.List(ctx, f.admin, query.TaskFilter{Search: "launch"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, other.ID, list[0].ID)

	list, err = f.service.List(ctx, f.owner, query.TaskFilter{AssignedTo: f.member.ID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, assigned.ID, list[0].ID)
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	task := f.create(t, f.owner, nil)

	status := model.TaskStatusInProgress
	hours := 2.5
	updated, err := f.service.Update(ctx, f.member, task.ID, &UpdateTaskRequest{
		Status:      &status,
		ActualHours: &hours,
		AssignedTo:  []uuid.UUID{f.member.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusInProgress, updated.Status)
	assert.Equal(t, 2.5, updated.ActualHours)
	assert.Equal(t, f.owner.ID, updated.CreatedBy, "creator is immutable")
	assert.Equal(t, int64(2), updated.Version)

	_, err = f.service.Update(ctx, f.viewer, task.ID, &UpdateTaskRequest{Status: &status})
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))

	_, err = f.service.Update(ctx, f.owner, task.ID, &UpdateTaskRequest{AssignedTo: []uuid.UUID{f.outsider.ID}})
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	evs := f.events.all()
	require.Len(t, evs, 2)
	assert.Equal(t, events.ActionUpdated, evs[1].Payload.Action)
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	task := f.create(t, f.member, nil)

	err := f.service.Delete(ctx, f.member, task.ID)
	assert.True(t, errors.Is(err, apperrors.ErrForbidden), "team members cannot delete")

	require.NoError(t, f.service.Delete(ctx, f.owner, task.ID))
	_, err = f.store.Tasks().FindByID(ctx, task.ID)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	evs := f.events.all()
	require.Len(t, evs, 2)
	assert.Equal(t, events.ActionDeleted, evs[1].Payload.Action)
	assert.Equal(t, task.ID, evs[1].Payload.EntityID)

	err = f.service.Delete(ctx, f.owner, task.ID)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestService_AddComment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	task := f.create(t, f.owner, nil)

	updated, err := f.service.AddComment(ctx, f.viewer, task.ID, &AddCommentRequest{Text: "  looks good  "})
	require.NoError(t, err)
	require.Len(t, updated.Comments, 1)
	assert.Equal(t, "looks good", updated.Comments[0].Text)
	assert.Equal(t, f.viewer.ID, updated.Comments[0].AuthorID)

	updated, err = f.service.AddComment(ctx, f.member, task.ID, &AddCommentRequest{Text: "second"})
	require.NoError(t, err)
	require.Len(t, updated.Comments, 2)
	assert.Equal(t, "second", updated.Comments[1].Text, "comments are append-only and ordered")

	_, err = f.service.AddComment(ctx, f.outsider, task.ID, &AddCommentRequest{Text: "hi"})
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))

	_, err = f.service.AddComment(ctx, f.owner, task.ID, &AddCommentRequest{Text: strings.Repeat("x", 1001)})
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	_, err = f.service.AddComment(ctx, f.owner, task.ID, &AddCommentRequest{Text: "   "})
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	evs := f.events.all()
	require.Len(t, evs, 3)
	assert.Equal(t, events.KindCommentAdded, evs[1].Kind)
	assert.Equal(t, events.ActionAdded, evs[1].Payload.Action)
	comment, ok := evs[1].Payload.Data.(model.Comment)
	require.True(t, ok)
	assert.Equal(t, "looks good", comment.Text)
}

func TestService_OrphanedTaskIsNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	orphan := &model.Task{
		Title:     "left behind",
		ProjectID: uuid.New(),
		CreatedBy: f.owner.ID,
		Status:    model.TaskStatusTodo,
		Priority:  model.PriorityLow,
	}
	require.NoError(t, f.store.Tasks().Insert(ctx, orphan))

	_, err := f.service.Get(ctx, f.admin, orphan.ID)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestService_UpdateClearsDueDate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	due := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	task := f.create(t, f.owner, func(r *CreateTaskRequest) { r.DueDate = &due })
	require.NotNil(t, task.DueDate)

	title := "Write checklist v2"
	updated, err := f.service.Update(ctx, f.owner, task.ID, &UpdateTaskRequest{Title: &title})
	require.NoError(t, err)
	require.NotNil(t, updated.DueDate, "omitted due date is left unchanged")

	later := due.Add(24 * time.Hour)
	updated, err = f.service.Update(ctx, f.owner, task.ID, &UpdateTaskRequest{DueDate: &later, ClearDueDate: true})
	require.NoError(t, err)
	assert.Nil(t, updated.DueDate)

	stored, err := f.store.Tasks().FindByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.DueDate)
}

func TestService_CheckOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	task := f.create(t, f.owner, nil)

	tests := []struct {
		name   string
		caller model.Principal
		taskID uuid.UUID
		text   string
		want   error
	}{
		{"missing task before blank text", f.outsider, uuid.New(), "   ", apperrors.ErrNotFound},
		{"policy before blank text", f.outsider, task.ID, "   ", apperrors.ErrForbidden},
		{"policy before oversized text", f.outsider, task.ID, strings.Repeat("x", 1001), apperrors.ErrForbidden},
		{"blank text after policy", f.viewer, task.ID, "   ", apperrors.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.AddComment(ctx, tt.caller, tt.taskID, &AddCommentRequest{Text: tt.text})
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
	assert.Empty(t, f.events.all()[1:])
}

// racingStore makes the next n task updates lose a compare-and-swap race.
type racingStore struct {
	*memory.Store
	tasks *racingTasks
}

type racingTasks struct {
	outbound.Collection[*model.Task]
	losses int
	calls  int
}

func (c *racingTasks) UpdateByID(ctx context.Context, doc *model.Task) error {
	c.calls++
	if c.losses > 0 {
		c.losses--
		return apperrors.Conflict("task was modified concurrently")
	}
	return c.Collection.UpdateByID(ctx, doc)
}

func (s *racingStore) Tasks() outbound.Collection[*model.Task] { return s.tasks }

func TestService_RetriesConflictOnce(t *testing.T) {
	ctx := context.Background()

	ops := []struct {
		name string
		run  func(svc *Service, f *fixture, id uuid.UUID) (*model.Task, error)
	}{
		{"update", func(svc *Service, f *fixture, id uuid.UUID) (*model.Task, error) {
			status := model.TaskStatusReview
			return svc.Update(ctx, f.member, id, &UpdateTaskRequest{Status: &status})
		}},
		{"comment", func(svc *Service, f *fixture, id uuid.UUID) (*model.Task, error) {
			return svc.AddComment(ctx, f.viewer, id, &AddCommentRequest{Text: "ship it"})
		}},
	}
	tests := []struct {
		name    string
		losses  int
		wantErr bool
		calls   int
	}{
		{"first attempt wins", 0, false, 1},
		{"one lost race is retried", 1, false, 2},
		{"second lost race surfaces", 2, true, 2},
	}
	for _, op := range ops {
		for _, tt := range tests {
			t.Run(op.name+"/"+tt.name, func(t *testing.T) {
				f := newFixture(t)
				task := f.create(t, f.owner, nil)

				rs := &racingStore{Store: f.store}
				rs.tasks = &racingTasks{Collection: f.store.Tasks(), losses: tt.losses}
				svc := NewService(rs, f.events, zap.NewNop())

				_, err := op.run(svc, f, task.ID)
				assert.Equal(t, tt.calls, rs.tasks.calls)
				if tt.wantErr {
					assert.True(t, errors.Is(err, apperrors.ErrConflict))
					assert.Len(t, f.events.all(), 1, "only the create event")

					stored, err := f.store.Tasks().FindByID(ctx, task.ID)
					require.NoError(t, err)
					assert.Equal(t, int64(1), stored.Version)
					return
				}
				require.NoError(t, err)
				assert.Len(t, f.events.all(), 2)
			})
		}
	}
}
