package project

import (
	"context"
	"errors"
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

func (f *fixture) addTask(t *testing.T, projectID uuid.UUID, mutate func(*model.Task)) *model.Task {
	t.Helper()
	task := &model.Task{
		Title:     "task",
		ProjectID: projectID,
		CreatedBy: f.owner.ID,
		Status:    model.TaskStatusTodo,
		Priority:  model.PriorityMedium,
	}
	if mutate != nil {
		mutate(task)
	}
	require.NoError(t, f.store.Tasks().Insert(context.Background(), task))
	return task
}

func validCreate() *CreateProjectRequest {
	return &CreateProjectRequest{
		Name:        "Gemini",
		Description: "Orbital rendezvous",
		StartDate:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("manager creates with defaults", func(t *testing.T) {
		f := newFixture(t)
		project, err := f.service.Create(ctx, f.owner, validCreate())
		require.NoError(t, err)

		assert.NotEqual(t, uuid.Nil, project.ID)
		assert.Equal(t, f.owner.ID, project.OwnerID)
		assert.Equal(t, model.ProjectStatusPlanning, project.Status)
		assert.Equal(t, model.PriorityMedium, project.Priority)
		assert.Equal(t, int64(1), project.Version)
		assert.Empty(t, project.Team)
		assert.Empty(t, f.events.all(), "creation emits no event")
	})

	t.Run("members cannot create projects", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.service.Create(ctx, f.member, validCreate())
		assert.True(t, errors.Is(err, apperrors.ErrForbidden))
	})

	t.Run("end date before start date", func(t *testing.T) {
		f := newFixture(t)
		req := validCreate()
		req.StartDate = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		req.EndDate = time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)

		_, err := f.service.Create(ctx, f.admin, req)
		assert.True(t, errors.Is(err, apperrors.ErrValidation))

		all, err := f.store.Projects().Find(ctx, query.All())
		require.NoError(t, err)
		assert.Len(t, all, 1, "nothing was written")
	})

	t.Run("field validation", func(t *testing.T) {
		f := newFixture(t)
		tests := []struct {
			name   string
			mutate func(*CreateProjectRequest)
		}{
			{"blank name", func(r *CreateProjectRequest) { r.Name = "  " }},
			{"missing description", func(r *CreateProjectRequest) { r.Description = "" }},
			{"bad status", func(r *CreateProjectRequest) { r.Status = "archived" }},
			{"bad priority", func(r *CreateProjectRequest) { r.Priority = "urgent" }},
			{"negative budget", func(r *CreateProjectRequest) { b := -1.0; r.Budget = &b }},
			{"progress over 100", func(r *CreateProjectRequest) { r.Progress = 101 }},
			{"equal dates", func(r *CreateProjectRequest) { r.EndDate = r.StartDate }},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				req := validCreate()
				tt.mutate(req)
				_, err := f.service.Create(ctx, f.admin, req)
				assert.True(t, errors.Is(err, apperrors.ErrValidation), "got %v", err)
			})
		}
	})
}

func TestService_ReadAccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addTask(t, f.project.ID, nil)
	f.addTask(t, f.project.ID, nil)

	for _, p := range []model.Principal{f.admin, f.owner, f.member, f.viewer} {
		detail, err := f.service.Get(ctx, p, f.project.ID)
		require.NoError(t, err)
		assert.Equal(t, f.project.ID, detail.ID)
		assert.Len(t, detail.Tasks, 2)
	}

	_, err := f.service.Get(ctx, f.outsider, f.project.ID)
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))

	_, err = f.service.Get(ctx, f.owner, uuid.New())
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	assert.NoError(t, f.service.AuthorizeRoom(ctx, f.viewer, f.project.ID))
	assert.True(t, errors.Is(f.service.AuthorizeRoom(ctx, f.outsider, f.project.ID), apperrors.ErrForbidden))
	assert.True(t, errors.Is(f.service.AuthorizeRoom(ctx, f.admin, uuid.New()), apperrors.ErrNotFound))
}

func TestService_List(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	other := &model.Project{
		Name:        "Apollo Secret",
		Description: "hidden",
		Status:      model.ProjectStatusActive,
		Priority:    model.PriorityLow,
		StartDate:   f.project.StartDate,
		EndDate:     f.project.EndDate,
		OwnerID:     f.outsider.ID,
	}
	require.NoError(t, f.store.Projects().Insert(ctx, other))

	got, err := f.service.List(ctx, f.member, query.ProjectFilter{Search: "apollo"})
	require.NoError(t, err)
	require.Len(t, got, 1, "search never widens visibility")
	assert.Equal(t, f.project.ID, got[0].ID)

	got, err = f.service.List(ctx, f.admin, query.ProjectFilter{Search: "apollo"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = f.service.List(ctx, f.admin, query.ProjectFilter{Priority: model.PriorityLow})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, other.ID, got[0].ID)
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("owner updates and event is emitted", func(t *testing.T) {
		f := newFixture(t)
		name := "Apollo 11"
		progress := 40

		project, err := f.service.Update(ctx, f.owner, f.project.ID, &UpdateProjectRequest{Name: &name, Progress: &progress})
		require.NoError(t, err)
		assert.Equal(t, "Apollo 11", project.Name)
		assert.Equal(t, 40, project.Progress)
		assert.Equal(t, int64(2), project.Version)

		evs := f.events.all()
		require.Len(t, evs, 1)
		assert.Equal(t, events.KindProjectUpdated, evs[0].Kind)
		assert.Equal(t, events.ActionUpdated, evs[0].Payload.Action)
		assert.Equal(t, f.project.ID, evs[0].ProjectID)
		assert.Equal(t, f.owner.ID, evs[0].ActorID)
	})

	t.Run("team members cannot update", func(t *testing.T) {
		f := newFixture(t)
		name := "hijack"
		_, err := f.service.Update(ctx, f.member, f.project.ID, &UpdateProjectRequest{Name: &name})
		assert.True(t, errors.Is(err, apperrors.ErrForbidden))
		assert.Empty(t, f.events.all())
	})

	t.Run("date change keeps the ordering invariant", func(t *testing.T) {
		f := newFixture(t)
		end := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
		_, err := f.service.Update(ctx, f.owner, f.project.ID, &UpdateProjectRequest{EndDate: &end})
		assert.True(t, errors.Is(err, apperrors.ErrValidation))

		stored, err := f.store.Projects().FindByID(ctx, f.project.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stored.Version)
		assert.Empty(t, f.events.all())
	})
}

func TestService_DeleteCascades(t *testing.T) {
	ctx := context.Background()

	t.Run("owner deletes project and its tasks", func(t *testing.T) {
		f := newFixture(t)
		f.addTask(t, f.project.ID, nil)
		f.addTask(t, f.project.ID, nil)
		keep := f.addTask(t, uuid.New(), nil)

		require.NoError(t, f.service.Delete(ctx, f.owner, f.project.ID))

		remaining, err := f.store.Tasks().Find(ctx, query.ProjectTasks(f.project.ID))
		require.NoError(t, err)
		assert.Empty(t, remaining)

		_, err = f.store.Tasks().FindByID(ctx, keep.ID)
		assert.NoError(t, err, "other projects' tasks survive")

		_, err = f.store.Projects().FindByID(ctx, f.project.ID)
		assert.True(t, errors.Is(err, apperrors.ErrNotFound))

		evs := f.events.all()
		require.Len(t, evs, 1)
		assert.Equal(t, events.ActionDeleted, evs[0].Payload.Action)
		assert.Equal(t, "Apollo", evs[0].Payload.Summary)
	})

	t.Run("team members cannot delete", func(t *testing.T) {
		f := newFixture(t)
		task := f.addTask(t, f.project.ID, nil)

		err := f.service.Delete(ctx, f.member, f.project.ID)
		assert.True(t, errors.Is(err, apperrors.ErrForbidden))

		_, err = f.store.Tasks().FindByID(ctx, task.ID)
		assert.NoError(t, err)
	})

	t.Run("missing project", func(t *testing.T) {
		f := newFixture(t)
		err := f.service.Delete(ctx, f.admin, uuid.New())
		assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	})
}

func TestService_AddTeamMember(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	project, err := f.service.AddTeamMember(ctx, f.owner, f.project.ID, &AddTeamMemberRequest{UserID: f.outsider.ID})
	require.NoError(t, err)
	require.Len(t, project.Team, 3)
	added, ok := project.Member(f.outsider.ID)
	require.True(t, ok)
	assert.Equal(t, model.TeamRoleMember, added.Role)
	assert.False(t, added.JoinedAt.IsZero())

	_, err = f.service.AddTeamMember(ctx, f.owner, f.project.ID, &AddTeamMemberRequest{UserID: f.outsider.ID, Role: model.TeamRoleLead})
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	stored, err := f.store.Projects().FindByID(ctx, f.project.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Team, 3, "rejected add leaves the team unchanged")

	_, err = f.service.AddTeamMember(ctx, f.owner, f.project.ID, &AddTeamMemberRequest{UserID: uuid.New()})
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	_, err = f.service.AddTeamMember(ctx, f.member, f.project.ID, &AddTeamMemberRequest{UserID: f.admin.ID})
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))

	_, err = f.service.AddTeamMember(ctx, f.owner, f.project.ID, &AddTeamMemberRequest{UserID: f.admin.ID, Role: "boss"})
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	evs := f.events.all()
	require.Len(t, evs, 1)
	assert.Equal(t, events.ActionAdded, evs[0].Payload.Action)
}

func TestService_AddTeamMemberCheckOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.service.AddTeamMember(ctx, f.outsider, uuid.New(), &AddTeamMemberRequest{UserID: f.admin.ID, Role: "boss"})
	assert.True(t, errors.Is(err, apperrors.ErrNotFound), "missing project is reported before a bad role, got %v", err)

	_, err = f.service.AddTeamMember(ctx, f.member, f.project.ID, &AddTeamMemberRequest{UserID: f.admin.ID, Role: "boss"})
	assert.True(t, errors.Is(err, apperrors.ErrForbidden), "policy is checked before a bad role, got %v", err)

	assert.Empty(t, f.events.all())
}

func TestService_Analytics(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	past := time.Now().Add(-48 * time.Hour)
	future := time.Now().Add(48 * time.Hour)

	f.addTask(t, f.project.ID, func(t *model.Task) { t.Status = model.TaskStatusDone; t.DueDate = &past; t.EstimatedHours = 3; t.ActualHours = 4 })
	f.addTask(t, f.project.ID, func(t *model.Task) { t.Status = model.TaskStatusInProgress; t.DueDate = &past; t.EstimatedHours = 5 })
	f.addTask(t, f.project.ID, func(t *model.Task) { t.DueDate = &future; t.ActualHours = 1.5 })
	f.addTask(t, f.project.ID, func(t *model.Task) { t.Status = model.TaskStatusReview })

	a, err := f.service.Analytics(ctx, f.viewer, f.project.ID)
	require.NoError(t, err)
	assert.Equal(t, Analytics{
		TotalTasks:          4,
		CompletedTasks:      1,
		InProgressTasks:     1,
		ReviewTasks:         1,
		TodoTasks:           1,
		OverdueTasks:        1,
		TotalEstimatedHours: 8,
		TotalActualHours:    5.5,
	}, *a)

	_, err = f.service.Analytics(ctx, f.outsider, f.project.ID)
	assert.True(t, errors.Is(err, apperrors.ErrForbidden))
}

// racingStore makes the next n project updates lose a compare-and-swap race.
type racingStore struct {
	*memory.Store
	projects *racingProjects
}

type racingProjects struct {
	outbound.Collection[*model.Project]
	losses int
	calls  int
}

func (c *racingProjects) UpdateByID(ctx context.Context, doc *model.Project) error {
	c.calls++
	if c.losses > 0 {
		c.losses--
		return apperrors.Conflict("project was modified concurrently")
	}
	return c.Collection.UpdateByID(ctx, doc)
}

func (s *racingStore) Projects() outbound.Collection[*model.Project] { return s.projects }

func TestService_UpdateRetriesConflictOnce(t *testing.T) {
	ctx := context.Background()

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
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rs := &racingStore{Store: f.store}
			rs.projects = &racingProjects{Collection: f.store.Projects(), losses: tt.losses}
			svc := NewService(rs, f.events, zap.NewNop())

			status := model.ProjectStatusOnHold
			_, err := svc.Update(ctx, f.owner, f.project.ID, &UpdateProjectRequest{Status: &status})
			assert.Equal(t, tt.calls, rs.projects.calls)
			if tt.wantErr {
				assert.True(t, errors.Is(err, apperrors.ErrConflict))
				assert.Empty(t, f.events.all())
				return
			}
			require.NoError(t, err)
			assert.Len(t, f.events.all(), 1)
		})
	}
}
