package query

import (
	"strings"

	"github.com/google/uuid"

	"github.com/projecthub/server/internal/model"
)

// ProjectFilter holds the optional list filters for projects.
type ProjectFilter struct {
	Status   model.ProjectStatus
	Priority model.Priority
	Search   string
}

// TaskFilter holds the optional list filters for tasks.
type TaskFilter struct {
	Project    uuid.UUID
	Status     model.TaskStatus
	Priority   model.Priority
	AssignedTo uuid.UUID
	Search     string
}

// UserFilter holds the optional list filters for users.
type UserFilter struct {
	Role   model.UserRole
	Search string
}

// ProjectVisibility matches projects the principal owns or is a team member of.
func ProjectVisibility(p model.Principal) Predicate {
	return Or(Eq(model.FieldOwner, p.ID), In(model.FieldTeamUser, p.ID))
}

// TaskVisibility matches tasks the principal created or is assigned to.
func TaskVisibility(p model.Principal) Predicate {
	return Or(Eq(model.FieldCreatedBy, p.ID), In(model.FieldAssignedTo, p.ID))
}

// ProjectPredicate returns the list predicate for projects. For non-admins the
// visibility clause is a top-level conjunct, so filters only narrow the result.
func ProjectPredicate(p model.Principal, f ProjectFilter) Predicate {
	var conj []Predicate
	if !p.IsAdmin() {
		conj = append(conj, ProjectVisibility(p))
	}
	if f.Status != "" {
		conj = append(conj, Eq(model.FieldStatus, string(f.Status)))
	}
	if f.Priority != "" {
		conj = append(conj, Eq(model.FieldPriority, string(f.Priority)))
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		conj = append(conj, Search(term, model.FieldName, model.FieldDescription))
	}
	return And(conj...)
}

// TaskPredicate returns the list predicate for tasks.
func TaskPredicate(p model.Principal, f TaskFilter) Predicate {
	var conj []Predicate
	if !p.IsAdmin() {
		conj = append(conj, TaskVisibility(p))
	}
	if f.Project != uuid.Nil {
		conj = append(conj, Eq(model.FieldProject, f.Project))
	}
	if f.Status != "" {
		conj = append(conj, Eq(model.FieldStatus, string(f.Status)))
	}
	if f.Priority != "" {
		conj = append(conj, Eq(model.FieldPriority, string(f.Priority)))
	}
	if f.AssignedTo != uuid.Nil {
		conj = append(conj, In(model.FieldAssignedTo, f.AssignedTo))
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		conj = append(conj, Search(term, model.FieldTitle, model.FieldDescription))
	}
	return And(conj...)
}

// UserPredicate returns the list predicate for the user directory. Callers
// gate access to the directory before using it.
func UserPredicate(f UserFilter) Predicate {
	var conj []Predicate
	if f.Role != "" {
		conj = append(conj, Eq(model.FieldRole, string(f.Role)))
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		conj = append(conj, Search(term, model.FieldName, model.FieldEmail))
	}
	return And(conj...)
}

// ProjectTasks matches every task of a project. It carries no visibility clause
// and is only used after the caller has been authorized against the project.
func ProjectTasks(projectID uuid.UUID) Predicate {
	return Eq(model.FieldProject, projectID)
}
