// Package access decides what a principal may do to a project and its tasks.
// Every function here is pure: callers pass snapshots loaded from the store.
package access

import (
	"github.com/projecthub/server/internal/model"
	apperrors "github.com/projecthub/server/internal/shared/errors"
)

// Action is a write operation checked against a project.
type Action string

const (
	// ActionComment appends self-scoped data to a task.
	ActionComment Action = "comment"
	// ActionContribute creates or updates tasks.
	ActionContribute Action = "contribute"
	// ActionUpdate changes project fields.
	ActionUpdate Action = "update"
	// ActionDelete removes a project or a task.
	ActionDelete Action = "delete"
	// ActionManageTeam adds team members.
	ActionManageTeam Action = "manage_team"
)

// CanRead reports whether p may see project.
func CanRead(p model.Principal, project *model.Project) bool {
	if project == nil {
		return false
	}
	if p.IsAdmin() || project.IsOwner(p.ID) {
		return true
	}
	return project.HasMember(p.ID)
}

// CanWrite reports whether p may perform action on project.
// Admins and the owner may do anything. Team members are limited to
// non-destructive actions; viewers may only comment.
func CanWrite(p model.Principal, project *model.Project, action Action) bool {
	if project == nil {
		return false
	}
	if p.IsAdmin() || project.IsOwner(p.ID) {
		return true
	}

	member, ok := project.Member(p.ID)
	if !ok {
		return false
	}

	switch action {
	case ActionComment:
		return true
	case ActionContribute:
		return member.Role == model.TeamRoleMember || member.Role == model.TeamRoleLead
	default:
		return false
	}
}

// CanReadTask reports whether p may see task. Visibility is inherited from the
// owning project; a task whose project does not match is never readable.
func CanReadTask(p model.Principal, task *model.Task, project *model.Project) bool {
	if task == nil || project == nil || task.ProjectID != project.ID {
		return false
	}
	return CanRead(p, project)
}

// CanCreateProject reports whether p may create new projects.
func CanCreateProject(p model.Principal) bool {
	return p.Role == model.UserRoleAdmin || p.Role == model.UserRoleManager
}

// CanListUsers reports whether p may browse the user directory.
func CanListUsers(p model.Principal) bool {
	return p.Role == model.UserRoleAdmin || p.Role == model.UserRoleManager
}

// AuthorizeRead returns a Forbidden error when p cannot read project.
func AuthorizeRead(p model.Principal, project *model.Project) error {
	if !CanRead(p, project) {
		return apperrors.Forbidden("not a participant of this project")
	}
	return nil
}

// Authorize returns a Forbidden error naming the denied action.
func Authorize(p model.Principal, project *model.Project, action Action) error {
	if !CanWrite(p, project, action) {
		return apperrors.Forbidden("not allowed to " + string(action) + " in this project")
	}
	return nil
}

// AuthorizeTask returns a Forbidden error when p cannot read task.
func AuthorizeTask(p model.Principal, task *model.Task, project *model.Project) error {
	if !CanReadTask(p, task, project) {
		return apperrors.Forbidden("not allowed to access this task")
	}
	return nil
}

// AuthorizeCreateProject returns a Forbidden error for roles that cannot create projects.
func AuthorizeCreateProject(p model.Principal) error {
	if !CanCreateProject(p) {
		return apperrors.Forbidden("role " + string(p.Role) + " cannot create projects")
	}
	return nil
}

// AuthorizeListUsers returns a Forbidden error for roles that cannot list users.
func AuthorizeListUsers(p model.Principal) error {
	if !CanListUsers(p) {
		return apperrors.Forbidden("role " + string(p.Role) + " cannot list users")
	}
	return nil
}
