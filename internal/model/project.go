package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ProjectStatus represents the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectStatusPlanning  ProjectStatus = "planning"
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusOnHold    ProjectStatus = "on-hold"
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusCancelled ProjectStatus = "cancelled"
)

// IsValid reports whether s is a known project status.
func (s ProjectStatus) IsValid() bool {
	switch s {
	case ProjectStatusPlanning, ProjectStatusActive, ProjectStatusOnHold,
		ProjectStatusCompleted, ProjectStatusCancelled:
		return true
	default:
		return false
	}
}

// TeamRole is a user's role within one project's team.
type TeamRole string

const (
	TeamRoleMember TeamRole = "member"
	TeamRoleLead   TeamRole = "lead"
	TeamRoleViewer TeamRole = "viewer"
)

// IsValid reports whether r is a known team role.
func (r TeamRole) IsValid() bool {
	switch r {
	case TeamRoleMember, TeamRoleLead, TeamRoleViewer:
		return true
	default:
		return false
	}
}

// TeamMember is one entry of a project's team list.
type TeamMember struct {
	UserID   uuid.UUID `json:"user_id" bson:"user_id"`
	Role     TeamRole  `json:"role" bson:"role"`
	JoinedAt time.Time `json:"joined_at" bson:"joined_at"`
}

// Project groups tasks and the team allowed to see them.
type Project struct {
	ID          uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey" bson:"_id"`
	Name        string         `json:"name" gorm:"size:100;not null" bson:"name"`
	Description string         `json:"description" gorm:"size:500;not null" bson:"description"`
	Status      ProjectStatus  `json:"status" gorm:"not null;default:planning;index" bson:"status"`
	Priority    Priority       `json:"priority" gorm:"not null;default:medium;index" bson:"priority"`
	StartDate   time.Time      `json:"start_date" gorm:"not null" bson:"start_date"`
	EndDate     time.Time      `json:"end_date" gorm:"not null" bson:"end_date"`
	Budget      *float64       `json:"budget,omitempty" bson:"budget,omitempty"`
	OwnerID     uuid.UUID      `json:"owner_id" gorm:"type:uuid;not null;index" bson:"owner_id"`
	Team        []TeamMember   `json:"team" gorm:"type:jsonb;serializer:json" bson:"team"`
	Tags        pq.StringArray `json:"tags,omitempty" gorm:"type:text[]" bson:"tags,omitempty"`
	Progress    int            `json:"progress" gorm:"not null;default:0" bson:"progress"`
	Version     int64          `json:"version" gorm:"not null;default:1" bson:"version"`
	CreatedAt   time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" bson:"updated_at"`
}

// TableName returns the database table name.
func (Project) TableName() string {
	return "projects"
}

func (p *Project) GetID() uuid.UUID    { return p.ID }
func (p *Project) GetVersion() int64   { return p.Version }
func (p *Project) SetVersion(v int64)  { p.Version = v }
func (p *Project) Touch(now time.Time) { p.UpdatedAt = now }

func (p *Project) Stamp(id uuid.UUID, now time.Time) {
	p.ID = id
	p.CreatedAt = now
	p.UpdatedAt = now
}

func (p *Project) FieldValue(f Field) any {
	switch f {
	case FieldID:
		return p.ID
	case FieldOwner:
		return p.OwnerID
	case FieldTeamUser:
		ids := make([]uuid.UUID, len(p.Team))
		for i, m := range p.Team {
			ids[i] = m.UserID
		}
		return ids
	case FieldStatus:
		return string(p.Status)
	case FieldPriority:
		return string(p.Priority)
	case FieldName:
		return p.Name
	case FieldDescription:
		return p.Description
	default:
		return nil
	}
}

// IsOwner reports whether userID owns the project.
func (p *Project) IsOwner(userID uuid.UUID) bool {
	return p.OwnerID == userID
}

// Member returns the team entry for userID, if any.
func (p *Project) Member(userID uuid.UUID) (TeamMember, bool) {
	for _, m := range p.Team {
		if m.UserID == userID {
			return m, true
		}
	}
	return TeamMember{}, false
}

// HasMember reports whether userID appears in the team list.
func (p *Project) HasMember(userID uuid.UUID) bool {
	_, ok := p.Member(userID)
	return ok
}

// IsParticipant reports whether userID is the owner or a team member.
func (p *Project) IsParticipant(userID uuid.UUID) bool {
	return p.IsOwner(userID) || p.HasMember(userID)
}

// Clone returns a deep copy of the project.
func (p *Project) Clone() *Project {
	c := *p
	if p.Team != nil {
		c.Team = make([]TeamMember, len(p.Team))
		copy(c.Team, p.Team)
	}
	c.Tags = cloneStrings(p.Tags)
	if p.Budget != nil {
		b := *p.Budget
		c.Budget = &b
	}
	return &c
}
