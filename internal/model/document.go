package model

import (
	"time"

	"github.com/google/uuid"
)

// Field names a queryable attribute of a stored record. Store adapters map each
// field to their own column or document path.
type Field string

const (
	FieldID          Field = "id"
	FieldOwner       Field = "owner"
	FieldTeamUser    Field = "team.user"
	FieldStatus      Field = "status"
	FieldPriority    Field = "priority"
	FieldName        Field = "name"
	FieldDescription Field = "description"
	FieldTitle       Field = "title"
	FieldProject     Field = "project"
	FieldCreatedBy   Field = "createdBy"
	FieldAssignedTo  Field = "assignedTo"
	FieldRole        Field = "role"
	FieldEmail       Field = "email"
)

// Document is implemented by every record kept in the entity store.
type Document interface {
	GetID() uuid.UUID
	GetVersion() int64
	SetVersion(v int64)
	// Stamp assigns the server-side identity and creation time on insert.
	Stamp(id uuid.UUID, now time.Time)
	Touch(now time.Time)
	// FieldValue returns a scalar (uuid.UUID or string) or a []uuid.UUID for array fields.
	// Unknown fields return nil.
	FieldValue(f Field) any
}

// Priority is shared by projects and tasks.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// IsValid reports whether p is a known priority.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}

func cloneIDs(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return nil
	}
	out := make([]uuid.UUID, len(ids))
	copy(out, ids)
	return out
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// PrepareInsert assigns an id when missing, stamps timestamps and resets the
// version to 1.
func PrepareInsert(doc Document, now time.Time) {
	id := doc.GetID()
	if id == uuid.Nil {
		id = uuid.New()
	}
	doc.Stamp(id, now)
	doc.SetVersion(1)
}
