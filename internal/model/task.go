package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// TaskStatus represents the workflow state of a task.
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in-progress"
	TaskStatusReview     TaskStatus = "review"
	TaskStatusDone       TaskStatus = "done"
)

// IsValid reports whether s is a known task status.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusReview, TaskStatusDone:
		return true
	default:
		return false
	}
}

// Comment is an append-only note on a task. Comments are embedded in the task
// and are not addressable on their own.
type Comment struct {
	ID        uuid.UUID `json:"id" bson:"id"`
	AuthorID  uuid.UUID `json:"author_id" bson:"author_id"`
	Text      string    `json:"text" bson:"text"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Task is a unit of work inside exactly one project.
type Task struct {
	ID             uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey" bson:"_id"`
	Title          string         `json:"title" gorm:"size:200;not null" bson:"title"`
	Description    string         `json:"description,omitempty" bson:"description,omitempty"`
	ProjectID      uuid.UUID      `json:"project_id" gorm:"type:uuid;not null;index" bson:"project_id"`
	AssignedTo     []uuid.UUID    `json:"assigned_to" gorm:"type:jsonb;serializer:json" bson:"assigned_to"`
	CreatedBy      uuid.UUID      `json:"created_by" gorm:"type:uuid;not null;index" bson:"created_by"`
	Status         TaskStatus     `json:"status" gorm:"not null;default:todo;index" bson:"status"`
	Priority       Priority       `json:"priority" gorm:"not null;default:medium" bson:"priority"`
	DueDate        *time.Time     `json:"due_date,omitempty" bson:"due_date,omitempty"`
	EstimatedHours float64        `json:"estimated_hours" bson:"estimated_hours"`
	ActualHours    float64        `json:"actual_hours" bson:"actual_hours"`
	Tags           pq.StringArray `json:"tags,omitempty" gorm:"type:text[]" bson:"tags,omitempty"`
	Comments       []Comment      `json:"comments" gorm:"type:jsonb;serializer:json" bson:"comments"`
	Version        int64          `json:"version" gorm:"not null;default:1" bson:"version"`
	CreatedAt      time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" bson:"updated_at"`
}

// TableName returns the database table name.
func (Task) TableName() string {
	return "tasks"
}

func (t *Task) GetID() uuid.UUID    { return t.ID }
func (t *Task) GetVersion() int64   { return t.Version }
func (t *Task) SetVersion(v int64)  { t.Version = v }
func (t *Task) Touch(now time.Time) { t.UpdatedAt = now }

func (t *Task) Stamp(id uuid.UUID, now time.Time) {
	t.ID = id
	t.CreatedAt = now
	t.UpdatedAt = now
}

func (t *Task) FieldValue(f Field) any {
	switch f {
	case FieldID:
		return t.ID
	case FieldProject:
		return t.ProjectID
	case FieldCreatedBy:
		return t.CreatedBy
	case FieldAssignedTo:
		return cloneIDs(t.AssignedTo)
	case FieldStatus:
		return string(t.Status)
	case FieldPriority:
		return string(t.Priority)
	case FieldTitle:
		return t.Title
	case FieldDescription:
		return t.Description
	default:
		return nil
	}
}

// IsAssigned reports whether userID is among the assignees.
func (t *Task) IsAssigned(userID uuid.UUID) bool {
	for _, id := range t.AssignedTo {
		if id == userID {
			return true
		}
	}
	return false
}

// IsOverdue reports whether the task has a due date before now and is not done.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now) && t.Status != TaskStatusDone
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	c := *t
	c.AssignedTo = cloneIDs(t.AssignedTo)
	c.Tags = cloneStrings(t.Tags)
	if t.Comments != nil {
		c.Comments = make([]Comment, len(t.Comments))
		copy(c.Comments, t.Comments)
	}
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	return &c
}
