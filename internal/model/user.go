package model

import (
	"time"

	"github.com/google/uuid"
)

// UserRole is the system-wide role of a user.
type UserRole string

const (
	UserRoleAdmin   UserRole = "admin"
	UserRoleManager UserRole = "manager"
	UserRoleMember  UserRole = "member"
)

// IsValid reports whether r is a known user role.
func (r UserRole) IsValid() bool {
	switch r {
	case UserRoleAdmin, UserRoleManager, UserRoleMember:
		return true
	default:
		return false
	}
}

// User is a registered account. Users are created at registration and their role
// is changed by administrators; both happen outside this service.
type User struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey" bson:"_id"`
	Name      string    `json:"name" gorm:"not null" bson:"name"`
	Email     string    `json:"email" gorm:"uniqueIndex;not null" bson:"email"`
	Role      UserRole  `json:"role" gorm:"not null;default:member" bson:"role"`
	Version   int64     `json:"version" gorm:"not null;default:1" bson:"version"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// TableName returns the database table name.
func (User) TableName() string {
	return "users"
}

func (u *User) GetID() uuid.UUID    { return u.ID }
func (u *User) GetVersion() int64   { return u.Version }
func (u *User) SetVersion(v int64)  { u.Version = v }
func (u *User) Touch(now time.Time) { u.UpdatedAt = now }

func (u *User) Stamp(id uuid.UUID, now time.Time) {
	u.ID = id
	u.CreatedAt = now
	u.UpdatedAt = now
}

func (u *User) FieldValue(f Field) any {
	switch f {
	case FieldID:
		return u.ID
	case FieldName:
		return u.Name
	case FieldEmail:
		return u.Email
	case FieldRole:
		return string(u.Role)
	default:
		return nil
	}
}

// Clone returns a copy of the user.
func (u *User) Clone() *User {
	c := *u
	return &c
}

// Principal returns the authenticated identity derived from this user.
func (u *User) Principal() Principal {
	return Principal{ID: u.ID, Role: u.Role}
}

// Principal is the authenticated identity making a request.
type Principal struct {
	ID   uuid.UUID `json:"id"`
	Role UserRole  `json:"role"`
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == UserRoleAdmin
}
