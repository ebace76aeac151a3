package user

import (
	"github.com/projecthub/server/internal/model"
	"github.com/projecthub/server/internal/module/query"
)

// ListUsersQuery holds the list query string.
type ListUsersQuery struct {
	Role   model.UserRole `form:"role" binding:"omitempty,oneof=admin manager member"`
	Search string         `form:"search"`
}

// Filter converts the query into a list filter.
func (q ListUsersQuery) Filter() query.UserFilter {
	return query.UserFilter{Role: q.Role, Search: q.Search}
}
