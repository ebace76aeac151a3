package mongodb

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/projecthub/server/internal/model"
	"github.com/projecthub/server/internal/module/query"
)

func TestFilter_ProjectVisibilityWithSearch(t *testing.T) {
	user := model.Principal{ID: uuid.New(), Role: model.UserRoleMember}

	f, err := filter(query.ProjectPredicate(user, query.ProjectFilter{Search: "a.b"}), projectPaths)
	require.NoError(t, err)

	and, ok := f["$and"].(bson.A)
	require.True(t, ok, "visibility and search must be combined with $and")
	require.Len(t, and, 2)

	assert.Equal(t, bson.M{"$or": bson.A{
		bson.M{"owner_id": user.ID},
		bson.M{"team.user_id": user.ID},
	}}, and[0])
	assert.Equal(t, bson.M{"$or": bson.A{
		bson.M{"name": primitive.Regex{Pattern: `a\.b`, Options: "i"}},
		bson.M{"description": primitive.Regex{Pattern: `a\.b`, Options: "i"}},
	}}, and[1])
}

func TestFilter_AdminUnrestricted(t *testing.T) {
	admin := model.Principal{ID: uuid.New(), Role: model.UserRoleAdmin}

	f, err := filter(query.TaskPredicate(admin, query.TaskFilter{}), taskPaths)
	require.NoError(t, err)
	assert.Empty(t, f)
}

func TestFilter_UnknownField(t *testing.T) {
	_, err := filter(query.Eq(model.FieldOwner, uuid.New()), taskPaths)
	assert.Error(t, err)
}

func TestUUIDCodec_RoundTrip(t *testing.T) {
	reg := NewRegistry()
	task := model.Task{
		ID:         uuid.New(),
		ProjectID:  uuid.New(),
		AssignedTo: []uuid.UUID{uuid.New()},
		Title:      "encode me",
	}

	raw, err := bson.MarshalWithRegistry(reg, task)
	require.NoError(t, err)

	// ids are stored as binary subtype 4
	idVal := bson.Raw(raw).Lookup("_id")
	subtype, data, ok := idVal.BinaryOK()
	require.True(t, ok)
	assert.Equal(t, byte(0x04), subtype)
	assert.Equal(t, task.ID[:], data)

	var decoded model.Task
	require.NoError(t, bson.UnmarshalWithRegistry(reg, raw, &decoded))
	assert.Equal(t, task.ID, decoded.ID)
	assert.Equal(t, task.ProjectID, decoded.ProjectID)
	assert.Equal(t, task.AssignedTo, decoded.AssignedTo)
	assert.Equal(t, task.Title, decoded.Title)
}
