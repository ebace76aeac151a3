package project

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projecthub/server/internal/model"
	"github.com/projecthub/server/internal/module/query"
	apperrors "github.com/projecthub/server/internal/shared/errors"
	"github.com/projecthub/server/internal/shared/middleware"
)

type tokenAuth map[string]model.Principal

func (a tokenAuth) Authenticate(_ context.Context, token string) (model.Principal, error) {
	if p, ok := a[token]; ok {
		return p, nil
	}
	return model.Principal{}, apperrors.Unauthorized("invalid token")
}

type envelope struct {
	Success bool            `json:"success"`
	Count   *int            `json:"count"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func newTestRouter(t *testing.T, f *fixture) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	authn := tokenAuth{
		"owner":    f.owner,
		"member":   f.member,
		"outsider": f.outsider,
	}
	r := gin.New()
	api := r.Group("/api/v1", middleware.Auth(authn))
	NewHandler(f.service).RegisterRoutes(api)
	return r
}

func call(t *testing.T, r http.Handler, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func TestHandler_ListEnvelope(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(t, f)

	w, env := call(t, r, http.MethodGet, "/api/v1/projects", "member", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	require.NotNil(t, env.Count)
	assert.Equal(t, 1, *env.Count)

	w, env = call(t, r, http.MethodGet, "/api/v1/projects", "outsider", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, *env.Count)
	assert.JSONEq(t, "[]", string(env.Data))

	w, _ = call(t, r, http.MethodGet, "/api/v1/projects?status=archived", "member", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_Create(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(t, f)

	body := map[string]any{
		"name":        "Mercury",
		"description": "First flights",
		"start_date":  "2024-01-01T00:00:00Z",
		"end_date":    "2024-03-01T00:00:00Z",
	}
	w, env := call(t, r, http.MethodPost, "/api/v1/projects", "owner", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created model.Project
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "Mercury", created.Name)
	assert.Equal(t, f.owner.ID, created.OwnerID)

	body["end_date"] = "2023-01-01T00:00:00Z"
	w, env = call(t, r, http.MethodPost, "/api/v1/projects", "owner", body)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)

	w, env = call(t, r, http.MethodPost, "/api/v1/projects", "member", body)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, env.Success)

	w, _ = call(t, r, http.MethodPost, "/api/v1/projects", "owner", map[string]any{"name": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = call(t, r, http.MethodPost, "/api/v1/projects", "", body)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandler_ProjectErrors(t *testing.T) {
	f := newFixture(t)
	r := newTestRouter(t, f)
	path := "/api/v1/projects/" + f.project.ID.String()

	w, _ := call(t, r, http.MethodGet, path, "outsider", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = call(t, r, http.MethodGet, "/api/v1/projects/not-a-uuid", "owner", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = call(t, r, http.MethodPost, path+"/team", "owner", map[string]any{"user_id": f.member.ID})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w, env := call(t, r, http.MethodGet, path+"/analytics", "member", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), "total_tasks")

	w, _ = call(t, r, http.MethodDelete, path, "owner", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = call(t, r, http.MethodGet, path, "owner", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_RegisterRoutesCopiesCreateChain(t *testing.T) {
	gin.SetMode(gin.TestMode)
	first, second := newFixture(t), newFixture(t)

	limited := 0
	chain := make([]gin.HandlerFunc, 1, 4)
	chain[0] = func(c *gin.Context) { limited++ }

	r := gin.New()
	api := r.Group("/api/v1", middleware.Auth(tokenAuth{"owner": first.owner}))
	NewHandler(first.service).RegisterRoutes(api.Group("/first"), chain...)
	NewHandler(second.service).RegisterRoutes(api.Group("/second"), chain...)

	body := map[string]any{
		"name":        "Mercury",
		"description": "First flights",
		"start_date":  "2024-01-01T00:00:00Z",
		"end_date":    "2024-03-01T00:00:00Z",
	}
	w, _ := call(t, r, http.MethodPost, "/api/v1/first/projects", "owner", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, 1, limited)

	firstAll, err := first.service.List(context.Background(), first.admin, query.ProjectFilter{})
	require.NoError(t, err)
	assert.Len(t, firstAll, 2, "create reached the handler it was registered for")

	secondAll, err := second.service.List(context.Background(), second.admin, query.ProjectFilter{})
	require.NoError(t, err)
	assert.Len(t, secondAll, 1)
}
