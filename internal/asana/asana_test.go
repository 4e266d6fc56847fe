package asana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string) *Client {
	return New(Config{
		PAT:          "test-pat",
		WorkspaceGID: "ws-1",
		ProjectGID:   "proj-1",
		BaseURL:      url,
	})
}

func TestInviteUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/workspaces/ws-1/addUser", r.URL.Path)
		assert.Equal(t, "Bearer test-pat", r.Header.Get("Authorization"))

		var body map[string]map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hire@example.com", body["data"]["user"])

		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"gid": "u-1", "name": "Hire", "email": "hire@example.com"},
		})
	}))
	defer srv.Close()

	user, err := newTestClient(srv.URL).InviteUser(context.Background(), "hire@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.GID)
	assert.Equal(t, "hire@example.com", user.Email)
}

func TestCreateTask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tasks", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("opt_fields"), "permalink_url")

		var body map[string]map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		data := body["data"]
		assert.Equal(t, "Onboarding for Hire - Data Engineer", data["name"])
		assert.Equal(t, "hire@example.com", data["assignee"])
		assert.Equal(t, "ws-1", data["workspace"])
		assert.Equal(t, []any{"proj-1"}, data["projects"])

		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"gid":           "task-1",
				"name":          data["name"],
				"permalink_url": "https://app.asana.com/0/proj-1/task-1",
			},
		})
	}))
	defer srv.Close()

	task, err := newTestClient(srv.URL).CreateTask(context.Background(), "Onboarding for Hire - Data Engineer", "hire@example.com")
	require.NoError(t, err)
	assert.Equal(t, "task-1", task.GID)
	assert.NotEmpty(t, task.PermalinkURL)
}

func TestAPIErrorMessageSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]any{
			"errors": []map[string]string{{"message": "workspace: Not a valid GID"}},
		})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).InviteUser(context.Background(), "hire@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Not a valid GID")
}

func TestBreakerOpensAfterServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	for i := 0; i < 3; i++ {
		_, err := c.InviteUser(context.Background(), "hire@example.com")
		require.Error(t, err)
	}

	_, err := c.InviteUser(context.Background(), "hire@example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}
