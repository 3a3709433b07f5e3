package tasks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lysyi3m/feed2social/app/feed"
)

func TestRefreshTokenTaskWritesNewToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/refresh_access_token", r.URL.Path)
		assert.Equal(t, "th_refresh_token", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "old-token", r.URL.Query().Get("access_token"))
		w.Write([]byte(`{"access_token":"new-token","token_type":"bearer","expires_in":5183944}`))
	}))
	defer server.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, "threads.yml")
	require.NoError(t, os.WriteFile(path, []byte(`# main account
type: threads
enabled: true
base_url: `+server.URL+`
credentials:
  user_id: "42"
  access_token: old-token
`), 0600))

	configCache := feed.NewDestinationConfigCache(dir)
	require.NoError(t, configCache.Run())

	task := NewRefreshTokenTask("threads", configCache, server.Client(), "test")
	require.NoError(t, task.Execute(context.Background()))
	assert.Equal(t, 5183944*time.Second, task.ExpiresIn)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "access_token: new-token")
	assert.Contains(t, string(data), "# main account")

	config, err := configCache.GetConfig("threads")
	require.NoError(t, err)
	assert.Equal(t, "new-token", config.Credential("access_token"))
}

func TestRefreshTokenTaskRejectsOtherTypes(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sky.yml"), []byte(`
type: bluesky
enabled: false
`), 0600))

	configCache := feed.NewDestinationConfigCache(dir)
	require.NoError(t, configCache.Run())

	task := NewRefreshTokenTask("sky", configCache, http.DefaultClient, "test")
	assert.ErrorContains(t, task.Execute(context.Background()), "only threads")
}
