package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/carbonmock/carbon/internal/storage"
	"github.com/carbonmock/carbon/pkg/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	data, err := json.MarshalIndent(v, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

// seed writes Default/shop/{users,orders} with one api in users.
func seed(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeJSON(t, filepath.Join(dir, "Default", workspaceFile), mock.Workspace{Name: "Default"})
	writeJSON(t, filepath.Join(dir, "Default", "shop", projectFile), mock.Project{Name: "shop", ActiveScenarioID: "outage"})
	writeJSON(t, filepath.Join(dir, "Default", "shop", "users", serviceFile), mock.Service{Name: "users", URLPrefix: "/v1"})
	writeJSON(t, filepath.Join(dir, "Default", "shop", "orders", serviceFile), mock.Service{Name: "orders"})
	writeJSON(t, filepath.Join(dir, "Default", "shop", "users", apisFile), []mock.Api{{
		Name:       "get-user",
		Method:     "GET",
		URLPattern: `^/users/\d+$`,
		Providers: []mock.MockProviderConfig{{
			Name:     "ok",
			Provider: &mock.StaticProvider{ResponseBase: mock.ResponseBase{StatusCode: 200}, Body: "{}"},
		}},
	}})
	// Directories without a marker file are ignored.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Default", "shop", "scratch"), 0o755))
	return dir
}

func TestStore_ReadsHierarchy(t *testing.T) {
	ctx := context.Background()
	s := New(seed(t))

	ws, err := s.GetWorkspace(ctx, "Default")
	require.NoError(t, err)
	assert.Equal(t, "Default", ws.Name)

	projects, err := s.GetProjects(ctx, "Default")
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "Default", projects[0].Workspace)
	assert.Equal(t, "outage", projects[0].ActiveScenario())

	services, err := s.GetServices(ctx, "Default", "shop")
	require.NoError(t, err)
	require.Len(t, services, 2)
	// Name order, not creation order.
	assert.Equal(t, "orders", services[0].Name)
	assert.Equal(t, "users", services[1].Name)

	apis, err := s.GetApis(ctx, "Default", "shop", "users")
	require.NoError(t, err)
	require.Len(t, apis, 1)
	require.IsType(t, &mock.StaticProvider{}, apis[0].Providers[0].Provider)

	none, err := s.GetApis(ctx, "Default", "shop", "orders")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStore_NotFound(t *testing.T) {
	ctx := context.Background()
	s := New(seed(t))

	_, err := s.GetWorkspace(ctx, "Other")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = s.GetProject(ctx, "Default", "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = s.GetApis(ctx, "Default", "shop", "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = s.GetWorkspace(ctx, "../etc")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_BadApisFile(t *testing.T) {
	dir := seed(t)
	path := filepath.Join(dir, "Default", "shop", "users", apisFile)
	require.NoError(t, os.WriteFile(path, []byte(`[{"name":"x","providers":[{"name":"p","provider":{"type":"bogus"}}]}]`), 0o644))

	_, err := New(dir).GetApis(context.Background(), "Default", "shop", "users")
	assert.ErrorIs(t, err, mock.ErrUnknownProviderType)
}

func TestStore_CacheUntilInvalidate(t *testing.T) {
	ctx := context.Background()
	dir := seed(t)
	s := New(dir)

	p, err := s.GetProject(ctx, "Default", "shop")
	require.NoError(t, err)
	assert.Equal(t, "outage", p.ActiveScenario())

	writeJSON(t, filepath.Join(dir, "Default", "shop", projectFile), mock.Project{Name: "shop"})

	p, _ = s.GetProject(ctx, "Default", "shop")
	assert.Equal(t, "outage", p.ActiveScenario(), "served from cache")

	s.Invalidate()
	p, _ = s.GetProject(ctx, "Default", "shop")
	assert.Equal(t, mock.DefaultScenarioID, p.ActiveScenario())
}

func TestStore_InitSeedsDefaultWorkspace(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	s := New(dir)
	require.NoError(t, s.Init())

	ws, err := s.GetWorkspace(context.Background(), mock.DefaultWorkspaceName)
	require.NoError(t, err)
	assert.Equal(t, "Default workspace", ws.Description)

	// A second Init leaves existing data alone.
	require.NoError(t, s.Init())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStore_WatchNotifiesOnChange(t *testing.T) {
	dir := seed(t)
	s := New(dir)
	t.Cleanup(func() { _ = s.Close() })

	events := make(chan storage.ChangeEvent, 8)
	s.AddChangeListener(func(e storage.ChangeEvent) { events <- e })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Watch(ctx, WithDebounce(20*time.Millisecond)))

	// Prime the cache, then change a file in a nested directory.
	_, err := s.GetProject(ctx, "Default", "shop")
	require.NoError(t, err)
	writeJSON(t, filepath.Join(dir, "Default", "shop", projectFile), mock.Project{Name: "shop", ActiveScenarioID: "slow"})

	select {
	case e := <-events:
		assert.Equal(t, storage.CollectionAny, e.Collection)
	case <-time.After(3 * time.Second):
		t.Fatal("no change notification")
	}

	p, err := s.GetProject(ctx, "Default", "shop")
	require.NoError(t, err)
	assert.Equal(t, "slow", p.ActiveScenario())
}

func TestStore_WatchPicksUpNewDirectories(t *testing.T) {
	dir := seed(t)
	s := New(dir)
	t.Cleanup(func() { _ = s.Close() })

	events := make(chan storage.ChangeEvent, 8)
	s.AddChangeListener(func(e storage.ChangeEvent) { events <- e })
	require.NoError(t, s.Watch(context.Background(), WithDebounce(20*time.Millisecond)))

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Default", "shop", "billing"), 0o755))
	waitEvent(t, events)

	writeJSON(t, filepath.Join(dir, "Default", "shop", "billing", serviceFile), mock.Service{Name: "billing"})
	waitEvent(t, events)

	services, err := s.GetServices(context.Background(), "Default", "shop")
	require.NoError(t, err)
	assert.Len(t, services, 3)
}

func waitEvent(t *testing.T, events <-chan storage.ChangeEvent) {
	t.Helper()
	select {
	case <-events:
	case <-time.After(3 * time.Second):
		t.Fatal("no change notification")
	}
}
