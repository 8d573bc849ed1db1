// Package file provides a read-only storage.Reader over carbon's on-disk layout:
//
//	<dataDir>/<workspace>/workspace.json
//	<dataDir>/<workspace>/<project>/project.json
//	<dataDir>/<workspace>/<project>/<service>/service.json
//	<dataDir>/<workspace>/<project>/<service>/apis.json
//
// Directories enumerate in name order, which fixes first-match precedence.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/carbonmock/carbon/internal/storage"
	"github.com/carbonmock/carbon/pkg/logging"
	"github.com/carbonmock/carbon/pkg/mock"
)

const (
	workspaceFile = "workspace.json"
	projectFile   = "project.json"
	serviceFile   = "service.json"
	apisFile      = "apis.json"
)

// Store implements storage.Reader over JSON files. Decoded files are cached
// until Invalidate is called (the watcher does so on every change).
type Store struct {
	dataDir   string
	log       *slog.Logger
	mu        sync.RWMutex
	cache     map[string]any
	listeners storage.Listeners

	watchMu sync.Mutex
	watcher *Watcher
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store's operational logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// New creates a Store rooted at dataDir.
func New(dataDir string, opts ...Option) *Store {
	s := &Store{
		dataDir: dataDir,
		log:     logging.Nop(),
		cache:   make(map[string]any),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DataDir returns the root directory.
func (s *Store) DataDir() string {
	return s.dataDir
}

// Init creates the data directory and seeds the default workspace when no
// workspace exists yet.
func (s *Store) Init() error {
	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() && fileExists(filepath.Join(s.dataDir, e.Name(), workspaceFile)) {
			return nil
		}
	}

	ws := mock.Workspace{
		Name:        mock.DefaultWorkspaceName,
		DisplayName: mock.DefaultWorkspaceName,
		Description: "Default workspace",
	}
	dir := filepath.Join(s.dataDir, ws.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(ws, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, workspaceFile), data, 0o644); err != nil {
		return err
	}
	s.log.Info("created default workspace", "path", dir)
	s.Invalidate()
	return nil
}

// Invalidate drops every cached file.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.cache = make(map[string]any)
	s.mu.Unlock()
}

// GetWorkspace implements storage.Reader.
func (s *Store) GetWorkspace(_ context.Context, name string) (*mock.Workspace, error) {
	if !validName(name) {
		return nil, fmt.Errorf("workspace %q: %w", name, storage.ErrNotFound)
	}
	ws, err := readCached[mock.Workspace](s, filepath.Join(s.dataDir, name, workspaceFile))
	if err != nil {
		return nil, fmt.Errorf("workspace %q: %w", name, err)
	}
	return ws, nil
}

// GetProjects implements storage.Reader.
func (s *Store) GetProjects(_ context.Context, workspace string) ([]*mock.Project, error) {
	dir := filepath.Join(s.dataDir, workspace)
	names, err := childrenWith(dir, projectFile)
	if err != nil {
		return nil, fmt.Errorf("workspace %q: %w", workspace, err)
	}
	out := make([]*mock.Project, 0, len(names))
	for _, name := range names {
		p, err := s.readProject(workspace, name)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// GetProject implements storage.Reader.
func (s *Store) GetProject(_ context.Context, workspace, project string) (*mock.Project, error) {
	if !validName(workspace) || !validName(project) {
		return nil, fmt.Errorf("project %q: %w", project, storage.ErrNotFound)
	}
	return s.readProject(workspace, project)
}

// GetServices implements storage.Reader.
func (s *Store) GetServices(_ context.Context, workspace, project string) ([]*mock.Service, error) {
	dir := filepath.Join(s.dataDir, workspace, project)
	names, err := childrenWith(dir, serviceFile)
	if err != nil {
		return nil, fmt.Errorf("project %q: %w", project, err)
	}
	out := make([]*mock.Service, 0, len(names))
	for _, name := range names {
		svc, err := readCached[mock.Service](s, filepath.Join(dir, name, serviceFile))
		if err != nil {
			return nil, fmt.Errorf("service %q: %w", name, err)
		}
		out = append(out, svc)
	}
	return out, nil
}

// GetApis implements storage.Reader. A service without apis.json has no apis.
func (s *Store) GetApis(_ context.Context, workspace, project, service string) ([]*mock.Api, error) {
	dir := filepath.Join(s.dataDir, workspace, project, service)
	if !fileExists(filepath.Join(dir, serviceFile)) {
		return nil, fmt.Errorf("service %q: %w", service, storage.ErrNotFound)
	}
	apis, err := readCached[[]*mock.Api](s, filepath.Join(dir, apisFile))
	if errors.Is(err, storage.ErrNotFound) {
		return []*mock.Api{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("service %q apis: %w", service, err)
	}
	out := make([]*mock.Api, len(*apis))
	copy(out, *apis)
	return out, nil
}

// AddChangeListener implements storage.Reader.
func (s *Store) AddChangeListener(listener storage.ChangeListener) {
	s.listeners.Add(listener)
}

// Watch starts watching the data directory. Changes invalidate the cache and
// notify listeners after a quiet period. Watching stops when ctx is done or
// Close is called.
func (s *Store) Watch(ctx context.Context, opts ...WatcherOption) error {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.watcher != nil {
		return nil
	}
	opts = append([]WatcherOption{WithWatcherLogger(s.log)}, opts...)
	w, err := NewWatcher(s.dataDir, func() {
		s.Invalidate()
		s.listeners.Notify(storage.ChangeEvent{Collection: storage.CollectionAny})
	}, opts...)
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		_ = w.Stop()
		return err
	}
	s.watcher = w
	return nil
}

// Close stops the watcher, if any. Safe to call multiple times.
func (s *Store) Close() error {
	s.watchMu.Lock()
	w := s.watcher
	s.watcher = nil
	s.watchMu.Unlock()
	if w == nil {
		return nil
	}
	return w.Stop()
}

func (s *Store) readProject(workspace, name string) (*mock.Project, error) {
	p, err := readCached[mock.Project](s, filepath.Join(s.dataDir, workspace, name, projectFile))
	if err != nil {
		return nil, fmt.Errorf("project %q: %w", name, err)
	}
	if p.Workspace == "" {
		p.Workspace = workspace
	}
	return p, nil
}

// readCached decodes path into a *T, sharing the decoded value between callers
// until the cache is invalidated. Callers must not mutate the result.
func readCached[T any](s *Store, path string) (*T, error) {
	s.mu.RLock()
	if v, ok := s.cache[path]; ok {
		s.mu.RUnlock()
		return v.(*T), nil
	}
	s.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	v := new(T)
	if err := json.Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	s.mu.Lock()
	s.cache[path] = v
	s.mu.Unlock()
	return v, nil
}

// childrenWith lists subdirectories of dir containing marker, in name order.
func childrenWith(dir, marker string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if fileExists(filepath.Join(dir, e.Name(), marker)) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// validName rejects names that would escape the data directory.
func validName(name string) bool {
	return name != "" && name != "." && name != ".." && filepath.Base(name) == name
}

// Ensure Store implements storage.Reader.
var _ storage.Reader = (*Store)(nil)
