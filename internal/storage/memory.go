package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/carbonmock/carbon/pkg/mock"
)

// MemoryStore is a thread-safe in-memory Reader. Records enumerate in
// insertion order; replacing a record keeps its position.
type MemoryStore struct {
	mu         sync.RWMutex
	workspaces []*workspaceNode
	listeners  Listeners
}

type workspaceNode struct {
	workspace *mock.Workspace
	projects  []*projectNode
}

type projectNode struct {
	project  *mock.Project
	services []*serviceNode
}

type serviceNode struct {
	service *mock.Service
	apis    []*mock.Api
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// PutWorkspace stores or replaces a workspace.
func (s *MemoryStore) PutWorkspace(ws *mock.Workspace) {
	s.mu.Lock()
	if n := s.findWorkspace(ws.Name); n != nil {
		n.workspace = ws
	} else {
		s.workspaces = append(s.workspaces, &workspaceNode{workspace: ws})
	}
	s.mu.Unlock()
	s.listeners.Notify(ChangeEvent{Collection: CollectionWorkspaces, Workspace: ws.Name, Name: ws.Name})
}

// PutProject stores or replaces a project inside an existing workspace.
func (s *MemoryStore) PutProject(workspace string, p *mock.Project) error {
	s.mu.Lock()
	ws := s.findWorkspace(workspace)
	if ws == nil {
		s.mu.Unlock()
		return fmt.Errorf("workspace %q: %w", workspace, ErrNotFound)
	}
	p.Workspace = workspace
	if n := findProject(ws, p.Name); n != nil {
		n.project = p
	} else {
		ws.projects = append(ws.projects, &projectNode{project: p})
	}
	s.mu.Unlock()
	s.listeners.Notify(ChangeEvent{Collection: CollectionProjects, Workspace: workspace, Name: p.Name})
	return nil
}

// PutService stores or replaces a service inside an existing project.
func (s *MemoryStore) PutService(workspace, project string, svc *mock.Service) error {
	s.mu.Lock()
	pn, err := s.projectNode(workspace, project)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if n := findService(pn, svc.Name); n != nil {
		n.service = svc
	} else {
		pn.services = append(pn.services, &serviceNode{service: svc})
	}
	s.mu.Unlock()
	s.listeners.Notify(ChangeEvent{Collection: CollectionServices, Workspace: workspace, Name: svc.Name})
	return nil
}

// PutApi stores or replaces an api inside an existing service.
func (s *MemoryStore) PutApi(workspace, project, service string, api *mock.Api) error {
	s.mu.Lock()
	pn, err := s.projectNode(workspace, project)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	sn := findService(pn, service)
	if sn == nil {
		s.mu.Unlock()
		return fmt.Errorf("service %q: %w", service, ErrNotFound)
	}
	replaced := false
	for i, a := range sn.apis {
		if a.Name == api.Name {
			sn.apis[i] = api
			replaced = true
			break
		}
	}
	if !replaced {
		sn.apis = append(sn.apis, api)
	}
	s.mu.Unlock()
	s.listeners.Notify(ChangeEvent{Collection: CollectionApis, Workspace: workspace, Name: api.Name})
	return nil
}

// SetActiveScenario changes a project's active scenario.
func (s *MemoryStore) SetActiveScenario(workspace, project, scenarioID string) error {
	s.mu.Lock()
	pn, err := s.projectNode(workspace, project)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	updated := *pn.project
	updated.ActiveScenarioID = scenarioID
	pn.project = &updated
	s.mu.Unlock()
	s.listeners.Notify(ChangeEvent{Collection: CollectionProjects, Workspace: workspace, Name: project})
	return nil
}

// GetWorkspace implements Reader.
func (s *MemoryStore) GetWorkspace(_ context.Context, name string) (*mock.Workspace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n := s.findWorkspace(name); n != nil {
		return n.workspace, nil
	}
	return nil, fmt.Errorf("workspace %q: %w", name, ErrNotFound)
}

// GetProjects implements Reader.
func (s *MemoryStore) GetProjects(_ context.Context, workspace string) ([]*mock.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ws := s.findWorkspace(workspace)
	if ws == nil {
		return nil, fmt.Errorf("workspace %q: %w", workspace, ErrNotFound)
	}
	out := make([]*mock.Project, 0, len(ws.projects))
	for _, n := range ws.projects {
		out = append(out, n.project)
	}
	return out, nil
}

// GetProject implements Reader.
func (s *MemoryStore) GetProject(_ context.Context, workspace, project string) (*mock.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pn, err := s.projectNode(workspace, project)
	if err != nil {
		return nil, err
	}
	return pn.project, nil
}

// GetServices implements Reader.
func (s *MemoryStore) GetServices(_ context.Context, workspace, project string) ([]*mock.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pn, err := s.projectNode(workspace, project)
	if err != nil {
		return nil, err
	}
	out := make([]*mock.Service, 0, len(pn.services))
	for _, n := range pn.services {
		out = append(out, n.service)
	}
	return out, nil
}

// GetApis implements Reader.
func (s *MemoryStore) GetApis(_ context.Context, workspace, project, service string) ([]*mock.Api, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pn, err := s.projectNode(workspace, project)
	if err != nil {
		return nil, err
	}
	sn := findService(pn, service)
	if sn == nil {
		return nil, fmt.Errorf("service %q: %w", service, ErrNotFound)
	}
	out := make([]*mock.Api, len(sn.apis))
	copy(out, sn.apis)
	return out, nil
}

// AddChangeListener implements Reader.
func (s *MemoryStore) AddChangeListener(listener ChangeListener) {
	s.listeners.Add(listener)
}

func (s *MemoryStore) findWorkspace(name string) *workspaceNode {
	for _, n := range s.workspaces {
		if n.workspace.Name == name {
			return n
		}
	}
	return nil
}

func (s *MemoryStore) projectNode(workspace, project string) (*projectNode, error) {
	ws := s.findWorkspace(workspace)
	if ws == nil {
		return nil, fmt.Errorf("workspace %q: %w", workspace, ErrNotFound)
	}
	pn := findProject(ws, project)
	if pn == nil {
		return nil, fmt.Errorf("project %q: %w", project, ErrNotFound)
	}
	return pn, nil
}

func findProject(ws *workspaceNode, name string) *projectNode {
	for _, n := range ws.projects {
		if n.project.Name == name {
			return n
		}
	}
	return nil
}

func findService(pn *projectNode, name string) *serviceNode {
	for _, n := range pn.services {
		if n.service.Name == name {
			return n
		}
	}
	return nil
}

// Ensure MemoryStore implements Reader.
var _ Reader = (*MemoryStore)(nil)
