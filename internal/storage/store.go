package storage

import (
	"context"
	"errors"

	"github.com/carbonmock/carbon/pkg/mock"
)

// ErrNotFound is returned when a named record does not exist.
var ErrNotFound = errors.New("not found")

// Collections reported in ChangeEvent.
const (
	CollectionWorkspaces = "workspaces"
	CollectionProjects   = "projects"
	CollectionServices   = "services"
	CollectionApis       = "apis"
	// CollectionAny is reported when a change could not be attributed to one collection.
	CollectionAny = "*"
)

// ChangeEvent describes a change in storage.
type ChangeEvent struct {
	Collection string `json:"collection"`
	Workspace  string `json:"workspace,omitempty"`
	// Name is the changed record, or empty when the whole collection may have changed.
	Name      string `json:"name,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// ChangeListener is called when data changes.
type ChangeListener func(event ChangeEvent)

// Reader is read access to the configuration hierarchy.
type Reader interface {
	// GetWorkspace returns the named workspace or ErrNotFound.
	GetWorkspace(ctx context.Context, name string) (*mock.Workspace, error)

	// GetProjects returns the workspace's projects in enumeration order.
	GetProjects(ctx context.Context, workspace string) ([]*mock.Project, error)

	// GetProject returns a single project or ErrNotFound. It is read on every
	// request to resolve the active scenario.
	GetProject(ctx context.Context, workspace, project string) (*mock.Project, error)

	// GetServices returns the project's services in enumeration order.
	GetServices(ctx context.Context, workspace, project string) ([]*mock.Service, error)

	// GetApis returns the service's apis in enumeration order.
	GetApis(ctx context.Context, workspace, project, service string) ([]*mock.Api, error)

	// AddChangeListener registers a listener for data changes.
	AddChangeListener(listener ChangeListener)
}
