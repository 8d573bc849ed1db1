// Package mock defines the configuration records served by carbon
// (workspaces, projects, services, apis and their response providers) and the
// request values handed to user scripts and templates.
package mock

import (
	"encoding/json"
	"fmt"
	"slices"
)

// DefaultWorkspaceName is the workspace selected when nothing else is configured.
const DefaultWorkspaceName = "Default"

// DefaultScenarioID is the reserved scenario that every project implicitly has.
// It cannot be edited or deleted.
const DefaultScenarioID = "default"

// DefaultScenario is the implicit scenario record for DefaultScenarioID.
var DefaultScenario = ProjectScenario{
	ID:          DefaultScenarioID,
	Name:        "Default",
	Description: "Default scenario",
}

// Workspace is the outermost configuration scope. Only the active workspace is served.
type Workspace struct {
	// Name is the immutable identifier (and directory name).
	Name        string `json:"name" yaml:"name"`
	DisplayName string `json:"displayName" yaml:"displayName"`
	Description string `json:"description" yaml:"description"`
}

// Project groups services and owns the scenario list.
type Project struct {
	Name        string            `json:"name" yaml:"name"`
	DisplayName string            `json:"displayName" yaml:"displayName"`
	Description string            `json:"description" yaml:"description"`
	Workspace   string            `json:"workspace" yaml:"workspace"`
	Scenarios   []ProjectScenario `json:"scenarios,omitempty" yaml:"scenarios,omitempty"`

	// ActiveScenarioID selects which providers are eligible. Empty means DefaultScenarioID.
	ActiveScenarioID string `json:"activeScenarioId,omitempty" yaml:"activeScenarioId,omitempty"`
}

// ProjectScenario is a named mode that filters eligible providers.
type ProjectScenario struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// AllScenarios returns the project's scenarios with the default scenario first,
// whether or not storage contains it.
func (p *Project) AllScenarios() []ProjectScenario {
	out := []ProjectScenario{DefaultScenario}
	for _, s := range p.Scenarios {
		if s.ID == DefaultScenarioID {
			continue
		}
		out = append(out, s)
	}
	return out
}

// ActiveScenario returns the active scenario id, falling back to DefaultScenarioID.
func (p *Project) ActiveScenario() string {
	if p == nil || p.ActiveScenarioID == "" {
		return DefaultScenarioID
	}
	return p.ActiveScenarioID
}

// Service is a logical downstream (host + optional URL prefix) inside a project.
type Service struct {
	Name        string `json:"name" yaml:"name"`
	DisplayName string `json:"displayName" yaml:"displayName"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Hostname is compared against the Host header when MatchHostName is set.
	Hostname      string `json:"hostname,omitempty" yaml:"hostname,omitempty"`
	MatchHostName bool   `json:"matchHostName,omitempty" yaml:"matchHostName,omitempty"`

	// URLPrefix must prefix the request path; it is stripped before pattern matching.
	URLPrefix string `json:"urlPrefix,omitempty" yaml:"urlPrefix,omitempty"`

	InjectLatencyMs int   `json:"injectLatencyMs,omitempty" yaml:"injectLatencyMs,omitempty"`
	Enabled         *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
}

// IsEnabled reports whether the service takes part in matching (absent means enabled).
func (s *Service) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Api is a single routable endpoint: method + URL regex + ordered providers.
type Api struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Method      string `json:"method" yaml:"method"`

	// URLPattern is a regular expression source matched against the request path
	// (with the service prefix removed).
	URLPattern string               `json:"urlPattern" yaml:"urlPattern"`
	Enabled    *bool                `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Providers  []MockProviderConfig `json:"providers" yaml:"providers"`
}

// IsEnabled reports whether the api takes part in matching (absent means enabled).
func (a *Api) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// RequestMatcherFunction holds the source of a provider's matcher predicate.
// An empty or whitespace-only body matches every request.
type RequestMatcherFunction struct {
	Body string `json:"body" yaml:"body"`
}

// MockProviderConfig pairs a matcher predicate with a response recipe.
type MockProviderConfig struct {
	Name     string                 `json:"name"`
	Enabled  *bool                  `json:"enabled,omitempty"`
	Matcher  RequestMatcherFunction `json:"matcher"`
	Provider ResponseProvider       `json:"-"`

	// ScenarioIDs limits the provider to the listed scenarios. Empty applies everywhere.
	ScenarioIDs []string `json:"scenarioIds,omitempty"`
}

// IsEnabled reports whether the provider may be selected (absent means enabled).
func (p *MockProviderConfig) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// AppliesToScenario reports whether the provider is eligible under the given scenario.
func (p *MockProviderConfig) AppliesToScenario(id string) bool {
	return len(p.ScenarioIDs) == 0 || slices.Contains(p.ScenarioIDs, id)
}

type mockProviderConfigJSON struct {
	Name        string                 `json:"name"`
	Enabled     *bool                  `json:"enabled,omitempty"`
	Matcher     RequestMatcherFunction `json:"matcher"`
	Provider    json.RawMessage        `json:"provider"`
	ScenarioIDs []string               `json:"scenarioIds,omitempty"`
}

// UnmarshalJSON decodes the provider union through its "type" discriminator.
func (p *MockProviderConfig) UnmarshalJSON(data []byte) error {
	var raw mockProviderConfigJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	provider, err := DecodeResponseProvider(raw.Provider)
	if err != nil {
		return fmt.Errorf("provider %q: %w", raw.Name, err)
	}
	p.Name = raw.Name
	p.Enabled = raw.Enabled
	p.Matcher = raw.Matcher
	p.Provider = provider
	p.ScenarioIDs = raw.ScenarioIDs
	return nil
}

// MarshalJSON encodes the provider union with its "type" discriminator.
func (p MockProviderConfig) MarshalJSON() ([]byte, error) {
	provider, err := EncodeResponseProvider(p.Provider)
	if err != nil {
		return nil, err
	}
	return json.Marshal(mockProviderConfigJSON{
		Name:        p.Name,
		Enabled:     p.Enabled,
		Matcher:     p.Matcher,
		Provider:    provider,
		ScenarioIDs: p.ScenarioIDs,
	})
}

// Bool returns a pointer to b, for the optional enabled flags.
func Bool(b bool) *bool {
	return &b
}
