package engine

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/carbonmock/carbon/internal/matching"
	"github.com/carbonmock/carbon/internal/script"
	"github.com/carbonmock/carbon/internal/storage"
	"github.com/carbonmock/carbon/pkg/logging"
	"github.com/carbonmock/carbon/pkg/metrics"
	"github.com/carbonmock/carbon/pkg/mock"
	"github.com/carbonmock/carbon/pkg/template"
	"github.com/carbonmock/carbon/pkg/workspace"
)

// Compile stages reported in Diagnostic.Stage.
const (
	StageApis            = "apis"
	StageURLPattern      = "urlPattern"
	StageMatcher         = "matcher"
	StageScript          = "script"
	StageTemplate        = "template"
	StageRequestBuilder  = "outgoingRequestBuilder"
	StageResponseBuilder = "responseBuilder"
)

// Script parameter lists.
var (
	requestParams         = []string{"request"}
	requestBuilderParams  = []string{"request", "proxyRequest"}
	responseBuilderParams = []string{"request", "proxyRequest", "response"}
)

// CachedEntry is one compiled api with its denormalized context. Entries are
// never modified after their snapshot is published.
type CachedEntry struct {
	Workspace *mock.Workspace
	Project   *mock.Project
	Service   *mock.Service
	Api       *mock.Api
	Pattern   *matching.URLPattern
	Providers []*CompiledProvider
}

// Key identifies the entry's service for request counting.
func (e *CachedEntry) Key() string {
	return e.Workspace.Name + "/" + e.Project.Name + "/" + e.Service.Name
}

// CompiledProvider is a provider with its scripts and template compiled. A
// function left nil by a failed compile keeps its error in the matching
// *Err field.
type CompiledProvider struct {
	Config *mock.MockProviderConfig

	// CatchAll is set when the matcher body is blank.
	CatchAll   bool
	Matcher    script.Function
	MatcherErr error

	Script    script.Function
	ScriptErr error

	Template    *template.Template
	TemplateErr error

	RequestBuilder     script.Function
	RequestBuilderErr  error
	ResponseBuilder    script.Function
	ResponseBuilderErr error
}

// Name returns the provider name.
func (p *CompiledProvider) Name() string { return p.Config.Name }

// Matches evaluates the matcher predicate against request. A provider whose
// matcher failed to compile never matches.
func (p *CompiledProvider) Matches(ctx context.Context, request map[string]any) (bool, error) {
	if p.CatchAll {
		return true, nil
	}
	if p.Matcher == nil {
		return false, p.MatcherErr
	}
	v, err := p.Matcher.Invoke(ctx, request)
	if err != nil {
		return false, err
	}
	return script.Truthy(v), nil
}

// Diagnostic describes one compile failure in a snapshot.
type Diagnostic struct {
	Project  string `json:"project"`
	Service  string `json:"service"`
	Api      string `json:"api,omitempty"`
	Provider string `json:"provider,omitempty"`
	Stage    string `json:"stage"`
	Error    string `json:"error"`
}

// Snapshot is an immutable compiled view of one workspace.
type Snapshot struct {
	Workspace   string
	LoadedAt    time.Time
	entries     []*CachedEntry
	diagnostics []Diagnostic
}

// Entries returns the entries in storage enumeration order. The slice must
// not be modified.
func (s *Snapshot) Entries() []*CachedEntry {
	if s == nil {
		return nil
	}
	return s.entries
}

// Diagnostics returns the compile failures recorded while building s.
func (s *Snapshot) Diagnostics() []Diagnostic {
	if s == nil {
		return nil
	}
	return s.diagnostics
}

// Cache holds the current Snapshot for the active workspace.
type Cache struct {
	reader   storage.Reader
	selector *workspace.Selector
	engine   script.Engine
	log      *slog.Logger
	metrics  *metrics.Metrics

	// loadMu serializes Load so an older build never replaces a newer one.
	loadMu   sync.Mutex
	snapshot atomic.Pointer[Snapshot]
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithCacheLogger sets the operational logger.
func WithCacheLogger(log *slog.Logger) CacheOption {
	return func(c *Cache) {
		if log != nil {
			c.log = log
		}
	}
}

// WithCacheMetrics sets the metrics sink.
func WithCacheMetrics(m *metrics.Metrics) CacheOption {
	return func(c *Cache) { c.metrics = m }
}

// NewCache creates an empty Cache. A nil engine selects the Lua engine.
func NewCache(reader storage.Reader, selector *workspace.Selector, engine script.Engine, opts ...CacheOption) *Cache {
	if engine == nil {
		engine = script.NewLuaEngine()
	}
	c := &Cache{
		reader:   reader,
		selector: selector,
		engine:   engine,
		log:      logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.snapshot.Store(&Snapshot{Workspace: selector.Get()})
	return c
}

// Reader returns the storage reader the cache loads from.
func (c *Cache) Reader() storage.Reader { return c.reader }

// Snapshot returns the current snapshot. It is never nil.
func (c *Cache) Snapshot() *Snapshot { return c.snapshot.Load() }

// All returns the entries of the current snapshot.
func (c *Cache) All() []*CachedEntry { return c.Snapshot().Entries() }

// Load rebuilds the snapshot for the active workspace and publishes it. On a
// storage error the previous snapshot stays in place. Compile failures never
// fail a load; they are recorded as diagnostics.
func (c *Cache) Load(ctx context.Context) error {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	snap, err := c.build(ctx, c.selector.Get())
	if err != nil {
		c.metrics.ObserveReload(err, 0, 0)
		return err
	}
	c.snapshot.Store(snap)
	c.metrics.ObserveReload(nil, len(snap.entries), len(snap.diagnostics))

	c.log.Info("configuration loaded",
		"workspace", snap.Workspace,
		"apis", len(snap.entries),
		"compileErrors", len(snap.diagnostics),
	)
	for _, d := range snap.diagnostics {
		c.log.Warn("compile failed",
			"project", d.Project,
			"service", d.Service,
			"api", d.Api,
			"provider", d.Provider,
			"stage", d.Stage,
			"error", d.Error,
		)
	}
	return nil
}

// Watch reloads whenever storage reports a change or the active workspace
// changes. Reloads stop once ctx is done.
func (c *Cache) Watch(ctx context.Context) {
	c.reader.AddChangeListener(func(ev storage.ChangeEvent) {
		c.reload(ctx, "storage change", "collection", ev.Collection, "name", ev.Name)
	})
	c.selector.OnChange(func(previous, current string) {
		c.reload(ctx, "workspace switch", "from", previous, "to", current)
	})
}

func (c *Cache) reload(ctx context.Context, reason string, attrs ...any) {
	if ctx.Err() != nil {
		return
	}
	c.log.Debug("reloading configuration", append([]any{"reason", reason}, attrs...)...)
	if err := c.Load(ctx); err != nil {
		c.log.Error("configuration reload failed", "reason", reason, "error", err)
	}
}

func (c *Cache) build(ctx context.Context, wsName string) (*Snapshot, error) {
	snap := &Snapshot{Workspace: wsName, LoadedAt: time.Now()}

	ws, err := c.reader.GetWorkspace(ctx, wsName)
	if errors.Is(err, storage.ErrNotFound) {
		c.log.Warn("active workspace not found", "workspace", wsName)
		return snap, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load workspace %q: %w", wsName, err)
	}

	projects, err := c.reader.GetProjects(ctx, ws.Name)
	if err != nil {
		return nil, fmt.Errorf("load projects of %q: %w", ws.Name, err)
	}
	for _, project := range projects {
		services, err := c.reader.GetServices(ctx, ws.Name, project.Name)
		if err != nil {
			return nil, fmt.Errorf("load services of %s/%s: %w", ws.Name, project.Name, err)
		}
		for _, service := range services {
			if !service.IsEnabled() {
				continue
			}
			apis, err := c.reader.GetApis(ctx, ws.Name, project.Name, service.Name)
			if err != nil {
				// A broken apis file disables that service only.
				snap.diagnostics = append(snap.diagnostics, Diagnostic{
					Project: project.Name,
					Service: service.Name,
					Stage:   StageApis,
					Error:   err.Error(),
				})
				continue
			}
			for _, api := range apis {
				if !api.IsEnabled() {
					continue
				}
				snap.entries = append(snap.entries, c.compileEntry(snap, ws, project, service, api))
			}
		}
	}
	return snap, nil
}

func (c *Cache) compileEntry(snap *Snapshot, ws *mock.Workspace, project *mock.Project, service *mock.Service, api *mock.Api) *CachedEntry {
	entry := &CachedEntry{
		Workspace: ws,
		Project:   project,
		Service:   service,
		Api:       api,
		Pattern:   matching.CompileURLPattern(api.URLPattern),
		Providers: make([]*CompiledProvider, 0, len(api.Providers)),
	}
	report := func(provider, stage string, err error) {
		snap.diagnostics = append(snap.diagnostics, Diagnostic{
			Project:  project.Name,
			Service:  service.Name,
			Api:      api.Name,
			Provider: provider,
			Stage:    stage,
			Error:    err.Error(),
		})
	}
	if err := entry.Pattern.Err(); err != nil {
		report("", StageURLPattern, err)
	}

	for i := range api.Providers {
		cp := c.compileProvider(&api.Providers[i])
		for stage, err := range cp.compileErrors() {
			report(cp.Name(), stage, err)
		}
		entry.Providers = append(entry.Providers, cp)
	}
	return entry
}

func (c *Cache) compileProvider(cfg *mock.MockProviderConfig) *CompiledProvider {
	cp := &CompiledProvider{Config: cfg}

	if script.IsBlank(cfg.Matcher.Body) {
		cp.CatchAll = true
	} else {
		cp.Matcher, cp.MatcherErr = c.engine.Compile(cfg.Matcher.Body, requestParams...)
	}

	switch p := cfg.Provider.(type) {
	case *mock.ScriptProvider:
		cp.Script, cp.ScriptErr = c.engine.Compile(p.Script, requestParams...)
	case *mock.TemplateProvider:
		cp.Template, cp.TemplateErr = template.Compile(p.Template)
	case *mock.ProxyProvider:
		if !script.IsBlank(p.OutgoingRequestBuilderScript) {
			cp.RequestBuilder, cp.RequestBuilderErr = c.engine.Compile(p.OutgoingRequestBuilderScript, requestBuilderParams...)
		}
		if !script.IsBlank(p.ResponseBuilderScript) {
			cp.ResponseBuilder, cp.ResponseBuilderErr = c.engine.Compile(p.ResponseBuilderScript, responseBuilderParams...)
		}
	}
	return cp
}

// compileErrors yields the compile failures of p keyed by stage.
func (p *CompiledProvider) compileErrors() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, s := range []struct {
			stage string
			err   error
		}{
			{StageMatcher, p.MatcherErr},
			{StageScript, p.ScriptErr},
			{StageTemplate, p.TemplateErr},
			{StageRequestBuilder, p.RequestBuilderErr},
			{StageResponseBuilder, p.ResponseBuilderErr},
		} {
			if s.err != nil && !yield(s.stage, s.err) {
				return
			}
		}
	}
}
