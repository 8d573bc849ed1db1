// Internal endpoints served under InternalPrefix.

package engine

import (
	"net/http"
	"strconv"
	"time"

	"github.com/carbonmock/carbon/pkg/httputil"
	"github.com/carbonmock/carbon/pkg/requestlog"
)

// InternalPrefix is reserved for the engine's own endpoints.
const InternalPrefix = "/__carbon/"

func (h *Handler) internalRoutes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+InternalPrefix+"health", h.handleHealth)
	mux.HandleFunc("GET "+InternalPrefix+"cache", h.handleCache)
	mux.HandleFunc("GET "+InternalPrefix+"logs", h.handleListLogs)
	mux.HandleFunc("DELETE "+InternalPrefix+"logs", h.handleClearLogs)
	mux.Handle("GET "+InternalPrefix+"metrics", h.metrics.Handler())
	mux.HandleFunc(InternalPrefix, func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteError(w, http.StatusNotFound, "Unknown internal endpoint")
	})
	return mux
}

// handleHealth handles the liveness probe endpoint.
func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	snap := h.cache.Snapshot()
	httputil.WriteOK(w, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"workspace": snap.Workspace,
		"apis":      len(snap.Entries()),
	})
}

type cacheProviderView struct {
	Name        string   `json:"name"`
	Type        string   `json:"type,omitempty"`
	Enabled     bool     `json:"enabled"`
	CatchAll    bool     `json:"catchAll"`
	ScenarioIDs []string `json:"scenarioIds,omitempty"`
}

type cacheEntryView struct {
	Project    string              `json:"project"`
	Service    string              `json:"service"`
	Api        string              `json:"api"`
	Method     string              `json:"method"`
	URLPattern string              `json:"urlPattern"`
	Hostname   string              `json:"hostname,omitempty"`
	URLPrefix  string              `json:"urlPrefix,omitempty"`
	Providers  []cacheProviderView `json:"providers"`
}

type cacheView struct {
	Workspace   string           `json:"workspace"`
	LoadedAt    string           `json:"loadedAt,omitempty"`
	Entries     []cacheEntryView `json:"entries"`
	Diagnostics []Diagnostic     `json:"diagnostics"`
}

// handleCache describes the current snapshot.
func (h *Handler) handleCache(w http.ResponseWriter, _ *http.Request) {
	snap := h.cache.Snapshot()
	view := cacheView{
		Workspace:   snap.Workspace,
		Entries:     make([]cacheEntryView, 0, len(snap.Entries())),
		Diagnostics: snap.Diagnostics(),
	}
	if !snap.LoadedAt.IsZero() {
		view.LoadedAt = requestlog.FormatTimestamp(snap.LoadedAt)
	}
	if view.Diagnostics == nil {
		view.Diagnostics = []Diagnostic{}
	}

	for _, e := range snap.Entries() {
		ev := cacheEntryView{
			Project:    e.Project.Name,
			Service:    e.Service.Name,
			Api:        e.Api.Name,
			Method:     e.Api.Method,
			URLPattern: e.Api.URLPattern,
			URLPrefix:  e.Service.URLPrefix,
			Providers:  make([]cacheProviderView, 0, len(e.Providers)),
		}
		if e.Service.MatchHostName {
			ev.Hostname = e.Service.Hostname
		}
		for _, cp := range e.Providers {
			pv := cacheProviderView{
				Name:        cp.Name(),
				Enabled:     cp.Config.IsEnabled(),
				CatchAll:    cp.CatchAll,
				ScenarioIDs: cp.Config.ScenarioIDs,
			}
			if cp.Config.Provider != nil {
				pv.Type = string(cp.Config.Provider.Type())
			}
			ev.Providers = append(ev.Providers, pv)
		}
		view.Entries = append(view.Entries, ev)
	}
	httputil.WriteOK(w, view)
}

// handleListLogs lists request log entries, newest first.
//
// Query parameters: method, path (prefix or glob), status, matched, api,
// limit, offset.
func (h *Handler) handleListLogs(w http.ResponseWriter, r *http.Request) {
	if h.logStore == nil {
		httputil.WriteError(w, http.StatusNotFound, "Request log is not enabled")
		return
	}

	q := r.URL.Query()
	filter := &requestlog.Filter{
		Method:  q.Get("method"),
		Path:    q.Get("path"),
		APIName: q.Get("api"),
	}
	var err error
	if filter.StatusCode, err = intParam(q.Get("status")); err != nil {
		httputil.WriteErrorWithDetails(w, http.StatusBadRequest, "Invalid status", err.Error())
		return
	}
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		httputil.WriteErrorWithDetails(w, http.StatusBadRequest, "Invalid limit", err.Error())
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		httputil.WriteErrorWithDetails(w, http.StatusBadRequest, "Invalid offset", err.Error())
		return
	}
	if v := q.Get("matched"); v != "" {
		matched, err := strconv.ParseBool(v)
		if err != nil {
			httputil.WriteErrorWithDetails(w, http.StatusBadRequest, "Invalid matched", err.Error())
			return
		}
		filter.Matched = &matched
	}

	httputil.WriteOK(w, map[string]any{
		"entries": h.logStore.List(filter),
		"total":   h.logStore.Count(),
	})
}

// handleClearLogs empties the request log.
func (h *Handler) handleClearLogs(w http.ResponseWriter, _ *http.Request) {
	if h.logStore == nil {
		httputil.WriteError(w, http.StatusNotFound, "Request log is not enabled")
		return
	}
	h.logStore.Clear()
	httputil.WriteNoContent(w)
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
