package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/carbonmock/carbon/internal/storage"
	"github.com/carbonmock/carbon/pkg/logging"
	"github.com/carbonmock/carbon/pkg/mock"
)

// ErrNoProviderMatch is returned when an api matched but none of its
// providers applies to the request.
var ErrNoProviderMatch = errors.New("no provider matched")

// ActiveScenario resolves the active scenario of the entry's project. It asks
// storage first so scenario switches apply without a reload, then falls back
// to the cached project and finally to the default scenario.
func ActiveScenario(ctx context.Context, reader storage.Reader, entry *CachedEntry) string {
	if reader != nil {
		if p, err := reader.GetProject(ctx, entry.Workspace.Name, entry.Project.Name); err == nil && p != nil {
			return p.ActiveScenario()
		}
	}
	return entry.Project.ActiveScenario()
}

// SelectProvider returns the first provider of entry, in declared order, that
// is enabled, eligible under the active scenario and whose matcher passes for
// req. Matcher failures count as a non-match and are logged to log, which may
// be nil.
func SelectProvider(ctx context.Context, reader storage.Reader, entry *CachedEntry, req *mock.MockRequest, log *slog.Logger) (*CompiledProvider, error) {
	if log == nil {
		log = logging.Nop()
	}
	scenario := ActiveScenario(ctx, reader, entry)

	for _, cp := range entry.Providers {
		if !cp.Config.IsEnabled() || !cp.Config.AppliesToScenario(scenario) {
			continue
		}
		ok, err := cp.Matches(ctx, req.Value())
		if err != nil {
			log.Debug("provider matcher failed",
				"api", entry.Api.Name,
				"provider", cp.Name(),
				"error", err,
			)
			continue
		}
		if ok {
			return cp, nil
		}
	}
	return nil, ErrNoProviderMatch
}
