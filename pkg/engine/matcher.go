package engine

import (
	"errors"
	"net/http"
	"strings"

	"github.com/carbonmock/carbon/internal/matching"
)

// ErrNoAPIMatch is returned when no cached api matches a request.
var ErrNoAPIMatch = errors.New("no matching api")

// MatchRequest returns the first entry matching r, scanning in order. The
// method is compared case-insensitively; when the service sets MatchHostName
// the Host header without its port must equal the service hostname; when it
// sets URLPrefix the path must start with it and the pattern is tested
// against the remainder.
func MatchRequest(entries []*CachedEntry, r *http.Request) (*CachedEntry, error) {
	for _, e := range entries {
		if matchEntry(e, r.Method, r.Host, r.URL.Path) {
			return e, nil
		}
	}
	return nil, ErrNoAPIMatch
}

func matchEntry(e *CachedEntry, method, host, path string) bool {
	if !strings.EqualFold(e.Api.Method, method) {
		return false
	}
	if e.Service.MatchHostName && !matching.MatchHost(e.Service.Hostname, host) {
		return false
	}
	rest, ok := matching.StripPrefix(e.Service.URLPrefix, path)
	if !ok {
		return false
	}
	return e.Pattern.Match(rest)
}
