package proxy

import (
	"net/http"
	"sort"
	"strings"

	"github.com/carbonmock/carbon/pkg/mock"
	"golang.org/x/net/http/httpguts"
)

// hopByHop lists connection-scoped headers that are never relayed (RFC 2616
// section 13.5.1, plus host).
var hopByHop = map[string]struct{}{
	"connection":          {},
	"keep-alive":          {},
	"proxy-authenticate":  {},
	"proxy-authorization": {},
	"te":                  {},
	"trailers":            {},
	"transfer-encoding":   {},
	"upgrade":             {},
	"host":                {},
}

// IsHopByHop reports whether name is a hop-by-hop header.
func IsHopByHop(name string) bool {
	_, ok := hopByHop[strings.ToLower(name)]
	return ok
}

// validHeader reports whether name and value can be written on the wire.
func validHeader(name, value string) bool {
	return httpguts.ValidHeaderFieldName(name) && httpguts.ValidHeaderFieldValue(value)
}

// headerValue renders h for a script: lower-cased names, single values as
// strings, repeated values as lists.
func headerValue(h http.Header) map[string]any {
	out := make(map[string]any, len(h))
	for name, values := range h {
		key := strings.ToLower(name)
		switch len(values) {
		case 0:
		case 1:
			out[key] = values[0]
		default:
			list := make([]any, len(values))
			for i, v := range values {
				list[i] = v
			}
			out[key] = list
		}
	}
	return out
}

// headerFromValue converts a script header map back into an http.Header.
// Invalid names or values are dropped and returned for logging.
func headerFromValue(v any) (http.Header, []string) {
	h := make(http.Header)
	var dropped []string

	m, _ := v.(map[string]any)
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, value := range headerValues(m[name]) {
			if !validHeader(name, value) {
				dropped = append(dropped, name)
				continue
			}
			h.Add(name, value)
		}
	}
	return h, dropped
}

func headerValues(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, mock.ValueString(item))
		}
		return out
	default:
		return []string{mock.ValueString(t)}
	}
}

// copyResponseHeaders copies src into dst without hop-by-hop headers.
func copyResponseHeaders(dst, src http.Header) {
	for name, values := range src {
		if IsHopByHop(name) {
			continue
		}
		for _, v := range values {
			dst.Add(name, v)
		}
	}
}
