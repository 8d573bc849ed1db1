package matching

import (
	"net"
	"strings"
)

// StripPort removes the port from a Host header value. IPv6 literals lose
// their brackets. Values without a port are returned unchanged.
func StripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		return host[1 : len(host)-1]
	}
	return host
}

// MatchHost compares a request host (port stripped) against a configured
// hostname, ignoring case.
func MatchHost(hostname, requestHost string) bool {
	return strings.EqualFold(strings.TrimSpace(hostname), StripPort(requestHost))
}

// StripPrefix removes prefix from path. It reports false when path does not
// start with prefix. An empty remainder becomes "/".
func StripPrefix(prefix, path string) (string, bool) {
	if prefix == "" {
		return path, true
	}
	if !strings.HasPrefix(path, prefix) {
		return "", false
	}
	rest := path[len(prefix):]
	if rest == "" {
		rest = "/"
	}
	return rest, true
}
