// Package matching provides the host, URL-prefix and URL-pattern predicates
// used to route inbound requests to apis.
//
// URL patterns are regular expressions in Go's RE2 syntax, compiled once when
// the configuration is loaded. A pattern that does not compile never matches.
package matching
