// Package cli implements the carbon command line: serve (the default),
// validate and version.
package cli
