package matching

import (
	"regexp"
)

// URLPattern is a compiled api URL pattern.
type URLPattern struct {
	source string
	re     *regexp.Regexp
	err    error
}

// CompileURLPattern compiles source. It never fails: an invalid source yields
// a pattern whose Match always returns false and whose Err reports why.
func CompileURLPattern(source string) *URLPattern {
	re, err := regexp.Compile(source)
	if err != nil {
		return &URLPattern{source: source, err: err}
	}
	return &URLPattern{source: source, re: re}
}

// Match reports whether path matches the pattern.
func (p *URLPattern) Match(path string) bool {
	if p == nil || p.re == nil {
		return false
	}
	return p.re.MatchString(path)
}

// Captures returns the named capture groups of the first match, or nil.
func (p *URLPattern) Captures(path string) map[string]string {
	if p == nil || p.re == nil {
		return nil
	}
	match := p.re.FindStringSubmatch(path)
	if match == nil {
		return nil
	}
	var captures map[string]string
	for i, name := range p.re.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		if captures == nil {
			captures = make(map[string]string)
		}
		captures[name] = match[i]
	}
	return captures
}

// Source returns the pattern text.
func (p *URLPattern) Source() string { return p.source }

// Err returns the compile error, or nil for a valid pattern.
func (p *URLPattern) Err() error { return p.err }
