// Package template renders logic-less mustache templates for template
// response providers.
//
// Templates are parsed once when the configuration is loaded and rendered per
// request against:
//
//	{{request.method}} {{request.path}} {{request.headers.accept}}
//	{{#request.queryParameters.tag}}{{.}},{{/request.queryParameters.tag}}
//	{{request.requestNumber}} {{{request.body}}}
//
// plus the helpers {{now}} (RFC 3339, UTC), {{timestamp}} (Unix seconds) and
// {{uuid}} (random v4). Double braces HTML-escape; triple braces do not.
// Missing variables render as empty strings.
package template

import (
	"fmt"
	"time"

	"github.com/cbroglie/mustache"
	"github.com/google/uuid"
)

// Template is a parsed mustache template. It is safe for concurrent use.
type Template struct {
	source string
	tmpl   *mustache.Template
}

// Compile parses src.
func Compile(src string) (*Template, error) {
	tmpl, err := mustache.ParseString(src)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	return &Template{source: src, tmpl: tmpl}, nil
}

// Source returns the template text.
func (t *Template) Source() string {
	return t.source
}

// Render renders the template against request (usually MockRequest.Value()).
func (t *Template) Render(request map[string]any) (string, error) {
	return t.render(request, time.Now())
}

func (t *Template) render(request map[string]any, now time.Time) (string, error) {
	ctx := map[string]any{
		"request":   request,
		"now":       now.UTC().Format(time.RFC3339),
		"timestamp": now.Unix(),
		"uuid":      uuid.NewString(),
	}
	out, err := t.tmpl.Render(ctx)
	if err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return out, nil
}
