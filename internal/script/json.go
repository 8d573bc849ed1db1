package script

import (
	"fmt"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// EncodeJSON encodes a script value as compact JSON.
func EncodeJSON(v any) (string, error) {
	b, err := oj.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeJSON parses JSON text into plain maps, slices and scalars.
func DecodeJSON(s string) (any, error) {
	return oj.ParseString(s)
}

// JSONPath evaluates a JSONPath expression against doc. A string doc is
// parsed as JSON first.
func JSONPath(doc any, path string) ([]any, error) {
	x, err := jp.ParseString(path)
	if err != nil {
		return nil, fmt.Errorf("jsonpath %q: %w", path, err)
	}
	if s, ok := doc.(string); ok {
		parsed, err := DecodeJSON(s)
		if err != nil {
			return nil, fmt.Errorf("jsonpath document: %w", err)
		}
		doc = parsed
	}
	return x.Get(doc), nil
}
