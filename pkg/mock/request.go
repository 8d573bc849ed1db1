package mock

import (
	"fmt"
	"maps"
	"sort"
	"strconv"
	"strings"
)

// MockRequest is the canonical request value passed to matchers, scripts and templates.
type MockRequest struct {
	Method   string `json:"method"`
	URL      string `json:"url"`
	Path     string `json:"path"`
	Hostname string `json:"hostname"`
	// Headers are keyed by lower-cased name; repeated values are joined with ", ".
	Headers map[string]string `json:"headers"`
	// QueryParameters keep every value of repeated keys (?tag=a&tag=b).
	QueryParameters map[string][]string `json:"queryParameters"`
	APIName         string              `json:"apiName,omitempty"`
	Body            string              `json:"body,omitempty"`
	MultipartParts  []MultipartPart     `json:"multipartParts,omitempty"`
	// RequestNumber counts requests per workspace/project/service, starting at 1.
	RequestNumber int64  `json:"requestNumber"`
	Timestamp     string `json:"timestamp"`
}

// Part encodings.
const (
	PartEncodingText   = "text"
	PartEncodingBase64 = "base64"
)

// MultipartPart is one decoded part of a multipart/mixed request body.
type MultipartPart struct {
	Name        string            `json:"name"`
	Filename    string            `json:"filename,omitempty"`
	ContentType string            `json:"contentType,omitempty"`
	Headers     map[string]string `json:"headers"`
	Body        string            `json:"body"`
	// Encoding is PartEncodingText or PartEncodingBase64.
	Encoding string `json:"encoding"`
}

// Value returns r as plain maps and slices, the shape scripts and templates see.
func (r *MockRequest) Value() map[string]any {
	v := map[string]any{
		"method":          r.Method,
		"url":             r.URL,
		"path":            r.Path,
		"hostname":        r.Hostname,
		"headers":         stringMapValue(r.Headers),
		"queryParameters": stringSliceMapValue(r.QueryParameters),
		"requestNumber":   r.RequestNumber,
		"timestamp":       r.Timestamp,
	}
	if r.APIName != "" {
		v["apiName"] = r.APIName
	}
	if r.Body != "" {
		v["body"] = r.Body
	}
	if len(r.MultipartParts) > 0 {
		parts := make([]any, 0, len(r.MultipartParts))
		for _, p := range r.MultipartParts {
			part := map[string]any{
				"name":     p.Name,
				"headers":  stringMapValue(p.Headers),
				"body":     p.Body,
				"encoding": p.Encoding,
			}
			if p.Filename != "" {
				part["filename"] = p.Filename
			}
			if p.ContentType != "" {
				part["contentType"] = p.ContentType
			}
			parts = append(parts, part)
		}
		v["multipartParts"] = parts
	}
	return v
}

// OutgoingRequest is the mutable request about to be forwarded downstream.
type OutgoingRequest struct {
	// URL is absolute and carries no query string; QueryParameters are appended at send time.
	URL             string              `json:"url"`
	Method          string              `json:"method"`
	Headers         map[string]string   `json:"headers"`
	QueryParameters map[string][]string `json:"queryParameters"`
	// Body is empty when no body is sent.
	Body string `json:"body,omitempty"`
}

// Value returns o as plain maps and slices for a builder script.
func (o *OutgoingRequest) Value() map[string]any {
	v := map[string]any{
		"url":             o.URL,
		"method":          o.Method,
		"headers":         stringMapValue(o.Headers),
		"queryParameters": stringSliceMapValue(o.QueryParameters),
	}
	if o.Body != "" {
		v["body"] = o.Body
	}
	return v
}

// ApplyValue copies a (possibly script-mutated) value produced by Value back into o.
// Removed keys reset the corresponding field.
func (o *OutgoingRequest) ApplyValue(v map[string]any) {
	o.URL = ValueString(v["url"])
	o.Method = strings.ToUpper(ValueString(v["method"]))
	o.Headers = ValueStringMap(v["headers"])
	o.QueryParameters = ValueStringSliceMap(v["queryParameters"])
	o.Body = ValueString(v["body"])
}

func stringMapValue(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, val := range m {
		out[k] = val
	}
	return out
}

func stringSliceMapValue(m map[string][]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, vals := range m {
		list := make([]any, len(vals))
		for i, s := range vals {
			list[i] = s
		}
		out[k] = list
	}
	return out
}

// ValueString renders a script value as a string. nil becomes "".
func ValueString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// ValueInt converts a numeric script value to int, returning def when v is not numeric.
func ValueInt(v any, def int) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n
		}
	}
	return def
}

// ValueStringMap converts a script map into map[string]string. List values are
// joined with ", ".
func ValueStringMap(v any) map[string]string {
	out := make(map[string]string)
	switch t := v.(type) {
	case map[string]string:
		maps.Copy(out, t)
	case map[string]any:
		for k, val := range t {
			if list, ok := val.([]any); ok {
				parts := make([]string, len(list))
				for i, item := range list {
					parts[i] = ValueString(item)
				}
				out[k] = strings.Join(parts, ", ")
				continue
			}
			out[k] = ValueString(val)
		}
	}
	return out
}

// ValueStringSliceMap converts a script map into map[string][]string. Scalar values
// become single-element lists.
func ValueStringSliceMap(v any) map[string][]string {
	out := make(map[string][]string)
	switch t := v.(type) {
	case map[string][]string:
		for k, vals := range t {
			out[k] = append([]string(nil), vals...)
		}
	case map[string]any:
		for k, val := range t {
			out[k] = ValueStringList(val)
		}
	}
	return out
}

// ValueStringList converts a script value into a string list.
func ValueStringList(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []string:
		return append([]string(nil), t...)
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, ValueString(item))
		}
		return out
	case map[string]any:
		// An empty Lua table or a sparse array arrives as a map; keep a stable order.
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]string, 0, len(keys))
		for _, k := range keys {
			out = append(out, ValueString(t[k]))
		}
		return out
	default:
		return []string{ValueString(t)}
	}
}
