package mock

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ProviderType discriminates the response provider union.
type ProviderType string

const (
	ProviderStatic   ProviderType = "static"
	ProviderScript   ProviderType = "script"
	ProviderTemplate ProviderType = "template"
	ProviderProxy    ProviderType = "proxy"
	ProviderScenario ProviderType = "scenario"
)

// ErrUnknownProviderType is returned when a provider's "type" is not recognised.
var ErrUnknownProviderType = errors.New("unknown response provider type")

// ResponseProvider is the sealed set of response recipes. The concrete types are
// *StaticProvider, *ScriptProvider, *TemplateProvider, *ProxyProvider and
// *ScenarioProvider.
type ResponseProvider interface {
	Type() ProviderType
	// LatencyMs is the provider-level injected latency.
	LatencyMs() int
	sealed()
}

// ResponseBase carries the fields shared by the concrete provider types.
type ResponseBase struct {
	StatusCode      int               `json:"statusCode,omitempty"`
	Headers         map[string]string `json:"headers,omitempty"`
	InjectLatencyMs int               `json:"injectLatencyMs,omitempty"`
}

// LatencyMs implements ResponseProvider.
func (b *ResponseBase) LatencyMs() int { return b.InjectLatencyMs }

// MultipartResponsePart is one part of a synthesized multipart/mixed static body.
type MultipartResponsePart struct {
	ContentType string `json:"contentType,omitempty"`
	Body        string `json:"body"`
}

// StaticProvider returns a fixed response.
type StaticProvider struct {
	ResponseBase
	Body string `json:"body"`
	// MultipartParts, when non-empty, replaces Body with a multipart/mixed body.
	MultipartParts []MultipartResponsePart `json:"multipartParts,omitempty"`
}

// ScriptProvider computes the body with a user script: (request) -> value.
type ScriptProvider struct {
	ResponseBase
	Script string `json:"script"`
}

// TemplateProvider renders a mustache template against {request}.
type TemplateProvider struct {
	ResponseBase
	Template string `json:"template"`
}

// ProxyProvider forwards to TargetURL, optionally rewriting the outgoing request
// and the downstream response with scripts.
type ProxyProvider struct {
	ResponseBase
	TargetURL                    string `json:"targetUrl"`
	OutgoingRequestBuilderScript string `json:"outgoingRequestBuilderScript,omitempty"`
	ResponseBuilderScript        string `json:"responseBuilderScript,omitempty"`
}

// ScenarioProvider is part of the schema but has no dispatcher implementation.
type ScenarioProvider struct {
	// Raw keeps whatever the record contained so it survives a round trip.
	Raw json.RawMessage `json:"-"`
}

func (*StaticProvider) Type() ProviderType   { return ProviderStatic }
func (*ScriptProvider) Type() ProviderType   { return ProviderScript }
func (*TemplateProvider) Type() ProviderType { return ProviderTemplate }
func (*ProxyProvider) Type() ProviderType    { return ProviderProxy }
func (*ScenarioProvider) Type() ProviderType { return ProviderScenario }

// LatencyMs implements ResponseProvider. Scenario providers carry no latency.
func (*ScenarioProvider) LatencyMs() int { return 0 }

func (*StaticProvider) sealed()   {}
func (*ScriptProvider) sealed()   {}
func (*TemplateProvider) sealed() {}
func (*ProxyProvider) sealed()    {}
func (*ScenarioProvider) sealed() {}

// DecodeResponseProvider decodes a JSON provider object using its "type" field.
func DecodeResponseProvider(data []byte) (ResponseProvider, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, errors.New("provider is required")
	}
	var head struct {
		Type ProviderType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}

	var p ResponseProvider
	switch head.Type {
	case ProviderStatic:
		p = &StaticProvider{}
	case ProviderScript:
		p = &ScriptProvider{}
	case ProviderTemplate:
		p = &TemplateProvider{}
	case ProviderProxy:
		p = &ProxyProvider{}
	case ProviderScenario:
		return &ScenarioProvider{Raw: append(json.RawMessage(nil), data...)}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProviderType, head.Type)
	}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, err
	}
	return p, nil
}

// EncodeResponseProvider encodes p with its "type" discriminator.
func EncodeResponseProvider(p ResponseProvider) (json.RawMessage, error) {
	if p == nil {
		return json.RawMessage("null"), nil
	}
	if s, ok := p.(*ScenarioProvider); ok && len(s.Raw) > 0 {
		return s.Raw, nil
	}
	body, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	typ, _ := json.Marshal(p.Type())
	fields["type"] = typ
	return json.Marshal(fields)
}
