package mock

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Provider union decoding
// =============================================================================

func TestDecodeResponseProvider(t *testing.T) {
	tests := []struct {
		name     string
		json     string
		wantType ProviderType
		check    func(t *testing.T, p ResponseProvider)
	}{
		{
			name:     "static with multipart parts",
			json:     `{"type":"static","statusCode":201,"headers":{"x-a":"1"},"body":"ok","injectLatencyMs":5,"multipartParts":[{"contentType":"text/plain","body":"one"}]}`,
			wantType: ProviderStatic,
			check: func(t *testing.T, p ResponseProvider) {
				s := p.(*StaticProvider)
				assert.Equal(t, 201, s.StatusCode)
				assert.Equal(t, "1", s.Headers["x-a"])
				assert.Equal(t, "ok", s.Body)
				assert.Equal(t, 5, s.LatencyMs())
				require.Len(t, s.MultipartParts, 1)
				assert.Equal(t, "one", s.MultipartParts[0].Body)
			},
		},
		{
			name:     "script",
			json:     `{"type":"script","statusCode":200,"script":"return {ok = true}"}`,
			wantType: ProviderScript,
			check: func(t *testing.T, p ResponseProvider) {
				assert.Equal(t, "return {ok = true}", p.(*ScriptProvider).Script)
			},
		},
		{
			name:     "template",
			json:     `{"type":"template","template":"hello {{request.path}}"}`,
			wantType: ProviderTemplate,
			check: func(t *testing.T, p ResponseProvider) {
				assert.Equal(t, "hello {{request.path}}", p.(*TemplateProvider).Template)
			},
		},
		{
			name:     "proxy",
			json:     `{"type":"proxy","targetUrl":"http://backend:8080/","outgoingRequestBuilderScript":"proxyRequest.method = \"PUT\""}`,
			wantType: ProviderProxy,
			check: func(t *testing.T, p ResponseProvider) {
				pp := p.(*ProxyProvider)
				assert.Equal(t, "http://backend:8080/", pp.TargetURL)
				assert.NotEmpty(t, pp.OutgoingRequestBuilderScript)
				assert.Empty(t, pp.ResponseBuilderScript)
			},
		},
		{
			name:     "scenario keeps raw document",
			json:     `{"type":"scenario","steps":[1,2]}`,
			wantType: ProviderScenario,
			check: func(t *testing.T, p ResponseProvider) {
				assert.JSONEq(t, `{"type":"scenario","steps":[1,2]}`, string(p.(*ScenarioProvider).Raw))
				assert.Equal(t, 0, p.LatencyMs())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := DecodeResponseProvider([]byte(tt.json))
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, p.Type())
			tt.check(t, p)
		})
	}
}

func TestDecodeResponseProvider_Errors(t *testing.T) {
	_, err := DecodeResponseProvider([]byte(`{"type":"graphql"}`))
	assert.ErrorIs(t, err, ErrUnknownProviderType)

	_, err = DecodeResponseProvider(nil)
	assert.Error(t, err)

	_, err = DecodeResponseProvider([]byte(`null`))
	assert.Error(t, err)
}

func TestMockProviderConfig_JSONKeepsTypeDiscriminator(t *testing.T) {
	cfg := MockProviderConfig{
		Name:        "ok",
		Matcher:     RequestMatcherFunction{Body: "return true"},
		Provider:    &StaticProvider{ResponseBase: ResponseBase{StatusCode: 200}, Body: "hi"},
		ScenarioIDs: []string{"outage"},
	}

	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"static"`)

	var decoded MockProviderConfig
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "ok", decoded.Name)
	assert.Equal(t, []string{"outage"}, decoded.ScenarioIDs)
	require.IsType(t, &StaticProvider{}, decoded.Provider)
	assert.Equal(t, "hi", decoded.Provider.(*StaticProvider).Body)
}

func TestMockProviderConfig_UnmarshalNamesFailingProvider(t *testing.T) {
	var cfg MockProviderConfig
	err := json.Unmarshal([]byte(`{"name":"broken","provider":{"type":"nope"}}`), &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"broken"`)
	assert.ErrorIs(t, err, ErrUnknownProviderType)
}

// =============================================================================
// Enabled flags and scenarios
// =============================================================================

func TestEnabledDefaults(t *testing.T) {
	assert.True(t, (&Service{}).IsEnabled())
	assert.False(t, (&Service{Enabled: Bool(false)}).IsEnabled())
	assert.True(t, (&Api{}).IsEnabled())
	assert.False(t, (&Api{Enabled: Bool(false)}).IsEnabled())
	assert.True(t, (&MockProviderConfig{}).IsEnabled())
	assert.False(t, (&MockProviderConfig{Enabled: Bool(false)}).IsEnabled())
}

func TestMockProviderConfig_AppliesToScenario(t *testing.T) {
	everywhere := MockProviderConfig{}
	assert.True(t, everywhere.AppliesToScenario(DefaultScenarioID))
	assert.True(t, everywhere.AppliesToScenario("X"))

	onlyX := MockProviderConfig{ScenarioIDs: []string{"X"}}
	assert.True(t, onlyX.AppliesToScenario("X"))
	assert.False(t, onlyX.AppliesToScenario(DefaultScenarioID))
}

func TestProject_Scenarios(t *testing.T) {
	var nilProject *Project
	assert.Equal(t, DefaultScenarioID, nilProject.ActiveScenario())

	p := &Project{
		Scenarios: []ProjectScenario{
			{ID: "outage", Name: "Outage"},
			{ID: DefaultScenarioID, Name: "renamed"},
		},
	}
	all := p.AllScenarios()
	require.Len(t, all, 2)
	assert.Equal(t, DefaultScenario, all[0])
	assert.Equal(t, "outage", all[1].ID)
	assert.Equal(t, DefaultScenarioID, p.ActiveScenario())

	p.ActiveScenarioID = "outage"
	assert.Equal(t, "outage", p.ActiveScenario())
}

// =============================================================================
// Script values
// =============================================================================

func TestMockRequest_Value(t *testing.T) {
	r := &MockRequest{
		Method:          "POST",
		URL:             "http://a.test/v1/users?tag=a&tag=b",
		Path:            "/v1/users",
		Hostname:        "a.test",
		Headers:         map[string]string{"content-type": "application/json"},
		QueryParameters: map[string][]string{"tag": {"a", "b"}},
		RequestNumber:   3,
		Timestamp:       "2024-01-02T03:04:05.678Z",
	}

	v := r.Value()
	assert.Equal(t, "POST", v["method"])
	assert.Equal(t, int64(3), v["requestNumber"])
	assert.Equal(t, []any{"a", "b"}, v["queryParameters"].(map[string]any)["tag"])
	assert.NotContains(t, v, "body")
	assert.NotContains(t, v, "multipartParts")

	r.Body = "{}"
	r.MultipartParts = []MultipartPart{{Name: "part-1", Body: "x", Encoding: PartEncodingText}}
	v = r.Value()
	assert.Equal(t, "{}", v["body"])
	parts := v["multipartParts"].([]any)
	require.Len(t, parts, 1)
	assert.Equal(t, "part-1", parts[0].(map[string]any)["name"])
}

func TestOutgoingRequest_ApplyValue(t *testing.T) {
	o := &OutgoingRequest{
		URL:             "http://backend/users",
		Method:          "GET",
		Headers:         map[string]string{"accept": "*/*"},
		QueryParameters: map[string][]string{"a": {"1"}},
		Body:            "payload",
	}

	v := o.Value()
	v["method"] = "post"
	v["headers"].(map[string]any)["x-extra"] = []any{"a", "b"}
	v["queryParameters"].(map[string]any)["b"] = 2.0
	delete(v, "body")

	o.ApplyValue(v)
	assert.Equal(t, "POST", o.Method)
	assert.Equal(t, "a, b", o.Headers["x-extra"])
	assert.Equal(t, []string{"2"}, o.QueryParameters["b"])
	assert.Equal(t, []string{"1"}, o.QueryParameters["a"])
	assert.Empty(t, o.Body)
}

func TestValueConversions(t *testing.T) {
	assert.Equal(t, "", ValueString(nil))
	assert.Equal(t, "1.5", ValueString(1.5))
	assert.Equal(t, "42", ValueString(float64(42)))
	assert.Equal(t, "true", ValueString(true))

	assert.Equal(t, 204, ValueInt(204.0, 200))
	assert.Equal(t, 404, ValueInt(" 404 ", 200))
	assert.Equal(t, 200, ValueInt("nope", 200))
	assert.Equal(t, 200, ValueInt(nil, 200))

	assert.Equal(t, []string{"x", "y"}, ValueStringList(map[string]any{"2": "y", "1": "x"}))
	assert.Nil(t, ValueStringList(nil))
}
