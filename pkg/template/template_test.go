package template

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func request() map[string]any {
	return map[string]any{
		"method":          "GET",
		"path":            "/users/42",
		"headers":         map[string]any{"accept": "application/json"},
		"queryParameters": map[string]any{"tag": []any{"a", "b"}},
		"requestNumber":   int64(3),
		"body":            `{"a":"<b>"}`,
	}
}

func TestRender_RequestFields(t *testing.T) {
	tmpl, err := Compile(`{{request.method}} {{request.path}} #{{request.requestNumber}} {{request.headers.accept}}`)
	require.NoError(t, err)

	out, err := tmpl.Render(request())
	require.NoError(t, err)
	assert.Equal(t, "GET /users/42 #3 application/json", out)
}

func TestRender_SectionsAndEscaping(t *testing.T) {
	tmpl, err := Compile(`{{#request.queryParameters.tag}}[{{.}}]{{/request.queryParameters.tag}} {{request.body}} {{{request.body}}}`)
	require.NoError(t, err)

	out, err := tmpl.Render(request())
	require.NoError(t, err)
	assert.Equal(t, `[a][b] {&#34;a&#34;:&#34;&lt;b&gt;&#34;} {"a":"<b>"}`, out)
}

func TestRender_MissingVariablesAreEmpty(t *testing.T) {
	tmpl, err := Compile(`[{{request.nope}}][{{other.thing}}]`)
	require.NoError(t, err)

	out, err := tmpl.Render(request())
	require.NoError(t, err)
	assert.Equal(t, "[][]", out)
}

func TestRender_Helpers(t *testing.T) {
	tmpl, err := Compile(`{{now}}|{{timestamp}}|{{uuid}}`)
	require.NoError(t, err)

	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	out, err := tmpl.render(request(), at)
	require.NoError(t, err)

	parts := strings.SplitN(out, "|", 3)
	require.Len(t, parts, 3)
	assert.Equal(t, "2024-05-06T07:08:09Z", parts[0])
	assert.Equal(t, "1714979289", parts[1])
	_, err = uuid.Parse(parts[2])
	assert.NoError(t, err)
}

func TestCompile_Error(t *testing.T) {
	_, err := Compile(`{{#open}}never closed`)
	assert.Error(t, err)
}
