package script

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRequest() map[string]any {
	return map[string]any{
		"method":          "GET",
		"path":            "/users/42",
		"headers":         map[string]any{"accept": "application/json"},
		"queryParameters": map[string]any{"tag": []any{"a", "b"}},
		"requestNumber":   int64(7),
	}
}

func TestLuaEngine_Matcher(t *testing.T) {
	e := NewLuaEngine()
	fn, err := e.Compile(`return request.method == "GET" and request.queryParameters.tag[2] == "b"`, "request")
	require.NoError(t, err)

	out, err := fn.Invoke(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestLuaEngine_CompileError(t *testing.T) {
	_, err := NewLuaEngine().Compile(`return request.method ==`, "request")
	require.Error(t, err)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, EngineLua, ce.Engine)
}

func TestLuaEngine_RuntimeError(t *testing.T) {
	fn, err := NewLuaEngine().Compile(`error("boom")`, "request")
	require.NoError(t, err)

	_, err = fn.Invoke(context.Background(), sampleRequest())
	var re *RuntimeError
	require.True(t, errors.As(err, &re))
	assert.Contains(t, err.Error(), "boom")

	// Indexing nil is a runtime error too, not a panic.
	fn, err = NewLuaEngine().Compile(`return request.nothing.deeper`, "request")
	require.NoError(t, err)
	_, err = fn.Invoke(context.Background(), sampleRequest())
	assert.True(t, errors.As(err, &re))
}

func TestLuaEngine_ReturnValues(t *testing.T) {
	e := NewLuaEngine()
	tests := []struct {
		name string
		body string
		want any
	}{
		{"string", `return "plain"`, "plain"},
		{"number", `return request.requestNumber + 1`, 8.0},
		{"object", `return {id = 42, name = "x"}`, map[string]any{"id": 42.0, "name": "x"}},
		{"array", `return {1, 2, 3}`, []any{1.0, 2.0, 3.0}},
		{"nothing", `local x = 1`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, err := e.Compile(tt.body, "request")
			require.NoError(t, err)
			out, err := fn.Invoke(context.Background(), sampleRequest())
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestLuaEngine_MutatesMapArguments(t *testing.T) {
	fn, err := NewLuaEngine().Compile(`
proxyRequest.method = "POST"
proxyRequest.headers["x-request-number"] = tostring(request.requestNumber)
proxyRequest.body = nil
`, "request", "proxyRequest")
	require.NoError(t, err)

	out := map[string]any{
		"method":  "GET",
		"headers": map[string]any{"accept": "*/*"},
		"body":    "payload",
	}
	_, err = fn.Invoke(context.Background(), sampleRequest(), out)
	require.NoError(t, err)

	assert.Equal(t, "POST", out["method"])
	assert.Equal(t, "7", out["headers"].(map[string]any)["x-request-number"])
	assert.Equal(t, "*/*", out["headers"].(map[string]any)["accept"])
	assert.NotContains(t, out, "body")
}

func TestLuaEngine_GlobalsDoNotLeak(t *testing.T) {
	e := NewLuaEngine()
	fn, err := e.Compile(`
local before = counter
counter = (counter or 0) + 1
return before == nil`, "request")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		out, err := fn.Invoke(context.Background(), sampleRequest())
		require.NoError(t, err)
		assert.Equal(t, true, out, "invocation %d saw a global from an earlier call", i)
	}
}

func TestLuaEngine_LibrariesDoNotLeak(t *testing.T) {
	e := NewLuaEngine()
	breaker, err := e.Compile(`string.upper = nil; _G.math = nil; json.encode = nil; return true`, "request")
	require.NoError(t, err)
	user, err := e.Compile(`return string.upper("a") .. math.floor(1.5) .. json.encode({"x"})`, "request")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := breaker.Invoke(context.Background(), sampleRequest())
		require.NoError(t, err)
		out, err := user.Invoke(context.Background(), sampleRequest())
		require.NoError(t, err)
		assert.Equal(t, `A1["x"]`, out)
	}
}

func TestLuaEngine_JSONHelpers(t *testing.T) {
	fn, err := NewLuaEngine().Compile(`
local doc = json.decode('{"user":{"id":5,"tags":["a","b"]}}')
local ids = jsonpath(doc, "$.user.id")
return json.encode({id = ids[1], second = doc.user.tags[2]})`, "request")
	require.NoError(t, err)

	out, err := fn.Invoke(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":5,"second":"b"}`, out.(string))
}

func TestLuaEngine_NoFileAccess(t *testing.T) {
	fn, err := NewLuaEngine().Compile(`return io == nil and os == nil and dofile == nil`, "request")
	require.NoError(t, err)
	out, err := fn.Invoke(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestLuaEngine_ContextCancellation(t *testing.T) {
	fn, err := NewLuaEngine().Compile(`while true do end`, "request")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = fn.Invoke(ctx, sampleRequest())
	assert.Error(t, err)
}

func TestLuaEngine_Concurrent(t *testing.T) {
	fn, err := NewLuaEngine().Compile(`return request.requestNumber * 2`, "request")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int64) {
			defer wg.Done()
			req := sampleRequest()
			req["requestNumber"] = n
			out, err := fn.Invoke(context.Background(), req)
			assert.NoError(t, err)
			assert.Equal(t, float64(n*2), out)
		}(int64(i))
	}
	wg.Wait()
}
