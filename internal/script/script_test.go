package script

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	e, err := New("")
	require.NoError(t, err)
	assert.Equal(t, EngineLua, e.Name())

	e, err = New("EXPR")
	require.NoError(t, err)
	assert.Equal(t, EngineExpr, e.Name())

	_, err = New("javascript")
	assert.ErrorIs(t, err, ErrUnknownEngine)
}

func TestTruthy(t *testing.T) {
	falsy := []any{nil, false, "", 0.0, 0, int64(0), math.NaN()}
	for _, v := range falsy {
		assert.False(t, Truthy(v), "%#v", v)
	}
	truthy := []any{true, "0", 1.0, -1, map[string]any{}, []any{}}
	for _, v := range truthy {
		assert.True(t, Truthy(v), "%#v", v)
	}
}

func TestIsBlank(t *testing.T) {
	assert.True(t, IsBlank(""))
	assert.True(t, IsBlank(" \n\t "))
	assert.False(t, IsBlank("return true"))
}

func TestJSONPath_StringDocument(t *testing.T) {
	got, err := JSONPath(`{"items":[{"id":1},{"id":2}]}`, "$.items[*].id")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = JSONPath(map[string]any{}, "$[")
	assert.Error(t, err)
}

func TestEncodeDecodeJSON(t *testing.T) {
	v, err := DecodeJSON(`{"a":[1,"x",true,null]}`)
	require.NoError(t, err)
	s, err := EncodeJSON(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":[1,"x",true,null]}`, s)

	_, err = DecodeJSON(`{`)
	assert.Error(t, err)
}

// Both engines must agree on the invocation contract.
func TestEngines_SameContract(t *testing.T) {
	bodies := map[string]string{
		EngineLua:  `return request.method == "POST"`,
		EngineExpr: `request.method == "POST"`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			e, err := New(name)
			require.NoError(t, err)
			fn, err := e.Compile(body, "request")
			require.NoError(t, err)

			out, err := fn.Invoke(context.Background(), map[string]any{"method": "POST"})
			require.NoError(t, err)
			assert.True(t, Truthy(out))

			out, err = fn.Invoke(context.Background(), map[string]any{"method": "GET"})
			require.NoError(t, err)
			assert.False(t, Truthy(out))
		})
	}
}
