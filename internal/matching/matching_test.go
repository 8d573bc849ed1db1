package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripPort(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"a.test", "a.test"},
		{"a.test:8080", "a.test"},
		{"127.0.0.1:3000", "127.0.0.1"},
		{"[::1]:3000", "::1"},
		{"[::1]", "::1"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, StripPort(tt.in))
		})
	}
}

func TestMatchHost(t *testing.T) {
	assert.True(t, MatchHost("a.test", "a.test:3000"))
	assert.True(t, MatchHost("A.Test", "a.test"))
	assert.False(t, MatchHost("a.test", "b.test"))
}

func TestStripPrefix(t *testing.T) {
	rest, ok := StripPrefix("/v1", "/v1/users/42")
	assert.True(t, ok)
	assert.Equal(t, "/users/42", rest)

	rest, ok = StripPrefix("/v1", "/v1")
	assert.True(t, ok)
	assert.Equal(t, "/", rest)

	_, ok = StripPrefix("/v1", "/v2/users")
	assert.False(t, ok)

	rest, ok = StripPrefix("", "/anything")
	assert.True(t, ok)
	assert.Equal(t, "/anything", rest)
}

func TestURLPattern(t *testing.T) {
	p := CompileURLPattern(`^/users/(?P<id>\d+)$`)
	assert.NoError(t, p.Err())
	assert.True(t, p.Match("/users/42"))
	assert.False(t, p.Match("/users/abc"))
	assert.Equal(t, map[string]string{"id": "42"}, p.Captures("/users/42"))
	assert.Nil(t, p.Captures("/nope"))
}

func TestURLPattern_InvalidNeverMatches(t *testing.T) {
	p := CompileURLPattern(`^/users/(\d+$`)
	assert.Error(t, p.Err())
	assert.False(t, p.Match("/users/42"))
	assert.False(t, p.Match(""))
	assert.Nil(t, p.Captures("/users/42"))

	var nilPattern *URLPattern
	assert.False(t, nilPattern.Match("/"))
}
