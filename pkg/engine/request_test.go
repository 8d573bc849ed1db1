package engine

import (
	"crypto/tls"
	"encoding/base64"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/carbonmock/carbon/pkg/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRequest(t *testing.T) {
	r := httptest.NewRequest("post", "/v1/items?tag=a&tag=b&q=", strings.NewReader(`{"x":1}`))
	r.Host = "api.test:8443"
	r.Header.Add("Accept", "text/plain")
	r.Header.Add("Accept", "application/json")
	r.Header.Set("X-Request-ID", "abc")

	entry := &CachedEntry{Api: &mock.Api{Name: "items"}}
	now := time.Date(2024, 5, 6, 7, 8, 9, 123_000_000, time.UTC)

	req, err := BuildRequest(r, []byte(`{"x":1}`), entry, 3, now)
	require.NoError(t, err)

	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "http://api.test:8443/v1/items?tag=a&tag=b&q=", req.URL)
	assert.Equal(t, "/v1/items", req.Path)
	assert.Equal(t, "api.test", req.Hostname)
	assert.Equal(t, "items", req.APIName)
	assert.Equal(t, `{"x":1}`, req.Body)
	assert.Equal(t, int64(3), req.RequestNumber)
	assert.Equal(t, "2024-05-06T07:08:09.123Z", req.Timestamp)

	assert.Equal(t, "text/plain, application/json", req.Headers["accept"])
	assert.Equal(t, "abc", req.Headers["x-request-id"])
	assert.Equal(t, "api.test:8443", req.Headers["host"])
	for name := range req.Headers {
		assert.Equal(t, strings.ToLower(name), name)
	}

	assert.Equal(t, []string{"a", "b"}, req.QueryParameters["tag"])
	assert.Equal(t, []string{""}, req.QueryParameters["q"])
	assert.Empty(t, req.MultipartParts)
}

func TestBuildRequest_HTTPS(t *testing.T) {
	r := httptest.NewRequest("GET", "https://secure.test/x", nil)
	r.TLS = &tls.ConnectionState{}

	req, err := BuildRequest(r, nil, nil, 1, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "https://secure.test/x", req.URL)
	assert.Empty(t, req.Body)
	assert.NotContains(t, req.Value(), "body")
}

func TestBuildRequest_Multipart(t *testing.T) {
	const boundary = "b0undary"
	body := strings.Join([]string{
		"--" + boundary,
		"Content-Type: application/json",
		"Content-ID: <meta>",
		"",
		`{"id":7}`,
		"--" + boundary,
		"Content-Type: application/octet-stream",
		`Content-Disposition: attachment; filename="blob.bin"`,
		"",
		"\x00\x01\x02",
		"--" + boundary,
		"Content-Type: text/plain; charset=iso-8859-1",
		"",
		"caf\xe9",
		"--" + boundary,
		"",
		"no headers",
		"--" + boundary + "--",
		"",
	}, "\r\n")

	r := httptest.NewRequest("POST", "/upload", strings.NewReader(body))
	r.Header.Set("Content-Type", "multipart/mixed; boundary="+boundary)

	req, err := BuildRequest(r, []byte(body), nil, 1, time.Now())
	require.NoError(t, err)
	assert.Equal(t, body, req.Body, "raw body is kept")
	require.Len(t, req.MultipartParts, 4)

	meta := req.MultipartParts[0]
	assert.Equal(t, "meta", meta.Name)
	assert.Equal(t, `{"id":7}`, meta.Body)
	assert.Equal(t, mock.PartEncodingText, meta.Encoding)
	assert.Equal(t, "application/json", meta.Headers["content-type"])

	blob := req.MultipartParts[1]
	assert.Equal(t, "part-2", blob.Name)
	assert.Equal(t, "blob.bin", blob.Filename)
	assert.Equal(t, mock.PartEncodingBase64, blob.Encoding)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{0, 1, 2}), blob.Body)

	latin := req.MultipartParts[2]
	assert.Equal(t, "café", latin.Body)
	assert.Equal(t, mock.PartEncodingText, latin.Encoding)

	plain := req.MultipartParts[3]
	assert.Equal(t, "part-4", plain.Name)
	assert.Equal(t, "no headers", plain.Body)
	assert.Empty(t, plain.ContentType)
}

func TestBuildRequest_MalformedMultipart(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantErr     bool
	}{
		{"missing boundary", "multipart/mixed", "--x\r\n\r\nhi\r\n--x--", true},
		{"no delimiter", "multipart/mixed; boundary=x", "garbage", true},
		{"truncated part", "multipart/mixed; boundary=x", "--x\r\n\r\nhi", true},
		{"form data is not split", "multipart/form-data; boundary=x", "--x\r\n\r\nhi\r\n--x--\r\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/", strings.NewReader(tt.body))
			r.Header.Set("Content-Type", tt.contentType)

			req, err := BuildRequest(r, []byte(tt.body), nil, 1, time.Now())
			require.NotNil(t, req)
			assert.Equal(t, tt.body, req.Body)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Empty(t, req.MultipartParts)
			}
		})
	}
}

func TestIsTextContent(t *testing.T) {
	tests := map[string]bool{
		"":                               true,
		"text/csv":                       true,
		"application/json":               true,
		"application/problem+json":       true,
		"application/xml; charset=utf-8": true,
		"image/png":                      false,
		"application/octet-stream":       false,
	}
	for ct, want := range tests {
		assert.Equal(t, want, isTextContent(ct), ct)
	}
}
