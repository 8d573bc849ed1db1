package engine

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/carbonmock/carbon/internal/matching"
	"github.com/carbonmock/carbon/pkg/mock"
	"github.com/carbonmock/carbon/pkg/requestlog"
	"golang.org/x/text/encoding/htmlindex"
)

// BuildRequest assembles the canonical request passed to matchers, scripts
// and templates. number is the per-service request number.
//
// A multipart/mixed body is additionally split into parts. The returned
// request is always usable; a non-nil error only reports a malformed
// multipart body, in which case the parts decoded before the error are kept.
func BuildRequest(r *http.Request, body []byte, entry *CachedEntry, number int64, now time.Time) (*mock.MockRequest, error) {
	req := &mock.MockRequest{
		Method:          strings.ToUpper(r.Method),
		URL:             absoluteURL(r),
		Path:            r.URL.Path,
		Hostname:        matching.StripPort(r.Host),
		Headers:         flattenHeaders(r),
		QueryParameters: r.URL.Query(),
		RequestNumber:   number,
		Timestamp:       requestlog.FormatTimestamp(now),
	}
	if entry != nil {
		req.APIName = entry.Api.Name
	}
	if len(body) > 0 {
		req.Body = string(body)
	}

	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/mixed" || len(body) == 0 {
		return req, nil
	}
	parts, err := parseMultipart(body, params["boundary"])
	req.MultipartParts = parts
	return req, err
}

func absoluteURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	uri := r.RequestURI
	if uri == "" || !strings.HasPrefix(uri, "/") {
		uri = r.URL.RequestURI()
	}
	return scheme + "://" + r.Host + uri
}

// flattenHeaders lower-cases header names and joins repeated values with ", ".
// The Host header, which net/http moves out of r.Header, is restored.
func flattenHeaders(r *http.Request) map[string]string {
	out := make(map[string]string, len(r.Header)+1)
	for name, values := range r.Header {
		out[strings.ToLower(name)] = strings.Join(values, ", ")
	}
	if r.Host != "" {
		out["host"] = r.Host
	}
	return out
}

func parseMultipart(body []byte, boundary string) ([]mock.MultipartPart, error) {
	if boundary == "" {
		return nil, errors.New("multipart/mixed without boundary")
	}

	var parts []mock.MultipartPart
	mr := multipart.NewReader(bytes.NewReader(body), boundary)
	for i := 1; ; i++ {
		p, err := mr.NextRawPart()
		// Only a bare io.EOF marks the closing delimiter. A truncated body
		// surfaces as a wrapped EOF and is reported below.
		if err == io.EOF { //nolint:errorlint
			return parts, nil
		}
		if err != nil {
			return parts, fmt.Errorf("multipart part %d: %w", i, err)
		}
		data, err := io.ReadAll(p)
		if err != nil {
			return parts, fmt.Errorf("multipart part %d: %w", i, err)
		}
		parts = append(parts, decodePart(p, data, i))
	}
}

func decodePart(p *multipart.Part, data []byte, index int) mock.MultipartPart {
	headers := make(map[string]string, len(p.Header))
	for name, values := range p.Header {
		headers[strings.ToLower(name)] = strings.Join(values, ", ")
	}

	name := strings.Trim(strings.TrimSpace(p.Header.Get("Content-ID")), "<>")
	if name == "" {
		name = "part-" + strconv.Itoa(index)
	}

	contentType := p.Header.Get("Content-Type")
	part := mock.MultipartPart{
		Name:        name,
		Filename:    p.FileName(),
		ContentType: contentType,
		Headers:     headers,
	}
	if isTextContent(contentType) {
		part.Body = decodeText(data, contentType)
		part.Encoding = mock.PartEncodingText
	} else {
		part.Body = base64.StdEncoding.EncodeToString(data)
		part.Encoding = mock.PartEncodingBase64
	}
	return part
}

// isTextContent reports whether a part is kept as text. A part without a
// content type is text/plain.
func isTextContent(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(contentType)
	}
	return strings.HasPrefix(mediaType, "text/") ||
		strings.Contains(mediaType, "json") ||
		strings.Contains(mediaType, "xml")
}

// decodeText converts data to UTF-8 using the part's charset parameter.
// Unknown charsets and invalid input are returned as is.
func decodeText(data []byte, contentType string) string {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return string(data)
	}
	charset := strings.ToLower(params["charset"])
	if charset == "" || charset == "utf-8" || charset == "utf8" || charset == "us-ascii" {
		return string(data)
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return string(data)
	}
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil || !utf8.Valid(decoded) {
		return string(data)
	}
	return string(decoded)
}
