package requestlog

import (
	"time"
	"unicode/utf8"
)

// BodyLimit is the number of characters of the request body kept in an entry.
const BodyLimit = 100

// TimestampFormat is the ISO-8601 UTC layout used for entry timestamps.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// Entry records one completed transaction.
type Entry struct {
	// ID is assigned by MemoryStore when empty.
	ID        string `json:"id,omitempty"`
	Timestamp string `json:"timestamp"`
	Method    string `json:"method"`
	URL       string `json:"url"`
	Path      string `json:"path"`
	Hostname  string `json:"hostname"`

	// Body is the truncated request body, nil when the request had none.
	Body *string `json:"body"`

	StatusCode int  `json:"statusCode"`
	Matched    bool `json:"matched"`

	// Set when an api matched. ProviderName stays empty when no provider did.
	Service      string `json:"service,omitempty"`
	Project      string `json:"project,omitempty"`
	APIName      string `json:"apiName,omitempty"`
	ProviderName string `json:"providerName,omitempty"`

	DurationMs int64 `json:"durationMs"`
}

// FormatTimestamp formats t with TimestampFormat in UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}

// TruncateBody returns the first BodyLimit characters of body, or nil for an
// empty body.
func TruncateBody(body string) *string {
	if body == "" {
		return nil
	}
	if utf8.RuneCountInString(body) > BodyLimit {
		runes := []rune(body)
		body = string(runes[:BodyLimit])
	}
	return &body
}
