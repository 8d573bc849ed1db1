package requestlog

// Logger records entries.
type Logger interface {
	Log(entry *Entry)
}

// Store is a queryable Logger.
type Store interface {
	Logger

	// Get retrieves an entry by ID.
	Get(id string) *Entry

	// List returns entries newest first, optionally filtered.
	List(filter *Filter) []*Entry

	// Clear removes all entries.
	Clear()

	// Count returns the number of entries.
	Count() int
}

// Filter defines criteria for listing entries.
type Filter struct {
	// Method filters by HTTP method, ignoring case.
	Method string

	// Path filters by path. Values containing glob syntax (*, ?, [, {) are
	// matched as doublestar patterns; others as a prefix.
	Path string

	// StatusCode filters by response status code.
	StatusCode int

	// Matched filters by whether an api matched.
	Matched *bool

	// APIName filters by matched api.
	APIName string

	// Limit is the maximum number of entries to return.
	Limit int

	// Offset is the number of entries to skip.
	Offset int
}

// Subscriber is a channel that receives new entries.
type Subscriber chan *Entry

// multi fans entries out to several loggers.
type multi []Logger

// Multi returns a Logger writing to every non-nil logger in order.
func Multi(loggers ...Logger) Logger {
	out := make(multi, 0, len(loggers))
	for _, l := range loggers {
		if l != nil {
			out = append(out, l)
		}
	}
	return out
}

func (m multi) Log(entry *Entry) {
	for _, l := range m {
		l.Log(entry)
	}
}
