// Package requestlog records one entry per mock transaction for user
// inspection.
//
// It is distinct from operational logging (log/slog): entries describe what
// clients sent and how carbon answered, not what carbon itself is doing.
//
// # Sinks
//
//   - MemoryStore: bounded ring buffer, oldest entries evicted first, queried
//     through List with a Filter (served at /__carbon/logs)
//   - FileSink: append-only JSON-lines file
//   - SlogSink: one summary line per entry on an operational logger
//
// Multi fans an entry out to several sinks:
//
//	store := requestlog.NewMemoryStore(requestlog.DefaultCapacity)
//	sink, err := requestlog.OpenFile("requests.log")
//	logger := requestlog.Multi(store, sink, requestlog.NewSlogSink(log))
//	logger.Log(entry)
package requestlog
