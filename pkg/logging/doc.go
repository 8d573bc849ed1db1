// Package logging builds the operational loggers used across carbon.
//
// It wraps log/slog so every component logs the same way. Components accept a
// *slog.Logger through an option or setter and fall back to Nop():
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.LevelInfo,
//	    Format: logging.FormatText,
//	})
//	logger.Info("mock server listening", "addr", ":3000")
//
// Operational logs (reloads, compile failures, watcher errors) are separate
// from the per-request transaction log kept by pkg/requestlog.
//
// MultiHandler fans a record out to several handlers, which is how a log file
// is added next to stderr.
package logging
