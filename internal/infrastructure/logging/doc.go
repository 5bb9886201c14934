// Package logging provides structured logging for domofon-core.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the entire application.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Thread-safe for concurrent use
//
// # Configuration
//
// Logging is configured via the LoggingConfig in config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting watcher", "interval", cfg.Watcher.IntervalSeconds)
//	logger.Error("door open failed", "error", err)
//
// # Security
//
// Never log session tokens, confirmation codes or full phone numbers.
// The cloud package masks these before anything reaches a log call; keep
// it that way when adding new log sites.
package logging
