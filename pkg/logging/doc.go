// Package logging provides structured logging configuration for htmlshot.
//
// It wraps log/slog so that the server, the renderer client and the CLI all
// log the same way.
//
// # Usage
//
//	logger, closeLogs := logging.Setup(logging.Config{
//	    Level:  logging.ParseLevel("info"),
//	    Format: logging.FormatJSON,
//	})
//	defer func() { _ = closeLogs() }()
//
//	logger.Info("server started", "addr", ":8080")
//
// # Loki
//
// Setting Config.LokiURL adds a LokiHandler next to the local handler via
// MultiHandler. Records are batched and pushed every five seconds or when
// the batch is full.
//
// # Integration
//
// Components accept a *slog.Logger in their constructor. A nil logger means
// logging is disabled; use OrNop to normalise it.
package logging
