// Package logger builds log/slog loggers for cachekit components.
//
// Loggers write JSON (or text) to stdout by default, add attributes
// extracted from the context on every call, and can fan out to Sentry.
//
// # Basic Usage
//
//	log := logger.New(logger.WithLevel(slog.LevelDebug))
//	c, err := cache.New[string](cfg, cache.WithLogger(log))
//
// Libraries in this module default to [NewNope] when no logger is given.
//
// # Correlation IDs
//
// The transform gateway tags each out-of-band request with a correlation ID.
// Store one in a context with [WithCorrelationID]; loggers from this package
// add it to every record logged with that context:
//
//	ctx = logger.WithCorrelationID(ctx, id)
//	log.DebugContext(ctx, "transform timed out")
//	// {"level":"DEBUG","msg":"transform timed out","correlation_id":"..."}
//
// Additional [ContextExtractor] functions can be registered with [WithExtractors].
//
// # Sentry Integration
//
//	log := logger.NewWithSentry(logger.SentryConfig{
//	    DSN:         os.Getenv("SENTRY_DSN"),
//	    Environment: "production",
//	    MinLevel:    slog.LevelWarn,
//	})
//
// Errors create Sentry issues; warnings are stored as logs. With an empty
// DSN the logger writes locally only.
package logger
