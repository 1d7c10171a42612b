// Package log provides the structured Logger used by the signing service.
//
// Loggers are passed explicitly or through a context.Context; there is no
// global logger. ZapLogger is the production implementation and supports
// console, logfmt and json output. NoopLogger discards everything and is the
// default for libraries and tests.
//
//	logger := log.NewZapLogger(log.Config{Format: "logfmt", Level: log.LevelInfo})
//	logger = logger.WithName("rpc").WithKV("connectionID", id)
//	logger.Info("request handled", "method", "sign", "duration", d)
//
// Values whose key mentions a secret, private key or password are replaced
// with [REDACTED] before they are written.
//
//	ctx = log.SetContextLogger(ctx, logger)
//	log.FromContext(ctx).Debug("hashing document")
//
// When ctx carries a valid OpenTelemetry span, SetContextLogger wraps the
// logger so every entry is also added to the span as an event.
package log
