// Package logging builds the slog loggers used by every errorgen component.
//
// Loggers come from the server configuration:
//
//	log := logging.New(logging.FromConfig(cfg.Log, os.Stderr))
//	srvLog := logging.Component(log, "server")
//
// Records logged with a context holding a valid OpenTelemetry span gain
// trace_id and span_id attributes, so a simulated failure can be found from
// its trace:
//
//	log.InfoContext(ctx, "simulated failure", "error_type", "TIMEOUT_ERROR")
//
// Constructors take a *slog.Logger through an option and fall back to Nop.
package logging
