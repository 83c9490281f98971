package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/getmockd/errorgen/pkg/cli/internal/output"
	"github.com/getmockd/errorgen/pkg/config"
	"github.com/getmockd/errorgen/pkg/logging"
	"github.com/getmockd/errorgen/pkg/server"
	"github.com/getmockd/errorgen/pkg/tracing"
)

// serveFlags holds the serve command flags. Only flags the user set
// override the file and environment.
type serveFlags struct {
	configFile      string
	port            int
	logLevel        string
	logFormat       string
	otlpEndpoint    string
	traceExporter   string
	traceSampleRate float64
	traceInsecure   bool
	maxLatencyMs    int64
	noMetrics       bool
	metricsPath     string
}

var serveOpts serveFlags

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the fault injection server",
	Long: `Start the fault injection server.

The endpoint /api/error-generator accepts the query parameters:
  errorType   INTERNAL_ERROR | VALIDATION_ERROR | TIMEOUT_ERROR | DEPENDENCY_ERROR
  errorRate   failure probability in [0, 1] (default 1.0)
  latencyMs   delay before answering, in milliseconds (default 0)

Setting --otlp-endpoint or --trace-exporter enables tracing.`,
	Example: `  errorgen serve --port 8080
  errorgen serve --config errorgen.yaml --log-level debug
  errorgen serve --otlp-endpoint otel-collector:4317 --trace-sample-rate 0.5`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveServeConfig(cmd, &serveOpts)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	f := serveCmd.Flags()
	f.StringVarP(&serveOpts.configFile, "config", "c", "", "Path to a YAML or JSON config file (env: "+config.EnvConfig+")")
	f.IntVarP(&serveOpts.port, "port", "p", config.DefaultPort, "HTTP listen port")
	f.StringVar(&serveOpts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	f.StringVar(&serveOpts.logFormat, "log-format", "text", "Log format (text, json)")
	f.StringVar(&serveOpts.otlpEndpoint, "otlp-endpoint", "", "OTLP collector endpoint; enables tracing")
	f.StringVar(&serveOpts.traceExporter, "trace-exporter", config.ExporterOTLPGRPC, "Trace exporter (otlpgrpc, otlphttp, stdout, none); enables tracing")
	f.Float64Var(&serveOpts.traceSampleRate, "trace-sample-rate", 1.0, "Fraction of root traces to sample")
	f.BoolVar(&serveOpts.traceInsecure, "trace-insecure", true, "Disable TLS to the OTLP collector")
	f.Int64Var(&serveOpts.maxLatencyMs, "max-latency", 0, "Cap on injected latency in milliseconds (0 = no cap)")
	f.BoolVar(&serveOpts.noMetrics, "no-metrics", false, "Disable the Prometheus endpoint")
	f.StringVar(&serveOpts.metricsPath, "metrics-path", config.DefaultMetricsPath, "Prometheus endpoint path")

	rootCmd.AddCommand(serveCmd)
}

// loadConfig builds the configuration from defaults, the optional file and
// the environment.
func loadConfig(path string) (*config.ServerConfiguration, error) {
	if path == "" {
		path = config.GetConfigFileFromEnv()
	}

	cfg := config.DefaultServerConfiguration()
	if path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if err := config.LoadEnv(cfg); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	return cfg, nil
}

// resolveServeConfig layers the set flags over loadConfig and validates the result.
func resolveServeConfig(cmd *cobra.Command, opts *serveFlags) (*config.ServerConfiguration, error) {
	cfg, err := loadConfig(opts.configFile)
	if err != nil {
		return nil, err
	}

	f := cmd.Flags()
	if f.Changed("port") {
		cfg.Port = opts.port
	}
	if f.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if f.Changed("log-format") {
		cfg.Log.Format = opts.logFormat
	}
	if f.Changed("otlp-endpoint") {
		cfg.Tracing.Endpoint = opts.otlpEndpoint
		cfg.Tracing.Enabled = true
	}
	if f.Changed("trace-exporter") {
		cfg.Tracing.Exporter = opts.traceExporter
		cfg.Tracing.Enabled = opts.traceExporter != config.ExporterNone
	}
	if f.Changed("trace-sample-rate") {
		cfg.Tracing.SampleRate = opts.traceSampleRate
	}
	if f.Changed("trace-insecure") {
		cfg.Tracing.Insecure = opts.traceInsecure
	}
	if f.Changed("max-latency") {
		cfg.MaxLatencyMs = opts.maxLatencyMs
	}
	if f.Changed("no-metrics") {
		cfg.Metrics.Enabled = !opts.noMetrics
	}
	if f.Changed("metrics-path") {
		cfg.Metrics.Path = opts.metricsPath
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.ServerConfiguration, w io.Writer) *slog.Logger {
	return logging.New(logging.FromConfig(cfg.Log, w))
}

// runServe starts the server and blocks until ctx is canceled or the server
// fails, then shuts down within the configured timeout.
func runServe(ctx context.Context, cfg *config.ServerConfiguration, stdout, stderr io.Writer) error {
	log := newLogger(cfg, stderr)

	provider, err := tracing.NewProvider(ctx, tracing.FromConfig(cfg.Tracing, buildVersion().Version),
		tracing.WithLogger(log), tracing.WithWriter(stderr))
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	opts := []server.Option{server.WithLogger(log)}
	if provider.Enabled() {
		opts = append(opts, server.WithTracerProvider(provider.TracerProvider(), provider.Propagator()))
	}
	srv := server.New(cfg, opts...)

	if err := srv.Start(); err != nil {
		_ = provider.Shutdown(context.Background())
		return err
	}

	if jsonOutput {
		_ = output.JSON(stdout, map[string]any{
			"status":  "running",
			"url":     srv.URL(),
			"metrics": cfg.Metrics.Enabled,
			"tracing": provider.Enabled(),
		})
	} else {
		fmt.Fprintf(stdout, "errorgen listening on %s\n", srv.URL())
		fmt.Fprintf(stdout, "  endpoint: %s%s\n", srv.URL(), server.PathErrorGenerator)
		if cfg.Metrics.Enabled {
			fmt.Fprintf(stdout, "  metrics:  %s%s\n", srv.URL(), cfg.Metrics.Path)
		}
		fmt.Fprintln(stdout, "Press Ctrl+C to stop")
	}

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err, ok := <-srv.Done():
		if ok && err != nil {
			serveErr = fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeoutDuration())
	defer cancel()

	var errs []error
	if serveErr != nil {
		errs = append(errs, serveErr)
	}
	if err := srv.Stop(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	// Flush remaining spans after the last request has finished.
	if err := provider.Shutdown(shutdownCtx); err != nil {
		output.Warn(stderr, "tracer shutdown error: %v", err)
	}
	return errors.Join(errs...)
}
