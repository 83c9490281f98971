package cli

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/getmockd/errorgen/pkg/cli/internal/output"
	"github.com/getmockd/errorgen/pkg/config"
	"github.com/getmockd/errorgen/pkg/loadgen"
	"github.com/getmockd/errorgen/pkg/logging"
	"github.com/getmockd/errorgen/pkg/tracing"
)

type loadFlags struct {
	url           string
	rps           int
	duration      time.Duration
	requests      int
	minRate       float64
	maxRate       float64
	maxLatencyMs  int64
	concurrency   int
	otlpEndpoint  string
	traceExporter string
	quiet         bool
}

var loadOpts loadFlags

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Generate randomized traffic against an errorgen server",
	Long: `Generate randomized traffic against an errorgen server.

Every request picks a random error type, an error rate between --min-rate and
--max-rate and a latency up to --max-latency. One line is printed per request,
followed by a summary. With --json only the summary is printed, as JSON.

Setting --otlp-endpoint or --trace-exporter emits a client span per request
and propagates the trace context to the server.`,
	Example: `  errorgen load --url http://localhost:8080 --rps 10 --duration 30s
  errorgen load --requests 100 --max-latency 0 --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runLoad(ctx, cmd, &loadOpts)
	},
}

func init() {
	f := loadCmd.Flags()
	f.StringVar(&loadOpts.url, "url", loadgen.DefaultBaseURL, "Base URL of the errorgen server")
	f.IntVar(&loadOpts.rps, "rps", loadgen.DefaultRPS, "Requests per second")
	f.DurationVar(&loadOpts.duration, "duration", loadgen.DefaultDuration, "Test duration (0 = until --requests)")
	f.IntVar(&loadOpts.requests, "requests", 0, "Stop after this many requests (0 = no cap)")
	f.Float64Var(&loadOpts.minRate, "min-rate", loadgen.DefaultMinRate, "Minimum random error rate")
	f.Float64Var(&loadOpts.maxRate, "max-rate", loadgen.DefaultMaxRate, "Maximum random error rate")
	f.Int64Var(&loadOpts.maxLatencyMs, "max-latency", loadgen.DefaultMaxLatency.Milliseconds(), "Maximum random latency in milliseconds")
	f.IntVar(&loadOpts.concurrency, "concurrency", 0, "Maximum in-flight requests (0 = no cap)")
	f.StringVar(&loadOpts.otlpEndpoint, "otlp-endpoint", "", "OTLP collector endpoint; enables client tracing")
	f.StringVar(&loadOpts.traceExporter, "trace-exporter", config.ExporterOTLPGRPC, "Trace exporter (otlpgrpc, otlphttp, stdout, none)")
	f.BoolVarP(&loadOpts.quiet, "quiet", "q", false, "Only print the summary")

	rootCmd.AddCommand(loadCmd)
}

func runLoad(ctx context.Context, cmd *cobra.Command, opts *loadFlags) error {
	stdout := cmd.OutOrStdout()
	stderr := cmd.ErrOrStderr()

	lcfg := loadgen.Config{
		BaseURL:     opts.url,
		RPS:         opts.rps,
		Duration:    opts.duration,
		Requests:    opts.requests,
		MinRate:     opts.minRate,
		MaxRate:     opts.maxRate,
		MaxLatency:  time.Duration(opts.maxLatencyMs) * time.Millisecond,
		Concurrency: opts.concurrency,
	}

	cfg, err := loadConfig("")
	if err != nil {
		return err
	}
	f := cmd.Flags()
	if f.Changed("otlp-endpoint") {
		cfg.Tracing.Endpoint = opts.otlpEndpoint
		cfg.Tracing.Enabled = true
	}
	if f.Changed("trace-exporter") {
		cfg.Tracing.Exporter = opts.traceExporter
		cfg.Tracing.Enabled = opts.traceExporter != config.ExporterNone
	}
	if cfg.Tracing.ServiceName == config.DefaultServiceName {
		cfg.Tracing.ServiceName = config.DefaultServiceName + "-load"
	}

	log := newLogger(cfg, stderr)
	provider, err := tracing.NewProvider(ctx, tracing.FromConfig(cfg.Tracing, buildVersion().Version),
		tracing.WithLogger(log), tracing.WithWriter(stderr))
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			output.Warn(stderr, "tracer shutdown error: %v", err)
		}
	}()

	printLines := !jsonOutput && !opts.quiet
	genOpts := []loadgen.Option{loadgen.WithLogger(logging.Nop())}
	if printLines {
		genOpts = append(genOpts, loadgen.WithResultHandler(func(r loadgen.Result) {
			fmt.Fprintln(stdout, r.Line())
		}))
	}
	if provider.Enabled() {
		genOpts = append(genOpts, loadgen.WithTracerProvider(provider.TracerProvider(), provider.Propagator()))
	}

	gen, err := loadgen.New(lcfg, genOpts...)
	if err != nil {
		return err
	}

	if printLines {
		printLoadHeader(stdout, lcfg)
	}

	summary, err := gen.Run(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		return summary.WriteJSON(stdout)
	}
	return summary.WriteText(stdout)
}

func printLoadHeader(w io.Writer, cfg loadgen.Config) {
	fmt.Fprintln(w, "\nStarting error generation test:")
	fmt.Fprintf(w, "Base URL: %s\n", cfg.BaseURL)
	if cfg.Duration > 0 {
		fmt.Fprintf(w, "Duration: %s\n", cfg.Duration)
	}
	if cfg.Requests > 0 {
		fmt.Fprintf(w, "Requests: %d\n", cfg.Requests)
	}
	fmt.Fprintf(w, "Rate: %d requests/second\n", cfg.RPS)
	fmt.Fprintln(w, "\nTimestamp | Status | Error Type | Error Rate | Latency")
	fmt.Fprintln(w, strings.Repeat("-", 70))
}
