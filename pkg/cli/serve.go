package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/carbonmock/carbon/internal/script"
	"github.com/carbonmock/carbon/pkg/config"
	"github.com/carbonmock/carbon/pkg/engine"
	"github.com/carbonmock/carbon/pkg/logging"
	"github.com/carbonmock/carbon/pkg/metrics"
	"github.com/carbonmock/carbon/pkg/proxy"
	"github.com/carbonmock/carbon/pkg/requestlog"
	"github.com/carbonmock/carbon/pkg/store/file"
	"github.com/carbonmock/carbon/pkg/workspace"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the mock server (default command)",
		Example: `  # Start with defaults (port 3000, ./data)
  carbon serve

  # Serve another workspace from a custom directory
  carbon serve --data-dir ./mocks --workspace Staging --port 8080

  # Use the expression engine and JSON logs
  carbon serve --engine expr --log-format json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}
	bindServeFlags(cmd, opts)
	return cmd
}

func bindServeFlags(cmd *cobra.Command, opts *options) {
	cmd.Flags().IntVarP(&opts.port, "port", "p", config.DefaultPort, "HTTP server port")
	cmd.Flags().StringVar(&opts.logFile, "log-file", config.DefaultLogFile, "Request log file (JSON lines, empty disables)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", config.DefaultLogLevel, "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&opts.logFormat, "log-format", config.DefaultLogFmt, "Log format (text, json)")
	cmd.Flags().BoolVar(&opts.noWatch, "no-watch", false, "Do not reload when the data directory changes")
}

// runServe starts the server and blocks until SIGINT or SIGTERM.
func runServe(cmd *cobra.Command, opts *options) error {
	cfg, err := resolveConfig(cmd, opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := startServer(ctx, cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	printStartupMessage(out, cfg, srv)

	<-ctx.Done()
	fmt.Fprintln(out, "\nShutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		return err
	}
	fmt.Fprintln(out, "Server stopped")
	return nil
}

// server is a running carbon process.
type server struct {
	cfg      *config.Config
	log      *slog.Logger
	store    *file.Store
	cache    *engine.Cache
	requests *requestlog.MemoryStore
	fileSink *requestlog.FileSink
	logFile  io.Closer
	metrics  *metrics.Metrics
	http     *engine.Server
	cancel   context.CancelFunc
}

// startServer wires storage, cache, request log, proxy and HTTP listener from
// cfg. Operational logs go to logOut.
func startServer(ctx context.Context, cfg *config.Config, logOut io.Writer) (_ *server, err error) {
	log, logFile, err := newLogger(cfg.Log, logOut)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &server{
		cfg:     cfg,
		log:     log,
		logFile: logFile,
		metrics: metrics.New(nil),
		cancel:  cancel,
	}
	defer func() {
		if err != nil {
			_ = s.release()
		}
	}()

	scripts, err := script.New(cfg.Scripting.Engine)
	if err != nil {
		return nil, err
	}

	s.store = file.New(cfg.DataDir, file.WithLogger(log.With("component", "store")))
	if err := s.store.Init(); err != nil {
		return nil, fmt.Errorf("initialize data directory: %w", err)
	}

	selector := workspace.NewSelector(cfg.Workspace)
	s.cache = engine.NewCache(s.store, selector, scripts,
		engine.WithCacheLogger(log.With("component", "cache")),
		engine.WithCacheMetrics(s.metrics),
	)
	if err := s.cache.Load(ctx); err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if cfg.Watch.Enabled {
		if err := s.store.Watch(ctx, file.WithDebounce(cfg.Watch.Debounce)); err != nil {
			return nil, fmt.Errorf("watch %s: %w", cfg.DataDir, err)
		}
		s.cache.Watch(ctx)
	}

	s.requests = requestlog.NewMemoryStore(cfg.RequestLog.Capacity)
	loggers := []requestlog.Logger{s.requests, requestlog.NewSlogSink(log.With("component", "requests"))}
	if cfg.LogFile != "" {
		s.fileSink, err = requestlog.OpenFile(cfg.LogFile)
		if err != nil {
			return nil, err
		}
		s.fileSink.SetLogger(log)
		loggers = append(loggers, s.fileSink)
	}

	forwarder := proxy.NewForwarder(
		proxy.WithLogger(log.With("component", "proxy")),
		proxy.WithMetrics(s.metrics),
		proxy.WithTimeout(cfg.Proxy.Timeout),
	)
	handler := engine.NewHandler(s.cache,
		engine.WithRequestLog(requestlog.Multi(loggers...)),
		engine.WithRequestStore(s.requests),
		engine.WithLogger(log),
		engine.WithMetrics(s.metrics),
		engine.WithForwarder(forwarder),
	)

	s.http = engine.NewServer(":"+strconv.Itoa(cfg.Port), handler, engine.WithServerLogger(log))
	if err := s.http.Start(); err != nil {
		return nil, err
	}
	return s, nil
}

// Stop shuts the listener down and releases the watcher and log file.
func (s *server) Stop(ctx context.Context) error {
	err := s.http.Stop(ctx)
	return errors.Join(err, s.release())
}

func (s *server) release() error {
	s.cancel()
	var errs []error
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	if s.fileSink != nil {
		errs = append(errs, s.fileSink.Close())
	}
	if s.logFile != nil {
		errs = append(errs, s.logFile.Close())
		s.logFile = nil
	}
	return errors.Join(errs...)
}

// newLogger builds the operational logger. With cfg.File set, records are
// also appended to that file as JSON; the returned closer then owns it.
func newLogger(cfg config.LogConfig, out io.Writer) (*slog.Logger, io.Closer, error) {
	console := logging.Config{
		Level:  logging.ParseLevel(cfg.Level),
		Format: logging.ParseFormat(cfg.Format),
		Output: out,
	}
	if cfg.File == "" {
		return logging.New(console), nil, nil
	}

	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	jsonCfg := console
	jsonCfg.Format = logging.FormatJSON
	jsonCfg.Output = f
	return slog.New(logging.NewMultiHandler(logging.NewHandler(console), logging.NewHandler(jsonCfg))), f, nil
}

func printStartupMessage(w io.Writer, cfg *config.Config, s *server) {
	snap := s.cache.Snapshot()
	fmt.Fprintf(w, "carbon listening on %s\n", s.http.Addr())
	fmt.Fprintf(w, "  Data dir:   %s\n", cfg.DataDir)
	fmt.Fprintf(w, "  Workspace:  %s (%d apis)\n", snap.Workspace, len(snap.Entries()))
	fmt.Fprintf(w, "  Engine:     %s\n", cfg.Scripting.Engine)
	if cfg.LogFile != "" {
		fmt.Fprintf(w, "  Request log: %s\n", cfg.LogFile)
	}
	if n := len(snap.Diagnostics()); n > 0 {
		fmt.Fprintf(w, "  %d compile error(s); see %scache or run 'carbon validate'\n", n, engine.InternalPrefix)
	}
	fmt.Fprintln(w, "Press Ctrl+C to stop")
}
