package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/moabualruz/ricecoder-sub010/internal/agent"
	"github.com/moabualruz/ricecoder-sub010/internal/agent/builtin"
	"github.com/moabualruz/ricecoder-sub010/internal/config"
	"github.com/moabualruz/ricecoder-sub010/internal/event"
	"github.com/moabualruz/ricecoder-sub010/internal/executor"
	"github.com/moabualruz/ricecoder-sub010/internal/logging"
	"github.com/moabualruz/ricecoder-sub010/internal/metrics"
	"github.com/moabualruz/ricecoder-sub010/internal/orchestrator"
	"github.com/moabualruz/ricecoder-sub010/internal/plan"
)

// runOptions holds the flags shared by run and watch.
type runOptions struct {
	planPath       string
	maxConcurrency int
	timeout        time.Duration
	verbose        bool
	json           bool
	noConflicts    bool
	metricsAddr    string
}

func (o *runOptions) addFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&o.planPath, "plan", "p", "", "plan file (YAML)")
	f.IntVar(&o.maxConcurrency, "max-concurrency", 0, "maximum tasks running at once (0 = hardware parallelism)")
	f.DurationVar(&o.timeout, "timeout", 0, "per-task timeout, e.g. 30s")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "log every task start and finish")
	f.BoolVar(&o.json, "json", false, "print the report as JSON")
	f.BoolVar(&o.noConflicts, "no-conflicts", false, "skip recommendation conflict detection")
	f.StringVar(&o.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during the run")
	_ = cmd.MarkFlagRequired("plan")
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a plan once and print the report",
		Long: `Run every task of a plan, phase by phase, then print the aggregated
findings and any conflicting recommendations.

Executor settings come from the config file, then the plan's executor
section, then flags; later sources win.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			env, err := newRunEnv(cmd, opts)
			if err != nil {
				return err
			}
			defer env.close()

			f, err := plan.Load(opts.planPath)
			if err != nil {
				return err
			}
			report, err := env.execute(ctx, cmd, f)
			if err != nil {
				return err
			}
			if err := env.print(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if report.Failed > 0 {
				return fmt.Errorf("%d of %d task(s) failed", report.Failed, len(report.Results))
			}
			return nil
		},
	}
	opts.addFlags(cmd)
	return cmd
}

// runEnv is the wiring shared by every run of a command invocation.
type runEnv struct {
	opts      *runOptions
	cfg       *config.Config
	logger    *logging.Logger
	bus       *event.Bus
	collector *metrics.Collector
	registry  *agent.Registry
	server    *http.Server
}

func newRunEnv(cmd *cobra.Command, opts *runOptions) (*runEnv, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var logger *logging.Logger
	if cfg.Logging.Dir != "" {
		logger, err = logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
		if err != nil {
			return nil, fmt.Errorf("failed to open log: %w", err)
		}
	} else {
		logger = logging.NewWriterLogger(cmd.ErrOrStderr(), cfg.Logging.Level)
	}

	env := &runEnv{
		opts:      opts,
		cfg:       cfg,
		logger:    logger,
		bus:       event.NewBus(logger),
		collector: metrics.New(),
		registry:  builtin.NewRegistry(),
	}
	env.collector.Attach(env.bus)

	addr := opts.metricsAddr
	if addr == "" && cfg.Metrics.Enabled {
		addr = cfg.Metrics.Addr
	}
	if addr != "" {
		if err := env.serveMetrics(addr); err != nil {
			env.close()
			return nil, err
		}
	}
	return env, nil
}

func (e *runEnv) serveMetrics(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.collector.Handler())
	e.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := e.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			e.logger.Error("metrics server stopped", "error", err.Error())
		}
	}()
	e.logger.Info("serving metrics", "addr", ln.Addr().String())
	return nil
}

func (e *runEnv) close() {
	if e.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = e.server.Shutdown(ctx)
	}
	_ = e.logger.Close()
}

// executorConfig layers config file, plan overrides and flags.
func (e *runEnv) executorConfig(cmd *cobra.Command, f *plan.File) executor.Config {
	ec := e.cfg.ExecutorConfig()
	if f.Executor.MaxConcurrency > 0 {
		ec.MaxConcurrency = f.Executor.MaxConcurrency
	}
	if f.Executor.Timeout > 0 {
		ec.Timeout = f.Executor.Timeout
	}

	flags := cmd.Flags()
	if flags.Changed("max-concurrency") && e.opts.maxConcurrency > 0 {
		ec.MaxConcurrency = e.opts.maxConcurrency
	}
	if flags.Changed("timeout") {
		ec.Timeout = e.opts.timeout
	}
	if flags.Changed("verbose") {
		ec.Verbose = e.opts.verbose
	}
	return ec
}

func (e *runEnv) execute(ctx context.Context, cmd *cobra.Command, f *plan.File) (*orchestrator.Report, error) {
	orch := orchestrator.New(e.registry,
		orchestrator.WithLogger(e.logger),
		orchestrator.WithBus(e.bus),
		orchestrator.WithMetrics(e.collector),
		orchestrator.WithProjectContext(f.ProjectContext()),
	)
	return orch.Execute(ctx, orchestrator.Request{
		Tasks:           f.AgentTasks(),
		Edges:           f.Edges(),
		Recommendations: f.Recommendations,
		Config:          e.executorConfig(cmd, f),
		DetectConflicts: e.cfg.Conflicts.Enabled && !e.opts.noConflicts,
	})
}

func (e *runEnv) print(w io.Writer, report *orchestrator.Report) error {
	if e.opts.json {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	_, err := io.WriteString(w, renderReport(report))
	return err
}
