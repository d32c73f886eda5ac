// Command docengine runs the docengine MCP server: a kernel supervisor
// (spec.md §4.3) and patch engine (spec.md §4.2) exposed as MCP tools
// over stdio, in the same JSON-RPC shape as the teacher's specmcp.
//
// Optional environment variables:
//
//	DOCENGINE_CONFIG               - path to a docengine.toml config file
//	DOCENGINE_LOG_LEVEL             - debug, info, warn, error (default: info)
//	DOCENGINE_SIDECAR_BINARY        - path to the R sidecar executable (default: Rscript)
//	DOCENGINE_JUPYTER_KERNEL        - Jupyter kernel spec name, stored in the config as
//	                                  kernel.jupyter_kernel_name; the python runtime
//	                                  picks its kernel spec by language and does not read it
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/stencila-go/docengine/internal/doctools"
	"github.com/stencila-go/docengine/internal/engineconfig"
	"github.com/stencila-go/docengine/internal/kernel"
	_ "github.com/stencila-go/docengine/internal/kernel/jsruntime"
	_ "github.com/stencila-go/docengine/internal/kernel/jupyter"
	"github.com/stencila-go/docengine/internal/kernel/sidecar"
	"github.com/stencila-go/docengine/internal/mcp"
	"github.com/stencila-go/docengine/internal/scheduler"
)

// reaperJob periodically removes kernel instances that have reached a
// terminal failure state, so a long-lived server process doesn't
// accumulate dead sidecar or Jupyter subprocesses.
type reaperJob struct {
	registry *kernel.Registry
	logger   *slog.Logger
}

func (j *reaperJob) Name() string { return "kernel-reaper" }

func (j *reaperJob) Run(ctx context.Context) error {
	if n := j.registry.PruneDead(ctx); n > 0 {
		j.logger.Info("pruned dead kernel instances", "count", n)
	}
	return nil
}

// Version is set via ldflags at build time.
var Version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "docengine: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := engineconfig.Load(os.Getenv("DOCENGINE_CONFIG"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))
	logger.Info("starting docengine", "version", Version)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// The sidecar runtime's factory is parameterized by its binary path,
	// so unlike jsruntime/jupyter it is registered here rather than from
	// its own init().
	binary := cfg.Kernel.SidecarBinary
	if binary == "" {
		binary = "Rscript"
	}
	kernel.Default.RegisterFactory("r", func() kernel.Kernel { return sidecar.New(binary, nil) })

	sched := scheduler.NewScheduler(logger)
	sched.AddJob(&reaperJob{registry: kernel.Default, logger: logger}, time.Minute)
	sched.Start(ctx)
	defer sched.Stop()

	registry := mcp.NewRegistry()
	registry.Register(doctools.NewStartKernel(kernel.Default))
	registry.Register(doctools.NewExecute(kernel.Default))
	registry.Register(doctools.NewEvaluate(kernel.Default))
	registry.Register(doctools.NewFork(kernel.Default))
	registry.Register(doctools.NewSignal(kernel.Default))
	registry.Register(doctools.NewListVariables(kernel.Default))
	registry.Register(doctools.NewDiff())
	registry.Register(doctools.NewApply())

	server := mcp.NewServer(registry, mcp.ServerInfo{
		Name:    "docengine",
		Version: Version,
	}, logger)

	return server.Run(ctx)
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
