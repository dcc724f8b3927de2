package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rendis/deliverable/internal/filter"
	"github.com/rendis/deliverable/internal/logging"
	"github.com/rendis/deliverable/internal/render"
	"github.com/rendis/deliverable/internal/retention"
	"github.com/rendis/deliverable/internal/store"
	"github.com/rendis/deliverable/pkg/deliverable"
	"github.com/rendis/deliverable/pkg/mcp"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg := loadConfig()
	logger := newLogger(cfg.LogLevel)

	var err error
	switch os.Args[1] {
	case "parse":
		err = runParse(cfg, logger, os.Args[2:])
	case "serve":
		err = runServe(cfg, logger)
	case "prune":
		err = runPrune(cfg, logger)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: deliverable <command>

commands:
  parse   parse text from stdin or a file into a workflow or checklist
  serve   run the MCP stdio server
  prune   delete stored parse records older than the retention max age`)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	inner := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(logging.NewCorrelationHandler(inner))
}

func parserOptions(cfg Config) deliverable.Options {
	opts := deliverable.DefaultOptions()
	if cfg.MaxLabelLen > 0 {
		opts.MaxLabelLen = cfg.MaxLabelLen
	}
	if cfg.MaxSubsteps > 0 {
		opts.MaxSubsteps = cfg.MaxSubsteps
	}
	if cfg.MaxFanOut > 0 {
		opts.MaxParallelBranches = cfg.MaxFanOut
	}
	return opts
}

func runParse(cfg Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	mode := fs.String("mode", "workflow", "deliverable kind: workflow or checklist")
	format := fs.String("format", "json", "output format: json or mermaid")
	if err := fs.Parse(args); err != nil {
		return err
	}

	text, err := readInput(fs.Arg(0))
	if err != nil {
		return err
	}

	ctx := context.Background()
	parser := deliverable.NewParser(parserOptions(cfg), logger)

	switch *mode {
	case "workflow":
		wf := parser.ParseWorkflow(ctx, text)
		if *format == "mermaid" {
			fmt.Print(render.Mermaid(wf, ""))
			return nil
		}
		return printJSON(wf)
	case "checklist":
		sections := parser.ParseChecklist(ctx, text)
		if *format == "mermaid" {
			fmt.Print(render.MermaidChecklist(sections))
			return nil
		}
		return printJSON(sections)
	default:
		return fmt.Errorf("unknown mode %q", *mode)
	}
}

func runServe(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := mcp.ServerDeps{Logger: logger}

	flt, err := filter.NewEngine()
	if err != nil {
		return err
	}
	deps.Filter = flt
	deps.Parser = deliverable.NewParser(parserOptions(cfg), logger)

	if cfg.Persist {
		st, janitor, openErr := openStore(ctx, cfg, logger)
		if openErr != nil {
			return openErr
		}
		defer st.Close()
		if janitor != nil {
			if startErr := janitor.Start(ctx); startErr != nil {
				return startErr
			}
			defer janitor.Stop()
		}
		deps.Store = st
	}

	srv := mcp.NewServer(deps)
	logger.Info("mcp server listening on stdio", slog.Bool("persist", cfg.Persist))
	return srv.Serve(ctx)
}

func runPrune(cfg Config, logger *slog.Logger) error {
	ctx := context.Background()
	st, janitor, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := janitor.Prune(ctx)
	if err != nil {
		return err
	}
	logger.Info("prune completed", slog.Int64("deleted", n))
	return nil
}

func openStore(ctx context.Context, cfg Config, logger *slog.Logger) (store.Store, *retention.Janitor, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create data dir: %w", err)
	}
	st, err := store.NewLibSQLStore("file:" + cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, nil, err
	}
	janitor, err := retention.NewJanitor(st, retention.Policy{
		Schedule: cfg.RetentionSchedule,
		MaxAge:   cfg.retentionMaxAge(),
	}, logger)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return st, janitor, nil
}

func readInput(path string) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
