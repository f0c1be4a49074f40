package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/texbuilder/internal/config"
	"git.home.luguber.info/inful/texbuilder/internal/history"
	"git.home.luguber.info/inful/texbuilder/internal/logfields"
	"git.home.luguber.info/inful/texbuilder/internal/metrics"
	"git.home.luguber.info/inful/texbuilder/internal/pipeline"
	"git.home.luguber.info/inful/texbuilder/internal/runner"
	"git.home.luguber.info/inful/texbuilder/internal/version"
	"git.home.luguber.info/inful/texbuilder/internal/watch"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:""`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Build struct {
		Source    string `arg:"" help:"LaTeX source file to format"`
		Output    string `short:"o" help:"Output destination (path or bare format name)"`
		Format    string `short:"f" help:"Output format: dvi, ps, pdf, pdf(ps), pdf(dvi)"`
		MaxRuns   int    `help:"Maximum primary formatter runs" default:"0"`
		ExtraRuns int    `help:"Extra stabilization runs after convergence (-1: use config)" default:"-1"`
		Workdir   string `help:"Persistent workspace directory (kept after the job)"`
	} `cmd:"" help:"Format a document once"`

	Watch struct {
		Source string `arg:"" help:"LaTeX source file to watch"`
		Output string `short:"o" help:"Output destination"`
		Format string `short:"f" help:"Output format" default:"pdf"`
	} `cmd:"" help:"Rebuild the document whenever the source changes"`

	History struct {
		Limit int `short:"n" help:"Number of records to show" default:"10"`
	} `cmd:"" help:"Show recent builds from the history store"`

	Init struct {
		Path  string `arg:"" optional:"" help:"Configuration file to create" default:"texbuilder.yaml"`
		Force bool   `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`

	Version struct{} `cmd:"" help:"Print version information"`
}

func main() {
	ctx := kong.Parse(&CLI)

	// Load .env if present; existing environment wins.
	if err := godotenv.Load(); err == nil {
		slog.Debug("Loaded environment variables from .env")
	}

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	switch ctx.Command() {
	case "build <source>":
		cfg, err := config.Load(CLI.Config)
		if err != nil {
			slog.Error("Failed to load configuration", logfields.Error(err))
			os.Exit(1)
		}
		if err := runBuild(cfg); err != nil {
			slog.Error("Build failed", logfields.Error(err))
			os.Exit(1)
		}
	case "watch <source>":
		cfg, err := config.Load(CLI.Config)
		if err != nil {
			slog.Error("Failed to load configuration", logfields.Error(err))
			os.Exit(1)
		}
		if err := runWatch(cfg); err != nil {
			slog.Error("Watch failed", logfields.Error(err))
			os.Exit(1)
		}
	case "history":
		cfg, err := config.Load(CLI.Config)
		if err != nil {
			slog.Error("Failed to load configuration", logfields.Error(err))
			os.Exit(1)
		}
		if err := runHistory(cfg); err != nil {
			slog.Error("History failed", logfields.Error(err))
			os.Exit(1)
		}
	case "init", "init <path>":
		if err := config.Init(CLI.Init.Path, CLI.Init.Force); err != nil {
			slog.Error("Init failed", logfields.Error(err))
			os.Exit(1)
		}
		slog.Info("Configuration written", logfields.Path(CLI.Init.Path))
	case "version":
		fmt.Println(version.String())
	}
}

func runBuild(cfg *config.Config) error {
	source, err := os.ReadFile(CLI.Build.Source)
	if err != nil {
		return fmt.Errorf("failed to read source file: %w", err)
	}

	req := pipeline.Request{
		Source:       source,
		Format:       CLI.Build.Format,
		Output:       CLI.Build.Output,
		MaxRuns:      CLI.Build.MaxRuns,
		ExtraRuns:    CLI.Build.ExtraRuns,
		IndexStyle:   cfg.IndexStyle,
		IndexOptions: cfg.IndexOptions,
		SearchPaths:  cfg.SearchPaths,
		Workdir:      CLI.Build.Workdir,
	}
	req.MaxRuns = effectiveMaxRuns(req.MaxRuns, cfg.MaxRuns)
	req.ExtraRuns = effectiveExtraRuns(req.ExtraRuns, cfg.ExtraRuns)
	if req.Output == "" {
		req.Output = defaultOutput(CLI.Build.Source, req.Format)
	}

	res, err := pipeline.RunJob(context.Background(), cfg, &runner.ExecRunner{}, nil, req)
	recordHistory(cfg, CLI.Build.Source, req.Format, res, err)
	if err != nil {
		return err
	}

	if !res.Converged {
		slog.Warn("Document did not converge within the run budget; output is best-effort")
	}
	if res.Written == "" {
		// Bare format name as output: the payload stays in memory, stream it.
		if _, err := os.Stdout.Write(res.Bytes); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		slog.Info("Document written to stdout", logfields.Run(res.PrimaryRuns))
		return nil
	}
	slog.Info("Document written", logfields.Path(res.Written), logfields.Run(res.PrimaryRuns))
	return nil
}

func runWatch(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := prom.NewRegistry()
	rec := metrics.NewPrometheusRecorder(reg)

	if cfg.Metrics.Listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.HTTPHandler(reg))
		srv := &http.Server{Addr: cfg.Metrics.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			slog.Info("Serving metrics", "listen", cfg.Metrics.Listen)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("Metrics server failed", logfields.Error(err))
			}
		}()
		defer srv.Close()
	}

	output := CLI.Watch.Output
	if output == "" {
		output = defaultOutput(CLI.Watch.Source, CLI.Watch.Format)
	}

	rebuild := func(ctx context.Context) error {
		source, err := os.ReadFile(CLI.Watch.Source)
		if err != nil {
			return fmt.Errorf("failed to read source file: %w", err)
		}
		res, err := pipeline.RunJob(ctx, cfg, &runner.ExecRunner{}, rec, pipeline.Request{
			Source:       source,
			Format:       CLI.Watch.Format,
			Output:       output,
			MaxRuns:      cfg.MaxRuns,
			ExtraRuns:    cfg.ExtraRuns,
			IndexStyle:   cfg.IndexStyle,
			IndexOptions: cfg.IndexOptions,
			SearchPaths:  cfg.SearchPaths,
		})
		recordHistory(cfg, CLI.Watch.Source, CLI.Watch.Format, res, err)
		if err != nil {
			return err
		}
		slog.Info("Document rebuilt", logfields.Path(res.Written), logfields.Run(res.PrimaryRuns))
		return nil
	}

	w, err := watch.New(CLI.Watch.Source, rebuild)
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

func runHistory(cfg *config.Config) error {
	if cfg.History.Path == "" {
		return fmt.Errorf("no history store configured (set history.path)")
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.Recent(context.Background(), CLI.History.Limit)
	if err != nil {
		return err
	}
	for _, rec := range records {
		fmt.Printf("%s  %-8s %-9s runs=%d  %s  %s\n",
			rec.CreatedAt.Format(time.RFC3339), rec.Format, rec.Outcome, rec.PrimaryRuns, rec.Source, rec.JobID)
	}
	return nil
}

// recordHistory appends the job to the history store when one is configured.
// History failures are logged, never fatal.
func recordHistory(cfg *config.Config, source, format string, res *pipeline.Result, jobErr error) {
	if cfg.History.Path == "" {
		return
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		slog.Warn("Failed to open history store", logfields.Error(err))
		return
	}
	defer store.Close()

	rec := history.Record{Source: filepath.Base(source), Format: format}
	switch {
	case jobErr != nil:
		rec.Outcome = metrics.OutcomeFailed
		rec.ErrorText = jobErr.Error()
	case res.Converged:
		rec.Outcome = metrics.OutcomeSuccess
	default:
		rec.Outcome = metrics.OutcomeDiverged
	}
	if res != nil {
		rec.JobID = res.JobID
		rec.PrimaryRuns = res.PrimaryRuns
		rec.Converged = res.Converged
		rec.DurationMS = res.Duration.Milliseconds()
		if rec.Format == "" {
			rec.Format = res.Format
		}
	}
	if err := store.Append(context.Background(), rec); err != nil {
		slog.Warn("Failed to record build history", logfields.Error(err))
	}
}

// effectiveMaxRuns resolves the run-budget flag against the config default.
// Zero and negative budgets are meaningless, so any non-positive flag value
// means "use the config".
func effectiveMaxRuns(flag, configured int) int {
	if flag <= 0 {
		return configured
	}
	return flag
}

// effectiveExtraRuns resolves the extra-runs flag against the config default.
// Zero is a legitimate explicit choice here; only the -1 sentinel (the flag's
// default) falls back to the config.
func effectiveExtraRuns(flag, configured int) int {
	if flag < 0 {
		return configured
	}
	return flag
}

// defaultOutput derives the destination path from the source filename and
// the requested format's final extension.
func defaultOutput(source, format string) string {
	ext := "pdf"
	switch {
	case format == "dvi":
		ext = "dvi"
	case format == "ps":
		ext = "ps"
	case strings.HasPrefix(format, "pdf"):
		ext = "pdf"
	}
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	return base + "." + ext
}
