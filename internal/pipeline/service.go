package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/texbuilder/internal/config"
	"git.home.luguber.info/inful/texbuilder/internal/logfields"
	"git.home.luguber.info/inful/texbuilder/internal/metrics"
	"git.home.luguber.info/inful/texbuilder/internal/runner"
	"git.home.luguber.info/inful/texbuilder/internal/workspace"
)

// Request is one complete formatting request as accepted by RunJob.
type Request struct {
	Source []byte
	Format string // explicit format; empty means infer from Output
	Output string // destination path, or a bare format name (legacy shorthand)

	MaxRuns      int
	ExtraRuns    int
	IndexStyle   string
	IndexOptions []string
	SearchPaths  []string

	// Workdir, when set, is a caller-supplied persistent workspace that is
	// reused and never destroyed by the job.
	Workdir string
}

// Result is the terminal outcome of a successful job: either an in-memory
// payload or a confirmation of the written destination.
type Result struct {
	JobID       string
	Bytes       []byte
	Written     string
	Format      string
	PrimaryRuns int
	Converged   bool
	Duration    time.Duration
}

// RunJob prepares a workspace, drives the convergence loop and delivers the
// output. The workspace is released on every exit path unless it was
// caller-supplied.
func RunJob(ctx context.Context, cfg *config.Config, run runner.Runner, rec metrics.Recorder, req Request) (*Result, error) {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	start := time.Now()
	jobID := uuid.NewString()

	format, err := ResolveFormat(req.Format, req.Output)
	if err != nil {
		rec.IncJobOutcome(metrics.OutcomeFailed)
		return nil, err
	}

	// Configuration errors for the resolved chain surface before any
	// external process runs. Auxiliary tools are deliberately not part of
	// this check.
	chainTools := []string{format.Primary}
	for _, step := range format.Postprocess {
		chainTools = append(chainTools, step.Tool)
	}
	if err := cfg.Validate(chainTools...); err != nil {
		rec.IncJobOutcome(metrics.OutcomeFailed)
		return nil, err
	}

	var ws *workspace.Workspace
	if req.Workdir != "" {
		ws, err = workspace.NewPersistent(req.Workdir)
	} else {
		ws, err = workspace.New(cfg.Tmpdir)
	}
	if err != nil {
		rec.IncJobOutcome(metrics.OutcomeFailed)
		return nil, err
	}
	defer func() {
		if err := ws.Cleanup(); err != nil {
			slog.Warn("Failed to cleanup workspace", logfields.JobID(jobID), logfields.Error(err))
		}
	}()

	if err := ws.WriteSource(req.Source); err != nil {
		rec.IncJobOutcome(metrics.OutcomeFailed)
		return nil, err
	}

	slog.Info("Starting formatting job",
		logfields.JobID(jobID),
		logfields.Format(format.Name),
		logfields.Path(ws.Dir()))

	driver := NewDriver(cfg, run, rec, ws)
	outcome, err := driver.Converge(ctx, Job{
		ID:           jobID,
		Format:       format,
		MaxRuns:      req.MaxRuns,
		ExtraRuns:    req.ExtraRuns,
		IndexStyle:   req.IndexStyle,
		IndexOptions: req.IndexOptions,
		SearchPaths:  req.SearchPaths,
	})
	if err != nil {
		rec.IncJobOutcome(metrics.OutcomeFailed)
		return nil, err
	}

	res := &Result{
		JobID:       jobID,
		Format:      format.Name,
		PrimaryRuns: outcome.PrimaryRuns,
		Converged:   outcome.Converged,
		Duration:    time.Since(start),
	}

	if dest := destinationPath(req); dest != "" {
		written, err := ws.Deliver(format.OutputExt, dest)
		if err != nil {
			rec.IncJobOutcome(metrics.OutcomeFailed)
			return nil, err
		}
		res.Written = written
	} else {
		data, err := ws.Output(format.OutputExt)
		if err != nil {
			rec.IncJobOutcome(metrics.OutcomeFailed)
			return nil, err
		}
		res.Bytes = data
	}

	rec.ObserveJobDuration(res.Duration)
	if res.Converged {
		rec.IncJobOutcome(metrics.OutcomeSuccess)
	} else {
		rec.IncJobOutcome(metrics.OutcomeDiverged)
	}

	slog.Info("Formatting job finished",
		logfields.JobID(jobID),
		logfields.Run(res.PrimaryRuns),
		"converged", res.Converged,
		logfields.DurationMS(float64(res.Duration.Milliseconds())))
	return res, nil
}

// destinationPath returns the delivery destination, or empty when the caller
// wants the payload in memory. An output argument that is a bare format name
// (legacy shorthand) is not a destination.
func destinationPath(req Request) string {
	out := strings.TrimSpace(req.Output)
	if out == "" {
		return ""
	}
	if filepath.Ext(out) == "" && IsKnownFormat(out) {
		return ""
	}
	return out
}
