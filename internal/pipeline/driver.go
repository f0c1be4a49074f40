// Package pipeline drives the multi-pass typesetting loop to a fixed point:
// it reruns the primary formatter while logs and auxiliary artifacts signal
// more work, interleaves the bibliography and index tools, and applies the
// postprocessing chain once the document stabilizes.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"git.home.luguber.info/inful/texbuilder/internal/config"
	builderrors "git.home.luguber.info/inful/texbuilder/internal/errors"
	"git.home.luguber.info/inful/texbuilder/internal/logfields"
	"git.home.luguber.info/inful/texbuilder/internal/metrics"
	"git.home.luguber.info/inful/texbuilder/internal/runner"
	"git.home.luguber.info/inful/texbuilder/internal/texlog"
	"git.home.luguber.info/inful/texbuilder/internal/workspace"
)

// DriverState enumerates the control-loop states.
type DriverState string

const (
	StateNeedsFormat       DriverState = "needs_format"
	StateNeedsBibliography DriverState = "needs_bibliography"
	StateNeedsIndex        DriverState = "needs_index"
	StateStable            DriverState = "stable"
	StateFailed            DriverState = "failed"
)

// Job is one formatting request as seen by the driver. The workspace already
// holds the materialized source when Converge is called.
type Job struct {
	ID           string
	Format       Format
	MaxRuns      int
	ExtraRuns    int
	IndexStyle   string
	IndexOptions []string
	SearchPaths  []string
}

// Outcome summarizes a finished convergence loop.
type Outcome struct {
	State       DriverState
	PrimaryRuns int
	Converged   bool
}

// Driver owns the control loop for a single job. It issues at most one
// external process at a time and holds no state shared across jobs.
type Driver struct {
	cfg *config.Config
	run runner.Runner
	rec metrics.Recorder

	ws    *workspace.Workspace
	state ConvergenceState
}

// NewDriver constructs a driver over an already-prepared workspace.
func NewDriver(cfg *config.Config, run runner.Runner, rec metrics.Recorder, ws *workspace.Workspace) *Driver {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Driver{cfg: cfg, run: run, rec: rec, ws: ws}
}

// Converge runs the primary formatter and auxiliary tools until the document
// stabilizes, an error occurs, or the run budget is exhausted. Bibliography
// and index runs do not consume budget so that convergence is not starved by
// auxiliary work. Budget exhaustion is best-effort success: whatever output
// exists is kept and the outcome carries Converged=false.
func (d *Driver) Converge(ctx context.Context, job Job) (Outcome, error) {
	maxRuns := job.MaxRuns
	if maxRuns <= 0 {
		maxRuns = config.DefaultMaxRuns
	}

	out := Outcome{State: StateNeedsFormat}
	for out.PrimaryRuns < maxRuns {
		switch {
		case d.formatterRequired():
			out.State = StateNeedsFormat
			if err := d.runFormatter(ctx, job, out.PrimaryRuns+1); err != nil {
				out.State = StateFailed
				return out, err
			}
			out.PrimaryRuns++
		case d.bibliographyRequired():
			out.State = StateNeedsBibliography
			if err := d.runBibliography(ctx, job); err != nil {
				out.State = StateFailed
				return out, err
			}
		case d.indexRequired():
			out.State = StateNeedsIndex
			if err := d.runIndex(ctx, job); err != nil {
				out.State = StateFailed
				return out, err
			}
		default:
			out.State = StateStable
			out.Converged = true
			return d.finish(ctx, job, out)
		}
	}

	if !d.formatterRequired() && !d.bibliographyRequired() && !d.indexRequired() {
		out.State = StateStable
		out.Converged = true
		return d.finish(ctx, job, out)
	}

	// Give up after maxRuns attempts and keep whatever output exists.
	slog.Warn("Run budget exhausted before document stabilized",
		logfields.JobID(job.ID),
		logfields.Run(out.PrimaryRuns))
	out.State = StateStable
	return d.finish(ctx, job, out)
}

// finish performs the extra stabilization runs and the postprocessing chain.
func (d *Driver) finish(ctx context.Context, job Job, out Outcome) (Outcome, error) {
	for i := 0; i < job.ExtraRuns; i++ {
		if err := d.runFormatter(ctx, job, out.PrimaryRuns+1); err != nil {
			out.State = StateFailed
			return out, err
		}
		out.PrimaryRuns++
	}
	if err := d.postprocess(ctx, job); err != nil {
		out.State = StateFailed
		return out, err
	}
	d.rec.ObservePrimaryRuns(out.PrimaryRuns)
	return out, nil
}

// formatterRequired is true when the last log signaled more work, a rerun was
// forced by an auxiliary tool, or no .aux file exists yet (first run).
func (d *Driver) formatterRequired() bool {
	if d.state.FormatterRequired() {
		return true
	}
	return !d.fileExists("aux")
}

// bibliographyRequired is true only when citations are pending AND the
// filtered citation lines of the current .aux differ from the backup saved
// after the last bibliography run. This avoids a redundant bibliography plus
// reformat cycle when the citation set has not actually changed.
func (d *Driver) bibliographyRequired() bool {
	if !d.state.UndefinedCitations {
		return false
	}
	aux, err := os.ReadFile(d.ws.File("aux"))
	if err != nil {
		return false
	}
	current := FilterCitations(aux)
	if err := os.WriteFile(d.ws.File("cit"), current, 0o600); err != nil {
		slog.Warn("Failed to write filtered citation file", logfields.Error(err))
		return false
	}
	backup, err := os.ReadFile(d.ws.File("cbk"))
	return ArtifactChanged(current, backup, err == nil)
}

// indexRequired is true when a raw index file exists and either no backup of
// it exists or it differs from the backup.
func (d *Driver) indexRequired() bool {
	idx, err := os.ReadFile(d.ws.File("idx"))
	if err != nil {
		return false
	}
	backup, berr := os.ReadFile(d.ws.File("ibk"))
	return ArtifactChanged(idx, backup, berr == nil)
}

// runFormatter executes one primary-formatter pass and scans its log. All
// four convergence flags are reset before the new log is read. Extracted
// fatal text, or a nonzero exit, fails the job.
func (d *Driver) runFormatter(ctx context.Context, job Job, runNumber int) error {
	tool := job.Format.Primary
	path, err := d.cfg.ToolPath(tool)
	if err != nil {
		return err
	}

	d.state.Reset()

	slog.Info("Running primary formatter",
		logfields.JobID(job.ID),
		logfields.Tool(tool),
		logfields.Run(runNumber))

	exit, err := d.run.Run(ctx, runner.Invocation{
		Tool:        tool,
		Path:        path,
		Args:        []string{"-interaction=batchmode", workspace.Basename + ".tex"},
		Dir:         d.ws.Dir(),
		EnvVars:     []string{"TEXINPUTS"},
		SearchPaths: job.SearchPaths,
	})
	if err != nil {
		d.rec.IncToolRun(tool, metrics.ResultFailed)
		return builderrors.Wrap(err, builderrors.CategoryProcessing, builderrors.SeverityFatal, "failed to run formatter")
	}

	rep, err := texlog.ScanFile(d.ws.File("log"))
	if err != nil {
		d.rec.IncToolRun(tool, metrics.ResultFailed)
		return err
	}
	d.state.ApplyLog(rep)

	if rep.FatalText != "" || exit != 0 {
		d.rec.IncToolRun(tool, metrics.ResultFailed)
		return builderrors.ProcessingError("formatter exited with errors", rep.FatalText)
	}
	d.rec.IncToolRun(tool, metrics.ResultSuccess)
	return nil
}

// runBibliography invokes the bibliography tool; on success the filtered
// citation file is backed up and a formatter rerun is forced.
func (d *Driver) runBibliography(ctx context.Context, job Job) error {
	path, err := d.cfg.ToolPath(config.ToolBibtex)
	if err != nil {
		return err
	}

	slog.Info("Running bibliography tool", logfields.JobID(job.ID), logfields.Tool(config.ToolBibtex))

	exit, err := d.run.Run(ctx, runner.Invocation{
		Tool:        config.ToolBibtex,
		Path:        path,
		Args:        []string{workspace.Basename},
		Dir:         d.ws.Dir(),
		EnvVars:     []string{"BIBINPUTS", "BSTINPUTS"},
		SearchPaths: job.SearchPaths,
	})
	if err != nil {
		d.rec.IncToolRun(config.ToolBibtex, metrics.ResultFailed)
		return builderrors.Wrap(err, builderrors.CategoryProcessing, builderrors.SeverityFatal, "failed to run bibliography tool")
	}
	if exit != 0 {
		d.rec.IncToolRun(config.ToolBibtex, metrics.ResultFailed)
		return builderrors.ProcessingError(fmt.Sprintf("bibliography tool exited with status %d", exit), "")
	}

	if err := d.backupArtifact("cit", "cbk"); err != nil {
		return err
	}
	d.state.RerunForced = true
	d.rec.IncToolRun(config.ToolBibtex, metrics.ResultSuccess)
	return nil
}

// runIndex invokes the index tool over the raw index file; on success the raw
// index is backed up and a formatter rerun is forced.
func (d *Driver) runIndex(ctx context.Context, job Job) error {
	path, err := d.cfg.ToolPath(config.ToolMakeindex)
	if err != nil {
		return err
	}

	args := append([]string{}, job.IndexOptions...)
	if job.IndexStyle != "" {
		args = append(args, "-s", job.IndexStyle)
	}
	args = append(args, "-o", workspace.Basename+".ind", workspace.Basename+".idx")

	slog.Info("Running index tool", logfields.JobID(job.ID), logfields.Tool(config.ToolMakeindex))

	exit, err := d.run.Run(ctx, runner.Invocation{
		Tool:        config.ToolMakeindex,
		Path:        path,
		Args:        args,
		Dir:         d.ws.Dir(),
		EnvVars:     []string{"INDEXSTYLE"},
		SearchPaths: job.SearchPaths,
	})
	if err != nil {
		d.rec.IncToolRun(config.ToolMakeindex, metrics.ResultFailed)
		return builderrors.Wrap(err, builderrors.CategoryProcessing, builderrors.SeverityFatal, "failed to run index tool")
	}
	if exit != 0 {
		d.rec.IncToolRun(config.ToolMakeindex, metrics.ResultFailed)
		return builderrors.ProcessingError(fmt.Sprintf("index tool exited with status %d", exit), "")
	}

	if err := d.backupArtifact("idx", "ibk"); err != nil {
		return err
	}
	d.state.RerunForced = true
	d.rec.IncToolRun(config.ToolMakeindex, metrics.ResultSuccess)
	return nil
}

// postprocess runs the resolved format-conversion chain in order; any
// postprocessor failure is terminal.
func (d *Driver) postprocess(ctx context.Context, job Job) error {
	for _, step := range job.Format.Postprocess {
		path, err := d.cfg.ToolPath(step.Tool)
		if err != nil {
			return err
		}

		var args []string
		switch step.Tool {
		case config.ToolDvips:
			args = []string{"-o", workspace.Basename + "." + step.OutputExt, workspace.Basename + "." + step.InputExt}
		default:
			args = []string{workspace.Basename + "." + step.InputExt, workspace.Basename + "." + step.OutputExt}
		}

		slog.Info("Running postprocessor", logfields.JobID(job.ID), logfields.Tool(step.Tool))

		exit, err := d.run.Run(ctx, runner.Invocation{
			Tool: step.Tool,
			Path: path,
			Args: args,
			Dir:  d.ws.Dir(),
		})
		if err != nil {
			d.rec.IncToolRun(step.Tool, metrics.ResultFailed)
			return builderrors.Wrap(err, builderrors.CategoryProcessing, builderrors.SeverityFatal, "failed to run postprocessor")
		}
		if exit != 0 {
			d.rec.IncToolRun(step.Tool, metrics.ResultFailed)
			return builderrors.ProcessingError(fmt.Sprintf("%s exited with status %d", step.Tool, exit), "")
		}
		d.rec.IncToolRun(step.Tool, metrics.ResultSuccess)
	}
	return nil
}

func (d *Driver) backupArtifact(srcExt, dstExt string) error {
	data, err := os.ReadFile(d.ws.File(srcExt))
	if err != nil {
		return builderrors.IOError(err, "failed to read artifact for backup")
	}
	if err := os.WriteFile(d.ws.File(dstExt), data, 0o600); err != nil {
		return builderrors.IOError(err, "failed to back up artifact")
	}
	return nil
}

func (d *Driver) fileExists(ext string) bool {
	_, err := os.Stat(d.ws.File(ext))
	return err == nil
}
