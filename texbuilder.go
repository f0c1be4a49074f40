// Package texbuilder drives a multi-pass typesetting toolchain to a fixed
// point: it runs the primary formatter over a source document in an isolated
// workspace, interleaves the bibliography and index processors as the logs
// demand, and delivers the converted output once the document stabilizes.
package texbuilder

import (
	"context"
	"time"

	"git.home.luguber.info/inful/texbuilder/internal/config"
	"git.home.luguber.info/inful/texbuilder/internal/pipeline"
	"git.home.luguber.info/inful/texbuilder/internal/runner"
)

// Options control one formatting request beyond the source and destination.
type Options struct {
	// MaxRuns bounds the number of primary-formatter invocations (default 10).
	MaxRuns int
	// ExtraRuns are additional stabilization passes after convergence.
	ExtraRuns int

	IndexStyle   string
	IndexOptions []string

	// SearchPaths is an ordered include-path list exposed to the toolchain
	// via its search-path environment variables.
	SearchPaths []string

	// Tmpdir, when set, is a persistent workspace directory that is reused
	// and never destroyed by the job.
	Tmpdir string

	// Tools overrides executable paths per logical tool name (latex,
	// pdflatex, dvips, ps2pdf, bibtex, makeindex). Unset entries resolve
	// through PATH.
	Tools map[string]string
}

// Result is the terminal outcome of a job: an in-memory payload when no
// destination was given, otherwise the written path.
type Result struct {
	Bytes       []byte
	Written     string
	Format      string
	PrimaryRuns int
	// Converged is false when the run budget was exhausted before the
	// document stabilized; the output is then best-effort.
	Converged bool
	Duration  time.Duration
}

// Run formats source into the requested output format. format may be empty
// when it can be inferred from output's extension; output may be empty to
// receive the payload in Result.Bytes, a destination path, or (legacy
// shorthand) a bare format name.
func Run(ctx context.Context, source []byte, format, output string, opts Options) (*Result, error) {
	cfg := config.Default()
	for name, path := range opts.Tools {
		if path != "" {
			cfg.Tools[name] = path
		}
	}

	res, err := pipeline.RunJob(ctx, cfg, &runner.ExecRunner{}, nil, pipeline.Request{
		Source:       source,
		Format:       format,
		Output:       output,
		MaxRuns:      opts.MaxRuns,
		ExtraRuns:    opts.ExtraRuns,
		IndexStyle:   opts.IndexStyle,
		IndexOptions: opts.IndexOptions,
		SearchPaths:  opts.SearchPaths,
		Workdir:      opts.Tmpdir,
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		Bytes:       res.Bytes,
		Written:     res.Written,
		Format:      res.Format,
		PrimaryRuns: res.PrimaryRuns,
		Converged:   res.Converged,
		Duration:    res.Duration,
	}, nil
}
