// Package texlog parses the diagnostic log written by a primary formatter
// run, extracting fatal-error blocks and the fixed set of warning directives
// that signal another pass is needed.
package texlog

import (
	"bufio"
	"io"
	"os"
	"regexp"
	"strings"

	builderrors "git.home.luguber.info/inful/texbuilder/internal/errors"
)

// Report is the outcome of scanning one log file.
type Report struct {
	// FatalText holds extracted error blocks ("! ..." lines and their
	// closing "l.N ..." designators), joined by newlines. Empty when the
	// run produced no fatal diagnostics.
	FatalText string

	UndefinedCitations  bool
	UndefinedReferences bool
	LabelsChanged       bool

	// MissingAuxFile records a "No file <base>.toc/.lof/.lot" line, which
	// also implies undefined references.
	MissingAuxFile bool
}

var (
	reErrorLine      = regexp.MustCompile(`^!`)
	reLineDesignator = regexp.MustCompile(`^l\.\d`)
	reCiteUndefined  = regexp.MustCompile(`Warning: (Citation .* undefined|There were undefined citations)`)
	reRefsUndefined  = regexp.MustCompile(`Warning: (Reference .* undefined|There were undefined references)`)
	reMissingAux     = regexp.MustCompile(`^No file .*\.(toc|lof|lot)\.`)
	reLabelsChanged  = regexp.MustCompile(`Warning: Label\(s\) may have changed`)
)

// ScanFile scans the log file written by a just-completed formatter run.
func ScanFile(path string) (Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return Report{}, builderrors.IOError(err, "failed to open log for input")
	}
	defer f.Close()
	return Scan(f), nil
}

// Scan reads log text line by line, in order. A "!" line opens (or extends)
// an error block; the next "l.<digit>" line closes it. Warning directives
// update the rerun flags, with citation warnings taking precedence over the
// undefined-references warning they would otherwise cause.
func Scan(r io.Reader) Report {
	var rep Report
	var fatal []string
	inErrorBlock := false

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case reErrorLine.MatchString(line):
			fatal = append(fatal, line)
			inErrorBlock = true
		case inErrorBlock && reLineDesignator.MatchString(line):
			fatal = append(fatal, line)
			inErrorBlock = false
		case reCiteUndefined.MatchString(line):
			rep.UndefinedCitations = true
		case reRefsUndefined.MatchString(line):
			// A reference warning caused purely by missing citations does
			// not independently trigger a rerun.
			if !rep.UndefinedCitations {
				rep.UndefinedReferences = true
			}
		case reMissingAux.MatchString(line):
			rep.MissingAuxFile = true
			rep.UndefinedReferences = true
		case reLabelsChanged.MatchString(line):
			rep.LabelsChanged = true
		}
	}

	rep.FatalText = strings.Join(fatal, "\n")
	return rep
}
