package pipeline

import "git.home.luguber.info/inful/texbuilder/internal/texlog"

// Historical status bitmask values. Only StatusUndefinedReferences and
// StatusLabelsChanged (plus the explicit forced-rerun flag) are consulted by
// the rerun logic; the remaining bits are recorded for compatibility but
// drive no transition.
const (
	StatusUndefinedReferences = 1 << iota // 1
	StatusLabelsChanged                   // 2
	StatusNewTOC                          // 4
	StatusNewCitations                    // 8
	StatusNewIndex                        // 16
)

// ConvergenceState holds the per-job rerun flags derived from log scanning
// and artifact comparison. It is reset before every primary-formatter run and
// mutated only by the driver.
type ConvergenceState struct {
	UndefinedCitations  bool
	UndefinedReferences bool
	LabelsChanged       bool
	RerunForced         bool

	Status int
}

// Reset clears all flags on entry to a primary-formatter run.
func (s *ConvergenceState) Reset() {
	*s = ConvergenceState{}
}

// ApplyLog folds a scanned log report into the state.
func (s *ConvergenceState) ApplyLog(rep texlog.Report) {
	if rep.UndefinedCitations {
		s.UndefinedCitations = true
		s.Status |= StatusNewCitations
	}
	if rep.UndefinedReferences {
		s.UndefinedReferences = true
		s.Status |= StatusUndefinedReferences
	}
	if rep.MissingAuxFile {
		s.Status |= StatusNewTOC
	}
	if rep.LabelsChanged {
		s.LabelsChanged = true
		s.Status |= StatusLabelsChanged
	}
}

// FormatterRequired reports whether another primary-formatter run is needed
// given the current flags. The missing-aux (first run) case is checked by the
// driver, which owns the filesystem.
func (s *ConvergenceState) FormatterRequired() bool {
	return s.UndefinedReferences || s.LabelsChanged || s.RerunForced
}
