package texlog

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	builderrors "git.home.luguber.info/inful/texbuilder/internal/errors"
)

func TestScan_ErrorBlockExtraction(t *testing.T) {
	log := strings.Join([]string{
		"This is pdfTeX, Version 3.141592653",
		`! LaTeX Error: Missing \begin{document}.`,
		"",
		"See the LaTeX manual or LaTeX Companion for explanation.",
		"Type  H <return>  for immediate help.",
		" ...",
		"",
		"l.1 h",
		"     ello",
	}, "\n")

	rep := Scan(strings.NewReader(log))
	assert.Equal(t, "! LaTeX Error: Missing \\begin{document}.\nl.1 h", rep.FatalText)
}

func TestScan_MultipleErrorBlocks(t *testing.T) {
	log := strings.Join([]string{
		"! Undefined control sequence.",
		"l.4 \\foo",
		"some text",
		"! Missing $ inserted.",
		"<inserted text>",
		"l.9 x_",
	}, "\n")

	rep := Scan(strings.NewReader(log))
	assert.Equal(t, strings.Join([]string{
		"! Undefined control sequence.",
		"l.4 \\foo",
		"! Missing $ inserted.",
		"l.9 x_",
	}, "\n"), rep.FatalText)
}

func TestScan_LineDesignatorOnlyClosesOpenBlock(t *testing.T) {
	// An l.N line outside an error block is ordinary log text.
	rep := Scan(strings.NewReader("l.1 h\nnothing else\n"))
	assert.Empty(t, rep.FatalText)
}

func TestScan_CleanLog(t *testing.T) {
	rep := Scan(strings.NewReader("This is pdfTeX\nOutput written on doc.pdf (1 page).\n"))
	assert.Empty(t, rep.FatalText)
	assert.False(t, rep.UndefinedCitations)
	assert.False(t, rep.UndefinedReferences)
	assert.False(t, rep.LabelsChanged)
}

func TestScan_WarningDirectives(t *testing.T) {
	tests := []struct {
		name string
		log  string
		want Report
	}{
		{
			name: "undefined citation",
			log:  "LaTeX Warning: Citation `smith99' on page 1 undefined on input line 3.\n",
			want: Report{UndefinedCitations: true},
		},
		{
			name: "undefined citations summary",
			log:  "LaTeX Warning: There were undefined citations.\n",
			want: Report{UndefinedCitations: true},
		},
		{
			name: "undefined references",
			log:  "LaTeX Warning: There were undefined references.\n",
			want: Report{UndefinedReferences: true},
		},
		{
			name: "labels changed",
			log:  "LaTeX Warning: Label(s) may have changed. Rerun to get cross-references right.\n",
			want: Report{LabelsChanged: true},
		},
		{
			name: "missing toc file",
			log:  "No file doc.toc.\n",
			want: Report{UndefinedReferences: true, MissingAuxFile: true},
		},
		{
			name: "missing list of figures",
			log:  "No file doc.lof.\n",
			want: Report{UndefinedReferences: true, MissingAuxFile: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := Scan(strings.NewReader(tt.log))
			assert.Equal(t, tt.want, rep)
		})
	}
}

func TestScan_CitationsSuppressReferenceWarning(t *testing.T) {
	// A reference warning caused purely by missing citations must not
	// independently request a rerun.
	log := strings.Join([]string{
		"LaTeX Warning: Citation `smith99' on page 1 undefined on input line 3.",
		"LaTeX Warning: There were undefined references.",
	}, "\n")

	rep := Scan(strings.NewReader(log))
	assert.True(t, rep.UndefinedCitations)
	assert.False(t, rep.UndefinedReferences)
}

func TestScan_ReferenceWarningBeforeCitationWarning(t *testing.T) {
	// Order matters: a reference warning seen before any citation warning
	// still counts.
	log := strings.Join([]string{
		"LaTeX Warning: Reference `fig:one' on page 2 undefined on input line 10.",
		"LaTeX Warning: Citation `smith99' on page 3 undefined on input line 20.",
	}, "\n")

	rep := Scan(strings.NewReader(log))
	assert.True(t, rep.UndefinedCitations)
	assert.True(t, rep.UndefinedReferences)
}

func TestScanFile_Missing(t *testing.T) {
	_, err := ScanFile(filepath.Join(t.TempDir(), "doc.log"))
	require.Error(t, err)
	assert.True(t, builderrors.IsCategory(err, builderrors.CategoryIO))
	assert.Contains(t, err.Error(), "failed to open log for input")
}
