package pipeline

import (
	"fmt"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/texbuilder/internal/config"
	builderrors "git.home.luguber.info/inful/texbuilder/internal/errors"
)

// PostprocessStep is one format-conversion invocation appended after the
// primary loop stabilizes.
type PostprocessStep struct {
	Tool      string // logical tool name (dvips, ps2pdf)
	InputExt  string
	OutputExt string
}

// Format is a resolved output format: which primary formatter to run, the
// final artifact extension, and the ordered postprocessing chain.
type Format struct {
	Name        string
	Primary     string // config.ToolLatex or config.ToolPDFLatex
	OutputExt   string
	Postprocess []PostprocessStep
}

var (
	stepDvips  = PostprocessStep{Tool: config.ToolDvips, InputExt: "dvi", OutputExt: "ps"}
	stepPs2pdf = PostprocessStep{Tool: config.ToolPs2pdf, InputExt: "ps", OutputExt: "pdf"}
)

var knownFormats = map[string]Format{
	"dvi": {Name: "dvi", Primary: config.ToolLatex, OutputExt: "dvi"},
	"ps":  {Name: "ps", Primary: config.ToolLatex, OutputExt: "ps", Postprocess: []PostprocessStep{stepDvips}},
	"pdf": {Name: "pdf", Primary: config.ToolPDFLatex, OutputExt: "pdf"},
	// Composite forms route through the dvi-class formatter. The configured
	// tool set has no direct dvi-to-pdf converter, so both composites share
	// the dvips+ps2pdf chain.
	"pdf(ps)":  {Name: "pdf(ps)", Primary: config.ToolLatex, OutputExt: "pdf", Postprocess: []PostprocessStep{stepDvips, stepPs2pdf}},
	"pdf(dvi)": {Name: "pdf(dvi)", Primary: config.ToolLatex, OutputExt: "pdf", Postprocess: []PostprocessStep{stepDvips, stepPs2pdf}},
}

// IsKnownFormat reports whether name is a recognized bare format name. Used
// to detect the legacy shorthand where the output argument is a format, not a
// destination path.
func IsKnownFormat(name string) bool {
	_, ok := knownFormats[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// ResolveFormat determines the output format before the loop starts: the
// explicit format option wins, else the output filename's extension, else
// (legacy shorthand) the output argument itself is treated as a bare format
// name.
func ResolveFormat(explicit, output string) (Format, error) {
	name := strings.ToLower(strings.TrimSpace(explicit))

	if name == "" && output != "" {
		if ext := strings.TrimPrefix(filepath.Ext(output), "."); ext != "" {
			if f, ok := knownFormats[strings.ToLower(ext)]; ok {
				return f, nil
			}
		}
		// Legacy shorthand: the output argument is a bare format name.
		if f, ok := knownFormats[strings.ToLower(output)]; ok {
			return f, nil
		}
		return Format{}, builderrors.FormatError(fmt.Sprintf("cannot infer output format from %q", output))
	}

	if name == "" {
		return Format{}, builderrors.FormatError("no output format specified and none could be inferred")
	}
	if f, ok := knownFormats[name]; ok {
		return f, nil
	}
	return Format{}, builderrors.FormatError(fmt.Sprintf("invalid output format %q", name))
}
