package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/texbuilder/internal/config"
	builderrors "git.home.luguber.info/inful/texbuilder/internal/errors"
)

func TestResolveFormat(t *testing.T) {
	tests := []struct {
		name        string
		explicit    string
		output      string
		wantName    string
		wantPrimary string
		wantChain   int
	}{
		{name: "explicit pdf", explicit: "pdf", wantName: "pdf", wantPrimary: config.ToolPDFLatex, wantChain: 0},
		{name: "explicit dvi", explicit: "dvi", wantName: "dvi", wantPrimary: config.ToolLatex, wantChain: 0},
		{name: "inferred from pdf extension", output: "example.pdf", wantName: "pdf", wantPrimary: config.ToolPDFLatex, wantChain: 0},
		{name: "inferred from ps extension", output: "example.ps", wantName: "ps", wantPrimary: config.ToolLatex, wantChain: 1},
		{name: "bare format name output", output: "ps", wantName: "ps", wantPrimary: config.ToolLatex, wantChain: 1},
		{name: "pdf via postscript", explicit: "pdf(ps)", wantName: "pdf(ps)", wantPrimary: config.ToolLatex, wantChain: 2},
		{name: "pdf via dvi", explicit: "pdf(dvi)", wantName: "pdf(dvi)", wantPrimary: config.ToolLatex, wantChain: 2},
		{name: "explicit wins over extension", explicit: "dvi", output: "example.pdf", wantName: "dvi", wantPrimary: config.ToolLatex, wantChain: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ResolveFormat(tt.explicit, tt.output)
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, f.Name)
			assert.Equal(t, tt.wantPrimary, f.Primary)
			assert.Len(t, f.Postprocess, tt.wantChain)
		})
	}
}

func TestResolveFormat_PostscriptChain(t *testing.T) {
	f, err := ResolveFormat("", "example.ps")
	require.NoError(t, err)
	require.Len(t, f.Postprocess, 1)
	assert.Equal(t, config.ToolDvips, f.Postprocess[0].Tool)
	assert.Equal(t, "ps", f.OutputExt)
}

func TestResolveFormat_CompositeChainOrder(t *testing.T) {
	f, err := ResolveFormat("pdf(ps)", "")
	require.NoError(t, err)
	require.Len(t, f.Postprocess, 2)
	assert.Equal(t, config.ToolDvips, f.Postprocess[0].Tool)
	assert.Equal(t, config.ToolPs2pdf, f.Postprocess[1].Tool)
	assert.Equal(t, "pdf", f.OutputExt)
}

func TestResolveFormat_Invalid(t *testing.T) {
	_, err := ResolveFormat("nonsense", "")
	require.Error(t, err)
	assert.True(t, builderrors.IsCategory(err, builderrors.CategoryFormat))
	assert.Contains(t, err.Error(), "nonsense")
}

func TestResolveFormat_Uninferrable(t *testing.T) {
	_, err := ResolveFormat("", "out.xyz")
	require.Error(t, err)
	assert.True(t, builderrors.IsCategory(err, builderrors.CategoryFormat))

	_, err = ResolveFormat("", "")
	require.Error(t, err)
	assert.True(t, builderrors.IsCategory(err, builderrors.CategoryFormat))
}

func TestIsKnownFormat(t *testing.T) {
	assert.True(t, IsKnownFormat("pdf"))
	assert.True(t, IsKnownFormat("pdf(dvi)"))
	assert.False(t, IsKnownFormat("nonsense"))
}
