package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEffectiveExtraRuns(t *testing.T) {
	assert.Equal(t, 2, effectiveExtraRuns(-1, 2), "flag left at sentinel uses config")
	assert.Equal(t, 0, effectiveExtraRuns(0, 2), "explicit zero overrides a nonzero config")
	assert.Equal(t, 3, effectiveExtraRuns(3, 2))
}

func TestEffectiveMaxRuns(t *testing.T) {
	assert.Equal(t, 10, effectiveMaxRuns(0, 10))
	assert.Equal(t, 10, effectiveMaxRuns(-1, 10))
	assert.Equal(t, 5, effectiveMaxRuns(5, 10))
}

func TestDefaultOutput(t *testing.T) {
	assert.Equal(t, "paper.pdf", defaultOutput("src/paper.tex", "pdf"))
	assert.Equal(t, "paper.pdf", defaultOutput("paper.tex", "pdf(ps)"))
	assert.Equal(t, "paper.dvi", defaultOutput("paper.tex", "dvi"))
	assert.Equal(t, "paper.ps", defaultOutput("paper.tex", "ps"))
	assert.Equal(t, "paper.pdf", defaultOutput("paper.tex", ""))
}
