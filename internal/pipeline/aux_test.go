package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterCitations(t *testing.T) {
	aux := []byte(`\relax
\citation{smith99}
\@writefile{toc}{\contentsline {section}{Intro}{1}}
\bibdata{refs}
\bibstyle{plain}
\citation{jones01}
\newlabel{sec:intro}{{1}{1}}
`)

	got := FilterCitations(aux)
	assert.Equal(t, "\\citation{smith99}\n\\bibdata{refs}\n\\bibstyle{plain}\n\\citation{jones01}\n", string(got))
}

func TestFilterCitations_NoMarkers(t *testing.T) {
	assert.Empty(t, FilterCitations([]byte("\\relax\n\\newlabel{a}{{1}{1}}\n")))
}

func TestArtifactChanged(t *testing.T) {
	assert.True(t, ArtifactChanged([]byte("a"), nil, false), "missing backup counts as changed")
	assert.False(t, ArtifactChanged([]byte("a"), []byte("a"), true))
	assert.True(t, ArtifactChanged([]byte("a"), []byte("b"), true))
	assert.False(t, ArtifactChanged(nil, nil, true))
}
