package pipeline

import (
	"bufio"
	"bytes"
)

// citationPrefixes are the .aux file entries that determine whether the
// bibliography tool has new work: the cited keys plus the database and style
// declarations.
var citationPrefixes = [][]byte{
	[]byte(`\citation`),
	[]byte(`\bibdata`),
	[]byte(`\bibstyle`),
}

// FilterCitations extracts the citation-marker lines from an .aux file, in
// order, one per line with a trailing newline. The result is what gets
// compared against the backup saved after the last bibliography run.
func FilterCitations(aux []byte) []byte {
	var out bytes.Buffer
	scanner := bufio.NewScanner(bytes.NewReader(aux))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		for _, prefix := range citationPrefixes {
			if bytes.HasPrefix(line, prefix) {
				out.Write(line)
				out.WriteByte('\n')
				break
			}
		}
	}
	return out.Bytes()
}

// ArtifactChanged is the content-equality memoization used to decide whether
// an auxiliary tool needs to run again: absence of a backup counts as
// changed, otherwise the comparison is byte-for-byte.
func ArtifactChanged(current, backup []byte, backupExists bool) bool {
	if !backupExists {
		return true
	}
	return !bytes.Equal(current, backup)
}
