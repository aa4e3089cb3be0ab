// Package diffconcepts derives the set of terms a diff is "about" from its
// raw unified-diff text: the coverage targets the selector's objective is
// built from. It consumes the adapter's plain diff text rather than
// structured hunks, since only the +/- prefix of each line matters here.
package diffconcepts

import (
	"strings"

	"github.com/codenerd-labs/diffctx/internal/identifier"
)

const minConceptLen = 3

// Concepts extracts the flat concept set from a unified diff's text: every
// code-profile identifier of length >= 3 appearing on an added or removed
// line. Weighting happens downstream in the utility function, not here.
func Concepts(diffText string) map[string]struct{} {
	concepts := make(map[string]struct{})
	for _, line := range strings.Split(diffText, "\n") {
		if !isChangedLine(line) {
			continue
		}
		body := line[1:]
		for term := range identifier.Extract(body, identifier.ProfileCode) {
			if len([]rune(term)) >= minConceptLen {
				concepts[term] = struct{}{}
			}
		}
	}
	return concepts
}

// isChangedLine reports whether line is an added (+) or removed (-) line in
// a unified diff, excluding the file-header lines "+++"/"---".
func isChangedLine(line string) bool {
	if strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---") {
		return false
	}
	if strings.HasPrefix(line, "+") || strings.HasPrefix(line, "-") {
		return true
	}
	return false
}
