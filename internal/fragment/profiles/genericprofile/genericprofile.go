// Package genericprofile implements the fallback fragment profile used when
// no structured profile matches a file's extension, or when a structured
// profile's tolerant parse fails: fixed-size line chunks, aligned on blank
// lines where possible, never splitting mid-line.
package genericprofile

import (
	"github.com/codenerd-labs/diffctx/internal/fragment"
)

const maxChunkLines = 200

func init() {
	fragment.Register(profile{})
}

// profile registers itself under the sentinel extension BuildFragments uses
// to look up the generic fallback, in addition to any otherwise-unhandled
// extension reaching it via resolveProfile returning !ok.
type profile struct{}

func (profile) Extensions() []string { return []string{".__generic__"} }

func (profile) Fragment(path string, content []byte) ([]fragment.Fragment, error) {
	lines := fragment.SplitLines(string(content))
	total := len(lines)
	if total == 0 {
		return nil, nil
	}

	var frags []fragment.Fragment
	start := 0 // 0-based
	for start < total {
		end := start + maxChunkLines
		if end > total {
			end = total
		} else {
			// Prefer to align the chunk boundary on the nearest preceding
			// blank line, without shrinking the chunk below half its max
			// size, so chunks stay reasonably uniform.
			minEnd := start + maxChunkLines/2
			for j := end; j > minEnd; j-- {
				if j-1 < total && lines[j-1] == "" {
					end = j
					break
				}
			}
		}
		frags = append(frags, fragment.NewCodeFragment(path, start+1, end, fragment.KindChunk,
			fragment.JoinRange(lines, start, end)))
		start = end
	}
	return frags, nil
}
