package fragment

import (
	"sort"
	"strings"

	"github.com/codenerd-labs/diffctx/internal/identifier"
	"github.com/codenerd-labs/diffctx/internal/tokencount"
)

// NewCodeFragment builds a Fragment for a code-structured span (function,
// class, chunk, block), attaching code-profile identifiers and a token
// count derived from content.
func NewCodeFragment(path string, start, end int, kind Kind, content string) Fragment {
	return Fragment{
		Id:          Id{Path: path, StartLine: start, EndLine: end},
		Kind:        kind,
		Content:     content,
		Identifiers: identifier.Extract(content, identifier.ProfileCode),
		TokenCount:  tokencount.Estimate(content),
	}
}

// NewProseFragment builds a Fragment for a prose-structured span (section,
// config), attaching prose-profile identifiers.
func NewProseFragment(path string, start, end int, kind Kind, content string) Fragment {
	return Fragment{
		Id:          Id{Path: path, StartLine: start, EndLine: end},
		Kind:        kind,
		Content:     content,
		Identifiers: identifier.Extract(content, identifier.ProfileProse),
		TokenCount:  tokencount.Estimate(content),
	}
}

// SplitLines splits content preserving the property that joining with "\n"
// reconstructs the original modulo a single trailing newline, so a
// fragment's content line count always equals its line-range span.
func SplitLines(content string) []string {
	if content == "" {
		return nil
	}
	trimmed := strings.HasSuffix(content, "\n")
	s := content
	if trimmed {
		s = s[:len(s)-1]
	}
	return strings.Split(s, "\n")
}

// JoinRange joins lines[startIdx:endIdx] (0-based, end-exclusive) back into
// a '\n'-terminated block, matching how the fragment builder slices a file's
// lines for a given 1-based inclusive [start,end] range.
func JoinRange(lines []string, startIdx, endIdx int) string {
	if startIdx < 0 {
		startIdx = 0
	}
	if endIdx > len(lines) {
		endIdx = len(lines)
	}
	if startIdx >= endIdx {
		return ""
	}
	return strings.Join(lines[startIdx:endIdx], "\n") + "\n"
}

// FillGaps emits KindChunk fragments covering the line ranges between and
// before a sorted list of occupied [start,end] (1-based inclusive) ranges,
// up to totalLines.
func FillGaps(path string, lines []string, occupied [][2]int, totalLines int) []Fragment {
	sort.Slice(occupied, func(i, j int) bool { return occupied[i][0] < occupied[j][0] })
	var gaps []Fragment
	cursor := 1
	for _, r := range occupied {
		if r[0] > cursor {
			gaps = append(gaps, NewCodeFragment(path, cursor, r[0]-1, KindChunk, JoinRange(lines, cursor-1, r[0]-1)))
		}
		if r[1]+1 > cursor {
			cursor = r[1] + 1
		}
	}
	if cursor <= totalLines {
		gaps = append(gaps, NewCodeFragment(path, cursor, totalLines, KindChunk, JoinRange(lines, cursor-1, totalLines)))
	}
	return gaps
}
