// Package headingprofile implements the heading-structured fragment profile
// for Markdown and reStructuredText: one section Fragment per heading,
// spanning through the last line before the next heading of equal or
// lesser depth. A direct text scan suffices here -- the profile only needs
// heading line numbers and depths, not a rendering tree.
package headingprofile

import (
	"strings"

	"github.com/codenerd-labs/diffctx/internal/fragment"
)

func init() {
	fragment.Register(mdProfile{})
	fragment.Register(rstProfile{})
}

type heading struct {
	line  int
	depth int
}

type mdProfile struct{}

func (mdProfile) Extensions() []string { return []string{".md", ".markdown"} }

func (mdProfile) Fragment(path string, content []byte) ([]fragment.Fragment, error) {
	lines := fragment.SplitLines(string(content))
	var headings []heading
	inFence := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		depth := 0
		for depth < len(line) && depth < 6 && line[depth] == '#' {
			depth++
		}
		if depth > 0 && depth < len(line) && (line[depth] == ' ' || line[depth] == '\t') {
			headings = append(headings, heading{line: i + 1, depth: depth})
		}
	}
	return buildSections(path, lines, headings), nil
}

type rstProfile struct{}

func (rstProfile) Extensions() []string { return []string{".rst"} }

// underlineChars are tried in decreasing canonical RST heading weight; the
// first character encountered establishes depth 1, the next distinct
// underline character encountered establishes depth 2, and so on.
var underlineChars = "=-~^\"'`#*+.:_"

func (rstProfile) Fragment(path string, content []byte) ([]fragment.Fragment, error) {
	lines := fragment.SplitLines(string(content))
	var headings []heading
	depthOf := map[byte]int{}
	nextDepth := 1

	for i := 1; i < len(lines); i++ {
		under := strings.TrimRight(lines[i], " \t")
		title := lines[i-1]
		if len(under) < 3 || title == "" {
			continue
		}
		ch := under[0]
		if !isUnderlineRune(ch) || !allSameRune(under, ch) {
			continue
		}
		if len(under) < len([]rune(strings.TrimSpace(title))) {
			continue
		}
		d, ok := depthOf[ch]
		if !ok {
			d = nextDepth
			depthOf[ch] = d
			nextDepth++
		}
		headings = append(headings, heading{line: i, depth: d}) // title line, 1-based via i (i-1+1)
	}
	return buildSections(path, lines, headings), nil
}

func isUnderlineRune(b byte) bool {
	return strings.IndexByte(underlineChars, b) >= 0
}

func allSameRune(s string, b byte) bool {
	for i := 0; i < len(s); i++ {
		if s[i] != b {
			return false
		}
	}
	return true
}

// buildSections turns a flat heading list into nested section Fragments:
// each heading spans from its own line through the line before the next
// heading of equal-or-lesser depth.
func buildSections(path string, lines []string, headings []heading) []fragment.Fragment {
	totalLines := len(lines)
	if totalLines == 0 || len(headings) == 0 {
		if totalLines == 0 {
			return nil
		}
		return []fragment.Fragment{fragment.NewProseFragment(path, 1, totalLines, fragment.KindSection,
			fragment.JoinRange(lines, 0, totalLines))}
	}

	var frags []fragment.Fragment
	for i, h := range headings {
		end := totalLines
		for j := i + 1; j < len(headings); j++ {
			if headings[j].depth <= h.depth {
				end = headings[j].line - 1
				break
			}
		}
		frags = append(frags, fragment.NewProseFragment(path, h.line, end, fragment.KindSection,
			fragment.JoinRange(lines, h.line-1, end)))
	}
	return frags
}
