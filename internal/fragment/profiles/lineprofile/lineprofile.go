// Package lineprofile implements the line-structured fragment profile for
// YAML/TOML/INI-like config files: one config Fragment per top-level key or
// section, with nested tables emitted as child Fragments strictly inside.
//
// YAML goes through gopkg.in/yaml.v3's low-level yaml.Node, which retains
// per-key line numbers. TOML/INI use a small section scanner, since only
// header lines, top-level key lines and header nesting depth matter for
// span boundaries.
package lineprofile

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/codenerd-labs/diffctx/internal/fragment"
)

func init() {
	fragment.Register(yamlProfile{})
	fragment.Register(iniProfile{})
}

type yamlProfile struct{}

func (yamlProfile) Extensions() []string { return []string{".yaml", ".yml"} }

func (yamlProfile) Fragment(path string, content []byte) ([]fragment.Fragment, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, fragment.ErrParseFailed
	}
	lines := fragment.SplitLines(string(content))
	totalLines := len(lines)
	if totalLines == 0 {
		return nil, nil
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		// Not a key/value mapping at the top level; nothing to split on.
		return []fragment.Fragment{fragment.NewProseFragment(path, 1, totalLines, fragment.KindConfig,
			fragment.JoinRange(lines, 0, totalLines))}, nil
	}

	var frags []fragment.Fragment
	keys := root.Content // alternating key, value nodes
	for i := 0; i+1 < len(keys); i += 2 {
		keyNode, valNode := keys[i], keys[i+1]
		start := keyNode.Line
		end := totalLines
		if i+2 < len(keys) {
			end = keys[i+2].Line - 1
		}
		frags = append(frags, fragment.NewProseFragment(path, start, end, fragment.KindConfig,
			fragment.JoinRange(lines, start-1, end)))

		// Nested mapping table: emit a child config fragment strictly inside.
		if valNode.Kind == yaml.MappingNode && len(valNode.Content) > 0 {
			nestedStart := valNode.Content[0].Line
			if nestedStart > start && nestedStart <= end {
				frags = append(frags, fragment.NewProseFragment(path, nestedStart, end, fragment.KindConfig,
					fragment.JoinRange(lines, nestedStart-1, end)))
			}
		}
	}
	return frags, nil
}

// iniProfile handles TOML and INI-like files via a hand-rolled section
// scanner: a top-level "[section]" or "key = value" line starts a new
// config Fragment running until the next top-level marker; a dotted
// "[section.sub]" header becomes a nested child Fragment inside the span of
// the shallower header before it.
type iniProfile struct{}

func (iniProfile) Extensions() []string { return []string{".toml", ".ini", ".cfg"} }

func (iniProfile) Fragment(path string, content []byte) ([]fragment.Fragment, error) {
	lines := fragment.SplitLines(string(content))
	totalLines := len(lines)
	if totalLines == 0 {
		return nil, nil
	}

	type marker struct {
		line  int
		depth int // number of dots in a [a.b.c] header; 0 for bare key=value
	}
	var markers []marker
	seenHeader := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]"):
			seenHeader = true
			name := strings.Trim(trimmed, "[]")
			markers = append(markers, marker{line: i + 1, depth: strings.Count(name, ".")})
		case trimmed != "" && !strings.HasPrefix(trimmed, "#") && !strings.HasPrefix(trimmed, ";") &&
			strings.Contains(trimmed, "="):
			if !seenHeader {
				markers = append(markers, marker{line: i + 1, depth: 0})
			}
		}
	}
	if len(markers) == 0 {
		return []fragment.Fragment{fragment.NewProseFragment(path, 1, totalLines, fragment.KindConfig,
			fragment.JoinRange(lines, 0, totalLines))}, nil
	}

	// endFor finds the line before the next marker at depth <= m's depth,
	// so a parent section's span runs through all of its nested children.
	endFor := func(i int) int {
		for j := i + 1; j < len(markers); j++ {
			if markers[j].depth <= markers[i].depth {
				return markers[j].line - 1
			}
		}
		return totalLines
	}

	var frags []fragment.Fragment
	for i, m := range markers {
		frags = append(frags, fragment.NewProseFragment(path, m.line, endFor(i), fragment.KindConfig,
			fragment.JoinRange(lines, m.line-1, endFor(i))))
	}
	return frags, nil
}
