// Package serialize renders a selector.Result (plus the fragments it
// selected) into the diff-context tree wire format, in JSON, YAML, or a
// human-readable text form: a format-string switch over three emitters
// sharing one intermediate tree struct.
package serialize

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/codenerd-labs/diffctx/internal/fragment"
	"github.com/codenerd-labs/diffctx/internal/selector"
)

// TreeFragment is one fragment entry in a DiffContextTree.
type TreeFragment struct {
	Path    string `json:"path" yaml:"path"`
	Lines   string `json:"lines" yaml:"lines"`
	Kind    string `json:"kind" yaml:"kind"`
	Content string `json:"content,omitempty" yaml:"content,omitempty"`
}

// Tree is the DiffContextTree output format.
type Tree struct {
	Type            string         `json:"type" yaml:"type"`
	FragmentCount   int            `json:"fragment_count" yaml:"fragment_count"`
	UsedTokens      int            `json:"used_tokens" yaml:"used_tokens"`
	SelectionReason string         `json:"selection_reason" yaml:"selection_reason"`
	Fragments       []TreeFragment `json:"fragments" yaml:"fragments"`
}

// BuildTree converts a selector.Result into a Tree, sorted ascending by
// (path, start_line), omitting fragment content when noContent is set.
func BuildTree(result selector.Result, noContent bool) Tree {
	selected := append([]fragment.Fragment(nil), result.Selected...)
	fragment.SortByID(selected)

	tree := Tree{
		Type:            "diff_context",
		FragmentCount:   len(selected),
		UsedTokens:      result.UsedTokens,
		SelectionReason: string(result.Reason),
		Fragments:       make([]TreeFragment, 0, len(selected)),
	}
	for _, f := range selected {
		tf := TreeFragment{
			Path:  f.Id.Path,
			Lines: fmt.Sprintf("%d-%d", f.Id.StartLine, f.Id.EndLine),
			Kind:  string(f.Kind),
		}
		if !noContent {
			tf.Content = f.Content
		}
		tree.Fragments = append(tree.Fragments, tf)
	}
	return tree
}

// Format renders tree in the named format: "json", "yaml"/"yml", or
// "text"/"txt".
func Format(tree Tree, format string) (string, error) {
	switch strings.ToLower(format) {
	case "json", "":
		return formatJSON(tree)
	case "yaml", "yml":
		return formatYAML(tree)
	case "text", "txt":
		return formatText(tree), nil
	default:
		return "", fmt.Errorf("serialize: unsupported format %q", format)
	}
}

func formatJSON(tree Tree) (string, error) {
	b, err := json.MarshalIndent(tree, "", "  ")
	if err != nil {
		return "", fmt.Errorf("serialize: marshal json: %w", err)
	}
	return string(b), nil
}

func formatYAML(tree Tree) (string, error) {
	b, err := yaml.Marshal(tree)
	if err != nil {
		return "", fmt.Errorf("serialize: marshal yaml: %w", err)
	}
	return string(b), nil
}

func formatText(tree Tree) string {
	var b strings.Builder
	fmt.Fprintf(&b, "diff context: %d fragment(s), %d tokens used, reason=%s\n",
		tree.FragmentCount, tree.UsedTokens, tree.SelectionReason)
	if tree.FragmentCount == 0 {
		return b.String()
	}
	frags := append([]TreeFragment(nil), tree.Fragments...)
	sort.Slice(frags, func(i, j int) bool {
		if frags[i].Path != frags[j].Path {
			return frags[i].Path < frags[j].Path
		}
		return frags[i].Lines < frags[j].Lines
	})
	for _, f := range frags {
		fmt.Fprintf(&b, "\n--- %s:%s (%s) ---\n", f.Path, f.Lines, f.Kind)
		if f.Content != "" {
			b.WriteString(f.Content)
			if !strings.HasSuffix(f.Content, "\n") {
				b.WriteString("\n")
			}
		}
	}
	return b.String()
}
