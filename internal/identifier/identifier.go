// Package identifier tokenizes text blobs into normalized identifier-like
// terms, with separate profiles for source code and prose. It is the
// leaf-most component of the diff-context pipeline: the fragment builder,
// the diff concept extractor, and the graph builder all sit on top of it.
//
// Segmentation (camelCase/snake_case boundary detection, casefold,
// stop-word filtering) is language-agnostic and Unicode-aware; boundaries
// follow letter/number categories, never byte offsets.
package identifier

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Profile selects the tokenization rules applied to a text blob.
type Profile int

const (
	// ProfileCode splits on non-alphanumeric boundaries, segments
	// camelCase/snake_case compounds, drops tokens shorter than 2 runes,
	// and casefolds everything.
	ProfileCode Profile = iota
	// ProfileProse splits on whitespace/punctuation but keeps internal
	// punctuation (hyphens, dots) for headings and filenames, and keeps
	// single-character alphabetic tokens.
	ProfileProse
)

const maxTokenLen = 128

// stopWords is a small, explicit set of language keywords that carry no
// identifying information on their own.
var stopWords = map[string]struct{}{
	"return": {}, "class": {}, "function": {}, "const": {}, "let": {},
	"var": {}, "public": {}, "private": {}, "protected": {}, "static": {},
	"if": {}, "else": {}, "for": {}, "while": {}, "do": {}, "switch": {},
	"case": {}, "break": {}, "continue": {}, "import": {}, "export": {},
	"package": {}, "func": {}, "def": {}, "interface": {}, "struct": {},
	"type": {}, "new": {}, "this": {}, "self": {}, "null": {}, "nil": {},
	"true": {}, "false": {}, "void": {}, "async": {}, "await": {},
	"try": {}, "catch": {}, "finally": {}, "throw": {}, "throws": {},
	"extends": {}, "implements": {}, "enum": {}, "namespace": {},
}

// Extract returns the distinct normalized terms found in text under the
// given profile.
func Extract(text string, profile Profile) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range ExtractList(text, profile) {
		set[tok] = struct{}{}
	}
	return set
}

// ExtractList returns the normalized terms found in text, preserving
// frequency (i.e. duplicates are kept).
func ExtractList(text string, profile Profile) []string {
	text = stripControl(text)
	raw := splitRaw(text, profile)

	out := make([]string, 0, len(raw))
	for _, tok := range raw {
		switch profile {
		case ProfileCode:
			for _, seg := range segmentCode(tok) {
				seg = truncate(strings.ToLower(seg))
				if utf8.RuneCountInString(seg) < 2 {
					continue
				}
				if _, stop := stopWords[seg]; stop {
					continue
				}
				out = append(out, seg)
			}
		case ProfileProse:
			seg := truncate(tok)
			if seg == "" {
				continue
			}
			runes := []rune(seg)
			if len(runes) == 1 && !unicode.IsLetter(runes[0]) {
				continue
			}
			out = append(out, strings.ToLower(seg))
		}
	}
	return out
}

// stripControl removes BOM, null bytes, and C0 control characters other
// than newline and tab before tokenization, so they cannot crash or corrupt downstream segmentation.
func stripControl(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\uFEFF' || r == 0x00 {
			continue
		}
		if r < 0x20 && r != '\n' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// splitRaw performs the first-pass split: on any non-alphanumeric rune for
// code (underscores split snake_case compounds here), on whitespace/
// punctuation (except internal hyphens/dots/underscores) for prose.
func splitRaw(text string, profile Profile) []string {
	var tokens []string
	var cur strings.Builder
	runes := []rune(text)
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for i, r := range runes {
		switch profile {
		case ProfileCode:
			if isIdentRune(r) {
				cur.WriteRune(r)
			} else {
				flush()
			}
		case ProfileProse:
			if unicode.IsSpace(r) {
				flush()
				continue
			}
			if isProseJoiner(r) && cur.Len() > 0 && i+1 < len(runes) && isWordRune(runes[i+1]) {
				cur.WriteRune(r)
				continue
			}
			if isWordRune(r) {
				cur.WriteRune(r)
			} else {
				flush()
			}
		}
	}
	flush()
	return tokens
}

func isIdentRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isProseJoiner(r rune) bool {
	return r == '-' || r == '.' || r == '_' || r == '/'
}

// segmentCode splits a raw identifier token on camelCase and digit/letter
// boundaries, in addition to the snake_case boundaries splitRaw already
// applied via underscore.
func segmentCode(tok string) []string {
	runes := []rune(tok)
	if len(runes) == 0 {
		return nil
	}
	var segs []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			segs = append(segs, string(cur))
			cur = nil
		}
	}
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if i > 0 {
			prev := runes[i-1]
			// lower/digit -> Upper boundary: fooBar -> foo, Bar
			if unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev)) {
				flush()
			} else if unicode.IsUpper(r) && i+1 < len(runes) && unicode.IsLower(runes[i+1]) &&
				unicode.IsUpper(prev) {
				// ABCFoo -> ABC, Foo
				flush()
			} else if (unicode.IsDigit(r) && unicode.IsLetter(prev)) ||
				(unicode.IsLetter(r) && unicode.IsDigit(prev)) {
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return segs
}

func truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= maxTokenLen {
		return s
	}
	return string(runes[:maxTokenLen])
}
