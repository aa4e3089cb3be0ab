package fragment

import (
	"strings"
)

// LanguageProfile fragments a single file's content into Fragments. Each
// profile owns one parsing strategy (structured-code, line-structured
// config, heading-structured prose, or a generic line chunker).
type LanguageProfile interface {
	// Extensions lists the file extensions (including the leading dot) this
	// profile handles.
	Extensions() []string
	// Fragment parses content and returns its fragments. A non-nil error
	// signals a parse failure the caller should treat as internal
	// (ParseError) and fall back to the generic chunk profile.
	Fragment(path string, content []byte) ([]Fragment, error)
}

// ShebangSniffer is implemented by profiles that can additionally recognize
// extension-less scripts via a shebang line.
type ShebangSniffer interface {
	MatchesShebang(firstLine string) bool
}

var registry = map[string]LanguageProfile{}
var shebangProfiles []LanguageProfile

// Register adds a profile to the extension/shebang dispatch table. Called
// from each profiles/* package's init().
func Register(p LanguageProfile) {
	for _, ext := range p.Extensions() {
		registry[strings.ToLower(ext)] = p
	}
	if _, ok := p.(ShebangSniffer); ok {
		shebangProfiles = append(shebangProfiles, p)
	}
}

// resolveProfile finds the profile responsible for path, consulting the
// shebang sniffers when the extension isn't registered.
func resolveProfile(path string, content []byte) (LanguageProfile, bool) {
	ext := extOf(path)
	if p, ok := registry[ext]; ok {
		return p, true
	}
	firstLine := firstLineOf(content)
	if strings.HasPrefix(firstLine, "#!") {
		for _, p := range shebangProfiles {
			if s, ok := p.(ShebangSniffer); ok && s.MatchesShebang(firstLine) {
				return p, true
			}
		}
	}
	return nil, false
}

func extOf(path string) string {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(path[i:])
}

func firstLineOf(content []byte) string {
	if i := strings.IndexByte(string(content), '\n'); i >= 0 {
		return string(content[:i])
	}
	return string(content)
}
