// Package walk enumerates candidate neighbor files for the fragment
// universe and reads file content with binary detection, subject to a
// built-in ignore list merged with the project's `.diffctxignore` file.
package walk

import (
	"bufio"
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// IgnoreFileName is the project-level ignore file this package reads, one
// glob pattern per line, "#"-prefixed comments and blank lines skipped.
const IgnoreFileName = ".diffctxignore"

// defaultIgnorePatterns lists directories never worth treating as
// source-code neighbors, plus diffctx's own output directory and ignore
// file.
var defaultIgnorePatterns = []string{
	IgnoreFileName,
	".git",
	"node_modules",
	"vendor",
	"dist",
	"build",
	".next",
	"target",
	"bin",
	"obj",
	".terraform",
	".venv",
	".cache",
	".diffctx",
}

// Rules holds the compiled ignore patterns for one walk.
type Rules struct {
	patterns []string
}

// LoadRules reads root's IgnoreFileName (if present) and merges it with
// defaultIgnorePatterns.
func LoadRules(root string) (*Rules, error) {
	patterns := append([]string(nil), defaultIgnorePatterns...)

	f, err := os.Open(filepath.Join(root, IgnoreFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return &Rules{patterns: patterns}, nil
		}
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, normalizePattern(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return &Rules{patterns: patterns}, nil
}

func normalizePattern(p string) string {
	p = strings.TrimSpace(p)
	p = strings.TrimSuffix(p, "/")
	p = strings.TrimSuffix(p, "\\")
	return filepath.ToSlash(p)
}

// Matches reports whether rel (forward-slash, root-relative) should be
// ignored.
func (r *Rules) Matches(rel string) bool {
	rel = filepath.ToSlash(rel)
	name := path.Base(rel)
	for _, p := range r.patterns {
		if p == "" {
			continue
		}
		if strings.ContainsAny(p, "*?[]") {
			if ok, _ := path.Match(p, rel); ok {
				return true
			}
			if strings.HasSuffix(p, "/*") {
				prefix := strings.TrimSuffix(p, "/*")
				if strings.HasPrefix(rel, prefix+"/") {
					return true
				}
			}
			continue
		}
		if name == p || rel == p || strings.HasPrefix(rel, p+"/") {
			return true
		}
	}
	return false
}

// EnumerateNeighbors walks root and returns every regular file's
// root-relative, forward-slash path not excluded by rules, excluding the
// paths already in changedPaths (callers already have fragments for
// those).
func EnumerateNeighbors(ctx context.Context, root string, changedPaths []string, rules *Rules) ([]string, error) {
	changed := make(map[string]struct{}, len(changedPaths))
	for _, p := range changedPaths {
		changed[filepath.ToSlash(p)] = struct{}{}
	}

	var neighbors []string
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rules.Matches(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if rules.Matches(rel) {
			return nil
		}
		if _, isChanged := changed[rel]; isChanged {
			return nil
		}
		neighbors = append(neighbors, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return neighbors, nil
}

// ReadFile decodes path as UTF-8, reporting encodingOK=false and an empty
// string only for content it classifies as binary (a null byte within the
// first 8000 bytes). Non-binary content that isn't valid UTF-8 is decoded
// with the replacement character and still reported as encodingOK=true;
// only binary files are excluded from fragmentation.
func ReadFile(path string) (content string, encodingOK bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false, err
	}
	if isBinary(data) {
		return "", false, nil
	}
	if utf8.Valid(data) {
		return string(data), true, nil
	}
	return strings.ToValidUTF8(string(data), "�"), true, nil
}

func isBinary(data []byte) bool {
	probe := data
	if len(probe) > 8000 {
		probe = probe[:8000]
	}
	for _, b := range probe {
		if b == 0 {
			return true
		}
	}
	return false
}
