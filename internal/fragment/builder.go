package fragment

import (
	"errors"
)

// ErrParseFailed is returned internally by a LanguageProfile when its parse
// attempt fails; BuildFragments catches it and falls back to the generic
// chunk profile. It is never surfaced to callers outside this package.
var ErrParseFailed = errors.New("fragment: parse failed")

// BuildFragments dispatches path/content to the registered LanguageProfile
// (by extension, falling back to shebang sniffing), and on parse failure or
// no matching profile, falls back to the generic line-chunker. Every
// returned Fragment has its Identifiers and TokenCount populated and the
// full set is validated against the disjoint-or-strictly-nested invariant
// before returning.
func BuildFragments(path string, content []byte) ([]Fragment, error) {
	var frags []Fragment
	var err error

	if p, ok := resolveProfile(path, content); ok {
		frags, err = p.Fragment(path, content)
		if err != nil {
			frags = nil // fall through to generic profile below
		}
	}

	if frags == nil {
		generic, ok := registry[genericExt]
		if !ok {
			return nil, errors.New("fragment: generic chunk profile not registered")
		}
		frags, err = generic.Fragment(path, content)
		if err != nil {
			return nil, err
		}
	}

	if verr := ValidateNoPartialOverlap(frags); verr != nil {
		return nil, verr
	}
	return frags, nil
}

// genericExt is a sentinel extension the generic chunk profile registers
// itself under in addition to being reachable as the BuildFragments fallback.
const genericExt = ".__generic__"
