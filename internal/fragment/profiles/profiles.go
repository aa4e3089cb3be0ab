// Package profiles registers every built-in LanguageProfile by side effect.
// Importing this package (blank import is fine) wires the fragment
// builder's extension/shebang registry; fragment itself never imports any
// profile package, avoiding an import cycle.
package profiles

import (
	_ "github.com/codenerd-labs/diffctx/internal/fragment/profiles/genericprofile"
	_ "github.com/codenerd-labs/diffctx/internal/fragment/profiles/goprofile"
	_ "github.com/codenerd-labs/diffctx/internal/fragment/profiles/headingprofile"
	_ "github.com/codenerd-labs/diffctx/internal/fragment/profiles/lineprofile"
	_ "github.com/codenerd-labs/diffctx/internal/fragment/profiles/tsprofile"
)
