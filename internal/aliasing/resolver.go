package aliasing

import (
	"strings"
	"unicode"
)

// Resolver resolves category names to system slugs. Thread-safe for
// concurrent use (immutable after construction).
//
// Resolution checks the alias table first, then the canonical names the
// caller registered. All matching is done on a normalized form: lowercase,
// trimmed, inner whitespace collapsed, so "  bois 2A. " matches "Bois - 2A."
// only via an explicit alias but "Bois - 2A." always matches itself.
type Resolver struct {
	aliases map[string]string
}

// NewResolver builds a resolver from loaded configuration.
func NewResolver(cfg *Config) *Resolver {
	aliases := make(map[string]string, len(cfg.CategoryAliases))

	for name, slug := range cfg.CategoryAliases {
		aliases[Normalize(name)] = slug
	}

	return &Resolver{aliases: aliases}
}

// Resolve returns the system slug a category name stands for, or "" when
// the name has no alias.
func (r *Resolver) Resolve(name string) string {
	return r.aliases[Normalize(name)]
}

// HasAliases reports whether any aliases are configured.
func (r *Resolver) HasAliases() bool {
	return len(r.aliases) > 0
}

// Normalize produces the comparison form of a category name: lowercase,
// trimmed, runs of whitespace collapsed to one space.
func Normalize(name string) string {
	var b strings.Builder

	lastSpace := false

	for _, r := range strings.TrimSpace(name) {
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteRune(' ')
			}

			lastSpace = true

			continue
		}

		lastSpace = false

		b.WriteRune(unicode.ToLower(r))
	}

	return b.String()
}
