package schema

import (
	"regexp"
	"strings"
)

// DefaultCorePlugin is the plugin identifier that owns the public schema
const DefaultCorePlugin = "@elizaos/plugin-sql"

// maxIdentifierLength is the PostgreSQL identifier limit
const maxIdentifierLength = 63

// reservedNames are schema names a plugin may never claim. The core plugin is
// the only identifier allowed to resolve to public.
var reservedNames = map[string]bool{
	"public":             true,
	"pg_catalog":         true,
	"information_schema": true,
	"migrations":         true,
}

var scopePrefix = regexp.MustCompile(`^@[^/]+/`)

// Resolver derives database schema names from plugin identifiers
type Resolver struct {
	corePlugin string
}

// NewResolver creates a resolver. An empty corePlugin falls back to
// DefaultCorePlugin.
func NewResolver(corePlugin string) *Resolver {
	if corePlugin == "" {
		corePlugin = DefaultCorePlugin
	}
	return &Resolver{corePlugin: corePlugin}
}

// DeriveSchemaName maps a plugin identifier to a valid, collision-free schema
// name. The mapping is pure and deterministic: the core plugin always maps to
// public, every other identifier maps to a lowercase name matching
// ^[a-z][a-z0-9_]{0,62}$ that is never a reserved name.
func (r *Resolver) DeriveSchemaName(pluginIdentifier string) string {
	if pluginIdentifier == r.corePlugin {
		return "public"
	}

	name := scopePrefix.ReplaceAllString(pluginIdentifier, "")
	name = strings.TrimPrefix(name, "plugin-")
	name = normalize(strings.ToLower(name))

	// Reserved or empty results keep the full identifier so two plugins that
	// both shorten to the same reserved word cannot collide.
	if name == "" || reservedNames[name] {
		name = "plugin_" + normalize(strings.ToLower(pluginIdentifier))
	}

	if !startsWithLetter(name) {
		name = "p_" + name
	}

	if len(name) > maxIdentifierLength {
		name = name[:maxIdentifierLength]
	}

	return name
}

// normalize keeps ASCII alphanumerics and collapses every run of other
// characters into a single underscore, trimming underscores at both ends.
// The input is already lowercased.
func normalize(s string) string {
	var b strings.Builder
	pendingSep := false
	for _, c := range s {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(c)
		} else {
			pendingSep = true
		}
	}
	return b.String()
}

func startsWithLetter(s string) bool {
	return s != "" && s[0] >= 'a' && s[0] <= 'z'
}
