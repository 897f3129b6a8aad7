// Package token recognises deferred configuration values. Provisioning
// systems frequently hand out identity strings before the underlying
// resource exists; those strings are placeholders of the form
// ${Token[...]} and only become literals once the surrounding
// infrastructure resolves them. Code that compares or fingerprints
// identity values must treat placeholders as opaque and incomparable.
package token

import "strings"

const (
	prefix = "${Token["
	suffix = "]}"
)

// Unresolved reports whether s contains a placeholder anywhere in the
// string. Composite values such as ARNs built around a placeholder
// segment count as unresolved, since no part of them is stable across
// builds.
func Unresolved(s string) bool {
	i := strings.Index(s, prefix)
	if i < 0 {
		return false
	}
	return strings.Contains(s[i+len(prefix):], suffix)
}

// Placeholder returns the placeholder form of name, e.g.
// Placeholder("AWS::Region") -> "${Token[AWS::Region]}".
func Placeholder(name string) string {
	return prefix + name + suffix
}
