// Package match implements the tag-name matching policies used by scans.
package match

import "strings"

// Kind selects a matching policy.
type Kind int

const (
	// Exact accepts a tag only when it equals the requested version verbatim.
	Exact Kind = iota
	// NormalizedPrefix additionally accepts the requested version with a
	// single leading "v" added or stripped.
	NormalizedPrefix
	// Pattern treats the requested version as a prefix: a tag matches when,
	// after stripping an optional leading "v", it starts with prefix + ".".
	Pattern
)

// Spec is a tag-matching specification: a requested version (or version
// prefix, for Pattern) plus the policy to apply.
type Spec struct {
	Version string
	Kind    Kind
}

// Matches reports whether the tag name satisfies the spec.
func (s Spec) Matches(tag string) bool {
	switch s.Kind {
	case Exact:
		return tag == s.Version
	case NormalizedPrefix:
		return tag == s.Version || tag == "v"+s.Version || "v"+tag == s.Version
	case Pattern:
		return strings.HasPrefix(stripLeadingV(tag), s.Version+".")
	default:
		return false
	}
}

func stripLeadingV(tag string) string {
	if strings.HasPrefix(tag, "v") {
		return tag[1:]
	}
	return tag
}
