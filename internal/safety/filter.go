// Package safety provides filtering, confirmation, and audit logging for
// destructive or sensitive virtual machine operations.
package safety

import "path/filepath"

// Filter controls access to named VMs using an allowlist and a denylist.
// Both lists accept glob patterns as understood by filepath.Match.
//
// Rules:
//   - With both lists empty (or nil), every VM is allowed.
//   - The denylist always takes priority over the allowlist.
//   - A non-empty allowlist means a VM must match at least one of its
//     patterns to be permitted (after the denylist check).
type Filter struct {
	allowlist []string
	denylist  []string
}

// NewFilter constructs a Filter from the provided pattern slices. Either or
// both may be nil or empty.
func NewFilter(allowlist, denylist []string) *Filter {
	return &Filter{allowlist: allowlist, denylist: denylist}
}

// IsAllowed reports whether the named VM is permitted by this filter.
func (f *Filter) IsAllowed(name string) bool {
	if matchAny(f.denylist, name) {
		return false
	}
	if len(f.allowlist) == 0 {
		return true
	}
	return matchAny(f.allowlist, name)
}

// matchAny reports whether name matches any of the glob patterns.
// Malformed patterns are treated as non-matching.
func matchAny(patterns []string, name string) bool {
	for _, pattern := range patterns {
		if matched, err := filepath.Match(pattern, name); err == nil && matched {
			return true
		}
	}
	return false
}
