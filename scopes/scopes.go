// Package scopes defines the permission vocabulary of the authorization
// core: dot-separated scope strings, the implication relation between them,
// and the translator to the legacy permission vocabulary.
package scopes

import (
	"sort"
	"strings"
)

// Full is the literal full-access scope. It satisfies every requirement.
const Full = "*"

// HealthRead is the convenience bundle that expands to every resource-read
// scope during normalization.
const HealthRead = "health.read"

const (
	actionRead      = "read"
	actionReadWrite = "readwrite"
)

// resources enumerates the data collections scopes can name. The list is
// closed: IsValid rejects anything outside it.
var resources = []string{"entries", "treatments", "devicestatus", "profile", "food"}

// Resources returns the enumerated resource names.
func Resources() []string {
	out := make([]string, len(resources))
	copy(out, resources)
	return out
}

// All returns every concrete scope plus the full-access literal.
func All() []string {
	out := make([]string, 0, len(resources)*2+1)
	for _, r := range resources {
		out = append(out, r+"."+actionRead, r+"."+actionReadWrite)
	}
	out = append(out, Full)
	return out
}

// readBundle is the expansion of HealthRead.
func readBundle() []string {
	out := make([]string, 0, len(resources))
	for _, r := range resources {
		out = append(out, r+"."+actionRead)
	}
	return out
}

// IsValid accepts exactly the enumerated <resource>.<read|readwrite> pairs
// and the two literals. Scope strings are case-sensitive.
func IsValid(scope string) bool {
	if scope == Full || scope == HealthRead {
		return true
	}
	resource, action, ok := strings.Cut(scope, ".")
	if !ok || (action != actionRead && action != actionReadWrite) {
		return false
	}
	for _, r := range resources {
		if r == resource {
			return true
		}
	}
	return false
}

// Normalize expands Full to every concrete scope (including itself) and
// HealthRead to its read bundle, drops invalid entries silently, and removes
// duplicates. Attacker-controlled lists are safe to pass: garbage is
// discarded, never an error. The result is sorted for stable storage.
func Normalize(requested []string) []string {
	seen := make(map[string]struct{})
	add := func(s string) {
		seen[s] = struct{}{}
	}
	for _, s := range requested {
		if !IsValid(s) {
			continue
		}
		switch s {
		case Full:
			for _, c := range All() {
				add(c)
			}
		case HealthRead:
			for _, c := range readBundle() {
				add(c)
			}
		default:
			add(s)
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Satisfies implements the implication relation: Full satisfies anything,
// <r>.readwrite satisfies <r>.readwrite and <r>.read, <r>.read satisfies
// only <r>.read. Readwrite never reaches across resources.
func Satisfies(granted []string, required string) bool {
	if required == HealthRead {
		for _, r := range readBundle() {
			if !Satisfies(granted, r) {
				return false
			}
		}
		return true
	}
	for _, g := range granted {
		if g == Full || g == required {
			return true
		}
		resource, action, ok := strings.Cut(required, ".")
		if ok && action == actionRead && g == resource+"."+actionReadWrite {
			return true
		}
	}
	return false
}

// IsWriteCapable reports whether the scope can modify data: any readwrite
// scope and the full-access literal. Follower grants must never contain one.
func IsWriteCapable(scope string) bool {
	return scope == Full || strings.HasSuffix(scope, "."+actionReadWrite)
}

// Intersect computes the delegated scope set: a scope from grant is retained
// only if the caller's own scopes already satisfy it. A readwrite caller
// still only receives the read level when that is all the grant contains.
func Intersect(caller, grant []string) []string {
	out := make([]string, 0, len(grant))
	for _, s := range grant {
		if Satisfies(caller, s) {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
