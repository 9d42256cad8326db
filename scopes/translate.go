package scopes

import (
	"sort"
	"strings"
)

// Legacy permission vocabulary: dotted api permissions ("api:entries:read"),
// the blanket grants "admin" and "readable", and wildcards like "api:*:read".
// Delete is not independently expressible in the scope vocabulary, so a
// delete permission escalates to full access rather than inventing a
// narrower scope.
const (
	permAdmin    = "admin"
	permReadable = "readable"
	permFull     = "*"
	permPrefix   = "api"
)

// FromPermissions maps a legacy permission list onto the scope vocabulary.
// Unknown permissions are ignored. Full access collapses the result to the
// single full-access scope.
func FromPermissions(permissions []string) []string {
	seen := make(map[string]struct{})
	full := false
	for _, p := range permissions {
		switch p {
		case permFull, permAdmin:
			full = true
			continue
		case permReadable:
			for _, s := range readBundle() {
				seen[s] = struct{}{}
			}
			continue
		}
		parts := strings.Split(p, ":")
		if len(parts) != 3 || parts[0] != permPrefix {
			continue
		}
		resource, action := parts[1], parts[2]
		targets := []string{resource}
		if resource == permFull {
			targets = Resources()
		} else if !IsValid(resource + "." + actionRead) {
			continue
		}
		for _, r := range targets {
			switch action {
			case "read":
				seen[r+"."+actionRead] = struct{}{}
			case "create", "update":
				seen[r+"."+actionReadWrite] = struct{}{}
			case "delete", permFull:
				full = true
			}
		}
	}
	if full {
		return []string{Full}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// ToPermissions is the inverse mapping. Full access collapses to the single
// wildcard permission; readwrite expands to read+create+update since the
// legacy vocabulary has no combined form.
func ToPermissions(scopes []string) []string {
	if Satisfies(scopes, Full) {
		return []string{permFull}
	}
	seen := make(map[string]struct{})
	for _, s := range scopes {
		if s == HealthRead {
			for _, r := range Resources() {
				seen[permPrefix+":"+r+":read"] = struct{}{}
			}
			continue
		}
		resource, action, ok := strings.Cut(s, ".")
		if !ok || !IsValid(s) {
			continue
		}
		switch action {
		case actionRead:
			seen[permPrefix+":"+resource+":read"] = struct{}{}
		case actionReadWrite:
			seen[permPrefix+":"+resource+":read"] = struct{}{}
			seen[permPrefix+":"+resource+":create"] = struct{}{}
			seen[permPrefix+":"+resource+":update"] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
