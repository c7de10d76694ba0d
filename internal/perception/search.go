package perception

import (
	"sort"
	"strings"

	"github.com/pageplane/pageplane/internal/protocol"
)

// Match-quality tiers, best first.
const (
	tierExactName = iota
	tierExactAria
	tierPartialName
	tierPartialAria
	tierRoleText
	tierNone
)

// Search runs the shared search-and-filter semantics over a candidate
// list: case-insensitive exact match on name/aria, then substring match
// on name/aria/id, then a "<role> <text>" pattern. Filters apply on top.
// Results come back ordered by match-quality tier.
func Search(candidates []protocol.ActionCandidate, query string, filters *protocol.SearchFilters) []protocol.ActionCandidate {
	type scored struct {
		c    protocol.ActionCandidate
		tier int
	}

	q := strings.ToLower(strings.TrimSpace(query))
	var out []scored
	for _, c := range candidates {
		if !passesFilters(c, filters) {
			continue
		}
		tier := matchTier(c, q)
		if tier == tierNone {
			continue
		}
		out = append(out, scored{c, tier})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].tier < out[j].tier })

	result := make([]protocol.ActionCandidate, len(out))
	for i, s := range out {
		result[i] = s.c
	}
	return result
}

// Best returns the single best match, false when nothing matches.
func Best(candidates []protocol.ActionCandidate, query string, filters *protocol.SearchFilters) (protocol.ActionCandidate, bool) {
	matches := Search(candidates, query, filters)
	if len(matches) == 0 {
		return protocol.ActionCandidate{}, false
	}
	return matches[0], true
}

func matchTier(c protocol.ActionCandidate, q string) int {
	if q == "" {
		return tierRoleText
	}
	name := strings.ToLower(c.Name)
	aria := strings.ToLower(c.Aria)
	id := strings.ToLower(c.ID)

	switch {
	case name == q:
		return tierExactName
	case aria == q:
		return tierExactAria
	case name != "" && strings.Contains(name, q):
		return tierPartialName
	case aria != "" && strings.Contains(aria, q):
		return tierPartialAria
	case strings.Contains(id, q):
		return tierPartialAria
	}

	// "<role> <text>": role equality plus partial text match.
	if role, text, ok := strings.Cut(q, " "); ok {
		if strings.ToLower(c.Role) == role &&
			(strings.Contains(name, text) || strings.Contains(aria, text)) {
			return tierRoleText
		}
	}
	return tierNone
}

func passesFilters(c protocol.ActionCandidate, f *protocol.SearchFilters) bool {
	if f == nil {
		return true
	}
	if f.Role != "" && c.Role != f.Role {
		return false
	}
	if f.Tag != "" && c.Tag != f.Tag {
		return false
	}
	if f.Visible != nil && *f.Visible == c.Occluded {
		return false
	}
	if f.Enabled != nil && *f.Enabled == c.State.Disabled {
		return false
	}
	return true
}
