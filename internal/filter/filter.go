// ABOUTME: Pure derivation of the visible reference list from the library aggregate
// ABOUTME: Conjunctive matching across project, priority, tags and case-insensitive search

package filter

import (
	"slices"
	"strconv"
	"strings"

	"github.com/2389/refforge/internal/store"
)

// Predicate is the active filter criteria.
// Zero values mean "unset" for every dimension; a Priority of nil or 0 matches
// any reference.
type Predicate struct {
	ProjectID string
	Priority  *int
	Tags      []string
	Search    string
}

// IsZero reports whether the predicate matches everything. A search of only
// spaces is not zero: it is matched literally.
func (p Predicate) IsZero() bool {
	return p.ProjectID == "" && !p.hasPriority() && len(p.Tags) == 0 && p.Search == ""
}

func (p Predicate) hasPriority() bool {
	return p.Priority != nil && *p.Priority != 0
}

// Key returns a canonical string for the predicate. Tag order doesn't matter.
func (p Predicate) Key() string {
	tags := slices.Clone(p.Tags)
	slices.Sort(tags)
	tags = slices.Compact(tags)

	var b strings.Builder
	b.WriteString(p.ProjectID)
	b.WriteByte(0)
	if p.hasPriority() {
		b.WriteString(strconv.Itoa(*p.Priority))
	}
	b.WriteByte(0)
	b.WriteString(strings.Join(tags, "\x1f"))
	b.WriteByte(0)
	b.WriteString(strings.ToLower(p.Search))
	return b.String()
}

// Match reports whether a single reference satisfies every dimension of p.
func Match(r *store.Reference, p Predicate) bool {
	if p.ProjectID != "" && r.ProjectID != p.ProjectID {
		return false
	}
	if p.hasPriority() && r.Priority != *p.Priority {
		return false
	}
	for _, tag := range p.Tags {
		if !r.HasTag(tag) {
			return false
		}
	}
	return matchSearch(r, p.Search)
}

func matchSearch(r *store.Reference, term string) bool {
	if term == "" {
		return true
	}
	term = strings.ToLower(term)

	if strings.Contains(strings.ToLower(r.Title), term) {
		return true
	}
	for _, a := range r.Authors {
		if strings.Contains(strings.ToLower(a), term) {
			return true
		}
	}
	return strings.Contains(strings.ToLower(r.Abstract), term)
}

// References returns the references matching p, in input order.
func References(refs []store.Reference, p Predicate) []store.Reference {
	out := make([]store.Reference, 0, len(refs))
	for i := range refs {
		if Match(&refs[i], p) {
			out = append(out, refs[i])
		}
	}
	return out
}

// Visible filters the aggregate's references. A reference whose project no
// longer exists is treated as belonging to no project: it never matches a
// project predicate but still shows when no project is selected.
func Visible(data *store.AppData, p Predicate) []store.Reference {
	if data == nil {
		return []store.Reference{}
	}
	if p.ProjectID != "" {
		if _, ok := data.Project(p.ProjectID); !ok {
			return []store.Reference{}
		}
	}
	return References(data.References, p)
}

// Tags returns the sorted set of tags used across refs.
func Tags(refs []store.Reference) []string {
	seen := make(map[string]struct{})
	tags := []string{}
	for _, r := range refs {
		for _, t := range r.Tags {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			tags = append(tags, t)
		}
	}
	slices.Sort(tags)
	return tags
}
