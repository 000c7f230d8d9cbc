// ABOUTME: Tests for reference filtering
// ABOUTME: Covers tag conjunction, priority, search case-insensitivity, stability and orphaned references

package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/refforge/internal/store"
)

func intPtr(v int) *int { return &v }

func ids(refs []store.Reference) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.ID
	}
	return out
}

func sampleRefs() []store.Reference {
	return []store.Reference{
		{ID: "ab", Title: "Deep Learning", Authors: []string{"John Doe"}, Tags: []string{"A", "B"}, Priority: 5, ProjectID: "p1"},
		{ID: "a", Title: "Quantum Things", Authors: []string{"Alice Johnson"}, Abstract: "A study of qubits.", Tags: []string{"A"}, Priority: 3, ProjectID: "p2"},
		{ID: "b", Title: "Ethics", Authors: []string{"Carol White"}, Tags: []string{"B"}, Priority: 5, ProjectID: "p1"},
	}
}

func TestReferences_TagConjunction(t *testing.T) {
	refs := sampleRefs()

	assert.Equal(t, []string{"ab"}, ids(References(refs, Predicate{Tags: []string{"A", "B"}})))
	assert.Equal(t, []string{"ab", "a"}, ids(References(refs, Predicate{Tags: []string{"A"}})))
	assert.Empty(t, References(refs, Predicate{Tags: []string{"A", "Z"}}))
}

func TestReferences_SearchIsCaseInsensitive(t *testing.T) {
	refs := sampleRefs()

	assert.Equal(t, []string{"ab"}, ids(References(refs, Predicate{Search: "deep"})))
	assert.Equal(t, []string{"ab"}, ids(References(refs, Predicate{Search: "LEARNING"})))
	assert.Equal(t, []string{"a"}, ids(References(refs, Predicate{Search: "alice"})), "author match")
	assert.Equal(t, []string{"a"}, ids(References(refs, Predicate{Search: "QUBITS"})), "abstract match")
}

func TestReferences_Priority(t *testing.T) {
	refs := sampleRefs()

	assert.Equal(t, []string{"ab", "b"}, ids(References(refs, Predicate{Priority: intPtr(5)})))
	assert.Empty(t, References(refs, Predicate{Priority: intPtr(4)}), "priority is exact, not at-least")
	assert.Len(t, References(refs, Predicate{Priority: intPtr(0)}), 3, "zero means unset")
	assert.Len(t, References(refs, Predicate{}), 3)
}

func TestReferences_Conjunction(t *testing.T) {
	refs := sampleRefs()

	got := References(refs, Predicate{ProjectID: "p1", Priority: intPtr(5), Tags: []string{"B"}, Search: "ethic"})
	assert.Equal(t, []string{"b"}, ids(got))

	got = References(refs, Predicate{ProjectID: "p2", Tags: []string{"B"}})
	assert.Empty(t, got)
}

func TestReferences_PreservesOrder(t *testing.T) {
	refs := []store.Reference{
		{ID: "3", ProjectID: "p"},
		{ID: "1", ProjectID: "p"},
		{ID: "2", ProjectID: "q"},
		{ID: "0", ProjectID: "p"},
	}
	assert.Equal(t, []string{"3", "1", "0"}, ids(References(refs, Predicate{ProjectID: "p"})))
}

func TestVisible_OrphanedReferences(t *testing.T) {
	data := &store.AppData{
		Projects: []store.Project{{ID: "p1", Name: "One"}},
		References: []store.Reference{
			{ID: "kept", ProjectID: "p1"},
			{ID: "orphan", ProjectID: "gone"},
		},
	}

	assert.Equal(t, []string{"kept", "orphan"}, ids(Visible(data, Predicate{})))
	assert.Equal(t, []string{"kept"}, ids(Visible(data, Predicate{ProjectID: "p1"})))
	assert.Empty(t, Visible(data, Predicate{ProjectID: "gone"}))
	assert.Empty(t, Visible(nil, Predicate{}))
}

func TestTags(t *testing.T) {
	refs := sampleRefs()
	refs = append(refs, store.Reference{ID: "x", Tags: []string{"Alpha", "A"}})

	assert.Equal(t, []string{"A", "Alpha", "B"}, Tags(refs))
	assert.Equal(t, []string{}, Tags(nil))
}

func TestPredicate_Key(t *testing.T) {
	a := Predicate{ProjectID: "p", Tags: []string{"x", "y"}, Search: "Deep"}
	b := Predicate{ProjectID: "p", Tags: []string{"y", "x"}, Search: "deep"}
	assert.Equal(t, a.Key(), b.Key())

	c := Predicate{ProjectID: "p", Priority: intPtr(0)}
	d := Predicate{ProjectID: "p"}
	assert.Equal(t, c.Key(), d.Key())

	e := Predicate{ProjectID: "p", Priority: intPtr(2)}
	assert.NotEqual(t, d.Key(), e.Key())

	require.True(t, Predicate{}.IsZero())
	require.True(t, Predicate{Priority: intPtr(0)}.IsZero())
	require.False(t, e.IsZero())
}

func TestPredicate_IsZeroAgreesWithMatching(t *testing.T) {
	refs := []store.Reference{
		{ID: "a", Title: "Deep Learning"},
		{ID: "b", Title: "Qubits"},
	}
	for _, p := range []Predicate{{}, {Search: "  "}, {Search: " "}, {Priority: intPtr(0)}} {
		got := References(refs, p)
		assert.Equal(t, p.IsZero(), len(got) == len(refs), "search %q", p.Search)
	}
}
