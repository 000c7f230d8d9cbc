// ABOUTME: Tests for the in-memory store
// ABOUTME: Checks that MemoryStore mirrors SQLiteStore semantics and that fault injection works

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_ProjectCRUD(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	require.NoError(t, m.InsertProject(ctx, &Project{ID: "p1", Name: "One", Color: "red"}))
	require.NoError(t, m.InsertProject(ctx, &Project{ID: "p2", Name: "Two", Color: "blue"}))
	assert.ErrorIs(t, m.InsertProject(ctx, &Project{ID: "p1"}), ErrDuplicateID)

	require.NoError(t, m.UpdateProject(ctx, &Project{ID: "p1", Name: "Uno", Color: "green"}))
	assert.ErrorIs(t, m.UpdateProject(ctx, &Project{ID: "nope"}), ErrNotFound)

	projects, err := m.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "Uno", projects[0].Name)
	assert.Equal(t, "p2", projects[1].ID)
}

func TestMemoryStore_ReferenceForeignKey(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	err := m.InsertReference(ctx, newRef("r1", "missing"))
	assert.ErrorIs(t, err, ErrUnknownProject)

	mustInsertProject(t, m, "p1")
	require.NoError(t, m.InsertReference(ctx, newRef("r1", "p1")))
	assert.ErrorIs(t, m.InsertReference(ctx, newRef("r1", "p1")), ErrDuplicateID)

	moved := newRef("r1", "missing")
	assert.ErrorIs(t, m.UpdateReference(ctx, moved), ErrUnknownProject)
}

func TestMemoryStore_UpdateKeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	mustInsertProject(t, m, "p1")

	ref := newRef("r1", "p1")
	require.NoError(t, m.InsertReference(ctx, ref))

	changed := *ref
	changed.Title = "Changed"
	changed.CreatedAt = time.Now()
	require.NoError(t, m.UpdateReference(ctx, &changed))

	refs, err := m.ListReferences(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Changed", refs[0].Title)
	assert.True(t, refs[0].CreatedAt.Equal(ref.CreatedAt))
}

func TestMemoryStore_DeleteProjectCascades(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	mustInsertProject(t, m, "p1")
	mustInsertProject(t, m, "p2")
	require.NoError(t, m.InsertReference(ctx, newRef("a", "p1")))
	require.NoError(t, m.InsertReference(ctx, newRef("b", "p2")))
	require.NoError(t, m.InsertReference(ctx, newRef("c", "p1")))

	require.NoError(t, m.DeleteProject(ctx, "p1"))
	assert.ErrorIs(t, m.DeleteProject(ctx, "p1"), ErrNotFound)

	data := m.Data()
	require.Len(t, data.References, 1)
	assert.Equal(t, "b", data.References[0].ID)
	require.Len(t, data.Projects, 1)
}

func TestMemoryStore_ListReturnsCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	mustInsertProject(t, m, "p1")
	ref := newRef("r1", "p1")
	ref.Tags = []string{"a"}
	require.NoError(t, m.InsertReference(ctx, ref))

	refs, err := m.ListReferences(ctx)
	require.NoError(t, err)
	refs[0].Tags[0] = "mutated"

	again, err := m.ListReferences(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", again[0].Tags[0])
}

func TestMemoryStore_Defaults(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	mustInsertProject(t, m, "p1")

	require.NoError(t, m.InsertReference(ctx, &Reference{ID: "r1", Title: "T", ProjectID: "p1"}))

	refs, err := m.ListReferences(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusNotFinished, refs[0].Status)
	assert.NotNil(t, refs[0].Tags)
	assert.NotNil(t, refs[0].Authors)
}

func TestMemoryStore_ImportAllOrNothing(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	bad := AppData{
		Projects:   []Project{{ID: "p1", Name: "One"}},
		References: []Reference{*newRef("r1", "p1"), *newRef("r2", "nope")},
	}
	require.Error(t, m.Import(ctx, bad))

	counts, err := m.Counts(ctx)
	require.NoError(t, err)
	assert.True(t, counts.Empty())

	good := AppData{
		Projects:   []Project{{ID: "p1", Name: "One"}},
		References: []Reference{*newRef("r1", "p1")},
	}
	require.NoError(t, m.Import(ctx, good))
	counts, err = m.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{Projects: 1, References: 1}, counts)
}

func TestMemoryStore_FailOn(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	boom := errors.New("boom")

	m.FailOn(OpInsertProject, boom)
	assert.ErrorIs(t, m.InsertProject(ctx, &Project{ID: "p1"}), boom)

	m.FailOn(OpInsertProject, nil)
	assert.NoError(t, m.InsertProject(ctx, &Project{ID: "p1"}))

	m.FailOn(OpList, boom)
	_, err := m.ListReferences(ctx)
	assert.ErrorIs(t, err, boom)
}

func TestMemoryStore_Close(t *testing.T) {
	m := NewMemoryStore()
	assert.False(t, m.Closed())
	require.NoError(t, m.Close())
	assert.True(t, m.Closed())
}

func TestReferenceValidate(t *testing.T) {
	ref := newRef("r1", "p1")
	assert.NoError(t, ref.Validate())

	ref.Priority = 6
	assert.Error(t, ref.Validate())

	ref.Priority = 3
	ref.Authors = nil
	assert.Error(t, ref.Validate())

	ref.Authors = []string{"A"}
	ref.Status = "Skimmed"
	assert.Error(t, ref.Validate())

	p := &Project{ID: "p1"}
	assert.Error(t, p.Validate())
}
