// ABOUTME: Mutation records applied against a store and journaled while degraded
// ABOUTME: Each record carries fully-resolved values so replay writes exactly what the user saw

package library

import (
	"context"

	"github.com/2389/refforge/internal/store"
)

type opKind string

const (
	opAddProject      opKind = "add_project"
	opUpdateProject   opKind = "update_project"
	opDeleteProject   opKind = "delete_project"
	opAddReference    opKind = "add_reference"
	opUpdateReference opKind = "update_reference"
	opDeleteReference opKind = "delete_reference"
)

type mutation struct {
	kind      opKind
	project   store.Project
	reference store.Reference
	id        string
}

func (m mutation) target() string {
	switch m.kind {
	case opAddProject, opUpdateProject:
		return m.project.ID
	case opAddReference, opUpdateReference:
		return m.reference.ID
	default:
		return m.id
	}
}

func (m mutation) apply(ctx context.Context, st store.Store) error {
	switch m.kind {
	case opAddProject:
		p := m.project
		return st.InsertProject(ctx, &p)
	case opUpdateProject:
		p := m.project
		return st.UpdateProject(ctx, &p)
	case opDeleteProject:
		return st.DeleteProject(ctx, m.id)
	case opAddReference:
		r := m.reference.Clone()
		return st.InsertReference(ctx, &r)
	case opUpdateReference:
		r := m.reference.Clone()
		return st.UpdateReference(ctx, &r)
	case opDeleteReference:
		return st.DeleteReference(ctx, m.id)
	default:
		panic("library: unknown mutation " + string(m.kind))
	}
}
