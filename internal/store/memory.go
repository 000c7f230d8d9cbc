// ABOUTME: In-memory Store implementation for tests, the memory backend and offline mode
// ABOUTME: Mirrors SQLiteStore semantics (ordering, foreign keys, cascade) without a database

package store

import (
	"context"
	"slices"
	"sync"
)

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

// Op names a MemoryStore operation for fault injection
type Op string

// Operations that can be made to fail with FailOn
const (
	OpInsertProject   Op = "insert_project"
	OpUpdateProject   Op = "update_project"
	OpDeleteProject   Op = "delete_project"
	OpInsertReference Op = "insert_reference"
	OpUpdateReference Op = "update_reference"
	OpDeleteReference Op = "delete_reference"
	OpList            Op = "list"
	OpImport          Op = "import"
)

// MemoryStore is an in-memory Store implementation.
// Slices keep insertion order so listings match SQLiteStore's rowid order.
type MemoryStore struct {
	mu         sync.RWMutex
	projects   []Project
	references []Reference
	faults     map[Op]error
	closed     bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		faults: make(map[Op]error),
	}
}

// FailOn makes every subsequent call of op return err. A nil err clears the fault.
func (m *MemoryStore) FailOn(op Op, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err == nil {
		delete(m.faults, op)
		return
	}
	m.faults[op] = err
}

// Data returns a deep copy of the stored dataset.
func (m *MemoryStore) Data() AppData {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return AppData{Projects: m.projects, References: m.references}.Clone()
}

// ListProjects returns a copy of all projects.
func (m *MemoryStore) ListProjects(ctx context.Context) ([]Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.faults[OpList]; err != nil {
		return nil, err
	}

	out := slices.Clone(m.projects)
	if out == nil {
		out = []Project{}
	}
	return out, nil
}

// InsertProject stores a new project.
func (m *MemoryStore) InsertProject(ctx context.Context, p *Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.faults[OpInsertProject]; err != nil {
		return err
	}
	return m.insertProjectLocked(*p)
}

func (m *MemoryStore) insertProjectLocked(p Project) error {
	if m.projectIndex(p.ID) >= 0 {
		return ErrDuplicateID
	}
	m.projects = append(m.projects, p)
	return nil
}

// UpdateProject replaces an existing project.
func (m *MemoryStore) UpdateProject(ctx context.Context, p *Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.faults[OpUpdateProject]; err != nil {
		return err
	}

	i := m.projectIndex(p.ID)
	if i < 0 {
		return ErrNotFound
	}
	m.projects[i] = *p
	return nil
}

// DeleteProject removes a project and its references together.
func (m *MemoryStore) DeleteProject(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.faults[OpDeleteProject]; err != nil {
		return err
	}

	i := m.projectIndex(id)
	if i < 0 {
		return ErrNotFound
	}
	m.references = slices.DeleteFunc(m.references, func(r Reference) bool {
		return r.ProjectID == id
	})
	m.projects = slices.Delete(m.projects, i, i+1)
	return nil
}

// ListReferences returns deep copies of all references.
func (m *MemoryStore) ListReferences(ctx context.Context) ([]Reference, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.faults[OpList]; err != nil {
		return nil, err
	}

	out := make([]Reference, len(m.references))
	for i, r := range m.references {
		out[i] = r.Clone()
	}
	return out, nil
}

// InsertReference stores a new reference.
func (m *MemoryStore) InsertReference(ctx context.Context, r *Reference) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.faults[OpInsertReference]; err != nil {
		return err
	}
	return m.insertReferenceLocked(*r)
}

func (m *MemoryStore) insertReferenceLocked(r Reference) error {
	if m.projectIndex(r.ProjectID) < 0 {
		return ErrUnknownProject
	}
	if m.referenceIndex(r.ID) >= 0 {
		return ErrDuplicateID
	}
	m.references = append(m.references, normalize(r))
	return nil
}

// UpdateReference replaces an existing reference, keeping its CreatedAt.
func (m *MemoryStore) UpdateReference(ctx context.Context, r *Reference) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.faults[OpUpdateReference]; err != nil {
		return err
	}

	i := m.referenceIndex(r.ID)
	if i < 0 {
		return ErrNotFound
	}
	if m.projectIndex(r.ProjectID) < 0 {
		return ErrUnknownProject
	}

	updated := normalize(*r)
	updated.CreatedAt = m.references[i].CreatedAt
	m.references[i] = updated
	return nil
}

// DeleteReference removes a reference.
func (m *MemoryStore) DeleteReference(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.faults[OpDeleteReference]; err != nil {
		return err
	}

	i := m.referenceIndex(id)
	if i < 0 {
		return ErrNotFound
	}
	m.references = slices.Delete(m.references, i, i+1)
	return nil
}

// Counts returns the number of stored projects and references.
func (m *MemoryStore) Counts(ctx context.Context) (Counts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.faults[OpList]; err != nil {
		return Counts{}, err
	}
	return Counts{Projects: len(m.projects), References: len(m.references)}, nil
}

// Import writes the dataset all-or-nothing.
func (m *MemoryStore) Import(ctx context.Context, data AppData) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.faults[OpImport]; err != nil {
		return err
	}

	savedProjects := slices.Clone(m.projects)
	savedRefs := slices.Clone(m.references)

	for _, p := range data.Projects {
		if err := m.insertProjectLocked(p); err != nil {
			m.projects, m.references = savedProjects, savedRefs
			return err
		}
	}
	for _, r := range data.References {
		if err := m.insertReferenceLocked(r.Clone()); err != nil {
			m.projects, m.references = savedProjects, savedRefs
			return err
		}
	}
	return nil
}

// Close marks the store closed. Data is kept so tests can inspect it.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MemoryStore) Closed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

func (m *MemoryStore) projectIndex(id string) int {
	return slices.IndexFunc(m.projects, func(p Project) bool { return p.ID == id })
}

func (m *MemoryStore) referenceIndex(id string) int {
	return slices.IndexFunc(m.references, func(r Reference) bool { return r.ID == id })
}

// normalize applies the same defaults SQLiteStore applies on write.
func normalize(r Reference) Reference {
	r = r.Clone()
	if r.Authors == nil {
		r.Authors = []string{}
	}
	if r.Tags == nil {
		r.Tags = []string{}
	}
	if r.Status == "" {
		r.Status = StatusNotFinished
	}
	return r
}
