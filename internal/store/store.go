// ABOUTME: Store interface and data types for RefForge persistence
// ABOUTME: Defines Project, Reference, AppData and the Store contract used by the library core

package store

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateID is returned when inserting an entity whose ID is already taken
var ErrDuplicateID = errors.New("id already exists")

// ErrUnknownProject is returned when a reference points at a project that does not exist
var ErrUnknownProject = errors.New("project does not exist")

// Status is the reading status of a reference
type Status string

// Reading statuses, stored verbatim in the status column
const (
	StatusFinished    Status = "Finished"
	StatusNotFinished Status = "Not Finished"
)

// Project groups references and carries a display color token
type Project struct {
	ID    string `json:"id" validate:"required"`
	Name  string `json:"name" validate:"required"`
	Color string `json:"color"`
}

// Reference is a single bibliographic entry.
// Journal, DOI and Notes are optional; the empty string means absent.
type Reference struct {
	ID        string    `json:"id" validate:"required"`
	Title     string    `json:"title" validate:"required"`
	Authors   []string  `json:"authors" validate:"min=1,dive,required"`
	Year      int       `json:"year"`
	Journal   string    `json:"journal,omitempty"`
	DOI       string    `json:"doi,omitempty"`
	Abstract  string    `json:"abstract"`
	Tags      []string  `json:"tags"`
	Priority  int       `json:"priority" validate:"min=0,max=5"`
	ProjectID string    `json:"projectId" validate:"required"`
	CreatedAt time.Time `json:"createdAt"`
	Status    Status    `json:"status" validate:"oneof='Finished' 'Not Finished'"`
	Notes     string    `json:"notes,omitempty"`
}

// HasTag reports whether the reference carries the given tag.
func (r *Reference) HasTag(tag string) bool {
	return slices.Contains(r.Tags, tag)
}

// Clone returns a deep copy so callers can't alias the Authors/Tags slices.
func (r Reference) Clone() Reference {
	r.Authors = slices.Clone(r.Authors)
	r.Tags = slices.Clone(r.Tags)
	return r
}

// AppData is the full {projects, references} aggregate
type AppData struct {
	Projects   []Project   `json:"projects"`
	References []Reference `json:"references"`
}

// Clone returns a deep copy of the aggregate.
func (d AppData) Clone() AppData {
	out := AppData{
		Projects:   slices.Clone(d.Projects),
		References: make([]Reference, len(d.References)),
	}
	for i, r := range d.References {
		out.References[i] = r.Clone()
	}
	if out.Projects == nil {
		out.Projects = []Project{}
	}
	return out
}

// Project returns the project with the given id.
func (d *AppData) Project(id string) (Project, bool) {
	for _, p := range d.Projects {
		if p.ID == id {
			return p, true
		}
	}
	return Project{}, false
}

// Reference returns the reference with the given id.
func (d *AppData) Reference(id string) (Reference, bool) {
	for _, r := range d.References {
		if r.ID == id {
			return r, true
		}
	}
	return Reference{}, false
}

// Counts holds table row counts
type Counts struct {
	Projects   int
	References int
}

// Empty reports whether both tables are empty.
func (c Counts) Empty() bool {
	return c.Projects == 0 && c.References == 0
}

// Store defines the typed read/write contract against the backing store
type Store interface {
	// Projects
	ListProjects(ctx context.Context) ([]Project, error)
	InsertProject(ctx context.Context, p *Project) error
	UpdateProject(ctx context.Context, p *Project) error
	// DeleteProject removes the project and all of its references atomically.
	DeleteProject(ctx context.Context, id string) error

	// References
	ListReferences(ctx context.Context) ([]Reference, error)
	InsertReference(ctx context.Context, r *Reference) error
	UpdateReference(ctx context.Context, r *Reference) error
	DeleteReference(ctx context.Context, id string) error

	// Counts returns the number of rows in each table
	Counts(ctx context.Context) (Counts, error)

	// Import writes a complete dataset in a single transaction
	Import(ctx context.Context, data AppData) error

	// Close releases any resources held by the store
	Close() error
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints on a project.
func (p *Project) Validate() error {
	return validate.Struct(p)
}

// Validate checks field constraints on a reference.
func (r *Reference) Validate() error {
	return validate.Struct(r)
}
