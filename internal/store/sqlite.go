// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite or mattn/go-sqlite3
// ABOUTME: Provides project/reference persistence with automatic schema creation and additive migrations

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Driver names registered with database/sql
const (
	DriverModernc = "sqlite"  // modernc.org/sqlite, pure Go
	DriverCGO     = "sqlite3" // github.com/mattn/go-sqlite3, requires cgo
)

// SchemaVersion is the version written to PRAGMA user_version after migrations
const SchemaVersion = 3

// MemoryPath opens a private in-memory database
const MemoryPath = ":memory:"

// Options configures Open
type Options struct {
	Driver string // defaults to DriverModernc
	Path   string
	Logger *slog.Logger
}

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store at the given path with the default driver.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	return Open(context.Background(), Options{Path: path})
}

// Open opens or creates the database at opts.Path.
// Parent directories are created if needed, the schema is created if it
// doesn't exist and additive column migrations are applied.
func Open(ctx context.Context, opts Options) (*SQLiteStore, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "store")

	driver := opts.Driver
	if driver == "" {
		driver = DriverModernc
	}
	if driver != DriverModernc && driver != DriverCGO {
		return nil, fmt.Errorf("unsupported sqlite driver %q", driver)
	}
	if opts.Path == "" {
		return nil, errors.New("database path is required")
	}

	if opts.Path != MemoryPath {
		dir := filepath.Dir(opts.Path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open(driver, opts.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection: writes are serialized by the library core and an
	// in-memory database must not be split across connections.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if opts.Path != MemoryPath {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling WAL mode: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		path:   opts.Path,
		logger: logger,
	}

	if err := s.createSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	if err := s.runMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	logger.Info("SQLite store initialized", "path", opts.Path, "driver", driver)
	return s, nil
}

// createSchema creates the version 1 tables if they don't exist
func (s *SQLiteStore) createSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			color TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS "references" (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			authors TEXT NOT NULL,
			year INTEGER NOT NULL,
			journal TEXT,
			doi TEXT,
			abstract TEXT NOT NULL,
			tags TEXT NOT NULL,
			priority INTEGER NOT NULL DEFAULT 0,
			project_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_references_project
			ON "references"(project_id);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// runMigrations adds the columns introduced after version 1.
// SQLite has no ADD COLUMN IF NOT EXISTS, so "duplicate column" failures are
// treated as already applied.
func (s *SQLiteStore) runMigrations(ctx context.Context) error {
	migrations := []struct {
		version int
		apply   string
		column  string
	}{
		{
			version: 2,
			apply:   `ALTER TABLE "references" ADD COLUMN notes TEXT`,
			column:  "notes",
		},
		{
			version: 3,
			apply:   `ALTER TABLE "references" ADD COLUMN status TEXT NOT NULL DEFAULT 'Not Finished'`,
			column:  "status",
		},
	}

	for _, m := range migrations {
		if _, err := s.db.ExecContext(ctx, m.apply); err != nil {
			if isDuplicateColumn(err) {
				continue
			}
			return fmt.Errorf("adding %s column to references: %w", m.column, err)
		}
		s.logger.Info("applied migration", "version", m.version, "column", m.column, "table", "references")
	}

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
		return fmt.Errorf("recording schema version: %w", err)
	}
	return nil
}

// isDuplicateColumn checks if the error is SQLite rejecting an existing column
func isDuplicateColumn(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate column name")
}

// isConstraintViolation checks if the error is a SQLite UNIQUE/PRIMARY KEY violation
func isConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "UNIQUE constraint failed") ||
		strings.Contains(errStr, "PRIMARY KEY constraint failed")
}

// isForeignKeyViolation checks if the error is a SQLite FOREIGN KEY violation
func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// Path returns the database location
func (s *SQLiteStore) Path() string {
	return s.path
}

// SchemaVersion returns the schema version recorded in the database
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// Inspect opens the database at path without creating it and runs a harmless
// query. It returns the schema version the file reports.
func Inspect(ctx context.Context, driver, path string) (int, error) {
	if driver == "" {
		driver = DriverModernc
	}
	if _, err := os.Stat(path); err != nil {
		return 0, err
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		return 0, fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	var v int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("querying database: %w", err)
	}
	return v, nil
}

// SnapshotTo writes a consistent copy of the database at src to dest with
// VACUUM INTO. The copy includes writes still held in the WAL and can be
// taken while other connections have the database open. dest must not exist.
func SnapshotTo(ctx context.Context, driver, src, dest string) error {
	if driver == "" {
		driver = DriverModernc
	}
	if _, err := os.Stat(src); err != nil {
		return err
	}

	db, err := sql.Open(driver, src)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	quoted := "'" + strings.ReplaceAll(dest, "'", "''") + "'"
	if _, err := db.ExecContext(ctx, "VACUUM INTO "+quoted); err != nil {
		return fmt.Errorf("snapshotting database: %w", err)
	}
	return nil
}

// ListProjects returns every project in insertion order
func (s *SQLiteStore) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, color FROM projects ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	projects := []Project{}
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Color); err != nil {
			return nil, fmt.Errorf("scanning project row: %w", err)
		}
		projects = append(projects, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating project rows: %w", err)
	}
	return projects, nil
}

// InsertProject creates a project.
// Returns ErrDuplicateID if the id is already taken.
func (s *SQLiteStore) InsertProject(ctx context.Context, p *Project) error {
	return insertProject(ctx, s.db, p)
}

// execer is satisfied by *sql.DB and *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertProject(ctx context.Context, db execer, p *Project) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO projects (id, name, color) VALUES (?, ?, ?)`,
		p.ID, p.Name, p.Color,
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateID
		}
		return fmt.Errorf("inserting project: %w", err)
	}
	return nil
}

// UpdateProject replaces name and color of an existing project.
// Returns ErrNotFound if the project doesn't exist.
func (s *SQLiteStore) UpdateProject(ctx context.Context, p *Project) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE projects SET name = ?, color = ? WHERE id = ?`,
		p.Name, p.Color, p.ID,
	)
	if err != nil {
		return fmt.Errorf("updating project: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("updated project", "id", p.ID)
	return nil
}

// DeleteProject deletes the project's references and then the project in
// one transaction. Nothing is deleted if either statement fails.
// Returns ErrNotFound if the project doesn't exist.
func (s *SQLiteStore) DeleteProject(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	refs, err := tx.ExecContext(ctx, `DELETE FROM "references" WHERE project_id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting project references: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing project delete: %w", err)
	}

	removed, _ := refs.RowsAffected()
	s.logger.Debug("deleted project", "id", id, "references_removed", removed)
	return nil
}

// ListReferences returns every reference in insertion order with authors
// and tags decoded.
func (s *SQLiteStore) ListReferences(ctx context.Context) ([]Reference, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, authors, year, journal, doi, abstract, tags,
		       priority, project_id, created_at, status, notes
		FROM "references"
		ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("querying references: %w", err)
	}
	defer func() { _ = rows.Close() }()

	refs := []Reference{}
	for rows.Next() {
		var r Reference
		var authorsJSON, tagsJSON, createdAtStr, status string
		var journal, doi, notes sql.NullString

		if err := rows.Scan(
			&r.ID,
			&r.Title,
			&authorsJSON,
			&r.Year,
			&journal,
			&doi,
			&r.Abstract,
			&tagsJSON,
			&r.Priority,
			&r.ProjectID,
			&createdAtStr,
			&status,
			&notes,
		); err != nil {
			return nil, fmt.Errorf("scanning reference row: %w", err)
		}

		r.Journal = journal.String
		r.DOI = doi.String
		r.Notes = notes.String
		r.Status = Status(status)

		if r.Authors, err = decodeList(authorsJSON); err != nil {
			return nil, fmt.Errorf("decoding authors of reference %s: %w", r.ID, err)
		}
		if r.Tags, err = decodeList(tagsJSON); err != nil {
			return nil, fmt.Errorf("decoding tags of reference %s: %w", r.ID, err)
		}

		r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at of reference %s: %w", r.ID, err)
		}

		refs = append(refs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating reference rows: %w", err)
	}
	return refs, nil
}

// InsertReference creates a reference.
// Returns ErrUnknownProject if ProjectID has no matching project and
// ErrDuplicateID if the id is already taken.
func (s *SQLiteStore) InsertReference(ctx context.Context, r *Reference) error {
	return insertReference(ctx, s.db, r)
}

func insertReference(ctx context.Context, db execer, r *Reference) error {
	authorsJSON, err := encodeList(r.Authors)
	if err != nil {
		return fmt.Errorf("encoding authors: %w", err)
	}
	tagsJSON, err := encodeList(r.Tags)
	if err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO "references" (
			id, title, authors, year, journal, doi, abstract, tags,
			priority, project_id, created_at, status, notes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID,
		r.Title,
		authorsJSON,
		r.Year,
		nullString(r.Journal),
		nullString(r.DOI),
		r.Abstract,
		tagsJSON,
		r.Priority,
		r.ProjectID,
		r.CreatedAt.UTC().Format(time.RFC3339Nano),
		statusOrDefault(r.Status),
		nullString(r.Notes),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrUnknownProject
		}
		if isConstraintViolation(err) {
			return ErrDuplicateID
		}
		return fmt.Errorf("inserting reference: %w", err)
	}
	return nil
}

// UpdateReference replaces every mutable field of an existing reference.
// created_at is never rewritten.
// Returns ErrNotFound if the reference doesn't exist.
func (s *SQLiteStore) UpdateReference(ctx context.Context, r *Reference) error {
	authorsJSON, err := encodeList(r.Authors)
	if err != nil {
		return fmt.Errorf("encoding authors: %w", err)
	}
	tagsJSON, err := encodeList(r.Tags)
	if err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE "references"
		SET title = ?, authors = ?, year = ?, journal = ?, doi = ?, abstract = ?,
		    tags = ?, priority = ?, project_id = ?, status = ?, notes = ?
		WHERE id = ?
	`,
		r.Title,
		authorsJSON,
		r.Year,
		nullString(r.Journal),
		nullString(r.DOI),
		r.Abstract,
		tagsJSON,
		r.Priority,
		r.ProjectID,
		statusOrDefault(r.Status),
		nullString(r.Notes),
		r.ID,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrUnknownProject
		}
		return fmt.Errorf("updating reference: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("updated reference", "id", r.ID)
	return nil
}

// DeleteReference removes a reference.
// Returns ErrNotFound if the reference doesn't exist.
func (s *SQLiteStore) DeleteReference(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM "references" WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting reference: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Counts returns the number of projects and references
func (s *SQLiteStore) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM projects), (SELECT COUNT(*) FROM "references")`,
	).Scan(&c.Projects, &c.References)
	if err != nil {
		return Counts{}, fmt.Errorf("counting rows: %w", err)
	}
	return c, nil
}

// Import inserts all projects and then all references in one transaction.
func (s *SQLiteStore) Import(ctx context.Context, data AppData) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := range data.Projects {
		if err := insertProject(ctx, tx, &data.Projects[i]); err != nil {
			return fmt.Errorf("importing project %s: %w", data.Projects[i].ID, err)
		}
	}
	for i := range data.References {
		if err := insertReference(ctx, tx, &data.References[i]); err != nil {
			return fmt.Errorf("importing reference %s: %w", data.References[i].ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing import: %w", err)
	}

	s.logger.Info("imported dataset", "projects", len(data.Projects), "references", len(data.References))
	return nil
}

// nullString returns nil for empty strings so optional columns store NULL
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func statusOrDefault(s Status) string {
	if s == "" {
		return string(StatusNotFinished)
	}
	return string(s)
}

// encodeList stores a string list as a JSON array; nil becomes []
func encodeList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeList(raw string) ([]string, error) {
	list := []string{}
	if raw == "" || raw == "null" {
		return list, nil
	}
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, err
	}
	return list, nil
}
