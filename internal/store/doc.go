// Package store provides persistent storage for RefForge projects and references.
//
// # Architecture
//
// The Store interface is the only way the library core touches persisted
// data. Two implementations exist and are selected by configuration:
//
//   - SQLiteStore: the relational store, using modernc.org/sqlite (driver
//     "sqlite", default) or mattn/go-sqlite3 (driver "sqlite3", cgo)
//   - MemoryStore: an in-memory store with the same ordering, foreign key and
//     cascade semantics, used by tests, the "memory" backend and offline mode
//
// # Data Models
//
//   - Project: id, name, color
//   - Reference: bibliographic entry owned by exactly one project
//   - AppData: the full {projects, references} aggregate
//
// Authors and tags are stored as JSON arrays. The store encodes on write and
// decodes on read, so callers only ever see []string.
//
// # Schema
//
//	projects(id PK, name, color)
//	"references"(id PK, title, authors JSON, year, journal NULL, doi NULL,
//	             abstract, tags JSON, priority, project_id FK, created_at,
//	             status, notes NULL)
//
// Version 1 creates both tables. Later versions only add columns (notes,
// status). ALTER TABLE failures caused by an existing column are ignored, so
// opening a database repeatedly is idempotent. The applied version is kept in
// PRAGMA user_version.
//
// # Error Handling
//
//   - ErrNotFound: update or delete of an id that does not exist
//   - ErrDuplicateID: insert with an id that is already taken
//   - ErrUnknownProject: reference written against a missing project
//
// DeleteProject removes the project's references and the project row in a
// single transaction; a failure in either statement rolls back both.
//
// # Testing
//
// Use NewMemoryStore() for unit tests. FailOn injects errors per operation.
// Use NewSQLiteStore(filepath.Join(t.TempDir(), "test.db")) for integration
// tests with real SQLite.
package store
