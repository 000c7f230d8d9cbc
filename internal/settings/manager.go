// ABOUTME: Draft/committed settings editor with connection testing and backup-before-relocate
// ABOUTME: Committed settings change only through Apply; edits stay in the draft until then

package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/2389/refforge/internal/backup"
	"github.com/2389/refforge/internal/store"
)

// Errors reported by the Manager
var (
	// ErrValidationFailed wraps a draft that failed validation or a database
	// path that failed the connection test.
	ErrValidationFailed = errors.New("settings validation failed")

	// ErrBackupFailed is carried as a warning in ApplyResult; Apply still commits.
	ErrBackupFailed = errors.New("backup failed")

	// ErrNoEditor is returned when editing without an open draft.
	ErrNoEditor = errors.New("settings editor is not open")
)

// Backuper backs up a database file before it is replaced.
type Backuper interface {
	Backup(ctx context.Context, dbPath string, keep int) (backup.Result, error)
}

// ValidationResult reports whether a database path is usable.
type ValidationResult struct {
	Valid   bool
	Message string
}

// Err returns nil for a valid result and an ErrValidationFailed otherwise.
func (v ValidationResult) Err() error {
	if v.Valid {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrValidationFailed, v.Message)
}

// ApplyResult describes a successful Apply.
type ApplyResult struct {
	Settings Settings

	// BackupAttempted is true when the database path changed with backups enabled.
	BackupAttempted bool
	Backup          *backup.Result

	// Warning is set (wrapping ErrBackupFailed) when the backup failed.
	Warning error
}

// Options configures a Manager
type Options struct {
	Persister Persister
	Backup    Backuper // optional; nil skips backups

	// ApplyTheme is called with the committed theme after every Apply.
	ApplyTheme func(Theme)

	// DefaultDatabasePath is used when DatabasePath is nil.
	DefaultDatabasePath string

	// Driver is the sqlite driver used by TestConnection.
	Driver string

	Logger *slog.Logger
	Now    func() time.Time
}

// Manager holds the committed settings and an optional draft.
type Manager struct {
	mu        sync.Mutex
	opts      Options
	logger    *slog.Logger
	committed Settings
	draft     *Settings
}

// NewManager returns a Manager holding Defaults until Load is called.
func NewManager(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		opts:      opts,
		logger:    opts.Logger.With("component", "settings"),
		committed: Defaults(),
	}
}

// Load reads the committed settings. Any read or validation failure falls
// back to Defaults; the failure is logged, not returned.
func (m *Manager) Load() Settings {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.opts.Persister.Load()
	switch {
	case errors.Is(err, os.ErrNotExist):
		m.logger.Info("no settings file, using defaults")
		s = Defaults()
	case err != nil:
		m.logger.Warn("failed to load settings, using defaults", "error", err)
		s = Defaults()
	default:
		if verr := s.Validate(); verr != nil {
			m.logger.Warn("stored settings are invalid, using defaults", "error", verr)
			s = Defaults()
		}
	}

	m.committed = s
	return s.Clone()
}

// Committed returns a copy of the committed settings.
func (m *Manager) Committed() Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.committed.Clone()
}

// Draft returns a copy of the draft and whether an editor is open.
func (m *Manager) Draft() (Settings, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.draft == nil {
		return Settings{}, false
	}
	return m.draft.Clone(), true
}

// DatabasePath returns the committed database location.
func (m *Manager) DatabasePath() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.committed.DatabaseLocation(m.opts.DefaultDatabasePath)
}

// OpenEditor starts a draft copied from the committed settings.
func (m *Manager) OpenEditor() Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.committed.Clone()
	m.draft = &d
	return d.Clone()
}

// Edit changes one draft field. Committed settings are untouched.
func (m *Manager) Edit(field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.draft == nil {
		return ErrNoEditor
	}
	return m.draft.Set(field, value)
}

// Cancel discards draft edits by copying the committed settings back.
func (m *Manager) Cancel() {
	m.reset()
}

// Reset discards draft edits; the editor stays open.
func (m *Manager) Reset() {
	m.reset()
}

func (m *Manager) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.committed.Clone()
	m.draft = &d
}

// Close drops the draft.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.draft = nil
}

// TestConnection checks that path names an existing, readable SQLite
// database. Nothing is created or modified. A valid result for the draft's
// current path stamps the draft's LastVerified.
func (m *Manager) TestConnection(ctx context.Context, path string) ValidationResult {
	res := m.inspect(ctx, path)
	if !res.Valid {
		return res
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.draft != nil && m.draft.DatabaseLocation(m.opts.DefaultDatabasePath) == path {
		now := m.opts.Now().UTC()
		m.draft.LastVerified = &now
	}
	return res
}

func (m *Manager) inspect(ctx context.Context, path string) ValidationResult {
	if path == "" {
		return ValidationResult{Valid: false, Message: "Database path cannot be empty"}
	}

	version, err := store.Inspect(ctx, m.opts.Driver, path)
	if err != nil {
		if os.IsNotExist(err) {
			return ValidationResult{Valid: false, Message: fmt.Sprintf("Database file does not exist: %s", path)}
		}
		return ValidationResult{Valid: false, Message: fmt.Sprintf("Cannot open database: %v", err)}
	}
	if version > store.SchemaVersion {
		return ValidationResult{Valid: false, Message: fmt.Sprintf("Database schema version %d is newer than supported version %d", version, store.SchemaVersion)}
	}
	return ValidationResult{Valid: true, Message: "Database is valid and accessible"}
}

// Apply validates the draft and commits it. If the database location
// changed and the committed settings have backups enabled, the committed
// database is backed up exactly once first; a failed backup becomes
// ApplyResult.Warning and doesn't stop the commit. On error the committed
// settings are unchanged and the draft is kept.
func (m *Manager) Apply(ctx context.Context) (ApplyResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.draft == nil {
		return ApplyResult{}, ErrNoEditor
	}
	next := m.draft.Clone()
	if err := next.Validate(); err != nil {
		return ApplyResult{}, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	var res ApplyResult
	oldPath := m.committed.DatabaseLocation(m.opts.DefaultDatabasePath)
	newPath := next.DatabaseLocation(m.opts.DefaultDatabasePath)

	if oldPath != newPath && m.committed.BackupEnabled && m.opts.Backup != nil {
		res.BackupAttempted = true
		b, err := m.opts.Backup.Backup(ctx, oldPath, m.committed.MaxBackups)
		if err != nil {
			res.Warning = fmt.Errorf("%w: %w", ErrBackupFailed, err)
			m.logger.Warn("backup of previous database failed, continuing", "path", oldPath, "error", err)
		} else {
			res.Backup = &b
			m.logger.Info("previous database backed up", "path", oldPath, "backup", b.Path)
		}
	}

	if err := m.opts.Persister.Save(next); err != nil {
		return ApplyResult{}, fmt.Errorf("saving settings: %w", err)
	}

	m.committed = next
	d := next.Clone()
	m.draft = &d

	if m.opts.ApplyTheme != nil {
		m.opts.ApplyTheme(next.Theme)
	}

	m.logger.Info("settings applied", "database_path", newPath, "theme", next.Theme)
	res.Settings = next.Clone()
	return res, nil
}
