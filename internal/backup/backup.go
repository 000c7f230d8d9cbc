// ABOUTME: Timestamped database file backups with checksums and rotation
// ABOUTME: Snapshots the database through SQLite, records a blake2b-256 sidecar, prunes old copies and optionally mirrors offsite

package backup

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/2389/refforge/internal/store"
)

// Errors returned by Backup and Verify
var (
	ErrEmptyPath        = errors.New("database path cannot be empty")
	ErrSourceMissing    = errors.New("database file does not exist")
	ErrChecksumMismatch = errors.New("backup checksum mismatch")
)

const (
	timestampLayout = "20060102_150405"
	backupExt       = ".bak"
	checksumExt     = ".blake2b"
)

// Uploader mirrors a finished backup somewhere else.
type Uploader interface {
	Upload(ctx context.Context, name string, body io.Reader) error
}

// Options configures a Manager
type Options struct {
	Dir string

	// Driver is the sqlite driver used to read the source database.
	Driver string


	Uploader Uploader // optional
	Logger   *slog.Logger
	Now      func() time.Time
}

// Result describes one backup run
type Result struct {
	Path     string
	Checksum string // hex blake2b-256 of the backup file
	Pruned   []string

	// MirrorErr is set when the copy succeeded but the offsite upload didn't.
	Mirrored  bool
	MirrorErr error
}

// Manager writes backups into a single directory.
type Manager struct {
	dir      string
	driver   string
	uploader Uploader
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Manager.
func New(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		dir:      opts.Dir,
		driver:   opts.Driver,
		uploader: opts.Uploader,
		logger:   opts.Logger.With("component", "backup"),
		now:      opts.Now,
	}
}

// Dir returns the backup directory.
func (m *Manager) Dir() string {
	return m.dir
}

// Backup snapshots dbPath to <dir>/<file>_<YYYYMMDD_HHMMSS>.bak and keeps at
// most keep backups of that file; keep <= 0 disables pruning. The snapshot
// is taken through SQLite so it is consistent even while a store holds the
// database open in WAL mode.
func (m *Manager) Backup(ctx context.Context, dbPath string, keep int) (Result, error) {
	if dbPath == "" {
		return Result{}, ErrEmptyPath
	}
	if _, err := os.Stat(dbPath); err != nil {
		if os.IsNotExist(err) {
			return Result{}, fmt.Errorf("%w: %s", ErrSourceMissing, dbPath)
		}
		return Result{}, fmt.Errorf("checking database file: %w", err)
	}

	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return Result{}, fmt.Errorf("creating backup directory: %w", err)
	}

	base := filepath.Base(dbPath)
	dest := m.nextPath(base)

	if err := store.SnapshotTo(ctx, m.driver, dbPath, dest); err != nil {
		_ = os.Remove(dest)
		return Result{}, err
	}
	sum, err := Checksum(dest)
	if err != nil {
		return Result{}, fmt.Errorf("hashing backup: %w", err)
	}
	if err := os.WriteFile(dest+checksumExt, []byte(sum+"  "+filepath.Base(dest)+"\n"), 0644); err != nil {
		return Result{}, fmt.Errorf("writing checksum file: %w", err)
	}

	res := Result{Path: dest, Checksum: sum}
	m.logger.Info("database backed up", "source", dbPath, "backup", dest)

	if m.uploader != nil {
		if err := m.mirror(ctx, dest); err != nil {
			m.logger.Warn("backup mirror failed", "backup", dest, "error", err)
			res.MirrorErr = err
		} else {
			res.Mirrored = true
		}
	}

	if keep > 0 {
		pruned, err := m.rotate(base, keep)
		if err != nil {
			m.logger.Warn("pruning old backups failed", "error", err)
		}
		res.Pruned = pruned
	}

	return res, nil
}

// nextPath returns an unused backup path for base at the current time.
// Backups in the same second get a _NNN suffix so names still sort by age.
func (m *Manager) nextPath(base string) string {
	stamp := m.now().UTC().Format(timestampLayout)
	name := fmt.Sprintf("%s_%s", base, stamp)
	dest := filepath.Join(m.dir, name+backupExt)
	for i := 1; ; i++ {
		if _, err := os.Stat(dest); os.IsNotExist(err) {
			return dest
		}
		dest = filepath.Join(m.dir, fmt.Sprintf("%s_%03d%s", name, i, backupExt))
	}
}

func (m *Manager) mirror(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return m.uploader.Upload(ctx, filepath.Base(path), f)
}

// List returns the backups of the database file named base, newest first.
func (m *Manager) List(base string) ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	prefix := base + "_"
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, backupExt) {
			continue
		}
		names = append(names, name)
	}

	// Timestamped names sort chronologically.
	slices.Sort(names)
	slices.Reverse(names)

	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = filepath.Join(m.dir, n)
	}
	return paths, nil
}

// rotate deletes all but the newest keep backups of base.
func (m *Manager) rotate(base string, keep int) ([]string, error) {
	backups, err := m.List(base)
	if err != nil {
		return nil, err
	}
	if len(backups) <= keep {
		return nil, nil
	}

	var pruned []string
	for _, path := range backups[keep:] {
		if err := os.Remove(path); err != nil {
			m.logger.Warn("deleting old backup", "path", path, "error", err)
			continue
		}
		_ = os.Remove(path + checksumExt)
		m.logger.Debug("deleted old backup", "path", path)
		pruned = append(pruned, path)
	}
	return pruned, nil
}

// Checksum returns the hex blake2b-256 digest of the file at path.
func Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h, _ := blake2b.New256(nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify recomputes the checksum of a backup and compares it with the
// sidecar written by Backup.
func Verify(path string) error {
	raw, err := os.ReadFile(path + checksumExt)
	if err != nil {
		return fmt.Errorf("reading checksum file: %w", err)
	}
	fields := strings.Fields(string(raw))
	if len(fields) == 0 {
		return fmt.Errorf("empty checksum file for %s", path)
	}

	got, err := Checksum(path)
	if err != nil {
		return fmt.Errorf("hashing backup: %w", err)
	}
	if got != fields[0] {
		return fmt.Errorf("%w: %s", ErrChecksumMismatch, path)
	}
	return nil
}
