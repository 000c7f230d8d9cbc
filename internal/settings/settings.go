// ABOUTME: Versioned user preferences record for refforge
// ABOUTME: Defaults, validation, deep copies and string-keyed field edits

package settings

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// CurrentVersion is the settings schema version written by this build.
const CurrentVersion = 1

// Theme is the UI color scheme
type Theme string

// Supported themes
const (
	ThemeSystem Theme = "system"
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
)

// Field names accepted by Set and Manager.Edit
const (
	FieldDatabasePath  = "database_path"
	FieldTheme         = "theme"
	FieldBackupEnabled = "backup_enabled"
	FieldMaxBackups    = "max_backups"
)

// ErrUnknownField is returned by Set for a field name it doesn't know.
var ErrUnknownField = errors.New("unknown settings field")

// Settings is the persisted preferences record.
// A nil DatabasePath means "use the default location".
type Settings struct {
	Version       int        `toml:"version" validate:"min=1"`
	DatabasePath  *string    `toml:"database_path,omitempty"`
	Theme         Theme      `toml:"theme" validate:"oneof=system light dark"`
	LastVerified  *time.Time `toml:"last_verified,omitempty"`
	BackupEnabled bool       `toml:"backup_enabled"`
	MaxBackups    int        `toml:"max_backups" validate:"min=1"`
}

// Defaults returns the built-in settings used on first run or when the
// stored record can't be read.
func Defaults() Settings {
	return Settings{
		Version:       CurrentVersion,
		Theme:         ThemeSystem,
		BackupEnabled: true,
		MaxBackups:    10,
	}
}

// Clone returns a deep copy.
func (s Settings) Clone() Settings {
	if s.DatabasePath != nil {
		p := *s.DatabasePath
		s.DatabasePath = &p
	}
	if s.LastVerified != nil {
		t := *s.LastVerified
		s.LastVerified = &t
	}
	return s
}

// DatabaseLocation returns DatabasePath, or def when it is unset.
func (s Settings) DatabaseLocation(def string) string {
	if s.DatabasePath == nil || *s.DatabasePath == "" {
		return def
	}
	return *s.DatabasePath
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (s *Settings) Validate() error {
	return validate.Struct(s)
}

// Set parses value and assigns it to the named field. An empty database_path
// resets it to the default location.
func (s *Settings) Set(field, value string) error {
	switch field {
	case FieldDatabasePath:
		value = strings.TrimSpace(value)
		if value == "" {
			s.DatabasePath = nil
		} else {
			s.DatabasePath = &value
		}
	case FieldTheme:
		t := Theme(strings.ToLower(strings.TrimSpace(value)))
		switch t {
		case ThemeSystem, ThemeLight, ThemeDark:
			s.Theme = t
		default:
			return fmt.Errorf("theme must be system, light or dark, got %q", value)
		}
	case FieldBackupEnabled:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("backup_enabled: %w", err)
		}
		s.BackupEnabled = b
	case FieldMaxBackups:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("max_backups: %w", err)
		}
		if n < 1 {
			return fmt.Errorf("max_backups must be at least 1, got %d", n)
		}
		s.MaxBackups = n
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return nil
}
