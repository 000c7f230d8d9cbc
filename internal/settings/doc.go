// Package settings manages the RefForge preferences record.
//
// The Manager keeps two copies: the committed settings (persisted, in effect)
// and a draft opened by OpenEditor. Edit, TestConnection, Cancel and Reset
// only touch the draft. Apply validates the draft, backs up the current
// database when its location changes and backups are enabled, persists the
// draft through a Persister and applies the theme.
//
// FileStore persists the record as TOML:
//
//	version = 1
//	database_path = "/home/me/papers/refforge.db"
//	theme = "dark"
//	backup_enabled = true
//	max_backups = 10
package settings
