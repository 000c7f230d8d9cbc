// Package config handles configuration loading for refforge.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from REFFORGE_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/refforge/config.yaml
//  3. ~/.config/refforge/config.yaml
//
// A missing file is not an error; LoadOrDefault falls back to Default.
// Files ending in .toml are parsed as TOML, anything else as YAML.
//
// # Environment Variable Expansion
//
// Values can reference environment variables, optionally defined in a .env
// file next to the config file or in the working directory:
//
//	backup:
//	  s3:
//	    secret_key: "${REFFORGE_S3_SECRET}"
//
// # Configuration Sections
//
//	database:
//	  backend: "sqlite"      # sqlite, memory
//	  driver: "sqlite"       # sqlite (pure Go), sqlite3 (cgo)
//	  path: "~/.local/share/refforge/refforge.db"
//	  init_timeout: "10s"
//
//	settings:
//	  path: "~/.local/share/refforge/settings.toml"
//
//	backup:
//	  dir: "~/.local/share/refforge/backups"
//	  s3:
//	    enabled: false
//	    bucket: "refforge-backups"
//	    region: "us-east-1"
//	    endpoint: ""          # S3-compatible endpoint
//	    prefix: "refforge/"
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//	  file: ""        # rotated log file, optional
//
//	seed:
//	  enabled: true   # write sample data into an empty database
package config
