// ABOUTME: Wires config, settings, backups and the library core for one CLI invocation
// ABOUTME: Also holds the small --flag parser shared by every subcommand

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/2389/refforge/internal/backup"
	"github.com/2389/refforge/internal/config"
	"github.com/2389/refforge/internal/filter"
	"github.com/2389/refforge/internal/library"
	"github.com/2389/refforge/internal/settings"
	"github.com/2389/refforge/internal/store"
)

// app is everything a subcommand needs. The library is opened lazily so
// settings commands work even when the database is unreachable.
type app struct {
	cfg        *config.Config
	configPath string
	logger     *slog.Logger
	logCloser  io.Closer
	out        io.Writer

	settings *settings.Manager
	backups  *backup.Manager
	filters  *filter.Cache

	lib *library.Core
}

func newApp(ctx context.Context, configPath, dataDir string, out io.Writer) (*app, error) {
	cfg, err := config.LoadOrDefault(configPath, dataDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger, closer := setupLogger(cfg.Logging, os.Stderr)

	var uploader backup.Uploader
	if cfg.Backup.S3.Enabled {
		s3u, err := backup.NewS3Uploader(ctx, cfg.Backup.S3)
		if err != nil {
			_ = closer.Close()
			return nil, fmt.Errorf("configuring backup mirror: %w", err)
		}
		uploader = s3u
	}
	backups := backup.New(backup.Options{
		Dir:      cfg.Backup.Dir,
		Driver:   cfg.Database.Driver,
		Uploader: uploader,
		Logger:   logger,
	})

	mgr := settings.NewManager(settings.Options{
		Persister:           settings.NewFileStore(cfg.Settings.Path),
		Backup:              backups,
		DefaultDatabasePath: cfg.Database.Path,
		Driver:              cfg.Database.Driver,
		Logger:              logger,
		ApplyTheme: func(t settings.Theme) {
			logger.Debug("theme changed", "theme", t)
		},
	})
	mgr.Load()

	return &app{
		cfg:        cfg,
		configPath: configPath,
		logger:     logger,
		logCloser:  closer,
		out:        out,
		settings:   mgr,
		backups:    backups,
		filters:    filter.NewCache(0),
	}, nil
}

// storeOpener returns the Opener for the configured backend. path is the
// committed database location from settings.
func storeOpener(cfg config.DatabaseConfig, path string, logger *slog.Logger) library.Opener {
	if cfg.Backend == config.BackendMemory {
		return func(ctx context.Context) (store.Store, error) {
			return store.NewMemoryStore(), nil
		}
	}
	return func(ctx context.Context) (store.Store, error) {
		s, err := store.Open(ctx, store.Options{Driver: cfg.Driver, Path: path, Logger: logger})
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// library opens and loads the reference library on first use. A store that
// can't be reached leaves the core degraded; commands still run against the
// fallback data and a warning is printed.
func (a *app) library(ctx context.Context) (*library.Core, error) {
	if a.lib != nil {
		return a.lib, nil
	}

	core := library.New(library.Options{
		Open:        storeOpener(a.cfg.Database, a.settings.DatabasePath(), a.logger),
		Seed:        a.cfg.Seed.Enabled,
		InitTimeout: a.cfg.Database.InitTimeout,
		Logger:      a.logger,
	})
	if err := core.Initialize(ctx); err != nil {
		if !errors.Is(err, library.ErrStoreUnavailable) {
			_ = core.Close()
			return nil, err
		}
		color.New(color.FgYellow).Fprintf(a.out, "! %v\n! changes made now will not be saved\n", err)
	}
	a.lib = core
	return core, nil
}

func (a *app) close() error {
	var err error
	if a.lib != nil {
		err = a.lib.Close()
	}
	if cerr := a.logCloser.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// cliArgs holds parsed --flag values and positional arguments.
type cliArgs struct {
	flags      map[string][]string
	positional []string
}

// parseArgs splits args into flags and positionals. Every flag takes a
// value, either as the next argument or after '='. aliases maps short names
// such as "-p" to their long form.
func parseArgs(args []string, aliases map[string]string) (cliArgs, error) {
	out := cliArgs{flags: make(map[string][]string)}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			out.positional = append(out.positional, args[i+1:]...)
			break
		}
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			out.positional = append(out.positional, arg)
			continue
		}

		name, value, hasValue := strings.Cut(arg, "=")
		if long, ok := aliases[name]; ok {
			name = long
		}
		name = strings.TrimLeft(name, "-")
		if !hasValue {
			if i+1 >= len(args) {
				return cliArgs{}, fmt.Errorf("flag --%s needs a value", name)
			}
			value = args[i+1]
			i++
		}
		out.flags[name] = append(out.flags[name], value)
	}
	return out, nil
}

// get returns the last value given for name.
func (c cliArgs) get(name string) string {
	v := c.flags[name]
	if len(v) == 0 {
		return ""
	}
	return v[len(v)-1]
}

func (c cliArgs) has(name string) bool {
	_, ok := c.flags[name]
	return ok
}

// all returns every value for name, splitting comma-separated lists.
func (c cliArgs) all(name string) []string {
	var out []string
	for _, v := range c.flags[name] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (c cliArgs) int(name string) (int, error) {
	v := c.get(name)
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("--%s must be a number, got %q", name, v)
	}
	return n, nil
}

// predicate builds a filter from --project --tag --priority --search.
func (c cliArgs) predicate() (filter.Predicate, error) {
	p := filter.Predicate{
		ProjectID: c.get("project"),
		Tags:      c.all("tag"),
		Search:    c.get("search"),
	}
	if c.has("priority") {
		n, err := c.int("priority")
		if err != nil {
			return filter.Predicate{}, err
		}
		if n < 0 || n > 5 {
			return filter.Predicate{}, fmt.Errorf("--priority must be between 0 and 5, got %d", n)
		}
		p.Priority = &n
	}
	return p, nil
}

// refFlagAliases are the short forms accepted by refs and export commands.
var refFlagAliases = map[string]string{
	"-p": "--project",
	"-t": "--tag",
	"-s": "--search",
	"-o": "--out",
}
