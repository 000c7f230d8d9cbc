// ABOUTME: settings subcommands for the refforge CLI
// ABOUTME: Shows, edits, tests and resets preferences through the settings manager

package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/2389/refforge/internal/settings"
)

func cmdSettings(ctx context.Context, a *app, args []string) error {
	subcmd := "show"
	if len(args) > 0 {
		subcmd = args[0]
		args = args[1:]
	}

	switch subcmd {
	case "show", "list":
		return cmdSettingsShow(a)
	case "set":
		return cmdSettingsSet(ctx, a, args)
	case "test":
		return cmdSettingsTest(ctx, a, args)
	case "reset":
		return cmdSettingsReset(ctx, a)
	default:
		return fmt.Errorf("unknown settings subcommand: %s (use show, set, test, reset)", subcmd)
	}
}

func cmdSettingsShow(a *app) error {
	s := a.settings.Committed()

	cyan := color.New(color.FgCyan)
	fmt.Fprintln(a.out)
	cyan.Fprintln(a.out, "  Settings")
	cyan.Fprintln(a.out, "  --------")

	dbPath := a.settings.DatabasePath()
	if s.DatabasePath == nil {
		dbPath += " (default)"
	}
	verified := "never"
	if s.LastVerified != nil {
		verified = s.LastVerified.Local().Format("Jan 02 2006 15:04")
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "  %s\t%s\n", settings.FieldDatabasePath, dbPath)
	fmt.Fprintf(w, "  %s\t%s\n", settings.FieldTheme, s.Theme)
	fmt.Fprintf(w, "  %s\t%t\n", settings.FieldBackupEnabled, s.BackupEnabled)
	fmt.Fprintf(w, "  %s\t%d\n", settings.FieldMaxBackups, s.MaxBackups)
	fmt.Fprintf(w, "  last_verified\t%s\n", verified)
	fmt.Fprintf(w, "  file\t%s\n", a.cfg.Settings.Path)
	w.Flush()
	fmt.Fprintln(a.out)
	return nil
}

// cmdSettingsSet stages every field=value pair in a draft, tests a changed
// database path, then applies the draft as one change.
func cmdSettingsSet(ctx context.Context, a *app, args []string) error {
	if len(args) == 0 || len(args)%2 != 0 {
		return fmt.Errorf("usage: settings set <field> <value> [<field> <value>...]")
	}

	a.settings.OpenEditor()
	defer a.settings.Close()

	for i := 0; i < len(args); i += 2 {
		if err := a.settings.Edit(args[i], args[i+1]); err != nil {
			return err
		}
	}

	draft, _ := a.settings.Draft()
	newPath := draft.DatabaseLocation(a.cfg.Database.Path)
	if newPath != a.settings.DatabasePath() {
		res := a.settings.TestConnection(ctx, newPath)
		if err := res.Err(); err != nil {
			return err
		}
		color.New(color.FgGreen).Fprintf(a.out, "✓ %s\n", res.Message)
	}

	return applySettings(ctx, a)
}

func cmdSettingsTest(ctx context.Context, a *app, args []string) error {
	path := a.settings.DatabasePath()
	if len(args) > 0 {
		path = args[0]
	}

	res := a.settings.TestConnection(ctx, path)
	if !res.Valid {
		return res.Err()
	}
	color.New(color.FgGreen).Fprintf(a.out, "✓ %s\n", res.Message)
	return nil
}

func cmdSettingsReset(ctx context.Context, a *app) error {
	a.settings.OpenEditor()
	defer a.settings.Close()

	d := settings.Defaults()
	for field, value := range map[string]string{
		settings.FieldDatabasePath:  "",
		settings.FieldTheme:         string(d.Theme),
		settings.FieldBackupEnabled: fmt.Sprint(d.BackupEnabled),
		settings.FieldMaxBackups:    fmt.Sprint(d.MaxBackups),
	} {
		if err := a.settings.Edit(field, value); err != nil {
			return err
		}
	}
	return applySettings(ctx, a)
}

func applySettings(ctx context.Context, a *app) error {
	res, err := a.settings.Apply(ctx)
	if err != nil {
		return err
	}

	if res.Backup != nil {
		fmt.Fprintf(a.out, "  previous database backed up to %s\n", res.Backup.Path)
	}
	if res.Warning != nil {
		color.New(color.FgYellow).Fprintf(a.out, "! %v\n", res.Warning)
	}
	color.New(color.FgGreen).Fprintln(a.out, "✓ Settings saved")
	return nil
}
