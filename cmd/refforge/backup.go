// ABOUTME: backup, export and status subcommands for the refforge CLI
// ABOUTME: Manual backups with checksum verification, BibTeX/HTML export and a status summary

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/2389/refforge/internal/backup"
	"github.com/2389/refforge/internal/config"
	"github.com/2389/refforge/internal/export"
	"github.com/2389/refforge/internal/library"
	"github.com/2389/refforge/internal/store"
)

func cmdBackup(ctx context.Context, a *app, args []string) error {
	subcmd := "run"
	if len(args) > 0 {
		subcmd = args[0]
		args = args[1:]
	}

	switch subcmd {
	case "run", "now":
		return cmdBackupRun(ctx, a)
	case "list", "ls":
		return cmdBackupList(a)
	case "verify":
		return cmdBackupVerify(a, args)
	default:
		return fmt.Errorf("unknown backup subcommand: %s (use run, list, verify)", subcmd)
	}
}

func cmdBackupRun(ctx context.Context, a *app) error {
	s := a.settings.Committed()
	res, err := a.backups.Backup(ctx, a.settings.DatabasePath(), s.MaxBackups)
	if err != nil {
		return fmt.Errorf("backing up: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Fprintf(a.out, "✓ Backed up to %s\n", res.Path)
	fmt.Fprintf(a.out, "  blake2b-256 %s\n", res.Checksum)
	if len(res.Pruned) > 0 {
		fmt.Fprintf(a.out, "  pruned %d old backup(s)\n", len(res.Pruned))
	}
	switch {
	case res.Mirrored:
		green.Fprintln(a.out, "✓ Mirrored offsite")
	case res.MirrorErr != nil:
		color.New(color.FgYellow).Fprintf(a.out, "! offsite mirror failed: %v\n", res.MirrorErr)
	}
	return nil
}

func cmdBackupList(a *app) error {
	base := filepath.Base(a.settings.DatabasePath())
	paths, err := a.backups.List(base)
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	fmt.Fprintln(a.out)
	cyan.Fprintf(a.out, "  Backups in %s\n", a.backups.Dir())
	cyan.Fprintln(a.out, "  -------")

	if len(paths) == 0 {
		fmt.Fprintln(a.out, "  (no backups)")
		fmt.Fprintln(a.out)
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  FILE\tSIZE\tMODIFIED")
	fmt.Fprintln(w, "  ----\t----\t--------")
	for _, p := range paths {
		size, modified := "?", "?"
		if fi, err := os.Stat(p); err == nil {
			size = humanSize(fi.Size())
			modified = fi.ModTime().Format("Jan 02 15:04")
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\n", filepath.Base(p), size, modified)
	}
	w.Flush()
	fmt.Fprintln(a.out)
	return nil
}

func cmdBackupVerify(a *app, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: backup verify <file>")
	}
	path := args[0]
	if !strings.ContainsRune(path, filepath.Separator) {
		path = filepath.Join(a.backups.Dir(), path)
	}

	if err := backup.Verify(path); err != nil {
		return err
	}
	color.New(color.FgGreen).Fprintf(a.out, "✓ %s matches its checksum\n", filepath.Base(path))
	return nil
}

func cmdExport(ctx context.Context, a *app, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: export <bibtex|html> [--out <file>] [--project --tag --priority --search]")
	}
	format := args[0]
	if format != "bibtex" && format != "html" {
		return fmt.Errorf("unknown export format: %s (use bibtex, html)", format)
	}

	parsed, err := parseArgs(args[1:], refFlagAliases)
	if err != nil {
		return err
	}
	snap, refs, err := visibleRefs(ctx, a, parsed)
	if err != nil {
		return err
	}

	var w io.Writer = a.out
	out := parsed.get("out")
	var f *os.File
	if out != "" && out != "-" {
		if f, err = os.Create(out); err != nil {
			return fmt.Errorf("creating %s: %w", out, err)
		}
		w = f
	}

	switch format {
	case "bibtex":
		err = export.WriteBibTeX(w, refs)
	case "html":
		title := parsed.get("title")
		if title == "" {
			title = "Reading List"
		}
		err = export.WriteHTML(w, title, snap.Data.Projects, refs, time.Now())
	}

	if f != nil {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if err == nil {
			color.New(color.FgGreen).Fprintf(a.out, "✓ Exported %d references to %s\n", len(refs), out)
		}
	}
	return err
}

func cmdStatus(ctx context.Context, a *app) error {
	lib, err := a.library(ctx)
	if err != nil {
		return err
	}
	view := lib.View()
	dbPath := a.settings.DatabasePath()

	cyan := color.New(color.FgCyan)
	fmt.Fprintln(a.out)
	cyan.Fprintln(a.out, "  RefForge Status")
	cyan.Fprintln(a.out, "  ---------------")

	phase := view.Phase.String()
	switch view.Phase {
	case library.PhaseReady:
		phase = color.GreenString(phase)
	case library.PhaseDegraded:
		phase = color.YellowString(phase)
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "  Phase\t%s\n", phase)
	fmt.Fprintf(w, "  Pending sync\t%d\n", view.PendingSync)
	fmt.Fprintf(w, "  Projects\t%d\n", len(view.Data.Projects))
	fmt.Fprintf(w, "  References\t%d\n", len(view.Data.References))
	fmt.Fprintf(w, "  Backend\t%s\n", a.cfg.Database.Backend)
	fmt.Fprintf(w, "  Database\t%s\n", dbPath)
	if a.cfg.Database.Backend != config.BackendMemory {
		if v, err := store.Inspect(ctx, a.cfg.Database.Driver, dbPath); err == nil {
			fmt.Fprintf(w, "  Schema version\t%d (supported %d)\n", v, store.SchemaVersion)
		} else if !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(w, "  Schema version\tunknown (%v)\n", err)
		}
	}
	fmt.Fprintf(w, "  Settings\t%s\n", a.cfg.Settings.Path)
	fmt.Fprintf(w, "  Config\t%s\n", a.configPath)
	fmt.Fprintf(w, "  Backups\t%s\n", a.backups.Dir())
	w.Flush()
	fmt.Fprintln(a.out)
	return nil
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
