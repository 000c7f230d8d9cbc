// ABOUTME: projects subcommands for the refforge CLI
// ABOUTME: List, create, rename and delete projects through the library core

package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/2389/refforge/internal/library"
)

func cmdProjects(ctx context.Context, a *app, args []string) error {
	// Default to list
	subcmd := "list"
	if len(args) > 0 {
		subcmd = args[0]
		args = args[1:]
	}

	switch subcmd {
	case "list", "ls":
		return cmdProjectsList(ctx, a)
	case "add", "create":
		return cmdProjectsAdd(ctx, a, args)
	case "rename":
		return cmdProjectsRename(ctx, a, args)
	case "delete", "rm", "remove":
		return cmdProjectsDelete(ctx, a, args)
	default:
		return fmt.Errorf("unknown projects subcommand: %s (use list, add, rename, delete)", subcmd)
	}
}

func cmdProjectsList(ctx context.Context, a *app) error {
	lib, err := a.library(ctx)
	if err != nil {
		return err
	}
	data := lib.Snapshot().Data

	cyan := color.New(color.FgCyan)
	fmt.Fprintln(a.out)
	cyan.Fprintln(a.out, "  Projects")
	cyan.Fprintln(a.out, "  --------")

	if len(data.Projects) == 0 {
		fmt.Fprintln(a.out, "  (no projects)")
		fmt.Fprintln(a.out)
		return nil
	}

	counts := make(map[string]int)
	for _, r := range data.References {
		counts[r.ProjectID]++
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tNAME\tCOLOR\tREFS")
	fmt.Fprintln(w, "  --\t----\t-----\t----")
	for _, p := range data.Projects {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%d\n", p.ID, p.Name, p.Color, counts[p.ID])
	}
	w.Flush()
	fmt.Fprintln(a.out)
	return nil
}

func cmdProjectsAdd(ctx context.Context, a *app, args []string) error {
	parsed, err := parseArgs(args, map[string]string{"-c": "--color"})
	if err != nil {
		return err
	}
	name := strings.Join(parsed.positional, " ")
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("usage: projects add <name> [--color <css color>]")
	}

	lib, err := a.library(ctx)
	if err != nil {
		return err
	}
	p, err := lib.AddProject(ctx, name, parsed.get("color"))
	if err != nil {
		return fmt.Errorf("adding project: %w", err)
	}

	color.New(color.FgGreen).Fprintf(a.out, "✓ Created project %s (%s)\n", p.Name, p.ID)
	return nil
}

func cmdProjectsRename(ctx context.Context, a *app, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: projects rename <id> <name>")
	}
	id := args[0]
	name := strings.TrimSpace(strings.Join(args[1:], " "))

	lib, err := a.library(ctx)
	if err != nil {
		return err
	}
	snap := lib.Snapshot()
	p, ok := snap.Data.Project(id)
	if !ok {
		return fmt.Errorf("project %s: %w", id, library.ErrNotFound)
	}
	p.Name = name
	if err := lib.UpdateProject(ctx, p); err != nil {
		return fmt.Errorf("renaming project: %w", err)
	}

	color.New(color.FgGreen).Fprintf(a.out, "✓ Renamed project %s to %s\n", id, name)
	return nil
}

func cmdProjectsDelete(ctx context.Context, a *app, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: projects delete <id>")
	}
	id := args[0]

	lib, err := a.library(ctx)
	if err != nil {
		return err
	}
	removed := 0
	for _, r := range lib.Snapshot().Data.References {
		if r.ProjectID == id {
			removed++
		}
	}
	if err := lib.DeleteProject(ctx, id); err != nil {
		return fmt.Errorf("deleting project: %w", err)
	}

	color.New(color.FgGreen).Fprintf(a.out, "✓ Deleted project %s and %d references\n", id, removed)
	return nil
}

// truncate shortens s to max runes, marking the cut with an ellipsis.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
