// ABOUTME: refs and tags subcommands for the refforge CLI
// ABOUTME: Filtered listing, add/edit/status/delete of references, and the tag index

package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/2389/refforge/internal/filter"
	"github.com/2389/refforge/internal/library"
	"github.com/2389/refforge/internal/store"
)

func cmdRefs(ctx context.Context, a *app, args []string) error {
	// Default to list; a leading flag also means list.
	subcmd := "list"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		subcmd = args[0]
		args = args[1:]
	}

	switch subcmd {
	case "list", "ls":
		return cmdRefsList(ctx, a, args)
	case "show":
		return cmdRefsShow(ctx, a, args)
	case "add", "create":
		return cmdRefsAdd(ctx, a, args)
	case "edit", "update":
		return cmdRefsEdit(ctx, a, args)
	case "status":
		return cmdRefsStatus(ctx, a, args)
	case "delete", "rm", "remove":
		return cmdRefsDelete(ctx, a, args)
	default:
		return fmt.Errorf("unknown refs subcommand: %s (use list, show, add, edit, status, delete)", subcmd)
	}
}

// visibleRefs loads the library and applies the filter flags in args.
func visibleRefs(ctx context.Context, a *app, parsed cliArgs) (*library.Snapshot, []store.Reference, error) {
	pred, err := parsed.predicate()
	if err != nil {
		return nil, nil, err
	}
	lib, err := a.library(ctx)
	if err != nil {
		return nil, nil, err
	}
	snap := lib.Snapshot()
	return snap, a.filters.Visible(snap.Version, &snap.Data, pred), nil
}

func cmdRefsList(ctx context.Context, a *app, args []string) error {
	parsed, err := parseArgs(args, refFlagAliases)
	if err != nil {
		return err
	}
	snap, refs, err := visibleRefs(ctx, a, parsed)
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	fmt.Fprintln(a.out)
	cyan.Fprintf(a.out, "  References (%d of %d)\n", len(refs), len(snap.Data.References))
	cyan.Fprintln(a.out, "  ----------")

	if len(refs) == 0 {
		fmt.Fprintln(a.out, "  (no matching references)")
		fmt.Fprintln(a.out)
		return nil
	}

	projects := make(map[string]string, len(snap.Data.Projects))
	for _, p := range snap.Data.Projects {
		projects[p.ID] = p.Name
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tTITLE\tAUTHORS\tYEAR\tPRIO\tPROJECT\tSTATUS\tTAGS")
	fmt.Fprintln(w, "  --\t-----\t-------\t----\t----\t-------\t------\t----")
	for _, r := range refs {
		project := projects[r.ProjectID]
		if project == "" {
			project = "-"
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			r.ID,
			truncate(r.Title, 40),
			truncate(authorSummary(r.Authors), 24),
			r.Year,
			stars(r.Priority),
			truncate(project, 20),
			r.Status,
			strings.Join(r.Tags, ", "),
		)
	}
	w.Flush()
	fmt.Fprintln(a.out)
	return nil
}

func cmdRefsShow(ctx context.Context, a *app, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: refs show <id>")
	}
	ref, snap, err := lookupRef(ctx, a, args[0])
	if err != nil {
		return err
	}

	yellow := color.New(color.FgYellow)
	fmt.Fprintln(a.out)
	color.New(color.FgCyan, color.Bold).Fprintf(a.out, "  %s\n", ref.Title)
	fmt.Fprintf(a.out, "  %s (%d)\n", strings.Join(ref.Authors, ", "), ref.Year)
	fmt.Fprintln(a.out)

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "  ID\t%s\n", ref.ID)
	if p, ok := snap.Data.Project(ref.ProjectID); ok {
		fmt.Fprintf(w, "  Project\t%s\n", p.Name)
	}
	if ref.Journal != "" {
		fmt.Fprintf(w, "  Journal\t%s\n", ref.Journal)
	}
	if ref.DOI != "" {
		fmt.Fprintf(w, "  DOI\t%s\n", ref.DOI)
	}
	fmt.Fprintf(w, "  Priority\t%s\n", stars(ref.Priority))
	fmt.Fprintf(w, "  Status\t%s\n", ref.Status)
	fmt.Fprintf(w, "  Tags\t%s\n", strings.Join(ref.Tags, ", "))
	fmt.Fprintf(w, "  Added\t%s\n", ref.CreatedAt.Local().Format("Jan 02 2006 15:04"))
	w.Flush()

	if ref.Abstract != "" {
		fmt.Fprintln(a.out)
		yellow.Fprintln(a.out, "  Abstract")
		fmt.Fprintf(a.out, "  %s\n", ref.Abstract)
	}
	if ref.Notes != "" {
		fmt.Fprintln(a.out)
		yellow.Fprintln(a.out, "  Notes")
		fmt.Fprintf(a.out, "  %s\n", strings.ReplaceAll(ref.Notes, "\n", "\n  "))
	}
	fmt.Fprintln(a.out)
	return nil
}

func cmdRefsAdd(ctx context.Context, a *app, args []string) error {
	parsed, err := parseArgs(args, map[string]string{"-p": "--project", "-t": "--tag", "-a": "--author"})
	if err != nil {
		return err
	}
	if parsed.get("title") == "" || len(parsed.flags["author"]) == 0 || parsed.get("project") == "" {
		return fmt.Errorf("usage: refs add --title <t> --author <name> [--author <name>...] --project <id> [--year --journal --doi --abstract --tag --priority --notes]")
	}

	ref := store.Reference{
		Title:     strings.TrimSpace(parsed.get("title")),
		Authors:   trimAll(parsed.flags["author"]),
		Journal:   parsed.get("journal"),
		DOI:       parsed.get("doi"),
		Abstract:  parsed.get("abstract"),
		Tags:      parsed.all("tag"),
		ProjectID: parsed.get("project"),
		Notes:     parsed.get("notes"),
	}
	if parsed.has("year") {
		if ref.Year, err = parsed.int("year"); err != nil {
			return err
		}
	}
	if parsed.has("priority") {
		if ref.Priority, err = parsed.int("priority"); err != nil {
			return err
		}
	}

	lib, err := a.library(ctx)
	if err != nil {
		return err
	}
	added, err := lib.AddReference(ctx, ref)
	if err != nil {
		return fmt.Errorf("adding reference: %w", err)
	}

	color.New(color.FgGreen).Fprintf(a.out, "✓ Added reference %s (%s)\n", added.Title, added.ID)
	return nil
}

// cmdRefsEdit changes only the fields given as flags. --tag replaces the
// whole tag list; pass --tag "" to clear it.
func cmdRefsEdit(ctx context.Context, a *app, args []string) error {
	parsed, err := parseArgs(args, map[string]string{"-p": "--project", "-t": "--tag", "-a": "--author"})
	if err != nil {
		return err
	}
	if len(parsed.positional) < 1 || len(parsed.flags) == 0 {
		return fmt.Errorf("usage: refs edit <id> [--title --author --year --journal --doi --abstract --tag --priority --project --notes]")
	}

	ref, _, err := lookupRef(ctx, a, parsed.positional[0])
	if err != nil {
		return err
	}

	for name := range parsed.flags {
		v := parsed.get(name)
		switch name {
		case "title":
			ref.Title = strings.TrimSpace(v)
		case "author":
			ref.Authors = trimAll(parsed.flags["author"])
		case "year":
			if ref.Year, err = parsed.int("year"); err != nil {
				return err
			}
		case "journal":
			ref.Journal = v
		case "doi":
			ref.DOI = v
		case "abstract":
			ref.Abstract = v
		case "tag":
			ref.Tags = parsed.all("tag")
		case "priority":
			if ref.Priority, err = parsed.int("priority"); err != nil {
				return err
			}
		case "project":
			ref.ProjectID = v
		case "notes":
			ref.Notes = v
		default:
			return fmt.Errorf("unknown flag --%s", name)
		}
	}

	if err := a.lib.UpdateReference(ctx, ref); err != nil {
		return fmt.Errorf("updating reference: %w", err)
	}

	color.New(color.FgGreen).Fprintf(a.out, "✓ Updated reference %s\n", ref.ID)
	return nil
}

func cmdRefsStatus(ctx context.Context, a *app, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: refs status <id> <finished|not-finished>")
	}
	status, err := parseStatus(strings.Join(args[1:], " "))
	if err != nil {
		return err
	}

	ref, _, err := lookupRef(ctx, a, args[0])
	if err != nil {
		return err
	}
	ref.Status = status
	if err := a.lib.UpdateReference(ctx, ref); err != nil {
		return fmt.Errorf("updating reference: %w", err)
	}

	color.New(color.FgGreen).Fprintf(a.out, "✓ Marked %s as %s\n", ref.ID, status)
	return nil
}

func cmdRefsDelete(ctx context.Context, a *app, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: refs delete <id>")
	}

	lib, err := a.library(ctx)
	if err != nil {
		return err
	}
	if err := lib.DeleteReference(ctx, args[0]); err != nil {
		return fmt.Errorf("deleting reference: %w", err)
	}

	color.New(color.FgGreen).Fprintf(a.out, "✓ Deleted reference %s\n", args[0])
	return nil
}

func cmdTags(ctx context.Context, a *app, args []string) error {
	parsed, err := parseArgs(args, refFlagAliases)
	if err != nil {
		return err
	}
	_, refs, err := visibleRefs(ctx, a, parsed)
	if err != nil {
		return err
	}

	counts := make(map[string]int)
	for _, r := range refs {
		for _, t := range r.Tags {
			counts[t]++
		}
	}

	cyan := color.New(color.FgCyan)
	fmt.Fprintln(a.out)
	cyan.Fprintln(a.out, "  Tags")
	cyan.Fprintln(a.out, "  ----")

	tags := filter.Tags(refs)
	if len(tags) == 0 {
		fmt.Fprintln(a.out, "  (no tags)")
		fmt.Fprintln(a.out)
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	for _, t := range tags {
		fmt.Fprintf(w, "  %s\t%d\n", t, counts[t])
	}
	w.Flush()
	fmt.Fprintln(a.out)
	return nil
}

// lookupRef loads the library and returns a copy of the reference with id.
func lookupRef(ctx context.Context, a *app, id string) (store.Reference, *library.Snapshot, error) {
	lib, err := a.library(ctx)
	if err != nil {
		return store.Reference{}, nil, err
	}
	snap := lib.Snapshot()
	ref, ok := snap.Data.Reference(id)
	if !ok {
		return store.Reference{}, nil, fmt.Errorf("reference %s: %w", id, library.ErrNotFound)
	}
	return ref.Clone(), snap, nil
}

// parseStatus accepts the stored spelling or a hyphenated/short form.
func parseStatus(s string) (store.Status, error) {
	switch strings.ToLower(strings.NewReplacer("-", " ", "_", " ").Replace(strings.TrimSpace(s))) {
	case "finished", "done", "read":
		return store.StatusFinished, nil
	case "not finished", "unfinished", "todo", "unread":
		return store.StatusNotFinished, nil
	default:
		return "", fmt.Errorf("status must be finished or not-finished, got %q", s)
	}
}

func authorSummary(authors []string) string {
	switch len(authors) {
	case 0:
		return ""
	case 1:
		return authors[0]
	default:
		return authors[0] + " et al."
	}
}

// stars renders a 0-5 priority; 0 shows as a dash.
func stars(n int) string {
	if n <= 0 {
		return "-"
	}
	if n > 5 {
		return strconv.Itoa(n)
	}
	return strings.Repeat("★", n)
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
