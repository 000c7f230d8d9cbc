// ABOUTME: Tests for the refforge CLI
// ABOUTME: Covers flag parsing, logging setup and end-to-end commands against a temp data directory

package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/refforge/internal/config"
	"github.com/2389/refforge/internal/library"
	"github.com/2389/refforge/internal/settings"
	"github.com/2389/refforge/internal/store"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func newTestApp(t *testing.T) (*app, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("logging:\n  level: error\n"), 0644))

	var out bytes.Buffer
	a, err := newApp(context.Background(), cfgPath, dir, &out)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.close() })
	return a, &out
}

func TestParseArgs(t *testing.T) {
	parsed, err := parseArgs(
		[]string{"thesis", "-t", "AI", "--tag=Ethics,Healthcare", "--priority", "3", "notes", "--", "--literal"},
		refFlagAliases,
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"thesis", "notes", "--literal"}, parsed.positional)
	assert.Equal(t, []string{"AI", "Ethics", "Healthcare"}, parsed.all("tag"))
	assert.Equal(t, "3", parsed.get("priority"))
	assert.True(t, parsed.has("priority"))
	assert.False(t, parsed.has("search"))
	assert.Equal(t, "", parsed.get("search"))
}

func TestParseArgs_MissingValue(t *testing.T) {
	_, err := parseArgs([]string{"--project"}, nil)
	assert.Error(t, err)
}

func TestPredicate(t *testing.T) {
	parsed, err := parseArgs([]string{"-p", "proj-1", "--priority", "4", "-s", "deep"}, refFlagAliases)
	require.NoError(t, err)

	p, err := parsed.predicate()
	require.NoError(t, err)
	assert.Equal(t, "proj-1", p.ProjectID)
	require.NotNil(t, p.Priority)
	assert.Equal(t, 4, *p.Priority)
	assert.Equal(t, "deep", p.Search)

	for _, bad := range []string{"six", "9", "-1"} {
		parsed, err := parseArgs([]string{"--priority", bad}, nil)
		require.NoError(t, err)
		_, err = parsed.predicate()
		assert.Error(t, err, bad)
	}
}

func TestParseStatus(t *testing.T) {
	for in, want := range map[string]store.Status{
		"finished":     store.StatusFinished,
		"Finished":     store.StatusFinished,
		"not-finished": store.StatusNotFinished,
		"Not Finished": store.StatusNotFinished,
		"todo":         store.StatusNotFinished,
	} {
		got, err := parseStatus(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := parseStatus("halfway")
	assert.Error(t, err)
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "-", stars(0))
	assert.Equal(t, "★★★", stars(3))
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "abcd...", truncate("abcdefghij", 7))
	assert.Equal(t, "512 B", humanSize(512))
	assert.Equal(t, "1.5 KiB", humanSize(1536))
	assert.Equal(t, "A. Author et al.", authorSummary([]string{"A. Author", "B. Author"}))
}

func TestColorHandler(t *testing.T) {
	var buf bytes.Buffer
	h := &colorHandler{out: &buf, mu: &sync.Mutex{}, level: slog.LevelInfo}
	logger := slog.New(h).With("component", "library").WithGroup("op")

	logger.Debug("hidden")
	logger.Warn("dropping pending mutation", "target", "ref-1")

	line := buf.String()
	assert.NotContains(t, line, "hidden")
	assert.Contains(t, line, "WRN dropping pending mutation")
	assert.Contains(t, line, "component=library")
	assert.Contains(t, line, "op.target=ref-1")
}

func TestSetupLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "refforge.log")
	logger, closer := setupLogger(config.LoggingConfig{Level: "debug", Format: "json", File: path, MaxSizeMB: 1}, os.Stderr)

	logger.Debug("written to file", "k", "v")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"written to file"`)
}

func TestUnknownCommand(t *testing.T) {
	a, _ := newTestApp(t)
	assert.Error(t, run(context.Background(), a, "frobnicate", nil))
	assert.Error(t, run(context.Background(), a, "refs", []string{"frobnicate"}))
}

func TestProjectsAndRefs(t *testing.T) {
	ctx := context.Background()
	a, out := newTestApp(t)

	require.NoError(t, run(ctx, a, "projects", []string{"add", "Systems", "Reading", "--color", "#336699"}))
	assert.Contains(t, out.String(), "Created project Systems Reading")

	data := a.lib.Snapshot().Data
	require.Len(t, data.Projects, 4, "three seeded projects plus the new one")
	newID := data.Projects[3].ID

	require.NoError(t, run(ctx, a, "refs", []string{"add",
		"--title", "Paxos Made Simple",
		"--author", "Leslie Lamport",
		"--year", "2001",
		"--project", newID,
		"--tag", "Consensus,Distributed",
		"--priority", "5",
	}))

	out.Reset()
	require.NoError(t, run(ctx, a, "refs", []string{"--tag", "Consensus"}))
	assert.Contains(t, out.String(), "Paxos Made Simple")
	assert.Contains(t, out.String(), "References (1 of 6)")
	assert.NotContains(t, out.String(), "Deep Learning for Health")

	require.NoError(t, run(ctx, a, "projects", []string{"rename", newID, "Distributed", "Systems"}))
	p, ok := a.lib.Snapshot().Data.Project(newID)
	require.True(t, ok)
	assert.Equal(t, "Distributed Systems", p.Name)

	require.NoError(t, run(ctx, a, "projects", []string{"delete", newID}))
	data = a.lib.Snapshot().Data
	assert.Len(t, data.Projects, 3)
	assert.Len(t, data.References, 5)
}

// listedID returns the first column of the listing row containing needle.
func listedID(t *testing.T, listing, needle string) string {
	t.Helper()
	for _, line := range strings.Split(listing, "\n") {
		if strings.Contains(line, needle) {
			fields := strings.Fields(line)
			require.NotEmpty(t, fields)
			return fields[0]
		}
	}
	t.Fatalf("no row containing %q in:\n%s", needle, listing)
	return ""
}

func TestListedIDsWorkInOtherCommands(t *testing.T) {
	ctx := context.Background()
	a, out := newTestApp(t)

	require.NoError(t, run(ctx, a, "projects", []string{"add", "Compilers"}))
	require.NoError(t, run(ctx, a, "refs", []string{"add", "--title", "Dragon Book", "--author", "Aho", "--project", "proj-1"}))

	out.Reset()
	require.NoError(t, run(ctx, a, "projects", nil))
	projectID := listedID(t, out.String(), "Compilers")
	assert.NotContains(t, projectID, "...")

	require.NoError(t, run(ctx, a, "projects", []string{"rename", projectID, "Language", "Tools"}))
	p, ok := a.lib.Snapshot().Data.Project(projectID)
	require.True(t, ok)
	assert.Equal(t, "Language Tools", p.Name)

	out.Reset()
	require.NoError(t, run(ctx, a, "refs", []string{"--search", "Dragon"}))
	refID := listedID(t, out.String(), "Dragon Book")
	assert.NotContains(t, refID, "...")

	require.NoError(t, run(ctx, a, "refs", []string{"status", refID, "finished"}))
	ref, ok := a.lib.Snapshot().Data.Reference(refID)
	require.True(t, ok)
	assert.Equal(t, store.StatusFinished, ref.Status)
}

func TestRefsEditAndStatus(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestApp(t)

	require.NoError(t, run(ctx, a, "refs", []string{"status", "ref-1", "finished"}))
	require.NoError(t, run(ctx, a, "refs", []string{"edit", "ref-1", "--priority", "2", "--tag", "Reviewed"}))

	ref, ok := a.lib.Snapshot().Data.Reference("ref-1")
	require.True(t, ok)
	assert.Equal(t, store.StatusFinished, ref.Status)
	assert.Equal(t, 2, ref.Priority)
	assert.Equal(t, []string{"Reviewed"}, ref.Tags)
	assert.Equal(t, "Deep Learning for Health Informatics", ref.Title)

	err := run(ctx, a, "refs", []string{"status", "ref-404", "finished"})
	assert.ErrorIs(t, err, library.ErrNotFound)

	require.NoError(t, run(ctx, a, "refs", []string{"delete", "ref-1"}))
	_, ok = a.lib.Snapshot().Data.Reference("ref-1")
	assert.False(t, ok)
}

func TestTags(t *testing.T) {
	a, out := newTestApp(t)

	require.NoError(t, run(context.Background(), a, "tags", []string{"--project", "proj-1"}))
	assert.Contains(t, out.String(), "Healthcare")
	assert.Contains(t, out.String(), "EHR")
	assert.NotContains(t, out.String(), "Quantum")
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestApp(t)
	dir := t.TempDir()

	bib := filepath.Join(dir, "refs.bib")
	require.NoError(t, run(ctx, a, "export", []string{"bibtex", "--out", bib, "--tag", "Healthcare"}))
	data, err := os.ReadFile(bib)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "@article{"))

	html := filepath.Join(dir, "list.html")
	require.NoError(t, run(ctx, a, "export", []string{"html", "-o", html, "--title", "Thesis"}))
	data, err = os.ReadFile(html)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Thesis")
	assert.Contains(t, string(data), "Quantum Computing")

	assert.Error(t, run(ctx, a, "export", []string{"pdf"}))
}

func TestSettingsSetAndReset(t *testing.T) {
	ctx := context.Background()
	a, out := newTestApp(t)

	require.NoError(t, run(ctx, a, "settings", []string{"set", "theme", "dark", "max_backups", "4"}))
	assert.Contains(t, out.String(), "Settings saved")
	assert.Equal(t, settings.ThemeDark, a.settings.Committed().Theme)
	assert.Equal(t, 4, a.settings.Committed().MaxBackups)

	_, err := os.Stat(a.cfg.Settings.Path)
	require.NoError(t, err)

	assert.Error(t, run(ctx, a, "settings", []string{"set", "theme"}))
	assert.Error(t, run(ctx, a, "settings", []string{"set", "colour", "blue"}))

	require.NoError(t, run(ctx, a, "settings", []string{"reset"}))
	assert.Equal(t, settings.Defaults().Theme, a.settings.Committed().Theme)
	assert.Equal(t, 10, a.settings.Committed().MaxBackups)
}

func TestSettingsSet_RejectsMissingDatabase(t *testing.T) {
	a, _ := newTestApp(t)

	err := run(context.Background(), a, "settings", []string{"set", "database_path", filepath.Join(t.TempDir(), "nope.db")})
	require.ErrorIs(t, err, settings.ErrValidationFailed)
	assert.Nil(t, a.settings.Committed().DatabasePath)
}

func TestSettingsTest(t *testing.T) {
	ctx := context.Background()
	a, out := newTestApp(t)

	// Opening the library creates the default database file.
	require.NoError(t, run(ctx, a, "status", nil))
	require.NoError(t, run(ctx, a, "settings", []string{"test"}))
	assert.Contains(t, out.String(), "Database is valid and accessible")

	assert.Error(t, run(ctx, a, "settings", []string{"test", filepath.Join(t.TempDir(), "missing.db")}))
}

func TestBackupCommands(t *testing.T) {
	ctx := context.Background()
	a, out := newTestApp(t)

	require.NoError(t, run(ctx, a, "status", nil))
	require.NoError(t, a.lib.Close())
	a.lib = nil

	require.NoError(t, run(ctx, a, "backup", nil))
	assert.Contains(t, out.String(), "Backed up to")

	paths, err := a.backups.List("refforge.db")
	require.NoError(t, err)
	require.Len(t, paths, 1)

	require.NoError(t, run(ctx, a, "backup", []string{"verify", filepath.Base(paths[0])}))
	require.NoError(t, run(ctx, a, "backup", []string{"list"}))
	assert.Contains(t, out.String(), filepath.Base(paths[0]))
}

func TestStatus_Degraded(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("not a directory"), 0644))

	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := "logging:\n  level: error\ndatabase:\n  path: " + filepath.Join(blocker, "refforge.db") + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0644))

	var out bytes.Buffer
	a, err := newApp(context.Background(), cfgPath, dir, &out)
	require.NoError(t, err)
	defer a.close()

	require.NoError(t, run(context.Background(), a, "status", nil))
	assert.Contains(t, out.String(), "will not be saved")
	assert.Contains(t, out.String(), "degraded")
	assert.Equal(t, library.PhaseDegraded, a.lib.Phase())
	assert.Len(t, a.lib.Snapshot().Data.References, 5, "fallback data is the seed set")
}

func TestMemoryBackend(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("logging:\n  level: error\ndatabase:\n  backend: memory\n"), 0644))

	var out bytes.Buffer
	a, err := newApp(context.Background(), cfgPath, dir, &out)
	require.NoError(t, err)
	defer a.close()

	require.NoError(t, run(context.Background(), a, "status", nil))
	assert.Equal(t, library.PhaseReady, a.lib.Phase())
	assert.Contains(t, out.String(), "memory")
	_, err = os.Stat(filepath.Join(dir, "refforge.db"))
	assert.True(t, os.IsNotExist(err))
}
