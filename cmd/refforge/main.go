// ABOUTME: Entry point for the refforge command line reference manager
// ABOUTME: Dispatches subcommands over the local library, settings, backups and exports

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
)

// Version is set at build time.
var version = "dev"

const banner = `
           __  __
 _ __ ___ / _|/ _| ___  _ __ __ _  ___
| '__/ _ \ |_| |_ / _ \| '__/ _' |/ _ \
| | |  __/  _|  _| (_) | | | (_| |  __/
|_|  \___|_| |_|  \___/|_|  \__, |\___|
                            |___/
`

// getConfigPath returns the path to the refforge config file.
// Priority: REFFORGE_CONFIG env var > XDG_CONFIG_HOME/refforge/config.yaml > ~/.config/refforge/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("REFFORGE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "refforge", "config.yaml")
}

// getDataPath returns the path to the refforge data directory.
// Priority: XDG_DATA_HOME/refforge > ~/.local/share/refforge
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "refforge")
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "help", "-h", "--help":
		printUsage()
		return
	case "version", "--version":
		fmt.Printf("refforge %s\n", version)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, getConfigPath(), getDataPath(), os.Stdout)
	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}

	err = run(ctx, a, cmd, args)
	if cerr := a.close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

// run dispatches one subcommand.
func run(ctx context.Context, a *app, cmd string, args []string) error {
	switch cmd {
	case "projects", "project":
		return cmdProjects(ctx, a, args)
	case "refs", "ref", "references":
		return cmdRefs(ctx, a, args)
	case "tags":
		return cmdTags(ctx, a, args)
	case "settings":
		return cmdSettings(ctx, a, args)
	case "backup", "backups":
		return cmdBackup(ctx, a, args)
	case "export":
		return cmdExport(ctx, a, args)
	case "status":
		return cmdStatus(ctx, a)
	default:
		return fmt.Errorf("unknown command: %s (run 'refforge help')", cmd)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: refforge <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  status                        Show store phase, counts and file locations")
	fmt.Println("  projects                      List projects")
	fmt.Println("  projects add <name>           Create a project (--color <css color>)")
	fmt.Println("  projects rename <id> <name>   Rename a project")
	fmt.Println("  projects delete <id>          Delete a project and its references")
	fmt.Println("  refs                          List references (--project --tag --priority --search)")
	fmt.Println("  refs show <id>                Show one reference")
	fmt.Println("  refs add                      Add a reference (--title --author --project ...)")
	fmt.Println("  refs edit <id>                Change reference fields")
	fmt.Println("  refs status <id> <status>     Mark a reference finished or not-finished")
	fmt.Println("  refs delete <id>              Delete a reference")
	fmt.Println("  tags                          List every tag in use (--project)")
	fmt.Println("  settings                      Show committed settings")
	fmt.Println("  settings set <field> <value>  Change one or more settings and apply them")
	fmt.Println("  settings test [path]          Check that a database file is usable")
	fmt.Println("  settings reset                Restore default settings")
	fmt.Println("  backup                        Back up the database now")
	fmt.Println("  backup list                   List backups, newest first")
	fmt.Println("  backup verify <file>          Check a backup against its checksum")
	fmt.Println("  export bibtex                 Write BibTeX (--out <file>, filters as refs)")
	fmt.Println("  export html                   Write an HTML reading list (--out <file> --title <t>)")
	fmt.Println()
	yellow.Println("Settings fields:")
	fmt.Println("  database_path  theme  backup_enabled  max_backups")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  REFFORGE_CONFIG          Config file (default: ~/.config/refforge/config.yaml)")
	fmt.Println("  XDG_DATA_HOME            Data directory root (default: ~/.local/share)")
	fmt.Println()
	yellow.Println("Examples:")
	fmt.Println("  refforge refs --tag transformers --search attention")
	fmt.Println("  refforge refs add --title 'Deep Learning' --author 'Y. LeCun' --year 2015 --project 1")
	fmt.Println("  refforge settings set database_path ~/papers/refforge.db")
	fmt.Println("  refforge export html --out reading-list.html")
	fmt.Println()
}
