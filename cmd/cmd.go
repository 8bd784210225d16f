// Package cmd provides CLI command implementations for Bricklift.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"

	"github.com/bricklift/bricklift/internal/assets"
	"github.com/bricklift/bricklift/internal/corpus"
	"github.com/bricklift/bricklift/internal/migration"
	"github.com/bricklift/bricklift/internal/spatial"
	"github.com/bricklift/bricklift/internal/storage"
	"github.com/bricklift/bricklift/internal/templates"
	"github.com/bricklift/bricklift/mcp"
)

// Version is set at build time via ldflags.
var Version = "dev"

// workDirName holds the store under the corpus root.
const workDirName = ".bricklift"

// libraryDirName is the shared template library under the corpus root.
const libraryDirName = "library"

// ImportCmd loads an asset tree into the store.
type ImportCmd struct {
	Path string `arg:"" optional:"" default:"." help:"Path to asset tree"`
}

// Run executes the import command.
func (c *ImportCmd) Run() error {
	ctx := context.Background()
	root, err := filepath.Abs(c.Path)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("accessing %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", root)
	}

	color.Green("Importing %s", root)

	workDir := filepath.Join(root, workDirName)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("creating %s directory: %w", workDirName, err)
	}

	store := storage.NewBadgerStore()
	if err := store.Initialize(filepath.Join(workDir, "badger"), false); err != nil {
		return fmt.Errorf("initializing store: %w", err)
	}
	defer func() { _ = store.Close() }()

	patterns, err := corpus.LoadIgnoreFile(root)
	if err != nil {
		patterns = nil // Continue without gitignore
	}

	entries, err := corpus.WalkAssets(root, patterns)
	if err != nil {
		return fmt.Errorf("walking asset tree: %w", err)
	}

	var composites, scenes int
	for i, entry := range entries {
		fmt.Printf("\r\033[KImporting assets: %s (%.0f%%)",
			entry.RelPath, float64(i)/float64(len(entries))*100)
		if err := store.Save(ctx, entry.Asset); err != nil {
			return fmt.Errorf("storing %s: %w", entry.RelPath, err)
		}
		if entry.Asset.IsScene() {
			scenes++
		} else {
			composites++
		}
	}
	fmt.Println() // Newline after progress

	color.Green("\n✓ Import complete")
	fmt.Printf("  Composite assets:  %d\n", composites)
	fmt.Printf("  Scenes:            %d\n", scenes)

	return nil
}

// CheckCmd reports whether the stored corpus needs migration.
type CheckCmd struct{}

// Run executes the check command.
func (c *CheckCmd) Run() error {
	ctx := context.Background()
	store, err := loadStore(true)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	version, err := store.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	fmt.Printf("Stored schema version:   %d\n", version)
	fmt.Printf("Current schema version:  %d\n", assets.CurrentSchemaVersion)

	if version == assets.CurrentSchemaVersion {
		color.Green("✓ Corpus is up to date")
	} else {
		color.Yellow("Migration needed. Run 'bricklift migrate'")
	}

	return nil
}

// MigrateCmd runs the migration pipeline over the stored corpus.
type MigrateCmd struct {
	Yes bool `short:"y" help:"Skip the confirmation prompt"`
}

// Run executes the migrate command.
func (c *MigrateCmd) Run() error {
	store, err := loadStore(false)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	root, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	res, err := runMigration(context.Background(), store, root, c.Yes)
	if err != nil {
		return fmt.Errorf("running migration: %w", err)
	}
	fmt.Println() // Newline after progress

	switch {
	case res.UpToDate:
		color.Green("✓ Corpus already at schema version %d", assets.CurrentSchemaVersion)
	case res.Declined:
		fmt.Println("Aborted")
	default:
		color.Green("\n✓ Migration complete")
		fmt.Printf("  Templates restamped:  %d\n", res.TemplatesRestamped)
		fmt.Printf("  Composite assets:     %d\n", res.Composites)
		fmt.Printf("  Scenes:               %d\n", res.Scenes)
		fmt.Printf("  Assets changed:       %d\n", res.AssetsChanged)
		fmt.Printf("  Duration:             %.2fs\n", res.DurationSecs)
	}

	return nil
}

// ExportCmd writes stored assets back out as JSON files.
type ExportCmd struct {
	Path string `arg:"" optional:"" default:"." help:"Destination directory"`
}

// Run executes the export command.
func (c *ExportCmd) Run() error {
	ctx := context.Background()
	store, err := loadStore(true)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	dest, err := filepath.Abs(c.Path)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}

	paths, err := store.List(ctx, "")
	if err != nil {
		return fmt.Errorf("enumerating store: %w", err)
	}

	exported := 0
	for _, path := range paths {
		a, err := store.Load(ctx, path)
		if err != nil {
			return fmt.Errorf("loading %s: %w", path, err)
		}

		outPath := filepath.Join(dest, filepath.FromSlash(path))
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return fmt.Errorf("creating directory for %s: %w", path, err)
		}

		data, err := json.MarshalIndent(a, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding %s: %w", path, err)
		}
		data = append(data, '\n')
		if err := os.WriteFile(outPath, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		exported++
	}

	color.Green("✓ Exported %d assets to %s", exported, dest)
	return nil
}

// WatchCmd re-imports changed assets and re-runs the gate check.
type WatchCmd struct {
	Path string `arg:"" optional:"" default:"." help:"Path to asset tree"`
}

// Run executes the watch command.
func (c *WatchCmd) Run() error {
	root, err := filepath.Abs(c.Path)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}

	store, err := loadStore(false)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	fmt.Println("## Watch Mode")
	fmt.Printf("Watching %s for asset changes (Ctrl+C to stop)\n\n", root)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle Ctrl+C
	go func() {
		<-osSignalChannel()
		fmt.Println("\nStopping watch mode...")
		cancel()
	}()

	onBatch := func(ctx context.Context, changed []string) error {
		fmt.Printf("Detected %d changed assets\n", len(changed))
		if err := reimport(ctx, store, root, changed); err != nil {
			return err
		}

		res, err := runMigration(ctx, store, root, true)
		if err != nil {
			return err
		}
		if res != nil && !res.UpToDate {
			fmt.Println()
			color.Green("✓ Re-migrated %d assets", res.AssetsChanged)
		}
		return nil
	}

	err = corpus.WatchAssets(ctx, root, onBatch)
	if err != nil && err != context.Canceled {
		return fmt.Errorf("watch error: %w", err)
	}

	fmt.Println("Watch mode stopped.")
	return nil
}

// StatusCmd shows store statistics for the current corpus.
type StatusCmd struct{}

// Run executes the status command.
func (c *StatusCmd) Run() error {
	ctx := context.Background()
	store, err := loadStore(true)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	version, err := store.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	paths, err := store.List(ctx, "")
	if err != nil {
		return fmt.Errorf("enumerating store: %w", err)
	}

	var composites, scenes int
	for _, path := range paths {
		if corpus.IsReserved(path) {
			continue
		}
		switch {
		case strings.HasSuffix(path, assets.ExtComposite):
			composites++
		case strings.HasSuffix(path, assets.ExtScene):
			scenes++
		}
	}

	active, err := store.ActiveScene(ctx)
	if err != nil {
		return fmt.Errorf("reading active scene: %w", err)
	}

	fmt.Println("Corpus status")
	fmt.Printf("  Schema version:    %d (current: %d)\n", version, assets.CurrentSchemaVersion)
	fmt.Printf("  Composite assets:  %d\n", composites)
	fmt.Printf("  Scenes:            %d\n", scenes)
	if active != "" {
		fmt.Printf("  Active scene:      %s\n", active)
	}
	if version != assets.CurrentSchemaVersion {
		color.Yellow("  Migration needed")
	}

	return nil
}

// CleanCmd deletes the store for the current corpus.
type CleanCmd struct {
	Force bool `short:"f" help:"Skip confirmation"`
}

// Run executes the clean command.
func (c *CleanCmd) Run() error {
	root, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	workDir := filepath.Join(root, workDirName)
	if _, err := os.Stat(workDir); os.IsNotExist(err) {
		return fmt.Errorf("no store found at %s. Nothing to clean", root)
	}

	if !c.Force {
		fmt.Printf("Delete store at %s? [y/N] ", workDir)
		var response string
		_, _ = fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted")
			return nil
		}
	}

	if err := os.RemoveAll(workDir); err != nil {
		return fmt.Errorf("deleting store: %w", err)
	}

	color.Green("Deleted %s", workDir)
	return nil
}

// MCPCmd starts the MCP server.
type MCPCmd struct{}

// Run executes the mcp command.
func (c *MCPCmd) Run() error {
	ctx := context.Background()
	store, err := loadStore(true)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	server := mcp.NewServer(store)

	// Note: No output to stderr - MCP server uses stdio for JSON-RPC only
	return server.Run(ctx, os.Stdin, os.Stdout)
}

// Helper functions

// osSignalChannel returns a channel that receives OS signals for graceful shutdown.
func osSignalChannel() <-chan os.Signal {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	return sigChan
}

func loadStore(readOnly bool) (*storage.BadgerStore, error) {
	root, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting working directory: %w", err)
	}

	dbPath := filepath.Join(root, workDirName, "badger")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("no asset store found at %s. Run 'bricklift import' first", root)
	}

	store := storage.NewBadgerStore()
	if err := store.Initialize(dbPath, readOnly); err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}

	return store, nil
}

// runMigration builds a coordinator over the store and the corpus library
// and runs it, printing inline progress.
func runMigration(ctx context.Context, store storage.AssetStore, root string, yes bool) (*migration.Result, error) {
	var confirm migration.Confirm
	if !yes {
		confirm = terminalConfirm{}
	}

	coordinator := migration.NewCoordinator(migration.Config{
		Store:   store,
		Library: templates.NewLibraryFactory(filepath.Join(root, libraryDirName)),
		Query:   spatial.NewQuery(),
		Confirm: confirm,
		Progress: func(title, message string, fraction float64) {
			fmt.Printf("\r\033[K%s: %s (%.0f%%)", title, message, fraction*100)
		},
	})

	return coordinator.Run(ctx)
}

// reimport reloads a batch of changed asset files into the store. Files
// deleted on disk are removed from the store.
func reimport(ctx context.Context, store storage.AssetStore, root string, changed []string) error {
	for _, relPath := range changed {
		fullPath := filepath.Join(root, filepath.FromSlash(relPath))

		content, err := os.ReadFile(fullPath)
		if os.IsNotExist(err) {
			if err := store.Delete(ctx, relPath); err != nil {
				return fmt.Errorf("removing %s: %w", relPath, err)
			}
			continue
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", relPath, err)
		}

		var a assets.Asset
		if err := json.Unmarshal(content, &a); err != nil {
			fmt.Fprintf(os.Stderr, "Skipping %s: %v\n", relPath, err)
			continue
		}
		a.Path = relPath

		if err := store.Save(ctx, &a); err != nil {
			return fmt.Errorf("storing %s: %w", relPath, err)
		}
	}
	return nil
}

// terminalConfirm prompts on the terminal before a migration run.
type terminalConfirm struct{}

// Proceed implements migration.Confirm. Answering "a" proceeds and
// remembers the decision for this schema version.
func (terminalConfirm) Proceed(from, to int) (proceed, remember bool) {
	fmt.Printf("Migrate corpus from schema version %d to %d? [y/N/a(lways)] ", from, to)
	var response string
	_, _ = fmt.Scanln(&response)
	switch strings.ToLower(strings.TrimSpace(response)) {
	case "y", "yes":
		return true, false
	case "a", "always":
		return true, true
	default:
		return false, false
	}
}

// CLI is the root Kong command structure.
type CLI struct {
	Version kong.VersionFlag `help:"Show version information"`
	Verbose bool             `short:"v" help:"Enable verbose output"`
	Quiet   bool             `short:"q" help:"Suppress non-essential output"`

	// Commands
	Import  ImportCmd  `cmd:"" help:"Load an asset tree into the store"`
	Check   CheckCmd   `cmd:"" help:"Report whether the corpus needs migration"`
	Migrate MigrateCmd `cmd:"" help:"Migrate the corpus to the current schema version"`
	Export  ExportCmd  `cmd:"" help:"Write stored assets back out as JSON files"`
	Watch   WatchCmd   `cmd:"" help:"Watch an asset tree and re-migrate on changes"`
	Status  StatusCmd  `cmd:"" help:"Show store statistics"`
	Clean   CleanCmd   `cmd:"" help:"Delete the store for the current corpus"`
	MCP     MCPCmd     `cmd:"" help:"Start MCP server (stdio transport)"`
}

// NewCLI creates a new CLI instance.
func NewCLI() *CLI {
	return &CLI{}
}

// Execute parses command-line arguments and executes the selected command.
func (c *CLI) Execute(args []string) error {
	kongCtx := kong.Parse(c,
		kong.Name("bricklift"),
		kong.Description("Schema migration engine for brick assembly assets"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": Version,
		},
	)

	return kongCtx.Run()
}
