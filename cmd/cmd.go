// Package cmd provides CLI command implementations for invfind.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"

	"github.com/pangraphs/invfind/internal/analysis"
	"github.com/pangraphs/invfind/internal/detect"
	"github.com/pangraphs/invfind/internal/report"
	"github.com/pangraphs/invfind/internal/storage"
	"github.com/pangraphs/invfind/mcp"
)

// Version is set at build time via ldflags.
var Version = "dev"

// storeDirName is the run store directory created beside the GFA.
const storeDirName = ".invfind"

// CallCmd analyzes a graph and prints the collated inversion table.
type CallCmd struct {
	GFA     string   `arg:"" type:"existingfile" help:"GFA file to analyze"`
	Ref     string   `short:"r" required:"" env:"INVFIND_REF" help:"Reference path name or PanSN assembly prefix"`
	Exclude []string `short:"x" help:"Path name or assembly prefix to leave out (repeatable)"`
	MinLen  int      `env:"INVFIND_MIN_LEN" help:"Drop calls shorter than this many bases"`
	Bed     string   `type:"path" help:"Also write the calls as BED5 to this file"`
	Out     string   `short:"o" type:"path" help:"Write the table to this file instead of stdout"`
	NoStore bool     `help:"Skip persisting the run"`
	Store   string   `type:"path" help:"Run store directory (default .invfind beside the GFA)"`
	Workers int      `short:"j" env:"INVFIND_WORKERS" help:"Concurrent query pipelines (0 = one per CPU)"`
	MaxRun  int      `default:"50000" help:"Abandon candidate runs above this many nodes"`
	HighMem int      `default:"5000" help:"Largest window searched with the exact quadratic table"`
}

func (c *CallCmd) options() detect.Options {
	opts := detect.DefaultOptions()
	opts.MaxRunLength = c.MaxRun
	opts.HighMemLimit = c.HighMem
	opts.MinSpan = c.MinLen
	opts.Workers = c.Workers
	opts.Exclude = c.Exclude
	return opts
}

// Run executes the call command.
func (c *CallCmd) Run() error {
	ctx := context.Background()
	gfaPath, err := filepath.Abs(c.GFA)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}

	var (
		store    storage.Store
		storeDir string
	)
	if !c.NoStore {
		storeDir = resolveStoreDir(gfaPath, c.Store)
		if err := os.MkdirAll(storeDir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", storeDir, err)
		}
		bs := storage.NewBadgerStore()
		if err := bs.Initialize(filepath.Join(storeDir, "badger"), false); err != nil {
			return fmt.Errorf("initializing storage: %w", err)
		}
		defer func() { _ = bs.Close() }()
		store = bs
	}

	// Progress goes to stderr so the table pipes cleanly.
	progress := func(phase string, pct float64) {
		fmt.Fprintf(os.Stderr, "\r\033[K%s (%.0f%%)", phase, pct*100)
	}

	res, err := analysis.Run(ctx, analysis.Request{
		GFA:       gfaPath,
		Reference: c.Ref,
		Options:   c.options(),
		Store:     store,
		Progress:  progress,
	})
	fmt.Fprint(os.Stderr, "\r\033[K")
	if err != nil {
		return err
	}

	if storeDir != "" {
		if err := writeRunMeta(storeDir, res.Meta); err != nil {
			return err
		}
	}

	var out io.Writer = os.Stdout
	if c.Out != "" {
		f, err := os.Create(c.Out)
		if err != nil {
			return fmt.Errorf("creating %s: %w", c.Out, err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}
	if err := report.WriteTSV(out, res.Set); err != nil {
		return err
	}

	if c.Bed != "" {
		f, err := os.Create(c.Bed)
		if err != nil {
			return fmt.Errorf("creating %s: %w", c.Bed, err)
		}
		if err := report.WriteBED(f, res.Set); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("closing %s: %w", c.Bed, err)
		}
	}

	printDiagnostics(res.Set.Diagnostics)
	color.New(color.FgGreen).Fprintf(color.Error, "✓ Analyzed %d queries against %s: %d rows in %.2fs\n",
		len(res.Meta.Queries), res.Meta.Reference, len(res.Set.Rows), float64(res.Meta.ElapsedMS)/1000)

	return nil
}

// ReportCmd prints the table from the stored run.
type ReportCmd struct {
	Path   string `arg:"" optional:"" default:"." help:"GFA file or directory holding the run store"`
	Store  string `type:"path" help:"Run store directory"`
	Region string `help:"Only rows overlapping start..end (1-based, inclusive)"`
	Bed    bool   `help:"Write BED5 instead of the table"`
}

// Run executes the report command.
func (c *ReportCmd) Run() error {
	ctx := context.Background()
	store, err := openStoredRun(c.Path, c.Store)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	meta, err := store.Meta(ctx)
	if err != nil {
		return err
	}

	var start, end int64
	if c.Region != "" {
		start, end, err = parseRegion(c.Region)
		if err != nil {
			return err
		}
	}

	rows, err := store.RowRange(ctx, start, end)
	if err != nil {
		return err
	}

	rs := &detect.ResultSet{Reference: meta.Reference, Queries: meta.Queries, Rows: rows}
	if c.Bed {
		return report.WriteBED(os.Stdout, rs)
	}
	return report.WriteTSV(os.Stdout, rs)
}

// StatsCmd shows stored graph and run statistics.
type StatsCmd struct {
	Path  string `arg:"" optional:"" default:"." help:"GFA file or directory holding the run store"`
	Store string `type:"path" help:"Run store directory"`
	JSON  bool   `help:"Emit machine-readable JSON"`
}

// Run executes the stats command.
func (c *StatsCmd) Run() error {
	ctx := context.Background()
	store, err := openStoredRun(c.Path, c.Store)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	meta, err := store.Meta(ctx)
	if err != nil {
		return err
	}
	diags, err := store.Diagnostics(ctx)
	if err != nil {
		return err
	}

	if c.JSON {
		payload := struct {
			storage.RunMeta
			Diagnostics int `json:"diagnostics"`
		}{meta, len(diags)}
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling stats: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Run of %s\n", meta.GFA)
	fmt.Printf("  Reference:    %s\n", meta.Reference)
	fmt.Printf("  Queries:      %d\n", len(meta.Queries))
	fmt.Printf("  Rows:         %d\n", meta.Rows)
	fmt.Printf("  Diagnostics:  %d\n", len(diags))
	fmt.Printf("  Nodes:        %d\n", meta.Stats.Nodes)
	fmt.Printf("  Paths:        %d\n", meta.Stats.Paths)
	fmt.Printf("  Steps:        %d\n", meta.Stats.Steps)
	fmt.Printf("  Bases:        %d\n", meta.Stats.Bases)
	fmt.Printf("  Analyzed:     %s\n", meta.CreatedAt.Format(time.RFC3339))
	fmt.Printf("  Duration:     %.2fs\n", float64(meta.ElapsedMS)/1000)

	return nil
}

// PathsCmd lists analyzed paths grouped by assembly.
type PathsCmd struct {
	Path  string `arg:"" optional:"" default:"." help:"GFA file or directory holding the run store"`
	Store string `type:"path" help:"Run store directory"`
}

// Run executes the paths command.
func (c *PathsCmd) Run() error {
	ctx := context.Background()
	store, err := openStoredRun(c.Path, c.Store)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	meta, err := store.Meta(ctx)
	if err != nil {
		return err
	}
	queries, err := store.Queries(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Reference: %s\n\n", meta.Reference)

	byAssembly := make(map[string][]detect.QueryResult)
	var order []string
	for _, q := range queries {
		a := assemblyOf(q.Path)
		if _, seen := byAssembly[a]; !seen {
			order = append(order, a)
		}
		byAssembly[a] = append(byAssembly[a], q)
	}

	for _, a := range order {
		fmt.Printf("%s\n", a)
		for _, q := range byAssembly[a] {
			fmt.Printf("  %s  shared=%d  calls=%d\n", q.Path, q.Shared, len(q.Intervals))
		}
	}

	return nil
}

// WatchCmd reruns detection whenever the GFA changes.
type WatchCmd struct {
	GFA     string   `arg:"" type:"existingfile" help:"GFA file to watch"`
	Ref     string   `short:"r" required:"" env:"INVFIND_REF" help:"Reference path name or PanSN assembly prefix"`
	Exclude []string `short:"x" help:"Path name or assembly prefix to leave out (repeatable)"`
	MinLen  int      `env:"INVFIND_MIN_LEN" help:"Drop calls shorter than this many bases"`
	NoStore bool     `help:"Skip persisting runs"`
	Store   string   `type:"path" help:"Run store directory (default .invfind beside the GFA)"`
	Workers int      `short:"j" env:"INVFIND_WORKERS" help:"Concurrent query pipelines (0 = one per CPU)"`
}

func (c *WatchCmd) options() detect.Options {
	opts := detect.DefaultOptions()
	opts.MinSpan = c.MinLen
	opts.Workers = c.Workers
	opts.Exclude = c.Exclude
	return opts
}

// Run executes the watch command.
func (c *WatchCmd) Run() error {
	gfaPath, err := filepath.Abs(c.GFA)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}

	var store storage.Store
	if !c.NoStore {
		dir := resolveStoreDir(gfaPath, c.Store)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
		bs := storage.NewBadgerStore()
		if err := bs.Initialize(filepath.Join(dir, "badger"), false); err != nil {
			return fmt.Errorf("initializing storage: %w", err)
		}
		defer func() { _ = bs.Close() }()
		store = bs
	}

	req := analysis.Request{
		GFA:       gfaPath,
		Reference: c.Ref,
		Options:   c.options(),
		Store:     store,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle Ctrl+C
	go func() {
		<-osSignalChannel()
		fmt.Fprintln(os.Stderr, "\nStopping watch mode...")
		cancel()
	}()

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	prevRows := -1
	onRun := func(res *analysis.Result, err error) {
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			yellow.Fprintf(color.Error, "rerun failed: %v\n", err)
			return
		}
		if err := report.WriteTSV(os.Stdout, res.Set); err != nil {
			yellow.Fprintf(color.Error, "writing table: %v\n", err)
			return
		}
		printDiagnostics(res.Set.Diagnostics)
		rows := len(res.Set.Rows)
		if prevRows < 0 {
			green.Fprintf(color.Error, "✓ %d rows from %d queries in %.2fs\n",
				rows, len(res.Meta.Queries), float64(res.Meta.ElapsedMS)/1000)
		} else {
			green.Fprintf(color.Error, "✓ %d rows (%+d) from %d queries in %.2fs\n",
				rows, rows-prevRows, len(res.Meta.Queries), float64(res.Meta.ElapsedMS)/1000)
		}
		prevRows = rows
	}

	// First pass before watching, so the current table is on screen.
	res, err := analysis.Run(ctx, req)
	if err != nil {
		return err
	}
	onRun(res, nil)

	fmt.Fprintf(os.Stderr, "Watching %s for changes (Ctrl+C to stop)\n", gfaPath)

	err = analysis.Watch(ctx, req, onRun)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watch error: %w", err)
	}

	fmt.Fprintln(os.Stderr, "Watch mode stopped.")
	return nil
}

// ServeCmd starts the MCP server on stdio.
type ServeCmd struct {
	Path  string `arg:"" optional:"" default:"." help:"GFA file or directory holding the run store"`
	Store string `type:"path" help:"Run store directory"`
}

// Run executes the serve command.
func (c *ServeCmd) Run() error {
	store, err := openStoredRun(c.Path, c.Store)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	server := mcp.NewServer(store)

	// Stdout belongs to the JSON-RPC transport from here on.
	fmt.Fprintln(os.Stderr, "Starting MCP server...")
	return server.Run(context.Background(), os.Stdin, os.Stdout)
}

// CleanCmd deletes the run store.
type CleanCmd struct {
	Path  string `arg:"" optional:"" default:"." help:"GFA file or directory holding the run store"`
	Store string `type:"path" help:"Run store directory"`
	Force bool   `short:"f" help:"Skip confirmation"`
}

// Run executes the clean command.
func (c *CleanCmd) Run() error {
	dir, err := locateStoreDir(c.Path, c.Store)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("no run store at %s, nothing to clean", dir)
	}

	if !c.Force {
		fmt.Printf("Delete run store at %s? [y/N] ", dir)
		var response string
		_, _ = fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted")
			return nil
		}
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("deleting run store: %w", err)
	}

	color.Green("Deleted %s", dir)
	return nil
}

// Helper functions

// osSignalChannel returns a channel that receives OS signals for graceful shutdown.
func osSignalChannel() <-chan os.Signal {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	return sigChan
}

// resolveStoreDir returns the store directory for a run over gfaPath,
// honoring an explicit override.
func resolveStoreDir(gfaPath, override string) string {
	if override != "" {
		return override
	}
	return filepath.Join(filepath.Dir(gfaPath), storeDirName)
}

// locateStoreDir finds the run store for a read command. The path may be
// the GFA file, its directory, or the store directory itself.
func locateStoreDir(path, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("accessing %s: %w", abs, err)
	}
	if !info.IsDir() {
		return filepath.Join(filepath.Dir(abs), storeDirName), nil
	}
	if filepath.Base(abs) == storeDirName {
		return abs, nil
	}
	return filepath.Join(abs, storeDirName), nil
}

// openStoredRun opens the run store near path read-only.
func openStoredRun(path, override string) (*storage.BadgerStore, error) {
	dir, err := locateStoreDir(path, override)
	if err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dir, "badger")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("no stored run at %s, run 'invfind call' first", dir)
	}

	store := storage.NewBadgerStore()
	if err := store.Initialize(dbPath, true); err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	return store, nil
}

// writeRunMeta drops a human-readable copy of the run description next
// to the database.
func writeRunMeta(dir string, meta storage.RunMeta) error {
	payload := struct {
		Version string `json:"version"`
		storage.RunMeta
	}{Version: Version, RunMeta: meta}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling meta.json: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(filepath.Join(dir, "meta.json"), data, 0o644); err != nil {
		return fmt.Errorf("writing meta.json: %w", err)
	}
	return nil
}

// parseRegion parses "start..end" into 1-based inclusive bounds.
func parseRegion(s string) (int64, int64, error) {
	lo, hi, ok := strings.Cut(s, "..")
	if !ok {
		return 0, 0, fmt.Errorf("malformed region %q, want start..end", s)
	}
	start, err := strconv.ParseInt(lo, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed region %q: %w", s, err)
	}
	end, err := strconv.ParseInt(hi, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed region %q: %w", s, err)
	}
	if start <= 0 || end < start {
		return 0, 0, fmt.Errorf("malformed region %q: empty range", s)
	}
	return start, end, nil
}

// assemblyOf extracts the PanSN assembly component of a path name.
func assemblyOf(path string) string {
	if a, _, ok := strings.Cut(path, "#"); ok {
		return a
	}
	return path
}

func printDiagnostics(ds []detect.Diagnostic) {
	yellow := color.New(color.FgYellow)
	for _, d := range ds {
		yellow.Fprintf(color.Error, "warning: %s\n", d)
	}
}

// CLI is the root Kong command structure.
type CLI struct {
	Version kong.VersionFlag `help:"Show version information"`

	// Commands
	Call   CallCmd   `cmd:"" help:"Call inversions in a GFA graph against a reference path"`
	Report ReportCmd `cmd:"" help:"Print the table from the stored run"`
	Stats  StatsCmd  `cmd:"" help:"Show stored graph and run statistics"`
	Paths  PathsCmd  `cmd:"" help:"List analyzed paths grouped by assembly"`
	Watch  WatchCmd  `cmd:"" help:"Rerun detection when the GFA changes"`
	Serve  ServeCmd  `cmd:"" aliases:"mcp" help:"Start the MCP server (stdio transport)"`
	Clean  CleanCmd  `cmd:"" help:"Delete the run store"`
}

// NewCLI creates a new CLI instance.
func NewCLI() *CLI {
	return &CLI{}
}

// Execute parses command-line arguments and executes the selected command.
func (c *CLI) Execute(args []string) error {
	kongCtx := kong.Parse(c,
		kong.Name("invfind"),
		kong.Description("Inversion caller for pangenome graphs in GFA format"),
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
